package sheet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a full load is served from memory before
// the source is consulted again.
const DefaultCacheTTL = 5 * time.Minute

// Loader parses configured sheets into Records and caches the combined
// result. Concurrent loads collapse to a single underlying fetch; a brief
// stampede on expiry is tolerated rather than excluded.
type Loader struct {
	source Source
	logger *slog.Logger
	clock  func() time.Time
	ttl    time.Duration

	mu       sync.Mutex
	cached   []Record
	cachedAt time.Time
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithClock injects the time source. Used by tests and by the metrics
// sheets' scenario-by-date rule.
func WithClock(clock func() time.Time) LoaderOption {
	return func(l *Loader) {
		l.clock = clock
	}
}

// WithCacheTTL overrides the cache expiry.
func WithCacheTTL(ttl time.Duration) LoaderOption {
	return func(l *Loader) {
		l.ttl = ttl
	}
}

// NewLoader creates a Loader over the given source.
func NewLoader(source Source, opts ...LoaderOption) *Loader {
	l := &Loader{
		source: source,
		logger: slog.Default(),
		clock:  time.Now,
		ttl:    DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ListSources returns the names of available sheets that have a matching
// schema configuration.
func (l *Loader) ListSources(ctx context.Context) ([]string, error) {
	names, err := l.source.ListSheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	var configured []string
	for _, name := range names {
		if _, ok := FindConfig(name); ok {
			configured = append(configured, name)
		}
	}
	return configured, nil
}

// LoadAll loads every configured sheet, deduplicating combined vs legacy
// sources so each statement type is loaded from exactly one place. The
// result is cached for the configured TTL.
func (l *Loader) LoadAll(ctx context.Context) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil && l.clock().Sub(l.cachedAt) < l.ttl {
		return l.cached, nil
	}

	names, err := l.source.ListSheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}

	// A statement type with any combined sheet present is loaded only
	// from combined sheets; its legacy sheets are skipped entirely.
	hasCombined := map[Statement]bool{}
	for _, name := range names {
		if cfg, ok := FindConfig(name); ok && cfg.Combined {
			hasCombined[cfg.Statement] = true
		}
	}

	var all []Record
	for _, name := range names {
		cfg, ok := FindConfig(name)
		if !ok {
			continue // unconfigured sheets are expected, not an error
		}
		if hasCombined[cfg.Statement] && !cfg.Combined {
			l.logger.Debug("Skipping legacy sheet", "sheet", name, "statement", cfg.Statement)
			continue
		}

		records, err := l.loadSheet(ctx, name, cfg)
		if err != nil {
			// One bad sheet must not abort the rest of the load.
			l.logger.Error("Failed to load sheet", "sheet", name, "error", err)
			continue
		}
		l.logger.Debug("Loaded sheet", "sheet", name, "rows", len(records))
		all = append(all, records...)
	}

	l.logger.Info("Loaded export", "sheets", len(names), "rows", len(all))
	l.cached = all
	l.cachedAt = l.clock()
	return all, nil
}

// LoadSheet parses a single named sheet, bypassing the cache.
func (l *Loader) LoadSheet(ctx context.Context, name string) ([]Record, error) {
	cfg, ok := FindConfig(name)
	if !ok {
		return nil, fmt.Errorf("no schema configuration matches sheet %q", name)
	}
	return l.loadSheet(ctx, name, cfg)
}

// ClearCache drops the cached record set so the next load hits the
// source. Callers that need freshly refreshed data (the metrics
// materializer) must call this first.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	l.cached = nil
	l.cachedAt = time.Time{}
	l.mu.Unlock()
	l.logger.Debug("Loader cache cleared")
}

func (l *Loader) loadSheet(ctx context.Context, name string, cfg SheetConfig) ([]Record, error) {
	rows, err := l.source.ReadSheet(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(rows) < cfg.HeaderRow {
		return nil, nil
	}

	headers := rows[cfg.HeaderRow-1]
	colIndex := map[string]int{}
	for i, h := range headers {
		if h = strings.TrimSpace(h); h != "" {
			colIndex[h] = i
		}
	}

	cell := func(row []string, col string) string {
		idx, ok := colIndex[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	now := l.clock().UTC()
	firstOfCurrentMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var records []Record
	for i := cfg.HeaderRow; i < len(rows); i++ {
		row := rows[i]

		amount, ok := ParseAmount(cell(row, cfg.Columns.Value))
		if !ok {
			continue
		}

		var month, quarter, year string
		date, hasDate := ParseCellDate(cell(row, cfg.Columns.Month))
		if hasDate {
			month = MonthName(date.Month())
			quarter = QuarterOf(date.Month())
			year = fmt.Sprintf("%d", date.Year())
		}

		scenario := cfg.Scenario
		if cfg.ScenarioCol != "" {
			label := cell(row, cfg.ScenarioCol)
			mapped, known := scenarioLabels[label]
			if !known {
				continue // unrecognized scenario label, drop the row
			}
			scenario = mapped
		}
		if cfg.MetricsByDate {
			if !hasDate {
				continue
			}
			if date.Before(firstOfCurrentMonth) {
				scenario = ScenarioActuals
			} else {
				scenario = ScenarioBudget
			}
		}
		if scenario == "" {
			continue
		}

		records = append(records, Record{
			SourceSheet: name,
			Scenario:    scenario,
			Statement:   cfg.Statement,
			Rollup:      NormalizeRollup(cell(row, cfg.Columns.Rollup)),
			Account:     cell(row, cfg.Columns.Account),
			Department:  cell(row, cfg.Columns.Department),
			Vendor:      cell(row, cfg.Columns.Vendor),
			Product:     cell(row, cfg.Columns.Product),
			MetricName:  cell(row, cfg.Columns.MetricName),
			MetricType:  cell(row, cfg.Columns.MetricType),
			Month:       month,
			Quarter:     quarter,
			Year:        year,
			Amount:      amount,
		})
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return records, nil
}
