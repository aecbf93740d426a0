// Package metricstore precomputes headline financial metrics from the
// record set and persists them in Postgres for fast lookup.
package metricstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finsight/fpagent/sheet"
)

// ScenarioPair names one (scenario label, year) slice that gets
// refreshed.
type ScenarioPair struct {
	Label    string
	Year     string
	Scenario sheet.Scenario
}

// RefreshPairs lists the slices the refresh materializes.
var RefreshPairs = []ScenarioPair{
	{Label: "2025 Budget", Year: "2025", Scenario: sheet.ScenarioBudget},
	{Label: "2026 Budget", Year: "2026", Scenario: sheet.ScenarioBudget},
	{Label: "Actuals", Year: "2025", Scenario: sheet.ScenarioActuals},
}

// RecordSource provides records and a way to drop the cached set so a
// refresh sees fresh data.
type RecordSource interface {
	LoadAll(ctx context.Context) ([]sheet.Record, error)
	ClearCache()
}

// Store persists precomputed metrics.
type Store struct {
	pool   *pgxpool.Pool
	source RecordSource
	logger *slog.Logger
	clock  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// New connects a metrics store to Postgres.
func New(ctx context.Context, databaseURL string, source RecordSource, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{
		pool:   pool,
		source: source,
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the metrics table and its lookup index.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS fpa_metrics (
			id SERIAL PRIMARY KEY,
			scenario TEXT NOT NULL,
			year TEXT NOT NULL,
			period_type TEXT NOT NULL,
			period TEXT NOT NULL,
			metric_name TEXT NOT NULL,
			value NUMERIC,
			updated_at TIMESTAMP DEFAULT NOW(),
			UNIQUE(scenario, year, period_type, period, metric_name)
		)`)
	if err != nil {
		return fmt.Errorf("create metrics table: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_fpa_metrics_lookup
		ON fpa_metrics(scenario, year, period_type)`)
	if err != nil {
		return fmt.Errorf("create metrics index: %w", err)
	}
	return nil
}

// RefreshAll recomputes every scenario pair from fresh records. A
// failing pair is logged and skipped so the others still refresh.
func (s *Store) RefreshAll(ctx context.Context) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}

	s.source.ClearCache()
	records, err := s.source.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load records for refresh: %w", err)
	}

	var failures int
	for _, pair := range RefreshPairs {
		rows := ComputeRows(records, pair.Scenario, pair.Year)
		if err := s.storeRows(ctx, pair.Label, pair.Year, rows); err != nil {
			failures++
			s.logger.Error("metrics refresh failed for scenario",
				"scenario", pair.Label,
				"year", pair.Year,
				"error", err)
			continue
		}
		s.logger.Info("metrics refreshed",
			"scenario", pair.Label,
			"year", pair.Year,
			"rows", len(rows))
	}

	if failures == len(RefreshPairs) {
		return fmt.Errorf("metrics refresh failed for all %d scenarios", failures)
	}
	return nil
}

// storeRows replaces a scenario/year slice in one transaction.
func (s *Store) storeRows(ctx context.Context, scenario, year string, rows []Row) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM fpa_metrics WHERE scenario = $1 AND year = $2`,
		scenario, year); err != nil {
		return fmt.Errorf("delete old metrics: %w", err)
	}

	batch := &pgx.Batch{}
	now := s.clock()
	for _, row := range rows {
		batch.Queue(
			`INSERT INTO fpa_metrics (scenario, year, period_type, period, metric_name, value, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			scenario, year, row.PeriodType, row.Period, row.MetricName, row.Value, now)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert metrics: %w", err)
	}

	return tx.Commit(ctx)
}

// Bundle is the structured metrics readout for one scenario/year.
type Bundle struct {
	Scenario  string                        `json:"scenario"`
	Year      string                        `json:"year"`
	Annual    map[string]float64            `json:"annual"`
	Quarterly map[string]map[string]float64 `json:"quarterly"`
	Monthly   map[string]map[string]float64 `json:"monthly"`
}

// GetMetrics reads a scenario/year slice back in structured form. A
// non-empty periodType ("annual", "quarterly", "monthly") narrows the
// readout to that grain; empty returns all three. The annual section is
// flattened since it has a single FY period.
func (s *Store) GetMetrics(ctx context.Context, scenario, year, periodType string) (*Bundle, error) {
	sql, args := metricsQuery(scenario, year, periodType)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	bundle := &Bundle{
		Scenario:  scenario,
		Year:      year,
		Annual:    map[string]float64{},
		Quarterly: map[string]map[string]float64{},
		Monthly:   map[string]map[string]float64{},
	}
	for rows.Next() {
		var periodType, period, name string
		var value float64
		if err := rows.Scan(&periodType, &period, &name, &value); err != nil {
			return nil, fmt.Errorf("scan metric row: %w", err)
		}
		switch periodType {
		case "annual":
			bundle.Annual[name] = value
		case "quarterly":
			if bundle.Quarterly[period] == nil {
				bundle.Quarterly[period] = map[string]float64{}
			}
			bundle.Quarterly[period][name] = value
		case "monthly":
			if bundle.Monthly[period] == nil {
				bundle.Monthly[period] = map[string]float64{}
			}
			bundle.Monthly[period][name] = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read metrics: %w", err)
	}
	return bundle, nil
}

func metricsQuery(scenario, year, periodType string) (string, []any) {
	sql := `SELECT period_type, period, metric_name, value
		 FROM fpa_metrics
		 WHERE scenario = $1 AND year = $2`
	args := []any{scenario, year}
	if periodType != "" {
		sql += ` AND period_type = $3`
		args = append(args, periodType)
	}
	return sql + ` ORDER BY period_type, period, metric_name`, args
}

// LastRefreshTime returns the newest updated_at across all metrics, or
// the zero time when the table is empty.
func (s *Store) LastRefreshTime(ctx context.Context) (time.Time, error) {
	var last *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(updated_at) FROM fpa_metrics`).Scan(&last)
	if err != nil {
		return time.Time{}, fmt.Errorf("query last refresh: %w", err)
	}
	if last == nil {
		return time.Time{}, nil
	}
	return *last, nil
}
