// Package query filters and aggregates financial records and derives the
// standard P&L metrics from them.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/finsight/fpagent/sheet"
)

// accountTotalsCap is the largest number of distinct accounts for which
// per-account totals are included in a result. Past that the breakdown is
// elided and a note tells the caller how to narrow the query.
const accountTotalsCap = 20

// sampleRowsCap limits the raw rows echoed back in a result.
const sampleRowsCap = 5

// RecordLoader supplies the records a query runs over.
type RecordLoader interface {
	LoadAll(ctx context.Context) ([]sheet.Record, error)
}

// Engine answers filter and aggregation queries over loaded records.
type Engine struct {
	loader RecordLoader
	logger *slog.Logger
	mode   MatchMode
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMatchMode overrides the default substring matching for text
// dimensions.
func WithMatchMode(mode MatchMode) Option {
	return func(e *Engine) { e.mode = mode }
}

// NewEngine creates a query engine over the given loader.
func NewEngine(loader RecordLoader, opts ...Option) *Engine {
	e := &Engine{
		loader: loader,
		logger: slog.Default(),
		mode:   MatchContains,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// QueryResult is the aggregation summary for one query.
type QueryResult struct {
	RowCount        int                `json:"row_count"`
	TotalAmount     float64            `json:"total_amount"`
	RollupTotals    map[string]float64 `json:"rollup_totals,omitempty"`
	DeptTotals      map[string]float64 `json:"department_totals,omitempty"`
	AccountTotals   map[string]float64 `json:"account_totals,omitempty"`
	AccountNote     string             `json:"account_totals_note,omitempty"`
	MonthlyTotals   PeriodTotals       `json:"monthly_totals,omitzero"`
	QuarterlyTotals PeriodTotals       `json:"quarterly_totals,omitzero"`
	Metrics         *CalculatedMetrics `json:"calculated_metrics,omitempty"`
	SampleRows      []sheet.Record     `json:"sample_rows,omitempty"`
	Warning         string             `json:"warning,omitempty"`
}

// mixedScenarioWarning flags results that sum budget and actuals rows
// together because no scenario filter was set.
const mixedScenarioWarning = "results mix budget and actuals rows; filter by Type to compare one scenario"

// Query filters records and aggregates the matches.
func (e *Engine) Query(ctx context.Context, filters Filters) (*QueryResult, error) {
	records, err := e.loader.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	matched := filterRecords(records, filters, e.mode)
	result := aggregate(matched, filters)
	e.logger.Debug("query complete",
		"matched", result.RowCount,
		"total", len(records))
	return result, nil
}

func filterRecords(records []sheet.Record, filters Filters, mode MatchMode) []sheet.Record {
	var matched []sheet.Record
	for _, r := range records {
		if matches(r, filters, mode) {
			matched = append(matched, r)
		}
	}
	return matched
}

func aggregate(matched []sheet.Record, filters Filters) *QueryResult {
	result := &QueryResult{RowCount: len(matched)}
	if len(matched) == 0 {
		return result
	}

	rollups := map[string]float64{}
	depts := map[string]float64{}
	accounts := map[string]float64{}
	months := map[string]float64{}
	quarters := map[string]float64{}
	scenarios := map[sheet.Scenario]bool{}

	for _, r := range matched {
		result.TotalAmount += r.Amount
		scenarios[r.Scenario] = true
		// Metrics rows carry a metric name instead of a rollup; they
		// total under it so metrics queries still break down by line.
		switch {
		case r.Rollup != "":
			rollups[r.Rollup] += r.Amount
		case r.MetricName != "":
			rollups[r.MetricName] += r.Amount
		}
		if r.Department != "" {
			depts[r.Department] += r.Amount
		}
		if r.Account != "" {
			accounts[r.Account] += r.Amount
		}
		if r.Month != "" {
			months[r.Month] += r.Amount
		}
		if r.Quarter != "" {
			quarters[r.Quarter] += r.Amount
		}
	}

	if len(rollups) > 0 {
		result.RollupTotals = rollups
	}
	if len(depts) > 0 {
		result.DeptTotals = depts
	}
	switch {
	case len(accounts) > accountTotalsCap:
		result.AccountNote = fmt.Sprintf("%d distinct accounts matched; add a Rollup or Department filter to see account detail", len(accounts))
	case len(accounts) > 0:
		result.AccountTotals = accounts
	}
	result.MonthlyTotals = orderedTotals(months, sheet.MonthOrder)
	result.QuarterlyTotals = orderedTotals(quarters, sheet.QuarterOrder)
	result.Metrics = calculateMetrics(matched, rollups)

	sample := matched
	if len(sample) > sampleRowsCap {
		sample = sample[:sampleRowsCap]
	}
	result.SampleRows = sample

	if filters.Scenario == "" && len(scenarios) > 1 {
		result.Warning = mixedScenarioWarning
	}
	return result
}

// ExploreResult lists the distinct values of one dimension.
type ExploreResult struct {
	Dimension Dimension `json:"dimension"`
	Values    []string  `json:"values"`
	Count     int       `json:"count"`
}

// Explore returns the sorted distinct values of a dimension, optionally
// restricted by filters.
func (e *Engine) Explore(ctx context.Context, dim Dimension, filters Filters) (*ExploreResult, error) {
	if !dim.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
	}
	records, err := e.loader.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	seen := map[string]bool{}
	for _, r := range records {
		if !matches(r, filters, e.mode) {
			continue
		}
		if v := fieldValue(r, dim); v != "" {
			seen[v] = true
		}
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	switch dim {
	case DimMonth:
		sortByOrder(values, sheet.MonthOrder)
	case DimQuarter:
		sortByOrder(values, sheet.QuarterOrder)
	default:
		sort.Strings(values)
	}
	return &ExploreResult{Dimension: dim, Values: values, Count: len(values)}, nil
}

func sortByOrder(values, order []string) {
	rank := map[string]int{}
	for i, v := range order {
		rank[v] = i
	}
	sort.Slice(values, func(i, j int) bool { return rank[values[i]] < rank[values[j]] })
}
