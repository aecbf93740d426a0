package query

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/finsight/fpagent/sheet"
)

// varianceEntriesCap limits how many per-rollup entries a variance
// result carries, after sorting by absolute variance.
const varianceEntriesCap = 25

// highlightsCap limits the favorable and unfavorable highlight lists.
const highlightsCap = 5

// ErrYearRequired rejects variance requests without a year: mixing years
// would compare a full budget against partial actuals.
var ErrYearRequired = fmt.Errorf("variance analysis requires a Year filter")

// VarianceEntry compares one rollup's actuals against budget.
type VarianceEntry struct {
	Rollup      string  `json:"rollup"`
	Budget      float64 `json:"budget"`
	Actual      float64 `json:"actual"`
	Variance    float64 `json:"variance"`
	VariancePct string  `json:"variance_pct"`
	Favorable   bool    `json:"favorable"`
}

// VarianceResult is the budget-vs-actuals comparison for one year slice.
type VarianceResult struct {
	Year        string          `json:"year"`
	Entries     []VarianceEntry `json:"entries"`
	Favorable   []VarianceEntry `json:"top_favorable"`
	Unfavorable []VarianceEntry `json:"top_unfavorable"`
	Summary     VarianceSummary `json:"summary"`
}

// VarianceSummary totals the comparison across all matched rollups, not
// just the capped entry list.
type VarianceSummary struct {
	RollupCount      int     `json:"rollup_count"`
	TotalBudget      float64 `json:"total_budget"`
	TotalActual      float64 `json:"total_actual"`
	TotalVariance    float64 `json:"total_variance"`
	TotalVariancePct string  `json:"total_variance_pct"`
}

// Variance compares actuals to budget per rollup. Filters besides the
// scenario narrow both sides identically; the scenario field of the
// incoming filters is ignored.
func (e *Engine) Variance(ctx context.Context, filters Filters) (*VarianceResult, error) {
	if filters.Year == "" {
		return nil, ErrYearRequired
	}

	budgetFilters, actualFilters := filters, filters
	budgetFilters.Scenario = string(sheet.ScenarioBudget)
	actualFilters.Scenario = string(sheet.ScenarioActuals)

	var budget, actuals *QueryResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		budget, err = e.Query(gctx, budgetFilters)
		return err
	})
	g.Go(func() error {
		var err error
		actuals, err = e.Query(gctx, actualFilters)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("variance queries: %w", err)
	}

	entries := compareRollups(budget.RollupTotals, actuals.RollupTotals)
	result := &VarianceResult{Year: filters.Year}
	for _, entry := range entries {
		result.Summary.TotalBudget += entry.Budget
		result.Summary.TotalActual += entry.Actual
		result.Summary.TotalVariance += entry.Variance
	}
	result.Summary.RollupCount = len(entries)
	result.Summary.TotalVariancePct = variancePct(result.Summary.TotalVariance, result.Summary.TotalBudget)

	// Highlights come from the full union; only the entry list is capped.
	result.Favorable = topWhere(entries, true)
	result.Unfavorable = topWhere(entries, false)
	if len(entries) > varianceEntriesCap {
		entries = entries[:varianceEntriesCap]
	}
	result.Entries = entries
	return result, nil
}

// compareRollups builds variance entries over the union of rollup names,
// sorted by absolute variance descending. A rollup present on only one
// side contributes zero for the missing side.
func compareRollups(budget, actuals map[string]float64) []VarianceEntry {
	names := map[string]bool{}
	for name := range budget {
		names[name] = true
	}
	for name := range actuals {
		names[name] = true
	}

	entries := make([]VarianceEntry, 0, len(names))
	for name := range names {
		b, a := budget[name], actuals[name]
		variance := a - b
		entries = append(entries, VarianceEntry{
			Rollup:      name,
			Budget:      b,
			Actual:      a,
			Variance:    variance,
			VariancePct: variancePct(variance, b),
			Favorable:   isFavorable(name, variance),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		vi, vj := math.Abs(entries[i].Variance), math.Abs(entries[j].Variance)
		if vi != vj {
			return vi > vj
		}
		return entries[i].Rollup < entries[j].Rollup
	})
	return entries
}

// variancePct is "N/A" when there is no budget to compare against.
func variancePct(variance, budget float64) string {
	if budget == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", variance/math.Abs(budget)*100)
}

// isFavorable applies the sign convention in one place: revenue above
// budget is favorable, cost below budget is favorable. Zero variance is
// favorable either way.
func isFavorable(rollup string, variance float64) bool {
	if strings.Contains(strings.ToLower(rollup), "revenue") {
		return variance >= 0
	}
	return variance <= 0
}

func topWhere(entries []VarianceEntry, favorable bool) []VarianceEntry {
	var top []VarianceEntry
	for _, entry := range entries {
		if entry.Favorable == favorable {
			top = append(top, entry)
			if len(top) == highlightsCap {
				break
			}
		}
	}
	return top
}
