package metricstore

import (
	"github.com/finsight/fpagent/query"
	"github.com/finsight/fpagent/sheet"
)

// Row is one metric value at one period grain, ready to insert.
type Row struct {
	PeriodType string
	Period     string
	MetricName string
	Value      float64
}

// ComputeRows derives the full metric row set for one scenario and year:
// an annual "FY" slice plus one slice per quarter and per month that has
// data. Only income statement records feed the metric formulas.
func ComputeRows(records []sheet.Record, scenario sheet.Scenario, year string) []Row {
	var scoped []sheet.Record
	for _, r := range records {
		if r.Scenario != scenario || r.Year != year || r.Statement != sheet.StatementIncome {
			continue
		}
		scoped = append(scoped, r)
	}

	rows := metricRows("annual", "FY", query.MetricSetFor(scoped))

	byQuarter := map[string][]sheet.Record{}
	byMonth := map[string][]sheet.Record{}
	for _, r := range scoped {
		if r.Quarter != "" {
			byQuarter[r.Quarter] = append(byQuarter[r.Quarter], r)
		}
		if r.Month != "" {
			byMonth[r.Month] = append(byMonth[r.Month], r)
		}
	}

	for _, q := range sheet.QuarterOrder {
		if recs, ok := byQuarter[q]; ok {
			rows = append(rows, metricRows("quarterly", q, query.MetricSetFor(recs))...)
		}
	}
	for _, m := range sheet.MonthOrder {
		if recs, ok := byMonth[m]; ok {
			rows = append(rows, metricRows("monthly", m, query.MetricSetFor(recs))...)
		}
	}
	return rows
}

func metricRows(periodType, period string, set query.MetricSet) []Row {
	values := []struct {
		name  string
		value float64
	}{
		{"gross_revenue", set.GrossRevenue},
		{"carrier_fees", set.CarrierFees},
		{"net_revenue", set.NetRevenue},
		{"total_cogs", set.TotalCOGS},
		{"gross_profit", set.GrossProfit},
		{"gross_margin_pct", set.GrossMarginPct},
		{"total_opex", set.TotalOpex},
		{"ebitda", set.EBITDA},
		{"ebitda_margin_pct", set.EBITDAMarginPct},
	}
	rows := make([]Row, 0, len(values))
	for _, v := range values {
		rows = append(rows, Row{
			PeriodType: periodType,
			Period:     period,
			MetricName: v.name,
			Value:      v.value,
		})
	}
	return rows
}
