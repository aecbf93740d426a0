package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/finsight/fpagent/sheet"
)

// Fixed rollup membership for the derived metrics. These lists define the
// metric formulas; they are data, not heuristics, and must stay in sync
// with the rollup names in the export.
var (
	// RevenueRollups sum to Gross Revenue (includes carrier pass-through).
	RevenueRollups = []string{
		"Messaging Revenue", "Platform Revenue", "Short Code Revenue",
		"Postscript AI Revenue", "PS Plus Revenue", "SMS Sales Revenue",
		"Fondue Revenue", "Advertising Revenue",
	}

	// CarrierFeeRollup is the single pass-through category subtracted
	// from Gross Revenue to get Net Revenue.
	CarrierFeeRollup = "Twilio Carrier Fees"

	// COGSRollups sum to Total COGS.
	COGSRollups = []string{
		"Hosting", "Twilio Messaging", "Twilio Short Codes", "SMS Sales COGS",
		"Prepaid Cards", "Postscript Plus Servicing Costs", "CXAs Servicing Costs",
		"MAI OpenAI Costs",
	}

	// OpexRollups sum to Total OpEx.
	OpexRollups = []string{
		"Indirect Labor", "T&E", "Tech & IT", "Professional Fees", "Marketing Expense",
		"Payment Processing", "Other OpEx", "Recruiting Expense", "Bad Debt", "Severance",
		"Bank Fees", "Twilio OPEX", "Contra Payroll",
	}
)

// MetricSet holds the derived financial metrics for one slice of records.
// NetRevenue == GrossRevenue - CarrierFees always holds; the margin
// percentages are 0 (never NaN or Inf) when NetRevenue <= 0.
type MetricSet struct {
	GrossRevenue    float64 `json:"gross_revenue"`
	CarrierFees     float64 `json:"carrier_fees"`
	NetRevenue      float64 `json:"net_revenue"`
	TotalCOGS       float64 `json:"total_cogs"`
	GrossProfit     float64 `json:"gross_profit"`
	GrossMarginPct  float64 `json:"gross_margin_pct"`
	TotalOpex       float64 `json:"total_opex"`
	EBITDA          float64 `json:"ebitda"`
	EBITDAMarginPct float64 `json:"ebitda_margin_pct"`
}

// ComputeMetricSet derives the metric set from per-rollup sums. The
// formulas are order-independent sums over the fixed membership lists.
func ComputeMetricSet(rollupTotals map[string]float64) MetricSet {
	var m MetricSet
	for _, r := range RevenueRollups {
		m.GrossRevenue += rollupTotals[r]
	}
	m.CarrierFees = rollupTotals[CarrierFeeRollup]
	m.NetRevenue = m.GrossRevenue - m.CarrierFees
	for _, r := range COGSRollups {
		m.TotalCOGS += rollupTotals[r]
	}
	m.GrossProfit = m.NetRevenue - m.TotalCOGS
	for _, r := range OpexRollups {
		m.TotalOpex += rollupTotals[r]
	}
	m.EBITDA = m.GrossProfit - m.TotalOpex
	m.GrossMarginPct = safeMarginPct(m.GrossProfit, m.NetRevenue)
	m.EBITDAMarginPct = safeMarginPct(m.EBITDA, m.NetRevenue)
	return m
}

// safeMarginPct is 0 when net revenue is not positive, so margins never
// divide by zero or flip sign on a negative denominator.
func safeMarginPct(numerator, netRevenue float64) float64 {
	if netRevenue <= 0 {
		return 0
	}
	return numerator / netRevenue * 100
}

// MetricSetFor computes the metric set over a record slice.
func MetricSetFor(records []sheet.Record) MetricSet {
	totals := map[string]float64{}
	for _, r := range records {
		if r.Rollup != "" {
			totals[r.Rollup] += r.Amount
		}
	}
	return ComputeMetricSet(totals)
}

// CalculatedMetrics is the pre-computed metrics object attached to every
// query result, including net revenue broken out by quarter and month so
// callers never re-derive time series themselves.
type CalculatedMetrics struct {
	MetricSet
	QuarterlyNetRevenue PeriodTotals `json:"quarterly_net_revenue,omitzero"`
	MonthlyNetRevenue   PeriodTotals `json:"monthly_net_revenue,omitzero"`
}

func calculateMetrics(records []sheet.Record, rollupTotals map[string]float64) *CalculatedMetrics {
	cm := &CalculatedMetrics{MetricSet: ComputeMetricSet(rollupTotals)}

	isRevenue := map[string]bool{}
	for _, r := range RevenueRollups {
		isRevenue[r] = true
	}

	quarterNet := map[string]float64{}
	monthNet := map[string]float64{}
	for _, r := range records {
		var signed float64
		switch {
		case isRevenue[r.Rollup]:
			signed = r.Amount
		case r.Rollup == CarrierFeeRollup:
			signed = -r.Amount
		default:
			continue
		}
		if r.Quarter != "" {
			quarterNet[r.Quarter] += signed
		}
		if r.Month != "" {
			monthNet[r.Month] += signed
		}
	}

	cm.QuarterlyNetRevenue = orderedTotals(quarterNet, sheet.QuarterOrder)
	cm.MonthlyNetRevenue = orderedTotals(monthNet, sheet.MonthOrder)
	return cm
}

// PeriodTotals is a period→sum mapping that serializes its keys in
// canonical period order (January..December, Q1..Q4) rather than
// alphabetically.
type PeriodTotals struct {
	Periods []string
	Sums    map[string]float64
}

func orderedTotals(sums map[string]float64, order []string) PeriodTotals {
	pt := PeriodTotals{Sums: map[string]float64{}}
	for _, p := range order {
		if v, ok := sums[p]; ok {
			pt.Periods = append(pt.Periods, p)
			pt.Sums[p] = v
		}
	}
	return pt
}

// IsZero reports whether no period has data.
func (p PeriodTotals) IsZero() bool {
	return len(p.Periods) == 0
}

// MarshalJSON emits an object with keys in canonical period order.
func (p PeriodTotals) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, period := range p.Periods {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(period)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		val, err := json.Marshal(p.Sums[period])
		if err != nil {
			return nil, err
		}
		b.Write(val)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// UnmarshalJSON accepts a plain object, recovering canonical order from
// the known period sequences.
func (p *PeriodTotals) UnmarshalJSON(data []byte) error {
	sums := map[string]float64{}
	if err := json.Unmarshal(data, &sums); err != nil {
		return fmt.Errorf("period totals: %w", err)
	}
	order := sheet.MonthOrder
	for _, q := range sheet.QuarterOrder {
		if _, ok := sums[q]; ok {
			order = sheet.QuarterOrder
			break
		}
	}
	*p = orderedTotals(sums, order)
	return nil
}
