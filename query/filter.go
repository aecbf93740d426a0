// Package query answers dimensional explore and filter+aggregate
// questions over the loaded record set, computes derived financial
// metrics, and runs budget-vs-actuals variance analysis.
package query

import (
	"fmt"
	"strings"

	"github.com/finsight/fpagent/sheet"
)

// ErrUnknownDimension signals a caller error: the requested dimension is
// not part of the data model. Distinct from an empty (but valid) result.
var ErrUnknownDimension = fmt.Errorf("unknown dimension")

// Dimension names a filterable field of the record set.
type Dimension string

const (
	DimScenario   Dimension = "Type"
	DimStatement  Dimension = "Statement"
	DimRollup     Dimension = "Rollup"
	DimAccount    Dimension = "Account"
	DimDepartment Dimension = "Department"
	DimVendor     Dimension = "Vendor"
	DimMonth      Dimension = "Month"
	DimQuarter    Dimension = "Quarter"
	DimYear       Dimension = "Year"
	DimProduct    Dimension = "Product"
	DimMetricName Dimension = "Metric Name"
	DimMetricType Dimension = "Metric Type"
)

// Dimensions lists every supported dimension in presentation order.
var Dimensions = []Dimension{
	DimScenario, DimStatement, DimRollup, DimAccount, DimDepartment,
	DimVendor, DimMonth, DimQuarter, DimYear, DimProduct,
	DimMetricName, DimMetricType,
}

func (d Dimension) valid() bool {
	for _, known := range Dimensions {
		if d == known {
			return true
		}
	}
	return false
}

// ParseDimension resolves a dimension name case-insensitively, accepting
// the underscore spellings the tool schema uses for the metric fields.
func ParseDimension(name string) (Dimension, error) {
	normalized := strings.ToLower(strings.ReplaceAll(name, "_", " "))
	for _, d := range Dimensions {
		if strings.ToLower(string(d)) == normalized {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDimension, name)
}

// Filters is the closed set of supported filter dimensions. Empty fields
// are unconstrained. Scenario, Month, Quarter and Year match exactly
// (case-insensitive); every other dimension matches by case-insensitive
// substring containment or exact match, so "Revenue" finds "Messaging
// Revenue". Short values can therefore match several categories.
type Filters struct {
	Scenario   string `json:"Type,omitempty"`
	Statement  string `json:"Statement,omitempty"`
	Rollup     string `json:"Rollup,omitempty"`
	Account    string `json:"Account,omitempty"`
	Department string `json:"Department,omitempty"`
	Vendor     string `json:"Vendor,omitempty"`
	Month      string `json:"Month,omitempty"`
	Quarter    string `json:"Quarter,omitempty"`
	Year       string `json:"Year,omitempty"`
	Product    string `json:"Product,omitempty"`
	MetricName string `json:"MetricName,omitempty"`
	MetricType string `json:"MetricType,omitempty"`
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// value returns the filter value for a dimension.
func (f Filters) value(d Dimension) string {
	switch d {
	case DimScenario:
		return f.Scenario
	case DimStatement:
		return f.Statement
	case DimRollup:
		return f.Rollup
	case DimAccount:
		return f.Account
	case DimDepartment:
		return f.Department
	case DimVendor:
		return f.Vendor
	case DimMonth:
		return f.Month
	case DimQuarter:
		return f.Quarter
	case DimYear:
		return f.Year
	case DimProduct:
		return f.Product
	case DimMetricName:
		return f.MetricName
	case DimMetricType:
		return f.MetricType
	}
	return ""
}

// fieldValue extracts a record's value for a dimension.
func fieldValue(r sheet.Record, d Dimension) string {
	switch d {
	case DimScenario:
		return string(r.Scenario)
	case DimStatement:
		return string(r.Statement)
	case DimRollup:
		return r.Rollup
	case DimAccount:
		return r.Account
	case DimDepartment:
		return r.Department
	case DimVendor:
		return r.Vendor
	case DimMonth:
		return r.Month
	case DimQuarter:
		return r.Quarter
	case DimYear:
		return r.Year
	case DimProduct:
		return r.Product
	case DimMetricName:
		return r.MetricName
	case DimMetricType:
		return r.MetricType
	}
	return ""
}

// exactDimensions are matched by equality regardless of match mode:
// substring matching "Q1" or "2025" would be meaningless.
var exactDimensions = map[Dimension]bool{
	DimScenario: true,
	DimMonth:    true,
	DimQuarter:  true,
	DimYear:     true,
}

// MatchMode selects how non-exact dimensions are compared.
type MatchMode int

const (
	// MatchContains is the default: exact match or case-insensitive
	// substring containment.
	MatchContains MatchMode = iota
	// MatchExact requires equality for every dimension. Exposed so the
	// loose-containment behavior can be pinned independently in tests.
	MatchExact
)

func matches(r sheet.Record, f Filters, mode MatchMode) bool {
	for _, d := range Dimensions {
		want := f.value(d)
		if want == "" {
			continue
		}
		got := fieldValue(r, d)
		if got == "" {
			return false
		}
		lw, lg := strings.ToLower(want), strings.ToLower(got)
		if lg == lw {
			continue
		}
		if mode == MatchContains && !exactDimensions[d] && strings.Contains(lg, lw) {
			continue
		}
		return false
	}
	return true
}
