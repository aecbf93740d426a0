package sheet

import "strings"

// columnMap names the source columns a sheet config reads. Empty fields
// mean the sheet does not carry that attribute.
type columnMap struct {
	Account    string
	Vendor     string
	Department string
	Rollup     string
	Product    string
	MetricName string
	MetricType string
	Month      string
	Value      string
	Scenario   string
}

// SheetConfig describes how to parse one sheet of the export. Scenario is
// resolved in one of three ways: a fixed per-sheet scenario, a scenario
// column mapped through scenarioLabels, or (for metrics sheets) derived
// from the row date relative to the current month.
type SheetConfig struct {
	Pattern       string
	Statement     Statement
	HeaderRow     int
	Scenario      Scenario // fixed scenario; empty when resolved per row
	ScenarioCol   string   // column holding the scenario label
	MetricsByDate bool     // derive scenario from the row date
	Combined      bool     // combined BvA source, preferred over legacy sheets
	Columns       columnMap
}

// scenarioLabels maps scenario column values to scenarios. Rows whose
// label is not listed here are dropped during load.
var scenarioLabels = map[string]Scenario{
	"2026 Budget": ScenarioBudget,
	"2025 Budget": ScenarioBudget,
	"Actuals":     ScenarioActuals,
}

const headerRow = 14

// sheetConfigs is matched against sheet names by substring. Order matters:
// combined BvA configs come first so they win over the legacy patterns.
var sheetConfigs = []SheetConfig{
	{
		Pattern:     "BvA Income Statement",
		Statement:   StatementIncome,
		HeaderRow:   headerRow,
		ScenarioCol: "Scenario",
		Combined:    true,
		Columns: columnMap{
			Account:    "Account",
			Vendor:     "Vendor Name",
			Department: "Department Aleph",
			Rollup:     "Consolidated Rollup Aleph",
			Month:      "Month",
			Value:      "Value",
			Scenario:   "Scenario",
		},
	},
	{
		Pattern:     "BvA Balance Sheet",
		Statement:   StatementBalance,
		HeaderRow:   headerRow,
		ScenarioCol: "Scenario",
		Combined:    true,
		Columns: columnMap{
			Account:  "Account",
			Rollup:   "Consolidated Rollup Aleph",
			Month:    "Month",
			Value:    "Value",
			Scenario: "Scenario",
		},
	},
	{
		Pattern:       "Metrics",
		Statement:     StatementMetrics,
		HeaderRow:     headerRow,
		MetricsByDate: true,
		Combined:      true,
		Columns: columnMap{
			Department: "Department",
			Product:    "Product",
			MetricName: "Metric Name",
			MetricType: "Metric Type",
			Month:      "Month",
			Value:      "value",
		},
	},
	// Legacy per-scenario sheets, kept as fallback when no combined
	// sheet exists for the statement type.
	{
		Pattern:   "2026 Budget - Income Statement",
		Statement: StatementIncome,
		HeaderRow: headerRow,
		Scenario:  ScenarioBudget,
		Columns: columnMap{
			Account:    "Account",
			Vendor:     "Vendor",
			Department: "Department Aleph",
			Rollup:     "Consolidated Rollup Aleph",
			Month:      "Month",
			Value:      "value",
		},
	},
	{
		Pattern:   "2025 Budget - Income Statement",
		Statement: StatementIncome,
		HeaderRow: headerRow,
		Scenario:  ScenarioBudget,
		Columns: columnMap{
			Account:    "Account",
			Vendor:     "Vendor",
			Department: "Department Aleph",
			Rollup:     "Consolidated Rollup Aleph",
			Month:      "Month",
			Value:      "value",
		},
	},
	{
		Pattern:   "Actuals - Income Statement",
		Statement: StatementIncome,
		HeaderRow: headerRow,
		Scenario:  ScenarioActuals,
		Columns: columnMap{
			Account:    "Account",
			Vendor:     "Vendor Name",
			Department: "Department Aleph",
			Rollup:     "Consolidated Rollup Aleph",
			Month:      "Month",
			Value:      "Value",
		},
	},
	{
		Pattern:   "2026 Budget - Balance Sheet",
		Statement: StatementBalance,
		HeaderRow: headerRow,
		Scenario:  ScenarioBudget,
		Columns: columnMap{
			Account: "Account",
			Rollup:  "Consolidated Rollup Aleph",
			Month:   "Month",
			Value:   "value",
		},
	},
	{
		Pattern:   "2025 Budget - Balance Sheet",
		Statement: StatementBalance,
		HeaderRow: headerRow,
		Scenario:  ScenarioBudget,
		Columns: columnMap{
			Account: "Account",
			Rollup:  "Consolidated Rollup Aleph",
			Month:   "Month",
			Value:   "value",
		},
	},
	{
		Pattern:   "Actuals - Balance Sheet",
		Statement: StatementBalance,
		HeaderRow: headerRow,
		Scenario:  ScenarioActuals,
		Columns: columnMap{
			Account: "Account",
			Rollup:  "Consolidated Rollup Aleph",
			Month:   "Month",
			Value:   "Value",
		},
	},
	{
		Pattern:       "2026 Budget and pre-2026 Actuals - Metrics",
		Statement:     StatementMetrics,
		HeaderRow:     headerRow,
		MetricsByDate: true,
		Columns: columnMap{
			Department: "Department",
			Product:    "Product",
			MetricName: "Metric Name",
			MetricType: "Metric Type",
			Month:      "Month",
			Value:      "value",
		},
	},
}

// FindConfig resolves a sheet name against the static schema table by
// substring match, preferring the most specific (longest) pattern so that
// the legacy "... - Metrics" sheet does not fall through to the combined
// "Metrics" config. Sheets with no matching config are not loaded.
func FindConfig(sheetName string) (SheetConfig, bool) {
	var best SheetConfig
	found := false
	for _, cfg := range sheetConfigs {
		if !strings.Contains(sheetName, cfg.Pattern) {
			continue
		}
		if !found || len(cfg.Pattern) > len(best.Pattern) {
			best = cfg
			found = true
		}
	}
	return best, found
}
