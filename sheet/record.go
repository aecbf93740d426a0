// Package sheet loads the Aleph budget/actuals export into a normalized
// record set. Each configured sheet is parsed against a static schema,
// rollup labels are canonicalized, and the result is cached with a TTL.
package sheet

// Scenario distinguishes planned from historical figures.
type Scenario string

const (
	ScenarioBudget  Scenario = "budget"
	ScenarioActuals Scenario = "actuals"
)

// Statement identifies which financial statement a record belongs to.
type Statement string

const (
	StatementIncome  Statement = "income_statement"
	StatementBalance Statement = "balance_sheet"
	StatementMetrics Statement = "metrics"
)

// Record is one normalized data row from the export. Month, Quarter and
// Year are derived together from a single date cell: either all three are
// set or all three are empty. Rows from metrics sheets have no Rollup;
// MetricName is their category label and aggregations fall back to it.
type Record struct {
	SourceSheet string
	Scenario    Scenario
	Statement   Statement
	Rollup      string
	Account     string
	Department  string
	Vendor      string
	Product     string
	MetricName  string
	MetricType  string
	Month       string
	Quarter     string
	Year        string
	Amount      float64
}

// MonthOrder is the canonical month sequence used for ordered aggregation.
var MonthOrder = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// QuarterOrder is the canonical quarter sequence.
var QuarterOrder = []string{"Q1", "Q2", "Q3", "Q4"}
