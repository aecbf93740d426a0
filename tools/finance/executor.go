// Package finance implements the data exploration, query and variance
// tools over the query engine.
package finance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/finsight/fpagent/llm"
	"github.com/finsight/fpagent/query"
	"github.com/finsight/fpagent/tools"
)

// Tool names.
const (
	ToolExplore  = "explore_financial_data"
	ToolQuery    = "query_financial_data"
	ToolVariance = "variance_analysis"
)

// Executor runs the financial data tools.
type Executor struct {
	engine *query.Engine
}

// NewExecutor creates a finance executor over a query engine.
func NewExecutor(engine *query.Engine) *Executor {
	return &Executor{engine: engine}
}

// Execute runs one financial tool call.
func (e *Executor) Execute(ctx context.Context, call llm.ToolCall) (tools.ToolResult, error) {
	switch call.Name {
	case ToolExplore:
		return e.explore(ctx, call)
	case ToolQuery:
		return e.query(ctx, call)
	case ToolVariance:
		return e.variance(ctx, call)
	default:
		return tools.ToolResult{}, fmt.Errorf("unknown tool: %s", call.Name)
	}
}

type exploreInput struct {
	Dimension string        `json:"dimension"`
	Filter    query.Filters `json:"filter"`
}

func (e *Executor) explore(ctx context.Context, call llm.ToolCall) (tools.ToolResult, error) {
	var input exploreInput
	if err := json.Unmarshal(call.Input, &input); err != nil {
		return tools.ErrorResult(call.ID, fmt.Sprintf("invalid input: %v", err)), nil
	}

	dim, err := query.ParseDimension(input.Dimension)
	if err != nil {
		return tools.ErrorResult(call.ID, fmt.Sprintf("%v; valid dimensions: %v", err, query.Dimensions)), nil
	}

	result, err := e.engine.Explore(ctx, dim, input.Filter)
	if err != nil {
		return tools.ErrorResult(call.ID, fmt.Sprintf("explore failed: %v", err)), nil
	}
	return tools.JSONResult(call.ID, result), nil
}

func (e *Executor) query(ctx context.Context, call llm.ToolCall) (tools.ToolResult, error) {
	var filters query.Filters
	if err := json.Unmarshal(call.Input, &filters); err != nil {
		return tools.ErrorResult(call.ID, fmt.Sprintf("invalid input: %v", err)), nil
	}

	result, err := e.engine.Query(ctx, filters)
	if err != nil {
		return tools.ErrorResult(call.ID, fmt.Sprintf("query failed: %v", err)), nil
	}
	return tools.JSONResult(call.ID, result), nil
}

func (e *Executor) variance(ctx context.Context, call llm.ToolCall) (tools.ToolResult, error) {
	var filters query.Filters
	if err := json.Unmarshal(call.Input, &filters); err != nil {
		return tools.ErrorResult(call.ID, fmt.Sprintf("invalid input: %v", err)), nil
	}

	result, err := e.engine.Variance(ctx, filters)
	if err != nil {
		if errors.Is(err, query.ErrYearRequired) {
			return tools.ErrorResult(call.ID, "Year is required for variance analysis (e.g. {\"Year\": \"2025\"})"), nil
		}
		return tools.ErrorResult(call.ID, fmt.Sprintf("variance analysis failed: %v", err)), nil
	}
	return tools.JSONResult(call.ID, result), nil
}

// ListTools returns the financial tool definitions.
func (e *Executor) ListTools() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name: ToolExplore,
			Description: `Explores the financial data to understand what's available. Use this FIRST when you're unsure what rollups, accounts, or time periods exist.

Returns: List of unique values for the specified dimension.

Valid dimensions: Type, Statement, Rollup, Account, Department, Vendor, Month, Quarter, Year, Product, Metric Name, Metric Type

Examples:
- { "dimension": "Rollup" } -> All rollup categories like "Messaging Revenue", "Indirect Labor"
- { "dimension": "Rollup", "filter": { "Statement": "income_statement" } } -> Income statement rollups only
- { "dimension": "Type" } -> ["budget", "actuals"]`,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"dimension": {
						"type": "string",
						"enum": ["Type", "Statement", "Rollup", "Account", "Department", "Vendor", "Month", "Quarter", "Year", "Product", "Metric Name", "Metric Type"],
						"description": "Which field to get unique values for"
					},
					"filter": {
						"type": "object",
						"description": "Optional filters to narrow results (e.g. { \"Statement\": \"income_statement\" })"
					}
				},
				"required": ["dimension"]
			}`),
		},
		{
			Name: ToolQuery,
			Description: `Queries the budget/actuals data. Returns matching rows and aggregations.

STRATEGY:
- Query BROADLY first - the response includes all breakdowns you need in ONE call.
- Always specify Type ("budget" or "actuals") to avoid mixing scenarios.
- For variance analysis, use the variance_analysis tool instead of making two queries.
- DO NOT query month-by-month or quarter-by-quarter - one query returns all periods!

Returns:
- calculated_metrics: PRE-COMPUTED key metrics (USE THESE, don't calculate yourself!): net_revenue, gross_revenue, carrier_fees, gross_profit, gross_margin_pct, total_cogs, ebitda, ebitda_margin_pct, total_opex
- rollup_totals: Sums by Rollup (for detailed breakdowns)
- monthly_totals: Sums by Month - USE THIS FOR MONTHLY CHARTS
- quarterly_totals: Sums by Quarter - USE THIS FOR QUARTERLY SUMMARIES
- department_totals: Sums by Department (only meaningful for OpEx!)
- sample_rows: First 5 matching rows for verification`,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"Type": {"type": "string", "enum": ["budget", "actuals"], "description": "REQUIRED: budget or actuals. Always specify this!"},
					"Statement": {"type": "string", "enum": ["income_statement", "balance_sheet", "metrics"], "description": "Filter by statement type"},
					"Rollup": {"type": "string", "description": "Filter by rollup category (e.g. \"Messaging Revenue\", \"Indirect Labor\"). Partial match supported."},
					"Account": {"type": "string", "description": "Filter by GL account (e.g. \"41001 - Messaging Revenue\")"},
					"Department": {"type": "string", "description": "Filter by department"},
					"Vendor": {"type": "string", "description": "Filter by vendor name"},
					"Month": {"type": "string", "description": "Filter by month (January, February, etc.)"},
					"Quarter": {"type": "string", "description": "Filter by quarter (Q1, Q2, Q3, Q4)"},
					"Year": {"type": "string", "description": "Filter by year (2025, 2026, etc.)"}
				}
			}`),
		},
		{
			Name: ToolVariance,
			Description: `Compares Budget vs Actual for a given period and calculates variances.

Returns for each rollup:
- Budget amount, Actual amount
- Variance (Actual - Budget)
- Variance % ((Actual - Budget) / |Budget|)
- Favorable/Unfavorable flag (considers whether the item is revenue or expense)

Also returns:
- summary: Total budget, actual, and variance
- top_favorable: Top 5 favorable variances
- top_unfavorable: Top 5 unfavorable variances

Use this for budget-vs-actual analysis instead of making two separate queries.`,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"Year": {"type": "string", "description": "Year to analyze (REQUIRED)"},
					"Quarter": {"type": "string", "description": "Quarter to analyze (Q1, Q2, Q3, Q4)"},
					"Month": {"type": "string", "description": "Month to analyze (January, February, etc.)"},
					"Statement": {"type": "string", "enum": ["income_statement", "balance_sheet", "metrics"], "description": "Filter by statement type"},
					"Rollup": {"type": "string", "description": "Filter to specific rollup category"},
					"Department": {"type": "string", "description": "Filter by department"}
				},
				"required": ["Year"]
			}`),
		},
	}
}
