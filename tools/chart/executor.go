// Package chart implements the generate_chart tool.
package chart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	charts "github.com/finsight/fpagent/chart"
	"github.com/finsight/fpagent/llm"
	"github.com/finsight/fpagent/tools"
)

// ToolGenerateChart is the tool name.
const ToolGenerateChart = "generate_chart"

// Executor renders charts and stores them for serving. With no storage
// configured it returns the raw chart service URL instead.
type Executor struct {
	renderer *charts.Renderer
	storage  charts.Storage
	baseURL  string
	logger   *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithStorage enables stored charts served from baseURL/charts/{id}.
func WithStorage(storage charts.Storage, baseURL string) Option {
	return func(e *Executor) {
		e.storage = storage
		e.baseURL = baseURL
	}
}

// WithLogger sets the executor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithRenderer overrides the renderer, for tests.
func WithRenderer(r *charts.Renderer) Option {
	return func(e *Executor) { e.renderer = r }
}

// NewExecutor creates a chart executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		renderer: charts.NewRenderer(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type chartInput struct {
	ChartType    string        `json:"chart_type"`
	Title        string        `json:"title"`
	Labels       []string      `json:"labels"`
	Values       []float64     `json:"values"`
	BudgetValues []float64     `json:"budget_values"`
	ActualValues []float64     `json:"actual_values"`
	Format       charts.Format `json:"format"`
}

type chartOutput struct {
	ChartURL string `json:"chart_url"`
	Title    string `json:"title"`
	Hint     string `json:"hint"`
}

// Execute runs one generate_chart call.
func (e *Executor) Execute(ctx context.Context, call llm.ToolCall) (tools.ToolResult, error) {
	if call.Name != ToolGenerateChart {
		return tools.ToolResult{}, fmt.Errorf("unknown tool: %s", call.Name)
	}

	var input chartInput
	if err := json.Unmarshal(call.Input, &input); err != nil {
		return tools.ErrorResult(call.ID, fmt.Sprintf("invalid input: %v", err)), nil
	}

	configURL, err := e.buildConfigURL(input)
	if err != nil {
		return tools.ErrorResult(call.ID, err.Error()), nil
	}

	servingURL := e.storeRendered(ctx, configURL)
	return tools.JSONResult(call.ID, chartOutput{
		ChartURL: servingURL,
		Title:    input.Title,
		Hint:     "Include this URL in your response; it renders as an inline image.",
	}), nil
}

func (e *Executor) buildConfigURL(input chartInput) (string, error) {
	switch input.ChartType {
	case "bar":
		return charts.BarChart(input.Title, input.Labels, input.Values)
	case "line":
		return charts.LineChart(input.Title, input.Labels, input.Values)
	case "comparison":
		return charts.ComparisonChart(input.Title, input.Labels, input.BudgetValues, input.ActualValues)
	default:
		return "", fmt.Errorf("unknown chart_type %q: use bar, line, or comparison", input.ChartType)
	}
}

// storeRendered fetches the rendered image and stores it under a fresh
// ID. Any failure falls back to the raw chart service URL so a chart
// still reaches the user.
func (e *Executor) storeRendered(ctx context.Context, configURL string) string {
	if e.storage == nil {
		return configURL
	}

	image, err := e.renderer.Render(ctx, configURL)
	if err != nil {
		e.logger.Warn("chart render failed, falling back to service URL", "error", err)
		return configURL
	}

	id := uuid.New().String()
	if err := e.storage.Store(ctx, id, image); err != nil {
		e.logger.Warn("chart store failed, falling back to service URL", "error", err)
		return configURL
	}

	return fmt.Sprintf("%s/charts/%s", e.baseURL, id)
}

// ListTools returns the chart tool definition.
func (e *Executor) ListTools() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name: ToolGenerateChart,
			Description: `Generates a chart image URL that renders inline. USE THIS with every response that has time-series data.

Chart types:
- "bar": Vertical bar chart (default) - good for comparing periods
- "line": Line chart - good for trends over time
- "comparison": Side-by-side bars for budget vs actual

Format:
- "currency": Dollar formatting ($1.2M, $500K) - DEFAULT for revenue, costs, profits
- "percent": Percentage formatting (74.5%) - USE THIS for margins, ratios, percentages

Include the returned URL in your response.`,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"chart_type": {"type": "string", "enum": ["bar", "line", "comparison"], "description": "Type of chart to generate"},
					"title": {"type": "string", "description": "Chart title (e.g. \"2025 Hosting Costs by Month\")"},
					"labels": {"type": "array", "items": {"type": "string"}, "description": "X-axis labels (e.g. [\"Jan\", \"Feb\", \"Mar\"] or [\"Q1\", \"Q2\", \"Q3\", \"Q4\"])"},
					"values": {"type": "array", "items": {"type": "number"}, "description": "Data values for bar/line charts"},
					"budget_values": {"type": "array", "items": {"type": "number"}, "description": "Budget values (for comparison charts only)"},
					"actual_values": {"type": "array", "items": {"type": "number"}, "description": "Actual values (for comparison charts only)"},
					"format": {"type": "string", "enum": ["currency", "percent"], "description": "Value format: currency for dollars (default), percent for margins"}
				},
				"required": ["chart_type", "title", "labels"]
			}`),
		},
	}
}
