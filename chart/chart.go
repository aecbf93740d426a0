// Package chart builds QuickChart chart URLs and stores rendered chart
// images for serving over HTTP.
package chart

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
)

// quickchartBase is the QuickChart render endpoint.
const quickchartBase = "https://quickchart.io/chart"

// Default render dimensions.
const (
	chartWidth  = 600
	chartHeight = 300
)

// Brand palette.
const (
	colorPrimary = "#4A90A4"
	colorNeutral = "#9CA3AF"
)

// Format selects how axis and data labels render values.
type Format string

const (
	FormatCurrency Format = "currency"
	FormatPercent  Format = "percent"
)

// FormatValue renders a value compactly for labels: $1.2M / $500K for
// currency, 74.5% for percent.
func FormatValue(value float64, format Format) string {
	if format == FormatPercent {
		return fmt.Sprintf("%.1f%%", value)
	}
	abs := math.Abs(value)
	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("$%.1fM", value/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("$%.0fK", value/1_000)
	default:
		return fmt.Sprintf("$%.0f", value)
	}
}

type dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
	BorderColor     string    `json:"borderColor,omitempty"`
	Fill            bool      `json:"fill,omitempty"`
	Tension         float64   `json:"tension,omitempty"`
}

type chartConfig struct {
	Type string `json:"type"`
	Data struct {
		Labels   []string  `json:"labels"`
		Datasets []dataset `json:"datasets"`
	} `json:"data"`
	Options map[string]any `json:"options"`
}

func chartOptions(title string, showLegend bool) map[string]any {
	return map[string]any{
		"plugins": map[string]any{
			"title": map[string]any{
				"display": title != "",
				"text":    title,
				"font":    map[string]any{"size": 16},
			},
			"legend": map[string]any{"display": showLegend},
		},
		"scales": map[string]any{
			"y": map[string]any{"beginAtZero": true},
		},
	}
}

func buildURL(cfg chartConfig) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal chart config: %w", err)
	}
	return fmt.Sprintf("%s?w=%d&h=%d&c=%s", quickchartBase, chartWidth, chartHeight, url.QueryEscape(string(data))), nil
}

// BarChart builds a single-series vertical bar chart URL.
func BarChart(title string, labels []string, values []float64) (string, error) {
	if len(labels) != len(values) {
		return "", fmt.Errorf("labels (%d) and values (%d) must have equal length", len(labels), len(values))
	}
	cfg := chartConfig{Type: "bar", Options: chartOptions(title, false)}
	cfg.Data.Labels = labels
	cfg.Data.Datasets = []dataset{{
		Label:           labelOr(title),
		Data:            values,
		BackgroundColor: colorPrimary,
	}}
	return buildURL(cfg)
}

// LineChart builds a single-series line chart URL.
func LineChart(title string, labels []string, values []float64) (string, error) {
	if len(labels) != len(values) {
		return "", fmt.Errorf("labels (%d) and values (%d) must have equal length", len(labels), len(values))
	}
	cfg := chartConfig{Type: "line", Options: chartOptions(title, false)}
	cfg.Data.Labels = labels
	cfg.Data.Datasets = []dataset{{
		Label:       labelOr(title),
		Data:        values,
		BorderColor: colorPrimary,
		// translucent fill under the line
		BackgroundColor: colorPrimary + "33",
		Fill:            true,
		Tension:         0.1,
	}}
	return buildURL(cfg)
}

// ComparisonChart builds a side-by-side budget vs actual bar chart URL.
func ComparisonChart(title string, labels []string, budgetValues, actualValues []float64) (string, error) {
	if len(labels) != len(budgetValues) || len(labels) != len(actualValues) {
		return "", fmt.Errorf("labels (%d), budget (%d) and actual (%d) must have equal length",
			len(labels), len(budgetValues), len(actualValues))
	}
	cfg := chartConfig{Type: "bar", Options: chartOptions(title, true)}
	cfg.Data.Labels = labels
	cfg.Data.Datasets = []dataset{
		{Label: "Budget", Data: budgetValues, BackgroundColor: colorNeutral},
		{Label: "Actual", Data: actualValues, BackgroundColor: colorPrimary},
	}
	return buildURL(cfg)
}

func labelOr(title string) string {
	if title == "" {
		return "Value"
	}
	return title
}
