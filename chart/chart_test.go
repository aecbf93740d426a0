package chart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		format Format
		want   string
	}{
		{"millions", 1_234_567, FormatCurrency, "$1.2M"},
		{"thousands", 500_000, FormatCurrency, "$500K"},
		{"small", 123.4, FormatCurrency, "$123"},
		{"negative millions", -2_500_000, FormatCurrency, "$-2.5M"},
		{"percent", 74.52, FormatPercent, "74.5%"},
		{"zero percent", 0, FormatPercent, "0.0%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.value, tt.format))
		})
	}
}

func decodeConfig(t *testing.T, chartURL string) chartConfig {
	t.Helper()
	parsed, err := url.Parse(chartURL)
	require.NoError(t, err)
	raw := parsed.Query().Get("c")
	require.NotEmpty(t, raw)

	var cfg chartConfig
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	return cfg
}

func TestBarChart(t *testing.T) {
	u, err := BarChart("2025 Hosting Costs", []string{"Jan", "Feb"}, []float64{1200, 1500})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://quickchart.io/chart?w=600&h=300&c="))

	cfg := decodeConfig(t, u)
	assert.Equal(t, "bar", cfg.Type)
	assert.Equal(t, []string{"Jan", "Feb"}, cfg.Data.Labels)
	require.Len(t, cfg.Data.Datasets, 1)
	assert.Equal(t, []float64{1200, 1500}, cfg.Data.Datasets[0].Data)
	assert.Equal(t, colorPrimary, cfg.Data.Datasets[0].BackgroundColor)
}

func TestBarChartLengthMismatch(t *testing.T) {
	_, err := BarChart("t", []string{"Jan"}, []float64{1, 2})
	require.Error(t, err)
}

func TestLineChart(t *testing.T) {
	u, err := LineChart("Net Revenue", []string{"Q1", "Q2"}, []float64{100, 200})
	require.NoError(t, err)

	cfg := decodeConfig(t, u)
	assert.Equal(t, "line", cfg.Type)
	require.Len(t, cfg.Data.Datasets, 1)
	ds := cfg.Data.Datasets[0]
	assert.Equal(t, colorPrimary, ds.BorderColor)
	assert.True(t, ds.Fill)
}

func TestComparisonChart(t *testing.T) {
	u, err := ComparisonChart("Budget vs Actual", []string{"Q1"}, []float64{100}, []float64{120})
	require.NoError(t, err)

	cfg := decodeConfig(t, u)
	assert.Equal(t, "bar", cfg.Type)
	require.Len(t, cfg.Data.Datasets, 2)
	assert.Equal(t, "Budget", cfg.Data.Datasets[0].Label)
	assert.Equal(t, "Actual", cfg.Data.Datasets[1].Label)
	assert.Equal(t, colorNeutral, cfg.Data.Datasets[0].BackgroundColor)
}

func TestComparisonChartLengthMismatch(t *testing.T) {
	_, err := ComparisonChart("t", []string{"Q1", "Q2"}, []float64{1}, []float64{2, 3})
	require.Error(t, err)
}

func TestRendererRender(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	image, err := NewRenderer().Render(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), image)
}

func TestRendererRenderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewRenderer().Render(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
