package chart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	charts "github.com/finsight/fpagent/chart"
	"github.com/finsight/fpagent/llm"
)

type memStorage struct {
	images map[string][]byte
	fail   bool
}

func (m *memStorage) Store(ctx context.Context, id string, image []byte) error {
	if m.fail {
		return fmt.Errorf("storage unavailable")
	}
	if m.images == nil {
		m.images = map[string][]byte{}
	}
	m.images[id] = image
	return nil
}

func (m *memStorage) Get(ctx context.Context, id string) ([]byte, error) {
	image, ok := m.images[id]
	if !ok {
		return nil, charts.ErrNotFound
	}
	return image, nil
}

func discard() Option {
	return WithLogger(slog.New(slog.DiscardHandler))
}

func call(input string) llm.ToolCall {
	return llm.ToolCall{ID: "c1", Name: ToolGenerateChart, Input: json.RawMessage(input)}
}

func TestGenerateChartWithoutStorage(t *testing.T) {
	exec := NewExecutor(discard())
	result, err := exec.Execute(context.Background(), call(
		`{"chart_type":"bar","title":"Costs","labels":["Jan","Feb"],"values":[100,200]}`))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out chartOutput
	require.NoError(t, json.Unmarshal([]byte(result.Content), &out))
	assert.True(t, strings.HasPrefix(out.ChartURL, "https://quickchart.io/chart?"), out.ChartURL)
	assert.Equal(t, "Costs", out.Title)

	parsed, err := url.Parse(out.ChartURL)
	require.NoError(t, err)
	assert.NotEmpty(t, parsed.Query().Get("c"))
}

func TestGenerateChartStoresRenderedImage(t *testing.T) {
	// Stands in for the chart service; the executor fetches whatever URL
	// the builder produced, so point the renderer's client at it via a
	// RoundTripper that redirects all requests.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	storage := &memStorage{}
	renderer := charts.NewRenderer().WithHTTPClient(&http.Client{
		Transport: rewriteTransport{target: server.URL},
	})
	exec := NewExecutor(discard(), WithRenderer(renderer), WithStorage(storage, "http://bot.example.com"))

	result, err := exec.Execute(context.Background(), call(
		`{"chart_type":"line","title":"Trend","labels":["Q1"],"values":[5]}`))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out chartOutput
	require.NoError(t, json.Unmarshal([]byte(result.Content), &out))
	require.True(t, strings.HasPrefix(out.ChartURL, "http://bot.example.com/charts/"), out.ChartURL)

	id := strings.TrimPrefix(out.ChartURL, "http://bot.example.com/charts/")
	stored, err := storage.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), stored)
}

func TestGenerateChartStorageFailureFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	renderer := charts.NewRenderer().WithHTTPClient(&http.Client{
		Transport: rewriteTransport{target: server.URL},
	})
	exec := NewExecutor(discard(), WithRenderer(renderer), WithStorage(&memStorage{fail: true}, "http://bot.example.com"))

	result, err := exec.Execute(context.Background(), call(
		`{"chart_type":"bar","title":"Costs","labels":["Jan"],"values":[1]}`))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out chartOutput
	require.NoError(t, json.Unmarshal([]byte(result.Content), &out))
	assert.True(t, strings.HasPrefix(out.ChartURL, "https://quickchart.io/chart?"), out.ChartURL)
}

func TestGenerateChartComparison(t *testing.T) {
	exec := NewExecutor(discard())
	result, err := exec.Execute(context.Background(), call(
		`{"chart_type":"comparison","title":"BvA","labels":["Q1"],"budget_values":[100],"actual_values":[120]}`))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestGenerateChartUnknownType(t *testing.T) {
	exec := NewExecutor(discard())
	result, err := exec.Execute(context.Background(), call(
		`{"chart_type":"pie","title":"x","labels":["a"],"values":[1]}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "unknown chart_type")
}

func TestGenerateChartMismatchedLengths(t *testing.T) {
	exec := NewExecutor(discard())
	result, err := exec.Execute(context.Background(), call(
		`{"chart_type":"bar","title":"x","labels":["a","b"],"values":[1]}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// rewriteTransport sends every request to the test server regardless of
// the request URL.
type rewriteTransport struct {
	target string
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	target, err := url.Parse(rt.target)
	if err != nil {
		return nil, err
	}
	req = req.Clone(req.Context())
	req.URL.Scheme = target.Scheme
	req.URL.Host = target.Host
	return http.DefaultTransport.RoundTrip(req)
}
