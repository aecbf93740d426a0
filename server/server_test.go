package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	charts "github.com/finsight/fpagent/chart"
)

type fakeChartStorage struct {
	data map[string][]byte
	err  error
}

func (f *fakeChartStorage) Store(ctx context.Context, id string, data []byte) error {
	f.data[id] = data
	return nil
}

func (f *fakeChartStorage) Get(ctx context.Context, id string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.data[id]
	if !ok {
		return nil, charts.ErrNotFound
	}
	return data, nil
}

func testServer(opts ...Option) *Server {
	opts = append(opts, WithLogger(slog.New(slog.DiscardHandler)))
	return New("127.0.0.1:0", opts...)
}

func TestHealth(t *testing.T) {
	refreshed := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	srv := testServer(
		WithComponent("model", func(context.Context) string { return "ok" }),
		WithComponent("metrics_store", func(context.Context) string { return "disabled" }),
		WithLastRefresh(func(context.Context) (time.Time, error) { return refreshed, nil }),
	)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Components["model"])
	assert.Equal(t, "disabled", resp.Components["metrics_store"])
	assert.Equal(t, "2026-02-03T04:05:06Z", resp.LastMetricsRefresh)
}

func TestHealthWithoutRefresh(t *testing.T) {
	srv := testServer()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.LastMetricsRefresh)
}

func TestChartServing(t *testing.T) {
	storage := &fakeChartStorage{data: map[string][]byte{"abc": []byte("png-bytes")}}
	srv := testServer(WithChartStorage(storage))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/abc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, []byte("png-bytes"), body)
}

func TestChartNotFound(t *testing.T) {
	storage := &fakeChartStorage{data: map[string][]byte{}}
	srv := testServer(WithChartStorage(storage))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChartStorageError(t *testing.T) {
	storage := &fakeChartStorage{err: errors.New("nats down")}
	srv := testServer(WithChartStorage(storage))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/abc", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestChartWithoutStorage(t *testing.T) {
	srv := testServer()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/abc", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.Record(OutcomeAnswer)
	m.Record(OutcomeAnswer)
	m.Record(OutcomeTooLong)

	srv := testServer(WithRegistry(reg))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `fpagent_questions_total{outcome="answer"} 2`)
	assert.Contains(t, body, `fpagent_questions_total{outcome="too_long"} 1`)
}
