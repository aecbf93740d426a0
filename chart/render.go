package chart

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Renderer fetches rendered chart images from the chart service.
type Renderer struct {
	httpClient *http.Client
}

// NewRenderer creates a renderer with a bounded request timeout.
func NewRenderer() *Renderer {
	return &Renderer{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient overrides the HTTP client, for tests.
func (r *Renderer) WithHTTPClient(c *http.Client) *Renderer {
	r.httpClient = c
	return r
}

// Render fetches the image a chart URL resolves to.
func (r *Renderer) Render(ctx context.Context, chartURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chartURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create render request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch chart: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart service returned status %d", resp.StatusCode)
	}

	image, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("read chart image: %w", err)
	}
	return image, nil
}
