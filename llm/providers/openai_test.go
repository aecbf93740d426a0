package providers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIBuildURL(t *testing.T) {
	p := &OpenAIProvider{}
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", p.BuildURL(""))
	assert.Equal(t, "https://openrouter.ai/api/v1/chat/completions", p.BuildURL("https://openrouter.ai/api/v1"))
}

func TestOpenAISetHeaders(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENROUTER_SITE_URL", "https://example.com")

	req, err := http.NewRequest(http.MethodPost, "https://example.com", nil)
	require.NoError(t, err)

	p := &OpenAIProvider{}
	p.SetHeaders(req)
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
	assert.Equal(t, "https://example.com", req.Header.Get("HTTP-Referer"))
}
