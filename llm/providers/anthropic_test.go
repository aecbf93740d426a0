package providers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/fpagent/llm"
)

func TestAnthropicBuildURL(t *testing.T) {
	p := &AnthropicProvider{}
	assert.Equal(t, "https://api.anthropic.com/v1/messages", p.BuildURL(""))
	assert.Equal(t, "https://example.com/v1/messages", p.BuildURL("https://example.com"))
	assert.Equal(t, "https://example.com/v1/messages", p.BuildURL("https://example.com/"))
}

func TestAnthropicSetHeaders(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	req, err := http.NewRequest(http.MethodPost, "https://example.com", nil)
	require.NoError(t, err)

	p := &AnthropicProvider{}
	p.SetHeaders(req)
	assert.Equal(t, "test-key", req.Header.Get("x-api-key"))
	assert.Equal(t, anthropicVersion, req.Header.Get("anthropic-version"))
}

func TestAnthropicBuildRequestBody(t *testing.T) {
	p := &AnthropicProvider{}
	tools := []llm.ToolDefinition{{
		Name:        "query_financial_data",
		Description: "Query records",
		InputSchema: json.RawMessage(`{"type":"object"}`),
	}}
	messages := []llm.Message{
		llm.TextMessage(llm.RoleSystem, "Be precise."),
		llm.TextMessage(llm.RoleUser, "Hello"),
	}

	body, err := p.BuildRequestBody("test-model", "You are an analyst.", messages, tools, 0, nil)
	require.NoError(t, err)

	var req anthropicRequest
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, 4096, req.MaxTokens)
	// System-role turns fold into the system field.
	assert.Equal(t, "You are an analyst.\n\nBe precise.", req.System)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "query_financial_data", req.Tools[0].Name)
}

func TestAnthropicParseResponse(t *testing.T) {
	body := []byte(`{
		"id": "msg_01",
		"type": "message",
		"role": "assistant",
		"model": "test-model",
		"content": [
			{"type": "text", "text": "Checking hosting costs."},
			{"type": "tool_use", "id": "toolu_01", "name": "query_financial_data", "input": {"filters": {"Rollup": "Hosting"}}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 100, "output_tokens": 40}
	}`)

	p := &AnthropicProvider{}
	resp, err := p.ParseResponse(body)
	require.NoError(t, err)

	assert.Equal(t, "Checking hosting costs.", resp.Text())
	assert.Equal(t, llm.StopToolUse, resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "toolu_01", resp.ToolCalls[0].ID)
	assert.JSONEq(t, `{"filters":{"Rollup":"Hosting"}}`, string(resp.ToolCalls[0].Input))
	assert.Equal(t, 140, resp.Usage.TotalTokens)
}

func TestAnthropicParseResponseInvalidJSON(t *testing.T) {
	p := &AnthropicProvider{}
	_, err := p.ParseResponse([]byte("not json"))
	require.Error(t, err)
}
