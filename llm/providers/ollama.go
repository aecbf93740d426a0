package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/finsight/fpagent/llm"
)

// OllamaProvider implements the OpenAI-compatible chat API used by
// Ollama, vLLM and similar local servers, including function calling.
type OllamaProvider struct{}

func init() {
	llm.RegisterProvider(&OllamaProvider{})
}

// Name returns the provider identifier.
func (o *OllamaProvider) Name() string {
	return "ollama"
}

// BuildURL constructs the chat completions endpoint.
func (o *OllamaProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}

	return baseURL + "/chat/completions"
}

// SetHeaders adds OpenAI-compatible headers.
func (o *OllamaProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// BuildRequestBody creates the OpenAI-compatible request body. The
// block-structured history is flattened: tool_use blocks become
// assistant tool_calls and tool_result blocks become role "tool"
// messages.
func (o *OllamaProvider) BuildRequestBody(model string, system string, messages []llm.Message, tools []llm.ToolDefinition, maxTokens int, temperature *float64) ([]byte, error) {
	var apiMessages []openAIMessage
	if system != "" {
		apiMessages = append(apiMessages, openAIMessage{Role: llm.RoleSystem, Content: system})
	}

	for _, msg := range messages {
		apiMessages = append(apiMessages, flattenMessage(msg)...)
	}

	req := openAIRequest{
		Model:       model,
		Messages:    apiMessages,
		Temperature: temperature,
	}
	for _, tool := range tools {
		req.Tools = append(req.Tools, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}
	if maxTokens > 0 {
		req.MaxTokens = &maxTokens
	}

	return json.Marshal(req)
}

func flattenMessage(msg llm.Message) []openAIMessage {
	var out []openAIMessage
	flat := openAIMessage{Role: msg.Role}
	for _, block := range msg.Content {
		switch block.Type {
		case llm.BlockText:
			flat.Content += block.Text
		case llm.BlockToolUse:
			call := openAIToolCall{ID: block.ID, Type: "function"}
			call.Function.Name = block.Name
			call.Function.Arguments = string(block.Input)
			flat.ToolCalls = append(flat.ToolCalls, call)
		case llm.BlockToolResult:
			out = append(out, openAIMessage{
				Role:       "tool",
				Content:    block.Content,
				ToolCallID: block.ToolUseID,
			})
		}
	}
	if flat.Content != "" || len(flat.ToolCalls) > 0 {
		out = append([]openAIMessage{flat}, out...)
	}
	return out
}

type openAIResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role      string           `json:"role"`
			Content   string           `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ParseResponse extracts content and tool calls from an
// OpenAI-compatible response, normalizing the stop reason.
func (o *OllamaProvider) ParseResponse(body []byte) (*llm.Response, error) {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse openai response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	var content []llm.ContentBlock
	if choice.Message.Content != "" {
		content = append(content, llm.ContentBlock{Type: llm.BlockText, Text: choice.Message.Content})
	}

	var toolCalls []llm.ToolCall
	for _, call := range choice.Message.ToolCalls {
		tc := llm.ToolCall{
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: json.RawMessage(call.Function.Arguments),
		}
		toolCalls = append(toolCalls, tc)
		content = append(content, tc.ToolUseBlock())
	}

	stopReason := choice.FinishReason
	switch stopReason {
	case "tool_calls":
		stopReason = llm.StopToolUse
	case "stop":
		stopReason = llm.StopEndTurn
	case "length":
		stopReason = llm.StopMaxTokens
	}

	return &llm.Response{
		Content:    content,
		ToolCalls:  toolCalls,
		StopReason: stopReason,
		Model:      resp.Model,
		Usage: llm.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
