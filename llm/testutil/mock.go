// Package testutil provides mock implementations for testing model
// client interactions.
package testutil

import (
	"context"
	"sync"

	"github.com/finsight/fpagent/llm"
)

// MockClient is a thread-safe scripted model client. Each Complete call
// returns the next configured response; Err, when set, takes precedence.
type MockClient struct {
	mu            sync.Mutex
	Responses     []*llm.Response
	Err           error
	requests      []llm.Request
	responseIndex int
}

// Complete returns the next scripted response and records the request.
func (m *MockClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.Err != nil {
		return nil, m.Err
	}

	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}

	return &llm.Response{
		Content:    []llm.ContentBlock{{Type: llm.BlockText, Text: ""}},
		StopReason: llm.StopEndTurn,
		Model:      "test-model",
	}, nil
}

// Requests returns a copy of every request seen so far.
func (m *MockClient) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// CallCount returns the number of Complete calls.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// TextResponse builds a plain-text end_turn response.
func TextResponse(text string) *llm.Response {
	return &llm.Response{
		Content:    []llm.ContentBlock{{Type: llm.BlockText, Text: text}},
		StopReason: llm.StopEndTurn,
		Model:      "test-model",
	}
}

// ToolCallResponse builds a tool_use response requesting the named tools.
func ToolCallResponse(calls ...llm.ToolCall) *llm.Response {
	resp := &llm.Response{
		ToolCalls:  calls,
		StopReason: llm.StopToolUse,
		Model:      "test-model",
	}
	for _, call := range calls {
		resp.Content = append(resp.Content, call.ToolUseBlock())
	}
	return resp
}
