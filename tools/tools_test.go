package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/fpagent/llm"
)

type stubExecutor struct {
	defs    []llm.ToolDefinition
	result  ToolResult
	err     error
	panics  bool
	lastCtx context.Context
}

func (s *stubExecutor) ListTools() []llm.ToolDefinition { return s.defs }

func (s *stubExecutor) Execute(ctx context.Context, call llm.ToolCall) (ToolResult, error) {
	s.lastCtx = ctx
	if s.panics {
		panic("executor exploded")
	}
	return s.result, s.err
}

func def(name string) llm.ToolDefinition {
	return llm.ToolDefinition{Name: name, InputSchema: json.RawMessage(`{"type":"object"}`)}
}

func newTestRegistry() *Registry {
	return NewRegistry(WithLogger(slog.New(slog.DiscardHandler)))
}

func TestRegistryDispatch(t *testing.T) {
	reg := newTestRegistry()
	exec := &stubExecutor{
		defs:   []llm.ToolDefinition{def("lookup")},
		result: ToolResult{Content: `{"ok":true}`},
	}
	reg.Register(exec)

	result := reg.Dispatch(context.Background(), llm.ToolCall{ID: "c1", Name: "lookup"})
	assert.False(t, result.IsError)
	assert.Equal(t, "c1", result.CallID)
	assert.JSONEq(t, `{"ok":true}`, result.Content)
}

func TestRegistryUnknownTool(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&stubExecutor{defs: []llm.ToolDefinition{def("alpha"), def("beta")}})

	result := reg.Dispatch(context.Background(), llm.ToolCall{ID: "c1", Name: "gamma"})
	require.True(t, result.IsError)

	var payload struct {
		Error          string   `json:"error"`
		IsError        bool     `json:"is_error"`
		AvailableTools []string `json:"available_tools"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Content), &payload))
	assert.True(t, payload.IsError)
	assert.Contains(t, payload.Error, "unknown tool: gamma")
	assert.Equal(t, []string{"alpha", "beta"}, payload.AvailableTools)
}

func TestRegistryExecutorError(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&stubExecutor{
		defs: []llm.ToolDefinition{def("flaky")},
		err:  fmt.Errorf("backend down"),
	})

	result := reg.Dispatch(context.Background(), llm.ToolCall{ID: "c1", Name: "flaky"})
	require.True(t, result.IsError)
	assert.Contains(t, result.Content, "backend down")
	assert.Contains(t, result.Content, `"tool_name":"flaky"`)
}

func TestRegistryPanicRecovery(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&stubExecutor{
		defs:   []llm.ToolDefinition{def("volatile")},
		panics: true,
	})

	result := reg.Dispatch(context.Background(), llm.ToolCall{ID: "c1", Name: "volatile"})
	require.True(t, result.IsError)
	assert.Contains(t, result.Content, "executor exploded")
	assert.Equal(t, "c1", result.CallID)
}

func TestRegistryDefinitionsSorted(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&stubExecutor{defs: []llm.ToolDefinition{def("zeta"), def("alpha")}})
	reg.Register(&stubExecutor{defs: []llm.ToolDefinition{def("mid")}})

	defs := reg.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "mid", defs[1].Name)
	assert.Equal(t, "zeta", defs[2].Name)
}

func TestJSONResult(t *testing.T) {
	result := JSONResult("c1", map[string]int{"rows": 3})
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"rows":3}`, result.Content)

	bad := JSONResult("c1", func() {})
	assert.True(t, bad.IsError)
}
