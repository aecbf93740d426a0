package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/fpagent/conversation"
	"github.com/finsight/fpagent/llm"
	"github.com/finsight/fpagent/llm/testutil"
	"github.com/finsight/fpagent/tools"
)

type echoExecutor struct{}

func (echoExecutor) ListTools() []llm.ToolDefinition {
	return []llm.ToolDefinition{{
		Name:        "lookup",
		Description: "Looks up a value.",
		InputSchema: json.RawMessage(`{"type":"object"}`),
	}}
}

func (echoExecutor) Execute(_ context.Context, call llm.ToolCall) (tools.ToolResult, error) {
	return tools.JSONResult(call.ID, map[string]string{"value": "42"}), nil
}

func testAnalyst(t *testing.T, client Completer, opts ...Option) (*Analyst, *conversation.MemoryStore) {
	t.Helper()
	registry := tools.NewRegistry(tools.WithLogger(slog.New(slog.DiscardHandler)))
	registry.Register(echoExecutor{})
	store := conversation.NewMemoryStore(conversation.DefaultTTL)
	t.Cleanup(store.Close)
	opts = append(opts, WithLogger(slog.New(slog.DiscardHandler)))
	return NewAnalyst(client, registry, store, opts...), store
}

func TestAnswerDirectResponse(t *testing.T) {
	mock := &testutil.MockClient{Responses: []*llm.Response{
		testutil.TextResponse("Net revenue was $88.4M."),
	}}
	analyst, store := testAnalyst(t, mock)

	result, err := analyst.Answer(context.Background(), "thread-1", "What was net revenue?")

	require.NoError(t, err)
	assert.Equal(t, "Net revenue was $88.4M.", result.Text)
	assert.Equal(t, 1, result.Iterations)
	assert.Empty(t, result.ToolsUsed)

	req := mock.Requests()[0]
	assert.Equal(t, SystemPrompt, req.System)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "What was net revenue?", req.Messages[0].Text())
	require.Len(t, req.Tools, 1)

	saved, err := store.Get(context.Background(), "thread-1")
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, llm.RoleAssistant, saved[1].Role)
	assert.Equal(t, "Net revenue was $88.4M.", saved[1].Text())
}

func TestAnswerToolUseLoop(t *testing.T) {
	call := llm.ToolCall{ID: "tc-1", Name: "lookup", Input: json.RawMessage(`{"key":"revenue"}`)}
	mock := &testutil.MockClient{Responses: []*llm.Response{
		testutil.ToolCallResponse(call),
		testutil.TextResponse("Done."),
	}}
	analyst, store := testAnalyst(t, mock)

	result, err := analyst.Answer(context.Background(), "thread-2", "Look it up")

	require.NoError(t, err)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, []string{`lookup({"key":"revenue"})`}, result.ToolsUsed)

	// The second request carries the tool exchange.
	second := mock.Requests()[1]
	require.Len(t, second.Messages, 3)
	assert.Equal(t, llm.RoleAssistant, second.Messages[1].Role)
	assert.Equal(t, llm.BlockToolUse, second.Messages[1].Content[0].Type)
	assert.Equal(t, llm.RoleUser, second.Messages[2].Role)
	block := second.Messages[2].Content[0]
	assert.Equal(t, llm.BlockToolResult, block.Type)
	assert.Equal(t, "tc-1", block.ToolUseID)
	assert.JSONEq(t, `{"value":"42"}`, block.Content)
	assert.False(t, block.IsError)

	// The whole exchange is persisted, tool turns included, and the
	// final answer carries a note recording what was queried.
	saved, err := store.Get(context.Background(), "thread-2")
	require.NoError(t, err)
	require.Len(t, saved, 4)
	assert.Equal(t, llm.BlockToolUse, saved[1].Content[0].Type)
	assert.Equal(t, llm.BlockToolResult, saved[2].Content[0].Type)
	assert.Contains(t, saved[3].Text(), "Done.")
	assert.Contains(t, saved[3].Text(), `[Context: This analysis used these queries: lookup({"key":"revenue"})]`)
}

func TestAnswerPersistsTurnOrder(t *testing.T) {
	first := llm.ToolCall{ID: "tc-1", Name: "lookup", Input: json.RawMessage(`{"key":"q1"}`)}
	second := llm.ToolCall{ID: "tc-2", Name: "lookup", Input: json.RawMessage(`{"key":"q2"}`)}
	mock := &testutil.MockClient{Responses: []*llm.Response{
		testutil.ToolCallResponse(first),
		testutil.ToolCallResponse(second),
		testutil.TextResponse("Final answer."),
	}}
	analyst, store := testAnalyst(t, mock)

	_, err := analyst.Answer(context.Background(), "thread-7", "Two lookups please")
	require.NoError(t, err)

	saved, err := store.Get(context.Background(), "thread-7")
	require.NoError(t, err)
	require.Len(t, saved, 6)

	wantRoles := []string{
		llm.RoleUser, llm.RoleAssistant, llm.RoleUser,
		llm.RoleAssistant, llm.RoleUser, llm.RoleAssistant,
	}
	wantTypes := []string{
		llm.BlockText, llm.BlockToolUse, llm.BlockToolResult,
		llm.BlockToolUse, llm.BlockToolResult, llm.BlockText,
	}
	for i, turn := range saved {
		assert.Equal(t, wantRoles[i], turn.Role, "turn %d role", i)
		require.NotEmpty(t, turn.Content, "turn %d content", i)
		assert.Equal(t, wantTypes[i], turn.Content[0].Type, "turn %d block", i)
	}
	assert.Equal(t, "tc-1", saved[2].Content[0].ToolUseID)
	assert.Equal(t, "tc-2", saved[4].Content[0].ToolUseID)
	assert.Contains(t, saved[5].Text(), "Final answer.")
}

func TestAnswerHistoryPrepended(t *testing.T) {
	mock := &testutil.MockClient{Responses: []*llm.Response{
		testutil.TextResponse("Follow-up answer."),
	}}
	analyst, store := testAnalyst(t, mock)

	history := []llm.Message{
		llm.TextMessage(llm.RoleUser, "first question"),
		llm.TextMessage(llm.RoleAssistant, "first answer"),
	}
	require.NoError(t, store.Save(context.Background(), "thread-3", history))

	_, err := analyst.Answer(context.Background(), "thread-3", "and then?")
	require.NoError(t, err)

	req := mock.Requests()[0]
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "first question", req.Messages[0].Text())
	assert.Equal(t, "and then?", req.Messages[2].Text())

	saved, err := store.Get(context.Background(), "thread-3")
	require.NoError(t, err)
	assert.Len(t, saved, 4)
}

func TestAnswerIterationCap(t *testing.T) {
	call := llm.ToolCall{ID: "tc-1", Name: "lookup", Input: json.RawMessage(`{}`)}
	mock := &testutil.MockClient{Responses: []*llm.Response{
		testutil.ToolCallResponse(call),
		testutil.ToolCallResponse(call),
	}}
	analyst, _ := testAnalyst(t, mock, WithMaxIterations(2))

	_, err := analyst.Answer(context.Background(), "thread-4", "loop forever")

	require.ErrorIs(t, err, ErrTooManyIterations)
	assert.Equal(t, 2, mock.CallCount())
}

func TestAnswerEmptyResponse(t *testing.T) {
	mock := &testutil.MockClient{}
	analyst, _ := testAnalyst(t, mock)

	_, err := analyst.Answer(context.Background(), "thread-5", "anything")

	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnswerModelError(t *testing.T) {
	mock := &testutil.MockClient{Err: errors.New("boom")}
	analyst, _ := testAnalyst(t, mock)

	_, err := analyst.Answer(context.Background(), "thread-6", "anything")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "model call")
}

func TestUserMessage(t *testing.T) {
	apiErr := func(status int) error {
		return fmt.Errorf("model call: %w",
			llm.NewFatalError(&llm.APIError{StatusCode: status, Body: "nope"}))
	}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"iteration cap", ErrTooManyIterations, "took too long"},
		{"empty response", ErrEmptyResponse, "rephrasing"},
		{"auth", apiErr(401), "Authentication error"},
		{"rate limit", apiErr(429), "currently busy"},
		{"overloaded", apiErr(529), "temporarily overloaded"},
		{"generic", errors.New("boom"), "encountered an error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, UserMessage(tt.err), tt.want)
		})
	}
}
