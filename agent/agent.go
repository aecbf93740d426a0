// Package agent runs the tool-use loop that turns a user question into
// a final analysis, keeping per-conversation history across turns.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/finsight/fpagent/conversation"
	"github.com/finsight/fpagent/llm"
	"github.com/finsight/fpagent/tools"
)

// DefaultMaxIterations caps the tool-use loop so a confused model cannot
// spin forever.
const DefaultMaxIterations = 15

const defaultMaxTokens = 4096

var (
	// ErrTooManyIterations means the loop hit its iteration cap before
	// the model produced a final answer.
	ErrTooManyIterations = errors.New("analysis exceeded the tool iteration limit")

	// ErrEmptyResponse means the model stopped without any text content.
	ErrEmptyResponse = errors.New("model returned no text content")
)

// Completer is the model boundary the loop drives.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Analyst answers financial questions by looping the model over the
// registered tools.
type Analyst struct {
	client        Completer
	registry      *tools.Registry
	store         conversation.Store
	logger        *slog.Logger
	maxIterations int
	maxTokens     int
	temperature   *float64
}

// Option configures an Analyst.
type Option func(*Analyst)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyst) { a.logger = logger }
}

// WithMaxIterations overrides the tool-use loop cap.
func WithMaxIterations(n int) Option {
	return func(a *Analyst) { a.maxIterations = n }
}

// WithMaxTokens overrides the per-request completion budget.
func WithMaxTokens(n int) Option {
	return func(a *Analyst) { a.maxTokens = n }
}

// WithTemperature sets the sampling temperature on every request.
func WithTemperature(t float64) Option {
	return func(a *Analyst) { a.temperature = &t }
}

// NewAnalyst wires the loop to a model client, a tool registry and a
// conversation store.
func NewAnalyst(client Completer, registry *tools.Registry, store conversation.Store, opts ...Option) *Analyst {
	a := &Analyst{
		client:        client,
		registry:      registry,
		store:         store,
		logger:        slog.Default(),
		maxIterations: DefaultMaxIterations,
		maxTokens:     defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Result is one completed analysis.
type Result struct {
	// Text is the final answer.
	Text string

	// Iterations counts model round trips, including the final one.
	Iterations int

	// ToolsUsed lists the tool invocations made along the way, as
	// "name(input)" strings.
	ToolsUsed []string
}

// Answer runs the tool-use loop for one question. History stored under
// conversationKey is prepended, and the finished exchange is saved back
// so follow-up questions see it.
func (a *Analyst) Answer(ctx context.Context, conversationKey, question string) (*Result, error) {
	history, err := a.store.Get(ctx, conversationKey)
	if err != nil && !errors.Is(err, conversation.ErrNotFound) {
		// A broken store should not block the answer.
		a.logger.Warn("loading conversation failed, starting fresh",
			"conversation", conversationKey, "error", err)
		history = nil
	}
	a.logger.Info("answering question",
		"conversation", conversationKey,
		"history_turns", len(history))

	messages := append(append([]llm.Message(nil), history...),
		llm.TextMessage(llm.RoleUser, question))

	var toolsUsed []string
	for iteration := 1; iteration <= a.maxIterations; iteration++ {
		resp, err := a.client.Complete(ctx, llm.Request{
			System:      SystemPrompt,
			Messages:    messages,
			Tools:       a.registry.Definitions(),
			MaxTokens:   a.maxTokens,
			Temperature: a.temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("model call: %w", err)
		}
		a.logger.Debug("model responded",
			"iteration", iteration,
			"stop_reason", resp.StopReason,
			"tool_calls", len(resp.ToolCalls))

		if resp.StopReason == llm.StopToolUse {
			results := make([]llm.ContentBlock, 0, len(resp.ToolCalls))
			for _, call := range resp.ToolCalls {
				toolsUsed = append(toolsUsed, fmt.Sprintf("%s(%s)", call.Name, string(call.Input)))
				res := a.registry.Dispatch(ctx, call)
				results = append(results, llm.ToolResultBlock(res.CallID, res.Content, res.IsError))
			}

			// Echo the assistant turn verbatim, then answer every tool
			// call in a single user turn.
			messages = append(messages,
				llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
				llm.Message{Role: llm.RoleUser, Content: results})
			continue
		}

		text := resp.Text()
		if text == "" {
			return nil, ErrEmptyResponse
		}

		final := text
		if len(toolsUsed) > 0 {
			final += fmt.Sprintf("\n\n[Context: This analysis used these queries: %s]",
				strings.Join(toolsUsed, ", "))
		}
		a.saveExchange(ctx, conversationKey,
			append(messages, llm.TextMessage(llm.RoleAssistant, final)))
		return &Result{Text: text, Iterations: iteration, ToolsUsed: toolsUsed}, nil
	}

	a.logger.Error("iteration cap reached", "conversation", conversationKey, "cap", a.maxIterations)
	return nil, ErrTooManyIterations
}

// saveExchange persists the accumulated turn list, tool-request and
// tool-result turns included, so a follow-up question replays exactly
// the context the model saw. The store trims to its turn window.
func (a *Analyst) saveExchange(ctx context.Context, key string, turns []llm.Message) {
	if err := a.store.Save(ctx, key, turns); err != nil {
		a.logger.Warn("saving conversation failed", "conversation", key, "error", err)
	}
}

// UserMessage translates an Answer error into text safe to show the end
// user.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrTooManyIterations):
		return "The analysis took too long. Please try a simpler question or break it into parts."
	case errors.Is(err, ErrEmptyResponse):
		return "I was unable to generate a response. Please try rephrasing your question."
	}

	switch llm.StatusCode(err) {
	case 401, 403:
		return "Authentication error with the model service. Please contact the administrator."
	case 429:
		return "The model service is currently busy. Please try again in a few moments."
	case 529:
		return "The model service is temporarily overloaded. Please try again in a few minutes."
	}

	return "I encountered an error while analyzing your question. This could be due to:\n" +
		"• A temporary service issue\n" +
		"• An unusually complex query\n\n" +
		"Please try again, or rephrase your question."
}
