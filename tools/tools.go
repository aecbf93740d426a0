// Package tools dispatches model tool calls to their executors. Dispatch
// never returns a Go error to the agent loop: every failure becomes an
// error payload the model can read and react to.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/finsight/fpagent/llm"
)

// ToolResult is the outcome of one tool call. Content is the JSON
// payload returned to the model; IsError marks payloads describing a
// failure.
type ToolResult struct {
	CallID  string
	Content string
	IsError bool
}

// Executor implements one or more tools.
type Executor interface {
	// ListTools returns the definitions of the tools this executor
	// handles.
	ListTools() []llm.ToolDefinition

	// Execute runs one tool call. A returned error is converted into an
	// error payload by the registry.
	Execute(ctx context.Context, call llm.ToolCall) (ToolResult, error)
}

// errorPayload is the shape of every error result.
type errorPayload struct {
	Error          string   `json:"error"`
	IsError        bool     `json:"is_error"`
	ToolName       string   `json:"tool_name,omitempty"`
	AvailableTools []string `json:"available_tools,omitempty"`
}

func errorResult(callID string, payload errorPayload) ToolResult {
	payload.IsError = true
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`{"error":"internal error","is_error":true}`)
	}
	return ToolResult{CallID: callID, Content: string(data), IsError: true}
}

// ErrorResult builds an error ToolResult with the given message.
func ErrorResult(callID, message string) ToolResult {
	return errorResult(callID, errorPayload{Error: message})
}

// JSONResult marshals a success payload into a ToolResult. Marshal
// failures come back as error results so the model still gets an answer.
func JSONResult(callID string, payload any) ToolResult {
	data, err := json.Marshal(payload)
	if err != nil {
		return ErrorResult(callID, fmt.Sprintf("encode result: %v", err))
	}
	return ToolResult{CallID: callID, Content: string(data)}
}

// Registry routes tool calls by name.
type Registry struct {
	executors map[string]Executor
	names     []string
	logger    *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		executors: make(map[string]Executor),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds an executor's tools. Later registrations win on name
// collision.
func (r *Registry) Register(exec Executor) {
	for _, def := range exec.ListTools() {
		if _, exists := r.executors[def.Name]; !exists {
			r.names = append(r.names, def.Name)
		}
		r.executors[def.Name] = exec
	}
	sort.Strings(r.names)
}

// Definitions returns every registered tool definition, sorted by name.
func (r *Registry) Definitions() []llm.ToolDefinition {
	var defs []llm.ToolDefinition
	for _, name := range r.names {
		for _, def := range r.executors[name].ListTools() {
			if def.Name == name {
				defs = append(defs, def)
			}
		}
	}
	return defs
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Dispatch executes one tool call. Unknown tools, executor errors and
// executor panics all come back as error payloads, never as Go errors.
func (r *Registry) Dispatch(ctx context.Context, call llm.ToolCall) (result ToolResult) {
	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", "tool", call.Name, "panic", rec)
			result = errorResult(call.ID, errorPayload{
				Error:    fmt.Sprintf("tool execution failed: %v", rec),
				ToolName: call.Name,
			})
		}
		r.logger.Debug("tool call complete",
			"tool", call.Name,
			"is_error", result.IsError,
			"duration", time.Since(started))
	}()

	exec, ok := r.executors[call.Name]
	if !ok {
		return errorResult(call.ID, errorPayload{
			Error:          fmt.Sprintf("unknown tool: %s", call.Name),
			AvailableTools: r.Names(),
		})
	}

	res, err := exec.Execute(ctx, call)
	if err != nil {
		return errorResult(call.ID, errorPayload{
			Error:    fmt.Sprintf("tool execution failed: %v", err),
			ToolName: call.Name,
		})
	}
	if res.CallID == "" {
		res.CallID = call.ID
	}
	return res
}
