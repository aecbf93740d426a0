package llm

import "encoding/json"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn. Content carries zero or more typed
// blocks; plain-text turns have a single text block.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// Block types.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// ContentBlock is one typed segment of a message. Text blocks use Text;
// tool_use blocks use ID, Name and Input; tool_result blocks use
// ToolUseID, Content and IsError.
type ContentBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// TextMessage builds a single-block text message.
func TextMessage(role, text string) Message {
	return Message{
		Role:    role,
		Content: []ContentBlock{{Type: BlockText, Text: text}},
	}
}

// Text concatenates the message's text blocks.
func (m Message) Text() string {
	var out string
	for _, block := range m.Content {
		if block.Type == BlockText {
			out += block.Text
		}
	}
	return out
}

// ToolDefinition describes one tool offered to the model. InputSchema is
// a JSON Schema object.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolUseBlock converts a tool call back into the assistant content
// block that requested it, for echoing into the conversation history.
func (tc ToolCall) ToolUseBlock() ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: tc.ID, Name: tc.Name, Input: tc.Input}
}

// ToolResultBlock builds the user-side block answering a tool call.
func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{
		Type:      BlockToolResult,
		ToolUseID: toolUseID,
		Content:   content,
		IsError:   isError,
	}
}
