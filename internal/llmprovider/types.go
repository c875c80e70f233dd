// Package llmprovider abstracts the LLM backend consumed by the context
// store, tool executor, and plan engine: one implementation speaks the
// Anthropic Messages API natively, the other speaks an OpenAI-compatible
// chat-completions endpoint with a ReAct textual fallback for tool use.
package llmprovider

import "context"

// Role is the speaker of a message passed to the provider.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// BlockType tags a ContentBlock's shape, mirroring Anthropic's
// tool_use/tool_result content-block protocol.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one piece of a message's content. Plain-text messages
// carry a single BlockText block; the tool-use loop appends BlockToolUse
// (assistant) and BlockToolResult (user) blocks across turns.
type ContentBlock struct {
	Type       BlockType
	Text       string
	ToolUseID  string
	ToolName   string
	ToolInput  map[string]any
	ToolResult string
	IsError    bool
}

// Message is one turn in a completion request.
type Message struct {
	Role   Role
	Blocks []ContentBlock
}

// TextMessage builds a single-block plain-text message.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Blocks: []ContentBlock{{Type: BlockText, Text: text}}}
}

// ToolSchema describes one tool available to the model.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// ToolCall is a tool invocation the model asked for.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Response is the result of a completion request.
type Response struct {
	Text         string
	ToolCalls    []ToolCall
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// CompletionRequest is the input to Complete/Stream.
type CompletionRequest struct {
	Messages    []Message
	System      string
	Tools       []ToolSchema
	Temperature *float64
	MaxTokens   int
}

// StreamChunk is one piece of streamed text.
type StreamChunk struct {
	Text string
	Done bool
}

// Provider is the LLM backend interface consumed by C3 (tokenizing,
// summarizing), C9 (reasoning loop), and C10 (plan step narration).
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (Response, error)
	Stream(ctx context.Context, req CompletionRequest, onChunk func(StreamChunk)) error
	CountTokens(text string) int
	Close() error
}
