package driven

import (
	"context"
	"encoding/json"
)

// LLMService provides language model chat with tool invocation.
// This is an optional service - when nil, the chat surface is disabled and
// ingestion/search continue to work.
type LLMService interface {
	// Chat sends the conversation and returns the assistant's reply, which
	// is either text or a set of tool calls to satisfy first.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (*ChatResponse, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", "assistant", or "tool".
	Role string

	// Content is the message text. For tool messages it is the tool result.
	Content string

	// ToolCalls are the calls requested by an assistant message, if any.
	ToolCalls []ToolCall

	// ToolCallID links a tool message to the call it answers.
	ToolCallID string
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	// ID is the provider-assigned call identifier.
	ID string

	// Name is the tool being invoked.
	Name string

	// Arguments is the JSON-encoded argument object.
	Arguments json.RawMessage
}

// ToolDefinition describes a callable tool offered to the model.
type ToolDefinition struct {
	// Name is the tool identifier.
	Name string

	// Description tells the model when to use the tool.
	Description string

	// Parameters is a JSON Schema object describing the arguments.
	Parameters json.RawMessage
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// Tools are offered to the model for invocation.
	Tools []ToolDefinition
}

// ChatResponse is the assistant's reply to a Chat call.
type ChatResponse struct {
	// Content is the text reply. Empty when the model requested tools.
	Content string

	// ToolCalls are the tool invocations to run before continuing.
	ToolCalls []ToolCall
}
