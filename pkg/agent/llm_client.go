package agent

import (
	"context"

	"github.com/codeready-toolchain/buildscout/pkg/config"
)

// LLMClient is the Go-side interface for calling a chat-completion model.
// It provides a channel-based streaming API.
type LLMClient interface {
	// Generate sends a conversation to the model and returns a stream of chunks.
	// The returned channel is closed when the stream completes.
	// Errors after the request was accepted are delivered as ErrorChunk values.
	Generate(ctx context.Context, input *GenerateInput) (<-chan Chunk, error)

	// Close releases any client resources.
	Close() error
}

// GenerateInput is the Go-side representation of a completion request.
type GenerateInput struct {
	SessionID string
	Messages  []ConversationMessage
	Tools     []ToolDefinition // nil = no tools
	Profile   *config.ReasoningProfile
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ConversationMessage is one transcript entry.
type ConversationMessage struct {
	Role       string     // "system", "user", "assistant", "tool"
	Content    string
	ToolCalls  []ToolCall // For assistant messages
	ToolCallID string     // For tool result messages
	ToolName   string     // For tool result messages
}

// Size is the character footprint of the message as counted by the budget
// manager: content plus tool-call names and arguments.
func (m ConversationMessage) Size() int {
	n := len(m.Content)
	for _, tc := range m.ToolCalls {
		n += len(tc.Name) + len(tc.Arguments)
	}
	return n
}

// ToolDefinition describes a tool available to the LLM.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema string // JSON Schema
}

// ToolCall represents an LLM's request to call a tool.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON
}

// FinishReason is the provider-reported reason a completion ended.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonLength        FinishReason = "length"
	FinishReasonContentFilter FinishReason = "content_filter"
)

// Chunk is the interface for all streaming chunk types.
type Chunk interface {
	chunkType() ChunkType
}

// ChunkType identifies the kind of streaming chunk.
type ChunkType string

const (
	ChunkTypeText          ChunkType = "text"
	ChunkTypeToolCallDelta ChunkType = "tool_call_delta"
	ChunkTypeFinish        ChunkType = "finish"
	ChunkTypeUsage         ChunkType = "usage"
	ChunkTypeError         ChunkType = "error"
)

// TextChunk is a fragment of the model's text response.
type TextChunk struct{ Content string }

// ToolCallDeltaChunk is a fragment of one tool call, keyed by Index.
// ID is only present on the first fragment of a call; Name and Arguments
// are appended in arrival order.
type ToolCallDeltaChunk struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// FinishChunk carries the finish reason of the completion.
type FinishChunk struct{ Reason FinishReason }

// UsageChunk reports token consumption for this LLM call.
type UsageChunk struct{ InputTokens, OutputTokens, TotalTokens int }

// ErrorChunk signals an error from the LLM provider.
type ErrorChunk struct {
	Message string
	Code    string
	// ContextLength is set when the provider rejected the prompt as too large.
	ContextLength bool
}

func (c *TextChunk) chunkType() ChunkType          { return ChunkTypeText }
func (c *ToolCallDeltaChunk) chunkType() ChunkType { return ChunkTypeToolCallDelta }
func (c *FinishChunk) chunkType() ChunkType        { return ChunkTypeFinish }
func (c *UsageChunk) chunkType() ChunkType         { return ChunkTypeUsage }
func (c *ErrorChunk) chunkType() ChunkType         { return ChunkTypeError }
