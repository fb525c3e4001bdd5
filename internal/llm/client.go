// In file: internal/llm/client.go

// Package llm contains the chat-completion clients the agent talks to (OpenAI
// compatible and Gemini), the router that picks one of them for a model name,
// and a redis-backed profiler of per-model usage.
package llm

import (
	"context"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/api"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/tools"
)

// =================================================================================
// Core Data Structures
// =================================================================================

// Role represents the originator of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message represents a single message sent to the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// ToolCalls is set on assistant messages that requested tools.
	ToolCalls []tools.Call `json:"tool_calls,omitempty"`
	// ToolCallID and Name are set on tool messages.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// GenerationConfig holds the parameters that control one generation.
type GenerationConfig struct {
	// The specific model to use (e.g., "gpt-4o-mini", "gemini-1.5-flash").
	Model string
	// Using a pointer distinguishes a temperature of 0.0 from an unset value.
	Temperature *float32
	// The maximum number of tokens to generate; 0 leaves it to the provider.
	MaxTokens int
}

// GenerationResult holds the complete output of one model call.
type GenerationResult struct {
	// The generated text content from the model.
	Content string
	// Tool calls requested by the model, in the order it listed them.
	ToolCalls []tools.Call
	// Token usage statistics for the generation request.
	Usage api.Usage
}

// =================================================================================
// LLM Client Interface
// =================================================================================

// LLMClient is implemented by every model provider.
type LLMClient interface {
	// Generate performs a blocking request with the full message list. When
	// availableTools is empty the model is not offered any tool.
	Generate(
		ctx context.Context,
		messages []Message,
		config *GenerationConfig,
		availableTools []tools.Tool,
	) (*GenerationResult, error)
}
