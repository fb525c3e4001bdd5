// In file: internal/api/types.go

// Package api defines the public JSON shapes of the chat endpoint.
package api

// ChatMessage is one entry of the conversation the client sends with every turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages   []ChatMessage `json:"messages" binding:"required"`
	UserID     string        `json:"userId,omitempty"`
	TelegramID int64         `json:"telegramId,omitempty"`
}

// ToolCallSummary describes one tool the agent ran during the turn.
type ToolCallSummary struct {
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
	Result any            `json:"result"`
}

// ChatResponse is the successful reply. ConversationID is only set when tools
// were used and the conversation could be persisted.
type ChatResponse struct {
	Message        string            `json:"message"`
	ToolCalls      []ToolCallSummary `json:"toolCalls"`
	ConversationID string            `json:"conversationId,omitempty"`
}

// ErrorResponse is returned with 4xx and 5xx statuses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Usage holds token accounting for model calls.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
