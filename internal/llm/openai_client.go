// In file: internal/llm/openai_client.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/api"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/tools"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to OpenAI or any OpenAI-compatible endpoint.
type OpenAIClient struct {
	api        *openai.Client
	retryDelay time.Duration
}

// Statically verify that OpenAIClient implements the LLMClient interface.
var _ LLMClient = (*OpenAIClient)(nil)

// NewOpenAIClient creates a client. An empty baseURL uses api.openai.com.
func NewOpenAIClient(apiKey, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key cannot be empty")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	return &OpenAIClient{api: openai.NewClientWithConfig(cfg), retryDelay: initialRetryDelay}, nil
}

// Generate performs a standard, blocking chat completion.
func (c *OpenAIClient) Generate(
	ctx context.Context,
	messages []Message,
	config *GenerationConfig,
	availableTools []tools.Tool,
) (*GenerationResult, error) {
	if config == nil || config.Model == "" {
		return nil, errors.New("openai request needs a model")
	}
	req := openai.ChatCompletionRequest{
		Model:     config.Model,
		Messages:  toOpenAIMessages(messages),
		MaxTokens: config.MaxTokens,
	}
	if config.Temperature != nil {
		req.Temperature = *config.Temperature
	}
	if len(availableTools) > 0 {
		req.Tools = toOpenAITools(availableTools)
		req.ToolChoice = "auto"
	}

	resp, err := c.createWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	return parseOpenAIResponse(resp)
}

// createWithRetry retries rate limits and server errors with exponential backoff.
// Client errors are returned immediately.
func (c *OpenAIClient) createWithRetry(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var lastErr error
	delay := c.retryDelay
	for i := 0; i < maxRetries; i++ {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = fmt.Errorf("openai API error (attempt %d/%d): %w", i+1, maxRetries, err)
		if !retryable(err) || i == maxRetries-1 {
			break
		}
		log.Printf("WARNING: %v, retrying in %s", lastErr, delay)
		select {
		case <-ctx.Done():
			return openai.ChatCompletionResponse{}, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return openai.ChatCompletionResponse{}, lastErr
}

func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if m.Role == RoleTool {
			msg.Name = m.Name
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(defs []tools.Tool) []openai.Tool {
	out := make([]openai.Tool, len(defs))
	for i, def := range defs {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(def.Function.Name),
				Description: def.Function.Description,
				Parameters:  def.Function.Parameters,
			},
		}
	}
	return out
}

func parseOpenAIResponse(resp openai.ChatCompletionResponse) (*GenerationResult, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices returned from OpenAI")
	}
	choice := resp.Choices[0].Message
	result := &GenerationResult{
		Content: choice.Content,
		Usage: api.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, tools.Call{
			ID:   tc.ID,
			Type: tools.ToolTypeFunction,
			Function: tools.CallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return result, nil
}
