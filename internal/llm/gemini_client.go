// In file: internal/llm/gemini_client.go
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/tools"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient is the client for interacting with Google's Gemini models.
// A GenerativeModel is built per call because the model name, sampling and
// tools change between calls.
type GeminiClient struct {
	client *genai.Client
}

var _ LLMClient = (*GeminiClient)(nil)

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// Close releases the underlying connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// Generate performs a standard, blocking request to the Gemini API.
func (c *GeminiClient) Generate(
	ctx context.Context,
	messages []Message,
	config *GenerationConfig,
	availableTools []tools.Tool,
) (*GenerationResult, error) {
	if config == nil || config.Model == "" {
		return nil, errors.New("gemini request needs a model")
	}
	system, contents := toGeminiContents(messages)
	if len(contents) == 0 {
		return nil, errors.New("gemini request needs at least one non-system message")
	}

	model := c.client.GenerativeModel(config.Model)
	configureModel(model, config, availableTools)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	chat := model.StartChat()
	chat.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]
	resp, err := chat.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return parseGeminiResponse(ctx, model, resp)
}

// configureModel applies dynamic settings using the SDK's setter methods.
func configureModel(model *genai.GenerativeModel, config *GenerationConfig, availableTools []tools.Tool) {
	if config.Temperature != nil {
		model.SetTemperature(*config.Temperature)
	}
	if config.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(config.MaxTokens))
	} else {
		model.SetMaxOutputTokens(defaultMaxOutputTokens)
	}
	if len(availableTools) > 0 {
		model.Tools = toGeminiTools(availableTools)
	} else {
		model.Tools = nil
	}
}

// toGeminiTools converts our tool definitions to a single Gemini tool holding
// every function declaration.
func toGeminiTools(defs []tools.Tool) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, t := range defs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        string(t.Function.Name),
			Description: t.Function.Description,
			Parameters:  convertSchema(t.Function.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// convertSchema converts our JSONSchema to the Gemini SDK's schema type.
func convertSchema(s tools.JSONSchema) *genai.Schema {
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
	}
	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	}
	if len(s.Enum) > 0 {
		out.Format = "enum"
		out.Enum = s.Enum
	}
	if s.Items != nil {
		out.Items = convertSchema(*s.Items)
	}
	if s.Properties != nil {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = convertSchema(*v)
		}
	}
	return out
}

// toGeminiContents splits system messages off into a system instruction and
// converts the rest. Gemini has no tool role: tool results are user turns made of
// FunctionResponse parts. Consecutive turns of the same role are merged.
func toGeminiContents(messages []Message) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content
	for _, msg := range messages {
		var role string
		var parts []genai.Part
		switch msg.Role {
		case RoleSystem:
			if msg.Content != "" {
				system = append(system, msg.Content)
			}
			continue
		case RoleAssistant:
			role = "model"
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, genai.FunctionCall{
					Name: tc.Function.Name,
					Args: tools.ParseArgs(tc.Function.Arguments),
				})
			}
		case RoleTool:
			role = "user"
			parts = append(parts, genai.FunctionResponse{
				Name:     msg.Name,
				Response: responseObject(msg.Content),
			})
		default:
			role = "user"
			parts = append(parts, genai.Text(msg.Content))
		}
		if len(parts) == 0 {
			continue
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return strings.Join(system, "\n\n"), contents
}

// responseObject decodes a tool result for a FunctionResponse, which must be a
// JSON object.
func responseObject(content string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"result": content}
}

// parseGeminiResponse converts a Gemini API response into our GenerationResult.
// model may be nil, in which case missing completion tokens are not counted.
func parseGeminiResponse(
	ctx context.Context,
	model *genai.GenerativeModel,
	resp *genai.GenerateContentResponse,
) (*GenerationResult, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("no content returned from Gemini")
	}

	var contentBuilder strings.Builder
	var toolCalls []tools.Call
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			contentBuilder.WriteString(string(v))
		case genai.FunctionCall:
			args, err := json.Marshal(v.Args)
			if err != nil {
				log.Printf("WARNING: could not marshal Gemini tool call args: %v", err)
				args = []byte("{}")
			}
			// Gemini does not assign call ids; the position keeps them unique
			// within the turn.
			toolCalls = append(toolCalls, tools.Call{
				ID:   fmt.Sprintf("gemini-call-%d-%s", len(toolCalls), v.Name),
				Type: tools.ToolTypeFunction,
				Function: tools.CallFunction{
					Name:      v.Name,
					Arguments: string(args),
				},
			})
		}
	}

	result := &GenerationResult{
		Content:   strings.TrimSpace(contentBuilder.String()),
		ToolCalls: toolCalls,
	}
	if resp.UsageMetadata != nil {
		result.Usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.Usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		result.Usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	// Some responses omit completion tokens; count them when we have content.
	if model != nil && result.Usage.CompletionTokens == 0 && result.Content != "" {
		countResp, err := model.CountTokens(ctx, genai.Text(result.Content))
		if err != nil {
			log.Printf("WARNING: failed to count Gemini completion tokens: %v", err)
		} else {
			result.Usage.CompletionTokens = int(countResp.TotalTokens)
			result.Usage.TotalTokens = result.Usage.PromptTokens + result.Usage.CompletionTokens
		}
	}
	return result, nil
}
