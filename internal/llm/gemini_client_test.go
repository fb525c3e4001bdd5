package llm

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/tools"
)

func TestToGeminiContents(t *testing.T) {
	system, contents := toGeminiContents([]Message{
		{Role: RoleSystem, Content: "be helpful"},
		{Role: RoleUser, Content: "events and flats?"},
		{Role: RoleAssistant, ToolCalls: []tools.Call{
			{ID: "a", Function: tools.CallFunction{Name: "search_events", Arguments: `{"limit":2}`}},
			{ID: "b", Function: tools.CallFunction{Name: "search_listings", Arguments: `not json`}},
		}},
		{Role: RoleTool, ToolCallID: "a", Name: "search_events", Content: `{"success":true,"data":[]}`},
		{Role: RoleTool, ToolCallID: "b", Name: "search_listings", Content: `oops`},
	})

	assert.Equal(t, "be helpful", system)
	require.Len(t, contents, 3)

	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, genai.Text("events and flats?"), contents[0].Parts[0])

	assert.Equal(t, "model", contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	call := contents[1].Parts[0].(genai.FunctionCall)
	assert.Equal(t, "search_events", call.Name)
	assert.Equal(t, 2.0, call.Args["limit"])
	assert.Empty(t, contents[1].Parts[1].(genai.FunctionCall).Args)

	// Both tool results are merged into one user turn.
	assert.Equal(t, "user", contents[2].Role)
	require.Len(t, contents[2].Parts, 2)
	first := contents[2].Parts[0].(genai.FunctionResponse)
	assert.Equal(t, "search_events", first.Name)
	assert.Equal(t, true, first.Response["success"])
	second := contents[2].Parts[1].(genai.FunctionResponse)
	assert.Equal(t, map[string]any{"result": "oops"}, second.Response)
}

func TestConvertSchema(t *testing.T) {
	s := convertSchema(tools.JSONSchema{
		Type: "object",
		Properties: map[string]*tools.JSONSchema{
			"category": {Type: "string", Enum: []string{"a", "b"}},
			"ids":      {Type: "array", Items: &tools.JSONSchema{Type: "integer"}},
			"free":     {Type: "boolean"},
		},
		Required: []string{"category"},
	})

	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"category"}, s.Required)
	assert.Equal(t, genai.TypeString, s.Properties["category"].Type)
	assert.Equal(t, []string{"a", "b"}, s.Properties["category"].Enum)
	assert.Equal(t, genai.TypeArray, s.Properties["ids"].Type)
	assert.Equal(t, genai.TypeInteger, s.Properties["ids"].Items.Type)
	assert.Equal(t, genai.TypeBoolean, s.Properties["free"].Type)
}

func TestToGeminiToolsGroupsDeclarations(t *testing.T) {
	out := toGeminiTools(tools.ListTools())
	require.Len(t, out, 1)
	assert.Len(t, out[0].FunctionDeclarations, len(tools.ListTools()))
}

func TestParseGeminiResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []genai.Part{
				genai.Text("Let me check. "),
				genai.FunctionCall{Name: "search_places", Args: map[string]any{"category": "cafe"}},
				genai.FunctionCall{Name: "search_places", Args: map[string]any{"category": "bar"}},
			}},
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 5, TotalTokenCount: 15},
	}

	res, err := parseGeminiResponse(context.Background(), nil, resp)
	require.NoError(t, err)
	assert.Equal(t, "Let me check.", res.Content)
	require.Len(t, res.ToolCalls, 2)
	assert.NotEqual(t, res.ToolCalls[0].ID, res.ToolCalls[1].ID)
	assert.JSONEq(t, `{"category":"cafe"}`, res.ToolCalls[0].Function.Arguments)
	assert.Equal(t, 15, res.Usage.TotalTokens)

	_, err = parseGeminiResponse(context.Background(), nil, &genai.GenerateContentResponse{})
	assert.Error(t, err)
}
