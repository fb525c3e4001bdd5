// In file: internal/tools/types.go

// Package tools defines the operations the conversational agent may ask for: a
// static registry of tool schemas that is handed to the model, and an Executor
// that performs the matching store operation for each requested call.
package tools

import (
	"encoding/json"
	"fmt"
)

// ToolTypeFunction is the standard type for function-based tools.
const ToolTypeFunction = "function"

// Name identifies a tool. It is stable across deployments because it is stored
// in transcripts and in the enabled-tools list of the agent configuration.
type Name string

// Tool is the schema of a callable operation as sent to the model.
type Tool struct {
	// Type specifies the type of tool, which is always "function".
	Type string `json:"type"`
	// Function holds the detailed definition of the function.
	Function Function `json:"function"`
}

// Function defines the name, description, and parameters of a callable tool.
type Function struct {
	Name Name `json:"name"`
	// Description is read by the model only; it decides when the tool is used.
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
}

// JSONSchema is the subset of JSON Schema used to describe tool arguments.
type JSONSchema struct {
	// Type is one of object, string, number, integer, boolean or array.
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
}

// clone returns a deep copy of s.
func (s JSONSchema) clone() JSONSchema {
	out := s
	out.Enum = append([]string(nil), s.Enum...)
	out.Required = append([]string(nil), s.Required...)
	if s.Items != nil {
		items := s.Items.clone()
		out.Items = &items
	}
	if s.Properties != nil {
		out.Properties = make(map[string]*JSONSchema, len(s.Properties))
		for k, p := range s.Properties {
			if p == nil {
				out.Properties[k] = nil
				continue
			}
			c := p.clone()
			out.Properties[k] = &c
		}
	}
	return out
}

func (t Tool) clone() Tool {
	t.Function.Parameters = t.Function.Parameters.clone()
	return t
}

// Call is one tool invocation requested by the model within a turn.
type Call struct {
	// ID correlates the request with its result in the transcript.
	ID string `json:"id"`
	// Type indicates the type of tool being called, which is always "function".
	Type     string       `json:"type"`
	Function CallFunction `json:"function"`
}

// CallFunction holds the name and the raw, possibly malformed, JSON arguments.
type CallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewFunctionTool is a helper that builds a Tool with the "function" type.
func NewFunctionTool(name Name, description string, parameters JSONSchema) Tool {
	return Tool{
		Type: ToolTypeFunction,
		Function: Function{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// Identity is the caller on whose behalf a tool runs. Either field may be empty;
// both empty means an anonymous caller.
type Identity struct {
	UserID     string
	TelegramID int64
}

// Anonymous reports whether no caller identity was supplied.
func (id Identity) Anonymous() bool {
	return id.UserID == "" && id.TelegramID == 0
}

// Record is the display-oriented shape every tool returns, whichever table it read.
type Record struct {
	ID          string   `json:"id"`
	Source      string   `json:"source"`
	Category    string   `json:"category,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	Location    string   `json:"location"`
	Contact     string   `json:"contact"`
	Date        string   `json:"date,omitempty"`
}

// Result is the uniform outcome of one tool execution.
type Result struct {
	Success bool     `json:"success"`
	Data    []Record `json:"data"`
	Error   string   `json:"error,omitempty"`
}

// MarshalJSON emits data only on success and error only on failure.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Success {
		data := r.Data
		if data == nil {
			data = []Record{}
		}
		return json.Marshal(struct {
			Success bool     `json:"success"`
			Data    []Record `json:"data"`
		}{true, data})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}{false, r.Error})
}

func succeed(records []Record) Result {
	if records == nil {
		records = []Record{}
	}
	return Result{Success: true, Data: records}
}

func fail(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}
