package types

import "encoding/json"

// Tool describes a function tool the model may invoke.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema *JSONSchema `json:"input_schema,omitempty"`
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// JSONSchema is a minimal JSON Schema for tool inputs.
type JSONSchema struct {
	Type       string                `json:"type"`
	Properties map[string]JSONSchema `json:"properties,omitempty"`
	Items      *JSONSchema           `json:"items,omitempty"`
	Required   []string              `json:"required,omitempty"`

	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
}

// NewTool creates a function tool definition.
func NewTool(name, description string, schema *JSONSchema) Tool {
	return Tool{Name: name, Description: description, InputSchema: schema}
}

// ObjectSchema builds an object schema over the given properties.
func ObjectSchema(props map[string]JSONSchema, required []string) *JSONSchema {
	return &JSONSchema{Type: "object", Properties: props, Required: required}
}

// StringSchema builds a string property schema.
func StringSchema(description string) JSONSchema {
	return JSONSchema{Type: "string", Description: description}
}

// IntSchema builds a bounded integer property schema.
func IntSchema(description string, min, max float64) JSONSchema {
	return JSONSchema{Type: "integer", Description: description, Minimum: &min, Maximum: &max}
}
