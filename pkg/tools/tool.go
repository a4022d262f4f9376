// Package tools provides the tool layer exposed to the coder agent: the tool
// interface, JSON-schema style definitions, a canonical registry and the file-store
// tools themselves.
package tools

import (
	"context"
)

// Tool is a named operation the model can invoke.
type Tool interface {
	// Name returns the canonical tool name.
	Name() string

	// Definition returns the schema advertised to the model.
	Definition() ToolDefinition

	// Exec runs the tool. A returned error is reported back to the model as a failed
	// call; it never aborts the agent loop by itself.
	Exec(ctx context.Context, args map[string]any) (*ExecResult, error)

	// PromptDocumentation returns markdown describing the tool for system prompts.
	PromptDocumentation() string
}

// ExecResult is the textual result of a tool call.
type ExecResult struct {
	Content string
}

// ToolDefinition describes a tool to the model.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// InputSchema is the JSON schema of a tool's arguments.
type InputSchema struct {
	Properties map[string]Property `json:"properties"`
	Type       string              `json:"type"`
	Required   []string            `json:"required,omitempty"`
}

// Property is one JSON schema property.
type Property struct {
	Items       *Property            `json:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Type        string               `json:"type"`
	Description string               `json:"description,omitempty"`
	Enum        []string             `json:"enum,omitempty"`
	Required    []string             `json:"required,omitempty"`
}

// ToSchemaMap converts an InputSchema into a plain JSON-schema map, the shape most
// provider SDKs accept.
func (s *InputSchema) ToSchemaMap() map[string]any {
	properties := make(map[string]any, len(s.Properties))
	for name := range s.Properties {
		prop := s.Properties[name]
		properties[name] = prop.ToSchemaMap()
	}
	schemaType := s.Type
	if schemaType == "" {
		schemaType = "object"
	}
	out := map[string]any{
		"type":       schemaType,
		"properties": properties,
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

// ToSchemaMap recursively converts a Property to a JSON-schema map.
func (p *Property) ToSchemaMap() map[string]any {
	schema := map[string]any{"type": p.Type}
	if p.Description != "" {
		schema["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		schema["enum"] = p.Enum
	}
	if p.Type == "array" && p.Items != nil {
		schema["items"] = p.Items.ToSchemaMap()
	}
	if p.Type == "object" && p.Properties != nil {
		properties := make(map[string]any, len(p.Properties))
		for name, child := range p.Properties {
			if child != nil {
				properties[name] = child.ToSchemaMap()
			}
		}
		schema["properties"] = properties
		if len(p.Required) > 0 {
			schema["required"] = p.Required
		}
	}
	return schema
}
