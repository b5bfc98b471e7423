package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Document: https://modelcontextprotocol.io/docs/concepts/tools

const (
	// Client => Server
	MethodToolsList = "tools/list"
	MethodToolsCall = "tools/call"
)

type M map[string]interface{}

// ParamType is the JSON Schema type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
	TypeArray   ParamType = "array"
)

// Param describes one named tool parameter.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     interface{}
	Enum        []interface{}
}

// Tool
//
//	{
//		name: string;          // Unique identifier for the tool
//		description?: string;  // Human-readable description
//		inputSchema: {         // JSON Schema for the tool's parameters
//			type: "object",
//			properties: { ... }  // Tool-specific parameters
//		}
//	}
//
//	{
//		"name": "get_file",
//		"description": "Get a Figma file by key.",
//		"inputSchema": {
//			"type": "object",
//			"properties": {
//				"file_key": {"type": "string", "description": "The Figma file key (from URL)"},
//				"depth": {"type": "integer", "description": "Depth of nodes to return", "default": 2}
//			},
//			"required": ["file_key"]
//		}
//	}
type Tool struct {
	Name        string
	Description string
	Params      []Param
}

// Param returns the named parameter, if declared.
func (t Tool) Param(name string) (Param, bool) {
	for _, p := range t.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// InputSchema renders the parameter list as a JSON Schema object.
func (t Tool) InputSchema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(t.Params)),
	}
	for _, p := range t.Params {
		ps := &jsonschema.Schema{
			Type:        string(p.Type),
			Description: p.Description,
			Enum:        p.Enum,
		}
		if p.Default != nil {
			if b, err := json.Marshal(p.Default); err == nil {
				ps.Default = b
			}
		}
		s.Properties[p.Name] = ps
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

func (t Tool) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name        string             `json:"name"`
		Description string             `json:"description,omitempty"`
		InputSchema *jsonschema.Schema `json:"inputSchema"`
	}{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: t.InputSchema(),
	})
}

func (t Tool) validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTool)
	}
	seen := make(map[string]bool, len(t.Params))
	for _, p := range t.Params {
		if p.Name == "" {
			return fmt.Errorf("%w: %s: empty parameter name", ErrInvalidTool, t.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %s: duplicate parameter %s", ErrInvalidTool, t.Name, p.Name)
		}
		seen[p.Name] = true
		switch p.Type {
		case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeObject, TypeArray:
		default:
			return fmt.Errorf("%w: %s: parameter %s has unknown type %q", ErrInvalidTool, t.Name, p.Name, p.Type)
		}
	}
	return nil
}

type ToolsListResponse struct {
	Tools []Tool `json:"tools"`
}

//	{
//		"jsonrpc": "2.0",
//		"id": 2,
//		"result": {
//		  "content": [
//			{
//			  "type": "text",
//			  "text": "{\"success\": true, \"task_id\": \"1203\"}"
//			}
//		  ]
//		}
//	  }
type ToolsCallResponse struct {
	Content []Content `json:"content"`
}

type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func TextContent(text string) Content {
	return Content{Type: "text", Text: text}
}
