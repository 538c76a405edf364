// Package patterngen holds the prompts and response contract for the
// pattern-generation agent: the LLM reads a document and proposes, per
// section, extracted field values plus regex patterns that reproduce them.
package patterngen

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"text/template"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTemplate string

var userTmpl *template.Template

func init() {
	var err error
	userTmpl, err = template.New("user").Parse(userPromptTemplate)
	if err != nil {
		panic("failed to parse patterngen user template: " + err.Error())
	}
}

// SystemPrompt returns the system prompt for pattern generation.
func SystemPrompt() string {
	return systemPrompt
}

// UserPromptData contains data for rendering the user prompt.
type UserPromptData struct {
	DocumentID string
	Text       string
	Hints      []string // optional section/field hints from the operator
}

// BuildUserPrompt renders the user prompt with the given data.
func BuildUserPrompt(data UserPromptData) string {
	var buf bytes.Buffer
	if err := userTmpl.Execute(&buf, data); err != nil {
		// Fallback to raw template on error
		return userPromptTemplate
	}
	return buf.String()
}

// JSONSchema returns the response schema enforced both provider-side (when
// the backend supports structured output) and locally before the schema
// loader runs.
func JSONSchema() map[string]any {
	pattern := map[string]any{
		"type":     "object",
		"required": []string{"expression", "example_match"},
		"properties": map[string]any{
			"expression":     map[string]any{"type": "string"},
			"flags":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"context_before": map[string]any{"type": "string"},
			"context_after":  map[string]any{"type": "string"},
			"example_match":  map[string]any{"type": "string"},
			"description":    map[string]any{"type": "string"},
		},
	}
	value := map[string]any{
		"anyOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "number"},
			map[string]any{"type": "array", "items": map[string]any{"type": []any{"string", "number"}}},
		},
	}
	section := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"extracted_data": map[string]any{
				"type":                 "object",
				"additionalProperties": value,
			},
			"regex_patterns": map[string]any{
				"type":                 "object",
				"additionalProperties": pattern,
			},
		},
	}
	return map[string]any{
		"type":     "object",
		"required": []string{"sections"},
		"properties": map[string]any{
			"sections": map[string]any{
				"type":                 "object",
				"additionalProperties": section,
			},
		},
	}
}

// JSONSchemaBytes returns the marshaled response schema.
func JSONSchemaBytes() json.RawMessage {
	b, err := json.Marshal(JSONSchema())
	if err != nil {
		panic("failed to marshal patterngen response schema: " + err.Error())
	}
	return b
}
