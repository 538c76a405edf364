package schema

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSON Schemas for the persisted shapes. Shape problems (wrong types, missing
// expression) surface as *SchemaError before any decoding into domain types;
// semantic checks (flag vocabulary, capture groups, duplicates) follow in the
// loaders.

const patternDefs = `{
  "pattern": {
    "type": "object",
    "properties": {
      "expression": {"type": "string"},
      "pattern": {"type": "string"},
      "flags": {"type": "array", "items": {"type": "string"}},
      "context_before": {"type": "string"},
      "context_after": {"type": "string"},
      "example_match": {"type": "string"},
      "description": {"type": "string"}
    },
    "anyOf": [
      {"required": ["expression"]},
      {"required": ["pattern"]}
    ]
  },
  "patternMap": {
    "type": "object",
    "additionalProperties": {
      "type": "object",
      "additionalProperties": {"$ref": "#/$defs/pattern"}
    }
  }
}`

var libraryFileSchema = jsonschema.MustCompileString("library.schema.json", `{
  "type": "object",
  "properties": {
    "file_info": {"type": "object"},
    "repeating_sections": {"type": "array", "items": {"type": "string"}},
    "patterns": {"$ref": "#/$defs/patternMap"}
  },
  "$defs": `+patternDefs+`
}`)

var barePatternsSchema = jsonschema.MustCompileString("library-bare.schema.json", `{
  "$ref": "#/$defs/patternMap",
  "$defs": `+patternDefs+`
}`)

// decodeStrictShape validates b against sch, then decodes it into out.
func decodeStrictShape(b []byte, sch *jsonschema.Schema, out any) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return &SchemaError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	if err := sch.Validate(v); err != nil {
		return &SchemaError{Reason: fmt.Sprintf("library shape: %v", err)}
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &SchemaError{Reason: fmt.Sprintf("malformed library: %v", err)}
	}
	return nil
}
