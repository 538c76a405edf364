package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ParseStructured extracts JSON from model output, with lightweight recovery
// for markdown code fences and surrounding prose, and validates it against
// the canonical schema when one is supplied. The caller keeps the raw
// content for diagnosis whenever this fails.
func ParseStructured(content string, schemaRaw json.RawMessage) (json.RawMessage, error) {
	raw, err := parseStructuredJSON(content)
	if err != nil {
		return nil, err
	}
	if len(schemaRaw) == 0 {
		return raw, nil
	}

	sch, err := jsonschema.CompileString("response.schema.json", string(schemaRaw))
	if err != nil {
		return nil, fmt.Errorf("failed to compile response schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to parse structured output: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return nil, fmt.Errorf("structured output failed schema validation: %w", err)
	}
	return raw, nil
}

// parseStructuredJSON tries the content as-is, then with code fences
// stripped, then the outermost brace-delimited candidate.
func parseStructuredJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty structured output")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	var lastErr error
	for _, c := range candidates {
		var v any
		if err := json.Unmarshal([]byte(c), &v); err != nil {
			lastErr = err
			continue
		}
		return json.RawMessage(c), nil
	}
	return nil, fmt.Errorf("no valid JSON in structured output: %w", lastErr)
}

// stripCodeFences removes a leading ```json / ``` fence pair.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:] // drop the language tag line
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// extractJSONCandidate returns the outermost {...} span, as models often
// wrap JSON in explanation text.
func extractJSONCandidate(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
