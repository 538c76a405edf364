// Package validate checks that every pattern in a library reproduces its
// recorded example value against the document the library was generated from.
// Failures are data: one bad pattern never prevents validation of its
// siblings.
package validate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackzampolin/stencil/internal/document"
	"github.com/jackzampolin/stencil/internal/schema"
)

// Status is the per-field validation outcome.
type Status string

const (
	// StatusValid means some match's first capture group equals the
	// recorded example exactly.
	StatusValid Status = "Valid"
	// StatusMismatch means the pattern matches but no capture equals the
	// example; the first match's capture is reported for comparison.
	StatusMismatch Status = "Mismatch"
	// StatusNotFound means the pattern compiles but matches nothing.
	StatusNotFound Status = "NotFound"
	// StatusInvalidPattern means the expression fails to compile under its
	// declared flags, or captures nothing.
	StatusInvalidPattern Status = "InvalidPattern"
)

// FieldResult is the validation outcome for one field.
type FieldResult struct {
	Section string `json:"-"`
	Field   string `json:"-"`
	Status  Status `json:"status"`

	// ExpectedValue is the pattern's example_match.
	ExpectedValue string `json:"expected_value"`

	// MatchedValue is the capture that was produced: the example itself for
	// Valid, the first match's capture for Mismatch, empty otherwise.
	MatchedValue string `json:"matched_value,omitempty"`

	// MatchIndex is the index (document order) of the match that equaled
	// the example. Only meaningful for Valid.
	MatchIndex int `json:"match_index,omitempty"`

	// Ambiguous is set when more than one match equals the example; the
	// first is authoritative.
	Ambiguous bool `json:"ambiguous,omitempty"`

	// Reason holds the compile error verbatim for InvalidPattern.
	Reason string `json:"reason,omitempty"`
}

// Key returns the flat "section.field" report key.
func (r *FieldResult) Key() string {
	return r.Section + "." + r.Field
}

// Report maps every field that carries a pattern to its validation outcome.
// It is created fresh per invocation and never mutated afterwards.
type Report struct {
	DocumentID string
	Fields     []FieldResult
}

// Field looks up the result for a (section, field) pair.
func (r *Report) Field(section, field string) (*FieldResult, bool) {
	for i := range r.Fields {
		if r.Fields[i].Section == section && r.Fields[i].Field == field {
			return &r.Fields[i], true
		}
	}
	return nil, false
}

// MarshalJSON renders the persisted shape: {"section.field": {...}}.
func (r *Report) MarshalJSON() ([]byte, error) {
	m := make(map[string]FieldResult, len(r.Fields))
	for _, fr := range r.Fields {
		m[fr.Key()] = fr
	}
	return json.Marshal(m)
}

// Validate checks every pattern in lib against the document it was derived
// from. It is a pure function of its inputs: repeated calls produce
// identical reports. The context is consulted between fields so a caller's
// time budget can cut a pathological run short.
func Validate(ctx context.Context, lib *schema.Library, doc document.Document) (*Report, error) {
	if doc.Empty() {
		return nil, fmt.Errorf("document %s has no text", doc.ID)
	}

	report := &Report{DocumentID: doc.ID}
	for _, sec := range lib.Sections() {
		for _, f := range sec.Fields() {
			if f.Pattern == nil {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("validation of %s interrupted: %w", doc.ID, err)
			}
			report.Fields = append(report.Fields, validateField(sec.Name, f, doc.Text))
		}
	}
	return report, nil
}

func validateField(section string, f *schema.Field, text string) FieldResult {
	p := f.Pattern
	res := FieldResult{
		Section:       section,
		Field:         f.Name,
		ExpectedValue: p.ExampleMatch,
	}

	re, err := p.Compile()
	if err != nil {
		res.Status = StatusInvalidPattern
		res.Reason = err.Error()
		return res
	}
	if re.NumSubexp() == 0 {
		res.Status = StatusInvalidPattern
		res.Reason = "pattern has no capture group"
		return res
	}

	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		res.Status = StatusNotFound
		return res
	}

	// Compare the first capture group of each match byte-for-byte against
	// the example; no normalization. The first equal match is authoritative,
	// further equal matches only flag ambiguity.
	found := false
	equal := 0
	for i, m := range matches {
		cap := captureText(text, m)
		if cap == p.ExampleMatch {
			equal++
			if !found {
				found = true
				res.MatchIndex = i
			}
		}
	}
	if found {
		res.Status = StatusValid
		res.MatchedValue = p.ExampleMatch
		res.Ambiguous = equal > 1
		return res
	}

	res.Status = StatusMismatch
	res.MatchedValue = captureText(text, matches[0])
	return res
}

// captureText extracts the first capture group's text from a submatch index
// slice. An unparticipating group yields the empty string.
func captureText(text string, m []int) string {
	if len(m) < 4 || m[2] < 0 || m[3] < 0 {
		return ""
	}
	return text[m[2]:m[3]]
}
