// Package report merges validator and matcher outputs with the originally
// claimed values into a single reporting structure with summary counts. Pure
// data transformation; no I/O.
package report

import (
	"time"

	"github.com/jackzampolin/stencil/internal/match"
	"github.com/jackzampolin/stencil/internal/schema"
	"github.com/jackzampolin/stencil/internal/validate"
)

// FieldOutcome is the merged, user-visible outcome for one field. Every
// field of the library appears in the final report, including failures and
// fields with no pattern at all.
type FieldOutcome struct {
	Section string `json:"section"`
	Field   string `json:"field"`

	Claimed *schema.Value `json:"claimed_value,omitempty"`
	Derived *schema.Value `json:"derived_value,omitempty"`

	Status     validate.Status  `json:"status,omitempty"`     // validation runs
	Confidence match.Confidence `json:"confidence,omitempty"` // extraction runs

	// Agrees is set when a pattern-derived value equals the claimed value
	// exactly, ordering included for sequences.
	Agrees bool `json:"agrees_with_claim"`

	// Detail carries diagnostics: compile errors, the mismatched capture.
	Detail string `json:"detail,omitempty"`
}

// Counts summarizes field outcomes at section or document level.
type Counts struct {
	Total          int `json:"total"`
	Valid          int `json:"valid,omitempty"`
	Mismatch       int `json:"mismatch,omitempty"`
	NotFound       int `json:"not_found,omitempty"`
	InvalidPattern int `json:"invalid_pattern,omitempty"`
	NoPattern      int `json:"no_pattern,omitempty"`

	AnchoredUnique  int `json:"anchored_unique,omitempty"`
	UnanchoredFirst int `json:"unanchored_first,omitempty"`
	NoMatch         int `json:"no_match,omitempty"`

	Agreements int `json:"agreements,omitempty"`
}

func (c *Counts) addStatus(s validate.Status) {
	switch s {
	case validate.StatusValid:
		c.Valid++
	case validate.StatusMismatch:
		c.Mismatch++
	case validate.StatusNotFound:
		c.NotFound++
	case validate.StatusInvalidPattern:
		c.InvalidPattern++
	}
}

func (c *Counts) addConfidence(conf match.Confidence) {
	switch conf {
	case match.ConfidenceAnchoredUnique:
		c.AnchoredUnique++
	case match.ConfidenceUnanchoredFirst:
		c.UnanchoredFirst++
	case match.ConfidenceNoMatch:
		c.NoMatch++
	}
}

// Result is the persisted output structure for one document run.
type Result struct {
	DocumentID  string            `json:"document_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Fields      []FieldOutcome    `json:"fields"`
	Sections    map[string]Counts `json:"sections"`
	Totals      Counts            `json:"totals"`
}

// Merge combines a validation report and/or an extraction report with the
// library's claimed values. Either report may be nil; passing both covers
// the re-validate-then-ship flow.
func Merge(lib *schema.Library, documentID string, vr *validate.Report, er *match.Report) *Result {
	res := &Result{
		DocumentID:  documentID,
		GeneratedAt: time.Now().UTC(),
		Sections:    make(map[string]Counts),
	}

	for _, sec := range lib.Sections() {
		secCounts := Counts{}
		for _, f := range sec.Fields() {
			out := FieldOutcome{Section: sec.Name, Field: f.Name, Claimed: f.Claimed}
			secCounts.Total++

			if f.Pattern == nil {
				secCounts.NoPattern++
			}

			if vr != nil {
				if fr, ok := vr.Field(sec.Name, f.Name); ok {
					out.Status = fr.Status
					out.Detail = diagnostics(fr)
					if fr.Status == validate.StatusValid || fr.Status == validate.StatusMismatch {
						v := schema.ScalarValue(fr.MatchedValue)
						out.Derived = &v
					}
					secCounts.addStatus(fr.Status)
				}
			}

			if er != nil {
				if fe, ok := er.Field(sec.Name, f.Name); ok {
					out.Confidence = fe.Confidence
					if fe.Confidence != match.ConfidenceNoMatch {
						v := extractionValue(sec, f, fe)
						out.Derived = &v
					}
					secCounts.addConfidence(fe.Confidence)
				}
			}

			if out.Claimed != nil && out.Derived != nil && out.Claimed.Equal(*out.Derived) {
				out.Agrees = true
				secCounts.Agreements++
			}

			res.Fields = append(res.Fields, out)
		}
		res.Sections[sec.Name] = secCounts
		res.Totals.add(secCounts)
	}
	return res
}

func (c *Counts) add(o Counts) {
	c.Total += o.Total
	c.Valid += o.Valid
	c.Mismatch += o.Mismatch
	c.NotFound += o.NotFound
	c.InvalidPattern += o.InvalidPattern
	c.NoPattern += o.NoPattern
	c.AnchoredUnique += o.AnchoredUnique
	c.UnanchoredFirst += o.UnanchoredFirst
	c.NoMatch += o.NoMatch
	c.Agreements += o.Agreements
}

func extractionValue(sec *schema.Section, f *schema.Field, fe *match.FieldExtraction) schema.Value {
	if sec.Repeating || f.MultiValued() {
		return schema.ListValue(fe.Values)
	}
	return schema.ScalarValue(fe.Value())
}

func diagnostics(fr *validate.FieldResult) string {
	switch fr.Status {
	case validate.StatusInvalidPattern:
		return fr.Reason
	case validate.StatusMismatch:
		return "captured " + quote(fr.MatchedValue) + ", expected " + quote(fr.ExpectedValue)
	default:
		return ""
	}
}

func quote(s string) string { return "\"" + s + "\"" }
