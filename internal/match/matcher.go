// Package match applies a pattern library to a document the patterns were
// never validated against, resolving ambiguity among multiple occurrences
// via contextual anchors. Candidate generation (regex search) and candidate
// selection (anchor scoring) are separate stages.
package match

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackzampolin/stencil/internal/document"
	"github.com/jackzampolin/stencil/internal/schema"
	"github.com/jackzampolin/stencil/internal/validate"
)

// Confidence qualifies how certain the chosen match is.
type Confidence string

const (
	// ConfidenceAnchoredUnique: a single candidate, or anchors resolved the
	// ambiguity down to exactly one top-ranked match.
	ConfidenceAnchoredUnique Confidence = "AnchoredUnique"
	// ConfidenceUnanchoredFirst: several candidates tied at the top rank;
	// the first occurrence in document order was chosen. The tie-break is a
	// deliberate convention so extraction stays reproducible.
	ConfidenceUnanchoredFirst Confidence = "UnanchoredFirst"
	// ConfidenceNoMatch: the pattern produced no usable candidate.
	ConfidenceNoMatch Confidence = "NoMatch"
)

// DefaultAnchorWindow is the number of bytes inspected before/after a match
// when testing anchors. Generous enough to contain typical anchor snippets.
const DefaultAnchorWindow = 160

// Options configures matching. All tunables are explicit; there is no
// ambient state.
type Options struct {
	// AnchorWindow overrides DefaultAnchorWindow when positive.
	AnchorWindow int

	// Prior is an optional validation report from the library's source
	// document. Fields whose pattern was InvalidPattern there are marked
	// NoMatch without recompiling.
	Prior *validate.Report
}

func (o Options) window() int {
	if o.AnchorWindow > 0 {
		return o.AnchorWindow
	}
	return DefaultAnchorWindow
}

// FieldExtraction is the extraction outcome for one field on one document.
type FieldExtraction struct {
	Section    string      `json:"-"`
	Field      string      `json:"-"`
	Values     []string    `json:"values"` // empty for NoMatch; ordered for repeating fields
	Spans      [][2]int    `json:"spans,omitempty"`
	Confidence Confidence  `json:"confidence"`
	Candidates []Candidate `json:"-"` // all generated candidates, for diagnostics
}

// Key returns the flat "section.field" report key.
func (e *FieldExtraction) Key() string {
	return e.Section + "." + e.Field
}

// Value returns the chosen scalar value, or "" when nothing matched.
func (e *FieldExtraction) Value() string {
	if len(e.Values) == 0 {
		return ""
	}
	return e.Values[0]
}

// Report is the extraction result of one library run against one document.
type Report struct {
	DocumentID string
	Fields     []FieldExtraction
}

// Field looks up the extraction for a (section, field) pair.
func (r *Report) Field(section, field string) (*FieldExtraction, bool) {
	for i := range r.Fields {
		if r.Fields[i].Section == section && r.Fields[i].Field == field {
			return &r.Fields[i], true
		}
	}
	return nil, false
}

// Data renders the extraction as an extracted-data document: scalar values
// for flat fields, ordered sequences for repeating ones. NoMatch fields are
// omitted.
func (r *Report) Data(lib *schema.Library) schema.Data {
	d := make(schema.Data)
	for _, fe := range r.Fields {
		if fe.Confidence == ConfidenceNoMatch {
			continue
		}
		if d[fe.Section] == nil {
			d[fe.Section] = make(map[string]schema.Value)
		}
		repeating := false
		if sec, ok := lib.Section(fe.Section); ok {
			if f, ok := sec.Field(fe.Field); ok {
				repeating = sec.Repeating || f.MultiValued()
			}
		}
		if repeating {
			d[fe.Section][fe.Field] = schema.ListValue(fe.Values)
		} else {
			d[fe.Section][fe.Field] = schema.ScalarValue(fe.Value())
		}
	}
	return d
}

// MarshalJSON renders the persisted extraction report: the extracted-data
// shape annotated with per-field confidence and spans.
func (r *Report) MarshalJSON() ([]byte, error) {
	type wire struct {
		DocumentID string                     `json:"document_id"`
		Fields     map[string]FieldExtraction `json:"fields"`
	}
	w := wire{DocumentID: r.DocumentID, Fields: make(map[string]FieldExtraction, len(r.Fields))}
	for _, fe := range r.Fields {
		w.Fields[fe.Key()] = fe
	}
	return json.Marshal(w)
}

// Apply runs every pattern in lib against the target document. Per-field
// failures are data (NoMatch); only an absent document or an exceeded time
// budget abort the run. The library is read-only and safe to share across
// concurrent Apply calls.
func Apply(ctx context.Context, lib *schema.Library, doc document.Document, opts Options) (*Report, error) {
	if doc.Empty() {
		return nil, fmt.Errorf("document %s has no text", doc.ID)
	}

	report := &Report{DocumentID: doc.ID}
	for _, sec := range lib.Sections() {
		for _, f := range sec.Fields() {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("matching on %s interrupted: %w", doc.ID, err)
			}
			report.Fields = append(report.Fields, matchField(sec, f, doc.Text, opts))
		}
	}
	return report, nil
}

func matchField(sec *schema.Section, f *schema.Field, text string, opts Options) FieldExtraction {
	fe := FieldExtraction{Section: sec.Name, Field: f.Name, Confidence: ConfidenceNoMatch}

	if f.Pattern == nil {
		return fe
	}
	if opts.Prior != nil {
		if prior, ok := opts.Prior.Field(sec.Name, f.Name); ok && prior.Status == validate.StatusInvalidPattern {
			return fe
		}
	}

	re, err := f.Pattern.Compile()
	if err != nil || re.NumSubexp() == 0 {
		return fe
	}

	// Stage 1: candidate generation.
	cands := collectCandidates(re, text)
	if len(cands) == 0 {
		return fe
	}

	// Stage 2: candidate selection by anchor score.
	before := newAnchorProbe(f.Pattern.ContextBefore, f.Pattern.Flags)
	after := newAnchorProbe(f.Pattern.ContextAfter, f.Pattern.Flags)
	scoreCandidates(cands, text, before, after, opts.window())
	fe.Candidates = cands

	if sec.Repeating || f.MultiValued() {
		return selectAll(fe, cands, anchorCount(f.Pattern))
	}
	return selectOne(fe, cands)
}

// selectOne picks the single best candidate: highest anchor score, ties
// broken by first document occurrence. Exactly one candidate at the top rank
// means the choice was unambiguous.
func selectOne(fe FieldExtraction, cands []Candidate) FieldExtraction {
	best := cands[0]
	topCount := 1
	for _, c := range cands[1:] {
		switch {
		case c.Score > best.Score:
			best = c
			topCount = 1
		case c.Score == best.Score:
			topCount++
		}
	}

	fe.Values = []string{best.Value}
	fe.Spans = [][2]int{{best.ValueStart, best.ValueEnd}}
	if topCount == 1 {
		fe.Confidence = ConfidenceAnchoredUnique
	} else {
		fe.Confidence = ConfidenceUnanchoredFirst
	}
	return fe
}

// selectAll keeps every candidate that satisfies all supplied anchors, in
// document order. With no anchors supplied, or none satisfied, all
// candidates are returned.
func selectAll(fe FieldExtraction, cands []Candidate, anchors int) FieldExtraction {
	kept := cands
	if anchors > 0 {
		filtered := make([]Candidate, 0, len(cands))
		for _, c := range cands {
			if c.Score == anchors {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			kept = filtered
			fe.Confidence = ConfidenceAnchoredUnique
		} else {
			fe.Confidence = ConfidenceUnanchoredFirst
		}
	} else {
		fe.Confidence = ConfidenceUnanchoredFirst
	}

	for _, c := range kept {
		fe.Values = append(fe.Values, c.Value)
		fe.Spans = append(fe.Spans, [2]int{c.ValueStart, c.ValueEnd})
	}
	return fe
}
