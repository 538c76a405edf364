package match

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jackzampolin/stencil/internal/document"
	"github.com/jackzampolin/stencil/internal/schema"
	"github.com/jackzampolin/stencil/internal/validate"
)

func libWith(t *testing.T, sectionName string, repeating bool, fields ...*schema.Field) *schema.Library {
	t.Helper()
	sec, err := schema.NewSection(sectionName, repeating, fields)
	if err != nil {
		t.Fatal(err)
	}
	lib, err := schema.NewLibrary([]*schema.Section{sec})
	if err != nil {
		t.Fatal(err)
	}
	return lib
}

func applyOne(t *testing.T, lib *schema.Library, text string, opts Options) *Report {
	t.Helper()
	rep, err := Apply(context.Background(), lib, document.New("doc", text), opts)
	if err != nil {
		t.Fatal(err)
	}
	return rep
}

func TestApplyAnchorsDisambiguate(t *testing.T) {
	// Two years occur; only the second sits after the anchor text.
	text := "Printed in 2023 by the office.\nContract year: 2024 as agreed.\n"
	lib := libWith(t, "contract", false, &schema.Field{
		Name: "year",
		Pattern: &schema.Pattern{
			Expression:    `(\d{4})`,
			ContextBefore: `Contract year:`,
			ExampleMatch:  "2024",
		},
	})

	rep := applyOne(t, lib, text, Options{})
	fe, ok := rep.Field("contract", "year")
	if !ok {
		t.Fatal("no extraction")
	}
	if fe.Value() != "2024" {
		t.Errorf("value = %q, want 2024", fe.Value())
	}
	if fe.Confidence != ConfidenceAnchoredUnique {
		t.Errorf("confidence = %s, want AnchoredUnique", fe.Confidence)
	}
}

func TestApplyTieTakesFirstOccurrence(t *testing.T) {
	// No anchors at all: both candidates score 0, first occurrence wins.
	text := "ref 0530 then ref 0531"
	lib := libWith(t, "s", false, &schema.Field{
		Name:    "ref",
		Pattern: &schema.Pattern{Expression: `ref (\d{4})`, ExampleMatch: "0530"},
	})

	rep := applyOne(t, lib, text, Options{})
	fe, _ := rep.Field("s", "ref")
	if fe.Value() != "0530" {
		t.Errorf("value = %q, want first occurrence 0530", fe.Value())
	}
	if fe.Confidence != ConfidenceUnanchoredFirst {
		t.Errorf("confidence = %s, want UnanchoredFirst", fe.Confidence)
	}
}

func TestApplyBothAnchorsOutrankOne(t *testing.T) {
	// Three candidates: Alpha has neither anchor, Beta only the before
	// anchor, Gamma both. Gamma must win despite coming last.
	text := strings.Join([]string{
		"x Alpha y",
		"PRE Beta y",
		"PRE Gamma POST",
	}, "\n")
	lib := libWith(t, "s", false, &schema.Field{
		Name: "word",
		Pattern: &schema.Pattern{
			Expression:    `([A-Z][a-z]+)`,
			ContextBefore: `PRE`,
			ContextAfter:  `POST`,
			ExampleMatch:  "Gamma",
		},
	})

	rep := applyOne(t, lib, text, Options{AnchorWindow: 6})
	fe, _ := rep.Field("s", "word")
	if fe.Value() != "Gamma" {
		t.Errorf("value = %q, want Gamma", fe.Value())
	}
	if fe.Confidence != ConfidenceAnchoredUnique {
		t.Errorf("confidence = %s", fe.Confidence)
	}
}

func TestApplyNoMatch(t *testing.T) {
	lib := libWith(t, "s", false, &schema.Field{
		Name:    "id",
		Pattern: &schema.Pattern{Expression: `ID-(\d+)`, ExampleMatch: "ID-1"},
	})
	rep := applyOne(t, lib, "nothing relevant here", Options{})
	fe, _ := rep.Field("s", "id")
	if fe.Confidence != ConfidenceNoMatch {
		t.Errorf("confidence = %s, want NoMatch", fe.Confidence)
	}
	if len(fe.Values) != 0 {
		t.Errorf("values = %v, want empty", fe.Values)
	}
}

func TestApplyFieldWithoutPattern(t *testing.T) {
	lib := libWith(t, "s", false, &schema.Field{Name: "note"})
	rep := applyOne(t, lib, "some text", Options{})
	fe, ok := rep.Field("s", "note")
	if !ok {
		t.Fatal("pattern-less field should still appear in the report")
	}
	if fe.Confidence != ConfidenceNoMatch {
		t.Errorf("confidence = %s", fe.Confidence)
	}
}

func TestApplyInvalidPatternIsNoMatch(t *testing.T) {
	sec, err := schema.NewSection("s", false, []*schema.Field{{Name: "id"}})
	if err != nil {
		t.Fatal(err)
	}
	lib, err := schema.NewLibrary([]*schema.Section{sec})
	if err != nil {
		t.Fatal(err)
	}
	s, _ := lib.Section("s")
	f, _ := s.Field("id")
	f.Pattern = &schema.Pattern{Expression: `(?=broken)(x)`, ExampleMatch: "x"}

	rep := applyOne(t, lib, "x", Options{})
	fe, _ := rep.Field("s", "id")
	if fe.Confidence != ConfidenceNoMatch {
		t.Errorf("confidence = %s, want NoMatch for uncompilable pattern", fe.Confidence)
	}
}

func TestApplyPriorInvalidSkipsCompile(t *testing.T) {
	lib := libWith(t, "s", false, &schema.Field{
		Name:    "id",
		Pattern: &schema.Pattern{Expression: `(\d+)`, ExampleMatch: "1"},
	})
	prior := &validate.Report{Fields: []validate.FieldResult{
		{Section: "s", Field: "id", Status: validate.StatusInvalidPattern},
	}}

	rep := applyOne(t, lib, "value 1", Options{Prior: prior})
	fe, _ := rep.Field("s", "id")
	if fe.Confidence != ConfidenceNoMatch {
		t.Errorf("confidence = %s, want NoMatch for prior InvalidPattern", fe.Confidence)
	}
}

func TestApplyRepeatingSectionKeepsAll(t *testing.T) {
	text := "item: 12.50\nitem: 3.10\nitem: 99.00\n"
	lib := libWith(t, "line_items", true, &schema.Field{
		Name:    "amount",
		Pattern: &schema.Pattern{Expression: `item: (\d+\.\d{2})`, ExampleMatch: "12.50"},
	})

	rep := applyOne(t, lib, text, Options{})
	fe, _ := rep.Field("line_items", "amount")
	want := []string{"12.50", "3.10", "99.00"}
	if len(fe.Values) != len(want) {
		t.Fatalf("values = %v, want %v", fe.Values, want)
	}
	for i := range want {
		if fe.Values[i] != want[i] {
			t.Errorf("values[%d] = %q, want %q", i, fe.Values[i], want[i])
		}
	}
	if fe.Confidence != ConfidenceUnanchoredFirst {
		t.Errorf("confidence = %s, want UnanchoredFirst with no anchors", fe.Confidence)
	}
}

func TestApplyRepeatingAnchorFilter(t *testing.T) {
	// Only the rows prefixed by TOTAL satisfy the anchor; the stray match
	// must be dropped from the result.
	text := "noise 1.00\nTOTAL 2.00\nTOTAL 3.00\n"
	lib := libWith(t, "rows", true, &schema.Field{
		Name: "amount",
		Pattern: &schema.Pattern{
			Expression:    `(\d+\.\d{2})`,
			ContextBefore: `TOTAL`,
			ExampleMatch:  "2.00",
		},
	})

	rep := applyOne(t, lib, text, Options{AnchorWindow: 8})
	fe, _ := rep.Field("rows", "amount")
	want := []string{"2.00", "3.00"}
	if len(fe.Values) != 2 || fe.Values[0] != want[0] || fe.Values[1] != want[1] {
		t.Errorf("values = %v, want %v", fe.Values, want)
	}
	if fe.Confidence != ConfidenceAnchoredUnique {
		t.Errorf("confidence = %s", fe.Confidence)
	}

	t.Run("no candidate passes falls back to all", func(t *testing.T) {
		text := "a 1.00 b 2.00"
		rep := applyOne(t, lib, text, Options{AnchorWindow: 4})
		fe, _ := rep.Field("rows", "amount")
		if len(fe.Values) != 2 {
			t.Fatalf("values = %v, want both kept", fe.Values)
		}
		if fe.Confidence != ConfidenceUnanchoredFirst {
			t.Errorf("confidence = %s, want UnanchoredFirst fallback", fe.Confidence)
		}
	})
}

func TestApplyMultiValuedClaim(t *testing.T) {
	// A list claim on the field makes extraction multi-valued even when the
	// section itself is flat.
	claimed := schema.ListValue([]string{"a", "b"})
	lib := libWith(t, "s", false, &schema.Field{
		Name:    "tag",
		Claimed: &claimed,
		Pattern: &schema.Pattern{Expression: `tag:(\w)`, ExampleMatch: "a"},
	})

	rep := applyOne(t, lib, "tag:a tag:b", Options{})
	fe, _ := rep.Field("s", "tag")
	if len(fe.Values) != 2 {
		t.Errorf("values = %v, want both occurrences", fe.Values)
	}
}

func TestApplyEmptyDocument(t *testing.T) {
	lib := libWith(t, "s", false, &schema.Field{
		Name:    "id",
		Pattern: &schema.Pattern{Expression: `(\d+)`, ExampleMatch: "1"},
	})
	if _, err := Apply(context.Background(), lib, document.New("d", ""), Options{}); err == nil {
		t.Error("expected error for empty document")
	}
}

func TestApplyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	lib := libWith(t, "s", false, &schema.Field{
		Name:    "id",
		Pattern: &schema.Pattern{Expression: `(\d+)`, ExampleMatch: "1"},
	})
	if _, err := Apply(ctx, lib, document.New("d", "1"), Options{}); err == nil {
		t.Error("expected cancellation error")
	}
}

func TestReportData(t *testing.T) {
	lib := libWith(t, "line_items", true, &schema.Field{
		Name:    "amount",
		Pattern: &schema.Pattern{Expression: `(\d+\.\d{2})`, ExampleMatch: "1.00"},
	})
	rep := applyOne(t, lib, "1.00 2.00", Options{})
	d := rep.Data(lib)
	v, ok := d["line_items"]["amount"]
	if !ok {
		t.Fatal("amount missing from data")
	}
	if !v.IsList() || len(v.List()) != 2 {
		t.Errorf("amount = %+v, want two-element list", v)
	}
}

func TestReportMarshalJSON(t *testing.T) {
	rep := &Report{
		DocumentID: "doc-1",
		Fields: []FieldExtraction{
			{Section: "s", Field: "id", Values: []string{"42"}, Confidence: ConfidenceAnchoredUnique},
		},
	}
	b, err := json.Marshal(rep)
	if err != nil {
		t.Fatal(err)
	}
	var w struct {
		DocumentID string                     `json:"document_id"`
		Fields     map[string]json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		t.Fatal(err)
	}
	if w.DocumentID != "doc-1" {
		t.Errorf("document_id = %q", w.DocumentID)
	}
	if _, ok := w.Fields["s.id"]; !ok {
		t.Errorf("flat key missing: %s", b)
	}
}
