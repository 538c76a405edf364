package report

import (
	"strings"
	"testing"

	"github.com/jackzampolin/stencil/internal/match"
	"github.com/jackzampolin/stencil/internal/schema"
	"github.com/jackzampolin/stencil/internal/validate"
)

func buildLibrary(t *testing.T) *schema.Library {
	t.Helper()
	claimed := schema.ScalarValue("01-0530")
	noted := schema.ScalarValue("manual note")
	sec, err := schema.NewSection("header", false, []*schema.Field{
		{
			Name:    "number",
			Claimed: &claimed,
			Pattern: &schema.Pattern{Expression: `(\d{2}-\d{4})`, ExampleMatch: "01-0530"},
		},
		{
			Name:    "note",
			Claimed: &noted, // claim without a pattern
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	lib, err := schema.NewLibrary([]*schema.Section{sec})
	if err != nil {
		t.Fatal(err)
	}
	return lib
}

func TestMergeValidationOnly(t *testing.T) {
	lib := buildLibrary(t)
	vr := &validate.Report{
		DocumentID: "doc",
		Fields: []validate.FieldResult{
			{Section: "header", Field: "number", Status: validate.StatusValid,
				ExpectedValue: "01-0530", MatchedValue: "01-0530"},
		},
	}

	res := Merge(lib, "doc", vr, nil)

	if res.Totals.Total != 2 {
		t.Errorf("total = %d, want 2 (every field enumerated)", res.Totals.Total)
	}
	if res.Totals.Valid != 1 {
		t.Errorf("valid = %d", res.Totals.Valid)
	}
	if res.Totals.NoPattern != 1 {
		t.Errorf("no_pattern = %d", res.Totals.NoPattern)
	}
	if res.Totals.Agreements != 1 {
		t.Errorf("agreements = %d, want 1", res.Totals.Agreements)
	}

	var number *FieldOutcome
	for i := range res.Fields {
		if res.Fields[i].Field == "number" {
			number = &res.Fields[i]
		}
	}
	if number == nil {
		t.Fatal("number outcome missing")
	}
	if !number.Agrees {
		t.Error("derived value equals claim, agrees should be set")
	}
	if number.Derived == nil || number.Derived.Scalar() != "01-0530" {
		t.Errorf("derived = %+v", number.Derived)
	}
}

func TestMergeMismatchDiagnostics(t *testing.T) {
	lib := buildLibrary(t)
	vr := &validate.Report{
		Fields: []validate.FieldResult{
			{Section: "header", Field: "number", Status: validate.StatusMismatch,
				ExpectedValue: "01-0530", MatchedValue: "02-9999"},
		},
	}

	res := Merge(lib, "doc", vr, nil)
	var number *FieldOutcome
	for i := range res.Fields {
		if res.Fields[i].Field == "number" {
			number = &res.Fields[i]
		}
	}
	if number.Agrees {
		t.Error("mismatched value must not agree with claim")
	}
	if !strings.Contains(number.Detail, "02-9999") || !strings.Contains(number.Detail, "01-0530") {
		t.Errorf("detail = %q, want both values quoted", number.Detail)
	}
	if res.Totals.Mismatch != 1 {
		t.Errorf("mismatch = %d", res.Totals.Mismatch)
	}
}

func TestMergeInvalidPatternReason(t *testing.T) {
	lib := buildLibrary(t)
	vr := &validate.Report{
		Fields: []validate.FieldResult{
			{Section: "header", Field: "number", Status: validate.StatusInvalidPattern,
				Reason: "error parsing regexp: missing closing )"},
		},
	}
	res := Merge(lib, "doc", vr, nil)
	for _, f := range res.Fields {
		if f.Field == "number" && !strings.Contains(f.Detail, "missing closing") {
			t.Errorf("detail = %q, want compile error carried through", f.Detail)
		}
	}
	if res.Totals.InvalidPattern != 1 {
		t.Errorf("invalid_pattern = %d", res.Totals.InvalidPattern)
	}
}

func TestMergeExtractionOnly(t *testing.T) {
	lib := buildLibrary(t)
	er := &match.Report{
		DocumentID: "other-doc",
		Fields: []match.FieldExtraction{
			{Section: "header", Field: "number", Values: []string{"01-0530"},
				Confidence: match.ConfidenceAnchoredUnique},
		},
	}

	res := Merge(lib, "other-doc", nil, er)
	if res.Totals.AnchoredUnique != 1 {
		t.Errorf("anchored_unique = %d", res.Totals.AnchoredUnique)
	}
	if res.Totals.Agreements != 1 {
		t.Error("extraction equal to claim should count as agreement")
	}

	t.Run("no match leaves derived empty", func(t *testing.T) {
		er := &match.Report{Fields: []match.FieldExtraction{
			{Section: "header", Field: "number", Confidence: match.ConfidenceNoMatch},
		}}
		res := Merge(lib, "d", nil, er)
		for _, f := range res.Fields {
			if f.Field == "number" && f.Derived != nil {
				t.Error("NoMatch must not produce a derived value")
			}
		}
		if res.Totals.NoMatch != 1 {
			t.Errorf("no_match = %d", res.Totals.NoMatch)
		}
	})
}

func TestMergeSectionCounts(t *testing.T) {
	lib := buildLibrary(t)
	res := Merge(lib, "doc", nil, nil)
	sec, ok := res.Sections["header"]
	if !ok {
		t.Fatal("header section counts missing")
	}
	if sec.Total != 2 || sec.NoPattern != 1 {
		t.Errorf("section counts = %+v", sec)
	}
	if res.GeneratedAt.IsZero() {
		t.Error("generated_at not set")
	}
}
