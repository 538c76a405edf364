package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackzampolin/stencil/internal/document"
	"github.com/jackzampolin/stencil/internal/schema"
)

func testLibrary(t *testing.T) *schema.Library {
	t.Helper()
	sec, err := schema.NewSection("header", false, []*schema.Field{
		{Name: "number", Pattern: &schema.Pattern{
			Expression:   `No\.\s*(\d{2}-\d{4})`,
			ExampleMatch: "01-0530",
		}},
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

func TestRunPreservesInputOrder(t *testing.T) {
	lib := testLibrary(t)

	docs := make([]document.Document, 12)
	for i := range docs {
		docs[i] = document.New(
			fmt.Sprintf("doc-%02d", i),
			fmt.Sprintf("Invoice No. %02d-0530", i),
		)
	}

	outcomes := Run(context.Background(), lib, docs, Options{Workers: 3})
	if len(outcomes) != len(docs) {
		t.Fatalf("outcomes = %d, want %d", len(outcomes), len(docs))
	}
	for i, out := range outcomes {
		if out.DocumentID != docs[i].ID {
			t.Errorf("outcomes[%d] = %s, want %s", i, out.DocumentID, docs[i].ID)
		}
		if out.Err != nil {
			t.Errorf("doc %s failed: %v", out.DocumentID, out.Err)
			continue
		}
		fe, ok := out.Report.Field("header", "number")
		if !ok {
			t.Fatalf("doc %s missing extraction", out.DocumentID)
		}
		want := fmt.Sprintf("%02d-0530", i)
		if fe.Value() != want {
			t.Errorf("doc %s value = %q, want %q", out.DocumentID, fe.Value(), want)
		}
	}
}

func TestRunOneFailureDoesNotStopBatch(t *testing.T) {
	lib := testLibrary(t)
	docs := []document.Document{
		document.New("good-1", "Invoice No. 01-0530"),
		document.New("empty", ""),
		document.New("good-2", "Invoice No. 02-0530"),
	}

	outcomes := Run(context.Background(), lib, docs, Options{Workers: 2})
	if outcomes[0].Err != nil || outcomes[2].Err != nil {
		t.Errorf("healthy documents failed: %v, %v", outcomes[0].Err, outcomes[2].Err)
	}
	if outcomes[1].Err == nil {
		t.Error("empty document should have failed")
	}
	if outcomes[1].TimedOut() {
		t.Error("empty document failure is not a timeout")
	}
}

func TestRunTimeout(t *testing.T) {
	lib := testLibrary(t)
	docs := []document.Document{document.New("slow", "Invoice No. 01-0530")}

	// A nanosecond budget is exhausted before the first field is evaluated.
	outcomes := Run(context.Background(), lib, docs, Options{
		Workers:    1,
		DocTimeout: time.Nanosecond,
	})

	out := outcomes[0]
	if out.Err == nil {
		t.Fatal("expected timeout error")
	}
	if !out.TimedOut() {
		t.Fatalf("expected TimeoutError, got %T: %v", out.Err, out.Err)
	}
	var te *TimeoutError
	if !errors.As(out.Err, &te) {
		t.Fatal("errors.As failed")
	}
	if te.DocumentID != "slow" || te.Budget != time.Nanosecond {
		t.Errorf("timeout = %+v", te)
	}
}

func TestRunCancelledContext(t *testing.T) {
	lib := testLibrary(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	docs := []document.Document{
		document.New("a", "Invoice No. 01-0530"),
		document.New("b", "Invoice No. 02-0530"),
	}
	outcomes := Run(ctx, lib, docs, Options{Workers: 1})
	for _, out := range outcomes {
		if out.Err == nil {
			t.Errorf("doc %s should carry the cancellation error", out.DocumentID)
		}
		if out.TimedOut() {
			t.Errorf("doc %s: cancellation is not a per-document timeout", out.DocumentID)
		}
	}
}

func TestRunMergesResult(t *testing.T) {
	lib := testLibrary(t)
	docs := []document.Document{document.New("d", "Invoice No. 01-0530")}
	outcomes := Run(context.Background(), lib, docs, Options{})
	out := outcomes[0]
	if out.Err != nil {
		t.Fatal(out.Err)
	}
	if out.Result == nil {
		t.Fatal("merged result missing")
	}
	if out.Result.Totals.AnchoredUnique != 1 {
		t.Errorf("totals = %+v", out.Result.Totals)
	}
}
