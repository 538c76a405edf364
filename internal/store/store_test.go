package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndListRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	runs := []Run{
		{RunID: "r1", Kind: "generate", DocumentID: "doc-a", Provider: "openrouter",
			Valid: 5, Mismatch: 1, DurationMS: 1200, CreatedAt: base},
		{RunID: "r2", Kind: "validate", DocumentID: "doc-a",
			Valid: 6, DurationMS: 40, CreatedAt: base.Add(10 * time.Second)},
		{RunID: "r3", Kind: "apply", DocumentID: "doc-b",
			Error: "document doc-b exceeded its 30s time budget",
			DurationMS: 30000, CreatedAt: base.Add(20 * time.Second)},
	}
	for _, r := range runs {
		if err := s.RecordRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("runs = %d, want 3", len(got))
	}
	// newest first
	if got[0].RunID != "r3" || got[2].RunID != "r1" {
		t.Errorf("order = %s, %s, %s", got[0].RunID, got[1].RunID, got[2].RunID)
	}
	if got[2].Valid != 5 || got[2].Mismatch != 1 {
		t.Errorf("counts = %+v", got[2])
	}
	if got[0].Error == "" {
		t.Error("error text lost")
	}
	if got[2].Provider != "openrouter" {
		t.Errorf("provider = %q", got[2].Provider)
	}
}

func TestListRunsLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.RecordRun(ctx, Run{
			RunID: "r", Kind: "validate", DocumentID: "d",
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("runs = %d, want 2", len(got))
	}

	t.Run("zero limit uses default", func(t *testing.T) {
		got, err := s.ListRuns(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 5 {
			t.Errorf("runs = %d, want all 5", len(got))
		}
	})
}

func TestInitIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.Init(); err != nil {
		t.Errorf("second Init failed: %v", err)
	}
}
