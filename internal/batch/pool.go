// Package batch replays one pattern library against many target documents
// on a bounded worker pool. The library is immutable and shared read-only;
// each worker owns one document at a time under an independent time budget,
// so a pathological run on one document never stalls the batch.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/stencil/internal/document"
	"github.com/jackzampolin/stencil/internal/match"
	"github.com/jackzampolin/stencil/internal/report"
	"github.com/jackzampolin/stencil/internal/schema"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 4

// DefaultDocTimeout is the per-document time budget when none is configured.
const DefaultDocTimeout = 30 * time.Second

// TimeoutError marks a document whose evaluation exceeded its time budget.
// It is a processing failure for that document only, distinct from a pattern
// that simply matched nothing.
type TimeoutError struct {
	DocumentID string
	Budget     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("document %s exceeded its %s time budget", e.DocumentID, e.Budget)
}

// Options configures a batch run. Everything is explicit; there is no
// ambient state.
type Options struct {
	Workers    int
	DocTimeout time.Duration
	Match      match.Options
	Logger     *slog.Logger
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return DefaultWorkers
}

func (o Options) timeout() time.Duration {
	if o.DocTimeout > 0 {
		return o.DocTimeout
	}
	return DefaultDocTimeout
}

// Outcome is the result of applying the library to one document.
type Outcome struct {
	DocumentID string
	Report     *match.Report  // nil on failure
	Result     *report.Result // merged report with summary counts; nil on failure
	Err        error
	Duration   time.Duration
}

// TimedOut reports whether the outcome failed on its time budget.
func (o *Outcome) TimedOut() bool {
	var te *TimeoutError
	return errors.As(o.Err, &te)
}

// Run applies lib to every document on a bounded worker pool and returns
// outcomes in input order. One failed document never prevents processing of
// the rest; cancellation of ctx stops the batch, leaving unprocessed
// documents marked with the cancellation error.
func Run(ctx context.Context, lib *schema.Library, docs []document.Document, opts Options) []Outcome {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "batch")

	outcomes := make([]Outcome, len(docs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < opts.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = processDocument(ctx, lib, docs[i], opts)
				if outcomes[i].Err != nil {
					logger.Warn("document failed",
						"document", docs[i].ID,
						"error", outcomes[i].Err,
						"timed_out", outcomes[i].TimedOut())
				} else {
					logger.Debug("document processed",
						"document", docs[i].ID,
						"duration", outcomes[i].Duration)
				}
			}
		}()
	}

feed:
	for i := range docs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(docs); j++ {
				outcomes[j] = Outcome{DocumentID: docs[j].ID, Err: ctx.Err()}
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

// processDocument applies the library to a single document under its own
// deadline. A deadline hit is reported as *TimeoutError, never conflated
// with NoMatch.
func processDocument(parent context.Context, lib *schema.Library, doc document.Document, opts Options) Outcome {
	budget := opts.timeout()
	ctx, cancel := context.WithTimeout(parent, budget)
	defer cancel()

	start := time.Now()
	rep, err := match.Apply(ctx, lib, doc, opts.Match)
	out := Outcome{DocumentID: doc.ID, Duration: time.Since(start)}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
			out.Err = &TimeoutError{DocumentID: doc.ID, Budget: budget}
		} else {
			out.Err = err
		}
		return out
	}
	out.Report = rep
	out.Result = report.Merge(lib, doc.ID, nil, rep)
	return out
}
