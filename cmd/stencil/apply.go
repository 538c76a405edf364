package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/stencil/internal/api"
	"github.com/jackzampolin/stencil/internal/batch"
	"github.com/jackzampolin/stencil/internal/document"
	"github.com/jackzampolin/stencil/internal/match"
	"github.com/jackzampolin/stencil/internal/store"
	"github.com/jackzampolin/stencil/internal/svcctx"
)

var (
	applyWorkers      int
	applyTimeoutSecs  int
	applyAnchorWindow int
	applyNoWrite      bool
)

// applySummary is the per-document summary row printed after a batch run.
type applySummary struct {
	DocumentID     string `json:"document_id"`
	Status         string `json:"status"` // "ok", "timeout", or "error"
	AnchoredUnique int    `json:"anchored_unique,omitempty"`
	Unanchored     int    `json:"unanchored_first,omitempty"`
	NoMatch        int    `json:"no_match,omitempty"`
	DurationMS     int64  `json:"duration_ms"`
	Error          string `json:"error,omitempty"`
}

var applyCmd = &cobra.Command{
	Use:   "apply <library> <document>...",
	Short: "Apply a pattern library to new documents of the same layout",
	Long: `Apply runs every pattern in the library against each target document,
ranking candidate matches by their context anchors. Extracted values are
written to <document stem>_extracted.json per document, and each value is
tagged with a confidence level:

  anchored_unique   exactly one candidate carried the best anchor score
  unanchored_first  ties or no anchors; the first occurrence was taken
  no_match          the pattern found nothing

Documents are processed concurrently; a document that exceeds its time
budget is reported as a timeout without affecting the rest of the batch.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := setupServices()
		if err != nil {
			return err
		}
		defer cleanup()
		ctx := svcctx.WithServices(cmd.Context(), svc)
		cfg := svc.Config.Get()

		lib, err := loadLibraryFile(svc.Home, args[0])
		if err != nil {
			return err
		}

		docs, err := document.LoadFiles(args[1:])
		if err != nil {
			return err
		}

		workers := applyWorkers
		if workers <= 0 {
			workers = cfg.Batch.Workers
		}
		timeoutSecs := applyTimeoutSecs
		if timeoutSecs <= 0 {
			timeoutSecs = cfg.Batch.DocTimeoutSeconds
		}
		window := applyAnchorWindow
		if window <= 0 {
			window = cfg.Matcher.AnchorWindow
		}

		runID := uuid.NewString()
		outcomes := batch.Run(ctx, lib, docs, batch.Options{
			Workers:    workers,
			DocTimeout: time.Duration(timeoutSecs) * time.Second,
			Match:      match.Options{AnchorWindow: window},
			Logger:     svc.Logger,
		})

		summaries := make([]applySummary, 0, len(outcomes))
		for i, out := range outcomes {
			sum := applySummary{
				DocumentID: out.DocumentID,
				Status:     "ok",
				DurationMS: out.Duration.Milliseconds(),
			}
			run := store.Run{
				RunID:      runID,
				Kind:       "apply",
				DocumentID: out.DocumentID,
				DurationMS: out.Duration.Milliseconds(),
			}

			switch {
			case out.TimedOut():
				sum.Status = "timeout"
				sum.Error = out.Err.Error()
				run.Error = out.Err.Error()
			case out.Err != nil:
				sum.Status = "error"
				sum.Error = out.Err.Error()
				run.Error = out.Err.Error()
			default:
				sum.AnchoredUnique = out.Result.Totals.AnchoredUnique
				sum.Unanchored = out.Result.Totals.UnanchoredFirst
				sum.NoMatch = out.Result.Totals.NoMatch
				if !applyNoWrite {
					path := artifactPath(args[1+i], "_extracted.json")
					if err := api.WriteJSONFile(path, out.Report); err != nil {
						return err
					}
				}
			}
			summaries = append(summaries, sum)

			if err := svc.Runs.RecordRun(ctx, run); err != nil {
				svc.Logger.Warn("run history write failed", "error", err)
			}
		}

		return api.Output(summaries)
	},
}

func init() {
	applyCmd.Flags().IntVar(&applyWorkers, "workers", 0, "concurrent documents (default: config batch.workers)")
	applyCmd.Flags().IntVar(&applyTimeoutSecs, "timeout", 0, "per-document time budget in seconds (default: config batch.doc_timeout_seconds)")
	applyCmd.Flags().IntVar(&applyAnchorWindow, "anchor-window", 0, "bytes inspected around a match for context anchors (default: config matcher.anchor_window)")
	applyCmd.Flags().BoolVar(&applyNoWrite, "no-write", false, "print summaries without writing <stem>_extracted.json files")

	rootCmd.AddCommand(applyCmd)
}
