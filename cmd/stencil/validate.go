package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/stencil/internal/api"
	"github.com/jackzampolin/stencil/internal/document"
	"github.com/jackzampolin/stencil/internal/report"
	"github.com/jackzampolin/stencil/internal/schema"
	"github.com/jackzampolin/stencil/internal/store"
	"github.com/jackzampolin/stencil/internal/svcctx"
	"github.com/jackzampolin/stencil/internal/validate"
)

var (
	valDataFile string
	valNoWrite  bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <library> <document>",
	Short: "Check every pattern in a library against its source document",
	Long: `Validate compiles each pattern, applies it to the document text, and
compares the first captured value byte-for-byte with the recorded
example match. Each field is reported as valid, mismatch, not_found,
or invalid_pattern, and the report is written to
<document stem>_validation.json.

The library argument is a path, or a bare name resolved against
~/.stencil/libraries. With --data, claimed values from a .data.json
file are merged into the report for agreement counting.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := setupServices()
		if err != nil {
			return err
		}
		defer cleanup()
		ctx := svcctx.WithServices(cmd.Context(), svc)

		lib, err := loadLibraryFile(svc.Home, args[0])
		if err != nil {
			return err
		}
		if valDataFile != "" {
			b, err := os.ReadFile(valDataFile)
			if err != nil {
				return fmt.Errorf("read data file: %w", err)
			}
			data, err := schema.LoadData(b)
			if err != nil {
				return fmt.Errorf("load data file: %w", err)
			}
			lib, err = lib.WithClaims(data)
			if err != nil {
				return err
			}
		}

		doc, err := document.LoadFile(args[1])
		if err != nil {
			return err
		}

		started := time.Now()
		vr, err := validate.Validate(ctx, lib, doc)
		if err != nil {
			return err
		}
		merged := report.Merge(lib, doc.ID, vr, nil)

		if !valNoWrite {
			if err := api.WriteJSONFile(artifactPath(args[1], "_validation.json"), merged); err != nil {
				return err
			}
		}

		run := store.Run{
			RunID:          uuid.NewString(),
			Kind:           "validate",
			DocumentID:     doc.ID,
			Valid:          merged.Totals.Valid,
			Mismatch:       merged.Totals.Mismatch,
			NotFound:       merged.Totals.NotFound,
			InvalidPattern: merged.Totals.InvalidPattern,
			DurationMS:     time.Since(started).Milliseconds(),
		}
		if err := svc.Runs.RecordRun(ctx, run); err != nil {
			svc.Logger.Warn("run history write failed", "error", err)
		}

		return api.Output(merged)
	},
}

func init() {
	validateCmd.Flags().StringVar(&valDataFile, "data", "", "claimed values file (.data.json) to merge into the report")
	validateCmd.Flags().BoolVar(&valNoWrite, "no-write", false, "print the report without writing <stem>_validation.json")

	rootCmd.AddCommand(validateCmd)
}
