package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/stencil/internal/agents/patterngen"
	"github.com/jackzampolin/stencil/internal/api"
	"github.com/jackzampolin/stencil/internal/document"
	"github.com/jackzampolin/stencil/internal/providers"
	"github.com/jackzampolin/stencil/internal/report"
	"github.com/jackzampolin/stencil/internal/schema"
	"github.com/jackzampolin/stencil/internal/store"
	"github.com/jackzampolin/stencil/internal/svcctx"
	"github.com/jackzampolin/stencil/internal/validate"
)

var (
	genProvider string
	genModel    string
	genHints    []string
	genSaveLib  string
)

var generateCmd = &cobra.Command{
	Use:   "generate <document>",
	Short: "Ask an LLM to extract fields and propose a regex pattern library",
	Long: `Generate sends a document to an LLM which extracts its fields and
proposes one regex pattern per field. Results are written next to the
document:

  <stem>.regex.json       the proposed pattern library
  <stem>.data.json        the values the model claims to have extracted
  <stem>_validation.json  every pattern checked against the document

If the model's response cannot be parsed as structured JSON, the raw
response is preserved in <stem>_error.json instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := setupServices()
		if err != nil {
			return err
		}
		defer cleanup()
		ctx := svcctx.WithServices(cmd.Context(), svc)

		doc, err := document.LoadFile(args[0])
		if err != nil {
			return err
		}

		providerName := genProvider
		if providerName == "" {
			providerName = svc.Config.Get().DefaultProvider
		}
		client, err := svc.Registry.Get(providerName)
		if err != nil {
			return err
		}

		runID := uuid.NewString()
		started := time.Now()
		svc.Logger.Info("generating patterns",
			"document", doc.ID, "provider", providerName, "run_id", runID)

		result, err := client.Chat(ctx, &providers.ChatRequest{
			Messages: []providers.Message{
				{Role: "system", Content: patterngen.SystemPrompt()},
				{Role: "user", Content: patterngen.BuildUserPrompt(patterngen.UserPromptData{
					DocumentID: doc.ID,
					Text:       doc.Text,
					Hints:      genHints,
				})},
			},
			Model: genModel,
			ResponseFormat: &providers.ResponseFormat{
				Type:       "json_schema",
				Name:       "pattern_library",
				JSONSchema: patterngen.JSONSchemaBytes(),
			},
			RequestID: runID,
		})
		if err != nil {
			recordGenRun(ctx, svc, runID, doc.ID, providerName, started, nil, err)
			return fmt.Errorf("llm request: %w", err)
		}

		if result.ParsedJSON == nil {
			// Keep the raw response so the failure can be inspected and the
			// prompt retried without losing the model's output.
			errPath := artifactPath(args[0], "_error.json")
			if werr := api.WriteJSONFile(errPath, map[string]any{
				"document_id":  doc.ID,
				"provider":     result.Provider,
				"model":        result.ModelUsed,
				"error":        "response is not valid structured JSON",
				"raw_response": result.Content,
			}); werr != nil {
				return werr
			}
			parseErr := fmt.Errorf("unparseable model response, raw output saved to %s", errPath)
			recordGenRun(ctx, svc, runID, doc.ID, providerName, started, nil, parseErr)
			return parseErr
		}

		lib, err := schema.FromModelResponse(result.ParsedJSON)
		if err != nil {
			errPath := artifactPath(args[0], "_error.json")
			if werr := api.WriteJSONFile(errPath, map[string]any{
				"document_id":  doc.ID,
				"provider":     result.Provider,
				"model":        result.ModelUsed,
				"error":        err.Error(),
				"raw_response": result.Content,
			}); werr != nil {
				return werr
			}
			recordGenRun(ctx, svc, runID, doc.ID, providerName, started, nil, err)
			return fmt.Errorf("model response rejected: %w, raw output saved to %s", err, errPath)
		}

		info := schema.FileInfo{
			SourceFile:    args[0],
			PatternSource: "llm",
			Model:         result.ModelUsed,
		}

		libBytes, err := schema.MarshalLibrary(lib, info)
		if err != nil {
			return err
		}
		libPath := artifactPath(args[0], ".regex.json")
		if err := api.WriteRawFile(libPath, libBytes); err != nil {
			return err
		}

		dataPath := artifactPath(args[0], ".data.json")
		if err := api.WriteJSONFile(dataPath, struct {
			FileInfo      schema.FileInfo `json:"file_info"`
			ExtractedData schema.Data     `json:"extracted_data"`
		}{info, lib.Claims()}); err != nil {
			return err
		}

		vr, err := validate.Validate(ctx, lib, doc)
		if err != nil {
			return err
		}
		merged := report.Merge(lib, doc.ID, vr, nil)
		if err := api.WriteJSONFile(artifactPath(args[0], "_validation.json"), merged); err != nil {
			return err
		}

		if genSaveLib != "" {
			if err := api.WriteRawFile(svc.Home.LibraryPath(genSaveLib), libBytes); err != nil {
				return err
			}
		}

		recordGenRun(ctx, svc, runID, doc.ID, providerName, started, merged, nil)
		svc.Logger.Info("patterns generated",
			"document", doc.ID,
			"fields", lib.FieldCount(),
			"valid", merged.Totals.Valid,
			"tokens", result.TotalTokens)
		return api.Output(merged)
	},
}

func recordGenRun(ctx context.Context, svc *svcctx.Services, runID, docID, provider string, started time.Time, res *report.Result, runErr error) {
	run := store.Run{
		RunID:      runID,
		Kind:       "generate",
		DocumentID: docID,
		Provider:   provider,
		DurationMS: time.Since(started).Milliseconds(),
	}
	if res != nil {
		run.Valid = res.Totals.Valid
		run.Mismatch = res.Totals.Mismatch
		run.NotFound = res.Totals.NotFound
		run.InvalidPattern = res.Totals.InvalidPattern
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := svc.Runs.RecordRun(ctx, run); err != nil {
		svc.Logger.Warn("run history write failed", "error", err)
	}
}

func init() {
	generateCmd.Flags().StringVar(&genProvider, "provider", "", "LLM provider name from config (default: default_provider)")
	generateCmd.Flags().StringVar(&genModel, "model", "", "override the provider's default model")
	generateCmd.Flags().StringSliceVar(&genHints, "hint", nil, "section or field hints passed to the model (repeatable)")
	generateCmd.Flags().StringVar(&genSaveLib, "save", "", "also save the library under ~/.stencil/libraries/<name>.regex.json")

	rootCmd.AddCommand(generateCmd)
}
