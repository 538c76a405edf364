package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/stencil/internal/api"
	"github.com/jackzampolin/stencil/internal/config"
	"github.com/jackzampolin/stencil/internal/home"
	"github.com/jackzampolin/stencil/internal/providers"
	"github.com/jackzampolin/stencil/internal/schema"
	"github.com/jackzampolin/stencil/internal/store"
	"github.com/jackzampolin/stencil/internal/svcctx"
	"github.com/jackzampolin/stencil/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "stencil",
	Short: "Regex pattern libraries for LLM-assisted document extraction",
	Long: `Stencil turns LLM-proposed regex patterns into reusable extraction
libraries for structured documents.

The workflow:
  - generate: ask an LLM to extract fields from a document and propose a
    regex pattern for each one
  - validate: check every pattern against its source document, comparing
    the captured value with the LLM's claimed example
  - apply: reuse a validated library on new documents of the same layout,
    ranking candidate matches by their context anchors`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.stencil/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "stencil home directory (default: ~/.stencil)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}
}

// setupServices builds the shared services for a command invocation. The
// returned cleanup must be called before the command exits.
func setupServices() (*svcctx.Services, func(), error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, nil, err
	}

	cm, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	registry := providers.NewRegistry()
	registry.SetLogger(logger)
	if err := registry.LoadFromConfig(cm.Get().ToProviderRegistryConfig()); err != nil {
		return nil, nil, err
	}
	cm.OnChange(func(cfg *config.Config) {
		if err := registry.LoadFromConfig(cfg.ToProviderRegistryConfig()); err != nil {
			logger.Warn("provider reload failed", "error", err)
		}
	})

	runs, err := store.Open(h.RunsDBPath())
	if err != nil {
		return nil, nil, err
	}

	svc := &svcctx.Services{
		Config:   cm,
		Registry: registry,
		Logger:   logger,
		Home:     h,
		Runs:     runs,
	}
	cleanup := func() { runs.Close() }
	return svc, cleanup, nil
}

// loadLibraryFile reads a pattern library, resolving bare names against the
// home libraries directory.
func loadLibraryFile(h *home.Dir, path string) (*schema.Library, error) {
	candidate := path
	if _, err := os.Stat(candidate); err != nil && !strings.ContainsRune(path, os.PathSeparator) {
		candidate = h.LibraryPath(strings.TrimSuffix(path, ".regex.json"))
	}
	b, err := os.ReadFile(candidate)
	if err != nil {
		return nil, fmt.Errorf("read library: %w", err)
	}
	lib, err := schema.LoadLibrary(b)
	if err != nil {
		return nil, fmt.Errorf("load library %s: %w", candidate, err)
	}
	return lib, nil
}

// artifactPath builds a sibling output path from a source document path,
// e.g. artifactPath("doc.pdf", ".regex.json") -> "doc.regex.json".
func artifactPath(docPath, suffix string) string {
	base := strings.TrimSuffix(docPath, filepath.Ext(docPath))
	return base + suffix
}
