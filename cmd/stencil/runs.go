package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/stencil/internal/api"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent generate, validate, and apply runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := setupServices()
		if err != nil {
			return err
		}
		defer cleanup()

		runs, err := svc.Runs.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		return api.Output(runs)
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to show")

	rootCmd.AddCommand(runsCmd)
}
