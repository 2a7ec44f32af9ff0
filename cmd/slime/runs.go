package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"slime/internal/store"
	"slime/internal/ux"
)

var runsLimit int

// runsCmd groups the persisted-run subcommands
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect persisted explanation runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := openRuns()
		if err != nil {
			return err
		}
		defer runs.Close()

		summaries, err := runs.ListRuns(runsLimit)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("no runs")
			return nil
		}
		for _, s := range summaries {
			fmt.Println(ux.RenderSummaryLine(s.ID, s.Dataset, s.Score, s.Features))
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one run in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := openRuns()
		if err != nil {
			return err
		}
		defer runs.Close()

		run, err := runs.GetRun(args[0])
		if err != nil {
			return err
		}
		fmt.Print(ux.Render(run.Result, run.FeatureNames))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run.Params)
	},
}

var runsRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := openRuns()
		if err != nil {
			return err
		}
		defer runs.Close()

		if err := runs.DeleteRun(args[0]); err != nil {
			return err
		}
		fmt.Println("deleted", args[0])
		return nil
	},
}

func openRuns() (*store.Store, error) {
	if cfg.Storage.DatabasePath == "" {
		return nil, fmt.Errorf("no database configured; pass --db or set storage.database_path")
	}
	return store.Open(cfg.Storage.DatabasePath)
}

func init() {
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsRmCmd)
}
