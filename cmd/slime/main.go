package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"slime/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dbPath     string
	seed       int64

	// Logger
	logger *zap.Logger

	// Loaded configuration
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "slime",
	Short: "slime - stability-aware local surrogate explanations",
	Long: `slime explains individual predictions of an opaque model by fitting
a sparse linear surrogate to a perturbation neighborhood around the
instance, then filtering the selected features by the entropy of their
coefficient signs across repeated bootstrap refits. Features whose
signs flip freely between resamples are unstable and get dropped from
the explanation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Storage.DatabasePath = dbPath
		}
		if cmd.Root().PersistentFlags().Changed("seed") {
			cfg.Sampling.Seed = seed
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "slime.yaml", "path to YAML config")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database for persisted runs")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "random seed (0 means time-based)")

	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
