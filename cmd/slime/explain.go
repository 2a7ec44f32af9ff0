package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"slime/internal/dataset"
	"slime/internal/explain"
	"slime/internal/pipeline"
	"slime/internal/predict"
	"slime/internal/store"
	"slime/internal/ux"
)

var (
	explainData     string
	explainLabelCol string
	explainRow      int
	explainModelCmd string
	explainSamples  int
	explainFeatures int
	explainMethod   string
	explainWidth    float64
	explainAlpha    float64
	explainNoStable bool
	explainRounds   int
	explainCutoff   float64
	explainSave     bool

	pipe *pipeline.Pipeline
)

// explainCmd runs one explanation from a CSV dataset
var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Explain one instance of a tabular dataset",
	Long: `Fits a stability-filtered local surrogate and prints the feature
weights.

Two modes:

  With --model-cmd, the chosen --row is perturbed into a gaussian
  neighborhood and the external command is asked to score it. The
  command receives CSV rows on stdin and must print one prediction
  per line:

    slime explain --data train.csv --row 17 --model-cmd "python score.py"

  Without --model-cmd, the CSV is treated as a precomputed
  neighborhood whose first row is the instance, with model outputs in
  --label-col:

    slime explain --data neighborhood.csv --label-col pred`,
	RunE: runExplain,
}

func init() {
	explainCmd.Flags().StringVar(&explainData, "data", "", "CSV dataset (required)")
	explainCmd.Flags().StringVar(&explainLabelCol, "label-col", "", "column holding model predictions")
	explainCmd.Flags().IntVar(&explainRow, "row", 0, "instance row index")
	explainCmd.Flags().StringVar(&explainModelCmd, "model-cmd", "", "external command scoring CSV rows from stdin")
	explainCmd.Flags().IntVar(&explainSamples, "samples", 0, "perturbation neighborhood size")
	explainCmd.Flags().IntVar(&explainFeatures, "num-features", 0, "feature selection budget")
	explainCmd.Flags().StringVar(&explainMethod, "method", "", "selection method: none, forward, highest-weights, lasso-path, auto")
	explainCmd.Flags().Float64Var(&explainWidth, "kernel-width", 0, "kernel width (default 0.75*sqrt(features))")
	explainCmd.Flags().Float64Var(&explainAlpha, "alpha", 0, "significance level of the path test")
	explainCmd.Flags().BoolVar(&explainNoStable, "no-stabilize", false, "skip the sign-entropy stability filter")
	explainCmd.Flags().IntVar(&explainRounds, "rounds", 0, "stability elimination rounds")
	explainCmd.Flags().Float64Var(&explainCutoff, "threshold", 0, "sign-entropy cutoff in bits")
	explainCmd.Flags().BoolVar(&explainSave, "save", false, "persist the run to the database")
	_ = explainCmd.MarkFlagRequired("data")
}

func runExplain(cmd *cobra.Command, args []string) error {
	applyExplainFlags()

	d, err := dataset.Load(explainData, explainLabelCol)
	if err != nil {
		return err
	}
	pipe = pipeline.New(cfg, logger)

	var exp *explain.Explanation
	var instance []float64

	if explainModelCmd != "" {
		model, err := predict.NewCommand(explainModelCmd)
		if err != nil {
			return err
		}
		instance, err = d.Row(explainRow)
		if err != nil {
			return err
		}
		exp, err = pipe.ExplainInstance(cmd.Context(), d.X, instance, model.Func())
		if err != nil {
			return err
		}
	} else {
		if d.Labels == nil {
			return fmt.Errorf("either --model-cmd or --label-col is required")
		}
		if explainRow != 0 {
			return fmt.Errorf("--row only applies with --model-cmd; a precomputed neighborhood explains its first row")
		}
		instance, err = d.Row(0)
		if err != nil {
			return err
		}
		exp, err = pipe.ExplainNeighborhood(d.X, d.Labels, nil)
		if err != nil {
			return err
		}
	}

	fmt.Print(ux.Render(exp, d.Names))

	if explainSave {
		return saveExplanation(exp, instance, d.Names)
	}
	return nil
}

// saveExplanation persists a finished run when a database is
// configured.
func saveExplanation(exp *explain.Explanation, instance []float64, names []string) error {
	if cfg.Storage.DatabasePath == "" {
		return fmt.Errorf("--save requires --db or storage.database_path")
	}
	runs, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer runs.Close()

	id, err := runs.SaveRun(&store.Run{
		Dataset:      explainData,
		Instance:     instance,
		Params:       pipe.Params(),
		Result:       exp,
		FeatureNames: names,
	})
	if err != nil {
		return err
	}
	logger.Info("run saved", zap.String("id", id))
	fmt.Println("saved run", id)
	return nil
}

// applyExplainFlags folds explicit flags over the loaded config.
func applyExplainFlags() {
	if explainSamples > 0 {
		cfg.Sampling.Samples = explainSamples
	}
	if explainFeatures > 0 {
		cfg.Selection.NumFeatures = explainFeatures
	}
	if explainMethod != "" {
		cfg.Selection.Method = explainMethod
	}
	if explainWidth > 0 {
		cfg.Sampling.KernelWidth = explainWidth
	}
	if explainAlpha > 0 {
		cfg.Selection.Alpha = explainAlpha
	}
	if explainNoStable {
		cfg.Stability.Enabled = false
	}
	if explainRounds > 0 {
		cfg.Stability.Rounds = explainRounds
	}
	if explainCutoff > 0 {
		cfg.Stability.Threshold = explainCutoff
	}
}
