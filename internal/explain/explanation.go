// Package explain fits a weighted sparse linear surrogate to a
// perturbation neighborhood and reports the resulting local feature
// weights, optionally filtered for sign stability.
package explain

import (
	"fmt"
	"sort"
)

// FeatureWeight is one surrogate coefficient, sorted by |Weight|.
type FeatureWeight struct {
	Feature int     `json:"feature"`
	Weight  float64 `json:"weight"`
}

// Explanation is the fitted local surrogate around an instance.
type Explanation struct {
	// Intercept of the surrogate model.
	Intercept float64 `json:"intercept"`
	// Weights sorted by descending absolute value, ties by feature
	// index.
	Weights []FeatureWeight `json:"weights"`
	// Score is the weighted R² of the surrogate on the neighborhood.
	Score float64 `json:"score"`
	// LocalPred is the surrogate prediction on the unperturbed
	// instance (row 0 of the neighborhood).
	LocalPred float64 `json:"local_pred"`
	// Used holds the selected feature indices, ascending.
	Used []int `json:"used"`
	// PValues are the covariance-test p-values per lasso path entry,
	// present only for the stabilized path.
	PValues []float64 `json:"p_values,omitempty"`
	// SignEntropy holds per-feature sign entropies from the stability
	// filter, present only when stabilization ran.
	SignEntropy map[int]float64 `json:"sign_entropy,omitempty"`
	// Eliminated lists features removed by the stability filter.
	Eliminated []int `json:"eliminated,omitempty"`
}

func sortWeights(ws []FeatureWeight) {
	sort.Slice(ws, func(a, b int) bool {
		wa, wb := abs(ws[a].Weight), abs(ws[b].Weight)
		if wa != wb {
			return wa > wb
		}
		return ws[a].Feature < ws[b].Feature
	})
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Method names a feature selection strategy.
type Method string

const (
	// MethodNone keeps every feature.
	MethodNone Method = "none"
	// MethodForward greedily adds the feature that most improves the
	// weighted fit. Costly for large budgets.
	MethodForward Method = "forward"
	// MethodHighestWeights ranks features by |coefficient · instance
	// value| of a full ridge fit.
	MethodHighestWeights Method = "highest-weights"
	// MethodLassoPath walks the lasso regularization path back to the
	// first knot within budget.
	MethodLassoPath Method = "lasso-path"
	// MethodAuto picks forward selection for budgets of six or fewer
	// features, highest weights otherwise.
	MethodAuto Method = "auto"
)

// ParseMethod validates a method name from config or a CLI flag.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodNone, MethodForward, MethodHighestWeights, MethodLassoPath, MethodAuto:
		return m, nil
	}
	return "", fmt.Errorf("explain: unknown feature selection method %q", s)
}
