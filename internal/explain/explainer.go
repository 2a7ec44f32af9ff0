package explain

import (
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"slime/internal/kernel"
	"slime/internal/linmodel"
	"slime/internal/stability"
)

// autoSwitch is the budget below which auto selection prefers forward
// selection over highest weights.
const autoSwitch = 6

// surrogateAlpha is the ridge strength of the final surrogate fit.
const surrogateAlpha = 1.0

// Explainer fits local surrogate explanations over a perturbation
// neighborhood whose first row is the unperturbed instance.
type Explainer struct {
	kernel kernel.Fn
	rng    *rand.Rand
	log    *zap.Logger
}

// New builds an explainer. A nil logger is replaced with a nop logger.
func New(fn kernel.Fn, rng *rand.Rand, log *zap.Logger) *Explainer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Explainer{kernel: fn, rng: rng, log: log}
}

// Options controls a plain explanation.
type Options struct {
	// NumFeatures is the selection budget.
	NumFeatures int
	// Method picks the selection strategy.
	Method Method
}

// StableOptions controls a stability-filtered explanation.
type StableOptions struct {
	// NumFeatures is the selection budget for the unstabilized walk.
	NumFeatures int
	// Alpha is the significance level of the path covariance test.
	Alpha float64
	// Stabilize toggles the sign-entropy elimination pass.
	Stabilize bool
	// Stratified switches the filter bootstrap to label strata.
	Stratified bool
	// Rounds, Threshold and FitsPerRound override the filter
	// defaults when nonzero.
	Rounds       int
	Threshold    float64
	FitsPerRound int
	// WeightAdjustments, when set, multiply the distances before the
	// kernel is applied; one entry per neighborhood row.
	WeightAdjustments []float64
}

// Explain selects features with opts.Method and fits the ridge
// surrogate on them.
func (e *Explainer) Explain(data mat.Matrix, labels, distances []float64, opts Options) (*Explanation, error) {
	if err := checkShapes(data, labels, distances); err != nil {
		return nil, err
	}
	weights := kernel.Apply(e.kernel, distances)

	used, err := e.selectFeatures(data, labels, weights, opts.NumFeatures, opts.Method)
	if err != nil {
		return nil, err
	}
	return e.fitSurrogate(data, labels, weights, used, nil)
}

// ExplainStable runs the stabilized pipeline: optional weight
// adjustments, sign-entropy elimination over bootstrap refits, lasso
// path selection with significance testing, then the surrogate fit on
// the surviving features.
func (e *Explainer) ExplainStable(data mat.Matrix, labels, distances []float64, opts StableOptions) (*Explanation, error) {
	if err := checkShapes(data, labels, distances); err != nil {
		return nil, err
	}
	if opts.Alpha == 0 {
		opts.Alpha = 0.05
	}

	d := distances
	if opts.WeightAdjustments != nil {
		if len(opts.WeightAdjustments) != len(distances) {
			return nil, fmt.Errorf("explain: %d weight adjustments for %d rows",
				len(opts.WeightAdjustments), len(distances))
		}
		d = make([]float64, len(distances))
		for i := range d {
			d[i] = distances[i] * opts.WeightAdjustments[i]
		}
	}
	weights := kernel.Apply(e.kernel, d)

	var filtered *stability.Result
	if opts.Stabilize {
		f := stability.New(e.rng, e.log)
		if opts.Rounds > 0 {
			f.Rounds = opts.Rounds
		}
		if opts.Threshold > 0 {
			f.Threshold = opts.Threshold
		}
		f.FitsPerRound = opts.FitsPerRound
		f.Stratified = opts.Stratified
		var err error
		filtered, err = f.Eliminate(data, labels)
		if err != nil {
			return nil, err
		}
	}

	used, pvals, err := lassoPathTested(data, labels, weights, opts.NumFeatures, opts.Alpha, opts.Stabilize)
	if err != nil {
		return nil, err
	}

	if filtered != nil && len(filtered.Eliminated) > 0 {
		kept := used[:0:0]
		for _, j := range used {
			if !filtered.IsEliminated(j) {
				kept = append(kept, j)
			}
		}
		// Everything unstable: better a shaky explanation than none.
		// The kept features are then no longer eliminated; used and
		// eliminated stay disjoint.
		if len(kept) == 0 {
			e.log.Warn("stability filter eliminated every selected feature, keeping original selection",
				zap.Ints("selection", used))
			filtered.Eliminated = without(filtered.Eliminated, used)
		} else {
			used = kept
		}
	}

	exp, err := e.fitSurrogate(data, labels, weights, used, filtered)
	if err != nil {
		return nil, err
	}
	exp.PValues = pvals
	return exp, nil
}

func (e *Explainer) selectFeatures(data mat.Matrix, labels, weights []float64, k int, m Method) ([]int, error) {
	_, p := data.Dims()
	switch m {
	case MethodNone:
		all := make([]int, p)
		for j := range all {
			all[j] = j
		}
		return all, nil
	case MethodForward:
		return forwardSelection(data, labels, weights, k)
	case MethodHighestWeights:
		return highestWeights(data, labels, weights, k)
	case MethodLassoPath:
		return lassoPath(data, labels, weights, k)
	case MethodAuto:
		if k <= autoSwitch {
			return forwardSelection(data, labels, weights, k)
		}
		return highestWeights(data, labels, weights, k)
	}
	return nil, fmt.Errorf("explain: unknown feature selection method %q", m)
}

func (e *Explainer) fitSurrogate(data mat.Matrix, labels, weights []float64, used []int, filtered *stability.Result) (*Explanation, error) {
	if len(used) == 0 {
		return nil, fmt.Errorf("explain: empty feature selection")
	}
	sort.Ints(used)

	x := pick(data, used)
	m := linmodel.NewRidge(surrogateAlpha)
	if err := m.Fit(x, labels, weights); err != nil {
		return nil, fmt.Errorf("explain: surrogate fit: %w", err)
	}

	exp := &Explanation{
		Intercept: m.Intercept(),
		Score:     m.Score(x, labels, weights),
		LocalPred: m.Predict(x.Slice(0, 1, 0, len(used)))[0],
		Used:      used,
	}
	coef := m.Coef()
	for i, j := range used {
		exp.Weights = append(exp.Weights, FeatureWeight{Feature: j, Weight: coef[i]})
	}
	sortWeights(exp.Weights)

	if filtered != nil {
		exp.SignEntropy = filtered.Entropy
		exp.Eliminated = filtered.Eliminated
	}

	e.log.Debug("surrogate fitted",
		zap.Float64("score", exp.Score),
		zap.Float64("local_pred", exp.LocalPred),
		zap.Ints("used", used))
	return exp, nil
}

// without filters the drop indices out of elim, preserving order.
func without(elim, drop []int) []int {
	out := elim[:0:0]
	for _, j := range elim {
		found := false
		for _, d := range drop {
			if d == j {
				found = true
				break
			}
		}
		if !found {
			out = append(out, j)
		}
	}
	return out
}

func checkShapes(data mat.Matrix, labels, distances []float64) error {
	n, p := data.Dims()
	if n == 0 || p == 0 {
		return fmt.Errorf("explain: empty neighborhood (%dx%d)", n, p)
	}
	if len(labels) != n {
		return fmt.Errorf("explain: %d rows but %d labels", n, len(labels))
	}
	if len(distances) != n {
		return fmt.Errorf("explain: %d rows but %d distances", n, len(distances))
	}
	return nil
}
