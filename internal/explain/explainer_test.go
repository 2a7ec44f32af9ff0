package explain

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"slime/internal/kernel"
)

// neighborhood builds a gaussian cloud around the origin where only
// the first two of p features drive the labels. Row 0 is the instance.
func neighborhood(n, p int, seed int64) (*mat.Dense, []float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, p, nil)
	// Instance at a distinctive point.
	for j := 0; j < p; j++ {
		x.Set(0, j, 1)
	}
	for i := 1; i < n; i++ {
		for j := 0; j < p; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
	}
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = 4*x.At(i, 0) - 3*x.At(i, 1) + 0.01*rng.NormFloat64()
	}
	d, err := kernel.Euclidean(x, 0)
	if err != nil {
		panic(err)
	}
	return x, y, d
}

func newTestExplainer(seed int64, p int) *Explainer {
	return New(kernel.Exponential(kernel.DefaultWidth(p)), rand.New(rand.NewSource(seed)), nil)
}

func TestExplainRecoversSignalFeatures(t *testing.T) {
	for _, method := range []Method{MethodForward, MethodHighestWeights, MethodLassoPath, MethodAuto} {
		t.Run(string(method), func(t *testing.T) {
			x, y, d := neighborhood(300, 5, 1)
			e := newTestExplainer(2, 5)

			exp, err := e.Explain(x, y, d, Options{NumFeatures: 2, Method: method})
			require.NoError(t, err)

			require.Len(t, exp.Used, 2)
			assert.Equal(t, []int{0, 1}, exp.Used)
			assert.Greater(t, exp.Score, 0.9)

			// Sorted by |weight|: feature 0 (weight ~4) first.
			assert.Equal(t, 0, exp.Weights[0].Feature)
			assert.Greater(t, exp.Weights[0].Weight, 0.0)
			assert.Less(t, exp.Weights[1].Weight, 0.0)
		})
	}
}

func TestExplainMethodNoneKeepsAll(t *testing.T) {
	x, y, d := neighborhood(200, 4, 3)
	e := newTestExplainer(4, 4)

	exp, err := e.Explain(x, y, d, Options{NumFeatures: 1, Method: MethodNone})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, exp.Used)
	assert.Len(t, exp.Weights, 4)
}

func TestExplainLocalPredNearLabel(t *testing.T) {
	x, y, d := neighborhood(400, 3, 5)
	e := newTestExplainer(6, 3)

	exp, err := e.Explain(x, y, d, Options{NumFeatures: 2, Method: MethodLassoPath})
	require.NoError(t, err)
	// Surrogate evaluated on the instance should land near its label.
	assert.InDelta(t, y[0], exp.LocalPred, 0.5)
}

func TestExplainStableDropsUnstableFeature(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	n := 250
	x := mat.NewDense(n, 3, nil)
	for j := 0; j < 3; j++ {
		x.Set(0, j, 0.5)
	}
	y := make([]float64, n)
	for i := 1; i < n; i++ {
		for j := 0; j < 3; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
	}
	for i := 0; i < n; i++ {
		// Feature 2 is noise with no relation to the label.
		y[i] = 5*x.At(i, 0) + 4*x.At(i, 1) + 0.5*rng.NormFloat64()
	}
	d, err := kernel.Euclidean(x, 0)
	require.NoError(t, err)

	e := newTestExplainer(9, 3)
	exp, err := e.ExplainStable(x, y, d, StableOptions{
		NumFeatures:  3,
		Stabilize:    true,
		FitsPerRound: 60,
	})
	require.NoError(t, err)

	assert.Contains(t, exp.Eliminated, 2)
	assert.NotContains(t, exp.Used, 2)
	assert.Contains(t, exp.Used, 0)
	assert.Contains(t, exp.Used, 1)
	assert.NotEmpty(t, exp.PValues)
	assert.NotEmpty(t, exp.SignEntropy)
}

func TestExplainStableAllUnstableKeepsSelection(t *testing.T) {
	// Pure noise labels: every bootstrap coefficient sign is close to
	// a coin flip, so a tight threshold eliminates every feature.
	rng := rand.New(rand.NewSource(21))
	n := 300
	x := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
		y[i] = rng.NormFloat64()
	}
	d, err := kernel.Euclidean(x, 0)
	require.NoError(t, err)

	e := newTestExplainer(22, 3)
	exp, err := e.ExplainStable(x, y, d, StableOptions{
		NumFeatures:  3,
		Stabilize:    true,
		FitsPerRound: 100,
		Threshold:    0.05,
	})
	require.NoError(t, err)

	require.NotEmpty(t, exp.Used)
	for _, j := range exp.Used {
		assert.NotContains(t, exp.Eliminated, j, "feature %d both used and eliminated", j)
	}
	assert.NotEmpty(t, exp.SignEntropy)
}

func TestExplainConstantLabelsKeepsAllFeatures(t *testing.T) {
	x, _, d := neighborhood(100, 4, 31)
	y := make([]float64, 100)

	e := newTestExplainer(32, 4)
	exp, err := e.Explain(x, y, d, Options{NumFeatures: 2, Method: MethodLassoPath})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, exp.Used)
	for _, w := range exp.Weights {
		assert.InDelta(t, 0, w.Weight, 1e-9)
	}

	exp, err = e.ExplainStable(x, y, d, StableOptions{NumFeatures: 2, Stabilize: true, FitsPerRound: 20})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, exp.Used)
}

func TestExplainStableWeightAdjustments(t *testing.T) {
	x, y, d := neighborhood(150, 3, 11)
	e := newTestExplainer(12, 3)

	adj := make([]float64, len(d))
	for i := range adj {
		adj[i] = 1
	}
	expA, err := e.ExplainStable(x, y, d, StableOptions{NumFeatures: 2, WeightAdjustments: adj})
	require.NoError(t, err)
	expB, err := e.ExplainStable(x, y, d, StableOptions{NumFeatures: 2})
	require.NoError(t, err)
	assert.Equal(t, expB.Used, expA.Used)

	_, err = e.ExplainStable(x, y, d, StableOptions{NumFeatures: 2, WeightAdjustments: []float64{1}})
	assert.Error(t, err)
}

func TestExplainShapeErrors(t *testing.T) {
	e := newTestExplainer(1, 2)
	x := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})

	_, err := e.Explain(x, []float64{1, 2}, []float64{0, 1, 2}, Options{NumFeatures: 1, Method: MethodAuto})
	assert.Error(t, err)

	_, err = e.Explain(x, []float64{1, 2, 3}, []float64{0, 1}, Options{NumFeatures: 1, Method: MethodAuto})
	assert.Error(t, err)

	_, err = e.Explain(x, []float64{1, 2, 3}, []float64{0, 1, 2}, Options{NumFeatures: 1, Method: "bogus"})
	assert.Error(t, err)
}

func TestParseMethod(t *testing.T) {
	for _, s := range []string{"none", "forward", "highest-weights", "lasso-path", "auto"} {
		m, err := ParseMethod(s)
		require.NoError(t, err)
		assert.Equal(t, Method(s), m)
	}
	_, err := ParseMethod("ridge")
	assert.Error(t, err)
}
