package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"slime/internal/config"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Sampling.Samples = 300
	cfg.Sampling.Seed = 42
	cfg.Selection.NumFeatures = 2
	cfg.Stability.FitsPerRound = 40
	return cfg
}

// linearModel scores rows as 3*x0 - 2*x1, ignoring other columns.
func linearModel(_ context.Context, x mat.Matrix) ([]float64, error) {
	n, _ := x.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = 3*x.At(i, 0) - 2*x.At(i, 1)
	}
	return out, nil
}

func trainMatrix() *mat.Dense {
	return mat.NewDense(4, 3, []float64{
		1, 10, 100,
		2, 20, 200,
		3, 30, 300,
		4, 40, 400,
	})
}

func TestExplainInstanceEndToEnd(t *testing.T) {
	p := New(testConfig(), nil)

	exp, err := p.ExplainInstance(context.Background(), trainMatrix(), []float64{2.5, 25, 250}, linearModel)
	require.NoError(t, err)

	assert.Contains(t, exp.Used, 0)
	assert.Contains(t, exp.Used, 1)
	assert.NotContains(t, exp.Used, 2)
	assert.Greater(t, exp.Score, 0.9)
	assert.NotEmpty(t, exp.PValues)
}

func TestExplainInstanceDeterministicUnderSeed(t *testing.T) {
	run := func() []float64 {
		p := New(testConfig(), nil)
		exp, err := p.ExplainInstance(context.Background(), trainMatrix(), []float64{2.5, 25, 250}, linearModel)
		require.NoError(t, err)
		out := make([]float64, len(exp.Weights))
		for i, w := range exp.Weights {
			out[i] = w.Weight
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestExplainInstanceModelFailure(t *testing.T) {
	p := New(testConfig(), nil)
	failing := func(context.Context, mat.Matrix) ([]float64, error) {
		return nil, errors.New("model unavailable")
	}
	_, err := p.ExplainInstance(context.Background(), trainMatrix(), []float64{1, 1, 1}, failing)
	assert.Error(t, err)

	_, err = p.ExplainInstance(context.Background(), trainMatrix(), []float64{1, 1, 1}, nil)
	assert.Error(t, err)
}

func TestExplainNeighborhoodNonLassoMethod(t *testing.T) {
	cfg := testConfig()
	cfg.Selection.Method = "forward"
	p := New(cfg, nil)

	exp, err := p.ExplainInstance(context.Background(), trainMatrix(), []float64{2.5, 25, 250}, linearModel)
	require.NoError(t, err)
	assert.Len(t, exp.Used, 2)
	// Plain methods carry no stability annotations.
	assert.Empty(t, exp.PValues)
	assert.Empty(t, exp.Eliminated)
}

func TestParamsRoundTrip(t *testing.T) {
	p := New(testConfig(), nil)
	params := p.Params()
	assert.Equal(t, 300, params["samples"])
	assert.Equal(t, "lasso-path", params["method"])
	assert.Equal(t, true, params["stabilize"])
}
