package stability

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSignEntropy(t *testing.T) {
	tests := []struct {
		name  string
		coefs []float64
		want  float64
	}{
		{"empty", nil, 0},
		{"all positive", []float64{1, 2, 0.5}, 0},
		{"all negative", []float64{-1, -2}, 0},
		{"even split", []float64{1, -1, 2, -2}, 1},
		{"three way even", []float64{1, -1, 0}, math.Log2(3)},
		{"skewed", []float64{1, 1, 1, -1}, -0.75*math.Log2(0.75) - 0.25*math.Log2(0.25)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SignEntropy(tt.coefs), 1e-12)
		})
	}
}

// noisyNeighborhood builds a neighborhood where feature 0 carries a
// strong stable signal and feature 1 is pure noise uncorrelated with
// the labels, so its bootstrap coefficient sign is a coin flip.
func noisyNeighborhood(n int, seed int64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x.Set(i, 0, rng.NormFloat64())
		x.Set(i, 1, rng.NormFloat64())
		y[i] = 5*x.At(i, 0) + rng.NormFloat64()
	}
	return x, y
}

func TestFilterEliminatesNoiseKeepsSignal(t *testing.T) {
	x, y := noisyNeighborhood(200, 1)

	f := New(rand.New(rand.NewSource(2)), nil)
	f.FitsPerRound = 60 // keep the test quick
	res, err := f.Eliminate(x, y)
	require.NoError(t, err)

	assert.False(t, res.IsEliminated(0), "signal feature must survive")
	assert.True(t, res.IsEliminated(1), "noise feature must be eliminated")
	assert.Less(t, res.Entropy[0], DefaultThreshold)
	assert.Greater(t, res.Entropy[1], DefaultThreshold)
}

func TestFilterDeterministicUnderSeed(t *testing.T) {
	x, y := noisyNeighborhood(120, 3)
	run := func() *Result {
		f := New(rand.New(rand.NewSource(7)), nil)
		f.FitsPerRound = 40
		res, err := f.Eliminate(x, y)
		require.NoError(t, err)
		return res
	}
	a, b := run(), run()
	assert.Equal(t, a.Eliminated, b.Eliminated)
	assert.Equal(t, a.Entropy, b.Entropy)
}

func TestFilterStratified(t *testing.T) {
	x, y := noisyNeighborhood(160, 5)

	f := New(rand.New(rand.NewSource(9)), nil)
	f.FitsPerRound = 40
	f.Stratified = true
	res, err := f.Eliminate(x, y)
	require.NoError(t, err)
	assert.False(t, res.IsEliminated(0))
}

func TestFilterInputValidation(t *testing.T) {
	f := New(rand.New(rand.NewSource(1)), nil)

	_, err := f.Eliminate(mat.NewDense(2, 1, []float64{1, 2}), []float64{1})
	assert.Error(t, err)

	_, err = f.Eliminate(&mat.Dense{}, nil)
	assert.Error(t, err)
}

func TestFilterAllStableSurvive(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	n := 150
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x.Set(i, 0, rng.NormFloat64())
		x.Set(i, 1, rng.NormFloat64())
		y[i] = 3*x.At(i, 0) - 4*x.At(i, 1)
	}

	f := New(rand.New(rand.NewSource(6)), nil)
	f.FitsPerRound = 50
	res, err := f.Eliminate(x, y)
	require.NoError(t, err)
	assert.Empty(t, res.Eliminated)
}
