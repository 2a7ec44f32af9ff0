package sample

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestPerturberAround(t *testing.T) {
	train := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
	})
	p, err := NewPerturber(train, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	instance := []float64{2.5, 25}
	nb, err := p.Around(instance, 500)
	require.NoError(t, err)

	r, c := nb.Dims()
	assert.Equal(t, 500, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, instance, mat.Row(nil, 0, nb))

	// Column 1 has 10x the spread of column 0; perturbations should too.
	var s0, s1 float64
	for i := 1; i < r; i++ {
		d0 := nb.At(i, 0) - instance[0]
		d1 := nb.At(i, 1) - instance[1]
		s0 += d0 * d0
		s1 += d1 * d1
	}
	assert.Greater(t, math.Sqrt(s1/s0), 5.0)
}

func TestPerturberDeterministicUnderSeed(t *testing.T) {
	train := mat.NewDense(3, 1, []float64{1, 2, 3})
	mk := func() *mat.Dense {
		p, err := NewPerturber(train, rand.New(rand.NewSource(42)))
		require.NoError(t, err)
		nb, err := p.Around([]float64{2}, 10)
		require.NoError(t, err)
		return nb
	}
	a, b := mk(), mk()
	assert.True(t, mat.Equal(a, b))
}

func TestPerturberZeroVarianceColumn(t *testing.T) {
	train := mat.NewDense(3, 2, []float64{1, 5, 2, 5, 3, 5})
	p, err := NewPerturber(train, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Scale()[1])
}

func TestPerturberErrors(t *testing.T) {
	_, err := NewPerturber(mat.NewDense(1, 1, []float64{1}), rand.New(rand.NewSource(1)))
	assert.Error(t, err)

	p, err := NewPerturber(mat.NewDense(2, 1, []float64{1, 2}), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	_, err = p.Around([]float64{1, 2}, 10)
	assert.Error(t, err)
	_, err = p.Around([]float64{1}, 1)
	assert.Error(t, err)
}

func TestBootstrapRange(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	idx := Bootstrap(50, rng)
	require.Len(t, idx, 50)
	for _, i := range idx {
		assert.GreaterOrEqual(t, i, 0)
		assert.Less(t, i, 50)
	}
}

func TestStratifiedBootstrapPreservesQuartiles(t *testing.T) {
	// Labels 0..99: each quartile must keep its 25 slots.
	labels := make([]float64, 100)
	for i := range labels {
		labels[i] = float64(i)
	}
	rng := rand.New(rand.NewSource(9))
	idx, err := StratifiedBootstrap(labels, rng)
	require.NoError(t, err)
	require.Len(t, idx, 100)

	counts := make([]int, 4)
	for _, i := range idx {
		counts[i/25]++
	}
	for q, c := range counts {
		assert.Equal(t, 25, c, "quartile %d", q)
	}
}

func TestStratifiedBootstrapDegenerate(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	_, err := StratifiedBootstrap(nil, rng)
	assert.Error(t, err)

	idx, err := StratifiedBootstrap([]float64{5, 5, 5, 5, 5, 5}, rng)
	require.NoError(t, err)
	assert.Len(t, idx, 6)

	idx, err = StratifiedBootstrap([]float64{1, 2}, rng)
	require.NoError(t, err)
	assert.Len(t, idx, 2)
}
