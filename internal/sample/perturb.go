// Package sample generates the perturbation neighborhood around an
// explained instance and the resampled index sets the stability filter
// fits on.
package sample

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Perturber draws gaussian perturbations around an instance, scaled by
// per-feature standard deviations estimated from training data.
type Perturber struct {
	mean []float64
	std  []float64
	rng  *rand.Rand
}

// NewPerturber estimates per-column scale from the training matrix.
// Columns with zero variance keep a unit scale so perturbation still
// explores them.
func NewPerturber(train mat.Matrix, rng *rand.Rand) (*Perturber, error) {
	n, p := train.Dims()
	if n < 2 {
		return nil, fmt.Errorf("sample: need at least 2 training rows, got %d", n)
	}
	mean := make([]float64, p)
	std := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			col[i] = train.At(i, j)
		}
		m, s := stat.MeanStdDev(col, nil)
		mean[j] = m
		if s == 0 {
			s = 1
		}
		std[j] = s
	}
	return &Perturber{mean: mean, std: std, rng: rng}, nil
}

// Around returns an n×p neighborhood matrix whose first row is the
// unperturbed instance. Remaining rows are instance + N(0,1)·std draws.
func (p *Perturber) Around(instance []float64, n int) (*mat.Dense, error) {
	if len(instance) != len(p.mean) {
		return nil, fmt.Errorf("sample: instance has %d features, perturber expects %d",
			len(instance), len(p.mean))
	}
	if n < 2 {
		return nil, fmt.Errorf("sample: neighborhood size %d too small", n)
	}
	cols := len(instance)
	out := mat.NewDense(n, cols, nil)
	out.SetRow(0, instance)
	for i := 1; i < n; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, instance[j]+p.rng.NormFloat64()*p.std[j])
		}
	}
	return out, nil
}

// Scale exposes the per-feature standard deviations used for drawing.
func (p *Perturber) Scale() []float64 { return p.std }
