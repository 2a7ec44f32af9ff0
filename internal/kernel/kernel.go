// Package kernel converts distances between perturbed samples and the
// explained instance into the proximity weights the surrogate fit uses.
package kernel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Fn maps a distance to a proximity weight in [0, 1].
type Fn func(d float64) float64

// Exponential is the standard LIME kernel sqrt(exp(-d²/width²)).
func Exponential(width float64) Fn {
	w2 := width * width
	return func(d float64) float64 {
		return math.Sqrt(math.Exp(-(d * d) / w2))
	}
}

// DefaultWidth is the usual tabular kernel width for p features.
func DefaultWidth(p int) float64 {
	return 0.75 * math.Sqrt(float64(p))
}

// Apply maps a kernel over a distance slice.
func Apply(fn Fn, distances []float64) []float64 {
	out := make([]float64, len(distances))
	for i, d := range distances {
		out[i] = fn(d)
	}
	return out
}

// Euclidean returns the euclidean distance from every row of x to the
// reference row (by convention row 0, the unperturbed instance).
func Euclidean(x mat.Matrix, ref int) ([]float64, error) {
	n, p := x.Dims()
	if ref < 0 || ref >= n {
		return nil, fmt.Errorf("kernel: reference row %d out of range [0,%d)", ref, n)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var s float64
		for j := 0; j < p; j++ {
			d := x.At(i, j) - x.At(ref, j)
			s += d * d
		}
		out[i] = math.Sqrt(s)
	}
	return out, nil
}

// Cosine returns 1 - cosine similarity of every row of x against the
// reference row. A zero-norm row is treated as maximally distant.
func Cosine(x mat.Matrix, ref int) ([]float64, error) {
	n, p := x.Dims()
	if ref < 0 || ref >= n {
		return nil, fmt.Errorf("kernel: reference row %d out of range [0,%d)", ref, n)
	}
	var refNorm float64
	for j := 0; j < p; j++ {
		v := x.At(ref, j)
		refNorm += v * v
	}
	refNorm = math.Sqrt(refNorm)

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var dot, norm float64
		for j := 0; j < p; j++ {
			v := x.At(i, j)
			dot += v * x.At(ref, j)
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm == 0 || refNorm == 0 {
			out[i] = 1
			continue
		}
		out[i] = 1 - dot/(norm*refNorm)
	}
	return out, nil
}
