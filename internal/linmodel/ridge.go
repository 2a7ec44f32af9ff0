package linmodel

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Ridge is L2-regularized least squares with an unpenalized intercept,
// solved in closed form on weighted, mean-centered data. Alpha 0 is
// plain weighted least squares.
type Ridge struct {
	Alpha float64

	coef      []float64
	intercept float64
	fitted    bool
}

// NewRidge returns a ridge estimator with the given regularization
// strength.
func NewRidge(alpha float64) *Ridge {
	return &Ridge{Alpha: alpha}
}

var (
	// ErrNotFitted is returned by Predict and Score before Fit.
	ErrNotFitted = errors.New("linmodel: model not fitted")

	errSingular = errors.New("linmodel: singular system")
)

// Fit solves (Xcᵀ W Xc + αI) β = Xcᵀ W yc where Xc and yc are centered
// by their weighted means. The intercept absorbs the centering.
func (r *Ridge) Fit(x mat.Matrix, y, weights []float64) error {
	n, p := x.Dims()
	if n == 0 || p == 0 {
		return fmt.Errorf("linmodel: empty design matrix (%dx%d)", n, p)
	}
	if len(y) != n {
		return fmt.Errorf("linmodel: %d rows but %d targets", n, len(y))
	}
	w := weights
	if w == nil {
		w = make([]float64, n)
		for i := range w {
			w[i] = 1
		}
	} else if len(w) != n {
		return fmt.Errorf("linmodel: %d rows but %d weights", n, len(w))
	}

	var wsum float64
	for _, wi := range w {
		if wi < 0 {
			return fmt.Errorf("linmodel: negative sample weight %g", wi)
		}
		wsum += wi
	}
	if wsum == 0 {
		return errors.New("linmodel: all sample weights are zero")
	}

	// Weighted column means and target mean.
	xmean := make([]float64, p)
	var ymean float64
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			xmean[j] += w[i] * x.At(i, j)
		}
		ymean += w[i] * y[i]
	}
	for j := range xmean {
		xmean[j] /= wsum
	}
	ymean /= wsum

	// Normal equations on centered data.
	a := mat.NewSymDense(p, nil)
	b := make([]float64, p)
	for i := 0; i < n; i++ {
		wi := w[i]
		if wi == 0 {
			continue
		}
		yc := y[i] - ymean
		for j := 0; j < p; j++ {
			xj := x.At(i, j) - xmean[j]
			b[j] += wi * xj * yc
			for k := j; k < p; k++ {
				a.SetSym(j, k, a.At(j, k)+wi*xj*(x.At(i, k)-xmean[k]))
			}
		}
	}
	for j := 0; j < p; j++ {
		a.SetSym(j, j, a.At(j, j)+r.Alpha)
	}

	coef, err := solveSym(a, b)
	if err != nil {
		// Rank-deficient with alpha 0: nudge the diagonal and retry.
		for j := 0; j < p; j++ {
			a.SetSym(j, j, a.At(j, j)+1e-10)
		}
		coef, err = solveSym(a, b)
		if err != nil {
			return err
		}
	}

	r.coef = coef
	r.intercept = ymean
	for j := 0; j < p; j++ {
		r.intercept -= coef[j] * xmean[j]
	}
	r.fitted = true
	return nil
}

func solveSym(a *mat.SymDense, b []float64) ([]float64, error) {
	p := len(b)
	var chol mat.Cholesky
	if ok := chol.Factorize(a); ok {
		out := mat.NewVecDense(p, nil)
		if err := chol.SolveVecTo(out, mat.NewVecDense(p, b)); err != nil {
			return nil, errSingular
		}
		return out.RawVector().Data, nil
	}
	// Not positive definite; fall back to a dense solve.
	out := mat.NewVecDense(p, nil)
	if err := out.SolveVec(a, mat.NewVecDense(p, b)); err != nil {
		return nil, errSingular
	}
	return out.RawVector().Data, nil
}

// Predict returns ŷ = Xβ + intercept for each row of x.
func (r *Ridge) Predict(x mat.Matrix) []float64 {
	if !r.fitted {
		return nil
	}
	n, p := x.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v := r.intercept
		for j := 0; j < p && j < len(r.coef); j++ {
			v += r.coef[j] * x.At(i, j)
		}
		out[i] = v
	}
	return out
}

// Score returns the weighted coefficient of determination R².
func (r *Ridge) Score(x mat.Matrix, y, weights []float64) float64 {
	if !r.fitted {
		return math.NaN()
	}
	n, _ := x.Dims()
	w := weights
	if w == nil {
		w = make([]float64, n)
		for i := range w {
			w[i] = 1
		}
	}
	pred := r.Predict(x)

	var wsum, ymean float64
	for i := 0; i < n; i++ {
		wsum += w[i]
		ymean += w[i] * y[i]
	}
	if wsum == 0 {
		return math.NaN()
	}
	ymean /= wsum

	var ssRes, ssTot float64
	for i := 0; i < n; i++ {
		dr := y[i] - pred[i]
		dt := y[i] - ymean
		ssRes += w[i] * dr * dr
		ssTot += w[i] * dt * dt
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// Coef returns the fitted coefficients, nil before Fit.
func (r *Ridge) Coef() []float64 { return r.coef }

// Intercept returns the fitted intercept.
func (r *Ridge) Intercept() float64 { return r.intercept }
