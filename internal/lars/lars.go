// Package lars implements least angle regression with the lasso
// modification, producing the regularization path used for feature
// selection, plus a covariance-style significance test along the path.
//
// Input is expected to be pre-processed the way the explainer prepares
// it: columns centered by the weighted mean and rows scaled by the
// square root of the sample weight.
package lars

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const tol = 1e-12

// Step is one knot of the regularization path.
type Step struct {
	// Alpha is the correlation level at this knot divided by the
	// number of samples, matching the sklearn lars_path convention.
	Alpha float64
	// Coef is the full coefficient vector at this knot.
	Coef []float64
	// Added is the feature index that entered at this knot, -1 for
	// the initial knot and for drop-only knots.
	Added int
	// Dropped is the feature index that left the active set at this
	// knot, -1 otherwise.
	Dropped int
}

// PathResult is a lasso regularization path from the all-zero model to
// the least squares end of the path.
type PathResult struct {
	Steps []Step
	// PValues[k] is the covariance test p-value for the k-th feature
	// entry event. Only populated by PathWithTest.
	PValues []float64
	// Cutoff is the number of leading entry events significant at the
	// requested level. Only meaningful after PathWithTest.
	Cutoff int
}

// NonzeroAt returns the indices with nonzero coefficients at step i.
func (p *PathResult) NonzeroAt(i int) []int {
	if i < 0 || i >= len(p.Steps) {
		return nil
	}
	var idx []int
	for j, c := range p.Steps[i].Coef {
		if c != 0 {
			idx = append(idx, j)
		}
	}
	return idx
}

// Path computes the LARS-lasso path for x, y.
func Path(x mat.Matrix, y []float64) (*PathResult, error) {
	return run(x, y)
}

// PathWithTest computes the path and attaches a covariance test
// p-value to every feature entry event. The statistic for the k-th
// knot is C_k(C_k - C_(k+1))/(n σ̂²), which is asymptotically Exp(1)
// under the null that the entering feature is noise (Lockhart et al.).
// Cutoff is the count of leading entries with p <= alpha.
func PathWithTest(x mat.Matrix, y []float64, alpha float64) (*PathResult, error) {
	if alpha <= 0 || alpha >= 1 {
		return nil, fmt.Errorf("lars: significance level %g out of (0,1)", alpha)
	}
	res, err := run(x, y)
	if err != nil {
		return nil, err
	}

	n, _ := x.Dims()
	sigma2 := stat.Variance(y, nil)
	if sigma2 <= tol {
		sigma2 = 1
	}
	exp1 := distuv.Exponential{Rate: 1}

	// Walk entry events in path order. Alphas are already C/n, so
	// C_k C_(k+1) - C_k² scaled back by n²/ (n σ²) = n/σ².
	for i := 0; i < len(res.Steps); i++ {
		if res.Steps[i].Added < 0 {
			continue
		}
		ck := res.Steps[i].Alpha
		next := 0.0
		if i+1 < len(res.Steps) {
			next = res.Steps[i+1].Alpha
		}
		t := float64(n) * ck * (ck - next) / sigma2
		if t < 0 {
			t = 0
		}
		res.PValues = append(res.PValues, exp1.Survival(t))
	}
	for _, p := range res.PValues {
		if p > alpha {
			break
		}
		res.Cutoff++
	}
	return res, nil
}

func run(x mat.Matrix, y []float64) (*PathResult, error) {
	n, p := x.Dims()
	if n == 0 || p == 0 {
		return nil, fmt.Errorf("lars: empty design matrix (%dx%d)", n, p)
	}
	if len(y) != n {
		return nil, fmt.Errorf("lars: %d rows but %d targets", n, len(y))
	}

	beta := make([]float64, p)
	resid := make([]float64, n)
	copy(resid, y)

	active := make([]int, 0, p)
	inactive := make(map[int]bool, p)
	for j := 0; j < p; j++ {
		inactive[j] = true
	}

	corr := func() []float64 {
		c := make([]float64, p)
		for j := 0; j < p; j++ {
			var v float64
			for i := 0; i < n; i++ {
				v += x.At(i, j) * resid[i]
			}
			c[j] = v
		}
		return c
	}

	res := &PathResult{}
	c := corr()
	res.Steps = append(res.Steps, Step{
		Alpha:   maxAbs(c) / float64(n),
		Coef:    make([]float64, p),
		Added:   -1,
		Dropped: -1,
	})

	maxSteps := 8 * p
	justDropped := false
	maxActive := p
	if n-1 < maxActive {
		maxActive = n - 1
		if maxActive < 1 {
			maxActive = 1
		}
	}

	for step := 0; step < maxSteps; step++ {
		c = corr()
		bigC, bigJ := 0.0, -1
		for j := range inactive {
			if a := math.Abs(c[j]); a > bigC {
				bigC, bigJ = a, j
			}
		}
		if len(active) > 0 {
			// Correlation level is shared by the active set.
			if a := math.Abs(c[active[0]]); a > bigC {
				bigC = a
			}
		}
		if bigC <= tol {
			break
		}

		added := -1
		if !justDropped && bigJ >= 0 && len(active) < maxActive {
			active = append(active, bigJ)
			delete(inactive, bigJ)
			added = bigJ
		}
		justDropped = false
		if len(active) == 0 {
			break
		}

		k := len(active)
		s := make([]float64, k)
		for i, j := range active {
			s[i] = sign(c[j])
		}

		g := mat.NewSymDense(k, nil)
		for a := 0; a < k; a++ {
			for b := a; b < k; b++ {
				var v float64
				for i := 0; i < n; i++ {
					v += x.At(i, active[a]) * x.At(i, active[b])
				}
				g.SetSym(a, b, v)
			}
		}
		w := mat.NewVecDense(k, nil)
		if err := solvePD(g, s, w); err != nil {
			return nil, err
		}
		var swSum float64
		for i := 0; i < k; i++ {
			swSum += s[i] * w.AtVec(i)
		}
		if swSum <= tol {
			break
		}
		aa := 1 / math.Sqrt(swSum)

		d := make([]float64, k)
		for i := 0; i < k; i++ {
			d[i] = aa * w.AtVec(i)
		}
		u := make([]float64, n)
		for i := 0; i < n; i++ {
			var v float64
			for idx, j := range active {
				v += x.At(i, j) * d[idx]
			}
			u[i] = v
		}

		// Longest step: all the way to the joint least squares fit.
		gamma := bigC / aa
		for j := range inactive {
			var aj float64
			for i := 0; i < n; i++ {
				aj += x.At(i, j) * u[i]
			}
			for _, cand := range []float64{(bigC - c[j]) / (aa - aj), (bigC + c[j]) / (aa + aj)} {
				if cand > tol && cand < gamma {
					gamma = cand
				}
			}
		}

		// Lasso modification: drop the first active coefficient that
		// would cross zero before the step completes.
		dropPos := -1
		for idx, j := range active {
			if d[idx] == 0 {
				continue
			}
			if gd := -beta[j] / d[idx]; gd > tol && gd < gamma {
				gamma = gd
				dropPos = idx
			}
		}

		for idx, j := range active {
			beta[j] += gamma * d[idx]
		}
		for i := 0; i < n; i++ {
			resid[i] -= gamma * u[i]
		}

		dropped := -1
		if dropPos >= 0 {
			dropped = active[dropPos]
			beta[dropped] = 0
			active = append(active[:dropPos], active[dropPos+1:]...)
			inactive[dropped] = true
			justDropped = true
		}

		snap := make([]float64, p)
		copy(snap, beta)
		res.Steps = append(res.Steps, Step{
			Alpha:   maxAbs(corr()) / float64(n),
			Coef:    snap,
			Added:   added,
			Dropped: dropped,
		})

		if len(inactive) == 0 && dropPos < 0 {
			break
		}
		if len(active) >= maxActive && dropPos < 0 {
			break
		}
	}

	return res, nil
}

func solvePD(g *mat.SymDense, b []float64, out *mat.VecDense) error {
	var chol mat.Cholesky
	if chol.Factorize(g) {
		return chol.SolveVecTo(out, mat.NewVecDense(len(b), b))
	}
	// Equicorrelated or duplicated columns: regularize slightly.
	k := len(b)
	for i := 0; i < k; i++ {
		g.SetSym(i, i, g.At(i, i)+1e-10)
	}
	if chol.Factorize(g) {
		return chol.SolveVecTo(out, mat.NewVecDense(len(b), b))
	}
	return errors.New("lars: gram matrix not factorizable")
}

func maxAbs(v []float64) float64 {
	var m float64
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
