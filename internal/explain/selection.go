package explain

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"slime/internal/lars"
	"slime/internal/linmodel"
)

// forwardSelection greedily grows the feature set, at each step adding
// the feature whose inclusion maximizes the weighted R² of an
// unregularized ridge fit.
func forwardSelection(data mat.Matrix, y, w []float64, k int) ([]int, error) {
	_, p := data.Dims()
	if k > p {
		k = p
	}
	var used []int
	inUse := make([]bool, p)
	for len(used) < k {
		best, bestScore := -1, math.Inf(-1)
		for j := 0; j < p; j++ {
			if inUse[j] {
				continue
			}
			cols := append(append([]int{}, used...), j)
			x := pick(data, cols)
			m := linmodel.NewRidge(0)
			if err := m.Fit(x, y, w); err != nil {
				return nil, fmt.Errorf("explain: forward selection: %w", err)
			}
			if s := m.Score(x, y, w); s > bestScore {
				best, bestScore = j, s
			}
		}
		used = append(used, best)
		inUse[best] = true
	}
	sort.Ints(used)
	return used, nil
}

// highestWeights fits a lightly regularized ridge on every feature and
// keeps the k features with the largest |coefficient × instance value|,
// the instance being row 0 of the neighborhood.
func highestWeights(data mat.Matrix, y, w []float64, k int) ([]int, error) {
	_, p := data.Dims()
	m := linmodel.NewRidge(0.01)
	if err := m.Fit(data, y, w); err != nil {
		return nil, fmt.Errorf("explain: highest weights: %w", err)
	}
	coef := m.Coef()

	type fw struct {
		j int
		v float64
	}
	ranked := make([]fw, p)
	for j := 0; j < p; j++ {
		ranked[j] = fw{j, math.Abs(coef[j] * data.At(0, j))}
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].v != ranked[b].v {
			return ranked[a].v > ranked[b].v
		}
		return ranked[a].j < ranked[b].j
	})
	if k > p {
		k = p
	}
	used := make([]int, k)
	for i := 0; i < k; i++ {
		used[i] = ranked[i].j
	}
	sort.Ints(used)
	return used, nil
}

// weightedCenter prepares the lasso path input: columns centered by
// their weighted mean, rows scaled by sqrt(weight), labels likewise.
func weightedCenter(data mat.Matrix, y, w []float64) (*mat.Dense, []float64) {
	n, p := data.Dims()
	var wsum float64
	for _, wi := range w {
		wsum += wi
	}

	xmean := make([]float64, p)
	var ymean float64
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			xmean[j] += w[i] * data.At(i, j)
		}
		ymean += w[i] * y[i]
	}
	for j := range xmean {
		xmean[j] /= wsum
	}
	ymean /= wsum

	xw := mat.NewDense(n, p, nil)
	yw := make([]float64, n)
	for i := 0; i < n; i++ {
		sw := math.Sqrt(w[i])
		for j := 0; j < p; j++ {
			xw.Set(i, j, (data.At(i, j)-xmean[j])*sw)
		}
		yw[i] = (y[i] - ymean) * sw
	}
	return xw, yw
}

// lassoPath selects along the regularization path: walk backwards from
// the least squares end to the first knot with at most k nonzero
// coefficients.
func lassoPath(data mat.Matrix, y, w []float64, k int) ([]int, error) {
	xw, yw := weightedCenter(data, y, w)
	res, err := lars.Path(xw, yw)
	if err != nil {
		return nil, err
	}
	used := walkPath(res, k, false)
	return used, nil
}

// lassoPathTested is the stabilized variant: it also computes the
// covariance test p-values and, when takeFinal is set, keeps the whole
// final knot instead of trimming to the budget (the stability filter
// does the trimming afterwards).
func lassoPathTested(data mat.Matrix, y, w []float64, k int, alpha float64, takeFinal bool) ([]int, []float64, error) {
	xw, yw := weightedCenter(data, y, w)
	res, err := lars.PathWithTest(xw, yw, alpha)
	if err != nil {
		return nil, nil, err
	}
	return walkPath(res, k, takeFinal), res.PValues, nil
}

// walkPath walks the path backwards from the least squares end. It
// starts from the full feature set so a path that collapses to its
// initial knot (constant labels) still yields a selection.
func walkPath(res *lars.PathResult, k int, takeFinal bool) []int {
	p := len(res.Steps[0].Coef)
	used := make([]int, p)
	for j := range used {
		used[j] = j
	}
	for i := len(res.Steps) - 1; i > 0; i-- {
		used = res.NonzeroAt(i)
		if takeFinal {
			break
		}
		if len(used) <= k {
			break
		}
	}
	sort.Ints(used)
	return used
}

// pick materializes the named columns of data.
func pick(data mat.Matrix, cols []int) *mat.Dense {
	n, _ := data.Dims()
	out := mat.NewDense(n, len(cols), nil)
	for i := 0; i < n; i++ {
		for c, j := range cols {
			out.Set(i, c, data.At(i, j))
		}
	}
	return out
}
