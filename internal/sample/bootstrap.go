package sample

import (
	"fmt"
	"math/rand"
	"sort"
)

// Bootstrap draws n indices from [0,n) with replacement.
func Bootstrap(n int, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}

// strataBins is the number of label-quantile strata used by the
// stratified bootstrap.
const strataBins = 4

// StratifiedBootstrap draws n indices with replacement while preserving
// the label-quartile composition of the sample: rows are binned by
// label quartile and each stratum is resampled within itself at its
// original size. Degenerate strata (all labels equal, or fewer rows
// than bins) fall back to a plain bootstrap.
func StratifiedBootstrap(labels []float64, rng *rand.Rand) ([]int, error) {
	n := len(labels)
	if n == 0 {
		return nil, fmt.Errorf("sample: no labels to stratify")
	}
	if n < strataBins {
		return Bootstrap(n, rng), nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return labels[order[a]] < labels[order[b]] })
	if labels[order[0]] == labels[order[n-1]] {
		return Bootstrap(n, rng), nil
	}

	out := make([]int, 0, n)
	for b := 0; b < strataBins; b++ {
		lo := b * n / strataBins
		hi := (b + 1) * n / strataBins
		stratum := order[lo:hi]
		for range stratum {
			out = append(out, stratum[rng.Intn(len(stratum))])
		}
	}
	return out, nil
}
