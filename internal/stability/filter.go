package stability

import (
	"fmt"
	"math/rand"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"slime/internal/linmodel"
	"slime/internal/sample"
)

// Default elimination schedule: five rounds, ridge alpha 1, entropy
// cutoff 0.85 bits.
const (
	DefaultRounds    = 5
	DefaultThreshold = 0.85
	DefaultAlpha     = 1.0
)

// Filter eliminates unstable features from a perturbation neighborhood.
type Filter struct {
	// Rounds is how many elimination passes to run.
	Rounds int
	// Threshold is the sign-entropy cutoff in bits above which a
	// feature is eliminated.
	Threshold float64
	// Alpha is the ridge strength of the bootstrap refits.
	Alpha float64
	// FitsPerRound overrides the number of bootstrap fits per round;
	// 0 means one fit per neighborhood row.
	FitsPerRound int
	// Stratified switches the bootstrap to label-quartile strata.
	Stratified bool

	rng *rand.Rand
	log *zap.Logger
}

// New returns a filter with default settings.
func New(rng *rand.Rand, log *zap.Logger) *Filter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Filter{
		Rounds:    DefaultRounds,
		Threshold: DefaultThreshold,
		Alpha:     DefaultAlpha,
		rng:       rng,
		log:       log,
	}
}

// Result reports what the filter decided and why.
type Result struct {
	// Eliminated holds feature indices removed, in elimination order.
	Eliminated []int
	// Entropy holds the last computed sign entropy per feature index.
	Entropy map[int]float64
}

// IsEliminated reports whether feature j was removed.
func (r *Result) IsEliminated(j int) bool {
	for _, e := range r.Eliminated {
		if e == j {
			return true
		}
	}
	return false
}

// Eliminate runs the elimination rounds over the neighborhood. Each
// round refits a ridge on bootstrap resamples restricted to the
// surviving features, then drops every feature whose coefficient sign
// entropy across the refits exceeds the threshold.
func (f *Filter) Eliminate(data mat.Matrix, labels []float64) (*Result, error) {
	n, p := data.Dims()
	if n == 0 || p == 0 {
		return nil, fmt.Errorf("stability: empty neighborhood (%dx%d)", n, p)
	}
	if len(labels) != n {
		return nil, fmt.Errorf("stability: %d rows but %d labels", n, len(labels))
	}

	fits := f.FitsPerRound
	if fits <= 0 {
		fits = n
	}

	res := &Result{Entropy: make(map[int]float64, p)}
	alive := make([]bool, p)
	for j := range alive {
		alive[j] = true
	}

	for round := 0; round < f.Rounds; round++ {
		var feats []int
		for j := 0; j < p; j++ {
			if alive[j] {
				feats = append(feats, j)
			}
		}
		if len(feats) == 0 {
			break
		}

		// Index sets are drawn serially so a seeded rng stays
		// deterministic; the fits fan out afterwards.
		draws := make([][]int, fits)
		for i := range draws {
			if f.Stratified {
				idx, err := sample.StratifiedBootstrap(labels, f.rng)
				if err != nil {
					return nil, err
				}
				draws[i] = idx
			} else {
				draws[i] = sample.Bootstrap(n, f.rng)
			}
		}

		coefs := make([][]float64, fits)
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := range draws {
			g.Go(func() error {
				x, y := gather(data, labels, draws[i], feats)
				m := linmodel.NewRidge(f.Alpha)
				if err := m.Fit(x, y, nil); err != nil {
					return fmt.Errorf("stability: bootstrap fit %d: %w", i, err)
				}
				coefs[i] = m.Coef()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		dropped := 0
		column := make([]float64, fits)
		for pos, j := range feats {
			for i := range coefs {
				column[i] = coefs[i][pos]
			}
			h := SignEntropy(column)
			res.Entropy[j] = h
			if h > f.Threshold {
				res.Eliminated = append(res.Eliminated, j)
				alive[j] = false
				dropped++
			}
		}
		f.log.Debug("stability round done",
			zap.Int("round", round),
			zap.Int("surviving", len(feats)-dropped),
			zap.Int("dropped", dropped))
	}

	return res, nil
}

// gather materializes the bootstrap submatrix restricted to feats.
func gather(data mat.Matrix, labels []float64, rows, feats []int) (*mat.Dense, []float64) {
	x := mat.NewDense(len(rows), len(feats), nil)
	y := make([]float64, len(rows))
	for i, r := range rows {
		for k, j := range feats {
			x.Set(i, k, data.At(r, j))
		}
		y[i] = labels[r]
	}
	return x, y
}
