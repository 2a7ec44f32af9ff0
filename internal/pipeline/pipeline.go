// Package pipeline wires sampling, prediction and explanation into the
// end-to-end flow shared by the CLI and the HTTP server.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"slime/internal/config"
	"slime/internal/explain"
	"slime/internal/kernel"
	"slime/internal/predict"
	"slime/internal/sample"
)

// Pipeline runs explanations under one configuration.
type Pipeline struct {
	cfg *config.Config
	log *zap.Logger

	mu    sync.Mutex
	seeds *rand.Rand
}

// New builds a pipeline. Seeding starts from config, or from the clock
// when the configured seed is zero.
func New(cfg *config.Config, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	seed := cfg.Sampling.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Pipeline{
		cfg:   cfg,
		log:   log,
		seeds: rand.New(rand.NewSource(seed)),
	}
}

// runRNG hands each explanation its own rng. rand.Rand is not safe for
// concurrent use and server requests overlap, so only the seed draw is
// shared, under the mutex.
func (p *Pipeline) runRNG() *rand.Rand {
	p.mu.Lock()
	defer p.mu.Unlock()
	return rand.New(rand.NewSource(p.seeds.Int63()))
}

// ExplainInstance perturbs around the instance, queries the model for
// neighborhood labels and fits the stabilized surrogate. train provides
// the per-feature scale of the perturbation.
func (p *Pipeline) ExplainInstance(ctx context.Context, train *mat.Dense, instance []float64, model predict.Func) (*explain.Explanation, error) {
	if model == nil {
		return nil, fmt.Errorf("pipeline: no model prediction function")
	}
	perturber, err := sample.NewPerturber(train, p.runRNG())
	if err != nil {
		return nil, err
	}
	neighborhood, err := perturber.Around(instance, p.cfg.Sampling.Samples)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	labels, err := model(ctx, neighborhood)
	if err != nil {
		return nil, fmt.Errorf("pipeline: scoring neighborhood: %w", err)
	}
	p.log.Debug("neighborhood scored",
		zap.Int("samples", p.cfg.Sampling.Samples),
		zap.Duration("elapsed", time.Since(start)))

	return p.ExplainNeighborhood(neighborhood, labels, nil)
}

// ExplainNeighborhood fits the surrogate on a precomputed neighborhood
// whose row 0 is the instance. distances are computed from row 0 when
// nil.
func (p *Pipeline) ExplainNeighborhood(data *mat.Dense, labels, distances []float64) (*explain.Explanation, error) {
	_, cols := data.Dims()

	if distances == nil {
		var err error
		switch p.cfg.Sampling.Distance {
		case "cosine":
			distances, err = kernel.Cosine(data, 0)
		default:
			distances, err = kernel.Euclidean(data, 0)
		}
		if err != nil {
			return nil, err
		}
	}

	width := p.cfg.Sampling.KernelWidth
	if width <= 0 {
		width = kernel.DefaultWidth(cols)
	}
	e := explain.New(kernel.Exponential(width), p.runRNG(), p.log)

	method, err := explain.ParseMethod(p.cfg.Selection.Method)
	if err != nil {
		return nil, err
	}

	// The lasso path carries the stability machinery; every other
	// method runs the plain selection.
	if method != explain.MethodLassoPath {
		return e.Explain(data, labels, distances, explain.Options{
			NumFeatures: p.cfg.Selection.NumFeatures,
			Method:      method,
		})
	}
	return e.ExplainStable(data, labels, distances, explain.StableOptions{
		NumFeatures:  p.cfg.Selection.NumFeatures,
		Alpha:        p.cfg.Selection.Alpha,
		Stabilize:    p.cfg.Stability.Enabled,
		Stratified:   p.cfg.Stability.Stratified,
		Rounds:       p.cfg.Stability.Rounds,
		Threshold:    p.cfg.Stability.Threshold,
		FitsPerRound: p.cfg.Stability.FitsPerRound,
	})
}

// Params captures the knobs that produced a run, for persistence.
func (p *Pipeline) Params() map[string]any {
	return map[string]any{
		"samples":      p.cfg.Sampling.Samples,
		"kernel_width": p.cfg.Sampling.KernelWidth,
		"distance":     p.cfg.Sampling.Distance,
		"seed":         p.cfg.Sampling.Seed,
		"method":       p.cfg.Selection.Method,
		"num_features": p.cfg.Selection.NumFeatures,
		"alpha":        p.cfg.Selection.Alpha,
		"stabilize":    p.cfg.Stability.Enabled,
		"rounds":       p.cfg.Stability.Rounds,
		"threshold":    p.cfg.Stability.Threshold,
		"stratified":   p.cfg.Stability.Stratified,
	}
}
