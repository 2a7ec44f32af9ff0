// Package linmodel provides the weighted linear estimators used to fit
// local surrogate models: a closed-form ridge regression and the Model
// interface the explainer programs against.
package linmodel

import "gonum.org/v1/gonum/mat"

// Model is a weighted linear estimator. Fit accepts per-sample weights;
// a nil weight slice means uniform weights.
type Model interface {
	Fit(x mat.Matrix, y, weights []float64) error
	Predict(x mat.Matrix) []float64
	Score(x mat.Matrix, y, weights []float64) float64
	Coef() []float64
	Intercept() float64
}
