package ux

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"slime/internal/explain"
)

func testExplanation() *explain.Explanation {
	return &explain.Explanation{
		Intercept: 0.5,
		Score:     0.91,
		LocalPred: 1.25,
		Used:      []int{0, 1},
		Weights: []explain.FeatureWeight{
			{Feature: 0, Weight: 2.0},
			{Feature: 1, Weight: -1.0},
		},
		SignEntropy: map[int]float64{0: 0.12, 1: 0.3, 2: 0.95},
		Eliminated:  []int{2},
	}
}

func TestRenderUsesNames(t *testing.T) {
	out := Render(testExplanation(), []string{"age", "income", "noise"})
	assert.Contains(t, out, "age")
	assert.Contains(t, out, "income")
	assert.Contains(t, out, "noise")
	assert.Contains(t, out, "+2.0000")
	assert.Contains(t, out, "-1.0000")
	assert.Contains(t, out, "score=0.9100")
	assert.Contains(t, out, "eliminated as unstable:")
}

func TestRenderFallsBackToIndices(t *testing.T) {
	out := Render(testExplanation(), nil)
	assert.Contains(t, out, "f0")
	assert.Contains(t, out, "f2")
}

func TestRenderBarsScale(t *testing.T) {
	out := Render(testExplanation(), nil)
	// Feature 0 has twice the weight of feature 1, so twice the bar.
	lines := strings.Split(out, "\n")
	var bars []int
	for _, l := range lines {
		if n := strings.Count(l, "█"); n > 0 {
			bars = append(bars, n)
		}
	}
	if assert.Len(t, bars, 2) {
		assert.Equal(t, bars[0], 2*bars[1])
	}
}

func TestRenderSummaryLine(t *testing.T) {
	out := RenderSummaryLine("0123456789abcdef", "credit.csv", 0.88, 3)
	assert.Contains(t, out, "01234567")
	assert.Contains(t, out, "credit.csv")
	assert.Contains(t, out, "features=3")
}
