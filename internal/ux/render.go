// Package ux renders explanations for the terminal.
package ux

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"slime/internal/explain"
)

const barWidth = 24

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	positiveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	negativeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	eliminatedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Strikethrough(true)
	faintStyle      = lipgloss.NewStyle().Faint(true)
)

// Render formats an explanation as an aligned weight table with signed
// bars. names maps feature indices to display names and may be nil.
func Render(exp *explain.Explanation, names []string) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Local surrogate explanation"))
	b.WriteString("\n")
	b.WriteString(faintStyle.Render(fmt.Sprintf("score=%.4f  intercept=%.4f  local_pred=%.4f",
		exp.Score, exp.Intercept, exp.LocalPred)))
	b.WriteString("\n\n")

	maxAbs := 0.0
	for _, w := range exp.Weights {
		if a := math.Abs(w.Weight); a > maxAbs {
			maxAbs = a
		}
	}

	nameWidth := 8
	for _, w := range exp.Weights {
		if n := len(name(names, w.Feature)); n > nameWidth {
			nameWidth = n
		}
	}

	for _, w := range exp.Weights {
		style := positiveStyle
		if w.Weight < 0 {
			style = negativeStyle
		}
		b.WriteString(fmt.Sprintf("  %-*s  %s %s",
			nameWidth, name(names, w.Feature),
			style.Render(fmt.Sprintf("%+.4f", w.Weight)),
			style.Render(bar(w.Weight, maxAbs))))
		if h, ok := exp.SignEntropy[w.Feature]; ok {
			b.WriteString(faintStyle.Render(fmt.Sprintf("  H=%.2f", h)))
		}
		b.WriteString("\n")
	}

	if len(exp.Eliminated) > 0 {
		b.WriteString("\n")
		b.WriteString(faintStyle.Render("eliminated as unstable:"))
		b.WriteString("\n")
		for _, j := range exp.Eliminated {
			line := fmt.Sprintf("  %-*s", nameWidth, name(names, j))
			if h, ok := exp.SignEntropy[j]; ok {
				line += fmt.Sprintf("  H=%.2f", h)
			}
			b.WriteString(eliminatedStyle.Render(line))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// RenderSummaryLine is the compact single-run form used by listings.
func RenderSummaryLine(id string, dataset string, score float64, features int) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s  %-20s  score=%.4f  features=%d",
		faintStyle.Render(short), dataset, score, features)
}

func name(names []string, j int) string {
	if j >= 0 && j < len(names) {
		return names[j]
	}
	return fmt.Sprintf("f%d", j)
}

func bar(w, maxAbs float64) string {
	if maxAbs == 0 {
		return ""
	}
	n := int(math.Round(math.Abs(w) / maxAbs * barWidth))
	if n == 0 && w != 0 {
		n = 1
	}
	return strings.Repeat("█", n)
}
