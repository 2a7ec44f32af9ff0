package predict

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewCommand(t *testing.T) {
	c, err := NewCommand("python3 predict.py --flag")
	require.NoError(t, err)
	assert.Equal(t, "python3", c.Path)
	assert.Equal(t, []string{"predict.py", "--flag"}, c.Args)

	_, err = NewCommand("   ")
	assert.Error(t, err)
}

func TestCommandPredict(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on awk")
	}
	// Model: sum of the two columns.
	c := &Command{Path: "awk", Args: []string{"-F,", "{print $1 + $2}"}}

	x := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	got, err := c.Predict(context.Background(), x)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.InDelta(t, 3, got[0], 1e-9)
	assert.InDelta(t, 7, got[1], 1e-9)
	assert.InDelta(t, 11, got[2], 1e-9)
}

func TestCommandPredictCountMismatch(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on true(1)")
	}
	c := &Command{Path: "true"}
	_, err := c.Predict(context.Background(), mat.NewDense(2, 1, []float64{1, 2}))
	assert.Error(t, err)
}

func TestCommandPredictFailure(t *testing.T) {
	c := &Command{Path: "/nonexistent/model"}
	_, err := c.Predict(context.Background(), mat.NewDense(1, 1, []float64{1}))
	assert.Error(t, err)
}
