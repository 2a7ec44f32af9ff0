// Package predict abstracts the opaque model being explained: anything
// that maps a batch of rows to one prediction per row.
package predict

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Func scores a batch of rows.
type Func func(ctx context.Context, x mat.Matrix) ([]float64, error)

// Command wraps an external executable as a prediction function. The
// rows are written to its stdin as CSV and it must print one float per
// row to stdout. This keeps the explained model fully out of process;
// slime never trains or loads models itself.
type Command struct {
	Path string
	Args []string
}

// NewCommand splits a shell-ish command line on whitespace. Quoting is
// deliberately not supported; pass args explicitly if they contain
// spaces.
func NewCommand(line string) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("predict: empty model command")
	}
	return &Command{Path: fields[0], Args: fields[1:]}, nil
}

// Func adapts the command to the Func signature.
func (c *Command) Func() Func {
	return c.Predict
}

// Predict runs the command once for the whole batch.
func (c *Command) Predict(ctx context.Context, x mat.Matrix) ([]float64, error) {
	n, p := x.Dims()

	var in bytes.Buffer
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			if j > 0 {
				in.WriteByte(',')
			}
			in.WriteString(strconv.FormatFloat(x.At(i, j), 'g', -1, 64))
		}
		in.WriteByte('\n')
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Stdin = &in
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("predict: model command failed: %w (stderr: %s)",
			err, strings.TrimSpace(errBuf.String()))
	}

	preds := make([]float64, 0, n)
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("predict: bad prediction line %q: %w", line, err)
		}
		preds = append(preds, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("predict: reading model output: %w", err)
	}
	if len(preds) != n {
		return nil, fmt.Errorf("predict: model returned %d predictions for %d rows", len(preds), n)
	}
	return preds, nil
}
