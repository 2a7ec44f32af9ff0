// Package dataset loads tabular CSV data for explanation runs.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Dataset is a fully numeric table with named columns and an optional
// label column split out of the feature matrix.
type Dataset struct {
	// Names are the feature column names, label excluded.
	Names []string
	// X is the feature matrix, one row per record.
	X *mat.Dense
	// Labels holds the label column values, nil when no label column
	// was requested.
	Labels []float64
}

// Load reads a CSV file with a header row. When labelCol is non-empty
// that column is split into Labels; every remaining column must parse
// as float64.
func Load(path, labelCol string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()
	d, err := Read(f, labelCol)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", path, err)
	}
	return d, nil
}

// Read parses CSV content from r. See Load.
func Read(r io.Reader, labelCol string) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	labelIdx := -1
	var names []string
	for i, h := range header {
		if h == labelCol && labelCol != "" {
			labelIdx = i
			continue
		}
		names = append(names, h)
	}
	if labelCol != "" && labelIdx < 0 {
		return nil, fmt.Errorf("label column %q not in header", labelCol)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no feature columns")
	}

	var rows []float64
	var labels []float64
	n := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", n+1, err)
		}
		if len(rec) != len(header) {
			return nil, fmt.Errorf("record %d: %d fields, header has %d", n+1, len(rec), len(header))
		}
		for i, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("record %d column %q: %w", n+1, header[i], err)
			}
			if i == labelIdx {
				labels = append(labels, v)
			} else {
				rows = append(rows, v)
			}
		}
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("no data records")
	}

	d := &Dataset{
		Names: names,
		X:     mat.NewDense(n, len(names), rows),
	}
	if labelIdx >= 0 {
		d.Labels = labels
	}
	return d, nil
}

// Row copies record i of the feature matrix.
func (d *Dataset) Row(i int) ([]float64, error) {
	n, _ := d.X.Dims()
	if i < 0 || i >= n {
		return nil, fmt.Errorf("dataset: row %d out of range [0,%d)", i, n)
	}
	return mat.Row(nil, i, d.X), nil
}

// Name returns the feature name for column j, falling back to an
// index placeholder.
func (d *Dataset) Name(j int) string {
	if j >= 0 && j < len(d.Names) {
		return d.Names[j]
	}
	return fmt.Sprintf("f%d", j)
}
