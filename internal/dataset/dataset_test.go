package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `age,income,pred
25,50000,0.3
40,72000,0.8
33,61000,0.5
`

func TestReadWithLabel(t *testing.T) {
	d, err := Read(strings.NewReader(sampleCSV), "pred")
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "income"}, d.Names)
	r, c := d.X.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, []float64{0.3, 0.8, 0.5}, d.Labels)
	assert.Equal(t, 72000.0, d.X.At(1, 1))
}

func TestReadWithoutLabel(t *testing.T) {
	d, err := Read(strings.NewReader(sampleCSV), "")
	require.NoError(t, err)
	assert.Nil(t, d.Labels)
	assert.Equal(t, []string{"age", "income", "pred"}, d.Names)
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		csv   string
		label string
	}{
		{"missing label column", sampleCSV, "target"},
		{"non numeric field", "a,b\n1,x\n", ""},
		{"ragged record", "a,b\n1\n", ""},
		{"header only", "a,b\n", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.csv), tt.label)
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0644))

	d, err := Load(path, "pred")
	require.NoError(t, err)
	assert.Len(t, d.Labels, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"), "")
	assert.Error(t, err)
}

func TestRowAndName(t *testing.T) {
	d, err := Read(strings.NewReader(sampleCSV), "pred")
	require.NoError(t, err)

	row, err := d.Row(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{25, 50000}, row)

	_, err = d.Row(3)
	assert.Error(t, err)

	assert.Equal(t, "income", d.Name(1))
	assert.Equal(t, "f9", d.Name(9))
}
