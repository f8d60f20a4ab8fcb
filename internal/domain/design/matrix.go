package design

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a dense numeric design matrix with named columns. It is
// immutable once built.
type Matrix struct {
	columns []string
	dense   *mat.Dense // nil when the matrix has no rows or no columns
	rows    int
}

// NewMatrix builds a matrix from named columns and row vectors.
func NewMatrix(columns []string, rows [][]float64) (Matrix, error) {
	if err := checkColumns(columns); err != nil {
		return Matrix{}, err
	}
	data := make([]float64, 0, len(columns)*len(rows))
	for i, r := range rows {
		if len(r) != len(columns) {
			return Matrix{}, fmt.Errorf("%w: row %d has %d values, want %d", ErrShape, i, len(r), len(columns))
		}
		data = append(data, r...)
	}
	return newMatrix(append([]string(nil), columns...), data, len(rows)), nil
}

// newMatrix wraps row-major data; it takes ownership of columns and data.
func newMatrix(columns []string, data []float64, rows int) Matrix {
	m := Matrix{columns: columns, rows: rows}
	if rows > 0 && len(columns) > 0 {
		m.dense = mat.NewDense(rows, len(columns), data)
	}
	return m
}

func checkColumns(columns []string) error {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("%w: column %q", ErrDuplicateFeature, c)
		}
		seen[c] = struct{}{}
	}
	return nil
}

// Columns returns a copy of the column names in order.
func (m Matrix) Columns() []string {
	return append([]string(nil), m.columns...)
}

// Rows returns the number of rows.
func (m Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m Matrix) Cols() int { return len(m.columns) }

// At returns the value at row i, column j.
func (m Matrix) At(i, j int) float64 {
	if m.dense == nil {
		panic(mat.ErrIndexOutOfRange)
	}
	return m.dense.At(i, j)
}

// Row returns a copy of row i.
func (m Matrix) Row(i int) []float64 {
	if m.dense == nil {
		if i < 0 || i >= m.rows {
			panic(mat.ErrRowAccess)
		}
		return []float64{}
	}
	return mat.Row(nil, i, m.dense)
}

// Column returns a copy of the named column.
func (m Matrix) Column(name string) ([]float64, bool) {
	for j, c := range m.columns {
		if c != name {
			continue
		}
		if m.dense == nil {
			return []float64{}, true
		}
		return mat.Col(nil, j, m.dense), true
	}
	return nil, false
}
