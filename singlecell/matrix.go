package singlecell

import (
	"github.com/james-bowman/sparse"
)

// Triplets is a gob-friendly coordinate-form copy of a sparse matrix, used
// by the session checkpoint file.
type Triplets struct {
	Rows, Cols int
	I, J       []int32
	V          []float64
}

// ToTriplets flattens m into coordinate form. A nil matrix yields a nil
// result.
func ToTriplets(m *sparse.CSR) *Triplets {
	if m == nil {
		return nil
	}
	r, c := m.Dims()
	t := &Triplets{Rows: r, Cols: c}
	m.DoNonZero(func(i, j int, v float64) {
		t.I = append(t.I, int32(i))
		t.J = append(t.J, int32(j))
		t.V = append(t.V, v)
	})
	return t
}

// ToCSR rebuilds the CSR matrix from coordinate form.
func (t *Triplets) ToCSR() *sparse.CSR {
	if t == nil {
		return nil
	}
	dok := sparse.NewDOK(t.Rows, t.Cols)
	for n, v := range t.V {
		dok.Set(int(t.I[n]), int(t.J[n]), v)
	}
	return dok.ToCSR()
}

// columnIndex is a per-gene view over a cells x genes CSR matrix. CSR rows
// are cells, so gene-major passes (feature selection, marker testing) build
// this once instead of scanning the whole matrix per gene.
type columnIndex struct {
	cells [][]int32
	vals  [][]float64
}

func newColumnIndex(m *sparse.CSR) *columnIndex {
	_, c := m.Dims()
	ci := &columnIndex{
		cells: make([][]int32, c),
		vals:  make([][]float64, c),
	}
	m.DoNonZero(func(i, j int, v float64) {
		ci.cells[j] = append(ci.cells[j], int32(i))
		ci.vals[j] = append(ci.vals[j], v)
	})
	return ci
}

// rowSums returns the per-cell total count.
func rowSums(m *sparse.CSR) []float64 {
	r, _ := m.Dims()
	sums := make([]float64, r)
	for i := 0; i < r; i++ {
		m.DoRowNonZero(i, func(_, _ int, v float64) {
			sums[i] += v
		})
	}
	return sums
}
