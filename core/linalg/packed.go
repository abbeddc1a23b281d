// Package linalg holds the dense symmetric linear algebra used to train
// Gaussian processes: packed covariance storage, a Cholesky factorisation
// that reports the failing pivot, and explicit inversion.
//
// Each pipeline stage has one matrix type. Covariance assembly writes a
// PackedSymmetric; factorisation and inversion work on gonum's SymDense.
// Conversions between them are explicit and never share memory.
package linalg

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// PackedSymmetric stores the upper triangle of an n×n symmetric matrix
// row by row in n(n+1)/2 values.
type PackedSymmetric struct {
	n    int
	data []float64
}

var _ mat.Symmetric = (*PackedSymmetric)(nil)

// NewPackedSymmetric returns a zero n×n matrix.
func NewPackedSymmetric(n int) *PackedSymmetric {
	if n <= 0 {
		panic(fmt.Sprintf("linalg: invalid packed size %d", n))
	}
	return &PackedSymmetric{n: n, data: make([]float64, n*(n+1)/2)}
}

func (p *PackedSymmetric) index(i, j int) int {
	if i > j {
		i, j = j, i
	}
	if i < 0 || j >= p.n {
		panic(mat.ErrIndexOutOfRange)
	}
	return i*p.n - i*(i-1)/2 + (j - i)
}

// At returns element (i, j); (j, i) is the same element.
func (p *PackedSymmetric) At(i, j int) float64 { return p.data[p.index(i, j)] }

// SetSym sets elements (i, j) and (j, i).
func (p *PackedSymmetric) SetSym(i, j int, v float64) { p.data[p.index(i, j)] = v }

// UpperRow returns the stored part of row i, columns i..n-1. Rows do not
// overlap, so distinct rows may be written concurrently.
func (p *PackedSymmetric) UpperRow(i int) []float64 {
	start := p.index(i, i)
	return p.data[start : start+p.n-i]
}

// Dims implements mat.Matrix.
func (p *PackedSymmetric) Dims() (r, c int) { return p.n, p.n }

// T implements mat.Matrix. A symmetric matrix is its own transpose.
func (p *PackedSymmetric) T() mat.Matrix { return p }

// SymmetricDim implements mat.Symmetric.
func (p *PackedSymmetric) SymmetricDim() int { return p.n }

// ToSymDense copies the matrix into dense symmetric storage.
func (p *PackedSymmetric) ToSymDense() *mat.SymDense {
	out := mat.NewSymDense(p.n, nil)
	for i := 0; i < p.n; i++ {
		row := p.UpperRow(i)
		for k, v := range row {
			out.SetSym(i, i+k, v)
		}
	}
	return out
}

// PackSymmetric copies the upper triangle of s into packed storage.
func PackSymmetric(s mat.Symmetric) *PackedSymmetric {
	n := s.SymmetricDim()
	p := NewPackedSymmetric(n)
	for i := 0; i < n; i++ {
		row := p.UpperRow(i)
		for k := range row {
			row[k] = s.At(i, i+k)
		}
	}
	return p
}
