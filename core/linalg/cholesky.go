package linalg

import (
	"context"
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigp/core/parallel"
	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
)

// rowThreshold is the number of trailing rows below which a pivot step
// is updated on the calling goroutine.
const rowThreshold = 128

// pivotEpsilon scales the relative pivot tolerance n·pivotEpsilon·max(diag A).
// It sits a few ulps above machine epsilon so that the rounding residue of
// an exactly singular matrix is never mistaken for a positive pivot.
const pivotEpsilon = 1e-15

// Factorize computes the upper triangular U with A = Uᵀ·U.
//
// A pivot that is not above n·pivotEpsilon·max_j A[j][j] (or NaN) stops the
// factorisation with a NumericalError carrying the pivot index and value;
// no diagonal shift is attempted. ctx is checked before every pivot.
//
// The lower factor L = Uᵀ is accumulated row-major so that each entry is a
// contiguous dot product, L[i][j] = (A[i][j] − L[i][:j]·L[j][:j]) / L[j][j].
// Every entry is produced by one goroutine with a fixed summation order, so
// results are bitwise reproducible regardless of scheduling.
func Factorize(ctx context.Context, a mat.Symmetric) (*mat.TriDense, error) {
	n := a.SymmetricDim()
	l := make([]float64, n*n)
	row := func(i int) []float64 { return l[i*n : i*n+n] }

	maxDiag := 0.0
	for j := 0; j < n; j++ {
		maxDiag = math.Max(maxDiag, a.At(j, j))
	}
	tol := float64(n) * pivotEpsilon * maxDiag

	for j := 0; j < n; j++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "factorisation interrupted at pivot %d", j)
		}

		lj := row(j)
		d := a.At(j, j) - floats.Dot(lj[:j], lj[:j])
		if !(d > 0) || d <= tol {
			return nil, scigperrors.NewPivotError("linalg.Factorize", j, d)
		}
		ljj := math.Sqrt(d)
		lj[j] = ljj

		trailing := n - j - 1
		parallel.ParallelizeWithThreshold(trailing, rowThreshold, func(start, end int) {
			for i := j + 1 + start; i < j+1+end; i++ {
				li := row(i)
				li[j] = (a.At(i, j) - floats.Dot(li[:j], lj[:j])) / ljj
			}
		})
	}

	u := mat.NewTriDense(n, mat.Upper, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			u.SetTri(i, j, l[j*n+i])
		}
	}
	return u, nil
}

// Inverse is the explicit inverse of a symmetric positive definite matrix.
type Inverse struct {
	// Matrix is A⁻¹.
	Matrix *mat.SymDense
	// Factor is U from A = Uᵀ·U.
	Factor *mat.TriDense
	// Condition is gonum's 2-norm condition number estimate of A.
	Condition float64
}

// Invert factorises a and solves U·Uᵀ·X = I for the explicit inverse.
func Invert(ctx context.Context, a mat.Symmetric) (*Inverse, error) {
	u, err := Factorize(ctx, a)
	if err != nil {
		return nil, err
	}

	var chol mat.Cholesky
	chol.SetFromU(u)

	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			// gonum flags the matrix as numerically singular; treat it like
			// a failed pivot so the noise retry applies.
			return nil, scigperrors.NewNumericalError("linalg.Invert",
				"covariance is numerically singular (condition "+strconv.FormatFloat(float64(cond), 'g', 3, 64)+")",
				errors.Mark(err, scigperrors.ErrNotPositiveDefinite))
		}
		return nil, scigperrors.NewNumericalError("linalg.Invert", "triangular inversion failed", err)
	}
	if err := scigperrors.CheckMatrix("linalg.Invert", &inv, inv.SymmetricDim(), inv.SymmetricDim()); err != nil {
		return nil, err
	}
	return &Inverse{Matrix: &inv, Factor: u, Condition: chol.Cond()}, nil
}
