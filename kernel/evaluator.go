package kernel

import (
	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
)

// Evaluator binds a kernel to the training rows of one fit. Train, Cross
// and Self cover the three evaluations the regressor needs: two training
// rows, a query against a training row, and a query against itself.
// Failures are returned as DataError naming the offending row.
type Evaluator struct {
	kernel Kernel
	rows   [][]float64
}

// NewEvaluator keeps a reference to rows; callers must not modify them.
func NewEvaluator(k Kernel, rows [][]float64) *Evaluator {
	return &Evaluator{kernel: k, rows: rows}
}

// Len is the number of training rows.
func (e *Evaluator) Len() int { return len(e.rows) }

// Kernel returns the bound kernel.
func (e *Evaluator) Kernel() Kernel { return e.kernel }

// Train returns k(row i, row j).
func (e *Evaluator) Train(i, j int) (float64, error) {
	v, err := e.kernel.Eval(e.rows[i], e.rows[j])
	if err != nil {
		return 0, scigperrors.NewDataError("kernel.Evaluator.Train", i, err)
	}
	return v, nil
}

// Cross returns k(query, row j).
func (e *Evaluator) Cross(query []float64, j int) (float64, error) {
	v, err := e.kernel.Eval(query, e.rows[j])
	if err != nil {
		return 0, scigperrors.NewDataError("kernel.Evaluator.Cross", j, err)
	}
	return v, nil
}

// Self returns k(query, query).
func (e *Evaluator) Self(query []float64) (float64, error) {
	v, err := e.kernel.Eval(query, query)
	if err != nil {
		return 0, scigperrors.NewDataError("kernel.Evaluator.Self", -1, err)
	}
	return v, nil
}
