package preprocessing

import (
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigp/core/model"
	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
)

var _ Filter = (*NominalToBinary)(nil)

// NominalToBinary expands categorical columns into indicator columns.
//
// A categorical column holds the category index 0..k-1. With k > 2 it
// becomes k indicator columns in category order; with k ≤ 2 it stays a
// single 0/1 column. Other columns pass through unchanged and the output
// keeps the original column order.
type NominalToBinary struct {
	model.BaseEstimator

	Categories map[int]int
	InputWidth int
}

// NewNominalToBinary validates the category counts.
func NewNominalToBinary(categories map[int]int) (*NominalToBinary, error) {
	for _, col := range lo.Keys(categories) {
		if col < 0 || categories[col] < 1 {
			return nil, scigperrors.NewConfigurationError("NominalToBinary", "nominal_columns",
				"column index must be >= 0 and category count >= 1", map[int]int{col: categories[col]})
		}
	}
	return &NominalToBinary{Categories: categories}, nil
}

// Name implements Filter.
func (f *NominalToBinary) Name() string { return "NominalToBinary" }

// Fit implements Filter.
func (f *NominalToBinary) Fit(X *mat.Dense, _, _ []float64) error {
	_, c := X.Dims()
	cols := lo.Keys(f.Categories)
	sort.Ints(cols)
	if len(cols) > 0 && cols[len(cols)-1] >= c {
		return scigperrors.NewConfigurationError("NominalToBinary", "nominal_columns",
			"column index out of range", cols[len(cols)-1])
	}
	f.InputWidth = c
	f.SetFitted()
	return nil
}

// OutputWidth is the number of columns TransformRow produces.
func (f *NominalToBinary) OutputWidth() int {
	w := f.InputWidth
	for _, k := range f.Categories {
		if k > 2 {
			w += k - 1
		}
	}
	return w
}

// TransformRow implements Filter.
func (f *NominalToBinary) TransformRow(x []float64, y float64) ([]float64, float64, error) {
	if err := f.RequireFitted(f.Name(), "TransformRow"); err != nil {
		return nil, 0, err
	}
	if len(x) != f.InputWidth {
		return nil, 0, scigperrors.NewDimensionError("NominalToBinary.TransformRow", f.InputWidth, len(x), 1)
	}
	out := make([]float64, 0, f.OutputWidth())
	for j, v := range x {
		k, nominal := f.Categories[j]
		if !nominal {
			out = append(out, v)
			continue
		}
		if math.IsNaN(v) || v != math.Trunc(v) || v < 0 || int(v) >= k {
			return nil, 0, errors.Newf("column %d: %v is not a category index below %d", j, v, k)
		}
		if k <= 2 {
			out = append(out, v)
			continue
		}
		for c := 0; c < k; c++ {
			out = append(out, lo.Ternary(c == int(v), 1.0, 0.0))
		}
	}
	return out, y, nil
}
