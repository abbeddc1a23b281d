package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigp/core/model"
	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
)

var _ Filter = (*ReplaceMissing)(nil)

// ReplaceMissing は欠損値（NaN）を学習データの統計量で置き換える
//
// Numeric columns use the weighted mean of the observed values, nominal
// columns the category with the largest total weight. A column with no
// observed value is replaced by 0. Targets are passed through.
type ReplaceMissing struct {
	model.BaseEstimator

	Fill    []float64
	Nominal map[int]int
}

// NewReplaceMissing treats the keys of nominal as categorical columns.
func NewReplaceMissing(nominal map[int]int) *ReplaceMissing {
	return &ReplaceMissing{Nominal: nominal}
}

// Name implements Filter.
func (f *ReplaceMissing) Name() string { return "ReplaceMissing" }

// Fit implements Filter.
func (f *ReplaceMissing) Fit(X *mat.Dense, _, weights []float64) error {
	r, c := X.Dims()
	if r == 0 {
		return scigperrors.NewModelError("ReplaceMissing.Fit", "empty data", scigperrors.ErrEmptyData)
	}
	f.Fill = make([]float64, c)
	for j := 0; j < c; j++ {
		if k, ok := f.Nominal[j]; ok {
			f.Fill[j] = weightedMode(X, j, k, weights)
			continue
		}
		var sum, wsum float64
		for i := 0; i < r; i++ {
			v := X.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			sum += weights[i] * v
			wsum += weights[i]
		}
		if wsum > 0 {
			f.Fill[j] = sum / wsum
		}
	}
	f.SetFitted()
	return nil
}

func weightedMode(X *mat.Dense, col, categories int, weights []float64) float64 {
	r, _ := X.Dims()
	counts := make([]float64, categories)
	for i := 0; i < r; i++ {
		v := X.At(i, col)
		if math.IsNaN(v) || v < 0 || int(v) >= categories {
			continue
		}
		counts[int(v)] += weights[i]
	}
	best := 0
	for k := 1; k < categories; k++ {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return float64(best)
}

// TransformRow implements Filter.
func (f *ReplaceMissing) TransformRow(x []float64, y float64) ([]float64, float64, error) {
	if err := f.RequireFitted(f.Name(), "TransformRow"); err != nil {
		return nil, 0, err
	}
	if len(x) != len(f.Fill) {
		return nil, 0, scigperrors.NewDimensionError("ReplaceMissing.TransformRow", len(f.Fill), len(x), 1)
	}
	out := make([]float64, len(x))
	for j, v := range x {
		if math.IsNaN(v) {
			v = f.Fill[j]
		}
		out[j] = v
	}
	return out, y, nil
}
