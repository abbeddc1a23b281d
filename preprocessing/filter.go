// Package preprocessing はGaussian process 学習前のデータ変換を提供します。
//
// Filters operate on whole instances: the attribute row and its target.
// Scaling filters transform the target as well, so a fitted pipeline maps
// targets affinely and the regressor recovers that map by probing.
package preprocessing

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
)

// Filter is one fitted preprocessing stage.
type Filter interface {
	// Fit learns the stage's statistics. weights has one entry per row.
	Fit(X *mat.Dense, y, weights []float64) error
	// TransformRow maps one row and its target. y is NaN when unknown and
	// stays NaN.
	TransformRow(x []float64, y float64) ([]float64, float64, error)
	Name() string
}

// FilterMode selects the scaling stage.
type FilterMode int

const (
	// FilterNormalize maps attributes and target to [0, 1].
	FilterNormalize FilterMode = iota
	// FilterStandardize maps attributes and target to zero mean, unit variance.
	FilterStandardize
	// FilterNone leaves values unscaled.
	FilterNone
)

func (m FilterMode) String() string {
	switch m {
	case FilterNormalize:
		return "normalize"
	case FilterStandardize:
		return "standardize"
	case FilterNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseFilterMode accepts the names returned by FilterMode.String.
func ParseFilterMode(s string) (FilterMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normalize", "normalise", "":
		return FilterNormalize, nil
	case "standardize", "standardise":
		return FilterStandardize, nil
	case "none":
		return FilterNone, nil
	default:
		return FilterNone, scigperrors.NewConfigurationError("preprocessing", "filter", "must be one of normalize, standardize, none", s)
	}
}

// Valid reports whether m is one of the defined modes.
func (m FilterMode) Valid() bool {
	return m >= FilterNormalize && m <= FilterNone
}

// applyAll runs f over every row of X.
func applyAll(f Filter, X *mat.Dense, y []float64) (*mat.Dense, []float64, error) {
	r, _ := X.Dims()
	var out *mat.Dense
	yOut := make([]float64, r)
	for i := 0; i < r; i++ {
		row, yi, err := f.TransformRow(X.RawRowView(i), y[i])
		if err != nil {
			return nil, nil, scigperrors.NewDataError(f.Name()+".Transform", i, err)
		}
		if out == nil {
			out = mat.NewDense(r, len(row), nil)
		}
		out.SetRow(i, row)
		yOut[i] = yi
	}
	return out, yOut, nil
}
