package preprocessing

import (
	"encoding/gob"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/scigp/core/model"
	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
)

func init() {
	gob.Register(&Normalizer{})
	gob.Register(&Standardizer{})
}

var (
	_ Filter = (*Normalizer)(nil)
	_ Filter = (*Standardizer)(nil)
)

// Affine maps v to (v − Shift) / Scale. A zero Scale marks a constant
// column, which is only translated so that the map stays invertible.
type Affine struct {
	Shift float64
	Scale float64
}

func (a Affine) apply(v float64) float64 {
	if a.Scale == 0 {
		return v - a.Shift
	}
	return (v - a.Shift) / a.Scale
}

func transformAffine(name string, cols []Affine, target Affine, x []float64, y float64) ([]float64, float64, error) {
	if len(x) != len(cols) {
		return nil, 0, scigperrors.NewDimensionError(name+".TransformRow", len(cols), len(x), 1)
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = cols[j].apply(v)
	}
	return out, target.apply(y), nil
}

// Normalizer は属性とターゲットを [0, 1] の範囲にスケーリングする
//
// Ranges are taken from the training rows; query values outside the range
// map outside [0, 1].
type Normalizer struct {
	model.BaseEstimator

	Columns []Affine
	Target  Affine
}

// NewNormalizer returns an unfitted Normalizer.
func NewNormalizer() *Normalizer { return &Normalizer{} }

// Name implements Filter.
func (n *Normalizer) Name() string { return "Normalizer" }

func rangeOf(values []float64) Affine {
	lo, hi := floats.Min(values), floats.Max(values)
	return Affine{Shift: lo, Scale: hi - lo}
}

// Fit implements Filter.
func (n *Normalizer) Fit(X *mat.Dense, y, _ []float64) error {
	r, c := X.Dims()
	if r == 0 {
		return scigperrors.NewModelError("Normalizer.Fit", "empty data", scigperrors.ErrEmptyData)
	}
	n.Columns = make([]Affine, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		n.Columns[j] = rangeOf(col)
	}
	n.Target = rangeOf(y)
	n.SetFitted()
	return nil
}

// TransformRow implements Filter.
func (n *Normalizer) TransformRow(x []float64, y float64) ([]float64, float64, error) {
	if err := n.RequireFitted(n.Name(), "TransformRow"); err != nil {
		return nil, 0, err
	}
	return transformAffine(n.Name(), n.Columns, n.Target, x, y)
}

// Standardizer は属性とターゲットを平均0、標準偏差1に変換する
//
// Means and unbiased standard deviations are weighted by the instance
// weights. Fewer than two effective observations, or a constant column,
// give a zero scale and the column is only centred.
type Standardizer struct {
	model.BaseEstimator

	Columns []Affine
	Target  Affine
}

// NewStandardizer returns an unfitted Standardizer.
func NewStandardizer() *Standardizer { return &Standardizer{} }

// Name implements Filter.
func (s *Standardizer) Name() string { return "Standardizer" }

func moments(values, weights []float64) Affine {
	mean, std := stat.MeanStdDev(values, weights)
	if !(std > 0) || math.IsInf(std, 0) {
		std = 0
	}
	return Affine{Shift: mean, Scale: std}
}

// Fit implements Filter.
func (s *Standardizer) Fit(X *mat.Dense, y, weights []float64) error {
	r, c := X.Dims()
	if r == 0 {
		return scigperrors.NewModelError("Standardizer.Fit", "empty data", scigperrors.ErrEmptyData)
	}
	s.Columns = make([]Affine, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		s.Columns[j] = moments(col, weights)
	}
	s.Target = moments(y, weights)
	s.SetFitted()
	return nil
}

// TransformRow implements Filter.
func (s *Standardizer) TransformRow(x []float64, y float64) ([]float64, float64, error) {
	if err := s.RequireFitted(s.Name(), "TransformRow"); err != nil {
		return nil, 0, err
	}
	return transformAffine(s.Name(), s.Columns, s.Target, x, y)
}
