package preprocessing

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
)

func ones(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

func TestParseFilterMode(t *testing.T) {
	tests := []struct {
		in      string
		want    FilterMode
		wantErr bool
	}{
		{"normalize", FilterNormalize, false},
		{"Standardize", FilterStandardize, false},
		{"none", FilterNone, false},
		{"", FilterNormalize, false},
		{"pca", FilterNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFilterMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) FilterMode {
	t.Helper()
	m, err := ParseFilterMode(s)
	require.NoError(t, err)
	return m
}

func TestReplaceMissing(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(4, 3, []float64{
		1, 0, nan,
		3, 1, nan,
		nan, 1, nan,
		5, nan, nan,
	})
	f := NewReplaceMissing(map[int]int{1: 2})
	require.NoError(t, f.Fit(X, nil, []float64{1, 1, 1, 2}))

	// weighted mean (1 + 3 + 2·5) / 4, weighted mode of {0, 1, 1} is 1,
	// an all-missing column becomes 0
	assert.InDelta(t, 3.5, f.Fill[0], 1e-12)
	assert.Equal(t, 1.0, f.Fill[1])
	assert.Equal(t, 0.0, f.Fill[2])

	out, y, err := f.TransformRow([]float64{nan, nan, 7}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{3.5, 1, 7}, out)
	assert.Equal(t, 2.0, y)
}

func TestNominalToBinary(t *testing.T) {
	f, err := NewNominalToBinary(map[int]int{0: 3, 2: 2})
	require.NoError(t, err)
	require.NoError(t, f.Fit(mat.NewDense(1, 3, []float64{0, 5, 1}), nil, nil))
	assert.Equal(t, 5, f.OutputWidth())

	out, _, err := f.TransformRow([]float64{2, 5.5, 1}, math.NaN())
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 5.5, 1}, out)

	_, _, err = f.TransformRow([]float64{3, 0, 0}, 0)
	assert.Error(t, err)
	_, _, err = f.TransformRow([]float64{0.5, 0, 0}, 0)
	assert.Error(t, err)

	_, err = NewNominalToBinary(map[int]int{0: 0})
	assert.Error(t, err)

	g, err := NewNominalToBinary(map[int]int{4: 2})
	require.NoError(t, err)
	assert.Error(t, g.Fit(mat.NewDense(1, 2, nil), nil, nil))
}

func TestNormalizer(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		0, 5,
		5, 5,
		10, 5,
	})
	y := []float64{2, 4, 6}
	n := NewNormalizer()
	require.NoError(t, n.Fit(X, y, ones(3)))

	out, yt, err := n.TransformRow([]float64{2.5, 7}, 5)
	require.NoError(t, err)
	// constant column is only translated
	assert.Equal(t, []float64{0.25, 2}, out)
	assert.Equal(t, 0.75, yt)

	_, yt, err = n.TransformRow([]float64{0, 5}, math.NaN())
	require.NoError(t, err)
	assert.True(t, math.IsNaN(yt))

	_, _, err = n.TransformRow([]float64{1}, 0)
	var dimErr *scigperrors.DimensionError
	assert.True(t, scigperrors.As(err, &dimErr))
}

func TestStandardizer(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := []float64{10, 10, 10, 10}
	s := NewStandardizer()
	require.NoError(t, s.Fit(X, y, ones(4)))

	// mean 2.5, unbiased std sqrt(5/3)
	out, yt, err := s.TransformRow([]float64{4}, 10)
	require.NoError(t, err)
	assert.InDelta(t, 1.5/math.Sqrt(5.0/3), out[0], 1e-12)
	assert.Equal(t, 0.0, yt, "constant target is only centred")

	single := NewStandardizer()
	require.NoError(t, single.Fit(mat.NewDense(1, 1, []float64{3}), []float64{7}, ones(1)))
	out, yt, err = single.TransformRow([]float64{4}, 8)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out[0])
	assert.Equal(t, 1.0, yt)
}

func TestUnfittedFilters(t *testing.T) {
	for _, f := range []Filter{NewNormalizer(), NewStandardizer(), NewReplaceMissing(nil)} {
		_, _, err := f.TransformRow([]float64{1}, 1)
		var nf *scigperrors.NotFittedError
		assert.True(t, scigperrors.As(err, &nf), f.Name())
	}
}

func TestPipelineTargetTransform(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := []float64{1, 3, 5}

	tests := []struct {
		mode     FilterMode
		wantAlin float64
		wantBlin float64
	}{
		{FilterNone, 1, 0},
		// (y − 1) / 4
		{FilterNormalize, 0.25, -0.25},
		// (y − 3) / 2
		{FilterStandardize, 0.5, -1.5},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			p, err := NewPipeline(PipelineConfig{Mode: tt.mode})
			require.NoError(t, err)

			Xt, yt, err := p.FitTransform(X, y, ones(3))
			require.NoError(t, err)

			alin, blin, err := p.TargetTransform()
			require.NoError(t, err)
			assert.InDelta(t, tt.wantAlin, alin, 1e-12)
			assert.InDelta(t, tt.wantBlin, blin, 1e-12)

			for i := range y {
				assert.InDelta(t, alin*y[i]+blin, yt[i], 1e-12)
				row, err := p.TransformRow(mat.Row(nil, i, X))
				require.NoError(t, err)
				assert.Equal(t, mat.Row(nil, i, Xt), row)
			}
		})
	}
}

func TestPipelineSinglePointNormalize(t *testing.T) {
	p, err := NewPipeline(PipelineConfig{Mode: FilterNormalize})
	require.NoError(t, err)
	_, yt, err := p.FitTransform(mat.NewDense(1, 1, []float64{0}), []float64{4}, ones(1))
	require.NoError(t, err)
	assert.Equal(t, 0.0, yt[0])

	alin, blin, err := p.TargetTransform()
	require.NoError(t, err)
	assert.Equal(t, 1.0, alin)
	assert.Equal(t, -4.0, blin)
}

func TestPipelineWithNominalAndMissing(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(3, 2, []float64{
		0, 1,
		2, nan,
		1, 3,
	})
	p, err := NewPipeline(PipelineConfig{Mode: FilterNone, NominalColumns: map[int]int{0: 3}})
	require.NoError(t, err)

	Xt, _, err := p.FitTransform(X, []float64{1, 2, 3}, ones(3))
	require.NoError(t, err)
	_, c := Xt.Dims()
	assert.Equal(t, 4, c)
	assert.Equal(t, []float64{0, 0, 1, 2}, mat.Row(nil, 1, Xt))

	row, err := p.TransformRow([]float64{nan, 5})
	require.NoError(t, err)
	// the mode of column 0 is category 0 (all tied, lowest wins)
	assert.Equal(t, []float64{1, 0, 0, 5}, row)

	_, err = p.TransformRow([]float64{1})
	assert.Error(t, err)
}

func TestPipelineGob(t *testing.T) {
	p, err := NewPipeline(PipelineConfig{Mode: FilterStandardize})
	require.NoError(t, err)
	_, _, err = p.FitTransform(mat.NewDense(3, 1, []float64{1, 2, 4}), []float64{0, 1, 5}, ones(3))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(p))
	var restored Pipeline
	require.NoError(t, gob.NewDecoder(&buf).Decode(&restored))

	a1, b1, err := p.TargetTransform()
	require.NoError(t, err)
	a2, b2, err := restored.TargetTransform()
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
}

func TestNewPipelineRejectsUnknownMode(t *testing.T) {
	_, err := NewPipeline(PipelineConfig{Mode: FilterMode(7)})
	var cfgErr *scigperrors.ConfigurationError
	assert.True(t, scigperrors.As(err, &cfgErr))
}

func TestPipelineExportRestore(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		0, 1,
		1, 4,
		2, math.NaN(),
	})
	p, err := NewPipeline(PipelineConfig{Mode: FilterNormalize, NominalColumns: map[int]int{0: 3}})
	require.NoError(t, err)
	_, _, err = p.FitTransform(X, []float64{3, 1, 2}, ones(3))
	require.NoError(t, err)

	state, err := p.Export()
	require.NoError(t, err)
	restored, err := RestorePipeline(state)
	require.NoError(t, err)

	for _, q := range [][]float64{{1, 2}, {2, math.NaN()}, {0, 10}} {
		want, err := p.TransformRow(q)
		require.NoError(t, err)
		got, err := restored.TransformRow(q)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	state.Columns = state.Columns[:1]
	_, err = RestorePipeline(state)
	assert.Error(t, err)

	_, err = NewPipeline(PipelineConfig{})
	require.NoError(t, err)
	unfitted, _ := NewPipeline(PipelineConfig{})
	_, err = unfitted.Export()
	assert.Error(t, err)
}
