package gaussian_process

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/scigp/core/model"
	"github.com/YuminosukeSato/scigp/kernel"
	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
	"github.com/YuminosukeSato/scigp/pkg/log"
	"github.com/YuminosukeSato/scigp/preprocessing"
)

func col(v ...float64) *mat.Dense { return mat.NewDense(len(v), 1, v) }

func linearKernel() kernel.Config {
	return kernel.Config{Type: kernel.TypePoly, Exponent: 1, UseLowerOrder: true}
}

// sineData は y = sin(x) の学習データを作成
func sineData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := float64(i) * 0.5
		X.Set(i, 0, x)
		y.Set(i, 0, math.Sin(x))
	}
	return X, y
}

func rbfRegressor(noise float64, opts ...Option) *GaussianProcessRegressor {
	base := []Option{
		WithNoise(noise),
		WithFilterType(preprocessing.FilterNone),
		WithKernel(kernel.Config{Type: kernel.TypeRBF, Gamma: 1}),
	}
	return NewGaussianProcessRegressor(append(base, opts...)...)
}

func TestLinearKernelExtrapolates(t *testing.T) {
	gp := NewGaussianProcessRegressor(
		WithNoise(0.01),
		WithFilterType(preprocessing.FilterNone),
		WithKernel(linearKernel()),
	)
	require.NoError(t, gp.Fit(col(1, 2, 3), col(1, 2, 3)))
	assert.Equal(t, model.Fitted, gp.State())

	pred, err := gp.Predict(col(4))
	require.NoError(t, err)
	assert.InDelta(t, 4.0, pred.At(0, 0), 0.1)
}

func TestFlatTargetHasOnlyNoiseUncertainty(t *testing.T) {
	const noise = 0.1
	gp := NewGaussianProcessRegressor(WithNoise(noise))
	require.NoError(t, gp.Fit(col(0, 1, 2, 3), col(5, 5, 5, 5)))

	pred, err := gp.Predict(col(-10, 0.5, 1.5, 42))
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, 5.0, pred.At(i, 0), 1e-12)
	}

	sd, err := gp.PredictStdDev(col(0, 1.5, 3))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.GreaterOrEqual(t, sd.At(i, 0), noise*(1-1e-9))
		assert.LessOrEqual(t, sd.At(i, 0), 1.5*noise)
	}
}

func TestSingularCovarianceFails(t *testing.T) {
	gp := NewGaussianProcessRegressor(
		WithNoise(0),
		WithFilterType(preprocessing.FilterNone),
		WithKernel(kernel.Config{Type: kernel.TypePoly, Exponent: 1}),
	)
	err := gp.Fit(col(1, 1), col(1, 2))
	require.Error(t, err)

	var numErr *scigperrors.NumericalError
	require.True(t, scigperrors.As(err, &numErr))
	assert.Equal(t, 1, numErr.Pivot)
	assert.True(t, scigperrors.Is(err, scigperrors.ErrNotPositiveDefinite))
	assert.Equal(t, model.NotFitted, gp.State())

	_, err = gp.Predict(col(1))
	var nf *scigperrors.NotFittedError
	assert.True(t, scigperrors.As(err, &nf))
}

func TestDuplicateRowsWithoutNoiseFail(t *testing.T) {
	kernels := []kernel.Config{
		{Type: kernel.TypePoly, Exponent: 1},
		{Type: kernel.TypePoly, Exponent: 2},
		{Type: kernel.TypePoly, Exponent: 2, UseLowerOrder: true},
		{Type: kernel.TypeNormalizedPoly, Exponent: 2},
		{Type: kernel.TypeRBF, Gamma: 1},
		{Type: kernel.TypePUK, Omega: 1, Sigma: 1},
	}
	filters := []preprocessing.FilterMode{preprocessing.FilterNone, preprocessing.FilterNormalize, preprocessing.FilterStandardize}
	values := []float64{-2.5, 0.3, 1, 3.7, 12.25, 101}

	for _, kc := range kernels {
		for _, f := range filters {
			for _, v := range values {
				gp := NewGaussianProcessRegressor(WithNoise(0), WithFilterType(f), WithKernel(kc))
				err := gp.Fit(col(v, v, v+1), col(1, 2, 3))
				var numErr *scigperrors.NumericalError
				if assert.True(t, scigperrors.As(err, &numErr), "%s/%s x=%v: %v", f, kc.Type, v, err) {
					assert.True(t, scigperrors.Is(err, scigperrors.ErrNotPositiveDefinite))
				}
				assert.False(t, gp.IsFitted(), "%s/%s x=%v", f, kc.Type, v)
			}
		}
	}
}

func TestInfiniteTargetRejected(t *testing.T) {
	gp := NewGaussianProcessRegressor(
		WithNoise(0.1),
		WithFilterType(preprocessing.FilterNone),
		WithKernel(linearKernel()),
	)
	err := gp.Fit(col(1, 2, 3), col(1, math.Inf(1), 2))

	var instErr *scigperrors.NumericalInstabilityError
	require.True(t, scigperrors.As(err, &instErr), "%v", err)
	assert.Equal(t, "GaussianProcessRegressor.Fit", instErr.Operation)
	assert.Equal(t, []float64{math.Inf(1)}, instErr.Values)
	assert.False(t, gp.IsFitted())
}

func TestSinglePointInterval(t *testing.T) {
	gp := NewGaussianProcessRegressor(WithNoise(1))
	require.NoError(t, gp.Fit(col(0), col(3)))

	bounds, err := gp.PredictInterval(col(0), 0.95)
	require.NoError(t, err)
	lo, hi := bounds.At(0, 0), bounds.At(0, 1)
	assert.InDelta(t, 3.0, (lo+hi)/2, 1e-9)
	assert.InDelta(t, 1.959964, (hi-lo)/2, 1e-5)
	assert.Equal(t, int64(0), gp.ClampCount())
}

func TestFailedRefitResetsModel(t *testing.T) {
	gp := NewGaussianProcessRegressor(
		WithFilterType(preprocessing.FilterNone),
		WithKernel(kernel.Config{Type: kernel.TypePoly, Exponent: 1}),
	)
	require.NoError(t, gp.Fit(col(1, 2), col(1, 2)))
	require.True(t, gp.IsFitted())

	require.NoError(t, gp.SetParams(map[string]interface{}{"noise": 0.0}))
	require.Error(t, gp.Fit(col(1, 1), col(1, 2)))
	assert.False(t, gp.IsFitted())
}

func TestNoiseRetry(t *testing.T) {
	var warnings []error
	scigperrors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer scigperrors.SetWarningHandler(func(error) {})

	gp := NewGaussianProcessRegressor(
		WithNoise(0),
		WithNoiseRetries(3),
		WithFilterType(preprocessing.FilterNone),
		WithKernel(kernel.Config{Type: kernel.TypePoly, Exponent: 1}),
	)
	require.NoError(t, gp.Fit(col(1, 1), col(1, 2)))

	noise, err := gp.EffectiveNoise()
	require.NoError(t, err)
	assert.Greater(t, noise, 0.0)
	assert.LessOrEqual(t, noise, 1e-6)

	var regWarn *scigperrors.RegularizationWarning
	found := false
	for _, w := range warnings {
		if scigperrors.As(w, &regWarn) {
			found = true
		}
	}
	assert.True(t, found, "expected a RegularizationWarning")
}

func TestStdDevGrowsWithNoise(t *testing.T) {
	X, y := sineData(9)
	queries := col(0.25, 1.75, 3.1, 10)

	var prev mat.Matrix
	for _, noise := range []float64{0.01, 0.1, 0.5, 1} {
		gp := rbfRegressor(noise)
		require.NoError(t, gp.Fit(X, y))
		sd, err := gp.PredictStdDev(queries)
		require.NoError(t, err)
		if prev != nil {
			for i := 0; i < 4; i++ {
				assert.Greater(t, sd.At(i, 0), prev.At(i, 0), "noise %v row %d", noise, i)
			}
		}
		prev = sd
	}
}

func TestIntervalsNest(t *testing.T) {
	X, y := sineData(7)
	gp := rbfRegressor(0.2)
	require.NoError(t, gp.Fit(X, y))
	queries := col(0.1, 1.3, 2.9, 5)

	narrow, err := gp.PredictInterval(queries, 0.5)
	require.NoError(t, err)
	mid, err := gp.PredictInterval(queries, 0.9)
	require.NoError(t, err)
	wide, err := gp.PredictInterval(queries, 0.99)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		assert.Less(t, wide.At(i, 0), mid.At(i, 0))
		assert.Less(t, mid.At(i, 0), narrow.At(i, 0))
		assert.Less(t, narrow.At(i, 1), mid.At(i, 1))
		assert.Less(t, mid.At(i, 1), wide.At(i, 1))
	}

	for _, c := range []float64{0, 1, -0.5, math.NaN()} {
		_, err := gp.PredictInterval(queries, c)
		var vErr *scigperrors.ValidationError
		assert.True(t, scigperrors.As(err, &vErr), "confidence %v", c)
	}
}

func TestLogDensityMatchesExternalNormal(t *testing.T) {
	X, y := sineData(8)
	y.Scale(3, y)
	y.Apply(func(_, _ int, v float64) float64 { return v + 10 }, y)

	for _, mode := range []preprocessing.FilterMode{preprocessing.FilterNone, preprocessing.FilterNormalize, preprocessing.FilterStandardize} {
		t.Run(mode.String(), func(t *testing.T) {
			gp := NewGaussianProcessRegressor(
				WithNoise(0.3),
				WithFilterType(mode),
				WithKernel(kernel.Config{Type: kernel.TypeRBF, Gamma: 2}),
			)
			require.NoError(t, gp.Fit(X, y))

			queries := col(0.3, 1.1, 2.2)
			targets := col(10.5, 12, 9)
			ld, err := gp.LogDensity(queries, targets)
			require.NoError(t, err)
			mean, sd, err := gp.PredictMeanStd(queries)
			require.NoError(t, err)

			for i := 0; i < 3; i++ {
				want := distuv.Normal{Mu: mean.At(i, 0), Sigma: sd.At(i, 0)}.LogProb(targets.At(i, 0))
				assert.InDelta(t, want, ld.At(i, 0), 1e-9)
			}

			if mode == preprocessing.FilterNone {
				alin, blin, err := gp.TargetTransform()
				require.NoError(t, err)
				assert.Equal(t, 1.0, alin)
				assert.Equal(t, 0.0, blin)
			}
		})
	}

	gp := rbfRegressor(0.1)
	require.NoError(t, gp.Fit(X, y))
	_, err := gp.LogDensity(col(1, 2), col(1))
	var dimErr *scigperrors.DimensionError
	assert.True(t, scigperrors.As(err, &dimErr))
}

func TestStandardDeviationScalesWithTarget(t *testing.T) {
	X, y := sineData(6)
	gp := NewGaussianProcessRegressor(WithNoise(0.2), WithFilterType(preprocessing.FilterStandardize))
	require.NoError(t, gp.Fit(X, y))

	alin, _, err := gp.TargetTransform()
	require.NoError(t, err)
	internal, err := gp.PredictStdDev(col(1, 2))
	require.NoError(t, err)
	external, err := gp.StandardDeviation(col(1, 2))
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		assert.InDelta(t, internal.At(i, 0)/math.Abs(alin), external.At(i, 0), 1e-12)
	}
}

func TestInverseReconstructsCovariance(t *testing.T) {
	X, y := sineData(12)
	gp := rbfRegressor(0.05, WithParallelThreshold(2))
	require.NoError(t, gp.FitWeighted(X, y, []float64{1, 2, 1, 0.5, 1, 1, 3, 1, 1, 1, 1, 1}))

	m, ok := gp.state.Load()
	require.True(t, ok)
	cov, err := buildCovariance(context.Background(), m.eval, m.weights, m.noiseSq(), 1000)
	require.NoError(t, err)

	var prod mat.Dense
	prod.Mul(cov, m.inverse)
	n := m.nSamples
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, prod.At(i, j), 1e-6)
			assert.Equal(t, m.inverse.At(i, j), m.inverse.At(j, i))
		}
	}
}

func TestDeterministicAcrossParallelism(t *testing.T) {
	X, y := sineData(40)
	queries, _ := sineData(25)

	var results [][]float64
	for _, threshold := range []int{1, 8, 1000} {
		gp := rbfRegressor(0.1, WithParallelThreshold(threshold))
		require.NoError(t, gp.Fit(X, y))
		mean, sd, err := gp.PredictMeanStd(queries)
		require.NoError(t, err)
		results = append(results, append(mat.Col(nil, 0, mean), mat.Col(nil, 0, sd)...))
	}
	assert.Equal(t, results[0], results[1])
	assert.Equal(t, results[0], results[2])
}

func TestNotFitted(t *testing.T) {
	gp := NewGaussianProcessRegressor()
	assert.Equal(t, "UNTRAINED", gp.State().String())

	calls := map[string]func() error{
		"Predict":           func() error { _, err := gp.Predict(col(1)); return err },
		"PredictStdDev":     func() error { _, err := gp.PredictStdDev(col(1)); return err },
		"StandardDeviation": func() error { _, err := gp.StandardDeviation(col(1)); return err },
		"PredictInterval":   func() error { _, err := gp.PredictInterval(col(1), 0.9); return err },
		"PredictInterval with invalid confidence": func() error { _, err := gp.PredictInterval(col(1), 1.5); return err },
		"LogDensity":     func() error { _, err := gp.LogDensity(col(1), col(1)); return err },
		"Score":          func() error { _, err := gp.Score(col(1), col(1)); return err },
		"ExportWeights":  func() error { _, err := gp.ExportWeights(); return err },
		"SaveTo":         func() error { return gp.SaveTo(&bytes.Buffer{}) },
		"EffectiveNoise": func() error { _, err := gp.EffectiveNoise(); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			var nf *scigperrors.NotFittedError
			assert.True(t, scigperrors.As(call(), &nf))
		})
	}
}

func TestConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"negative noise", []Option{WithNoise(-1)}},
		{"infinite noise", []Option{WithNoise(math.Inf(1))}},
		{"unknown kernel", []Option{WithKernel(kernel.Config{Type: "sigmoid"})}},
		{"bad gamma", []Option{WithKernel(kernel.Config{Type: kernel.TypeRBF, Gamma: -1})}},
		{"unknown filter", []Option{WithFilterType(preprocessing.FilterMode(9))}},
		{"precomputed needs filter none", []Option{WithKernel(kernel.Config{Type: kernel.TypePrecomputed, Matrix: [][]float64{{1}}})}},
		{"negative retries", []Option{WithNoiseRetries(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gp := NewGaussianProcessRegressor(tt.opts...)
			err := gp.Fit(col(1, 2), col(1, 2))
			var cfgErr *scigperrors.ConfigurationError
			assert.True(t, scigperrors.As(err, &cfgErr), "got %v", err)
			assert.False(t, gp.IsFitted())
		})
	}
}

func TestInputValidation(t *testing.T) {
	gp := rbfRegressor(0.1)

	var dimErr *scigperrors.DimensionError
	assert.True(t, scigperrors.As(gp.Fit(col(1, 2, 3), col(1, 2)), &dimErr))
	assert.True(t, scigperrors.As(gp.Fit(col(1, 2), mat.NewDense(2, 2, nil)), &dimErr))
	assert.True(t, scigperrors.As(gp.FitWeighted(col(1, 2), col(1, 2), []float64{1}), &dimErr))

	var vErr *scigperrors.ValidationError
	assert.True(t, scigperrors.As(gp.FitWeighted(col(1, 2), col(1, 2), []float64{1, -1}), &vErr))
	assert.True(t, scigperrors.As(gp.FitWeighted(col(1, 2), col(1, 2), []float64{0, 0}), &vErr))

	err := gp.Fit(col(1, 2), col(math.NaN(), math.NaN()))
	assert.True(t, scigperrors.Is(err, scigperrors.ErrEmptyData))

	require.NoError(t, gp.Fit(col(1, 2), col(1, 2)))
	_, err = gp.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	assert.True(t, scigperrors.As(err, &dimErr))
}

func TestMissingValues(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(5, 2, []float64{
		0, 1,
		1, nan,
		2, 3,
		3, 4,
		4, 5,
	})
	y := col(0, 1, nan, 3, 4)

	gp := rbfRegressor(0.1)
	require.NoError(t, gp.Fit(X, y))
	summary := gp.Summary()
	assert.True(t, summary.Fitted)
	assert.Equal(t, 4, summary.NSamples)
	assert.Equal(t, 2, summary.NFeatures)

	pred, err := gp.Predict(mat.NewDense(1, 2, []float64{nan, 2}))
	require.NoError(t, err)
	assert.False(t, math.IsNaN(pred.At(0, 0)))
}

func TestNominalColumns(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0.1,
		1, 0.2,
		2, 0.3,
		0, 0.4,
		1, 0.5,
		2, 0.6,
	})
	y := col(1, 5, 9, 1.2, 5.1, 9.3)
	gp := NewGaussianProcessRegressor(
		WithNoise(0.1),
		WithNominalColumns(map[int]int{0: 3}),
		WithKernel(kernel.Config{Type: kernel.TypeRBF, Gamma: 1}),
	)
	require.NoError(t, gp.Fit(X, y))

	pred, err := gp.Predict(mat.NewDense(1, 2, []float64{2, 0.45}))
	require.NoError(t, err)
	assert.Greater(t, pred.At(0, 0), 5.0)

	_, err = gp.Predict(mat.NewDense(1, 2, []float64{5, 0.45}))
	var dataErr *scigperrors.DataError
	assert.True(t, scigperrors.As(err, &dataErr))
}

func TestPrecomputedKernel(t *testing.T) {
	gram := [][]float64{
		{2, 1, 0},
		{1, 2, 1},
		{0, 1, 2},
	}
	gp := NewGaussianProcessRegressor(
		WithNoise(0.1),
		WithFilterType(preprocessing.FilterNone),
		WithKernel(kernel.Config{Type: kernel.TypePrecomputed, Matrix: gram}),
	)
	require.NoError(t, gp.Fit(col(0, 1), col(1, -1)))

	pred, err := gp.Predict(col(0, 2))
	require.NoError(t, err)
	assert.Greater(t, pred.At(0, 0), pred.At(1, 0))

	_, err = gp.Predict(col(7))
	assert.Error(t, err)
}

func TestScore(t *testing.T) {
	X, y := sineData(10)
	gp := rbfRegressor(0.01)
	require.NoError(t, gp.Fit(X, y))
	score, err := gp.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.99)
}

func TestPersistenceRoundTrip(t *testing.T) {
	X, y := sineData(10)
	gp := NewGaussianProcessRegressor(
		WithNoise(0.2),
		WithFilterType(preprocessing.FilterStandardize),
		WithKernel(kernel.Config{Type: kernel.TypePUK, Omega: 1, Sigma: 2}),
	)
	require.NoError(t, gp.Fit(X, y))
	queries := col(0.2, 2.5, 7)

	wantMean, wantSD, err := gp.PredictMeanStd(queries)
	require.NoError(t, err)

	check := func(t *testing.T, restored *GaussianProcessRegressor) {
		t.Helper()
		mean, sd, err := restored.PredictMeanStd(queries)
		require.NoError(t, err)
		assert.Equal(t, mat.Col(nil, 0, wantMean), mat.Col(nil, 0, mean))
		assert.Equal(t, mat.Col(nil, 0, wantSD), mat.Col(nil, 0, sd))
		assert.Equal(t, gp.GetParams(false), restored.GetParams(false))
	}

	t.Run("gob stream", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, gp.SaveTo(&buf))
		restored := NewGaussianProcessRegressor()
		require.NoError(t, restored.LoadFrom(&buf))
		check(t, restored)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gp.gob")
		require.NoError(t, gp.Save(path))
		restored := NewGaussianProcessRegressor()
		require.NoError(t, restored.Load(path))
		check(t, restored)
	})

	t.Run("json weights", func(t *testing.T) {
		w, err := gp.ExportWeights()
		require.NoError(t, err)
		data, err := w.ToJSON()
		require.NoError(t, err)

		var decoded model.ModelWeights
		require.NoError(t, decoded.FromJSON(data))
		restored := NewGaussianProcessRegressor()
		require.NoError(t, restored.ImportWeights(&decoded))
		check(t, restored)
	})

	t.Run("tampered weights", func(t *testing.T) {
		w, err := gp.ExportWeights()
		require.NoError(t, err)
		w.Vectors[vectorAlpha][0] += 1
		assert.Error(t, NewGaussianProcessRegressor().ImportWeights(w))
	})

	t.Run("wrong model type", func(t *testing.T) {
		w, err := gp.ExportWeights()
		require.NoError(t, err)
		w.ModelType = "LinearRegression"
		assert.Error(t, NewGaussianProcessRegressor().ImportWeights(w))
	})
}

func TestParams(t *testing.T) {
	gp := NewGaussianProcessRegressor()
	params := gp.GetParams(true)
	assert.Equal(t, 1.0, params["noise"])
	assert.Equal(t, "normalize", params["filter"])
	assert.Equal(t, kernel.DefaultConfig(), params["kernel"])

	require.NoError(t, gp.SetParams(map[string]interface{}{
		"noise":           0.5,
		"filter":          "none",
		"kernel":          map[string]interface{}{"type": "rbf", "gamma": 0.25},
		"noise_retries":   float64(2),
		"nominal_columns": map[int]int{1: 3},
	}))
	params = gp.GetParams(true)
	assert.Equal(t, 0.5, params["noise"])
	assert.Equal(t, "none", params["filter"])
	assert.Equal(t, kernel.Config{Type: kernel.TypeRBF, Gamma: 0.25}, params["kernel"])
	assert.Equal(t, 2, params["noise_retries"])
	assert.Equal(t, map[int]int{1: 3}, params["nominal_columns"])

	assert.Error(t, gp.SetParams(map[string]interface{}{"alpha": 1.0}))
	assert.Error(t, gp.SetParams(map[string]interface{}{"noise": "loud"}))
	assert.Error(t, gp.SetParams(map[string]interface{}{"noise_retries": 1.5}))

	clone := gp.Clone()
	assert.Equal(t, gp.GetParams(true), clone.GetParams(true))
	assert.False(t, clone.IsFitted())
}

func TestSummaryDoesNotShareParams(t *testing.T) {
	nominal := NewGaussianProcessRegressor(
		WithNoise(0.1),
		WithNominalColumns(map[int]int{0: 2}),
		WithKernel(kernel.Config{Type: kernel.TypeRBF, Gamma: 1}),
	)
	require.NoError(t, nominal.Fit(col(0, 1), col(1, 2)))

	precomputed := NewGaussianProcessRegressor(
		WithNoise(0.1),
		WithFilterType(preprocessing.FilterNone),
		WithKernel(kernel.Config{Type: kernel.TypePrecomputed, Matrix: [][]float64{{1, 0}, {0, 1}}}),
	)
	require.NoError(t, precomputed.Fit(col(0, 1), col(1, 2)))

	tests := []struct {
		name   string
		params func() map[string]interface{}
		mutate func(p map[string]interface{})
		check  func(t *testing.T, p map[string]interface{})
	}{
		{
			name:   "summary nominal columns",
			params: func() map[string]interface{} { return nominal.Summary().Params },
			mutate: func(p map[string]interface{}) {
				p["nominal_columns"].(map[int]int)[0] = 7
				p["nominal_columns"].(map[int]int)[5] = 3
			},
			check: func(t *testing.T, p map[string]interface{}) {
				assert.Equal(t, map[int]int{0: 2}, p["nominal_columns"])
			},
		},
		{
			name:   "summary kernel matrix",
			params: func() map[string]interface{} { return precomputed.Summary().Params },
			mutate: func(p map[string]interface{}) { p["kernel"].(kernel.Config).Matrix[0][1] = 9 },
			check: func(t *testing.T, p map[string]interface{}) {
				assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, p["kernel"].(kernel.Config).Matrix)
			},
		},
		{
			name:   "get params kernel matrix",
			params: func() map[string]interface{} { return precomputed.GetParams(true) },
			mutate: func(p map[string]interface{}) { p["kernel"].(kernel.Config).Matrix[1][1] = 9 },
			check: func(t *testing.T, p map[string]interface{}) {
				assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, p["kernel"].(kernel.Config).Matrix)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mutate(tt.params())
			tt.check(t, tt.params())
		})
	}
}

func TestString(t *testing.T) {
	gp := NewGaussianProcessRegressor()
	assert.Contains(t, gp.String(), "No model built yet")

	X, y := sineData(5)
	require.NoError(t, gp.Fit(X, y))
	s := gp.String()
	assert.Contains(t, s, "Gaussian Processes")
	assert.Contains(t, s, "Normalize training data")
	assert.Contains(t, s, "Average Target Value")
	assert.Contains(t, s, "Inverted Covariance Matrix * Target-value Vector")
}

func TestFitContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	X, y := sineData(5)
	gp := rbfRegressor(0.1)
	err := gp.FitContext(ctx, X, y, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, gp.IsFitted())
}

func TestClampVariance(t *testing.T) {
	v, clamped := clampVariance(1, 0.5, 0.01)
	assert.Equal(t, 0.5, v)
	assert.False(t, clamped)

	v, clamped = clampVariance(1, 1.2, 0.01)
	assert.Equal(t, 0.01, v)
	assert.True(t, clamped)

	v, clamped = clampVariance(1, 0.99, 0.01)
	assert.InDelta(t, 0.01, v, 1e-15)
	assert.False(t, clamped)
}

// counterValue sums every series of the named counter in the default registry.
func counterValue(t *testing.T, name string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestClampIsObservable(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	// 2 distinct points span the (1, x) feature space, so without noise the
	// predictive variance is 0 everywhere and rounding pushes some of it
	// below the floor.
	gp := NewGaussianProcessRegressor(
		WithNoise(0),
		WithFilterType(preprocessing.FilterNone),
		WithKernel(linearKernel()),
		WithLogger(logger),
	)
	require.NoError(t, gp.Fit(col(0.3, 1.7), col(1.1, -0.4)))

	queries := mat.NewDense(50, 1, nil)
	for i := 0; i < 50; i++ {
		queries.Set(i, 0, -3.3+0.37*float64(i))
	}

	before := gp.ClampCount()
	promBefore := counterValue(t, "scigp_variance_clamp_total")

	sd, err := gp.PredictStdDev(queries)
	require.NoError(t, err)

	clamped := gp.ClampCount() - before
	assert.Greater(t, clamped, int64(0))
	assert.Equal(t, float64(clamped), counterValue(t, "scigp_variance_clamp_total")-promBefore)
	for i := 0; i < 50; i++ {
		assert.InDelta(t, 0.0, sd.At(i, 0), 1e-6, "row %d", i)
	}
	assert.True(t, logger.ContainsMessage("predictive variance clamped to noise floor"))
	assert.True(t, logger.ContainsField(log.VarianceKey, 0.0))
}

func TestSetParamsFromDecodedJSON(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		check  func(t *testing.T, p map[string]interface{})
		errMsg string
	}{
		{
			name:  "kernel and nominal columns",
			input: `{"kernel": {"type": "poly", "exponent": 2, "use_lower_order": true}, "nominal_columns": {"0": 3, "2": 4}, "noise_retries": 2}`,
			check: func(t *testing.T, p map[string]interface{}) {
				assert.Equal(t, kernel.Config{Type: kernel.TypePoly, Exponent: 2, UseLowerOrder: true}, p["kernel"])
				assert.Equal(t, map[int]int{0: 3, 2: 4}, p["nominal_columns"])
				assert.Equal(t, 2, p["noise_retries"])
			},
		},
		{
			name:  "inline precomputed matrix",
			input: `{"kernel": {"type": "precomputed", "matrix": [[1, 0.5], [0.5, 1]]}}`,
			check: func(t *testing.T, p map[string]interface{}) {
				cfg := p["kernel"].(kernel.Config)
				assert.Equal(t, kernel.TypePrecomputed, cfg.Type)
				assert.Equal(t, [][]float64{{1, 0.5}, {0.5, 1}}, cfg.Matrix)
			},
		},
		{name: "unknown kernel field", input: `{"kernel": {"type": "rbf", "gama": 0.5}}`, errMsg: "gama"},
		{name: "non-numeric column", input: `{"nominal_columns": {"x": 3}}`, errMsg: "nominal_columns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var params map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(tt.input), &params))

			gp := NewGaussianProcessRegressor()
			err := gp.SetParams(params)
			if tt.errMsg != "" {
				var cfgErr *scigperrors.ConfigurationError
				require.True(t, scigperrors.As(err, &cfgErr), "%v", err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			tt.check(t, gp.GetParams(true))
		})
	}
}

func TestFitLogs(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	X, y := sineData(5)
	gp := rbfRegressor(0.1, WithLogger(logger))
	require.NoError(t, gp.Fit(X, y))
	assert.True(t, logger.ContainsMessage("fit completed"))
	assert.True(t, logger.ContainsField(log.ModelNameKey, modelName))

	require.Error(t, gp.Fit(col(1), col(1, 2)))
	assert.True(t, logger.ContainsMessage("fit failed"))
}

func TestConcurrentPredictDuringRefit(t *testing.T) {
	X, y := sineData(20)
	gp := rbfRegressor(0.1, WithParallelThreshold(4))
	require.NoError(t, gp.Fit(X, y))
	queries, _ := sineData(15)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if _, err := gp.PredictInterval(queries, 0.9); err != nil {
					errs <- err
				}
			}
		}()
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, gp.Fit(X, y))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
}
