package gaussian_process

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/scigp/core/parallel"
	"github.com/YuminosukeSato/scigp/metrics"
	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
	"github.com/YuminosukeSato/scigp/pkg/log"
	"github.com/YuminosukeSato/scigp/pkg/monitor"
)

// posterior is the predictive distribution of one query in the internal
// (preprocessed) target space.
type posterior struct {
	mean  float64
	sigma float64
}

// clampVariance returns kappa − s, raised to floor when it falls below.
// The second result reports whether the floor was applied.
func clampVariance(kappa, s, floor float64) (float64, bool) {
	v := kappa - s
	if v < floor {
		return floor, true
	}
	return v, false
}

// crossCovariance returns k_i = w_i·k(x, x_i) for a preprocessed query.
func (m *fittedModel) crossCovariance(xt []float64) ([]float64, error) {
	k := make([]float64, m.nSamples)
	for j := range k {
		v, err := m.eval.Cross(xt, j)
		if err != nil {
			return nil, err
		}
		k[j] = m.weights[j] * v
	}
	return k, nil
}

func (m *fittedModel) mean(k []float64) float64 {
	return floats.Dot(k, m.alpha.RawVector().Data) + m.avgTarget
}

// variance returns σ² = max(k(x,x) + noise² − kᵀ·K⁻¹·k, noise²).
func (m *fittedModel) variance(xt, k []float64) (float64, bool, error) {
	self, err := m.eval.Self(xt)
	if err != nil {
		return 0, false, err
	}
	kv := mat.NewVecDense(len(k), k)
	s := mat.Inner(kv, m.inverse, kv)
	v, clamped := clampVariance(self+m.noiseSq(), s, m.noiseSq())
	return v, clamped, nil
}

// toExternal maps an internal-space target back to the original scale.
func (m *fittedModel) toExternal(v float64) float64 {
	return (v - m.blin) / m.alin
}

// posteriors evaluates every row of X. withSigma skips the variance when
// only the mean is needed.
func (gp *GaussianProcessRegressor) posteriors(operation string, X mat.Matrix, withSigma bool) (*fittedModel, []posterior, error) {
	m, err := gp.state.Require(modelName, operation)
	if err != nil {
		return nil, nil, err
	}
	r, c := X.Dims()
	if c != m.nFeatures {
		return nil, nil, scigperrors.NewDimensionError("GaussianProcessRegressor."+operation, m.nFeatures, c, 1)
	}

	out := make([]posterior, r)
	err = parallel.ParallelizeErr(context.Background(), r, m.params.ParallelThreshold, func(ctx context.Context, start, end int) error {
		return scigperrors.SafeExecute("GaussianProcessRegressor."+operation, func() error {
			x := make([]float64, c)
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				mat.Row(x, i, X)
				xt, err := m.pipeline.TransformRow(x)
				if err != nil {
					return scigperrors.NewDataError("GaussianProcessRegressor."+operation, i, err)
				}
				k, err := m.crossCovariance(xt)
				if err != nil {
					return err
				}
				out[i].mean = m.mean(k)
				if !withSigma {
					continue
				}
				v, clamped, err := m.variance(xt, k)
				if err != nil {
					return err
				}
				if clamped {
					gp.recordClamp(i, v)
				}
				out[i].sigma = math.Sqrt(v)
			}
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	monitor.AddPredictions(operation, r)
	return m, out, nil
}

func (gp *GaussianProcessRegressor) recordClamp(row int, floor float64) {
	gp.clamps.Inc()
	monitor.IncVarianceClamp()
	gp.logger.Debug("predictive variance clamped to noise floor",
		log.PhaseKey, log.PhaseInference,
		"row", row,
		log.VarianceKey, floor,
	)
}

func column(values []float64) *mat.Dense {
	if len(values) == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(len(values), 1, values)
}

// Predict は入力データに対する予測平均を返す（n×1）
func (gp *GaussianProcessRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	m, post, err := gp.posteriors(log.OperationPredict, X, false)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(post))
	for i, p := range post {
		out[i] = m.toExternal(p.mean)
	}
	return column(out), nil
}

// PredictStdDev returns the predictive standard deviation in the
// preprocessed target space, never below the noise level.
func (gp *GaussianProcessRegressor) PredictStdDev(X mat.Matrix) (mat.Matrix, error) {
	_, post, err := gp.posteriors(log.OperationStdDev, X, true)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(post))
	for i, p := range post {
		out[i] = p.sigma
	}
	return column(out), nil
}

// StandardDeviation は元のターゲットのスケールでの予測標準偏差を返す
func (gp *GaussianProcessRegressor) StandardDeviation(X mat.Matrix) (mat.Matrix, error) {
	m, post, err := gp.posteriors(log.OperationStdDev, X, true)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(post))
	for i, p := range post {
		out[i] = p.sigma / math.Abs(m.alin)
	}
	return column(out), nil
}

// PredictMeanStd returns the mean and the external-scale standard
// deviation in one pass.
func (gp *GaussianProcessRegressor) PredictMeanStd(X mat.Matrix) (mean, std mat.Matrix, err error) {
	m, post, err := gp.posteriors(log.OperationPredict, X, true)
	if err != nil {
		return nil, nil, err
	}
	mu := make([]float64, len(post))
	sd := make([]float64, len(post))
	for i, p := range post {
		mu[i] = m.toExternal(p.mean)
		sd[i] = p.sigma / math.Abs(m.alin)
	}
	return column(mu), column(sd), nil
}

// PredictInterval returns an n×2 matrix of lower and upper bounds of the
// central confidenceLevel interval, in original target units.
func (gp *GaussianProcessRegressor) PredictInterval(X mat.Matrix, confidenceLevel float64) (mat.Matrix, error) {
	if _, err := gp.state.Require(modelName, log.OperationInterval); err != nil {
		return nil, err
	}
	if !(confidenceLevel > 0 && confidenceLevel < 1) {
		return nil, scigperrors.NewValidationError("confidence_level", "must be in the open interval (0, 1)", confidenceLevel)
	}
	m, post, err := gp.posteriors(log.OperationInterval, X, true)
	if err != nil {
		return nil, err
	}
	z := distuv.UnitNormal.Quantile(1 - (1-confidenceLevel)/2)

	if len(post) == 0 {
		return &mat.Dense{}, nil
	}
	out := mat.NewDense(len(post), 2, nil)
	for i, p := range post {
		lo := m.toExternal(p.mean - z*p.sigma)
		hi := m.toExternal(p.mean + z*p.sigma)
		if lo > hi {
			lo, hi = hi, lo
		}
		out.Set(i, 0, lo)
		out.Set(i, 1, hi)
	}
	return out, nil
}

// LogDensity returns log p(y|x) for each row. The density is evaluated in
// the preprocessed space and corrected by log|alin| so that it is a
// density over the original target.
func (gp *GaussianProcessRegressor) LogDensity(X, y mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	yr, yc := y.Dims()
	if yr != r {
		return nil, scigperrors.NewDimensionError("GaussianProcessRegressor.LogDensity", r, yr, 0)
	}
	if yc != 1 {
		return nil, scigperrors.NewDimensionError("GaussianProcessRegressor.LogDensity", 1, yc, 1)
	}
	m, post, err := gp.posteriors(log.OperationLogDensity, X, true)
	if err != nil {
		return nil, err
	}
	jacobian := math.Log(math.Abs(m.alin))
	out := make([]float64, len(post))
	for i, p := range post {
		yt := m.alin*y.At(i, 0) + m.blin
		out[i] = distuv.Normal{Mu: p.mean, Sigma: p.sigma}.LogProb(yt) + jacobian
	}
	return column(out), nil
}

// Score はモデルの決定係数（R²）を計算
func (gp *GaussianProcessRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := gp.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector("GaussianProcessRegressor.Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVector("GaussianProcessRegressor.Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, yPred)
}
