// Package gaussian_process implements exact Gaussian process regression.
//
// Training builds the dense covariance matrix of the (preprocessed)
// training rows, inverts it through a Cholesky factorisation and keeps the
// inverse together with the weight vector t = K⁻¹·(y − ȳ). Predictions are
// read-only against that immutable model:
//
//	gp := gaussian_process.NewGaussianProcessRegressor(
//	    gaussian_process.WithNoise(0.1),
//	    gaussian_process.WithKernel(kernel.Config{Type: kernel.TypeRBF, Gamma: 0.5}),
//	)
//	if err := gp.Fit(X, y); err != nil {
//	    return err
//	}
//	mean, _ := gp.Predict(Xq)
//	bounds, _ := gp.PredictInterval(Xq, 0.95)
package gaussian_process

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/atomic"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigp/core/linalg"
	"github.com/YuminosukeSato/scigp/core/model"
	"github.com/YuminosukeSato/scigp/kernel"
	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
	"github.com/YuminosukeSato/scigp/pkg/log"
	"github.com/YuminosukeSato/scigp/pkg/monitor"
	"github.com/YuminosukeSato/scigp/preprocessing"
)

const (
	modelName    = "GaussianProcessRegressor"
	modelVersion = "1.0.0"
)

var (
	_ model.ProbabilisticRegressor = (*GaussianProcessRegressor)(nil)
	_ model.WeightedFitter         = (*GaussianProcessRegressor)(nil)
	_ model.ContextFitter          = (*GaussianProcessRegressor)(nil)
	_ model.ParameterGetter        = (*GaussianProcessRegressor)(nil)
	_ model.ParameterSetter        = (*GaussianProcessRegressor)(nil)
	_ model.WeightExporter         = (*GaussianProcessRegressor)(nil)
	_ model.Persistable            = (*GaussianProcessRegressor)(nil)
)

// Params are the hyperparameters of a regressor. They are copied into
// every fitted model, so changing them never affects a published model.
type Params struct {
	Noise              float64
	Filter             preprocessing.FilterMode
	Kernel             kernel.Config
	NominalColumns     map[int]int
	NoiseRetries       int
	ConditionThreshold float64
	ParallelThreshold  int
}

func defaultParams() Params {
	return Params{
		Noise:              defaultNoise,
		Filter:             preprocessing.FilterNormalize,
		Kernel:             kernel.DefaultConfig(),
		ConditionThreshold: defaultConditionThreshold,
		ParallelThreshold:  defaultParallelThreshold,
	}
}

func (p Params) clone() Params {
	p.NominalColumns = copyColumns(p.NominalColumns)
	if p.Kernel.Matrix != nil {
		p.Kernel.Matrix = lo.Map(p.Kernel.Matrix, func(row []float64, _ int) []float64 {
			return append([]float64(nil), row...)
		})
	}
	return p
}

// validate checks the options and resolves the kernel.
func (p Params) validate() (kernel.Kernel, error) {
	if math.IsNaN(p.Noise) || math.IsInf(p.Noise, 0) || p.Noise < 0 {
		return nil, scigperrors.NewConfigurationError(modelName, "noise", "must be a finite number >= 0", p.Noise)
	}
	if !p.Filter.Valid() {
		return nil, scigperrors.NewConfigurationError(modelName, "filter", "unknown filter mode", int(p.Filter))
	}
	if p.NoiseRetries < 0 {
		return nil, scigperrors.NewConfigurationError(modelName, "noise_retries", "must be >= 0", p.NoiseRetries)
	}
	if p.Kernel.Type == kernel.TypePrecomputed && p.Filter != preprocessing.FilterNone {
		return nil, scigperrors.NewConfigurationError(modelName, "filter",
			"a precomputed kernel indexes rows by their first attribute and requires filter none", p.Filter.String())
	}
	return kernel.New(p.Kernel)
}

// fittedModel is the immutable result of one successful fit.
type fittedModel struct {
	params    Params
	nSamples  int
	nFeatures int
	dropped   int

	// weights are the square roots of the instance weights.
	weights []float64
	rows    [][]float64
	inverse *mat.SymDense
	alpha   *mat.VecDense

	// noise is the level actually used, which differs from params.Noise
	// after a regularised retry.
	noise      float64
	avgTarget  float64
	alin, blin float64
	condition  float64

	kernelConfig kernel.Config
	pipeline     *preprocessing.Pipeline
	eval         *kernel.Evaluator
}

func (m *fittedModel) noiseSq() float64 { return m.noise * m.noise }

// GaussianProcessRegressor はガウス過程回帰モデル
//
// The regressor is UNTRAINED until Fit succeeds. A failed Fit, including a
// refit of a trained model, returns it to UNTRAINED. Prediction methods may
// be called concurrently with each other and with Fit; each call uses the
// model that was published when it started.
type GaussianProcessRegressor struct {
	state *model.StateManager[fittedModel]

	mu     sync.RWMutex
	params Params

	logger log.Logger
	clamps atomic.Int64
}

// NewGaussianProcessRegressor は新しいガウス過程回帰モデルを作成
//
// Defaults: noise 1, normalize filter, dot product kernel.
func NewGaussianProcessRegressor(opts ...Option) *GaussianProcessRegressor {
	gp := &GaussianProcessRegressor{
		state:  model.NewStateManager[fittedModel](),
		params: defaultParams(),
	}
	for _, opt := range opts {
		opt(gp)
	}
	if gp.logger == nil {
		gp.logger = log.GetLoggerWithName("gaussian_process")
	}
	gp.logger = gp.logger.With(log.ModelNameKey, modelName)
	return gp
}

// Fit はモデルを訓練データで学習（重みはすべて1）
func (gp *GaussianProcessRegressor) Fit(X, y mat.Matrix) error {
	return gp.FitContext(context.Background(), X, y, nil)
}

// FitWeighted は重み付きインスタンスで学習
func (gp *GaussianProcessRegressor) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	return gp.FitContext(context.Background(), X, y, sampleWeight)
}

// FitContext trains the model. Rows whose target is NaN are dropped;
// NaN attributes are imputed. A nil sampleWeight weights every row 1.
// Cancelling ctx aborts covariance assembly or factorisation.
func (gp *GaussianProcessRegressor) FitContext(ctx context.Context, X, y mat.Matrix, sampleWeight []float64) (err error) {
	start := time.Now()
	gp.mu.Lock()
	defer gp.mu.Unlock()
	defer func() {
		monitor.RecordFit(err, time.Since(start))
		if err != nil {
			gp.state.Reset()
			gp.logger.Error("fit failed", err, log.OperationKey, log.OperationFit)
		}
	}()
	defer scigperrors.Recover(&err, "GaussianProcessRegressor.Fit")

	p := gp.params.clone()
	m, err := gp.train(ctx, p, X, y, sampleWeight)
	if err != nil {
		return err
	}
	gp.state.Publish(m)

	gp.logger.Info("fit completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, m.nSamples,
		log.DroppedKey, m.dropped,
		log.NoiseKey, m.noise,
		log.AlinKey, m.alin,
		log.BlinKey, m.blin,
		log.ConditionKey, m.condition,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (gp *GaussianProcessRegressor) train(ctx context.Context, p Params, X, y mat.Matrix, sampleWeight []float64) (*fittedModel, error) {
	kern, err := p.validate()
	if err != nil {
		return nil, err
	}

	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, scigperrors.NewModelError("GaussianProcessRegressor.Fit", "empty data", scigperrors.ErrEmptyData)
	}
	yr, yc := y.Dims()
	if yr != r {
		return nil, scigperrors.NewDimensionError("GaussianProcessRegressor.Fit", r, yr, 0)
	}
	if yc != 1 {
		return nil, scigperrors.NewDimensionError("GaussianProcessRegressor.Fit", 1, yc, 1)
	}
	if sampleWeight != nil && len(sampleWeight) != r {
		return nil, scigperrors.NewDimensionError("GaussianProcessRegressor.Fit", r, len(sampleWeight), 0)
	}
	for _, w := range sampleWeight {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, scigperrors.NewValidationError("sample_weight", "weights must be finite and non-negative", w)
		}
	}

	gp.logger.Info("fitting gaussian process",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, r,
		log.FeaturesKey, c,
		log.NoiseKey, p.Noise,
		log.KernelKey, kern.String(),
		log.FilterKey, p.Filter.String(),
	)

	// 欠損ターゲットの行を除外
	keep := lo.Filter(lo.Range(r), func(i int, _ int) bool { return !math.IsNaN(y.At(i, 0)) })
	if len(keep) == 0 {
		return nil, scigperrors.NewModelError("GaussianProcessRegressor.Fit", "no rows with a known target", scigperrors.ErrEmptyData)
	}
	Xk := mat.NewDense(len(keep), c, nil)
	yk := make([]float64, len(keep))
	wk := make([]float64, len(keep))
	for k, i := range keep {
		Xk.SetRow(k, mat.Row(nil, i, X))
		yk[k] = y.At(i, 0)
		wk[k] = 1
		if sampleWeight != nil {
			wk[k] = sampleWeight[i]
		}
	}
	wsum := floats.Sum(wk)
	if !(wsum > 0) {
		return nil, scigperrors.NewValidationError("sample_weight", "weights of the rows with a known target sum to zero", wsum)
	}

	pipeline, err := preprocessing.NewPipeline(preprocessing.PipelineConfig{Mode: p.Filter, NominalColumns: p.NominalColumns})
	if err != nil {
		return nil, err
	}
	Xt, yt, err := pipeline.FitTransform(Xk, yk, wk)
	if err != nil {
		return nil, err
	}
	alin, blin, err := pipeline.TargetTransform()
	if err != nil {
		return nil, err
	}

	n := len(keep)
	rows := make([][]float64, n)
	weights := make([]float64, n)
	var avg float64
	for i := 0; i < n; i++ {
		rows[i] = Xt.RawRowView(i)
		weights[i] = math.Sqrt(wk[i])
		avg += wk[i] * yt[i]
	}
	avg /= wsum
	for step, v := range []float64{avg, alin, blin} {
		if err := scigperrors.CheckScalar("GaussianProcessRegressor.Fit", v, step); err != nil {
			return nil, err
		}
	}

	eval := kernel.NewEvaluator(kern, rows)
	inv, noise, err := gp.invertCovariance(ctx, p, eval, weights)
	if err != nil {
		return nil, err
	}

	target := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		target.SetVec(i, weights[i]*(yt[i]-avg))
	}
	alpha := mat.NewVecDense(n, nil)
	alpha.MulVec(inv.Matrix, target)
	if err := scigperrors.CheckNumericalStability("GaussianProcessRegressor.Fit", alpha.RawVector().Data, 0); err != nil {
		return nil, err
	}

	return &fittedModel{
		params:       p,
		nSamples:     n,
		nFeatures:    c,
		dropped:      r - n,
		weights:      weights,
		rows:         rows,
		inverse:      inv.Matrix,
		alpha:        alpha,
		noise:        noise,
		avgTarget:    avg,
		alin:         alin,
		blin:         blin,
		condition:    inv.Condition,
		kernelConfig: kern.Config(),
		pipeline:     pipeline,
		eval:         eval,
	}, nil
}

// invertCovariance builds and inverts the covariance matrix, retrying
// with a larger noise level when allowed. It returns the noise used.
func (gp *GaussianProcessRegressor) invertCovariance(ctx context.Context, p Params, eval *kernel.Evaluator, weights []float64) (*linalg.Inverse, float64, error) {
	noise := p.Noise
	for attempt := 0; ; attempt++ {
		cov, err := buildCovariance(ctx, eval, weights, noise*noise, p.ParallelThreshold)
		if err != nil {
			return nil, 0, err
		}

		start := time.Now()
		inv, err := linalg.Invert(ctx, cov.ToSymDense())
		monitor.ObserveFactorization(time.Since(start))
		if err == nil {
			if p.ConditionThreshold > 0 && inv.Condition > p.ConditionThreshold {
				scigperrors.Warn(scigperrors.NewConditioningWarning("GaussianProcessRegressor.Fit", inv.Condition, p.ConditionThreshold))
			}
			return inv, noise, nil
		}
		if attempt >= p.NoiseRetries || !scigperrors.Is(err, scigperrors.ErrNotPositiveDefinite) {
			return nil, 0, err
		}

		next := math.Max(10*noise, minRetryNoise)
		scigperrors.Warn(scigperrors.NewRegularizationWarning("GaussianProcessRegressor.Fit", attempt+1, noise, next))
		monitor.IncNoiseRetry()
		gp.logger.Debug("retrying factorisation with larger noise",
			log.AttemptKey, attempt+1,
			log.NoiseKey, next,
		)
		noise = next
	}
}

// IsFitted はモデルが学習済みかどうかを返す
func (gp *GaussianProcessRegressor) IsFitted() bool {
	return gp.state.IsFitted()
}

// State returns UNTRAINED or TRAINED.
func (gp *GaussianProcessRegressor) State() model.EstimatorState {
	return gp.state.State()
}

// ClampCount is the number of predictive variances that were raised to
// the noise floor since the regressor was created.
func (gp *GaussianProcessRegressor) ClampCount() int64 {
	return gp.clamps.Load()
}

// EffectiveNoise is the noise level of the trained model.
func (gp *GaussianProcessRegressor) EffectiveNoise() (float64, error) {
	m, err := gp.state.Require(modelName, "EffectiveNoise")
	if err != nil {
		return 0, err
	}
	return m.noise, nil
}

// TargetTransform returns the affine map y' = alin·y + blin that the
// preprocessing applies to targets.
func (gp *GaussianProcessRegressor) TargetTransform() (alin, blin float64, err error) {
	m, err := gp.state.Require(modelName, "TargetTransform")
	if err != nil {
		return 0, 0, err
	}
	return m.alin, m.blin, nil
}

// Summary describes the trained model for diagnostics.
func (gp *GaussianProcessRegressor) Summary() model.ModelState {
	m, ok := gp.state.Load()
	if !ok {
		return model.ModelState{Params: gp.GetParams(false)}
	}
	return model.ModelState{
		Fitted:    true,
		NFeatures: m.nFeatures,
		NSamples:  m.nSamples,
		Params:    paramsMap(m.params.clone()),
	}
}

// GetParams returns the hyperparameters keyed by snake_case names.
func (gp *GaussianProcessRegressor) GetParams(deep bool) map[string]interface{} {
	gp.mu.RLock()
	defer gp.mu.RUnlock()
	return paramsMap(gp.params.clone())
}

func paramsMap(p Params) map[string]interface{} {
	return map[string]interface{}{
		"noise":               p.Noise,
		"filter":              p.Filter.String(),
		"kernel":              p.Kernel,
		"nominal_columns":     p.NominalColumns,
		"noise_retries":       p.NoiseRetries,
		"condition_threshold": p.ConditionThreshold,
		"parallel_threshold":  p.ParallelThreshold,
	}
}

// SetParams updates hyperparameters. The trained model, if any, is not
// affected until the next Fit. Values are checked for type only; Fit
// validates them.
func (gp *GaussianProcessRegressor) SetParams(params map[string]interface{}) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	next := gp.params.clone()
	for key, v := range params {
		if err := setParam(&next, key, v); err != nil {
			return err
		}
	}
	gp.params = next
	return nil
}

// Clone returns an untrained regressor with the same hyperparameters.
func (gp *GaussianProcessRegressor) Clone() *GaussianProcessRegressor {
	gp.mu.RLock()
	p := gp.params.clone()
	gp.mu.RUnlock()

	c := NewGaussianProcessRegressor()
	c.params = p
	return c
}

func filterDescription(mode preprocessing.FilterMode) string {
	switch mode {
	case preprocessing.FilterNormalize:
		return "Normalize training data"
	case preprocessing.FilterStandardize:
		return "Standardize training data"
	default:
		return "No normalization"
	}
}

// String summarises the trained model.
func (gp *GaussianProcessRegressor) String() string {
	m, ok := gp.state.Load()
	if !ok {
		return "Gaussian Processes: No model built yet."
	}

	inv := m.inverse.RawSymmetric()
	n := inv.N
	lowInv, highInv := math.Inf(1), math.Inf(-1)
	for i := 0; i < n; i++ {
		for _, v := range inv.Data[i*inv.Stride+i : i*inv.Stride+n] {
			lowInv = math.Min(lowInv, v)
			highInv = math.Max(highInv, v)
		}
	}
	alpha := m.alpha.RawVector().Data

	var b strings.Builder
	b.WriteString("Gaussian Processes\n\n")
	fmt.Fprintf(&b, "Kernel used:\n  %s\n\n", m.eval.Kernel())
	fmt.Fprintf(&b, "All values shown based on: %s\n\n", filterDescription(m.params.Filter))
	fmt.Fprintf(&b, "Average Target Value : %g\n", m.avgTarget)
	fmt.Fprintf(&b, "Noise Level : %g\n", m.noise)
	b.WriteString("Inverted Covariance Matrix:\n")
	fmt.Fprintf(&b, "    Lowest Value = %g\n", lowInv)
	fmt.Fprintf(&b, "    Highest Value = %g\n", highInv)
	b.WriteString("Inverted Covariance Matrix * Target-value Vector:\n")
	fmt.Fprintf(&b, "    Lowest Value = %g\n", floats.Min(alpha))
	fmt.Fprintf(&b, "    Highest Value = %g\n", floats.Max(alpha))
	return b.String()
}
