package gaussian_process

import (
	"github.com/YuminosukeSato/scigp/kernel"
	"github.com/YuminosukeSato/scigp/pkg/log"
	"github.com/YuminosukeSato/scigp/preprocessing"
)

const (
	defaultNoise              = 1.0
	defaultConditionThreshold = 1e12
	// defaultParallelThreshold is the number of rows below which covariance
	// assembly and batch prediction stay on the calling goroutine.
	defaultParallelThreshold = 64
	// minRetryNoise is the noise level a retry starts from when the
	// configured noise is zero.
	minRetryNoise = 1e-8
)

// Option は GaussianProcessRegressor の設定オプション
type Option func(*GaussianProcessRegressor)

// WithNoise はターゲットの観測ノイズ（標準偏差）を設定
func WithNoise(noise float64) Option {
	return func(gp *GaussianProcessRegressor) {
		gp.params.Noise = noise
	}
}

// WithFilterType は前処理のスケーリング方式を設定
func WithFilterType(mode preprocessing.FilterMode) Option {
	return func(gp *GaussianProcessRegressor) {
		gp.params.Filter = mode
	}
}

// WithKernel はカーネルを設定
func WithKernel(cfg kernel.Config) Option {
	return func(gp *GaussianProcessRegressor) {
		gp.params.Kernel = cfg
	}
}

// WithNominalColumns marks columns as categorical. The map value is the
// number of categories; category indices run from 0.
func WithNominalColumns(columns map[int]int) Option {
	return func(gp *GaussianProcessRegressor) {
		gp.params.NominalColumns = copyColumns(columns)
	}
}

// WithNoiseRetries allows up to n refits with a tenfold larger noise level
// when the covariance matrix is not positive definite. Zero fails fast.
func WithNoiseRetries(n int) Option {
	return func(gp *GaussianProcessRegressor) {
		gp.params.NoiseRetries = n
	}
}

// WithConditionThreshold sets the condition number above which Fit emits
// a ConditioningWarning. Zero or a negative value disables the check.
func WithConditionThreshold(threshold float64) Option {
	return func(gp *GaussianProcessRegressor) {
		gp.params.ConditionThreshold = threshold
	}
}

// WithParallelThreshold は並列化を開始する行数を設定
func WithParallelThreshold(rows int) Option {
	return func(gp *GaussianProcessRegressor) {
		gp.params.ParallelThreshold = rows
	}
}

// WithLogger replaces the package logger.
func WithLogger(logger log.Logger) Option {
	return func(gp *GaussianProcessRegressor) {
		gp.logger = logger
	}
}

func copyColumns(columns map[int]int) map[int]int {
	if columns == nil {
		return nil
	}
	out := make(map[int]int, len(columns))
	for k, v := range columns {
		out[k] = v
	}
	return out
}
