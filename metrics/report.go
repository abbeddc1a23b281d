package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

var nan = math.NaN()

// RegressionReport collects the evaluation summary printed by the CLI.
// Fields that could not be computed (for example R2 on a constant
// target) are NaN; Notes says why.
type RegressionReport struct {
	N                 int
	MSE               float64
	RMSE              float64
	MAE               float64
	R2                float64
	MAPE              float64
	ExplainedVariance float64
	MeanLogDensity    float64
	Coverage          float64
	Notes             map[string]string
}

// EvaluationInput holds model outputs for Evaluate. LogDensity and
// Intervals are optional.
type EvaluationInput struct {
	YTrue      *mat.VecDense
	YPred      *mat.VecDense
	LogDensity *mat.VecDense
	Intervals  mat.Matrix
}

// Evaluate computes every metric that applies to in. Only a mismatch
// between YTrue and YPred is an error; other failures are recorded in
// Notes.
func Evaluate(in EvaluationInput) (*RegressionReport, error) {
	n, err := checkPair("Evaluate", in.YTrue, in.YPred)
	if err != nil {
		return nil, err
	}
	rep := &RegressionReport{N: n, Notes: map[string]string{}}

	if rep.MSE, err = MSE(in.YTrue, in.YPred); err != nil {
		return nil, err
	}
	if rep.RMSE, err = RMSE(in.YTrue, in.YPred); err != nil {
		return nil, err
	}
	if rep.MAE, err = MAE(in.YTrue, in.YPred); err != nil {
		return nil, err
	}
	rep.R2 = optional(rep.Notes, "r2", func() (float64, error) { return R2Score(in.YTrue, in.YPred) })
	rep.MAPE = optional(rep.Notes, "mape", func() (float64, error) { return MAPE(in.YTrue, in.YPred) })
	rep.ExplainedVariance = optional(rep.Notes, "explained_variance", func() (float64, error) {
		return ExplainedVarianceScore(in.YTrue, in.YPred)
	})
	rep.MeanLogDensity = nan
	if in.LogDensity != nil {
		rep.MeanLogDensity = optional(rep.Notes, "mean_log_density", func() (float64, error) { return MeanLogDensity(in.LogDensity) })
	}
	rep.Coverage = nan
	if in.Intervals != nil {
		rep.Coverage = optional(rep.Notes, "coverage", func() (float64, error) { return IntervalCoverage(in.YTrue, in.Intervals) })
	}
	if len(rep.Notes) == 0 {
		rep.Notes = nil
	}
	return rep, nil
}

func optional(notes map[string]string, key string, fn func() (float64, error)) float64 {
	v, err := fn()
	if err != nil {
		notes[key] = err.Error()
		return nan
	}
	return v
}
