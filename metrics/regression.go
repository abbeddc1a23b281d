// Package metrics は回帰モデルの評価指標を提供します。
//
// Point metrics take *mat.VecDense of equal length. The probabilistic
// metrics (MeanLogDensity, IntervalCoverage) consume the outputs of
// LogDensity and PredictInterval directly.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/scigp/pkg/errors"
)

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// ColumnVector copies an n×1 matrix into a vector.
func ColumnVector(op string, m mat.Matrix) (*mat.VecDense, error) {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	if c != 1 {
		return nil, errors.NewDimensionError(op, 1, c, 1)
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, m)), nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var diff mat.VecDense
	diff.SubVec(yTrue, yPred)
	return mat.Dot(&diff, &diff) / float64(n), nil
}

// MSEMatrix は n×1 行列に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	a, err := ColumnVector("MSEMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	b, err := ColumnVector("MSEMatrix", yPred)
	if err != nil {
		return 0, err
	}
	return MSE(a, b)
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する
//
// A constant yTrue has no variance to explain and yields a ValueError.
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	if _, err := checkPair("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}
	values := mat.Col(nil, 0, yTrue)
	if floats.Min(values) == floats.Max(values) {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	return stat.RSquaredFrom(mat.Col(nil, 0, yPred), values, nil), nil
}

// MAPE は平均絶対パーセンテージ誤差を計算する。yTrue が0の行は除外する
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	valid := 0
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		if t == 0 {
			continue
		}
		sum += math.Abs(t-yPred.AtVec(i)) / math.Abs(t)
		valid++
	}
	if valid == 0 {
		return 0, errors.NewValueError("MAPE", "all yTrue values are zero")
	}
	return sum / float64(valid) * 100, nil
}

// ExplainedVarianceScore は説明分散スコア 1 - Var(yTrue - yPred) / Var(yTrue) を計算する
func ExplainedVarianceScore(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("ExplainedVarianceScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	values := mat.Col(nil, 0, yTrue)
	residuals := make([]float64, n)
	for i := range residuals {
		residuals[i] = values[i] - yPred.AtVec(i)
	}
	varTrue := stat.PopVariance(values, nil)
	if varTrue == 0 {
		return 0, errors.NewValueError("ExplainedVarianceScore", "no variance in yTrue")
	}
	return 1 - stat.PopVariance(residuals, nil)/varTrue, nil
}

// MeanLogDensity averages per-row log densities. Rows that are -Inf make
// the mean -Inf.
func MeanLogDensity(logDensity *mat.VecDense) (float64, error) {
	if logDensity.Len() == 0 {
		return 0, errors.NewValueError("MeanLogDensity", "empty vector")
	}
	return stat.Mean(mat.Col(nil, 0, logDensity), nil), nil
}

// IntervalCoverage is the fraction of yTrue inside the closed bounds of an
// n×2 interval matrix.
func IntervalCoverage(yTrue *mat.VecDense, intervals mat.Matrix) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("IntervalCoverage", "empty vector")
	}
	r, c := intervals.Dims()
	if c != 2 {
		return 0, errors.NewDimensionError("IntervalCoverage", 2, c, 1)
	}
	if r != n {
		return 0, errors.NewDimensionError("IntervalCoverage", n, r, 0)
	}
	inside := 0
	for i := 0; i < n; i++ {
		v := yTrue.AtVec(i)
		if v >= intervals.At(i, 0) && v <= intervals.At(i, 1) {
			inside++
		}
	}
	return float64(inside) / float64(n), nil
}
