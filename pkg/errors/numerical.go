package errors

import (
	"math"
)

// CheckNumericalStability returns a NumericalInstabilityError when values
// contains NaN or Inf.
func CheckNumericalStability(operation string, values []float64, step int) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericalInstabilityError(operation, values, step)
		}
	}
	return nil
}

// CheckScalar checks a single value.
func CheckScalar(operation string, value float64, step int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityError(operation, []float64{value}, step)
	}
	return nil
}

// CheckMatrix scans a matrix and reports the first row holding NaN or Inf.
// step is set to that row index.
func CheckMatrix(operation string, matrix interface{ At(int, int) float64 }, rows, cols int) error {
	for i := 0; i < rows; i++ {
		var bad []float64
		for j := 0; j < cols; j++ {
			v := matrix.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				bad = append(bad, v)
				if len(bad) >= 10 {
					break
				}
			}
		}
		if len(bad) > 0 {
			return NewNumericalInstabilityError(operation, bad, i)
		}
	}
	return nil
}
