package gaussian_process

import (
	"context"

	"github.com/YuminosukeSato/scigp/core/linalg"
	"github.com/YuminosukeSato/scigp/core/parallel"
	"github.com/YuminosukeSato/scigp/kernel"
	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
)

// buildCovariance assembles the regularised covariance matrix
//
//	K[i][j] = w_i·w_j·k(x_i, x_j)           i ≠ j
//	K[i][i] = w_i²·k(x_i, x_i) + noiseSq
//
// Rows of the upper triangle are disjoint and computed in parallel above
// threshold rows. The first kernel error cancels the remaining rows and is
// returned unchanged; a panicking kernel surfaces as a PanicError.
func buildCovariance(ctx context.Context, eval *kernel.Evaluator, weights []float64, noiseSq float64, threshold int) (*linalg.PackedSymmetric, error) {
	n := eval.Len()
	cov := linalg.NewPackedSymmetric(n)

	// Workers run on their own goroutines, out of reach of Fit's recover.
	err := parallel.ParallelizeErr(ctx, n, threshold, func(ctx context.Context, start, end int) error {
		return scigperrors.SafeExecute("GaussianProcessRegressor.buildCovariance", func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				row := cov.UpperRow(i)
				for k := range row {
					j := i + k
					v, err := eval.Train(i, j)
					if err != nil {
						return err
					}
					row[k] = weights[i] * weights[j] * v
				}
				row[0] += noiseSq
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return cov, nil
}
