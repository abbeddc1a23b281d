// Package scigp provides exact Gaussian process regression for Go,
// designed for backend services and batch tooling that need calibrated
// predictive uncertainty rather than a point estimate alone.
//
// The regressor follows a scikit-learn-like API (Fit, Predict, Score,
// GetParams, SetParams) and adds the Gaussian process specific queries:
// predictive standard deviation, central prediction intervals and the
// log density of observed targets.
//
// # Installation
//
//	go get github.com/YuminosukeSato/scigp
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/scigp/kernel"
//	    gp "github.com/YuminosukeSato/scigp/sklearn/gaussian_process"
//	    "gonum.org/v1/gonum/mat"
//	)
//
//	func main() {
//	    X := mat.NewDense(3, 1, []float64{1, 2, 3})
//	    y := mat.NewDense(3, 1, []float64{1, 2, 3})
//
//	    model := gp.NewGaussianProcessRegressor(
//	        gp.WithNoise(0.01),
//	        gp.WithKernel(kernel.Config{Type: kernel.TypePoly, Exponent: 1, UseLowerOrder: true}),
//	    )
//	    if err := model.Fit(X, y); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    q := mat.NewDense(1, 1, []float64{4})
//	    mean, _ := model.Predict(q)
//	    iv, _ := model.PredictInterval(q, 0.95)
//	    fmt.Println(mean.At(0, 0), iv.At(0, 0), iv.At(0, 1))
//	}
//
// # Packages
//
//   - sklearn/gaussian_process: the regressor, persistence and weight export
//   - kernel: covariance functions (poly, normalized poly, RBF, PUK, precomputed)
//   - preprocessing: missing values, nominal expansion, normalize/standardize
//   - core/linalg: packed covariance storage and Cholesky inversion
//   - core/model: estimator state, gob persistence, weight containers
//   - core/parallel: row-parallel helpers
//   - metrics: regression and probabilistic evaluation metrics
//   - dataset, config, visualize: CSV input, YAML configuration, plots
//   - pkg/errors, pkg/log, pkg/monitor: errors, structured logging, Prometheus metrics
//
// The scigp command (cmd/scigp) wraps these packages for CSV workflows.
//
// # License
//
// scigp is released under the MIT License.
package scigp
