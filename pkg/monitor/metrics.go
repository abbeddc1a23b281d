// Package monitor exposes Prometheus metrics for model training and
// inference. Metrics are registered on the default registry; serve them
// with promhttp.Handler().
package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scigp"

// Fit results.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	// fitTotal counts Fit calls.
	// Labels: result (success, error)
	fitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fit_total",
		Help:      "Total Gaussian process fits by result",
	}, []string{"result"})

	fitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fit_duration_seconds",
		Help:      "Wall time of a complete fit in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	factorizationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "factorization_duration_seconds",
		Help:      "Wall time of Cholesky factorisation and inversion in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
	})

	varianceClamps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "variance_clamp_total",
		Help:      "Predictive variances raised to the noise floor",
	})

	noiseRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "noise_retry_total",
		Help:      "Fits retried with a larger noise level after a failed factorisation",
	})

	// predictionsTotal counts predicted rows.
	// Labels: operation (predict, predict_stddev, predict_interval, log_density)
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_total",
		Help:      "Total rows processed by inference operations",
	}, []string{"operation"})
)

// RecordFit records the outcome and duration of a fit.
func RecordFit(err error, d time.Duration) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	fitTotal.WithLabelValues(result).Inc()
	fitDuration.Observe(d.Seconds())
}

// ObserveFactorization records the time spent inverting the covariance.
func ObserveFactorization(d time.Duration) {
	factorizationDuration.Observe(d.Seconds())
}

// IncVarianceClamp records one variance raised to the noise floor.
func IncVarianceClamp() {
	varianceClamps.Inc()
}

// IncNoiseRetry records one regularised retry.
func IncNoiseRetry() {
	noiseRetries.Inc()
}

// AddPredictions records n rows processed by operation.
func AddPredictions(operation string, n int) {
	predictionsTotal.WithLabelValues(operation).Add(float64(n))
}
