package model

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// WeightedFitter accepts one non-negative weight per training row.
type WeightedFitter interface {
	FitWeighted(X, y mat.Matrix, sampleWeight []float64) error
}

// ContextFitter is a Fitter whose training can be cancelled.
type ContextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix, sampleWeight []float64) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer returns the coefficient of determination R^2 of the prediction.
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Regressor combines interfaces for regression models.
type Regressor interface {
	Fitter
	Predictor
	Scorer
}

// UncertaintyEstimator reports the predictive standard deviation of each
// row in target units.
type UncertaintyEstimator interface {
	StandardDeviation(X mat.Matrix) (mat.Matrix, error)
}

// IntervalEstimator returns an n×2 matrix of lower and upper bounds.
type IntervalEstimator interface {
	PredictInterval(X mat.Matrix, confidenceLevel float64) (mat.Matrix, error)
}

// ConditionalDensityEstimator returns log p(y|x) for each row.
type ConditionalDensityEstimator interface {
	LogDensity(X, y mat.Matrix) (mat.Matrix, error)
}

// ProbabilisticRegressor is a regressor that also quantifies uncertainty.
type ProbabilisticRegressor interface {
	Regressor
	UncertaintyEstimator
	IntervalEstimator
	ConditionalDensityEstimator
}

// ParameterGetter exposes hyperparameters keyed by their snake_case names.
type ParameterGetter interface {
	GetParams(deep bool) map[string]interface{}
}

// ParameterSetter sets hyperparameters. It never changes a fitted model;
// new values take effect on the next Fit.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// WeightExporter converts a fitted model to and from ModelWeights.
type WeightExporter interface {
	ExportWeights() (*ModelWeights, error)
	ImportWeights(weights *ModelWeights) error
}

// Persistable is the interface for models that can be saved and loaded.
type Persistable interface {
	Save(path string) error
	Load(path string) error
}
