package log

// Attribute keys shared by every component. Keys are dotted so that log
// pipelines can group them ("model.*", "data.*", "gp.*").
const (
	// ModelNameKey identifies the estimator type.
	ModelNameKey = "model.name"

	// OperationKey is the operation being performed (see Operation* values).
	OperationKey = "ml.operation"

	// ComponentKey names the package or subsystem that emitted the record.
	ComponentKey = "ml.component"

	// PhaseKey is the lifecycle phase (see Phase* values).
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	DroppedKey  = "data.dropped"
)

// Performance and evaluation.
const (
	DurationMsKey = "perf.duration_ms"
	R2ScoreKey    = "metrics.r2_score"
	PredsKey      = "preds.count"
	ConfidenceKey = "preds.confidence"
)

// Gaussian process specific attributes.
const (
	NoiseKey     = "gp.noise"
	KernelKey    = "gp.kernel"
	FilterKey    = "gp.filter"
	AlinKey      = "gp.alin"
	BlinKey      = "gp.blin"
	ConditionKey = "gp.condition_number"
	VarianceKey  = "gp.variance"
	AttemptKey   = "gp.noise_attempt"
)

// Error context.
const (
	ErrorKey      = "error"
	WarningKey    = "warning"
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationInterval     = "predict_interval"
	OperationStdDev       = "predict_stddev"
	OperationLogDensity   = "log_density"
	OperationTransform    = "transform"
	OperationFactorize    = "factorize"
	OperationFitTransform = "fit_transform"

	PhaseTraining      = "training"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
