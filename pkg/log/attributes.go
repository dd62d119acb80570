// Standard attribute keys shared by the trainer and the prediction service.
//
// Keys follow a hierarchical naming convention ("model.name", "data.samples")
// so that records from both processes can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the registered model.
	ModelNameKey = "model.name"

	// ModelVersionKey is the registry version number.
	ModelVersionKey = "model.version"

	// ModelStageKey is the registry stage (None, Staging, Production, Archived).
	ModelStageKey = "model.stage"

	// ModelURIKey is a models:/ or runs:/ URI.
	ModelURIKey = "model.uri"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "download", "register", "transition"
	OperationKey = "ml.operation"

	// ComponentKey identifies the process or package emitting the record.
	ComponentKey = "ml.component"
)

// Tracking context
const (
	ExperimentKey = "tracking.experiment"
	RunIDKey      = "tracking.run_id"
	TrackingURI   = "tracking.uri"
	ArtifactURI   = "tracking.artifact_uri"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// DroppedKey counts rows removed by filtering.
	DroppedKey = "data.dropped"

	DatasetKey = "data.source"
	PathKey    = "data.path"
	URLKey     = "data.url"
	BytesKey   = "data.size_bytes"
)

// Performance and Metrics
const (
	DurationMsKey = "perf.duration_ms"

	RMSETrainKey = "metrics.rmse_train"
	RMSETestKey  = "metrics.rmse_test"
	R2ScoreKey   = "metrics.r2_score"

	// PredictionKey is a single predicted trip duration in minutes.
	PredictionKey = "preds.value"
)

// Serving and telemetry
const (
	SinkKey       = "telemetry.sink"
	HTTPStatusKey = "http.status"
	HTTPPathKey   = "http.path"
	RandomSeedKey = "config.random_seed"
)
