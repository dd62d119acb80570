package config

import (
	"time"

	"github.com/YuminosukeSato/greentaxi/dataset"
	"github.com/YuminosukeSato/greentaxi/tracking"
)

const (
	// EnvPrefix is prepended to every environment variable read by viper.
	EnvPrefix = "GREENTAXI"
)

const (
	// DefaultTrackingURI is the local mlruns directory.
	DefaultTrackingURI = ""

	// DefaultArtifactRoot is used by database tracking backends.
	DefaultArtifactRoot = "./mlruns"

	// DefaultCredentialsFile is exported as GOOGLE_APPLICATION_CREDENTIALS.
	DefaultCredentialsFile = "./credentials.json"

	// DefaultModelName is the registered model both processes share.
	DefaultModelName = "green-taxi-trip-duration-linear"

	// DefaultModelStage is promoted to by the trainer and served by the predictor.
	DefaultModelStage = tracking.StageProduction
)

const (
	DefaultExperiment = "green-taxi-trip-duration-xgb"

	DefaultColor = "green"
	DefaultYear  = 2021
	DefaultMonth = 1

	DefaultDataDir = "data"

	DefaultTestSize = 0.2
	DefaultSeed     = 42

	// DefaultPromoteVersion is the version transitioned after registration.
	DefaultPromoteVersion = 1

	DefaultDeveloper = "<your name>"
)

const (
	DefaultAddr = ":8000"

	// DefaultSidecarURL is the Evidently monitoring service.
	DefaultSidecarURL = "http://evidently_service:8085"

	// DefaultSidecarTimeout bounds one forward.
	DefaultSidecarTimeout = 5 * time.Second

	DefaultRedisChannel = "green_taxi_data"

	DefaultPostgresTable = "taxi_predictions"

	DefaultShutdownTimeout = 10 * time.Second
)

// DefaultSource is the trip file the trainer downloads.
var DefaultSource = dataset.Source{
	Color:   DefaultColor,
	Year:    DefaultYear,
	Month:   DefaultMonth,
	BaseURL: dataset.DefaultBaseURL,
	DataDir: DefaultDataDir,
}
