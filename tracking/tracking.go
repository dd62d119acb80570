// Package tracking defines the experiment-tracking and model-registry
// client used by the trainer and the prediction service, together with
// the registry semantics shared by the local backends.
package tracking

import (
	"context"
	"time"
)

//go:generate mockgen -destination mocks/tracking_mock.go -source tracking.go -package mocks

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning  RunStatus = "RUNNING"
	RunFinished RunStatus = "FINISHED"
	RunFailed   RunStatus = "FAILED"
)

// Registry stages.
const (
	StageNone       = "None"
	StageStaging    = "Staging"
	StageProduction = "Production"
	StageArchived   = "Archived"
)

// Stages lists every valid stage in canonical spelling.
var Stages = []string{StageNone, StageStaging, StageProduction, StageArchived}

// Model version status as reported by the registry.
const VersionReady = "READY"

// Experiment groups runs.
type Experiment struct {
	ID               string `json:"experiment_id" yaml:"experiment_id"`
	Name             string `json:"name" yaml:"name"`
	ArtifactLocation string `json:"artifact_location" yaml:"artifact_location"`
	LifecycleStage   string `json:"lifecycle_stage" yaml:"lifecycle_stage"`
}

// Run is one execution of the training pipeline.
type Run struct {
	ID           string    `json:"run_id" yaml:"run_id"`
	ExperimentID string    `json:"experiment_id" yaml:"experiment_id"`
	Status       RunStatus `json:"status" yaml:"status"`
	ArtifactURI  string    `json:"artifact_uri" yaml:"artifact_uri"`
	StartTime    int64     `json:"start_time" yaml:"start_time"`
	EndTime      int64     `json:"end_time,omitempty" yaml:"end_time"`
}

// Tag is a run tag.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Metric is one logged metric value.
type Metric struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Step      int64   `json:"step"`
}

// RegisteredModel is a named container of versions.
type RegisteredModel struct {
	Name                 string `json:"name" yaml:"name"`
	CreationTimestamp    int64  `json:"creation_timestamp" yaml:"creation_timestamp"`
	LastUpdatedTimestamp int64  `json:"last_updated_timestamp" yaml:"last_updated_timestamp"`
}

// ModelVersion is one registered version of a model.
type ModelVersion struct {
	Name                 string `json:"name" yaml:"name"`
	Version              int    `json:"version" yaml:"version"`
	CreationTimestamp    int64  `json:"creation_timestamp" yaml:"creation_timestamp"`
	LastUpdatedTimestamp int64  `json:"last_updated_timestamp" yaml:"last_updated_timestamp"`
	CurrentStage         string `json:"current_stage" yaml:"current_stage"`
	Source               string `json:"source" yaml:"source"`
	RunID                string `json:"run_id" yaml:"run_id"`
	Status               string `json:"status" yaml:"status"`
}

// Client is the subset of the MLflow tracking and registry API the two
// processes use.
type Client interface {
	// GetOrCreateExperiment returns the experiment named name, creating it
	// when absent.
	GetOrCreateExperiment(ctx context.Context, name string) (*Experiment, error)

	CreateRun(ctx context.Context, experimentID string) (*Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	SetTags(ctx context.Context, runID string, tags []Tag) error
	LogMetric(ctx context.Context, runID string, metric Metric) error

	// UpdateRun sets the terminal status and end time of a run.
	UpdateRun(ctx context.Context, runID string, status RunStatus, endTime int64) error

	// CreateRegisteredModel is idempotent: an existing model is returned
	// as is.
	CreateRegisteredModel(ctx context.Context, name string) (*RegisteredModel, error)

	// CreateModelVersion allocates the next version number of name.
	CreateModelVersion(ctx context.Context, name, source, runID string) (*ModelVersion, error)
	GetModelVersion(ctx context.Context, name string, version int) (*ModelVersion, error)

	// TransitionModelVersionStage moves one version to stage. Other
	// versions keep their stage unless archiveExisting is set.
	TransitionModelVersionStage(ctx context.Context, name string, version int, stage string, archiveExisting bool) (*ModelVersion, error)

	// GetLatestVersions returns, per requested stage, the highest version
	// in that stage. An empty stages list means every stage.
	GetLatestVersions(ctx context.Context, name string, stages []string) ([]ModelVersion, error)
}

// Now returns the current time in epoch milliseconds, the registry's unit.
func Now() int64 {
	return time.Now().UnixMilli()
}
