package sqlstore

import (
	"strconv"

	"github.com/YuminosukeSato/greentaxi/tracking"
)

// Table layouts. Timestamps are epoch milliseconds as in the REST API.

type Experiment struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	Name             string `gorm:"size:256;uniqueIndex;not null"`
	ArtifactLocation string `gorm:"size:512"`
	LifecycleStage   string `gorm:"size:32;default:active"`
	CreationTime     int64
}

func (Experiment) TableName() string { return "experiments" }

func (e Experiment) toAPI() *tracking.Experiment {
	return &tracking.Experiment{
		ID:               strconv.FormatUint(uint64(e.ID), 10),
		Name:             e.Name,
		ArtifactLocation: e.ArtifactLocation,
		LifecycleStage:   e.LifecycleStage,
	}
}

type Run struct {
	RunID        string `gorm:"primaryKey;size:32"`
	ExperimentID uint   `gorm:"index;not null"`
	Status       string `gorm:"size:20"`
	ArtifactURI  string `gorm:"size:512"`
	StartTime    int64
	EndTime      int64
}

func (Run) TableName() string { return "runs" }

func (r Run) toAPI() *tracking.Run {
	return &tracking.Run{
		ID:           r.RunID,
		ExperimentID: strconv.FormatUint(uint64(r.ExperimentID), 10),
		Status:       tracking.RunStatus(r.Status),
		ArtifactURI:  r.ArtifactURI,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
	}
}

type Tag struct {
	RunID string `gorm:"primaryKey;size:32"`
	Key   string `gorm:"primaryKey;size:250"`
	Value string `gorm:"size:5000"`
}

func (Tag) TableName() string { return "tags" }

type Metric struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	RunID     string `gorm:"size:32;index:idx_metrics_run_key"`
	Key       string `gorm:"size:250;index:idx_metrics_run_key"`
	Value     float64
	Timestamp int64
	Step      int64
}

func (Metric) TableName() string { return "metrics" }

type RegisteredModel struct {
	Name            string `gorm:"primaryKey;size:256"`
	CreationTime    int64
	LastUpdatedTime int64
}

func (RegisteredModel) TableName() string { return "registered_models" }

func (m RegisteredModel) toAPI() *tracking.RegisteredModel {
	return &tracking.RegisteredModel{
		Name:                 m.Name,
		CreationTimestamp:    m.CreationTime,
		LastUpdatedTimestamp: m.LastUpdatedTime,
	}
}

type ModelVersion struct {
	Name            string `gorm:"primaryKey;size:256"`
	Version         int    `gorm:"primaryKey;autoIncrement:false"`
	CreationTime    int64
	LastUpdatedTime int64
	CurrentStage    string `gorm:"size:20;index"`
	Source          string `gorm:"size:512"`
	RunID           string `gorm:"size:32"`
	Status          string `gorm:"size:20"`
}

func (ModelVersion) TableName() string { return "model_versions" }

func (v ModelVersion) toAPI() tracking.ModelVersion {
	return tracking.ModelVersion{
		Name:                 v.Name,
		Version:              v.Version,
		CreationTimestamp:    v.CreationTime,
		LastUpdatedTimestamp: v.LastUpdatedTime,
		CurrentStage:         v.CurrentStage,
		Source:               v.Source,
		RunID:                v.RunID,
		Status:               v.Status,
	}
}

func versionFromAPI(v tracking.ModelVersion) ModelVersion {
	return ModelVersion{
		Name:            v.Name,
		Version:         v.Version,
		CreationTime:    v.CreationTimestamp,
		LastUpdatedTime: v.LastUpdatedTimestamp,
		CurrentStage:    v.CurrentStage,
		Source:          v.Source,
		RunID:           v.RunID,
		Status:          v.Status,
	}
}

func allModels() []interface{} {
	return []interface{}{
		&Experiment{},
		&Run{},
		&Tag{},
		&Metric{},
		&RegisteredModel{},
		&ModelVersion{},
	}
}
