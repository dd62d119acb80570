package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
	"github.com/YuminosukeSato/greentaxi/tracking"
)

// Wire types. MLflow encodes model version numbers as strings.

type runInfo struct {
	RunID          string `json:"run_id"`
	ExperimentID   string `json:"experiment_id"`
	Status         string `json:"status"`
	StartTime      int64  `json:"start_time"`
	EndTime        int64  `json:"end_time"`
	ArtifactURI    string `json:"artifact_uri"`
	LifecycleStage string `json:"lifecycle_stage"`
}

func (ri runInfo) run() *tracking.Run {
	return &tracking.Run{
		ID:           ri.RunID,
		ExperimentID: ri.ExperimentID,
		Status:       tracking.RunStatus(ri.Status),
		ArtifactURI:  ri.ArtifactURI,
		StartTime:    ri.StartTime,
		EndTime:      ri.EndTime,
	}
}

type runEnvelope struct {
	Run struct {
		Info runInfo `json:"info"`
	} `json:"run"`
}

type modelVersion struct {
	Name                 string `json:"name"`
	Version              string `json:"version"`
	CreationTimestamp    int64  `json:"creation_timestamp"`
	LastUpdatedTimestamp int64  `json:"last_updated_timestamp"`
	CurrentStage         string `json:"current_stage"`
	Source               string `json:"source"`
	RunID                string `json:"run_id"`
	Status               string `json:"status"`
}

func (mv modelVersion) convert() (*tracking.ModelVersion, error) {
	v, err := strconv.Atoi(mv.Version)
	if err != nil {
		return nil, errors.WrapRegistryError("model-versions", errors.Wrapf(err, "version %q", mv.Version))
	}
	return &tracking.ModelVersion{
		Name:                 mv.Name,
		Version:              v,
		CreationTimestamp:    mv.CreationTimestamp,
		LastUpdatedTimestamp: mv.LastUpdatedTimestamp,
		CurrentStage:         mv.CurrentStage,
		Source:               mv.Source,
		RunID:                mv.RunID,
		Status:               mv.Status,
	}, nil
}

type modelVersionEnvelope struct {
	ModelVersion modelVersion `json:"model_version"`
}

type registeredModelEnvelope struct {
	RegisteredModel tracking.RegisteredModel `json:"registered_model"`
}

// GetOrCreateExperiment implements tracking.Client.
func (c *Client) GetOrCreateExperiment(ctx context.Context, name string) (*tracking.Experiment, error) {
	var got struct {
		Experiment tracking.Experiment `json:"experiment"`
	}
	err := c.do(ctx, http.MethodGet, "experiments/get-by-name", url.Values{"experiment_name": {name}}, nil, &got)
	if err == nil {
		return &got.Experiment, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	var created struct {
		ExperimentID string `json:"experiment_id"`
	}
	if err := c.do(ctx, http.MethodPost, "experiments/create", nil, map[string]string{"name": name}, &created); err != nil {
		// 同名で同時に作成された場合は取り直す
		if errors.Is(err, errors.ErrAlreadyExists) {
			if err := c.do(ctx, http.MethodGet, "experiments/get-by-name", url.Values{"experiment_name": {name}}, nil, &got); err != nil {
				return nil, err
			}
			return &got.Experiment, nil
		}
		return nil, err
	}
	return &tracking.Experiment{ID: created.ExperimentID, Name: name, LifecycleStage: "active"}, nil
}

// CreateRun implements tracking.Client.
func (c *Client) CreateRun(ctx context.Context, experimentID string) (*tracking.Run, error) {
	req := map[string]interface{}{
		"experiment_id": experimentID,
		"start_time":    tracking.Now(),
	}
	var out runEnvelope
	if err := c.do(ctx, http.MethodPost, "runs/create", nil, req, &out); err != nil {
		return nil, err
	}
	return out.Run.Info.run(), nil
}

// GetRun implements tracking.Client.
func (c *Client) GetRun(ctx context.Context, runID string) (*tracking.Run, error) {
	var out runEnvelope
	if err := c.do(ctx, http.MethodGet, "runs/get", url.Values{"run_id": {runID}}, nil, &out); err != nil {
		return nil, err
	}
	return out.Run.Info.run(), nil
}

// SetTags implements tracking.Client with a single log-batch call.
func (c *Client) SetTags(ctx context.Context, runID string, tags []tracking.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	req := struct {
		RunID string         `json:"run_id"`
		Tags  []tracking.Tag `json:"tags"`
	}{RunID: runID, Tags: tags}
	return c.do(ctx, http.MethodPost, "runs/log-batch", nil, req, nil)
}

// LogMetric implements tracking.Client.
func (c *Client) LogMetric(ctx context.Context, runID string, m tracking.Metric) error {
	if m.Timestamp == 0 {
		m.Timestamp = tracking.Now()
	}
	req := struct {
		RunID string `json:"run_id"`
		tracking.Metric
	}{RunID: runID, Metric: m}
	return c.do(ctx, http.MethodPost, "runs/log-metric", nil, req, nil)
}

// UpdateRun implements tracking.Client.
func (c *Client) UpdateRun(ctx context.Context, runID string, status tracking.RunStatus, endTime int64) error {
	req := map[string]interface{}{
		"run_id":   runID,
		"status":   string(status),
		"end_time": endTime,
	}
	return c.do(ctx, http.MethodPost, "runs/update", nil, req, nil)
}

// CreateRegisteredModel implements tracking.Client. RESOURCE_ALREADY_EXISTS
// is not an error: the existing model is fetched instead.
func (c *Client) CreateRegisteredModel(ctx context.Context, name string) (*tracking.RegisteredModel, error) {
	var out registeredModelEnvelope
	err := c.do(ctx, http.MethodPost, "registered-models/create", nil, map[string]string{"name": name}, &out)
	if err == nil {
		return &out.RegisteredModel, nil
	}
	if !errors.Is(err, errors.ErrAlreadyExists) {
		return nil, err
	}
	c.logger.Debug("registered model already exists", log.ModelNameKey, name)
	if err := c.do(ctx, http.MethodGet, "registered-models/get", url.Values{"name": {name}}, nil, &out); err != nil {
		return nil, err
	}
	return &out.RegisteredModel, nil
}

// CreateModelVersion implements tracking.Client.
func (c *Client) CreateModelVersion(ctx context.Context, name, source, runID string) (*tracking.ModelVersion, error) {
	req := map[string]string{"name": name, "source": source, "run_id": runID}
	var out modelVersionEnvelope
	if err := c.do(ctx, http.MethodPost, "model-versions/create", nil, req, &out); err != nil {
		return nil, err
	}
	return out.ModelVersion.convert()
}

// GetModelVersion implements tracking.Client.
func (c *Client) GetModelVersion(ctx context.Context, name string, version int) (*tracking.ModelVersion, error) {
	q := url.Values{"name": {name}, "version": {strconv.Itoa(version)}}
	var out modelVersionEnvelope
	if err := c.do(ctx, http.MethodGet, "model-versions/get", q, nil, &out); err != nil {
		return nil, err
	}
	return out.ModelVersion.convert()
}

// TransitionModelVersionStage implements tracking.Client.
func (c *Client) TransitionModelVersionStage(ctx context.Context, name string, version int, stage string, archiveExisting bool) (*tracking.ModelVersion, error) {
	req := map[string]interface{}{
		"name":                      name,
		"version":                   strconv.Itoa(version),
		"stage":                     stage,
		"archive_existing_versions": archiveExisting,
	}
	var out modelVersionEnvelope
	if err := c.do(ctx, http.MethodPost, "model-versions/transition-stage", nil, req, &out); err != nil {
		return nil, err
	}
	return out.ModelVersion.convert()
}

// GetLatestVersions implements tracking.Client.
func (c *Client) GetLatestVersions(ctx context.Context, name string, stages []string) ([]tracking.ModelVersion, error) {
	req := map[string]interface{}{"name": name}
	if len(stages) > 0 {
		req["stages"] = stages
	}
	var out struct {
		ModelVersions []modelVersion `json:"model_versions"`
	}
	if err := c.do(ctx, http.MethodPost, "registered-models/get-latest-versions", nil, req, &out); err != nil {
		return nil, err
	}

	versions := make([]tracking.ModelVersion, 0, len(out.ModelVersions))
	for _, mv := range out.ModelVersions {
		v, err := mv.convert()
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, nil
}
