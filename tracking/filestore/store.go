// Package filestore implements tracking.Client on a local mlruns-style
// directory tree. Every mutation runs under an exclusive file lock so a
// trainer and a predictor may share one tree.
//
// Layout:
//
//	<root>/<experiment_id>/meta.yaml
//	<root>/<experiment_id>/<run_id>/meta.yaml
//	<root>/<experiment_id>/<run_id>/tags/<key>
//	<root>/<experiment_id>/<run_id>/metrics/<key>
//	<root>/<experiment_id>/<run_id>/artifacts/
//	<root>/models/<name>/meta.yaml
//	<root>/models/<name>/version-<n>/meta.yaml
package filestore

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
	"github.com/YuminosukeSato/greentaxi/tracking"
)

const (
	metaFile      = "meta.yaml"
	modelsDir     = "models"
	lockFile      = ".lock"
	versionPrefix = "version-"
)

// Store is a file-backed tracking.Client.
type Store struct {
	root   string
	mu     sync.Mutex
	lock   *flock.Flock
	logger log.Logger
}

var _ tracking.Client = (*Store)(nil)

// New opens (creating if needed) the tree at root. root may be a path or a
// file:// URI.
func New(root string, logger log.Logger) (*Store, error) {
	if u, err := url.Parse(root); err == nil && u.Scheme == "file" {
		root = u.Path
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", root)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", abs)
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Store{
		root:   abs,
		lock:   flock.New(filepath.Join(abs, lockFile)),
		logger: logger,
	}, nil
}

// Root returns the absolute tree root.
func (s *Store) Root() string { return s.root }

// withLock serialises fn against other goroutines and other processes.
func (s *Store) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return errors.WrapRegistryError("lock", err)
	}
	defer s.lock.Unlock()
	return fn()
}

func notFound(op, msg string) error {
	return errors.NewRegistryError(op, 404, errors.CodeResourceDoesNotExist, msg)
}

func validName(op, kind, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return errors.NewRegistryError(op, 400, errors.CodeInvalidParameterValue,
			fmt.Sprintf("invalid %s %q", kind, name))
	}
	return nil
}

func readYAML(path string, out interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, out)
}

func writeYAML(path string, in interface{}) error {
	raw, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	return writeFile(path, raw)
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func fileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// ---- experiments ----

func (s *Store) experiments() ([]tracking.Experiment, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var out []tracking.Experiment
	for _, e := range entries {
		if !e.IsDir() || e.Name() == modelsDir {
			continue
		}
		var exp tracking.Experiment
		if err := readYAML(filepath.Join(s.root, e.Name(), metaFile), &exp); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		out = append(out, exp)
	}
	return out, nil
}

// GetOrCreateExperiment implements tracking.Client.
func (s *Store) GetOrCreateExperiment(_ context.Context, name string) (*tracking.Experiment, error) {
	const op = "experiments/get-or-create"
	var result *tracking.Experiment
	err := s.withLock(func() error {
		exps, err := s.experiments()
		if err != nil {
			return err
		}
		next := 0
		for i := range exps {
			if exps[i].Name == name {
				result = &exps[i]
				return nil
			}
			if id, err := strconv.Atoi(exps[i].ID); err == nil && id >= next {
				next = id + 1
			}
		}

		id := strconv.Itoa(next)
		dir := filepath.Join(s.root, id)
		exp := tracking.Experiment{
			ID:               id,
			Name:             name,
			ArtifactLocation: fileURI(dir),
			LifecycleStage:   "active",
		}
		if err := writeYAML(filepath.Join(dir, metaFile), exp); err != nil {
			return err
		}
		s.logger.Info("experiment created", log.ExperimentKey, name)
		result = &exp
		return nil
	})
	if err != nil {
		return nil, errors.WrapRegistryError(op, err)
	}
	return result, nil
}

// ---- runs ----

func (s *Store) runDir(runID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, "*", runID, metaFile))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if filepath.Base(filepath.Dir(filepath.Dir(m))) != modelsDir {
			return filepath.Dir(m), nil
		}
	}
	return "", notFound("runs/get", "run "+runID+" not found")
}

func (s *Store) readRun(runID string) (*tracking.Run, string, error) {
	if err := validName("runs/get", "run id", runID); err != nil {
		return nil, "", err
	}
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, "", err
	}
	var run tracking.Run
	if err := readYAML(filepath.Join(dir, metaFile), &run); err != nil {
		return nil, "", errors.WrapRegistryError("runs/get", err)
	}
	return &run, dir, nil
}

// CreateRun implements tracking.Client.
func (s *Store) CreateRun(_ context.Context, experimentID string) (*tracking.Run, error) {
	const op = "runs/create"
	if err := validName(op, "experiment id", experimentID); err != nil {
		return nil, err
	}
	var run *tracking.Run
	err := s.withLock(func() error {
		expDir := filepath.Join(s.root, experimentID)
		if _, err := os.Stat(filepath.Join(expDir, metaFile)); err != nil {
			return notFound(op, "experiment "+experimentID+" not found")
		}
		id := strings.ReplaceAll(uuid.NewString(), "-", "")
		dir := filepath.Join(expDir, id)
		run = &tracking.Run{
			ID:           id,
			ExperimentID: experimentID,
			Status:       tracking.RunRunning,
			ArtifactURI:  fileURI(filepath.Join(dir, "artifacts")),
			StartTime:    tracking.Now(),
		}
		if err := os.MkdirAll(filepath.Join(dir, "artifacts"), 0o755); err != nil {
			return err
		}
		return writeYAML(filepath.Join(dir, metaFile), run)
	})
	if err != nil {
		return nil, errors.WrapRegistryError(op, err)
	}
	return run, nil
}

// GetRun implements tracking.Client.
func (s *Store) GetRun(_ context.Context, runID string) (*tracking.Run, error) {
	var run *tracking.Run
	err := s.withLock(func() error {
		var err error
		run, _, err = s.readRun(runID)
		return err
	})
	if err != nil {
		return nil, errors.WrapRegistryError("runs/get", err)
	}
	return run, nil
}

// SetTags implements tracking.Client. Each tag is one file.
func (s *Store) SetTags(_ context.Context, runID string, tags []tracking.Tag) error {
	const op = "runs/set-tags"
	for _, t := range tags {
		if err := validName(op, "tag key", t.Key); err != nil {
			return err
		}
	}
	return errors.WrapRegistryError(op, s.withLock(func() error {
		_, dir, err := s.readRun(runID)
		if err != nil {
			return err
		}
		for _, t := range tags {
			if err := writeFile(filepath.Join(dir, "tags", t.Key), []byte(t.Value)); err != nil {
				return err
			}
		}
		return nil
	}))
}

// Tags reads back the tags of a run.
func (s *Store) Tags(runID string) (map[string]string, error) {
	out := make(map[string]string)
	err := s.withLock(func() error {
		_, dir, err := s.readRun(runID)
		if err != nil {
			return err
		}
		entries, err := os.ReadDir(filepath.Join(dir, "tags"))
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		for _, e := range entries {
			raw, err := os.ReadFile(filepath.Join(dir, "tags", e.Name()))
			if err != nil {
				return err
			}
			out[e.Name()] = string(raw)
		}
		return nil
	})
	return out, errors.WrapRegistryError("runs/get-tags", err)
}

// LogMetric implements tracking.Client. Values are appended as
// "<timestamp> <value> <step>" lines.
func (s *Store) LogMetric(_ context.Context, runID string, m tracking.Metric) error {
	const op = "runs/log-metric"
	if err := validName(op, "metric key", m.Key); err != nil {
		return err
	}
	if m.Timestamp == 0 {
		m.Timestamp = tracking.Now()
	}
	return errors.WrapRegistryError(op, s.withLock(func() error {
		_, dir, err := s.readRun(runID)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, "metrics", m.Key)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		_, werr := fmt.Fprintf(f, "%d %s %d\n", m.Timestamp, strconv.FormatFloat(m.Value, 'g', -1, 64), m.Step)
		return errors.CombineErrors(werr, f.Close())
	}))
}

// Metrics returns the logged history of every metric of a run.
func (s *Store) Metrics(runID string) (map[string][]tracking.Metric, error) {
	out := make(map[string][]tracking.Metric)
	err := s.withLock(func() error {
		_, dir, err := s.readRun(runID)
		if err != nil {
			return err
		}
		entries, err := os.ReadDir(filepath.Join(dir, "metrics"))
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		for _, e := range entries {
			raw, err := os.ReadFile(filepath.Join(dir, "metrics", e.Name()))
			if err != nil {
				return err
			}
			for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
				m := tracking.Metric{Key: e.Name()}
				if _, err := fmt.Sscanf(line, "%d %g %d", &m.Timestamp, &m.Value, &m.Step); err != nil {
					return errors.Wrapf(err, "parse metric %s", e.Name())
				}
				out[e.Name()] = append(out[e.Name()], m)
			}
		}
		return nil
	})
	return out, errors.WrapRegistryError("runs/get-metrics", err)
}

// UpdateRun implements tracking.Client.
func (s *Store) UpdateRun(_ context.Context, runID string, status tracking.RunStatus, endTime int64) error {
	return errors.WrapRegistryError("runs/update", s.withLock(func() error {
		run, dir, err := s.readRun(runID)
		if err != nil {
			return err
		}
		run.Status = status
		run.EndTime = endTime
		return writeYAML(filepath.Join(dir, metaFile), run)
	}))
}

// ---- registry ----

func (s *Store) modelDir(name string) string {
	return filepath.Join(s.root, modelsDir, name)
}

func (s *Store) readModel(op, name string) (*tracking.RegisteredModel, error) {
	if err := validName(op, "model name", name); err != nil {
		return nil, err
	}
	var rm tracking.RegisteredModel
	if err := readYAML(filepath.Join(s.modelDir(name), metaFile), &rm); err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(op, "registered model "+name+" not found")
		}
		return nil, err
	}
	return &rm, nil
}

func (s *Store) readVersions(name string) ([]tracking.ModelVersion, error) {
	matches, err := filepath.Glob(filepath.Join(s.modelDir(name), versionPrefix+"*", metaFile))
	if err != nil {
		return nil, err
	}
	versions := make([]tracking.ModelVersion, 0, len(matches))
	for _, m := range matches {
		var mv tracking.ModelVersion
		if err := readYAML(m, &mv); err != nil {
			return nil, err
		}
		versions = append(versions, mv)
	}
	tracking.SortVersions(versions)
	return versions, nil
}

func (s *Store) writeVersion(mv tracking.ModelVersion) error {
	path := filepath.Join(s.modelDir(mv.Name), versionPrefix+strconv.Itoa(mv.Version), metaFile)
	return writeYAML(path, mv)
}

// CreateRegisteredModel implements tracking.Client.
func (s *Store) CreateRegisteredModel(_ context.Context, name string) (*tracking.RegisteredModel, error) {
	const op = "registered-models/create"
	var rm *tracking.RegisteredModel
	err := s.withLock(func() error {
		existing, err := s.readModel(op, name)
		if err == nil {
			rm = existing
			return nil
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return err
		}
		now := tracking.Now()
		rm = &tracking.RegisteredModel{Name: name, CreationTimestamp: now, LastUpdatedTimestamp: now}
		return writeYAML(filepath.Join(s.modelDir(name), metaFile), rm)
	})
	if err != nil {
		return nil, errors.WrapRegistryError(op, err)
	}
	return rm, nil
}

// CreateModelVersion implements tracking.Client.
func (s *Store) CreateModelVersion(_ context.Context, name, source, runID string) (*tracking.ModelVersion, error) {
	const op = "model-versions/create"
	var mv *tracking.ModelVersion
	err := s.withLock(func() error {
		if _, err := s.readModel(op, name); err != nil {
			return err
		}
		versions, err := s.readVersions(name)
		if err != nil {
			return err
		}
		now := tracking.Now()
		mv = &tracking.ModelVersion{
			Name:                 name,
			Version:              tracking.NextVersion(versions),
			CreationTimestamp:    now,
			LastUpdatedTimestamp: now,
			CurrentStage:         tracking.StageNone,
			Source:               source,
			RunID:                runID,
			Status:               tracking.VersionReady,
		}
		return s.writeVersion(*mv)
	})
	if err != nil {
		return nil, errors.WrapRegistryError(op, err)
	}
	s.logger.Info("model version created", log.ModelNameKey, name, log.ModelVersionKey, mv.Version)
	return mv, nil
}

// GetModelVersion implements tracking.Client.
func (s *Store) GetModelVersion(_ context.Context, name string, version int) (*tracking.ModelVersion, error) {
	const op = "model-versions/get"
	var mv tracking.ModelVersion
	err := s.withLock(func() error {
		if _, err := s.readModel(op, name); err != nil {
			return err
		}
		path := filepath.Join(s.modelDir(name), versionPrefix+strconv.Itoa(version), metaFile)
		if err := readYAML(path, &mv); err != nil {
			if os.IsNotExist(err) {
				return notFound(op, fmt.Sprintf("model version %s/%d not found", name, version))
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapRegistryError(op, err)
	}
	return &mv, nil
}

// TransitionModelVersionStage implements tracking.Client.
func (s *Store) TransitionModelVersionStage(_ context.Context, name string, version int, stage string, archiveExisting bool) (*tracking.ModelVersion, error) {
	const op = "model-versions/transition-stage"
	var mv *tracking.ModelVersion
	err := s.withLock(func() error {
		if _, err := s.readModel(op, name); err != nil {
			return err
		}
		versions, err := s.readVersions(name)
		if err != nil {
			return err
		}
		before := make(map[int]string, len(versions))
		for _, v := range versions {
			before[v.Version] = v.CurrentStage
		}
		if mv, err = tracking.ApplyTransition(versions, version, stage, archiveExisting, tracking.Now()); err != nil {
			return err
		}
		for _, v := range versions {
			if v.Version == version || before[v.Version] != v.CurrentStage {
				if err := s.writeVersion(v); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapRegistryError(op, err)
	}
	s.logger.Info("model version transitioned",
		log.ModelNameKey, name,
		log.ModelVersionKey, version,
		log.ModelStageKey, mv.CurrentStage,
	)
	return mv, nil
}

// GetLatestVersions implements tracking.Client.
func (s *Store) GetLatestVersions(_ context.Context, name string, stages []string) ([]tracking.ModelVersion, error) {
	const op = "registered-models/get-latest-versions"
	var out []tracking.ModelVersion
	err := s.withLock(func() error {
		if _, err := s.readModel(op, name); err != nil {
			return err
		}
		versions, err := s.readVersions(name)
		if err != nil {
			return err
		}
		out = tracking.LatestPerStage(versions, stages)
		return nil
	})
	if err != nil {
		return nil, errors.WrapRegistryError(op, err)
	}
	return out, nil
}

// ListVersions returns every version of name in ascending order.
func (s *Store) ListVersions(name string) ([]tracking.ModelVersion, error) {
	var out []tracking.ModelVersion
	err := s.withLock(func() error {
		var err error
		out, err = s.readVersions(name)
		return err
	})
	return out, errors.WrapRegistryError("model-versions/list", err)
}
