package tracking

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

const (
	modelsScheme = "models:/"
	runsScheme   = "runs:/"
)

// ModelURI is a parsed models:/{name}/{stage-or-version} reference.
// Exactly one of Stage and Version is set.
type ModelURI struct {
	Name    string
	Stage   string
	Version int
}

func (u ModelURI) String() string {
	if u.Stage != "" {
		return modelsScheme + u.Name + "/" + u.Stage
	}
	return fmt.Sprintf("%s%s/%d", modelsScheme, u.Name, u.Version)
}

// ParseModelURI parses models:/{name}/{stage} and models:/{name}/{version}.
func ParseModelURI(uri string) (ModelURI, error) {
	rest, ok := strings.CutPrefix(uri, modelsScheme)
	if !ok {
		return ModelURI{}, errors.NewValidationError("model_uri", "must start with "+modelsScheme, uri)
	}
	name, ref, ok := strings.Cut(strings.Trim(rest, "/"), "/")
	if !ok || name == "" || ref == "" || strings.Contains(ref, "/") {
		return ModelURI{}, errors.NewValidationError("model_uri", "expected models:/<name>/<stage or version>", uri)
	}

	if v, err := strconv.Atoi(ref); err == nil {
		if v < 1 {
			return ModelURI{}, errors.NewValidationError("model_uri", "version must be positive", uri)
		}
		return ModelURI{Name: name, Version: v}, nil
	}
	stage, err := CanonicalStage(ref)
	if err != nil {
		return ModelURI{}, errors.NewValidationError("model_uri", "unknown stage "+ref, uri)
	}
	return ModelURI{Name: name, Stage: stage}, nil
}

// RunsURI builds runs:/{runID}/{path}.
func RunsURI(runID, path string) string {
	return runsScheme + runID + "/" + strings.TrimLeft(path, "/")
}

// ParseRunsURI splits runs:/{runID}/{path}. path may be empty.
func ParseRunsURI(uri string) (runID, path string, err error) {
	rest, ok := strings.CutPrefix(uri, runsScheme)
	if !ok {
		return "", "", errors.NewValidationError("runs_uri", "must start with "+runsScheme, uri)
	}
	runID, path, _ = strings.Cut(strings.TrimLeft(rest, "/"), "/")
	if runID == "" {
		return "", "", errors.NewValidationError("runs_uri", "missing run id", uri)
	}
	return runID, path, nil
}

// ResolveModelVersion looks up the version a models:/ URI points at.
// A stage with no version in it yields an error matching ErrNotFound.
func ResolveModelVersion(ctx context.Context, c Client, uri string) (*ModelVersion, error) {
	mu, err := ParseModelURI(uri)
	if err != nil {
		return nil, err
	}
	if mu.Stage == "" {
		return c.GetModelVersion(ctx, mu.Name, mu.Version)
	}

	versions, err := c.GetLatestVersions(ctx, mu.Name, []string{mu.Stage})
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if v.CurrentStage == mu.Stage {
			return &v, nil
		}
	}
	return nil, errors.NewRegistryError("resolve "+uri, 404, errors.CodeResourceDoesNotExist,
		fmt.Sprintf("no version of %s in stage %s", mu.Name, mu.Stage))
}
