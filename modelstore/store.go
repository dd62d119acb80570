package modelstore

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/greentaxi/artifact"
	"github.com/YuminosukeSato/greentaxi/linear"
	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
	"github.com/YuminosukeSato/greentaxi/tracking"
)

// Model is a loaded go_linear model.
type Model struct {
	Descriptor *Descriptor
	Regressor  *linear.LinearRegression
	inputs     []string
}

// Inputs returns the feature names in the order Predict frames them.
func (m *Model) Inputs() []string {
	return append([]string(nil), m.inputs...)
}

// Predict frames one record as a 1×n matrix in signature order and
// returns the single predicted value.
func (m *Model) Predict(row map[string]float64) (float64, error) {
	x := mat.NewDense(1, len(m.inputs), nil)
	var missing []string
	for j, name := range m.inputs {
		v, ok := row[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		x.Set(0, j, v)
	}
	if len(missing) > 0 {
		return 0, errors.NewSchemaError("prediction input", missing)
	}

	pred, err := m.Regressor.Predict(x)
	if err != nil {
		return 0, err
	}
	return pred.At(0, 0), nil
}

// Log writes the descriptor and the weights for lr into a temporary
// directory and uploads it to artifactPath in repo.
func Log(ctx context.Context, repo artifact.Repository, runID string, lr *linear.LinearRegression, sig Signature, artifactPath string) (*Descriptor, error) {
	if artifactPath == "" {
		artifactPath = DefaultArtifactPath
	}
	dir, err := os.MkdirTemp("", "greentaxi-model-")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer os.RemoveAll(dir)

	f, err := os.Create(filepath.Join(dir, WeightsFile))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := lr.WriteJSON(f); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, errors.WithStack(err)
	}

	d := &Descriptor{
		ArtifactPath: artifactPath,
		Flavors: map[string]FlavorConfig{
			Flavor: {
				ModelFile: WeightsFile,
				ModelType: "LinearRegression",
				GoVersion: runtime.Version(),
			},
		},
		ModelUUID:      uuid.NewString(),
		RunID:          runID,
		UTCTimeCreated: time.Now().UTC().Format(timeLayout),
	}
	if len(sig.Inputs) > 0 {
		if err := d.SetSignature(sig); err != nil {
			return nil, err
		}
	}
	if err := writeDescriptor(filepath.Join(dir, DescriptorFile), d); err != nil {
		return nil, err
	}

	if err := repo.Upload(ctx, dir, artifactPath); err != nil {
		return nil, err
	}
	return d, nil
}

// Load downloads artifactPath from repo and restores the model. An empty
// artifactPath means the repository root is the model directory.
func Load(ctx context.Context, repo artifact.Repository, artifactPath string) (_ *Model, err error) {
	defer errors.Recover(&err, "modelstore.Load")

	tmp, err := os.MkdirTemp("", "greentaxi-load-")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer os.RemoveAll(tmp)

	dir, err := repo.Download(ctx, artifactPath, tmp)
	if err != nil {
		return nil, err
	}
	return LoadDir(dir)
}

// LoadDir restores a model from a local model directory.
func LoadDir(dir string) (*Model, error) {
	d, err := readDescriptor(filepath.Join(dir, DescriptorFile))
	if err != nil {
		return nil, errors.NewModelError("modelstore.Load", "descriptor", err)
	}
	flavor, ok := d.Flavors[Flavor]
	if !ok {
		return nil, errors.NewModelError("modelstore.Load", "flavor",
			errors.Newf("model has no %s flavor", Flavor))
	}
	modelFile := flavor.ModelFile
	if modelFile == "" {
		modelFile = WeightsFile
	}

	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(modelFile)))
	if err != nil {
		return nil, errors.NewModelError("modelstore.Load", "weights", err)
	}
	defer f.Close()
	lr, err := linear.ReadJSON(f)
	if err != nil {
		return nil, errors.NewModelError("modelstore.Load", "weights", err)
	}

	inputs := lr.FeatureNames()
	sig, ok, err := d.Signature()
	if err != nil {
		return nil, errors.NewModelError("modelstore.Load", "signature", err)
	}
	if ok {
		inputs = sig.InputNames()
	}
	if len(inputs) != len(lr.Coef()) {
		return nil, errors.NewDimensionError("modelstore.Load", len(lr.Coef()), len(inputs), 1)
	}

	return &Model{Descriptor: d, Regressor: lr, inputs: inputs}, nil
}

// Opener resolves an artifact URI. *artifact.Resolver implements it.
type Opener interface {
	Open(ctx context.Context, uri string) (artifact.Repository, error)
}

var _ Opener = (*artifact.Resolver)(nil)

// Loader loads registered models by models:/ URI. Nothing is cached:
// every call resolves the version and downloads its artifacts.
type Loader struct {
	registry tracking.Client
	opener   Opener
	logger   log.Logger
}

// NewLoader returns a Loader.
func NewLoader(registry tracking.Client, opener Opener, logger log.Logger) *Loader {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Loader{registry: registry, opener: opener, logger: logger}
}

// Load resolves modelURI (models:/{name}/{stage} or /{version}) to a
// model version and loads its source.
func (l *Loader) Load(ctx context.Context, modelURI string) (*Model, error) {
	mv, err := tracking.ResolveModelVersion(ctx, l.registry, modelURI)
	if err != nil {
		return nil, err
	}
	repo, err := l.opener.Open(ctx, mv.Source)
	if err != nil {
		return nil, err
	}
	m, err := Load(ctx, repo, "")
	if err != nil {
		return nil, err
	}
	l.logger.Debug("model loaded",
		log.ModelURIKey, modelURI,
		log.ModelVersionKey, mv.Version,
		log.RunIDKey, mv.RunID,
	)
	return m, nil
}
