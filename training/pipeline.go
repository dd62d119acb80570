// Package training runs the green taxi training pipeline: ingest a monthly
// trip file, fit an OLS model, log it to the tracking server and promote a
// registered version.
package training

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/greentaxi/config"
	"github.com/YuminosukeSato/greentaxi/dataset"
	"github.com/YuminosukeSato/greentaxi/linear"
	"github.com/YuminosukeSato/greentaxi/metrics"
	"github.com/YuminosukeSato/greentaxi/modelstore"
	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
	"github.com/YuminosukeSato/greentaxi/preprocessing"
	"github.com/YuminosukeSato/greentaxi/tracking"
)

// Metric keys logged on the run.
const (
	MetricRMSETrain = "rmse train"
	MetricRMSETest  = "rmse test"

	// ModelTag is the value of the run's model tag.
	ModelTag = "linear regression"

	// PlotArtifactPath is the run directory the plot is uploaded to.
	PlotArtifactPath = "plots"

	// endRunTimeout bounds the final status update, which still runs
	// after the pipeline context was cancelled.
	endRunTimeout = 30 * time.Second
)

// Fetcher makes the trip file available locally. *dataset.Downloader
// implements it.
type Fetcher interface {
	EnsureLocal(ctx context.Context, src dataset.Source) (string, error)
}

var _ Fetcher = (*dataset.Downloader)(nil)

// Result summarises one pipeline run.
type Result struct {
	RunID     string
	Samples   int
	Dropped   int
	RMSETrain float64
	RMSETest  float64

	// Registered is the version created by this run.
	Registered *tracking.ModelVersion
	// Promoted is the version moved to the configured stage.
	Promoted *tracking.ModelVersion

	// MetricsPath is set in CML mode.
	MetricsPath string
}

// Pipeline wires the pipeline's collaborators.
type Pipeline struct {
	cfg       *config.Trainer
	client    tracking.Client
	artifacts modelstore.Opener
	fetcher   Fetcher
	logger    log.Logger
}

// New returns a Pipeline. cfg must already be validated.
func New(cfg *config.Trainer, client tracking.Client, artifacts modelstore.Opener, fetcher Fetcher, logger log.Logger) *Pipeline {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Pipeline{
		cfg:       cfg,
		client:    client,
		artifacts: artifacts,
		fetcher:   fetcher,
		logger:    logger.With(log.ComponentKey, "training"),
	}
}

type trainingData struct {
	split   *preprocessing.Split
	samples int
	dropped int
}

// Run executes the pipeline once. Any failure after the run was created
// marks it FAILED before the error is returned. Nothing is retried.
func (p *Pipeline) Run(ctx context.Context) (_ *Result, err error) {
	start := time.Now()
	if err := p.cfg.Tracking.ExportCredentials(); err != nil {
		return nil, err
	}

	exp, err := p.client.GetOrCreateExperiment(ctx, p.cfg.Experiment)
	if err != nil {
		return nil, errors.Wrapf(err, "experiment %s", p.cfg.Experiment)
	}
	logger := p.logger.With(log.ExperimentKey, exp.Name)

	data, err := p.prepare(ctx, logger)
	if err != nil {
		return nil, err
	}

	run, err := p.client.CreateRun(ctx, exp.ID)
	if err != nil {
		return nil, errors.Wrap(err, "create run")
	}
	logger = logger.With(log.RunIDKey, run.ID)
	logger.Info("run started", log.ArtifactURI, run.ArtifactURI)

	defer func() {
		status := tracking.RunFinished
		if err != nil {
			status = tracking.RunFailed
		}
		// 中断された場合も FAILED をサーバーに届ける
		endCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), endRunTimeout)
		defer cancel()
		if uerr := p.client.UpdateRun(endCtx, run.ID, status, tracking.Now()); uerr != nil {
			err = errors.CombineErrors(err, errors.Wrap(uerr, "end run"))
		}
		if err != nil {
			logger.Error("run failed", log.ErrorKey, err)
		}
	}()

	res := &Result{RunID: run.ID, Samples: data.samples, Dropped: data.dropped}
	if err := p.client.SetTags(ctx, run.ID, p.tags()); err != nil {
		return nil, errors.Wrap(err, "set tags")
	}

	lr, predTest, err := p.fit(data.split, res)
	if err != nil {
		return nil, err
	}
	logger.Info("model fitted",
		log.RMSETrainKey, res.RMSETrain,
		log.RMSETestKey, res.RMSETest,
	)
	for _, m := range []tracking.Metric{
		{Key: MetricRMSETrain, Value: res.RMSETrain, Timestamp: tracking.Now()},
		{Key: MetricRMSETest, Value: res.RMSETest, Timestamp: tracking.Now()},
	} {
		if err := p.client.LogMetric(ctx, run.ID, m); err != nil {
			return nil, errors.Wrapf(err, "log metric %s", m.Key)
		}
	}

	workDir, err := os.MkdirTemp("", "greentaxi-train-")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer os.RemoveAll(workDir)

	plotPath := filepath.Join(workDir, PlotFile)
	if err := p.logArtifacts(ctx, run, lr, data.split.YTest, predTest, plotPath); err != nil {
		return nil, err
	}

	if err := p.register(ctx, logger, run, res); err != nil {
		return nil, err
	}

	if p.cfg.CML.Run {
		if res.MetricsPath, err = p.writeReport(plotPath, res); err != nil {
			return nil, err
		}
		logger.Info("cml report written", log.PathKey, res.MetricsPath)
	}

	logger.Info("pipeline finished", log.DurationMsKey, time.Since(start).Milliseconds())
	return res, nil
}

func (p *Pipeline) prepare(ctx context.Context, logger log.Logger) (*trainingData, error) {
	src := p.cfg.Data
	path, err := p.fetcher.EnsureLocal(ctx, src)
	if err != nil {
		return nil, err
	}

	records, err := dataset.Load(path)
	if err != nil {
		return nil, err
	}
	samples := dataset.Prepare(records)
	logger.Info("dataset prepared",
		log.DatasetKey, src.Name(),
		log.PathKey, path,
		log.SamplesKey, len(samples),
		log.DroppedKey, len(records)-len(samples),
	)

	X, y, err := dataset.Matrix(samples)
	if err != nil {
		return nil, err
	}
	split, err := preprocessing.TrainTestSplit(X, y, p.cfg.Split.TestSize, p.cfg.Split.Seed)
	if err != nil {
		return nil, err
	}
	logger.Debug("dataset split",
		log.RandomSeedKey, p.cfg.Split.Seed,
		"data.train", len(split.TrainIndex),
		"data.test", len(split.TestIndex),
	)
	return &trainingData{
		split:   split,
		samples: len(samples),
		dropped: len(records) - len(samples),
	}, nil
}

func (p *Pipeline) tags() []tracking.Tag {
	src := p.cfg.Data
	return []tracking.Tag{
		{Key: "model", Value: ModelTag},
		{Key: "developer", Value: p.cfg.Developer},
		{Key: "dataset", Value: src.Name()},
		{Key: "year", Value: strconv.Itoa(src.Year)},
		{Key: "month", Value: strconv.Itoa(src.Month)},
		{Key: "features", Value: FormatList(dataset.Features)},
		{Key: "target", Value: dataset.Target},
	}
}

// FormatList renders names the way the run's features tag has always
// been written, e.g. ['PULocationID', 'DOLocationID'].
func FormatList(names []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, n := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('\'')
		b.WriteString(n)
		b.WriteByte('\'')
	}
	b.WriteByte(']')
	return b.String()
}

func (p *Pipeline) fit(split *preprocessing.Split, res *Result) (*linear.LinearRegression, mat.Matrix, error) {
	lr := linear.NewLinearRegression(
		linear.WithFeatureNames(dataset.Features...),
		linear.WithTarget(dataset.Target),
	)
	if err := lr.Fit(split.XTrain, split.YTrain); err != nil {
		return nil, nil, err
	}

	predTrain, err := lr.Predict(split.XTrain)
	if err != nil {
		return nil, nil, err
	}
	predTest, err := lr.Predict(split.XTest)
	if err != nil {
		return nil, nil, err
	}
	if res.RMSETrain, err = metrics.RMSEMatrix(split.YTrain, predTrain); err != nil {
		return nil, nil, err
	}
	if res.RMSETest, err = metrics.RMSEMatrix(split.YTest, predTest); err != nil {
		return nil, nil, err
	}
	return lr, predTest, nil
}

// Signature is the logged model's input and output schema.
func Signature() modelstore.Signature {
	sig := modelstore.Signature{
		Outputs: []modelstore.ColumnSpec{{Type: "double"}},
	}
	for _, name := range dataset.Features {
		sig.Inputs = append(sig.Inputs, modelstore.ColumnSpec{Name: name, Type: dataset.FeatureType(name)})
	}
	return sig
}

func (p *Pipeline) logArtifacts(ctx context.Context, run *tracking.Run, lr *linear.LinearRegression, yTest *mat.VecDense, predTest mat.Matrix, plotPath string) error {
	repo, err := p.artifacts.Open(ctx, run.ArtifactURI)
	if err != nil {
		return err
	}
	if _, err := modelstore.Log(ctx, repo, run.ID, lr, Signature(), modelstore.DefaultArtifactPath); err != nil {
		return errors.Wrap(err, "log model")
	}

	if err := SavePlot(plotPath, yTest, predTest); err != nil {
		return err
	}
	if err := repo.Upload(ctx, plotPath, PlotArtifactPath); err != nil {
		return errors.Wrap(err, "log plot")
	}
	return nil
}

func (p *Pipeline) register(ctx context.Context, logger log.Logger, run *tracking.Run, res *Result) error {
	name := p.cfg.Model.Name
	if _, err := p.client.CreateRegisteredModel(ctx, name); err != nil {
		return errors.Wrapf(err, "register model %s", name)
	}

	source := tracking.RunsURI(run.ID, modelstore.DefaultArtifactPath)
	mv, err := p.client.CreateModelVersion(ctx, name, source, run.ID)
	if err != nil {
		return errors.Wrapf(err, "create version of %s", name)
	}
	res.Registered = mv
	logger.Info("model registered",
		log.ModelNameKey, name,
		log.ModelVersionKey, mv.Version,
		log.ModelURIKey, source,
	)

	// 登録したバージョンではなく設定されたバージョンを昇格させる
	promoted, err := p.client.TransitionModelVersionStage(ctx, name, p.cfg.PromoteVersion, p.cfg.Model.Stage, false)
	if err != nil {
		return errors.Wrapf(err, "transition %s version %d", name, p.cfg.PromoteVersion)
	}
	res.Promoted = promoted
	logger.Info("model version transitioned",
		log.ModelNameKey, name,
		log.ModelVersionKey, promoted.Version,
		log.ModelStageKey, promoted.CurrentStage,
	)
	return nil
}

func (p *Pipeline) writeReport(plotPath string, res *Result) (string, error) {
	dir := p.cfg.CML.Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.WithStack(err)
	}
	path, err := writeMetricsFile(dir, res.RMSETrain, res.RMSETest)
	if err != nil {
		return "", err
	}
	if err := copyFile(plotPath, filepath.Join(dir, PlotFile)); err != nil {
		return "", err
	}
	return path, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(out.Close())
}
