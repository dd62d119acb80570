package training

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/greentaxi/artifact"
	"github.com/YuminosukeSato/greentaxi/config"
	"github.com/YuminosukeSato/greentaxi/dataset"
	"github.com/YuminosukeSato/greentaxi/modelstore"
	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
	"github.com/YuminosukeSato/greentaxi/tracking"
	"github.com/YuminosukeSato/greentaxi/tracking/mocks"
)

const modelName = "green-taxi-trip-duration-linear"

type fileFetcher struct {
	path string
	err  error
}

func (f fileFetcher) EnsureLocal(context.Context, dataset.Source) (string, error) {
	return f.path, f.err
}

type localOpener struct{}

func (localOpener) Open(_ context.Context, uri string) (artifact.Repository, error) {
	return artifact.NewLocal(uri), nil
}

// writeTrips writes n valid trips plus rows the filters must drop.
func writeTrips(t *testing.T, n int) string {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))
	var b strings.Builder
	b.WriteString("lpep_pickup_datetime,lpep_dropoff_datetime,PULocationID,DOLocationID,passenger_count,trip_distance,fare_amount,total_amount\n")

	base := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		pu := float64(1 + rng.IntN(265))
		do := float64(1 + rng.IntN(265))
		pc := float64(1 + rng.IntN(4))
		dist := 0.5 + rng.Float64()*10
		fare := 3 + rng.Float64()*30
		total := fare + rng.Float64()*8
		minutes := 4 + 2.5*dist + 0.2*fare + rng.NormFloat64()*0.5

		pickup := base.Add(time.Duration(i) * time.Minute)
		dropoff := pickup.Add(time.Duration(minutes * float64(time.Minute)))
		fmt.Fprintf(&b, "%s,%s,%v,%v,%v,%v,%v,%v\n",
			pickup.Format("2006-01-02 15:04:05"), dropoff.Format("2006-01-02 15:04:05"),
			pu, do, pc, dist, fare, total)
	}
	// 0.5 分、2 時間、乗客 0 人はいずれも除外される
	b.WriteString("2021-01-01 00:00:00,2021-01-01 00:00:30,1,2,1,1,5,6\n")
	b.WriteString("2021-01-01 00:00:00,2021-01-01 02:00:00,1,2,1,1,5,6\n")
	b.WriteString("2021-01-01 00:00:00,2021-01-01 00:10:00,1,2,0,1,5,6\n")

	path := filepath.Join(t.TempDir(), "green_tripdata_2021-01.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func testConfig(t *testing.T) *config.Trainer {
	cfg := config.NewTrainer()
	cfg.Tracking.CredentialsFile = ""
	cfg.Developer = "tester"
	cfg.CML.Dir = t.TempDir()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestPipeline_Run(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	ctx := context.Background()

	cfg := testConfig(t)
	cfg.CML.Run = true
	artifactDir := t.TempDir()

	var tags []tracking.Tag
	logged := map[string]float64{}

	client.EXPECT().GetOrCreateExperiment(gomock.Any(), "green-taxi-trip-duration-xgb").
		Return(&tracking.Experiment{ID: "1", Name: "green-taxi-trip-duration-xgb"}, nil)
	client.EXPECT().CreateRun(gomock.Any(), "1").
		Return(&tracking.Run{ID: "abc", ExperimentID: "1", Status: tracking.RunRunning, ArtifactURI: artifactDir}, nil)
	client.EXPECT().SetTags(gomock.Any(), "abc", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, tt []tracking.Tag) error {
			tags = tt
			return nil
		})
	client.EXPECT().LogMetric(gomock.Any(), "abc", gomock.Any()).Times(2).
		DoAndReturn(func(_ context.Context, _ string, m tracking.Metric) error {
			logged[m.Key] = m.Value
			return nil
		})
	client.EXPECT().CreateRegisteredModel(gomock.Any(), modelName).
		Return(&tracking.RegisteredModel{Name: modelName}, nil)
	client.EXPECT().CreateModelVersion(gomock.Any(), modelName, "runs:/abc/model", "abc").
		Return(&tracking.ModelVersion{Name: modelName, Version: 3, CurrentStage: tracking.StageNone}, nil)
	client.EXPECT().TransitionModelVersionStage(gomock.Any(), modelName, 1, tracking.StageProduction, false).
		Return(&tracking.ModelVersion{Name: modelName, Version: 1, CurrentStage: tracking.StageProduction}, nil)
	client.EXPECT().UpdateRun(gomock.Any(), "abc", tracking.RunFinished, gomock.Any()).Return(nil)

	logger, _ := log.NewTestLogger(log.LevelDebug)
	p := New(cfg, client, localOpener{}, fileFetcher{path: writeTrips(t, 200)}, logger)
	res, err := p.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, "abc", res.RunID)
	assert.Equal(t, 200, res.Samples)
	assert.Equal(t, 3, res.Dropped)
	assert.Equal(t, 3, res.Registered.Version)
	assert.Equal(t, 1, res.Promoted.Version)
	assert.Less(t, res.RMSETrain, 1.0)
	assert.GreaterOrEqual(t, res.RMSETest, 0.0)
	assert.Equal(t, res.RMSETrain, logged[MetricRMSETrain])
	assert.Equal(t, res.RMSETest, logged[MetricRMSETest])

	byKey := map[string]string{}
	for _, tag := range tags {
		byKey[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{
		"model":     "linear regression",
		"developer": "tester",
		"dataset":   "green-taxi",
		"year":      "2021",
		"month":     "1",
		"features":  "['PULocationID', 'DOLocationID', 'trip_distance', 'passenger_count', 'fare_amount', 'total_amount']",
		"target":    "duration",
	}, byKey)

	assert.FileExists(t, filepath.Join(artifactDir, "model", modelstore.DescriptorFile))
	assert.FileExists(t, filepath.Join(artifactDir, "model", modelstore.WeightsFile))
	assert.FileExists(t, filepath.Join(artifactDir, PlotArtifactPath, PlotFile))

	report, err := os.ReadFile(res.MetricsPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(report)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, fmt.Sprintf("RMSE on the Train Set: %v", res.RMSETrain), lines[0])
	assert.Equal(t, fmt.Sprintf("RMSE on the Test Set: %v", res.RMSETest), lines[1])
	assert.FileExists(t, filepath.Join(cfg.CML.Dir, PlotFile))

	m, err := modelstore.Load(ctx, artifact.NewLocal(artifactDir), "model")
	require.NoError(t, err)
	assert.Equal(t, dataset.Features, m.Inputs())
	pred, err := m.Predict(map[string]float64{
		"PULocationID": 41, "DOLocationID": 74, "trip_distance": 2,
		"passenger_count": 1, "fare_amount": 10, "total_amount": 12,
	})
	require.NoError(t, err)
	assert.InDelta(t, 4+2.5*2+0.2*10, pred, 1.0)
}

func TestPipeline_Run_NoCMLReport(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	cfg := testConfig(t)
	artifactDir := t.TempDir()

	client.EXPECT().GetOrCreateExperiment(gomock.Any(), gomock.Any()).Return(&tracking.Experiment{ID: "1"}, nil)
	client.EXPECT().CreateRun(gomock.Any(), "1").Return(&tracking.Run{ID: "r", ArtifactURI: artifactDir}, nil)
	client.EXPECT().SetTags(gomock.Any(), "r", gomock.Any()).Return(nil)
	client.EXPECT().LogMetric(gomock.Any(), "r", gomock.Any()).Times(2).Return(nil)
	client.EXPECT().CreateRegisteredModel(gomock.Any(), modelName).Return(&tracking.RegisteredModel{Name: modelName}, nil)
	client.EXPECT().CreateModelVersion(gomock.Any(), modelName, gomock.Any(), "r").Return(&tracking.ModelVersion{Version: 1}, nil)
	client.EXPECT().TransitionModelVersionStage(gomock.Any(), modelName, 1, tracking.StageProduction, false).
		Return(&tracking.ModelVersion{Version: 1, CurrentStage: tracking.StageProduction}, nil)
	client.EXPECT().UpdateRun(gomock.Any(), "r", tracking.RunFinished, gomock.Any()).Return(nil)

	res, err := New(cfg, client, localOpener{}, fileFetcher{path: writeTrips(t, 50)}, log.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.MetricsPath)
	assert.NoFileExists(t, filepath.Join(cfg.CML.Dir, MetricsFile))
}

func TestPipeline_Run_TransitionFailureMarksRunFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	cfg := testConfig(t)
	notFound := errors.NewRegistryError("transition", 404, errors.CodeResourceDoesNotExist, "version 1 missing")

	client.EXPECT().GetOrCreateExperiment(gomock.Any(), gomock.Any()).Return(&tracking.Experiment{ID: "1"}, nil)
	client.EXPECT().CreateRun(gomock.Any(), "1").Return(&tracking.Run{ID: "r", ArtifactURI: t.TempDir()}, nil)
	client.EXPECT().SetTags(gomock.Any(), "r", gomock.Any()).Return(nil)
	client.EXPECT().LogMetric(gomock.Any(), "r", gomock.Any()).Times(2).Return(nil)
	client.EXPECT().CreateRegisteredModel(gomock.Any(), modelName).Return(&tracking.RegisteredModel{Name: modelName}, nil)
	client.EXPECT().CreateModelVersion(gomock.Any(), modelName, gomock.Any(), "r").Return(&tracking.ModelVersion{Version: 1}, nil)
	client.EXPECT().TransitionModelVersionStage(gomock.Any(), modelName, 1, tracking.StageProduction, false).Return(nil, notFound)
	client.EXPECT().UpdateRun(gomock.Any(), "r", tracking.RunFailed, gomock.Any()).Return(nil)

	logger, _ := log.NewTestLogger(log.LevelDebug)
	_, err := New(cfg, client, localOpener{}, fileFetcher{path: writeTrips(t, 50)}, logger).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.True(t, logger.ContainsMessage("run failed"))
}

func TestPipeline_Run_CanceledRunStillEndsFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client.EXPECT().GetOrCreateExperiment(gomock.Any(), gomock.Any()).Return(&tracking.Experiment{ID: "1"}, nil)
	client.EXPECT().CreateRun(gomock.Any(), "1").Return(&tracking.Run{ID: "r", ArtifactURI: t.TempDir()}, nil)
	// SIGTERM arrives while the tags are sent
	client.EXPECT().SetTags(gomock.Any(), "r", gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ []tracking.Tag) error {
			cancel()
			return ctx.Err()
		})
	client.EXPECT().UpdateRun(gomock.Any(), "r", tracking.RunFailed, gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ tracking.RunStatus, _ int64) error {
			assert.NoError(t, ctx.Err())
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return nil
		})

	_, err := New(testConfig(t), client, localOpener{}, fileFetcher{path: writeTrips(t, 50)}, log.NewNopLogger()).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPipeline_Run_DownloadFailureCreatesNoRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	cfg := testConfig(t)
	unavailable := errors.NewDownloadError(cfg.Data.URL(), 403, nil)

	client.EXPECT().GetOrCreateExperiment(gomock.Any(), gomock.Any()).Return(&tracking.Experiment{ID: "1"}, nil)

	_, err := New(cfg, client, localOpener{}, fileFetcher{err: unavailable}, log.NewNopLogger()).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDataUnavailable))
}

func TestPipeline_Run_ExportsCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	t.Setenv(config.EnvCredentialsFile, "")
	cfg := testConfig(t)
	cfg.Tracking.CredentialsFile = "./credentials.json"

	client.EXPECT().GetOrCreateExperiment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string) (*tracking.Experiment, error) {
			assert.Equal(t, "./credentials.json", os.Getenv(config.EnvCredentialsFile))
			return nil, errors.NewRegistryError("get experiment", 503, "", "unavailable")
		})

	_, err := New(cfg, client, localOpener{}, fileFetcher{}, log.NewNopLogger()).Run(context.Background())
	assert.True(t, errors.Is(err, errors.ErrRegistry))
}

func TestFormatList(t *testing.T) {
	assert.Equal(t, "[]", FormatList(nil))
	assert.Equal(t, "['a', 'b']", FormatList([]string{"a", "b"}))
}

func TestSignature(t *testing.T) {
	sig := Signature()
	assert.Equal(t, dataset.Features, sig.InputNames())
	assert.Equal(t, "long", sig.Inputs[0].Type)
	assert.Equal(t, "double", sig.Inputs[2].Type)
	require.Len(t, sig.Outputs, 1)
	assert.Equal(t, "double", sig.Outputs[0].Type)
}
