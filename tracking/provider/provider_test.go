package provider

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
	"github.com/YuminosukeSato/greentaxi/tracking/filestore"
	"github.com/YuminosukeSato/greentaxi/tracking/rest"
)

func TestKind(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"", KindFile},
		{"mlruns", KindFile},
		{"/var/lib/mlruns", KindFile},
		{"file:///var/lib/mlruns", KindFile},
		{"http://mlflow:5000", KindREST},
		{"https://mlflow.example.com", KindREST},
		{"postgresql://u:p@db/mlflow", KindSQL},
		{"postgresql+psycopg2://u:p@db/mlflow", KindSQL},
		{"mysql+pymysql://u@db/mlflow", KindSQL},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := Kind(tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Kind("databricks://profile")
	require.Error(t, err)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestOpen_File(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	root := filepath.Join(t.TempDir(), "mlruns")

	b, err := Open(Options{TrackingURI: root}, logger)
	require.NoError(t, err)
	assert.Equal(t, KindFile, b.Kind)
	require.IsType(t, &filestore.Store{}, b.Client)
	assert.NotNil(t, b.Artifacts)
	assert.True(t, logger.ContainsMessage("tracking backend opened"))

	exp, err := b.Client.GetOrCreateExperiment(context.Background(), "green-taxi-trip-duration-xgb")
	require.NoError(t, err)
	run, err := b.Client.CreateRun(context.Background(), exp.ID)
	require.NoError(t, err)

	repo, err := b.Artifacts.Open(context.Background(), "runs:/"+run.ID)
	require.NoError(t, err)
	assert.NotNil(t, repo)
}

func TestOpen_REST(t *testing.T) {
	b, err := Open(Options{TrackingURI: "http://mlflow:5000", Token: "t"}, nil)
	require.NoError(t, err)
	assert.Equal(t, KindREST, b.Kind)
	rc, ok := b.Client.(*rest.Client)
	require.True(t, ok)
	assert.Equal(t, "http://mlflow:5000", rc.BaseURL())

	repo, err := b.Artifacts.Open(context.Background(), "mlflow-artifacts:/0/r/artifacts")
	require.NoError(t, err)
	assert.NotNil(t, repo)
}

func TestOptions_FromEnv(t *testing.T) {
	t.Setenv(EnvTrackingUsername, "user")
	t.Setenv(EnvTrackingPassword, "pass")
	t.Setenv(EnvS3EndpointURL, "http://minio:9000")
	t.Setenv(EnvCredentials, "/secrets/credentials.json")
	t.Setenv(EnvTrackingToken, "")

	o := Options{Username: "explicit"}.FromEnv()
	assert.Equal(t, "explicit", o.Username)
	assert.Equal(t, "pass", o.Password)
	assert.Equal(t, "http://minio:9000", o.S3.Endpoint)
	assert.Equal(t, "/secrets/credentials.json", o.CredentialsFile)
	assert.Empty(t, o.Token)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "postgresql://mlflow:xxxxx@db/mlflow", redact("postgresql://mlflow:secret@db/mlflow"))
	assert.Equal(t, "http://mlflow:5000", redact("http://mlflow:5000"))
}
