package tracking_test

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/tracking"
	"github.com/YuminosukeSato/greentaxi/tracking/mocks"
)

func TestParseModelURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    tracking.ModelURI
		wantErr bool
	}{
		{uri: "models:/green-taxi-trip-duration-linear/Production", want: tracking.ModelURI{Name: "green-taxi-trip-duration-linear", Stage: "Production"}},
		{uri: "models:/m/staging", want: tracking.ModelURI{Name: "m", Stage: "Staging"}},
		{uri: "models:/m/3", want: tracking.ModelURI{Name: "m", Version: 3}},
		{uri: "models:/m/0", wantErr: true},
		{uri: "models:/m", wantErr: true},
		{uri: "models:/m/Live", wantErr: true},
		{uri: "runs:/abc/model", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := tracking.ParseModelURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestParseRunsURI(t *testing.T) {
	runID, path, err := tracking.ParseRunsURI(tracking.RunsURI("abc123", "/model"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", runID)
	assert.Equal(t, "model", path)

	runID, path, err = tracking.ParseRunsURI("runs:/abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", runID)
	assert.Empty(t, path)

	_, _, err = tracking.ParseRunsURI("runs:/")
	assert.Error(t, err)
}

func TestResolveModelVersion(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	client := mocks.NewMockClient(ctrl)

	client.EXPECT().GetLatestVersions(ctx, "m", []string{tracking.StageProduction}).Return([]tracking.ModelVersion{
		{Name: "m", Version: 4, CurrentStage: tracking.StageProduction, Source: "file:///tmp/model"},
	}, nil)
	mv, err := tracking.ResolveModelVersion(ctx, client, "models:/m/Production")
	require.NoError(t, err)
	assert.Equal(t, 4, mv.Version)

	client.EXPECT().GetModelVersion(ctx, "m", 2).Return(&tracking.ModelVersion{Name: "m", Version: 2}, nil)
	mv, err = tracking.ResolveModelVersion(ctx, client, "models:/m/2")
	require.NoError(t, err)
	assert.Equal(t, 2, mv.Version)

	client.EXPECT().GetLatestVersions(ctx, "m", []string{tracking.StageStaging}).Return(nil, nil)
	_, err = tracking.ResolveModelVersion(ctx, client, "models:/m/Staging")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
