package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

func TestNextVersion(t *testing.T) {
	assert.Equal(t, 1, NextVersion(nil))
	assert.Equal(t, 2, NextVersion([]ModelVersion{{Version: 1}}))
	assert.Equal(t, 6, NextVersion([]ModelVersion{{Version: 5}, {Version: 2}}))
}

func TestCanonicalStage(t *testing.T) {
	s, err := CanonicalStage("production")
	require.NoError(t, err)
	assert.Equal(t, StageProduction, s)

	_, err = CanonicalStage("Prod")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRegistry))
}

func TestApplyTransition_NonExclusive(t *testing.T) {
	versions := []ModelVersion{
		{Version: 1, CurrentStage: StageProduction},
		{Version: 2, CurrentStage: StageNone},
	}

	mv, err := ApplyTransition(versions, 2, "Production", false, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, mv.Version)
	assert.Equal(t, StageProduction, mv.CurrentStage)
	assert.Equal(t, int64(100), mv.LastUpdatedTimestamp)

	assert.Equal(t, StageProduction, versions[0].CurrentStage, "previous production version must stay in Production")
	assert.Equal(t, StageProduction, versions[1].CurrentStage)
}

func TestApplyTransition_Archive(t *testing.T) {
	versions := []ModelVersion{
		{Version: 1, CurrentStage: StageProduction},
		{Version: 2, CurrentStage: StageStaging},
		{Version: 3, CurrentStage: StageNone},
	}

	_, err := ApplyTransition(versions, 3, StageProduction, true, 5)
	require.NoError(t, err)
	assert.Equal(t, StageArchived, versions[0].CurrentStage)
	assert.Equal(t, StageStaging, versions[1].CurrentStage)
	assert.Equal(t, StageProduction, versions[2].CurrentStage)
}

func TestApplyTransition_Errors(t *testing.T) {
	versions := []ModelVersion{{Version: 1, CurrentStage: StageNone}}

	_, err := ApplyTransition(versions, 7, StageProduction, false, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = ApplyTransition(versions, 1, "Live", false, 0)
	require.Error(t, err)
	assert.Equal(t, StageNone, versions[0].CurrentStage)
}

func TestLatestPerStage(t *testing.T) {
	versions := []ModelVersion{
		{Version: 1, CurrentStage: StageProduction},
		{Version: 2, CurrentStage: StageProduction},
		{Version: 3, CurrentStage: StageStaging},
		{Version: 4, CurrentStage: StageNone},
	}

	got := LatestPerStage(versions, []string{"production"})
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Version)

	all := LatestPerStage(versions, nil)
	require.Len(t, all, 3)
	assert.Equal(t, 4, all[0].Version)
	assert.Equal(t, 3, all[1].Version)
	assert.Equal(t, 2, all[2].Version)

	assert.Empty(t, LatestPerStage(versions, []string{StageArchived}))
}
