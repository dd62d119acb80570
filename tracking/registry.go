package tracking

import (
	"sort"
	"strings"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

// CanonicalStage maps a case-insensitive stage name to its canonical
// spelling.
func CanonicalStage(stage string) (string, error) {
	for _, s := range Stages {
		if strings.EqualFold(s, stage) {
			return s, nil
		}
	}
	return "", errors.NewRegistryError("stage", 400, errors.CodeInvalidParameterValue,
		"invalid stage "+stage+", must be one of "+strings.Join(Stages, ", "))
}

// NextVersion returns max(existing)+1, starting at 1.
func NextVersion(existing []ModelVersion) int {
	next := 1
	for _, v := range existing {
		if v.Version >= next {
			next = v.Version + 1
		}
	}
	return next
}

// ApplyTransition moves version to stage in place. With archive set and a
// Staging or Production target, the other versions in that stage move to
// Archived; otherwise they are left untouched. now stamps every version
// that changed. The updated target is returned.
func ApplyTransition(versions []ModelVersion, version int, stage string, archive bool, now int64) (*ModelVersion, error) {
	stage, err := CanonicalStage(stage)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range versions {
		if versions[i].Version == version {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errors.NewRegistryError("transition-stage", 404, errors.CodeResourceDoesNotExist,
			"model version not found")
	}

	versions[idx].CurrentStage = stage
	versions[idx].LastUpdatedTimestamp = now

	if archive && (stage == StageStaging || stage == StageProduction) {
		for i := range versions {
			if i != idx && versions[i].CurrentStage == stage {
				versions[i].CurrentStage = StageArchived
				versions[i].LastUpdatedTimestamp = now
			}
		}
	}
	out := versions[idx]
	return &out, nil
}

// LatestPerStage picks the highest version in each requested stage, in
// the order of stages. Empty stages means all stages.
func LatestPerStage(versions []ModelVersion, stages []string) []ModelVersion {
	if len(stages) == 0 {
		stages = Stages
	}
	latest := make(map[string]ModelVersion)
	for _, v := range versions {
		if cur, ok := latest[v.CurrentStage]; !ok || v.Version > cur.Version {
			latest[v.CurrentStage] = v
		}
	}

	var out []ModelVersion
	seen := make(map[string]bool)
	for _, s := range stages {
		canon, err := CanonicalStage(s)
		if err != nil || seen[canon] {
			continue
		}
		seen[canon] = true
		if v, ok := latest[canon]; ok {
			out = append(out, v)
		}
	}
	return out
}

// SortVersions orders versions by ascending number.
func SortVersions(versions []ModelVersion) {
	sort.Slice(versions, func(i, j int) bool { return versions[i].Version < versions[j].Version })
}
