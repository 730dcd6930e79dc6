package invalidate_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barad1tos/reconciler/internal/invalidate"
	"github.com/barad1tos/reconciler/internal/kinds"
	"github.com/barad1tos/reconciler/internal/model"
)

type fakeCache struct {
	invalidated []string
	failKeys    map[string]bool
}

func (f *fakeCache) Invalidate(key string) error {
	f.invalidated = append(f.invalidated, key)
	if f.failKeys[key] {
		return errors.New("boom")
	}
	return nil
}

func TestBuildPlanDeletedIsImmediate(t *testing.T) {
	cs := model.NewChangeSet()
	cs.Deleted["t1"] = struct{}{}

	plan := invalidate.BuildPlan(cs, nil)
	require.Len(t, plan.Immediate, 2)
	assert.Empty(t, plan.High)
}

func TestBuildPlanModifiedIsHighPlusPatterns(t *testing.T) {
	cs := model.NewChangeSet()
	cs.Modified["t1"] = struct{}{}

	patterns := invalidate.DependencyPatterns{
		"album_tracks_{track_id}": {"album:agg_{track_id}"},
	}
	plan := invalidate.BuildPlan(cs, patterns)
	require.Len(t, plan.High, 2)
	require.Len(t, plan.Normal, 1)
	assert.Equal(t, "album:agg_t1", plan.Normal[0].Key)
}

func TestBuildPlanAddedIsAllSentinel(t *testing.T) {
	cs := model.NewChangeSet()
	cs.Added["t1"] = struct{}{}

	plan := invalidate.BuildPlan(cs, nil)
	require.Len(t, plan.Normal, 1)
	assert.Equal(t, "ALL", plan.Normal[0].Key)
}

func TestExecuteImmediateFailureAborts(t *testing.T) {
	cs := model.NewChangeSet()
	cs.Deleted["t1"] = struct{}{}
	plan := invalidate.BuildPlan(cs, nil)

	cache := &fakeCache{failKeys: map[string]bool{"track:t1": true}}
	err := invalidate.Execute(plan, cache, false)
	require.ErrorIs(t, err, kinds.ErrCriticalInvalidationFailure)
}

func TestExecuteLowerTierFailureDoesNotAbort(t *testing.T) {
	cs := model.NewChangeSet()
	cs.Modified["t1"] = struct{}{}
	plan := invalidate.BuildPlan(cs, nil)

	cache := &fakeCache{failKeys: map[string]bool{"track:t1": true}}
	err := invalidate.Execute(plan, cache, false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, kinds.ErrCriticalInvalidationFailure)
	assert.Len(t, cache.invalidated, 2)
}

func TestExecuteAllRunsLowerTiers(t *testing.T) {
	cs := model.NewChangeSet()
	cs.Added["t1"] = struct{}{}
	plan := invalidate.BuildPlan(cs, nil)

	cache := &fakeCache{}
	err := invalidate.Execute(plan, cache, true)
	require.NoError(t, err)
	assert.Contains(t, cache.invalidated, "ALL")
}
