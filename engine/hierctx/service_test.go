package hierctx_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/memstore"
)

func newTestService(t *testing.T, opts hierctx.Options) (*hierctx.Service, *memstore.Store) {
	t.Helper()
	clock := memstore.NewFixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), time.Second)
	store := memstore.NewStore(clock)
	svc := hierctx.NewService(
		store.ContextRepo(),
		store.DelegationRepo(),
		nil,
		nil,
		opts,
		clock.Now,
	)
	return svc, store
}

func buildChain(t *testing.T, svc *hierctx.Service) (projectID, branchID, taskID core.ID) {
	t.Helper()
	ctx := context.Background()
	projectID, branchID, taskID = core.ID("p-1"), core.ID("b-1"), core.ID("t-1")
	_, err := svc.Create(ctx, hierctx.CreateInput{
		Level: core.LevelProject,
		ID:    projectID,
		Data:  map[string]any{"metadata": map[string]any{"a": map[string]any{"x": 1}, "l": []any{"g"}}},
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, hierctx.CreateInput{
		Level:     core.LevelBranch,
		ID:        branchID,
		ProjectID: projectID,
		Data:      map[string]any{"metadata": map[string]any{"a": map[string]any{"y": 2}, "l": []any{"p"}}},
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, hierctx.CreateInput{
		Level:    core.LevelTask,
		ID:       taskID,
		BranchID: branchID,
		Data:     map[string]any{"metadata": map[string]any{"a": map[string]any{"x": 9}}},
	})
	require.NoError(t, err)
	return projectID, branchID, taskID
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Should pin the global context to the singleton id", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{})
		created, err := svc.Create(ctx, hierctx.CreateInput{
			Level: core.LevelGlobal,
			ID:    "whatever",
			Data:  map[string]any{"organization_name": "acme"},
		})
		require.NoError(t, err)
		assert.Equal(t, core.GlobalSingletonID, created.ID)
	})

	t.Run("Should reject a second create of the same context", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{AutoCreateParents: true})
		in := hierctx.CreateInput{Level: core.LevelProject, ID: "p-dup"}
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
		_, err = svc.Create(ctx, in)
		require.Error(t, err)
		assert.Equal(t, core.CodeAlreadyExists, core.CodeOf(err))
	})

	t.Run("Should auto-create missing ancestors when enabled", func(t *testing.T) {
		svc, store := newTestService(t, hierctx.Options{AutoCreateParents: true})
		_, err := svc.Create(ctx, hierctx.CreateInput{
			Level:     core.LevelBranch,
			ID:        "b-auto",
			ProjectID: "p-auto",
		})
		require.NoError(t, err)
		repo := store.ContextRepo()
		for _, probe := range []struct {
			level core.ContextLevel
			id    core.ID
		}{
			{core.LevelGlobal, core.GlobalSingletonID},
			{core.LevelProject, "p-auto"},
			{core.LevelBranch, "b-auto"},
		} {
			exists, err := repo.Exists(ctx, probe.level, probe.id)
			require.NoError(t, err)
			assert.True(t, exists, "%s %s should exist", probe.level, probe.id)
		}
	})

	t.Run("Should reject a missing ancestor when auto-create is disabled", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{AutoCreateParents: false})
		_, err := svc.Create(ctx, hierctx.CreateInput{
			Level:     core.LevelBranch,
			ID:        "b-orphan",
			ProjectID: "p-missing",
		})
		require.Error(t, err)
		assert.Equal(t, core.CodeHierarchyViolation, core.CodeOf(err))
		details := core.DetailsOf(err)
		require.NotNil(t, details)
		assert.Contains(t, details, "remediation")
	})

	t.Run("Should reject a branch context without a project id", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{AutoCreateParents: true})
		_, err := svc.Create(ctx, hierctx.CreateInput{Level: core.LevelBranch, ID: "b-no-project"})
		require.Error(t, err)
		assert.Equal(t, core.CodeHierarchyViolation, core.CodeOf(err))
	})

	t.Run("Should reject unknown top-level sections", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{AutoCreateParents: true})
		_, err := svc.Create(ctx, hierctx.CreateInput{
			Level: core.LevelProject,
			ID:    "p-bad",
			Data:  map[string]any{"surprise": true},
		})
		require.Error(t, err)
		assert.Equal(t, core.CodeValidationError, core.CodeOf(err))
	})
}

func TestService_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("Should deep-merge maps, append lists and override scalars down the chain", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{AutoCreateParents: true})
		_, _, taskID := buildChain(t, svc)

		out, err := svc.Resolve(ctx, core.LevelTask, taskID, false)
		require.NoError(t, err)
		require.True(t, out.Resolved)

		metadata, ok := out.Document["metadata"].(map[string]any)
		require.True(t, ok, "resolved document should carry the merged metadata section")
		a, ok := metadata["a"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 9, a["x"], "nearest level wins on scalar override")
		assert.Equal(t, 2, a["y"], "sibling keys from ancestors survive")
		assert.Equal(t, []any{"g", "p"}, metadata["l"], "lists append ancestor-first")
	})

	t.Run("Should attach inheritance metadata with the resolution chain", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{AutoCreateParents: true})
		_, _, taskID := buildChain(t, svc)
		out, err := svc.Resolve(ctx, core.LevelTask, taskID, false)
		require.NoError(t, err)
		meta, ok := out.Document["_inheritance"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 4, meta["inheritance_depth"])
	})

	t.Run("Should return the raw document when inheritance is not requested", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{AutoCreateParents: true})
		_, _, taskID := buildChain(t, svc)
		out, err := svc.Get(ctx, hierctx.GetInput{Level: core.LevelTask, ID: taskID})
		require.NoError(t, err)
		assert.False(t, out.Resolved)
		assert.NotContains(t, out.Document, "_inheritance")
	})
}

func TestService_InheritanceCache(t *testing.T) {
	ctx := context.Background()

	t.Run("Should serve the second resolution from cache", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{
			AutoCreateParents: true,
			Cache:             hierctx.NewInheritanceCache(16, time.Minute),
		})
		_, _, taskID := buildChain(t, svc)

		first, err := svc.Resolve(ctx, core.LevelTask, taskID, false)
		require.NoError(t, err)
		assert.False(t, first.FromCache)

		second, err := svc.Resolve(ctx, core.LevelTask, taskID, false)
		require.NoError(t, err)
		assert.True(t, second.FromCache)
	})

	t.Run("Should bypass the cache after an ancestor version bump", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{
			AutoCreateParents: true,
			Cache:             hierctx.NewInheritanceCache(16, time.Minute),
		})
		projectID, _, taskID := buildChain(t, svc)

		_, err := svc.Resolve(ctx, core.LevelTask, taskID, false)
		require.NoError(t, err)

		_, err = svc.Update(ctx, hierctx.UpdateInput{
			Level: core.LevelProject,
			ID:    projectID,
			Data:  map[string]any{"metadata": map[string]any{"fresh": true}},
		})
		require.NoError(t, err)

		out, err := svc.Resolve(ctx, core.LevelTask, taskID, false)
		require.NoError(t, err)
		assert.False(t, out.FromCache, "stale dependencies hash must not be served")
		metadata, ok := out.Document["metadata"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, metadata["fresh"])
	})

	t.Run("Should bypass the cache on force refresh", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{
			AutoCreateParents: true,
			Cache:             hierctx.NewInheritanceCache(16, time.Minute),
		})
		_, _, taskID := buildChain(t, svc)
		_, err := svc.Resolve(ctx, core.LevelTask, taskID, false)
		require.NoError(t, err)
		out, err := svc.Resolve(ctx, core.LevelTask, taskID, true)
		require.NoError(t, err)
		assert.False(t, out.FromCache)
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("Should merge into the stored document and bump the version", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{AutoCreateParents: true})
		projectID, _, _ := buildChain(t, svc)

		updated, err := svc.Update(ctx, hierctx.UpdateInput{
			Level: core.LevelProject,
			ID:    projectID,
			Data:  map[string]any{"project_settings": map[string]any{"ci": true}},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)
		metadata, ok := updated.Data["metadata"].(map[string]any)
		require.True(t, ok, "existing sections survive a partial update")
		assert.Contains(t, metadata, "a")
	})

	t.Run("Should append normalized insight records", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{AutoCreateParents: true})
		_, _, taskID := buildChain(t, svc)

		_, err := svc.AddInsight(ctx, core.LevelTask, taskID, "uses a singleton", "architecture", "high", "auditor")
		require.NoError(t, err)
		updated, err := svc.AddInsight(ctx, core.LevelTask, taskID, "cache is write-through", "", "", "")
		require.NoError(t, err)

		insights, ok := updated.Data["insights"].([]any)
		require.True(t, ok)
		require.Len(t, insights, 2)
		first, ok := insights[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "uses a singleton", first["content"])
		assert.Equal(t, "architecture", first["category"])
		assert.NotEmpty(t, first["timestamp"])
	})

	t.Run("Should reject insight appends without content", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{AutoCreateParents: true})
		_, _, taskID := buildChain(t, svc)
		_, err := svc.AddInsight(ctx, core.LevelTask, taskID, "", "", "", "")
		require.Error(t, err)
		assert.Equal(t, core.CodeMissingField, core.CodeOf(err))
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("Should cascade over descendant contexts", func(t *testing.T) {
		svc, store := newTestService(t, hierctx.Options{AutoCreateParents: true})
		projectID, branchID, taskID := buildChain(t, svc)

		require.NoError(t, svc.Delete(ctx, core.LevelProject, projectID))

		repo := store.ContextRepo()
		for _, probe := range []struct {
			level core.ContextLevel
			id    core.ID
		}{
			{core.LevelProject, projectID},
			{core.LevelBranch, branchID},
			{core.LevelTask, taskID},
		} {
			exists, err := repo.Exists(ctx, probe.level, probe.id)
			require.NoError(t, err)
			assert.False(t, exists, "%s %s should be gone", probe.level, probe.id)
		}
	})

	t.Run("Should report NOT_FOUND for an unknown context", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{})
		err := svc.Delete(ctx, core.LevelTask, "missing")
		require.Error(t, err)
		assert.True(t, core.IsNotFound(err))
	})
}

func TestService_Delegate(t *testing.T) {
	ctx := context.Background()

	t.Run("Should queue a delegation without mutating the target", func(t *testing.T) {
		svc, store := newTestService(t, hierctx.Options{AutoCreateParents: true})
		_, _, taskID := buildChain(t, svc)

		globalBefore, err := store.ContextRepo().Get(ctx, core.LevelGlobal, core.GlobalSingletonID)
		require.NoError(t, err)
		versionBefore := globalBefore.Version

		d, created, err := svc.Delegate(ctx, hierctx.DelegateInput{
			Level:       core.LevelTask,
			ID:          taskID,
			TargetLevel: core.LevelGlobal,
			Data:        map[string]any{"pattern": "retry with backoff"},
			Reason:      "reusable across projects",
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.False(t, d.Processed)
		assert.Equal(t, core.GlobalSingletonID, d.TargetID)

		globalAfter, err := store.ContextRepo().Get(ctx, core.LevelGlobal, core.GlobalSingletonID)
		require.NoError(t, err)
		assert.Equal(t, versionBefore, globalAfter.Version)
		assert.NotContains(t, globalAfter.Data, "pattern")
	})

	t.Run("Should collapse duplicate delegations inside the dedupe window", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{AutoCreateParents: true, DedupeWindow: time.Hour})
		_, _, taskID := buildChain(t, svc)

		in := hierctx.DelegateInput{
			Level:       core.LevelTask,
			ID:          taskID,
			TargetLevel: core.LevelProject,
			Data:        map[string]any{"lint_config": "strict"},
		}
		first, created, err := svc.Delegate(ctx, in)
		require.NoError(t, err)
		require.True(t, created)

		second, created, err := svc.Delegate(ctx, in)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("Should treat different payloads as distinct delegations", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{AutoCreateParents: true, DedupeWindow: time.Hour})
		_, _, taskID := buildChain(t, svc)

		_, created, err := svc.Delegate(ctx, hierctx.DelegateInput{
			Level: core.LevelTask, ID: taskID, TargetLevel: core.LevelProject,
			Data: map[string]any{"k": "v1"},
		})
		require.NoError(t, err)
		require.True(t, created)

		_, created, err = svc.Delegate(ctx, hierctx.DelegateInput{
			Level: core.LevelTask, ID: taskID, TargetLevel: core.LevelProject,
			Data: map[string]any{"k": "v2"},
		})
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("Should reject a target level that is not above the source", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{AutoCreateParents: true})
		_, branchID, _ := buildChain(t, svc)
		_, _, err := svc.Delegate(ctx, hierctx.DelegateInput{
			Level:       core.LevelBranch,
			ID:          branchID,
			TargetLevel: core.LevelTask,
			Data:        map[string]any{"k": "v"},
		})
		require.Error(t, err)
		assert.Equal(t, core.CodeValidationError, core.CodeOf(err))
	})

	t.Run("Should require delegated data", func(t *testing.T) {
		svc, _ := newTestService(t, hierctx.Options{AutoCreateParents: true})
		_, _, taskID := buildChain(t, svc)
		_, _, err := svc.Delegate(ctx, hierctx.DelegateInput{
			Level:       core.LevelTask,
			ID:          taskID,
			TargetLevel: core.LevelGlobal,
		})
		require.Error(t, err)
		assert.Equal(t, core.CodeMissingField, core.CodeOf(err))
	})
}

func TestResolve_InheritanceFlags(t *testing.T) {
	ctx := context.Background()

	t.Run("Should drop accumulated ancestors when inheritance is disabled", func(t *testing.T) {
		svc, store := newTestService(t, hierctx.Options{AutoCreateParents: true})
		_, _, taskID := buildChain(t, svc)

		taskCtx, err := store.ContextRepo().Get(ctx, core.LevelTask, taskID)
		require.NoError(t, err)
		taskCtx.InheritanceDisabled = true
		require.NoError(t, store.ContextRepo().Update(ctx, core.LevelTask, taskID, taskCtx))

		out, err := svc.Resolve(ctx, core.LevelTask, taskID, true)
		require.NoError(t, err)
		metadata, ok := out.Document["metadata"].(map[string]any)
		require.True(t, ok)
		a, ok := metadata["a"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 9, a["x"], "local data still applies")
		assert.NotContains(t, a, "y", "ancestor data above the cut is discarded")
		assert.NotContains(t, metadata, "l")
	})
}
