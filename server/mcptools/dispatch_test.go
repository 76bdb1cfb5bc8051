package mcptools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/branch"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/memstore"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/repo"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/project"
	"github.com/phamhung075/dhafnck-mcp-sub000/pkg/config"
)

type serverFixture struct {
	server *Server
	branch *branch.Branch
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	clock := memstore.NewFixedClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), time.Second)
	store := memstore.NewStore(clock)
	contexts := hierctx.NewService(
		store.ContextRepo(),
		store.DelegationRepo(),
		repo.NewBranchLookup(store),
		repo.NewTaskLookup(store),
		hierctx.Options{AutoCreateParents: true},
		clock.Now,
	)
	ctx := context.Background()
	require.NoError(t, contexts.BootstrapGlobal(ctx))
	p, err := project.New("demo", "demo project", "", clock.Now())
	require.NoError(t, err)
	require.NoError(t, store.ProjectRepo().Create(ctx, p))
	b, err := branch.New(p.ID, "feature/demo", "", clock.Now())
	require.NoError(t, err)
	require.NoError(t, store.BranchRepo().Create(ctx, b))
	srv := NewServer(store, contexts, config.Default())
	srv.now = clock.Now
	return &serverFixture{server: srv, branch: b}
}

func (f *serverFixture) createTask(t *testing.T, title string) string {
	t.Helper()
	resp := f.server.handleManageTask(context.Background(), map[string]any{
		"action":        "create",
		"git_branch_id": f.branch.ID.String(),
		"title":         title,
	})
	require.True(t, resp.Success, "create failed: %+v", resp.Error)
	taskData, ok := resp.Data["task"].(map[string]any)
	require.True(t, ok)
	return taskData["id"].(string)
}

func TestManageSubtaskActions(t *testing.T) {
	ctx := context.Background()

	t.Run("Should accept add as the subtask creation action", func(t *testing.T) {
		f := newServerFixture(t)
		taskID := f.createTask(t, "parent work")
		resp := f.server.handleManageSubtask(ctx, map[string]any{
			"action":  "add",
			"task_id": taskID,
			"title":   "first piece",
		})
		require.True(t, resp.Success, "add failed: %+v", resp.Error)
		assert.Equal(t, "manage_subtask.add", resp.Operation)
	})

	t.Run("Should accept remove as the subtask deletion action", func(t *testing.T) {
		f := newServerFixture(t)
		taskID := f.createTask(t, "parent work")
		added := f.server.handleManageSubtask(ctx, map[string]any{
			"action":  "add",
			"task_id": taskID,
			"title":   "short-lived piece",
		})
		require.True(t, added.Success)
		subtask, ok := added.Data["subtask"].(map[string]any)
		require.True(t, ok)

		resp := f.server.handleManageSubtask(ctx, map[string]any{
			"action":     "remove",
			"subtask_id": subtask["id"],
		})
		require.True(t, resp.Success, "remove failed: %+v", resp.Error)
	})

	t.Run("Should keep create and delete as aliases", func(t *testing.T) {
		f := newServerFixture(t)
		taskID := f.createTask(t, "parent work")
		created := f.server.handleManageSubtask(ctx, map[string]any{
			"action":  "create",
			"task_id": taskID,
			"title":   "aliased piece",
		})
		require.True(t, created.Success)
		subtask, ok := created.Data["subtask"].(map[string]any)
		require.True(t, ok)

		deleted := f.server.handleManageSubtask(ctx, map[string]any{
			"action":     "delete",
			"subtask_id": subtask["id"],
		})
		require.True(t, deleted.Success)
	})
}

func TestManageContextUpdateNoop(t *testing.T) {
	ctx := context.Background()

	t.Run("Should treat an empty data update as a version-only no-op", func(t *testing.T) {
		f := newServerFixture(t)
		resp := f.server.handleManageContext(ctx, map[string]any{
			"action": "update",
			"level":  "global",
			"data":   map[string]any{},
		})
		require.True(t, resp.Success, "empty update failed: %+v", resp.Error)
		updated, ok := resp.Data["context"].(*hierctx.Context)
		require.True(t, ok)
		assert.Equal(t, 2, updated.Version)
	})

	t.Run("Should accept an update with no data argument at all", func(t *testing.T) {
		f := newServerFixture(t)
		resp := f.server.handleManageContext(ctx, map[string]any{
			"action": "update",
			"level":  "global",
		})
		require.True(t, resp.Success, "bare update failed: %+v", resp.Error)
	})
}

func TestManageTaskContextProjection(t *testing.T) {
	ctx := context.Background()

	t.Run("Should project the resolved context under context_data on get", func(t *testing.T) {
		f := newServerFixture(t)
		taskID := f.createTask(t, "projected work")
		resp := f.server.handleManageTask(ctx, map[string]any{
			"action":          "get",
			"task_id":         taskID,
			"include_context": true,
		})
		require.True(t, resp.Success, "get failed: %+v", resp.Error)
		assert.Contains(t, resp.Data, "context_data")
		assert.NotContains(t, resp.Data, "context")
	})

	t.Run("Should project the resolved context under context_data on next", func(t *testing.T) {
		f := newServerFixture(t)
		f.createTask(t, "next up")
		resp := f.server.handleManageTask(ctx, map[string]any{
			"action":          "next",
			"git_branch_id":   f.branch.ID.String(),
			"include_context": true,
		})
		require.True(t, resp.Success, "next failed: %+v", resp.Error)
		assert.NotContains(t, resp.Data, "context")
	})
}

func TestManageTaskUpdateUnknownField(t *testing.T) {
	ctx := context.Background()

	t.Run("Should reject unknown fields instead of dropping them", func(t *testing.T) {
		f := newServerFixture(t)
		taskID := f.createTask(t, "strict work")
		resp := f.server.handleManageTask(ctx, map[string]any{
			"action":  "update",
			"task_id": taskID,
			"foo":     1,
		})
		require.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, core.CodeValidationError, resp.Error.Code)
		details, ok := resp.Metadata["error_details"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "foo", details["field"])
	})

	t.Run("Should still accept the full known parameter set", func(t *testing.T) {
		f := newServerFixture(t)
		taskID := f.createTask(t, "permissive work")
		resp := f.server.handleManageTask(ctx, map[string]any{
			"action":              "update",
			"task_id":             taskID,
			"title":               "renamed work",
			"priority":            "high",
			"progress_percentage": 10,
			"labels":              []any{"backend"},
		})
		require.True(t, resp.Success, "update failed: %+v", resp.Error)
	})
}
