package uc

import (
	"context"
	"fmt"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/repo"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
	"github.com/phamhung075/dhafnck-mcp-sub000/pkg/logger"
)

type DeleteTaskInput struct {
	TaskID core.ID
}

type DeleteTaskOutput struct {
	DeletedSubtasks int
	PartialFailures []core.PartialFailure
}

// DeleteTask removes a task with its subtasks and context. Tasks that
// other tasks depend on cannot be deleted until the edges are removed.
type DeleteTask struct {
	repos    repo.Provider
	contexts *hierctx.Service
	now      func() time.Time
	input    DeleteTaskInput
}

func NewDeleteTask(repos repo.Provider, contexts *hierctx.Service, now func() time.Time, input DeleteTaskInput) *DeleteTask {
	return &DeleteTask{repos: repos, contexts: contexts, now: now, input: input}
}

func (uc *DeleteTask) Execute(ctx context.Context) (*DeleteTaskOutput, error) {
	t, err := uc.repos.TaskRepo().FindByIDAllStates(ctx, uc.input.TaskID)
	if err != nil {
		return nil, err
	}
	dependents, err := uc.repos.TaskRepo().FindDependents(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if len(dependents) > 0 {
		blocking := make([]map[string]any, 0, len(dependents))
		for _, d := range dependents {
			blocking = append(blocking, map[string]any{
				"id":    d.ID.String(),
				"title": d.Title,
			})
		}
		return nil, core.NewError(core.CodeConstraintViolation,
			fmt.Sprintf("cannot delete task: %d tasks depend on it", len(dependents)),
			map[string]any{
				"task_id":         t.ID.String(),
				"dependent_tasks": blocking,
				"hint":            "remove the dependency edges first",
			})
	}
	out := &DeleteTaskOutput{}
	err = uc.repos.WithTx(ctx, func(ctx context.Context) error {
		subtasks, err := uc.repos.SubtaskRepo().List(ctx, &task.SubtaskFilter{TaskID: &t.ID})
		if err != nil {
			return err
		}
		for _, s := range subtasks {
			if err := uc.repos.SubtaskRepo().Delete(ctx, s.ID); err != nil {
				return err
			}
			out.DeletedSubtasks++
		}
		return uc.repos.TaskRepo().Delete(ctx, t.ID)
	})
	if err != nil {
		return nil, err
	}
	if err := uc.contexts.Delete(ctx, core.LevelTask, t.ID); err != nil && !core.IsNotFound(err) {
		out.PartialFailures = append(out.PartialFailures, core.PartialFailure{
			Operation: "delete_task_context",
			Error:     err.Error(),
			Impact:    fmt.Sprintf("context for deleted task %s remains", t.ID),
		})
	}
	uc.adjustBranchCounters(ctx, t, out)
	return out, nil
}

func (uc *DeleteTask) adjustBranchCounters(ctx context.Context, t *task.Task, out *DeleteTaskOutput) {
	b, err := uc.repos.BranchRepo().Get(ctx, t.BranchID)
	if err == nil {
		if b.TaskCount > 0 {
			b.TaskCount--
		}
		if t.Status == core.StatusDone && b.CompletedTaskCount > 0 {
			b.CompletedTaskCount--
		}
		b.UpdatedAt = uc.now()
		err = uc.repos.BranchRepo().Update(ctx, b.ID, b)
	}
	if err != nil {
		logger.FromContext(ctx).Warn("branch counter update failed after deletion",
			"branch_id", t.BranchID, "error", err)
		out.PartialFailures = append(out.PartialFailures, core.PartialFailure{
			Operation: "update_branch_counters",
			Error:     err.Error(),
			Impact:    "branch task counters are stale",
		})
	}
}
