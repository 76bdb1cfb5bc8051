package uc

import (
	"context"
	"sort"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/repo"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
)

type NextTaskInput struct {
	BranchID       core.ID
	IncludeContext bool
}

type NextTaskOutput struct {
	Task *task.Task
	// Blocked lists actionable-by-status tasks skipped because of
	// unfinished dependencies, for the empty-result explanation.
	Blocked []*task.Task
	Context map[string]any
}

// NextTask picks the most urgent actionable task on a branch. A task is
// actionable when its status is todo or in_progress and every dependency
// is done. Ordering is priority weight descending, then least recently
// updated, then id; the result is deterministic for a fixed store.
type NextTask struct {
	repos    repo.Provider
	contexts *hierctx.Service
	input    NextTaskInput
}

func NewNextTask(repos repo.Provider, contexts *hierctx.Service, input NextTaskInput) *NextTask {
	return &NextTask{repos: repos, contexts: contexts, input: input}
}

func (uc *NextTask) Execute(ctx context.Context) (*NextTaskOutput, error) {
	if uc.input.BranchID.IsZero() {
		return nil, core.NewError(core.CodeMissingField, "git_branch_id is required", map[string]any{
			"field": "git_branch_id",
		})
	}
	if _, err := uc.repos.BranchRepo().Get(ctx, uc.input.BranchID); err != nil {
		return nil, err
	}
	tasks, err := uc.repos.TaskRepo().List(ctx, &task.Filter{BranchID: &uc.input.BranchID})
	if err != nil {
		return nil, err
	}
	out := &NextTaskOutput{}
	var candidates []*task.Task
	for _, t := range tasks {
		if !t.IsActionable() {
			continue
		}
		ready, err := uc.dependenciesDone(ctx, t)
		if err != nil {
			return nil, err
		}
		if ready {
			candidates = append(candidates, t)
		} else {
			out.Blocked = append(out.Blocked, t)
		}
	}
	if len(candidates) == 0 {
		return out, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority.Weight() != b.Priority.Weight() {
			return a.Priority.Weight() > b.Priority.Weight()
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
	out.Task = candidates[0]
	if uc.input.IncludeContext {
		resolved, err := uc.contexts.Resolve(ctx, core.LevelTask, out.Task.ID, false)
		if err == nil {
			out.Context = resolved.Document
		}
	}
	return out, nil
}

func (uc *NextTask) dependenciesDone(ctx context.Context, t *task.Task) (bool, error) {
	for _, depID := range t.Dependencies {
		dep, err := uc.repos.TaskRepo().FindByIDAllStates(ctx, depID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return false, err
		}
		if dep.Status != core.StatusDone {
			return false, nil
		}
	}
	return true, nil
}
