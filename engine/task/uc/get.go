package uc

import (
	"context"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/repo"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
	"github.com/phamhung075/dhafnck-mcp-sub000/pkg/logger"
)

type GetTaskInput struct {
	TaskID         core.ID
	IncludeContext bool
}

type GetTaskOutput struct {
	Task          *task.Task
	Relationships *task.Relationships
	// Context is the resolved (inherited) task context document, present
	// only when requested and resolvable.
	Context map[string]any
}

// GetTask fetches one task with its dependency relationships and,
// optionally, its resolved context.
type GetTask struct {
	repos    repo.Provider
	contexts *hierctx.Service
	input    GetTaskInput
}

func NewGetTask(repos repo.Provider, contexts *hierctx.Service, input GetTaskInput) *GetTask {
	return &GetTask{repos: repos, contexts: contexts, input: input}
}

func (uc *GetTask) Execute(ctx context.Context) (*GetTaskOutput, error) {
	t, err := uc.repos.TaskRepo().FindByIDAllStates(ctx, uc.input.TaskID)
	if err != nil {
		return nil, err
	}
	rel, err := task.ComputeRelationships(ctx, uc.repos.TaskRepo(), t)
	if err != nil {
		return nil, err
	}
	out := &GetTaskOutput{Task: t, Relationships: rel}
	if uc.input.IncludeContext {
		resolved, err := uc.contexts.Resolve(ctx, core.LevelTask, t.ID, false)
		if err != nil {
			// A missing context does not fail the get; the task data is
			// still the primary payload.
			logger.FromContext(ctx).Debug("task context not resolvable",
				"task_id", t.ID, "error", err)
		} else {
			out.Context = resolved.Document
		}
	}
	return out, nil
}
