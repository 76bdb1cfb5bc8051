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

type CreateTaskInput struct {
	BranchID        core.ID
	Title           string
	Description     string
	Status          string
	Priority        string
	Details         string
	EstimatedEffort string
	Assignees       []core.ID
	Labels          []string
	DueDate         *time.Time
	Dependencies    []core.ID
}

type CreateTaskOutput struct {
	Task            *task.Task
	Context         *hierctx.Context
	PartialFailures []core.PartialFailure
}

// CreateTask creates a task and, synchronously, its task context. If the
// context cannot be created the task is rolled back; a failed rollback is
// reported as a partial failure listing the orphan id.
type CreateTask struct {
	repos    repo.Provider
	contexts *hierctx.Service
	now      func() time.Time
	input    CreateTaskInput
}

func NewCreateTask(repos repo.Provider, contexts *hierctx.Service, now func() time.Time, input CreateTaskInput) *CreateTask {
	return &CreateTask{repos: repos, contexts: contexts, now: now, input: input}
}

func (uc *CreateTask) Execute(ctx context.Context) (*CreateTaskOutput, error) {
	log := logger.FromContext(ctx)
	in := uc.input
	t, err := task.New(in.BranchID, in.Title, in.Description, uc.now())
	if err != nil {
		return nil, err
	}
	b, err := uc.repos.BranchRepo().Get(ctx, in.BranchID)
	if err != nil {
		return nil, err
	}
	if err := uc.applyOptionalFields(ctx, t, in); err != nil {
		return nil, err
	}
	if err := uc.repos.TaskRepo().Create(ctx, t); err != nil {
		return nil, err
	}
	created, err := uc.contexts.Create(ctx, hierctx.CreateInput{
		Level:     core.LevelTask,
		ID:        t.ID,
		BranchID:  t.BranchID,
		ProjectID: b.ProjectID,
		Data: map[string]any{
			"branch_id": t.BranchID.String(),
			"task_data": map[string]any{
				"title":       t.Title,
				"status":      t.Status.String(),
				"description": t.Description,
				"priority":    t.Priority.String(),
			},
		},
	})
	if err != nil {
		log.Error("task context creation failed, rolling back task", "task_id", t.ID, "error", err)
		if delErr := uc.repos.TaskRepo().Delete(ctx, t.ID); delErr != nil {
			return &CreateTaskOutput{
				PartialFailures: []core.PartialFailure{{
					Operation: "rollback_task",
					Error:     delErr.Error(),
					Impact:    fmt.Sprintf("orphan task %s requires operator remediation", t.ID),
				}},
			}, core.NewError(core.CodeContextCreationFailed,
				"task context creation failed and rollback left an orphan task", map[string]any{
					"orphan_task_id": t.ID.String(),
					"cause":          err.Error(),
				})
		}
		return nil, core.NewError(core.CodeContextCreationFailed,
			"task context creation failed; task was rolled back", map[string]any{
				"cause": err.Error(),
			})
	}
	t.ContextID = t.ID
	t.UpdatedAt = uc.now()
	if err := uc.repos.TaskRepo().Update(ctx, t.ID, t); err != nil {
		return nil, fmt.Errorf("linking task context: %w", err)
	}
	b.TaskCount++
	b.UpdatedAt = uc.now()
	if err := uc.repos.BranchRepo().Update(ctx, b.ID, b); err != nil {
		return &CreateTaskOutput{
			Task:    t,
			Context: created,
			PartialFailures: []core.PartialFailure{{
				Operation: "update_branch_counters",
				Error:     err.Error(),
				Impact:    "branch task_count is stale",
			}},
		}, nil
	}
	return &CreateTaskOutput{Task: t, Context: created}, nil
}

func (uc *CreateTask) applyOptionalFields(ctx context.Context, t *task.Task, in CreateTaskInput) error {
	if in.Status != "" {
		status, err := core.ParseTaskStatus(in.Status)
		if err != nil {
			return err
		}
		if status == core.StatusDone {
			return core.NewError(core.CodeInvalidState,
				"a task cannot be created in done state; use the complete action", nil)
		}
		t.Status = status
	}
	if in.Priority != "" {
		priority, err := core.ParsePriority(in.Priority)
		if err != nil {
			return err
		}
		t.Priority = priority
	}
	t.Details = in.Details
	t.EstimatedEffort = in.EstimatedEffort
	t.Labels = in.Labels
	t.DueDate = in.DueDate
	for _, assignee := range in.Assignees {
		if err := ensureAgentRegistered(ctx, uc.repos, assignee, uc.now); err != nil {
			return err
		}
		t.Assignees = append(t.Assignees, assignee)
	}
	for _, dep := range in.Dependencies {
		if _, err := uc.repos.TaskRepo().FindByIDAllStates(ctx, dep); err != nil {
			return core.NewError(core.CodeDependencyError,
				fmt.Sprintf("dependency task not found: %s", dep), map[string]any{
					"dependency_id": dep.String(),
				})
		}
		if err := t.AddDependency(dep); err != nil {
			return err
		}
	}
	return nil
}
