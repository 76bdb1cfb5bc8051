package uc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/repo"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
	"github.com/phamhung075/dhafnck-mcp-sub000/pkg/logger"
)

type CompleteTaskInput struct {
	TaskID            core.ID
	CompletionSummary string
	TestingNotes      string
	// MinSummaryLength comes from vision enforcement config; zero disables
	// the length check but the summary itself stays mandatory.
	MinSummaryLength int
}

type CompleteTaskOutput struct {
	Task            *task.Task
	Context         *hierctx.Context
	PartialFailures []core.PartialFailure
}

// CompleteTask closes a task. Completion demands a summary, all subtasks
// done and all dependencies done; the completion data is written to the
// task context, which is auto-created when missing. The state changes run
// in one transaction.
type CompleteTask struct {
	repos    repo.Provider
	contexts *hierctx.Service
	now      func() time.Time
	input    CompleteTaskInput
}

func NewCompleteTask(repos repo.Provider, contexts *hierctx.Service, now func() time.Time, input CompleteTaskInput) *CompleteTask {
	return &CompleteTask{repos: repos, contexts: contexts, now: now, input: input}
}

func (uc *CompleteTask) Execute(ctx context.Context) (*CompleteTaskOutput, error) {
	in := uc.input
	if strings.TrimSpace(in.CompletionSummary) == "" {
		return nil, core.NewError(core.CodeMissingField,
			"completion_summary is required to complete a task", map[string]any{
				"field": "completion_summary",
				"hint":  "describe what was done and how it was verified",
			})
	}
	if in.MinSummaryLength > 0 && len([]rune(in.CompletionSummary)) < in.MinSummaryLength {
		return nil, core.NewError(core.CodeValidationError,
			fmt.Sprintf("completion_summary must be at least %d characters", in.MinSummaryLength),
			map[string]any{
				"field":    "completion_summary",
				"expected": fmt.Sprintf(">= %d characters", in.MinSummaryLength),
				"actual":   len([]rune(in.CompletionSummary)),
			})
	}
	out := &CompleteTaskOutput{}
	err := uc.repos.WithTx(ctx, func(ctx context.Context) error {
		t, err := uc.repos.TaskRepo().Get(ctx, in.TaskID)
		if err != nil {
			return err
		}
		if t.Status == core.StatusDone {
			return core.NewError(core.CodeInvalidState, "task is already done", map[string]any{
				"task_id": t.ID.String(),
			})
		}
		if err := uc.checkSubtasks(ctx, t); err != nil {
			return err
		}
		if err := uc.checkDependencies(ctx, t); err != nil {
			return err
		}
		completed := uc.now()
		contextEntity, err := uc.writeCompletionContext(ctx, t, completed)
		if err != nil {
			return err
		}
		t.MarkDone(completed)
		if err := uc.repos.TaskRepo().Update(ctx, t.ID, t); err != nil {
			return err
		}
		uc.settleAgents(ctx, t, completed, out)
		uc.bumpBranchCounters(ctx, t, completed, out)
		out.Task = t
		out.Context = contextEntity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkSubtasks rejects completion while any subtask is not done, listing
// every incomplete subtask so the caller can close them without another
// round trip.
func (uc *CompleteTask) checkSubtasks(ctx context.Context, t *task.Task) error {
	subtasks, err := uc.repos.SubtaskRepo().List(ctx, &task.SubtaskFilter{TaskID: &t.ID})
	if err != nil {
		return err
	}
	var incomplete []map[string]any
	var nextActions []map[string]any
	for _, s := range subtasks {
		if s.Status == core.StatusDone {
			continue
		}
		incomplete = append(incomplete, map[string]any{
			"id":     s.ID.String(),
			"title":  s.Title,
			"status": s.Status.String(),
		})
		nextActions = append(nextActions, map[string]any{
			"tool": "manage_subtask",
			"params": map[string]any{
				"action":     "complete",
				"task_id":    t.ID.String(),
				"subtask_id": s.ID.String(),
			},
		})
	}
	if len(incomplete) == 0 {
		return nil
	}
	return core.NewError(core.CodeInvalidState,
		fmt.Sprintf("cannot complete task: %d subtasks are not done", len(incomplete)),
		map[string]any{
			"task_id":             t.ID.String(),
			"incomplete_subtasks": incomplete,
			"next_actions":        nextActions,
		})
}

// checkDependencies rejects completion while any dependency is not done.
func (uc *CompleteTask) checkDependencies(ctx context.Context, t *task.Task) error {
	var blocking []map[string]any
	for _, depID := range t.Dependencies {
		dep, err := uc.repos.TaskRepo().FindByIDAllStates(ctx, depID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return err
		}
		if dep.Status != core.StatusDone {
			blocking = append(blocking, map[string]any{
				"id":     dep.ID.String(),
				"title":  dep.Title,
				"status": dep.Status.String(),
			})
		}
	}
	if len(blocking) == 0 {
		return nil
	}
	return core.NewError(core.CodeDependencyError,
		fmt.Sprintf("cannot complete task: %d dependencies are not done", len(blocking)),
		map[string]any{
			"task_id":               t.ID.String(),
			"blocking_dependencies": blocking,
		})
}

// writeCompletionContext records the completion data in the task context,
// creating the context first when the task predates context enforcement.
func (uc *CompleteTask) writeCompletionContext(ctx context.Context, t *task.Task, completed time.Time) (*hierctx.Context, error) {
	exists, err := uc.repos.ContextRepo().Exists(ctx, core.LevelTask, t.ID)
	if err != nil {
		return nil, err
	}
	if !exists {
		if _, err := uc.contexts.Create(ctx, hierctx.CreateInput{
			Level:    core.LevelTask,
			ID:       t.ID,
			BranchID: t.BranchID,
			Data:     map[string]any{"branch_id": t.BranchID.String()},
		}); err != nil {
			return nil, core.NewError(core.CodeContextSyncFailed,
				"could not create task context for completion", map[string]any{
					"task_id": t.ID.String(),
					"cause":   err.Error(),
				})
		}
		t.ContextID = t.ID
	}
	data := map[string]any{
		"completion_summary": uc.input.CompletionSummary,
		"completed_at":       completed.Format(time.RFC3339),
		"status":             core.StatusDone.String(),
	}
	if uc.input.TestingNotes != "" {
		data["testing_notes"] = uc.input.TestingNotes
	}
	return uc.contexts.Update(ctx, hierctx.UpdateInput{
		Level: core.LevelTask,
		ID:    t.ID,
		Data:  data,
	})
}

// settleAgents releases the completed task from each assignee's workload.
// Failures here degrade to partial failures; the completion itself stands.
func (uc *CompleteTask) settleAgents(ctx context.Context, t *task.Task, completed time.Time, out *CompleteTaskOutput) {
	for _, assignee := range t.Assignees {
		a, err := uc.repos.AgentRepo().Get(ctx, assignee)
		if err != nil {
			out.PartialFailures = append(out.PartialFailures, core.PartialFailure{
				Operation: "update_agent_workload",
				Error:     err.Error(),
				Impact:    fmt.Sprintf("agent %s workload is stale", assignee),
			})
			continue
		}
		a.CompleteTask(t.ID, completed)
		if err := uc.repos.AgentRepo().Update(ctx, a.ID, a); err != nil {
			out.PartialFailures = append(out.PartialFailures, core.PartialFailure{
				Operation: "update_agent_workload",
				Error:     err.Error(),
				Impact:    fmt.Sprintf("agent %s workload is stale", assignee),
			})
		}
	}
}

func (uc *CompleteTask) bumpBranchCounters(ctx context.Context, t *task.Task, completed time.Time, out *CompleteTaskOutput) {
	b, err := uc.repos.BranchRepo().Get(ctx, t.BranchID)
	if err == nil {
		b.CompletedTaskCount++
		b.UpdatedAt = completed
		err = uc.repos.BranchRepo().Update(ctx, b.ID, b)
	}
	if err != nil {
		logger.FromContext(ctx).Warn("branch counter update failed after completion",
			"branch_id", t.BranchID, "error", err)
		out.PartialFailures = append(out.PartialFailures, core.PartialFailure{
			Operation: "update_branch_counters",
			Error:     err.Error(),
			Impact:    "branch completed_task_count is stale",
		})
	}
}
