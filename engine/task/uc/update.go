package uc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/repo"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
	"github.com/phamhung075/dhafnck-mcp-sub000/pkg/logger"
)

// progressTokens reclassify a details update as a progress report.
var progressTokens = []string{"progress:", "completed:", "implemented:"}

type UpdateTaskInput struct {
	TaskID          core.ID
	Title           *string
	Description     *string
	Status          *string
	Priority        *string
	Details         *string
	EstimatedEffort *string
	Assignees       []core.ID
	Labels          []string
	DueDate         *time.Time
	Progress        *int
}

type UpdateTaskOutput struct {
	Task *task.Task
	// ProgressReport is set when the details update was reclassified as a
	// progress report.
	ProgressReport bool
	Hints          []string
}

// UpdateTask partially updates task fields. Details carrying progress
// tokens are reclassified as progress reports: the text is appended to
// progress_notes and a todo task moves to in_progress.
type UpdateTask struct {
	repos repo.Provider
	now   func() time.Time
	input UpdateTaskInput
}

func NewUpdateTask(repos repo.Provider, now func() time.Time, input UpdateTaskInput) *UpdateTask {
	return &UpdateTask{repos: repos, now: now, input: input}
}

func (uc *UpdateTask) Execute(ctx context.Context) (*UpdateTaskOutput, error) {
	in := uc.input
	t, err := uc.repos.TaskRepo().Get(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}
	out := &UpdateTaskOutput{}
	if in.Title != nil {
		if err := task.ValidateTitle(*in.Title); err != nil {
			return nil, err
		}
		t.Title = *in.Title
	}
	if in.Description != nil {
		if err := task.ValidateDescription(*in.Description); err != nil {
			return nil, err
		}
		t.Description = *in.Description
	}
	if in.Status != nil {
		status, err := core.ParseTaskStatus(*in.Status)
		if err != nil {
			return nil, err
		}
		if status == core.StatusDone {
			return nil, core.NewError(core.CodeInvalidState,
				"cannot set status to done via update; use the complete action", map[string]any{
					"task_id": t.ID.String(),
					"hint":    "call manage_task with action=complete and a completion_summary",
				})
		}
		if !t.Status.CanTransitionTo(status) {
			return nil, core.NewError(core.CodeInvalidState,
				fmt.Sprintf("invalid status transition %s -> %s", t.Status, status), map[string]any{
					"current": t.Status.String(),
					"target":  status.String(),
				})
		}
		if status == core.StatusInProgress && t.Status != core.StatusInProgress {
			uc.startAssignees(ctx, t)
		}
		t.Status = status
	}
	if in.Priority != nil {
		priority, err := core.ParsePriority(*in.Priority)
		if err != nil {
			return nil, err
		}
		t.Priority = priority
	}
	if in.Details != nil {
		t.Details = *in.Details
		if isProgressReport(*in.Details) {
			out.ProgressReport = true
			t.ProgressNotes = append(t.ProgressNotes, *in.Details)
			if t.Status == core.StatusTodo {
				t.Status = core.StatusInProgress
				out.Hints = append(out.Hints, "task moved to in_progress based on reported progress")
			}
			out.Hints = append(out.Hints,
				"details were recorded as a progress note; use manage_context add_progress for durable notes")
		}
	}
	if in.EstimatedEffort != nil {
		t.EstimatedEffort = *in.EstimatedEffort
	}
	if in.Assignees != nil {
		t.Assignees = t.Assignees[:0]
		for _, assignee := range in.Assignees {
			if err := ensureAgentRegistered(ctx, uc.repos, assignee, uc.now); err != nil {
				return nil, err
			}
			t.Assignees = append(t.Assignees, assignee)
		}
	}
	if in.Labels != nil {
		t.Labels = in.Labels
	}
	if in.DueDate != nil {
		t.DueDate = in.DueDate
	}
	if in.Progress != nil {
		if *in.Progress < 0 || *in.Progress > 100 {
			return nil, core.NewError(core.CodeValidationError, "progress_percentage must be within 0..100",
				map[string]any{
					"field":    "progress_percentage",
					"expected": "0..100",
					"actual":   *in.Progress,
				})
		}
		t.ProgressPercentage = *in.Progress
	}
	t.UpdatedAt = uc.now()
	if err := uc.repos.TaskRepo().Update(ctx, t.ID, t); err != nil {
		return nil, err
	}
	out.Task = t
	return out, nil
}

// startAssignees accounts the task into each assignee's active workload.
// Workload bookkeeping is advisory; failures only log.
func (uc *UpdateTask) startAssignees(ctx context.Context, t *task.Task) {
	for _, assignee := range t.Assignees {
		a, err := uc.repos.AgentRepo().Get(ctx, assignee)
		if err != nil {
			logger.FromContext(ctx).Warn("agent workload update skipped",
				"agent_id", assignee, "error", err)
			continue
		}
		a.StartTask(t.ID, uc.now())
		if err := uc.repos.AgentRepo().Update(ctx, a.ID, a); err != nil {
			logger.FromContext(ctx).Warn("agent workload update failed",
				"agent_id", assignee, "error", err)
		}
	}
}

func isProgressReport(details string) bool {
	lowered := strings.ToLower(details)
	for _, token := range progressTokens {
		if strings.Contains(lowered, token) {
			return true
		}
	}
	return false
}
