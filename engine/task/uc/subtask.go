package uc

import (
	"context"
	"slices"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/repo"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
)

type AddSubtaskInput struct {
	TaskID      core.ID
	Title       string
	Description string
	Priority    string
	Assignees   []core.ID
}

type SubtaskOutput struct {
	Subtask *task.Subtask
	Parent  *task.Task
}

// AddSubtask creates a subtask under a task and recomputes the parent's
// progress from its subtask set.
type AddSubtask struct {
	repos repo.Provider
	now   func() time.Time
	input AddSubtaskInput
}

func NewAddSubtask(repos repo.Provider, now func() time.Time, input AddSubtaskInput) *AddSubtask {
	return &AddSubtask{repos: repos, now: now, input: input}
}

func (uc *AddSubtask) Execute(ctx context.Context) (*SubtaskOutput, error) {
	in := uc.input
	parent, err := uc.repos.TaskRepo().Get(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}
	if parent.Status == core.StatusDone {
		return nil, core.NewError(core.CodeInvalidState,
			"cannot add a subtask to a completed task", map[string]any{
				"task_id": parent.ID.String(),
			})
	}
	s, err := task.NewSubtask(in.TaskID, in.Title, in.Description, uc.now())
	if err != nil {
		return nil, err
	}
	if in.Priority != "" {
		priority, err := core.ParsePriority(in.Priority)
		if err != nil {
			return nil, err
		}
		s.Priority = priority
	}
	for _, assignee := range in.Assignees {
		if err := ensureAgentRegistered(ctx, uc.repos, assignee, uc.now); err != nil {
			return nil, err
		}
		s.Assignees = append(s.Assignees, assignee)
	}
	err = uc.repos.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.repos.SubtaskRepo().Create(ctx, s); err != nil {
			return err
		}
		parent.Subtasks = append(parent.Subtasks, s.ID)
		parent.UpdatedAt = uc.now()
		if err := uc.repos.TaskRepo().Update(ctx, parent.ID, parent); err != nil {
			return err
		}
		return recomputeParentProgress(ctx, uc.repos, parent.ID, uc.now())
	})
	if err != nil {
		return nil, err
	}
	refreshed, err := uc.repos.TaskRepo().Get(ctx, parent.ID)
	if err != nil {
		return nil, err
	}
	return &SubtaskOutput{Subtask: s, Parent: refreshed}, nil
}

type UpdateSubtaskInput struct {
	SubtaskID     core.ID
	Title         *string
	Description   *string
	Status        *string
	Priority      *string
	Progress      *int
	ProgressNotes *string
	Blockers      []string
	Assignees     []core.ID
}

// UpdateSubtask partially updates a subtask and keeps the parent's
// progress in sync.
type UpdateSubtask struct {
	repos repo.Provider
	now   func() time.Time
	input UpdateSubtaskInput
}

func NewUpdateSubtask(repos repo.Provider, now func() time.Time, input UpdateSubtaskInput) *UpdateSubtask {
	return &UpdateSubtask{repos: repos, now: now, input: input}
}

func (uc *UpdateSubtask) Execute(ctx context.Context) (*SubtaskOutput, error) {
	in := uc.input
	s, err := uc.repos.SubtaskRepo().Get(ctx, in.SubtaskID)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		if err := task.ValidateTitle(*in.Title); err != nil {
			return nil, err
		}
		s.Title = *in.Title
	}
	if in.Description != nil {
		if err := task.ValidateDescription(*in.Description); err != nil {
			return nil, err
		}
		s.Description = *in.Description
	}
	if in.Status != nil {
		status, err := core.ParseTaskStatus(*in.Status)
		if err != nil {
			return nil, err
		}
		if status == core.StatusDone {
			return nil, core.NewError(core.CodeInvalidState,
				"cannot set subtask status to done via update; use the complete action", map[string]any{
					"subtask_id": s.ID.String(),
				})
		}
		if !s.Status.CanTransitionTo(status) {
			return nil, core.NewError(core.CodeInvalidState,
				"invalid subtask status transition", map[string]any{
					"current": s.Status.String(),
					"target":  status.String(),
				})
		}
		s.Status = status
	}
	if in.Priority != nil {
		priority, err := core.ParsePriority(*in.Priority)
		if err != nil {
			return nil, err
		}
		s.Priority = priority
	}
	if in.Progress != nil {
		if *in.Progress < 0 || *in.Progress > 100 {
			return nil, core.NewError(core.CodeValidationError,
				"progress_percentage must be within 0..100", map[string]any{
					"field":    "progress_percentage",
					"expected": "0..100",
					"actual":   *in.Progress,
				})
		}
		s.ProgressPercentage = *in.Progress
		if *in.Progress > 0 && s.Status == core.StatusTodo {
			s.Status = core.StatusInProgress
		}
	}
	if in.ProgressNotes != nil && *in.ProgressNotes != "" {
		s.ProgressNotes = append(s.ProgressNotes, *in.ProgressNotes)
	}
	if in.Blockers != nil {
		s.Blockers = in.Blockers
		if len(in.Blockers) > 0 && s.Status != core.StatusBlocked {
			s.Status = core.StatusBlocked
		}
	}
	if in.Assignees != nil {
		s.Assignees = s.Assignees[:0]
		for _, assignee := range in.Assignees {
			if err := ensureAgentRegistered(ctx, uc.repos, assignee, uc.now); err != nil {
				return nil, err
			}
			s.Assignees = append(s.Assignees, assignee)
		}
	}
	s.UpdatedAt = uc.now()
	err = uc.repos.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.repos.SubtaskRepo().Update(ctx, s.ID, s); err != nil {
			return err
		}
		return recomputeParentProgress(ctx, uc.repos, s.TaskID, uc.now())
	})
	if err != nil {
		return nil, err
	}
	parent, err := uc.repos.TaskRepo().Get(ctx, s.TaskID)
	if err != nil {
		return nil, err
	}
	return &SubtaskOutput{Subtask: s, Parent: parent}, nil
}

type CompleteSubtaskInput struct {
	SubtaskID         core.ID
	CompletionSummary string
	ImpactOnParent    string
	InsightsFound     []string
}

// CompleteSubtask closes a subtask with its summary and recomputes the
// parent's progress.
type CompleteSubtask struct {
	repos repo.Provider
	now   func() time.Time
	input CompleteSubtaskInput
}

func NewCompleteSubtask(repos repo.Provider, now func() time.Time, input CompleteSubtaskInput) *CompleteSubtask {
	return &CompleteSubtask{repos: repos, now: now, input: input}
}

func (uc *CompleteSubtask) Execute(ctx context.Context) (*SubtaskOutput, error) {
	in := uc.input
	if in.CompletionSummary == "" {
		return nil, core.NewError(core.CodeMissingField,
			"completion_summary is required to complete a subtask", map[string]any{
				"field": "completion_summary",
			})
	}
	s, err := uc.repos.SubtaskRepo().Get(ctx, in.SubtaskID)
	if err != nil {
		return nil, err
	}
	if s.Status == core.StatusDone {
		return nil, core.NewError(core.CodeInvalidState, "subtask is already done", map[string]any{
			"subtask_id": s.ID.String(),
		})
	}
	completed := uc.now()
	s.Complete(in.CompletionSummary, in.ImpactOnParent, in.InsightsFound, completed)
	err = uc.repos.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.repos.SubtaskRepo().Update(ctx, s.ID, s); err != nil {
			return err
		}
		return recomputeParentProgress(ctx, uc.repos, s.TaskID, completed)
	})
	if err != nil {
		return nil, err
	}
	parent, err := uc.repos.TaskRepo().Get(ctx, s.TaskID)
	if err != nil {
		return nil, err
	}
	return &SubtaskOutput{Subtask: s, Parent: parent}, nil
}

type RemoveSubtaskInput struct {
	SubtaskID core.ID
}

// RemoveSubtask deletes a subtask. Subtasks in progress are protected;
// they have to be cancelled before removal.
type RemoveSubtask struct {
	repos repo.Provider
	now   func() time.Time
	input RemoveSubtaskInput
}

func NewRemoveSubtask(repos repo.Provider, now func() time.Time, input RemoveSubtaskInput) *RemoveSubtask {
	return &RemoveSubtask{repos: repos, now: now, input: input}
}

func (uc *RemoveSubtask) Execute(ctx context.Context) (*SubtaskOutput, error) {
	s, err := uc.repos.SubtaskRepo().Get(ctx, uc.input.SubtaskID)
	if err != nil {
		return nil, err
	}
	if s.Status == core.StatusInProgress {
		return nil, core.NewError(core.CodeInvalidState,
			"cannot remove a subtask that is in progress; cancel it first", map[string]any{
				"subtask_id": s.ID.String(),
				"hint":       "update the subtask status to cancelled, then remove it",
			})
	}
	err = uc.repos.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.repos.SubtaskRepo().Delete(ctx, s.ID); err != nil {
			return err
		}
		parent, err := uc.repos.TaskRepo().Get(ctx, s.TaskID)
		if err != nil {
			return err
		}
		parent.Subtasks = slices.DeleteFunc(parent.Subtasks, func(id core.ID) bool { return id == s.ID })
		parent.UpdatedAt = uc.now()
		if err := uc.repos.TaskRepo().Update(ctx, parent.ID, parent); err != nil {
			return err
		}
		return recomputeParentProgress(ctx, uc.repos, parent.ID, uc.now())
	})
	if err != nil {
		return nil, err
	}
	parent, err := uc.repos.TaskRepo().Get(ctx, s.TaskID)
	if err != nil {
		return nil, err
	}
	return &SubtaskOutput{Subtask: s, Parent: parent}, nil
}

type GetSubtaskInput struct {
	SubtaskID core.ID
}

type GetSubtask struct {
	repos repo.Provider
	input GetSubtaskInput
}

func NewGetSubtask(repos repo.Provider, input GetSubtaskInput) *GetSubtask {
	return &GetSubtask{repos: repos, input: input}
}

func (uc *GetSubtask) Execute(ctx context.Context) (*task.Subtask, error) {
	return uc.repos.SubtaskRepo().Get(ctx, uc.input.SubtaskID)
}

type ListSubtasksInput struct {
	TaskID core.ID
	Status *core.TaskStatus
	Limit  int
}

type ListSubtasksOutput struct {
	Subtasks []*task.Subtask
	Count    int
	// Progress is the parent completion summary: done count over total.
	Done  int
	Total int
}

// ListSubtasks lists the subtasks of a task with a completion rollup.
type ListSubtasks struct {
	repos repo.Provider
	input ListSubtasksInput
}

func NewListSubtasks(repos repo.Provider, input ListSubtasksInput) *ListSubtasks {
	return &ListSubtasks{repos: repos, input: input}
}

func (uc *ListSubtasks) Execute(ctx context.Context) (*ListSubtasksOutput, error) {
	if _, err := uc.repos.TaskRepo().FindByIDAllStates(ctx, uc.input.TaskID); err != nil {
		return nil, err
	}
	subtasks, err := uc.repos.SubtaskRepo().List(ctx, &task.SubtaskFilter{
		TaskID: &uc.input.TaskID,
		Status: uc.input.Status,
		Limit:  uc.input.Limit,
	})
	if err != nil {
		return nil, err
	}
	out := &ListSubtasksOutput{Subtasks: subtasks, Count: len(subtasks), Total: len(subtasks)}
	for _, s := range subtasks {
		if s.Status == core.StatusDone {
			out.Done++
		}
	}
	return out, nil
}
