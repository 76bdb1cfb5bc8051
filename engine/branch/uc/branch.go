package uc

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/agent"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/branch"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/repo"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
	"github.com/phamhung075/dhafnck-mcp-sub000/pkg/logger"
)

type CreateBranchInput struct {
	ProjectID   core.ID
	Name        string
	Description string
}

type CreateBranchOutput struct {
	Branch          *branch.Branch
	Context         *hierctx.Context
	PartialFailures []core.PartialFailure
}

// CreateBranch creates a task tree under a project together with its
// branch context. A context failure rolls the branch back.
type CreateBranch struct {
	repos    repo.Provider
	contexts *hierctx.Service
	now      func() time.Time
	input    CreateBranchInput
}

func NewCreateBranch(repos repo.Provider, contexts *hierctx.Service, now func() time.Time, input CreateBranchInput) *CreateBranch {
	return &CreateBranch{repos: repos, contexts: contexts, now: now, input: input}
}

func (uc *CreateBranch) Execute(ctx context.Context) (*CreateBranchOutput, error) {
	in := uc.input
	p, err := uc.repos.ProjectRepo().Get(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	b, err := branch.New(p.ID, in.Name, in.Description, uc.now())
	if err != nil {
		return nil, err
	}
	if err := uc.repos.BranchRepo().Create(ctx, b); err != nil {
		return nil, err
	}
	created, err := uc.contexts.Create(ctx, hierctx.CreateInput{
		Level:     core.LevelBranch,
		ID:        b.ID,
		ProjectID: p.ID,
		UserID:    p.UserID,
		Data: map[string]any{
			"project_id": p.ID.String(),
			"branch_info": map[string]any{
				"name":        b.Name,
				"description": b.Description,
			},
			"branch_settings": map[string]any{},
		},
	})
	if err != nil {
		logger.FromContext(ctx).Error("branch context creation failed, rolling back branch",
			"branch_id", b.ID, "error", err)
		if delErr := uc.repos.BranchRepo().Delete(ctx, b.ID); delErr != nil {
			return &CreateBranchOutput{
				PartialFailures: []core.PartialFailure{{
					Operation: "rollback_branch",
					Error:     delErr.Error(),
					Impact:    fmt.Sprintf("orphan branch %s requires operator remediation", b.ID),
				}},
			}, core.NewError(core.CodeContextCreationFailed,
				"branch context creation failed and rollback left an orphan branch", map[string]any{
					"orphan_branch_id": b.ID.String(),
					"cause":            err.Error(),
				})
		}
		return nil, core.NewError(core.CodeContextCreationFailed,
			"branch context creation failed; branch was rolled back", map[string]any{
				"cause": err.Error(),
			})
	}
	return &CreateBranchOutput{Branch: b, Context: created}, nil
}

type GetBranchInput struct {
	BranchID core.ID
}

type GetBranch struct {
	repos repo.Provider
	input GetBranchInput
}

func NewGetBranch(repos repo.Provider, input GetBranchInput) *GetBranch {
	return &GetBranch{repos: repos, input: input}
}

func (uc *GetBranch) Execute(ctx context.Context) (*branch.Branch, error) {
	return uc.repos.BranchRepo().Get(ctx, uc.input.BranchID)
}

type ListBranchesInput struct {
	Filter *branch.Filter
}

type ListBranchesOutput struct {
	Branches []*branch.Branch
	Count    int
}

type ListBranches struct {
	repos repo.Provider
	input ListBranchesInput
}

func NewListBranches(repos repo.Provider, input ListBranchesInput) *ListBranches {
	return &ListBranches{repos: repos, input: input}
}

func (uc *ListBranches) Execute(ctx context.Context) (*ListBranchesOutput, error) {
	filter := uc.input.Filter
	if filter == nil {
		filter = &branch.Filter{}
	}
	branches, err := uc.repos.BranchRepo().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ListBranchesOutput{Branches: branches, Count: len(branches)}, nil
}

type UpdateBranchInput struct {
	BranchID    core.ID
	Name        *string
	Description *string
	Priority    *string
}

type UpdateBranch struct {
	repos repo.Provider
	now   func() time.Time
	input UpdateBranchInput
}

func NewUpdateBranch(repos repo.Provider, now func() time.Time, input UpdateBranchInput) *UpdateBranch {
	return &UpdateBranch{repos: repos, now: now, input: input}
}

func (uc *UpdateBranch) Execute(ctx context.Context) (*branch.Branch, error) {
	in := uc.input
	b, err := uc.repos.BranchRepo().Get(ctx, in.BranchID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if *in.Name == "" {
			return nil, core.NewError(core.CodeMissingField, "branch name cannot be empty", map[string]any{
				"field": "git_branch_name",
			})
		}
		b.Name = *in.Name
	}
	if in.Description != nil {
		b.Description = *in.Description
	}
	if in.Priority != nil {
		priority, err := core.ParsePriority(*in.Priority)
		if err != nil {
			return nil, err
		}
		b.Priority = priority
	}
	b.UpdatedAt = uc.now()
	if err := uc.repos.BranchRepo().Update(ctx, b.ID, b); err != nil {
		return nil, err
	}
	return b, nil
}

type DeleteBranchInput struct {
	BranchID core.ID
	// Force allows deleting a branch that still has tasks.
	Force bool
}

type DeleteBranchOutput struct {
	DeletedTasks    int
	PartialFailures []core.PartialFailure
}

// DeleteBranch removes a branch and cascades over its tasks and their
// subtasks and contexts.
type DeleteBranch struct {
	repos    repo.Provider
	contexts *hierctx.Service
	now      func() time.Time
	input    DeleteBranchInput
}

func NewDeleteBranch(repos repo.Provider, contexts *hierctx.Service, now func() time.Time, input DeleteBranchInput) *DeleteBranch {
	return &DeleteBranch{repos: repos, contexts: contexts, now: now, input: input}
}

func (uc *DeleteBranch) Execute(ctx context.Context) (*DeleteBranchOutput, error) {
	in := uc.input
	b, err := uc.repos.BranchRepo().Get(ctx, in.BranchID)
	if err != nil {
		return nil, err
	}
	tasks, err := uc.repos.TaskRepo().List(ctx, &task.Filter{BranchID: &b.ID})
	if err != nil {
		return nil, err
	}
	if len(tasks) > 0 && !in.Force {
		return nil, core.NewError(core.CodeConstraintViolation,
			fmt.Sprintf("branch has %d tasks; pass force to delete them too", len(tasks)),
			map[string]any{
				"git_branch_id": b.ID.String(),
				"task_count":    len(tasks),
			})
	}
	out := &DeleteBranchOutput{}
	err = uc.repos.WithTx(ctx, func(ctx context.Context) error {
		for _, t := range tasks {
			subtasks, err := uc.repos.SubtaskRepo().List(ctx, &task.SubtaskFilter{TaskID: &t.ID})
			if err != nil {
				return err
			}
			for _, s := range subtasks {
				if err := uc.repos.SubtaskRepo().Delete(ctx, s.ID); err != nil {
					return err
				}
			}
			if err := uc.repos.TaskRepo().Delete(ctx, t.ID); err != nil {
				return err
			}
			out.DeletedTasks++
		}
		return uc.repos.BranchRepo().Delete(ctx, b.ID)
	})
	if err != nil {
		return nil, err
	}
	if err := uc.contexts.Delete(ctx, core.LevelBranch, b.ID); err != nil && !core.IsNotFound(err) {
		out.PartialFailures = append(out.PartialFailures, core.PartialFailure{
			Operation: "delete_branch_context",
			Error:     err.Error(),
			Impact:    fmt.Sprintf("context for deleted branch %s remains", b.ID),
		})
	}
	uc.releaseAgent(ctx, b, out)
	return out, nil
}

func (uc *DeleteBranch) releaseAgent(ctx context.Context, b *branch.Branch, out *DeleteBranchOutput) {
	if b.AssignedAgentID.IsZero() {
		return
	}
	a, err := uc.repos.AgentRepo().Get(ctx, b.AssignedAgentID)
	if err == nil {
		a.UnassignTree(b.ID, uc.now())
		err = uc.repos.AgentRepo().Update(ctx, a.ID, a)
	}
	if err != nil {
		out.PartialFailures = append(out.PartialFailures, core.PartialFailure{
			Operation: "unassign_agent",
			Error:     err.Error(),
			Impact:    fmt.Sprintf("agent %s still lists deleted branch %s", b.AssignedAgentID, b.ID),
		})
	}
}

type AssignAgentInput struct {
	BranchID core.ID
	AgentID  core.ID
}

type AssignAgentOutput struct {
	Branch *branch.Branch
	Agent  *agent.Agent
	// Changed is false when the agent was already assigned to the branch.
	Changed bool
}

// AssignAgent binds an agent to a branch. An unknown agent id is
// auto-registered; assigning the same agent twice is a no-op.
type AssignAgent struct {
	repos repo.Provider
	now   func() time.Time
	input AssignAgentInput
}

func NewAssignAgent(repos repo.Provider, now func() time.Time, input AssignAgentInput) *AssignAgent {
	return &AssignAgent{repos: repos, now: now, input: input}
}

func (uc *AssignAgent) Execute(ctx context.Context) (*AssignAgentOutput, error) {
	in := uc.input
	b, err := uc.repos.BranchRepo().Get(ctx, in.BranchID)
	if err != nil {
		return nil, err
	}
	a, err := uc.ensureAgent(ctx, in.AgentID)
	if err != nil {
		return nil, err
	}
	if b.AssignedAgentID == a.ID {
		return &AssignAgentOutput{Branch: b, Agent: a, Changed: false}, nil
	}
	if !b.AssignedAgentID.IsZero() {
		uc.releasePrevious(ctx, b)
	}
	now := uc.now()
	b.AssignedAgentID = a.ID
	b.UpdatedAt = now
	a.AssignTree(b.ID, now)
	if err := uc.repos.BranchRepo().Update(ctx, b.ID, b); err != nil {
		return nil, err
	}
	if err := uc.repos.AgentRepo().Update(ctx, a.ID, a); err != nil {
		return nil, err
	}
	return &AssignAgentOutput{Branch: b, Agent: a, Changed: true}, nil
}

func (uc *AssignAgent) ensureAgent(ctx context.Context, agentID core.ID) (*agent.Agent, error) {
	a, err := uc.repos.AgentRepo().Get(ctx, agentID)
	if err == nil {
		return a, nil
	}
	if !core.IsNotFound(err) {
		return nil, err
	}
	a, err = agent.New(agentID, agentID.String(), "auto-registered on assignment", uc.now())
	if err != nil {
		return nil, err
	}
	if err := uc.repos.AgentRepo().Create(ctx, a); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("auto-registered agent on branch assignment", "agent_id", agentID)
	return a, nil
}

func (uc *AssignAgent) releasePrevious(ctx context.Context, b *branch.Branch) {
	prev, err := uc.repos.AgentRepo().Get(ctx, b.AssignedAgentID)
	if err != nil {
		return
	}
	prev.UnassignTree(b.ID, uc.now())
	if err := uc.repos.AgentRepo().Update(ctx, prev.ID, prev); err != nil {
		logger.FromContext(ctx).Warn("previous agent unassign failed",
			"agent_id", prev.ID, "branch_id", b.ID, "error", err)
	}
}

type UnassignAgentInput struct {
	BranchID core.ID
}

type UnassignAgentOutput struct {
	Branch  *branch.Branch
	Changed bool
}

// UnassignAgent clears the branch's agent binding; a branch without an
// agent is a no-op.
type UnassignAgent struct {
	repos repo.Provider
	now   func() time.Time
	input UnassignAgentInput
}

func NewUnassignAgent(repos repo.Provider, now func() time.Time, input UnassignAgentInput) *UnassignAgent {
	return &UnassignAgent{repos: repos, now: now, input: input}
}

func (uc *UnassignAgent) Execute(ctx context.Context) (*UnassignAgentOutput, error) {
	b, err := uc.repos.BranchRepo().Get(ctx, uc.input.BranchID)
	if err != nil {
		return nil, err
	}
	if b.AssignedAgentID.IsZero() {
		return &UnassignAgentOutput{Branch: b, Changed: false}, nil
	}
	agentID := b.AssignedAgentID
	now := uc.now()
	b.AssignedAgentID = ""
	b.UpdatedAt = now
	if err := uc.repos.BranchRepo().Update(ctx, b.ID, b); err != nil {
		return nil, err
	}
	if a, err := uc.repos.AgentRepo().Get(ctx, agentID); err == nil {
		a.UnassignTree(b.ID, now)
		if err := uc.repos.AgentRepo().Update(ctx, a.ID, a); err != nil {
			logger.FromContext(ctx).Warn("agent tree unassign failed",
				"agent_id", agentID, "branch_id", b.ID, "error", err)
		}
	}
	return &UnassignAgentOutput{Branch: b, Changed: true}, nil
}

type GetStatisticsInput struct {
	BranchID core.ID
}

// GetStatistics computes the read-only progress summary of a branch from
// its live task set rather than the cached counters.
type GetStatistics struct {
	repos repo.Provider
	input GetStatisticsInput
}

func NewGetStatistics(repos repo.Provider, input GetStatisticsInput) *GetStatistics {
	return &GetStatistics{repos: repos, input: input}
}

func (uc *GetStatistics) Execute(ctx context.Context) (*branch.Statistics, error) {
	b, err := uc.repos.BranchRepo().Get(ctx, uc.input.BranchID)
	if err != nil {
		return nil, err
	}
	tasks, err := uc.repos.TaskRepo().List(ctx, &task.Filter{BranchID: &b.ID})
	if err != nil {
		return nil, err
	}
	stats := &branch.Statistics{
		TaskCount:       len(tasks),
		AssignedAgentID: b.AssignedAgentID,
		Status:          b.Status,
		Priority:        b.Priority,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	for _, t := range tasks {
		switch t.Status {
		case core.StatusDone:
			stats.CompletedTaskCount++
		case core.StatusInProgress:
			stats.InProgressTasks++
		}
	}
	if stats.TaskCount > 0 {
		stats.ProgressPercentage = int(math.Round(
			100 * float64(stats.CompletedTaskCount) / float64(stats.TaskCount)))
	}
	return stats, nil
}

type ArchiveBranchInput struct {
	BranchID core.ID
}

// ArchiveBranch moves a branch out of active listings without deleting
// its tasks or context.
type ArchiveBranch struct {
	repos repo.Provider
	now   func() time.Time
	input ArchiveBranchInput
}

func NewArchiveBranch(repos repo.Provider, now func() time.Time, input ArchiveBranchInput) *ArchiveBranch {
	return &ArchiveBranch{repos: repos, now: now, input: input}
}

func (uc *ArchiveBranch) Execute(ctx context.Context) (*branch.Branch, error) {
	b, err := uc.repos.BranchRepo().Get(ctx, uc.input.BranchID)
	if err != nil {
		return nil, err
	}
	if b.Status == branch.StatusArchived {
		return nil, core.NewError(core.CodeInvalidState, "branch is already archived", map[string]any{
			"git_branch_id": b.ID.String(),
		})
	}
	b.Status = branch.StatusArchived
	b.UpdatedAt = uc.now()
	if err := uc.repos.BranchRepo().Update(ctx, b.ID, b); err != nil {
		return nil, err
	}
	return b, nil
}

type RestoreBranchInput struct {
	BranchID core.ID
}

// RestoreBranch returns an archived branch to active state.
type RestoreBranch struct {
	repos repo.Provider
	now   func() time.Time
	input RestoreBranchInput
}

func NewRestoreBranch(repos repo.Provider, now func() time.Time, input RestoreBranchInput) *RestoreBranch {
	return &RestoreBranch{repos: repos, now: now, input: input}
}

func (uc *RestoreBranch) Execute(ctx context.Context) (*branch.Branch, error) {
	b, err := uc.repos.BranchRepo().Get(ctx, uc.input.BranchID)
	if err != nil {
		return nil, err
	}
	if b.Status != branch.StatusArchived {
		return nil, core.NewError(core.CodeInvalidState, "branch is not archived", map[string]any{
			"git_branch_id": b.ID.String(),
			"status":        string(b.Status),
		})
	}
	b.Status = branch.StatusActive
	b.UpdatedAt = uc.now()
	if err := uc.repos.BranchRepo().Update(ctx, b.ID, b); err != nil {
		return nil, err
	}
	return b, nil
}
