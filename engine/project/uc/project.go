package uc

import (
	"context"
	"fmt"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/branch"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/repo"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/project"
	"github.com/phamhung075/dhafnck-mcp-sub000/pkg/logger"
)

type CreateProjectInput struct {
	Name        string
	Description string
	UserID      string
}

type CreateProjectOutput struct {
	Project         *project.Project
	Context         *hierctx.Context
	PartialFailures []core.PartialFailure
}

// CreateProject creates a project and its project context. The context is
// created synchronously; a context failure rolls the project back.
type CreateProject struct {
	repos    repo.Provider
	contexts *hierctx.Service
	now      func() time.Time
	input    CreateProjectInput
}

func NewCreateProject(repos repo.Provider, contexts *hierctx.Service, now func() time.Time, input CreateProjectInput) *CreateProject {
	return &CreateProject{repos: repos, contexts: contexts, now: now, input: input}
}

func (uc *CreateProject) Execute(ctx context.Context) (*CreateProjectOutput, error) {
	p, err := project.New(uc.input.Name, uc.input.Description, uc.input.UserID, uc.now())
	if err != nil {
		return nil, err
	}
	if err := uc.repos.ProjectRepo().Create(ctx, p); err != nil {
		return nil, err
	}
	data := map[string]any{
		"project_info": map[string]any{
			"name":        p.Name,
			"description": p.Description,
		},
		"project_settings": map[string]any{},
	}
	if p.UserID != "" {
		data["metadata"] = map[string]any{"user_id": p.UserID}
	}
	created, err := uc.contexts.Create(ctx, hierctx.CreateInput{
		Level:  core.LevelProject,
		ID:     p.ID,
		UserID: p.UserID,
		Data:   data,
	})
	if err != nil {
		logger.FromContext(ctx).Error("project context creation failed, rolling back project",
			"project_id", p.ID, "error", err)
		if delErr := uc.repos.ProjectRepo().Delete(ctx, p.ID); delErr != nil {
			return &CreateProjectOutput{
				PartialFailures: []core.PartialFailure{{
					Operation: "rollback_project",
					Error:     delErr.Error(),
					Impact:    fmt.Sprintf("orphan project %s requires operator remediation", p.ID),
				}},
			}, core.NewError(core.CodeContextCreationFailed,
				"project context creation failed and rollback left an orphan project", map[string]any{
					"orphan_project_id": p.ID.String(),
					"cause":             err.Error(),
				})
		}
		return nil, core.NewError(core.CodeContextCreationFailed,
			"project context creation failed; project was rolled back", map[string]any{
				"cause": err.Error(),
			})
	}
	return &CreateProjectOutput{Project: p, Context: created}, nil
}

type GetProjectInput struct {
	ProjectID core.ID
	// Name resolves the project by unique name when ProjectID is empty.
	Name string
}

// GetProject fetches one project by id or by name.
type GetProject struct {
	repos repo.Provider
	input GetProjectInput
}

func NewGetProject(repos repo.Provider, input GetProjectInput) *GetProject {
	return &GetProject{repos: repos, input: input}
}

func (uc *GetProject) Execute(ctx context.Context) (*project.Project, error) {
	if !uc.input.ProjectID.IsZero() {
		return uc.repos.ProjectRepo().Get(ctx, uc.input.ProjectID)
	}
	if uc.input.Name == "" {
		return nil, core.NewError(core.CodeMissingField, "project_id or name is required", map[string]any{
			"field": "project_id",
		})
	}
	projects, err := uc.repos.ProjectRepo().List(ctx, &project.Filter{})
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.Name == uc.input.Name {
			return p, nil
		}
	}
	return nil, core.NewError(core.CodeNotFound, fmt.Sprintf("project not found: %s", uc.input.Name),
		map[string]any{"entity": "project", "name": uc.input.Name})
}

type ListProjectsInput struct {
	Filter *project.Filter
}

type ListProjectsOutput struct {
	Projects []*project.Project
	Count    int
}

type ListProjects struct {
	repos repo.Provider
	input ListProjectsInput
}

func NewListProjects(repos repo.Provider, input ListProjectsInput) *ListProjects {
	return &ListProjects{repos: repos, input: input}
}

func (uc *ListProjects) Execute(ctx context.Context) (*ListProjectsOutput, error) {
	filter := uc.input.Filter
	if filter == nil {
		filter = &project.Filter{}
	}
	projects, err := uc.repos.ProjectRepo().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ListProjectsOutput{Projects: projects, Count: len(projects)}, nil
}

type UpdateProjectInput struct {
	ProjectID   core.ID
	Name        *string
	Description *string
}

// UpdateProject partially updates project fields and mirrors them into the
// project context.
type UpdateProject struct {
	repos    repo.Provider
	contexts *hierctx.Service
	now      func() time.Time
	input    UpdateProjectInput
}

func NewUpdateProject(repos repo.Provider, contexts *hierctx.Service, now func() time.Time, input UpdateProjectInput) *UpdateProject {
	return &UpdateProject{repos: repos, contexts: contexts, now: now, input: input}
}

func (uc *UpdateProject) Execute(ctx context.Context) (*project.Project, error) {
	in := uc.input
	p, err := uc.repos.ProjectRepo().Get(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		trimmed := *in.Name
		if trimmed == "" {
			return nil, core.NewError(core.CodeMissingField, "project name cannot be empty", map[string]any{
				"field": "name",
			})
		}
		p.Name = trimmed
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	p.UpdatedAt = uc.now()
	if err := uc.repos.ProjectRepo().Update(ctx, p.ID, p); err != nil {
		return nil, err
	}
	if _, err := uc.contexts.Update(ctx, hierctx.UpdateInput{
		Level: core.LevelProject,
		ID:    p.ID,
		Data: map[string]any{
			"project_info": map[string]any{
				"name":        p.Name,
				"description": p.Description,
			},
		},
	}); err != nil && !core.IsNotFound(err) {
		logger.FromContext(ctx).Warn("project context sync failed",
			"project_id", p.ID, "error", err)
	}
	return p, nil
}

type DeleteProjectInput struct {
	ProjectID core.ID
	// Force allows deleting a project that still has branches.
	Force bool
}

type DeleteProjectOutput struct {
	DeletedBranches int
	PartialFailures []core.PartialFailure
}

// DeleteProject removes a project, cascading over its branches and their
// tasks. Without Force a project holding branches is protected.
type DeleteProject struct {
	repos    repo.Provider
	contexts *hierctx.Service
	input    DeleteProjectInput
}

func NewDeleteProject(repos repo.Provider, contexts *hierctx.Service, input DeleteProjectInput) *DeleteProject {
	return &DeleteProject{repos: repos, contexts: contexts, input: input}
}

func (uc *DeleteProject) Execute(ctx context.Context) (*DeleteProjectOutput, error) {
	in := uc.input
	p, err := uc.repos.ProjectRepo().Get(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	branches, err := uc.repos.BranchRepo().List(ctx, &branch.Filter{
		ProjectID:       &p.ID,
		IncludeArchived: true,
	})
	if err != nil {
		return nil, err
	}
	if len(branches) > 0 && !in.Force {
		return nil, core.NewError(core.CodeConstraintViolation,
			fmt.Sprintf("project has %d branches; pass force to delete them too", len(branches)),
			map[string]any{
				"project_id":   p.ID.String(),
				"branch_count": len(branches),
			})
	}
	out := &DeleteProjectOutput{}
	err = uc.repos.WithTx(ctx, func(ctx context.Context) error {
		for _, b := range branches {
			if err := uc.repos.BranchRepo().Delete(ctx, b.ID); err != nil {
				return err
			}
			out.DeletedBranches++
		}
		return uc.repos.ProjectRepo().Delete(ctx, p.ID)
	})
	if err != nil {
		return nil, err
	}
	if err := uc.contexts.Delete(ctx, core.LevelProject, p.ID); err != nil && !core.IsNotFound(err) {
		out.PartialFailures = append(out.PartialFailures, core.PartialFailure{
			Operation: "delete_project_context",
			Error:     err.Error(),
			Impact:    fmt.Sprintf("context for deleted project %s remains", p.ID),
		})
	}
	return out, nil
}

type HealthCheckInput struct {
	ProjectID core.ID
}

type HealthCheckOutput struct {
	Project       *project.Project
	BranchCount   int
	ActiveBranch  int
	TotalTasks    int
	DoneTasks     int
	OverallStatus string
	Issues        []string
}

// HealthCheck summarizes the structural health of a project: branch and
// task counts plus detected anomalies such as branches without agents.
type HealthCheck struct {
	repos repo.Provider
	input HealthCheckInput
}

func NewHealthCheck(repos repo.Provider, input HealthCheckInput) *HealthCheck {
	return &HealthCheck{repos: repos, input: input}
}

func (uc *HealthCheck) Execute(ctx context.Context) (*HealthCheckOutput, error) {
	p, err := uc.repos.ProjectRepo().Get(ctx, uc.input.ProjectID)
	if err != nil {
		return nil, err
	}
	branches, err := uc.repos.BranchRepo().List(ctx, &branch.Filter{
		ProjectID:       &p.ID,
		IncludeArchived: true,
	})
	if err != nil {
		return nil, err
	}
	out := &HealthCheckOutput{Project: p, BranchCount: len(branches), OverallStatus: "healthy"}
	for _, b := range branches {
		if b.Status == branch.StatusActive {
			out.ActiveBranch++
			if b.AssignedAgentID.IsZero() && b.TaskCount > b.CompletedTaskCount {
				out.Issues = append(out.Issues,
					fmt.Sprintf("branch %s has open tasks but no assigned agent", b.Name))
			}
		}
		out.TotalTasks += b.TaskCount
		out.DoneTasks += b.CompletedTaskCount
	}
	if len(out.Issues) > 0 {
		out.OverallStatus = "degraded"
	}
	return out, nil
}
