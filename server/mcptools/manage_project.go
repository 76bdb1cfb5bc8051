package mcptools

import (
	"context"
	"fmt"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/guidance"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/project"
	projectuc "github.com/phamhung075/dhafnck-mcp-sub000/engine/project/uc"
)

var projectActions = []string{"create", "get", "list", "update", "delete", "health_check"}

func (s *Server) handleManageProject(ctx context.Context, args map[string]any) *core.Response {
	action := stringArg(args, "action")
	operation := "manage_project." + action
	switch action {
	case "create":
		return s.projectCreate(ctx, operation, args)
	case "get":
		return s.projectGet(ctx, operation, args)
	case "list":
		return s.projectList(ctx, operation, args)
	case "update":
		return s.projectUpdate(ctx, operation, args)
	case "delete":
		return s.projectDelete(ctx, operation, args)
	case "health_check":
		return s.projectHealthCheck(ctx, operation, args)
	default:
		return s.fail("manage_project", unknownAction("manage_project", action, projectActions))
	}
}

func (s *Server) projectCreate(ctx context.Context, operation string, args map[string]any) *core.Response {
	name, err := requiredArg(args, "name")
	if err != nil {
		return s.fail(operation, err)
	}
	out, err := projectuc.NewCreateProject(s.repos, s.contexts, s.now, projectuc.CreateProjectInput{
		Name:        name,
		Description: stringArg(args, "description"),
		UserID:      stringArg(args, "user_id"),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	data := map[string]any{
		"project": out.Project.AsMap(),
	}
	if out.Context != nil {
		data["context"] = out.Context
	}
	return s.succeed(operation, data, out.PartialFailures, guidance.Input{
		State: map[string]any{
			"project_id": out.Project.ID.String(),
		},
		NextActions: []guidance.Action{{
			Tool: "manage_git_branch",
			Params: map[string]any{
				"action":          "create",
				"project_id":      out.Project.ID.String(),
				"git_branch_name": "<branch-name>",
			},
			Reason:     "A project needs at least one branch before tasks can be created",
			Confidence: 0.8,
			Priority:   guidance.PriorityHigh,
		}},
	})
}

func (s *Server) projectGet(ctx context.Context, operation string, args map[string]any) *core.Response {
	p, err := projectuc.NewGetProject(s.repos, projectuc.GetProjectInput{
		ProjectID: core.ID(stringArg(args, "project_id")),
		Name:      stringArg(args, "name"),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"project": p.AsMap(),
	}, nil, guidance.Input{
		State: map[string]any{"project_id": p.ID.String()},
	})
}

func (s *Server) projectList(ctx context.Context, operation string, args map[string]any) *core.Response {
	limit, err := coerceLimit(args["limit"])
	if err != nil {
		return s.fail(operation, err)
	}
	filter := &project.Filter{Limit: limit}
	if raw := stringArg(args, "status"); raw != "" {
		status, err := parseProjectStatus(raw)
		if err != nil {
			return s.fail(operation, err)
		}
		filter.Status = &status
	}
	if raw := stringArg(args, "user_id"); raw != "" {
		filter.UserID = &raw
	}
	out, err := projectuc.NewListProjects(s.repos, projectuc.ListProjectsInput{Filter: filter}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	projects := make([]map[string]any, 0, len(out.Projects))
	for _, p := range out.Projects {
		projects = append(projects, p.AsMap())
	}
	return s.succeed(operation, map[string]any{
		"projects": projects,
		"count":    out.Count,
	}, nil, guidance.Input{
		State: map[string]any{"project_count": out.Count},
	})
}

func (s *Server) projectUpdate(ctx context.Context, operation string, args map[string]any) *core.Response {
	projectID, err := requiredArg(args, "project_id")
	if err != nil {
		return s.fail(operation, err)
	}
	p, err := projectuc.NewUpdateProject(s.repos, s.contexts, s.now, projectuc.UpdateProjectInput{
		ProjectID:   core.ID(projectID),
		Name:        stringPtrArg(args, "name"),
		Description: stringPtrArg(args, "description"),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"project": p.AsMap(),
	}, nil, guidance.Input{
		State: map[string]any{"project_id": p.ID.String()},
	})
}

func (s *Server) projectDelete(ctx context.Context, operation string, args map[string]any) *core.Response {
	projectID, err := requiredArg(args, "project_id")
	if err != nil {
		return s.fail(operation, err)
	}
	var warnings []string
	force, warn := coerceBool(args["force"])
	if warn != "" {
		warnings = append(warnings, warn)
	}
	out, err := projectuc.NewDeleteProject(s.repos, s.contexts, projectuc.DeleteProjectInput{
		ProjectID: core.ID(projectID),
		Force:     force,
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"deleted_project_id": projectID,
		"deleted_branches":   out.DeletedBranches,
	}, out.PartialFailures, guidance.Input{
		State:    map[string]any{"project_id": projectID},
		Warnings: warnings,
	})
}

func (s *Server) projectHealthCheck(ctx context.Context, operation string, args map[string]any) *core.Response {
	projectID, err := requiredArg(args, "project_id")
	if err != nil {
		return s.fail(operation, err)
	}
	out, err := projectuc.NewHealthCheck(s.repos, projectuc.HealthCheckInput{
		ProjectID: core.ID(projectID),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"project":         out.Project.AsMap(),
		"status":          out.OverallStatus,
		"branch_count":    out.BranchCount,
		"active_branches": out.ActiveBranch,
		"total_tasks":     out.TotalTasks,
		"done_tasks":      out.DoneTasks,
		"issues":          out.Issues,
	}, nil, guidance.Input{
		State: map[string]any{
			"project_id":    projectID,
			"health_status": out.OverallStatus,
		},
	})
}

func parseProjectStatus(raw string) (project.Status, error) {
	switch project.Status(raw) {
	case project.StatusActive, project.StatusArchived:
		return project.Status(raw), nil
	default:
		return "", core.NewError(core.CodeValidationError,
			fmt.Sprintf("invalid project status %q", raw), map[string]any{
				"field":    "status",
				"expected": []string{string(project.StatusActive), string(project.StatusArchived)},
				"actual":   raw,
			})
	}
}
