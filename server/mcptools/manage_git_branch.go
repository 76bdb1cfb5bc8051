package mcptools

import (
	"context"
	"fmt"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/branch"
	branchuc "github.com/phamhung075/dhafnck-mcp-sub000/engine/branch/uc"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/guidance"
)

var branchActions = []string{
	"create", "get", "list", "update", "delete",
	"assign_agent", "unassign_agent", "get_statistics", "archive", "restore",
}

func (s *Server) handleManageBranch(ctx context.Context, args map[string]any) *core.Response {
	action := stringArg(args, "action")
	operation := "manage_git_branch." + action
	switch action {
	case "create":
		return s.branchCreate(ctx, operation, args)
	case "get":
		return s.branchGet(ctx, operation, args)
	case "list":
		return s.branchList(ctx, operation, args)
	case "update":
		return s.branchUpdate(ctx, operation, args)
	case "delete":
		return s.branchDelete(ctx, operation, args)
	case "assign_agent":
		return s.branchAssignAgent(ctx, operation, args)
	case "unassign_agent":
		return s.branchUnassignAgent(ctx, operation, args)
	case "get_statistics":
		return s.branchStatistics(ctx, operation, args)
	case "archive":
		return s.branchArchive(ctx, operation, args)
	case "restore":
		return s.branchRestore(ctx, operation, args)
	default:
		return s.fail("manage_git_branch", unknownAction("manage_git_branch", action, branchActions))
	}
}

func (s *Server) branchCreate(ctx context.Context, operation string, args map[string]any) *core.Response {
	projectID, err := requiredArg(args, "project_id")
	if err != nil {
		return s.fail(operation, err)
	}
	name, err := requiredArg(args, "git_branch_name")
	if err != nil {
		return s.fail(operation, err)
	}
	out, err := branchuc.NewCreateBranch(s.repos, s.contexts, s.now, branchuc.CreateBranchInput{
		ProjectID:   core.ID(projectID),
		Name:        name,
		Description: stringArg(args, "description"),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	data := map[string]any{
		"git_branch": out.Branch.AsMap(),
	}
	if out.Context != nil {
		data["context"] = out.Context
	}
	return s.succeed(operation, data, out.PartialFailures, guidance.Input{
		State: map[string]any{
			"project_id":    projectID,
			"git_branch_id": out.Branch.ID.String(),
		},
		NextActions: []guidance.Action{{
			Tool: "manage_task",
			Params: map[string]any{
				"action":        "create",
				"git_branch_id": out.Branch.ID.String(),
				"title":         "<task title>",
			},
			Reason:     "Create the first task on the new branch",
			Confidence: 0.7,
			Priority:   guidance.PriorityMedium,
		}},
	})
}

func (s *Server) branchGet(ctx context.Context, operation string, args map[string]any) *core.Response {
	branchID, err := requiredArg(args, "git_branch_id")
	if err != nil {
		return s.fail(operation, err)
	}
	b, err := branchuc.NewGetBranch(s.repos, branchuc.GetBranchInput{
		BranchID: core.ID(branchID),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"git_branch": b.AsMap(),
	}, nil, guidance.Input{
		State: map[string]any{"git_branch_id": branchID},
	})
}

func (s *Server) branchList(ctx context.Context, operation string, args map[string]any) *core.Response {
	limit, err := coerceLimit(args["limit"])
	if err != nil {
		return s.fail(operation, err)
	}
	var warnings []string
	includeArchived, warn := coerceBool(args["include_archived"])
	if warn != "" {
		warnings = append(warnings, warn)
	}
	filter := &branch.Filter{Limit: limit, IncludeArchived: includeArchived}
	if raw := stringArg(args, "project_id"); raw != "" {
		projectID := core.ID(raw)
		filter.ProjectID = &projectID
	}
	if raw := stringArg(args, "status"); raw != "" {
		status, err := parseBranchStatus(raw)
		if err != nil {
			return s.fail(operation, err)
		}
		filter.Status = &status
	}
	if raw := stringArg(args, "agent_id"); raw != "" {
		agentID := core.ID(raw)
		filter.AssignedAgentID = &agentID
	}
	out, err := branchuc.NewListBranches(s.repos, branchuc.ListBranchesInput{Filter: filter}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	branches := make([]map[string]any, 0, len(out.Branches))
	for _, b := range out.Branches {
		branches = append(branches, b.AsMap())
	}
	return s.succeed(operation, map[string]any{
		"git_branches": branches,
		"count":        out.Count,
	}, nil, guidance.Input{
		State:    map[string]any{"branch_count": out.Count},
		Warnings: warnings,
	})
}

func (s *Server) branchUpdate(ctx context.Context, operation string, args map[string]any) *core.Response {
	branchID, err := requiredArg(args, "git_branch_id")
	if err != nil {
		return s.fail(operation, err)
	}
	b, err := branchuc.NewUpdateBranch(s.repos, s.now, branchuc.UpdateBranchInput{
		BranchID:    core.ID(branchID),
		Name:        stringPtrArg(args, "git_branch_name"),
		Description: stringPtrArg(args, "description"),
		Priority:    stringPtrArg(args, "priority"),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"git_branch": b.AsMap(),
	}, nil, guidance.Input{
		State: map[string]any{"git_branch_id": branchID},
	})
}

func (s *Server) branchDelete(ctx context.Context, operation string, args map[string]any) *core.Response {
	branchID, err := requiredArg(args, "git_branch_id")
	if err != nil {
		return s.fail(operation, err)
	}
	var warnings []string
	force, warn := coerceBool(args["force"])
	if warn != "" {
		warnings = append(warnings, warn)
	}
	out, err := branchuc.NewDeleteBranch(s.repos, s.contexts, s.now, branchuc.DeleteBranchInput{
		BranchID: core.ID(branchID),
		Force:    force,
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"deleted_branch_id": branchID,
		"deleted_tasks":     out.DeletedTasks,
	}, out.PartialFailures, guidance.Input{
		State:    map[string]any{"git_branch_id": branchID},
		Warnings: warnings,
	})
}

func (s *Server) branchAssignAgent(ctx context.Context, operation string, args map[string]any) *core.Response {
	branchID, err := requiredArg(args, "git_branch_id")
	if err != nil {
		return s.fail(operation, err)
	}
	agentID, err := requiredArg(args, "agent_id")
	if err != nil {
		return s.fail(operation, err)
	}
	out, err := branchuc.NewAssignAgent(s.repos, s.now, branchuc.AssignAgentInput{
		BranchID: core.ID(branchID),
		AgentID:  core.ID(agentID),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"git_branch": out.Branch.AsMap(),
		"agent":      out.Agent.AsMap(),
		"changed":    out.Changed,
	}, nil, guidance.Input{
		State: map[string]any{
			"git_branch_id": branchID,
			"agent_id":      agentID,
			"changed":       out.Changed,
		},
	})
}

func (s *Server) branchUnassignAgent(ctx context.Context, operation string, args map[string]any) *core.Response {
	branchID, err := requiredArg(args, "git_branch_id")
	if err != nil {
		return s.fail(operation, err)
	}
	out, err := branchuc.NewUnassignAgent(s.repos, s.now, branchuc.UnassignAgentInput{
		BranchID: core.ID(branchID),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"git_branch": out.Branch.AsMap(),
		"changed":    out.Changed,
	}, nil, guidance.Input{
		State: map[string]any{
			"git_branch_id": branchID,
			"changed":       out.Changed,
		},
	})
}

func (s *Server) branchStatistics(ctx context.Context, operation string, args map[string]any) *core.Response {
	branchID, err := requiredArg(args, "git_branch_id")
	if err != nil {
		return s.fail(operation, err)
	}
	stats, err := branchuc.NewGetStatistics(s.repos, branchuc.GetStatisticsInput{
		BranchID: core.ID(branchID),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"statistics": stats,
	}, nil, guidance.Input{
		State: map[string]any{
			"git_branch_id": branchID,
			"progress":      stats.ProgressPercentage,
		},
	})
}

func (s *Server) branchArchive(ctx context.Context, operation string, args map[string]any) *core.Response {
	branchID, err := requiredArg(args, "git_branch_id")
	if err != nil {
		return s.fail(operation, err)
	}
	b, err := branchuc.NewArchiveBranch(s.repos, s.now, branchuc.ArchiveBranchInput{
		BranchID: core.ID(branchID),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"git_branch": b.AsMap(),
	}, nil, guidance.Input{
		State: map[string]any{
			"git_branch_id": branchID,
			"status":        string(b.Status),
		},
	})
}

func (s *Server) branchRestore(ctx context.Context, operation string, args map[string]any) *core.Response {
	branchID, err := requiredArg(args, "git_branch_id")
	if err != nil {
		return s.fail(operation, err)
	}
	b, err := branchuc.NewRestoreBranch(s.repos, s.now, branchuc.RestoreBranchInput{
		BranchID: core.ID(branchID),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"git_branch": b.AsMap(),
	}, nil, guidance.Input{
		State: map[string]any{
			"git_branch_id": branchID,
			"status":        string(b.Status),
		},
	})
}

func parseBranchStatus(raw string) (branch.Status, error) {
	switch branch.Status(raw) {
	case branch.StatusActive, branch.StatusArchived:
		return branch.Status(raw), nil
	default:
		return "", core.NewError(core.CodeValidationError,
			fmt.Sprintf("invalid branch status %q", raw), map[string]any{
				"field":    "status",
				"expected": []string{string(branch.StatusActive), string(branch.StatusArchived)},
				"actual":   raw,
			})
	}
}
