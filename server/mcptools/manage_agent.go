package mcptools

import (
	"context"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/agent"
	agentuc "github.com/phamhung075/dhafnck-mcp-sub000/engine/agent/uc"
	branchuc "github.com/phamhung075/dhafnck-mcp-sub000/engine/branch/uc"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/guidance"
)

var agentActions = []string{
	"register", "unregister", "get", "list", "update",
	"assign", "unassign", "rebalance",
}

func (s *Server) handleManageAgent(ctx context.Context, args map[string]any) *core.Response {
	action := stringArg(args, "action")
	operation := "manage_agent." + action
	switch action {
	case "register":
		return s.agentRegister(ctx, operation, args)
	case "unregister":
		return s.agentUnregister(ctx, operation, args)
	case "get":
		return s.agentGet(ctx, operation, args)
	case "list":
		return s.agentList(ctx, operation, args)
	case "update":
		return s.agentUpdate(ctx, operation, args)
	case "assign":
		return s.agentAssign(ctx, operation, args)
	case "unassign":
		return s.agentUnassign(ctx, operation, args)
	case "rebalance":
		return s.agentRebalance(ctx, operation, args)
	default:
		return s.fail("manage_agent", unknownAction("manage_agent", action, agentActions))
	}
}

func (s *Server) agentRegister(ctx context.Context, operation string, args map[string]any) *core.Response {
	name, err := requiredArg(args, "name")
	if err != nil {
		return s.fail(operation, err)
	}
	capabilities, err := coerceStringList(args["capabilities"])
	if err != nil {
		return s.fail(operation, err)
	}
	out, err := agentuc.NewRegisterAgent(s.repos, s.now, agentuc.RegisterAgentInput{
		AgentID:      core.ID(stringArg(args, "agent_id")),
		Name:         name,
		Description:  stringArg(args, "description"),
		Capabilities: capabilities,
		ProjectID:    core.ID(stringArg(args, "project_id")),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"agent":   out.Agent.AsMap(),
		"created": out.Created,
	}, nil, guidance.Input{
		State: map[string]any{
			"agent_id": out.Agent.ID.String(),
			"created":  out.Created,
		},
	})
}

func (s *Server) agentUnregister(ctx context.Context, operation string, args map[string]any) *core.Response {
	agentID, err := requiredArg(args, "agent_id")
	if err != nil {
		return s.fail(operation, err)
	}
	out, err := agentuc.NewUnregisterAgent(s.repos, s.now, agentuc.UnregisterAgentInput{
		AgentID: core.ID(agentID),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	released := make([]string, 0, len(out.ReleasedBranches))
	for _, id := range out.ReleasedBranches {
		released = append(released, id.String())
	}
	return s.succeed(operation, map[string]any{
		"unregistered_agent_id": agentID,
		"released_branches":     released,
	}, nil, guidance.Input{
		State: map[string]any{"agent_id": agentID},
	})
}

func (s *Server) agentGet(ctx context.Context, operation string, args map[string]any) *core.Response {
	agentID, err := requiredArg(args, "agent_id")
	if err != nil {
		return s.fail(operation, err)
	}
	a, err := agentuc.NewGetAgent(s.repos, agentuc.GetAgentInput{
		AgentID: core.ID(agentID),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"agent": a.AsMap(),
	}, nil, guidance.Input{
		State: map[string]any{
			"agent_id": agentID,
			"status":   a.Status.String(),
		},
	})
}

func (s *Server) agentList(ctx context.Context, operation string, args map[string]any) *core.Response {
	limit, err := coerceLimit(args["limit"])
	if err != nil {
		return s.fail(operation, err)
	}
	filter := &agent.Filter{Limit: limit}
	if raw := stringArg(args, "project_id"); raw != "" {
		projectID := core.ID(raw)
		filter.ProjectID = &projectID
	}
	if raw := stringArg(args, "status"); raw != "" {
		status, err := core.ParseAgentStatus(raw)
		if err != nil {
			return s.fail(operation, err)
		}
		filter.Status = &status
	}
	out, err := agentuc.NewListAgents(s.repos, agentuc.ListAgentsInput{Filter: filter}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	agents := make([]map[string]any, 0, len(out.Agents))
	for _, a := range out.Agents {
		agents = append(agents, a.AsMap())
	}
	return s.succeed(operation, map[string]any{
		"agents": agents,
		"count":  out.Count,
	}, nil, guidance.Input{
		State: map[string]any{"agent_count": out.Count},
	})
}

func (s *Server) agentUpdate(ctx context.Context, operation string, args map[string]any) *core.Response {
	agentID, err := requiredArg(args, "agent_id")
	if err != nil {
		return s.fail(operation, err)
	}
	maxTasks, err := intPtrArg(args, "max_concurrent_tasks")
	if err != nil {
		return s.fail(operation, err)
	}
	in := agentuc.UpdateAgentInput{
		AgentID:            core.ID(agentID),
		Name:               stringPtrArg(args, "name"),
		Description:        stringPtrArg(args, "description"),
		Status:             stringPtrArg(args, "status"),
		MaxConcurrentTasks: maxTasks,
	}
	if raw, ok := args["capabilities"]; ok {
		capabilities, err := coerceStringList(raw)
		if err != nil {
			return s.fail(operation, err)
		}
		in.Capabilities = capabilities
	}
	a, err := agentuc.NewUpdateAgent(s.repos, s.now, in).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"agent": a.AsMap(),
	}, nil, guidance.Input{
		State: map[string]any{
			"agent_id": agentID,
			"status":   a.Status.String(),
		},
	})
}

// assign and unassign are the agent-centric spellings of the branch tool's
// assign_agent and unassign_agent; they share the same use cases.
func (s *Server) agentAssign(ctx context.Context, operation string, args map[string]any) *core.Response {
	agentID, err := requiredArg(args, "agent_id")
	if err != nil {
		return s.fail(operation, err)
	}
	branchID, err := requiredArg(args, "git_branch_id")
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
		"agent":      out.Agent.AsMap(),
		"git_branch": out.Branch.AsMap(),
		"changed":    out.Changed,
	}, nil, guidance.Input{
		State: map[string]any{
			"agent_id":      agentID,
			"git_branch_id": branchID,
			"changed":       out.Changed,
		},
	})
}

func (s *Server) agentUnassign(ctx context.Context, operation string, args map[string]any) *core.Response {
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

func (s *Server) agentRebalance(ctx context.Context, operation string, args map[string]any) *core.Response {
	projectID, err := requiredArg(args, "project_id")
	if err != nil {
		return s.fail(operation, err)
	}
	out, err := agentuc.NewRebalance(s.repos, agentuc.RebalanceInput{
		ProjectID: core.ID(projectID),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"suggestions": out.Suggestions,
		"count":       len(out.Suggestions),
	}, nil, guidance.Input{
		State: map[string]any{
			"project_id":       projectID,
			"suggestion_count": len(out.Suggestions),
		},
	})
}
