package uc

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/agent"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/branch"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/repo"
	"github.com/phamhung075/dhafnck-mcp-sub000/pkg/logger"
)

type RegisterAgentInput struct {
	AgentID      core.ID
	Name         string
	Description  string
	Capabilities []string
	ProjectID    core.ID
}

type RegisterAgentOutput struct {
	Agent *agent.Agent
	// Created is false when the agent id was already registered; the
	// existing record is returned untouched.
	Created bool
}

// RegisterAgent registers a worker with the orchestrator. Registration is
// idempotent on the agent id.
type RegisterAgent struct {
	repos repo.Provider
	now   func() time.Time
	input RegisterAgentInput
}

func NewRegisterAgent(repos repo.Provider, now func() time.Time, input RegisterAgentInput) *RegisterAgent {
	return &RegisterAgent{repos: repos, now: now, input: input}
}

func (uc *RegisterAgent) Execute(ctx context.Context) (*RegisterAgentOutput, error) {
	in := uc.input
	if !in.AgentID.IsZero() {
		existing, err := uc.repos.AgentRepo().Get(ctx, in.AgentID)
		if err == nil {
			return &RegisterAgentOutput{Agent: existing, Created: false}, nil
		}
		if !core.IsNotFound(err) {
			return nil, err
		}
	}
	name := in.Name
	if name == "" && !in.AgentID.IsZero() {
		name = in.AgentID.String()
	}
	a, err := agent.New(in.AgentID, name, in.Description, uc.now())
	if err != nil {
		return nil, err
	}
	for _, raw := range in.Capabilities {
		capability, err := core.ParseCapability(raw)
		if err != nil {
			return nil, err
		}
		a.Capabilities = append(a.Capabilities, capability)
	}
	if !in.ProjectID.IsZero() {
		if _, err := uc.repos.ProjectRepo().Get(ctx, in.ProjectID); err != nil {
			return nil, err
		}
		a.AssignedProjects = append(a.AssignedProjects, in.ProjectID)
	}
	if err := uc.repos.AgentRepo().Create(ctx, a); err != nil {
		if core.IsAlreadyExists(err) {
			existing, getErr := uc.repos.AgentRepo().Get(ctx, a.ID)
			if getErr == nil {
				return &RegisterAgentOutput{Agent: existing, Created: false}, nil
			}
		}
		return nil, err
	}
	logger.FromContext(ctx).Info("agent registered", "agent_id", a.ID, "name", a.Name)
	return &RegisterAgentOutput{Agent: a, Created: true}, nil
}

type UnregisterAgentInput struct {
	AgentID core.ID
}

type UnregisterAgentOutput struct {
	ReleasedBranches []core.ID
}

// UnregisterAgent removes an agent and releases every branch assigned to
// it. Agents with active tasks are protected.
type UnregisterAgent struct {
	repos repo.Provider
	now   func() time.Time
	input UnregisterAgentInput
}

func NewUnregisterAgent(repos repo.Provider, now func() time.Time, input UnregisterAgentInput) *UnregisterAgent {
	return &UnregisterAgent{repos: repos, now: now, input: input}
}

func (uc *UnregisterAgent) Execute(ctx context.Context) (*UnregisterAgentOutput, error) {
	a, err := uc.repos.AgentRepo().Get(ctx, uc.input.AgentID)
	if err != nil {
		return nil, err
	}
	if len(a.ActiveTasks) > 0 {
		return nil, core.NewError(core.CodeInvalidState,
			fmt.Sprintf("agent has %d active tasks; complete or reassign them first", len(a.ActiveTasks)),
			map[string]any{
				"agent_id":     a.ID.String(),
				"active_tasks": len(a.ActiveTasks),
			})
	}
	out := &UnregisterAgentOutput{}
	branches, err := uc.repos.BranchRepo().List(ctx, &branch.Filter{
		AssignedAgentID: &a.ID,
		IncludeArchived: true,
	})
	if err != nil {
		return nil, err
	}
	now := uc.now()
	for _, b := range branches {
		b.AssignedAgentID = ""
		b.UpdatedAt = now
		if err := uc.repos.BranchRepo().Update(ctx, b.ID, b); err != nil {
			return nil, err
		}
		out.ReleasedBranches = append(out.ReleasedBranches, b.ID)
	}
	if err := uc.repos.AgentRepo().Delete(ctx, a.ID); err != nil {
		return nil, err
	}
	return out, nil
}

type GetAgentInput struct {
	AgentID core.ID
}

type GetAgent struct {
	repos repo.Provider
	input GetAgentInput
}

func NewGetAgent(repos repo.Provider, input GetAgentInput) *GetAgent {
	return &GetAgent{repos: repos, input: input}
}

func (uc *GetAgent) Execute(ctx context.Context) (*agent.Agent, error) {
	return uc.repos.AgentRepo().Get(ctx, uc.input.AgentID)
}

type ListAgentsInput struct {
	Filter *agent.Filter
}

type ListAgentsOutput struct {
	Agents []*agent.Agent
	Count  int
}

type ListAgents struct {
	repos repo.Provider
	input ListAgentsInput
}

func NewListAgents(repos repo.Provider, input ListAgentsInput) *ListAgents {
	return &ListAgents{repos: repos, input: input}
}

func (uc *ListAgents) Execute(ctx context.Context) (*ListAgentsOutput, error) {
	filter := uc.input.Filter
	if filter == nil {
		filter = &agent.Filter{}
	}
	agents, err := uc.repos.AgentRepo().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ListAgentsOutput{Agents: agents, Count: len(agents)}, nil
}

type UpdateAgentInput struct {
	AgentID            core.ID
	Name               *string
	Description        *string
	Capabilities       []string
	Status             *string
	MaxConcurrentTasks *int
}

type UpdateAgent struct {
	repos repo.Provider
	now   func() time.Time
	input UpdateAgentInput
}

func NewUpdateAgent(repos repo.Provider, now func() time.Time, input UpdateAgentInput) *UpdateAgent {
	return &UpdateAgent{repos: repos, now: now, input: input}
}

func (uc *UpdateAgent) Execute(ctx context.Context) (*agent.Agent, error) {
	in := uc.input
	a, err := uc.repos.AgentRepo().Get(ctx, in.AgentID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if *in.Name == "" {
			return nil, core.NewError(core.CodeMissingField, "agent name cannot be empty", map[string]any{
				"field": "name",
			})
		}
		a.Name = *in.Name
	}
	if in.Description != nil {
		a.Description = *in.Description
	}
	if in.Capabilities != nil {
		a.Capabilities = a.Capabilities[:0]
		for _, raw := range in.Capabilities {
			capability, err := core.ParseCapability(raw)
			if err != nil {
				return nil, err
			}
			a.Capabilities = append(a.Capabilities, capability)
		}
	}
	if in.Status != nil {
		status, err := core.ParseAgentStatus(*in.Status)
		if err != nil {
			return nil, err
		}
		a.Status = status
	}
	if in.MaxConcurrentTasks != nil {
		if *in.MaxConcurrentTasks < 0 {
			return nil, core.NewError(core.CodeValidationError,
				"max_concurrent_tasks cannot be negative", map[string]any{
					"field":  "max_concurrent_tasks",
					"actual": *in.MaxConcurrentTasks,
				})
		}
		a.MaxConcurrentTasks = *in.MaxConcurrentTasks
	}
	a.UpdatedAt = uc.now()
	if err := uc.repos.AgentRepo().Update(ctx, a.ID, a); err != nil {
		return nil, err
	}
	return a, nil
}

type RebalanceInput struct {
	ProjectID core.ID
}

type RebalanceSuggestion struct {
	BranchID  core.ID `json:"git_branch_id"`
	FromAgent core.ID `json:"from_agent,omitempty"`
	ToAgent   core.ID `json:"to_agent"`
	Reason    string  `json:"reason"`
}

type RebalanceOutput struct {
	Suggestions []RebalanceSuggestion
}

// Rebalance inspects agent workloads across a project and suggests moving
// unassigned or overloaded branches toward idle agents. Suggestions are
// advisory; no assignment is changed.
type Rebalance struct {
	repos repo.Provider
	input RebalanceInput
}

func NewRebalance(repos repo.Provider, input RebalanceInput) *Rebalance {
	return &Rebalance{repos: repos, input: input}
}

func (uc *Rebalance) Execute(ctx context.Context) (*RebalanceOutput, error) {
	if _, err := uc.repos.ProjectRepo().Get(ctx, uc.input.ProjectID); err != nil {
		return nil, err
	}
	branches, err := uc.repos.BranchRepo().List(ctx, &branch.Filter{ProjectID: &uc.input.ProjectID})
	if err != nil {
		return nil, err
	}
	agents, err := uc.repos.AgentRepo().List(ctx, &agent.Filter{})
	if err != nil {
		return nil, err
	}
	available := make([]*agent.Agent, 0, len(agents))
	for _, a := range agents {
		if a.Status == core.AgentAvailable {
			available = append(available, a)
		}
	}
	// Least-loaded first keeps the suggestions stable for a fixed store.
	sort.SliceStable(available, func(i, j int) bool {
		if available[i].CurrentWorkload != available[j].CurrentWorkload {
			return available[i].CurrentWorkload < available[j].CurrentWorkload
		}
		return available[i].ID < available[j].ID
	})
	out := &RebalanceOutput{}
	if len(available) == 0 {
		return out, nil
	}
	next := 0
	for _, b := range branches {
		if !b.AssignedAgentID.IsZero() || b.TaskCount == b.CompletedTaskCount {
			continue
		}
		candidate := available[next%len(available)]
		next++
		out.Suggestions = append(out.Suggestions, RebalanceSuggestion{
			BranchID: b.ID,
			ToAgent:  candidate.ID,
			Reason:   fmt.Sprintf("branch %s has open tasks and no agent", b.Name),
		})
	}
	return out, nil
}
