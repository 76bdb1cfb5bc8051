package agent

import (
	"slices"
	"strings"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

// Agent is an autonomous worker registered with the orchestrator.
type Agent struct {
	ID                  core.ID           `json:"id"`
	Name                string            `json:"name"`
	Description         string            `json:"description,omitempty"`
	Capabilities        []core.Capability `json:"capabilities,omitempty"`
	Status              core.AgentStatus  `json:"status"`
	MaxConcurrentTasks  int               `json:"max_concurrent_tasks"`
	CurrentWorkload     int               `json:"current_workload"`
	AssignedProjects    []core.ID         `json:"assigned_projects,omitempty"`
	AssignedTrees       []core.ID         `json:"assigned_trees,omitempty"`
	ActiveTasks         []core.ID         `json:"active_tasks,omitempty"`
	CompletedTasks      int               `json:"completed_tasks"`
	AverageTaskDuration float64           `json:"average_task_duration"`
	SuccessRate         float64           `json:"success_rate"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

func New(id core.ID, name, description string, now time.Time) (*Agent, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.NewError(core.CodeMissingField, "agent name is required", map[string]any{
			"field": "name",
		})
	}
	if id.IsZero() {
		id = core.MustNewID()
	}
	return &Agent{
		ID:                 id,
		Name:               name,
		Description:        description,
		Status:             core.AgentAvailable,
		MaxConcurrentTasks: 1,
		SuccessRate:        100,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// StartTask accounts for a task starting: workload up, status busy when the
// agent is saturated.
func (a *Agent) StartTask(taskID core.ID, now time.Time) {
	if !slices.Contains(a.ActiveTasks, taskID) {
		a.ActiveTasks = append(a.ActiveTasks, taskID)
	}
	a.CurrentWorkload = len(a.ActiveTasks)
	if a.MaxConcurrentTasks > 0 && a.CurrentWorkload >= a.MaxConcurrentTasks {
		a.Status = core.AgentBusy
	}
	a.UpdatedAt = now
}

// CompleteTask accounts for a task finishing: workload down, status back to
// available when capacity frees up.
func (a *Agent) CompleteTask(taskID core.ID, now time.Time) {
	a.ActiveTasks = slices.DeleteFunc(a.ActiveTasks, func(id core.ID) bool { return id == taskID })
	a.CurrentWorkload = len(a.ActiveTasks)
	a.CompletedTasks++
	if a.Status == core.AgentBusy && (a.MaxConcurrentTasks == 0 || a.CurrentWorkload < a.MaxConcurrentTasks) {
		a.Status = core.AgentAvailable
	}
	a.UpdatedAt = now
}

// AssignTree appends a branch id to the agent's assigned trees, once.
func (a *Agent) AssignTree(branchID core.ID, now time.Time) {
	if !slices.Contains(a.AssignedTrees, branchID) {
		a.AssignedTrees = append(a.AssignedTrees, branchID)
	}
	a.UpdatedAt = now
}

// UnassignTree removes a branch id from the agent's assigned trees.
func (a *Agent) UnassignTree(branchID core.ID, now time.Time) {
	a.AssignedTrees = slices.DeleteFunc(a.AssignedTrees, func(id core.ID) bool { return id == branchID })
	a.UpdatedAt = now
}

func (a *Agent) AsMap() map[string]any {
	caps := make([]string, len(a.Capabilities))
	for i, c := range a.Capabilities {
		caps[i] = c.String()
	}
	return map[string]any{
		"id":                    a.ID.String(),
		"name":                  a.Name,
		"description":           a.Description,
		"capabilities":          caps,
		"status":                a.Status.String(),
		"max_concurrent_tasks":  a.MaxConcurrentTasks,
		"current_workload":      a.CurrentWorkload,
		"assigned_projects":     idsToStrings(a.AssignedProjects),
		"assigned_trees":        idsToStrings(a.AssignedTrees),
		"active_tasks":          idsToStrings(a.ActiveTasks),
		"completed_tasks":       a.CompletedTasks,
		"average_task_duration": a.AverageTaskDuration,
		"success_rate":          a.SuccessRate,
	}
}

func idsToStrings(ids []core.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
