package branch

import (
	"strings"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Branch is a git-branch-scoped task tree under a project.
type Branch struct {
	ID                 core.ID       `json:"id"`
	ProjectID          core.ID       `json:"project_id"`
	Name               string        `json:"name"`
	Description        string        `json:"description,omitempty"`
	AssignedAgentID    core.ID       `json:"assigned_agent_id,omitempty"`
	Status             Status        `json:"status"`
	Priority           core.Priority `json:"priority"`
	TaskCount          int           `json:"task_count"`
	CompletedTaskCount int           `json:"completed_task_count"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func New(projectID core.ID, name, description string, now time.Time) (*Branch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.NewError(core.CodeMissingField, "branch name is required", map[string]any{
			"field": "git_branch_name",
		})
	}
	if projectID.IsZero() {
		return nil, core.NewError(core.CodeMissingField, "project_id is required", map[string]any{
			"field": "project_id",
		})
	}
	return &Branch{
		ID:          core.MustNewID(),
		ProjectID:   projectID,
		Name:        name,
		Description: description,
		Status:      StatusActive,
		Priority:    core.PriorityMedium,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Statistics is the read-only progress summary for a branch.
type Statistics struct {
	TaskCount          int           `json:"task_count"`
	CompletedTaskCount int           `json:"completed_task_count"`
	InProgressTasks    int           `json:"in_progress_tasks"`
	ProgressPercentage int           `json:"progress_percentage"`
	AssignedAgentID    core.ID       `json:"assigned_agent_id,omitempty"`
	Status             Status        `json:"status"`
	Priority           core.Priority `json:"priority"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func (b *Branch) AsMap() map[string]any {
	return map[string]any{
		"id":                   b.ID.String(),
		"project_id":           b.ProjectID.String(),
		"name":                 b.Name,
		"description":          b.Description,
		"assigned_agent_id":    b.AssignedAgentID.String(),
		"status":               string(b.Status),
		"priority":             b.Priority.String(),
		"task_count":           b.TaskCount,
		"completed_task_count": b.CompletedTaskCount,
		"created_at":           b.CreatedAt,
		"updated_at":           b.UpdatedAt,
	}
}
