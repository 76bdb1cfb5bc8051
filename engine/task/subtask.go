package task

import (
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

// Subtask is a child work item of a task. Completing subtasks drives the
// parent's progress percentage.
type Subtask struct {
	ID                 core.ID         `json:"id"`
	TaskID             core.ID         `json:"task_id"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	Status             core.TaskStatus `json:"status"`
	Priority           core.Priority   `json:"priority"`
	Assignees          []core.ID       `json:"assignees,omitempty"`
	ProgressPercentage int             `json:"progress_percentage"`
	ProgressNotes      []string        `json:"progress_notes,omitempty"`
	Blockers           []string        `json:"blockers,omitempty"`
	CompletionSummary  string          `json:"completion_summary,omitempty"`
	ImpactOnParent     string          `json:"impact_on_parent,omitempty"`
	InsightsFound      []string        `json:"insights_found,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
}

func NewSubtask(taskID core.ID, title, description string, now time.Time) (*Subtask, error) {
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}
	if err := ValidateDescription(description); err != nil {
		return nil, err
	}
	if taskID.IsZero() {
		return nil, core.NewError(core.CodeMissingField, "task_id is required", map[string]any{
			"field": "task_id",
		})
	}
	return &Subtask{
		ID:          core.MustNewID(),
		TaskID:      taskID,
		Title:       title,
		Description: description,
		Status:      core.StatusTodo,
		Priority:    core.PriorityMedium,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Complete closes the subtask with its summary and completion timestamp.
func (s *Subtask) Complete(summary, impactOnParent string, insights []string, now time.Time) {
	s.Status = core.StatusDone
	s.ProgressPercentage = 100
	s.CompletionSummary = summary
	s.ImpactOnParent = impactOnParent
	s.InsightsFound = append(s.InsightsFound, insights...)
	s.CompletedAt = &now
	s.UpdatedAt = now
}

func (s *Subtask) AsMap() map[string]any {
	m := map[string]any{
		"id":                  s.ID.String(),
		"task_id":             s.TaskID.String(),
		"title":               s.Title,
		"description":         s.Description,
		"status":              s.Status.String(),
		"priority":            s.Priority.String(),
		"assignees":           idsToStrings(s.Assignees),
		"progress_percentage": s.ProgressPercentage,
		"progress_notes":      append([]string{}, s.ProgressNotes...),
		"blockers":            append([]string{}, s.Blockers...),
		"completion_summary":  s.CompletionSummary,
		"impact_on_parent":    s.ImpactOnParent,
		"insights_found":      append([]string{}, s.InsightsFound...),
		"created_at":          s.CreatedAt,
		"updated_at":          s.UpdatedAt,
	}
	if s.CompletedAt != nil {
		m["completed_at"] = s.CompletedAt.Format(time.RFC3339)
	}
	return m
}
