package task

import (
	"slices"
	"strings"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
)

// Task is the unit of work tracked by the lifecycle service. Dependencies
// and subtasks are held as ids only; traversal goes through the repository.
type Task struct {
	ID                 core.ID         `json:"id"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	BranchID           core.ID         `json:"branch_id"`
	Status             core.TaskStatus `json:"status"`
	Priority           core.Priority   `json:"priority"`
	Details            string          `json:"details,omitempty"`
	EstimatedEffort    string          `json:"estimated_effort,omitempty"`
	DueDate            *time.Time      `json:"due_date,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	ContextID          core.ID         `json:"context_id,omitempty"`
	ProgressPercentage int             `json:"progress_percentage"`
	Assignees          []core.ID       `json:"assignees,omitempty"`
	Labels             []string        `json:"labels,omitempty"`
	Dependencies       []core.ID       `json:"dependencies,omitempty"`
	Subtasks           []core.ID       `json:"subtasks,omitempty"`
	ProgressNotes      []string        `json:"progress_notes,omitempty"`
	Archived           bool            `json:"archived,omitempty"`
}

// ValidateTitle rejects empty titles and titles above 200 characters.
// Over-long titles are rejected, never truncated.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return core.NewError(core.CodeMissingField, "title is required", map[string]any{
			"field": "title",
		})
	}
	if len([]rune(title)) > MaxTitleLength {
		return core.NewError(core.CodeValidationError, "title exceeds 200 characters", map[string]any{
			"field":    "title",
			"expected": "<= 200 characters",
			"actual":   len([]rune(title)),
		})
	}
	return nil
}

// ValidateDescription rejects descriptions above 1000 characters.
func ValidateDescription(description string) error {
	if len([]rune(description)) > MaxDescriptionLength {
		return core.NewError(core.CodeValidationError, "description exceeds 1000 characters", map[string]any{
			"field":    "description",
			"expected": "<= 1000 characters",
			"actual":   len([]rune(description)),
		})
	}
	return nil
}

// New builds a task in todo state with validated fields.
func New(branchID core.ID, title, description string, now time.Time) (*Task, error) {
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}
	if err := ValidateDescription(description); err != nil {
		return nil, err
	}
	if branchID.IsZero() {
		return nil, core.NewError(core.CodeMissingField, "git_branch_id is required", map[string]any{
			"field": "git_branch_id",
		})
	}
	return &Task{
		ID:          core.MustNewID(),
		Title:       title,
		Description: description,
		BranchID:    branchID,
		Status:      core.StatusTodo,
		Priority:    core.PriorityMedium,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// HasDependency reports whether the edge to dependencyID already exists.
func (t *Task) HasDependency(dependencyID core.ID) bool {
	return slices.Contains(t.Dependencies, dependencyID)
}

// AddDependency appends the edge if absent. Cycle checks happen in the use
// case where the full graph is reachable.
func (t *Task) AddDependency(dependencyID core.ID) error {
	if dependencyID == t.ID {
		return core.NewError(core.CodeConstraintViolation, "a task cannot depend on itself", map[string]any{
			"task_id": t.ID.String(),
		})
	}
	if !t.HasDependency(dependencyID) {
		t.Dependencies = append(t.Dependencies, dependencyID)
	}
	return nil
}

// RemoveDependency drops the edge; removing a missing edge is a no-op.
func (t *Task) RemoveDependency(dependencyID core.ID) {
	t.Dependencies = slices.DeleteFunc(t.Dependencies, func(id core.ID) bool { return id == dependencyID })
}

// MarkDone freezes the task: status done, progress pinned at 100.
func (t *Task) MarkDone(now time.Time) {
	t.Status = core.StatusDone
	t.ProgressPercentage = 100
	t.UpdatedAt = now
}

// IsActionable reports whether the task can be picked by next-task
// selection, not accounting for dependency completion.
func (t *Task) IsActionable() bool {
	return t.Status == core.StatusTodo || t.Status == core.StatusInProgress
}

func (t *Task) AsMap() map[string]any {
	m := map[string]any{
		"id":                  t.ID.String(),
		"title":               t.Title,
		"description":         t.Description,
		"git_branch_id":       t.BranchID.String(),
		"status":              t.Status.String(),
		"priority":            t.Priority.String(),
		"details":             t.Details,
		"estimated_effort":    t.EstimatedEffort,
		"progress_percentage": t.ProgressPercentage,
		"assignees":           idsToStrings(t.Assignees),
		"labels":              append([]string{}, t.Labels...),
		"dependencies":        idsToStrings(t.Dependencies),
		"subtasks":            idsToStrings(t.Subtasks),
		"created_at":          t.CreatedAt,
		"updated_at":          t.UpdatedAt,
	}
	if !t.ContextID.IsZero() {
		m["context_id"] = t.ContextID.String()
	}
	if t.DueDate != nil {
		m["due_date"] = t.DueDate.Format(time.RFC3339)
	}
	return m
}

func idsToStrings(ids []core.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
