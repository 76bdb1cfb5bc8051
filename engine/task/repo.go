package task

import (
	"context"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

// Filter narrows task listings. Limit is clamped by the dispatcher to
// 1..100 before it reaches the repository.
type Filter struct {
	BranchID  *core.ID
	Status    *core.TaskStatus
	Priority  *core.Priority
	Assignees []core.ID
	Labels    []string
	Query     string
	Limit     int
}

type Repository interface {
	Get(ctx context.Context, id core.ID) (*Task, error)
	Create(ctx context.Context, t *Task) error
	Update(ctx context.Context, id core.ID, t *Task) error
	Delete(ctx context.Context, id core.ID) error
	List(ctx context.Context, filter *Filter) ([]*Task, error)
	Exists(ctx context.Context, id core.ID) (bool, error)
	// FindByIDAllStates searches active and archived tasks; dependency
	// targets may already be completed and archived.
	FindByIDAllStates(ctx context.Context, id core.ID) (*Task, error)
	// FindDependents returns tasks that declare a dependency on id.
	FindDependents(ctx context.Context, id core.ID) ([]*Task, error)
}

type SubtaskFilter struct {
	TaskID *core.ID
	Status *core.TaskStatus
	Limit  int
}

type SubtaskRepository interface {
	Get(ctx context.Context, id core.ID) (*Subtask, error)
	Create(ctx context.Context, s *Subtask) error
	Update(ctx context.Context, id core.ID, s *Subtask) error
	Delete(ctx context.Context, id core.ID) error
	List(ctx context.Context, filter *SubtaskFilter) ([]*Subtask, error)
	Exists(ctx context.Context, id core.ID) (bool, error)
}
