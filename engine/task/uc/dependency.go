package uc

import (
	"context"
	"fmt"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/repo"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
)

type DependencyInput struct {
	TaskID       core.ID
	DependencyID core.ID
}

type DependencyOutput struct {
	Task *task.Task
	// Changed is false when the operation was an idempotent no-op: the
	// edge already existed on add, or was already absent on remove.
	Changed bool
}

// AddDependency adds a dependency edge. Self-dependencies and edges that
// would close a cycle are rejected; re-adding an existing edge is a no-op.
type AddDependency struct {
	repos repo.Provider
	now   func() time.Time
	input DependencyInput
}

func NewAddDependency(repos repo.Provider, now func() time.Time, input DependencyInput) *AddDependency {
	return &AddDependency{repos: repos, now: now, input: input}
}

func (uc *AddDependency) Execute(ctx context.Context) (*DependencyOutput, error) {
	in := uc.input
	t, err := uc.repos.TaskRepo().Get(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}
	// Dependency targets may be completed and archived; existence spans
	// both states.
	if _, err := uc.repos.TaskRepo().FindByIDAllStates(ctx, in.DependencyID); err != nil {
		return nil, core.NewError(core.CodeDependencyError,
			fmt.Sprintf("dependency task not found: %s", in.DependencyID), map[string]any{
				"dependency_id": in.DependencyID.String(),
			})
	}
	if t.HasDependency(in.DependencyID) {
		return &DependencyOutput{Task: t, Changed: false}, nil
	}
	if err := t.AddDependency(in.DependencyID); err != nil {
		return nil, err
	}
	if cyclePath, err := uc.findCycle(ctx, t); err != nil {
		return nil, err
	} else if cyclePath != nil {
		return nil, core.NewError(core.CodeConstraintViolation,
			"dependency would create a cycle", map[string]any{
				"task_id":       in.TaskID.String(),
				"dependency_id": in.DependencyID.String(),
				"cycle":         cyclePath,
			})
	}
	t.UpdatedAt = uc.now()
	if err := uc.repos.TaskRepo().Update(ctx, t.ID, t); err != nil {
		return nil, err
	}
	return &DependencyOutput{Task: t, Changed: true}, nil
}

// findCycle walks the dependency graph from t and returns the id path of a
// cycle through t, or nil.
func (uc *AddDependency) findCycle(ctx context.Context, t *task.Task) ([]string, error) {
	visited := map[core.ID]bool{}
	var path []string
	var walk func(current *task.Task) (bool, error)
	walk = func(current *task.Task) (bool, error) {
		path = append(path, current.ID.String())
		for _, depID := range current.Dependencies {
			if depID == t.ID {
				path = append(path, depID.String())
				return true, nil
			}
			if visited[depID] {
				continue
			}
			visited[depID] = true
			dep, err := uc.repos.TaskRepo().FindByIDAllStates(ctx, depID)
			if err != nil {
				if core.IsNotFound(err) {
					continue
				}
				return false, err
			}
			found, err := walk(dep)
			if err != nil || found {
				return found, err
			}
		}
		path = path[:len(path)-1]
		return false, nil
	}
	found, err := walk(t)
	if err != nil {
		return nil, err
	}
	if found {
		return path, nil
	}
	return nil, nil
}

// RemoveDependency drops a dependency edge; removing a missing edge is an
// idempotent no-op.
type RemoveDependency struct {
	repos repo.Provider
	now   func() time.Time
	input DependencyInput
}

func NewRemoveDependency(repos repo.Provider, now func() time.Time, input DependencyInput) *RemoveDependency {
	return &RemoveDependency{repos: repos, now: now, input: input}
}

func (uc *RemoveDependency) Execute(ctx context.Context) (*DependencyOutput, error) {
	in := uc.input
	t, err := uc.repos.TaskRepo().Get(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}
	if !t.HasDependency(in.DependencyID) {
		return &DependencyOutput{Task: t, Changed: false}, nil
	}
	t.RemoveDependency(in.DependencyID)
	t.UpdatedAt = uc.now()
	if err := uc.repos.TaskRepo().Update(ctx, t.ID, t); err != nil {
		return nil, err
	}
	return &DependencyOutput{Task: t, Changed: true}, nil
}
