package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
)

type taskRepo struct {
	store *Store
}

func (r *taskRepo) Get(ctx context.Context, id core.ID) (*task.Task, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	t, ok := r.store.tasks[id]
	if !ok || t.Archived {
		return nil, core.NotFoundError("task", id)
	}
	return copyTask(t), nil
}

func (r *taskRepo) FindByIDAllStates(ctx context.Context, id core.ID) (*task.Task, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	t, ok := r.store.tasks[id]
	if !ok {
		return nil, core.NotFoundError("task", id)
	}
	return copyTask(t), nil
}

func (r *taskRepo) Create(ctx context.Context, t *task.Task) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	if _, ok := r.store.tasks[t.ID]; ok {
		return core.NewError(core.CodeAlreadyExists, "task already exists: "+t.ID.String(), nil)
	}
	r.store.tasks[t.ID] = copyTask(t)
	return nil
}

func (r *taskRepo) Update(ctx context.Context, id core.ID, t *task.Task) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	if _, ok := r.store.tasks[id]; !ok {
		return core.NotFoundError("task", id)
	}
	r.store.tasks[id] = copyTask(t)
	return nil
}

func (r *taskRepo) Delete(ctx context.Context, id core.ID) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	t, ok := r.store.tasks[id]
	if !ok {
		return core.NotFoundError("task", id)
	}
	for _, subID := range t.Subtasks {
		delete(r.store.subtasks, subID)
	}
	delete(r.store.tasks, id)
	return nil
}

func (r *taskRepo) Exists(ctx context.Context, id core.ID) (bool, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	t, ok := r.store.tasks[id]
	return ok && !t.Archived, nil
}

func (r *taskRepo) List(ctx context.Context, filter *task.Filter) ([]*task.Task, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	var out []*task.Task
	for _, t := range r.store.tasks {
		if t.Archived {
			continue
		}
		if !matchesTaskFilter(t, filter) {
			continue
		}
		out = append(out, copyTask(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter != nil && filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *taskRepo) FindDependents(ctx context.Context, id core.ID) ([]*task.Task, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	var out []*task.Task
	for _, t := range r.store.tasks {
		if t.HasDependency(id) {
			out = append(out, copyTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func matchesTaskFilter(t *task.Task, filter *task.Filter) bool {
	if filter == nil {
		return true
	}
	if filter.BranchID != nil && t.BranchID != *filter.BranchID {
		return false
	}
	if filter.Status != nil && t.Status != *filter.Status {
		return false
	}
	if filter.Priority != nil && t.Priority != *filter.Priority {
		return false
	}
	for _, wanted := range filter.Assignees {
		if !containsID(t.Assignees, wanted) {
			return false
		}
	}
	for _, wanted := range filter.Labels {
		if !containsString(t.Labels, wanted) {
			return false
		}
	}
	if filter.Query != "" {
		q := strings.ToLower(filter.Query)
		if !strings.Contains(strings.ToLower(t.Title), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	return true
}

func containsID(ids []core.ID, id core.ID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func containsString(ss []string, s string) bool {
	for _, candidate := range ss {
		if candidate == s {
			return true
		}
	}
	return false
}
