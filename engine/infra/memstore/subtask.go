package memstore

import (
	"context"
	"sort"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
)

type subtaskRepo struct {
	store *Store
}

func (r *subtaskRepo) Get(ctx context.Context, id core.ID) (*task.Subtask, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	s, ok := r.store.subtasks[id]
	if !ok {
		return nil, core.NotFoundError("subtask", id)
	}
	return copySubtask(s), nil
}

func (r *subtaskRepo) Create(ctx context.Context, s *task.Subtask) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	if _, ok := r.store.subtasks[s.ID]; ok {
		return core.NewError(core.CodeAlreadyExists, "subtask already exists: "+s.ID.String(), nil)
	}
	r.store.subtasks[s.ID] = copySubtask(s)
	return nil
}

func (r *subtaskRepo) Update(ctx context.Context, id core.ID, s *task.Subtask) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	if _, ok := r.store.subtasks[id]; !ok {
		return core.NotFoundError("subtask", id)
	}
	r.store.subtasks[id] = copySubtask(s)
	return nil
}

func (r *subtaskRepo) Delete(ctx context.Context, id core.ID) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	if _, ok := r.store.subtasks[id]; !ok {
		return core.NotFoundError("subtask", id)
	}
	delete(r.store.subtasks, id)
	return nil
}

func (r *subtaskRepo) Exists(ctx context.Context, id core.ID) (bool, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	_, ok := r.store.subtasks[id]
	return ok, nil
}

func (r *subtaskRepo) List(ctx context.Context, filter *task.SubtaskFilter) ([]*task.Subtask, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	var out []*task.Subtask
	for _, s := range r.store.subtasks {
		if filter != nil && filter.TaskID != nil && s.TaskID != *filter.TaskID {
			continue
		}
		if filter != nil && filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		out = append(out, copySubtask(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter != nil && filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
