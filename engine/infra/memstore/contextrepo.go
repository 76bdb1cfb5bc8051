package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
)

type contextRepo struct {
	store *Store
}

func contextKey(level core.ContextLevel, id core.ID) string {
	return level.String() + ":" + id.String()
}

func (r *contextRepo) Get(ctx context.Context, level core.ContextLevel, id core.ID) (*hierctx.Context, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	c, ok := r.store.contexts[contextKey(level, id)]
	if !ok {
		return nil, core.NotFoundError(level.String()+" context", id)
	}
	return copyContext(c), nil
}

func (r *contextRepo) Create(ctx context.Context, c *hierctx.Context) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	key := contextKey(c.Level, c.ID)
	if _, ok := r.store.contexts[key]; ok {
		return core.NewError(core.CodeAlreadyExists,
			c.Level.String()+" context already exists: "+c.ID.String(), nil)
	}
	r.store.contexts[key] = copyContext(c)
	return nil
}

func (r *contextRepo) Update(ctx context.Context, level core.ContextLevel, id core.ID, c *hierctx.Context) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	key := contextKey(level, id)
	if _, ok := r.store.contexts[key]; !ok {
		return core.NotFoundError(level.String()+" context", id)
	}
	r.store.contexts[key] = copyContext(c)
	return nil
}

func (r *contextRepo) Delete(ctx context.Context, level core.ContextLevel, id core.ID) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	key := contextKey(level, id)
	if _, ok := r.store.contexts[key]; !ok {
		return core.NotFoundError(level.String()+" context", id)
	}
	delete(r.store.contexts, key)
	return nil
}

func (r *contextRepo) Exists(ctx context.Context, level core.ContextLevel, id core.ID) (bool, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	_, ok := r.store.contexts[contextKey(level, id)]
	return ok, nil
}

func (r *contextRepo) List(
	ctx context.Context,
	level core.ContextLevel,
	filter *hierctx.Filter,
) ([]*hierctx.Context, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	var out []*hierctx.Context
	for _, c := range r.store.contexts {
		if c.Level != level {
			continue
		}
		if filter != nil && filter.ParentID != nil && c.ParentID != *filter.ParentID {
			continue
		}
		out = append(out, copyContext(c))
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

// -----------------------------------------------------------------------------
// Delegations
// -----------------------------------------------------------------------------

type delegationRepo struct {
	store *Store
}

func (r *delegationRepo) CreateIdempotent(
	ctx context.Context,
	d *hierctx.Delegation,
	window time.Duration,
) (*hierctx.Delegation, bool, error) {
	unlock := r.store.wlock(ctx)
	defer unlock()
	cutoff := d.CreatedAt.Add(-window)
	for _, existing := range r.store.delegations {
		if existing.SourceLevel == d.SourceLevel &&
			existing.SourceID == d.SourceID &&
			existing.TargetLevel == d.TargetLevel &&
			existing.TargetID == d.TargetID &&
			existing.DataHash == d.DataHash &&
			!existing.CreatedAt.Before(cutoff) {
			return existing, false, nil
		}
	}
	r.store.delegations[d.ID] = d
	return d, true, nil
}

func (r *delegationRepo) Get(ctx context.Context, id core.ID) (*hierctx.Delegation, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	d, ok := r.store.delegations[id]
	if !ok {
		return nil, core.NotFoundError("delegation", id)
	}
	return d, nil
}

func (r *delegationRepo) ListPending(
	ctx context.Context,
	targetLevel core.ContextLevel,
	limit int,
) ([]*hierctx.Delegation, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	var out []*hierctx.Delegation
	for _, d := range r.store.delegations {
		if d.Processed {
			continue
		}
		if targetLevel != "" && d.TargetLevel != targetLevel {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
