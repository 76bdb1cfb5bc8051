package hierctx

import (
	"context"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

type Filter struct {
	ParentID *core.ID
	Limit    int
}

// Repository persists contexts for all four levels. The (level, id) pair
// is the primary key; level maps to the physical table.
type Repository interface {
	Get(ctx context.Context, level core.ContextLevel, id core.ID) (*Context, error)
	Create(ctx context.Context, c *Context) error
	Update(ctx context.Context, level core.ContextLevel, id core.ID, c *Context) error
	Delete(ctx context.Context, level core.ContextLevel, id core.ID) error
	List(ctx context.Context, level core.ContextLevel, filter *Filter) ([]*Context, error)
	Exists(ctx context.Context, level core.ContextLevel, id core.ID) (bool, error)
}

// DelegationRepository persists the delegation queue. CreateIdempotent
// collapses duplicate (source, target, data-hash) records inside the
// dedupe window onto the existing record.
type DelegationRepository interface {
	CreateIdempotent(ctx context.Context, d *Delegation, window time.Duration) (*Delegation, bool, error)
	Get(ctx context.Context, id core.ID) (*Delegation, error)
	ListPending(ctx context.Context, targetLevel core.ContextLevel, limit int) ([]*Delegation, error)
}
