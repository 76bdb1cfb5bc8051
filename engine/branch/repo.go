package branch

import (
	"context"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

type Filter struct {
	ProjectID       *core.ID
	Status          *Status
	AssignedAgentID *core.ID
	IncludeArchived bool
	Limit           int
}

type Repository interface {
	Get(ctx context.Context, id core.ID) (*Branch, error)
	Create(ctx context.Context, b *Branch) error
	Update(ctx context.Context, id core.ID, b *Branch) error
	Delete(ctx context.Context, id core.ID) error
	List(ctx context.Context, filter *Filter) ([]*Branch, error)
	Exists(ctx context.Context, id core.ID) (bool, error)
}
