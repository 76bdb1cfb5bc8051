package project

import (
	"context"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

// Filter narrows List and FindByCriteria results.
type Filter struct {
	Status *Status
	UserID *string
	Limit  int
}

type Repository interface {
	Get(ctx context.Context, id core.ID) (*Project, error)
	Create(ctx context.Context, p *Project) error
	Update(ctx context.Context, id core.ID, p *Project) error
	Delete(ctx context.Context, id core.ID) error
	List(ctx context.Context, filter *Filter) ([]*Project, error)
	Exists(ctx context.Context, id core.ID) (bool, error)
}
