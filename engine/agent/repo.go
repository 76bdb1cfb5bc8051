package agent

import (
	"context"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

type Filter struct {
	ProjectID *core.ID
	Status    *core.AgentStatus
	Limit     int
}

type Repository interface {
	Get(ctx context.Context, id core.ID) (*Agent, error)
	Create(ctx context.Context, a *Agent) error
	Update(ctx context.Context, id core.ID, a *Agent) error
	Delete(ctx context.Context, id core.ID) error
	List(ctx context.Context, filter *Filter) ([]*Agent, error)
	Exists(ctx context.Context, id core.ID) (bool, error)
}
