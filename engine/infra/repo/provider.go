package repo

import (
	"context"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/agent"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/branch"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/project"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
)

// Provider exposes the repositories required by the use cases, backed by a
// specific driver (PostgreSQL or the in-memory store). It intentionally
// returns interfaces rather than driver-specific types.
type Provider interface {
	TaskRepo() task.Repository
	SubtaskRepo() task.SubtaskRepository
	ProjectRepo() project.Repository
	BranchRepo() branch.Repository
	AgentRepo() agent.Repository
	ContextRepo() hierctx.Repository
	DelegationRepo() hierctx.DelegationRepository

	// WithTx runs fn inside one repository transaction. Multi-step
	// operations (create-task-with-context, complete-task) use it so the
	// engine never observes intermediate states. Operations on the same
	// key are serialized at this boundary.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
