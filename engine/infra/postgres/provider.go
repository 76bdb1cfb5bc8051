package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/agent"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/branch"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/project"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
	"github.com/phamhung075/dhafnck-mcp-sub000/pkg/logger"
)

type txKey struct{}

// Provider wires the postgres-backed repositories behind the repo.Provider
// interface. WithTx stores the pgx transaction in the context so nested
// repository calls share it.
type Provider struct {
	db          DBInterface
	tasks       *TaskRepo
	subtasks    *SubtaskRepo
	projects    *ProjectRepo
	branches    *BranchRepo
	agents      *AgentRepo
	contexts    *ContextRepo
	delegations *DelegationRepo
}

func NewProvider(db DBInterface) *Provider {
	return &Provider{
		db:          db,
		tasks:       NewTaskRepo(db),
		subtasks:    NewSubtaskRepo(db),
		projects:    NewProjectRepo(db),
		branches:    NewBranchRepo(db),
		agents:      NewAgentRepo(db),
		contexts:    NewContextRepo(db),
		delegations: NewDelegationRepo(db),
	}
}

func (p *Provider) TaskRepo() task.Repository                    { return p.tasks }
func (p *Provider) SubtaskRepo() task.SubtaskRepository          { return p.subtasks }
func (p *Provider) ProjectRepo() project.Repository              { return p.projects }
func (p *Provider) BranchRepo() branch.Repository                { return p.branches }
func (p *Provider) AgentRepo() agent.Repository                  { return p.agents }
func (p *Provider) ContextRepo() hierctx.Repository              { return p.contexts }
func (p *Provider) DelegationRepo() hierctx.DelegationRepository { return p.delegations }

// WithTx runs fn inside one transaction; nested calls join the outer one.
func (p *Provider) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	log := logger.FromContext(ctx)
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error("failed to rollback transaction", "error", rbErr)
			}
			panic(r)
		}
	}()
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Error("failed to rollback transaction", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// querier picks the active transaction from the context, or the pool.
func querier(ctx context.Context, db DBInterface) DBInterface {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db
}
