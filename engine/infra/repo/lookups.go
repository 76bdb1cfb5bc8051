package repo

import (
	"context"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

// branchLookup resolves the owning project of a branch entity for context
// parent auto-creation.
type branchLookup struct {
	provider Provider
}

func NewBranchLookup(provider Provider) *branchLookup {
	return &branchLookup{provider: provider}
}

func (l *branchLookup) ProjectIDOf(ctx context.Context, branchID core.ID) (core.ID, error) {
	b, err := l.provider.BranchRepo().Get(ctx, branchID)
	if err != nil {
		return "", err
	}
	return b.ProjectID, nil
}

// taskLookup resolves the owning branch of a task entity.
type taskLookup struct {
	provider Provider
}

func NewTaskLookup(provider Provider) *taskLookup {
	return &taskLookup{provider: provider}
}

func (l *taskLookup) BranchIDOf(ctx context.Context, taskID core.ID) (core.ID, error) {
	t, err := l.provider.TaskRepo().FindByIDAllStates(ctx, taskID)
	if err != nil {
		return "", err
	}
	return t.BranchID, nil
}
