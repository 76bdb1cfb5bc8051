package memstore

import (
	"context"
	"sort"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/agent"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/branch"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/project"
)

// -----------------------------------------------------------------------------
// Projects
// -----------------------------------------------------------------------------

type projectRepo struct {
	store *Store
}

func (r *projectRepo) Get(ctx context.Context, id core.ID) (*project.Project, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	p, ok := r.store.projects[id]
	if !ok {
		return nil, core.NotFoundError("project", id)
	}
	return copyProject(p), nil
}

func (r *projectRepo) Create(ctx context.Context, p *project.Project) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	if _, ok := r.store.projects[p.ID]; ok {
		return core.NewError(core.CodeAlreadyExists, "project already exists: "+p.ID.String(), nil)
	}
	r.store.projects[p.ID] = copyProject(p)
	return nil
}

func (r *projectRepo) Update(ctx context.Context, id core.ID, p *project.Project) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	if _, ok := r.store.projects[id]; !ok {
		return core.NotFoundError("project", id)
	}
	r.store.projects[id] = copyProject(p)
	return nil
}

// Delete removes the project and, per the ownership chain, its branches,
// tasks and subtasks.
func (r *projectRepo) Delete(ctx context.Context, id core.ID) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	if _, ok := r.store.projects[id]; !ok {
		return core.NotFoundError("project", id)
	}
	for branchID, b := range r.store.branches {
		if b.ProjectID != id {
			continue
		}
		deleteBranchCascadeLocked(r.store, branchID)
	}
	delete(r.store.projects, id)
	return nil
}

func (r *projectRepo) Exists(ctx context.Context, id core.ID) (bool, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	_, ok := r.store.projects[id]
	return ok, nil
}

func (r *projectRepo) List(ctx context.Context, filter *project.Filter) ([]*project.Project, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	var out []*project.Project
	for _, p := range r.store.projects {
		if filter != nil && filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter != nil && filter.UserID != nil && p.UserID != *filter.UserID {
			continue
		}
		out = append(out, copyProject(p))
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
// Branches
// -----------------------------------------------------------------------------

type branchRepo struct {
	store *Store
}

func (r *branchRepo) Get(ctx context.Context, id core.ID) (*branch.Branch, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	b, ok := r.store.branches[id]
	if !ok {
		return nil, core.NotFoundError("branch", id)
	}
	return copyBranch(b), nil
}

func (r *branchRepo) Create(ctx context.Context, b *branch.Branch) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	if _, ok := r.store.branches[b.ID]; ok {
		return core.NewError(core.CodeAlreadyExists, "branch already exists: "+b.ID.String(), nil)
	}
	r.store.branches[b.ID] = copyBranch(b)
	return nil
}

func (r *branchRepo) Update(ctx context.Context, id core.ID, b *branch.Branch) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	if _, ok := r.store.branches[id]; !ok {
		return core.NotFoundError("branch", id)
	}
	r.store.branches[id] = copyBranch(b)
	return nil
}

func (r *branchRepo) Delete(ctx context.Context, id core.ID) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	if _, ok := r.store.branches[id]; !ok {
		return core.NotFoundError("branch", id)
	}
	deleteBranchCascadeLocked(r.store, id)
	return nil
}

func deleteBranchCascadeLocked(s *Store, branchID core.ID) {
	for taskID, t := range s.tasks {
		if t.BranchID != branchID {
			continue
		}
		for _, subID := range t.Subtasks {
			delete(s.subtasks, subID)
		}
		delete(s.tasks, taskID)
	}
	delete(s.branches, branchID)
}

func (r *branchRepo) Exists(ctx context.Context, id core.ID) (bool, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	_, ok := r.store.branches[id]
	return ok, nil
}

func (r *branchRepo) List(ctx context.Context, filter *branch.Filter) ([]*branch.Branch, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	var out []*branch.Branch
	for _, b := range r.store.branches {
		if filter != nil {
			if b.Status == branch.StatusArchived && !filter.IncludeArchived &&
				(filter.Status == nil || *filter.Status != branch.StatusArchived) {
				continue
			}
			if filter.ProjectID != nil && b.ProjectID != *filter.ProjectID {
				continue
			}
			if filter.Status != nil && b.Status != *filter.Status {
				continue
			}
			if filter.AssignedAgentID != nil && b.AssignedAgentID != *filter.AssignedAgentID {
				continue
			}
		} else if b.Status == branch.StatusArchived {
			continue
		}
		out = append(out, copyBranch(b))
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
// Agents
// -----------------------------------------------------------------------------

type agentRepo struct {
	store *Store
}

func (r *agentRepo) Get(ctx context.Context, id core.ID) (*agent.Agent, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	a, ok := r.store.agents[id]
	if !ok {
		return nil, core.NotFoundError("agent", id)
	}
	return copyAgent(a), nil
}

func (r *agentRepo) Create(ctx context.Context, a *agent.Agent) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	if _, ok := r.store.agents[a.ID]; ok {
		return core.NewError(core.CodeAlreadyExists, "agent already exists: "+a.ID.String(), nil)
	}
	r.store.agents[a.ID] = copyAgent(a)
	return nil
}

func (r *agentRepo) Update(ctx context.Context, id core.ID, a *agent.Agent) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	if _, ok := r.store.agents[id]; !ok {
		return core.NotFoundError("agent", id)
	}
	r.store.agents[id] = copyAgent(a)
	return nil
}

func (r *agentRepo) Delete(ctx context.Context, id core.ID) error {
	unlock := r.store.wlock(ctx)
	defer unlock()
	if _, ok := r.store.agents[id]; !ok {
		return core.NotFoundError("agent", id)
	}
	delete(r.store.agents, id)
	return nil
}

func (r *agentRepo) Exists(ctx context.Context, id core.ID) (bool, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	_, ok := r.store.agents[id]
	return ok, nil
}

func (r *agentRepo) List(ctx context.Context, filter *agent.Filter) ([]*agent.Agent, error) {
	unlock := r.store.rlock(ctx)
	defer unlock()
	var out []*agent.Agent
	for _, a := range r.store.agents {
		if filter != nil && filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		if filter != nil && filter.ProjectID != nil && !containsID(a.AssignedProjects, *filter.ProjectID) {
			continue
		}
		out = append(out, copyAgent(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter != nil && filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
