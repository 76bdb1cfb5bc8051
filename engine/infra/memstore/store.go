// Package memstore is a map-backed implementation of the repository
// boundary. It backs the test fixtures and the server's memory driver.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/agent"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/branch"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/project"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
)

// Clock is a swappable time source; tests pin it for determinism.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewFixedClock starts at base and advances by step on every call to Now.
func NewFixedClock(base time.Time, step time.Duration) *Clock {
	return &Clock{now: base, step: step}
}

func (c *Clock) Now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.now
	c.now = c.now.Add(c.step)
	return current
}

// Advance moves the clock forward manually.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Store holds every in-memory table behind one mutex. WithTx serializes
// whole operations, which satisfies the per-key serialization guarantee
// trivially, and restores a snapshot on failure so callers never observe
// half-applied multi-step operations.
type Store struct {
	mu sync.RWMutex

	tasks       map[core.ID]*task.Task
	subtasks    map[core.ID]*task.Subtask
	projects    map[core.ID]*project.Project
	branches    map[core.ID]*branch.Branch
	agents      map[core.ID]*agent.Agent
	contexts    map[string]*hierctx.Context
	delegations map[core.ID]*hierctx.Delegation

	clock *Clock
}

func NewStore(clock *Clock) *Store {
	return &Store{
		tasks:       make(map[core.ID]*task.Task),
		subtasks:    make(map[core.ID]*task.Subtask),
		projects:    make(map[core.ID]*project.Project),
		branches:    make(map[core.ID]*branch.Branch),
		agents:      make(map[core.ID]*agent.Agent),
		contexts:    make(map[string]*hierctx.Context),
		delegations: make(map[core.ID]*hierctx.Delegation),
		clock:       clock,
	}
}

func (s *Store) Now() time.Time {
	return s.clock.Now()
}

func (s *Store) TaskRepo() task.Repository                    { return &taskRepo{store: s} }
func (s *Store) SubtaskRepo() task.SubtaskRepository          { return &subtaskRepo{store: s} }
func (s *Store) ProjectRepo() project.Repository              { return &projectRepo{store: s} }
func (s *Store) BranchRepo() branch.Repository                { return &branchRepo{store: s} }
func (s *Store) AgentRepo() agent.Repository                  { return &agentRepo{store: s} }
func (s *Store) ContextRepo() hierctx.Repository              { return &contextRepo{store: s} }
func (s *Store) DelegationRepo() hierctx.DelegationRepository { return &delegationRepo{store: s} }

type txKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// WithTx runs fn under the store write lock. On error the pre-transaction
// snapshot is restored. Nested WithTx calls join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return core.NewError(core.CodeOperationFailed, "operation cancelled before commit", nil)
	}
	snapshot := s.snapshotLocked()
	txCtx := context.WithValue(ctx, txKey{}, true)
	if err := fn(txCtx); err != nil {
		s.restoreLocked(snapshot)
		return err
	}
	return nil
}

// rlock acquires the read lock unless the caller already runs inside a
// transaction that holds the write lock. It returns the matching unlock.
func (s *Store) rlock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) wlock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type tables struct {
	tasks       map[core.ID]*task.Task
	subtasks    map[core.ID]*task.Subtask
	projects    map[core.ID]*project.Project
	branches    map[core.ID]*branch.Branch
	agents      map[core.ID]*agent.Agent
	contexts    map[string]*hierctx.Context
	delegations map[core.ID]*hierctx.Delegation
}

func (s *Store) snapshotLocked() *tables {
	t := &tables{
		tasks:       make(map[core.ID]*task.Task, len(s.tasks)),
		subtasks:    make(map[core.ID]*task.Subtask, len(s.subtasks)),
		projects:    make(map[core.ID]*project.Project, len(s.projects)),
		branches:    make(map[core.ID]*branch.Branch, len(s.branches)),
		agents:      make(map[core.ID]*agent.Agent, len(s.agents)),
		contexts:    make(map[string]*hierctx.Context, len(s.contexts)),
		delegations: make(map[core.ID]*hierctx.Delegation, len(s.delegations)),
	}
	for k, v := range s.tasks {
		t.tasks[k] = copyTask(v)
	}
	for k, v := range s.subtasks {
		t.subtasks[k] = copySubtask(v)
	}
	for k, v := range s.projects {
		t.projects[k] = copyProject(v)
	}
	for k, v := range s.branches {
		t.branches[k] = copyBranch(v)
	}
	for k, v := range s.agents {
		t.agents[k] = copyAgent(v)
	}
	for k, v := range s.contexts {
		t.contexts[k] = copyContext(v)
	}
	for k, v := range s.delegations {
		t.delegations[k] = v
	}
	return t
}

func (s *Store) restoreLocked(t *tables) {
	s.tasks = t.tasks
	s.subtasks = t.subtasks
	s.projects = t.projects
	s.branches = t.branches
	s.agents = t.agents
	s.contexts = t.contexts
	s.delegations = t.delegations
}
