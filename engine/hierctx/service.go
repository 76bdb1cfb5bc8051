package hierctx

import (
	"context"
	"fmt"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/pkg/logger"
)

// BranchLookup discovers the owning project of a branch entity, used when
// auto-creating a missing branch context.
type BranchLookup interface {
	ProjectIDOf(ctx context.Context, branchID core.ID) (core.ID, error)
}

// TaskLookup discovers the owning branch of a task entity, used when
// auto-creating a missing task-context parent.
type TaskLookup interface {
	BranchIDOf(ctx context.Context, taskID core.ID) (core.ID, error)
}

// Options toggles optional engine behavior. Disabling anything here must
// not change functional correctness, only performance or convenience.
type Options struct {
	AutoCreateParents bool
	Cache             *InheritanceCache
	DedupeWindow      time.Duration
}

// Service is the hierarchical context engine: create, get, update, delete,
// list, resolve, delegate and the insight/progress appends, across the
// four levels.
type Service struct {
	repo        Repository
	delegations DelegationRepository
	branches    BranchLookup
	tasks       TaskLookup
	opts        Options
	now         func() time.Time
}

func NewService(
	repo Repository,
	delegations DelegationRepository,
	branches BranchLookup,
	tasks TaskLookup,
	opts Options,
	now func() time.Time,
) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if opts.DedupeWindow <= 0 {
		opts.DedupeWindow = 5 * time.Minute
	}
	return &Service{
		repo:        repo,
		delegations: delegations,
		branches:    branches,
		tasks:       tasks,
		opts:        opts,
		now:         now,
	}
}

// -----------------------------------------------------------------------------
// Create
// -----------------------------------------------------------------------------

type CreateInput struct {
	Level     core.ContextLevel
	ID        core.ID
	Data      map[string]any
	UserID    string
	ProjectID core.ID
	BranchID  core.ID
}

// Create validates the hierarchy chain, auto-creating missing ancestors
// when enabled, and persists the new context.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Context, error) {
	if !in.Level.IsValid() {
		return nil, core.ValidationError("level", fmt.Sprintf("invalid context level: %q", in.Level))
	}
	if in.Level == core.LevelGlobal {
		in.ID = core.GlobalSingletonID
	}
	if in.ID.IsZero() {
		return nil, core.NewError(core.CodeMissingField, "context_id is required", map[string]any{
			"field": "context_id",
		})
	}
	if in.Data == nil {
		in.Data = map[string]any{}
	}
	if err := ValidateSections(in.Level, in.Data); err != nil {
		return nil, err
	}
	exists, err := s.repo.Exists(ctx, in.Level, in.ID)
	if err != nil {
		return nil, fmt.Errorf("checking context existence: %w", err)
	}
	if exists {
		return nil, core.NewError(core.CodeAlreadyExists,
			fmt.Sprintf("%s context already exists: %s", in.Level, in.ID), map[string]any{
				"level": in.Level.String(),
				"id":    in.ID.String(),
			})
	}
	parentID, err := s.ensureParents(ctx, in)
	if err != nil {
		return nil, err
	}
	now := s.now()
	created := &Context{
		ID:        in.ID,
		Level:     in.Level,
		ParentID:  parentID,
		Data:      CopyDocument(in.Data),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

// ensureParents validates the ancestor chain for a create and attempts
// silent auto-creation of missing ancestors. It returns the direct parent
// id, or a HIERARCHY_VIOLATION carrying remediation guidance.
func (s *Service) ensureParents(ctx context.Context, in CreateInput) (core.ID, error) {
	log := logger.FromContext(ctx)
	switch in.Level {
	case core.LevelGlobal:
		return "", nil
	case core.LevelProject:
		if err := s.ensureGlobal(ctx); err != nil {
			return "", err
		}
		return core.GlobalSingletonID, nil
	case core.LevelBranch:
		projectID := in.ProjectID
		if projectID.IsZero() {
			if raw, ok := in.Data["project_id"].(string); ok && raw != "" {
				projectID = core.ID(raw)
			}
		}
		if projectID.IsZero() {
			return "", s.hierarchyViolation(in, "branch context requires a project_id", []remediation{
				{missing: "project_id", tool: "manage_context", action: "create",
					hint: "pass project_id when creating a branch context"},
			})
		}
		if err := s.ensureProject(ctx, projectID, in.UserID); err != nil {
			return "", err
		}
		return projectID, nil
	case core.LevelTask:
		branchID := in.BranchID
		if branchID.IsZero() {
			if raw, ok := in.Data["branch_id"].(string); ok && raw != "" {
				branchID = core.ID(raw)
			}
		}
		if branchID.IsZero() && s.tasks != nil {
			discovered, err := s.tasks.BranchIDOf(ctx, in.ID)
			if err == nil {
				branchID = discovered
			}
		}
		if branchID.IsZero() {
			return "", s.hierarchyViolation(in, "task context requires a branch_id", []remediation{
				{missing: "branch_id", tool: "manage_context", action: "create",
					hint: "pass branch_id when creating a task context"},
			})
		}
		if err := s.ensureBranch(ctx, branchID, in.ProjectID, in.UserID); err != nil {
			return "", err
		}
		log.Debug("task context parent chain validated", "task_id", in.ID, "branch_id", branchID)
		return branchID, nil
	}
	return "", core.ValidationError("level", fmt.Sprintf("invalid context level: %q", in.Level))
}

func (s *Service) ensureGlobal(ctx context.Context) error {
	exists, err := s.repo.Exists(ctx, core.LevelGlobal, core.GlobalSingletonID)
	if err != nil {
		return fmt.Errorf("checking global context: %w", err)
	}
	if exists {
		return nil
	}
	// The global context is always auto-created when missing, regardless
	// of the auto-create flag.
	now := s.now()
	return s.repo.Create(ctx, &Context{
		ID:    core.GlobalSingletonID,
		Level: core.LevelGlobal,
		Data: map[string]any{
			"organization_name": "default",
			"global_settings":   map[string]any{},
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *Service) ensureProject(ctx context.Context, projectID core.ID, userID string) error {
	if err := s.ensureGlobal(ctx); err != nil {
		return err
	}
	exists, err := s.repo.Exists(ctx, core.LevelProject, projectID)
	if err != nil {
		return fmt.Errorf("checking project context: %w", err)
	}
	if exists {
		return nil
	}
	if !s.opts.AutoCreateParents {
		return s.missingParent(core.LevelProject, projectID)
	}
	now := s.now()
	data := map[string]any{"project_settings": map[string]any{}}
	if userID != "" {
		data["metadata"] = map[string]any{"user_id": userID}
	}
	return s.repo.Create(ctx, &Context{
		ID:        projectID,
		Level:     core.LevelProject,
		ParentID:  core.GlobalSingletonID,
		Data:      data,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *Service) ensureBranch(ctx context.Context, branchID, projectID core.ID, userID string) error {
	exists, err := s.repo.Exists(ctx, core.LevelBranch, branchID)
	if err != nil {
		return fmt.Errorf("checking branch context: %w", err)
	}
	if exists {
		return nil
	}
	if !s.opts.AutoCreateParents {
		return s.missingParent(core.LevelBranch, branchID)
	}
	if projectID.IsZero() && s.branches != nil {
		discovered, lookupErr := s.branches.ProjectIDOf(ctx, branchID)
		if lookupErr == nil {
			projectID = discovered
		}
	}
	if projectID.IsZero() {
		return core.NewError(core.CodeHierarchyViolation,
			fmt.Sprintf("cannot auto-create branch context %s: owning project unknown", branchID),
			map[string]any{
				"missing_level": core.LevelBranch.String(),
				"missing_id":    branchID.String(),
				"missing_steps": []string{"create the branch context with an explicit project_id"},
				"remediation": []map[string]any{{
					"tool": "manage_context",
					"params": map[string]any{
						"action":     "create",
						"level":      "branch",
						"context_id": branchID.String(),
						"project_id": "<project-id>",
					},
				}},
			})
	}
	if err := s.ensureProject(ctx, projectID, userID); err != nil {
		return err
	}
	now := s.now()
	return s.repo.Create(ctx, &Context{
		ID:        branchID,
		Level:     core.LevelBranch,
		ParentID:  projectID,
		Data:      map[string]any{"branch_settings": map[string]any{}},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *Service) missingParent(level core.ContextLevel, id core.ID) error {
	return core.NewError(core.CodeHierarchyViolation,
		fmt.Sprintf("required %s context %s does not exist and auto-creation is disabled", level, id),
		map[string]any{
			"missing_level": level.String(),
			"missing_id":    id.String(),
			"missing_steps": []string{fmt.Sprintf("create the %s context first", level)},
			"remediation": []map[string]any{{
				"tool": "manage_context",
				"params": map[string]any{
					"action":     "create",
					"level":      level.String(),
					"context_id": id.String(),
				},
			}},
		})
}

type remediation struct {
	missing string
	tool    string
	action  string
	hint    string
}

func (s *Service) hierarchyViolation(in CreateInput, message string, steps []remediation) error {
	remediations := make([]map[string]any, 0, len(steps))
	missing := make([]string, 0, len(steps))
	for _, step := range steps {
		missing = append(missing, step.missing)
		remediations = append(remediations, map[string]any{
			"tool":   step.tool,
			"params": map[string]any{"action": step.action},
			"hint":   step.hint,
		})
	}
	return core.NewError(core.CodeHierarchyViolation, message, map[string]any{
		"level":         in.Level.String(),
		"id":            in.ID.String(),
		"missing_steps": missing,
		"remediation":   remediations,
	})
}

// -----------------------------------------------------------------------------
// Get / Resolve
// -----------------------------------------------------------------------------

type GetInput struct {
	Level            core.ContextLevel
	ID               core.ID
	IncludeInherited bool
	ForceRefresh     bool
}

type GetOutput struct {
	Context   *Context
	Document  map[string]any
	Resolved  bool
	FromCache bool
}

// Get returns the raw context, or the merged inheritance view when
// IncludeInherited is set. The inheritance cache is consulted unless
// ForceRefresh bypasses it.
func (s *Service) Get(ctx context.Context, in GetInput) (*GetOutput, error) {
	ctxEntity, err := s.repo.Get(ctx, in.Level, in.ID)
	if err != nil {
		return nil, err
	}
	if !in.IncludeInherited {
		return &GetOutput{Context: ctxEntity, Document: CopyDocument(ctxEntity.Data)}, nil
	}
	currentHash, err := DependenciesHash(ctx, s.repo, in.Level, in.ID)
	if err != nil {
		return nil, err
	}
	if !in.ForceRefresh {
		if entry, ok := s.opts.Cache.Get(in.Level, in.ID, currentHash); ok {
			return &GetOutput{
				Context:   ctxEntity,
				Document:  CopyDocument(entry.Document),
				Resolved:  true,
				FromCache: true,
			}, nil
		}
	}
	res, err := Resolve(ctx, s.repo, in.Level, in.ID, s.now())
	if err != nil {
		return nil, err
	}
	s.opts.Cache.Put(in.Level, in.ID, res.Document, res.DependenciesHash, res.Path)
	return &GetOutput{Context: ctxEntity, Document: res.Document, Resolved: true}, nil
}

// Resolve is get with inheritance forced on; the response is marked
// resolved=true by the caller.
func (s *Service) Resolve(ctx context.Context, level core.ContextLevel, id core.ID, forceRefresh bool) (*GetOutput, error) {
	return s.Get(ctx, GetInput{Level: level, ID: id, IncludeInherited: true, ForceRefresh: forceRefresh})
}

// -----------------------------------------------------------------------------
// Update / Delete
// -----------------------------------------------------------------------------

type UpdateInput struct {
	Level     core.ContextLevel
	ID        core.ID
	Data      map[string]any
	Propagate bool
}

// Update deep-merges new data into the stored document, bumps the version
// and, when Propagate is set, invalidates descendant cache entries.
func (s *Service) Update(ctx context.Context, in UpdateInput) (*Context, error) {
	if err := ValidateSections(in.Level, in.Data); err != nil {
		return nil, err
	}
	existing, err := s.repo.Get(ctx, in.Level, in.ID)
	if err != nil {
		return nil, err
	}
	merged, err := MergeDocuments(existing.Data, in.Data)
	if err != nil {
		return nil, err
	}
	existing.Data = merged
	existing.Version++
	existing.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, in.Level, in.ID, existing); err != nil {
		return nil, err
	}
	s.opts.Cache.InvalidateNode(in.Level, in.ID)
	if in.Propagate {
		// InvalidateNode already drops every entry whose resolution path
		// contains the mutated node, which covers all descendants.
		logger.FromContext(ctx).Debug("propagated context invalidation",
			"level", in.Level, "id", in.ID)
	}
	return existing, nil
}

// Delete removes the context and cascades to descendant contexts along
// the ownership chain.
func (s *Service) Delete(ctx context.Context, level core.ContextLevel, id core.ID) error {
	if _, err := s.repo.Get(ctx, level, id); err != nil {
		return err
	}
	childLevel, hasChildren := childOf(level)
	if hasChildren {
		children, err := s.repo.List(ctx, childLevel, &Filter{ParentID: &id})
		if err != nil {
			return fmt.Errorf("listing %s children of %s: %w", childLevel, id, err)
		}
		for _, child := range children {
			if err := s.Delete(ctx, childLevel, child.ID); err != nil {
				return err
			}
		}
	}
	if err := s.repo.Delete(ctx, level, id); err != nil {
		return err
	}
	s.opts.Cache.InvalidateNode(level, id)
	return nil
}

func childOf(level core.ContextLevel) (core.ContextLevel, bool) {
	switch level {
	case core.LevelGlobal:
		return core.LevelProject, true
	case core.LevelProject:
		return core.LevelBranch, true
	case core.LevelBranch:
		return core.LevelTask, true
	}
	return "", false
}

// List returns contexts of one level, optionally filtered by parent.
func (s *Service) List(ctx context.Context, level core.ContextLevel, filter *Filter) ([]*Context, error) {
	if !level.IsValid() {
		return nil, core.ValidationError("level", fmt.Sprintf("invalid context level: %q", level))
	}
	return s.repo.List(ctx, level, filter)
}

// -----------------------------------------------------------------------------
// Delegation
// -----------------------------------------------------------------------------

type DelegateInput struct {
	Level       core.ContextLevel
	ID          core.ID
	TargetLevel core.ContextLevel
	Data        map[string]any
	Reason      string
}

// Delegate queues a delegation of data from (Level, ID) to its ancestor at
// TargetLevel. The target is not mutated; the queue is durable and
// idempotent over a short window.
func (s *Service) Delegate(ctx context.Context, in DelegateInput) (*Delegation, bool, error) {
	if !in.TargetLevel.IsAbove(in.Level) {
		return nil, false, core.NewError(core.CodeValidationError,
			fmt.Sprintf("delegation target level %s must be above source level %s", in.TargetLevel, in.Level),
			map[string]any{
				"field":    "delegate_to",
				"expected": "a level strictly above " + in.Level.String(),
				"actual":   in.TargetLevel.String(),
			})
	}
	if len(in.Data) == 0 {
		return nil, false, core.NewError(core.CodeMissingField, "delegated data is required", map[string]any{
			"field": "delegate_data",
		})
	}
	nodes, err := ancestorChain(ctx, s.repo, in.Level, in.ID)
	if err != nil {
		return nil, false, err
	}
	var targetID core.ID
	for _, node := range nodes {
		if node.Level == in.TargetLevel {
			targetID = node.ID
			break
		}
	}
	if targetID.IsZero() {
		return nil, false, core.NewError(core.CodeHierarchyViolation,
			fmt.Sprintf("no %s ancestor found for %s context %s", in.TargetLevel, in.Level, in.ID), nil)
	}
	d := NewDelegation(in.Level, in.ID, in.TargetLevel, targetID, in.Data, in.Reason, s.now())
	stored, created, err := s.delegations.CreateIdempotent(ctx, d, s.opts.DedupeWindow)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// -----------------------------------------------------------------------------
// Insights & Progress
// -----------------------------------------------------------------------------

// AddInsight appends a normalized insight record to the context document.
func (s *Service) AddInsight(
	ctx context.Context,
	level core.ContextLevel,
	id core.ID,
	content, category, importance, agentName string,
) (*Context, error) {
	if content == "" {
		return nil, core.NewError(core.CodeMissingField, "insight content is required", map[string]any{
			"field": "content",
		})
	}
	record := map[string]any{
		"content":   content,
		"timestamp": s.now().Format(time.RFC3339),
	}
	if category != "" {
		record["category"] = category
	}
	if importance != "" {
		record["importance"] = importance
	}
	if agentName != "" {
		record["agent"] = agentName
	}
	return s.Update(ctx, UpdateInput{
		Level: level,
		ID:    id,
		Data:  map[string]any{"insights": []any{record}},
	})
}

// AddProgress appends a normalized progress record to the context document.
func (s *Service) AddProgress(
	ctx context.Context,
	level core.ContextLevel,
	id core.ID,
	content, agentName string,
) (*Context, error) {
	if content == "" {
		return nil, core.NewError(core.CodeMissingField, "progress content is required", map[string]any{
			"field": "content",
		})
	}
	record := map[string]any{
		"content":   content,
		"timestamp": s.now().Format(time.RFC3339),
	}
	if agentName != "" {
		record["agent"] = agentName
	}
	return s.Update(ctx, UpdateInput{
		Level: level,
		ID:    id,
		Data:  map[string]any{"progress": []any{record}},
	})
}

// BootstrapGlobal ensures the singleton global context exists at startup.
func (s *Service) BootstrapGlobal(ctx context.Context) error {
	return s.ensureGlobal(ctx)
}
