package mcptools

import (
	"context"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/guidance"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
)

var contextActions = []string{
	"create", "get", "update", "delete", "resolve",
	"delegate", "add_insight", "add_progress", "list",
}

func (s *Server) handleManageContext(ctx context.Context, args map[string]any) *core.Response {
	action := stringArg(args, "action")
	operation := "manage_context." + action
	switch action {
	case "create":
		return s.contextCreate(ctx, operation, args)
	case "get":
		return s.contextGet(ctx, operation, args)
	case "update":
		return s.contextUpdate(ctx, operation, args)
	case "delete":
		return s.contextDelete(ctx, operation, args)
	case "resolve":
		return s.contextResolve(ctx, operation, args)
	case "delegate":
		return s.contextDelegate(ctx, operation, args)
	case "add_insight":
		return s.contextAddInsight(ctx, operation, args)
	case "add_progress":
		return s.contextAddProgress(ctx, operation, args)
	case "list":
		return s.contextList(ctx, operation, args)
	default:
		return s.fail("manage_context", unknownAction("manage_context", action, contextActions))
	}
}

// contextTarget reads the (level, context_id) pair shared by most context
// actions. The global level needs no explicit id.
func contextTarget(args map[string]any) (core.ContextLevel, core.ID, error) {
	rawLevel, err := requiredArg(args, "level")
	if err != nil {
		return "", "", err
	}
	level, err := core.ParseContextLevel(rawLevel)
	if err != nil {
		return "", "", err
	}
	id := core.ID(stringArg(args, "context_id"))
	if level == core.LevelGlobal && id.IsZero() {
		id = core.GlobalSingletonID
	}
	if id.IsZero() {
		return "", "", core.NewError(core.CodeMissingField, "context_id is required", map[string]any{
			"field": "context_id",
		})
	}
	return level, id, nil
}

func (s *Server) contextCreate(ctx context.Context, operation string, args map[string]any) *core.Response {
	rawLevel, err := requiredArg(args, "level")
	if err != nil {
		return s.fail(operation, err)
	}
	level, err := core.ParseContextLevel(rawLevel)
	if err != nil {
		return s.fail(operation, err)
	}
	data, err := mapArg(args, "data")
	if err != nil {
		return s.fail(operation, err)
	}
	created, err := s.contexts.Create(ctx, hierctx.CreateInput{
		Level:     level,
		ID:        core.ID(stringArg(args, "context_id")),
		Data:      data,
		UserID:    stringArg(args, "user_id"),
		ProjectID: core.ID(stringArg(args, "project_id")),
		BranchID:  core.ID(stringArg(args, "git_branch_id")),
	})
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"context": created,
	}, nil, guidance.Input{
		State: map[string]any{
			"level":      created.Level.String(),
			"context_id": created.ID.String(),
		},
	})
}

func (s *Server) contextGet(ctx context.Context, operation string, args map[string]any) *core.Response {
	level, id, err := contextTarget(args)
	if err != nil {
		return s.fail(operation, err)
	}
	var warnings []string
	includeInherited, warn := coerceBool(args["include_inherited"])
	if warn != "" {
		warnings = append(warnings, warn)
	}
	forceRefresh, warn := coerceBool(args["force_refresh"])
	if warn != "" {
		warnings = append(warnings, warn)
	}
	out, err := s.contexts.Get(ctx, hierctx.GetInput{
		Level:            level,
		ID:               id,
		IncludeInherited: includeInherited,
		ForceRefresh:     forceRefresh,
	})
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"context":    out.Context,
		"data":       out.Document,
		"resolved":   out.Resolved,
		"from_cache": out.FromCache,
	}, nil, guidance.Input{
		State: map[string]any{
			"level":      level.String(),
			"context_id": id.String(),
		},
		Warnings: warnings,
	})
}

func (s *Server) contextUpdate(ctx context.Context, operation string, args map[string]any) *core.Response {
	level, id, err := contextTarget(args)
	if err != nil {
		return s.fail(operation, err)
	}
	// An empty data map is a valid no-op update: it only bumps the
	// version and updated_at.
	data, err := mapArg(args, "data")
	if err != nil {
		return s.fail(operation, err)
	}
	var warnings []string
	propagate, warn := coerceBool(args["propagate_changes"])
	if warn != "" {
		warnings = append(warnings, warn)
	}
	updated, err := s.contexts.Update(ctx, hierctx.UpdateInput{
		Level:     level,
		ID:        id,
		Data:      data,
		Propagate: propagate,
	})
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"context": updated,
	}, nil, guidance.Input{
		State: map[string]any{
			"level":      level.String(),
			"context_id": id.String(),
			"version":    updated.Version,
		},
		Warnings: warnings,
	})
}

func (s *Server) contextDelete(ctx context.Context, operation string, args map[string]any) *core.Response {
	level, id, err := contextTarget(args)
	if err != nil {
		return s.fail(operation, err)
	}
	if level == core.LevelGlobal {
		return s.fail(operation, core.NewError(core.CodeInvalidState,
			"the global context cannot be deleted", map[string]any{
				"level": level.String(),
			}))
	}
	if err := s.contexts.Delete(ctx, level, id); err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"deleted_context_id": id.String(),
		"level":              level.String(),
	}, nil, guidance.Input{
		State: map[string]any{
			"level":      level.String(),
			"context_id": id.String(),
		},
	})
}

func (s *Server) contextResolve(ctx context.Context, operation string, args map[string]any) *core.Response {
	level, id, err := contextTarget(args)
	if err != nil {
		return s.fail(operation, err)
	}
	var warnings []string
	forceRefresh, warn := coerceBool(args["force_refresh"])
	if warn != "" {
		warnings = append(warnings, warn)
	}
	out, err := s.contexts.Resolve(ctx, level, id, forceRefresh)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"context":    out.Context,
		"data":       out.Document,
		"resolved":   true,
		"from_cache": out.FromCache,
	}, nil, guidance.Input{
		State: map[string]any{
			"level":      level.String(),
			"context_id": id.String(),
			"from_cache": out.FromCache,
		},
		Warnings: warnings,
	})
}

func (s *Server) contextDelegate(ctx context.Context, operation string, args map[string]any) *core.Response {
	level, id, err := contextTarget(args)
	if err != nil {
		return s.fail(operation, err)
	}
	rawTarget, err := requiredArg(args, "delegate_to")
	if err != nil {
		return s.fail(operation, err)
	}
	targetLevel, err := core.ParseContextLevel(rawTarget)
	if err != nil {
		return s.fail(operation, err)
	}
	data, err := mapArg(args, "delegate_data")
	if err != nil {
		return s.fail(operation, err)
	}
	d, created, err := s.contexts.Delegate(ctx, hierctx.DelegateInput{
		Level:       level,
		ID:          id,
		TargetLevel: targetLevel,
		Data:        data,
		Reason:      stringArg(args, "delegation_reason"),
	})
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"delegation": d,
		"created":    created,
		"queued":     !d.Processed,
	}, nil, guidance.Input{
		State: map[string]any{
			"delegation_id": d.ID.String(),
			"source_level":  level.String(),
			"target_level":  targetLevel.String(),
			"created":       created,
		},
	})
}

func (s *Server) contextAddInsight(ctx context.Context, operation string, args map[string]any) *core.Response {
	level, id, err := contextTarget(args)
	if err != nil {
		return s.fail(operation, err)
	}
	content, err := requiredArg(args, "content")
	if err != nil {
		return s.fail(operation, err)
	}
	updated, err := s.contexts.AddInsight(ctx, level, id, content,
		stringArg(args, "category"),
		stringArg(args, "importance"),
		stringArg(args, "agent"),
	)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"context": updated,
	}, nil, guidance.Input{
		State: map[string]any{
			"level":      level.String(),
			"context_id": id.String(),
		},
	})
}

func (s *Server) contextAddProgress(ctx context.Context, operation string, args map[string]any) *core.Response {
	level, id, err := contextTarget(args)
	if err != nil {
		return s.fail(operation, err)
	}
	content, err := requiredArg(args, "content")
	if err != nil {
		return s.fail(operation, err)
	}
	updated, err := s.contexts.AddProgress(ctx, level, id, content, stringArg(args, "agent"))
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"context": updated,
	}, nil, guidance.Input{
		State: map[string]any{
			"level":      level.String(),
			"context_id": id.String(),
		},
	})
}

func (s *Server) contextList(ctx context.Context, operation string, args map[string]any) *core.Response {
	rawLevel, err := requiredArg(args, "level")
	if err != nil {
		return s.fail(operation, err)
	}
	level, err := core.ParseContextLevel(rawLevel)
	if err != nil {
		return s.fail(operation, err)
	}
	limit, err := coerceLimit(args["limit"])
	if err != nil {
		return s.fail(operation, err)
	}
	filter := &hierctx.Filter{Limit: limit}
	if raw := stringArg(args, "parent_id"); raw != "" {
		parentID := core.ID(raw)
		filter.ParentID = &parentID
	}
	contexts, err := s.contexts.List(ctx, level, filter)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"contexts": contexts,
		"count":    len(contexts),
	}, nil, guidance.Input{
		State: map[string]any{
			"level": level.String(),
			"count": len(contexts),
		},
	})
}
