package mcptools

import (
	"context"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/guidance"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
	taskuc "github.com/phamhung075/dhafnck-mcp-sub000/engine/task/uc"
)

var taskActions = []string{
	"create", "update", "get", "list", "search", "next",
	"complete", "delete", "add_dependency", "remove_dependency",
}

func (s *Server) handleManageTask(ctx context.Context, args map[string]any) *core.Response {
	action := stringArg(args, "action")
	operation := "manage_task." + action
	switch action {
	case "create":
		return s.taskCreate(ctx, operation, args)
	case "update":
		return s.taskUpdate(ctx, operation, args)
	case "get":
		return s.taskGet(ctx, operation, args)
	case "list":
		return s.taskList(ctx, operation, args)
	case "search":
		return s.taskSearch(ctx, operation, args)
	case "next":
		return s.taskNext(ctx, operation, args)
	case "complete":
		return s.taskComplete(ctx, operation, args)
	case "delete":
		return s.taskDelete(ctx, operation, args)
	case "add_dependency":
		return s.taskDependency(ctx, operation, args, true)
	case "remove_dependency":
		return s.taskDependency(ctx, operation, args, false)
	default:
		return s.fail("manage_task", unknownAction("manage_task", action, taskActions))
	}
}

func (s *Server) taskCreate(ctx context.Context, operation string, args map[string]any) *core.Response {
	branchID, err := requiredArg(args, "git_branch_id")
	if err != nil {
		return s.fail(operation, err)
	}
	title, err := requiredArg(args, "title")
	if err != nil {
		return s.fail(operation, err)
	}
	assignees, err := coerceIDList(args["assignees"])
	if err != nil {
		return s.fail(operation, err)
	}
	labels, err := coerceStringList(args["labels"])
	if err != nil {
		return s.fail(operation, err)
	}
	dependencies, err := coerceIDList(args["dependencies"])
	if err != nil {
		return s.fail(operation, err)
	}
	dueDate, err := timePtrArg(args, "due_date")
	if err != nil {
		return s.fail(operation, err)
	}
	out, err := taskuc.NewCreateTask(s.repos, s.contexts, s.now, taskuc.CreateTaskInput{
		BranchID:        core.ID(branchID),
		Title:           title,
		Description:     stringArg(args, "description"),
		Status:          stringArg(args, "status"),
		Priority:        stringArg(args, "priority"),
		Details:         stringArg(args, "details"),
		EstimatedEffort: stringArg(args, "estimated_effort"),
		Assignees:       assignees,
		Labels:          labels,
		DueDate:         dueDate,
		Dependencies:    dependencies,
	}).Execute(ctx)
	if err != nil {
		if out != nil && len(out.PartialFailures) > 0 {
			resp := s.fail(operation, err)
			resp.Confirmation.PartialFailures = out.PartialFailures
			return resp
		}
		return s.fail(operation, err)
	}
	data := map[string]any{"task": out.Task.AsMap()}
	if out.Context != nil {
		data["context_id"] = out.Context.ID.String()
	}
	return s.succeed(operation, data, out.PartialFailures, guidance.Input{
		State: map[string]any{
			"task_id": out.Task.ID.String(),
			"status":  out.Task.Status.String(),
		},
		NextActions: []guidance.Action{{
			Tool: "manage_task",
			Params: map[string]any{
				"action":  "update",
				"task_id": out.Task.ID.String(),
				"status":  "in_progress",
			},
			Reason:     "Start working on the created task",
			Confidence: 0.7,
			Priority:   guidance.PriorityMedium,
		}},
	})
}

// taskUpdateArgs is the closed parameter set of the update action.
// Unknown fields are rejected rather than silently dropped.
var taskUpdateArgs = map[string]bool{
	"action":              true,
	"task_id":             true,
	"title":               true,
	"description":         true,
	"status":              true,
	"priority":            true,
	"details":             true,
	"estimated_effort":    true,
	"due_date":            true,
	"progress_percentage": true,
	"assignees":           true,
	"labels":              true,
}

func (s *Server) taskUpdate(ctx context.Context, operation string, args map[string]any) *core.Response {
	if err := validateArgKeys(args, taskUpdateArgs); err != nil {
		return s.fail(operation, err)
	}
	taskID, err := requiredArg(args, "task_id")
	if err != nil {
		return s.fail(operation, err)
	}
	progress, err := intPtrArg(args, "progress_percentage")
	if err != nil {
		return s.fail(operation, err)
	}
	dueDate, err := timePtrArg(args, "due_date")
	if err != nil {
		return s.fail(operation, err)
	}
	in := taskuc.UpdateTaskInput{
		TaskID:          core.ID(taskID),
		Title:           stringPtrArg(args, "title"),
		Description:     stringPtrArg(args, "description"),
		Status:          stringPtrArg(args, "status"),
		Priority:        stringPtrArg(args, "priority"),
		Details:         stringPtrArg(args, "details"),
		EstimatedEffort: stringPtrArg(args, "estimated_effort"),
		DueDate:         dueDate,
		Progress:        progress,
	}
	if raw, ok := args["assignees"]; ok {
		assignees, err := coerceIDList(raw)
		if err != nil {
			return s.fail(operation, err)
		}
		in.Assignees = assignees
	}
	if raw, ok := args["labels"]; ok {
		labels, err := coerceStringList(raw)
		if err != nil {
			return s.fail(operation, err)
		}
		in.Labels = labels
	}
	out, err := taskuc.NewUpdateTask(s.repos, s.now, in).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	data := map[string]any{"task": out.Task.AsMap()}
	if out.ProgressReport {
		data["reclassified_as_progress"] = true
	}
	return s.succeed(operation, data, nil, guidance.Input{
		State: map[string]any{
			"task_id": out.Task.ID.String(),
			"status":  out.Task.Status.String(),
		},
		Warnings: out.Hints,
	})
}

func (s *Server) taskGet(ctx context.Context, operation string, args map[string]any) *core.Response {
	taskID, err := requiredArg(args, "task_id")
	if err != nil {
		return s.fail(operation, err)
	}
	includeContext, warning := coerceBool(args["include_context"])
	out, err := taskuc.NewGetTask(s.repos, s.contexts, taskuc.GetTaskInput{
		TaskID:         core.ID(taskID),
		IncludeContext: includeContext,
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	data := map[string]any{
		"task":          out.Task.AsMap(),
		"relationships": out.Relationships,
	}
	if out.Context != nil {
		data["context_data"] = out.Context
	}
	var warnings []string
	if warning != "" {
		warnings = append(warnings, warning)
	}
	return s.succeed(operation, data, nil, guidance.Input{
		State: map[string]any{
			"task_id":   out.Task.ID.String(),
			"status":    out.Task.Status.String(),
			"can_start": out.Relationships.Summary.CanStart,
		},
		Warnings: warnings,
	})
}

func (s *Server) taskList(ctx context.Context, operation string, args map[string]any) *core.Response {
	filter, err := s.taskFilterFromArgs(args)
	if err != nil {
		return s.fail(operation, err)
	}
	out, err := taskuc.NewListTasks(s.repos, taskuc.ListTasksInput{Filter: filter}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	tasks := make([]map[string]any, 0, len(out.Tasks))
	for _, t := range out.Tasks {
		tasks = append(tasks, t.AsMap())
	}
	return s.succeed(operation, map[string]any{
		"tasks": tasks,
		"count": out.Count,
	}, nil, guidance.Input{
		State: map[string]any{"count": out.Count},
	})
}

func (s *Server) taskFilterFromArgs(args map[string]any) (*task.Filter, error) {
	filter := &task.Filter{}
	if raw := stringArg(args, "git_branch_id"); raw != "" {
		id := core.ID(raw)
		filter.BranchID = &id
	}
	if raw := stringArg(args, "status"); raw != "" {
		status, err := core.ParseTaskStatus(raw)
		if err != nil {
			return nil, err
		}
		filter.Status = &status
	}
	if raw := stringArg(args, "priority"); raw != "" {
		priority, err := core.ParsePriority(raw)
		if err != nil {
			return nil, err
		}
		filter.Priority = &priority
	}
	assignees, err := coerceIDList(args["assignees"])
	if err != nil {
		return nil, err
	}
	filter.Assignees = assignees
	labels, err := coerceStringList(args["labels"])
	if err != nil {
		return nil, err
	}
	filter.Labels = labels
	limit, err := coerceLimit(args["limit"])
	if err != nil {
		return nil, err
	}
	filter.Limit = limit
	return filter, nil
}

func (s *Server) taskSearch(ctx context.Context, operation string, args map[string]any) *core.Response {
	query, err := requiredArg(args, "query")
	if err != nil {
		return s.fail(operation, err)
	}
	limit, err := coerceLimit(args["limit"])
	if err != nil {
		return s.fail(operation, err)
	}
	in := taskuc.SearchTasksInput{Query: query, Limit: limit}
	if raw := stringArg(args, "git_branch_id"); raw != "" {
		id := core.ID(raw)
		in.BranchID = &id
	}
	out, err := taskuc.NewSearchTasks(s.repos, in).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	tasks := make([]map[string]any, 0, len(out.Tasks))
	for _, t := range out.Tasks {
		tasks = append(tasks, t.AsMap())
	}
	return s.succeed(operation, map[string]any{
		"tasks": tasks,
		"count": out.Count,
	}, nil, guidance.Input{
		State: map[string]any{"count": out.Count, "query": query},
	})
}

func (s *Server) taskNext(ctx context.Context, operation string, args map[string]any) *core.Response {
	branchID, err := requiredArg(args, "git_branch_id")
	if err != nil {
		return s.fail(operation, err)
	}
	includeContext, warning := coerceBool(args["include_context"])
	out, err := taskuc.NewNextTask(s.repos, s.contexts, taskuc.NextTaskInput{
		BranchID:       core.ID(branchID),
		IncludeContext: includeContext,
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	var warnings []string
	if warning != "" {
		warnings = append(warnings, warning)
	}
	if out.Task == nil {
		blocked := make([]map[string]any, 0, len(out.Blocked))
		for _, t := range out.Blocked {
			blocked = append(blocked, map[string]any{
				"id":     t.ID.String(),
				"title":  t.Title,
				"status": t.Status.String(),
			})
		}
		return s.succeed(operation, map[string]any{
			"task":          nil,
			"blocked_tasks": blocked,
			"message":       "no actionable task on this branch",
		}, nil, guidance.Input{
			State:    map[string]any{"git_branch_id": branchID, "blocked_count": len(blocked)},
			Warnings: warnings,
		})
	}
	data := map[string]any{"task": out.Task.AsMap()}
	if out.Context != nil {
		data["context_data"] = out.Context
	}
	return s.succeed(operation, data, nil, guidance.Input{
		State: map[string]any{
			"task_id": out.Task.ID.String(),
			"status":  out.Task.Status.String(),
		},
		NextActions: []guidance.Action{{
			Tool: "manage_task",
			Params: map[string]any{
				"action":  "update",
				"task_id": out.Task.ID.String(),
				"status":  "in_progress",
			},
			Reason:     "Begin the selected task",
			Confidence: 0.8,
			Priority:   guidance.PriorityHigh,
		}},
		Warnings: warnings,
	})
}

func (s *Server) taskComplete(ctx context.Context, operation string, args map[string]any) *core.Response {
	taskID, err := requiredArg(args, "task_id")
	if err != nil {
		return s.fail(operation, err)
	}
	minLength := 0
	if s.cfg.Vision.Enabled && s.cfg.Vision.ContextEnforcement.Enabled {
		minLength = s.cfg.Vision.ContextEnforcement.MinSummaryLength
	}
	out, err := taskuc.NewCompleteTask(s.repos, s.contexts, s.now, taskuc.CompleteTaskInput{
		TaskID:            core.ID(taskID),
		CompletionSummary: stringArg(args, "completion_summary"),
		TestingNotes:      stringArg(args, "testing_notes"),
		MinSummaryLength:  minLength,
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"task": out.Task.AsMap(),
	}, out.PartialFailures, guidance.Input{
		State: map[string]any{
			"task_id": out.Task.ID.String(),
			"status":  out.Task.Status.String(),
		},
		NextActions: []guidance.Action{{
			Tool: "manage_task",
			Params: map[string]any{
				"action":        "next",
				"git_branch_id": out.Task.BranchID.String(),
			},
			Reason:     "Pick the next actionable task on the branch",
			Confidence: 0.8,
			Priority:   guidance.PriorityMedium,
		}},
	})
}

func (s *Server) taskDelete(ctx context.Context, operation string, args map[string]any) *core.Response {
	taskID, err := requiredArg(args, "task_id")
	if err != nil {
		return s.fail(operation, err)
	}
	out, err := taskuc.NewDeleteTask(s.repos, s.contexts, s.now, taskuc.DeleteTaskInput{
		TaskID: core.ID(taskID),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"deleted_task_id":  taskID,
		"deleted_subtasks": out.DeletedSubtasks,
	}, out.PartialFailures, guidance.Input{
		State: map[string]any{"task_id": taskID},
	})
}

func (s *Server) taskDependency(ctx context.Context, operation string, args map[string]any, add bool) *core.Response {
	taskID, err := requiredArg(args, "task_id")
	if err != nil {
		return s.fail(operation, err)
	}
	depID, err := requiredArg(args, "dependency_id")
	if err != nil {
		return s.fail(operation, err)
	}
	in := taskuc.DependencyInput{
		TaskID:       core.ID(taskID),
		DependencyID: core.ID(depID),
	}
	var out *taskuc.DependencyOutput
	if add {
		out, err = taskuc.NewAddDependency(s.repos, s.now, in).Execute(ctx)
	} else {
		out, err = taskuc.NewRemoveDependency(s.repos, s.now, in).Execute(ctx)
	}
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"task":    out.Task.AsMap(),
		"changed": out.Changed,
	}, nil, guidance.Input{
		State: map[string]any{
			"task_id":          taskID,
			"dependency_count": len(out.Task.Dependencies),
		},
	})
}

// timePtrArg parses an optional RFC 3339 or date-only timestamp.
func timePtrArg(args map[string]any, key string) (*time.Time, error) {
	raw := stringArg(args, key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, core.NewError(core.CodeInvalidFormat,
		key+" must be an RFC 3339 timestamp or YYYY-MM-DD date", map[string]any{
			"field":  key,
			"actual": raw,
		})
}
