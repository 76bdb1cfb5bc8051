package mcptools

import (
	"context"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/guidance"
	taskuc "github.com/phamhung075/dhafnck-mcp-sub000/engine/task/uc"
)

var subtaskActions = []string{"add", "create", "update", "complete", "remove", "delete", "get", "list"}

func (s *Server) handleManageSubtask(ctx context.Context, args map[string]any) *core.Response {
	action := stringArg(args, "action")
	operation := "manage_subtask." + action
	switch action {
	case "add", "create":
		return s.subtaskCreate(ctx, operation, args)
	case "update":
		return s.subtaskUpdate(ctx, operation, args)
	case "complete":
		return s.subtaskComplete(ctx, operation, args)
	case "remove", "delete":
		return s.subtaskDelete(ctx, operation, args)
	case "get":
		return s.subtaskGet(ctx, operation, args)
	case "list":
		return s.subtaskList(ctx, operation, args)
	default:
		return s.fail("manage_subtask", unknownAction("manage_subtask", action, subtaskActions))
	}
}

func (s *Server) subtaskCreate(ctx context.Context, operation string, args map[string]any) *core.Response {
	taskID, err := requiredArg(args, "task_id")
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
	out, err := taskuc.NewAddSubtask(s.repos, s.now, taskuc.AddSubtaskInput{
		TaskID:      core.ID(taskID),
		Title:       title,
		Description: stringArg(args, "description"),
		Priority:    stringArg(args, "priority"),
		Assignees:   assignees,
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"subtask": out.Subtask.AsMap(),
		"parent_progress": map[string]any{
			"progress_percentage": out.Parent.ProgressPercentage,
			"subtask_count":       len(out.Parent.Subtasks),
		},
	}, nil, guidance.Input{
		State: map[string]any{
			"task_id":    taskID,
			"subtask_id": out.Subtask.ID.String(),
		},
	})
}

func (s *Server) subtaskUpdate(ctx context.Context, operation string, args map[string]any) *core.Response {
	subtaskID, err := requiredArg(args, "subtask_id")
	if err != nil {
		return s.fail(operation, err)
	}
	progress, err := intPtrArg(args, "progress_percentage")
	if err != nil {
		return s.fail(operation, err)
	}
	in := taskuc.UpdateSubtaskInput{
		SubtaskID:     core.ID(subtaskID),
		Title:         stringPtrArg(args, "title"),
		Description:   stringPtrArg(args, "description"),
		Status:        stringPtrArg(args, "status"),
		Priority:      stringPtrArg(args, "priority"),
		Progress:      progress,
		ProgressNotes: stringPtrArg(args, "progress_notes"),
	}
	if raw, ok := args["blockers"]; ok {
		blockers, err := coerceStringList(raw)
		if err != nil {
			return s.fail(operation, err)
		}
		in.Blockers = blockers
	}
	if raw, ok := args["assignees"]; ok {
		assignees, err := coerceIDList(raw)
		if err != nil {
			return s.fail(operation, err)
		}
		in.Assignees = assignees
	}
	out, err := taskuc.NewUpdateSubtask(s.repos, s.now, in).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"subtask": out.Subtask.AsMap(),
		"parent_progress": map[string]any{
			"progress_percentage": out.Parent.ProgressPercentage,
		},
	}, nil, guidance.Input{
		State: map[string]any{
			"subtask_id": subtaskID,
			"status":     out.Subtask.Status.String(),
		},
	})
}

func (s *Server) subtaskComplete(ctx context.Context, operation string, args map[string]any) *core.Response {
	subtaskID, err := requiredArg(args, "subtask_id")
	if err != nil {
		return s.fail(operation, err)
	}
	insights, err := coerceStringList(args["insights_found"])
	if err != nil {
		return s.fail(operation, err)
	}
	out, err := taskuc.NewCompleteSubtask(s.repos, s.now, taskuc.CompleteSubtaskInput{
		SubtaskID:         core.ID(subtaskID),
		CompletionSummary: stringArg(args, "completion_summary"),
		ImpactOnParent:    stringArg(args, "impact_on_parent"),
		InsightsFound:     insights,
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	var nextActions []guidance.Action
	if out.Parent.ProgressPercentage == 100 {
		nextActions = append(nextActions, guidance.Action{
			Tool: "manage_task",
			Params: map[string]any{
				"action":  "complete",
				"task_id": out.Parent.ID.String(),
			},
			Reason:     "All subtasks are done; the parent can complete",
			Confidence: 0.9,
			Priority:   guidance.PriorityHigh,
		})
	}
	return s.succeed(operation, map[string]any{
		"subtask": out.Subtask.AsMap(),
		"parent_progress": map[string]any{
			"progress_percentage": out.Parent.ProgressPercentage,
		},
	}, nil, guidance.Input{
		State: map[string]any{
			"subtask_id":      subtaskID,
			"parent_task_id":  out.Parent.ID.String(),
			"parent_progress": out.Parent.ProgressPercentage,
		},
		NextActions: nextActions,
	})
}

func (s *Server) subtaskDelete(ctx context.Context, operation string, args map[string]any) *core.Response {
	subtaskID, err := requiredArg(args, "subtask_id")
	if err != nil {
		return s.fail(operation, err)
	}
	out, err := taskuc.NewRemoveSubtask(s.repos, s.now, taskuc.RemoveSubtaskInput{
		SubtaskID: core.ID(subtaskID),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"deleted_subtask_id": subtaskID,
		"parent_progress": map[string]any{
			"progress_percentage": out.Parent.ProgressPercentage,
		},
	}, nil, guidance.Input{
		State: map[string]any{"subtask_id": subtaskID},
	})
}

func (s *Server) subtaskGet(ctx context.Context, operation string, args map[string]any) *core.Response {
	subtaskID, err := requiredArg(args, "subtask_id")
	if err != nil {
		return s.fail(operation, err)
	}
	subtask, err := taskuc.NewGetSubtask(s.repos, taskuc.GetSubtaskInput{
		SubtaskID: core.ID(subtaskID),
	}).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	return s.succeed(operation, map[string]any{
		"subtask": subtask.AsMap(),
	}, nil, guidance.Input{
		State: map[string]any{
			"subtask_id": subtaskID,
			"status":     subtask.Status.String(),
		},
	})
}

func (s *Server) subtaskList(ctx context.Context, operation string, args map[string]any) *core.Response {
	taskID, err := requiredArg(args, "task_id")
	if err != nil {
		return s.fail(operation, err)
	}
	limit, err := coerceLimit(args["limit"])
	if err != nil {
		return s.fail(operation, err)
	}
	in := taskuc.ListSubtasksInput{TaskID: core.ID(taskID), Limit: limit}
	if raw := stringArg(args, "status"); raw != "" {
		status, err := core.ParseTaskStatus(raw)
		if err != nil {
			return s.fail(operation, err)
		}
		in.Status = &status
	}
	out, err := taskuc.NewListSubtasks(s.repos, in).Execute(ctx)
	if err != nil {
		return s.fail(operation, err)
	}
	subtasks := make([]map[string]any, 0, len(out.Subtasks))
	for _, st := range out.Subtasks {
		subtasks = append(subtasks, st.AsMap())
	}
	return s.succeed(operation, map[string]any{
		"subtasks": subtasks,
		"count":    out.Count,
		"progress": map[string]any{
			"done":  out.Done,
			"total": out.Total,
		},
	}, nil, guidance.Input{
		State: map[string]any{
			"task_id":       taskID,
			"subtask_count": out.Total,
		},
	})
}
