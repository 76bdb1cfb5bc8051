package uc

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/agent"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/repo"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
	"github.com/phamhung075/dhafnck-mcp-sub000/pkg/logger"
)

// ensureAgentRegistered auto-registers an unknown assignee so assignment
// never fails on a missing agent record.
func ensureAgentRegistered(ctx context.Context, repos repo.Provider, agentID core.ID, now func() time.Time) error {
	exists, err := repos.AgentRepo().Exists(ctx, agentID)
	if err != nil {
		return fmt.Errorf("checking agent %s: %w", agentID, err)
	}
	if exists {
		return nil
	}
	a, err := agent.New(agentID, agentID.String(), "auto-registered on assignment", now())
	if err != nil {
		return err
	}
	if err := repos.AgentRepo().Create(ctx, a); err != nil {
		if core.IsAlreadyExists(err) {
			return nil
		}
		return err
	}
	logger.FromContext(ctx).Info("auto-registered agent on assignment", "agent_id", agentID)
	return nil
}

// recomputeParentProgress recalculates a task's progress percentage from
// its subtasks: 100 * done / total, rounded.
func recomputeParentProgress(ctx context.Context, repos repo.Provider, taskID core.ID, now time.Time) error {
	t, err := repos.TaskRepo().Get(ctx, taskID)
	if err != nil {
		return err
	}
	subtasks, err := repos.SubtaskRepo().List(ctx, &task.SubtaskFilter{TaskID: &taskID})
	if err != nil {
		return err
	}
	done := 0
	for _, s := range subtasks {
		if s.Status == core.StatusDone {
			done++
		}
	}
	if len(subtasks) > 0 {
		t.ProgressPercentage = int(math.Round(100 * float64(done) / float64(len(subtasks))))
	}
	t.UpdatedAt = now
	return repos.TaskRepo().Update(ctx, taskID, t)
}
