package memstore

import (
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/agent"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/branch"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/project"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
)

// Repositories hand out copies so callers never alias stored state.

func copyIDs(ids []core.ID) []core.ID {
	if ids == nil {
		return nil
	}
	return append([]core.ID{}, ids...)
}

func copyStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	return append([]string{}, ss...)
}

func copyTask(t *task.Task) *task.Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Assignees = copyIDs(t.Assignees)
	c.Labels = copyStrings(t.Labels)
	c.Dependencies = copyIDs(t.Dependencies)
	c.Subtasks = copyIDs(t.Subtasks)
	c.ProgressNotes = copyStrings(t.ProgressNotes)
	if t.DueDate != nil {
		due := *t.DueDate
		c.DueDate = &due
	}
	return &c
}

func copySubtask(s *task.Subtask) *task.Subtask {
	if s == nil {
		return nil
	}
	c := *s
	c.Assignees = copyIDs(s.Assignees)
	c.ProgressNotes = copyStrings(s.ProgressNotes)
	c.Blockers = copyStrings(s.Blockers)
	c.InsightsFound = copyStrings(s.InsightsFound)
	if s.CompletedAt != nil {
		done := *s.CompletedAt
		c.CompletedAt = &done
	}
	return &c
}

func copyProject(p *project.Project) *project.Project {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func copyBranch(b *branch.Branch) *branch.Branch {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

func copyAgent(a *agent.Agent) *agent.Agent {
	if a == nil {
		return nil
	}
	c := *a
	c.Capabilities = append([]core.Capability{}, a.Capabilities...)
	c.AssignedProjects = copyIDs(a.AssignedProjects)
	c.AssignedTrees = copyIDs(a.AssignedTrees)
	c.ActiveTasks = copyIDs(a.ActiveTasks)
	return &c
}

func copyContext(c *hierctx.Context) *hierctx.Context {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Data = hierctx.CopyDocument(c.Data)
	return &cp
}
