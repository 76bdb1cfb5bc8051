package uc

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/branch"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/memstore"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/repo"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/project"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
)

type fixture struct {
	store    *memstore.Store
	clock    *memstore.Clock
	contexts *hierctx.Service
	project  *project.Project
	branch   *branch.Branch
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := memstore.NewFixedClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), time.Second)
	store := memstore.NewStore(clock)
	contexts := hierctx.NewService(
		store.ContextRepo(),
		store.DelegationRepo(),
		repo.NewBranchLookup(store),
		repo.NewTaskLookup(store),
		hierctx.Options{AutoCreateParents: true},
		clock.Now,
	)
	ctx := context.Background()
	p, err := project.New("demo", "demo project", "", clock.Now())
	require.NoError(t, err)
	require.NoError(t, store.ProjectRepo().Create(ctx, p))
	b, err := branch.New(p.ID, "feature/demo", "", clock.Now())
	require.NoError(t, err)
	require.NoError(t, store.BranchRepo().Create(ctx, b))
	return &fixture{store: store, clock: clock, contexts: contexts, project: p, branch: b}
}

func (f *fixture) createTask(t *testing.T, in CreateTaskInput) *task.Task {
	t.Helper()
	if in.BranchID.IsZero() {
		in.BranchID = f.branch.ID
	}
	out, err := NewCreateTask(f.store, f.contexts, f.clock.Now, in).Execute(context.Background())
	require.NoError(t, err)
	require.Empty(t, out.PartialFailures)
	return out.Task
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestCreateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("Should create the task with its context and bump branch counters", func(t *testing.T) {
		f := newFixture(t)
		out, err := NewCreateTask(f.store, f.contexts, f.clock.Now, CreateTaskInput{
			BranchID:    f.branch.ID,
			Title:       "Implement login",
			Description: "OAuth via the identity service",
			Priority:    "high",
		}).Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, core.StatusTodo, out.Task.Status)
		assert.Equal(t, core.PriorityHigh, out.Task.Priority)
		assert.Equal(t, out.Task.ID, out.Task.ContextID)
		require.NotNil(t, out.Context)
		assert.Equal(t, core.LevelTask, out.Context.Level)

		b, err := f.store.BranchRepo().Get(ctx, f.branch.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, b.TaskCount)
	})

	t.Run("Should accept a title of exactly 200 characters", func(t *testing.T) {
		f := newFixture(t)
		f.createTask(t, CreateTaskInput{Title: strings.Repeat("x", 200)})
	})

	t.Run("Should reject a title of 201 characters", func(t *testing.T) {
		f := newFixture(t)
		_, err := NewCreateTask(f.store, f.contexts, f.clock.Now, CreateTaskInput{
			BranchID: f.branch.ID,
			Title:    strings.Repeat("x", 201),
		}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeValidationError, core.CodeOf(err))
	})

	t.Run("Should reject an empty title", func(t *testing.T) {
		f := newFixture(t)
		_, err := NewCreateTask(f.store, f.contexts, f.clock.Now, CreateTaskInput{
			BranchID: f.branch.ID,
			Title:    "   ",
		}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeMissingField, core.CodeOf(err))
	})

	t.Run("Should reject creating a task in done state", func(t *testing.T) {
		f := newFixture(t)
		_, err := NewCreateTask(f.store, f.contexts, f.clock.Now, CreateTaskInput{
			BranchID: f.branch.ID,
			Title:    "ship it",
			Status:   "done",
		}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeInvalidState, core.CodeOf(err))
	})

	t.Run("Should reject unknown dependency targets", func(t *testing.T) {
		f := newFixture(t)
		_, err := NewCreateTask(f.store, f.contexts, f.clock.Now, CreateTaskInput{
			BranchID:     f.branch.ID,
			Title:        "with deps",
			Dependencies: []core.ID{"ghost"},
		}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeDependencyError, core.CodeOf(err))
	})

	t.Run("Should auto-register unknown assignees", func(t *testing.T) {
		f := newFixture(t)
		created := f.createTask(t, CreateTaskInput{
			Title:     "assigned work",
			Assignees: []core.ID{"coding-agent"},
		})
		assert.Equal(t, []core.ID{"coding-agent"}, created.Assignees)
		exists, err := f.store.AgentRepo().Exists(ctx, "coding-agent")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("Should reclassify progress-token details as a progress report", func(t *testing.T) {
		f := newFixture(t)
		created := f.createTask(t, CreateTaskInput{Title: "parser work"})
		out, err := NewUpdateTask(f.store, f.clock.Now, UpdateTaskInput{
			TaskID:  created.ID,
			Details: strPtr("Implemented: tokenizer and AST builder"),
		}).Execute(ctx)
		require.NoError(t, err)
		assert.True(t, out.ProgressReport)
		assert.Equal(t, core.StatusInProgress, out.Task.Status)
		require.Len(t, out.Task.ProgressNotes, 1)
		assert.NotEmpty(t, out.Hints)
	})

	t.Run("Should keep plain details as details", func(t *testing.T) {
		f := newFixture(t)
		created := f.createTask(t, CreateTaskInput{Title: "docs work"})
		out, err := NewUpdateTask(f.store, f.clock.Now, UpdateTaskInput{
			TaskID:  created.ID,
			Details: strPtr("needs a second reviewer"),
		}).Execute(ctx)
		require.NoError(t, err)
		assert.False(t, out.ProgressReport)
		assert.Equal(t, core.StatusTodo, out.Task.Status)
		assert.Empty(t, out.Task.ProgressNotes)
	})

	t.Run("Should reject done through update", func(t *testing.T) {
		f := newFixture(t)
		created := f.createTask(t, CreateTaskInput{Title: "no shortcut"})
		_, err := NewUpdateTask(f.store, f.clock.Now, UpdateTaskInput{
			TaskID: created.ID,
			Status: strPtr("done"),
		}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeInvalidState, core.CodeOf(err))
	})

	t.Run("Should reject an illegal status transition", func(t *testing.T) {
		f := newFixture(t)
		created := f.createTask(t, CreateTaskInput{Title: "review skip"})
		_, err := NewUpdateTask(f.store, f.clock.Now, UpdateTaskInput{
			TaskID: created.ID,
			Status: strPtr("review"),
		}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeInvalidState, core.CodeOf(err))
	})

	t.Run("Should reject progress outside 0..100", func(t *testing.T) {
		f := newFixture(t)
		created := f.createTask(t, CreateTaskInput{Title: "bounded"})
		_, err := NewUpdateTask(f.store, f.clock.Now, UpdateTaskInput{
			TaskID:   created.ID,
			Progress: intPtr(101),
		}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeValidationError, core.CodeOf(err))
	})

	t.Run("Should account started work into assignee workloads", func(t *testing.T) {
		f := newFixture(t)
		created := f.createTask(t, CreateTaskInput{
			Title:     "workload",
			Assignees: []core.ID{"worker-1"},
		})
		_, err := NewUpdateTask(f.store, f.clock.Now, UpdateTaskInput{
			TaskID: created.ID,
			Status: strPtr("in_progress"),
		}).Execute(ctx)
		require.NoError(t, err)
		a, err := f.store.AgentRepo().Get(ctx, "worker-1")
		require.NoError(t, err)
		assert.Contains(t, a.ActiveTasks, created.ID)
	})
}

func TestCompleteTask(t *testing.T) {
	ctx := context.Background()

	t.Run("Should complete the task and persist the completion context", func(t *testing.T) {
		f := newFixture(t)
		created := f.createTask(t, CreateTaskInput{Title: "finish me"})
		out, err := NewCompleteTask(f.store, f.contexts, f.clock.Now, CompleteTaskInput{
			TaskID:            created.ID,
			CompletionSummary: "implemented and verified against staging",
			TestingNotes:      "unit suite plus one manual run",
		}).Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, core.StatusDone, out.Task.Status)
		assert.Equal(t, 100, out.Task.ProgressPercentage)
		require.NotNil(t, out.Context)
		assert.Equal(t, "implemented and verified against staging", out.Context.Data["completion_summary"])
		assert.Equal(t, "unit suite plus one manual run", out.Context.Data["testing_notes"])
		assert.NotEmpty(t, out.Context.Data["completed_at"])

		b, err := f.store.BranchRepo().Get(ctx, f.branch.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, b.CompletedTaskCount)
	})

	t.Run("Should require a completion summary", func(t *testing.T) {
		f := newFixture(t)
		created := f.createTask(t, CreateTaskInput{Title: "summary-less"})
		_, err := NewCompleteTask(f.store, f.contexts, f.clock.Now, CompleteTaskInput{
			TaskID:            created.ID,
			CompletionSummary: "  ",
		}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeMissingField, core.CodeOf(err))
	})

	t.Run("Should enforce the configured minimum summary length", func(t *testing.T) {
		f := newFixture(t)
		created := f.createTask(t, CreateTaskInput{Title: "short summary"})
		_, err := NewCompleteTask(f.store, f.contexts, f.clock.Now, CompleteTaskInput{
			TaskID:            created.ID,
			CompletionSummary: "done",
			MinSummaryLength:  10,
		}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeValidationError, core.CodeOf(err))
	})

	t.Run("Should itemize incomplete subtasks with executable next actions", func(t *testing.T) {
		f := newFixture(t)
		created := f.createTask(t, CreateTaskInput{Title: "parent"})
		sub, err := NewAddSubtask(f.store, f.clock.Now, AddSubtaskInput{
			TaskID: created.ID,
			Title:  "child chore",
		}).Execute(ctx)
		require.NoError(t, err)

		_, err = NewCompleteTask(f.store, f.contexts, f.clock.Now, CompleteTaskInput{
			TaskID:            created.ID,
			CompletionSummary: "parent is allegedly finished",
		}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeInvalidState, core.CodeOf(err))
		details := core.DetailsOf(err)
		require.NotNil(t, details)
		incomplete, ok := details["incomplete_subtasks"].([]map[string]any)
		require.True(t, ok)
		require.Len(t, incomplete, 1)
		assert.Equal(t, sub.Subtask.ID.String(), incomplete[0]["id"])
		assert.Contains(t, details, "next_actions")
	})

	t.Run("Should reject completion while dependencies are open", func(t *testing.T) {
		f := newFixture(t)
		dep := f.createTask(t, CreateTaskInput{Title: "prerequisite"})
		created := f.createTask(t, CreateTaskInput{Title: "dependent"})
		_, err := NewAddDependency(f.store, f.clock.Now, DependencyInput{
			TaskID:       created.ID,
			DependencyID: dep.ID,
		}).Execute(ctx)
		require.NoError(t, err)

		_, err = NewCompleteTask(f.store, f.contexts, f.clock.Now, CompleteTaskInput{
			TaskID:            created.ID,
			CompletionSummary: "dependent claims completion",
		}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeDependencyError, core.CodeOf(err))
		details := core.DetailsOf(err)
		require.NotNil(t, details)
		assert.Contains(t, details, "blocking_dependencies")
	})

	t.Run("Should reject completing a done task twice", func(t *testing.T) {
		f := newFixture(t)
		created := f.createTask(t, CreateTaskInput{Title: "once only"})
		in := CompleteTaskInput{TaskID: created.ID, CompletionSummary: "finished for real"}
		_, err := NewCompleteTask(f.store, f.contexts, f.clock.Now, in).Execute(ctx)
		require.NoError(t, err)
		_, err = NewCompleteTask(f.store, f.contexts, f.clock.Now, in).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeInvalidState, core.CodeOf(err))
	})
}

func TestNextTask(t *testing.T) {
	ctx := context.Background()

	t.Run("Should pick by priority weight first", func(t *testing.T) {
		f := newFixture(t)
		f.createTask(t, CreateTaskInput{Title: "low", Priority: "low"})
		urgent := f.createTask(t, CreateTaskInput{Title: "urgent", Priority: "critical"})
		f.createTask(t, CreateTaskInput{Title: "mid", Priority: "medium"})

		out, err := NewNextTask(f.store, f.contexts, NextTaskInput{BranchID: f.branch.ID}).Execute(ctx)
		require.NoError(t, err)
		require.NotNil(t, out.Task)
		assert.Equal(t, urgent.ID, out.Task.ID)
	})

	t.Run("Should break priority ties by least recently updated", func(t *testing.T) {
		f := newFixture(t)
		older := f.createTask(t, CreateTaskInput{Title: "older", Priority: "high"})
		f.createTask(t, CreateTaskInput{Title: "newer", Priority: "high"})

		out, err := NewNextTask(f.store, f.contexts, NextTaskInput{BranchID: f.branch.ID}).Execute(ctx)
		require.NoError(t, err)
		require.NotNil(t, out.Task)
		assert.Equal(t, older.ID, out.Task.ID)
	})

	t.Run("Should skip tasks with open dependencies and report them blocked", func(t *testing.T) {
		f := newFixture(t)
		dep := f.createTask(t, CreateTaskInput{Title: "gate", Priority: "low"})
		blocked := f.createTask(t, CreateTaskInput{Title: "behind the gate", Priority: "critical"})
		_, err := NewAddDependency(f.store, f.clock.Now, DependencyInput{
			TaskID:       blocked.ID,
			DependencyID: dep.ID,
		}).Execute(ctx)
		require.NoError(t, err)

		out, err := NewNextTask(f.store, f.contexts, NextTaskInput{BranchID: f.branch.ID}).Execute(ctx)
		require.NoError(t, err)
		require.NotNil(t, out.Task)
		assert.Equal(t, dep.ID, out.Task.ID, "the gate itself is the only actionable task")
		require.Len(t, out.Blocked, 1)
		assert.Equal(t, blocked.ID, out.Blocked[0].ID)
	})

	t.Run("Should return empty with the blocked list when nothing is actionable", func(t *testing.T) {
		f := newFixture(t)
		out, err := NewNextTask(f.store, f.contexts, NextTaskInput{BranchID: f.branch.ID}).Execute(ctx)
		require.NoError(t, err)
		assert.Nil(t, out.Task)
		assert.Empty(t, out.Blocked)
	})

	t.Run("Should require a branch id", func(t *testing.T) {
		f := newFixture(t)
		_, err := NewNextTask(f.store, f.contexts, NextTaskInput{}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeMissingField, core.CodeOf(err))
	})
}

func TestDependencies(t *testing.T) {
	ctx := context.Background()

	t.Run("Should reject an edge that closes a cycle", func(t *testing.T) {
		f := newFixture(t)
		a := f.createTask(t, CreateTaskInput{Title: "a"})
		b := f.createTask(t, CreateTaskInput{Title: "b"})
		c := f.createTask(t, CreateTaskInput{Title: "c"})

		_, err := NewAddDependency(f.store, f.clock.Now, DependencyInput{TaskID: a.ID, DependencyID: b.ID}).Execute(ctx)
		require.NoError(t, err)
		_, err = NewAddDependency(f.store, f.clock.Now, DependencyInput{TaskID: b.ID, DependencyID: c.ID}).Execute(ctx)
		require.NoError(t, err)

		_, err = NewAddDependency(f.store, f.clock.Now, DependencyInput{TaskID: c.ID, DependencyID: a.ID}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeConstraintViolation, core.CodeOf(err))
		details := core.DetailsOf(err)
		require.NotNil(t, details)
		assert.Contains(t, details, "cycle")
	})

	t.Run("Should reject self dependencies", func(t *testing.T) {
		f := newFixture(t)
		a := f.createTask(t, CreateTaskInput{Title: "self"})
		_, err := NewAddDependency(f.store, f.clock.Now, DependencyInput{TaskID: a.ID, DependencyID: a.ID}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeConstraintViolation, core.CodeOf(err))
	})

	t.Run("Should treat re-adding an existing edge as a no-op", func(t *testing.T) {
		f := newFixture(t)
		a := f.createTask(t, CreateTaskInput{Title: "a"})
		b := f.createTask(t, CreateTaskInput{Title: "b"})
		in := DependencyInput{TaskID: a.ID, DependencyID: b.ID}

		first, err := NewAddDependency(f.store, f.clock.Now, in).Execute(ctx)
		require.NoError(t, err)
		assert.True(t, first.Changed)

		second, err := NewAddDependency(f.store, f.clock.Now, in).Execute(ctx)
		require.NoError(t, err)
		assert.False(t, second.Changed)
		assert.Len(t, second.Task.Dependencies, 1)
	})

	t.Run("Should treat removing a missing edge as a no-op", func(t *testing.T) {
		f := newFixture(t)
		a := f.createTask(t, CreateTaskInput{Title: "a"})
		out, err := NewRemoveDependency(f.store, f.clock.Now, DependencyInput{
			TaskID:       a.ID,
			DependencyID: "never-there",
		}).Execute(ctx)
		require.NoError(t, err)
		assert.False(t, out.Changed)
	})
}

func TestSubtasks(t *testing.T) {
	ctx := context.Background()

	t.Run("Should roll subtask completion into parent progress", func(t *testing.T) {
		f := newFixture(t)
		parent := f.createTask(t, CreateTaskInput{Title: "parent"})
		first, err := NewAddSubtask(f.store, f.clock.Now, AddSubtaskInput{TaskID: parent.ID, Title: "one"}).Execute(ctx)
		require.NoError(t, err)
		_, err = NewAddSubtask(f.store, f.clock.Now, AddSubtaskInput{TaskID: parent.ID, Title: "two"}).Execute(ctx)
		require.NoError(t, err)

		out, err := NewCompleteSubtask(f.store, f.clock.Now, CompleteSubtaskInput{
			SubtaskID:         first.Subtask.ID,
			CompletionSummary: "half done",
		}).Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, 50, out.Parent.ProgressPercentage)
	})

	t.Run("Should reject adding a subtask to a done parent", func(t *testing.T) {
		f := newFixture(t)
		parent := f.createTask(t, CreateTaskInput{Title: "done parent"})
		_, err := NewCompleteTask(f.store, f.contexts, f.clock.Now, CompleteTaskInput{
			TaskID:            parent.ID,
			CompletionSummary: "all wrapped up",
		}).Execute(ctx)
		require.NoError(t, err)

		_, err = NewAddSubtask(f.store, f.clock.Now, AddSubtaskInput{TaskID: parent.ID, Title: "late"}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeInvalidState, core.CodeOf(err))
	})

	t.Run("Should require a summary to complete a subtask", func(t *testing.T) {
		f := newFixture(t)
		parent := f.createTask(t, CreateTaskInput{Title: "parent"})
		sub, err := NewAddSubtask(f.store, f.clock.Now, AddSubtaskInput{TaskID: parent.ID, Title: "child"}).Execute(ctx)
		require.NoError(t, err)
		_, err = NewCompleteSubtask(f.store, f.clock.Now, CompleteSubtaskInput{SubtaskID: sub.Subtask.ID}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeMissingField, core.CodeOf(err))
	})

	t.Run("Should protect in-progress subtasks from removal", func(t *testing.T) {
		f := newFixture(t)
		parent := f.createTask(t, CreateTaskInput{Title: "parent"})
		sub, err := NewAddSubtask(f.store, f.clock.Now, AddSubtaskInput{TaskID: parent.ID, Title: "child"}).Execute(ctx)
		require.NoError(t, err)
		_, err = NewUpdateSubtask(f.store, f.clock.Now, UpdateSubtaskInput{
			SubtaskID: sub.Subtask.ID,
			Status:    strPtr("in_progress"),
		}).Execute(ctx)
		require.NoError(t, err)

		_, err = NewRemoveSubtask(f.store, f.clock.Now, RemoveSubtaskInput{SubtaskID: sub.Subtask.ID}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeInvalidState, core.CodeOf(err))
	})

	t.Run("Should block subtasks that report blockers", func(t *testing.T) {
		f := newFixture(t)
		parent := f.createTask(t, CreateTaskInput{Title: "parent"})
		sub, err := NewAddSubtask(f.store, f.clock.Now, AddSubtaskInput{TaskID: parent.ID, Title: "child"}).Execute(ctx)
		require.NoError(t, err)
		out, err := NewUpdateSubtask(f.store, f.clock.Now, UpdateSubtaskInput{
			SubtaskID: sub.Subtask.ID,
			Blockers:  []string{"waiting on credentials"},
		}).Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, core.StatusBlocked, out.Subtask.Status)
	})
}

func TestDeleteTask(t *testing.T) {
	ctx := context.Background()

	t.Run("Should refuse deleting a task others depend on", func(t *testing.T) {
		f := newFixture(t)
		dep := f.createTask(t, CreateTaskInput{Title: "load-bearing"})
		other := f.createTask(t, CreateTaskInput{Title: "leaning on it"})
		_, err := NewAddDependency(f.store, f.clock.Now, DependencyInput{
			TaskID:       other.ID,
			DependencyID: dep.ID,
		}).Execute(ctx)
		require.NoError(t, err)

		_, err = NewDeleteTask(f.store, f.contexts, f.clock.Now, DeleteTaskInput{TaskID: dep.ID}).Execute(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeConstraintViolation, core.CodeOf(err))
		details := core.DetailsOf(err)
		require.NotNil(t, details)
		assert.Contains(t, details, "dependent_tasks")
	})

	t.Run("Should delete the task with its subtasks and context", func(t *testing.T) {
		f := newFixture(t)
		created := f.createTask(t, CreateTaskInput{Title: "short-lived"})
		_, err := NewAddSubtask(f.store, f.clock.Now, AddSubtaskInput{TaskID: created.ID, Title: "child"}).Execute(ctx)
		require.NoError(t, err)

		out, err := NewDeleteTask(f.store, f.contexts, f.clock.Now, DeleteTaskInput{TaskID: created.ID}).Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, out.DeletedSubtasks)

		_, err = f.store.TaskRepo().FindByIDAllStates(ctx, created.ID)
		assert.True(t, core.IsNotFound(err))
		exists, err := f.store.ContextRepo().Exists(ctx, core.LevelTask, created.ID)
		require.NoError(t, err)
		assert.False(t, exists)

		b, err := f.store.BranchRepo().Get(ctx, f.branch.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, b.TaskCount)
	})
}
