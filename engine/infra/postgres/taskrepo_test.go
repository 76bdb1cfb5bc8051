package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/postgres"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
)

var taskColumns = []string{
	"id", "branch_id", "title", "description", "status", "priority",
	"details", "estimated_effort", "due_date", "context_id",
	"progress_percentage", "assignees", "labels", "dependencies",
	"subtasks", "progress_notes", "archived", "created_at", "updated_at",
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func taskRowValues(id string, now time.Time) []any {
	var nilTime *time.Time
	return []any{
		id, "b-1", "Implement login", "", "todo", "medium",
		"", "", nilTime, id,
		0, []byte(`["coding-agent"]`), []byte(`[]`), []byte(`[]`),
		[]byte(`[]`), []byte(`[]`), false, now, now,
	}
}

func TestTaskRepo_Get(t *testing.T) {
	t.Run("Should scan a full row into the entity", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewTaskRepo(mockPool)
		now := time.Now().UTC()
		rows := mockPool.NewRows(taskColumns).AddRow(taskRowValues("t-1", now)...)
		mockPool.ExpectQuery("SELECT \\* FROM tasks WHERE id = \\$1 AND archived = \\$2").
			WithArgs("t-1", false).
			WillReturnRows(rows)
		got, err := repo.Get(context.Background(), "t-1")
		require.NoError(t, err)
		assert.Equal(t, core.ID("t-1"), got.ID)
		assert.Equal(t, "Implement login", got.Title)
		assert.Equal(t, core.StatusTodo, got.Status)
		assert.Equal(t, []core.ID{"coding-agent"}, got.Assignees)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should map pgx.ErrNoRows onto NOT_FOUND", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewTaskRepo(mockPool)
		mockPool.ExpectQuery("SELECT \\* FROM tasks").
			WithArgs("ghost", false).
			WillReturnError(pgx.ErrNoRows)
		_, err = repo.Get(context.Background(), "ghost")
		require.Error(t, err)
		assert.True(t, core.IsNotFound(err))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should include archived rows through FindByIDAllStates", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewTaskRepo(mockPool)
		now := time.Now().UTC()
		rows := mockPool.NewRows(taskColumns).AddRow(taskRowValues("t-2", now)...)
		mockPool.ExpectQuery("SELECT \\* FROM tasks WHERE id = \\$1").
			WithArgs("t-2").
			WillReturnRows(rows)
		got, err := repo.FindByIDAllStates(context.Background(), "t-2")
		require.NoError(t, err)
		assert.Equal(t, core.ID("t-2"), got.ID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestTaskRepo_Create(t *testing.T) {
	t.Run("Should insert the serialized row", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewTaskRepo(mockPool)
		created, err := task.New("b-1", "Implement login", "", time.Now().UTC())
		require.NoError(t, err)
		mockPool.ExpectExec("INSERT INTO tasks").
			WithArgs(anyArgs(19)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		require.NoError(t, repo.Create(context.Background(), created))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should classify driver failures as DATABASE_ERROR", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewTaskRepo(mockPool)
		created, err := task.New("b-1", "Implement login", "", time.Now().UTC())
		require.NoError(t, err)
		mockPool.ExpectExec("INSERT INTO tasks").
			WithArgs(anyArgs(19)...).
			WillReturnError(errors.New("connection reset"))
		err = repo.Create(context.Background(), created)
		require.Error(t, err)
		assert.Equal(t, core.CodeDatabaseError, core.CodeOf(err))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestTaskRepo_Update(t *testing.T) {
	t.Run("Should report NOT_FOUND when no row was touched", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewTaskRepo(mockPool)
		created, err := task.New("b-1", "Implement login", "", time.Now().UTC())
		require.NoError(t, err)
		mockPool.ExpectExec("UPDATE tasks").
			WithArgs(anyArgs(18)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		err = repo.Update(context.Background(), created.ID, created)
		require.Error(t, err)
		assert.True(t, core.IsNotFound(err))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestTaskRepo_Exists(t *testing.T) {
	t.Run("Should answer false on an empty result", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewTaskRepo(mockPool)
		mockPool.ExpectQuery("SELECT 1 FROM tasks").
			WithArgs(anyArgs(2)...).
			WillReturnError(pgx.ErrNoRows)
		exists, err := repo.Exists(context.Background(), "ghost")
		require.NoError(t, err)
		assert.False(t, exists)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestTaskRepo_List(t *testing.T) {
	t.Run("Should apply branch and status filters", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewTaskRepo(mockPool)
		now := time.Now().UTC()
		rows := mockPool.NewRows(taskColumns).AddRow(taskRowValues("t-1", now)...)
		mockPool.ExpectQuery("SELECT \\* FROM tasks WHERE archived = \\$1 AND branch_id = \\$2 AND status = \\$3").
			WithArgs(false, "b-1", "todo").
			WillReturnRows(rows)
		branchID := core.ID("b-1")
		status := core.StatusTodo
		got, err := repo.List(context.Background(), &task.Filter{BranchID: &branchID, Status: &status})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, core.ID("t-1"), got[0].ID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
