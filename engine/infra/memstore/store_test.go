package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
)

func newTask(t *testing.T, clock *Clock, title string) *task.Task {
	t.Helper()
	created, err := task.New("b-1", title, "", clock.Now())
	require.NoError(t, err)
	return created
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("Should restore the snapshot when the transaction fails", func(t *testing.T) {
		clock := NewFixedClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.Second)
		store := NewStore(clock)
		keeper := newTask(t, clock, "survives")
		require.NoError(t, store.TaskRepo().Create(ctx, keeper))

		boom := errors.New("abort")
		err := store.WithTx(ctx, func(txCtx context.Context) error {
			doomed := newTask(t, clock, "rolled back")
			if err := store.TaskRepo().Create(txCtx, doomed); err != nil {
				return err
			}
			keeper.Title = "mutated"
			if err := store.TaskRepo().Update(txCtx, keeper.ID, keeper); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, err := store.TaskRepo().Get(ctx, keeper.ID)
		require.NoError(t, err)
		assert.Equal(t, "survives", got.Title)
		all, err := store.TaskRepo().List(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Should commit the writes when the transaction succeeds", func(t *testing.T) {
		clock := NewFixedClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.Second)
		store := NewStore(clock)
		created := newTask(t, clock, "committed")
		err := store.WithTx(ctx, func(txCtx context.Context) error {
			return store.TaskRepo().Create(txCtx, created)
		})
		require.NoError(t, err)
		_, err = store.TaskRepo().Get(ctx, created.ID)
		require.NoError(t, err)
	})

	t.Run("Should let reads inside the transaction see its writes", func(t *testing.T) {
		clock := NewFixedClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.Second)
		store := NewStore(clock)
		created := newTask(t, clock, "visible inside")
		err := store.WithTx(ctx, func(txCtx context.Context) error {
			if err := store.TaskRepo().Create(txCtx, created); err != nil {
				return err
			}
			got, err := store.TaskRepo().Get(txCtx, created.ID)
			if err != nil {
				return err
			}
			assert.Equal(t, "visible inside", got.Title)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("Should join a nested transaction instead of deadlocking", func(t *testing.T) {
		clock := NewFixedClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.Second)
		store := NewStore(clock)
		created := newTask(t, clock, "nested")
		err := store.WithTx(ctx, func(outer context.Context) error {
			return store.WithTx(outer, func(inner context.Context) error {
				return store.TaskRepo().Create(inner, created)
			})
		})
		require.NoError(t, err)
		_, err = store.TaskRepo().Get(ctx, created.ID)
		require.NoError(t, err)
	})

	t.Run("Should roll the whole chain back when the inner step fails", func(t *testing.T) {
		clock := NewFixedClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.Second)
		store := NewStore(clock)
		created := newTask(t, clock, "outer write")
		boom := errors.New("inner abort")
		err := store.WithTx(ctx, func(outer context.Context) error {
			if err := store.TaskRepo().Create(outer, created); err != nil {
				return err
			}
			return store.WithTx(outer, func(context.Context) error {
				return boom
			})
		})
		require.ErrorIs(t, err, boom)
		_, err = store.TaskRepo().Get(ctx, created.ID)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("Should refuse to start on a cancelled context", func(t *testing.T) {
		clock := NewFixedClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.Second)
		store := NewStore(clock)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := store.WithTx(cancelled, func(context.Context) error { return nil })
		require.Error(t, err)
		assert.Equal(t, core.CodeOperationFailed, core.CodeOf(err))
	})
}

func TestFixedClock(t *testing.T) {
	t.Run("Should advance by its step on every read", func(t *testing.T) {
		base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		clock := NewFixedClock(base, time.Second)
		first := clock.Now()
		second := clock.Now()
		assert.Equal(t, base, first)
		assert.Equal(t, base.Add(time.Second), second)
	})
}
