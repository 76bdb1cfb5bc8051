package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStatus_CanTransitionTo(t *testing.T) {
	t.Run("Should allow the documented forward transitions", func(t *testing.T) {
		assert.True(t, StatusTodo.CanTransitionTo(StatusInProgress))
		assert.True(t, StatusInProgress.CanTransitionTo(StatusReview))
		assert.True(t, StatusInProgress.CanTransitionTo(StatusDone))
		assert.True(t, StatusReview.CanTransitionTo(StatusDone))
	})
	t.Run("Should treat done as terminal", func(t *testing.T) {
		for _, next := range []TaskStatus{
			StatusTodo, StatusInProgress, StatusReview, StatusBlocked, StatusCancelled,
		} {
			assert.False(t, StatusDone.CanTransitionTo(next), "done -> %s must be rejected", next)
		}
	})
	t.Run("Should allow blocked and cancelled back to todo only", func(t *testing.T) {
		assert.True(t, StatusBlocked.CanTransitionTo(StatusTodo))
		assert.True(t, StatusCancelled.CanTransitionTo(StatusTodo))
		assert.False(t, StatusBlocked.CanTransitionTo(StatusInProgress))
		assert.False(t, StatusCancelled.CanTransitionTo(StatusDone))
	})
	t.Run("Should allow self transitions", func(t *testing.T) {
		assert.True(t, StatusReview.CanTransitionTo(StatusReview))
	})
	t.Run("Should reject skipping from todo to review", func(t *testing.T) {
		assert.False(t, StatusTodo.CanTransitionTo(StatusReview))
		assert.False(t, StatusTodo.CanTransitionTo(StatusDone))
	})
}

func TestParseTaskStatus(t *testing.T) {
	t.Run("Should parse every member of the closed set", func(t *testing.T) {
		for _, raw := range []string{"todo", "in_progress", "review", "done", "blocked", "cancelled"} {
			status, err := ParseTaskStatus(raw)
			require.NoError(t, err)
			assert.Equal(t, raw, status.String())
		}
	})
	t.Run("Should reject unknown values with a VALIDATION_ERROR", func(t *testing.T) {
		_, err := ParseTaskStatus("doing")
		require.Error(t, err)
		assert.Equal(t, CodeValidationError, CodeOf(err))
	})
}

func TestPriority_Weight(t *testing.T) {
	t.Run("Should map the four priorities onto their scoring weights", func(t *testing.T) {
		assert.Equal(t, 25, PriorityLow.Weight())
		assert.Equal(t, 50, PriorityMedium.Weight())
		assert.Equal(t, 75, PriorityHigh.Weight())
		assert.Equal(t, 100, PriorityCritical.Weight())
	})
	t.Run("Should weigh unknown priorities zero", func(t *testing.T) {
		assert.Equal(t, 0, Priority("urgent").Weight())
	})
}

func TestParsePriority(t *testing.T) {
	t.Run("Should reject values outside the closed set", func(t *testing.T) {
		_, err := ParsePriority("p0")
		require.Error(t, err)
		assert.Equal(t, CodeValidationError, CodeOf(err))
	})
}
