package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseEnvelope(t *testing.T) {
	t.Run("Should set success true only on the success status", func(t *testing.T) {
		ok := NewSuccessResponse("manage_task.create", map[string]any{"x": 1})
		assert.Equal(t, StatusSuccess, ok.Status)
		assert.True(t, ok.Success)

		partial := NewPartialResponse("manage_task.complete", nil, []PartialFailure{
			{Operation: "update_branch_counters", Error: "boom", Impact: "counters stale"},
		})
		assert.Equal(t, StatusPartialSuccess, partial.Status)
		assert.False(t, partial.Success)

		failed := NewErrorResponse("manage_task.get", NotFoundError("task", "t-1"))
		assert.Equal(t, StatusFailure, failed.Status)
		assert.False(t, failed.Success)
	})
	t.Run("Should confirm persistence on partial success", func(t *testing.T) {
		resp := NewPartialResponse("manage_task.complete", nil, []PartialFailure{
			{Operation: "settle_agents", Error: "agent gone", Impact: "workload stale"},
		})
		assert.True(t, resp.Confirmation.OperationCompleted)
		assert.True(t, resp.Confirmation.DataPersisted)
		assert.Len(t, resp.Confirmation.PartialFailures, 1)
	})
	t.Run("Should carry classified code and details on failure", func(t *testing.T) {
		err := NewError(CodeConstraintViolation, "cycle detected", map[string]any{
			"cycle": []string{"a", "b", "a"},
		})
		resp := NewErrorResponse("manage_task.add_dependency", err)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeConstraintViolation, resp.Error.Code)
		assert.False(t, resp.Confirmation.DataPersisted)
		require.Contains(t, resp.Metadata, "error_details")
	})
	t.Run("Should classify unwrapped errors as INTERNAL_ERROR", func(t *testing.T) {
		resp := NewErrorResponse("manage_task.get", errors.New("disk on fire"))
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeInternalError, resp.Error.Code)
	})
	t.Run("Should assign a unique operation id per envelope", func(t *testing.T) {
		a := NewSuccessResponse("op", nil)
		b := NewSuccessResponse("op", nil)
		assert.NotEqual(t, a.OperationID, b.OperationID)
	})
}

func TestErrorHelpers(t *testing.T) {
	t.Run("Should detect classified codes through wrapping", func(t *testing.T) {
		base := NotFoundError("project", "p-1")
		assert.True(t, IsNotFound(base))
		assert.False(t, IsAlreadyExists(base))
	})
	t.Run("Should extract details from classified errors", func(t *testing.T) {
		err := ValidationError("limit", "limit must be an integer within 1..100")
		details := DetailsOf(err)
		require.NotNil(t, details)
		assert.Equal(t, "limit", details["field"])
	})
}
