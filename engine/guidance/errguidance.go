package guidance

import (
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

// ErrorGuidance is the autonomous_error_guidance block attached to failure
// envelopes.
type ErrorGuidance struct {
	ErrorType          string        `json:"error_type"`
	ResolutionSteps    []string      `json:"resolution_steps"`
	RetryStrategy      RetryStrategy `json:"retry_strategy"`
	AlternativeActions []Action      `json:"alternative_actions,omitempty"`
}

type RetryStrategy struct {
	MaxRetries int    `json:"max_retries"`
	Backoff    string `json:"backoff"`
}

// EnhanceError classifies the failure and attaches remediation guidance.
func EnhanceError(resp *core.Response) {
	if resp == nil || resp.Error == nil {
		return
	}
	eg := &ErrorGuidance{}
	switch resp.Error.Code {
	case core.CodeHierarchyViolation, core.CodeContextCreationFailed, core.CodeContextSyncFailed:
		eg.ErrorType = "context_error"
		eg.ResolutionSteps = []string{
			"Inspect error details for the missing ancestor levels.",
			"Create the missing parent contexts, or enable auto-creation.",
			"Retry the original operation.",
		}
		eg.RetryStrategy = RetryStrategy{MaxRetries: 2, Backoff: "none"}
		eg.AlternativeActions = []Action{{
			Tool:       "manage_context",
			Params:     map[string]any{"action": "create"},
			Reason:     "Create the missing ancestor context directly",
			Confidence: 0.8,
			Priority:   PriorityHigh,
		}}
	case core.CodeDependencyError, core.CodeConstraintViolation, core.CodeInvalidState:
		eg.ErrorType = "dependency_error"
		eg.ResolutionSteps = []string{
			"Inspect error details for the blocking task or subtask ids.",
			"Complete or unblock the listed items.",
			"Retry the original operation.",
		}
		eg.RetryStrategy = RetryStrategy{MaxRetries: 3, Backoff: "none"}
	case core.CodeValidationError, core.CodeMissingField, core.CodeInvalidFormat:
		eg.ErrorType = "validation_error"
		eg.ResolutionSteps = []string{
			"Correct the field named in error details.",
			"Resubmit with valid parameters.",
		}
		eg.RetryStrategy = RetryStrategy{MaxRetries: 1, Backoff: "none"}
	case core.CodeNotFound:
		eg.ErrorType = "not_found_error"
		eg.ResolutionSteps = []string{
			"Verify the id; the entity may have been deleted or archived.",
			"Use the matching list action to discover valid ids.",
		}
		eg.RetryStrategy = RetryStrategy{MaxRetries: 1, Backoff: "none"}
	case core.CodeDatabaseError, core.CodeInternalError, core.CodeOperationFailed:
		eg.ErrorType = "infrastructure_error"
		eg.ResolutionSteps = []string{
			"The failure is transient or internal; no request change needed.",
			"Retry with exponential backoff.",
		}
		eg.RetryStrategy = RetryStrategy{MaxRetries: 5, Backoff: "exponential"}
	default:
		eg.ErrorType = "operation_error"
		eg.ResolutionSteps = []string{"Inspect the error message and adjust the request."}
		eg.RetryStrategy = RetryStrategy{MaxRetries: 1, Backoff: "none"}
	}
	resp.ErrorGuidance = eg
}
