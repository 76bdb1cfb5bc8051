package core

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Error Codes
// -----------------------------------------------------------------------------

// Closed set of error codes surfaced in response envelopes.
const (
	CodeValidationError       = "VALIDATION_ERROR"
	CodeMissingField          = "MISSING_FIELD"
	CodeInvalidFormat         = "INVALID_FORMAT"
	CodeNotFound              = "NOT_FOUND"
	CodeAlreadyExists         = "ALREADY_EXISTS"
	CodeHierarchyViolation    = "HIERARCHY_VIOLATION"
	CodeDependencyError       = "DEPENDENCY_ERROR"
	CodeConstraintViolation   = "CONSTRAINT_VIOLATION"
	CodeInvalidState          = "INVALID_STATE"
	CodeContextCreationFailed = "CONTEXT_CREATION_FAILED"
	CodeContextSyncFailed     = "CONTEXT_SYNC_FAILED"
	CodeAutoDetectionFailed   = "AUTO_DETECTION_FAILED"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeDatabaseError         = "DATABASE_ERROR"
	CodeInternalError         = "INTERNAL_ERROR"
	CodeOperationFailed       = "OPERATION_FAILED"
)

// -----------------------------------------------------------------------------
// Error Value
// -----------------------------------------------------------------------------

// Error is the classified error value used across all use cases. Details
// carries structured context for the caller (missing ancestor ids, blocking
// task ids, field hints) so that a remote agent can repair its request.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code, message string, details map[string]any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// NotFoundError is a convenience constructor for missing entities.
func NotFoundError(kind string, id ID) *Error {
	return NewError(CodeNotFound, fmt.Sprintf("%s not found: %s", kind, id), map[string]any{
		"entity": kind,
		"id":     id.String(),
	})
}

// ValidationError is a convenience constructor for malformed input.
func ValidationError(field, message string) *Error {
	return NewError(CodeValidationError, message, map[string]any{"field": field})
}

// CodeOf extracts the classified code from any error. Unclassified errors
// map to INTERNAL_ERROR per the propagation policy.
func CodeOf(err error) string {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.Code
	}
	return CodeInternalError
}

// DetailsOf extracts the structured details from a classified error, or nil.
func DetailsOf(err error) map[string]any {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.Details
	}
	return nil
}

func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

func IsAlreadyExists(err error) bool {
	return CodeOf(err) == CodeAlreadyExists
}
