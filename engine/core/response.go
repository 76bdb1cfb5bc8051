package core

import "time"

// -----------------------------------------------------------------------------
// Response Envelope
// -----------------------------------------------------------------------------

type ResponseStatus string

const (
	StatusSuccess        ResponseStatus = "success"
	StatusPartialSuccess ResponseStatus = "partial_success"
	StatusFailure        ResponseStatus = "failure"
)

// PartialFailure itemizes a secondary step that failed after the primary
// step committed.
type PartialFailure struct {
	Operation string `json:"operation"`
	Error     string `json:"error"`
	Impact    string `json:"impact"`
}

type Confirmation struct {
	OperationCompleted bool             `json:"operation_completed"`
	DataPersisted      bool             `json:"data_persisted"`
	PartialFailures    []PartialFailure `json:"partial_failures,omitempty"`
}

type ErrorInfo struct {
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

// Response is the uniform envelope every tool invocation returns. Success
// mirrors Status=="success" and is kept for caller compatibility.
type Response struct {
	Status       ResponseStatus `json:"status"`
	Success      bool           `json:"success"`
	Operation    string         `json:"operation"`
	OperationID  ID             `json:"operation_id"`
	Timestamp    time.Time      `json:"timestamp"`
	Confirmation Confirmation   `json:"confirmation"`
	Data         map[string]any `json:"data,omitempty"`
	Error        *ErrorInfo     `json:"error,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`

	// WorkflowGuidance and ErrorGuidance are attached by the response
	// enhancer; they are opaque to the envelope itself.
	WorkflowGuidance any `json:"workflow_guidance,omitempty"`
	ErrorGuidance    any `json:"autonomous_error_guidance,omitempty"`
}

// NewSuccessResponse builds a success envelope for the named operation.
func NewSuccessResponse(operation string, data map[string]any) *Response {
	return &Response{
		Status:      StatusSuccess,
		Success:     true,
		Operation:   operation,
		OperationID: MustNewID(),
		Timestamp:   time.Now().UTC(),
		Confirmation: Confirmation{
			OperationCompleted: true,
			DataPersisted:      true,
		},
		Data: data,
	}
}

// NewPartialResponse builds a partial_success envelope: the primary step
// committed but secondary steps failed.
func NewPartialResponse(operation string, data map[string]any, failures []PartialFailure) *Response {
	return &Response{
		Status:      StatusPartialSuccess,
		Success:     false,
		Operation:   operation,
		OperationID: MustNewID(),
		Timestamp:   time.Now().UTC(),
		Confirmation: Confirmation{
			OperationCompleted: true,
			DataPersisted:      true,
			PartialFailures:    failures,
		},
		Data: data,
	}
}

// NewErrorResponse builds a failure envelope from a classified error.
func NewErrorResponse(operation string, err error) *Response {
	now := time.Now().UTC()
	resp := &Response{
		Status:      StatusFailure,
		Success:     false,
		Operation:   operation,
		OperationID: MustNewID(),
		Timestamp:   now,
		Confirmation: Confirmation{
			OperationCompleted: false,
			DataPersisted:      false,
		},
		Error: &ErrorInfo{
			Message:   err.Error(),
			Code:      CodeOf(err),
			Operation: operation,
			Timestamp: now,
		},
	}
	if details := DetailsOf(err); len(details) > 0 {
		resp.Metadata = map[string]any{"error_details": details}
	}
	return resp
}

// WithMetadata merges extra metadata into the envelope.
func (r *Response) WithMetadata(key string, value any) *Response {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
	return r
}
