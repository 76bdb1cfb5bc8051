package core

import "fmt"

// -----------------------------------------------------------------------------
// Task Status
// -----------------------------------------------------------------------------

type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
	StatusBlocked    TaskStatus = "blocked"
	StatusCancelled  TaskStatus = "cancelled"
)

func (s TaskStatus) String() string {
	return string(s)
}

func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone, StatusBlocked, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the status closes active workflow. Blocked and
// cancelled are terminal for workflow but reversible to todo.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusDone, StatusBlocked, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo encodes the task state machine of the lifecycle service.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusTodo:
		return next == StatusInProgress || next == StatusBlocked || next == StatusCancelled
	case StatusInProgress:
		return next == StatusReview || next == StatusDone || next == StatusBlocked ||
			next == StatusCancelled || next == StatusTodo
	case StatusReview:
		return next == StatusDone || next == StatusInProgress || next == StatusBlocked ||
			next == StatusCancelled
	case StatusBlocked, StatusCancelled:
		return next == StatusTodo
	case StatusDone:
		return false
	}
	return false
}

func ParseTaskStatus(raw string) (TaskStatus, error) {
	s := TaskStatus(raw)
	if !s.IsValid() {
		return "", NewError(CodeValidationError, fmt.Sprintf("invalid task status: %q", raw), map[string]any{
			"field":    "status",
			"expected": "todo|in_progress|review|done|blocked|cancelled",
			"actual":   raw,
		})
	}
	return s, nil
}

// -----------------------------------------------------------------------------
// Agent Status
// -----------------------------------------------------------------------------

type AgentStatus string

const (
	AgentAvailable AgentStatus = "available"
	AgentBusy      AgentStatus = "busy"
	AgentPaused    AgentStatus = "paused"
	AgentOffline   AgentStatus = "offline"
)

func (s AgentStatus) String() string {
	return string(s)
}

func (s AgentStatus) IsValid() bool {
	switch s {
	case AgentAvailable, AgentBusy, AgentPaused, AgentOffline:
		return true
	}
	return false
}

func ParseAgentStatus(raw string) (AgentStatus, error) {
	s := AgentStatus(raw)
	if !s.IsValid() {
		return "", NewError(CodeValidationError, fmt.Sprintf("invalid agent status: %q", raw), map[string]any{
			"field":    "status",
			"expected": "available|busy|paused|offline",
			"actual":   raw,
		})
	}
	return s, nil
}
