package core

import "fmt"

// Priority is a closed enum carrying an integer weight used by next-task
// scoring.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var priorityWeights = map[Priority]int{
	PriorityLow:      25,
	PriorityMedium:   50,
	PriorityHigh:     75,
	PriorityCritical: 100,
}

func (p Priority) String() string {
	return string(p)
}

func (p Priority) IsValid() bool {
	_, ok := priorityWeights[p]
	return ok
}

// Weight returns the scoring weight (low=25, medium=50, high=75,
// critical=100). Unknown priorities weigh zero.
func (p Priority) Weight() int {
	return priorityWeights[p]
}

func ParsePriority(raw string) (Priority, error) {
	p := Priority(raw)
	if !p.IsValid() {
		return "", NewError(CodeValidationError, fmt.Sprintf("invalid priority: %q", raw), map[string]any{
			"field":    "priority",
			"expected": "low|medium|high|critical",
			"actual":   raw,
		})
	}
	return p, nil
}
