package core

import "fmt"

// ContextLevel identifies one of the four levels of the context hierarchy.
// Levels are ordered: global < project < branch < task.
type ContextLevel string

const (
	LevelGlobal  ContextLevel = "global"
	LevelProject ContextLevel = "project"
	LevelBranch  ContextLevel = "branch"
	LevelTask    ContextLevel = "task"
)

// GlobalSingletonID is the fixed id of the one global context.
const GlobalSingletonID ID = "global_singleton"

var levelDepth = map[ContextLevel]int{
	LevelGlobal:  0,
	LevelProject: 1,
	LevelBranch:  2,
	LevelTask:    3,
}

func (l ContextLevel) String() string {
	return string(l)
}

func (l ContextLevel) IsValid() bool {
	_, ok := levelDepth[l]
	return ok
}

// Depth returns the position of the level in the hierarchy, global being 0.
func (l ContextLevel) Depth() int {
	return levelDepth[l]
}

// Parent returns the level immediately above, or false for global.
func (l ContextLevel) Parent() (ContextLevel, bool) {
	switch l {
	case LevelProject:
		return LevelGlobal, true
	case LevelBranch:
		return LevelProject, true
	case LevelTask:
		return LevelBranch, true
	}
	return "", false
}

// IsAbove reports whether l is strictly higher in the hierarchy than other.
func (l ContextLevel) IsAbove(other ContextLevel) bool {
	return l.Depth() < other.Depth()
}

// Chain returns the ancestor chain from global down to l, inclusive.
func (l ContextLevel) Chain() []ContextLevel {
	chain := []ContextLevel{LevelGlobal, LevelProject, LevelBranch, LevelTask}
	return chain[:l.Depth()+1]
}

func ParseContextLevel(raw string) (ContextLevel, error) {
	l := ContextLevel(raw)
	if !l.IsValid() {
		return "", NewError(CodeValidationError, fmt.Sprintf("invalid context level: %q", raw), map[string]any{
			"field":    "level",
			"expected": "global|project|branch|task",
			"actual":   raw,
		})
	}
	return l, nil
}
