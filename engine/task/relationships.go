package task

import (
	"context"
	"fmt"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

// DependencyInfo is a flattened view of one related task.
type DependencyInfo struct {
	TaskID             core.ID         `json:"task_id"`
	Title              string          `json:"title"`
	Status             core.TaskStatus `json:"status"`
	Priority           core.Priority   `json:"priority"`
	ProgressPercentage int             `json:"progress_percentage"`
}

// DependencyChain is one transitive chain reachable through a direct
// dependency, ordered from the direct dependency downward.
type DependencyChain struct {
	TaskIDs              []core.ID `json:"task_ids"`
	ChainStatus          string    `json:"chain_status"`
	CompletedCount       int       `json:"completed_count"`
	BlockedCount         int       `json:"blocked_count"`
	CompletionPercentage float64   `json:"completion_percentage"`
	NextTask             core.ID   `json:"next_task,omitempty"`
}

// RelationshipSummary carries the headline numbers for the task's position
// in the dependency graph.
type RelationshipSummary struct {
	TotalDependencies              int     `json:"total_dependencies"`
	CompletedDependencies          int     `json:"completed_dependencies"`
	BlockedDependencies            int     `json:"blocked_dependencies"`
	CanStart                       bool    `json:"can_start"`
	IsBlocked                      bool    `json:"is_blocked"`
	IsBlockingOthers               bool    `json:"is_blocking_others"`
	DependencyCompletionPercentage float64 `json:"dependency_completion_percentage"`
}

// Relationships is the resolved dependency structure returned by get.
type Relationships struct {
	DependsOn        []DependencyInfo    `json:"depends_on"`
	Blocks           []DependencyInfo    `json:"blocks"`
	DependencyChains []DependencyChain   `json:"dependency_chains"`
	Summary          RelationshipSummary `json:"summary"`
	BlockingReasons  []string            `json:"blocking_reasons,omitempty"`
}

// ComputeRelationships resolves the dependency structure of t against the
// repository. Completed dependencies may live in the archive, so lookups go
// through FindByIDAllStates.
func ComputeRelationships(ctx context.Context, repo Repository, t *Task) (*Relationships, error) {
	rel := &Relationships{
		DependsOn:        make([]DependencyInfo, 0, len(t.Dependencies)),
		Blocks:           []DependencyInfo{},
		DependencyChains: []DependencyChain{},
	}
	for _, depID := range t.Dependencies {
		dep, err := repo.FindByIDAllStates(ctx, depID)
		if err != nil {
			return nil, fmt.Errorf("resolving dependency %s: %w", depID, err)
		}
		rel.DependsOn = append(rel.DependsOn, infoOf(dep))
		chain, err := buildChain(ctx, repo, dep)
		if err != nil {
			return nil, err
		}
		rel.DependencyChains = append(rel.DependencyChains, chain)
		switch dep.Status {
		case core.StatusDone:
			rel.Summary.CompletedDependencies++
		case core.StatusBlocked:
			rel.Summary.BlockedDependencies++
			rel.BlockingReasons = append(rel.BlockingReasons,
				fmt.Sprintf("dependency %s (%s) is blocked", dep.Title, dep.ID))
		default:
			rel.BlockingReasons = append(rel.BlockingReasons,
				fmt.Sprintf("dependency %s (%s) is %s", dep.Title, dep.ID, dep.Status))
		}
	}
	dependents, err := repo.FindDependents(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("resolving dependents: %w", err)
	}
	for _, d := range dependents {
		rel.Blocks = append(rel.Blocks, infoOf(d))
	}
	rel.Summary.TotalDependencies = len(t.Dependencies)
	rel.Summary.IsBlockingOthers = len(dependents) > 0
	rel.Summary.CanStart = rel.Summary.CompletedDependencies == rel.Summary.TotalDependencies &&
		t.Status != core.StatusBlocked
	rel.Summary.IsBlocked = !rel.Summary.CanStart
	if rel.Summary.TotalDependencies > 0 {
		rel.Summary.DependencyCompletionPercentage =
			100 * float64(rel.Summary.CompletedDependencies) / float64(rel.Summary.TotalDependencies)
	} else {
		rel.Summary.DependencyCompletionPercentage = 100
	}
	return rel, nil
}

// buildChain walks the transitive closure under root in depth-first order.
// Visited bookkeeping guards against repository states that predate cycle
// checks.
func buildChain(ctx context.Context, repo Repository, root *Task) (DependencyChain, error) {
	chain := DependencyChain{TaskIDs: []core.ID{}}
	visited := map[core.ID]bool{}
	var completed, blocked, total int
	var nextTask core.ID
	var walk func(t *Task) error
	walk = func(t *Task) error {
		if visited[t.ID] {
			return nil
		}
		visited[t.ID] = true
		chain.TaskIDs = append(chain.TaskIDs, t.ID)
		total++
		switch t.Status {
		case core.StatusDone:
			completed++
		case core.StatusBlocked:
			blocked++
		default:
			if nextTask.IsZero() {
				nextTask = t.ID
			}
		}
		for _, depID := range t.Dependencies {
			dep, err := repo.FindByIDAllStates(ctx, depID)
			if err != nil {
				return fmt.Errorf("resolving chain member %s: %w", depID, err)
			}
			if err := walk(dep); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return chain, err
	}
	chain.CompletedCount = completed
	chain.BlockedCount = blocked
	chain.NextTask = nextTask
	if total > 0 {
		chain.CompletionPercentage = 100 * float64(completed) / float64(total)
	}
	switch {
	case completed == total:
		chain.ChainStatus = "completed"
	case blocked > 0:
		chain.ChainStatus = "blocked"
	default:
		chain.ChainStatus = "in_progress"
	}
	return chain, nil
}

func infoOf(t *Task) DependencyInfo {
	return DependencyInfo{
		TaskID:             t.ID,
		Title:              t.Title,
		Status:             t.Status,
		Priority:           t.Priority,
		ProgressPercentage: t.ProgressPercentage,
	}
}
