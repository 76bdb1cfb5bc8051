package uc

import (
	"context"
	"strings"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/repo"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
)

type SearchTasksInput struct {
	Query    string
	BranchID *core.ID
	Limit    int
}

type SearchTasksOutput struct {
	Tasks []*task.Task
	Count int
}

// SearchTasks matches the query case-insensitively against titles and
// descriptions.
type SearchTasks struct {
	repos repo.Provider
	input SearchTasksInput
}

func NewSearchTasks(repos repo.Provider, input SearchTasksInput) *SearchTasks {
	return &SearchTasks{repos: repos, input: input}
}

func (uc *SearchTasks) Execute(ctx context.Context) (*SearchTasksOutput, error) {
	query := strings.TrimSpace(uc.input.Query)
	if query == "" {
		return nil, core.NewError(core.CodeMissingField, "search query is required", map[string]any{
			"field": "query",
		})
	}
	tasks, err := uc.repos.TaskRepo().List(ctx, &task.Filter{
		BranchID: uc.input.BranchID,
		Query:    query,
		Limit:    uc.input.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &SearchTasksOutput{Tasks: tasks, Count: len(tasks)}, nil
}
