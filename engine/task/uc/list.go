package uc

import (
	"context"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/repo"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
)

type ListTasksInput struct {
	Filter *task.Filter
}

type ListTasksOutput struct {
	Tasks []*task.Task
	Count int
}

// ListTasks returns active tasks matching the filter, most recently
// updated first.
type ListTasks struct {
	repos repo.Provider
	input ListTasksInput
}

func NewListTasks(repos repo.Provider, input ListTasksInput) *ListTasks {
	return &ListTasks{repos: repos, input: input}
}

func (uc *ListTasks) Execute(ctx context.Context) (*ListTasksOutput, error) {
	filter := uc.input.Filter
	if filter == nil {
		filter = &task.Filter{}
	}
	tasks, err := uc.repos.TaskRepo().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ListTasksOutput{Tasks: tasks, Count: len(tasks)}, nil
}
