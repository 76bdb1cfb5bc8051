package project

import (
	"strings"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Project is the top-level grouping of branches and tasks.
type Project struct {
	ID          core.ID   `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	UserID      string    `json:"user_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// New builds a project with a fresh id and validated fields.
func New(name, description, userID string, now time.Time) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.NewError(core.CodeMissingField, "project name is required", map[string]any{
			"field": "name",
		})
	}
	return &Project{
		ID:          core.MustNewID(),
		Name:        name,
		Description: description,
		Status:      StatusActive,
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (p *Project) AsMap() map[string]any {
	return map[string]any{
		"id":          p.ID.String(),
		"name":        p.Name,
		"description": p.Description,
		"status":      string(p.Status),
		"user_id":     p.UserID,
		"created_at":  p.CreatedAt,
		"updated_at":  p.UpdatedAt,
	}
}
