package hierctx

import (
	"fmt"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

// Context is the level-tagged wrapper around an open-shape context
// document. The four context entities (global, project, branch, task)
// share this representation; level-specific shape is enforced by the
// section validator at the update boundary.
type Context struct {
	ID                  core.ID           `json:"id"`
	Level               core.ContextLevel `json:"level"`
	ParentID            core.ID           `json:"parent_id,omitempty"`
	Data                map[string]any    `json:"data"`
	Version             int               `json:"version"`
	InheritanceDisabled bool              `json:"inheritance_disabled"`
	ForceLocalOnly      bool              `json:"force_local_only"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// knownSections lists the accepted top-level document keys per level.
// Updates carrying unknown top-level keys are rejected.
var knownSections = map[core.ContextLevel]map[string]bool{
	core.LevelGlobal: {
		"organization_name": true,
		"global_settings":   true,
		"metadata":          true,
		"insights":          true,
		"progress":          true,
	},
	core.LevelProject: {
		"project_name":     true,
		"project_info":     true,
		"project_settings": true,
		"metadata":         true,
		"insights":         true,
		"progress":         true,
	},
	core.LevelBranch: {
		"project_id":      true,
		"git_branch_name": true,
		"branch_info":     true,
		"branch_settings": true,
		"metadata":        true,
		"insights":        true,
		"progress":        true,
	},
	core.LevelTask: {
		"branch_id":          true,
		"task_data":          true,
		"progress":           true,
		"insights":           true,
		"next_steps":         true,
		"metadata":           true,
		"completion_summary": true,
		"testing_notes":      true,
		"completed_at":       true,
		"status":             true,
	},
}

// ValidateSections rejects document updates with unknown top-level keys.
func ValidateSections(level core.ContextLevel, data map[string]any) error {
	allowed, ok := knownSections[level]
	if !ok {
		return core.NewError(core.CodeValidationError, fmt.Sprintf("invalid context level: %q", level), nil)
	}
	for key := range data {
		if !allowed[key] {
			return core.NewError(core.CodeValidationError,
				fmt.Sprintf("unknown context section %q for level %s", key, level), map[string]any{
					"field":    key,
					"level":    level.String(),
					"expected": sectionNames(allowed),
				})
		}
	}
	return nil
}

func sectionNames(allowed map[string]bool) []string {
	names := make([]string, 0, len(allowed))
	for name := range allowed {
		names = append(names, name)
	}
	return names
}

// InsightRecord is the normalized shape appended by add_insight.
type InsightRecord struct {
	Content    string `json:"content"`
	Category   string `json:"category,omitempty"`
	Importance string `json:"importance,omitempty"`
	Agent      string `json:"agent,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// ProgressRecord is the normalized shape appended by add_progress.
type ProgressRecord struct {
	Content   string `json:"content"`
	Agent     string `json:"agent,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (c *Context) AsMap() map[string]any {
	return map[string]any{
		"id":                   c.ID.String(),
		"level":                c.Level.String(),
		"parent_id":            c.ParentID.String(),
		"data":                 c.Data,
		"version":              c.Version,
		"inheritance_disabled": c.InheritanceDisabled,
		"force_local_only":     c.ForceLocalOnly,
		"created_at":           c.CreatedAt,
		"updated_at":           c.UpdatedAt,
	}
}
