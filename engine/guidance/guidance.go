package guidance

import (
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

// Guidance is the workflow_guidance block of the response envelope.
type Guidance struct {
	CurrentState       map[string]any      `json:"current_state"`
	ApplicableRules    []Rule              `json:"applicable_rules"`
	DecisionMatrix     []DecisionRow       `json:"decision_matrix,omitempty"`
	NextActions        []Action            `json:"next_actions"`
	Warnings           []string            `json:"warnings,omitempty"`
	Examples           map[string]any      `json:"examples,omitempty"`
	ValidationSchema   map[string]any      `json:"validation_schema,omitempty"`
	ConflictResolution *ConflictResolution `json:"conflict_resolution,omitempty"`
}

// DecisionRow is one condition/action pair of the decision matrix.
type DecisionRow struct {
	Condition string `json:"condition"`
	Action    string `json:"action"`
	Priority  string `json:"priority"`
}

// Flags mirrors the workflow-hint feature switches.
type Flags struct {
	Enabled  bool
	MaxHints int
}

// Input is what an operation hands to the enhancer: the state snapshot and
// any operation-specific next actions and warnings.
type Input struct {
	Operation   string
	State       map[string]any
	NextActions []Action
	Warnings    []string
	Examples    map[string]any
	Schema      map[string]any
}

// Enhance computes the workflow guidance for a successful envelope and
// attaches it. Disabled flags leave the envelope untouched; guidance is
// never load-bearing for correctness.
func Enhance(resp *core.Response, in Input, flags Flags) {
	if resp == nil || !flags.Enabled {
		return
	}
	g := &Guidance{
		CurrentState:     in.State,
		ApplicableRules:  applicableRules(in.Operation, in.State),
		NextActions:      in.NextActions,
		Warnings:         in.Warnings,
		Examples:         in.Examples,
		ValidationSchema: in.Schema,
	}
	g.DecisionMatrix = decisionMatrix(g.ApplicableRules)
	if flags.MaxHints > 0 && len(g.NextActions) > flags.MaxHints {
		g.NextActions = g.NextActions[:flags.MaxHints]
	}
	resolveConflicts(g)
	resp.WorkflowGuidance = g
}

func decisionMatrix(rules []Rule) []DecisionRow {
	rows := make([]DecisionRow, 0, len(rules))
	for _, rule := range rules {
		rows = append(rows, DecisionRow{
			Condition: rule.Condition,
			Action:    rule.Rule,
			Priority:  string(rule.Priority),
		})
	}
	return rows
}
