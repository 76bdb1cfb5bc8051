package guidance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

func TestApplicableRules(t *testing.T) {
	t.Run("Should keep only rules whose condition holds", func(t *testing.T) {
		rules := applicableRules("create_task", map[string]any{"status": "todo"})
		ids := ruleIDs(rules)
		assert.Contains(t, ids, "task-context-created")
		assert.Contains(t, ids, "start-before-work")

		rules = applicableRules("create_task", map[string]any{"status": "in_progress"})
		ids = ruleIDs(rules)
		assert.Contains(t, ids, "task-context-created")
		assert.NotContains(t, ids, "start-before-work")
	})
	t.Run("Should gate subtask rules on the subtask count", func(t *testing.T) {
		with := applicableRules("complete_task", map[string]any{"subtask_count": 2})
		assert.Contains(t, ruleIDs(with), "subtasks-first")

		without := applicableRules("complete_task", map[string]any{"subtask_count": 0})
		assert.NotContains(t, ruleIDs(without), "subtasks-first")

		missing := applicableRules("complete_task", map[string]any{})
		assert.NotContains(t, ruleIDs(missing), "subtasks-first")
	})
	t.Run("Should produce no rules for unknown operations", func(t *testing.T) {
		assert.Empty(t, applicableRules("reticulate_splines", nil))
	})
}

func TestEnhance(t *testing.T) {
	t.Run("Should leave the envelope untouched when disabled", func(t *testing.T) {
		resp := core.NewSuccessResponse("manage_task.create", nil)
		Enhance(resp, Input{Operation: "create_task"}, Flags{Enabled: false})
		assert.Nil(t, resp.WorkflowGuidance)
	})
	t.Run("Should attach state, rules and a decision matrix", func(t *testing.T) {
		resp := core.NewSuccessResponse("manage_task.create", nil)
		state := map[string]any{"status": "todo"}
		Enhance(resp, Input{Operation: "create_task", State: state}, Flags{Enabled: true})
		g, ok := resp.WorkflowGuidance.(*Guidance)
		require.True(t, ok)
		assert.Equal(t, state, g.CurrentState)
		assert.Len(t, g.ApplicableRules, 2)
		assert.Len(t, g.DecisionMatrix, 2)
	})
	t.Run("Should truncate next actions to the hint budget", func(t *testing.T) {
		resp := core.NewSuccessResponse("manage_task.next", nil)
		actions := []Action{
			{Tool: "manage_task", Priority: PriorityHigh, Confidence: 0.9},
			{Tool: "manage_subtask", Priority: PriorityMedium, Confidence: 0.8},
			{Tool: "manage_context", Priority: PriorityLow, Confidence: 0.7},
		}
		Enhance(resp, Input{Operation: "next_task", NextActions: actions}, Flags{Enabled: true, MaxHints: 2})
		g := resp.WorkflowGuidance.(*Guidance)
		assert.Len(t, g.NextActions, 2)
		assert.Equal(t, "manage_task", g.NextActions[0].Tool)
	})
}

func TestResolveConflicts(t *testing.T) {
	t.Run("Should let the higher-priority mandatory rule win", func(t *testing.T) {
		g := &Guidance{ApplicableRules: []Rule{
			{RuleID: "lesser", Priority: PriorityHigh, Enforcement: EnforcementMandatory},
			{RuleID: "greater", Priority: PriorityCritical, Enforcement: EnforcementMandatory},
			{RuleID: "bystander", Priority: PriorityLow, Enforcement: EnforcementRecommended},
		}}
		resolveConflicts(g)
		ids := ruleIDs(g.ApplicableRules)
		assert.Contains(t, ids, "greater")
		assert.NotContains(t, ids, "lesser")
		assert.Contains(t, ids, "bystander", "recommended rules are not part of the conflict")
		require.NotNil(t, g.ConflictResolution)
		assert.Equal(t, "resolved", g.ConflictResolution.Status)
	})
	t.Run("Should not touch same-priority mandatory rules", func(t *testing.T) {
		g := &Guidance{ApplicableRules: []Rule{
			{RuleID: "a", Priority: PriorityCritical, Enforcement: EnforcementMandatory},
			{RuleID: "b", Priority: PriorityCritical, Enforcement: EnforcementMandatory},
		}}
		resolveConflicts(g)
		assert.Len(t, g.ApplicableRules, 2)
		assert.Nil(t, g.ConflictResolution)
	})
	t.Run("Should keep the higher-confidence duplicate action", func(t *testing.T) {
		g := &Guidance{NextActions: []Action{
			{Tool: "manage_task", Priority: PriorityHigh, Confidence: 0.6},
			{Tool: "manage_task", Priority: PriorityHigh, Confidence: 0.9},
		}}
		resolveConflicts(g)
		require.Len(t, g.NextActions, 1)
		assert.Equal(t, 0.9, g.NextActions[0].Confidence)
		require.NotNil(t, g.ConflictResolution)
		assert.Equal(t, "resolved", g.ConflictResolution.Status)
	})
	t.Run("Should escalate confidence ties without blocking", func(t *testing.T) {
		g := &Guidance{NextActions: []Action{
			{Tool: "manage_task", Priority: PriorityHigh, Confidence: 0.8},
			{Tool: "manage_task", Priority: PriorityHigh, Confidence: 0.8},
		}}
		resolveConflicts(g)
		assert.Len(t, g.NextActions, 1)
		require.NotNil(t, g.ConflictResolution)
		assert.Equal(t, "escalated", g.ConflictResolution.Status)
		assert.NotEmpty(t, g.ConflictResolution.Escalated)
	})
	t.Run("Should keep actions for different tools apart", func(t *testing.T) {
		g := &Guidance{NextActions: []Action{
			{Tool: "manage_task", Priority: PriorityHigh, Confidence: 0.8},
			{Tool: "manage_context", Priority: PriorityHigh, Confidence: 0.8},
		}}
		resolveConflicts(g)
		assert.Len(t, g.NextActions, 2)
		assert.Nil(t, g.ConflictResolution)
	})
}

func ruleIDs(rules []Rule) []string {
	ids := make([]string, 0, len(rules))
	for _, rule := range rules {
		ids = append(ids, rule.RuleID)
	}
	return ids
}
