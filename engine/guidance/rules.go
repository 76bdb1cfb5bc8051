// Package guidance synthesizes the workflow_guidance block attached to
// response envelopes. Rules are declarative records evaluated by a small
// interpreter; nothing in here touches storage.
package guidance

// RulePriority orders rules and actions. Critical wins conflicts.
type RulePriority string

const (
	PriorityCritical RulePriority = "critical"
	PriorityHigh     RulePriority = "high"
	PriorityMedium   RulePriority = "medium"
	PriorityLow      RulePriority = "low"
)

var priorityRank = map[RulePriority]int{
	PriorityCritical: 4,
	PriorityHigh:     3,
	PriorityMedium:   2,
	PriorityLow:      1,
}

func (p RulePriority) Rank() int {
	return priorityRank[p]
}

type Enforcement string

const (
	EnforcementMandatory   Enforcement = "mandatory"
	EnforcementRecommended Enforcement = "recommended"
)

// Rule is one typed guidance record. Condition names the state predicate
// under which the rule applies; the interpreter matches it against the
// current operation state.
type Rule struct {
	RuleID             string       `json:"rule_id"`
	Type               string       `json:"type"`
	Priority           RulePriority `json:"priority"`
	Condition          string       `json:"condition"`
	Rule               string       `json:"rule"`
	Enforcement        Enforcement  `json:"enforcement"`
	ConflictResolution string       `json:"conflict_resolution,omitempty"`
}

// Action is an executable next-step template for an autonomous caller.
type Action struct {
	Tool          string         `json:"tool"`
	Params        map[string]any `json:"params"`
	Reason        string         `json:"reason"`
	Confidence    float64        `json:"confidence"`
	ExecutionTime string         `json:"execution_time"`
	Priority      RulePriority   `json:"priority"`
}

// ruleTable maps operation names to their candidate rules. The interpreter
// keeps only the rules whose condition holds for the current state.
var ruleTable = map[string][]Rule{
	"create_task": {
		{
			RuleID:      "task-context-created",
			Type:        "context",
			Priority:    PriorityHigh,
			Condition:   "always",
			Rule:        "A task context was created with the task; update it as work progresses.",
			Enforcement: EnforcementRecommended,
		},
		{
			RuleID:      "start-before-work",
			Type:        "lifecycle",
			Priority:    PriorityMedium,
			Condition:   "status=todo",
			Rule:        "Move the task to in_progress before reporting work against it.",
			Enforcement: EnforcementRecommended,
		},
	},
	"update_task": {
		{
			RuleID:      "progress-in-context",
			Type:        "context",
			Priority:    PriorityMedium,
			Condition:   "always",
			Rule:        "Record substantive progress with manage_context add_progress so it survives the task.",
			Enforcement: EnforcementRecommended,
		},
	},
	"complete_task": {
		{
			RuleID:      "completion-summary-required",
			Type:        "completion",
			Priority:    PriorityCritical,
			Condition:   "always",
			Rule:        "Completion requires a non-empty completion_summary stored on the task context.",
			Enforcement: EnforcementMandatory,
		},
		{
			RuleID:      "subtasks-first",
			Type:        "completion",
			Priority:    PriorityCritical,
			Condition:   "has_subtasks",
			Rule:        "All subtasks must be done before the parent completes.",
			Enforcement: EnforcementMandatory,
		},
	},
	"next_task": {
		{
			RuleID:      "deterministic-selection",
			Type:        "selection",
			Priority:    PriorityLow,
			Condition:   "always",
			Rule:        "Selection is deterministic: priority weight desc, oldest update first, lowest id.",
			Enforcement: EnforcementRecommended,
		},
	},
	"create_context": {
		{
			RuleID:      "hierarchy-chain",
			Type:        "hierarchy",
			Priority:    PriorityHigh,
			Condition:   "always",
			Rule:        "Contexts require their parent chain; missing ancestors are auto-created when enabled.",
			Enforcement: EnforcementMandatory,
		},
	},
	"delegate_context": {
		{
			RuleID:      "delegation-queued",
			Type:        "delegation",
			Priority:    PriorityMedium,
			Condition:   "always",
			Rule:        "Delegations are queued, not applied; the target context is unchanged until processed.",
			Enforcement: EnforcementRecommended,
		},
	},
}

// applicableRules interprets the rule table for an operation against the
// current state flags.
func applicableRules(operation string, state map[string]any) []Rule {
	candidates := ruleTable[operation]
	rules := make([]Rule, 0, len(candidates))
	for _, rule := range candidates {
		if conditionHolds(rule.Condition, state) {
			rules = append(rules, rule)
		}
	}
	return rules
}

func conditionHolds(condition string, state map[string]any) bool {
	switch condition {
	case "", "always":
		return true
	case "status=todo":
		return state["status"] == "todo"
	case "has_subtasks":
		if n, ok := state["subtask_count"].(int); ok {
			return n > 0
		}
		return false
	default:
		return false
	}
}
