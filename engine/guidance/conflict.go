package guidance

import "fmt"

// ConflictResolution reports how competing rules or actions were settled.
// Status escalated means the conflict could not be resolved automatically;
// the primary response is never blocked by it.
type ConflictResolution struct {
	Status    string   `json:"status"`
	Resolved  []string `json:"resolved,omitempty"`
	Escalated []string `json:"escalated,omitempty"`
}

// resolveConflicts scans guidance for rule and action conflicts and
// resolves them in place. Rule conflicts resolve by priority (critical
// wins); action conflicts resolve by confidence.
func resolveConflicts(g *Guidance) {
	var resolution ConflictResolution
	resolveRuleConflicts(g, &resolution)
	resolveActionConflicts(g, &resolution)
	if len(resolution.Resolved) > 0 || len(resolution.Escalated) > 0 {
		if len(resolution.Escalated) > 0 {
			resolution.Status = "escalated"
		} else {
			resolution.Status = "resolved"
		}
		g.ConflictResolution = &resolution
	}
}

// resolveRuleConflicts handles pairs of mandatory rules with different
// priorities: the higher-priority rule survives.
func resolveRuleConflicts(g *Guidance, resolution *ConflictResolution) {
	mandatory := make([]Rule, 0, len(g.ApplicableRules))
	for _, rule := range g.ApplicableRules {
		if rule.Enforcement == EnforcementMandatory {
			mandatory = append(mandatory, rule)
		}
	}
	if len(mandatory) < 2 {
		return
	}
	best := mandatory[0]
	conflict := false
	for _, rule := range mandatory[1:] {
		if rule.Priority != best.Priority {
			conflict = true
		}
		if rule.Priority.Rank() > best.Priority.Rank() {
			best = rule
		}
	}
	if !conflict {
		return
	}
	kept := g.ApplicableRules[:0]
	for _, rule := range g.ApplicableRules {
		if rule.Enforcement == EnforcementMandatory && rule.RuleID != best.RuleID {
			resolution.Resolved = append(resolution.Resolved,
				fmt.Sprintf("rule %s yielded to %s (%s)", rule.RuleID, best.RuleID, best.Priority))
			continue
		}
		kept = append(kept, rule)
	}
	g.ApplicableRules = kept
}

// resolveActionConflicts handles actions sharing tool and priority: the
// higher-confidence action survives; equal confidence escalates.
func resolveActionConflicts(g *Guidance, resolution *ConflictResolution) {
	type slot struct {
		index int
	}
	seen := make(map[string]slot)
	kept := make([]Action, 0, len(g.NextActions))
	for _, action := range g.NextActions {
		key := action.Tool + "|" + string(action.Priority)
		prev, ok := seen[key]
		if !ok {
			seen[key] = slot{index: len(kept)}
			kept = append(kept, action)
			continue
		}
		existing := kept[prev.index]
		switch {
		case action.Confidence > existing.Confidence:
			resolution.Resolved = append(resolution.Resolved,
				fmt.Sprintf("action %s replaced lower-confidence duplicate", action.Tool))
			kept[prev.index] = action
		case action.Confidence < existing.Confidence:
			resolution.Resolved = append(resolution.Resolved,
				fmt.Sprintf("action %s dropped lower-confidence duplicate", action.Tool))
		default:
			resolution.Escalated = append(resolution.Escalated,
				fmt.Sprintf("actions for %s at priority %s tie on confidence %.2f",
					action.Tool, action.Priority, action.Confidence))
		}
	}
	g.NextActions = kept
}
