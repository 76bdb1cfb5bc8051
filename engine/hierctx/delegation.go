package hierctx

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

type TriggerType string

const (
	TriggerManual        TriggerType = "manual"
	TriggerAutoPattern   TriggerType = "auto_pattern"
	TriggerAutoThreshold TriggerType = "auto_threshold"
)

// Delegation is a queued request to propagate a subset of a child context
// to an ancestor. Records are durable but never auto-applied; a separate
// processor merges them into the target.
type Delegation struct {
	ID              core.ID           `json:"id"`
	SourceLevel     core.ContextLevel `json:"source_level"`
	SourceID        core.ID           `json:"source_id"`
	TargetLevel     core.ContextLevel `json:"target_level"`
	TargetID        core.ID           `json:"target_id"`
	DelegatedData   map[string]any    `json:"delegated_data"`
	Reason          string            `json:"reason,omitempty"`
	TriggerType     TriggerType       `json:"trigger_type"`
	AutoDelegated   bool              `json:"auto_delegated"`
	ConfidenceScore float64           `json:"confidence_score"`
	Processed       bool              `json:"processed"`
	Approved        bool              `json:"approved"`
	ProcessedBy     string            `json:"processed_by,omitempty"`
	DataHash        string            `json:"data_hash"`
	CreatedAt       time.Time         `json:"created_at"`
	ProcessedAt     *time.Time        `json:"processed_at,omitempty"`
}

// NewDelegation builds a pending manual delegation record.
func NewDelegation(
	sourceLevel core.ContextLevel,
	sourceID core.ID,
	targetLevel core.ContextLevel,
	targetID core.ID,
	data map[string]any,
	reason string,
	now time.Time,
) *Delegation {
	return &Delegation{
		ID:            core.MustNewID(),
		SourceLevel:   sourceLevel,
		SourceID:      sourceID,
		TargetLevel:   targetLevel,
		TargetID:      targetID,
		DelegatedData: CopyDocument(data),
		Reason:        reason,
		TriggerType:   TriggerManual,
		DataHash:      HashDocument(data),
		CreatedAt:     now,
	}
}

// HashDocument produces a stable hash of a context document, used for
// delegation dedupe and cache validation. Keys are hashed in sorted order
// so logically equal documents collapse.
func HashDocument(doc map[string]any) string {
	h := sha256.New()
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		raw, err := json.Marshal(doc[k])
		if err != nil {
			continue
		}
		h.Write(raw)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (d *Delegation) AsMap() map[string]any {
	m := map[string]any{
		"id":               d.ID.String(),
		"source_level":     d.SourceLevel.String(),
		"source_id":        d.SourceID.String(),
		"target_level":     d.TargetLevel.String(),
		"target_id":        d.TargetID.String(),
		"delegated_data":   d.DelegatedData,
		"reason":           d.Reason,
		"trigger_type":     string(d.TriggerType),
		"auto_delegated":   d.AutoDelegated,
		"confidence_score": d.ConfidenceScore,
		"processed":        d.Processed,
		"approved":         d.Approved,
		"created_at":       d.CreatedAt,
	}
	if d.ProcessedBy != "" {
		m["processed_by"] = d.ProcessedBy
	}
	if d.ProcessedAt != nil {
		m["processed_at"] = d.ProcessedAt.Format(time.RFC3339)
	}
	return m
}
