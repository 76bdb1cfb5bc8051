package hierctx

import (
	"fmt"

	"dario.cat/mergo"
	"github.com/mohae/deepcopy"
)

// MergeDocuments applies the context merge rule: map values deep-merge,
// list values append (base first), scalars are replaced by the overlay.
// Neither input is mutated.
func MergeDocuments(base, overlay map[string]any) (map[string]any, error) {
	merged := CopyDocument(base)
	src := CopyDocument(overlay)
	if err := mergo.Merge(&merged, src, mergo.WithOverride, mergo.WithAppendSlice); err != nil {
		return nil, fmt.Errorf("merging context documents: %w", err)
	}
	return merged, nil
}

// CopyDocument deep-copies a context document so merges and cache entries
// never alias stored state.
func CopyDocument(doc map[string]any) map[string]any {
	if doc == nil {
		return map[string]any{}
	}
	copied, ok := deepcopy.Copy(doc).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return copied
}
