package hierctx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

// Resolution is the outcome of inheritance resolution for one context.
type Resolution struct {
	Document         map[string]any
	Chain            []core.ContextLevel
	Path             []string
	DependenciesHash string
	ResolvedAt       time.Time
}

// Resolve computes the merged view of (level, id) by walking its ancestor
// chain from global downward. inheritance_disabled on a node discards the
// accumulated ancestors and keeps that node's data (the chain records the
// walked prefix); force_local_only restarts the chain at that node with a
// single element.
func Resolve(
	ctx context.Context,
	repo Repository,
	level core.ContextLevel,
	id core.ID,
	now time.Time,
) (*Resolution, error) {
	nodes, err := ancestorChain(ctx, repo, level, id)
	if err != nil {
		return nil, err
	}
	acc := map[string]any{}
	chain := make([]core.ContextLevel, 0, len(nodes))
	path := make([]string, 0, len(nodes))
	for i, node := range nodes {
		path = append(path, cacheKey(node.Level, node.ID))
		switch {
		case node.ForceLocalOnly:
			acc = CopyDocument(node.Data)
			chain = chain[:0]
			chain = append(chain, node.Level)
		case node.InheritanceDisabled && i > 0:
			acc = CopyDocument(node.Data)
			chain = append(chain, node.Level)
		default:
			merged, mergeErr := MergeDocuments(acc, node.Data)
			if mergeErr != nil {
				return nil, mergeErr
			}
			acc = merged
			chain = append(chain, node.Level)
		}
	}
	res := &Resolution{
		Document:         acc,
		Chain:            chain,
		Path:             path,
		DependenciesHash: hashVersions(nodes),
		ResolvedAt:       now,
	}
	res.Document["_inheritance"] = res.inheritanceMetadata()
	return res, nil
}

// DependenciesHash computes the current ancestor-version hash for (level,
// id) without performing the merge. Used for cache check-and-set.
func DependenciesHash(ctx context.Context, repo Repository, level core.ContextLevel, id core.ID) (string, error) {
	nodes, err := ancestorChain(ctx, repo, level, id)
	if err != nil {
		return "", err
	}
	return hashVersions(nodes), nil
}

func (r *Resolution) inheritanceMetadata() map[string]any {
	levels := make([]string, len(r.Chain))
	for i, l := range r.Chain {
		levels[i] = l.String()
	}
	return map[string]any{
		"chain":             levels,
		"resolved_at":       r.ResolvedAt.Format(time.RFC3339),
		"inheritance_depth": len(r.Chain),
	}
}

// ancestorChain loads the contexts from global down to the requested node.
func ancestorChain(
	ctx context.Context,
	repo Repository,
	level core.ContextLevel,
	id core.ID,
) ([]*Context, error) {
	nodes := make([]*Context, 0, 4)
	currentLevel, currentID := level, id
	for {
		node, err := repo.Get(ctx, currentLevel, currentID)
		if err != nil {
			return nil, fmt.Errorf("loading %s context %s: %w", currentLevel, currentID, err)
		}
		nodes = append(nodes, node)
		parentLevel, ok := currentLevel.Parent()
		if !ok {
			break
		}
		currentLevel = parentLevel
		currentID = node.ParentID
		if currentID.IsZero() && parentLevel == core.LevelGlobal {
			currentID = core.GlobalSingletonID
		}
	}
	// walked bottom-up; reverse to global-first
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	return nodes, nil
}

func hashVersions(nodes []*Context) string {
	h := sha256.New()
	for _, node := range nodes {
		h.Write([]byte(cacheKey(node.Level, node.ID)))
		h.Write([]byte(":"))
		h.Write([]byte(strconv.Itoa(node.Version)))
		h.Write([]byte("|"))
	}
	return hex.EncodeToString(h.Sum(nil))
}
