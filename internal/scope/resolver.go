// Package scope computes the set of structures a principal may act upon.
//
// The visible set of a principal is the union of the strict descendants of
// every home structure: the home node itself is excluded, so a manager never
// reaches peers anchored at their own node, only strictly below it. The set is
// re-derived on every call because the tree and home memberships may change
// between requests.
package scope

import (
	"context"
	"errors"

	"orgdir.org/internal/directory"
)

// DescendantSource answers strict-descendant queries against the current
// organization tree.
type DescendantSource interface {
	DescendantsOf(ctx context.Context, structureID int64) ([]directory.Structure, error)
}

// Resolver derives visible sets and tests candidates against them.
type Resolver struct {
	tree DescendantSource
}

func NewResolver(tree DescendantSource) (*Resolver, error) {
	if tree == nil {
		return nil, errors.New("descendant source is required")
	}
	return &Resolver{tree: tree}, nil
}

// VisibleStructureIDs returns the visible set for the given home structures.
// A structure reachable from several home nodes appears once.
func (r *Resolver) VisibleStructureIDs(ctx context.Context, homeIDs []int64) (map[int64]struct{}, error) {
	visible := make(map[int64]struct{})
	for _, home := range homeIDs {
		descendants, err := r.tree.DescendantsOf(ctx, home)
		if err != nil {
			return nil, err
		}
		for _, d := range descendants {
			visible[d.ID] = struct{}{}
		}
	}
	return visible, nil
}

// AllWithinScope reports whether every candidate falls inside the visible set.
// Used by the create gate: one out-of-scope target rejects the whole request.
func (r *Resolver) AllWithinScope(ctx context.Context, candidateIDs, homeIDs []int64) (bool, error) {
	if len(candidateIDs) == 0 {
		return false, nil
	}
	visible, err := r.VisibleStructureIDs(ctx, homeIDs)
	if err != nil {
		return false, err
	}
	for _, id := range candidateIDs {
		if _, ok := visible[id]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// AnyWithinScope reports whether at least one candidate falls inside the
// visible set. Used by the edit gate and the list filter: partial overlap is
// sufficient even when the target also belongs to out-of-scope structures.
func (r *Resolver) AnyWithinScope(ctx context.Context, candidateIDs, homeIDs []int64) (bool, error) {
	visible, err := r.VisibleStructureIDs(ctx, homeIDs)
	if err != nil {
		return false, err
	}
	for _, id := range candidateIDs {
		if _, ok := visible[id]; ok {
			return true, nil
		}
	}
	return false, nil
}
