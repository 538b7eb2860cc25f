// Package hierarchy implements a read-only view over a Tree for point
// lookups by path, resolving intermediate subtrees from the store lazily
// as a lookup descends.
package hierarchy

import (
	"context"
	"fmt"

	"github.com/attaca/attaca/pkg/digest"
	"github.com/attaca/attaca/pkg/object"
	"github.com/attaca/attaca/pkg/objpath"
	"github.com/attaca/attaca/pkg/objstore"
)

// Hierarchy is a lookup surface rooted at a single Tree reference. A zero
// Hierarchy (root.IsZero()) denotes an empty tree: every lookup misses.
type Hierarchy struct {
	store objstore.Store
	root  object.Ref
}

// Empty returns a Hierarchy over no tree at all; every Lookup misses.
func Empty(store objstore.Store) Hierarchy {
	return Hierarchy{store: store}
}

// New returns a Hierarchy rooted at root, which must be a Tree reference
// (or the zero Ref, meaning empty).
func New(store objstore.Store, root object.Ref) Hierarchy {
	return Hierarchy{store: store, root: root}
}

// Lookup resolves path against the tree, descending through intermediate
// subtrees as needed. It reports found=false, rather than an error, when
// any component of path is absent.
func (h Hierarchy) Lookup(ctx context.Context, path objpath.Path) (ref object.Ref, found bool, err error) {
	if h.root.IsZero() {
		return object.Ref{}, false, nil
	}
	if path.IsRoot() {
		return h.root, true, nil
	}

	current := h.root
	components := path.Components()
	for i, name := range components {
		tree, err := object.GetTree(ctx, h.store, current)
		if err != nil {
			return object.Ref{}, false, fmt.Errorf("hierarchy: lookup %q: %w", path, err)
		}

		entry, ok := findEntry(tree, name)
		if !ok {
			return object.Ref{}, false, nil
		}

		last := i == len(components)-1
		if last {
			return entry.Ref, true, nil
		}

		if entry.Ref.Kind != digest.KindTree {
			// An intermediate component resolved to a non-tree entry: the
			// requested path cannot exist beneath it.
			return object.Ref{}, false, nil
		}
		current = entry.Ref
	}

	return object.Ref{}, false, nil
}

func findEntry(t *object.Tree, name string) (object.TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return object.TreeEntry{}, false
}
