// Package batch implements the object batch: an ordered accumulator of
// path-keyed Add/Delete operations that folds into a TreeBuilder, creating
// and pruning intermediate subtrees as it descends.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/attaca/attaca/pkg/digest"
	"github.com/attaca/attaca/pkg/object"
	"github.com/attaca/attaca/pkg/objpath"
	"github.com/attaca/attaca/pkg/objstore"
)

// ErrPathShadowed is returned when an Add would place an entry beneath a
// path whose ancestor already resolves to a non-tree entry.
var ErrPathShadowed = errors.New("batch: path shadowed by a non-tree ancestor")

// ErrRootPath is returned when an operation names the repository root,
// which is not individually addressable within a batch.
var ErrRootPath = errors.New("batch: root path is not addressable in a batch operation")

type opKind int

const (
	opAdd opKind = iota
	opDelete
)

type operation struct {
	kind opKind
	path objpath.Path
	ref  object.Ref
}

// Batch accumulates Add and Delete operations in insertion order. Two
// operations targeting the same path resolve by the last one in the batch.
type Batch struct {
	ops []operation
}

// New returns an empty batch.
func New() *Batch {
	return &Batch{}
}

// Add appends an Add(path, ref) operation.
func (b *Batch) Add(path objpath.Path, ref object.Ref) {
	b.ops = append(b.ops, operation{kind: opAdd, path: path, ref: ref})
}

// Delete appends a Delete(path) operation.
func (b *Batch) Delete(path objpath.Path) {
	b.ops = append(b.ops, operation{kind: opDelete, path: path})
}

// Len reports the number of operations accumulated so far.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Run applies every operation in b, in order, starting from base. Add
// overwrites an existing entry at the same path; Add beneath a non-tree
// ancestor fails with ErrPathShadowed. Delete of an absent path is a no-op.
// Intermediate subtrees are created on demand and pruned once emptied.
func Run(ctx context.Context, store objstore.Store, base *object.TreeBuilder, b *Batch) (*object.TreeBuilder, error) {
	builder := base
	for _, op := range b.ops {
		if op.path.IsRoot() {
			return nil, ErrRootPath
		}
		var err error
		switch op.kind {
		case opAdd:
			err = applyAdd(ctx, store, builder, op.path.Components(), op.ref)
		case opDelete:
			err = applyDelete(ctx, store, builder, op.path.Components())
		}
		if err != nil {
			return nil, err
		}
	}
	return builder, nil
}

func applyAdd(ctx context.Context, store objstore.Store, builder *object.TreeBuilder, components []string, ref object.Ref) error {
	name := components[0]
	if len(components) == 1 {
		builder.Set(name, ref)
		return nil
	}

	child, err := descend(ctx, store, builder, name)
	if err != nil {
		return err
	}
	if err := applyAdd(ctx, store, child, components[1:], ref); err != nil {
		return err
	}
	return uploadChild(ctx, store, builder, name, child)
}

func applyDelete(ctx context.Context, store objstore.Store, builder *object.TreeBuilder, components []string) error {
	name := components[0]
	if len(components) == 1 {
		builder.Remove(name)
		return nil
	}

	existing, ok := builder.Get(name)
	if !ok {
		return nil // deleting beneath an absent path is a no-op
	}
	if existing.Kind != digest.KindTree {
		return nil // a non-tree ancestor has no such nested path to delete
	}

	tree, err := object.GetTree(ctx, store, existing)
	if err != nil {
		return fmt.Errorf("batch: delete %q: %w", name, err)
	}
	child := object.DivergeTree(tree)
	if err := applyDelete(ctx, store, child, components[1:]); err != nil {
		return err
	}
	return uploadChild(ctx, store, builder, name, child)
}

// descend returns a TreeBuilder for the subtree entry named name, diverging
// it from the store if it already exists, or creating it fresh. It fails
// with ErrPathShadowed if name already names a non-tree entry.
func descend(ctx context.Context, store objstore.Store, builder *object.TreeBuilder, name string) (*object.TreeBuilder, error) {
	existing, ok := builder.Get(name)
	if !ok {
		return object.NewTreeBuilder(), nil
	}
	if existing.Kind != digest.KindTree {
		return nil, fmt.Errorf("%w: %q", ErrPathShadowed, name)
	}
	tree, err := object.GetTree(ctx, store, existing)
	if err != nil {
		return nil, fmt.Errorf("batch: descend %q: %w", name, err)
	}
	return object.DivergeTree(tree), nil
}

// uploadChild finalizes child and installs it under name in builder,
// pruning the entry entirely if the child ended up empty.
func uploadChild(ctx context.Context, store objstore.Store, builder *object.TreeBuilder, name string, child *object.TreeBuilder) error {
	tree := child.Build()
	if len(tree.Entries) == 0 {
		builder.Remove(name)
		return nil
	}
	ref, err := object.PutTree(ctx, store, tree)
	if err != nil {
		return fmt.Errorf("batch: upload subtree %q: %w", name, err)
	}
	builder.Set(name, ref)
	return nil
}
