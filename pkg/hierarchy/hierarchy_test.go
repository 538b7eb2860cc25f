package hierarchy_test

import (
	"context"
	"sync"
	"testing"

	"github.com/attaca/attaca/pkg/digest"
	"github.com/attaca/attaca/pkg/hierarchy"
	"github.com/attaca/attaca/pkg/object"
	"github.com/attaca/attaca/pkg/objpath"
	"github.com/attaca/attaca/pkg/objstore"
)

type memStore struct {
	mu   sync.Mutex
	data map[digest.Digest][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[digest.Digest][]byte)} }

func (m *memStore) Put(_ context.Context, data []byte) (objstore.Handle, error) {
	d := digest.OfBytes(data)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[d] = append([]byte(nil), data...)
	return objstore.DigestHandle(d), nil
}

func (m *memStore) Get(_ context.Context, h objstore.Handle) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[h.Digest()]
	if !ok {
		return nil, objstore.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func buildFixture(t *testing.T, ctx context.Context, store objstore.Store) object.Ref {
	t.Helper()
	fileRef, err := object.Share(ctx, store, []byte("package main"))
	if err != nil {
		t.Fatalf("Share: %v", err)
	}

	inner := &object.Tree{Entries: []object.TreeEntry{{Name: "main.go", Ref: fileRef}}}
	innerRef, err := object.PutTree(ctx, store, inner)
	if err != nil {
		t.Fatalf("PutTree(inner): %v", err)
	}

	root := &object.Tree{Entries: []object.TreeEntry{
		{Name: "cmd", Ref: innerRef},
		{Name: "README.md", Ref: fileRef},
	}}
	rootRef, err := object.PutTree(ctx, store, root)
	if err != nil {
		t.Fatalf("PutTree(root): %v", err)
	}
	return rootRef
}

func TestLookup_NestedPathFound(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	rootRef := buildFixture(t, ctx, store)

	h := hierarchy.New(store, rootRef)
	path, _ := objpath.New("cmd", "main.go")

	ref, found, err := h.Lookup(ctx, path)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Fatal("expected nested path to be found")
	}
	if ref.Kind != digest.KindSmallBlob {
		t.Errorf("Kind = %q, want small-blob", ref.Kind)
	}
}

func TestLookup_MissingPathNotFound(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	rootRef := buildFixture(t, ctx, store)

	h := hierarchy.New(store, rootRef)
	path, _ := objpath.New("cmd", "missing.go")

	_, found, err := h.Lookup(ctx, path)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Fatal("expected missing path to not be found")
	}
}

func TestLookup_PathThroughNonTreeNotFound(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	rootRef := buildFixture(t, ctx, store)

	h := hierarchy.New(store, rootRef)
	path, _ := objpath.New("README.md", "extra")

	_, found, err := h.Lookup(ctx, path)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Fatal("expected descent through a blob entry to fail lookup, not succeed")
	}
}

func TestLookup_EmptyHierarchyMissesEverything(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	h := hierarchy.Empty(store)

	path, _ := objpath.New("anything")
	_, found, err := h.Lookup(ctx, path)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Fatal("empty hierarchy must miss every lookup")
	}
}

func TestLookup_RootPathReturnsRootRef(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	rootRef := buildFixture(t, ctx, store)

	h := hierarchy.New(store, rootRef)
	ref, found, err := h.Lookup(ctx, objpath.Root)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Fatal("expected root lookup to succeed")
	}
	if ref.Digest() != rootRef.Digest() {
		t.Error("root lookup returned a different ref than the hierarchy root")
	}
}
