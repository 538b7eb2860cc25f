package batch_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/attaca/attaca/pkg/batch"
	"github.com/attaca/attaca/pkg/digest"
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

func mustPath(t *testing.T, s string) objpath.Path {
	t.Helper()
	p, err := objpath.FromSlash(s)
	if err != nil {
		t.Fatalf("FromSlash(%q): %v", s, err)
	}
	return p
}

func TestRun_AddNestedPathCreatesIntermediateTrees(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	fileRef, err := object.Share(ctx, store, []byte("hello"))
	if err != nil {
		t.Fatalf("Share: %v", err)
	}

	b := batch.New()
	b.Add(mustPath(t, "pkg/util/util.go"), fileRef)

	builder, err := batch.Run(ctx, store, object.NewTreeBuilder(), b)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	root := builder.Build()
	if len(root.Entries) != 1 || root.Entries[0].Name != "pkg" {
		t.Fatalf("root entries = %+v, want single 'pkg' entry", root.Entries)
	}

	pkgTree, err := object.GetTree(ctx, store, root.Entries[0].Ref)
	if err != nil {
		t.Fatalf("GetTree(pkg): %v", err)
	}
	if len(pkgTree.Entries) != 1 || pkgTree.Entries[0].Name != "util" {
		t.Fatalf("pkg entries = %+v, want single 'util' entry", pkgTree.Entries)
	}
}

func TestRun_LastWriteWinsOnSamePath(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	first, _ := object.Share(ctx, store, []byte("first"))
	second, _ := object.Share(ctx, store, []byte("second"))

	b := batch.New()
	b.Add(mustPath(t, "a.txt"), first)
	b.Add(mustPath(t, "a.txt"), second)

	builder, err := batch.Run(ctx, store, object.NewTreeBuilder(), b)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	entry, ok := builder.Get("a.txt")
	if !ok {
		t.Fatal("expected a.txt entry to exist")
	}
	if entry.Digest() != second.Digest() {
		t.Fatal("expected last write to win")
	}
}

func TestRun_DeleteAbsentPathIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	b := batch.New()
	b.Delete(mustPath(t, "nope.txt"))

	builder, err := batch.Run(ctx, store, object.NewTreeBuilder(), b)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if builder.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", builder.Len())
	}
}

func TestRun_DeletePruneEmptySubtree(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	fileRef, _ := object.Share(ctx, store, []byte("hello"))

	addBatch := batch.New()
	addBatch.Add(mustPath(t, "dir/only.txt"), fileRef)
	builder, err := batch.Run(ctx, store, object.NewTreeBuilder(), addBatch)
	if err != nil {
		t.Fatalf("Run(add): %v", err)
	}
	if builder.Len() != 1 {
		t.Fatalf("Len() after add = %d, want 1", builder.Len())
	}

	delBatch := batch.New()
	delBatch.Delete(mustPath(t, "dir/only.txt"))
	builder, err = batch.Run(ctx, store, builder, delBatch)
	if err != nil {
		t.Fatalf("Run(delete): %v", err)
	}
	if builder.Len() != 0 {
		t.Fatalf("Len() after delete = %d, want 0 (empty subtree must be pruned)", builder.Len())
	}
}

func TestRun_AddBeneathNonTreeFailsShadowed(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	fileRef, _ := object.Share(ctx, store, []byte("a file, not a dir"))

	b := batch.New()
	b.Add(mustPath(t, "a"), fileRef)
	b.Add(mustPath(t, "a/b"), fileRef)

	_, err := batch.Run(ctx, store, object.NewTreeBuilder(), b)
	if !errors.Is(err, batch.ErrPathShadowed) {
		t.Fatalf("err = %v, want ErrPathShadowed", err)
	}
}

func TestRun_RootPathRejected(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	b := batch.New()
	b.Delete(objpath.Root)

	_, err := batch.Run(ctx, store, object.NewTreeBuilder(), b)
	if err == nil {
		t.Fatal("expected ErrRootPath")
	}
}
