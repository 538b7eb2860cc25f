package object_test

import (
	"context"
	"sync"

	"github.com/attaca/attaca/pkg/digest"
	"github.com/attaca/attaca/pkg/objstore"
)

// memStore is a trivial in-memory objstore.Store for exercising the object
// package without a concrete backend.
type memStore struct {
	mu   sync.Mutex
	data map[digest.Digest][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[digest.Digest][]byte)}
}

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
