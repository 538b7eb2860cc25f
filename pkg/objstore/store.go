// Package objstore declares the content-addressed persistence contract the
// core depends on. It intentionally says nothing about where bytes live —
// embedded key-value engines, remote network stores, or a plain directory
// are all equally valid implementations.
package objstore

import (
	"context"
	"errors"

	"github.com/attaca/attaca/pkg/digest"
)

// ErrNotFound is returned by Get when no object with the requested digest
// has ever been Put. It signals either corruption or cross-store leakage of
// a handle.
var ErrNotFound = errors.New("objstore: object not found")

// Handle is an opaque, backend-specific reference to stored bytes. It is
// never interpreted by the core beyond recovering its Digest; a backend may
// embed a database row id, an offset into a pack file, or simply the digest
// itself.
type Handle interface {
	// Digest returns the content digest this handle resolves to. Two
	// handles with equal digests are interchangeable even if they came
	// from different Put calls or different backend instances.
	Digest() digest.Digest
}

// Store is the sole persistence surface the core talks to. Implementations
// must guarantee:
//
//   - Put is idempotent under digest equality: putting the same bytes twice
//     (concurrently or not) yields handles with equal digests.
//   - Get is pure given the store's contents: it never returns different
//     bytes for the same handle.
//   - Failures are either transient (I/O) or permanent (corruption) and are
//     propagated unchanged, not swallowed.
type Store interface {
	// Put stores data and returns a Handle identifying it. Calling Put
	// twice with equal data must not fail and must yield equal digests.
	Put(ctx context.Context, data []byte) (Handle, error)

	// Get resolves a Handle to its stored bytes. Returns ErrNotFound if
	// the handle's digest is absent from the store.
	Get(ctx context.Context, h Handle) ([]byte, error)
}

// DigestHandle is the simplest possible Handle: the digest itself, with no
// extra backend-specific payload. Backends that have no cheaper handle
// representation (most of them) can use it directly.
type DigestHandle digest.Digest

// Digest implements Handle.
func (h DigestHandle) Digest() digest.Digest { return digest.Digest(h) }
