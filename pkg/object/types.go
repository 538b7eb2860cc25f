// Package object implements the core's content-addressed object model:
// Blob, Tree, and Commit, their canonical encodings, and the builder types
// used to mutate them by reconstruction.
package object

import (
	"github.com/attaca/attaca/pkg/digest"
	"github.com/attaca/attaca/pkg/objstore"
)

// Ref is a tagged Handle: it carries enough information for a caller to
// decode what it points at without consulting the Store. A SmallBlob Ref
// never touches the Store at all; its bytes are inlined directly.
type Ref struct {
	Kind   digest.Kind
	Handle objstore.Handle // nil when Kind == digest.KindSmallBlob
	Inline []byte          // populated only when Kind == digest.KindSmallBlob
}

// Digest returns the content digest this reference resolves to, computing it
// from the inline bytes for small blobs rather than consulting a Handle.
func (r Ref) Digest() digest.Digest {
	if r.Kind == digest.KindSmallBlob {
		return digest.OfBytes(r.Inline)
	}
	if r.Handle == nil {
		return ""
	}
	return r.Handle.Digest()
}

// IsZero reports whether r is the zero Ref (no object referenced), used to
// represent an absent tree/subtree hash.
func (r Ref) IsZero() bool {
	return r.Kind == "" && r.Handle == nil && r.Inline == nil
}

// TreeEntry maps a single path component to the object it resolves to.
// Entries are kept sorted lexicographically by Name in the canonical
// encoding.
type TreeEntry struct {
	Name string
	Ref  Ref // Kind is one of Blob, SmallBlob, or Tree
}

// Tree is a mapping from path components to ObjectRefs. It is total over
// its declared keys and invariantly has no two entries sharing a component.
type Tree struct {
	Entries []TreeEntry
}

// Author identifies who authored a commit.
type Author struct {
	Name string
	Mbox string
}

// Commit is an immutable record linking a subtree to zero or more parent
// commits.
type Commit struct {
	Subtree   Ref   // Kind must be Tree
	Parents   []Ref // Kind must be Commit, ordered
	Author    *Author
	Timestamp int64 // unix seconds
	Message   string
}
