// Package digest computes and represents the content-addressed identity of
// objects stored by the core: a 64-character hex-encoded SHA-256 sum of an
// object's canonical "type len\0content" envelope.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Digest is a fixed-width, hex-encoded SHA-256 content fingerprint. Equality
// of two Digests implies equality of the content they were computed from.
type Digest string

// Kind identifies which object variant a Digest or ObjectRef belongs to.
// Encoded alongside the digest itself because a Digest alone cannot be
// decoded without knowing what it is a digest of.
type Kind string

const (
	KindBlob      Kind = "blob"
	KindSmallBlob Kind = "small-blob"
	KindTree      Kind = "tree"
	KindCommit    Kind = "commit"
)

// Of computes the envelope digest of data tagged with kind, mirroring Git's
// object hashing scheme but with SHA-256 and attaca's own kind vocabulary.
func Of(kind Kind, data []byte) Digest {
	header := fmt.Sprintf("%s %d\x00", kind, len(data))
	h := sha256.New()
	h.Write([]byte(header))
	h.Write(data)
	return Digest(hex.EncodeToString(h.Sum(nil)))
}

// OfBytes computes the raw SHA-256 of data with no envelope, used for
// identifying inlined small-blob content that never passes through a Store.
func OfBytes(data []byte) Digest {
	sum := sha256.Sum256(data)
	return Digest(hex.EncodeToString(sum[:]))
}

// String returns the digest's hex representation.
func (d Digest) String() string { return string(d) }

// IsZero reports whether d is the empty digest, used as the "no object"
// sentinel in tree entries.
func (d Digest) IsZero() bool { return d == "" }
