package object

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/attaca/attaca/pkg/digest"
	"github.com/attaca/attaca/pkg/objstore"
)

const (
	// SmallBlobThreshold is the largest blob size inlined directly into a
	// Tree entry instead of round-tripping through the Store.
	SmallBlobThreshold = 256

	// ChunkThreshold is the blob size above which content is split into a
	// flat list of child blob handles instead of stored whole.
	ChunkThreshold = 4 << 20 // 4 MiB

	// ChunkSize is the size of each child blob when chunking.
	ChunkSize = 1 << 20 // 1 MiB
)

const kindBlobManifest digest.Kind = "blob-manifest"

// Share streams data into the store, returning the Ref that addresses it.
// Content at or below SmallBlobThreshold is inlined and never touches the
// Store at all. Content above ChunkThreshold is split into ChunkSize
// pieces, each stored independently, and referenced by a manifest object.
func Share(ctx context.Context, store objstore.Store, data []byte) (Ref, error) {
	if len(data) <= SmallBlobThreshold {
		inline := make([]byte, len(data))
		copy(inline, data)
		return Ref{Kind: digest.KindSmallBlob, Inline: inline}, nil
	}

	if len(data) <= ChunkThreshold {
		h, err := store.Put(ctx, envelope(digest.KindBlob, data))
		if err != nil {
			return Ref{}, fmt.Errorf("object: share blob: %w", err)
		}
		return Ref{Kind: digest.KindBlob, Handle: h}, nil
	}

	var manifest bytes.Buffer
	for off := 0; off < len(data); off += ChunkSize {
		end := off + ChunkSize
		if end > len(data) {
			end = len(data)
		}
		ch, err := store.Put(ctx, envelope(digest.KindBlob, data[off:end]))
		if err != nil {
			return Ref{}, fmt.Errorf("object: share chunk at offset %d: %w", off, err)
		}
		fmt.Fprintf(&manifest, "%s\n", ch.Digest())
	}
	h, err := store.Put(ctx, envelope(kindBlobManifest, manifest.Bytes()))
	if err != nil {
		return Ref{}, fmt.Errorf("object: share manifest: %w", err)
	}
	return Ref{Kind: digest.KindBlob, Handle: h}, nil
}

// Fetch resolves a blob Ref back to its bytes, transparently reassembling
// chunked blobs and reading inline small blobs with no Store access.
func Fetch(ctx context.Context, store objstore.Store, ref Ref) ([]byte, error) {
	if ref.Kind == digest.KindSmallBlob {
		out := make([]byte, len(ref.Inline))
		copy(out, ref.Inline)
		return out, nil
	}
	if ref.Kind != digest.KindBlob {
		return nil, fmt.Errorf("object: fetch: ref is not a blob (kind=%s)", ref.Kind)
	}
	if ref.Handle == nil {
		return nil, fmt.Errorf("object: fetch: blob ref has no handle")
	}

	raw, err := store.Get(ctx, ref.Handle)
	if err != nil {
		return nil, fmt.Errorf("object: fetch blob %s: %w", ref.Digest(), err)
	}
	kind, content, err := decodeEnvelope(raw)
	if err != nil {
		return nil, fmt.Errorf("object: fetch blob %s: %w", ref.Digest(), err)
	}

	switch kind {
	case digest.KindBlob:
		return content, nil
	case kindBlobManifest:
		return fetchChunks(ctx, store, content)
	default:
		return nil, fmt.Errorf("object: fetch blob %s: unexpected envelope kind %q", ref.Digest(), kind)
	}
}

func fetchChunks(ctx context.Context, store objstore.Store, manifest []byte) ([]byte, error) {
	text := strings.TrimRight(string(manifest), "\n")
	var out bytes.Buffer
	if text == "" {
		return out.Bytes(), nil
	}
	for _, line := range strings.Split(text, "\n") {
		chunkRef := Ref{Kind: digest.KindBlob, Handle: refHandle(digest.Digest(line))}
		chunk, err := Fetch(ctx, store, chunkRef)
		if err != nil {
			return nil, fmt.Errorf("object: fetch chunk %s: %w", line, err)
		}
		out.Write(chunk)
	}
	return out.Bytes(), nil
}

// PutTree uploads t and returns its Ref.
func PutTree(ctx context.Context, store objstore.Store, t *Tree) (Ref, error) {
	h, err := store.Put(ctx, envelope(digest.KindTree, MarshalTree(t)))
	if err != nil {
		return Ref{}, fmt.Errorf("object: put tree: %w", err)
	}
	return Ref{Kind: digest.KindTree, Handle: h}, nil
}

// GetTree resolves a Tree Ref back to its decoded form.
func GetTree(ctx context.Context, store objstore.Store, ref Ref) (*Tree, error) {
	if ref.Kind != digest.KindTree || ref.Handle == nil {
		return nil, fmt.Errorf("object: get tree: ref is not a tree")
	}
	raw, err := store.Get(ctx, ref.Handle)
	if err != nil {
		return nil, fmt.Errorf("object: get tree %s: %w", ref.Digest(), err)
	}
	kind, content, err := decodeEnvelope(raw)
	if err != nil {
		return nil, fmt.Errorf("object: get tree %s: %w", ref.Digest(), err)
	}
	if kind != digest.KindTree {
		return nil, fmt.Errorf("object: get tree %s: unexpected envelope kind %q", ref.Digest(), kind)
	}
	return UnmarshalTree(content)
}

// PutCommit uploads c and returns its Ref.
func PutCommit(ctx context.Context, store objstore.Store, c *Commit) (Ref, error) {
	h, err := store.Put(ctx, envelope(digest.KindCommit, MarshalCommit(c)))
	if err != nil {
		return Ref{}, fmt.Errorf("object: put commit: %w", err)
	}
	return Ref{Kind: digest.KindCommit, Handle: h}, nil
}

// GetCommit resolves a Commit Ref back to its decoded form.
func GetCommit(ctx context.Context, store objstore.Store, ref Ref) (*Commit, error) {
	if ref.Kind != digest.KindCommit || ref.Handle == nil {
		return nil, fmt.Errorf("object: get commit: ref is not a commit")
	}
	raw, err := store.Get(ctx, ref.Handle)
	if err != nil {
		return nil, fmt.Errorf("object: get commit %s: %w", ref.Digest(), err)
	}
	kind, content, err := decodeEnvelope(raw)
	if err != nil {
		return nil, fmt.Errorf("object: get commit %s: %w", ref.Digest(), err)
	}
	if kind != digest.KindCommit {
		return nil, fmt.Errorf("object: get commit %s: unexpected envelope kind %q", ref.Digest(), kind)
	}
	return UnmarshalCommit(content)
}
