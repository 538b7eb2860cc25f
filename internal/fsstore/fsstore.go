// Package fsstore is a concrete, filesystem-backed implementation of
// objstore.Store: a 2-character fan-out directory layout under
// objects/ab/cdef0123..., atomic writes via temp-file-then-rename, and
// zstd compression of everything on disk.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/attaca/attaca/pkg/digest"
	"github.com/attaca/attaca/pkg/objstore"
)

// Store is a content-addressed object store rooted at a directory.
type Store struct {
	root string

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Open returns a Store rooted at dir. The objects/ subdirectory is created
// lazily on first write.
func Open(dir string) (*Store, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("fsstore: new encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("fsstore: new decoder: %w", err)
	}
	return &Store{root: dir, encoder: enc, decoder: dec}, nil
}

// Close releases the encoder/decoder's background goroutines.
func (s *Store) Close() error {
	s.decoder.Close()
	return s.encoder.Close()
}

func (s *Store) objectPath(d digest.Digest) (string, error) {
	hex := string(d)
	if len(hex) < 3 {
		return "", fmt.Errorf("fsstore: digest %q too short for fan-out layout", hex)
	}
	return filepath.Join(s.root, "objects", hex[:2], hex[2:]), nil
}

// Put compresses data and writes it under its content digest. Put is
// idempotent: if an object with the resulting digest already exists, the
// write is skipped entirely.
func (s *Store) Put(ctx context.Context, data []byte) (objstore.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d := digest.OfBytes(data)
	path, err := s.objectPath(d)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err == nil {
		return objstore.DigestHandle(d), nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fsstore: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("fsstore: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	compressed := s.encoder.EncodeAll(data, nil)
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("fsstore: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("fsstore: close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return nil, fmt.Errorf("fsstore: rename into place: %w", err)
	}
	return objstore.DigestHandle(d), nil
}

// Get decompresses and returns the bytes stored under h's digest.
func (s *Store) Get(ctx context.Context, h objstore.Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.objectPath(h.Digest())
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, objstore.ErrNotFound
		}
		return nil, fmt.Errorf("fsstore: read %s: %w", path, err)
	}

	data, err := s.decoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("fsstore: decompress %s: %w", path, err)
	}
	return data, nil
}

var _ io.Closer = (*Store)(nil)
