package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/attaca/attaca/pkg/digest"
	"github.com/attaca/attaca/pkg/object"
	"github.com/attaca/attaca/pkg/objstore"
)

// State is the repository's persisted { head, candidate } pair. Both
// fields are optional: a zero Ref (IsZero()) denotes None. candidate is
// independent of head's subtree — a fresh commit may set head's subtree
// equal to candidate without clearing candidate.
type State struct {
	Head      object.Ref // Kind == digest.KindCommit when present
	Candidate object.Ref // Kind == digest.KindTree when present
}

// IsEmpty reports whether the repository has neither a head nor a
// candidate.
func (s State) IsEmpty() bool {
	return s.Head.IsZero() && s.Candidate.IsZero()
}

func statePath(metaDir string) string {
	return filepath.Join(metaDir, "state")
}

// LoadState reads the persisted state from metaDir. A missing file is not
// an error: it denotes a fresh, empty repository.
func LoadState(metaDir string) (State, error) {
	data, err := os.ReadFile(statePath(metaDir))
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("load state: %w", err)
	}

	var s State
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return s, nil
	}
	for _, line := range strings.Split(text, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return State{}, fmt.Errorf("load state: malformed line %q", line)
		}
		switch key {
		case "head":
			if val != "" {
				s.Head = object.Ref{Kind: digest.KindCommit, Handle: objstore.DigestHandle(digest.Digest(val))}
			}
		case "candidate":
			if val != "" {
				s.Candidate = object.Ref{Kind: digest.KindTree, Handle: objstore.DigestHandle(digest.Digest(val))}
			}
		default:
			return State{}, fmt.Errorf("load state: unknown key %q", key)
		}
	}
	return s, nil
}

// SaveState atomically persists s to metaDir via temp-file-then-rename.
func SaveState(metaDir string, s State) error {
	var headField, candidateField string
	if !s.Head.IsZero() {
		headField = string(s.Head.Digest())
	}
	if !s.Candidate.IsZero() {
		candidateField = string(s.Candidate.Digest())
	}

	data := fmt.Sprintf("head %s\ncandidate %s\n", headField, candidateField)

	tmp, err := os.CreateTemp(metaDir, ".state-tmp-*")
	if err != nil {
		return fmt.Errorf("save state: tmpfile: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save state: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save state: close: %w", err)
	}
	if err := os.Rename(tmpName, statePath(metaDir)); err != nil {
		return fmt.Errorf("save state: rename: %w", err)
	}
	return nil
}
