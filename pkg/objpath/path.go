// Package objpath implements ObjectPath: a normalized, repository-relative
// path used as a key into Tree objects. It is deliberately independent of
// the host filesystem's path package so that Tree encodings stay portable.
package objpath

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideRepo is returned when an absolute filesystem path does not have
// the repository root as a prefix.
var ErrOutsideRepo = errors.New("objpath: path is outside the repository")

// ErrInvalid is returned when a path segment is empty, ".", "..", or an
// unmappable platform-specific root.
var ErrInvalid = errors.New("objpath: invalid path segment")

// Path is an ordered sequence of non-empty path components with no
// separators embedded in any component. An empty Path denotes the
// repository root.
type Path struct {
	components []string
}

// Root is the empty ObjectPath, denoting the repository root.
var Root = Path{}

// New builds a Path directly from already-split components, rejecting any
// that are empty, ".", or "..".
func New(components ...string) (Path, error) {
	out := make([]string, 0, len(components))
	for _, c := range components {
		if err := validateComponent(c); err != nil {
			return Path{}, err
		}
		out = append(out, c)
	}
	return Path{components: out}, nil
}

// FromSlash parses a forward-slash-separated repository-relative path (the
// form Tree entries and the wire/log output use) into a Path.
func FromSlash(rel string) (Path, error) {
	rel = strings.Trim(rel, "/")
	if rel == "" || rel == "." {
		return Root, nil
	}
	parts := strings.Split(rel, "/")
	return New(parts...)
}

// FromFilesystem derives an ObjectPath from a filesystem-relative path,
// rejecting empty segments, ".", "..", and platform-specific absolute roots.
func FromFilesystem(rel string) (Path, error) {
	if filepath.IsAbs(rel) {
		return Path{}, fmt.Errorf("%w: %q is absolute", ErrInvalid, rel)
	}
	return FromSlash(filepath.ToSlash(rel))
}

func validateComponent(c string) error {
	if c == "" {
		return fmt.Errorf("%w: empty component", ErrInvalid)
	}
	if c == "." || c == ".." {
		return fmt.Errorf("%w: %q", ErrInvalid, c)
	}
	if strings.ContainsAny(c, "/\\") {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalid, c)
	}
	return nil
}

// IsRoot reports whether p denotes the repository root.
func (p Path) IsRoot() bool { return len(p.components) == 0 }

// Components returns the path's ordered components. The returned slice must
// not be mutated by the caller.
func (p Path) Components() []string { return p.components }

// Base returns the final component, or "" for the root.
func (p Path) Base() string {
	if p.IsRoot() {
		return ""
	}
	return p.components[len(p.components)-1]
}

// Parent returns the path with its final component removed. Parent of Root
// is Root.
func (p Path) Parent() Path {
	if p.IsRoot() {
		return Root
	}
	return Path{components: p.components[:len(p.components)-1]}
}

// Child appends a single component, returning an error if it is invalid.
func (p Path) Child(component string) (Path, error) {
	if err := validateComponent(component); err != nil {
		return Path{}, err
	}
	out := make([]string, len(p.components)+1)
	copy(out, p.components)
	out[len(p.components)] = component
	return Path{components: out}, nil
}

// String renders the path using forward slashes, "" for the root.
func (p Path) String() string {
	return strings.Join(p.components, "/")
}

// Equal reports whether p and other have identical components.
func (p Path) Equal(other Path) bool {
	if len(p.components) != len(other.components) {
		return false
	}
	for i := range p.components {
		if p.components[i] != other.components[i] {
			return false
		}
	}
	return true
}

// RelativeTo strips prefix from full, reporting ok=false if full does not have
// prefix as a component-wise prefix. Used when an absolute filesystem path
// must be checked against the repository root.
func RelativeTo(prefix, full string) (string, bool) {
	prefix = filepath.Clean(prefix)
	full = filepath.Clean(full)
	rel, err := filepath.Rel(prefix, full)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}
