package object

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/attaca/attaca/pkg/digest"
	"github.com/attaca/attaca/pkg/objstore"
)

// ---------------------------------------------------------------------------
// Envelope: "kind len\0content", the framing every stored object goes
// through before it is handed to a Store.
// ---------------------------------------------------------------------------

func envelope(kind digest.Kind, data []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", kind, len(data))
	out := make([]byte, 0, len(header)+len(data))
	out = append(out, header...)
	out = append(out, data...)
	return out
}

func decodeEnvelope(raw []byte) (digest.Kind, []byte, error) {
	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return "", nil, fmt.Errorf("object: invalid envelope (no NUL separator)")
	}
	header := string(raw[:nul])
	content := raw[nul+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("object: invalid envelope header %q", header)
	}
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("object: invalid envelope length %q: %w", parts[1], err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("object: envelope length mismatch (header=%d, actual=%d)", length, len(content))
	}
	return digest.Kind(parts[0]), content, nil
}

// refHandle reconstructs a Ref's Handle purely from its digest, relying on
// the Store contract that any object is retrievable given its digest alone.
func refHandle(d digest.Digest) objstore.Handle {
	return objstore.DigestHandle(d)
}

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// MarshalTree serializes a Tree. Entries are sorted by Name for
// determinism. Each entry is one line:
//
//	name kind ref
//
// where kind is "blob", "small-blob", or "tree", and ref is a hex digest for
// blob/tree entries or "inline:<base64>" for an inlined small blob.
func MarshalTree(t *Tree) []byte {
	sorted := make([]TreeEntry, len(t.Entries))
	copy(sorted, t.Entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var buf bytes.Buffer
	for _, e := range sorted {
		fmt.Fprintf(&buf, "%s %s %s\n", e.Name, e.Ref.Kind, refField(e.Ref))
	}
	return buf.Bytes()
}

func refField(r Ref) string {
	if r.Kind == digest.KindSmallBlob {
		return "inline:" + base64.StdEncoding.EncodeToString(r.Inline)
	}
	return string(r.Digest())
}

// UnmarshalTree parses a Tree from its serialized form.
func UnmarshalTree(data []byte) (*Tree, error) {
	t := &Tree{}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return t, nil
	}
	for _, line := range strings.Split(text, "\n") {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("unmarshal tree: malformed entry %q", line)
		}
		name, kind, ref := parts[0], digest.Kind(parts[1]), parts[2]

		var entry Ref
		switch kind {
		case digest.KindBlob, digest.KindTree:
			entry = Ref{Kind: kind, Handle: refHandle(digest.Digest(ref))}
		case digest.KindSmallBlob:
			const prefix = "inline:"
			if !strings.HasPrefix(ref, prefix) {
				return nil, fmt.Errorf("unmarshal tree: small-blob entry %q missing inline payload", name)
			}
			inline, err := base64.StdEncoding.DecodeString(ref[len(prefix):])
			if err != nil {
				return nil, fmt.Errorf("unmarshal tree: decode inline entry %q: %w", name, err)
			}
			entry = Ref{Kind: digest.KindSmallBlob, Inline: inline}
		default:
			return nil, fmt.Errorf("unmarshal tree: unknown entry kind %q", kind)
		}

		t.Entries = append(t.Entries, TreeEntry{Name: name, Ref: entry})
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// MarshalCommit serializes a Commit:
//
//	tree D
//	parent D     (zero or more)
//	author NAME MBOX  (optional)
//	timestamp T
//
//	message
func MarshalCommit(c *Commit) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Subtree.Digest())
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p.Digest())
	}
	if c.Author != nil {
		fmt.Fprintf(&buf, "author %s %s\n", c.Author.Name, c.Author.Mbox)
	}
	fmt.Fprintf(&buf, "timestamp %d\n", c.Timestamp)
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a Commit from its serialized form.
func UnmarshalCommit(data []byte) (*Commit, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &Commit{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.Subtree = Ref{Kind: digest.KindTree, Handle: refHandle(digest.Digest(val))}
		case "parent":
			c.Parents = append(c.Parents, Ref{Kind: digest.KindCommit, Handle: refHandle(digest.Digest(val))})
		case "author":
			// The mbox is the last field, so a name may itself contain spaces.
			name, mbox := val, ""
			if i := strings.LastIndex(val, " "); i >= 0 {
				name, mbox = val[:i], val[i+1:]
			}
			c.Author = &Author{Name: name, Mbox: mbox}
		case "timestamp":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: bad timestamp %q: %w", val, err)
			}
			c.Timestamp = ts
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q", key)
		}
	}
	return c, nil
}
