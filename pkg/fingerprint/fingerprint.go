// Package fingerprint implements the status cache: a mapping from
// repository paths to the filesystem fingerprint last observed there and
// the content digest it hashed to, used to avoid rehashing unchanged files
// on every stage.
package fingerprint

import (
	"math"
	"os"
	"reflect"
	"sync"

	"github.com/attaca/attaca/pkg/digest"
	"github.com/attaca/attaca/pkg/objpath"
)

// Kind distinguishes the filesystem entry a Snapshot was taken of.
type Kind int

const (
	KindRegular Kind = iota
	KindSymlink
	KindDir
)

// Snapshot is a filesystem fingerprint: enough metadata to detect whether a
// file has plausibly changed without reading its content. Two equal
// snapshots for the same path at different times justify reusing the
// digest recorded at the earlier time.
type Snapshot struct {
	Kind           Kind
	Size           int64
	ModTimeNano    int64
	HasChangeTime  bool
	ChangeTimeNano int64
	HasFileID      bool
	Device         uint64
	Inode          uint64
}

// Certainty qualifies an Extant status: whether the cached digest is
// believed to still be current.
type Certainty int

const (
	Positive Certainty = iota
	Negative
)

// StatusKind enumerates the four states a path can be in relative to the
// cache and the filesystem.
type StatusKind int

const (
	// StatusNew: path never seen by the cache; the file is present.
	StatusNew StatusKind = iota
	// StatusExtant: path known to the cache; the file is present.
	StatusExtant
	// StatusRemoved: path known to the cache; the file is absent.
	StatusRemoved
	// StatusExtinct: path never seen by the cache; the file is absent.
	StatusExtinct
)

// Status is the result of consulting the cache for a single path.
type Status struct {
	Kind      StatusKind
	Snapshot  Snapshot      // valid for StatusNew and StatusExtant
	Certainty Certainty     // valid for StatusExtant only
	RefKind   digest.Kind   // the cached object kind, valid when Certainty == Positive
	Digest    digest.Digest // the cached digest, valid when Certainty == Positive
}

type entry struct {
	snapshot Snapshot
	refKind  digest.Kind
	digest   digest.Digest
}

// Cache maps ObjectPath to (Snapshot, Digest). It is safe for concurrent
// use; Resolve calls for distinct paths may proceed concurrently.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Status stats absPath and crosses the result against any cached entry for
// path, yielding one of the four Status kinds. A vanished file between two
// calls surfaces as StatusRemoved or StatusExtinct, never an error — races
// are the caller's problem to resolve (attempting to open the file next).
func (c *Cache) Status(path objpath.Path, absPath string) (Status, error) {
	info, statErr := os.Lstat(absPath)
	present := statErr == nil
	if statErr != nil && !os.IsNotExist(statErr) {
		return Status{}, statErr
	}

	c.mu.Lock()
	e, known := c.entries[path.String()]
	c.mu.Unlock()

	if !known {
		if !present {
			return Status{Kind: StatusExtinct}, nil
		}
		return Status{Kind: StatusNew, Snapshot: snapshotOf(info)}, nil
	}

	if !present {
		return Status{Kind: StatusRemoved}, nil
	}

	current := snapshotOf(info)
	if current == e.snapshot {
		return Status{Kind: StatusExtant, Snapshot: current, Certainty: Positive, RefKind: e.refKind, Digest: e.digest}, nil
	}
	return Status{Kind: StatusExtant, Snapshot: current, Certainty: Negative}, nil
}

// Resolve records that snapshot hashes to d (an object of kind refKind) for
// path. It is idempotent for an identical (snapshot, refKind, digest)
// triple and overwrites any prior entry recorded for path, whatever
// snapshot that entry held.
func (c *Cache) Resolve(path objpath.Path, snapshot Snapshot, refKind digest.Kind, d digest.Digest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path.String()] = entry{snapshot: snapshot, refKind: refKind, digest: d}
}

// Invalidate drops every cached entry, forcing the next Status call for
// every path to report StatusNew or StatusExtinct.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

func snapshotOf(info os.FileInfo) Snapshot {
	kind := KindRegular
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		kind = KindSymlink
	case info.IsDir():
		kind = KindDir
	}

	s := Snapshot{
		Kind:        kind,
		Size:        info.Size(),
		ModTimeNano: info.ModTime().UnixNano(),
	}

	if ctime, ok := changeTimeUnixNano(info); ok {
		s.HasChangeTime = true
		s.ChangeTimeNano = ctime
	}
	if dev, ino, ok := deviceAndInode(info); ok {
		s.HasFileID = true
		s.Device = dev
		s.Inode = ino
	}
	return s
}

// deviceAndInode and changeTimeUnixNano extract platform-specific stat
// fields via reflection so this package stays free of build-tagged
// per-OS variants; os.FileInfo.Sys() returns a *syscall.Stat_t on Unix and
// a different type on Windows, and the field names themselves differ
// across BSD/Linux/Darwin (Ctim vs Ctimespec).

func deviceAndInode(info os.FileInfo) (uint64, uint64, bool) {
	statValue, ok := statStruct(info)
	if !ok {
		return 0, 0, false
	}
	dev, ok := uintFieldByNames(statValue, "Dev")
	if !ok {
		return 0, 0, false
	}
	ino, ok := uintFieldByNames(statValue, "Ino")
	if !ok {
		return 0, 0, false
	}
	return dev, ino, true
}

func changeTimeUnixNano(info os.FileInfo) (int64, bool) {
	statValue, ok := statStruct(info)
	if !ok {
		return 0, false
	}

	for _, name := range []string{"Ctim", "Ctimespec"} {
		if tsField := statValue.FieldByName(name); tsField.IsValid() {
			if nano, ok := timespecUnixNano(tsField); ok {
				return nano, true
			}
		}
	}

	sec, hasSec := intFieldByNames(statValue, "Ctime")
	nsec, hasNsec := intFieldByNames(statValue, "CtimeNsec", "Ctimensec")
	if hasSec && hasNsec {
		return sec*1_000_000_000 + nsec, true
	}
	return 0, false
}

func timespecUnixNano(v reflect.Value) (int64, bool) {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return 0, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return 0, false
	}
	sec, hasSec := intFieldByNames(v, "Sec", "Tv_sec")
	nsec, hasNsec := intFieldByNames(v, "Nsec", "Tv_nsec")
	if !hasSec || !hasNsec {
		return 0, false
	}
	return sec*1_000_000_000 + nsec, true
}

func statStruct(info os.FileInfo) (reflect.Value, bool) {
	sys := info.Sys()
	if sys == nil {
		return reflect.Value{}, false
	}
	v := reflect.ValueOf(sys)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	return v, true
}

func uintFieldByNames(v reflect.Value, names ...string) (uint64, bool) {
	for _, name := range names {
		f := v.FieldByName(name)
		if !f.IsValid() {
			continue
		}
		if u, ok := uint64Value(f); ok {
			return u, true
		}
	}
	return 0, false
}

func intFieldByNames(v reflect.Value, names ...string) (int64, bool) {
	for _, name := range names {
		f := v.FieldByName(name)
		if !f.IsValid() {
			continue
		}
		if i, ok := int64Value(f); ok {
			return i, true
		}
	}
	return 0, false
}

func uint64Value(v reflect.Value) (uint64, bool) {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := v.Int()
		if i < 0 {
			return 0, false
		}
		return uint64(i), true
	default:
		return 0, false
	}
}

func int64Value(v reflect.Value) (int64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	default:
		return 0, false
	}
}
