package repo

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"

	"github.com/attaca/attaca/pkg/batch"
	"github.com/attaca/attaca/pkg/digest"
	"github.com/attaca/attaca/pkg/fingerprint"
	"github.com/attaca/attaca/pkg/hierarchy"
	"github.com/attaca/attaca/pkg/object"
	"github.com/attaca/attaca/pkg/objpath"
	"github.com/attaca/attaca/pkg/objstore"
)

// directoryWalkConcurrency bounds how many files within one staged
// directory are hashed at once.
const directoryWalkConcurrency = 8

// StageOp names one path a caller wants staged or unstaged. Raw may be an
// absolute filesystem path (which must fall under the repository root) or
// a path relative to it.
type StageOp struct {
	Raw      string
	Previous bool // restore from head instead of reading the filesystem
}

// Progress reports that path has finished processing during Stage, success
// or failure.
type Progress struct {
	Path string
	Err  error
}

// Stage applies ops to the candidate tree. Per-op resolution runs in
// input order, so the last operation touching a given path wins. progress,
// if non-nil, receives one Progress per processed path (one per file, absent
// path or unstaged path; a staged directory yields one per file beneath it
// rather than one for the directory) and is closed before Stage returns.
func (r *Repository) Stage(ctx context.Context, ops []StageOp, progress chan<- Progress) error {
	if progress != nil {
		defer close(progress)
	}

	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	state, err := r.loadState()
	if err != nil {
		return fmt.Errorf("stage: %w", err)
	}

	headHier := hierarchy.Empty(r.Store)
	if !state.Head.IsZero() {
		headCommit, err := object.GetCommit(ctx, r.Store, state.Head)
		if err != nil {
			return fmt.Errorf("stage: load head: %w", err)
		}
		headHier = hierarchy.New(r.Store, headCommit.Subtree)
	}

	b := batch.New()
	for _, op := range ops {
		absPath, path, err := r.normalizePath(op.Raw)
		if err != nil {
			r.reportProgress(progress, op.Raw, err)
			return fmt.Errorf("stage %q: %w", op.Raw, err)
		}

		if op.Previous {
			ref, found, err := headHier.Lookup(ctx, path)
			if err != nil {
				r.reportProgress(progress, path.String(), err)
				return fmt.Errorf("stage: unstage %q: %w", op.Raw, err)
			}
			if found {
				b.Add(path, ref)
			} else {
				b.Delete(path)
			}
			r.reportProgress(progress, path.String(), nil)
			continue
		}

		ref, present, err := r.process(ctx, absPath, path, progress)
		if err != nil {
			return fmt.Errorf("stage %q: %w", op.Raw, err)
		}
		if present {
			b.Add(path, ref)
		} else {
			b.Delete(path)
		}
	}

	baseBuilder := object.NewTreeBuilder()
	if !state.Candidate.IsZero() {
		tree, err := object.GetTree(ctx, r.Store, state.Candidate)
		if err != nil {
			return fmt.Errorf("stage: load candidate: %w", err)
		}
		baseBuilder = object.DivergeTree(tree)
	}

	builder, err := batch.Run(ctx, r.Store, baseBuilder, b)
	if err != nil {
		return fmt.Errorf("stage: %w", err)
	}

	tree := builder.Build()
	if len(tree.Entries) == 0 && state.Head.IsZero() {
		state.Candidate = object.Ref{}
	} else {
		ref, err := object.PutTree(ctx, r.Store, tree)
		if err != nil {
			return fmt.Errorf("stage: upload candidate: %w", err)
		}
		state.Candidate = ref
	}

	if err := r.saveState(state); err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	return nil
}

func (r *Repository) reportProgress(progress chan<- Progress, path string, err error) {
	if progress == nil {
		return
	}
	progress <- Progress{Path: path, Err: err}
}

// normalizePath resolves a caller-supplied path into an absolute
// filesystem path and its repository-relative ObjectPath.
func (r *Repository) normalizePath(raw string) (string, objpath.Path, error) {
	if filepath.IsAbs(raw) {
		rel, ok := objpath.RelativeTo(r.RootDir, raw)
		if !ok {
			return "", objpath.Path{}, fmt.Errorf("%w: %q", objpath.ErrOutsideRepo, raw)
		}
		path, err := objpath.FromFilesystem(rel)
		if err != nil {
			return "", objpath.Path{}, err
		}
		return raw, path, nil
	}

	path, err := objpath.FromFilesystem(raw)
	if err != nil {
		return "", objpath.Path{}, err
	}
	abs := filepath.Join(r.RootDir, filepath.FromSlash(raw))
	return abs, path, nil
}

// process resolves a single Stage op against the filesystem: an absent
// entry yields (_, false, nil) meaning "delete", a directory is walked
// recursively, and a file or symlink is hashed via processFile.
func (r *Repository) process(ctx context.Context, absPath string, path objpath.Path, progress chan<- Progress) (object.Ref, bool, error) {
	info, err := os.Lstat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			r.reportProgress(progress, path.String(), nil)
			return object.Ref{}, false, nil
		}
		r.reportProgress(progress, path.String(), err)
		return object.Ref{}, false, err
	}

	if info.IsDir() {
		ref, err := r.processDir(ctx, absPath, path, progress)
		if err != nil {
			return object.Ref{}, false, err
		}
		return ref, true, nil
	}

	ref, err := r.processFile(ctx, absPath, path, info, progress)
	if err != nil {
		return object.Ref{}, false, err
	}
	return ref, true, nil
}

// processFile hashes a single regular file or symlink, consulting the
// fingerprint cache to avoid rereading content whose snapshot hasn't
// changed since it was last hashed. Only content stored in the Store as a
// blob is served from the cache; content small enough to be inlined as a
// small blob is reread and rehashed on every stage.
func (r *Repository) processFile(ctx context.Context, absPath string, path objpath.Path, info os.FileInfo, progress chan<- Progress) (object.Ref, error) {
	isSymlink := info.Mode()&os.ModeSymlink != 0
	if isSymlink && !r.Config.FollowSymlinks {
		err := fmt.Errorf("process %q: symlinks are not staged (follow_symlinks=false)", path)
		r.reportProgress(progress, path.String(), err)
		return object.Ref{}, err
	}

	status, err := r.Cache.Status(path, absPath)
	if err != nil {
		r.reportProgress(progress, path.String(), err)
		return object.Ref{}, err
	}
	if status.Kind == fingerprint.StatusRemoved || status.Kind == fingerprint.StatusExtinct {
		err := fmt.Errorf("%w: %s", ErrFileVanished, path)
		r.reportProgress(progress, path.String(), err)
		return object.Ref{}, err
	}

	if status.Certainty == fingerprint.Positive && status.RefKind == digest.KindBlob {
		ref := object.Ref{Kind: digest.KindBlob, Handle: objstore.DigestHandle(status.Digest)}
		r.Logger.Debug("cache hit", zap.String("path", path.String()))
		r.reportProgress(progress, path.String(), nil)
		return ref, nil
	}

	data, err := readContent(absPath, isSymlink)
	if err != nil {
		if os.IsNotExist(err) {
			err = fmt.Errorf("%w: %s", ErrFileVanished, path)
		}
		r.reportProgress(progress, path.String(), err)
		return object.Ref{}, err
	}

	ref, err := object.Share(ctx, r.Store, data)
	if err != nil {
		r.reportProgress(progress, path.String(), err)
		return object.Ref{}, err
	}

	r.Cache.Resolve(path, status.Snapshot, ref.Kind, ref.Digest())
	r.Logger.Debug("object uploaded", zap.String("path", path.String()), zap.String("digest", string(ref.Digest())))
	r.reportProgress(progress, path.String(), nil)
	return ref, nil
}

func readContent(absPath string, isSymlink bool) ([]byte, error) {
	if isSymlink {
		target, err := os.Readlink(absPath)
		if err != nil {
			return nil, err
		}
		return []byte(target), nil
	}
	return os.ReadFile(absPath)
}

// processDir walks a directory, hashing its files concurrently (bounded by
// directoryWalkConcurrency) and folding the results into a fresh subtree.
// Nested metadata directories are skipped.
func (r *Repository) processDir(ctx context.Context, absPath string, path objpath.Path, progress chan<- Progress) (object.Ref, error) {
	type hashed struct {
		rel string
		ref object.Ref
	}

	var mu sync.Mutex
	var results []hashed

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(directoryWalkConcurrency)

	walkErr := filepath.WalkDir(absPath, func(entryPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entryPath == absPath {
			return nil
		}
		if d.Name() == MetaDirName {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(absPath, entryPath)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		childPath, err := joinRelative(path, rel)
		if err != nil {
			return err
		}

		g.Go(func() error {
			info, err := d.Info()
			if err != nil {
				return err
			}
			ref, err := r.processFile(gctx, entryPath, childPath, info, progress)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, hashed{rel: rel, ref: ref})
			mu.Unlock()
			return nil
		})
		return nil
	})
	if walkErr != nil {
		return object.Ref{}, fmt.Errorf("process dir %q: %w", path, walkErr)
	}
	if err := g.Wait(); err != nil {
		return object.Ref{}, fmt.Errorf("process dir %q: %w", path, err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].rel < results[j].rel })

	inner := batch.New()
	for _, h := range results {
		relPath, err := objpath.FromSlash(h.rel)
		if err != nil {
			return object.Ref{}, err
		}
		inner.Add(relPath, h.ref)
	}

	builder, err := batch.Run(ctx, r.Store, object.NewTreeBuilder(), inner)
	if err != nil {
		return object.Ref{}, fmt.Errorf("process dir %q: %w", path, err)
	}
	return object.PutTree(ctx, r.Store, builder.Build())
}

func joinRelative(base objpath.Path, rel string) (objpath.Path, error) {
	out := base
	for _, component := range strings.Split(rel, "/") {
		var err error
		out, err = out.Child(component)
		if err != nil {
			return objpath.Path{}, err
		}
	}
	return out, nil
}
