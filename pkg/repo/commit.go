package repo

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/attaca/attaca/pkg/object"
)

// CommitArgs controls Commit's behavior.
type CommitArgs struct {
	Message string
	Author  *object.Author

	// Amend rewrites the current head commit in place instead of adding a
	// new one on top of it. Fields left zero (Message "", Author nil) are
	// carried over from the amended commit.
	Amend bool

	// Force allows a commit whose subtree is identical to the current
	// head's subtree to proceed anyway.
	Force bool
}

// Commit freezes the current candidate into a new commit and advances
// head to it. candidate is left untouched; clearing it is a separate,
// explicit operation.
func (r *Repository) Commit(ctx context.Context, args CommitArgs) (object.Ref, error) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	state, err := r.loadState()
	if err != nil {
		return object.Ref{}, fmt.Errorf("commit: %w", err)
	}
	if state.Candidate.IsZero() {
		return object.Ref{}, ErrNoCandidate
	}

	var headCommit *object.Commit
	if !state.Head.IsZero() {
		headCommit, err = object.GetCommit(ctx, r.Store, state.Head)
		if err != nil {
			return object.Ref{}, fmt.Errorf("commit: load head: %w", err)
		}
		if headCommit.Subtree.Digest() == state.Candidate.Digest() && !args.Force {
			return object.Ref{}, ErrNoChanges
		}
	}

	var builder *object.CommitBuilder
	switch {
	case args.Amend && state.Head.IsZero():
		return object.Ref{}, ErrNoParentToAmend
	case args.Amend:
		builder = object.DivergeCommit(headCommit)
	default:
		builder = object.NewCommitBuilder()
		if !state.Head.IsZero() {
			builder.SetParents([]object.Ref{state.Head})
		}
		builder.SetTimestamp(time.Now().Unix())
	}

	builder.SetSubtree(state.Candidate)
	if args.Message != "" {
		builder.SetMessage(args.Message)
	}
	if args.Author != nil {
		builder.SetAuthor(args.Author)
	} else if !args.Amend && (r.Config.AuthorName != "" || r.Config.AuthorMbox != "") {
		builder.SetAuthor(&object.Author{Name: r.Config.AuthorName, Mbox: r.Config.AuthorMbox})
	}

	commit := builder.Build()
	ref, err := object.PutCommit(ctx, r.Store, commit)
	if err != nil {
		return object.Ref{}, fmt.Errorf("commit: upload: %w", err)
	}

	state.Head = ref
	if err := r.saveState(state); err != nil {
		return object.Ref{}, fmt.Errorf("commit: %w", err)
	}

	r.Logger.Debug("commit created", zap.String("digest", string(ref.Digest())))
	return ref, nil
}
