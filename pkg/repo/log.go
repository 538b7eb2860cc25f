package repo

import (
	"context"
	"fmt"

	"github.com/attaca/attaca/pkg/digest"
	"github.com/attaca/attaca/pkg/object"
)

// LogEntry is one history entry: a commit's digest alongside its body with
// every subtree/parent reference rewritten to a hex digest string, so the
// result is independent of the store's concrete handle type.
type LogEntry struct {
	Digest    digest.Digest
	Subtree   digest.Digest
	Parents   []digest.Digest
	Author    *object.Author
	Timestamp int64
	Message   string
}

// Log walks history depth-first from the current head, visiting each
// reachable commit exactly once. The order is deterministic for a fixed
// DAG but is not a chronological sort: it is depth-first with
// insertion-order children, tie-broken by parent list order.
func (r *Repository) Log(ctx context.Context) ([]LogEntry, error) {
	state, err := r.loadState()
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}
	if state.Head.IsZero() {
		return nil, nil
	}

	visited := map[digest.Digest]bool{state.Head.Digest(): true}
	stack := []object.Ref{state.Head}

	var entries []LogEntry
	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		commit, err := object.GetCommit(ctx, r.Store, ref)
		if err != nil {
			return nil, fmt.Errorf("log: read commit %s: %w", ref.Digest(), err)
		}

		parents := make([]digest.Digest, len(commit.Parents))
		for i, p := range commit.Parents {
			parents[i] = p.Digest()
			if !visited[p.Digest()] {
				visited[p.Digest()] = true
				stack = append(stack, p)
			}
		}

		entries = append(entries, LogEntry{
			Digest:    ref.Digest(),
			Subtree:   commit.Subtree.Digest(),
			Parents:   parents,
			Author:    commit.Author,
			Timestamp: commit.Timestamp,
			Message:   commit.Message,
		})
	}

	return entries, nil
}
