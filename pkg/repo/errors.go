package repo

import "errors"

// Error kinds the core's operations can fail with, beyond whatever the
// Store or filesystem itself returns.
var (
	// ErrFileVanished is returned when a file present at Status time is
	// gone by the time Stage tries to open it. It is not silently turned
	// into a delete: the caller explicitly asked to stage this path.
	ErrFileVanished = errors.New("repo: file vanished between stat and open")

	// ErrNoCandidate is returned by Commit when there is nothing staged.
	ErrNoCandidate = errors.New("repo: commit called with no candidate")

	// ErrNoChanges is returned by Commit when the candidate is identical
	// to the current head's subtree and force was not requested.
	ErrNoChanges = errors.New("repo: commit would reproduce head unchanged")

	// ErrNoParentToAmend is returned when Commit is called with amend=true
	// on a repository with no head commit.
	ErrNoParentToAmend = errors.New("repo: amend called with no parent commit")
)
