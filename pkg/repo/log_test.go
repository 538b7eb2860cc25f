package repo_test

import (
	"context"
	"testing"

	"github.com/attaca/attaca/pkg/repo"
)

func TestLog_EmptyRepoHasNoHistory(t *testing.T) {
	r := initRepo(t)
	entries, err := r.Log(context.Background())
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %+v, want none", entries)
	}
}

func TestLog_LinearHistoryVisitsEachCommitOnce(t *testing.T) {
	r := initRepo(t)
	ctx := context.Background()

	var commits []string
	for i, name := range []string{"a.txt", "b.txt", "c.txt"} {
		writeFile(t, r, name, []byte(name))
		if err := r.Stage(ctx, []repo.StageOp{{Raw: name}}, nil); err != nil {
			t.Fatalf("Stage(%d): %v", i, err)
		}
		ref, err := r.Commit(ctx, repo.CommitArgs{Message: name})
		if err != nil {
			t.Fatalf("Commit(%d): %v", i, err)
		}
		commits = append(commits, string(ref.Digest()))
	}

	entries, err := r.Log(ctx)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}

	seen := map[string]bool{}
	for _, e := range entries {
		if seen[string(e.Digest)] {
			t.Fatalf("commit %s visited twice", e.Digest)
		}
		seen[string(e.Digest)] = true
	}
	for _, d := range commits {
		if !seen[d] {
			t.Fatalf("commit %s missing from log", d)
		}
	}

	// Depth-first from head means the most recent commit is visited first.
	if string(entries[0].Digest) != commits[2] {
		t.Fatalf("entries[0].Digest = %s, want most recent commit %s", entries[0].Digest, commits[2])
	}
}

func TestLog_AmendDropsSupersededCommitFromHistory(t *testing.T) {
	r := initRepo(t)
	ctx := context.Background()
	writeFile(t, r, "a.txt", []byte("hi"))
	if err := r.Stage(ctx, []repo.StageOp{{Raw: "a.txt"}}, nil); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if _, err := r.Commit(ctx, repo.CommitArgs{Message: "first"}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	writeFile(t, r, "b.txt", []byte("bye"))
	if err := r.Stage(ctx, []repo.StageOp{{Raw: "b.txt"}}, nil); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	second, err := r.Commit(ctx, repo.CommitArgs{Message: "second"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	writeFile(t, r, "c.txt", []byte("third"))
	if err := r.Stage(ctx, []repo.StageOp{{Raw: "c.txt"}}, nil); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	amended, err := r.Commit(ctx, repo.CommitArgs{Amend: true, Message: "second (amended)"})
	if err != nil {
		t.Fatalf("Commit (amend): %v", err)
	}

	entries, err := r.Log(ctx)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2 (amend replaces, doesn't append)", len(entries))
	}
	for _, e := range entries {
		if string(e.Digest) == string(second.Digest()) {
			t.Fatal("amended-away commit should not appear in history")
		}
	}
	if string(entries[0].Digest) != string(amended.Digest()) {
		t.Fatalf("entries[0].Digest = %s, want amended commit %s", entries[0].Digest, amended.Digest())
	}
}
