package repo_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/attaca/attaca/pkg/repo"
)

func initRepo(t *testing.T) *repo.Repository {
	t.Helper()
	dir := t.TempDir()
	r, err := repo.Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

func writeFile(t *testing.T, r *repo.Repository, rel string, content []byte) {
	t.Helper()
	abs := filepath.Join(r.RootDir, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(abs, content, 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", rel, err)
	}
}
