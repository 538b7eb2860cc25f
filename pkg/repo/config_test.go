package repo_test

import (
	"testing"

	"github.com/attaca/attaca/pkg/repo"
)

func TestInit_PersistsDefaultConfig(t *testing.T) {
	r := initRepo(t)
	if !r.Config.FollowSymlinks {
		t.Fatal("default config should follow symlinks")
	}

	reopened, err := repo.Open(r.RootDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !reopened.Config.FollowSymlinks {
		t.Fatal("reopened repository should load the persisted default config")
	}
}

func TestSetConfig_PersistsAcrossReopen(t *testing.T) {
	r := initRepo(t)
	cfg := repo.Config{AuthorName: "Ada Lovelace", AuthorMbox: "ada@example.com", FollowSymlinks: false}
	if err := r.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	reopened, err := repo.Open(r.RootDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reopened.Config != cfg {
		t.Fatalf("reopened config = %+v, want %+v", reopened.Config, cfg)
	}
}
