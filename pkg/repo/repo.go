// Package repo assembles the object store, fingerprint cache, and
// persisted state into the repository-level operations: staging,
// committing, and walking history.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/attaca/attaca/internal/fsstore"
	"github.com/attaca/attaca/pkg/fingerprint"
	"github.com/attaca/attaca/pkg/objstore"
)

// MetaDirName is the directory name holding repository state, config, and
// the default object store, relative to the repository root.
const MetaDirName = ".attaca"

// Repository is an opened repository: the object store, the fingerprint
// cache, repository-local config, and the persisted { head, candidate }
// state. Stage and Commit serialize themselves against stateMu so
// concurrent calls on the same Repository don't race on State.
type Repository struct {
	RootDir string
	MetaDir string

	Store  objstore.Store
	Cache  *fingerprint.Cache
	Config Config
	Logger *zap.Logger

	stateMu sync.Mutex
}

// Init creates a fresh repository rooted at dir, failing if MetaDirName
// already exists there.
func Init(dir string) (*Repository, error) {
	metaDir := filepath.Join(dir, MetaDirName)
	if _, err := os.Stat(metaDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", metaDir)
	}
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return nil, fmt.Errorf("init: mkdir %s: %w", metaDir, err)
	}

	store, err := fsstore.Open(filepath.Join(metaDir, "objects"))
	if err != nil {
		return nil, fmt.Errorf("init: open store: %w", err)
	}

	cfg := defaultConfig()
	if err := WriteConfig(metaDir, cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	return &Repository{
		RootDir: dir,
		MetaDir: metaDir,
		Store:   store,
		Cache:   fingerprint.New(),
		Config:  cfg,
		Logger:  zap.NewNop(),
	}, nil
}

// Open opens an existing repository rooted at dir.
func Open(dir string) (*Repository, error) {
	metaDir := filepath.Join(dir, MetaDirName)
	info, err := os.Stat(metaDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("open: not a repository: %s", metaDir)
	}

	store, err := fsstore.Open(filepath.Join(metaDir, "objects"))
	if err != nil {
		return nil, fmt.Errorf("open: open store: %w", err)
	}

	cfg, err := ReadConfig(metaDir)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	return &Repository{
		RootDir: dir,
		MetaDir: metaDir,
		Store:   store,
		Cache:   fingerprint.New(),
		Config:  cfg,
		Logger:  zap.NewNop(),
	}, nil
}

// SetLogger installs l as the repository's logger, replacing the no-op
// default. A nil l restores the no-op logger.
func (r *Repository) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	r.Logger = l
}

// SetConfig persists cfg to disk and installs it as the repository's
// active configuration.
func (r *Repository) SetConfig(cfg Config) error {
	if err := WriteConfig(r.MetaDir, cfg); err != nil {
		return fmt.Errorf("set config: %w", err)
	}
	r.Config = cfg
	return nil
}

// State returns the repository's current persisted { head, candidate }
// pair.
func (r *Repository) State() (State, error) {
	return r.loadState()
}

// loadState reads the repository's current State from disk.
func (r *Repository) loadState() (State, error) {
	return LoadState(r.MetaDir)
}

// saveState atomically persists s.
func (r *Repository) saveState(s State) error {
	return SaveState(r.MetaDir, s)
}
