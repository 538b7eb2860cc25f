package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds repository-local settings consulted by the core: the
// default author identity attached to commits that don't specify one, and
// whether directory staging treats symlinks as files (hashing their target
// string) or fails on them.
type Config struct {
	AuthorName string `toml:"author_name"`
	AuthorMbox string `toml:"author_mbox"`

	// FollowSymlinks treats symlinks encountered during a directory stage
	// as regular files, hashing the bytes of their target string. It
	// defaults to true; set to false to make staging a symlink fail.
	FollowSymlinks bool `toml:"follow_symlinks"`
}

// defaultConfig returns the configuration used when no config file exists.
func defaultConfig() Config {
	return Config{FollowSymlinks: true}
}

func configPath(metaDir string) string {
	return filepath.Join(metaDir, "config.toml")
}

// ReadConfig reads config.toml from metaDir. A missing file yields
// defaultConfig, not an error.
func ReadConfig(metaDir string) (Config, error) {
	data, err := os.ReadFile(configPath(metaDir))
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultConfig()
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("read config: decode: %w", err)
	}
	return cfg, nil
}

// WriteConfig atomically writes cfg to config.toml under metaDir.
func WriteConfig(metaDir string, cfg Config) error {
	tmp, err := os.CreateTemp(metaDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, configPath(metaDir)); err != nil {
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}
