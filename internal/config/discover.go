package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPath is the per-user config file, under $XDG_CONFIG_HOME when set.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./pdbmovie.toml"
	}
	return filepath.Join(dir, "pdbmovie", "config.toml")
}

// searchPaths lists the files Discover tries after $PDBMOVIE_CONFIG.
func searchPaths() []string {
	return []string{"./pdbmovie.toml", DefaultPath(), "/etc/pdbmovie/config.toml"}
}

// Discover finds the config file using the standard search order.
// Search order:
//  1. PDBMOVIE_CONFIG environment variable
//  2. ./pdbmovie.toml (current directory)
//  3. $XDG_CONFIG_HOME/pdbmovie/config.toml
//  4. /etc/pdbmovie/config.toml
//
// It returns "" without error when no file exists; the tool runs on defaults.
func Discover() (string, error) {
	if envPath := os.Getenv("PDBMOVIE_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("PDBMOVIE_CONFIG=%s: %w", envPath, err)
		}
		return envPath, nil
	}

	for _, p := range searchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// Resolve loads the config at explicit if set, otherwise the discovered file,
// otherwise the defaults. It returns the path that was loaded ("" for defaults).
func Resolve(explicit string) (*Config, string, error) {
	path := explicit
	if path == "" {
		var err error
		if path, err = Discover(); err != nil {
			return nil, "", err
		}
	}
	if path == "" {
		return Default(), "", nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}
