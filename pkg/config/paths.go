package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultFileName is the config file looked up when none is given.
const DefaultFileName = "tidewave.yaml"

// ConfigDir returns the per-user config directory (~/.tidewave).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".tidewave"), nil
}

// DefaultPath returns the config file to load. An explicit path is returned
// as-is; otherwise ./tidewave.yaml wins over ~/.tidewave/tidewave.yaml. The
// second result reports whether the file was named explicitly.
func DefaultPath(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName, false
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(dir, DefaultFileName), false
}

// ResolvePath makes p absolute against the project root.
func (c *Config) ResolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectRoot, p)
}

func baseName(p string) string {
	b := filepath.Base(p)
	if b == "." || b == string(filepath.Separator) {
		return "app"
	}
	return b
}
