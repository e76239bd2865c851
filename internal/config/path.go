package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath applies CLI/XDG/home fallback rules for config.jsonc location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return ExpandHome(explicit)
	}
	return xdgPath("XDG_CONFIG_HOME", ".config", "config.jsonc")
}

// DatabasePath returns the configured dictionary database, falling back to
// $XDG_DATA_HOME/parla/dictionary.db.
func DatabasePath(cfg Config) (string, error) {
	if strings.TrimSpace(cfg.Dictionary.DBPath) != "" {
		return ExpandHome(cfg.Dictionary.DBPath)
	}
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"), "dictionary.db")
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for path expansion")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func xdgPath(envName, homeFallback, file string) (string, error) {
	if base := strings.TrimSpace(os.Getenv(envName)); base != "" {
		return filepath.Join(base, "parla", file), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for " + envName + " fallback")
	}
	return filepath.Join(home, homeFallback, "parla", file), nil
}
