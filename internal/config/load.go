package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Loaded is a resolved configuration plus where it came from.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	// Exists is false when Path was missing and defaults were used.
	Exists bool
}

// Load reads the config at explicitPath, or the XDG default location when
// empty. A missing file is not an error.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: path, Exists: true}
	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		loaded.Exists = false
		content = nil
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	}

	loaded.Config, loaded.Warnings, err = Parse(string(content), Default())
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	if !loaded.Exists {
		loaded.Warnings = append([]Warning{{
			Message: fmt.Sprintf("config file %q not found; using defaults", path),
		}}, loaded.Warnings...)
	}
	return loaded, nil
}
