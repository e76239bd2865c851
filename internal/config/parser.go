package config

import (
	"errors"
	"strings"
)

// Parse reads JSONC configuration content and overlays it onto base.
func Parse(content string, base Config) (Config, []Warning, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "//") && !strings.HasPrefix(trimmed, "/*") {
		return Config{}, nil, errors.New("config must be a JSONC object")
	}
	return parseJSONC(content, base)
}
