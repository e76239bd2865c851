package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}

	if len(cfg.Clipboard.Argv) == 0 {
		return nil, errors.New("clipboard_cmd must not be empty")
	}
	if cfg.Paste.Enable && len(cfg.Paste.Cmd.Argv) == 0 {
		return nil, errors.New("paste.cmd must not be empty when paste.enable=true")
	}
	if cfg.Paste.Cmd.IsBuiltin() {
		return nil, errors.New("paste.cmd cannot use the builtin backend")
	}

	if cfg.History.Limit < 0 {
		return nil, errors.New("history.limit must be >= 0")
	}
	if cfg.History.Enable && cfg.History.Limit == 0 {
		warnings = append(warnings, Warning{Message: "history.limit is 0; history grows without bound"})
	}

	if cfg.ASR.TimeoutMS <= 0 {
		return nil, errors.New("asr.timeout_ms must be > 0")
	}
	if grpc := strings.TrimSpace(cfg.ASR.GRPC); grpc != "" {
		if _, _, err := net.SplitHostPort(grpc); err != nil {
			return nil, fmt.Errorf("asr.grpc must be host:port: %w", err)
		}
	}

	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, errors.New("indicator.error_timeout_ms must be >= 0")
	}
	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		warnings = append(warnings, Warning{Message: "indicator.desktop_app_name is empty; notifications use \"parla\""})
	}

	enhancementWarnings, err := validateEnhancement(cfg.Enhancement)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, enhancementWarnings...)

	return warnings, nil
}

func validateEnhancement(cfg EnhancementConfig) ([]Warning, error) {
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return nil, errors.New("enhancement.temperature must be between 0 and 2")
	}
	if !cfg.Enable {
		return nil, nil
	}

	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("enhancement.model must not be empty when enhancement.enable=true")
	}
	if cfg.TimeoutMS <= 0 {
		return nil, errors.New("enhancement.timeout_ms must be > 0")
	}

	endpoint, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || endpoint.Host == "" {
		return nil, fmt.Errorf("enhancement.base_url %q is not an absolute URL", cfg.BaseURL)
	}

	var warnings []Warning
	switch endpoint.Scheme {
	case "https":
	case "http":
		if !isLoopbackHost(endpoint.Hostname()) {
			warnings = append(warnings, Warning{
				Message: fmt.Sprintf("enhancement.base_url %q is not TLS; transcripts are sent unencrypted", cfg.BaseURL),
			})
		}
	default:
		return nil, fmt.Errorf("enhancement.base_url scheme must be http or https, got %q", endpoint.Scheme)
	}

	if strings.TrimSpace(cfg.APIKeyEnv) == "" {
		warnings = append(warnings, Warning{Message: "enhancement.api_key_env is empty; requests are sent without credentials"})
	}
	return warnings, nil
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
