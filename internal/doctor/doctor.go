// Package doctor runs readiness diagnostics for config, commands, the
// dictionary database, audio input, and the ASR endpoint.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/parla/internal/asr"
	"github.com/rbright/parla/internal/audio"
	"github.com/rbright/parla/internal/config"
	"github.com/rbright/parla/internal/dictionary"
	"github.com/rbright/parla/internal/output"
)

const audioTimeout = 3 * time.Second

// Check is one doctor assertion result. Warn marks a passing check that
// still deserves attention.
type Check struct {
	Name    string
	Pass    bool
	Warn    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		switch {
		case !check.Pass:
			status = "FAIL"
		case check.Warn:
			status = "WARN"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Dictionary is the slice of the store doctor inspects.
type Dictionary interface {
	Ping(ctx context.Context) error
	Snapshot(ctx context.Context) (dictionary.Snapshot, error)
}

// Deps carries the collaborators Run talks to. Nil functions fall back to
// the live implementations.
type Deps struct {
	Dictionary Dictionary
	// DictionaryErr is the error from opening the database, if any.
	DictionaryErr error

	ListDevices func(context.Context) ([]audio.Device, error)
	ProbeASR    func(context.Context, asr.ProbeConfig) (asr.ProbeResult, error)
	Getenv      func(string) string
	LookPath    func(string) (string, error)
}

func (d Deps) withDefaults() Deps {
	if d.ListDevices == nil {
		d.ListDevices = audio.ListDevices
	}
	if d.ProbeASR == nil {
		d.ProbeASR = asr.Probe
	}
	if d.Getenv == nil {
		d.Getenv = os.Getenv
	}
	if d.LookPath == nil {
		d.LookPath = exec.LookPath
	}
	return d
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded, deps Deps) Report {
	deps = deps.withDefaults()
	cfg := loaded.Config

	checks := []Check{checkConfig(loaded)}
	checks = append(checks, checkClipboard(cfg.Clipboard, deps.LookPath))
	if cfg.Paste.Enable {
		checks = append(checks, checkCommand(cfg.Paste.Cmd.Argv, "paste.cmd", deps.LookPath))
	}
	if cfg.Dictionary.Enable {
		checks = append(checks, checkDictionary(ctx, deps)...)
	}
	if cfg.Indicator.Enable {
		checks = append(checks, checkCommand([]string{"busctl"}, "indicator.desktop", deps.LookPath))
	}
	if cfg.Indicator.SoundEnable {
		checks = append(checks, checkSoundCues(cfg.Indicator, deps.LookPath))
	}

	var audioCheck, asrCheck Check
	var g errgroup.Group
	g.Go(func() error {
		audioCheck = checkAudioSelection(ctx, cfg.Audio, deps.ListDevices)
		return nil
	})
	g.Go(func() error {
		asrCheck = checkASR(ctx, cfg.ASR, deps.ProbeASR)
		return nil
	})
	_ = g.Wait()
	checks = append(checks, audioCheck, asrCheck)

	if cfg.Enhancement.Enable {
		checks = append(checks, checkEnhancement(cfg.Enhancement, deps.Getenv))
	}

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if len(loaded.Warnings) == 0 {
		return Check{Name: "config", Pass: true, Message: message}
	}
	parts := make([]string, 0, len(loaded.Warnings))
	for _, warning := range loaded.Warnings {
		parts = append(parts, warning.Message)
	}
	return Check{Name: "config", Pass: true, Warn: true, Message: message + " (" + strings.Join(parts, "; ") + ")"}
}

func checkClipboard(cmd config.CommandConfig, lookPath func(string) (string, error)) Check {
	if !cmd.IsBuiltin() {
		return checkCommand(cmd.Argv, "clipboard_cmd", lookPath)
	}
	if output.BuiltinAvailable() {
		return Check{Name: "clipboard_cmd", Pass: true, Message: "builtin clipboard backend available"}
	}
	return Check{Name: "clipboard_cmd", Pass: false, Message: "builtin clipboard backend found no clipboard utility"}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string, lookPath func(string) (string, error)) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	path, err := lookPath(argv[0])
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", argv[0])}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("found at %s", path)}
}

// checkSoundCues warns when cue files are configured but pw-play is missing;
// playback then falls back to synthesized tones.
func checkSoundCues(cfg config.IndicatorConfig, lookPath func(string) (string, error)) Check {
	if cfg.SoundCompleteFile == "" && cfg.SoundErrorFile == "" {
		return Check{Name: "indicator.sound", Pass: true, Message: "synthesized cues over PulseAudio"}
	}
	path, err := lookPath("pw-play")
	if err != nil {
		return Check{Name: "indicator.sound", Pass: true, Warn: true, Message: "pw-play not found in PATH; using synthesized cues"}
	}
	return Check{Name: "indicator.sound", Pass: true, Message: fmt.Sprintf("cue files played with %s", path)}
}

func checkDictionary(ctx context.Context, deps Deps) []Check {
	if deps.DictionaryErr != nil {
		return []Check{{Name: "dictionary.db", Pass: false, Message: deps.DictionaryErr.Error()}}
	}
	if deps.Dictionary == nil {
		return []Check{{Name: "dictionary.db", Pass: false, Message: "database is not open"}}
	}
	if err := deps.Dictionary.Ping(ctx); err != nil {
		return []Check{{Name: "dictionary.db", Pass: false, Message: fmt.Sprintf("ping failed: %v", err)}}
	}

	snapshot, err := deps.Dictionary.Snapshot(ctx)
	if err != nil {
		return []Check{{Name: "dictionary.db", Pass: false, Message: fmt.Sprintf("read dictionary: %v", err)}}
	}
	checks := []Check{{
		Name:    "dictionary.db",
		Pass:    true,
		Message: fmt.Sprintf("%d rules, %d vocabulary words", len(snapshot.Rules), len(snapshot.Vocabulary)),
	}}

	findings := dictionary.Lint(snapshot)
	if len(findings) == 0 {
		return append(checks, Check{Name: "dictionary.lint", Pass: true, Message: "no issues"})
	}
	lines := make([]string, 0, len(findings))
	for _, finding := range findings {
		lines = append(lines, finding.String())
	}
	return append(checks, Check{
		Name:    "dictionary.lint",
		Pass:    true,
		Warn:    true,
		Message: fmt.Sprintf("%d finding(s)\n  %s", len(findings), strings.Join(lines, "\n  ")),
	})
}

// checkAudioSelection resolves the configured capture source against the
// live device list.
func checkAudioSelection(ctx context.Context, cfg config.AudioConfig, list func(context.Context) ([]audio.Device, error)) Check {
	ctx, cancel := context.WithTimeout(ctx, audioTimeout)
	defer cancel()

	devices, err := list(ctx)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	selection, err := audio.Choose(devices, cfg.Input, cfg.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		return Check{Name: "audio.device", Pass: true, Warn: true, Message: message + " (" + selection.Warning + ")"}
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func checkASR(ctx context.Context, cfg config.ASRConfig, probe func(context.Context, asr.ProbeConfig) (asr.ProbeResult, error)) Check {
	result, err := probe(ctx, asr.ProbeConfig{
		Endpoint: cfg.GRPC,
		Service:  cfg.HealthService,
		Timeout:  time.Duration(cfg.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return Check{Name: "asr.health", Pass: false, Message: err.Error()}
	}
	if result.Status == "" {
		return Check{Name: "asr.health", Pass: true, Message: fmt.Sprintf("reachable at %s (no health service)", result.Endpoint)}
	}
	return Check{Name: "asr.health", Pass: true, Message: fmt.Sprintf("%s at %s", strings.ToLower(result.Status), result.Endpoint)}
}

func checkEnhancement(cfg config.EnhancementConfig, getenv func(string) string) Check {
	name := strings.TrimSpace(cfg.APIKeyEnv)
	target := fmt.Sprintf("model %s at %s", cfg.Model, cfg.BaseURL)
	if name == "" {
		return Check{Name: "enhancement", Pass: true, Warn: true, Message: target + " (no api key configured)"}
	}
	if strings.TrimSpace(getenv(name)) == "" {
		return Check{Name: "enhancement", Pass: false, Message: fmt.Sprintf("%s is empty; %s needs an api key", name, target)}
	}
	return Check{Name: "enhancement", Pass: true, Message: target}
}
