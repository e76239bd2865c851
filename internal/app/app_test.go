package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/parla/internal/asr"
	"github.com/rbright/parla/internal/audio"
)

type runnerEnv struct {
	dir        string
	configPath string
	clipPath   string
}

func setupRunnerEnv(t *testing.T, extra string) runnerEnv {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))

	clipPath := filepath.Join(dir, "clipboard.txt")
	clipScript := filepath.Join(dir, "fake-clip")
	require.NoError(t, os.WriteFile(clipScript, []byte("#!/bin/sh\ncat > "+clipPath+"\n"), 0o755))

	configPath := writeConfig(t, dir, "config.jsonc", filepath.Join(dir, "dictionary.db"), clipScript, extra)
	return runnerEnv{dir: dir, configPath: configPath, clipPath: clipPath}
}

func writeConfig(t *testing.T, dir, name, dbPath, clipboard, extra string) string {
	t.Helper()

	content := fmt.Sprintf(`{
  // test config
  "dictionary": {"db_path": %q},
  "clipboard_cmd": %q,
  "transcript": {"trailing_space": false},
  %s
}
`, dbPath, clipboard, extra)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, r *Runner, args ...string) (int, string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	r.Stdout = &stdout
	r.Stderr = &stderr
	code := r.Execute(context.Background(), args)
	return code, stdout.String(), stderr.String()
}

func addedID(t *testing.T, stdout string) string {
	t.Helper()
	fields := strings.Fields(stdout)
	require.GreaterOrEqual(t, len(fields), 2, stdout)
	require.Equal(t, "added", fields[0])
	return strings.TrimSuffix(fields[1], ":")
}

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "parla")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestExecuteUnknownSubcommandIsUsageError(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"rules", "bogus"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "parla rules")
}

func TestRunnerInvalidConfigFails(t *testing.T) {
	env := setupRunnerEnv(t, "")
	require.NoError(t, os.WriteFile(env.configPath, []byte(`{"log_level": "loud"}`), 0o600))

	code, _, stderr := run(t, &Runner{}, "--config", env.configPath, "rules", "list")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "error:")
	require.Contains(t, stderr, "log_level")
}

func TestRunnerRulesLifecycle(t *testing.T) {
	env := setupRunnerEnv(t, "")
	r := &Runner{}

	code, stdout, stderr := run(t, r, "--config", env.configPath, "rules", "list")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "no rules\n", stdout)

	code, stdout, stderr = run(t, r, "--config", env.configPath, "rules", "add", "Machine Learning", "ml", "machine learning")
	require.Equal(t, 0, code, stderr)
	mlID := addedID(t, stdout)

	code, stdout, _ = run(t, r, "--config", env.configPath, "rules", "add", "NYC", "new york")
	require.Equal(t, 0, code)
	nycID := addedID(t, stdout)

	code, stdout, _ = run(t, r, "--config", env.configPath, "rules", "list")
	require.Equal(t, 0, code)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[1], mlID))
	require.Contains(t, lines[1], `"Machine Learning"`)
	require.True(t, strings.HasPrefix(lines[2], nycID))

	code, stdout, _ = run(t, r, "--config", env.configPath, "rules", "move", nycID, "1")
	require.Equal(t, 0, code)
	lines = strings.Split(strings.TrimSpace(stdout), "\n")
	require.True(t, strings.HasPrefix(lines[1], nycID))

	code, stdout, _ = run(t, r, "--config", env.configPath, "rules", "edit", nycID, "--original", "new york", "--original", "big apple")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "new york, big apple -> NYC")

	code, stdout, stderr = run(t, r, "--config", env.configPath, "apply", "the big apple runs ml")
	require.Equal(t, 0, code)
	require.Equal(t, "the NYC runs Machine Learning\n", stdout)
	require.Contains(t, stderr, "applied "+nycID)
	require.Contains(t, stderr, "applied "+mlID)

	code, stdout, _ = run(t, r, "--config", env.configPath, "rules", "rm", mlID)
	require.Equal(t, 0, code)
	require.Equal(t, "removed "+mlID+"\n", stdout)

	code, _, stderr = run(t, r, "--config", env.configPath, "rules", "rm", mlID)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "not found")
}

func TestRunnerVocabulary(t *testing.T) {
	env := setupRunnerEnv(t, "")
	r := &Runner{}

	code, stdout, stderr := run(t, r, "--config", env.configPath, "vocab", "add", "Hyprland", "parla", "hyprland")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "added Hyprland\nadded parla\n", stdout)
	require.Contains(t, stderr, `"hyprland" is already in the vocabulary`)

	code, _, _ = run(t, r, "--config", env.configPath, "rules", "add", "Wayland", "whaling")
	require.Equal(t, 0, code)

	code, stdout, _ = run(t, r, "--config", env.configPath, "vocab", "hints")
	require.Equal(t, 0, code)
	require.Equal(t, "Hyprland\nparla\nWayland\n", stdout)

	code, stdout, _ = run(t, r, "--config", env.configPath, "vocab", "rm", "PARLA")
	require.Equal(t, 0, code)
	require.Equal(t, "removed PARLA\n", stdout)

	code, stdout, _ = run(t, r, "--config", env.configPath, "vocab", "list")
	require.Equal(t, 0, code)
	require.Equal(t, "Hyprland\n", stdout)

	code, _, _ = run(t, r, "--config", env.configPath, "vocab", "add", "two words")
	require.Equal(t, 1, code)
}

func TestRunnerProcessCommitsAndRecordsHistory(t *testing.T) {
	env := setupRunnerEnv(t, "")
	r := &Runner{}

	code, _, _ := run(t, r, "--config", env.configPath, "rules", "add", "Machine Learning", "ml")
	require.Equal(t, 0, code)

	code, stdout, stderr := run(t, r, "--config", env.configPath, "process", "i", "study  ml")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "I study Machine Learning\n", stdout)

	clip, err := os.ReadFile(env.clipPath)
	require.NoError(t, err)
	require.Equal(t, "I study Machine Learning", string(clip))

	code, stdout, _ = run(t, r, "--config", env.configPath, "history", "list")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "#1 ")
	require.Contains(t, stdout, "[rules=1] I study Machine Learning")

	code, stdout, _ = run(t, r, "--config", env.configPath, "history", "clear")
	require.Equal(t, 0, code)
	require.Equal(t, "cleared 1 history entries\n", stdout)
}

func TestRunnerProcessDryRunSkipsSideEffects(t *testing.T) {
	env := setupRunnerEnv(t, "")
	r := &Runner{Stdin: strings.NewReader("hello from stdin\n")}

	code, stdout, stderr := run(t, r, "--config", env.configPath, "process", "--dry-run")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "Hello from stdin\n", stdout)

	_, err := os.Stat(env.clipPath)
	require.True(t, os.IsNotExist(err))

	code, stdout, _ = run(t, &Runner{}, "--config", env.configPath, "history", "list")
	require.Equal(t, 0, code)
	require.Equal(t, "no history\n", stdout)
}

func TestRunnerProcessWithEnhancement(t *testing.T) {
	var authorization string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "I study Machine Learning."},
			}},
		})
	}))
	t.Cleanup(server.Close)

	env := setupRunnerEnv(t, fmt.Sprintf(`"enhancement": {"enable": true, "base_url": %q, "model": "test-model", "api_key_env": "PARLA_TEST_KEY"}`, server.URL+"/v1"))
	r := &Runner{Getenv: func(name string) string {
		if name == "PARLA_TEST_KEY" {
			return "sk-test"
		}
		return ""
	}}

	code, stdout, stderr := run(t, r, "--config", env.configPath, "process", "--no-commit", "i study machine learning")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "I study Machine Learning.\n", stdout)
	require.Equal(t, "Bearer sk-test", authorization)

	code, stdout, _ = run(t, r, "--config", env.configPath, "process", "--no-commit", "--no-enhance", "i study machine learning")
	require.Equal(t, 0, code)
	require.Equal(t, "I study machine learning\n", stdout)
}

func TestRunnerProcessIndicatorReportsFallbackAndCommit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	bin := t.TempDir()
	calls := filepath.Join(bin, "calls.log")
	for _, name := range []string{"busctl", "pw-play"} {
		script := "#!/bin/sh\necho \"" + name + " $*\" >> " + calls + "\necho 'u 9'\n"
		require.NoError(t, os.WriteFile(filepath.Join(bin, name), []byte(script), 0o755))
	}
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	cues := t.TempDir()
	doneCue := filepath.Join(cues, "done.wav")
	errorCue := filepath.Join(cues, "error.wav")
	require.NoError(t, os.WriteFile(doneCue, []byte("RIFF"), 0o600))
	require.NoError(t, os.WriteFile(errorCue, []byte("RIFF"), 0o600))

	env := setupRunnerEnv(t, fmt.Sprintf(`"enhancement": {"enable": true, "base_url": %q, "model": "test-model"},
  "indicator": {"enable": true, "sound_enable": true, "sound_complete_file": %q, "sound_error_file": %q}`,
		server.URL+"/v1", doneCue, errorCue))

	code, stdout, stderr := run(t, &Runner{}, "--config", env.configPath, "process", "hello there")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "Hello there\n", stdout)
	require.Contains(t, stderr, "enhancement failed")

	data, err := os.ReadFile(calls)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "pw-play --media-role Notification "+errorCue, lines[0])
	require.Contains(t, lines[1], "busctl --user call org.freedesktop.Notifications")
	require.Contains(t, lines[1], "Enhancement failed; kept dictionary text")
	require.Equal(t, "pw-play --media-role Notification "+doneCue, lines[2])

	clip, err := os.ReadFile(env.clipPath)
	require.NoError(t, err)
	require.Equal(t, "Hello there", string(clip))
}

func TestRunnerExportImportRoundTrip(t *testing.T) {
	env := setupRunnerEnv(t, "")
	r := &Runner{}

	for _, args := range [][]string{
		{"rules", "add", "NYC", "new york", "big apple"},
		{"rules", "add", "Machine Learning", "ml"},
		{"vocab", "add", "Hyprland"},
	} {
		code, _, stderr := run(t, r, append([]string{"--config", env.configPath}, args...)...)
		require.Equal(t, 0, code, stderr)
	}

	exportPath := filepath.Join(env.dir, "dictionary.yaml")
	code, stdout, stderr := run(t, r, "--config", env.configPath, "export", exportPath)
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "exported 2 rules and 1 words to "+exportPath+"\n", stdout)

	content, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	require.Contains(t, string(content), "replacement: NYC")

	code, stdout, _ = run(t, r, "--config", env.configPath, "export", "--format", "json")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, `"version": 1`)

	otherConfig := writeConfig(t, env.dir, "other.jsonc", filepath.Join(env.dir, "other.db"), "builtin", "")

	code, stdout, _ = run(t, r, "--config", otherConfig, "import", exportPath, "--strategy", "replace", "--dry-run")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "dry run: replace import: 2 rules added")

	code, stdout, _ = run(t, r, "--config", otherConfig, "rules", "list")
	require.Equal(t, 0, code)
	require.Equal(t, "no rules\n", stdout)

	code, stdout, stderr = run(t, r, "--config", otherConfig, "import", exportPath, "--strategy", "replace")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "replace import: 2 rules added, 0 skipped; 1 words added, 0 skipped\n", stdout)

	code, stdout, _ = run(t, r, "--config", otherConfig, "apply", "ml in the big apple")
	require.Equal(t, 0, code)
	require.Equal(t, "Machine Learning in the NYC\n", stdout)

	code, stdout, _ = run(t, r, "--config", otherConfig, "import", exportPath)
	require.Equal(t, 0, code)
	require.Equal(t, "additive import: 0 rules added, 2 skipped; 0 words added, 1 skipped\n", stdout)
}

func TestRunnerImportRejectsUnknownVersion(t *testing.T) {
	env := setupRunnerEnv(t, "")
	docPath := filepath.Join(env.dir, "future.json")
	require.NoError(t, os.WriteFile(docPath, []byte(`{"version": 99, "replacements": [], "vocabulary": []}`), 0o600))

	code, _, stderr := run(t, &Runner{}, "--config", env.configPath, "import", docPath)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "unsupported dictionary document version")
}

func TestRunnerDoctor(t *testing.T) {
	env := setupRunnerEnv(t, "")
	r := &Runner{
		ListDevices: func(context.Context) ([]audio.Device, error) {
			return []audio.Device{{ID: "alsa_input.mic", Available: true, Default: true}}, nil
		},
		ProbeASR: func(_ context.Context, cfg asr.ProbeConfig) (asr.ProbeResult, error) {
			return asr.ProbeResult{Endpoint: cfg.Endpoint, Status: "SERVING"}, nil
		},
	}

	code, stdout, stderr := run(t, r, "--config", env.configPath, "doctor")
	require.Equal(t, 0, code, stdout+stderr)
	require.Contains(t, stdout, "[OK] config: loaded")
	require.Contains(t, stdout, "[OK] dictionary.db: 0 rules, 0 vocabulary words")
	require.Contains(t, stdout, "[OK] asr.health: serving at 127.0.0.1:50051")

	r.ProbeASR = func(context.Context, asr.ProbeConfig) (asr.ProbeResult, error) {
		return asr.ProbeResult{}, errors.New("connection refused")
	}
	code, stdout, stderr = run(t, r, "--config", env.configPath, "doctor")
	require.Equal(t, 1, code)
	require.Contains(t, stdout, "[FAIL] asr.health: connection refused")
	require.Contains(t, stderr, "doctor checks failed")
}

func TestRunnerDevices(t *testing.T) {
	env := setupRunnerEnv(t, "")
	r := &Runner{ListDevices: func(context.Context) ([]audio.Device, error) {
		return []audio.Device{
			{ID: "alsa_input.mic", Description: "Built-in", State: "idle", Available: true, Default: true},
			{ID: "alsa_input.usb", Description: "USB", State: "suspended", Available: false, Muted: true},
		}, nil
	}}

	code, stdout, _ := run(t, r, "--config", env.configPath, "devices")
	require.Equal(t, 0, code)
	require.Equal(t,
		"* id=alsa_input.mic | description=\"Built-in\" | state=idle | available=yes | muted=no\n"+
			"  id=alsa_input.usb | description=\"USB\" | state=suspended | available=no | muted=yes\n",
		stdout)

	r.ListDevices = func(context.Context) ([]audio.Device, error) { return nil, nil }
	code, _, stderr := run(t, r, "--config", env.configPath, "devices")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "no audio devices found")
}

func TestRunnerWritesLogFile(t *testing.T) {
	env := setupRunnerEnv(t, `"log_level": "debug"`)

	code, _, _ := run(t, &Runner{}, "--config", env.configPath, "rules", "add", "NYC", "new york")
	require.Equal(t, 0, code)

	content, err := os.ReadFile(filepath.Join(env.dir, "state", "parla", "log.jsonl"))
	require.NoError(t, err)
	require.Contains(t, string(content), `"msg":"rule added"`)
}
