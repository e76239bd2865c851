// Package app wires configuration, logging, storage, and the processing
// pipeline behind the parla command tree.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rbright/parla/internal/asr"
	"github.com/rbright/parla/internal/audio"
	"github.com/rbright/parla/internal/cli"
	"github.com/rbright/parla/internal/config"
	"github.com/rbright/parla/internal/logging"
	"github.com/rbright/parla/internal/store"
)

// errChecksFailed is returned when doctor reports a failing check.
var errChecksFailed = errors.New("one or more doctor checks failed")

// Runner executes one CLI invocation. The zero value uses the live process
// streams and environment.
type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	ListDevices func(context.Context) ([]audio.Device, error)
	ProbeASR    func(context.Context, asr.ProbeConfig) (asr.ProbeResult, error)
	Getenv      func(string) string

	loaded     config.Loaded
	logger     *slog.Logger
	logRuntime logging.Runtime
	store      *store.Store
	storeErr   error
}

// Execute runs args and returns the process exit code: 0 on success, 1 on
// runtime failure, 2 on invalid usage.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := &Runner{Stdin: os.Stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute runs args against r.
func (r *Runner) Execute(ctx context.Context, args []string) int {
	if r.Stdout == nil {
		r.Stdout = os.Stdout
	}
	if r.Stderr == nil {
		r.Stderr = os.Stderr
	}
	if r.Getenv == nil {
		r.Getenv = os.Getenv
	}
	r.store, r.storeErr, r.logRuntime = nil, nil, logging.Runtime{}
	defer r.close()

	root := cli.NewRootCmd(r)
	root.SetIn(r.Stdin)
	root.SetOut(r.Stdout)
	root.SetErr(r.Stderr)
	root.SetArgs(args)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}

	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	if cli.IsUsage(err) {
		fmt.Fprintf(r.Stderr, "\n%s", cmd.UsageString())
		return 2
	}
	if r.logger != nil {
		r.logger.Error("command failed", "command", cmd.CommandPath(), "error", err.Error())
	}
	return 1
}

// Configure loads config and opens the log sink. The database is opened on
// first use.
func (r *Runner) Configure(_ context.Context, configPath string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	r.loaded = loaded

	r.logger = r.Logger
	if r.logger == nil {
		logRuntime, err := logging.New(loaded.Config.LogLevel)
		if err != nil {
			return fmt.Errorf("setup logging: %w", err)
		}
		r.logRuntime = logRuntime
		r.logger = logRuntime.Logger
	}

	for _, w := range loaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		r.logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	r.logger.Debug("config loaded", "config", loaded.Path, "exists", loaded.Exists, "log", r.logRuntime.Path)
	return nil
}

// openStore returns the dictionary database, opening it once per run.
func (r *Runner) openStore(ctx context.Context) (*store.Store, error) {
	if r.store != nil || r.storeErr != nil {
		return r.store, r.storeErr
	}

	path, err := config.DatabasePath(r.loaded.Config)
	if err != nil {
		r.storeErr = fmt.Errorf("resolve database path: %w", err)
		return nil, r.storeErr
	}

	s, err := store.Open(ctx, path, store.WithHistoryLimit(r.loaded.Config.History.Limit))
	if err != nil {
		r.storeErr = err
		return nil, err
	}
	r.store = s
	r.logger.Debug("database opened", "path", s.Path())
	return s, nil
}

func (r *Runner) close() {
	if r.store != nil {
		if err := r.store.Close(); err != nil && r.logger != nil {
			r.logger.Warn("close database failed", "error", err.Error())
		}
		r.store = nil
	}
	_ = r.logRuntime.Close()
}
