// Package output delivers finished transcripts to the clipboard and an
// optional paste command.
package output

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atotto/clipboard"

	"github.com/rbright/parla/internal/config"
)

const (
	clipboardTimeout = 2 * time.Second
	pasteTimeout     = 2 * time.Second
)

// Committer applies transcript output side effects (clipboard + optional paste).
type Committer struct {
	writeClipboard func(ctx context.Context, text string) error
	paste          []string
	logger         *slog.Logger
}

// NewCommitter constructs a transcript committer from runtime config.
func NewCommitter(cfg config.Config, logger *slog.Logger) *Committer {
	c := &Committer{logger: logger}

	if cfg.Clipboard.IsBuiltin() {
		c.writeClipboard = writeBuiltinClipboard
	} else {
		argv := append([]string(nil), cfg.Clipboard.Argv...)
		c.writeClipboard = func(ctx context.Context, text string) error {
			return runCommandWithInput(ctx, argv, text)
		}
	}

	if cfg.Paste.Enable {
		c.paste = append([]string(nil), cfg.Paste.Cmd.Argv...)
	}
	return c
}

// Commit writes text to the clipboard and then dispatches paste when
// configured. Paste failures are logged; the clipboard stays set.
func (c *Committer) Commit(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	clipboardCtx, clipboardCancel := context.WithTimeout(ctx, clipboardTimeout)
	defer clipboardCancel()
	if err := c.writeClipboard(clipboardCtx, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}

	if len(c.paste) == 0 {
		return nil
	}

	pasteCtx, pasteCancel := context.WithTimeout(ctx, pasteTimeout)
	defer pasteCancel()
	if err := runCommandWithInput(pasteCtx, c.paste, ""); err != nil {
		c.logPasteFailure(err)
	}
	return nil
}

// BuiltinAvailable reports whether the builtin backend found a clipboard utility.
func BuiltinAvailable() bool {
	return !clipboard.Unsupported
}

func writeBuiltinClipboard(ctx context.Context, text string) error {
	if clipboard.Unsupported {
		return errors.New("builtin clipboard: no clipboard utility found (install wl-clipboard, xclip, or xsel)")
	}
	return writeUntilDone(ctx, text, clipboard.WriteAll)
}

// writeUntilDone runs write unless ctx has already ended and stops waiting
// once ctx ends. A write that has started cannot be interrupted: it may still
// set the clipboard after writeUntilDone has returned ctx.Err().
func writeUntilDone(ctx context.Context, text string, write func(string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- write(text) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Committer) logPasteFailure(err error) {
	if c.logger == nil || err == nil {
		return
	}
	c.logger.Error("paste dispatch failed; clipboard remains set", "error", err.Error())
}
