// Package indicator reports transcript outcomes with desktop notifications
// and short audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/parla/internal/config"
)

const (
	defaultAppName        = "parla"
	defaultErrorText      = "Dictation failed"
	defaultErrorTimeoutMS = 4000

	notifyTimeout = time.Second
	cueTimeout    = 4 * time.Second
)

// Notifier raises notifications and cues according to config.IndicatorConfig.
type Notifier struct {
	cfg    config.IndicatorConfig
	logger *slog.Logger

	soundMu sync.Mutex
}

// New creates a Notifier. A nil logger drops dispatch failures.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	return &Notifier{cfg: cfg, logger: logger}
}

// Enabled reports whether any notification or cue is configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.Enable || n.cfg.SoundEnable
}

// CueComplete plays the successful-commit cue.
func (n *Notifier) CueComplete(ctx context.Context) {
	n.playCue(ctx, cueComplete)
}

// ShowError plays the error cue and shows text as a desktop notification.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	n.playCue(ctx, cueError)
	if !n.cfg.Enable {
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		text = defaultErrorText
	}
	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = defaultAppName
	}
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = defaultErrorTimeoutMS
	}

	notifyCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	id, err := desktopNotify(notifyCtx, notification{
		appName:   appName,
		summary:   text,
		timeoutMS: timeout,
	})
	if err != nil {
		n.log("desktop notification failed", err)
		return
	}
	if n.logger != nil {
		n.logger.Debug("desktop notification sent", "id", id)
	}
}

// playCue blocks until the cue finishes so a short-lived process does not
// exit mid-playback.
func (n *Notifier) playCue(ctx context.Context, kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}

	n.soundMu.Lock()
	defer n.soundMu.Unlock()

	cueCtx, cancel := context.WithTimeout(ctx, cueTimeout)
	defer cancel()
	if err := emitCue(cueCtx, kind, n.cfg); err != nil {
		n.log("audio cue failed", err)
	}
}

func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
