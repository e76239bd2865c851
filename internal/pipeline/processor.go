// Package pipeline runs one raw transcript through normalization, the custom
// dictionary, optional AI enhancement, output commit, and history.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rbright/parla/internal/dictionary"
	"github.com/rbright/parla/internal/enhance"
	"github.com/rbright/parla/internal/store"
	"github.com/rbright/parla/internal/transcript"
)

// DictionarySource yields the active rules and vocabulary for one call.
type DictionarySource interface {
	Snapshot(ctx context.Context) (dictionary.Snapshot, error)
}

// Enhancer rewrites text through an external model.
type Enhancer interface {
	Enhance(ctx context.Context, req enhance.Request) (string, error)
}

// Committer delivers the final text.
type Committer interface {
	Commit(ctx context.Context, text string) error
}

// HistoryRecorder persists processed transcripts.
type HistoryRecorder interface {
	RecordHistory(ctx context.Context, entry store.HistoryEntry) (int64, error)
}

// Notifier reports commit outcomes to the user.
type Notifier interface {
	CueComplete(ctx context.Context)
	ShowError(ctx context.Context, text string)
}

// Result describes every stage of one processed transcript.
type Result struct {
	Raw            string
	Normalized     string
	DictionaryText string
	Final          string
	Applied        []dictionary.ReplacementRule
	Enhanced       bool
	EnhancementErr error
	Committed      bool
	HistoryID      int64
}

// Processor is safe for concurrent use when its collaborators are.
type Processor struct {
	source     DictionarySource
	dictionary bool
	transcript transcript.Options
	enhancer   Enhancer
	committer  Committer
	history    HistoryRecorder
	notifier   Notifier
	logger     *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithTranscriptOptions sets normalization behavior.
func WithTranscriptOptions(opts transcript.Options) Option {
	return func(p *Processor) { p.transcript = opts }
}

// WithoutDictionary skips the replacement stage.
func WithoutDictionary() Option {
	return func(p *Processor) { p.dictionary = false }
}

// WithEnhancer enables the AI enhancement stage.
func WithEnhancer(e Enhancer) Option {
	return func(p *Processor) { p.enhancer = e }
}

// WithCommitter enables clipboard/paste delivery.
func WithCommitter(c Committer) Option {
	return func(p *Processor) { p.committer = c }
}

// WithHistory records every processed transcript.
func WithHistory(h HistoryRecorder) Option {
	return func(p *Processor) { p.history = h }
}

// WithNotifier plays a cue after commit and surfaces enhancement or commit
// failures.
func WithNotifier(n Notifier) Option {
	return func(p *Processor) { p.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// New constructs a Processor reading rules from source.
func New(source DictionarySource, opts ...Option) *Processor {
	p := &Processor{
		source:     source,
		dictionary: true,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs raw through every configured stage. Enhancement and history
// failures degrade gracefully; a snapshot or commit failure is returned.
func (p *Processor) Process(ctx context.Context, raw string) (Result, error) {
	result := Result{Raw: raw}

	result.Normalized = transcript.Normalize(raw, p.transcript)
	if result.Normalized == "" {
		p.logger.Debug("empty transcript; nothing to process")
		return result, nil
	}

	var snapshot dictionary.Snapshot
	if p.source != nil && (p.dictionary || p.enhancer != nil) {
		var err error
		snapshot, err = p.source.Snapshot(ctx)
		if err != nil {
			return result, fmt.Errorf("load dictionary: %w", err)
		}
	}

	text := result.Normalized
	if p.dictionary {
		replaced := dictionary.Apply(text, snapshot.Rules)
		text = replaced.Text
		result.Applied = replaced.Applied
	}
	result.DictionaryText = text

	if p.enhancer != nil {
		enhanced, err := p.enhancer.Enhance(ctx, enhance.Request{
			Text:       text,
			Applied:    result.Applied,
			Vocabulary: snapshot.Words(),
		})
		switch {
		case err != nil:
			result.EnhancementErr = err
			p.logger.Warn("enhancement failed; using dictionary output", "error", err.Error())
			p.showError(ctx, "Enhancement failed; kept dictionary text")
		case strings.TrimSpace(enhanced) != "":
			text = enhanced
			result.Enhanced = text != result.DictionaryText
		}
	}

	result.Final = transcript.Finish(text, p.transcript)

	if p.committer != nil {
		if err := p.committer.Commit(ctx, result.Final); err != nil {
			p.showError(ctx, "Transcript not copied: "+err.Error())
			return result, fmt.Errorf("commit transcript: %w", err)
		}
		result.Committed = true
		if p.notifier != nil {
			p.notifier.CueComplete(ctx)
		}
	}

	p.logger.Info("transcript processed",
		"chars", len(result.Final),
		"rules_applied", len(result.Applied),
		"enhanced", result.Enhanced,
		"committed", result.Committed,
	)

	if p.history != nil {
		id, err := p.history.RecordHistory(ctx, historyEntry(result))
		if err != nil {
			p.logger.Warn("record history failed", "error", err.Error())
		} else {
			result.HistoryID = id
		}
	}

	return result, nil
}

func (p *Processor) showError(ctx context.Context, text string) {
	if p.notifier != nil {
		p.notifier.ShowError(ctx, text)
	}
}

func historyEntry(result Result) store.HistoryEntry {
	ids := make([]uuid.UUID, 0, len(result.Applied))
	for _, rule := range result.Applied {
		ids = append(ids, rule.ID)
	}

	entry := store.HistoryEntry{
		RawText:        result.Raw,
		DictionaryText: result.DictionaryText,
		FinalText:      result.Final,
		AppliedRules:   ids,
		Enhanced:       result.Enhanced,
	}
	if result.EnhancementErr != nil {
		entry.EnhancementError = result.EnhancementErr.Error()
	}
	return entry
}
