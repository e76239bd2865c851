package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rbright/parla/internal/audio"
	"github.com/rbright/parla/internal/cli"
	"github.com/rbright/parla/internal/dictionary"
	"github.com/rbright/parla/internal/doctor"
	"github.com/rbright/parla/internal/enhance"
	"github.com/rbright/parla/internal/exchange"
	"github.com/rbright/parla/internal/indicator"
	"github.com/rbright/parla/internal/output"
	"github.com/rbright/parla/internal/pipeline"
	"github.com/rbright/parla/internal/store"
	"github.com/rbright/parla/internal/transcript"
)

// Process runs the full pipeline and prints the final text.
func (r *Runner) Process(ctx context.Context, text string, opts cli.ProcessOptions) error {
	cfg := r.loaded.Config

	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(r.logger),
		pipeline.WithTranscriptOptions(transcript.Options{
			TrailingSpace:       cfg.Transcript.TrailingSpace,
			CapitalizeSentences: cfg.Transcript.CapitalizeSentences,
		}),
	}

	useEnhancer := cfg.Enhancement.Enable && !opts.NoEnhance
	useHistory := cfg.History.Enable && !opts.DryRun

	var source pipeline.DictionarySource
	if cfg.Dictionary.Enable || useEnhancer || useHistory {
		s, err := r.openStore(ctx)
		if err != nil {
			return err
		}
		source = s
		if useHistory {
			pipelineOpts = append(pipelineOpts, pipeline.WithHistory(s))
		}
	}
	if !cfg.Dictionary.Enable {
		pipelineOpts = append(pipelineOpts, pipeline.WithoutDictionary())
	}

	if useEnhancer {
		client, err := enhance.New(enhance.Config{
			BaseURL:     cfg.Enhancement.BaseURL,
			Model:       cfg.Enhancement.Model,
			APIKey:      r.Getenv(cfg.Enhancement.APIKeyEnv),
			Timeout:     time.Duration(cfg.Enhancement.TimeoutMS) * time.Millisecond,
			Temperature: cfg.Enhancement.Temperature,
			Prompt:      cfg.Enhancement.Prompt,
		})
		if err != nil {
			return err
		}
		pipelineOpts = append(pipelineOpts, pipeline.WithEnhancer(client))
	}

	if !opts.DryRun && !opts.NoCommit {
		pipelineOpts = append(pipelineOpts, pipeline.WithCommitter(output.NewCommitter(cfg, r.logger)))
	}
	if notifier := indicator.New(cfg.Indicator, r.logger); !opts.DryRun && notifier.Enabled() {
		pipelineOpts = append(pipelineOpts, pipeline.WithNotifier(notifier))
	}

	result, err := pipeline.New(source, pipelineOpts...).Process(ctx, text)
	if result.EnhancementErr != nil {
		fmt.Fprintf(r.Stderr, "warning: enhancement failed; kept dictionary output: %v\n", result.EnhancementErr)
	}
	if err != nil {
		return err
	}
	if result.Final != "" {
		fmt.Fprintln(r.Stdout, result.Final)
	}
	return nil
}

// Apply runs only the replacement engine over text.
func (r *Runner) Apply(ctx context.Context, text string) error {
	s, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	rules, err := s.Rules(ctx)
	if err != nil {
		return err
	}

	result := dictionary.Apply(text, rules)
	fmt.Fprintln(r.Stdout, result.Text)
	for _, rule := range result.Applied {
		fmt.Fprintf(r.Stderr, "applied %s: %s\n", shortID(rule.ID.String()), rule)
	}
	return nil
}

// ListRules prints rules in the order the engine consults them.
func (r *Runner) ListRules(ctx context.Context) error {
	s, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	rules, err := s.Rules(ctx)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Fprintln(r.Stdout, "no rules")
		return nil
	}

	w := tabwriter.NewWriter(r.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRIORITY\tORIGINALS\tREPLACEMENT")
	for _, rule := range rules {
		fmt.Fprintf(w, "%s\t%d\t%s\t%q\n", shortID(rule.ID.String()), rule.Priority, strings.Join(rule.Originals, ", "), rule.Replacement)
	}
	return w.Flush()
}

// AddRule creates a rule, appending it after every existing rule when no
// priority is given.
func (r *Runner) AddRule(ctx context.Context, replacement string, originals []string, priority *int) error {
	s, err := r.openStore(ctx)
	if err != nil {
		return err
	}

	var p int
	if priority != nil {
		p = *priority
	} else if p, err = s.NextPriority(ctx); err != nil {
		return err
	}

	rule, err := dictionary.NewRule(originals, replacement, p)
	if err != nil {
		return err
	}
	if err := s.CreateRule(ctx, rule); err != nil {
		return err
	}
	r.logger.Info("rule added", "id", rule.ID.String(), "originals", len(rule.Originals), "priority", rule.Priority)
	fmt.Fprintf(r.Stdout, "added %s: %s\n", shortID(rule.ID.String()), rule)
	return nil
}

// EditRule applies the requested field changes to one rule.
func (r *Runner) EditRule(ctx context.Context, id string, edit cli.RuleEdit) error {
	s, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	ruleID, err := s.ResolveRuleID(ctx, id)
	if err != nil {
		return err
	}
	current, err := s.Rule(ctx, ruleID)
	if err != nil {
		return err
	}

	originals, replacement, priority := current.Originals, current.Replacement, current.Priority
	if edit.Originals != nil {
		originals = edit.Originals
	}
	if edit.Replacement != nil {
		replacement = *edit.Replacement
	}
	if edit.Priority != nil {
		priority = *edit.Priority
	}

	updated, err := dictionary.RestoreRule(ruleID, originals, replacement, priority)
	if err != nil {
		return err
	}
	if err := s.UpdateRule(ctx, updated); err != nil {
		return err
	}
	r.logger.Info("rule updated", "id", ruleID.String())
	fmt.Fprintf(r.Stdout, "updated %s: %s\n", shortID(ruleID.String()), updated)
	return nil
}

// RemoveRules deletes each rule in turn, stopping at the first failure.
func (r *Runner) RemoveRules(ctx context.Context, ids []string) error {
	s, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		ruleID, err := s.ResolveRuleID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.DeleteRule(ctx, ruleID); err != nil {
			return err
		}
		r.logger.Info("rule removed", "id", ruleID.String())
		fmt.Fprintf(r.Stdout, "removed %s\n", shortID(ruleID.String()))
	}
	return nil
}

// MoveRule repositions a rule; index is zero-based.
func (r *Runner) MoveRule(ctx context.Context, id string, index int) error {
	s, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	ruleID, err := s.ResolveRuleID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.MoveRule(ctx, ruleID, index); err != nil {
		return err
	}
	return r.ListRules(ctx)
}

// ListWords prints vocabulary words one per line.
func (r *Runner) ListWords(ctx context.Context) error {
	s, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	entries, err := s.Vocabulary(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Fprintln(r.Stdout, entry.Word)
	}
	return nil
}

// AddWords stores each word. Existing words are reported and skipped.
func (r *Runner) AddWords(ctx context.Context, words []string) error {
	s, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	for _, word := range words {
		entry, err := dictionary.NewVocabularyEntry(word)
		if err != nil {
			return err
		}
		if err := s.AddWord(ctx, entry); err != nil {
			if errors.Is(err, store.ErrDuplicateWord) {
				fmt.Fprintf(r.Stderr, "warning: %q is already in the vocabulary\n", entry.Word)
				continue
			}
			return err
		}
		fmt.Fprintf(r.Stdout, "added %s\n", entry.Word)
	}
	return nil
}

// RemoveWords deletes each word case-insensitively.
func (r *Runner) RemoveWords(ctx context.Context, words []string) error {
	s, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	for _, word := range words {
		if err := s.DeleteWord(ctx, word); err != nil {
			return err
		}
		fmt.Fprintf(r.Stdout, "removed %s\n", word)
	}
	return nil
}

// VocabularyHints prints the hint list shared with recognizers and the enhancer.
func (r *Runner) VocabularyHints(ctx context.Context) error {
	s, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, hint := range snapshot.Hints() {
		fmt.Fprintln(r.Stdout, hint)
	}
	return nil
}

// Export writes the dictionary document to a file or stdout.
func (r *Runner) Export(ctx context.Context, req cli.ExportRequest) error {
	s, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}

	format := req.Format
	if format == "" {
		format = exchange.FormatForPath(req.Path)
	}
	doc := exchange.Export(snapshot)

	if req.Path == "" {
		return exchange.Encode(r.Stdout, doc, format)
	}
	if err := writeFile(req.Path, func(w io.Writer) error {
		return exchange.Encode(w, doc, format)
	}); err != nil {
		return err
	}
	fmt.Fprintf(r.Stdout, "exported %d rules and %d words to %s\n", len(doc.Replacements), len(doc.Vocabulary), req.Path)
	return nil
}

// Import plans and applies a dictionary document.
func (r *Runner) Import(ctx context.Context, req cli.ImportRequest) error {
	f, err := os.Open(req.Path)
	if err != nil {
		return fmt.Errorf("open import document: %w", err)
	}
	defer f.Close()

	format := req.Format
	if format == "" {
		format = exchange.FormatForPath(req.Path)
	}
	doc, err := exchange.Decode(f, format)
	if err != nil {
		return fmt.Errorf("import %s: %w", req.Path, err)
	}

	s, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	current, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	changes, summary, err := exchange.Plan(current, doc, req.Strategy)
	if err != nil {
		return err
	}

	if req.DryRun {
		fmt.Fprintf(r.Stdout, "dry run: %s\n", summary)
		return nil
	}
	if err := s.ApplyChanges(ctx, changes); err != nil {
		return err
	}
	r.logger.Info("dictionary imported",
		"path", req.Path,
		"strategy", string(summary.Strategy),
		"rules_added", summary.RulesAdded,
		"words_added", summary.WordsAdded,
	)
	fmt.Fprintln(r.Stdout, summary.String())
	return nil
}

// ListHistory prints recent transcripts, newest first.
func (r *Runner) ListHistory(ctx context.Context, limit int) error {
	s, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	entries, err := s.History(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(r.Stdout, "no history")
		return nil
	}

	for _, entry := range entries {
		flags := []string{fmt.Sprintf("rules=%d", len(entry.AppliedRules))}
		if entry.Enhanced {
			flags = append(flags, "enhanced")
		}
		if entry.EnhancementError != "" {
			flags = append(flags, "enhance-failed")
		}
		fmt.Fprintf(r.Stdout, "#%d %s [%s] %s\n",
			entry.ID,
			entry.CreatedAt.Local().Format(time.DateTime),
			strings.Join(flags, " "),
			strings.TrimSpace(entry.FinalText),
		)
	}
	return nil
}

// ClearHistory deletes every history entry.
func (r *Runner) ClearHistory(ctx context.Context) error {
	s, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	n, err := s.ClearHistory(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.Stdout, "cleared %d history entries\n", n)
	return nil
}

// Doctor prints the readiness report.
func (r *Runner) Doctor(ctx context.Context) error {
	deps := doctor.Deps{
		ListDevices: r.ListDevices,
		ProbeASR:    r.ProbeASR,
		Getenv:      r.Getenv,
	}
	if r.loaded.Config.Dictionary.Enable {
		s, err := r.openStore(ctx)
		if err != nil {
			deps.DictionaryErr = err
		} else {
			deps.Dictionary = s
		}
	}

	report := doctor.Run(ctx, r.loaded, deps)
	fmt.Fprintln(r.Stdout, report.String())
	if !report.OK() {
		return errChecksFailed
	}
	return nil
}

// Devices lists Pulse input sources.
func (r *Runner) Devices(ctx context.Context) error {
	list := r.ListDevices
	if list == nil {
		list = audio.ListDevices
	}
	devices, err := list(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return errors.New("no audio devices found")
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// writeFile writes through a temp file in the target directory and renames
// it into place.
func writeFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".parla-export-*")
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}
