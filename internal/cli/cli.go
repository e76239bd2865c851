// Package cli defines the parla command tree. Commands parse and validate
// arguments, then hand off to an Actions implementation.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rbright/parla/internal/exchange"
	"github.com/rbright/parla/internal/version"
)

// UsageError marks invalid command-line input.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// IsUsage reports whether err stems from invalid command-line input.
func IsUsage(err error) bool {
	var usage *UsageError
	return errors.As(err, &usage)
}

func usagef(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// ProcessOptions tunes one process invocation.
type ProcessOptions struct {
	DryRun    bool
	NoEnhance bool
	NoCommit  bool
}

// RuleEdit lists the fields to change; nil fields are left alone.
type RuleEdit struct {
	Originals   []string
	Replacement *string
	Priority    *int
}

// ExportRequest writes the dictionary to Path, or stdout when Path is empty.
// An empty Format is inferred from Path.
type ExportRequest struct {
	Path   string
	Format exchange.Format
}

// ImportRequest loads a document from Path.
type ImportRequest struct {
	Path     string
	Format   exchange.Format
	Strategy exchange.Strategy
	DryRun   bool
}

// Actions executes parsed commands.
type Actions interface {
	// Configure loads configuration before any other call.
	Configure(ctx context.Context, configPath string) error

	Process(ctx context.Context, text string, opts ProcessOptions) error
	Apply(ctx context.Context, text string) error

	ListRules(ctx context.Context) error
	AddRule(ctx context.Context, replacement string, originals []string, priority *int) error
	EditRule(ctx context.Context, id string, edit RuleEdit) error
	RemoveRules(ctx context.Context, ids []string) error
	MoveRule(ctx context.Context, id string, index int) error

	ListWords(ctx context.Context) error
	AddWords(ctx context.Context, words []string) error
	RemoveWords(ctx context.Context, words []string) error
	VocabularyHints(ctx context.Context) error

	Export(ctx context.Context, req ExportRequest) error
	Import(ctx context.Context, req ImportRequest) error

	ListHistory(ctx context.Context, limit int) error
	ClearHistory(ctx context.Context) error

	Doctor(ctx context.Context) error
	Devices(ctx context.Context) error
}

type builder struct {
	actions    Actions
	configPath string
}

// NewRootCmd creates the root command for the parla CLI.
func NewRootCmd(actions Actions) *cobra.Command {
	b := &builder{actions: actions}

	rootCmd := &cobra.Command{
		Use:           "parla",
		Short:         "Dictation post-processing with a custom dictionary",
		Long:          "parla normalizes dictated text, applies your replacement dictionary, optionally cleans it up with an LLM, and hands it to the clipboard.",
		Args:          usageArgs(cobra.NoArgs),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&b.configPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/parla/config.jsonc)")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	rootCmd.AddCommand(b.newProcessCmd())
	rootCmd.AddCommand(b.newApplyCmd())
	rootCmd.AddCommand(b.newRulesCmd())
	rootCmd.AddCommand(b.newVocabCmd())
	rootCmd.AddCommand(b.newExportCmd())
	rootCmd.AddCommand(b.newImportCmd())
	rootCmd.AddCommand(b.newHistoryCmd())
	rootCmd.AddCommand(b.newDoctorCmd())
	rootCmd.AddCommand(b.newDevicesCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func (b *builder) configure(cmd *cobra.Command) error {
	return b.actions.Configure(cmd.Context(), b.configPath)
}

// usageArgs tags argument validation failures as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	}
}

// newGroupCmd returns a parent command that prints help when called bare and
// rejects unknown subcommands as usage errors.
func newGroupCmd(use, short string, aliases ...string) *cobra.Command {
	return &cobra.Command{
		Use:     use,
		Aliases: aliases,
		Short:   short,
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  usageArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func (b *builder) newProcessCmd() *cobra.Command {
	var opts ProcessOptions

	cmd := &cobra.Command{
		Use:   "process [TEXT...]",
		Short: "Run the full pipeline on a transcript",
		Long:  "Normalize, apply the dictionary, optionally enhance, then copy the result to the clipboard. Reads stdin when no text is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := textFromArgs(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			if err := b.configure(cmd); err != nil {
				return err
			}
			return b.actions.Process(cmd.Context(), text, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the result without committing it or recording history")
	cmd.Flags().BoolVar(&opts.NoEnhance, "no-enhance", false, "skip the enhancement stage")
	cmd.Flags().BoolVar(&opts.NoCommit, "no-commit", false, "skip the clipboard and paste commands")
	return cmd
}

func (b *builder) newApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply [TEXT...]",
		Short: "Apply only the replacement dictionary and show which rules fired",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := textFromArgs(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			if err := b.configure(cmd); err != nil {
				return err
			}
			return b.actions.Apply(cmd.Context(), text)
		},
	}
}

func textFromArgs(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if stdin == nil {
		return "", nil
	}
	content, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(content), nil
}

func (b *builder) newHistoryCmd() *cobra.Command {
	cmd := newGroupCmd("history", "Inspect processed transcripts")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent transcripts, newest first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return usagef("--limit must be >= 0")
			}
			if err := b.configure(cmd); err != nil {
				return err
			}
			return b.actions.ListHistory(cmd.Context(), limit)
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show (0 for all)")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded transcripts",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := b.configure(cmd); err != nil {
				return err
			}
			return b.actions.ClearHistory(cmd.Context())
		},
	}

	cmd.AddCommand(list, clearCmd)
	return cmd
}

func (b *builder) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run configuration and environment checks",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := b.configure(cmd); err != nil {
				return err
			}
			return b.actions.Doctor(cmd.Context())
		},
	}
}

func (b *builder) newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio input devices",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := b.configure(cmd); err != nil {
				return err
			}
			return b.actions.Devices(cmd.Context())
		},
	}
}
