package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rbright/parla/internal/exchange"
)

func (b *builder) newRulesCmd() *cobra.Command {
	cmd := newGroupCmd("rules", "Manage replacement rules", "rule")

	list := &cobra.Command{
		Use:   "list",
		Short: "List rules in priority order",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := b.configure(cmd); err != nil {
				return err
			}
			return b.actions.ListRules(cmd.Context())
		},
	}

	var addPriority int
	add := &cobra.Command{
		Use:   "add REPLACEMENT ORIGINAL...",
		Short: "Add a rule that rewrites each ORIGINAL phrase to REPLACEMENT",
		Example: `  parla rules add "Machine Learning" ml "machine learning"
  parla rules add NYC "new york" --priority 0`,
		Args: usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var priority *int
			if cmd.Flags().Changed("priority") {
				priority = &addPriority
			}
			if err := b.configure(cmd); err != nil {
				return err
			}
			return b.actions.AddRule(cmd.Context(), args[0], args[1:], priority)
		},
	}
	add.Flags().IntVar(&addPriority, "priority", 0, "rule priority; lower wins ties (default: after every existing rule)")

	var (
		editOriginals   []string
		editReplacement string
		editPriority    int
	)
	edit := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a rule's originals, replacement, or priority",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var change RuleEdit
			if cmd.Flags().Changed("original") {
				change.Originals = editOriginals
			}
			if cmd.Flags().Changed("replacement") {
				change.Replacement = &editReplacement
			}
			if cmd.Flags().Changed("priority") {
				change.Priority = &editPriority
			}
			if change.Originals == nil && change.Replacement == nil && change.Priority == nil {
				return usagef("rules edit needs at least one of --original, --replacement, --priority")
			}
			if err := b.configure(cmd); err != nil {
				return err
			}
			return b.actions.EditRule(cmd.Context(), args[0], change)
		},
	}
	edit.Flags().StringArrayVar(&editOriginals, "original", nil, "replace the originals (repeatable)")
	edit.Flags().StringVar(&editReplacement, "replacement", "", "new replacement text")
	edit.Flags().IntVar(&editPriority, "priority", 0, "new priority")

	rm := &cobra.Command{
		Use:     "rm ID...",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete rules by ID or unique ID prefix",
		Args:    usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := b.configure(cmd); err != nil {
				return err
			}
			return b.actions.RemoveRules(cmd.Context(), args)
		},
	}

	move := &cobra.Command{
		Use:   "move ID POSITION",
		Short: "Move a rule to a 1-based position and renumber priorities",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[1])
			if err != nil || position < 1 {
				return usagef("position must be a positive integer, got %q", args[1])
			}
			if err := b.configure(cmd); err != nil {
				return err
			}
			return b.actions.MoveRule(cmd.Context(), args[0], position-1)
		},
	}

	cmd.AddCommand(list, add, edit, rm, move)
	return cmd
}

func (b *builder) newVocabCmd() *cobra.Command {
	cmd := newGroupCmd("vocab", "Manage vocabulary hints", "vocabulary")

	list := &cobra.Command{
		Use:   "list",
		Short: "List vocabulary words",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := b.configure(cmd); err != nil {
				return err
			}
			return b.actions.ListWords(cmd.Context())
		},
	}

	add := &cobra.Command{
		Use:   "add WORD...",
		Short: "Add vocabulary words",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := b.configure(cmd); err != nil {
				return err
			}
			return b.actions.AddWords(cmd.Context(), args)
		},
	}

	rm := &cobra.Command{
		Use:     "rm WORD...",
		Aliases: []string{"remove", "delete"},
		Short:   "Remove vocabulary words (case-insensitive)",
		Args:    usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := b.configure(cmd); err != nil {
				return err
			}
			return b.actions.RemoveWords(cmd.Context(), args)
		},
	}

	hints := &cobra.Command{
		Use:   "hints",
		Short: "Print the combined hint list handed to the recognizer and enhancer",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := b.configure(cmd); err != nil {
				return err
			}
			return b.actions.VocabularyHints(cmd.Context())
		},
	}

	cmd.AddCommand(list, add, rm, hints)
	return cmd
}

func (b *builder) newExportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export [PATH]",
		Short: "Write rules and vocabulary to a JSON or YAML document",
		Long:  "Write rules and vocabulary to PATH, or stdout when PATH is omitted. The format follows the file extension unless --format is set.",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ExportRequest{}
			if len(args) == 1 {
				req.Path = args[0]
			}
			if format != "" {
				parsed, err := exchange.ParseFormat(format)
				if err != nil {
					return &UsageError{Err: err}
				}
				req.Format = parsed
			}
			if err := b.configure(cmd); err != nil {
				return err
			}
			return b.actions.Export(cmd.Context(), req)
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "document format: json or yaml")
	return cmd
}

func (b *builder) newImportCmd() *cobra.Command {
	var (
		format   string
		strategy string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "import PATH",
		Short: "Load rules and vocabulary from a JSON or YAML document",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedStrategy, err := exchange.ParseStrategy(strategy)
			if err != nil {
				return &UsageError{Err: err}
			}
			req := ImportRequest{Path: args[0], Strategy: parsedStrategy, DryRun: dryRun}
			if format != "" {
				parsed, err := exchange.ParseFormat(format)
				if err != nil {
					return &UsageError{Err: err}
				}
				req.Format = parsed
			}
			if err := b.configure(cmd); err != nil {
				return err
			}
			return b.actions.Import(cmd.Context(), req)
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "document format: json or yaml (default: from extension)")
	cmd.Flags().StringVar(&strategy, "strategy", string(exchange.StrategyAdditive), "additive keeps existing entries; replace swaps the whole dictionary")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	return cmd
}
