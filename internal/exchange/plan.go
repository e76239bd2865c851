package exchange

import (
	"fmt"
	"strings"

	"github.com/rbright/parla/internal/dictionary"
)

// Strategy selects how an imported document meets the active dictionary.
type Strategy string

const (
	// StrategyAdditive keeps existing entries and appends new ones.
	StrategyAdditive Strategy = "additive"
	// StrategyReplace discards every rule and word before installing the document.
	StrategyReplace Strategy = "replace"
)

// ParseStrategy validates a user-supplied strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(name))) {
	case StrategyAdditive, "merge":
		return StrategyAdditive, nil
	case StrategyReplace:
		return StrategyReplace, nil
	default:
		return "", fmt.Errorf("unknown import strategy %q (expected additive or replace)", name)
	}
}

// Changes is the persistence work an import needs. When Reset is set every
// existing rule and vocabulary word is removed first.
type Changes struct {
	Reset      bool
	Rules      []dictionary.ReplacementRule
	Vocabulary []dictionary.VocabularyEntry
}

// Summary reports what an import did.
type Summary struct {
	Strategy     Strategy
	RulesAdded   int
	RulesSkipped int
	WordsAdded   int
	WordsSkipped int
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"%s import: %d rules added, %d skipped; %d words added, %d skipped",
		s.Strategy, s.RulesAdded, s.RulesSkipped, s.WordsAdded, s.WordsSkipped,
	)
}

// Plan computes the changes needed to import doc into current.
//
// Additive imports skip rules whose content already exists, including repeats
// inside doc. Replace imports install the document rules exactly as listed.
// Vocabulary is deduplicated case-insensitively under both strategies.
func Plan(current dictionary.Snapshot, doc Document, strategy Strategy) (Changes, Summary, error) {
	if err := Validate(doc); err != nil {
		return Changes{}, Summary{}, err
	}

	summary := Summary{Strategy: strategy}
	var (
		changes      Changes
		knownRules   []dictionary.ReplacementRule
		knownWords   = make(map[string]struct{})
		nextPriority int
	)

	switch strategy {
	case StrategyReplace:
		changes.Reset = true
	case StrategyAdditive:
		knownRules = append(knownRules, current.Rules...)
		for _, rule := range current.Rules {
			if rule.Priority >= nextPriority {
				nextPriority = rule.Priority + 1
			}
		}
		for _, entry := range current.Vocabulary {
			knownWords[entry.Key()] = struct{}{}
		}
	default:
		return Changes{}, Summary{}, fmt.Errorf("unknown import strategy %q", strategy)
	}

	for i, item := range doc.Replacements {
		rule, err := dictionary.NewRule(item.Originals, item.Replacement, nextPriority)
		if err != nil {
			return Changes{}, Summary{}, fmt.Errorf("replacements[%d]: %w", i, err)
		}
		if strategy == StrategyAdditive && containsRule(knownRules, rule) {
			summary.RulesSkipped++
			continue
		}
		knownRules = append(knownRules, rule)
		changes.Rules = append(changes.Rules, rule)
		summary.RulesAdded++
		nextPriority++
	}

	for i, item := range doc.Vocabulary {
		entry, err := dictionary.NewVocabularyEntry(item.Word)
		if err != nil {
			return Changes{}, Summary{}, fmt.Errorf("vocabulary[%d]: %w", i, err)
		}
		if _, ok := knownWords[entry.Key()]; ok {
			summary.WordsSkipped++
			continue
		}
		knownWords[entry.Key()] = struct{}{}
		changes.Vocabulary = append(changes.Vocabulary, entry)
		summary.WordsAdded++
	}

	return changes, summary, nil
}

func containsRule(rules []dictionary.ReplacementRule, candidate dictionary.ReplacementRule) bool {
	for _, rule := range rules {
		if rule.SameContent(candidate) {
			return true
		}
	}
	return false
}
