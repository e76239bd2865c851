// Package dictionary holds the custom dictionary model and the replacement
// engine that rewrites transcripts with it.
package dictionary

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

var (
	// ErrNoOriginals rejects rules that would never match anything.
	ErrNoOriginals = errors.New("replacement rule needs at least one original phrase")
	// ErrInvalidWord rejects vocabulary entries that are empty or span several tokens.
	ErrInvalidWord = errors.New("vocabulary word must be a single non-empty token")
)

// ReplacementRule maps one or more original phrases to a single replacement.
type ReplacementRule struct {
	ID          uuid.UUID
	Originals   []string
	Replacement string
	Priority    int
}

// NewRule builds a rule with a fresh identifier.
func NewRule(originals []string, replacement string, priority int) (ReplacementRule, error) {
	return buildRule(uuid.New(), originals, replacement, priority)
}

// RestoreRule rebuilds a persisted rule while keeping its identifier.
func RestoreRule(id uuid.UUID, originals []string, replacement string, priority int) (ReplacementRule, error) {
	if id == uuid.Nil {
		return ReplacementRule{}, fmt.Errorf("restore rule: identifier must not be nil")
	}
	return buildRule(id, originals, replacement, priority)
}

func buildRule(id uuid.UUID, originals []string, replacement string, priority int) (ReplacementRule, error) {
	cleaned := NormalizeOriginals(originals)
	if len(cleaned) == 0 {
		return ReplacementRule{}, ErrNoOriginals
	}
	return ReplacementRule{
		ID:          id,
		Originals:   cleaned,
		Replacement: replacement,
		Priority:    priority,
	}, nil
}

// NormalizeOriginals trims phrases, drops empties, and removes case-insensitive
// duplicates while keeping the first spelling and the input order.
func NormalizeOriginals(originals []string) []string {
	out := make([]string, 0, len(originals))
	seen := make(map[string]struct{}, len(originals))
	for _, phrase := range originals {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		key := foldKey(phrase)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, phrase)
	}
	return out
}

// SameContent reports whether two rules rewrite the same phrases to the same text.
// Identifiers and priorities are ignored.
func (r ReplacementRule) SameContent(other ReplacementRule) bool {
	if r.Replacement != other.Replacement || len(r.Originals) != len(other.Originals) {
		return false
	}
	for i := range r.Originals {
		if foldKey(r.Originals[i]) != foldKey(other.Originals[i]) {
			return false
		}
	}
	return true
}

// String renders the rule as `a, b -> replacement` for listings and prompts.
func (r ReplacementRule) String() string {
	return strings.Join(r.Originals, ", ") + " -> " + r.Replacement
}

// SortRules orders rules by ascending priority. Equal priorities keep their
// relative input order.
func SortRules(rules []ReplacementRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})
}

// VocabularyEntry is a passive hint word handed to transcription and enhancement.
type VocabularyEntry struct {
	ID   uuid.UUID
	Word string
}

// NewVocabularyEntry validates word and assigns a fresh identifier.
func NewVocabularyEntry(word string) (VocabularyEntry, error) {
	word = strings.TrimSpace(word)
	if word == "" || strings.IndexFunc(word, unicode.IsSpace) >= 0 {
		return VocabularyEntry{}, fmt.Errorf("%w: %q", ErrInvalidWord, word)
	}
	return VocabularyEntry{ID: uuid.New(), Word: word}, nil
}

// Key is the case-insensitive uniqueness key of the entry.
func (e VocabularyEntry) Key() string {
	return WordKey(e.Word)
}

// WordKey folds a vocabulary word for case-insensitive comparison.
func WordKey(word string) string {
	return foldKey(strings.TrimSpace(word))
}

// Snapshot is an immutable view of the active dictionary for one call.
type Snapshot struct {
	Rules      []ReplacementRule
	Vocabulary []VocabularyEntry
}

// Words returns vocabulary words in snapshot order.
func (s Snapshot) Words() []string {
	words := make([]string, 0, len(s.Vocabulary))
	for _, entry := range s.Vocabulary {
		words = append(words, entry.Word)
	}
	return words
}

// Hints returns vocabulary words followed by rule replacements, without
// case-insensitive repeats or empty entries.
func (s Snapshot) Hints() []string {
	seen := make(map[string]struct{}, len(s.Vocabulary)+len(s.Rules))
	hints := make([]string, 0, len(s.Vocabulary)+len(s.Rules))
	add := func(hint string) {
		hint = strings.TrimSpace(hint)
		if hint == "" {
			return
		}
		key := foldKey(hint)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		hints = append(hints, hint)
	}

	for _, entry := range s.Vocabulary {
		add(entry.Word)
	}
	rules := append([]ReplacementRule(nil), s.Rules...)
	SortRules(rules)
	for _, rule := range rules {
		add(rule.Replacement)
	}
	return hints
}

// foldKey lower-cases rune by rune, matching how the engine compares text.
func foldKey(s string) string {
	return strings.Map(unicode.ToLower, s)
}
