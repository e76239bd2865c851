package dictionary

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
)

// similarWordThreshold is the Jaro-Winkler score above which two
// phonetically matching vocabulary words are reported.
const similarWordThreshold = 0.88

// FindingKind classifies a lint finding.
type FindingKind string

const (
	// FindingShadowed marks an original owned by an earlier rule.
	FindingShadowed FindingKind = "shadowed"
	// FindingNoCascade marks a replacement that contains another rule's
	// original; the second rule will not run on it.
	FindingNoCascade FindingKind = "no-cascade"
	// FindingSimilarWords marks vocabulary words that sound alike.
	FindingSimilarWords FindingKind = "similar-words"
)

// Finding is one dictionary lint result.
type Finding struct {
	Kind    FindingKind
	Message string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Lint reports dictionary entries that are unlikely to behave the way their
// author expects. Findings never block processing.
func Lint(snapshot Snapshot) []Finding {
	var findings []Finding
	findings = append(findings, shadowedOriginals(snapshot.Rules)...)
	findings = append(findings, cascadeCandidates(snapshot.Rules)...)
	findings = append(findings, similarWords(snapshot.Vocabulary)...)
	return findings
}

func shadowedOriginals(rules []ReplacementRule) []Finding {
	ordered := append([]ReplacementRule(nil), rules...)
	SortRules(ordered)

	owner := make(map[string]ReplacementRule)
	var findings []Finding
	for _, rule := range ordered {
		for _, original := range rule.Originals {
			key := foldKey(original)
			first, taken := owner[key]
			if !taken {
				owner[key] = rule
				continue
			}
			if first.ID == rule.ID {
				continue
			}
			findings = append(findings, Finding{
				Kind: FindingShadowed,
				Message: fmt.Sprintf("original %q maps to %q via rule %s; rule %s (-> %q) never fires for it",
					original, first.Replacement, shortID(first), shortID(rule), rule.Replacement),
			})
		}
	}
	return findings
}

func cascadeCandidates(rules []ReplacementRule) []Finding {
	matcher := Compile(rules)

	var findings []Finding
	for _, rule := range rules {
		result := matcher.Apply(rule.Replacement)
		for _, other := range result.Applied {
			if other.ID == rule.ID {
				continue
			}
			findings = append(findings, Finding{
				Kind: FindingNoCascade,
				Message: fmt.Sprintf("replacement %q of rule %s contains an original of rule %s (-> %q); replaced text is not rewritten again",
					rule.Replacement, shortID(rule), shortID(other), other.Replacement),
			})
		}
	}
	return findings
}

func similarWords(entries []VocabularyEntry) []Finding {
	type coded struct {
		word  string
		lower string
		codes map[string]struct{}
	}

	words := make([]coded, 0, len(entries))
	for _, entry := range entries {
		lower := foldKey(entry.Word)
		primary, secondary := matchr.DoubleMetaphone(lower)
		codes := make(map[string]struct{}, 2)
		for _, code := range []string{primary, secondary} {
			if code != "" {
				codes[code] = struct{}{}
			}
		}
		words = append(words, coded{word: entry.Word, lower: lower, codes: codes})
	}

	var findings []Finding
	for i := range words {
		for j := i + 1; j < len(words); j++ {
			a, b := words[i], words[j]
			if a.lower == b.lower || !sharesCode(a.codes, b.codes) {
				continue
			}
			score := matchr.JaroWinkler(a.lower, b.lower, false)
			if score < similarWordThreshold {
				continue
			}
			findings = append(findings, Finding{
				Kind:    FindingSimilarWords,
				Message: fmt.Sprintf("vocabulary words %q and %q sound alike (similarity %.2f)", a.word, b.word, score),
			})
		}
	}
	return findings
}

func sharesCode(a, b map[string]struct{}) bool {
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

func shortID(rule ReplacementRule) string {
	return strings.SplitN(rule.ID.String(), "-", 2)[0]
}
