// Package transcript normalizes raw dictation text before and after the
// dictionary pass.
package transcript

import "strings"

// Options controls normalization.
type Options struct {
	TrailingSpace       bool
	CapitalizeSentences bool
}

// Normalize collapses whitespace runs to single spaces and, when enabled,
// capitalizes sentence starts and the standalone pronoun "i".
func Normalize(text string, opts Options) string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return ""
	}
	if opts.CapitalizeSentences {
		normalized = capitalizePronounI(capitalizeSentenceStarts(normalized))
	}
	return normalized
}

// Finish appends the configured trailing space to non-empty output.
func Finish(text string, opts Options) string {
	if !opts.TrailingSpace || text == "" || strings.HasSuffix(text, " ") {
		return text
	}
	return text + " "
}
