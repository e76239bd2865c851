package transcript

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	pronounIContraction = regexp.MustCompile(`\bi['’](?:m|d|ll|ve|re|s)\b`)
	pronounIWord        = regexp.MustCompile(`\bi\b`)

	// Tokens that end in a period without ending the sentence.
	nonTerminalAbbreviations = map[string]struct{}{
		"cf": {}, "dr": {}, "e.g": {}, "fig": {}, "i.e": {}, "jr": {},
		"mr": {}, "mrs": {}, "ms": {}, "prof": {}, "sr": {}, "vs": {},
	}

	// Abbreviations that stay lowercase even at a sentence start.
	lowercaseAbbreviations = map[string]struct{}{
		"e.g": {}, "etc": {}, "i.e": {}, "vs": {},
	}
)

func capitalizeSentenceStarts(text string) string {
	runes := []rune(text)

	var out strings.Builder
	out.Grow(len(text))

	atStart := true
	sawSpace := false
	for i, r := range runes {
		switch {
		case atStart && unicode.IsLetter(r):
			if (i == 0 || sawSpace) && !lowercaseAbbreviation(runes, i) {
				r = unicode.ToUpper(r)
			}
			atStart = false
		case atStart && unicode.IsDigit(r):
			atStart = false
		case atStart && unicode.IsSpace(r):
			sawSpace = true
		}

		out.WriteRune(r)

		switch r {
		case '!', '?':
			atStart, sawSpace = true, false
		case '.':
			if isSentenceBoundaryPeriod(runes, i) {
				atStart, sawSpace = true, false
			}
		}
	}
	return out.String()
}

func isSentenceBoundaryPeriod(runes []rune, idx int) bool {
	// "3.5", "example.com", "e.g" all continue without a space.
	if idx+1 < len(runes) && !unicode.IsSpace(runes[idx+1]) && !isSentencePrefixRune(runes[idx+1]) && runes[idx+1] != '.' {
		return false
	}

	start := idx
	for start > 0 && (unicode.IsLetter(runes[start-1]) || runes[start-1] == '.') {
		start--
	}
	token := strings.ToLower(strings.Trim(string(runes[start:idx]), "."))
	_, abbreviation := nonTerminalAbbreviations[token]
	return !abbreviation
}

func lowercaseAbbreviation(runes []rune, idx int) bool {
	end := idx
	for end < len(runes) && (unicode.IsLetter(runes[end]) || runes[end] == '.') {
		end++
	}
	token := strings.ToLower(strings.Trim(string(runes[idx:end]), "."))
	_, ok := lowercaseAbbreviations[token]
	return ok
}

func isSentencePrefixRune(r rune) bool {
	switch r {
	case ')', ']', '}', '\'', '"', '’', '”', '(', '“', '‘':
		return true
	default:
		return false
	}
}

func capitalizePronounI(text string) string {
	text = pronounIContraction.ReplaceAllStringFunc(text, func(match string) string {
		return "I" + match[1:]
	})

	matches := pronounIWord.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))
	last := 0
	for _, match := range matches {
		start, end := match[0], match[1]
		out.WriteString(text[last:start])
		if partOfInitialism(text, start, end) {
			out.WriteString(text[start:end])
		} else {
			out.WriteString("I")
		}
		last = end
	}
	out.WriteString(text[last:])
	return out.String()
}

// partOfInitialism reports whether the "i" at text[start:end] belongs to
// something like "i.e." rather than standing alone.
func partOfInitialism(text string, start, end int) bool {
	if end+1 < len(text) && text[end] == '.' {
		next, _ := utf8.DecodeRuneInString(text[end+1:])
		if unicode.IsLetter(next) {
			return true
		}
	}
	if start > 1 && text[start-1] == '.' && end < len(text) && text[end] == '.' {
		prev, _ := utf8.DecodeLastRuneInString(text[:start-1])
		if unicode.IsLetter(prev) {
			return true
		}
	}
	return false
}
