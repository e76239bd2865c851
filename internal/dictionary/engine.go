package dictionary

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Result is the rewritten text plus every rule that fired, in order of first match.
type Result struct {
	Text    string
	Applied []ReplacementRule
}

// Matcher is a compiled, read-only view of a rule set. It is safe for
// concurrent use.
type Matcher struct {
	rules []ReplacementRule
	root  *trieNode
}

type trieNode struct {
	next map[rune]*trieNode
	rule int
}

func newTrieNode() *trieNode {
	return &trieNode{rule: -1}
}

// Apply rewrites text with rules in a single left-to-right pass.
//
// At each word boundary the longest original of any rule wins. Replaced spans
// are never rescanned, so rule chains such as a->b, b->c do not cascade.
func Apply(text string, rules []ReplacementRule) Result {
	return Compile(rules).Apply(text)
}

// Compile builds a matcher over the union of all rule originals.
//
// When two rules share an original (case-insensitively) the rule with the
// lower priority owns it; equal priorities fall back to input order.
func Compile(rules []ReplacementRule) *Matcher {
	m := &Matcher{
		rules: append([]ReplacementRule(nil), rules...),
		root:  newTrieNode(),
	}

	for idx, rule := range m.rules {
		for _, original := range rule.Originals {
			if strings.TrimSpace(original) == "" {
				continue
			}
			node := m.root
			for _, r := range original {
				r = unicode.ToLower(r)
				child, ok := node.next[r]
				if !ok {
					if node.next == nil {
						node.next = make(map[rune]*trieNode)
					}
					child = newTrieNode()
					node.next[r] = child
				}
				node = child
			}
			if node.rule < 0 || rule.Priority < m.rules[node.rule].Priority {
				node.rule = idx
			}
		}
	}

	return m
}

// Apply rewrites text using the compiled rule set.
func (m *Matcher) Apply(text string) Result {
	if text == "" || len(m.root.next) == 0 {
		return Result{Text: text}
	}

	var (
		out     strings.Builder
		applied []ReplacementRule
		fired   map[int]struct{}
	)

	prev := rune(-1)
	copied := 0
	for pos := 0; pos < len(text); {
		if !isWordRune(prev) {
			if end, idx, ok := m.longestAt(text, pos); ok {
				if fired == nil {
					fired = make(map[int]struct{})
					out.Grow(len(text))
				}
				out.WriteString(text[copied:pos])
				out.WriteString(m.rules[idx].Replacement)

				if _, seen := fired[idx]; !seen {
					fired[idx] = struct{}{}
					applied = append(applied, m.rules[idx])
				}

				prev, _ = utf8.DecodeLastRuneInString(text[pos:end])
				pos = end
				copied = end
				continue
			}
		}

		r, size := utf8.DecodeRuneInString(text[pos:])
		prev = r
		pos += size
	}

	if len(applied) == 0 {
		return Result{Text: text}
	}

	out.WriteString(text[copied:])
	return Result{Text: out.String(), Applied: applied}
}

// longestAt walks the trie from pos and returns the end offset and rule index
// of the longest original that also ends on a word boundary.
func (m *Matcher) longestAt(text string, pos int) (int, int, bool) {
	node := m.root
	end, idx, found := 0, -1, false

	for j := pos; j < len(text); {
		r, size := utf8.DecodeRuneInString(text[j:])
		node = node.next[unicode.ToLower(r)]
		if node == nil {
			break
		}
		j += size

		if node.rule < 0 {
			continue
		}
		if j < len(text) {
			after, _ := utf8.DecodeRuneInString(text[j:])
			if isWordRune(after) {
				continue
			}
		}
		end, idx, found = j, node.rule, true
	}

	return end, idx, found
}

// isWordRune reports whether r continues a word. Combining marks count so a
// decomposed accent never opens a boundary.
func isWordRune(r rune) bool {
	if r < 0 {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
