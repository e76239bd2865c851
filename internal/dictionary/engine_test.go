package dictionary

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRule(t *testing.T, replacement string, priority int, originals ...string) ReplacementRule {
	t.Helper()

	rule, err := NewRule(originals, replacement, priority)
	require.NoError(t, err)
	return rule
}

func TestApplyEmptyText(t *testing.T) {
	t.Parallel()

	rule := mustRule(t, "dog", 0, "cat")
	got := Apply("", []ReplacementRule{rule})
	require.Equal(t, "", got.Text)
	require.Empty(t, got.Applied)
}

func TestApplyEmptyRules(t *testing.T) {
	t.Parallel()

	got := Apply("nothing to see here", nil)
	require.Equal(t, "nothing to see here", got.Text)
	require.Empty(t, got.Applied)
}

func TestApplyRespectsWordBoundaries(t *testing.T) {
	t.Parallel()

	rule := mustRule(t, "dog", 0, "cat")

	got := Apply("concatenate", []ReplacementRule{rule})
	require.Equal(t, "concatenate", got.Text)
	require.Empty(t, got.Applied)

	got = Apply("category", []ReplacementRule{rule})
	require.Equal(t, "category", got.Text)

	got = Apply("my cat sat", []ReplacementRule{rule})
	require.Equal(t, "my dog sat", got.Text)
	require.Equal(t, []ReplacementRule{rule}, got.Applied)
}

func TestApplyTreatsPunctuationAndEdgesAsBoundaries(t *testing.T) {
	t.Parallel()

	rule := mustRule(t, "dog", 0, "cat")
	cases := map[string]string{
		"cat":            "dog",
		"cat, cat.":      "dog, dog.",
		"(cat)":          "(dog)",
		"the cat's toy":  "the dog's toy",
		"cat9 and 9cat":  "cat9 and 9cat",
		"bobcat catfish": "bobcat catfish",
	}
	for input, want := range cases {
		require.Equal(t, want, Apply(input, []ReplacementRule{rule}).Text, input)
	}
}

func TestApplyIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	rule := mustRule(t, "hi", 0, "hello")
	got := Apply("Hello there", []ReplacementRule{rule})
	require.Equal(t, "hi there", got.Text)
	require.Equal(t, []ReplacementRule{rule}, got.Applied)

	got = Apply("HELLO", []ReplacementRule{rule})
	require.Equal(t, "hi", got.Text)
}

func TestApplyFoldsNonASCIILetters(t *testing.T) {
	t.Parallel()

	rule := mustRule(t, "über", 0, "uber")
	accented := mustRule(t, "Zoë", 0, "zoë")

	got := Apply("ÜBER cool and uber cool, says ZOË", []ReplacementRule{rule, accented})
	require.Equal(t, "ÜBER cool and über cool, says Zoë", got.Text)
}

func TestApplyPrefersLongestMatch(t *testing.T) {
	t.Parallel()

	short := mustRule(t, "NEW", 0, "new")
	long := mustRule(t, "NYC", 1, "new york")

	got := Apply("I live in new york", []ReplacementRule{short, long})
	require.Equal(t, "I live in NYC", got.Text)
	require.Equal(t, []ReplacementRule{long}, got.Applied)

	got = Apply("a new day in new york", []ReplacementRule{short, long})
	require.Equal(t, "a NEW day in NYC", got.Text)
	require.Equal(t, []ReplacementRule{short, long}, got.Applied)
}

func TestApplyFallsBackToShorterMatchWhenLongerBreaksBoundary(t *testing.T) {
	t.Parallel()

	short := mustRule(t, "NEW", 0, "new")
	long := mustRule(t, "NYC", 0, "new york")

	got := Apply("new yorkshire", []ReplacementRule{short, long})
	require.Equal(t, "NEW yorkshire", got.Text)
	require.Equal(t, []ReplacementRule{short}, got.Applied)
}

func TestApplyDoesNotCascade(t *testing.T) {
	t.Parallel()

	first := mustRule(t, "b", 0, "a")
	second := mustRule(t, "c", 1, "b")

	got := Apply("a", []ReplacementRule{first, second})
	require.Equal(t, "b", got.Text)
	require.Equal(t, []ReplacementRule{first}, got.Applied)
}

func TestApplyDoesNotRescanReplacementText(t *testing.T) {
	t.Parallel()

	rule := mustRule(t, "gonna gonna", 0, "gonna")
	got := Apply("gonna go", []ReplacementRule{rule})
	require.Equal(t, "gonna gonna go", got.Text)
}

func TestApplyMultipleOriginalsRecordRuleOnce(t *testing.T) {
	t.Parallel()

	rule := mustRule(t, "Machine Learning", 0, "ML", "machine learning")

	got := Apply("I love ML", []ReplacementRule{rule})
	require.Equal(t, "I love Machine Learning", got.Text)
	require.Equal(t, []ReplacementRule{rule}, got.Applied)

	got = Apply("I study machine learning", []ReplacementRule{rule})
	require.Equal(t, "I study Machine Learning", got.Text)

	got = Apply("ml is machine learning and ML", []ReplacementRule{rule})
	require.Equal(t, "Machine Learning is Machine Learning and Machine Learning", got.Text)
	require.Len(t, got.Applied, 1)
}

func TestApplyListsRulesInFirstMatchOrder(t *testing.T) {
	t.Parallel()

	alpha := mustRule(t, "Alpha", 0, "alfa")
	bravo := mustRule(t, "Bravo", 1, "brav")
	charlie := mustRule(t, "Charlie", 2, "charly")

	got := Apply("charly then brav then alfa then charly", []ReplacementRule{alpha, bravo, charlie})
	require.Equal(t, "Charlie then Bravo then Alpha then Charlie", got.Text)
	require.Equal(t, []ReplacementRule{charlie, bravo, alpha}, got.Applied)
}

func TestApplyTieBreaksOnLowerPriority(t *testing.T) {
	t.Parallel()

	loose := mustRule(t, "GPT", 5, "gpt")
	preferred := mustRule(t, "ChatGPT", 1, "gpt")

	got := Apply("ask gpt", []ReplacementRule{loose, preferred})
	require.Equal(t, "ask ChatGPT", got.Text)
	require.Equal(t, []ReplacementRule{preferred}, got.Applied)
}

func TestApplyTieBreaksOnInputOrderForEqualPriority(t *testing.T) {
	t.Parallel()

	first := mustRule(t, "one", 3, "x")
	second := mustRule(t, "two", 3, "X")

	got := Apply("x", []ReplacementRule{first, second})
	require.Equal(t, "one", got.Text)
	require.Equal(t, []ReplacementRule{first}, got.Applied)
}

func TestApplyInsertsReplacementVerbatim(t *testing.T) {
	t.Parallel()

	rule := mustRule(t, "iPhone", 0, "i phone")
	got := Apply("I PHONE and I Phone", []ReplacementRule{rule})
	require.Equal(t, "iPhone and iPhone", got.Text)
}

func TestApplyEmptyReplacementRemovesPhrase(t *testing.T) {
	t.Parallel()

	rule := mustRule(t, "", 0, "um")
	got := Apply("so um yes", []ReplacementRule{rule})
	require.Equal(t, "so  yes", got.Text)
	require.Len(t, got.Applied, 1)
}

func TestApplyLeavesInvalidUTF8UntouchedWithoutMatches(t *testing.T) {
	t.Parallel()

	rule := mustRule(t, "dog", 0, "cat")
	input := "bad \xff bytes"
	got := Apply(input, []ReplacementRule{rule})
	require.Equal(t, input, got.Text)

	got = Apply("cat \xff", []ReplacementRule{rule})
	require.Equal(t, "dog \xff", got.Text)
}

func TestApplyIdempotentWhenReplacementsContainNoOriginals(t *testing.T) {
	t.Parallel()

	rules := []ReplacementRule{
		mustRule(t, "NYC", 0, "new york", "big apple"),
		mustRule(t, "Kubernetes", 1, "cube", "k eights"),
		mustRule(t, "PostgreSQL", 2, "postgres", "post gress"),
	}
	inputs := []string{
		"",
		"moving to new york to run cube on postgres",
		"the big apple, k eights, post gress!",
		"nothing matches here",
	}

	for _, input := range inputs {
		once := Apply(input, rules)
		twice := Apply(once.Text, rules)
		require.Equal(t, once.Text, twice.Text, input)
	}
}

func TestMatcherIsSafeForConcurrentUse(t *testing.T) {
	t.Parallel()

	matcher := Compile([]ReplacementRule{mustRule(t, "dog", 0, "cat")})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "my dog sat", matcher.Apply("my cat sat").Text)
		}()
	}
	wg.Wait()
}

func TestCompileCopiesRuleSlice(t *testing.T) {
	t.Parallel()

	rules := []ReplacementRule{mustRule(t, "dog", 0, "cat")}
	matcher := Compile(rules)
	rules[0].Replacement = "mutated"

	require.Equal(t, "dog", matcher.Apply("cat").Text)
}
