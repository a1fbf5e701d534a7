package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tierd/pkg/types"
)

func TestClassify_CommandQuestionShortcut(t *testing.T) {
	c := New(Config{})
	res := c.Classify("Welcher Befehl zeigt die Festplattenbelegung an?", "")

	assert.Equal(t, types.TierLight, res.Tier)
	assert.Equal(t, RuleShortcut, res.Rule)
	assert.Less(t, res.Score, 0.3)
	assert.Contains(t, res.MatchedSignals, "shortcut:which_command")
	assert.Contains(t, res.Reasoning, "shortcut")
}

func TestClassify_MathOptimizationForcedHeavy(t *testing.T) {
	c := New(Config{})
	res := c.Classify("Bestimme die mathematisch optimale Puffergröße für I/O-Operationen", "")

	assert.Equal(t, types.TierHeavy, res.Tier)
	assert.Equal(t, RuleForcedTier, res.Rule)
	assert.GreaterOrEqual(t, res.Score, 0.5)
	assert.Contains(t, res.MatchedSignals, "forced:math_verb_optimum")
}

func TestClassify_ProgrammingOverridesMath(t *testing.T) {
	c := New(Config{})
	res := c.Classify("Schreibe eine Python-Funktion zur Berechnung von Fibonacci-Zahlen", "")

	assert.Equal(t, types.TierSpecialized, res.Tier)
	assert.Equal(t, RuleForcedTier, res.Rule)
	assert.Contains(t, res.MatchedSignals, "forced:fibonacci")
	assert.Contains(t, res.Reasoning, "programming task")
}

func TestClassify_HintHonouredAfterForcedRules(t *testing.T) {
	c := New(Config{})

	res := c.Classify("Hallo, wie geht es dir?", "heavy")
	assert.Equal(t, types.TierHeavy, res.Tier)
	assert.Equal(t, RuleHint, res.Rule)

	// Shortcuts take precedence over hints.
	res = c.Classify("Welcher Befehl zeigt die Festplattenbelegung an?", "heavy")
	assert.Equal(t, types.TierLight, res.Tier)

	// Unknown hints fall through to the score.
	res = c.Classify("Hallo, wie geht es dir?", "medium-ish")
	assert.Equal(t, RuleScoreFallback, res.Rule)
	assert.Equal(t, types.TierLight, res.Tier)
}

func TestClassify_ScoreFallbackSpecialized(t *testing.T) {
	c := New(Config{})
	res := c.Classify("Erkläre mir Schritt für Schritt, wie ich einen Docker Container erstelle und deploye", "")

	require.Equal(t, RuleScoreFallback, res.Rule)
	assert.Equal(t, types.TierSpecialized, res.Tier)
	assert.GreaterOrEqual(t, res.Score, 0.4)
	assert.Contains(t, res.MatchedSignals, "keyword:docker")
	assert.Contains(t, res.MatchedSignals, "structure:step_by_step")
	assert.Contains(t, res.Reasoning, "dominant")
	assert.NotEmpty(t, res.Subscores)
}

func TestClassify_ShortKeywordQuestionDowngraded(t *testing.T) {
	c := New(Config{})
	res := c.Classify("Was macht docker?", "")

	assert.Equal(t, RuleScoreFallback, res.Rule)
	assert.Equal(t, types.TierLight, res.Tier)
	assert.Contains(t, res.Reasoning, "downgraded")
}

func TestClassify_LongQueryGoesSpecialized(t *testing.T) {
	c := New(Config{})
	q := strings.Repeat("bitte hilf mir ", 40) // 120 tokens, no keywords
	res := c.Classify(q, "")

	assert.Equal(t, types.TierSpecialized, res.Tier)
	assert.Greater(t, res.Tokens, 100)
}

func TestClassify_Deterministic(t *testing.T) {
	c := New(Config{})
	queries := []string{
		"Welcher Befehl zeigt die Festplattenbelegung an?",
		"Bestimme die mathematisch optimale Puffergröße für I/O-Operationen",
		"Wie kann ich ein Backup mit tar erstellen und auch komprimieren?",
		"",
	}
	for _, q := range queries {
		first := c.Classify(q, "light")
		for i := 0; i < 5; i++ {
			again := c.Classify(q, "light")
			assert.Equal(t, first, again, "query %q", q)
		}
	}
}

func TestClassify_ScoreAlwaysBounded(t *testing.T) {
	c := New(Config{})
	queries := []string{
		"",
		"   ",
		"?",
		strings.Repeat("docker kubernetes python bash git sql ", 60),
		strings.Repeat("löse die gleichung x + y = 10 und x² + y² ∑ ", 30),
		"Erkläre warum und wie: Unterschied zwischen TCP und UDP, Schritt für Schritt analysiere und vergleiche",
	}
	for _, q := range queries {
		for _, hint := range []string{"", "heavy", "nonsense"} {
			res := c.Classify(q, hint)
			assert.GreaterOrEqual(t, res.Score, 0.0)
			assert.LessOrEqual(t, res.Score, 1.0)
			assert.True(t, res.Tier.Valid())
			assert.NotEmpty(t, res.Reasoning)
		}
	}
}

func TestClassify_EmptyQueryIsLight(t *testing.T) {
	c := New(Config{})
	res := c.Classify("", "")
	assert.Equal(t, types.TierLight, res.Tier)
	assert.Equal(t, 0.0, res.Score)
	assert.NotNil(t, res.MatchedSignals)
}

func TestRulesOrder(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, []RuleKind{RuleShortcut, RuleForcedTier, RuleHint, RuleScoreFallback}, c.Rules())
}

func TestNewWithRules_NoFallbackStillYieldsTier(t *testing.T) {
	c := NewWithRules(Config{}, NewShortcutRule())
	res := c.Classify("Erkläre Kubernetes", "")
	assert.Equal(t, types.TierLight, res.Tier)
	assert.Equal(t, RuleScoreFallback, res.Rule)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "puffergrosse fur i/o", Normalize("  Puffergröße   FÜR I/O "))
	assert.Equal(t, "erklare", Normalize("Erkläre"))
	assert.Equal(t, "", Normalize(""))
}

func TestClassifyInContext_PatternsSeeOnlyCurrentQuery(t *testing.T) {
	c := New(Config{})
	enhanced := "Context from previous conversation:\nPrevious Q: Welcher Befehl zeigt die Festplattenbelegung an?\n\n" +
		"Current query: Bestimme die mathematisch optimale Puffergröße für I/O-Operationen"

	res := c.ClassifyInContext("Bestimme die mathematisch optimale Puffergröße für I/O-Operationen", enhanced, "")
	assert.Equal(t, types.TierHeavy, res.Tier)
	assert.Equal(t, RuleForcedTier, res.Rule)
	assert.NotContains(t, res.MatchedSignals, "shortcut:which_command")

	// The earlier math question does not force every later turn to Heavy.
	enhanced = "Previous Q: Löse das Gleichungssystem x + y = 10\n\nCurrent query: Danke!"
	res = c.ClassifyInContext("Danke!", enhanced, "")
	assert.Equal(t, RuleScoreFallback, res.Rule)

	// Without context it is plain Classify.
	assert.Equal(t, c.Classify("Was macht docker?", ""), c.ClassifyInContext("Was macht docker?", "", ""))
}

func TestKeywordMatcher_WholeWords(t *testing.T) {
	m := newKeywordMatcher([]string{"df", "C++", "ci/cd", "stack trace", "Festplatte", "df"})
	assert.Equal(t, []string{"df", "c++", "ci/cd", "stack trace", "festplatte"}, m.words)

	assert.Equal(t, []string{"df"}, m.match("run df."))
	assert.Empty(t, m.match("dfx und pdf"))
	assert.Equal(t, []string{"c++"}, m.match("ein c++ programm"))
	assert.Empty(t, m.match("c und ci cd"))
	assert.Equal(t, []string{"ci/cd", "stack trace"}, m.match("der stack trace aus ci/cd"))
	assert.Empty(t, m.match("stack-trace"))
	assert.Equal(t, []string{"festplatte"}, m.match(Normalize("Die FESTPLATTE ist voll")))
	assert.Empty(t, m.match(""))
}

func TestClassify_LongContextStaysBounded(t *testing.T) {
	c := New(Config{})
	ctx := strings.Repeat("Previous Q: wie nutze ich docker und bash mit ssh? Previous A: nutze docker run. ", 150)
	res := c.ClassifyInContext("und jetzt?", ctx+"Current query: und jetzt?", "")
	assert.LessOrEqual(t, res.Score, 1.0)
	assert.Contains(t, res.MatchedSignals, "keyword:docker")
}

func BenchmarkClassify_ContextSized(b *testing.B) {
	c := New(Config{})
	q := strings.Repeat("Erkläre mir Schritt für Schritt, wie ich einen Docker Container mit ssh und bash deploye. ", 100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Classify(q, "")
	}
}
