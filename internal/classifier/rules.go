package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"tierd/pkg/types"
)

// RuleKind names the rule that produced a classification.
type RuleKind string

const (
	RuleShortcut      RuleKind = "shortcut"
	RuleForcedTier    RuleKind = "forced_tier"
	RuleHint          RuleKind = "hint"
	RuleScoreFallback RuleKind = "score_fallback"
)

// Analysis is the per-query input shared by all rules.
type Analysis struct {
	Raw        string
	Normalized string
	// Current is the normalized query being answered. The pattern rules
	// match it alone; it equals Normalized unless prior turns were prepended.
	Current   string
	Hint      string
	Breakdown Breakdown
}

func (a *Analysis) current() string {
	if a.Current != "" {
		return a.Current
	}
	return a.Normalized
}

// Rule is one step of the ordered classification cascade. Evaluate reports
// false when the rule does not apply, letting the next rule run.
type Rule interface {
	Kind() RuleKind
	Evaluate(a *Analysis) (Result, bool)
}

// ShortcutRule routes enumerable command-style questions straight to Light.
type ShortcutRule struct {
	patterns []namedPattern
}

func NewShortcutRule() ShortcutRule { return ShortcutRule{patterns: shortcutPatterns} }

func (ShortcutRule) Kind() RuleKind { return RuleShortcut }

func (r ShortcutRule) Evaluate(a *Analysis) (Result, bool) {
	name, ok := firstMatch(r.patterns, a.current())
	if !ok {
		return Result{}, false
	}
	score := clamp01(min(0.05*float64(a.Breakdown.Tokens), 0.25))
	return Result{
		Tier:           types.TierLight,
		Score:          score,
		Rule:           RuleShortcut,
		MatchedSignals: []string{"shortcut:" + name},
		Reasoning:      fmt.Sprintf("shortcut: command-style question (%s) -> %s", name, types.TierLight),
	}, true
}

// ForcedTierRule sends math and optimization problems to Heavy. When the query
// also asks for a program, the programming task wins and Specialized is chosen.
type ForcedTierRule struct {
	patterns    []namedPattern
	programming *regexp.Regexp
	// Minimum scores reported for the forced tiers.
	HeavyFloor       float64
	SpecializedFloor float64
}

func NewForcedTierRule(heavyFloor, specializedFloor float64) ForcedTierRule {
	return ForcedTierRule{
		patterns:         forcedHeavyPatterns,
		programming:      programmingPattern,
		HeavyFloor:       heavyFloor,
		SpecializedFloor: specializedFloor,
	}
}

func (ForcedTierRule) Kind() RuleKind { return RuleForcedTier }

func (r ForcedTierRule) Evaluate(a *Analysis) (Result, bool) {
	hits := matchAll(r.patterns, a.current())
	if len(hits) == 0 {
		return Result{}, false
	}
	signals := make([]string, 0, len(hits)+1)
	for _, h := range hits {
		signals = append(signals, "forced:"+h)
	}
	if prog := r.programming.FindString(a.current()); prog != "" {
		signals = append(signals, "programming:"+prog)
		return Result{
			Tier:           types.TierSpecialized,
			Score:          clamp01(max(a.Breakdown.Total, r.SpecializedFloor)),
			Rule:           RuleForcedTier,
			MatchedSignals: signals,
			Reasoning: fmt.Sprintf("forced_tier: math pattern (%s) inside a programming task (%s) -> %s",
				hits[0], prog, types.TierSpecialized),
		}, true
	}
	return Result{
		Tier:           types.TierHeavy,
		Score:          clamp01(max(a.Breakdown.Total, r.HeavyFloor)),
		Rule:           RuleForcedTier,
		MatchedSignals: signals,
		Reasoning:      fmt.Sprintf("forced_tier: math/optimization pattern (%s) -> %s", strings.Join(hits, ", "), types.TierHeavy),
	}, true
}

// HintRule honours an upstream hint that names a tier.
type HintRule struct{}

func (HintRule) Kind() RuleKind { return RuleHint }

func (HintRule) Evaluate(a *Analysis) (Result, bool) {
	if strings.TrimSpace(a.Hint) == "" {
		return Result{}, false
	}
	tier, ok := types.ParseTier(a.Hint)
	if !ok {
		return Result{}, false
	}
	return Result{
		Tier:           tier,
		Score:          a.Breakdown.Total,
		Rule:           RuleHint,
		MatchedSignals: []string{"hint:" + tier.String()},
		Reasoning:      fmt.Sprintf("hint: upstream hint %q -> %s (%s)", a.Hint, tier, a.Breakdown.describe()),
	}, true
}

// ScoreFallbackRule maps the composite score to a tier. It always applies.
type ScoreFallbackRule struct {
	HeavyThreshold       float64
	SpecializedThreshold float64
	LongQueryTokens      int
	// Short simple questions below DowngradeBelow are kept on Light even when
	// a domain keyword pushed the score up.
	ShortQueryTokens int
	DowngradeBelow   float64
}

func (ScoreFallbackRule) Kind() RuleKind { return RuleScoreFallback }

func (r ScoreFallbackRule) Evaluate(a *Analysis) (Result, bool) {
	b := a.Breakdown
	var tier types.Tier
	switch {
	case b.Total >= r.HeavyThreshold:
		tier = types.TierHeavy
	case b.Total >= r.SpecializedThreshold || b.Tokens > r.LongQueryTokens:
		tier = types.TierSpecialized
	default:
		tier = types.TierLight
	}

	reason := fmt.Sprintf("score_fallback: %s -> %s", b.describe(), tier)
	if tier != types.TierLight && len(b.Keywords) > 0 && b.Total < r.DowngradeBelow &&
		b.Tokens <= r.ShortQueryTokens && isSimpleQuestion(a.Normalized) {
		reason = fmt.Sprintf("score_fallback: %s; short simple question, %s downgraded -> %s", b.describe(), tier, types.TierLight)
		tier = types.TierLight
	}
	return Result{
		Tier:           tier,
		Score:          b.Total,
		Rule:           RuleScoreFallback,
		MatchedSignals: b.signals(),
		Subscores:      b.Subscores(),
		Reasoning:      reason,
	}, true
}

func isSimpleQuestion(normalized string) bool {
	return strings.HasSuffix(normalized, "?") || questionStart.MatchString(normalized)
}
