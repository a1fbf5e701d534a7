package classifier

import (
	"tierd/pkg/types"
)

// Config tunes the score fallback and the forced-tier floors. Zero values
// select the defaults.
type Config struct {
	HeavyThreshold       float64 `json:"heavy_threshold" yaml:"heavy_threshold" toml:"heavy_threshold"`
	SpecializedThreshold float64 `json:"specialized_threshold" yaml:"specialized_threshold" toml:"specialized_threshold"`
	LongQueryTokens      int     `json:"long_query_tokens" yaml:"long_query_tokens" toml:"long_query_tokens"`
	ShortQueryTokens     int     `json:"short_query_tokens" yaml:"short_query_tokens" toml:"short_query_tokens"`
	DowngradeBelow       float64 `json:"downgrade_below" yaml:"downgrade_below" toml:"downgrade_below"`
	HeavyFloor           float64 `json:"heavy_floor" yaml:"heavy_floor" toml:"heavy_floor"`
	SpecializedFloor     float64 `json:"specialized_floor" yaml:"specialized_floor" toml:"specialized_floor"`
	// DisableMathNotation drops the math-notation sub-score from the composite.
	DisableMathNotation bool `json:"disable_math_notation" yaml:"disable_math_notation" toml:"disable_math_notation"`
}

const (
	defaultHeavyThreshold       = 0.7
	defaultSpecializedThreshold = 0.4
	defaultLongQueryTokens      = 100
	defaultShortQueryTokens     = 8
	defaultDowngradeBelow       = 0.5
	defaultHeavyFloor           = 0.5
	defaultSpecializedFloor     = 0.4
)

func (c Config) withDefaults() Config {
	if c.HeavyThreshold <= 0 {
		c.HeavyThreshold = defaultHeavyThreshold
	}
	if c.SpecializedThreshold <= 0 {
		c.SpecializedThreshold = defaultSpecializedThreshold
	}
	if c.LongQueryTokens <= 0 {
		c.LongQueryTokens = defaultLongQueryTokens
	}
	if c.ShortQueryTokens <= 0 {
		c.ShortQueryTokens = defaultShortQueryTokens
	}
	if c.DowngradeBelow <= 0 {
		c.DowngradeBelow = defaultDowngradeBelow
	}
	if c.HeavyFloor <= 0 {
		c.HeavyFloor = defaultHeavyFloor
	}
	if c.SpecializedFloor <= 0 {
		c.SpecializedFloor = defaultSpecializedFloor
	}
	return c
}

// Result is the outcome of one classification.
type Result struct {
	Tier types.Tier
	// Score is the complexity estimate, always within [0,1].
	Score          float64
	Rule           RuleKind
	MatchedSignals []string
	// Subscores is set when the score fallback decided the tier.
	Subscores map[string]float64
	Reasoning string
	Tokens    int
}

// Classifier evaluates an ordered rule list; the first matching rule wins.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	cfg        Config
	rules      []Rule
	admin      keywordMatcher
	code       keywordMatcher
	indicators keywordMatcher
}

// New returns a classifier with the standard rule order: shortcut, forced
// tier, upstream hint, score fallback.
func New(cfg Config) *Classifier {
	cfg = cfg.withDefaults()
	return NewWithRules(cfg, DefaultRules(cfg)...)
}

// DefaultRules builds the standard cascade for cfg.
func DefaultRules(cfg Config) []Rule {
	cfg = cfg.withDefaults()
	return []Rule{
		NewShortcutRule(),
		NewForcedTierRule(cfg.HeavyFloor, cfg.SpecializedFloor),
		HintRule{},
		ScoreFallbackRule{
			HeavyThreshold:       cfg.HeavyThreshold,
			SpecializedThreshold: cfg.SpecializedThreshold,
			LongQueryTokens:      cfg.LongQueryTokens,
			ShortQueryTokens:     cfg.ShortQueryTokens,
			DowngradeBelow:       cfg.DowngradeBelow,
		},
	}
}

// NewWithRules returns a classifier evaluating rules in the given order.
func NewWithRules(cfg Config, rules ...Rule) *Classifier {
	return &Classifier{
		cfg:        cfg.withDefaults(),
		rules:      append([]Rule(nil), rules...),
		admin:      newKeywordMatcher(adminKeywords),
		code:       newKeywordMatcher(codeKeywords),
		indicators: newKeywordMatcher(complexityIndicators),
	}
}

// Rules returns the rule kinds in evaluation order.
func (c *Classifier) Rules() []RuleKind {
	out := make([]RuleKind, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.Kind()
	}
	return out
}

// Analyze normalizes the query and computes its score breakdown.
func (c *Classifier) Analyze(query, hint string) *Analysis {
	n := Normalize(query)
	return &Analysis{
		Raw:        query,
		Normalized: n,
		Current:    n,
		Hint:       hint,
		Breakdown:  c.breakdown(query, n),
	}
}

// Classify maps a query and optional upstream hint to a tier.
func (c *Classifier) Classify(query, hint string) Result {
	return c.classify(c.Analyze(query, hint))
}

// ClassifyInContext classifies a follow-up question. enhanced is query with
// the conversation context prepended: the score fallback weighs all of it,
// while the shortcut and forced-tier patterns only see query.
func (c *Classifier) ClassifyInContext(query, enhanced, hint string) Result {
	if enhanced == "" {
		return c.Classify(query, hint)
	}
	a := c.Analyze(enhanced, hint)
	a.Current = Normalize(query)
	return c.classify(a)
}

func (c *Classifier) classify(a *Analysis) Result {
	for _, r := range c.rules {
		if res, ok := r.Evaluate(a); ok {
			res.Score = clamp01(res.Score)
			res.Tokens = a.Breakdown.Tokens
			if res.MatchedSignals == nil {
				res.MatchedSignals = []string{}
			}
			return res
		}
	}
	// A rule list without a fallback still yields a tier.
	return Result{
		Tier:           types.TierLight,
		Score:          a.Breakdown.Total,
		Rule:           RuleScoreFallback,
		MatchedSignals: a.Breakdown.signals(),
		Subscores:      a.Breakdown.Subscores(),
		Reasoning:      "no rule matched -> light",
		Tokens:         a.Breakdown.Tokens,
	}
}
