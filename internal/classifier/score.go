package classifier

import (
	"fmt"
	"strings"
)

// Sub-score names reported in Result.Subscores.
const (
	SubscoreTokens     = "token_count"
	SubscoreKeywords   = "keyword_density"
	SubscoreIndicators = "complexity_indicators"
	SubscoreStructure  = "structure"
	SubscoreMath       = "math_notation"
)

const (
	keywordDensityCap = 0.4
	indicatorWeight   = 0.1
	indicatorCap      = 0.3
	structureWeight   = 0.1
	mathNotationCap   = 0.5
)

// Breakdown is the composite complexity estimate of one query. It is computed
// once per classification and shared by every rule.
type Breakdown struct {
	Tokens int

	TokenScore     float64
	KeywordScore   float64
	IndicatorScore float64
	StructureScore float64
	MathScore      float64

	// Total is the clamped sum of all sub-scores.
	Total float64

	Keywords     []string
	Indicators   []string
	Structures   []string
	MathPatterns []string
}

func (c *Classifier) breakdown(raw, normalized string) Breakdown {
	b := Breakdown{Tokens: tokenCount(raw)}

	switch {
	case b.Tokens > 100:
		b.TokenScore = 0.3
	case b.Tokens > 50:
		b.TokenScore = 0.2
	case b.Tokens > 20:
		b.TokenScore = 0.1
	}

	b.Keywords = append(c.admin.match(normalized), c.code.match(normalized)...)
	if len(b.Keywords) > 0 {
		density := float64(len(b.Keywords)) / float64(max(b.Tokens, 1))
		b.KeywordScore = min(density*2, keywordDensityCap)
	}

	b.Indicators = c.indicators.match(normalized)
	b.IndicatorScore = min(float64(len(b.Indicators))*indicatorWeight, indicatorCap)

	b.Structures = matchAll(structurePatterns, normalized)
	b.StructureScore = float64(len(b.Structures)) * structureWeight

	if !c.cfg.DisableMathNotation {
		b.MathPatterns = matchAll(mathNotationPatterns, normalized)
		switch n := len(b.MathPatterns); {
		case n >= 3:
			b.MathScore = 0.5
		case n == 2:
			b.MathScore = 0.4
		case n == 1:
			b.MathScore = 0.3
		}
		b.MathScore = min(b.MathScore, mathNotationCap)
	}

	b.Total = clamp01(b.TokenScore + b.KeywordScore + b.IndicatorScore + b.StructureScore + b.MathScore)
	return b
}

// Subscores returns the named sub-scores.
func (b Breakdown) Subscores() map[string]float64 {
	return map[string]float64{
		SubscoreTokens:     b.TokenScore,
		SubscoreKeywords:   b.KeywordScore,
		SubscoreIndicators: b.IndicatorScore,
		SubscoreStructure:  b.StructureScore,
		SubscoreMath:       b.MathScore,
	}
}

// Dominant returns the largest sub-score. Ties resolve in declaration order.
func (b Breakdown) Dominant() (string, float64) {
	order := []struct {
		name string
		v    float64
	}{
		{SubscoreTokens, b.TokenScore},
		{SubscoreKeywords, b.KeywordScore},
		{SubscoreIndicators, b.IndicatorScore},
		{SubscoreStructure, b.StructureScore},
		{SubscoreMath, b.MathScore},
	}
	best := order[0]
	for _, o := range order[1:] {
		if o.v > best.v {
			best = o
		}
	}
	if best.v == 0 {
		return "none", 0
	}
	return best.name, best.v
}

// signals lists every keyword and pattern that contributed to the score.
func (b Breakdown) signals() []string {
	var out []string
	for _, k := range b.Keywords {
		out = append(out, "keyword:"+k)
	}
	for _, k := range b.Indicators {
		out = append(out, "indicator:"+k)
	}
	for _, k := range b.Structures {
		out = append(out, "structure:"+k)
	}
	for _, k := range b.MathPatterns {
		out = append(out, "math:"+k)
	}
	return out
}

func (b Breakdown) describe() string {
	name, v := b.Dominant()
	parts := []string{fmt.Sprintf("score %.2f", b.Total), fmt.Sprintf("dominant %s %.2f", name, v)}
	if len(b.Keywords) > 0 {
		parts = append(parts, "keywords: "+strings.Join(head(b.Keywords, 3), ", "))
	}
	return strings.Join(parts, "; ")
}

func head(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
