// Package confidence estimates the quality of a generated answer from its
// length, hedging, structure, specificity and generation latency.
package confidence

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// Status labels derived from the score.
const (
	StatusHigh   = "high_confidence"
	StatusMedium = "medium_confidence"
	StatusLow    = "low_confidence_escalate"
)

// Sub-score names.
const (
	FactorLength      = "length"
	FactorUncertainty = "uncertainty"
	FactorStructure   = "structure"
	FactorSpecificity = "specificity"
	FactorTime        = "time"
)

// Weights of the five factors. They sum to 1.
type Weights struct {
	Length      float64 `json:"length" yaml:"length" toml:"length"`
	Uncertainty float64 `json:"uncertainty" yaml:"uncertainty" toml:"uncertainty"`
	Structure   float64 `json:"structure" yaml:"structure" toml:"structure"`
	Specificity float64 `json:"specificity" yaml:"specificity" toml:"specificity"`
	Time        float64 `json:"time" yaml:"time" toml:"time"`
}

// DefaultWeights returns the stock factor weights.
func DefaultWeights() Weights {
	return Weights{Length: 0.3, Uncertainty: 0.25, Structure: 0.2, Specificity: 0.15, Time: 0.1}
}

func (w Weights) zero() bool {
	return w.Length == 0 && w.Uncertainty == 0 && w.Structure == 0 && w.Specificity == 0 && w.Time == 0
}

// Config tunes the scorer. Zero values select defaults.
type Config struct {
	// Scores below EscalateThreshold mark the answer for escalation.
	EscalateThreshold float64 `json:"escalate_threshold" yaml:"escalate_threshold" toml:"escalate_threshold"`
	// Scores at or above HighThreshold are labelled high_confidence.
	HighThreshold float64 `json:"high_threshold" yaml:"high_threshold" toml:"high_threshold"`
	Weights       Weights `json:"weights" yaml:"weights" toml:"weights"`
}

const (
	defaultEscalateThreshold = 0.5
	defaultHighThreshold     = 0.8

	minOptimalLength = 50
	maxOptimalLength = 500
	peakLength       = 200
)

// Metadata carries backend accounting that adjusts the score.
type Metadata struct {
	ResponseTokens int
}

// Result is the outcome of scoring one answer.
type Result struct {
	Score     float64
	Escalate  bool
	Status    string
	Subscores map[string]float64
}

var (
	hedgeWords = []string{
		"maybe", "perhaps", "possibly", "might", "could be", "not sure",
		"i think", "i believe", "probably", "likely", "uncertain",
		"unclear", "depends", "varies", "sometimes", "may be",
	}
	certaintyWords = []string{
		"definitely", "certainly", "always", "never", "exactly",
		"precisely", "specifically", "clearly", "obviously",
	}
	vagueWords = []string{"something", "things", "stuff", "various", "some"}

	listMarkers     = []string{"1.", "2.", "-", "*", ":"}
	truncationTails = []string{"...", "etc", "and so on"}

	sentenceSplit     = regexp.MustCompile(`[.!?]+`)
	technicalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/[a-zA-Z0-9/_-]+`),
		regexp.MustCompile(`sudo\s+\w+`),
		regexp.MustCompile(`\w+\s+-[a-zA-Z]+`),
		regexp.MustCompile(`systemctl\s+\w+`),
		regexp.MustCompile(`chmod\s+\d+`),
	}
)

// Scorer is stateless and safe for concurrent use.
type Scorer struct {
	cfg Config
}

// New returns a scorer with defaults applied.
func New(cfg Config) *Scorer {
	if cfg.EscalateThreshold <= 0 {
		cfg.EscalateThreshold = defaultEscalateThreshold
	}
	if cfg.HighThreshold <= 0 {
		cfg.HighThreshold = defaultHighThreshold
	}
	if cfg.Weights.zero() {
		cfg.Weights = DefaultWeights()
	}
	return &Scorer{cfg: cfg}
}

// Threshold returns the escalation threshold in use.
func (s *Scorer) Threshold() float64 { return s.cfg.EscalateThreshold }

// Score rates answer given the generation latency and backend metadata.
// Empty answers score 0 and always escalate.
func (s *Scorer) Score(answer string, latency time.Duration, md Metadata) Result {
	if strings.TrimSpace(answer) == "" {
		return Result{Score: 0, Escalate: true, Status: StatusLow, Subscores: map[string]float64{}}
	}
	sub := map[string]float64{
		FactorLength:      lengthScore(answer),
		FactorUncertainty: uncertaintyScore(answer),
		FactorStructure:   structureScore(answer),
		FactorSpecificity: specificityScore(answer),
		FactorTime:        timeScore(latency.Seconds()),
	}
	w := s.cfg.Weights
	total := sub[FactorLength]*w.Length +
		sub[FactorUncertainty]*w.Uncertainty +
		sub[FactorStructure]*w.Structure +
		sub[FactorSpecificity]*w.Specificity +
		sub[FactorTime]*w.Time

	switch {
	case md.ResponseTokens > 0 && md.ResponseTokens < 10:
		total *= 0.8
	case md.ResponseTokens > 800:
		total *= 0.9
	}
	total = clamp01(total)
	return Result{
		Score:     total,
		Escalate:  total < s.cfg.EscalateThreshold,
		Status:    s.status(total),
		Subscores: sub,
	}
}

func (s *Scorer) status(score float64) string {
	switch {
	case score >= s.cfg.HighThreshold:
		return StatusHigh
	case score >= s.cfg.EscalateThreshold:
		return StatusMedium
	default:
		return StatusLow
	}
}

func lengthScore(answer string) float64 {
	n := float64(len([]rune(strings.TrimSpace(answer))))
	switch {
	case n < 10:
		return 0.1
	case n < minOptimalLength:
		return 0.4 + n/minOptimalLength*0.4
	case n <= maxOptimalLength:
		return 0.8 + 0.2*(1-math.Abs(n-peakLength)/300)
	default:
		penalty := math.Min(0.3, (n-maxOptimalLength)/1000)
		return math.Max(0.5, 0.8-penalty)
	}
}

func uncertaintyScore(answer string) float64 {
	lower := strings.ToLower(answer)
	score := 0.7
	score -= math.Min(0.4, 0.1*float64(countContained(lower, hedgeWords)))
	score += math.Min(0.2, 0.05*float64(countContained(lower, certaintyWords)))
	return clamp01(score)
}

func structureScore(answer string) float64 {
	score := 0.5
	valid := 0
	for _, s := range sentenceSplit.Split(answer, -1) {
		if len(strings.TrimSpace(s)) > 5 {
			valid++
		}
	}
	if valid >= 2 {
		score += 0.2
	}
	if strings.Contains(answer, "`") || strings.Count(answer, "\n") > 2 {
		score += 0.1
	}
	for _, m := range listMarkers {
		if strings.Contains(answer, m) {
			score += 0.1
			break
		}
	}
	for _, tail := range truncationTails {
		if strings.HasSuffix(answer, tail) {
			score -= 0.1
			break
		}
	}
	return clamp01(score)
}

func specificityScore(answer string) float64 {
	score := 0.5
	hits := 0
	for _, re := range technicalPatterns {
		if re.MatchString(answer) {
			hits++
		}
	}
	score += math.Min(0.3, 0.1*float64(hits))
	score -= math.Min(0.2, 0.05*float64(countContained(strings.ToLower(answer), vagueWords)))
	return clamp01(score)
}

func timeScore(sec float64) float64 {
	switch {
	case sec <= 0:
		return 0.7
	case sec >= 1 && sec <= 10:
		return 0.8
	case sec < 1:
		return 0.6
	case sec <= 30:
		return 0.7 - (sec-10)/100
	default:
		return 0.4
	}
}

func countContained(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
