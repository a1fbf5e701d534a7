package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tier identifies one of the escalating inference backends.
type Tier int

const (
	TierLight Tier = iota
	TierSpecialized
	TierHeavy
)

var tierNames = [...]string{"light", "specialized", "heavy"}

// AllTiers returns the tiers in escalation order.
func AllTiers() []Tier { return []Tier{TierLight, TierSpecialized, TierHeavy} }

func (t Tier) String() string {
	if t >= 0 && int(t) < len(tierNames) {
		return tierNames[t]
	}
	return "unknown"
}

// Valid reports whether t is one of the three known tiers.
func (t Tier) Valid() bool { return t >= TierLight && t <= TierHeavy }

// ParseTier accepts the canonical names plus the aliases used by upstream
// hint producers ("fast", "code").
func ParseTier(s string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "light", "fast", "small":
		return TierLight, true
	case "specialized", "specialised", "code", "coder":
		return TierSpecialized, true
	case "heavy", "large":
		return TierHeavy, true
	}
	return TierLight, false
}

// MarshalJSON encodes the tier by name.
func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts a tier name or its integer value.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var i int
		if err2 := json.Unmarshal(data, &i); err2 != nil {
			return err
		}
		if !Tier(i).Valid() {
			return fmt.Errorf("invalid tier %d", i)
		}
		*t = Tier(i)
		return nil
	}
	v, ok := ParseTier(s)
	if !ok {
		return fmt.Errorf("invalid tier %q", s)
	}
	*t = v
	return nil
}

// TierProfile is the static configuration of one tier.
type TierProfile struct {
	// Model identifier passed to the inference backend.
	// example: llama3.2:3b
	ModelID string `json:"model_id" example:"llama3.2:3b"`
	// Estimated device memory needed to keep the model resident.
	// example: 2000
	EstimatedMB int `json:"estimated_mb" example:"2000"`
	// Per-invocation timeout in seconds.
	// example: 30
	InvocationTimeoutSec int `json:"invocation_timeout_sec" example:"30"`
	// Idle time after which an unload is signalled; 0 keeps the model loaded.
	// example: 600
	IdleUnloadSec int `json:"idle_unload_sec" example:"600"`
	// Human-friendly description.
	Description string `json:"description,omitempty"`
}

// DefaultTierProfiles returns the stock deployment profiles.
func DefaultTierProfiles() map[Tier]TierProfile {
	return map[Tier]TierProfile{
		TierLight: {
			ModelID:              "llama3.2:3b",
			EstimatedMB:          2000,
			InvocationTimeoutSec: 30,
			IdleUnloadSec:        0,
			Description:          "Fast general-purpose model",
		},
		TierSpecialized: {
			ModelID:              "qwen3-coder-30b-local",
			EstimatedMB:          18000,
			InvocationTimeoutSec: 30,
			IdleUnloadSec:        600,
			Description:          "Code and Linux administration model",
		},
		TierHeavy: {
			ModelID:              "llama3.1:70b",
			EstimatedMB:          42000,
			InvocationTimeoutSec: 300,
			IdleUnloadSec:        300,
			Description:          "Heavy model for math and multi-step reasoning",
		},
	}
}
