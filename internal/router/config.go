package router

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tierd/internal/backend"
	"tierd/internal/classifier"
	"tierd/internal/resource"
	"tierd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultWarningThreshold = 0.8
	defaultIdleInterval     = 60 * time.Second
)

// Config holds the collaborators and tunables of a Router.
type Config struct {
	Profiles map[types.Tier]types.TierProfile
	// WarningThreshold is the used ratio above which a switch-up is refused.
	WarningThreshold float64
	DeviceIndex      int
	SystemPrompt     string

	Backend    backend.Backend
	Classifier *classifier.Classifier
	Monitor    resource.Monitor
	Confirmer  resource.Confirmer
	Publisher  EventPublisher

	Logger zerolog.Logger
	Now    func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Profiles == nil {
		c.Profiles = types.DefaultTierProfiles()
	}
	if c.WarningThreshold <= 0 {
		c.WarningThreshold = defaultWarningThreshold
	}
	if c.Classifier == nil {
		c.Classifier = classifier.New(classifier.Config{})
	}
	if c.Monitor == nil {
		c.Monitor = resource.None{}
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// ValidateProfiles checks that every tier has a model and that estimated
// memory grows with the tier.
func ValidateProfiles(p map[types.Tier]types.TierProfile) error {
	prev := -1
	for _, t := range types.AllTiers() {
		prof, ok := p[t]
		if !ok {
			return fmt.Errorf("tier %s: missing profile", t)
		}
		if prof.ModelID == "" {
			return fmt.Errorf("tier %s: empty model id", t)
		}
		if prof.EstimatedMB <= prev {
			return fmt.Errorf("tier %s: estimated_mb %d must exceed %d", t, prof.EstimatedMB, prev)
		}
		if prof.InvocationTimeoutSec <= 0 {
			return fmt.Errorf("tier %s: invocation timeout must be positive", t)
		}
		if prof.IdleUnloadSec < 0 {
			return fmt.Errorf("tier %s: idle unload must not be negative", t)
		}
		prev = prof.EstimatedMB
	}
	return nil
}
