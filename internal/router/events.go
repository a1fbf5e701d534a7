package router

import (
	"time"

	"tierd/pkg/types"
)

// Event names.
const (
	EventIdleUnload      = "idle_unload"
	EventTierSwitch      = "tier_switch"
	EventBackendFallback = "backend_fallback"
)

// Event is a router lifecycle event.
type Event struct {
	Name    string
	Tier    types.Tier
	ModelID string
	At      time.Time
	Fields  map[string]any
}

// EventPublisher receives events from the router. Publish must not block the
// caller for long and must not panic.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// FanoutPublisher forwards each event to every publisher in order.
type FanoutPublisher []EventPublisher

func (f FanoutPublisher) Publish(e Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(e)
		}
	}
}
