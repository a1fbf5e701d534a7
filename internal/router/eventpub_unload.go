package router

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tierd/internal/backend"
)

// UnloadPublisher reacts to idle_unload events by asking the backend to
// evict the model. Other events are ignored.
type UnloadPublisher struct {
	unloader backend.Unloader
	timeout  time.Duration
	log      zerolog.Logger
}

// NewUnloadPublisher returns nil when b cannot unload models.
func NewUnloadPublisher(b backend.Backend, timeout time.Duration, log zerolog.Logger) *UnloadPublisher {
	u, ok := b.(backend.Unloader)
	if !ok {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &UnloadPublisher{unloader: u, timeout: timeout, log: log}
}

func (p *UnloadPublisher) Publish(e Event) {
	if p == nil || e.Name != EventIdleUnload || e.ModelID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.unloader.Unload(ctx, e.ModelID); err != nil {
		p.log.Warn().Err(err).Str("model", e.ModelID).Msg("unload failed")
	}
}
