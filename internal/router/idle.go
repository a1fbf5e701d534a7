package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tierd/pkg/types"
)

// IdleUnloader periodically emits idle_unload events for tiers that have
// been used and then left idle past their IdleUnloadSec.
type IdleUnloader struct {
	r        *Router
	interval time.Duration

	mu        sync.Mutex
	cron      *cron.Cron
	signalled map[types.Tier]time.Time
}

// NewIdleUnloader returns a stopped unloader. interval defaults to 60s;
// cron schedules are second-granular.
func NewIdleUnloader(r *Router, interval time.Duration) *IdleUnloader {
	if interval <= 0 {
		interval = defaultIdleInterval
	}
	return &IdleUnloader{r: r, interval: interval, signalled: make(map[types.Tier]time.Time)}
}

// Start schedules the sweep. Starting twice is an error.
func (u *IdleUnloader) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cron != nil {
		return errors.New("idle unloader already started")
	}
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", u.interval), func() { u.Sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule idle sweep: %w", err)
	}
	c.Start()
	u.cron = c
	u.r.log.Debug().Dur("interval", u.interval).Msg("idle unloader started")
	return nil
}

// Stop cancels the schedule and waits for a running sweep, bounded by ctx.
// Stopping a stopped unloader is a no-op.
func (u *IdleUnloader) Stop(ctx context.Context) error {
	u.mu.Lock()
	c := u.cron
	u.cron = nil
	u.mu.Unlock()
	if c == nil {
		return nil
	}
	done := c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep runs one scan and returns the tiers signalled. Each idle period is
// signalled once; new activity on the tier starts a new period.
func (u *IdleUnloader) Sweep(ctx context.Context) []types.Tier {
	if ctx.Err() != nil {
		return nil
	}
	r := u.r
	now := r.cfg.Now()

	r.mu.Lock()
	last := make(map[types.Tier]time.Time, len(r.lastActivity))
	for t, at := range r.lastActivity {
		last[t] = at
	}
	r.mu.Unlock()

	u.mu.Lock()
	defer u.mu.Unlock()
	var fired []types.Tier
	for _, t := range types.AllTiers() {
		prof := r.cfg.Profiles[t]
		if prof.IdleUnloadSec <= 0 {
			continue
		}
		at, used := last[t]
		if !used {
			continue
		}
		idle := now.Sub(at)
		if idle <= time.Duration(prof.IdleUnloadSec)*time.Second {
			continue
		}
		if sig, ok := u.signalled[t]; ok && sig.Equal(at) {
			continue
		}
		u.signalled[t] = at
		fired = append(fired, t)
		r.markIdle(t)
		idleUnloadsTotal.WithLabelValues(t.String()).Inc()
		r.log.Info().Stringer("tier", t).Str("model", prof.ModelID).Dur("idle", idle).Msg("idle unload")
		r.cfg.Publisher.Publish(Event{
			Name:    EventIdleUnload,
			Tier:    t,
			ModelID: prof.ModelID,
			At:      now,
			Fields:  map[string]any{"idle_seconds": int(idle.Seconds())},
		})
	}
	return fired
}

// markIdle counts the unload and drops the current tier back to Light when
// the unloaded tier was current.
func (r *Router) markIdle(t types.Tier) {
	r.mu.Lock()
	r.idleUnloads++
	if r.current == t {
		r.current = types.TierLight
		currentTierGauge.Set(float64(types.TierLight))
	}
	r.mu.Unlock()
}
