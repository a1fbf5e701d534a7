package router

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"tierd/internal/resource"
	"tierd/pkg/types"
)

// TierState is the runtime view of one tier.
type TierState struct {
	Tier         types.Tier
	Profile      types.TierProfile
	Current      bool
	LastActivity time.Time
	Idle         time.Duration
	// Available is nil unless health checks were requested.
	Available *bool
}

// Status is a snapshot of the router.
type Status struct {
	Current     types.Tier
	Tiers       []TierState
	Resource    *resource.Snapshot
	ResourceErr error
	Fallbacks   int64
	IdleUnloads int64
}

// Status reports the router state. With health set, backends are health-checked in
// parallel, one check per tier.
func (r *Router) Status(ctx context.Context, health bool) Status {
	now := r.cfg.Now()
	r.mu.Lock()
	st := Status{Current: r.current, Fallbacks: r.fallbacks, IdleUnloads: r.idleUnloads}
	for _, t := range types.AllTiers() {
		ts := TierState{Tier: t, Profile: r.cfg.Profiles[t], Current: t == r.current}
		if at, ok := r.lastActivity[t]; ok {
			ts.LastActivity = at
			ts.Idle = now.Sub(at)
		}
		st.Tiers = append(st.Tiers, ts)
	}
	r.mu.Unlock()

	if snap, err := r.cfg.Monitor.Snapshot(ctx, r.cfg.DeviceIndex); err == nil {
		st.Resource = &snap
	} else {
		st.ResourceErr = err
	}

	if health && r.cfg.Backend != nil {
		g, gctx := errgroup.WithContext(ctx)
		for i := range st.Tiers {
			i := i
			g.Go(func() error {
				ok := r.cfg.Backend.HealthCheck(gctx, st.Tiers[i].Profile.ModelID)
				st.Tiers[i].Available = &ok
				return nil
			})
		}
		_ = g.Wait()
	}
	return st
}
