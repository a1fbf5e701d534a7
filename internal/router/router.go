// Package router selects the tier that answers a query, checking device
// headroom before switching to a larger model and falling back to the Light
// tier when a backend call fails.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tierd/internal/backend"
	"tierd/internal/classifier"
	"tierd/internal/resource"
	"tierd/pkg/types"
)

// Options adjust a single routing call.
type Options struct {
	// Hint is an upstream tier suggestion passed to the classifier.
	Hint string
	// SkipResourceCheck switches tiers without consulting the monitor.
	SkipResourceCheck bool
	// ClassifyText, when set, is the context-enhanced query. Its score feeds
	// the classification; command and math patterns still match the query.
	ClassifyText string
	// History is rendered into the prompt's context block.
	History string
}

// Decision records how a tier was chosen.
type Decision struct {
	Classification       classifier.Result
	ClassifiedTier       types.Tier
	SelectedTier         types.Tier
	ResourceCheckPassed  bool
	ResourceCheckSkipped bool
	FallbackApplied      bool
	Reasoning            string
	Snapshot             *resource.Snapshot
}

// DispatchResult is a routed and answered query.
type DispatchResult struct {
	Decision     Decision
	Answer       string
	TierUsed     types.Tier
	ModelUsed    string
	Latency      time.Duration
	InputTokens  int
	OutputTokens int
	// Retried is set when the selected tier failed and Light answered.
	Retried bool
}

// Router owns the current tier and per-tier last activity. It is safe for
// concurrent use; the last writer wins on the current tier.
type Router struct {
	cfg Config
	log zerolog.Logger

	mu           sync.Mutex
	current      types.Tier
	lastActivity map[types.Tier]time.Time
	fallbacks    int64
	idleUnloads  int64
}

// New validates the tier profiles and returns a Router in the Light state.
func New(cfg Config) (*Router, error) {
	cfg = cfg.withDefaults()
	if err := ValidateProfiles(cfg.Profiles); err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	currentTierGauge.Set(float64(types.TierLight))
	return &Router{
		cfg:          cfg,
		log:          cfg.Logger,
		current:      types.TierLight,
		lastActivity: make(map[types.Tier]time.Time, len(cfg.Profiles)),
	}, nil
}

// Profile returns the profile of t.
func (r *Router) Profile(t types.Tier) types.TierProfile { return r.cfg.Profiles[t] }

// Classifier returns the classifier the router uses.
func (r *Router) Classifier() *classifier.Classifier { return r.cfg.Classifier }

// Current returns the current tier.
func (r *Router) Current() types.Tier {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Route classifies query, checks resources for a switch-up and commits the
// selected tier as current. It never fails: monitoring problems are absorbed
// into the decision.
func (r *Router) Route(ctx context.Context, query string, opts Options) Decision {
	cls := r.cfg.Classifier.ClassifyInContext(query, opts.ClassifyText, opts.Hint)
	d := Decision{
		Classification:      cls,
		ClassifiedTier:      cls.Tier,
		SelectedTier:        cls.Tier,
		ResourceCheckPassed: true,
	}
	reasons := []string{fmt.Sprintf("classified %s (%s)", cls.Tier, cls.Reasoning)}

	current := r.Current()
	target := r.cfg.Profiles[cls.Tier]
	cur := r.cfg.Profiles[current]

	switch {
	case opts.SkipResourceCheck:
		d.ResourceCheckSkipped = true
		reasons = append(reasons, "resource check skipped by request")
	case target.EstimatedMB <= cur.EstimatedMB:
		d.ResourceCheckSkipped = true
		reasons = append(reasons, fmt.Sprintf("no switch-up from %s", current))
	default:
		ok, why, reason, snap := r.checkResources(ctx, cls.Tier, target)
		d.Snapshot = snap
		reasons = append(reasons, why)
		if !ok {
			d.ResourceCheckPassed = false
			d.FallbackApplied = true
			if cur.EstimatedMB <= target.EstimatedMB {
				d.SelectedTier = current
			} else {
				d.SelectedTier = types.TierLight
			}
			reasons = append(reasons, fmt.Sprintf("fallback to %s", d.SelectedTier))
			fallbacksTotal.WithLabelValues(reason).Inc()
			r.mu.Lock()
			r.fallbacks++
			r.mu.Unlock()
		}
	}
	d.Reasoning = strings.Join(reasons, "; ")

	prev := r.commit(d.SelectedTier)
	tierSelectionsTotal.WithLabelValues(d.ClassifiedTier.String(), d.SelectedTier.String()).Inc()
	if prev != d.SelectedTier {
		r.cfg.Publisher.Publish(Event{
			Name:    EventTierSwitch,
			Tier:    d.SelectedTier,
			ModelID: r.cfg.Profiles[d.SelectedTier].ModelID,
			At:      r.cfg.Now(),
			Fields:  map[string]any{"from": prev.String()},
		})
	}
	r.log.Debug().
		Stringer("classified", d.ClassifiedTier).
		Stringer("selected", d.SelectedTier).
		Bool("fallback", d.FallbackApplied).
		Float64("score", cls.Score).
		Msg("route")
	return d
}

// checkResources reports whether target fits, a human readable reason, a
// metric label for failures and the snapshot taken (nil when unavailable).
func (r *Router) checkResources(ctx context.Context, tier types.Tier, target types.TierProfile) (bool, string, string, *resource.Snapshot) {
	snap, err := r.cfg.Monitor.Snapshot(ctx, r.cfg.DeviceIndex)
	if err != nil {
		if !errors.Is(err, resource.ErrUnavailable) {
			r.log.Warn().Err(err).Msg("resource snapshot failed")
		}
		return true, "resource monitoring unavailable, proceeding", "", nil
	}
	if snap.UsedRatio > r.cfg.WarningThreshold || snap.FreeMB < target.EstimatedMB {
		return false, fmt.Sprintf("insufficient resources on %s: %d MB free, %d MB needed, %.0f%% used",
			snap.DeviceLabel, snap.FreeMB, target.EstimatedMB, snap.UsedRatio*100), reasonResource, &snap
	}
	if r.cfg.Confirmer != nil && !r.cfg.Confirmer.ConfirmSwitch(ctx, tier.String(), target.EstimatedMB) {
		return false, "switch to " + tier.String() + " declined", reasonDeclined, &snap
	}
	return true, fmt.Sprintf("resources ok: %d MB free", snap.FreeMB), "", &snap
}

// commit sets the current tier, refreshes its activity and returns the
// previous tier.
func (r *Router) commit(t types.Tier) types.Tier {
	r.mu.Lock()
	prev := r.current
	r.current = t
	r.lastActivity[t] = r.cfg.Now()
	r.mu.Unlock()
	currentTierGauge.Set(float64(t))
	return prev
}

// Dispatch routes query and invokes the selected tier. A failure on a
// non-Light tier is retried once on Light; if that fails too, or Light was
// selected in the first place, the error is ServiceUnavailable.
func (r *Router) Dispatch(ctx context.Context, query string, opts Options) (DispatchResult, error) {
	if r.cfg.Backend == nil {
		return DispatchResult{}, noBackendError{}
	}
	d := r.Route(ctx, query, opts)
	prompt := backend.BuildPrompt(r.cfg.SystemPrompt, opts.History, query)
	out := DispatchResult{Decision: d, TierUsed: d.SelectedTier}

	res, err := r.invoke(ctx, d.SelectedTier, prompt)
	if err != nil {
		// The caller's own deadline or cancellation leaves nothing to retry with.
		if cerr := ctx.Err(); cerr != nil {
			return out, fmt.Errorf("dispatch on %s: %w", d.SelectedTier, cerr)
		}
		if d.SelectedTier == types.TierLight {
			return out, ErrServiceUnavailable(types.TierLight, err)
		}
		r.log.Warn().Err(err).Stringer("tier", d.SelectedTier).Msg("backend failed, retrying on light")
		fallbacksTotal.WithLabelValues(reasonBackend).Inc()
		r.mu.Lock()
		r.fallbacks++
		r.mu.Unlock()
		r.cfg.Publisher.Publish(Event{
			Name:    EventBackendFallback,
			Tier:    d.SelectedTier,
			ModelID: r.cfg.Profiles[d.SelectedTier].ModelID,
			At:      r.cfg.Now(),
			Fields:  map[string]any{"error": err.Error()},
		})

		out.Retried = true
		out.TierUsed = types.TierLight
		out.Decision.FallbackApplied = true
		out.Decision.Reasoning += fmt.Sprintf("; %s failed (%v), retried on light", d.SelectedTier, err)
		r.commit(types.TierLight)
		res, err = r.invoke(ctx, types.TierLight, prompt)
		if err != nil {
			return out, ErrServiceUnavailable(types.TierLight, err)
		}
	}
	out.Answer = res.Text
	out.ModelUsed = r.cfg.Profiles[out.TierUsed].ModelID
	out.Latency = res.Duration
	out.InputTokens = res.InputTokens
	out.OutputTokens = res.OutputTokens
	return out, nil
}

func (r *Router) invoke(ctx context.Context, t types.Tier, prompt string) (backend.Result, error) {
	prof := r.cfg.Profiles[t]
	timeout := time.Duration(prof.InvocationTimeoutSec) * time.Second
	start := time.Now()
	res, err := r.cfg.Backend.Invoke(ctx, prof.ModelID, prompt, timeout)
	outcome := "ok"
	switch {
	case backend.IsTimeout(err):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	backendDuration.WithLabelValues(t.String(), outcome).Observe(time.Since(start).Seconds())
	if err == nil && res.Duration == 0 {
		res.Duration = time.Since(start)
	}
	return res, err
}
