package router

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tierd/internal/backend"
	"tierd/internal/classifier"
	"tierd/internal/resource"
	"tierd/pkg/types"
)

func TestRoute_InsufficientMemoryFallsBack(t *testing.T) {
	f := newFixture(t, resource.Static{Label: "gpu0", TotalMB: 48000, UsedMB: 47500})
	d := f.r.Route(context.Background(), specializedQuery, Options{})

	assert.Equal(t, types.TierSpecialized, d.ClassifiedTier)
	assert.Equal(t, types.TierLight, d.SelectedTier)
	assert.True(t, d.FallbackApplied)
	assert.False(t, d.ResourceCheckPassed)
	assert.False(t, d.ResourceCheckSkipped)
	require.NotNil(t, d.Snapshot)
	assert.Equal(t, 500, d.Snapshot.FreeMB)
	assert.Contains(t, d.Reasoning, "insufficient resources")
	assert.Equal(t, types.TierLight, f.r.Current())
}

func TestRoute_FallbackKeepsCurrentTier(t *testing.T) {
	mon := &switchableMonitor{snap: plenty}
	f := newFixture(t, mon)
	d := f.r.Route(context.Background(), specializedQuery, Options{})
	require.Equal(t, types.TierSpecialized, d.SelectedTier)

	mon.set(resource.Static{TotalMB: 48000, UsedMB: 40000})
	d = f.r.Route(context.Background(), heavyQuery, Options{})
	assert.Equal(t, types.TierHeavy, d.ClassifiedTier)
	assert.Equal(t, types.TierSpecialized, d.SelectedTier)
	assert.True(t, d.FallbackApplied)
}

func TestRoute_HighUsedRatioFails(t *testing.T) {
	f := newFixture(t, resource.Static{TotalMB: 1_000_000, UsedMB: 850_000})
	d := f.r.Route(context.Background(), heavyQuery, Options{})
	assert.True(t, d.FallbackApplied)
	assert.Equal(t, types.TierLight, d.SelectedTier)
}

func TestRoute_SwitchUpAndDown(t *testing.T) {
	f := newFixture(t, plenty)
	ctx := context.Background()

	d := f.r.Route(ctx, heavyQuery, Options{})
	assert.Equal(t, types.TierHeavy, d.SelectedTier)
	assert.True(t, d.ResourceCheckPassed)
	assert.False(t, d.ResourceCheckSkipped)
	assert.NotNil(t, d.Snapshot)

	d = f.r.Route(ctx, specializedQuery, Options{})
	assert.Equal(t, types.TierSpecialized, d.SelectedTier)
	assert.True(t, d.ResourceCheckSkipped)
	assert.Nil(t, d.Snapshot)
	assert.Equal(t, types.TierSpecialized, f.r.Current())

	switches := f.pub.Named(EventTierSwitch)
	require.Len(t, switches, 2)
	assert.Equal(t, "light", switches[0].Fields["from"])
	assert.Equal(t, types.TierSpecialized, switches[1].Tier)
}

func TestRoute_MonitorUnavailableProceeds(t *testing.T) {
	f := newFixture(t, resource.None{})
	d := f.r.Route(context.Background(), heavyQuery, Options{})
	assert.Equal(t, types.TierHeavy, d.SelectedTier)
	assert.False(t, d.FallbackApplied)
	assert.Nil(t, d.Snapshot)
	assert.Contains(t, d.Reasoning, "unavailable")
}

func TestRoute_ConfirmerDeclines(t *testing.T) {
	var asked []string
	f := newFixture(t, plenty, func(c *Config) {
		c.Confirmer = resource.ConfirmFunc(func(_ context.Context, label string, mb int) bool {
			asked = append(asked, label)
			return mb < 20000
		})
	})
	d := f.r.Route(context.Background(), heavyQuery, Options{})
	assert.True(t, d.FallbackApplied)
	assert.Equal(t, types.TierLight, d.SelectedTier)
	assert.Contains(t, d.Reasoning, "declined")

	d = f.r.Route(context.Background(), specializedQuery, Options{})
	assert.False(t, d.FallbackApplied)
	assert.Equal(t, types.TierSpecialized, d.SelectedTier)
	assert.Equal(t, []string{"heavy", "specialized"}, asked)
}

func TestRoute_SkipResourceCheck(t *testing.T) {
	f := newFixture(t, resource.Static{TotalMB: 4000, UsedMB: 3900})
	d := f.r.Route(context.Background(), heavyQuery, Options{SkipResourceCheck: true})
	assert.Equal(t, types.TierHeavy, d.SelectedTier)
	assert.True(t, d.ResourceCheckSkipped)
	assert.False(t, d.FallbackApplied)
}

func TestRoute_HintAndClassifyText(t *testing.T) {
	f := newFixture(t, plenty)
	d := f.r.Route(context.Background(), "Hallo, wie geht es dir?", Options{Hint: "specialized"})
	assert.Equal(t, types.TierSpecialized, d.ClassifiedTier)

	d = f.r.Route(context.Background(), "und jetzt?", Options{ClassifyText: strings.Repeat("bitte hilf mir ", 40) + "und jetzt?"})
	assert.Equal(t, types.TierSpecialized, d.ClassifiedTier)
}

func TestRoute_ContextDoesNotTriggerPatternRules(t *testing.T) {
	f := newFixture(t, plenty)
	enhance := func(q string) string {
		return "Context from previous conversation:\nPrevious Q: " + lightQuery + "\nPrevious A: df -h\n\nCurrent query: " + q
	}

	d := f.r.Route(context.Background(), heavyQuery, Options{ClassifyText: enhance(heavyQuery)})
	assert.Equal(t, types.TierHeavy, d.ClassifiedTier)
	assert.Equal(t, classifier.RuleForcedTier, d.Classification.Rule)

	d = f.r.Route(context.Background(), "und jetzt?", Options{ClassifyText: enhance("und jetzt?")})
	assert.Equal(t, classifier.RuleScoreFallback, d.Classification.Rule)
}

func TestDispatch_Success(t *testing.T) {
	f := newFixture(t, plenty)
	res, err := f.r.Dispatch(context.Background(), lightQuery, Options{History: "Previous Q: x"})
	require.NoError(t, err)
	assert.Equal(t, types.TierLight, res.TierUsed)
	assert.Equal(t, profiles[types.TierLight].ModelID, res.ModelUsed)
	assert.Equal(t, "ok from "+profiles[types.TierLight].ModelID, res.Answer)
	assert.False(t, res.Retried)
	assert.Equal(t, 3, res.OutputTokens)

	calls := f.be.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 30*time.Second, calls[0].Timeout)
	assert.True(t, strings.HasPrefix(calls[0].Prompt, "SYS\n\nContext: Previous Q: x\n\nQuestion: "+lightQuery))
}

func TestDispatch_HeavyTimeoutRetriesLight(t *testing.T) {
	f := newFixture(t, plenty)
	heavy := profiles[types.TierHeavy].ModelID
	f.be.on(heavy, timeoutErr(heavy))

	res, err := f.r.Dispatch(context.Background(), heavyQuery, Options{})
	require.NoError(t, err)
	assert.True(t, res.Retried)
	assert.Equal(t, types.TierLight, res.TierUsed)
	assert.Equal(t, types.TierHeavy, res.Decision.ClassifiedTier)
	assert.True(t, res.Decision.FallbackApplied)
	assert.Contains(t, res.Decision.Reasoning, "retried on light")
	assert.Equal(t, types.TierLight, f.r.Current())

	calls := f.be.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, heavy, calls[0].Model)
	assert.Equal(t, 300*time.Second, calls[0].Timeout)
	assert.Equal(t, profiles[types.TierLight].ModelID, calls[1].Model)
	assert.Len(t, f.pub.Named(EventBackendFallback), 1)
}

func TestDispatch_LightRetryFailsIsServiceUnavailable(t *testing.T) {
	f := newFixture(t, plenty)
	heavy, light := profiles[types.TierHeavy].ModelID, profiles[types.TierLight].ModelID
	f.be.on(heavy, timeoutErr(heavy))
	f.be.on(light, failErr(light))

	_, err := f.r.Dispatch(context.Background(), heavyQuery, Options{})
	require.Error(t, err)
	assert.True(t, IsServiceUnavailable(err))
	assert.True(t, backend.IsFailure(err))
	assert.Len(t, f.be.Calls(), 2)
}

func TestDispatch_LightFailureIsNotRetried(t *testing.T) {
	f := newFixture(t, plenty)
	light := profiles[types.TierLight].ModelID
	f.be.on(light, failErr(light))

	_, err := f.r.Dispatch(context.Background(), lightQuery, Options{})
	assert.True(t, IsServiceUnavailable(err))
	assert.Len(t, f.be.Calls(), 1)
}

func TestDispatch_CanceledContextNotRetried(t *testing.T) {
	f := newFixture(t, plenty)
	heavy := profiles[types.TierHeavy].ModelID
	ctx, cancel := context.WithCancel(context.Background())
	f.be.on(heavy, func() (backend.Result, error) {
		cancel()
		return backend.Result{}, backend.ErrFailure(heavy, context.Canceled)
	})
	_, err := f.r.Dispatch(ctx, heavyQuery, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsServiceUnavailable(err))
	assert.Len(t, f.be.Calls(), 1)
}

func TestDispatch_CallerDeadlineNotRetried(t *testing.T) {
	f := newFixture(t, plenty)
	heavy := profiles[types.TierHeavy].ModelID
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	f.be.on(heavy, func() (backend.Result, error) {
		<-ctx.Done()
		return backend.Result{}, backend.ErrTimeout(heavy, ctx.Err())
	})
	go func() { time.Sleep(10 * time.Millisecond); cancel() }()

	_, err := f.r.Dispatch(ctx, heavyQuery, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsServiceUnavailable(err))
	assert.Len(t, f.be.Calls(), 1)

	dctx, dcancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer dcancel()
	f.be.on(heavy, func() (backend.Result, error) {
		<-dctx.Done()
		return backend.Result{}, backend.ErrTimeout(heavy, dctx.Err())
	})
	_, err = f.r.Dispatch(dctx, heavyQuery, Options{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsServiceUnavailable(err))
	assert.Len(t, f.be.Calls(), 2)
}

func TestDispatch_NoBackend(t *testing.T) {
	r, err := New(Config{})
	require.NoError(t, err)
	_, err = r.Dispatch(context.Background(), lightQuery, Options{})
	assert.Error(t, err)
}

func TestDispatch_Concurrent(t *testing.T) {
	f := newFixture(t, plenty)
	queries := []string{lightQuery, specializedQuery, heavyQuery}
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			_, err := f.r.Dispatch(context.Background(), q, Options{})
			assert.NoError(t, err)
		}(queries[i%len(queries)])
	}
	wg.Wait()
	assert.True(t, f.r.Current().Valid())
	assert.Len(t, f.be.Calls(), 30)
}

func TestValidateProfiles(t *testing.T) {
	assert.NoError(t, ValidateProfiles(types.DefaultTierProfiles()))

	p := types.DefaultTierProfiles()
	delete(p, types.TierHeavy)
	assert.ErrorContains(t, ValidateProfiles(p), "missing profile")

	p = types.DefaultTierProfiles()
	h := p[types.TierHeavy]
	h.EstimatedMB = 100
	p[types.TierHeavy] = h
	assert.ErrorContains(t, ValidateProfiles(p), "must exceed")

	p = types.DefaultTierProfiles()
	l := p[types.TierLight]
	l.ModelID = ""
	p[types.TierLight] = l
	_, err := New(Config{Profiles: p})
	assert.ErrorContains(t, err, "empty model id")
}

func TestStatus(t *testing.T) {
	f := newFixture(t, plenty)
	f.be.healthy[profiles[types.TierLight].ModelID] = true
	_, err := f.r.Dispatch(context.Background(), lightQuery, Options{})
	require.NoError(t, err)
	f.clock.Advance(10 * time.Second)

	st := f.r.Status(context.Background(), true)
	assert.Equal(t, types.TierLight, st.Current)
	require.Len(t, st.Tiers, 3)
	assert.True(t, st.Tiers[0].Current)
	assert.Equal(t, 10*time.Second, st.Tiers[0].Idle)
	require.NotNil(t, st.Tiers[0].Available)
	assert.True(t, *st.Tiers[0].Available)
	assert.False(t, *st.Tiers[2].Available)
	assert.True(t, st.Tiers[2].LastActivity.IsZero())
	require.NotNil(t, st.Resource)
	assert.Equal(t, 92000, st.Resource.FreeMB)

	st = newFixture(t, resource.None{}).r.Status(context.Background(), false)
	assert.Nil(t, st.Resource)
	assert.ErrorIs(t, st.ResourceErr, resource.ErrUnavailable)
	assert.Nil(t, st.Tiers[0].Available)
}

type switchableMonitor struct {
	mu   sync.Mutex
	snap resource.Static
}

func (m *switchableMonitor) set(s resource.Static) {
	m.mu.Lock()
	m.snap = s
	m.mu.Unlock()
}

func (m *switchableMonitor) Snapshot(ctx context.Context, idx int) (resource.Snapshot, error) {
	m.mu.Lock()
	s := m.snap
	m.mu.Unlock()
	return s.Snapshot(ctx, idx)
}
