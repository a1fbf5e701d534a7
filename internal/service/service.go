// Package service wires the classifier, router, session manager, confidence
// scorer and task registry into the request flow served over HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"tierd/internal/backend"
	"tierd/internal/classifier"
	"tierd/internal/confidence"
	"tierd/internal/resource"
	"tierd/internal/router"
	"tierd/internal/session"
	"tierd/internal/tasks"
	"tierd/pkg/types"
)

// Query length bounds, counted in characters after trimming.
const (
	MinQueryChars = 3
	MaxQueryChars = 2000
)

// Config holds the tunables of a Service. Zero values select defaults.
type Config struct {
	Profiles         map[types.Tier]types.TierProfile
	WarningThreshold float64
	DeviceIndex      int
	SystemPrompt     string
	Classifier       classifier.Config

	// IdleInterval is the period of the idle-unload sweep.
	IdleInterval time.Duration
	// UnloadTimeout bounds one backend unload call triggered by an idle sweep.
	UnloadTimeout time.Duration
	// SessionCleanupInterval enables periodic removal of expired sessions.
	// Zero disables it.
	SessionCleanupInterval time.Duration

	Session    session.Config
	Confidence confidence.Config

	Logger zerolog.Logger
	Now    func() time.Time
}

// Deps are the external collaborators of a Service. Backend is required.
type Deps struct {
	Backend   backend.Backend
	Monitor   resource.Monitor
	Confirmer resource.Confirmer
	// Publisher receives router events in addition to the backend unloader.
	Publisher router.EventPublisher
	// Store backs the session manager; nil selects an in-memory store. The
	// service closes it on Stop.
	Store session.Store
	// Tasks defaults to tasks.Default().
	Tasks *tasks.Registry
}

// Service is the request-facing facade. Create it with New, then Start it;
// Stop releases the scheduled jobs and the session store.
type Service struct {
	cfg      Config
	log      zerolog.Logger
	router   *router.Router
	idle     *router.IdleUnloader
	sessions *session.Manager
	scorer   *confidence.Scorer
	tasks    *tasks.Registry
	started  time.Time

	mu      sync.Mutex
	running bool
	stopped bool
	cleanup *cron.Cron
}

// New assembles a stopped Service.
func New(cfg Config, deps Deps) (*Service, error) {
	if deps.Backend == nil {
		return nil, errors.New("service: backend is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	pub := router.FanoutPublisher{deps.Publisher}
	if u := router.NewUnloadPublisher(deps.Backend, cfg.UnloadTimeout, cfg.Logger); u != nil {
		pub = append(pub, u)
	}
	r, err := router.New(router.Config{
		Profiles:         cfg.Profiles,
		WarningThreshold: cfg.WarningThreshold,
		DeviceIndex:      cfg.DeviceIndex,
		SystemPrompt:     cfg.SystemPrompt,
		Backend:          deps.Backend,
		Classifier:       classifier.New(cfg.Classifier),
		Monitor:          deps.Monitor,
		Confirmer:        deps.Confirmer,
		Publisher:        pub,
		Logger:           cfg.Logger,
		Now:              cfg.Now,
	})
	if err != nil {
		return nil, err
	}
	scfg := cfg.Session
	scfg.Logger = cfg.Logger
	if scfg.Now == nil {
		scfg.Now = cfg.Now
	}
	reg := deps.Tasks
	if reg == nil {
		reg = tasks.Default()
	}
	return &Service{
		cfg:      cfg,
		log:      cfg.Logger,
		router:   r,
		idle:     router.NewIdleUnloader(r, cfg.IdleInterval),
		sessions: session.NewManager(scfg, deps.Store),
		scorer:   confidence.New(cfg.Confidence),
		tasks:    reg,
		started:  cfg.Now(),
	}, nil
}

// Start schedules the idle-unload sweep and, when configured, the session
// cleanup job. ctx bounds the scheduled work.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return notRunningError{}
	}
	if s.running {
		return errors.New("service already started")
	}
	if err := s.idle.Start(ctx); err != nil {
		return err
	}
	if iv := s.cfg.SessionCleanupInterval; iv > 0 {
		c := cron.New()
		if _, err := c.AddFunc(fmt.Sprintf("@every %s", iv), func() { s.cleanupSessions(ctx) }); err != nil {
			_ = s.idle.Stop(ctx)
			return fmt.Errorf("schedule session cleanup: %w", err)
		}
		c.Start()
		s.cleanup = c
	}
	s.running = true
	s.log.Info().Int("tasks", len(s.tasks.List())).Msg("service started")
	return nil
}

// Stop cancels the scheduled jobs, waiting for running ones within ctx, and
// closes the session store. It is safe to call more than once.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.running = false
	c := s.cleanup
	s.cleanup = nil
	s.mu.Unlock()

	var errs []error
	if err := s.idle.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop idle unloader: %w", err))
	}
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("stop session cleanup: %w", ctx.Err()))
		}
	}
	if err := s.sessions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close session store: %w", err))
	}
	s.log.Info().Msg("service stopped")
	return errors.Join(errs...)
}

// Ready reports whether the service has been started and not stopped.
func (s *Service) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) cleanupSessions(ctx context.Context) {
	n, err := s.sessions.CleanupExpired(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("session cleanup failed")
		return
	}
	sessionsExpiredTotal.Add(float64(n))
}

// Router exposes the underlying router.
func (s *Service) Router() *router.Router { return s.router }

// Sessions exposes the session manager.
func (s *Service) Sessions() *session.Manager { return s.sessions }

func validateQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	n := utf8.RuneCountInString(q)
	switch {
	case n < MinQueryChars:
		return "", ErrInvalidQuery("must be at least %d characters", MinQueryChars)
	case n > MaxQueryChars:
		return "", ErrInvalidQuery("must be at most %d characters", MaxQueryChars)
	}
	return q, nil
}

// Infer answers req: it loads or creates the session, optionally enhances
// the query with conversation context, dispatches to the routed tier, scores
// the answer and records the turn.
func (s *Service) Infer(ctx context.Context, req types.InferRequest) (types.InferResponse, error) {
	start := s.cfg.Now()
	q, err := validateQuery(req.Query)
	if err != nil {
		inferRequestsTotal.WithLabelValues("invalid").Inc()
		return types.InferResponse{}, err
	}
	if !s.Ready() {
		return types.InferResponse{}, notRunningError{}
	}
	sess, created, err := s.sessions.GetOrCreate(ctx, req.SessionID)
	if err != nil {
		inferRequestsTotal.WithLabelValues("error").Inc()
		return types.InferResponse{}, err
	}

	opts := router.Options{Hint: req.TierHint, SkipResourceCheck: req.SkipResourceCheck}
	turnsUsed := 0
	if req.ContextEnabled == nil || *req.ContextEnabled {
		if h := s.sessions.BuildContext(sess); h != "" {
			opts.History = h
			opts.ClassifyText = s.sessions.EnhanceQuery(sess, q)
			turnsUsed = s.sessions.ContextTurns(sess)
		}
	}

	res, err := s.router.Dispatch(ctx, q, opts)
	if err != nil {
		outcome := "error"
		switch {
		case router.IsServiceUnavailable(err):
			outcome = "unavailable"
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
		}
		inferRequestsTotal.WithLabelValues(outcome).Inc()
		return types.InferResponse{}, err
	}

	sc := s.scorer.Score(res.Answer, res.Latency, confidence.Metadata{ResponseTokens: res.OutputTokens})
	tier := res.TierUsed.String()
	confidenceScore.WithLabelValues(tier).Observe(sc.Score)
	if sc.Escalate {
		escalationsTotal.WithLabelValues(tier).Inc()
	}

	cls := res.Decision.Classification
	if _, err := s.sessions.AppendTurn(ctx, sess.ID, session.Turn{
		Query:           q,
		Response:        res.Answer,
		TierUsed:        res.TierUsed,
		ComplexityScore: cls.Score,
		Reasoning:       res.Decision.Reasoning,
	}); err != nil {
		// The answer is still returned; only the history entry is lost.
		s.log.Error().Err(err).Str("session", sess.ID).Msg("record turn failed")
	}
	inferRequestsTotal.WithLabelValues("ok").Inc()

	s.log.Debug().
		Str("session", sess.ID).
		Bool("new_session", created).
		Stringer("classified", res.Decision.ClassifiedTier).
		Str("tier", tier).
		Float64("confidence", sc.Score).
		Msg("query answered")

	return types.InferResponse{
		Answer:            res.Answer,
		TierUsed:          tier,
		ClassifiedTier:    res.Decision.ClassifiedTier.String(),
		ModelUsed:         res.ModelUsed,
		ComplexityScore:   cls.Score,
		ConfidenceScore:   sc.Score,
		Escalate:          sc.Escalate,
		Status:            sc.Status,
		FallbackApplied:   res.Decision.FallbackApplied,
		SessionID:         sess.ID,
		Reasoning:         res.Decision.Reasoning,
		ProcessingTimeSec: s.cfg.Now().Sub(start).Seconds(),
		ContextTurnsUsed:  turnsUsed,
		ContextEnhanced:   opts.History != "",
	}, nil
}

// Classify runs the classifier only; no backend is invoked and no tier is
// committed.
func (s *Service) Classify(req types.ClassifyRequest) (types.ClassifyResponse, error) {
	q, err := validateQuery(req.Query)
	if err != nil {
		return types.ClassifyResponse{}, err
	}
	res := s.router.Classifier().Classify(q, req.TierHint)
	return types.ClassifyResponse{
		Tier:            res.Tier.String(),
		ComplexityScore: res.Score,
		Rule:            string(res.Rule),
		MatchedSignals:  res.MatchedSignals,
		Subscores:       res.Subscores,
		Reasoning:       res.Reasoning,
	}, nil
}

// Status reports router, resource and session state. Backends are health-checked
// once per tier.
func (s *Service) Status(ctx context.Context) types.StatusResponse {
	now := s.cfg.Now()
	st := s.router.Status(ctx, true)
	out := types.StatusResponse{
		State:            "operational",
		CurrentTier:      st.Current.String(),
		IdleUnloadsTotal: uint64(st.IdleUnloads),
		FallbacksTotal:   uint64(st.Fallbacks),
		UptimeSeconds:    int64(now.Sub(s.started).Seconds()),
		ServerTimeUnix:   now.Unix(),
	}
	for _, ts := range st.Tiers {
		v := types.TierStatus{
			Tier:        ts.Tier.String(),
			Profile:     ts.Profile,
			Current:     ts.Current,
			IdleSeconds: -1,
			Available:   ts.Available,
		}
		if !ts.LastActivity.IsZero() {
			v.LastActivityUnix = ts.LastActivity.Unix()
			v.IdleSeconds = int64(ts.Idle.Seconds())
		}
		// Light is the fallback of every path; without it nothing can answer.
		if ts.Tier == types.TierLight && ts.Available != nil && !*ts.Available {
			out.State = "degraded"
		}
		out.Tiers = append(out.Tiers, v)
	}
	if st.Resource != nil {
		out.Resource = types.ResourceStatus{
			MonitoringAvailable: true,
			DeviceLabel:         st.Resource.DeviceLabel,
			TotalMB:             st.Resource.TotalMB,
			UsedMB:              st.Resource.UsedMB,
			FreeMB:              st.Resource.FreeMB,
			UsedRatio:           st.Resource.UsedRatio,
		}
	} else if st.ResourceErr != nil && !errors.Is(st.ResourceErr, resource.ErrUnavailable) {
		out.Resource.Error = st.ResourceErr.Error()
	}
	if n, err := s.sessions.Count(ctx); err == nil {
		out.ActiveSessions = n
	} else {
		s.log.Warn().Err(err).Msg("count sessions failed")
	}
	return out
}

// SessionStats summarises session id.
func (s *Service) SessionStats(ctx context.Context, id string) (types.SessionStatsResponse, error) {
	st, err := s.sessions.Stats(ctx, id)
	if err != nil {
		return types.SessionStatsResponse{}, err
	}
	if st == nil {
		return types.SessionStatsResponse{}, ErrSessionNotFound(id)
	}
	return types.SessionStatsResponse{
		SessionID:         st.SessionID,
		TotalTurns:        st.TotalTurns,
		DurationMinutes:   st.Duration.Minutes(),
		TierUsage:         st.TierUsage,
		AverageComplexity: st.AverageComplexity,
		Topics:            st.Topics,
		LastActivity:      st.LastActivity.UTC().Format(time.RFC3339),
		Expired:           st.Expired,
	}, nil
}

// DeleteSession drops session id.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound(id)
	}
	return s.sessions.Delete(ctx, id)
}

// Tasks lists the registered task types.
func (s *Service) Tasks() []types.TaskInfo {
	hs := s.tasks.List()
	out := make([]types.TaskInfo, 0, len(hs))
	for _, h := range hs {
		out = append(out, types.TaskInfo{Type: h.Type(), Description: h.Description()})
	}
	return out
}

// PlanTask renders the command plan for a task. Nothing is executed.
func (s *Service) PlanTask(typ string, params map[string]any) (types.TaskPlanResponse, error) {
	p, err := s.tasks.Plan(typ, params)
	switch {
	case tasks.IsUnknownTask(err):
		return types.TaskPlanResponse{}, ErrTaskNotFound(typ)
	case tasks.IsInvalidParam(err):
		return types.TaskPlanResponse{}, ErrInvalidQuery("%v", err)
	case err != nil:
		return types.TaskPlanResponse{}, err
	}
	return types.TaskPlanResponse{
		Type:                 p.Type,
		Parameters:           p.Parameters,
		Commands:             p.Commands,
		Description:          p.Description,
		RequiresConfirmation: p.RequiresConfirmation,
		ConfirmationMessage:  p.ConfirmationMessage,
	}, nil
}
