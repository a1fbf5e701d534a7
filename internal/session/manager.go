package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tierd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxTurns        = 20
	defaultMaxTags         = 10
	defaultTimeout         = time.Hour
	defaultMaxContextWords = 2000
	defaultContextTurns    = 5
	defaultContextTopics   = 3
	defaultAnswerPreview   = 200

	truncatedMarker = "\n[Context truncated due to length]"
)

// Config tunes a Manager.
type Config struct {
	MaxTurns        int           `json:"max_turns" yaml:"max_turns" toml:"max_turns"`
	MaxTags         int           `json:"max_tags" yaml:"max_tags" toml:"max_tags"`
	Timeout         time.Duration `json:"timeout" yaml:"timeout" toml:"timeout"`
	MaxContextWords int           `json:"max_context_words" yaml:"max_context_words" toml:"max_context_words"`
	// ContextTurns is how many recent turns BuildContext renders.
	ContextTurns int `json:"context_turns" yaml:"context_turns" toml:"context_turns"`
	// AnswerPreview is the rune length at which previous answers are cut.
	AnswerPreview int `json:"answer_preview" yaml:"answer_preview" toml:"answer_preview"`

	Logger zerolog.Logger   `json:"-" yaml:"-" toml:"-"`
	Now    func() time.Time `json:"-" yaml:"-" toml:"-"`
}

func (c Config) withDefaults() Config {
	if c.MaxTurns <= 0 {
		c.MaxTurns = defaultMaxTurns
	}
	if c.MaxTags <= 0 {
		c.MaxTags = defaultMaxTags
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxContextWords <= 0 {
		c.MaxContextWords = defaultMaxContextWords
	}
	if c.ContextTurns <= 0 {
		c.ContextTurns = defaultContextTurns
	}
	if c.AnswerPreview <= 0 {
		c.AnswerPreview = defaultAnswerPreview
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Stats summarises one session.
type Stats struct {
	SessionID         string
	TotalTurns        int
	Duration          time.Duration
	TierUsage         map[string]int
	AverageComplexity float64
	Topics            []string
	LastActivity      time.Time
	Expired           bool
}

// Manager owns session records. AppendTurn calls for the same id are
// serialised; different ids proceed in parallel.
type Manager struct {
	cfg   Config
	store Store
	log   zerolog.Logger

	mu    sync.Mutex
	locks map[string]*idLock
}

type idLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager returns a Manager backed by store. A nil store selects an
// in-memory one.
func NewManager(cfg Config, store Store) *Manager {
	cfg = cfg.withDefaults()
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{cfg: cfg, store: store, log: cfg.Logger, locks: make(map[string]*idLock)}
}

// Timeout returns the configured idle timeout.
func (m *Manager) Timeout() time.Duration { return m.cfg.Timeout }

// GetOrCreate returns the live session for id. Unknown or expired ids get a
// fresh session under the same id; an empty id gets a new random one. The
// boolean reports whether a session was created.
func (m *Manager) GetOrCreate(ctx context.Context, id string) (*Session, bool, error) {
	if id == "" {
		id = uuid.NewString()
	}
	unlock := m.lock(id)
	defer unlock()
	return m.getOrCreateLocked(ctx, id)
}

func (m *Manager) getOrCreateLocked(ctx context.Context, id string) (*Session, bool, error) {
	now := m.cfg.Now()
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("load session %s: %w", id, err)
	}
	if s != nil && !IsExpired(s, m.cfg.Timeout, now) {
		return s, false, nil
	}
	if s != nil {
		m.log.Debug().Str("session", id).Time("last_activity", s.LastActivity).Msg("session expired, starting fresh")
	}
	s = &Session{ID: id, CreatedAt: now, LastActivity: now, Turns: []Turn{}, TopicTags: []string{}}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, false, fmt.Errorf("save session %s: %w", id, err)
	}
	return s, true, nil
}

// Get returns the stored session or nil when id is unknown. Expired sessions
// are returned as stored.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	return m.store.Load(ctx, id)
}

// BuildContext renders recent history of s for prompt injection. It returns
// "" for a nil session or one without turns.
func (m *Manager) BuildContext(s *Session) string {
	if s == nil || len(s.Turns) == 0 {
		return ""
	}
	var parts []string
	if len(s.TopicTags) > 0 {
		tags := s.TopicTags
		if len(tags) > defaultContextTopics {
			tags = tags[len(tags)-defaultContextTopics:]
		}
		parts = append(parts, "Conversation topics: "+strings.Join(tags, ", "))
	}
	turns := s.Turns
	if len(turns) > m.cfg.ContextTurns {
		turns = turns[len(turns)-m.cfg.ContextTurns:]
	}
	for _, t := range turns {
		parts = append(parts, "Previous Q: "+t.Query, "Previous A: "+preview(t.Response, m.cfg.AnswerPreview))
	}
	out := strings.Join(parts, "\n")

	words := strings.Fields(out)
	if len(words) > m.cfg.MaxContextWords {
		out = strings.Join(words[:m.cfg.MaxContextWords], " ") + truncatedMarker
	}
	return out
}

// EnhanceQuery prepends the rendered context of s to query. The query is
// returned unchanged when there is no context.
func (m *Manager) EnhanceQuery(s *Session, query string) string {
	ctx := m.BuildContext(s)
	if ctx == "" {
		return query
	}
	return "Context from previous conversation:\n" + ctx + "\n\nCurrent query: " + query
}

// ContextTurns reports how many turns of s BuildContext renders.
func (m *Manager) ContextTurns(s *Session) int {
	if s == nil {
		return 0
	}
	return min(len(s.Turns), m.cfg.ContextTurns)
}

// AppendTurn records t on session id, creating the session when needed.
// Turns beyond MaxTurns and tags beyond MaxTags drop the oldest entries.
func (m *Manager) AppendTurn(ctx context.Context, id string, t Turn) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	unlock := m.lock(id)
	defer unlock()

	s, _, err := m.getOrCreateLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	now := m.cfg.Now()
	if t.Timestamp.IsZero() {
		t.Timestamp = now
	}
	s.appendTurn(t, m.cfg.MaxTurns)
	s.addTags(DetectTopics(t.Query), m.cfg.MaxTags)
	s.LastActivity = now
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session %s: %w", id, err)
	}
	m.log.Debug().Str("session", id).Int("turns", len(s.Turns)).Stringer("tier", t.TierUsed).Msg("turn recorded")
	return s, nil
}

// IsExpired reports whether s is past the manager's timeout.
func (m *Manager) IsExpired(s *Session) bool {
	return IsExpired(s, m.cfg.Timeout, m.cfg.Now())
}

// Stats summarises session id. It returns (nil, nil) for unknown ids.
func (m *Manager) Stats(ctx context.Context, id string) (*Stats, error) {
	s, err := m.store.Load(ctx, id)
	if err != nil || s == nil {
		return nil, err
	}
	st := &Stats{
		SessionID:    s.ID,
		TotalTurns:   len(s.Turns),
		Duration:     s.LastActivity.Sub(s.CreatedAt),
		TierUsage:    make(map[string]int, len(types.AllTiers())),
		Topics:       append([]string{}, s.TopicTags...),
		LastActivity: s.LastActivity,
		Expired:      m.IsExpired(s),
	}
	var sum float64
	for _, t := range s.Turns {
		st.TierUsage[t.TierUsed.String()]++
		sum += t.ComplexityScore
	}
	if len(s.Turns) > 0 {
		st.AverageComplexity = sum / float64(len(s.Turns))
	}
	return st, nil
}

// Delete drops session id.
func (m *Manager) Delete(ctx context.Context, id string) error {
	unlock := m.lock(id)
	defer unlock()
	return m.store.Delete(ctx, id)
}

// Count returns the number of stored sessions, expired ones included.
func (m *Manager) Count(ctx context.Context) (int, error) {
	return m.store.Count(ctx)
}

// CleanupExpired removes every session idle for longer than the timeout.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	n, err := m.store.DeleteIdleSince(ctx, m.cfg.Now().Add(-m.cfg.Timeout))
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}
	if n > 0 {
		m.log.Info().Int("removed", n).Msg("expired sessions removed")
	}
	return n, nil
}

// Close releases the underlying store.
func (m *Manager) Close() error { return m.store.Close() }

// lock acquires the per-id mutex and returns its release func. Entries are
// reference counted so the map does not grow with dead ids.
func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &idLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
