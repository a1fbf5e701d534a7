package session

import (
	"context"
	"sync"
	"time"
)

// Store persists sessions. Load returns (nil, nil) when id is unknown.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// Count returns the number of stored sessions.
	Count(ctx context.Context) (int, error)
	// DeleteIdleSince removes sessions whose last activity is before cutoff
	// and returns how many were removed.
	DeleteIdleSince(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// MemoryStore keeps sessions in a map. Values are copied on the way in and out.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id].clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return ErrInvalidID
	}
	m.mu.Lock()
	m.sessions[s.ID] = s.clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}

func (m *MemoryStore) DeleteIdleSince(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.LastActivity.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }
