// Package session keeps bounded per-session conversation history and turns it
// into context for follow-up queries.
package session

import (
	"errors"
	"time"

	"tierd/pkg/types"
)

// ErrInvalidID is returned by stores for an empty session id.
var ErrInvalidID = errors.New("session: invalid id")

// Turn is one completed request/answer exchange.
type Turn struct {
	Timestamp       time.Time  `json:"timestamp"`
	Query           string     `json:"query"`
	Response        string     `json:"response"`
	TierUsed        types.Tier `json:"tier_used"`
	ComplexityScore float64    `json:"complexity_score"`
	Reasoning       string     `json:"reasoning,omitempty"`
}

// Session is the stored state of one conversation.
type Session struct {
	ID           string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Turns        []Turn    `json:"turns"`
	TopicTags    []string  `json:"topic_tags"`
}

// IsExpired reports whether s has been idle for longer than timeout at now.
func IsExpired(s *Session, timeout time.Duration, now time.Time) bool {
	if s == nil {
		return true
	}
	return now.Sub(s.LastActivity) > timeout
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Turns = append([]Turn(nil), s.Turns...)
	c.TopicTags = append([]string(nil), s.TopicTags...)
	return &c
}

func (s *Session) appendTurn(t Turn, maxTurns int) {
	s.Turns = append(s.Turns, t)
	if over := len(s.Turns) - maxTurns; over > 0 {
		s.Turns = append([]Turn(nil), s.Turns[over:]...)
	}
}

func (s *Session) addTags(tags []string, maxTags int) {
	for _, tag := range tags {
		if !contains(s.TopicTags, tag) {
			s.TopicTags = append(s.TopicTags, tag)
		}
	}
	if over := len(s.TopicTags) - maxTags; over > 0 {
		s.TopicTags = append([]string(nil), s.TopicTags[over:]...)
	}
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
