package session

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"tierd/internal/common/fsutil"
)

//go:embed migrations/001_sessions.sql
var sessionsSchema string

// Fixed width so that string order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists sessions in a single SQLite file. Turns and tags are
// stored as JSON columns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path. The parent
// directory is created and "~" is expanded.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	if err := fsutil.EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db}
	if err := s.initPragmas(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize pragmas: %w", err)
	}
	if _, err := db.Exec(sessionsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, last_activity, turns, topic_tags FROM sessions WHERE id = ?`, id)

	var (
		out                 Session
		created, last       string
		turnsJSON, tagsJSON string
	)
	if err := row.Scan(&out.ID, &created, &last, &turnsJSON, &tagsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var err error
	if out.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if out.LastActivity, err = time.Parse(timeLayout, last); err != nil {
		return nil, fmt.Errorf("parse last_activity: %w", err)
	}
	if err := json.Unmarshal([]byte(turnsJSON), &out.Turns); err != nil {
		return nil, fmt.Errorf("decode turns: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &out.TopicTags); err != nil {
		return nil, fmt.Errorf("decode topic tags: %w", err)
	}
	return &out, nil
}

func (s *SQLiteStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidID
	}
	turns, err := json.Marshal(nonNilTurns(sess.Turns))
	if err != nil {
		return fmt.Errorf("encode turns: %w", err)
	}
	tags, err := json.Marshal(nonNilStrings(sess.TopicTags))
	if err != nil {
		return fmt.Errorf("encode topic tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO sessions (id, created_at, last_activity, turns, topic_tags)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		last_activity = excluded.last_activity,
		turns = excluded.turns,
		topic_tags = excluded.topic_tags`,
		sess.ID,
		sess.CreatedAt.UTC().Format(timeLayout),
		sess.LastActivity.UTC().Format(timeLayout),
		string(turns),
		string(tags),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// DeleteIdleSince compares timestamps as strings; rows are written in UTC
// with timeLayout.
func (s *SQLiteStore) DeleteIdleSince(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_activity < ?`,
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func nonNilTurns(t []Turn) []Turn {
	if t == nil {
		return []Turn{}
	}
	return t
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
