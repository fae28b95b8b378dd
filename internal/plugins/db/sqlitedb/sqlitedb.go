// Package sqlitedb is a local stand-in for the Supabase tables. Every row is
// kept as a JSON document keyed by collection and id, which is enough for
// development, demos and tests without a network dependency.
package sqlitedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/havenhealth/haven/internal/domain"
)

const (
	colSessions    = "therapy_sessions"
	colTherapists  = "therapists"
	colAssessments = "user_assessments"
	colClinical    = "clinical_profiles"
	colMoods       = "mood_entries"
	colGoals       = "wellness_goals"
	colMemories    = "conversation_memories"
	colPreferences = "user_preferences"
	colMatches     = "therapist_matches"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	user_id TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL,
	sort_key TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(collection, user_id, sort_key);
`

var _ domain.Store = (*Store)(nil)

type Store struct {
	db   *sql.DB
	path string
}

// Open creates the database file (and its directory) when missing. The
// path ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(err, "sqlitedb: create data dir")
			}
		}
		dsn = path + "?_journal=WAL&_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlitedb: open database")
	}
	// Each connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlitedb: migrate")
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return errors.Wrap(s.db.PingContext(ctx), "sqlitedb: ping")
}

// Put stores v under collection/id, replacing any previous document.
func (s *Store) Put(ctx context.Context, collection, id, userID, sortKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "sqlitedb: encode %s/%s", collection, id)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, user_id, body, sort_key, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			user_id = excluded.user_id,
			body = excluded.body,
			sort_key = excluded.sort_key,
			updated_at = excluded.updated_at
	`, collection, id, userID, string(body), sortKey, time.Now().UTC())
	return errors.Wrapf(err, "sqlitedb: put %s/%s", collection, id)
}

func (s *Store) get(ctx context.Context, collection, id string, v any) error {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(domain.ErrNotFound, "sqlitedb: %s/%s", collection, id)
	}
	if err != nil {
		return errors.Wrapf(err, "sqlitedb: get %s/%s", collection, id)
	}
	return errors.Wrapf(json.Unmarshal([]byte(body), v), "sqlitedb: decode %s/%s", collection, id)
}

func (s *Store) delete(ctx context.Context, collection, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND user_id = ?`, collection, userID)
	return errors.Wrapf(err, "sqlitedb: delete %s for %s", collection, userID)
}

// list decodes documents of collection in sort_key order. An empty userID
// matches every document. desc reverses the order; limit <= 0 is unbounded.
func list[T any](ctx context.Context, s *Store, collection, userID string, desc bool, limit int) ([]T, error) {
	query := `SELECT body FROM documents WHERE collection = ?`
	args := []any{collection}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	if desc {
		query += ` ORDER BY sort_key DESC, id DESC`
	} else {
		query += ` ORDER BY sort_key ASC, id ASC`
	}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlitedb: list %s", collection)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var body string
		if err = rows.Scan(&body); err != nil {
			return nil, errors.Wrapf(err, "sqlitedb: scan %s", collection)
		}
		var v T
		if err = json.Unmarshal([]byte(body), &v); err != nil {
			return nil, errors.Wrapf(err, "sqlitedb: decode %s", collection)
		}
		out = append(out, v)
	}
	return out, errors.Wrapf(rows.Err(), "sqlitedb: list %s", collection)
}

// timeKey sorts lexically in time order.
func timeKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func (s *Store) Sessions() domain.TherapySessionRepository { return &sessions{s} }
func (s *Store) Therapists() domain.TherapistRepository    { return &therapists{s} }
func (s *Store) Profiles() domain.ProfileRepository        { return &profiles{s} }
func (s *Store) Moods() domain.MoodRepository              { return &moods{s} }
func (s *Store) Goals() domain.GoalRepository              { return &goals{s} }
func (s *Store) Memories() domain.MemoryRepository         { return &memories{s} }
func (s *Store) Preferences() domain.PreferenceRepository  { return &preferences{s} }
func (s *Store) Matches() domain.MatchRepository           { return &matches{s} }
