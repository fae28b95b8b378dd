package sqlitedb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/havenhealth/haven/internal/domain"
)

type sessionDoc struct {
	domain.SessionSummary
	Messages       []domain.SessionMessage   `json:"messages,omitempty"`
	EmotionHistory []domain.EmotionReading   `json:"emotion_history,omitempty"`
	Interactions   []domain.InteractionEvent `json:"interactions,omitempty"`
}

type sessions struct{ s *Store }

func (r *sessions) Create(ctx context.Context, userID, therapistID string) (string, error) {
	doc := sessionDoc{SessionSummary: domain.SessionSummary{
		ID:          uuid.NewString(),
		UserID:      userID,
		TherapistID: therapistID,
		Status:      domain.SessionActive,
		StartedAt:   time.Now().UTC(),
	}}
	if err := r.s.Put(ctx, colSessions, doc.ID, userID, timeKey(doc.StartedAt), doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

// owned loads a session and hides sessions that belong to someone else.
func (r *sessions) owned(ctx context.Context, userID, sessionID string) (*sessionDoc, error) {
	var doc sessionDoc
	if err := r.s.get(ctx, colSessions, sessionID, &doc); err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, errors.Wrapf(domain.ErrNotFound, "sqlitedb: %s/%s", colSessions, sessionID)
	}
	return &doc, nil
}

func (r *sessions) SaveMetrics(ctx context.Context, userID, sessionID string, metrics domain.SessionMetrics) error {
	doc, err := r.owned(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	doc.Metrics = &metrics
	return r.s.Put(ctx, colSessions, doc.ID, doc.UserID, timeKey(doc.StartedAt), doc)
}

func (r *sessions) Complete(ctx context.Context, record *domain.SessionRecord) error {
	doc, err := r.owned(ctx, record.State.UserID, record.State.SessionID)
	if err != nil {
		return err
	}
	metrics := record.Metrics
	doc.Status = domain.SessionEnded
	doc.EndedAt = record.State.EndTime
	doc.Metrics = &metrics
	doc.Messages = record.Messages
	doc.EmotionHistory = record.EmotionHistory
	doc.Interactions = record.Interactions
	return r.s.Put(ctx, colSessions, doc.ID, doc.UserID, timeKey(doc.StartedAt), doc)
}

func (r *sessions) ListRecent(ctx context.Context, userID string, limit int) ([]domain.SessionSummary, error) {
	docs, err := list[sessionDoc](ctx, r.s, colSessions, userID, true, limit)
	if err != nil {
		return nil, err
	}
	return lo.Map(docs, func(d sessionDoc, _ int) domain.SessionSummary { return d.SessionSummary }), nil
}

type therapists struct{ s *Store }

func (r *therapists) Get(ctx context.Context, id string) (*domain.TherapistProfile, error) {
	var t domain.TherapistProfile
	if err := r.s.get(ctx, colTherapists, id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *therapists) List(ctx context.Context) ([]domain.TherapistProfile, error) {
	return list[domain.TherapistProfile](ctx, r.s, colTherapists, "", false, 0)
}

// Profiles are keyed by user id; a later write replaces the earlier one.
type profiles struct{ s *Store }

func (r *profiles) GetAssessment(ctx context.Context, userID string) (*domain.Assessment, error) {
	var a domain.Assessment
	if err := r.s.get(ctx, colAssessments, userID, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *profiles) GetClinicalProfile(ctx context.Context, userID string) (*domain.ClinicalProfile, error) {
	var c domain.ClinicalProfile
	if err := r.s.get(ctx, colClinical, userID, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

type moods struct{ s *Store }

func (r *moods) ListSince(ctx context.Context, userID string, since time.Time) ([]domain.MoodEntry, error) {
	entries, err := list[domain.MoodEntry](ctx, r.s, colMoods, userID, false, 0)
	if err != nil {
		return nil, err
	}
	return lo.Filter(entries, func(e domain.MoodEntry, _ int) bool { return !e.CreatedAt.Before(since) }), nil
}

type goals struct{ s *Store }

func (r *goals) List(ctx context.Context, userID string) ([]domain.Goal, error) {
	return list[domain.Goal](ctx, r.s, colGoals, userID, false, 0)
}

type memories struct{ s *Store }

func (r *memories) Insert(ctx context.Context, m *domain.ConversationMemory) error {
	return r.s.Put(ctx, colMemories, m.ID, m.UserID, timeKey(m.CreatedAt), m)
}

func (r *memories) Get(ctx context.Context, id string) (*domain.ConversationMemory, error) {
	var m domain.ConversationMemory
	if err := r.s.get(ctx, colMemories, id, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *memories) Update(ctx context.Context, m *domain.ConversationMemory) error {
	if _, err := r.Get(ctx, m.ID); err != nil {
		return err
	}
	return r.s.Put(ctx, colMemories, m.ID, m.UserID, timeKey(m.CreatedAt), m)
}

func (r *memories) ListByUser(ctx context.Context, userID string, includeInactive bool) ([]domain.ConversationMemory, error) {
	all, err := list[domain.ConversationMemory](ctx, r.s, colMemories, userID, false, 0)
	if err != nil {
		return nil, err
	}
	if includeInactive {
		return all, nil
	}
	return lo.Filter(all, func(m domain.ConversationMemory, _ int) bool { return m.IsActive }), nil
}

type preferences struct{ s *Store }

func (r *preferences) Get(ctx context.Context, userID string) (*domain.UserPreferences, error) {
	var p domain.UserPreferences
	if err := r.s.get(ctx, colPreferences, userID, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *preferences) Upsert(ctx context.Context, p *domain.UserPreferences) error {
	return r.s.Put(ctx, colPreferences, p.UserID, p.UserID, "", p)
}

func (r *preferences) Delete(ctx context.Context, userID string) error {
	return r.s.delete(ctx, colPreferences, userID)
}

type matchDoc struct {
	UserID     string                    `json:"user_id"`
	Kind       string                    `json:"kind"`
	Rank       int                       `json:"rank"`
	Score      domain.CompatibilityScore `json:"score"`
	CreatedAt  time.Time                 `json:"created_at"`
	FinalScore float64                   `json:"final_score"`
}

type matches struct{ s *Store }

// SaveSnapshot replaces the user's previous snapshot.
func (r *matches) SaveSnapshot(ctx context.Context, userID string, top []domain.CompatibilityScore) error {
	if _, err := r.s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND user_id = ? AND sort_key LIKE 'snapshot/%'`,
		colMatches, userID); err != nil {
		return errors.Wrap(err, "sqlitedb: clear snapshot")
	}
	now := time.Now().UTC()
	for i, score := range top {
		doc := matchDoc{UserID: userID, Kind: "snapshot", Rank: i + 1, Score: score, CreatedAt: now, FinalScore: score.FinalScore}
		if err := r.s.Put(ctx, colMatches, matchID(userID, doc.Kind, doc.Rank), userID, fmt.Sprintf("snapshot/%03d", doc.Rank), doc); err != nil {
			return err
		}
	}
	return nil
}

func (r *matches) SaveSelection(ctx context.Context, userID string, score domain.CompatibilityScore) error {
	doc := matchDoc{UserID: userID, Kind: "selected", Rank: 1, Score: score, CreatedAt: time.Now().UTC(), FinalScore: score.FinalScore}
	return r.s.Put(ctx, colMatches, matchID(userID, doc.Kind, doc.Rank), userID, "selected", doc)
}

func matchID(userID, kind string, rank int) string {
	return fmt.Sprintf("%s/%s/%d", userID, kind, rank)
}
