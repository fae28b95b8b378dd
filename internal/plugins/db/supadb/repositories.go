package supadb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	postgrest "github.com/supabase-community/postgrest-go"
	supabase "github.com/supabase-community/supabase-go"

	"github.com/havenhealth/haven/internal/domain"
)

func first[T any](rows []T, err error, what string) (*T, error) {
	if err != nil {
		return nil, errors.Wrapf(err, "supadb: %s", what)
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(domain.ErrNotFound, "supadb: %s", what)
	}
	return &rows[0], nil
}

type SessionRepository struct {
	client *supabase.Client
}

func (r *SessionRepository) Create(ctx context.Context, userID, therapistID string) (string, error) {
	_ = ctx
	now := time.Now().UTC()
	payload := map[string]any{
		"id":           uuid.NewString(),
		"user_id":      userID,
		"therapist_id": therapistID,
		"status":       domain.SessionActive,
		"started_at":   now,
		"updated_at":   now,
	}
	var result []SessionRow
	_, err := r.client.From(tableSessions).Insert(payload, false, "", "representation", "").ExecuteTo(&result)
	row, err := first(result, err, "create session")
	if err != nil {
		return "", err
	}
	return row.ID, nil
}

func (r *SessionRepository) SaveMetrics(ctx context.Context, userID, sessionID string, metrics domain.SessionMetrics) error {
	_ = ctx
	payload := map[string]any{"metrics": metrics, "updated_at": time.Now().UTC()}
	var result []SessionRow
	_, err := r.client.From(tableSessions).Update(payload, "representation", "").
		Eq("id", sessionID).
		Eq("user_id", userID).
		ExecuteTo(&result)
	_, err = first(result, err, "save metrics for "+sessionID)
	return err
}

func (r *SessionRepository) Complete(ctx context.Context, record *domain.SessionRecord) error {
	_ = ctx
	payload := map[string]any{
		"status":          domain.SessionEnded,
		"ended_at":        record.State.EndTime,
		"metrics":         record.Metrics,
		"messages":        record.Messages,
		"emotion_history": record.EmotionHistory,
		"interactions":    record.Interactions,
		"updated_at":      time.Now().UTC(),
	}
	var result []SessionRow
	_, err := r.client.From(tableSessions).Update(payload, "representation", "").
		Eq("id", record.State.SessionID).
		Eq("user_id", record.State.UserID).
		ExecuteTo(&result)
	_, err = first(result, err, "complete session "+record.State.SessionID)
	return err
}

func (r *SessionRepository) ListRecent(ctx context.Context, userID string, limit int) ([]domain.SessionSummary, error) {
	_ = ctx
	var result []SessionRow
	query := r.client.From(tableSessions).
		Select("id,user_id,therapist_id,status,started_at,ended_at,metrics", "", false).
		Eq("user_id", userID).
		Order("started_at", &postgrest.OrderOpts{Ascending: false})
	if limit > 0 {
		query = query.Limit(limit, "")
	}
	if _, err := query.ExecuteTo(&result); err != nil {
		return nil, errors.Wrap(err, "supadb: list sessions")
	}
	out := make([]domain.SessionSummary, 0, len(result))
	for _, row := range result {
		out = append(out, row.Summary())
	}
	return out, nil
}

type TherapistRepository struct {
	client *supabase.Client
}

func (r *TherapistRepository) Get(ctx context.Context, id string) (*domain.TherapistProfile, error) {
	_ = ctx
	var result []domain.TherapistProfile
	_, err := r.client.From(tableTherapists).Select("*", "", false).Eq("id", id).Limit(1, "").ExecuteTo(&result)
	return first(result, err, "therapist "+id)
}

func (r *TherapistRepository) List(ctx context.Context) ([]domain.TherapistProfile, error) {
	_ = ctx
	var result []domain.TherapistProfile
	_, err := r.client.From(tableTherapists).Select("*", "", false).Order("id", &postgrest.OrderOpts{Ascending: true}).ExecuteTo(&result)
	return result, errors.Wrap(err, "supadb: list therapists")
}

type ProfileRepository struct {
	client *supabase.Client
}

func (r *ProfileRepository) GetAssessment(ctx context.Context, userID string) (*domain.Assessment, error) {
	_ = ctx
	var result []domain.Assessment
	_, err := r.client.From(tableAssessments).Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").ExecuteTo(&result)
	return first(result, err, "assessment for "+userID)
}

func (r *ProfileRepository) GetClinicalProfile(ctx context.Context, userID string) (*domain.ClinicalProfile, error) {
	_ = ctx
	var result []domain.ClinicalProfile
	_, err := r.client.From(tableClinical).Select("*", "", false).Eq("user_id", userID).Limit(1, "").ExecuteTo(&result)
	return first(result, err, "clinical profile for "+userID)
}

type MoodRepository struct {
	client *supabase.Client
}

func (r *MoodRepository) ListSince(ctx context.Context, userID string, since time.Time) ([]domain.MoodEntry, error) {
	_ = ctx
	var result []domain.MoodEntry
	_, err := r.client.From(tableMoods).Select("*", "", false).
		Eq("user_id", userID).
		Gte("created_at", since.UTC().Format(time.RFC3339)).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&result)
	return result, errors.Wrap(err, "supadb: list moods")
}

type GoalRepository struct {
	client *supabase.Client
}

func (r *GoalRepository) List(ctx context.Context, userID string) ([]domain.Goal, error) {
	_ = ctx
	var result []domain.Goal
	_, err := r.client.From(tableGoals).Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&result)
	return result, errors.Wrap(err, "supadb: list goals")
}

type MemoryRepository struct {
	client *supabase.Client
}

func (r *MemoryRepository) Insert(ctx context.Context, memory *domain.ConversationMemory) error {
	_ = ctx
	_, _, err := r.client.From(tableMemories).Insert(memory, false, "", "minimal", "").Execute()
	return errors.Wrap(err, "supadb: insert memory")
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*domain.ConversationMemory, error) {
	_ = ctx
	var result []domain.ConversationMemory
	_, err := r.client.From(tableMemories).Select("*", "", false).Eq("id", id).Limit(1, "").ExecuteTo(&result)
	return first(result, err, "memory "+id)
}

func (r *MemoryRepository) Update(ctx context.Context, memory *domain.ConversationMemory) error {
	_ = ctx
	payload := map[string]any{
		"importance_score": memory.ImportanceScore,
		"is_active":        memory.IsActive,
		"tags":             memory.Tags,
		"updated_at":       memory.UpdatedAt,
	}
	var result []domain.ConversationMemory
	_, err := r.client.From(tableMemories).Update(payload, "representation", "").Eq("id", memory.ID).ExecuteTo(&result)
	_, err = first(result, err, "update memory "+memory.ID)
	return err
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string, includeInactive bool) ([]domain.ConversationMemory, error) {
	_ = ctx
	var result []domain.ConversationMemory
	query := r.client.From(tableMemories).Select("*", "", false).Eq("user_id", userID)
	if !includeInactive {
		query = query.Eq("is_active", "true")
	}
	_, err := query.Order("importance_score", &postgrest.OrderOpts{Ascending: false}).ExecuteTo(&result)
	return result, errors.Wrap(err, "supadb: list memories")
}

type PreferenceRepository struct {
	client *supabase.Client
}

func (r *PreferenceRepository) Get(ctx context.Context, userID string) (*domain.UserPreferences, error) {
	_ = ctx
	var result []PreferencesRow
	_, err := r.client.From(tablePreferences).Select("*", "", false).Eq("user_id", userID).Limit(1, "").ExecuteTo(&result)
	row, err := first(result, err, "preferences for "+userID)
	if err != nil {
		return nil, err
	}
	return &domain.UserPreferences{UserID: row.UserID, Values: row.Preferences, UpdatedAt: row.UpdatedAt}, nil
}

// Upsert writes by user id; the last writer wins.
func (r *PreferenceRepository) Upsert(ctx context.Context, prefs *domain.UserPreferences) error {
	_ = ctx
	row := PreferencesRow{UserID: prefs.UserID, Preferences: prefs.Values, UpdatedAt: prefs.UpdatedAt}
	_, _, err := r.client.From(tablePreferences).Upsert(row, "user_id", "minimal", "").Execute()
	return errors.Wrap(err, "supadb: upsert preferences")
}

func (r *PreferenceRepository) Delete(ctx context.Context, userID string) error {
	_ = ctx
	_, _, err := r.client.From(tablePreferences).Delete("", "").Eq("user_id", userID).Execute()
	return errors.Wrap(err, "supadb: delete preferences")
}

type MatchRepository struct {
	client *supabase.Client
}

// SaveSnapshot replaces the user's previous snapshot.
func (r *MatchRepository) SaveSnapshot(ctx context.Context, userID string, top []domain.CompatibilityScore) error {
	_ = ctx
	if _, _, err := r.client.From(tableMatches).Delete("", "").Eq("user_id", userID).Eq("kind", string(MatchSnapshot)).Execute(); err != nil {
		return errors.Wrap(err, "supadb: clear snapshot")
	}
	now := time.Now().UTC()
	rows := make([]MatchRow, 0, len(top))
	for i, s := range top {
		rows = append(rows, MatchRow{
			UserID: userID, TherapistID: s.TherapistID, Kind: MatchSnapshot,
			Rank: i + 1, FinalScore: s.FinalScore, Score: s, CreatedAt: now,
		})
	}
	_, _, err := r.client.From(tableMatches).Insert(rows, false, "", "minimal", "").Execute()
	return errors.Wrap(err, "supadb: save snapshot")
}

func (r *MatchRepository) SaveSelection(ctx context.Context, userID string, score domain.CompatibilityScore) error {
	_ = ctx
	row := MatchRow{
		UserID: userID, TherapistID: score.TherapistID, Kind: MatchSelected,
		Rank: 1, FinalScore: score.FinalScore, Score: score, CreatedAt: time.Now().UTC(),
	}
	_, _, err := r.client.From(tableMatches).Upsert(row, "user_id,kind,rank", "minimal", "").Execute()
	return errors.Wrap(err, "supadb: save selection")
}
