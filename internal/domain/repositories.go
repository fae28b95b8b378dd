package domain

import (
	"context"
	"time"
)

type TherapySessionRepository interface {
	// Create inserts a new active session row and returns its id.
	Create(ctx context.Context, userID, therapistID string) (string, error)
	SaveMetrics(ctx context.Context, userID, sessionID string, metrics SessionMetrics) error
	Complete(ctx context.Context, record *SessionRecord) error
	ListRecent(ctx context.Context, userID string, limit int) ([]SessionSummary, error)
}

type TherapistRepository interface {
	Get(ctx context.Context, id string) (*TherapistProfile, error)
	List(ctx context.Context) ([]TherapistProfile, error)
}

type ProfileRepository interface {
	GetAssessment(ctx context.Context, userID string) (*Assessment, error)
	GetClinicalProfile(ctx context.Context, userID string) (*ClinicalProfile, error)
}

type MoodRepository interface {
	ListSince(ctx context.Context, userID string, since time.Time) ([]MoodEntry, error)
}

type GoalRepository interface {
	List(ctx context.Context, userID string) ([]Goal, error)
}

type MemoryRepository interface {
	Insert(ctx context.Context, memory *ConversationMemory) error
	Get(ctx context.Context, id string) (*ConversationMemory, error)
	Update(ctx context.Context, memory *ConversationMemory) error
	ListByUser(ctx context.Context, userID string, includeInactive bool) ([]ConversationMemory, error)
}

type PreferenceRepository interface {
	Get(ctx context.Context, userID string) (*UserPreferences, error)
	Upsert(ctx context.Context, prefs *UserPreferences) error
	Delete(ctx context.Context, userID string) error
}

type MatchRepository interface {
	SaveSnapshot(ctx context.Context, userID string, top []CompatibilityScore) error
	SaveSelection(ctx context.Context, userID string, score CompatibilityScore) error
}

// Store is the gateway's persistence surface. supadb and sqlitedb both
// implement it.
type Store interface {
	Ping(ctx context.Context) error
	Sessions() TherapySessionRepository
	Therapists() TherapistRepository
	Profiles() ProfileRepository
	Moods() MoodRepository
	Goals() GoalRepository
	Memories() MemoryRepository
	Preferences() PreferenceRepository
	Matches() MatchRepository
}
