package supadb

import (
	"time"

	"github.com/havenhealth/haven/internal/domain"
)

// SessionRow is a therapy session as stored in Supabase.
type SessionRow struct {
	ID             string                    `json:"id"`
	UserID         string                    `json:"user_id"`
	TherapistID    string                    `json:"therapist_id"`
	Status         domain.SessionStatus      `json:"status"`
	StartedAt      time.Time                 `json:"started_at"`
	EndedAt        *time.Time                `json:"ended_at"`
	Metrics        *domain.SessionMetrics    `json:"metrics"`
	Messages       []domain.SessionMessage   `json:"messages"`
	EmotionHistory []domain.EmotionReading   `json:"emotion_history"`
	Interactions   []domain.InteractionEvent `json:"interactions"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

func (r SessionRow) Summary() domain.SessionSummary {
	return domain.SessionSummary{
		ID:          r.ID,
		UserID:      r.UserID,
		TherapistID: r.TherapistID,
		Status:      r.Status,
		StartedAt:   r.StartedAt,
		EndedAt:     r.EndedAt,
		Metrics:     r.Metrics,
	}
}

type MatchKind string

const (
	MatchSnapshot MatchKind = "snapshot"
	MatchSelected MatchKind = "selected"
)

// MatchRow persists either one entry of a top-N snapshot or the user's
// selected therapist.
type MatchRow struct {
	UserID      string                    `json:"user_id"`
	TherapistID string                    `json:"therapist_id"`
	Kind        MatchKind                 `json:"kind"`
	Rank        int                       `json:"rank"`
	FinalScore  float64                   `json:"final_score"`
	Score       domain.CompatibilityScore `json:"score"`
	CreatedAt   time.Time                 `json:"created_at"`
}

type PreferencesRow struct {
	UserID      string         `json:"user_id"`
	Preferences map[string]any `json:"preferences"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
