package domain

import "time"

// MoodEntry is a self-reported check-in; scales run 1-10.
type MoodEntry struct {
	ID        string    `json:"id" yaml:"id"`
	UserID    string    `json:"user_id" yaml:"user_id"`
	Mood      float64   `json:"mood" yaml:"mood"`
	Anxiety   float64   `json:"anxiety" yaml:"anxiety"`
	Energy    float64   `json:"energy" yaml:"energy"`
	Note      string    `json:"note,omitempty" yaml:"note"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalPaused    GoalStatus = "paused"
)

// Goal progress runs 0-100.
type Goal struct {
	ID        string     `json:"id" yaml:"id"`
	UserID    string     `json:"user_id" yaml:"user_id"`
	Title     string     `json:"title" yaml:"title"`
	Category  string     `json:"category,omitempty" yaml:"category"`
	Status    GoalStatus `json:"status" yaml:"status"`
	Progress  float64    `json:"progress" yaml:"progress"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
}

type SuggestionCategory string

const (
	SuggestGoalAdjustment SuggestionCategory = "goal_adjustment"
	SuggestTechnique      SuggestionCategory = "technique"
	SuggestContent        SuggestionCategory = "content"
	SuggestTiming         SuggestionCategory = "optimal_timing"
)

// Suggestion is advisory; callers decide whether to apply it.
type Suggestion struct {
	ID          string             `json:"id"`
	Category    SuggestionCategory `json:"category"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Reasoning   string             `json:"reasoning"`
	Confidence  float64            `json:"confidence"`
	GoalID      string             `json:"goal_id,omitempty"`
}

// UserPreferences is upserted by user id; the last writer wins.
type UserPreferences struct {
	UserID    string         `json:"user_id"`
	Values    map[string]any `json:"preferences"`
	UpdatedAt time.Time      `json:"updated_at"`
}
