package domain

import "time"

type SessionStatus string

const (
	SessionIdle   SessionStatus = "idle"
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// SessionState is the live view of one therapy session owned by a single tab.
type SessionState struct {
	SessionID       string        `json:"session_id"`
	UserID          string        `json:"user_id"`
	TherapistID     string        `json:"therapist_id"`
	Status          SessionStatus `json:"status"`
	IsActive        bool          `json:"is_active"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	CurrentEmotion  string        `json:"current_emotion"`
	StressLevel     float64       `json:"stress_level"`
	EngagementLevel float64       `json:"engagement_level"`
}

// SessionMessage is immutable once appended.
type SessionMessage struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	IsUser     bool           `json:"is_user"`
	Timestamp  time.Time      `json:"timestamp"`
	Emotion    string         `json:"emotion,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// EmotionReading is one detected emotion with its confidence in [0,1].
type EmotionReading struct {
	Emotion    string    `json:"emotion"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// EmotionalContext is the caller's own read on how a message was meant.
type EmotionalContext struct {
	PrimaryEmotion string  `json:"primary_emotion"`
	Intensity      float64 `json:"intensity"`
	Context        string  `json:"context,omitempty"`
}

type InteractionEvent struct {
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionMetrics is recomputed incrementally on every message and emotion
// event. Duration is in whole seconds.
type SessionMetrics struct {
	Duration            int64    `json:"duration"`
	MessageCount        int      `json:"message_count"`
	UserMessageCount    int      `json:"user_message_count"`
	EmotionalRange      []string `json:"emotional_range"`
	InitialStress       *float64 `json:"initial_stress,omitempty"`
	StressLevelChange   float64  `json:"stress_level_change"`
	EngagementScore     float64  `json:"engagement_score"`
	TherapeuticProgress float64  `json:"therapeutic_progress"`
	FallbackReplies     int      `json:"fallback_replies"`
}

// StartedSession is what the gateway hands back when a session opens.
type StartedSession struct {
	SessionID string         `json:"session_id"`
	Greeting  SessionMessage `json:"greeting"`
}

// ReplyRequest asks the gateway for the therapist's next message.
type ReplyRequest struct {
	SessionID        string            `json:"session_id"`
	UserID           string            `json:"user_id"`
	TherapistID      string            `json:"therapist_id"`
	Content          string            `json:"content"`
	IsVoice          bool              `json:"is_voice,omitempty"`
	VoiceMIME        string            `json:"voice_mime,omitempty"`
	EmotionalContext *EmotionalContext `json:"emotional_context,omitempty"`
	History          []SessionMessage  `json:"history,omitempty"`
}

// SessionRecord is the end-of-session snapshot sent for persistence.
type SessionRecord struct {
	State          SessionState       `json:"state"`
	Metrics        SessionMetrics     `json:"metrics"`
	Messages       []SessionMessage   `json:"messages"`
	EmotionHistory []EmotionReading   `json:"emotion_history"`
	Interactions   []InteractionEvent `json:"interactions"`
}

// SessionSummary is the stored row for a session, as read back by analytics.
type SessionSummary struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	TherapistID string          `json:"therapist_id"`
	Status      SessionStatus   `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	EndedAt     *time.Time      `json:"ended_at,omitempty"`
	Metrics     *SessionMetrics `json:"metrics,omitempty"`
}
