package domain

import "time"

type MemoryType string

const (
	MemoryPersonalDetail   MemoryType = "personal_detail"
	MemoryEmotionalPattern MemoryType = "emotional_pattern"
	MemoryCopingStrategy   MemoryType = "coping_strategy"
	MemoryTrigger          MemoryType = "trigger"
	MemoryGoal             MemoryType = "goal"
	MemoryBreakthrough     MemoryType = "breakthrough"
	MemoryRelationship     MemoryType = "relationship"
	MemoryPreference       MemoryType = "preference"
)

var MemoryTypes = []MemoryType{
	MemoryPersonalDetail,
	MemoryEmotionalPattern,
	MemoryCopingStrategy,
	MemoryTrigger,
	MemoryGoal,
	MemoryBreakthrough,
	MemoryRelationship,
	MemoryPreference,
}

func (t MemoryType) Valid() bool {
	for _, known := range MemoryTypes {
		if t == known {
			return true
		}
	}
	return false
}

// MemoryEmotion carries intensity on a 0-10 scale.
type MemoryEmotion struct {
	PrimaryEmotion string  `json:"primary_emotion"`
	Intensity      float64 `json:"intensity"`
	Context        string  `json:"context,omitempty"`
}

type ConversationMemory struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	SessionID        string        `json:"session_id,omitempty"`
	MemoryType       MemoryType    `json:"memory_type"`
	Content          string        `json:"content"`
	EmotionalContext MemoryEmotion `json:"emotional_context"`
	ImportanceScore  float64       `json:"importance_score"`
	Tags             []string      `json:"tags"`
	IsActive         bool          `json:"is_active"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
