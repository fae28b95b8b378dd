package session

import (
	"strings"

	"github.com/samber/lo"
)

const (
	progressGain = 0.02
	progressLoss = 0.01
)

type valence int

const (
	neutral valence = iota
	positive
	negative
)

var positiveEmotions = map[string]bool{
	"joy": true, "happy": true, "happiness": true, "calm": true, "content": true,
	"hopeful": true, "hope": true, "grateful": true, "gratitude": true, "relieved": true,
	"relief": true, "relaxed": true, "optimistic": true, "proud": true, "peaceful": true,
	"confident": true, "love": true, "excited": true,
}

var negativeEmotions = map[string]bool{
	"sad": true, "sadness": true, "anxious": true, "anxiety": true, "angry": true,
	"anger": true, "fear": true, "afraid": true, "stressed": true, "frustrated": true,
	"hopeless": true, "lonely": true, "guilt": true, "shame": true, "overwhelmed": true,
	"disgust": true, "depressed": true, "panic": true,
}

func emotionValence(label string) valence {
	label = normalizeEmotion(label)
	switch {
	case positiveEmotions[label]:
		return positive
	case negativeEmotions[label]:
		return negative
	default:
		return neutral
	}
}

func normalizeEmotion(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// adjustProgress nudges therapeutic progress by valence and keeps it in [0,1].
func adjustProgress(current float64, v valence) float64 {
	switch v {
	case positive:
		current += progressGain
	case negative:
		current -= progressLoss
	}
	return lo.Clamp(current, 0, 1)
}

func clampUnit(v float64) float64 {
	return lo.Clamp(v, 0, 1)
}
