package dashboard

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/havenhealth/haven/internal/domain"
)

const (
	forecastHorizon   = 7
	stableSlope       = 0.05
	anxietyAlertLevel = 8.0
	anxietyStreak     = 3
	moodDropAlert     = 2.0
	silenceAlert      = 7 * 24 * time.Hour
)

type Metrics struct {
	SessionCount        int     `json:"session_count"`
	CompletedSessions   int     `json:"completed_sessions"`
	TotalMinutes        float64 `json:"total_minutes"`
	AverageMinutes      float64 `json:"average_minutes"`
	MessageCount        int     `json:"message_count"`
	AverageProgress     float64 `json:"average_progress"`
	AverageStressChange float64 `json:"average_stress_change"`
	CheckIns            int     `json:"check_ins"`
	AverageMood         float64 `json:"average_mood"`
}

type Trend string

const (
	Improving Trend = "improving"
	Declining Trend = "declining"
	Stable    Trend = "stable"
	Unknown   Trend = "insufficient_data"
)

// Forecast projects mood forward with a least-squares line over daily
// averages.
type Forecast struct {
	Trend         Trend     `json:"trend"`
	SlopePerDay   float64   `json:"slope_per_day"`
	PredictedMood []float64 `json:"predicted_mood"`
	DataPoints    int       `json:"data_points"`
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type Alert struct {
	Kind     string   `json:"kind"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func ComputeMetrics(sessions []domain.SessionSummary, moods []domain.MoodEntry) *Metrics {
	m := &Metrics{SessionCount: len(sessions), CheckIns: len(moods)}
	withMetrics := 0
	for _, s := range sessions {
		if s.Status == domain.SessionEnded {
			m.CompletedSessions++
		}
		if s.Metrics == nil {
			continue
		}
		withMetrics++
		m.TotalMinutes += float64(s.Metrics.Duration) / 60
		m.MessageCount += s.Metrics.MessageCount
		m.AverageProgress += s.Metrics.TherapeuticProgress
		m.AverageStressChange += s.Metrics.StressLevelChange
	}
	if withMetrics > 0 {
		n := float64(withMetrics)
		m.AverageMinutes = m.TotalMinutes / n
		m.AverageProgress /= n
		m.AverageStressChange /= n
	}
	if len(moods) > 0 {
		m.AverageMood = lo.SumBy(moods, func(e domain.MoodEntry) float64 { return e.Mood }) / float64(len(moods))
	}
	return m
}

func ComputeForecast(moods []domain.MoodEntry) *Forecast {
	byDay := lo.GroupBy(moods, func(e domain.MoodEntry) string { return e.CreatedAt.UTC().Format(time.DateOnly) })
	if len(byDay) < 3 {
		return &Forecast{Trend: Unknown, DataPoints: len(byDay), PredictedMood: []float64{}}
	}

	origin := lo.MinBy(moods, func(a, b domain.MoodEntry) bool { return a.CreatedAt.Before(b.CreatedAt) }).CreatedAt.UTC().Truncate(24 * time.Hour)
	days := lo.Keys(byDay)
	slices.Sort(days)
	var xs, ys []float64
	var lastX float64
	for _, day := range days {
		entries := byDay[day]
		d, _ := time.Parse(time.DateOnly, day)
		x := d.Sub(origin).Hours() / 24
		xs = append(xs, x)
		ys = append(ys, lo.SumBy(entries, func(e domain.MoodEntry) float64 { return e.Mood })/float64(len(entries)))
		lastX = math.Max(lastX, x)
	}

	slope, intercept := leastSquares(xs, ys)
	f := &Forecast{SlopePerDay: slope, DataPoints: len(xs), Trend: Stable}
	switch {
	case slope > stableSlope:
		f.Trend = Improving
	case slope < -stableSlope:
		f.Trend = Declining
	}
	for i := 1; i <= forecastHorizon; i++ {
		v := intercept + slope*(lastX+float64(i))
		f.PredictedMood = append(f.PredictedMood, math.Round(lo.Clamp(v, 1, 10)*10)/10)
	}
	return f
}

func leastSquares(xs, ys []float64) (slope, intercept float64) {
	n := float64(len(xs))
	sumX, sumY := lo.Sum(xs), lo.Sum(ys)
	var sumXY, sumXX float64
	for i := range xs {
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / den
	intercept = (sumY - slope*sumX) / n
	return
}

// ComputeAlerts expects moods oldest first.
func ComputeAlerts(moods []domain.MoodEntry, now time.Time) []Alert {
	alerts := []Alert{}
	if len(moods) == 0 {
		return append(alerts, Alert{Kind: "no_check_ins", Severity: SeverityInfo, Message: "No mood check-ins yet. A quick check-in helps tailor your plan."})
	}

	last := moods[len(moods)-1]
	if gap := now.Sub(last.CreatedAt); gap > silenceAlert {
		alerts = append(alerts, Alert{
			Kind:     "check_in_gap",
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("It has been %d days since your last check-in.", int(gap.Hours()/24)),
		})
	}

	if len(moods) >= anxietyStreak {
		recent := moods[len(moods)-anxietyStreak:]
		if lo.EveryBy(recent, func(e domain.MoodEntry) bool { return e.Anxiety >= anxietyAlertLevel }) {
			alerts = append(alerts, Alert{
				Kind:     "anxiety_streak",
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("Your last %d check-ins show high anxiety. Consider reaching out to your therapist.", anxietyStreak),
			})
		}
	}

	if len(moods) >= 2 {
		prev := moods[len(moods)-2]
		if prev.Mood-last.Mood >= moodDropAlert {
			alerts = append(alerts, Alert{
				Kind:     "mood_drop",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("Your mood dropped from %.0f to %.0f since your previous check-in.", prev.Mood, last.Mood),
			})
		}
	}
	return alerts
}
