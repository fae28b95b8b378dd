package suggest

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/havenhealth/haven/internal/domain"
)

const (
	lowMood      = 4.0
	highMood     = 7.0
	highAnxiety  = 6.0
	lowEnergy    = 4.0
	maxFocus     = 5
	stalledAfter = 14 * 24 * time.Hour
	stalledBelow = 25.0
	timingSpread = 1.5
	minPerPeriod = 2
)

type Period string

const (
	Morning   Period = "morning"
	Afternoon Period = "afternoon"
	Evening   Period = "evening"
	Night     Period = "night"
)

var periods = []Period{Morning, Afternoon, Evening, Night}

func periodOf(t time.Time) Period {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return Morning
	case h >= 12 && h < 17:
		return Afternoon
	case h >= 17 && h < 22:
		return Evening
	default:
		return Night
	}
}

// MoodStats aggregates mood check-ins over the analysis window.
type MoodStats struct {
	Count      int
	AvgMood    float64
	AvgAnxiety float64
	AvgEnergy  float64
	ByPeriod   map[Period]PeriodStats
}

type PeriodStats struct {
	Count   int
	AvgMood float64
}

func Summarize(entries []domain.MoodEntry, loc *time.Location) MoodStats {
	stats := MoodStats{Count: len(entries), ByPeriod: map[Period]PeriodStats{}}
	if len(entries) == 0 {
		return stats
	}
	if loc == nil {
		loc = time.UTC
	}
	n := float64(len(entries))
	stats.AvgMood = lo.SumBy(entries, func(e domain.MoodEntry) float64 { return e.Mood }) / n
	stats.AvgAnxiety = lo.SumBy(entries, func(e domain.MoodEntry) float64 { return e.Anxiety }) / n
	stats.AvgEnergy = lo.SumBy(entries, func(e domain.MoodEntry) float64 { return e.Energy }) / n

	grouped := lo.GroupBy(entries, func(e domain.MoodEntry) Period { return periodOf(e.CreatedAt.In(loc)) })
	for p, group := range grouped {
		stats.ByPeriod[p] = PeriodStats{
			Count:   len(group),
			AvgMood: lo.SumBy(group, func(e domain.MoodEntry) float64 { return e.Mood }) / float64(len(group)),
		}
	}
	return stats
}

// GoalAdjustments needs both mood and goal data; with no mood data only
// the goal-only rules fire.
func GoalAdjustments(stats MoodStats, goals []domain.Goal, now time.Time) []domain.Suggestion {
	var out []domain.Suggestion
	active := lo.Filter(goals, func(g domain.Goal, _ int) bool { return g.Status == domain.GoalActive })
	completed := lo.CountBy(goals, func(g domain.Goal) bool { return g.Status == domain.GoalCompleted })

	if stats.Count > 0 && stats.AvgMood < lowMood && len(active) > 0 {
		g := lo.MinBy(active, func(a, b domain.Goal) bool { return a.Progress < b.Progress })
		out = append(out, domain.Suggestion{
			ID:          "goal-break-down-" + g.ID,
			Category:    domain.SuggestGoalAdjustment,
			Title:       fmt.Sprintf("Break down %q into smaller steps", g.Title),
			Description: "Pick one small action you can finish this week.",
			Reasoning:   fmt.Sprintf("Your average mood has been %.1f/10; smaller wins can help rebuild momentum.", stats.AvgMood),
			Confidence:  0.85,
			GoalID:      g.ID,
		})
	}

	if stats.Count > 0 && stats.AvgMood >= highMood && completed >= 2 {
		out = append(out, domain.Suggestion{
			ID:          "goal-stretch",
			Category:    domain.SuggestGoalAdjustment,
			Title:       "Set a stretch goal",
			Description: "You have been finishing goals while feeling good. Consider a slightly more ambitious one.",
			Reasoning:   fmt.Sprintf("%d goals completed with an average mood of %.1f/10.", completed, stats.AvgMood),
			Confidence:  0.7,
		})
	}

	if len(active) > maxFocus {
		out = append(out, domain.Suggestion{
			ID:          "goal-focus",
			Category:    domain.SuggestGoalAdjustment,
			Title:       "Focus on fewer goals",
			Description: "Pause a few goals so you can give the rest more attention.",
			Reasoning:   fmt.Sprintf("You have %d active goals.", len(active)),
			Confidence:  0.75,
		})
	}

	stalled := lo.Filter(active, func(g domain.Goal, _ int) bool {
		return g.Progress < stalledBelow && !g.CreatedAt.IsZero() && now.Sub(g.CreatedAt) > stalledAfter
	})
	for _, g := range lo.Slice(stalled, 0, 2) {
		out = append(out, domain.Suggestion{
			ID:          "goal-revisit-" + g.ID,
			Category:    domain.SuggestGoalAdjustment,
			Title:       fmt.Sprintf("Revisit %q", g.Title),
			Description: "Check whether this goal still matters to you or needs a new first step.",
			Reasoning:   fmt.Sprintf("Progress is at %.0f%% after %d days.", g.Progress, int(now.Sub(g.CreatedAt).Hours()/24)),
			Confidence:  0.65,
			GoalID:      g.ID,
		})
	}
	return out
}

func Techniques(stats MoodStats) []domain.Suggestion {
	if stats.Count == 0 {
		return nil
	}
	var out []domain.Suggestion
	if stats.AvgAnxiety > highAnxiety {
		out = append(out, domain.Suggestion{
			ID:          "technique-box-breathing",
			Category:    domain.SuggestTechnique,
			Title:       "Try box breathing",
			Description: "Breathe in for 4, hold for 4, out for 4, hold for 4. Repeat for two minutes.",
			Reasoning:   fmt.Sprintf("Your average anxiety has been %.1f/10.", stats.AvgAnxiety),
			Confidence:  0.9,
		})
	}
	if stats.AvgMood < lowMood {
		out = append(out, domain.Suggestion{
			ID:          "technique-behavioral-activation",
			Category:    domain.SuggestTechnique,
			Title:       "Schedule one pleasant activity a day",
			Description: "Plan something small you used to enjoy and put it in your calendar.",
			Reasoning:   fmt.Sprintf("Your average mood has been %.1f/10.", stats.AvgMood),
			Confidence:  0.8,
		})
	}
	if stats.AvgEnergy < lowEnergy {
		out = append(out, domain.Suggestion{
			ID:          "technique-gentle-movement",
			Category:    domain.SuggestTechnique,
			Title:       "Add ten minutes of gentle movement",
			Description: "A short walk or stretching can lift energy without draining it.",
			Reasoning:   fmt.Sprintf("Your average energy has been %.1f/10.", stats.AvgEnergy),
			Confidence:  0.7,
		})
	}
	if len(out) == 0 && stats.AvgMood >= 6 {
		out = append(out, domain.Suggestion{
			ID:          "technique-gratitude",
			Category:    domain.SuggestTechnique,
			Title:       "Keep a gratitude journal",
			Description: "Write down three good things each evening to hold on to this stretch.",
			Reasoning:   "Your recent check-ins are steady and positive.",
			Confidence:  0.6,
		})
	}
	return out
}

func Content(stats MoodStats) []domain.Suggestion {
	if stats.Count == 0 {
		return nil
	}
	var out []domain.Suggestion
	if stats.AvgAnxiety > highAnxiety {
		out = append(out, domain.Suggestion{
			ID:          "content-understanding-anxiety",
			Category:    domain.SuggestContent,
			Title:       "Read: Understanding anxiety",
			Description: "A short guide to how anxiety works in the body and why it passes.",
			Reasoning:   "Recommended because your anxiety has been elevated.",
			Confidence:  0.8,
		})
	}
	if stats.AvgMood < lowMood {
		out = append(out, domain.Suggestion{
			ID:          "content-low-mood",
			Category:    domain.SuggestContent,
			Title:       "Listen: Working with low mood",
			Description: "A 10-minute guided session on noticing and responding to low mood.",
			Reasoning:   "Recommended because your mood has been low.",
			Confidence:  0.75,
		})
	}
	if stats.AvgEnergy < lowEnergy {
		out = append(out, domain.Suggestion{
			ID:          "content-sleep-hygiene",
			Category:    domain.SuggestContent,
			Title:       "Read: Sleep hygiene basics",
			Description: "Small evening changes that improve rest and daytime energy.",
			Reasoning:   "Recommended because your energy has been low.",
			Confidence:  0.6,
		})
	}
	return out
}

// Timing compares mood across times of day and points at the best one when
// the spread is wide enough to matter.
func Timing(stats MoodStats) []domain.Suggestion {
	eligible := lo.Filter(periods, func(p Period, _ int) bool { return stats.ByPeriod[p].Count >= minPerPeriod })
	if len(eligible) < 2 {
		return nil
	}
	best := lo.MaxBy(eligible, func(a, b Period) bool { return stats.ByPeriod[a].AvgMood > stats.ByPeriod[b].AvgMood })
	worst := lo.MinBy(eligible, func(a, b Period) bool { return stats.ByPeriod[a].AvgMood < stats.ByPeriod[b].AvgMood })
	spread := stats.ByPeriod[best].AvgMood - stats.ByPeriod[worst].AvgMood
	if spread < timingSpread {
		return nil
	}
	return []domain.Suggestion{{
		ID:          "timing-" + string(best),
		Category:    domain.SuggestTiming,
		Title:       fmt.Sprintf("Plan sessions in the %s", best),
		Description: fmt.Sprintf("You tend to feel best in the %s; schedule demanding tasks and therapy sessions then.", best),
		Reasoning:   fmt.Sprintf("Mood averages %.1f in the %s versus %.1f in the %s.", stats.ByPeriod[best].AvgMood, best, stats.ByPeriod[worst].AvgMood, worst),
		Confidence:  0.7,
	}}
}
