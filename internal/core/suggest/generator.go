// Package suggest turns recent mood check-ins and goals into ranked,
// explained suggestions. Nothing here writes back to storage.
package suggest

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/havenhealth/haven/internal/domain"
	debuglog "github.com/havenhealth/haven/internal/log"
)

const DefaultWindow = 30 * 24 * time.Hour

// Result always carries whatever could be computed. Failures names the
// data sources that could not be read.
type Result struct {
	Suggestions []domain.Suggestion `json:"suggestions"`
	Failures    []string            `json:"failures,omitempty"`
}

func (r *Result) Partial() bool {
	return len(r.Failures) > 0
}

type Generator struct {
	moods domain.MoodRepository
	goals domain.GoalRepository

	Window   time.Duration
	Location *time.Location
	Clock    func() time.Time
}

func NewGenerator(store domain.Store) *Generator {
	return &Generator{
		moods:    store.Moods(),
		goals:    store.Goals(),
		Window:   DefaultWindow,
		Location: time.UTC,
		Clock:    time.Now,
	}
}

// Generate fetches moods and goals concurrently. A failed fetch empties
// only the categories that depend on it.
func (g *Generator) Generate(ctx context.Context, userID string) (*Result, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	now := g.Clock()

	var (
		wg       sync.WaitGroup
		moods    []domain.MoodEntry
		goals    []domain.Goal
		moodErr  error
		goalsErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		moods, moodErr = g.moods.ListSince(ctx, userID, now.Add(-g.Window))
	}()
	go func() {
		defer wg.Done()
		goals, goalsErr = g.goals.List(ctx, userID)
	}()
	wg.Wait()

	result := &Result{Suggestions: []domain.Suggestion{}}
	if moodErr != nil {
		debuglog.Log("suggest: moods for %s unavailable: %v\n", userID, moodErr)
		result.Failures = append(result.Failures, "moods")
		moods = nil
	}
	if goalsErr != nil {
		debuglog.Log("suggest: goals for %s unavailable: %v\n", userID, goalsErr)
		result.Failures = append(result.Failures, "goals")
	}

	stats := Summarize(moods, g.Location)
	if goalsErr == nil {
		result.Suggestions = append(result.Suggestions, GoalAdjustments(stats, goals, now)...)
	}
	result.Suggestions = append(result.Suggestions, Techniques(stats)...)
	result.Suggestions = append(result.Suggestions, Content(stats)...)
	result.Suggestions = append(result.Suggestions, Timing(stats)...)

	slices.SortStableFunc(result.Suggestions, func(a, b domain.Suggestion) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	debuglog.Debug(debuglog.Detailed, "suggest: %d suggestions for %s from %d moods and %d goals\n",
		len(result.Suggestions), userID, len(moods), len(goals))
	return result, nil
}
