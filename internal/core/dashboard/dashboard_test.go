package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenhealth/haven/internal/core/suggest"
	"github.com/havenhealth/haven/internal/domain"
)

var now = time.Date(2026, 6, 10, 18, 0, 0, 0, time.UTC)

type fakeSessions struct {
	domain.TherapySessionRepository
	summaries []domain.SessionSummary
	err       error
}

func (f *fakeSessions) ListRecent(context.Context, string, int) ([]domain.SessionSummary, error) {
	return f.summaries, f.err
}

type fakeMoods struct {
	mu      sync.Mutex
	entries []domain.MoodEntry
	err     error
	hook    func(call int)
	calls   int
}

func (f *fakeMoods) ListSince(context.Context, string, time.Time) ([]domain.MoodEntry, error) {
	f.mu.Lock()
	f.calls++
	call, hook := f.calls, f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	return append([]domain.MoodEntry{}, f.entries...), f.err
}

type fakeRecommender struct {
	result *suggest.Result
	err    error
}

func (f fakeRecommender) Generate(context.Context, string) (*suggest.Result, error) {
	return f.result, f.err
}

type fakeStore struct {
	domain.Store
	sessions *fakeSessions
	moods    *fakeMoods
}

func (f *fakeStore) Sessions() domain.TherapySessionRepository { return f.sessions }
func (f *fakeStore) Moods() domain.MoodRepository              { return f.moods }

func entry(daysAgo int, mood, anxiety float64) domain.MoodEntry {
	return domain.MoodEntry{Mood: mood, Anxiety: anxiety, CreatedAt: now.AddDate(0, 0, -daysAgo)}
}

func newLoader(store *fakeStore, rec Recommender) *Loader {
	l := NewLoader(store, rec)
	l.clock = func() time.Time { return now }
	return l
}

func fixtureStore() *fakeStore {
	return &fakeStore{
		sessions: &fakeSessions{summaries: []domain.SessionSummary{
			{ID: "s1", Status: domain.SessionEnded, Metrics: &domain.SessionMetrics{Duration: 1800, MessageCount: 20, TherapeuticProgress: 0.4, StressLevelChange: -0.2}},
			{ID: "s2", Status: domain.SessionEnded, Metrics: &domain.SessionMetrics{Duration: 600, MessageCount: 10, TherapeuticProgress: 0.2}},
			{ID: "s3", Status: domain.SessionActive},
		}},
		moods: &fakeMoods{entries: []domain.MoodEntry{
			entry(1, 7, 3), entry(4, 4, 5), entry(3, 5, 4), entry(2, 6, 3),
		}},
	}
}

func TestLoadAssemblesPanels(t *testing.T) {
	rec := fakeRecommender{result: &suggest.Result{Suggestions: []domain.Suggestion{
		{ID: "a", Confidence: 0.6}, {ID: "b", Confidence: 0.9}, {ID: "c", Confidence: 0.7}, {ID: "d", Confidence: 0.8},
	}}}
	l := newLoader(fixtureStore(), rec)

	snap, published := l.Load(context.Background(), "u-1")
	require.True(t, published)
	assert.Empty(t, snap.Errors)

	require.NotNil(t, snap.Metrics)
	assert.Equal(t, 3, snap.Metrics.SessionCount)
	assert.Equal(t, 2, snap.Metrics.CompletedSessions)
	assert.InDelta(t, 40, snap.Metrics.TotalMinutes, 1e-9)
	assert.InDelta(t, 20, snap.Metrics.AverageMinutes, 1e-9)
	assert.InDelta(t, 0.3, snap.Metrics.AverageProgress, 1e-9)
	assert.InDelta(t, 5.5, snap.Metrics.AverageMood, 1e-9)

	require.NotNil(t, snap.Forecast)
	assert.Equal(t, Improving, snap.Forecast.Trend)
	assert.InDelta(t, 1.0, snap.Forecast.SlopePerDay, 1e-9)
	assert.Equal(t, []float64{8, 9, 10, 10, 10, 10, 10}, snap.Forecast.PredictedMood)

	ids := []string{}
	for _, r := range snap.Recommendations {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"b", "d", "c"}, ids)

	latest, ok := l.Latest("u-1")
	require.True(t, ok)
	assert.Same(t, snap, latest)
}

func TestLoadPartialFailure(t *testing.T) {
	store := fixtureStore()
	store.moods.err = errors.New("moods offline")
	l := newLoader(store, fakeRecommender{err: errors.New("suggestions offline")})

	snap, published := l.Load(context.Background(), "u-1")
	require.True(t, published)
	assert.ElementsMatch(t, []string{"moods", "recommendations"}, snap.Errors)
	require.NotNil(t, snap.Metrics, "sessions still produce metrics")
	assert.Equal(t, 3, snap.Metrics.SessionCount)
	assert.Nil(t, snap.Forecast)
	assert.Empty(t, snap.Alerts)
	assert.Empty(t, snap.Recommendations)
}

func TestStaleLoadIsNotPublished(t *testing.T) {
	store := fixtureStore()
	release := make(chan struct{})
	entered := make(chan struct{})
	store.moods.hook = func(call int) {
		if call == 1 {
			close(entered)
			<-release
		}
	}
	l := newLoader(store, nil)

	type outcome struct {
		snap      *Snapshot
		published bool
	}
	slow := make(chan outcome, 1)
	go func() {
		s, ok := l.Load(context.Background(), "u-1")
		slow <- outcome{s, ok}
	}()
	<-entered

	fresh, ok := l.Load(context.Background(), "u-1")
	require.True(t, ok)
	close(release)

	stale := <-slow
	assert.False(t, stale.published)
	assert.Less(t, stale.snap.Seq, fresh.Seq)

	latest, _ := l.Latest("u-1")
	assert.Equal(t, fresh.Seq, latest.Seq)
}

func TestLoadsForDifferentUsersDoNotFence(t *testing.T) {
	l := newLoader(fixtureStore(), nil)
	_, okA := l.Load(context.Background(), "u-a")
	_, okB := l.Load(context.Background(), "u-b")
	assert.True(t, okA)
	assert.True(t, okB)
}

func TestWatchStopsOnCancel(t *testing.T) {
	l := newLoader(fixtureStore(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	var seen atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- l.Watch(ctx, "u-1", 5*time.Millisecond, func(*Snapshot) {
			if seen.Add(1) == 3 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.GreaterOrEqual(t, seen.Load(), int32(3))
}

func TestComputeAlerts(t *testing.T) {
	tests := []struct {
		name  string
		moods []domain.MoodEntry
		want  []string
	}{
		{name: "no data", moods: nil, want: []string{"no_check_ins"}},
		{name: "calm", moods: []domain.MoodEntry{entry(2, 6, 3), entry(1, 6, 3)}, want: []string{}},
		{name: "gap", moods: []domain.MoodEntry{entry(10, 6, 3)}, want: []string{"check_in_gap"}},
		{name: "anxiety streak", moods: []domain.MoodEntry{entry(3, 5, 8), entry(2, 5, 9), entry(1, 5, 8)}, want: []string{"anxiety_streak"}},
		{name: "mood drop", moods: []domain.MoodEntry{entry(2, 7, 3), entry(1, 4, 3)}, want: []string{"mood_drop"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kinds := []string{}
			for _, a := range ComputeAlerts(tt.moods, now) {
				kinds = append(kinds, a.Kind)
			}
			assert.Equal(t, tt.want, kinds)
		})
	}
}

func TestComputeForecastNeedsThreeDays(t *testing.T) {
	f := ComputeForecast([]domain.MoodEntry{entry(1, 5, 3), entry(1, 6, 3), entry(2, 5, 3)})
	assert.Equal(t, Unknown, f.Trend)
	assert.Equal(t, 2, f.DataPoints)
	assert.Empty(t, f.PredictedMood)

	flat := ComputeForecast([]domain.MoodEntry{entry(3, 5, 3), entry(2, 5, 3), entry(1, 5, 3)})
	assert.Equal(t, Stable, flat.Trend)
	assert.Equal(t, []float64{5, 5, 5, 5, 5, 5, 5}, flat.PredictedMood)
}

func TestComputeForecastIsDeterministic(t *testing.T) {
	moods := []domain.MoodEntry{
		entry(9, 3.1, 5), entry(8, 4.7, 5), entry(7, 2.3, 5), entry(6, 6.9, 5),
		entry(5, 5.3, 5), entry(4, 7.7, 5), entry(3, 4.1, 5), entry(2, 8.3, 5), entry(1, 6.1, 5),
	}
	want := ComputeForecast(moods)
	for range 50 {
		got := ComputeForecast(moods)
		assert.Equal(t, want.SlopePerDay, got.SlopePerDay)
		assert.Equal(t, want.PredictedMood, got.PredictedMood)
	}
}
