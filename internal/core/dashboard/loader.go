// Package dashboard assembles a user's analytics view: session metrics, a
// mood forecast, alerts and top recommendations. Loads are fenced so a
// slow, stale load can never replace a newer one.
package dashboard

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/havenhealth/haven/internal/core/suggest"
	"github.com/havenhealth/haven/internal/domain"
	debuglog "github.com/havenhealth/haven/internal/log"
	"github.com/havenhealth/haven/internal/util"
)

const (
	DefaultRefresh     = 30 * time.Second
	recentSessions     = 20
	moodWindow         = 30 * 24 * time.Hour
	maxRecommendations = 3
)

type Recommender interface {
	Generate(ctx context.Context, userID string) (*suggest.Result, error)
}

type Snapshot struct {
	Seq             uint64              `json:"seq"`
	UserID          string              `json:"user_id"`
	GeneratedAt     time.Time           `json:"generated_at"`
	Metrics         *Metrics            `json:"metrics"`
	Forecast        *Forecast           `json:"forecast"`
	Alerts          []Alert             `json:"alerts"`
	Recommendations []domain.Suggestion `json:"recommendations"`
	Errors          []string            `json:"errors,omitempty"`
}

type userSlot struct {
	fence  util.Fence
	mu     sync.Mutex
	latest *Snapshot
}

// Loader is constructed once by the composition root and shared by every
// request.
type Loader struct {
	sessions    domain.TherapySessionRepository
	moods       domain.MoodRepository
	recommender Recommender
	clock       func() time.Time

	mu    sync.Mutex
	users map[string]*userSlot
}

func NewLoader(store domain.Store, recommender Recommender) *Loader {
	return &Loader{
		sessions:    store.Sessions(),
		moods:       store.Moods(),
		recommender: recommender,
		clock:       time.Now,
		users:       map[string]*userSlot{},
	}
}

func (l *Loader) slot(userID string) *userSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.users[userID]
	if !ok {
		s = &userSlot{}
		l.users[userID] = s
	}
	return s
}

// Load fetches every panel concurrently. A failed source leaves its panels
// empty and is named in Errors. The snapshot is published as the user's
// latest only if no newer load was issued meanwhile; the second result
// reports whether that happened.
func (l *Loader) Load(ctx context.Context, userID string) (*Snapshot, bool) {
	slot := l.slot(userID)
	seq := slot.fence.Next()
	now := l.clock()

	var (
		wg       sync.WaitGroup
		sessions []domain.SessionSummary
		moods    []domain.MoodEntry
		recs     *suggest.Result
		errs     [3]error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		sessions, errs[0] = l.sessions.ListRecent(ctx, userID, recentSessions)
	}()
	go func() {
		defer wg.Done()
		moods, errs[1] = l.moods.ListSince(ctx, userID, now.Add(-moodWindow))
	}()
	go func() {
		defer wg.Done()
		if l.recommender == nil {
			return
		}
		recs, errs[2] = l.recommender.Generate(ctx, userID)
	}()
	wg.Wait()

	snap := &Snapshot{
		Seq:             seq,
		UserID:          userID,
		GeneratedAt:     now,
		Alerts:          []Alert{},
		Recommendations: []domain.Suggestion{},
	}
	for i, name := range []string{"sessions", "moods", "recommendations"} {
		if errs[i] != nil {
			debuglog.Log("dashboard: %s for %s unavailable: %v\n", name, userID, errs[i])
			snap.Errors = append(snap.Errors, name)
		}
	}

	if errs[1] != nil {
		moods = nil
	}
	slices.SortFunc(moods, func(a, b domain.MoodEntry) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if errs[0] == nil || errs[1] == nil {
		snap.Metrics = ComputeMetrics(sessions, moods)
	}
	if errs[1] == nil {
		snap.Forecast = ComputeForecast(moods)
		snap.Alerts = ComputeAlerts(moods, now)
	}
	if recs != nil {
		top := slices.Clone(recs.Suggestions)
		slices.SortStableFunc(top, func(a, b domain.Suggestion) int { return cmp.Compare(b.Confidence, a.Confidence) })
		snap.Recommendations = top[:min(maxRecommendations, len(top))]
		snap.Errors = append(snap.Errors, recs.Failures...)
	}

	return snap, l.publish(slot, snap)
}

func (l *Loader) publish(slot *userSlot, snap *Snapshot) bool {
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if !slot.fence.IsLatest(snap.Seq) || (slot.latest != nil && slot.latest.Seq > snap.Seq) {
		debuglog.Debug(debuglog.Detailed, "dashboard: dropping stale load %d for %s\n", snap.Seq, snap.UserID)
		return false
	}
	slot.latest = snap
	return true
}

// Latest returns the most recent published snapshot for userID, if any.
func (l *Loader) Latest(userID string) (*Snapshot, bool) {
	slot := l.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.latest, slot.latest != nil
}

// Watch loads immediately and then every interval, handing each published
// snapshot to fn, until ctx is cancelled.
func (l *Loader) Watch(ctx context.Context, userID string, interval time.Duration, fn func(*Snapshot)) error {
	if interval <= 0 {
		interval = DefaultRefresh
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if snap, ok := l.Load(ctx, userID); ok && ctx.Err() == nil {
			fn(snap)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
