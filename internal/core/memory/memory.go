// Package memory keeps noteworthy facts from past sessions so the
// therapist persona can refer back to them.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/havenhealth/haven/internal/domain"
	debuglog "github.com/havenhealth/haven/internal/log"
)

var (
	ErrInvalidType  = errors.New("unknown memory type")
	ErrEmptyContent = errors.New("memory content is empty")
	ErrInactive     = errors.New("memory is no longer active")
	ErrInvalidBoost = errors.New("relevance boost must be a finite number")
)

type Service struct {
	repo  domain.MemoryRepository
	clock func() time.Time

	// mu serializes read-modify-write updates made through this process.
	mu sync.Mutex
}

func NewService(store domain.Store) *Service {
	return &Service{repo: store.Memories(), clock: time.Now}
}

// Remember validates and stores a new memory. Importance is clamped to
// [0,1], emotional intensity to [0,10], and tags are lower-cased and
// de-duplicated.
func (s *Service) Remember(ctx context.Context, m domain.ConversationMemory) (*domain.ConversationMemory, error) {
	if !m.MemoryType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, m.MemoryType)
	}
	if m.Content = strings.TrimSpace(m.Content); m.Content == "" {
		return nil, ErrEmptyContent
	}
	if m.UserID == "" {
		return nil, errors.New("memory needs a user id")
	}

	now := s.clock()
	m.ID = uuid.NewString()
	m.ImportanceScore = lo.Clamp(m.ImportanceScore, 0, 1)
	m.EmotionalContext.Intensity = lo.Clamp(m.EmotionalContext.Intensity, 0, 10)
	m.Tags = normalizeTags(m.Tags)
	m.IsActive = true
	m.CreatedAt = now
	m.UpdatedAt = now

	if err := s.repo.Insert(ctx, &m); err != nil {
		return nil, err
	}
	debuglog.Debug(debuglog.Detailed, "memory %s stored for %s (%s)\n", m.ID, m.UserID, m.MemoryType)
	return &m, nil
}

// UpdateMemoryRelevance adds boost to the memory's importance. The result
// never leaves [0,1] however many times it is applied.
func (s *Service) UpdateMemoryRelevance(ctx context.Context, id string, boost float64) (*domain.ConversationMemory, error) {
	if math.IsNaN(boost) || math.IsInf(boost, 0) {
		return nil, ErrInvalidBoost
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.IsActive {
		return nil, ErrInactive
	}
	m.ImportanceScore = lo.Clamp(m.ImportanceScore+boost, 0, 1)
	m.UpdatedAt = s.clock()
	if err = s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.ConversationMemory, error) {
	return s.repo.Get(ctx, id)
}

// Deactivate soft-deletes a memory. Deactivating twice is not an error.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !m.IsActive {
		return nil
	}
	m.IsActive = false
	m.UpdatedAt = s.clock()
	return s.repo.Update(ctx, m)
}

// Recall returns the user's active memories, most important first and then
// most recent. When tags are given only memories carrying at least one of
// them are returned.
func (s *Service) Recall(ctx context.Context, userID string, tags []string, limit int) ([]domain.ConversationMemory, error) {
	all, err := s.repo.ListByUser(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	wanted := normalizeTags(tags)
	out := lo.Filter(all, func(m domain.ConversationMemory, _ int) bool {
		if !m.IsActive {
			return false
		}
		return len(wanted) == 0 || lo.Some(normalizeTags(m.Tags), wanted)
	})

	slices.SortStableFunc(out, func(a, b domain.ConversationMemory) int {
		if c := cmp.Compare(b.ImportanceScore, a.ImportanceScore); c != 0 {
			return c
		}
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func normalizeTags(tags []string) []string {
	out := lo.FilterMap(tags, func(t string, _ int) (string, bool) {
		t = strings.ToLower(strings.TrimSpace(t))
		return t, t != ""
	})
	return lo.Uniq(out)
}
