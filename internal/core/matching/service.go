package matching

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/havenhealth/haven/internal/domain"
	debuglog "github.com/havenhealth/haven/internal/log"
)

// SnapshotSize is how many top matches are persisted after each ranking.
const SnapshotSize = 3

type Service struct {
	therapists domain.TherapistRepository
	profiles   domain.ProfileRepository
	matches    domain.MatchRepository
}

func NewService(store domain.Store) *Service {
	return &Service{
		therapists: store.Therapists(),
		profiles:   store.Profiles(),
		matches:    store.Matches(),
	}
}

// Match ranks every therapist for userID, best first, and returns at most
// limit results (all when limit <= 0). Profile fetch failures degrade to
// neutral sub-scores. When the therapist list cannot be loaded the result
// is empty and the error is returned.
func (s *Service) Match(ctx context.Context, userID string, limit int) ([]domain.CompatibilityScore, error) {
	var (
		wg         sync.WaitGroup
		therapists []domain.TherapistProfile
		listErr    error
		assessment *domain.Assessment
		clinical   *domain.ClinicalProfile
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		therapists, listErr = s.therapists.List(ctx)
	}()
	go func() {
		defer wg.Done()
		assessment = s.assessment(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		clinical = s.clinicalProfile(ctx, userID)
	}()
	wg.Wait()

	if listErr != nil {
		return []domain.CompatibilityScore{}, fmt.Errorf("could not list therapists: %w", listErr)
	}

	scores := lo.Map(therapists, func(t domain.TherapistProfile, _ int) domain.CompatibilityScore {
		return Score(t, assessment, clinical)
	})
	Rank(scores)

	if len(scores) > 0 {
		top := scores[:min(SnapshotSize, len(scores))]
		if err := s.matches.SaveSnapshot(ctx, userID, top); err != nil {
			debuglog.Log("matching: snapshot for %s not saved: %v\n", userID, err)
		}
	}

	if limit > 0 && len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}

// Select scores one therapist for userID and persists it as the user's
// chosen match.
func (s *Service) Select(ctx context.Context, userID, therapistID string) (*domain.CompatibilityScore, error) {
	therapist, err := s.therapists.Get(ctx, therapistID)
	if err != nil {
		return nil, fmt.Errorf("could not load therapist %s: %w", therapistID, err)
	}
	score := Score(*therapist, s.assessment(ctx, userID), s.clinicalProfile(ctx, userID))
	if err = s.matches.SaveSelection(ctx, userID, score); err != nil {
		return nil, fmt.Errorf("could not save selection: %w", err)
	}
	return &score, nil
}

// Rank sorts scores by final score, then raw score, then therapist id so
// ties resolve the same way every time.
func Rank(scores []domain.CompatibilityScore) {
	slices.SortStableFunc(scores, func(a, b domain.CompatibilityScore) int {
		if c := cmp.Compare(b.FinalScore, a.FinalScore); c != 0 {
			return c
		}
		if c := cmp.Compare(b.RawScore, a.RawScore); c != 0 {
			return c
		}
		return cmp.Compare(a.TherapistID, b.TherapistID)
	})
}

func (s *Service) assessment(ctx context.Context, userID string) *domain.Assessment {
	a, err := s.profiles.GetAssessment(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			debuglog.Log("matching: assessment for %s unavailable: %v\n", userID, err)
		}
		return &domain.Assessment{UserID: userID}
	}
	return a
}

func (s *Service) clinicalProfile(ctx context.Context, userID string) *domain.ClinicalProfile {
	c, err := s.profiles.GetClinicalProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			debuglog.Log("matching: clinical profile for %s unavailable: %v\n", userID, err)
		}
		return &domain.ClinicalProfile{UserID: userID}
	}
	return c
}
