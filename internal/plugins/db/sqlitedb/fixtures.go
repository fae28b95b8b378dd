package sqlitedb

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/havenhealth/haven/internal/domain"
)

// Fixtures is the YAML seed format for a local database.
type Fixtures struct {
	Therapists       []domain.TherapistProfile `yaml:"therapists"`
	Assessments      []domain.Assessment       `yaml:"assessments"`
	ClinicalProfiles []domain.ClinicalProfile  `yaml:"clinical_profiles"`
	Moods            []domain.MoodEntry        `yaml:"moods"`
	Goals            []domain.Goal             `yaml:"goals"`
}

// Counts reports how many rows of each kind a fixture set holds.
func (f *Fixtures) Counts() map[string]int {
	return map[string]int{
		colTherapists:  len(f.Therapists),
		colAssessments: len(f.Assessments),
		colClinical:    len(f.ClinicalProfiles),
		colMoods:       len(f.Moods),
		colGoals:       len(f.Goals),
	}
}

func LoadFixtures(path string) (*Fixtures, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlitedb: open fixtures %s", path)
	}
	defer file.Close()
	return ReadFixtures(file)
}

func ReadFixtures(r io.Reader) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "sqlitedb: decode fixtures")
	}
	return &f, nil
}

// Seed writes every fixture row, replacing rows with the same key. Mood
// entries and goals without an id or timestamp get one.
func (s *Store) Seed(ctx context.Context, f *Fixtures) error {
	now := time.Now().UTC()
	for _, t := range f.Therapists {
		if t.ID == "" {
			return errors.New("sqlitedb: therapist fixture without id")
		}
		if err := s.Put(ctx, colTherapists, t.ID, "", t.ID, t); err != nil {
			return err
		}
	}
	for _, a := range f.Assessments {
		if err := s.Put(ctx, colAssessments, a.UserID, a.UserID, "", a); err != nil {
			return err
		}
	}
	for _, c := range f.ClinicalProfiles {
		if err := s.Put(ctx, colClinical, c.UserID, c.UserID, "", c); err != nil {
			return err
		}
	}
	for _, m := range f.Moods {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if err := s.Put(ctx, colMoods, m.ID, m.UserID, timeKey(m.CreatedAt), m); err != nil {
			return err
		}
	}
	for _, g := range f.Goals {
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		if g.CreatedAt.IsZero() {
			g.CreatedAt = now
		}
		if g.Status == "" {
			g.Status = domain.GoalActive
		}
		if err := s.Put(ctx, colGoals, g.ID, g.UserID, timeKey(g.CreatedAt), g); err != nil {
			return err
		}
	}
	return nil
}
