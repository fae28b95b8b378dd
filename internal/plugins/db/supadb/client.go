package supadb

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	supabase "github.com/supabase-community/supabase-go"

	"github.com/havenhealth/haven/internal/domain"
)

const (
	tableSessions    = "therapy_sessions"
	tableTherapists  = "therapists"
	tableAssessments = "user_assessments"
	tableClinical    = "clinical_profiles"
	tableMoods       = "mood_entries"
	tableGoals       = "wellness_goals"
	tableMemories    = "conversation_memories"
	tablePreferences = "user_preferences"
	tableMatches     = "therapist_matches"
)

var _ domain.Store = (*Client)(nil)

// Client wraps the Supabase SDK to expose typed repositories for haven.
type Client struct {
	client *supabase.Client
}

// NewClient connects with the service-role key, which bypasses row level
// security; callers are expected to scope every query by user id.
func NewClient(url, key string) (*Client, error) {
	if url == "" || key == "" {
		return nil, fmt.Errorf("supabase credentials missing: SUPABASE_URL or SUPABASE_SERVICE_ROLE_KEY not set")
	}
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, errors.Wrap(err, "supadb: create client")
	}
	return &Client{client: client}, nil
}

// NewClientFromEnv instantiates the client when credentials are present.
func NewClientFromEnv() (*Client, error) {
	return NewClient(os.Getenv("SUPABASE_URL"), os.Getenv("SUPABASE_SERVICE_ROLE_KEY"))
}

// Ping verifies the Supabase connection with a one-row read.
func (c *Client) Ping(ctx context.Context) error {
	_ = ctx
	if c == nil || c.client == nil {
		return fmt.Errorf("supabase client not initialized")
	}
	_, err := c.client.From(tableTherapists).Select("id", "", false).Limit(1, "").ExecuteTo(&[]struct{}{})
	return errors.Wrap(err, "supadb: ping")
}

func (c *Client) Sessions() domain.TherapySessionRepository {
	return &SessionRepository{client: c.client}
}

func (c *Client) Therapists() domain.TherapistRepository {
	return &TherapistRepository{client: c.client}
}

func (c *Client) Profiles() domain.ProfileRepository {
	return &ProfileRepository{client: c.client}
}

func (c *Client) Moods() domain.MoodRepository {
	return &MoodRepository{client: c.client}
}

func (c *Client) Goals() domain.GoalRepository {
	return &GoalRepository{client: c.client}
}

func (c *Client) Memories() domain.MemoryRepository {
	return &MemoryRepository{client: c.client}
}

func (c *Client) Preferences() domain.PreferenceRepository {
	return &PreferenceRepository{client: c.client}
}

func (c *Client) Matches() domain.MatchRepository {
	return &MatchRepository{client: c.client}
}
