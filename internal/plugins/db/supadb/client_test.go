package supadb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenhealth/haven/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, "service-key")
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient("", "")
	assert.Error(t, err)
}

func TestTherapistGet(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/therapists", r.URL.Path)
		assert.Equal(t, "eq.t-1", r.URL.Query().Get("id"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]domain.TherapistProfile{{ID: "t-1", Name: "Dr. Okafor", YearsExperience: 9}})
	})

	got, err := client.Therapists().Get(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Okafor", got.Name)
	assert.Equal(t, 9, got.YearsExperience)
}

func TestTherapistGetNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	})

	_, err := client.Therapists().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMoodListSinceFiltersByUserAndTime(t *testing.T) {
	since := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/rest/v1/mood_entries", r.URL.Path)
		assert.Equal(t, "eq.u-1", q.Get("user_id"))
		assert.Equal(t, "gte."+since.Format(time.RFC3339), q.Get("created_at"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"m1","user_id":"u-1","mood":6,"anxiety":3,"energy":5,"created_at":"2026-05-02T08:00:00Z"}]`))
	})

	got, err := client.Moods().ListSince(context.Background(), "u-1", since)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 6.0, got[0].Mood)
}

func TestSessionCreateReturnsID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u-1", body["user_id"])
		assert.Equal(t, "active", body["status"])
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": body["id"], "user_id": "u-1", "status": "active"}})
	})

	id, err := client.Sessions().Create(context.Background(), "u-1", "t-1")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestSessionCompleteScopesByOwner(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.s-1", q.Get("id"))
		w.Header().Set("Content-Type", "application/json")
		if q.Get("user_id") != "eq.u-1" {
			_, _ = w.Write([]byte("[]"))
			return
		}
		_, _ = w.Write([]byte(`[{"id":"s-1","user_id":"u-1","status":"ended"}]`))
	})
	repo := client.Sessions()
	ctx := context.Background()

	require.NoError(t, repo.Complete(ctx, &domain.SessionRecord{State: domain.SessionState{SessionID: "s-1", UserID: "u-1"}}))
	require.NoError(t, repo.SaveMetrics(ctx, "u-1", "s-1", domain.SessionMetrics{MessageCount: 2}))

	err := repo.Complete(ctx, &domain.SessionRecord{State: domain.SessionState{SessionID: "s-1", UserID: "intruder"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.SaveMetrics(ctx, "intruder", "s-1", domain.SessionMetrics{}), domain.ErrNotFound)
}
