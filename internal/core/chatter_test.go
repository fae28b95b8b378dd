package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenhealth/haven/internal/chat"
	"github.com/havenhealth/haven/internal/domain"
)

// mockVendor implements the ai.Vendor interface for testing
type mockVendor struct {
	sendStreamError error
	streamChunks    []string
	sendFunc        func(context.Context, []*chat.ChatCompletionMessage, *domain.ChatOptions) (string, error)
	lastMessages    []*chat.ChatCompletionMessage
}

func (m *mockVendor) GetName() string    { return "mock" }
func (m *mockVendor) IsConfigured() bool { return true }
func (m *mockVendor) Configure() error   { return nil }

func (m *mockVendor) ListModels(context.Context) ([]string, error) {
	return []string{"test-model"}, nil
}

func (m *mockVendor) SendStream(_ context.Context, messages []*chat.ChatCompletionMessage, _ *domain.ChatOptions, responseChan chan string) error {
	m.lastMessages = messages
	for _, chunk := range m.streamChunks {
		responseChan <- chunk
	}
	// Close the channel like real vendors do
	close(responseChan)
	return m.sendStreamError
}

func (m *mockVendor) Send(ctx context.Context, messages []*chat.ChatCompletionMessage, opts *domain.ChatOptions) (string, error) {
	m.lastMessages = messages
	if m.sendFunc != nil {
		return m.sendFunc(ctx, messages, opts)
	}
	return "test response", nil
}

type fakeTherapists map[string]domain.TherapistProfile

func (f fakeTherapists) Get(_ context.Context, id string) (*domain.TherapistProfile, error) {
	t, ok := f[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (f fakeTherapists) List(context.Context) ([]domain.TherapistProfile, error) {
	out := make([]domain.TherapistProfile, 0, len(f))
	for _, t := range f {
		out = append(out, t)
	}
	return out, nil
}

type fakeSessions struct {
	createErr error
	created   []string
	metrics   map[string]domain.SessionMetrics
	completed []*domain.SessionRecord
}

func (f *fakeSessions) Create(_ context.Context, userID, therapistID string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, userID+"/"+therapistID)
	return "session-1", nil
}

func (f *fakeSessions) SaveMetrics(_ context.Context, _, id string, m domain.SessionMetrics) error {
	if f.metrics == nil {
		f.metrics = map[string]domain.SessionMetrics{}
	}
	f.metrics[id] = m
	return nil
}

func (f *fakeSessions) Complete(_ context.Context, r *domain.SessionRecord) error {
	f.completed = append(f.completed, r)
	return nil
}

func (f *fakeSessions) ListRecent(context.Context, string, int) ([]domain.SessionSummary, error) {
	return nil, nil
}

type fakeStore struct {
	domain.Store
	therapists fakeTherapists
	sessions   *fakeSessions
}

func (f *fakeStore) Therapists() domain.TherapistRepository    { return f.therapists }
func (f *fakeStore) Sessions() domain.TherapySessionRepository { return f.sessions }

type fakeRecaller struct {
	memories []domain.ConversationMemory
	err      error
}

func (f fakeRecaller) Recall(context.Context, string, []string, int) ([]domain.ConversationMemory, error) {
	return f.memories, f.err
}

func newTestChatter(vendor *mockVendor, recaller Recaller) (*Chatter, *fakeSessions) {
	sessions := &fakeSessions{}
	store := &fakeStore{
		therapists: fakeTherapists{
			"t-1": {
				ID:                 "t-1",
				Name:               "Dr. Rivera",
				Specialties:        []string{"anxiety", "depression"},
				Approaches:         []string{"CBT"},
				YearsExperience:    12,
				CommunicationStyle: "warm",
			},
		},
		sessions: sessions,
	}
	return NewChatter(vendor, "test-model", store, recaller), sessions
}

func TestChatter_StartSession(t *testing.T) {
	vendor := &mockVendor{sendFunc: func(context.Context, []*chat.ChatCompletionMessage, *domain.ChatOptions) (string, error) {
		return "  Welcome, I'm glad you're here.  ", nil
	}}
	chatter, sessions := newTestChatter(vendor, nil)

	started, err := chatter.StartSession(context.Background(), "u-1", "t-1")
	require.NoError(t, err)
	assert.Equal(t, "session-1", started.SessionID)
	assert.Equal(t, "Welcome, I'm glad you're here.", started.Greeting.Content)
	assert.Nil(t, started.Greeting.Metadata["delivery"])
	assert.Equal(t, []string{"u-1/t-1"}, sessions.created)

	require.NotEmpty(t, vendor.lastMessages)
	assert.Equal(t, chat.ChatMessageRoleSystem, vendor.lastMessages[0].Role)
	assert.Contains(t, vendor.lastMessages[0].Content, "Dr. Rivera")
}

func TestChatter_StartSessionGreetingFallback(t *testing.T) {
	vendor := &mockVendor{sendFunc: func(context.Context, []*chat.ChatCompletionMessage, *domain.ChatOptions) (string, error) {
		return "", errors.New("rate limited")
	}}
	chatter, _ := newTestChatter(vendor, nil)

	started, err := chatter.StartSession(context.Background(), "u-1", "t-1")
	require.NoError(t, err, "a greeting failure must not fail the start")
	assert.NotEmpty(t, started.Greeting.Content)
	assert.Equal(t, "fallback", started.Greeting.Metadata["delivery"])
}

func TestChatter_StartSessionErrors(t *testing.T) {
	tests := []struct {
		name      string
		therapist string
		createErr error
		wantIs    error
	}{
		{name: "unknown therapist", therapist: "t-404", wantIs: domain.ErrNotFound},
		{name: "create fails", therapist: "t-1", createErr: errors.New("insert denied")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chatter, sessions := newTestChatter(&mockVendor{}, nil)
			sessions.createErr = tt.createErr

			started, err := chatter.StartSession(context.Background(), "u-1", tt.therapist)
			require.Error(t, err)
			assert.Nil(t, started)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestChatter_GenerateReply(t *testing.T) {
	vendor := &mockVendor{}
	recaller := fakeRecaller{memories: []domain.ConversationMemory{
		{MemoryType: domain.MemoryTrigger, Content: "Crowded trains cause panic"},
	}}
	chatter, _ := newTestChatter(vendor, recaller)

	req := &domain.ReplyRequest{
		SessionID:   "session-1",
		UserID:      "u-1",
		TherapistID: "t-1",
		Content:     "I had a rough commute",
		EmotionalContext: &domain.EmotionalContext{
			PrimaryEmotion: "anxious",
			Intensity:      8,
		},
		History: []domain.SessionMessage{
			{Content: "Hello", IsUser: false},
			{Content: "Sorry, something went wrong", Metadata: map[string]any{"delivery": "fallback"}},
			{Content: "I had a rough commute", IsUser: true},
		},
	}

	reply, err := chatter.GenerateReply(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "test response", reply.Content)
	assert.Equal(t, "test-model", reply.Metadata["model"])

	msgs := vendor.lastMessages
	require.Len(t, msgs, 3, "system, greeting, user; fallbacks are skipped")
	assert.Contains(t, msgs[0].Content, "Crowded trains cause panic")
	assert.Contains(t, msgs[0].Content, "anxious (intensity 8/10)")
	assert.Equal(t, chat.ChatMessageRoleAssistant, msgs[1].Role)
	assert.Equal(t, chat.ChatMessageRoleUser, msgs[2].Role)
	assert.Equal(t, "I had a rough commute", msgs[2].Content)
}

func TestChatter_GenerateReplyAppendsMissingUserMessage(t *testing.T) {
	vendor := &mockVendor{}
	chatter, _ := newTestChatter(vendor, fakeRecaller{err: errors.New("memories offline")})

	_, err := chatter.GenerateReply(context.Background(), &domain.ReplyRequest{
		TherapistID: "t-1",
		Content:     "hello there",
		IsVoice:     true,
	})
	require.NoError(t, err)

	msgs := vendor.lastMessages
	require.Len(t, msgs, 2)
	assert.Equal(t, "(voice message) hello there", msgs[1].Content)
	assert.NotContains(t, msgs[0].Content, "What you remember")
}

func TestChatter_GenerateReplyEmptyResponse(t *testing.T) {
	vendor := &mockVendor{sendFunc: func(context.Context, []*chat.ChatCompletionMessage, *domain.ChatOptions) (string, error) {
		return "   ", nil
	}}
	chatter, _ := newTestChatter(vendor, nil)

	reply, err := chatter.GenerateReply(context.Background(), &domain.ReplyRequest{TherapistID: "t-1", Content: "hi"})
	assert.Nil(t, reply)
	assert.EqualError(t, err, "empty response")
}

func TestChatter_Stream(t *testing.T) {
	tests := []struct {
		name    string
		chunks  []string
		err     error
		want    string
		wantErr string
	}{
		{name: "joins chunks", chunks: []string{"I hear ", "you."}, want: "I hear you."},
		{name: "stream error", chunks: []string{"partial"}, err: errors.New("stream reset"), wantErr: "stream reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vendor := &mockVendor{streamChunks: tt.chunks, sendStreamError: tt.err}
			chatter, _ := newTestChatter(vendor, nil)
			chatter.Stream = true

			reply, err := chatter.GenerateReply(context.Background(), &domain.ReplyRequest{TherapistID: "t-1", Content: "hi"})
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply.Content)
		})
	}
}

func TestChatter_PersistsThroughSessions(t *testing.T) {
	chatter, sessions := newTestChatter(&mockVendor{}, nil)

	require.NoError(t, chatter.Checkpoint(context.Background(), "u-1", "session-1", domain.SessionMetrics{MessageCount: 4}))
	assert.Equal(t, 4, sessions.metrics["session-1"].MessageCount)

	assert.Error(t, chatter.EndSession(context.Background(), &domain.SessionRecord{State: domain.SessionState{SessionID: "session-1"}}))

	record := &domain.SessionRecord{State: domain.SessionState{SessionID: "session-1", UserID: "u-1"}}
	require.NoError(t, chatter.EndSession(context.Background(), record))
	assert.Same(t, record, sessions.completed[0])

	assert.Error(t, chatter.EndSession(context.Background(), nil))
}

func TestChatter_BuildSystemPrompt(t *testing.T) {
	chatter, _ := newTestChatter(&mockVendor{}, nil)
	prompt := chatter.BuildSystemPrompt(&domain.TherapistProfile{
		Name:    "Sam",
		Persona: "You speak plainly.",
	}, nil, nil)

	assert.True(t, strings.HasPrefix(prompt, "You are Sam, a licensed therapist.\n"))
	assert.Contains(t, prompt, "You speak plainly.")
	assert.NotContains(t, prompt, "years of experience")
}
