package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/havenhealth/haven/internal/chat"
	"github.com/havenhealth/haven/internal/domain"
	"github.com/havenhealth/haven/internal/i18n"
	debuglog "github.com/havenhealth/haven/internal/log"
	"github.com/havenhealth/haven/internal/plugins/ai"
)

const recallLimit = 5

// Recaller supplies remembered facts about a user for the system prompt.
type Recaller interface {
	Recall(ctx context.Context, userID string, tags []string, limit int) ([]domain.ConversationMemory, error)
}

// Chatter is the function side of the gateway: it opens sessions, asks the
// vendor for therapist replies and persists what the session store hands
// back. It keeps no per-session state of its own.
type Chatter struct {
	therapists domain.TherapistRepository
	sessions   domain.TherapySessionRepository
	recaller   Recaller

	Stream bool

	model  string
	opts   domain.ChatOptions
	vendor ai.Vendor
}

func NewChatter(vendor ai.Vendor, model string, store domain.Store, recaller Recaller) *Chatter {
	return &Chatter{
		therapists: store.Therapists(),
		sessions:   store.Sessions(),
		recaller:   recaller,
		model:      model,
		opts:       domain.ChatOptions{}.WithDefaults(model),
		vendor:     vendor,
	}
}

// WithOptions overrides the sampling options used for every vendor call.
func (o *Chatter) WithOptions(opts domain.ChatOptions) *Chatter {
	o.opts = opts.WithDefaults(o.model)
	return o
}

// StartSession creates the session row and asks the therapist persona for
// an opening line. A vendor failure does not fail the start: the greeting
// falls back to a fixed localized line.
func (o *Chatter) StartSession(ctx context.Context, userID, therapistID string) (started *domain.StartedSession, err error) {
	var therapist *domain.TherapistProfile
	if therapist, err = o.therapists.Get(ctx, therapistID); err != nil {
		return nil, fmt.Errorf("could not load therapist %s: %w", therapistID, err)
	}

	var sessionID string
	if sessionID, err = o.sessions.Create(ctx, userID, therapist.ID); err != nil {
		return nil, fmt.Errorf("could not create session: %w", err)
	}

	msgs := []*chat.ChatCompletionMessage{
		{Role: chat.ChatMessageRoleSystem, Content: o.BuildSystemPrompt(therapist, nil, o.recall(ctx, userID))},
		{Role: chat.ChatMessageRoleUser, Content: "Greet your client warmly in two or three sentences and invite them to share what is on their mind today."},
	}

	greeting := domain.SessionMessage{Metadata: map[string]any{"therapist_id": therapist.ID}}
	content, sendErr := o.send(ctx, msgs)
	if sendErr != nil {
		debuglog.Log("chatter: greeting for session %s failed: %v\n", sessionID, sendErr)
		content = i18n.T("session_default_greeting")
		greeting.Metadata["delivery"] = "fallback"
	}
	greeting.Content = content

	started = &domain.StartedSession{SessionID: sessionID, Greeting: greeting}
	return
}

// GenerateReply answers the latest user message in req.
func (o *Chatter) GenerateReply(ctx context.Context, req *domain.ReplyRequest) (reply *domain.SessionMessage, err error) {
	if req == nil || strings.TrimSpace(req.Content) == "" {
		return nil, errors.New("reply request has no content")
	}

	var therapist *domain.TherapistProfile
	if therapist, err = o.therapists.Get(ctx, req.TherapistID); err != nil {
		return nil, fmt.Errorf("could not load therapist %s: %w", req.TherapistID, err)
	}

	msgs := o.BuildMessages(therapist, req, o.recall(ctx, req.UserID))

	var content string
	if content, err = o.send(ctx, msgs); err != nil {
		return
	}

	reply = &domain.SessionMessage{
		Content: content,
		Metadata: map[string]any{
			"model":        o.opts.Model,
			"therapist_id": therapist.ID,
		},
	}
	return
}

func (o *Chatter) Checkpoint(ctx context.Context, userID, sessionID string, metrics domain.SessionMetrics) error {
	return o.sessions.SaveMetrics(ctx, userID, sessionID, metrics)
}

func (o *Chatter) EndSession(ctx context.Context, record *domain.SessionRecord) error {
	if record == nil {
		return errors.New("no session record")
	}
	if record.State.UserID == "" {
		return errors.New("session record has no owner")
	}
	return o.sessions.Complete(ctx, record)
}

// ListModels reports the models the configured vendor offers.
func (o *Chatter) ListModels(ctx context.Context) ([]string, error) {
	return o.vendor.ListModels(ctx)
}

// BuildMessages turns a reply request into the vendor conversation: the
// persona prompt, the recent transcript, and the new user message when the
// transcript does not already end with it.
func (o *Chatter) BuildMessages(therapist *domain.TherapistProfile, req *domain.ReplyRequest, memories []domain.ConversationMemory) []*chat.ChatCompletionMessage {
	msgs := []*chat.ChatCompletionMessage{
		{Role: chat.ChatMessageRoleSystem, Content: o.BuildSystemPrompt(therapist, req.EmotionalContext, memories)},
	}
	for _, m := range req.History {
		if m.Metadata["delivery"] == "fallback" {
			continue
		}
		role := chat.ChatMessageRoleAssistant
		if m.IsUser {
			role = chat.ChatMessageRoleUser
		}
		msgs = append(msgs, &chat.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	last := msgs[len(msgs)-1]
	if last.Role != chat.ChatMessageRoleUser || last.Content != req.Content {
		content := req.Content
		if req.IsVoice {
			content = "(voice message) " + content
		}
		msgs = append(msgs, &chat.ChatCompletionMessage{Role: chat.ChatMessageRoleUser, Content: content})
	}
	return msgs
}

// BuildSystemPrompt renders the therapist persona.
func (o *Chatter) BuildSystemPrompt(t *domain.TherapistProfile, ec *domain.EmotionalContext, memories []domain.ConversationMemory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a licensed therapist", t.Name)
	if t.YearsExperience > 0 {
		fmt.Fprintf(&b, " with %d years of experience", t.YearsExperience)
	}
	b.WriteString(".\n")
	if len(t.Specialties) > 0 {
		fmt.Fprintf(&b, "Specialties: %s.\n", strings.Join(t.Specialties, ", "))
	}
	if len(t.Approaches) > 0 {
		fmt.Fprintf(&b, "Therapeutic approaches: %s.\n", strings.Join(t.Approaches, ", "))
	}
	if t.CommunicationStyle != "" {
		fmt.Fprintf(&b, "Communication style: %s.\n", t.CommunicationStyle)
	}
	if p := strings.TrimSpace(t.Persona); p != "" {
		b.WriteString(p)
		b.WriteString("\n")
	}
	b.WriteString("Respond with empathy, keep replies under 150 words, and ask at most one question. " +
		"If the client mentions self-harm, encourage them to contact local emergency services or a crisis line.\n")

	if ec != nil && ec.PrimaryEmotion != "" {
		fmt.Fprintf(&b, "\nThe client says they feel %s (intensity %.0f/10)", ec.PrimaryEmotion, ec.Intensity)
		if ec.Context != "" {
			fmt.Fprintf(&b, " because %s", ec.Context)
		}
		b.WriteString(".\n")
	}

	if len(memories) > 0 {
		b.WriteString("\nWhat you remember about this client:\n")
		for _, m := range memories {
			fmt.Fprintf(&b, "- [%s] %s\n", m.MemoryType, m.Content)
		}
	}
	return b.String()
}

func (o *Chatter) recall(ctx context.Context, userID string) []domain.ConversationMemory {
	if o.recaller == nil || userID == "" {
		return nil
	}
	memories, err := o.recaller.Recall(ctx, userID, nil, recallLimit)
	if err != nil {
		debuglog.Debug(debuglog.Basic, "chatter: recall for %s failed: %v\n", userID, err)
		return nil
	}
	return memories
}

func (o *Chatter) send(ctx context.Context, msgs []*chat.ChatCompletionMessage) (message string, err error) {
	opts := o.opts
	debuglog.Debug(debuglog.Wire, "chatter -> %s:\n%s", opts.Model, chat.Transcript(msgs))

	if o.Stream {
		responseChan := make(chan string)
		errChan := make(chan error, 1)

		go func() {
			if streamErr := o.vendor.SendStream(ctx, msgs, &opts, responseChan); streamErr != nil {
				errChan <- streamErr
			}
			close(errChan)
		}()

		var b strings.Builder
		for response := range responseChan {
			b.WriteString(response)
		}
		if streamErr, ok := <-errChan; ok && streamErr != nil {
			return "", streamErr
		}
		message = b.String()
	} else if message, err = o.vendor.Send(ctx, msgs, &opts); err != nil {
		return
	}

	if message = strings.TrimSpace(message); message == "" {
		err = errors.New("empty response")
	}
	return
}
