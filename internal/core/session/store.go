// Package session tracks one therapy session for one owner: messages,
// emotional readings and running metrics. State lives in memory and is
// persisted through the Gateway only when the session starts, at periodic
// checkpoints and when it ends.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"

	"github.com/havenhealth/haven/internal/domain"
	"github.com/havenhealth/haven/internal/i18n"
	debuglog "github.com/havenhealth/haven/internal/log"
	"github.com/havenhealth/haven/internal/notify"
	"github.com/havenhealth/haven/internal/util"
)

// Gateway is the remote side of a session.
type Gateway interface {
	StartSession(ctx context.Context, userID, therapistID string) (*domain.StartedSession, error)
	GenerateReply(ctx context.Context, req *domain.ReplyRequest) (*domain.SessionMessage, error)
	Checkpoint(ctx context.Context, userID, sessionID string, metrics domain.SessionMetrics) error
	EndSession(ctx context.Context, record *domain.SessionRecord) error
}

type Options struct {
	// TickInterval drives the duration counter.
	TickInterval time.Duration
	// CheckpointInterval persists metrics periodically; zero disables it.
	CheckpointInterval time.Duration
	// HistoryCapacity bounds the message, emotion and interaction histories.
	HistoryCapacity int
	// PersistMessages is how many trailing messages the end-of-session
	// record carries.
	PersistMessages int
	// ReplyContext is how many trailing messages accompany a reply request.
	ReplyContext int
	// MaxTabs caps how many tabs one user may hold in a Manager.
	MaxTabs int
	Clock   func() time.Time
}

func DefaultOptions() Options {
	return Options{
		TickInterval:       time.Second,
		CheckpointInterval: 30 * time.Second,
		HistoryCapacity:    500,
		PersistMessages:    50,
		ReplyContext:       20,
		MaxTabs:            8,
		Clock:              time.Now,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.TickInterval <= 0 {
		o.TickInterval = def.TickInterval
	}
	if o.CheckpointInterval < 0 {
		o.CheckpointInterval = 0
	}
	if o.HistoryCapacity <= 0 {
		o.HistoryCapacity = def.HistoryCapacity
	}
	if o.PersistMessages <= 0 {
		o.PersistMessages = def.PersistMessages
	}
	if o.MaxTabs <= 0 {
		o.MaxTabs = def.MaxTabs
	}
	if o.ReplyContext <= 0 {
		o.ReplyContext = def.ReplyContext
	}
	if o.Clock == nil {
		o.Clock = def.Clock
	}
	return o
}

// Store is the state machine Idle -> Active -> Ended for a single session.
// Ended is terminal: a new session needs a new Store.
type Store struct {
	gateway  Gateway
	notifier notify.Notifier
	opts     Options
	userID   string

	mu                sync.Mutex
	state             domain.SessionState
	metrics           domain.SessionMetrics
	messages          *util.Ring[domain.SessionMessage]
	emotions          *util.Ring[domain.EmotionReading]
	interactions      *util.Ring[domain.InteractionEvent]
	emotionLabels     map[string]bool
	engagementSamples int
	starting          bool
	generation        util.Fence
	requests          util.Fence
	stop              context.CancelFunc
	done              chan struct{}
}

func NewStore(userID string, gateway Gateway, notifier notify.Notifier, opts Options) *Store {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	opts = opts.withDefaults()
	return &Store{
		gateway:       gateway,
		notifier:      notifier,
		opts:          opts,
		userID:        userID,
		state:         domain.SessionState{UserID: userID, Status: domain.SessionIdle},
		messages:      util.NewRing[domain.SessionMessage](opts.HistoryCapacity),
		emotions:      util.NewRing[domain.EmotionReading](opts.HistoryCapacity),
		interactions:  util.NewRing[domain.InteractionEvent](opts.HistoryCapacity),
		emotionLabels: map[string]bool{},
	}
}

// StartSession opens a session with therapistID. It fails with
// ErrSessionActive or ErrSessionEnded when the store is not Idle, and with
// a *StartError when the gateway errors or hands back no session id; in
// that case the store stays Idle and no timer runs.
func (s *Store) StartSession(ctx context.Context, therapistID string) (domain.SessionState, error) {
	therapistID = strings.TrimSpace(therapistID)
	if therapistID == "" {
		return domain.SessionState{}, ErrTherapistRequired
	}

	s.mu.Lock()
	switch {
	case s.state.Status == domain.SessionActive || s.starting:
		s.mu.Unlock()
		return domain.SessionState{}, ErrSessionActive
	case s.state.Status == domain.SessionEnded:
		s.mu.Unlock()
		return domain.SessionState{}, ErrSessionEnded
	}
	s.starting = true
	s.mu.Unlock()

	started, err := s.gateway.StartSession(ctx, s.userID, therapistID)
	if err == nil && (started == nil || strings.TrimSpace(started.SessionID) == "") {
		err = errors.New("gateway returned no session id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false
	if err != nil {
		debuglog.Log("session: start with therapist %s failed: %v\n", therapistID, err)
		s.notifier.Notify(notify.Error, "notify_session_start_failed", err)
		return domain.SessionState{}, &StartError{TherapistID: therapistID, Err: err}
	}

	now := s.opts.Clock()
	s.state = domain.SessionState{
		SessionID:   started.SessionID,
		UserID:      s.userID,
		TherapistID: therapistID,
		Status:      domain.SessionActive,
		IsActive:    true,
		StartTime:   now,
	}
	s.generation.Next()

	greeting := started.Greeting
	if strings.TrimSpace(greeting.Content) == "" {
		greeting.Content = i18n.T("session_default_greeting")
	}
	greeting.IsUser = false
	s.appendMessage(s.stamp(greeting, now))
	s.recordInteraction("session_started", therapistID, now)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stop = cancel
	s.done = make(chan struct{})
	go s.run(runCtx, s.done)

	debuglog.Debug(debuglog.Basic, "session %s started with therapist %s\n", started.SessionID, therapistID)
	return s.state, nil
}

type messageConfig struct {
	voice            []byte
	emotionalContext *domain.EmotionalContext
}

type MessageOption func(*messageConfig)

// WithVoice attaches recorded audio to the message.
func WithVoice(data []byte) MessageOption {
	return func(c *messageConfig) { c.voice = data }
}

func WithEmotionalContext(ec *domain.EmotionalContext) MessageOption {
	return func(c *messageConfig) { c.emotionalContext = ec }
}

// SendMessage appends the user's message immediately, then asks the
// gateway for the reply. When the reply fails a local fallback message is
// appended, flagged retryable, and returned together with an error wrapping
// ErrReplyFailed.
func (s *Store) SendMessage(ctx context.Context, content string, opts ...MessageOption) (*domain.SessionMessage, error) {
	var cfg messageConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	content = strings.TrimSpace(content)

	s.mu.Lock()
	if !s.state.IsActive {
		s.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	s.mu.Unlock()

	voiceMIME, err := validateMessage(content, cfg.voice)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if !s.state.IsActive {
		s.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	now := s.opts.Clock()
	userMsg := domain.SessionMessage{
		ID:        newMessageID(),
		Content:   content,
		IsUser:    true,
		Timestamp: now,
		Metadata:  map[string]any{},
	}
	if voiceMIME != "" {
		userMsg.Metadata["is_voice"] = true
		userMsg.Metadata["voice_mime"] = voiceMIME
	}
	if ec := cfg.emotionalContext; ec != nil {
		userMsg.Emotion = normalizeEmotion(ec.PrimaryEmotion)
		userMsg.Confidence = clampUnit(ec.Intensity / 10)
	}
	s.appendMessage(userMsg)
	kind := "text"
	if voiceMIME != "" {
		kind = "voice"
	}
	s.recordInteraction("message_sent", kind, now)

	generation := s.generation.Current()
	ticket := s.requests.Next()
	req := &domain.ReplyRequest{
		SessionID:        s.state.SessionID,
		UserID:           s.userID,
		TherapistID:      s.state.TherapistID,
		Content:          content,
		IsVoice:          voiceMIME != "",
		VoiceMIME:        voiceMIME,
		EmotionalContext: cfg.emotionalContext,
		History:          s.messages.Last(s.opts.ReplyContext),
	}
	s.mu.Unlock()

	reply, replyErr := s.gateway.GenerateReply(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsActive || !s.generation.IsLatest(generation) || !s.requests.IsLatest(ticket) {
		debuglog.Debug(debuglog.Detailed, "session %s: dropping reply to %s\n", req.SessionID, userMsg.ID)
		return nil, ErrStaleReply
	}

	now = s.opts.Clock()
	if replyErr == nil && (reply == nil || strings.TrimSpace(reply.Content) == "") {
		replyErr = errors.New("gateway returned an empty reply")
	}
	if replyErr != nil {
		fallback := domain.SessionMessage{
			ID:        newMessageID(),
			Content:   i18n.T("session_reply_fallback"),
			Timestamp: now,
			Metadata: map[string]any{
				"delivery":  "fallback",
				"retryable": true,
				"reply_to":  userMsg.ID,
			},
		}
		s.appendMessage(fallback)
		s.metrics.FallbackReplies++
		s.recordInteraction("reply_failed", replyErr.Error(), now)
		s.notifier.Notify(notify.Warn, "notify_reply_failed", replyErr)
		return &fallback, fmt.Errorf("%w: %w", ErrReplyFailed, replyErr)
	}

	msg := s.stamp(*reply, now)
	msg.IsUser = false
	if msg.Metadata == nil {
		msg.Metadata = map[string]any{}
	}
	msg.Metadata["reply_to"] = userMsg.ID
	s.appendMessage(msg)
	s.recordInteraction("reply_received", "", now)
	return &msg, nil
}

// UpdateEmotionalState records detected emotions. An empty slice is a
// no-op. The highest-confidence reading becomes the current emotion and
// moves therapeutic progress by its valence.
func (s *Store) UpdateEmotionalState(emotions []domain.EmotionReading, stressLevel float64, engagementLevel *float64) error {
	if len(emotions) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsActive {
		return ErrNoActiveSession
	}

	now := s.opts.Clock()
	readings := make([]domain.EmotionReading, len(emotions))
	for i, reading := range emotions {
		reading.Emotion = normalizeEmotion(reading.Emotion)
		reading.Confidence = clampUnit(reading.Confidence)
		if reading.Timestamp.IsZero() {
			reading.Timestamp = now
		}
		readings[i] = reading
		s.emotions.Push(reading)
		if reading.Emotion != "" && !s.emotionLabels[reading.Emotion] {
			s.emotionLabels[reading.Emotion] = true
			s.metrics.EmotionalRange = append(s.metrics.EmotionalRange, reading.Emotion)
		}
	}

	top := lo.MaxBy(readings, func(a, b domain.EmotionReading) bool {
		return a.Confidence > b.Confidence
	})
	s.state.CurrentEmotion = top.Emotion

	stress := clampUnit(stressLevel)
	if s.metrics.InitialStress == nil {
		initial := stress
		s.metrics.InitialStress = &initial
	}
	s.metrics.StressLevelChange = stress - *s.metrics.InitialStress
	s.state.StressLevel = stress

	if engagementLevel != nil {
		level := clampUnit(*engagementLevel)
		s.state.EngagementLevel = level
		s.engagementSamples++
		s.metrics.EngagementScore += (level - s.metrics.EngagementScore) / float64(s.engagementSamples)
	}

	s.metrics.TherapeuticProgress = adjustProgress(s.metrics.TherapeuticProgress, emotionValence(top.Emotion))
	s.recordInteraction("emotion_update", top.Emotion, now)
	return nil
}

// EndSession closes an active session and persists it. It is a no-op
// returning (nil, nil) when nothing is active. The local transition to
// Ended happens even if persistence fails; the failure is notified and
// returned alongside the record.
func (s *Store) EndSession(ctx context.Context) (*domain.SessionRecord, error) {
	s.mu.Lock()
	if !s.state.IsActive {
		s.mu.Unlock()
		return nil, nil
	}

	now := s.opts.Clock()
	s.refreshDuration(now)
	s.state.Status = domain.SessionEnded
	s.state.IsActive = false
	s.state.EndTime = &now
	s.generation.Next()
	s.recordInteraction("session_ended", "", now)

	record := &domain.SessionRecord{
		State:          s.state,
		Metrics:        s.copyMetrics(),
		Messages:       s.messages.Last(s.opts.PersistMessages),
		EmotionHistory: s.emotions.Slice(),
		Interactions:   s.interactions.Slice(),
	}
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}

	if err := s.gateway.EndSession(ctx, record); err != nil {
		debuglog.Log("session %s: save failed: %v\n", record.State.SessionID, err)
		s.notifier.Notify(notify.Error, "notify_session_save_failed", err)
		return record, fmt.Errorf("persist session %s: %w", record.State.SessionID, err)
	}
	debuglog.Debug(debuglog.Basic, "session %s ended after %ds\n", record.State.SessionID, record.Metrics.Duration)
	return record, nil
}

// State returns a copy of the session state.
func (s *Store) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Metrics returns a copy of the running metrics. Duration is refreshed on
// read and never decreases while the session is active.
func (s *Store) Metrics() domain.SessionMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsActive {
		s.refreshDuration(s.opts.Clock())
	}
	return s.copyMetrics()
}

// Messages returns the retained messages in chronological order.
func (s *Store) Messages() []domain.SessionMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages.Slice()
}

// EmotionHistory returns the retained emotion readings, oldest first.
func (s *Store) EmotionHistory() []domain.EmotionReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emotions.Slice()
}

func (s *Store) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	tick := time.NewTicker(s.opts.TickInterval)
	defer tick.Stop()

	var checkpoint <-chan time.Time
	if s.opts.CheckpointInterval > 0 {
		t := time.NewTicker(s.opts.CheckpointInterval)
		defer t.Stop()
		checkpoint = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s.mu.Lock()
			if s.state.IsActive {
				s.refreshDuration(s.opts.Clock())
			}
			s.mu.Unlock()
		case <-checkpoint:
			s.checkpoint(ctx)
		}
	}
}

func (s *Store) checkpoint(ctx context.Context) {
	s.mu.Lock()
	if !s.state.IsActive {
		s.mu.Unlock()
		return
	}
	s.refreshDuration(s.opts.Clock())
	sessionID := s.state.SessionID
	metrics := s.copyMetrics()
	s.mu.Unlock()

	if err := s.gateway.Checkpoint(ctx, s.userID, sessionID, metrics); err != nil {
		if ctx.Err() != nil {
			return
		}
		debuglog.Log("session %s: checkpoint failed: %v\n", sessionID, err)
		s.notifier.Notify(notify.Warn, "notify_checkpoint_failed", err)
	}
}

// refreshDuration must be called with mu held.
func (s *Store) refreshDuration(now time.Time) {
	elapsed := int64(now.Sub(s.state.StartTime) / time.Second)
	if elapsed > s.metrics.Duration {
		s.metrics.Duration = elapsed
	}
}

// appendMessage must be called with mu held.
func (s *Store) appendMessage(msg domain.SessionMessage) {
	s.messages.Push(msg)
	s.metrics.MessageCount++
	if msg.IsUser {
		s.metrics.UserMessageCount++
	}
}

// recordInteraction must be called with mu held.
func (s *Store) recordInteraction(kind, detail string, at time.Time) {
	s.interactions.Push(domain.InteractionEvent{Kind: kind, Detail: detail, Timestamp: at})
}

func (s *Store) copyMetrics() domain.SessionMetrics {
	m := s.metrics
	m.EmotionalRange = append([]string{}, s.metrics.EmotionalRange...)
	if s.metrics.InitialStress != nil {
		initial := *s.metrics.InitialStress
		m.InitialStress = &initial
	}
	return m
}

func (s *Store) stamp(msg domain.SessionMessage, now time.Time) domain.SessionMessage {
	if msg.ID == "" {
		msg.ID = newMessageID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	return msg
}

// validateMessage rejects empty input and non-audio voice payloads before
// anything is sent. It returns the sniffed MIME type of the voice payload.
func validateMessage(content string, voice []byte) (string, error) {
	if len(voice) == 0 {
		if content == "" {
			return "", ErrEmptyMessage
		}
		return "", nil
	}
	mime := mimetype.Detect(voice)
	if !isAudio(mime) {
		return "", fmt.Errorf("%w: %s", ErrNotAudio, mime.String())
	}
	return mime.String(), nil
}

func isAudio(mime *mimetype.MIME) bool {
	for m := mime; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") {
			return true
		}
	}
	// Browser recorders emit audio-only WebM and Ogg containers.
	return mime.Is("video/webm") || mime.Is("application/ogg")
}

// newMessageID returns a ULID so ids sort in creation order.
func newMessageID() string {
	return ulid.Make().String()
}
