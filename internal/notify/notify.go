// Package notify is the toast channel: non-fatal problems a user should
// hear about are queued here, localized, and drained by the UI.
package notify

import (
	"sync"
	"time"

	gi18n "github.com/nicksnyder/go-i18n/v2/i18n"

	"github.com/havenhealth/haven/internal/i18n"
	debuglog "github.com/havenhealth/haven/internal/log"
	"github.com/havenhealth/haven/internal/util"
)

type Level string

const (
	Info  Level = "info"
	Warn  Level = "warning"
	Error Level = "error"
)

type Notification struct {
	Level     Level     `json:"level"`
	Key       string    `json:"key"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier receives notifications keyed by message id.
type Notifier interface {
	Notify(level Level, key string, err error)
}

// Inbox keeps the most recent notifications for one owner.
type Inbox struct {
	mu        sync.Mutex
	items     *util.Ring[Notification]
	localizer *gi18n.Localizer
	now       func() time.Time
}

// NewInbox returns an inbox retaining up to capacity notifications,
// localized with loc (nil uses the process default).
func NewInbox(capacity int, loc *gi18n.Localizer) *Inbox {
	return &Inbox{
		items:     util.NewRing[Notification](capacity),
		localizer: loc,
		now:       time.Now,
	}
}

func (b *Inbox) Notify(level Level, key string, err error) {
	n := Notification{
		Level:     level,
		Key:       key,
		Timestamp: b.now(),
	}
	if b.localizer != nil {
		n.Message = i18n.Localize(b.localizer, key, nil)
	} else {
		n.Message = i18n.T(key)
	}
	if err != nil {
		n.Detail = err.Error()
	}
	debuglog.Debug(debuglog.Basic, "notify %s %s: %s\n", level, key, n.Detail)

	b.mu.Lock()
	b.items.Push(n)
	b.mu.Unlock()
}

// Drain returns queued notifications oldest first and empties the inbox.
func (b *Inbox) Drain() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items.Slice()
	b.items = util.NewRing[Notification](b.items.Cap())
	return out
}

// Peek returns queued notifications without removing them.
func (b *Inbox) Peek() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items.Slice()
}

// Discard drops notifications; useful where no UI is listening.
type Discard struct{}

func (Discard) Notify(level Level, key string, err error) {
	debuglog.Debug(debuglog.Detailed, "notify (discarded) %s %s: %v\n", level, key, err)
}
