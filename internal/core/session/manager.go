package session

import (
	"context"
	"sync"

	gi18n "github.com/nicksnyder/go-i18n/v2/i18n"

	"github.com/havenhealth/haven/internal/domain"
	debuglog "github.com/havenhealth/haven/internal/log"
	"github.com/havenhealth/haven/internal/notify"
)

// Owner identifies who a Store belongs to: one user in one tab.
type Owner struct {
	UserID string
	TabID  string
}

type slot struct {
	mu      sync.Mutex
	store   *Store
	inbox   *notify.Inbox
	evicted bool
}

// idle reports whether the slot holds no running session. Call with mu held.
func (sl *slot) idle() bool {
	return sl.store == nil || !sl.store.State().IsActive
}

// Manager hands out one Store per Owner. It is constructed explicitly by
// the composition root; there is no process-wide instance.
//
// Slots for ended sessions are released once their notifications have been
// drained, and a user holds at most Options.MaxTabs slots at a time.
type Manager struct {
	gateway       Gateway
	opts          Options
	inboxCapacity int
	localizer     *gi18n.Localizer

	mu    sync.Mutex
	slots map[Owner]*slot
}

func NewManager(gateway Gateway, opts Options, inboxCapacity int, loc *gi18n.Localizer) *Manager {
	if inboxCapacity <= 0 {
		inboxCapacity = 20
	}
	return &Manager{
		gateway:       gateway,
		opts:          opts.withDefaults(),
		inboxCapacity: inboxCapacity,
		localizer:     loc,
		slots:         map[Owner]*slot{},
	}
}

// claim returns the owner's slot, creating it when the user is under the
// tab limit. When the user is at the limit, idle tabs are released first.
func (m *Manager) claim(owner Owner) (*slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sl, ok := m.slots[owner]; ok {
		return sl, nil
	}
	if m.tabsLocked(owner.UserID) >= m.opts.MaxTabs {
		m.evictIdleLocked(owner.UserID)
		if m.tabsLocked(owner.UserID) >= m.opts.MaxTabs {
			return nil, ErrTooManyTabs
		}
	}
	sl := &slot{inbox: notify.NewInbox(m.inboxCapacity, m.localizer)}
	m.slots[owner] = sl
	return sl, nil
}

// tabsLocked must be called with m.mu held.
func (m *Manager) tabsLocked(userID string) int {
	n := 0
	for owner := range m.slots {
		if owner.UserID == userID {
			n++
		}
	}
	return n
}

// evictIdleLocked drops the user's slots without a running session. Slots
// busy in Start are skipped. Must be called with m.mu held.
func (m *Manager) evictIdleLocked(userID string) {
	for owner, sl := range m.slots {
		if owner.UserID != userID || !sl.mu.TryLock() {
			continue
		}
		if sl.idle() {
			sl.evicted = true
			delete(m.slots, owner)
			debuglog.Debug(debuglog.Detailed, "session manager: released idle tab %s for %s\n", owner.TabID, owner.UserID)
		}
		sl.mu.Unlock()
	}
}

// Start opens a new session for owner. A still-active previous session is
// ended (timers stopped, record persisted) before the new one starts, and
// the new session always gets a fresh Store.
func (m *Manager) Start(ctx context.Context, owner Owner, therapistID string) (*Store, domain.SessionState, error) {
	var sl *slot
	for {
		var err error
		if sl, err = m.claim(owner); err != nil {
			return nil, domain.SessionState{UserID: owner.UserID, Status: domain.SessionIdle}, err
		}
		sl.mu.Lock()
		if !sl.evicted {
			break
		}
		sl.mu.Unlock()
	}
	defer sl.mu.Unlock()

	if prev := sl.store; prev != nil && prev.State().IsActive {
		if _, err := prev.EndSession(ctx); err != nil {
			debuglog.Log("session manager: closing previous session for %s: %v\n", owner.UserID, err)
		}
	}

	store := NewStore(owner.UserID, m.gateway, sl.inbox, m.opts)
	sl.store = store
	state, err := store.StartSession(ctx, therapistID)
	return store, state, err
}

// Get returns the owner's current store, if any.
func (m *Manager) Get(owner Owner) (*Store, bool) {
	m.mu.Lock()
	sl, ok := m.slots[owner]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.store, sl.store != nil
}

// Drain removes and returns the owner's queued notifications. A slot whose
// session is over is released once it has nothing left to report.
func (m *Manager) Drain(owner Owner) []notify.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.slots[owner]
	if !ok {
		return []notify.Notification{}
	}
	notes := sl.inbox.Drain()
	if sl.mu.TryLock() {
		if sl.idle() && len(sl.inbox.Peek()) == 0 {
			sl.evicted = true
			delete(m.slots, owner)
		}
		sl.mu.Unlock()
	}
	return notes
}

// Tabs counts the slots held for one user.
func (m *Manager) Tabs(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tabsLocked(userID)
}

// EndAll ends every active session, typically on shutdown.
func (m *Manager) EndAll(ctx context.Context) {
	for _, sl := range m.snapshot() {
		sl.mu.Lock()
		store := sl.store
		sl.mu.Unlock()
		if store == nil {
			continue
		}
		if _, err := store.EndSession(ctx); err != nil {
			debuglog.Log("session manager: shutdown: %v\n", err)
		}
	}
}

// Active counts owners with an active session.
func (m *Manager) Active() int {
	n := 0
	for _, sl := range m.snapshot() {
		sl.mu.Lock()
		if sl.store != nil && sl.store.State().IsActive {
			n++
		}
		sl.mu.Unlock()
	}
	return n
}

func (m *Manager) snapshot() []*slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	slots := make([]*slot, 0, len(m.slots))
	for _, sl := range m.slots {
		slots = append(slots, sl)
	}
	return slots
}
