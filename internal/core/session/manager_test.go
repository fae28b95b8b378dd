package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenhealth/haven/internal/domain"
)

func TestManagerStartReplacesActiveSession(t *testing.T) {
	gw := &fakeGateway{}
	m := NewManager(gw, testOptions(nil), 5, nil)
	owner := Owner{UserID: "user-1", TabID: "tab-a"}
	defer m.EndAll(context.Background())

	first, state, err := m.Start(context.Background(), owner, "therapist-1")
	require.NoError(t, err)
	assert.Equal(t, "session-1", state.SessionID)

	second, state, err := m.Start(context.Background(), owner, "therapist-2")
	require.NoError(t, err)
	assert.Equal(t, "session-2", state.SessionID)
	assert.NotSame(t, first, second)

	assert.Equal(t, domain.SessionEnded, first.State().Status)
	assert.Nil(t, first.stop, "previous timers are stopped")
	require.Len(t, gw.ended, 1)
	assert.Equal(t, "session-1", gw.ended[0].State.SessionID)

	got, ok := m.Get(owner)
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, m.Active())
}

func TestManagerIsolatesOwners(t *testing.T) {
	gw := &fakeGateway{}
	m := NewManager(gw, testOptions(nil), 5, nil)
	a := Owner{UserID: "user-1", TabID: "tab-a"}
	b := Owner{UserID: "user-1", TabID: "tab-b"}

	_, _, err := m.Start(context.Background(), a, "therapist-1")
	require.NoError(t, err)
	_, _, err = m.Start(context.Background(), b, "therapist-1")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Active())

	_, ok := m.Get(Owner{UserID: "user-2"})
	assert.False(t, ok)

	m.EndAll(context.Background())
	assert.Zero(t, m.Active())
	assert.Len(t, gw.ended, 2)
}

func TestManagerFailedStartNotifiesOwnerInbox(t *testing.T) {
	gw := &fakeGateway{startErr: errors.New("no such therapist")}
	m := NewManager(gw, testOptions(nil), 5, nil)
	owner := Owner{UserID: "user-1", TabID: "tab-a"}

	store, _, err := m.Start(context.Background(), owner, "therapist-9")
	assert.ErrorIs(t, err, ErrSessionStart)
	assert.False(t, store.State().IsActive)

	notes := m.Drain(owner)
	require.Len(t, notes, 1)
	assert.Equal(t, "notify_session_start_failed", notes[0].Key)
	assert.Empty(t, m.Drain(Owner{UserID: "user-2"}))
	assert.Zero(t, m.Tabs("user-1"), "drained idle tab is released")
}

func TestManagerCapsTabsPerUser(t *testing.T) {
	gw := &fakeGateway{}
	opts := testOptions(nil)
	opts.MaxTabs = 2
	m := NewManager(gw, opts, 5, nil)
	defer m.EndAll(context.Background())
	ctx := context.Background()

	_, _, err := m.Start(ctx, Owner{UserID: "user-1", TabID: "a"}, "therapist-1")
	require.NoError(t, err)
	_, _, err = m.Start(ctx, Owner{UserID: "user-1", TabID: "b"}, "therapist-1")
	require.NoError(t, err)

	store, _, err := m.Start(ctx, Owner{UserID: "user-1", TabID: "c"}, "therapist-1")
	assert.ErrorIs(t, err, ErrTooManyTabs)
	assert.Nil(t, store)
	assert.Equal(t, 2, m.Tabs("user-1"))

	_, _, err = m.Start(ctx, Owner{UserID: "user-2", TabID: "a"}, "therapist-1")
	require.NoError(t, err, "the cap is per user")

	b, ok := m.Get(Owner{UserID: "user-1", TabID: "b"})
	require.True(t, ok)
	_, err = b.EndSession(ctx)
	require.NoError(t, err)

	_, _, err = m.Start(ctx, Owner{UserID: "user-1", TabID: "c"}, "therapist-1")
	require.NoError(t, err, "ended tab is released to make room")
	assert.Equal(t, 2, m.Tabs("user-1"))
	_, ok = m.Get(Owner{UserID: "user-1", TabID: "b"})
	assert.False(t, ok)
}

func TestManagerKeepsActiveTabOnDrain(t *testing.T) {
	m := NewManager(&fakeGateway{}, testOptions(nil), 5, nil)
	defer m.EndAll(context.Background())
	owner := Owner{UserID: "user-1", TabID: "tab-a"}

	_, _, err := m.Start(context.Background(), owner, "therapist-1")
	require.NoError(t, err)
	assert.Empty(t, m.Drain(owner))
	_, ok := m.Get(owner)
	assert.True(t, ok)
}

func TestManagerConcurrentStartAndActive(t *testing.T) {
	m := NewManager(&fakeGateway{}, testOptions(nil), 5, nil)
	defer m.EndAll(context.Background())

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			owner := Owner{UserID: fmt.Sprintf("user-%d", i), TabID: "tab"}
			_, _, _ = m.Start(context.Background(), owner, "therapist-1")
		}()
		go func() {
			defer wg.Done()
			_ = m.Active()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, m.Active())
}
