package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenhealth/haven/internal/i18n"
)

func TestInboxLocalizesAndDrains(t *testing.T) {
	loc, err := i18n.NewLocalizer("es")
	require.NoError(t, err)

	inbox := NewInbox(4, loc)
	inbox.Notify(Error, "notify_session_start_failed", errors.New("gateway down"))

	peeked := inbox.Peek()
	require.Len(t, peeked, 1)
	assert.Equal(t, "No pudimos iniciar tu sesión. Inténtalo de nuevo.", peeked[0].Message)
	assert.Equal(t, "gateway down", peeked[0].Detail)
	assert.Equal(t, Error, peeked[0].Level)

	drained := inbox.Drain()
	assert.Len(t, drained, 1)
	assert.Empty(t, inbox.Drain())
}

func TestInboxIsBounded(t *testing.T) {
	inbox := NewInbox(2, nil)
	inbox.Notify(Info, "a", nil)
	inbox.Notify(Info, "b", nil)
	inbox.Notify(Info, "c", nil)

	got := inbox.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Key)
	assert.Equal(t, "c", got[1].Key)
}
