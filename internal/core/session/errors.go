package session

import (
	"errors"
	"fmt"
)

var (
	ErrNoActiveSession   = errors.New("no active session")
	ErrSessionActive     = errors.New("session already active")
	ErrSessionEnded      = errors.New("session has ended")
	ErrSessionStart      = errors.New("session start failed")
	ErrTherapistRequired = errors.New("therapist id is required")
	ErrEmptyMessage      = errors.New("message content is empty")
	ErrNotAudio          = errors.New("voice payload is not audio")
	ErrReplyFailed       = errors.New("reply generation failed")
	ErrStaleReply        = errors.New("reply was superseded or its session ended")
	ErrTooManyTabs       = errors.New("too many open tabs")
)

// StartError reports a gateway failure while opening a session. It matches
// both ErrSessionStart and the underlying cause with errors.Is.
type StartError struct {
	TherapistID string
	Err         error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start session with therapist %q: %v", e.TherapistID, e.Err)
}

func (e *StartError) Unwrap() []error {
	return []error{ErrSessionStart, e.Err}
}
