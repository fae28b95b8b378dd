package restapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/havenhealth/haven/internal/core/memory"
	"github.com/havenhealth/haven/internal/core/session"
	"github.com/havenhealth/haven/internal/domain"
	"github.com/havenhealth/haven/internal/i18n"
)

// badRequest marks caller mistakes that map to 400.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

func invalid(err error) error { return badRequest{err} }

func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br),
		errors.Is(err, session.ErrTherapistRequired),
		errors.Is(err, session.ErrEmptyMessage),
		errors.Is(err, session.ErrNotAudio),
		errors.Is(err, memory.ErrInvalidType),
		errors.Is(err, memory.ErrEmptyContent),
		errors.Is(err, memory.ErrInvalidBoost):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionStart),
		errors.Is(err, session.ErrReplyFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoActiveSession),
		errors.Is(err, session.ErrSessionActive),
		errors.Is(err, session.ErrSessionEnded),
		errors.Is(err, session.ErrStaleReply),
		errors.Is(err, memory.ErrInactive):
		return http.StatusConflict
	case errors.Is(err, session.ErrTooManyTabs):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// requireUser rejects tokens without a subject, such as the service role,
// from per-user routes.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": i18n.T("functions_error_unauthorized")})
			return
		}
		c.Next()
	}
}
