package restapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/havenhealth/haven/internal/core/session"
	"github.com/havenhealth/haven/internal/domain"
)

// TabHeader scopes a session to one browser tab. Requests without it share
// the "default" tab.
const TabHeader = "X-Tab-ID"

type SessionHandler struct {
	manager *session.Manager
}

func NewSessionHandler(r *gin.RouterGroup, manager *session.Manager) *SessionHandler {
	if manager == nil {
		return nil
	}

	handler := &SessionHandler{manager: manager}
	group := r.Group("/session")
	group.GET("", handler.Current)
	group.POST("/start", handler.Start)
	group.POST("/message", handler.SendMessage)
	group.POST("/emotion", handler.UpdateEmotion)
	group.POST("/end", handler.End)
	group.GET("/messages", handler.Messages)
	group.GET("/notifications", handler.Notifications)
	return handler
}

func owner(c *gin.Context) session.Owner {
	tab := strings.TrimSpace(c.GetHeader(TabHeader))
	if tab == "" {
		tab = "default"
	}
	return session.Owner{UserID: userID(c), TabID: tab}
}

func (h *SessionHandler) store(c *gin.Context) (*session.Store, bool) {
	store, ok := h.manager.Get(owner(c))
	if !ok {
		respondError(c, session.ErrNoActiveSession)
	}
	return store, ok
}

func (h *SessionHandler) Current(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": store.State(), "metrics": store.Metrics()})
}

type startRequest struct {
	TherapistID string `json:"therapist_id"`
}

func (h *SessionHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalid(err))
		return
	}
	store, state, err := h.manager.Start(c.Request.Context(), owner(c), req.TherapistID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state, "messages": store.Messages()})
}

type messageRequest struct {
	Content          string                   `json:"content"`
	Voice            []byte                   `json:"voice,omitempty"`
	EmotionalContext *domain.EmotionalContext `json:"emotional_context,omitempty"`
}

// SendMessage answers 200 with the reply, or 502 with the fallback message
// when the reply could not be generated.
func (h *SessionHandler) SendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalid(err))
		return
	}
	store, ok := h.store(c)
	if !ok {
		return
	}

	var opts []session.MessageOption
	if len(req.Voice) > 0 {
		opts = append(opts, session.WithVoice(req.Voice))
	}
	if req.EmotionalContext != nil {
		opts = append(opts, session.WithEmotionalContext(req.EmotionalContext))
	}

	msg, err := store.SendMessage(c.Request.Context(), req.Content, opts...)
	if errors.Is(err, session.ErrReplyFailed) && msg != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "message": msg})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

type emotionRequest struct {
	Emotions        []domain.EmotionReading `json:"emotions"`
	StressLevel     float64                 `json:"stress_level"`
	EngagementLevel *float64                `json:"engagement_level,omitempty"`
}

func (h *SessionHandler) UpdateEmotion(c *gin.Context) {
	var req emotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalid(err))
		return
	}
	store, ok := h.store(c)
	if !ok {
		return
	}
	if err := store.UpdateEmotionalState(req.Emotions, req.StressLevel, req.EngagementLevel); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": store.State(), "metrics": store.Metrics()})
}

// End is idempotent: ending when nothing is active answers 200 with a null
// record.
func (h *SessionHandler) End(c *gin.Context) {
	store, ok := h.manager.Get(owner(c))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"record": nil})
		return
	}
	record, err := store.EndSession(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "record": record})
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": record})
}

func (h *SessionHandler) Messages(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": store.Messages()})
}

func (h *SessionHandler) Notifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notifications": h.manager.Drain(owner(c))})
}
