package restapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// WellbeingHandler serves therapist matching, suggestions and the
// dashboard.
type WellbeingHandler struct {
	svc *Services
}

func NewWellbeingHandler(r *gin.RouterGroup, svc *Services) *WellbeingHandler {
	handler := &WellbeingHandler{svc: svc}
	if svc.Store != nil {
		r.GET("/therapists", handler.ListTherapists)
	}
	if svc.Matching != nil {
		r.GET("/matches", handler.Matches)
		r.POST("/matches/select", handler.Select)
	}
	if svc.Suggest != nil {
		r.GET("/suggestions", handler.Suggestions)
	}
	if svc.Dashboard != nil {
		r.GET("/dashboard", handler.Dashboard)
	}
	return handler
}

func (h *WellbeingHandler) ListTherapists(c *gin.Context) {
	therapists, err := h.svc.Store.Therapists().List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"therapists": therapists})
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	v := c.Query(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return n, true
}

func (h *WellbeingHandler) Matches(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	scores, err := h.svc.Matching.Match(c.Request.Context(), userID(c), limit)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "matches": scores})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": scores})
}

func (h *WellbeingHandler) Select(c *gin.Context) {
	var req struct {
		TherapistID string `json:"therapist_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalid(err))
		return
	}
	score, err := h.svc.Matching.Select(c.Request.Context(), userID(c), req.TherapistID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": score})
}

func (h *WellbeingHandler) Suggestions(c *gin.Context) {
	result, err := h.svc.Suggest.Generate(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Dashboard loads a fresh snapshot. When a newer load for the same user
// finished first, that one is returned instead.
func (h *WellbeingHandler) Dashboard(c *gin.Context) {
	snap, published := h.svc.Dashboard.Load(c.Request.Context(), userID(c))
	if !published {
		if latest, ok := h.svc.Dashboard.Latest(userID(c)); ok {
			snap = latest
		}
	}
	c.JSON(http.StatusOK, snap)
}
