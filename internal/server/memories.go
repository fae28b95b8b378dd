package restapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/havenhealth/haven/internal/core/memory"
	"github.com/havenhealth/haven/internal/domain"
)

const defaultRecallLimit = 20

type MemoryHandler struct {
	memories *memory.Service
}

func NewMemoryHandler(r *gin.RouterGroup, memories *memory.Service) *MemoryHandler {
	if memories == nil {
		return nil
	}

	handler := &MemoryHandler{memories: memories}
	group := r.Group("/memories")
	group.GET("", handler.Recall)
	group.POST("", handler.Remember)
	group.POST("/:id/relevance", handler.Boost)
	group.DELETE("/:id", handler.Deactivate)
	return handler
}

func (h *MemoryHandler) Recall(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultRecallLimit)
	if !ok {
		return
	}
	var tags []string
	if raw := c.Query("tags"); raw != "" {
		tags = lo.Map(strings.Split(raw, ","), func(t string, _ int) string { return strings.TrimSpace(t) })
	}
	memories, err := h.memories.Recall(c.Request.Context(), userID(c), tags, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"memories": memories})
}

func (h *MemoryHandler) Remember(c *gin.Context) {
	var m domain.ConversationMemory
	if err := c.ShouldBindJSON(&m); err != nil {
		respondError(c, invalid(err))
		return
	}
	m.UserID = userID(c)
	stored, err := h.memories.Remember(c.Request.Context(), m)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"memory": stored})
}

// owned loads the memory and hides other users' memories as not found.
func (h *MemoryHandler) owned(c *gin.Context) bool {
	m, err := h.memories.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return false
	}
	if m.UserID != userID(c) {
		respondError(c, domain.ErrNotFound)
		return false
	}
	return true
}

func (h *MemoryHandler) Boost(c *gin.Context) {
	var req struct {
		Boost float64 `json:"boost"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalid(err))
		return
	}
	if !h.owned(c) {
		return
	}
	m, err := h.memories.UpdateMemoryRelevance(c.Request.Context(), c.Param("id"), req.Boost)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"memory": m})
}

func (h *MemoryHandler) Deactivate(c *gin.Context) {
	if !h.owned(c) {
		return
	}
	if err := h.memories.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
