package chat

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/livepoll/internal/models"
	"github.com/aura-webinar/livepoll/pkg/response"
)

// Handler serves chat history over HTTP.
type Handler struct {
	store Store
	max   int
}

// NewHandler creates a chat handler. max caps the limit query parameter.
func NewHandler(store Store, max int) *Handler {
	if max <= 0 {
		max = 200
	}
	return &Handler{store: store, max: max}
}

// List handles GET /api/messages (oldest first).
func (h *Handler) List(c *gin.Context) {
	limit := models.DefaultChatHistory
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > h.max {
		limit = h.max
	}
	list, err := h.store.ListRecentMessages(c.Request.Context(), limit)
	if err != nil {
		response.ServiceUnavailable(c, "failed to list messages")
		return
	}
	if list == nil {
		list = []models.ChatMessage{}
	}
	response.OK(c, gin.H{"messages": list})
}
