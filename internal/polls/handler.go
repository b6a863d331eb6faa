package polls

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-webinar/livepoll/internal/models"
	"github.com/aura-webinar/livepoll/pkg/response"
)

// MaxListLimit caps the limit query parameter of GET /api/polls.
const MaxListLimit = 100

// PollView is a poll together with its tally, as returned by the REST API.
type PollView struct {
	models.Poll
	Tally models.Tally `json:"tally"`
}

// NewPollView builds the REST representation of a poll.
func NewPollView(p models.Poll) PollView {
	if p.Responses == nil {
		p.Responses = []models.Response{}
	}
	return PollView{Poll: p, Tally: p.Tally()}
}

// Handler serves read-only poll history over HTTP. It reads the store directly;
// live state goes through the websocket.
type Handler struct {
	store Store
}

// NewHandler creates a polls handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// List handles GET /api/polls (newest first, optional status and limit).
func (h *Handler) List(c *gin.Context) {
	opts := ListOptions{NewestFirst: true}
	switch status := c.Query("status"); status {
	case "":
	case string(models.PollActive), string(models.PollClosed):
		opts.Status = models.PollStatus(status)
	default:
		response.BadRequest(c, "status must be active or closed")
		return
	}
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		if n > MaxListLimit {
			n = MaxListLimit
		}
		opts.Limit = n
	}

	list, err := h.store.ListPolls(c.Request.Context(), opts)
	if err != nil {
		response.ServiceUnavailable(c, "failed to list polls")
		return
	}
	views := make([]PollView, 0, len(list))
	for _, p := range list {
		views = append(views, NewPollView(p))
	}
	response.OK(c, gin.H{"polls": views})
}

// GetByID handles GET /api/polls/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	p, err := h.store.LoadPollByID(c.Request.Context(), id)
	if err != nil {
		response.ServiceUnavailable(c, "failed to load poll")
		return
	}
	if p == nil {
		response.NotFound(c, "poll not found")
		return
	}
	response.OK(c, NewPollView(*p))
}
