package polls

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-webinar/livepoll/internal/models"
)

// ListOptions filters and orders ListPolls. A zero Status matches every poll;
// Limit <= 0 means no limit.
type ListOptions struct {
	Status      models.PollStatus
	NewestFirst bool
	Limit       int
}

// Store is the durable side of the engine. Each call either fully applies or fails.
type Store interface {
	// SavePoll inserts or replaces the poll including its responses.
	SavePoll(ctx context.Context, p *models.Poll) error
	// LoadPollByID returns nil, nil when the poll does not exist.
	LoadPollByID(ctx context.Context, id uuid.UUID) (*models.Poll, error)
	// ListPolls returns polls ordered by creation time.
	ListPolls(ctx context.Context, opts ListOptions) ([]models.Poll, error)
}
