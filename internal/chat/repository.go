package chat

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/livepoll/internal/models"
)

// Repository handles chat message persistence in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a chat repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveMessage inserts a message.
func (r *Repository) SaveMessage(ctx context.Context, m *models.ChatMessage) error {
	const query = `INSERT INTO chat_messages (id, sender, content, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, m.ID, m.Sender, m.Content, m.CreatedAt)
	return err
}

// ListRecentMessages returns the newest limit messages in posting order.
func (r *Repository) ListRecentMessages(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	const query = `SELECT id, sender, content, created_at FROM (
			SELECT id, sender, content, created_at, seq FROM chat_messages ORDER BY seq DESC LIMIT $1
		) recent ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
