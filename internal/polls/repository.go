package polls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/livepoll/internal/models"
)

// Repository handles poll persistence in PostgreSQL. Responses are stored as a
// JSONB array on the poll row so a save is a single atomic upsert.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a polls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SavePoll inserts the poll or replaces its mutable columns.
func (r *Repository) SavePoll(ctx context.Context, p *models.Poll) error {
	responses, err := json.Marshal(nonNil(p.Responses))
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}
	const query = `INSERT INTO polls (id, question, options, time_limit, status, responses, created_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, responses = EXCLUDED.responses, closed_at = EXCLUDED.closed_at`
	_, err = r.pool.Exec(ctx, query, p.ID, p.Question, p.Options, p.TimeLimit, string(p.Status), responses, p.CreatedAt, p.ClosedAt)
	return err
}

// LoadPollByID returns a poll by ID, or nil if it does not exist.
func (r *Repository) LoadPollByID(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	const query = `SELECT id, question, options, time_limit, status, responses, created_at, closed_at
		FROM polls WHERE id = $1`
	p, err := scanPoll(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// ListPolls returns polls filtered by status, ordered by created_at.
func (r *Repository) ListPolls(ctx context.Context, opts ListOptions) ([]models.Poll, error) {
	var (
		sb   strings.Builder
		args []interface{}
	)
	sb.WriteString(`SELECT id, question, options, time_limit, status, responses, created_at, closed_at FROM polls`)
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		fmt.Fprintf(&sb, " WHERE status = $%d", len(args))
	}
	if opts.NewestFirst {
		sb.WriteString(" ORDER BY created_at DESC")
	} else {
		sb.WriteString(" ORDER BY created_at ASC")
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

func scanPoll(row pgx.Row) (*models.Poll, error) {
	var (
		p         models.Poll
		status    string
		responses []byte
	)
	if err := row.Scan(&p.ID, &p.Question, &p.Options, &p.TimeLimit, &status, &responses, &p.CreatedAt, &p.ClosedAt); err != nil {
		return nil, err
	}
	p.Status = models.PollStatus(status)
	if err := json.Unmarshal(responses, &p.Responses); err != nil {
		return nil, fmt.Errorf("unmarshal responses: %w", err)
	}
	return &p, nil
}

func nonNil(r []models.Response) []models.Response {
	if r == nil {
		return []models.Response{}
	}
	return r
}
