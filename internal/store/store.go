package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/aura-webinar/livepoll/internal/chat"
	"github.com/aura-webinar/livepoll/internal/models"
	"github.com/aura-webinar/livepoll/internal/polls"
	"github.com/aura-webinar/livepoll/pkg/database"
)

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Gateway is the full persistence collaborator of the classroom session.
type Gateway interface {
	polls.Store
	chat.Store
	Close() error
}

// Options selects and configures a gateway.
type Options struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// Postgres combines the pgx-backed poll and chat repositories over one pool.
type Postgres struct {
	polls *polls.Repository
	chat  *chat.Repository
	pool  *pgxpool.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		polls: polls.NewRepository(pool),
		chat:  chat.NewRepository(pool),
		pool:  pool,
	}
}

func (p *Postgres) SavePoll(ctx context.Context, poll *models.Poll) error {
	return p.polls.SavePoll(ctx, poll)
}

func (p *Postgres) LoadPollByID(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	return p.polls.LoadPollByID(ctx, id)
}

func (p *Postgres) ListPolls(ctx context.Context, opts polls.ListOptions) ([]models.Poll, error) {
	return p.polls.ListPolls(ctx, opts)
}

func (p *Postgres) SaveMessage(ctx context.Context, m *models.ChatMessage) error {
	return p.chat.SaveMessage(ctx, m)
}

func (p *Postgres) ListRecentMessages(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	return p.chat.ListRecentMessages(ctx, limit)
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Open connects the configured gateway. Postgres runs the embedded migrations.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Gateway, error) {
	switch opts.Driver {
	case DriverMemory:
		logger.Warn("using in-memory store; polls and chat are lost on restart")
		return NewMemory(), nil
	case DriverSQLite, "":
		s, err := OpenSQLite(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("SQLite store opened", zap.String("path", opts.SQLitePath))
		return s, nil
	case DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, opts.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return NewPostgres(pool), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
