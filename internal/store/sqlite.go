package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aura-webinar/livepoll/internal/models"
	"github.com/aura-webinar/livepoll/internal/polls"
)

//go:embed schema.sql
var sqliteSchema string

// SQLite stores polls and chat messages in a single SQLite file. Timestamps are
// kept as unix nanoseconds; options and responses as JSON text.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps SQLite from returning SQLITE_BUSY under the session lock
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	if _, err := db.ExecContext(ctx, strings.TrimSpace(sqliteSchema)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SavePoll inserts the poll or replaces its mutable columns.
func (s *SQLite) SavePoll(ctx context.Context, p *models.Poll) error {
	options, err := json.Marshal(p.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	responses := p.Responses
	if responses == nil {
		responses = []models.Response{}
	}
	rs, err := json.Marshal(responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}
	var closedAt sql.NullInt64
	if p.ClosedAt != nil {
		closedAt = sql.NullInt64{Int64: p.ClosedAt.UnixNano(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO polls (id, question, options, time_limit, status, responses, created_at, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, responses = excluded.responses, closed_at = excluded.closed_at`,
		p.ID.String(), p.Question, string(options), p.TimeLimit, string(p.Status), string(rs), p.CreatedAt.UnixNano(), closedAt)
	return err
}

// LoadPollByID returns the poll, or nil if it does not exist.
func (s *SQLite) LoadPollByID(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, question, options, time_limit, status, responses, created_at, closed_at FROM polls WHERE id = ?`,
		id.String())
	p, err := scanSQLitePoll(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// ListPolls returns the matching polls ordered by creation time.
func (s *SQLite) ListPolls(ctx context.Context, opts polls.ListOptions) ([]models.Poll, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT id, question, options, time_limit, status, responses, created_at, closed_at FROM polls`)
	if opts.Status != "" {
		sb.WriteString(` WHERE status = ?`)
		args = append(args, string(opts.Status))
	}
	if opts.NewestFirst {
		sb.WriteString(` ORDER BY created_at DESC`)
	} else {
		sb.WriteString(` ORDER BY created_at ASC`)
	}
	if opts.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Poll
	for rows.Next() {
		p, err := scanSQLitePoll(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// SaveMessage appends a chat message.
func (s *SQLite) SaveMessage(ctx context.Context, m *models.ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, sender, content, created_at) VALUES (?, ?, ?, ?)`,
		m.ID.String(), m.Sender, m.Content, m.CreatedAt.UnixNano())
	return err
}

// ListRecentMessages returns the newest limit messages, oldest first.
func (s *SQLite) ListRecentMessages(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, content, created_at FROM (
			SELECT seq, id, sender, content, created_at FROM chat_messages ORDER BY seq DESC LIMIT ?
		 ) ORDER BY seq ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.ChatMessage
	for rows.Next() {
		var (
			m       models.ChatMessage
			id      string
			created int64
		)
		if err := rows.Scan(&id, &m.Sender, &m.Content, &created); err != nil {
			return nil, err
		}
		if m.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse message id: %w", err)
		}
		m.CreatedAt = time.Unix(0, created).UTC()
		list = append(list, m)
	}
	return list, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLitePoll(row scanner) (*models.Poll, error) {
	var (
		p                  models.Poll
		id, status         string
		options, responses string
		created            int64
		closed             sql.NullInt64
	)
	if err := row.Scan(&id, &p.Question, &options, &p.TimeLimit, &status, &responses, &created, &closed); err != nil {
		return nil, err
	}
	var err error
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse poll id: %w", err)
	}
	if err := json.Unmarshal([]byte(options), &p.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	if err := json.Unmarshal([]byte(responses), &p.Responses); err != nil {
		return nil, fmt.Errorf("unmarshal responses: %w", err)
	}
	p.Status = models.PollStatus(status)
	p.CreatedAt = time.Unix(0, created).UTC()
	if closed.Valid {
		t := time.Unix(0, closed.Int64).UTC()
		p.ClosedAt = &t
	}
	return &p, nil
}
