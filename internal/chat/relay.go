// Package chat implements the class chat log: append-only, broadcast to everyone.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/livepoll/internal/events"
	"github.com/aura-webinar/livepoll/internal/models"
)

// DefaultMaxLength is the longest accepted message, in runes.
const DefaultMaxLength = 1000

// Store persists chat messages.
type Store interface {
	SaveMessage(ctx context.Context, m *models.ChatMessage) error
	// ListRecentMessages returns the newest limit messages, oldest first.
	ListRecentMessages(ctx context.Context, limit int) ([]models.ChatMessage, error)
}

// Config bounds message size and history windows.
type Config struct {
	MaxLength    int
	HistoryLimit int // default window for History
	MaxHistory   int // hard cap for History
}

// Relay validates, persists and announces chat messages.
type Relay struct {
	store  Store
	sink   events.Sink
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewRelay creates a chat relay. Zero config fields take defaults.
func NewRelay(store Store, sink events.Sink, cfg Config, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = models.DefaultChatHistory
	}
	if cfg.MaxHistory < cfg.HistoryLimit {
		cfg.MaxHistory = cfg.HistoryLimit
	}
	return &Relay{store: store, sink: sink, cfg: cfg, logger: logger, now: time.Now}
}

// Post appends a message to the log and broadcasts it.
func (r *Relay) Post(ctx context.Context, sender, content string) (*models.ChatMessage, error) {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return nil, models.ErrEmptyName
	}
	if strings.TrimSpace(content) == "" {
		return nil, models.ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > r.cfg.MaxLength {
		return nil, fmt.Errorf("%w: limit is %d characters", models.ErrMessageTooLong, r.cfg.MaxLength)
	}

	m := &models.ChatMessage{
		ID:        uuid.New(),
		Sender:    sender,
		Content:   content,
		CreatedAt: r.now().UTC(),
	}
	if err := r.store.SaveMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("save message: %w: %w", models.ErrPersistenceUnavailable, err)
	}
	r.sink.Emit(events.ChatPosted{Message: *m})
	r.logger.Debug("chat message posted", zap.String("message_id", m.ID.String()), zap.String("sender", sender))
	return m, nil
}

// History returns the most recent messages, oldest first. limit <= 0 selects the default window.
func (r *Relay) History(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = r.cfg.HistoryLimit
	}
	if limit > r.cfg.MaxHistory {
		limit = r.cfg.MaxHistory
	}
	list, err := r.store.ListRecentMessages(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w: %w", models.ErrPersistenceUnavailable, err)
	}
	if list == nil {
		list = []models.ChatMessage{}
	}
	return list, nil
}
