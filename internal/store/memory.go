// Package store provides the persistence gateways used by the poll engine and
// the chat relay: in-memory, SQLite and PostgreSQL.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/aura-webinar/livepoll/internal/models"
	"github.com/aura-webinar/livepoll/internal/polls"
)

// Memory keeps polls and chat messages in process memory. Safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	polls    map[uuid.UUID]*models.Poll
	messages []models.ChatMessage
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{polls: make(map[uuid.UUID]*models.Poll)}
}

// SavePoll stores a copy of p.
func (m *Memory) SavePoll(_ context.Context, p *models.Poll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls[p.ID] = p.Clone()
	return nil
}

// LoadPollByID returns a copy of the poll, or nil.
func (m *Memory) LoadPollByID(_ context.Context, id uuid.UUID) (*models.Poll, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.polls[id].Clone(), nil
}

// ListPolls returns copies of the matching polls ordered by creation time.
func (m *Memory) ListPolls(_ context.Context, opts polls.ListOptions) ([]models.Poll, error) {
	m.mu.RLock()
	list := make([]models.Poll, 0, len(m.polls))
	for _, p := range m.polls {
		if opts.Status == "" || p.Status == opts.Status {
			list = append(list, *p.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if opts.NewestFirst {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	if opts.Limit > 0 && len(list) > opts.Limit {
		list = list[:opts.Limit]
	}
	return list, nil
}

// SaveMessage appends a message.
func (m *Memory) SaveMessage(_ context.Context, msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, *msg)
	return nil
}

// ListRecentMessages returns the newest limit messages, oldest first.
func (m *Memory) ListRecentMessages(_ context.Context, limit int) ([]models.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := 0
	if limit > 0 && len(m.messages) > limit {
		start = len(m.messages) - limit
	}
	return append([]models.ChatMessage{}, m.messages[start:]...), nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
