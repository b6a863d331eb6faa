package polls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/livepoll/internal/events"
	"github.com/aura-webinar/livepoll/internal/models"
)

// DefaultPastPolls is the number of closed polls returned when no limit is given.
const DefaultPastPolls = 10

// Headcount reports how many participants are currently registered.
type Headcount interface {
	Count() int
}

// Engine owns the single active-poll slot. It is not safe for concurrent use;
// the classroom session serializes every call.
type Engine struct {
	store            Store
	roster           Headcount
	sink             events.Sink
	logger           *zap.Logger
	defaultTimeLimit int
	now              func() time.Time

	active *models.Poll
}

// NewEngine creates a poll engine with no active poll.
func NewEngine(store Store, roster Headcount, sink events.Sink, defaultTimeLimit int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultTimeLimit <= 0 {
		defaultTimeLimit = models.DefaultTimeLimit
	}
	return &Engine{
		store:            store,
		roster:           roster,
		sink:             sink,
		logger:           logger,
		defaultTimeLimit: defaultTimeLimit,
		now:              time.Now,
	}
}

// Restore loads the most recent active poll from the store into the slot.
func (e *Engine) Restore(ctx context.Context) error {
	list, err := e.store.ListPolls(ctx, ListOptions{Status: models.PollActive, NewestFirst: true, Limit: 1})
	if err != nil {
		return unavailable("restore active poll", err)
	}
	if len(list) == 0 {
		return nil
	}
	e.active = list[0].Clone()
	e.logger.Info("active poll restored", zap.String("poll_id", e.active.ID.String()))
	return nil
}

// CreatePoll validates and persists a new poll and makes it the active one.
// timeLimit 0 selects the default.
func (e *Engine) CreatePoll(ctx context.Context, question string, options []string, timeLimit int) (*models.Poll, error) {
	if err := e.syncActive(ctx); err != nil {
		return nil, err
	}
	if e.active != nil {
		return nil, models.ErrPollAlreadyActive
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", models.ErrInvalidPoll)
	}
	labels, err := normalizeOptions(options)
	if err != nil {
		return nil, err
	}
	if timeLimit < 0 {
		return nil, fmt.Errorf("%w: time limit must be positive", models.ErrInvalidPoll)
	}
	if timeLimit == 0 {
		timeLimit = e.defaultTimeLimit
	}

	p := &models.Poll{
		ID:        uuid.New(),
		Question:  question,
		Options:   labels,
		TimeLimit: timeLimit,
		Status:    models.PollActive,
		Responses: []models.Response{},
		CreatedAt: e.now().UTC(),
	}
	if err := e.store.SavePoll(ctx, p); err != nil {
		return nil, unavailable("save poll", err)
	}

	e.active = p
	e.sink.Emit(events.PollCreated{Poll: p.Clone()})
	e.logger.Info("poll created",
		zap.String("poll_id", p.ID.String()),
		zap.Int("options", len(p.Options)),
		zap.Int("time_limit", p.TimeLimit),
	)
	return p.Clone(), nil
}

// SubmitAnswer records name's answer on the active poll (last write wins) and
// returns the updated tally. The poll closes once the close condition holds.
func (e *Engine) SubmitAnswer(ctx context.Context, name, option string) (models.Tally, error) {
	if e.active == nil {
		return models.Tally{}, models.ErrNoActivePoll
	}
	if strings.TrimSpace(name) == "" {
		return models.Tally{}, models.ErrEmptyName
	}
	if !e.active.HasOption(option) {
		return models.Tally{}, fmt.Errorf("%w: %q", models.ErrInvalidOption, option)
	}

	next := e.active.Clone()
	at := e.now().UTC()
	next.Upsert(name, option, at)
	closing := e.evaluateCloseCondition(next)
	if closing {
		next.Close(at)
	}
	if err := e.store.SavePoll(ctx, next); err != nil {
		return models.Tally{}, unavailable("save response", err)
	}

	tally := next.Tally()
	e.sink.Emit(events.TallyUpdated{Tally: tally})
	if closing {
		e.active = nil
		e.sink.Emit(events.PollClosed{Poll: next})
		e.logger.Info("poll closed", zap.String("poll_id", next.ID.String()), zap.Int("responses", len(next.Responses)))
	} else {
		e.active = next
	}
	return tally, nil
}

// evaluateCloseCondition decides whether everyone has answered. Responses left by
// participants who have since disconnected still count, hence >=.
func (e *Engine) evaluateCloseCondition(p *models.Poll) bool {
	return len(p.Responses) >= e.roster.Count()
}

// ClosePoll closes the active poll regardless of how many participants answered.
func (e *Engine) ClosePoll(ctx context.Context) (*models.Poll, error) {
	if e.active == nil {
		return nil, models.ErrNoActivePoll
	}
	next := e.active.Clone()
	next.Close(e.now().UTC())
	if err := e.store.SavePoll(ctx, next); err != nil {
		return nil, unavailable("close poll", err)
	}

	e.active = nil
	e.sink.Emit(events.TallyUpdated{Tally: next.Tally()})
	e.sink.Emit(events.PollClosed{Poll: next})
	e.logger.Info("poll closed by teacher", zap.String("poll_id", next.ID.String()))
	return next.Clone(), nil
}

// ActivePoll returns a snapshot of the active poll, or nil. If the store no longer
// knows the poll as active the slot is cleared.
func (e *Engine) ActivePoll(ctx context.Context) (*models.Poll, error) {
	if err := e.syncActive(ctx); err != nil {
		return nil, err
	}
	if e.active == nil {
		return nil, nil
	}
	return e.active.Clone(), nil
}

// syncActive clears the slot when the store no longer holds its poll as active.
// A store failure leaves the slot as it is.
func (e *Engine) syncActive(ctx context.Context) error {
	if e.active == nil {
		return nil
	}
	stored, err := e.store.LoadPollByID(ctx, e.active.ID)
	if err != nil {
		return unavailable("load active poll", err)
	}
	if stored == nil || !stored.IsActive() {
		e.logger.Warn("active poll slot out of sync with store, clearing",
			zap.String("poll_id", e.active.ID.String()))
		e.active = nil
	}
	return nil
}

// Responses returns the responses recorded for pollID. ok is false when the
// poll does not exist.
func (e *Engine) Responses(ctx context.Context, pollID uuid.UUID) (responses []models.Response, ok bool, err error) {
	if e.active != nil && e.active.ID == pollID {
		return append([]models.Response{}, e.active.Responses...), true, nil
	}
	p, err := e.store.LoadPollByID(ctx, pollID)
	if err != nil {
		return nil, false, unavailable("load poll", err)
	}
	if p == nil {
		return nil, false, nil
	}
	return append([]models.Response{}, p.Responses...), true, nil
}

// ListClosedPolls returns up to limit closed polls, newest first.
func (e *Engine) ListClosedPolls(ctx context.Context, limit int) ([]models.Poll, error) {
	if limit <= 0 {
		limit = DefaultPastPolls
	}
	list, err := e.store.ListPolls(ctx, ListOptions{Status: models.PollClosed, NewestFirst: true, Limit: limit})
	if err != nil {
		return nil, unavailable("list closed polls", err)
	}
	return list, nil
}

func normalizeOptions(options []string) ([]string, error) {
	labels := make([]string, 0, len(options))
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		o = strings.TrimSpace(o)
		if o == "" {
			return nil, fmt.Errorf("%w: options must not be empty", models.ErrInvalidPoll)
		}
		if seen[o] {
			return nil, fmt.Errorf("%w: duplicate option %q", models.ErrInvalidPoll, o)
		}
		seen[o] = true
		labels = append(labels, o)
	}
	if len(labels) < 2 {
		return nil, fmt.Errorf("%w: at least two options are required", models.ErrInvalidPoll)
	}
	return labels, nil
}

func unavailable(op string, err error) error {
	if errors.Is(err, models.ErrPersistenceUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrPersistenceUnavailable, err)
}
