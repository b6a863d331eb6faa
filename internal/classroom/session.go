// Package classroom serializes every state change of the live class: the roster,
// the poll engine and the chat relay sit behind one lock, and the outbound
// messages of each unit of work are handed to the transport before it is released.
package classroom

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/livepoll/internal/chat"
	"github.com/aura-webinar/livepoll/internal/events"
	"github.com/aura-webinar/livepoll/internal/models"
	"github.com/aura-webinar/livepoll/internal/polls"
	"github.com/aura-webinar/livepoll/internal/realtime"
	"github.com/aura-webinar/livepoll/internal/roster"
)

// DefaultPersistTimeout bounds the store I/O of one unit of work.
const DefaultPersistTimeout = 3 * time.Second

// Store is the persistence the session needs.
type Store interface {
	polls.Store
	chat.Store
}

// Deliverer enqueues outbound messages. realtime.Hub implements it.
type Deliverer interface {
	Deliver(out []realtime.Outbound)
}

// PollClosedHandler is called, outside the session lock, for every poll that closed.
type PollClosedHandler func(p *models.Poll)

// Config tunes the session.
type Config struct {
	PersistTimeout   time.Duration
	DefaultTimeLimit int
	PastPollsLimit   int
	Chat             chat.Config
}

// Session is the single serialization point of the class.
type Session struct {
	mu sync.Mutex

	rec    *events.Recorder
	roster *roster.Roster
	engine *polls.Engine
	relay  *chat.Relay
	out    Deliverer
	logger *zap.Logger

	timeout   time.Duration
	pastPolls int
	onClosed  PollClosedHandler
}

// New wires a roster, poll engine and chat relay over store.
func New(store Store, out Deliverer, cfg Config, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	if cfg.PastPollsLimit <= 0 {
		cfg.PastPollsLimit = polls.DefaultPastPolls
	}
	rec := events.NewRecorder()
	r := roster.New(rec)
	return &Session{
		rec:       rec,
		roster:    r,
		engine:    polls.NewEngine(store, r, rec, cfg.DefaultTimeLimit, logger),
		relay:     chat.NewRelay(store, rec, cfg.Chat, logger),
		out:       out,
		logger:    logger,
		timeout:   cfg.PersistTimeout,
		pastPolls: cfg.PastPollsLimit,
	}
}

// SetPollClosedHandler registers fn to run after a poll closes.
func (s *Session) SetPollClosedHandler(fn PollClosedHandler) {
	s.mu.Lock()
	s.onClosed = fn
	s.mu.Unlock()
}

// Restore reloads a poll left active by a previous run.
func (s *Session) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Restore(ctx)
}

// Connect attaches a new connection and sends it the chat history, the roster and
// the active poll, if any.
func (s *Session) Connect(connID string, attach func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attach != nil {
		attach()
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	to := realtime.One(connID)
	var out []realtime.Outbound

	history, err := s.relay.History(ctx, 0)
	if err != nil {
		s.logger.Warn("chat history unavailable on connect", zap.String("conn_id", connID), zap.Error(err))
	} else {
		out = append(out, realtime.Outbound{Target: to, Message: realtime.NewMessage(realtime.EventChatHistory, history)})
	}
	out = append(out, realtime.Outbound{
		Target:  to,
		Message: realtime.NewMessage(realtime.EventRosterUpdated, realtime.RosterPayload{Names: s.roster.Names()}),
	})

	active, err := s.engine.ActivePoll(ctx)
	if err != nil {
		s.logger.Warn("active poll unavailable on connect", zap.String("conn_id", connID), zap.Error(err))
	} else if active != nil {
		out = append(out, realtime.Outbound{Target: to, Message: realtime.NewMessage(realtime.EventActivePoll, realtime.NewPollSnapshot(active))})
	}
	s.out.Deliver(out)
}

// Disconnect removes whoever registered on connID. The poll close condition is not
// re-evaluated here.
func (s *Session) Disconnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roster.Remove(connID)
	s.out.Deliver(realtime.RouteAll(s.rec.Drain()))
}

// Dispatch decodes and processes one inbound message from connID.
func (s *Session) Dispatch(connID string, msg realtime.WSMessage) {
	req, err := realtime.ParseRequest(msg)
	if err != nil {
		s.logger.Debug("rejected inbound message", zap.String("conn_id", connID), zap.String("event", msg.Event), zap.Error(err))
		s.out.Deliver([]realtime.Outbound{{Target: realtime.One(connID), Message: realtime.NewErrorMessage(msg.Event, err)}})
		return
	}
	closed := s.handle(connID, req)
	s.notifyClosed(closed)
}

func (s *Session) handle(connID string, req realtime.Request) []*models.Poll {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	to := realtime.One(connID)
	replies, err := s.apply(ctx, connID, req)
	if err != nil {
		s.rec.Discard()
		s.logger.Debug("request failed", zap.String("conn_id", connID), zap.String("event", req.Event()), zap.Error(err))
		s.out.Deliver([]realtime.Outbound{{Target: to, Message: realtime.NewErrorMessage(req.Event(), err)}})
		return nil
	}

	emitted := s.rec.Drain()
	out := make([]realtime.Outbound, 0, len(replies)+len(emitted))
	for _, m := range replies {
		out = append(out, realtime.Outbound{Target: to, Message: m})
	}
	out = append(out, realtime.RouteAll(emitted)...)
	s.out.Deliver(out)

	var closed []*models.Poll
	for _, e := range emitted {
		if pc, ok := e.(events.PollClosed); ok {
			closed = append(closed, pc.Poll)
		}
	}
	return closed
}

// apply runs req against the roster, engine or relay and returns the replies for
// the requesting connection.
func (s *Session) apply(ctx context.Context, connID string, req realtime.Request) ([]realtime.WSMessage, error) {
	switch r := req.(type) {
	case realtime.RegisterRequest:
		p, err := s.roster.Register(r.Name, connID)
		if err != nil {
			return nil, err
		}
		return reply(realtime.EventRegistered, realtime.RegisteredPayload{Name: p.Name}), nil

	case realtime.CreatePollRequest:
		_, err := s.engine.CreatePoll(ctx, r.Question, r.Options, r.MaxTime)
		return nil, err

	case realtime.SubmitAnswerRequest:
		name, ok := s.roster.NameOf(connID)
		if !ok {
			return nil, models.ErrNotRegistered
		}
		if id := r.StudentID; strings.TrimSpace(id) != "" && id != name {
			return nil, fmt.Errorf("%w: connection is registered as %q", models.ErrNotRegistered, name)
		}
		tally, err := s.engine.SubmitAnswer(ctx, name, r.Answer)
		if err != nil {
			return nil, err
		}
		return reply(realtime.EventAnswerAccepted, realtime.AnswerAcceptedPayload{PollID: tally.PollID, Answer: r.Answer}), nil

	case realtime.ClosePollRequest:
		_, err := s.engine.ClosePoll(ctx)
		return nil, err

	case realtime.GetActivePollRequest:
		p, err := s.engine.ActivePoll(ctx)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return reply(realtime.EventNoActivePoll, nil), nil
		}
		return reply(realtime.EventActivePoll, realtime.NewPollSnapshot(p)), nil

	case realtime.GetPollResponsesRequest:
		responses, found, err := s.engine.Responses(ctx, r.PollID)
		if err != nil {
			return nil, err
		}
		if responses == nil {
			responses = []models.Response{}
		}
		return reply(realtime.EventPollResponses, realtime.PollResponsesPayload{PollID: r.PollID, Found: found, Responses: responses}), nil

	case realtime.GetPastPollsRequest:
		limit := r.Limit
		if limit <= 0 {
			limit = s.pastPolls
		}
		if limit > polls.MaxListLimit {
			limit = polls.MaxListLimit
		}
		list, err := s.engine.ListClosedPolls(ctx, limit)
		if err != nil {
			return nil, err
		}
		snapshots := make([]realtime.PollSnapshot, len(list))
		for i := range list {
			snapshots[i] = realtime.NewPollSnapshot(&list[i])
		}
		return reply(realtime.EventPastPolls, snapshots), nil

	case realtime.KickStudentRequest:
		if strings.TrimSpace(r.Name) == "" {
			return nil, models.ErrEmptyName
		}
		if s.roster.Kick(r.Name) {
			s.logger.Info("participant kicked", zap.String("name", r.Name))
		}
		return nil, nil

	case realtime.SendMessageRequest:
		sender := r.Sender
		if strings.TrimSpace(sender) == "" {
			sender, _ = s.roster.NameOf(connID)
		}
		_, err := s.relay.Post(ctx, sender, r.Content)
		return nil, err

	case realtime.GetMessagesRequest:
		list, err := s.relay.History(ctx, r.Limit)
		if err != nil {
			return nil, err
		}
		return reply(realtime.EventChatHistory, list), nil

	default:
		return nil, models.ErrUnknownEvent
	}
}

func (s *Session) notifyClosed(closed []*models.Poll) {
	if len(closed) == 0 {
		return
	}
	s.mu.Lock()
	fn := s.onClosed
	s.mu.Unlock()
	if fn == nil {
		return
	}
	for _, p := range closed {
		fn(p)
	}
}

func reply(event string, payload any) []realtime.WSMessage {
	return []realtime.WSMessage{realtime.NewMessage(event, payload)}
}
