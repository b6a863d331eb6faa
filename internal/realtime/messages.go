package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/livepoll/internal/models"
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound events.
const (
	EventRegister         = "register"
	EventCreatePoll       = "create_poll"
	EventSubmitAnswer     = "submit_answer"
	EventClosePoll        = "close_poll"
	EventGetActivePoll    = "get_active_poll"
	EventGetPollResponses = "get_poll_responses"
	EventGetPastPolls     = "get_past_polls"
	EventKickStudent      = "kick_student"
	EventSendMessage      = "send_message"
	EventGetMessages      = "get_messages"
)

// Outbound events.
const (
	EventRegistered     = "registered"
	EventError          = "error"
	EventNewPoll        = "new_poll"
	EventPollResults    = "poll_results"
	EventPollClosed     = "poll_closed"
	EventRosterUpdated  = "roster_updated"
	EventKicked         = "kicked"
	EventChatMessage    = "chat_message"
	EventChatHistory    = "chat_history"
	EventActivePoll     = "active_poll"
	EventNoActivePoll   = "no_active_poll"
	EventPollResponses  = "poll_responses"
	EventPastPolls      = "past_polls"
	EventAnswerAccepted = "answer_accepted"
)

// Error codes sent in the error payload.
const (
	CodeNameTaken              = "NAME_TAKEN"
	CodeEmptyName              = "EMPTY_NAME"
	CodePollAlreadyActive      = "POLL_ALREADY_ACTIVE"
	CodeInvalidPoll            = "INVALID_POLL"
	CodeNoActivePoll           = "NO_ACTIVE_POLL"
	CodeInvalidOption          = "INVALID_OPTION"
	CodePersistenceUnavailable = "PERSISTENCE_UNAVAILABLE"
	CodeInvalidMessage         = "INVALID_MESSAGE"
	CodeInternal               = "INTERNAL_ERROR"
)

// ErrMalformed is returned for a payload that cannot be decoded into its request.
var ErrMalformed = errors.New("malformed payload")

// Request is one decoded inbound message. The set of implementations is closed.
type Request interface {
	Event() string
}

type RegisterRequest struct {
	Name string `json:"name"`
}

type CreatePollRequest struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	MaxTime  int      `json:"maxTime"`
}

type SubmitAnswerRequest struct {
	StudentID string `json:"studentId"`
	Answer    string `json:"answer"`
}

type ClosePollRequest struct{}

type GetActivePollRequest struct{}

type GetPollResponsesRequest struct {
	PollID uuid.UUID `json:"pollId"`
}

type GetPastPollsRequest struct {
	Limit int `json:"limit"`
}

type KickStudentRequest struct {
	Name string `json:"name"`
}

type SendMessageRequest struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

type GetMessagesRequest struct {
	Limit int `json:"limit"`
}

func (RegisterRequest) Event() string         { return EventRegister }
func (CreatePollRequest) Event() string       { return EventCreatePoll }
func (SubmitAnswerRequest) Event() string     { return EventSubmitAnswer }
func (ClosePollRequest) Event() string        { return EventClosePoll }
func (GetActivePollRequest) Event() string    { return EventGetActivePoll }
func (GetPollResponsesRequest) Event() string { return EventGetPollResponses }
func (GetPastPollsRequest) Event() string     { return EventGetPastPolls }
func (KickStudentRequest) Event() string      { return EventKickStudent }
func (SendMessageRequest) Event() string      { return EventSendMessage }
func (GetMessagesRequest) Event() string      { return EventGetMessages }

// ParseRequest decodes msg into its request variant. Decoding failures carry the
// validation error of the event so the client sees the same code as for bad values.
func ParseRequest(msg WSMessage) (Request, error) {
	switch msg.Event {
	case EventRegister:
		var s string
		if err := json.Unmarshal(msg.Data, &s); err == nil {
			return RegisterRequest{Name: s}, nil
		}
		var r RegisterRequest
		if err := decode(msg.Data, &r); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrEmptyName, err)
		}
		return r, nil
	case EventCreatePoll:
		var r CreatePollRequest
		if err := decode(msg.Data, &r); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidPoll, err)
		}
		return r, nil
	case EventSubmitAnswer:
		var r SubmitAnswerRequest
		if err := decode(msg.Data, &r); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidOption, err)
		}
		return r, nil
	case EventClosePoll:
		return ClosePollRequest{}, nil
	case EventGetActivePoll:
		return GetActivePollRequest{}, nil
	case EventGetPollResponses:
		var r GetPollResponsesRequest
		if err := decode(msg.Data, &r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if r.PollID == uuid.Nil {
			return nil, fmt.Errorf("%w: pollId is required", ErrMalformed)
		}
		return r, nil
	case EventGetPastPolls:
		var r GetPastPollsRequest
		if err := decodeOptional(msg.Data, &r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return r, nil
	case EventKickStudent:
		var r KickStudentRequest
		if err := decode(msg.Data, &r); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrEmptyName, err)
		}
		return r, nil
	case EventSendMessage:
		var r SendMessageRequest
		if err := decode(msg.Data, &r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return r, nil
	case EventGetMessages:
		var r GetMessagesRequest
		if err := decodeOptional(msg.Data, &r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownEvent, msg.Event)
	}
}

func decode(data json.RawMessage, v any) error {
	if isEmpty(data) {
		return errors.New("missing payload")
	}
	return json.Unmarshal(data, v)
}

func decodeOptional(data json.RawMessage, v any) error {
	if isEmpty(data) {
		return nil
	}
	return json.Unmarshal(data, v)
}

func isEmpty(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// ErrorPayload is the data of an error message.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// ErrorCode maps a domain error to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, models.ErrPersistenceUnavailable):
		return CodePersistenceUnavailable
	case errors.Is(err, models.ErrNameTaken):
		return CodeNameTaken
	case errors.Is(err, models.ErrEmptyName),
		errors.Is(err, models.ErrNotRegistered):
		return CodeEmptyName
	case errors.Is(err, models.ErrPollAlreadyActive):
		return CodePollAlreadyActive
	case errors.Is(err, models.ErrInvalidPoll):
		return CodeInvalidPoll
	case errors.Is(err, models.ErrNoActivePoll):
		return CodeNoActivePoll
	case errors.Is(err, models.ErrInvalidOption):
		return CodeInvalidOption
	case errors.Is(err, ErrMalformed),
		errors.Is(err, models.ErrUnknownEvent),
		errors.Is(err, models.ErrEmptyMessage),
		errors.Is(err, models.ErrMessageTooLong):
		return CodeInvalidMessage
	default:
		return CodeInternal
	}
}

// NewErrorMessage builds the error reply for a request that failed.
func NewErrorMessage(event string, err error) WSMessage {
	code := ErrorCode(err)
	text := err.Error()
	if code == CodeInternal {
		text = "internal error"
	}
	return encode(EventError, ErrorPayload{Code: code, Message: text, Event: event})
}

// PollSummary is the new_poll payload. It never carries responses.
type PollSummary struct {
	ID        uuid.UUID `json:"id"`
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	MaxTime   int       `json:"maxTime"`
	CreatedAt time.Time `json:"createdAt"`
	Deadline  time.Time `json:"deadline"`
}

// NewPollSummary builds the broadcast form of a freshly created poll.
func NewPollSummary(p *models.Poll) PollSummary {
	return PollSummary{
		ID:        p.ID,
		Question:  p.Question,
		Options:   append([]string{}, p.Options...),
		MaxTime:   p.TimeLimit,
		CreatedAt: p.CreatedAt,
		Deadline:  p.Deadline(),
	}
}

// PollSnapshot is the active_poll payload: the poll with raw responses and tally.
type PollSnapshot struct {
	*models.Poll
	Deadline time.Time    `json:"deadline"`
	Tally    models.Tally `json:"tally"`
}

// NewPollSnapshot wraps p for on-demand stats views.
func NewPollSnapshot(p *models.Poll) PollSnapshot {
	return PollSnapshot{Poll: p, Deadline: p.Deadline(), Tally: p.Tally()}
}

type RegisteredPayload struct {
	Name string `json:"name"`
}

type RosterPayload struct {
	Names []string `json:"names"`
}

type PollClosedPayload struct {
	PollID uuid.UUID `json:"pollId"`
}

type KickedPayload struct {
	Name string `json:"name"`
}

type PollResponsesPayload struct {
	PollID    uuid.UUID         `json:"pollId"`
	Found     bool              `json:"found"`
	Responses []models.Response `json:"responses"`
}

type AnswerAcceptedPayload struct {
	PollID uuid.UUID `json:"pollId"`
	Answer string    `json:"answer"`
}

// NewMessage encodes payload into an envelope.
func NewMessage(event string, payload any) WSMessage {
	return encode(event, payload)
}

func encode(event string, payload any) WSMessage {
	if payload == nil {
		return WSMessage{Event: event}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		data, _ = json.Marshal(ErrorPayload{Code: CodeInternal, Message: "encode " + event})
		return WSMessage{Event: EventError, Data: data}
	}
	return WSMessage{Event: event, Data: data}
}
