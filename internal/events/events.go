// Package events defines the state changes produced by the roster, the poll
// engine and the chat relay. The realtime router turns them into outbound messages.
package events

import "github.com/aura-webinar/livepoll/internal/models"

// Kind identifies an event.
type Kind string

const (
	KindRosterChanged     Kind = "ROSTER_CHANGED"
	KindPollCreated       Kind = "POLL_CREATED"
	KindTallyUpdated      Kind = "TALLY_UPDATED"
	KindPollClosed        Kind = "POLL_CLOSED"
	KindParticipantKicked Kind = "PARTICIPANT_KICKED"
	KindChatPosted        Kind = "CHAT_POSTED"
)

// Event is implemented by every event payload below.
type Event interface {
	Kind() Kind
}

// RosterChanged carries the full list of registered names in registration order.
type RosterChanged struct {
	Names []string
}

// PollCreated carries the poll as it was created (no responses yet).
type PollCreated struct {
	Poll *models.Poll
}

// TallyUpdated carries the per-option counts after a submission or a close.
type TallyUpdated struct {
	Tally models.Tally
}

// PollClosed signals that the poll stopped accepting responses.
type PollClosed struct {
	Poll *models.Poll
}

// ParticipantKicked is addressed to the removed participant's connection.
type ParticipantKicked struct {
	Name   string
	ConnID string
}

// ChatPosted carries a newly appended chat message.
type ChatPosted struct {
	Message models.ChatMessage
}

func (RosterChanged) Kind() Kind     { return KindRosterChanged }
func (PollCreated) Kind() Kind       { return KindPollCreated }
func (TallyUpdated) Kind() Kind      { return KindTallyUpdated }
func (PollClosed) Kind() Kind        { return KindPollClosed }
func (ParticipantKicked) Kind() Kind { return KindParticipantKicked }
func (ChatPosted) Kind() Kind        { return KindChatPosted }

// Sink receives events in the order they are produced.
type Sink interface {
	Emit(Event)
}

// Recorder buffers events for one unit of work. Not safe for concurrent use.
type Recorder struct {
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit appends an event.
func (r *Recorder) Emit(e Event) {
	r.events = append(r.events, e)
}

// Drain returns the buffered events and resets the recorder.
func (r *Recorder) Drain() []Event {
	out := r.events
	r.events = nil
	return out
}

// Discard drops buffered events. Used when a unit of work fails part-way.
func (r *Recorder) Discard() {
	r.events = nil
}
