package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTimeLimit is the poll time limit in seconds when the teacher does not set one.
const DefaultTimeLimit = 60

// PollStatus is the lifecycle state of a poll.
type PollStatus string

const (
	PollActive PollStatus = "active"
	PollClosed PollStatus = "closed"
)

// Poll represents a multiple-choice question broadcast to the class.
type Poll struct {
	ID        uuid.UUID  `json:"id"`
	Question  string     `json:"question"`
	Options   []string   `json:"options"`
	TimeLimit int        `json:"maxTime"` // seconds
	Status    PollStatus `json:"status"`
	Responses []Response `json:"responses"`
	CreatedAt time.Time  `json:"createdAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
}

// Response is one participant's answer to a poll. A participant has at most one per poll.
type Response struct {
	ParticipantName string    `json:"studentId"`
	Option          string    `json:"answer"`
	AnsweredAt      time.Time `json:"answeredAt"`
}

// OptionCount is the number of responses selecting one option.
type OptionCount struct {
	Option string `json:"option"`
	Count  int    `json:"count"`
}

// Tally is the per-option count of the current responses, in option order.
type Tally struct {
	PollID uuid.UUID     `json:"pollId"`
	Counts []OptionCount `json:"results"`
	Total  int           `json:"total"`
}

// IsActive reports whether the poll still accepts responses.
func (p *Poll) IsActive() bool {
	return p.Status == PollActive
}

// Deadline returns the advisory deadline clients count down to.
func (p *Poll) Deadline() time.Time {
	return p.CreatedAt.Add(time.Duration(p.TimeLimit) * time.Second)
}

// HasOption reports whether option is one of the poll's labels (exact match).
func (p *Poll) HasOption(option string) bool {
	for _, o := range p.Options {
		if o == option {
			return true
		}
	}
	return false
}

// Upsert records the participant's answer. An existing response from the same
// participant is overwritten in place, keeping its arrival position.
func (p *Poll) Upsert(name, option string, at time.Time) {
	for i := range p.Responses {
		if p.Responses[i].ParticipantName == name {
			p.Responses[i].Option = option
			p.Responses[i].AnsweredAt = at
			return
		}
	}
	p.Responses = append(p.Responses, Response{ParticipantName: name, Option: option, AnsweredAt: at})
}

// Tally counts the responses per option.
func (p *Poll) Tally() Tally {
	counts := make([]OptionCount, len(p.Options))
	index := make(map[string]int, len(p.Options))
	for i, o := range p.Options {
		counts[i] = OptionCount{Option: o}
		index[o] = i
	}
	total := 0
	for _, r := range p.Responses {
		if i, ok := index[r.Option]; ok {
			counts[i].Count++
			total++
		}
	}
	return Tally{PollID: p.ID, Counts: counts, Total: total}
}

// Close marks the poll closed at the given time.
func (p *Poll) Close(at time.Time) {
	p.Status = PollClosed
	p.ClosedAt = &at
}

// Clone returns a deep copy so callers can mutate it without touching the original.
func (p *Poll) Clone() *Poll {
	if p == nil {
		return nil
	}
	c := *p
	c.Options = append([]string(nil), p.Options...)
	c.Responses = append([]Response(nil), p.Responses...)
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

// Count returns the number of responses for option, or 0 if it is not a poll option.
func (t Tally) Count(option string) int {
	for _, c := range t.Counts {
		if c.Option == option {
			return c.Count
		}
	}
	return 0
}
