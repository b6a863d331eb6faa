package realtime

import (
	"github.com/aura-webinar/livepoll/internal/events"
)

// Target selects the recipients of an outbound message.
type Target struct {
	ConnID string // empty means every connected client
}

// All addresses every connected client.
func All() Target { return Target{} }

// One addresses a single connection.
func One(connID string) Target { return Target{ConnID: connID} }

// IsBroadcast reports whether the target is every client.
func (t Target) IsBroadcast() bool { return t.ConnID == "" }

// Outbound is a message bound for a target.
type Outbound struct {
	Target  Target
	Message WSMessage
}

// Route maps an internal event to the messages clients receive. Order within the
// returned slice is the delivery order.
func Route(e events.Event) []Outbound {
	switch ev := e.(type) {
	case events.RosterChanged:
		names := ev.Names
		if names == nil {
			names = []string{}
		}
		return broadcast(EventRosterUpdated, RosterPayload{Names: names})
	case events.PollCreated:
		return broadcast(EventNewPoll, NewPollSummary(ev.Poll))
	case events.TallyUpdated:
		return broadcast(EventPollResults, ev.Tally)
	case events.PollClosed:
		return broadcast(EventPollClosed, PollClosedPayload{PollID: ev.Poll.ID})
	case events.ParticipantKicked:
		if ev.ConnID == "" {
			return nil
		}
		return []Outbound{{Target: One(ev.ConnID), Message: NewMessage(EventKicked, KickedPayload{Name: ev.Name})}}
	case events.ChatPosted:
		return broadcast(EventChatMessage, ev.Message)
	default:
		return nil
	}
}

// RouteAll routes a batch of events, keeping their order.
func RouteAll(list []events.Event) []Outbound {
	var out []Outbound
	for _, e := range list {
		out = append(out, Route(e)...)
	}
	return out
}

func broadcast(event string, payload any) []Outbound {
	return []Outbound{{Target: All(), Message: NewMessage(event, payload)}}
}
