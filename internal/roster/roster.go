// Package roster tracks the connected, named participants of the class session.
package roster

import (
	"strings"
	"time"

	"github.com/aura-webinar/livepoll/internal/events"
	"github.com/aura-webinar/livepoll/internal/models"
)

// Roster maps display names to connections. It is not safe for concurrent use;
// the classroom session serializes access.
type Roster struct {
	byName map[string]*models.Participant
	byConn map[string]string // connID -> name
	order  []string
	sink   events.Sink
	now    func() time.Time
}

// New creates an empty roster that reports changes to sink.
func New(sink events.Sink) *Roster {
	return &Roster{
		byName: make(map[string]*models.Participant),
		byConn: make(map[string]string),
		sink:   sink,
		now:    time.Now,
	}
}

// Register binds name to connID. Names are compared exactly as submitted.
// A connection that already holds a name gives it up for the new one.
func (r *Roster) Register(name, connID string) (*models.Participant, error) {
	if strings.TrimSpace(name) == "" {
		return nil, models.ErrEmptyName
	}
	if _, taken := r.byName[name]; taken {
		return nil, models.ErrNameTaken
	}
	if prev, ok := r.byConn[connID]; ok {
		r.drop(prev)
	}

	p := &models.Participant{Name: name, ConnID: connID, JoinedAt: r.now()}
	r.byName[name] = p
	r.byConn[connID] = name
	r.order = append(r.order, name)
	r.emitChanged()
	return p, nil
}

// Remove drops whoever is bound to connID. Safe to call for unknown connections.
func (r *Roster) Remove(connID string) {
	name, ok := r.byConn[connID]
	if !ok {
		return
	}
	r.drop(name)
	r.emitChanged()
}

// Kick removes the named participant and notifies its connection.
// Returns false without emitting anything when the name is not registered.
func (r *Roster) Kick(name string) bool {
	p, ok := r.byName[name]
	if !ok {
		return false
	}
	connID := p.ConnID
	r.drop(name)
	r.sink.Emit(events.ParticipantKicked{Name: name, ConnID: connID})
	r.emitChanged()
	return true
}

// Count returns the number of registered participants.
func (r *Roster) Count() int {
	return len(r.order)
}

// Names returns the registered names in registration order.
func (r *Roster) Names() []string {
	return append([]string{}, r.order...)
}

// NameOf returns the name bound to connID.
func (r *Roster) NameOf(connID string) (string, bool) {
	name, ok := r.byConn[connID]
	return name, ok
}

func (r *Roster) drop(name string) {
	p, ok := r.byName[name]
	if !ok {
		return
	}
	delete(r.byName, name)
	delete(r.byConn, p.ConnID)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Roster) emitChanged() {
	r.sink.Emit(events.RosterChanged{Names: r.Names()})
}
