package roster

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/livepoll/internal/events"
	"github.com/aura-webinar/livepoll/internal/models"
)

func newTestRoster() (*Roster, *events.Recorder) {
	rec := events.NewRecorder()
	return New(rec), rec
}

func TestRegister_RejectsDuplicateName(t *testing.T) {
	r, rec := newTestRoster()

	_, err := r.Register("alice", "c1")
	require.NoError(t, err)
	rec.Drain()

	_, err = r.Register("alice", "c2")
	assert.ErrorIs(t, err, models.ErrNameTaken)
	assert.Equal(t, 1, r.Count())
	assert.Empty(t, rec.Drain(), "rejected registration must not broadcast")
}

func TestRegister_NamesAreCaseSensitive(t *testing.T) {
	r, _ := newTestRoster()

	_, err := r.Register("alice", "c1")
	require.NoError(t, err)
	_, err = r.Register("Alice", "c2")
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "Alice"}, r.Names())
}

func TestRegister_RejectsBlankName(t *testing.T) {
	r, _ := newTestRoster()

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := r.Register(name, "c1")
		assert.ErrorIs(t, err, models.ErrEmptyName, "name %q", name)
	}
	assert.Zero(t, r.Count())
}

func TestRegister_EmitsRosterChanged(t *testing.T) {
	r, rec := newTestRoster()

	_, err := r.Register("alice", "c1")
	require.NoError(t, err)
	_, err = r.Register("bob", "c2")
	require.NoError(t, err)

	got := rec.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, events.RosterChanged{Names: []string{"alice", "bob"}}, got[1])
}

func TestRegister_SameConnectionRebinds(t *testing.T) {
	r, _ := newTestRoster()

	_, err := r.Register("alice", "c1")
	require.NoError(t, err)
	_, err = r.Register("alicia", "c1")
	require.NoError(t, err)

	assert.Equal(t, []string{"alicia"}, r.Names())
	name, ok := r.NameOf("c1")
	assert.True(t, ok)
	assert.Equal(t, "alicia", name)

	// the old name is free again
	_, err = r.Register("alice", "c2")
	assert.NoError(t, err)
}

func TestRemove_Idempotent(t *testing.T) {
	r, rec := newTestRoster()
	_, _ = r.Register("alice", "c1")
	rec.Drain()

	r.Remove("c1")
	r.Remove("c1")
	r.Remove("unknown")

	assert.Zero(t, r.Count())
	got := rec.Drain()
	assert.Len(t, got, 1)
	assert.Equal(t, events.RosterChanged{Names: []string{}}, got[0])
}

func TestKick_AbsentIsNoop(t *testing.T) {
	r, rec := newTestRoster()

	assert.False(t, r.Kick("alice"))
	assert.Empty(t, rec.Drain())
}

func TestKick_NotifiesThenBroadcasts(t *testing.T) {
	r, rec := newTestRoster()
	_, _ = r.Register("alice", "c1")
	_, _ = r.Register("bob", "c2")
	rec.Drain()

	assert.True(t, r.Kick("alice"))

	got := rec.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, events.ParticipantKicked{Name: "alice", ConnID: "c1"}, got[0])
	assert.Equal(t, events.RosterChanged{Names: []string{"bob"}}, got[1])

	_, bound := r.NameOf("c1")
	assert.False(t, bound)
}

func TestRoster_NeverHoldsDuplicateNames(t *testing.T) {
	r, _ := newTestRoster()
	rng := rand.New(rand.NewSource(7))
	names := []string{"alice", "bob", "carol", "dave"}

	for i := 0; i < 500; i++ {
		conn := fmt.Sprintf("c%d", rng.Intn(6))
		switch rng.Intn(3) {
		case 0:
			_, _ = r.Register(names[rng.Intn(len(names))], conn)
		case 1:
			r.Remove(conn)
		case 2:
			r.Kick(names[rng.Intn(len(names))])
		}

		seen := make(map[string]bool)
		for _, n := range r.Names() {
			require.False(t, seen[n], "duplicate name %q after step %d", n, i)
			seen[n] = true
		}
		require.Equal(t, len(r.byName), r.Count())
		require.Equal(t, len(r.byConn), r.Count())
	}
}
