package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/livepoll/internal/events"
	"github.com/aura-webinar/livepoll/internal/models"
)

func TestRoute_PollCreatedOmitsResponses(t *testing.T) {
	created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	p := &models.Poll{
		ID:        uuid.New(),
		Question:  "Q",
		Options:   []string{"A", "B"},
		TimeLimit: 30,
		Status:    models.PollActive,
		Responses: []models.Response{{ParticipantName: "alice", Option: "A"}},
		CreatedAt: created,
	}
	out := Route(events.PollCreated{Poll: p})
	require.Len(t, out, 1)
	assert.True(t, out[0].Target.IsBroadcast())
	assert.Equal(t, EventNewPoll, out[0].Message.Event)

	var body map[string]any
	require.NoError(t, json.Unmarshal(out[0].Message.Data, &body))
	assert.NotContains(t, body, "responses")
	assert.Equal(t, float64(30), body["maxTime"])
	assert.Equal(t, created.Add(30*time.Second).Format(time.RFC3339), body["deadline"])
}

func TestRoute_KickIsDirected(t *testing.T) {
	out := Route(events.ParticipantKicked{Name: "alice", ConnID: "c1"})
	require.Len(t, out, 1)
	assert.Equal(t, One("c1"), out[0].Target)
	assert.False(t, out[0].Target.IsBroadcast())
	assert.Equal(t, EventKicked, out[0].Message.Event)
	assert.JSONEq(t, `{"name":"alice"}`, string(out[0].Message.Data))
}

func TestRoute_Mapping(t *testing.T) {
	pollID := uuid.New()
	tests := []struct {
		name  string
		in    events.Event
		event string
		data  string
	}{
		{"roster", events.RosterChanged{Names: []string{"alice", "bob"}}, EventRosterUpdated, `{"names":["alice","bob"]}`},
		{"empty roster", events.RosterChanged{}, EventRosterUpdated, `{"names":[]}`},
		{"tally", events.TallyUpdated{Tally: models.Tally{PollID: pollID, Counts: []models.OptionCount{{Option: "A", Count: 2}}, Total: 2}},
			EventPollResults, `{"pollId":"` + pollID.String() + `","results":[{"option":"A","count":2}],"total":2}`},
		{"closed", events.PollClosed{Poll: &models.Poll{ID: pollID}}, EventPollClosed, `{"pollId":"` + pollID.String() + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Route(tt.in)
			require.Len(t, out, 1)
			assert.True(t, out[0].Target.IsBroadcast())
			assert.Equal(t, tt.event, out[0].Message.Event)
			assert.JSONEq(t, tt.data, string(out[0].Message.Data))
		})
	}
}

func TestRouteAll_KeepsOrder(t *testing.T) {
	p := &models.Poll{ID: uuid.New(), Options: []string{"A", "B"}}
	out := RouteAll([]events.Event{
		events.TallyUpdated{Tally: p.Tally()},
		events.PollClosed{Poll: p},
		events.ParticipantKicked{Name: "x", ConnID: "c9"},
		events.RosterChanged{Names: []string{}},
	})
	require.Len(t, out, 4)
	got := make([]string, len(out))
	for i, o := range out {
		got[i] = o.Message.Event
	}
	assert.Equal(t, []string{EventPollResults, EventPollClosed, EventKicked, EventRosterUpdated}, got)
}
