package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/livepoll/internal/models"
)

func msg(event, data string) WSMessage {
	m := WSMessage{Event: event}
	if data != "" {
		m.Data = json.RawMessage(data)
	}
	return m
}

func TestParseRequest_Variants(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name string
		in   WSMessage
		want Request
	}{
		{"register object", msg(EventRegister, `{"name":"alice"}`), RegisterRequest{Name: "alice"}},
		{"register bare string", msg(EventRegister, `"bob"`), RegisterRequest{Name: "bob"}},
		{"create poll", msg(EventCreatePoll, `{"question":"Q","options":["A","B"],"maxTime":30}`),
			CreatePollRequest{Question: "Q", Options: []string{"A", "B"}, MaxTime: 30}},
		{"submit", msg(EventSubmitAnswer, `{"studentId":"alice","answer":"A"}`),
			SubmitAnswerRequest{StudentID: "alice", Answer: "A"}},
		{"close", msg(EventClosePoll, ""), ClosePollRequest{}},
		{"active poll", msg(EventGetActivePoll, ""), GetActivePollRequest{}},
		{"responses", msg(EventGetPollResponses, fmt.Sprintf(`{"pollId":%q}`, id)), GetPollResponsesRequest{PollID: id}},
		{"past polls default", msg(EventGetPastPolls, ""), GetPastPollsRequest{}},
		{"past polls limit", msg(EventGetPastPolls, `{"limit":3}`), GetPastPollsRequest{Limit: 3}},
		{"kick", msg(EventKickStudent, `{"name":"alice"}`), KickStudentRequest{Name: "alice"}},
		{"send message", msg(EventSendMessage, `{"sender":"alice","content":"hi"}`),
			SendMessageRequest{Sender: "alice", Content: "hi"}},
		{"get messages", msg(EventGetMessages, "null"), GetMessagesRequest{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRequest(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in.Event, got.Event())
		})
	}
}

func TestParseRequest_MalformedMapsToValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		in   WSMessage
		want error
		code string
	}{
		{"poll options not a list", msg(EventCreatePoll, `{"question":"Q","options":"A,B"}`), models.ErrInvalidPoll, CodeInvalidPoll},
		{"poll missing payload", msg(EventCreatePoll, ""), models.ErrInvalidPoll, CodeInvalidPoll},
		{"answer wrong type", msg(EventSubmitAnswer, `{"studentId":"a","answer":3}`), models.ErrInvalidOption, CodeInvalidOption},
		{"register number", msg(EventRegister, `42`), models.ErrEmptyName, CodeEmptyName},
		{"kick missing", msg(EventKickStudent, ""), models.ErrEmptyName, CodeEmptyName},
		{"bad poll id", msg(EventGetPollResponses, `{"pollId":"nope"}`), ErrMalformed, CodeInvalidMessage},
		{"missing poll id", msg(EventGetPollResponses, `{}`), ErrMalformed, CodeInvalidMessage},
		{"unknown event", msg("launch_rocket", `{}`), models.ErrUnknownEvent, CodeInvalidMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest(tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.code, ErrorCode(err))
		})
	}
}

func TestErrorCode(t *testing.T) {
	wrapped := fmt.Errorf("create poll: %w: %w", models.ErrPersistenceUnavailable, errors.New("disk full"))
	assert.Equal(t, CodePersistenceUnavailable, ErrorCode(wrapped))
	assert.Equal(t, CodeNameTaken, ErrorCode(models.ErrNameTaken))
	assert.Equal(t, CodePollAlreadyActive, ErrorCode(models.ErrPollAlreadyActive))
	assert.Equal(t, CodeNoActivePoll, ErrorCode(models.ErrNoActivePoll))
	assert.Equal(t, CodeEmptyName, ErrorCode(fmt.Errorf("%w: connection is registered as %q", models.ErrNotRegistered, "bob")))
	assert.Equal(t, CodeInvalidMessage, ErrorCode(models.ErrMessageTooLong))
	assert.Equal(t, CodeInternal, ErrorCode(errors.New("boom")))
}

func TestNewErrorMessage_HidesInternalDetail(t *testing.T) {
	m := NewErrorMessage(EventCreatePoll, errors.New("pq: secret table"))
	require.Equal(t, EventError, m.Event)

	var p ErrorPayload
	require.NoError(t, json.Unmarshal(m.Data, &p))
	assert.Equal(t, CodeInternal, p.Code)
	assert.Equal(t, "internal error", p.Message)
	assert.Equal(t, EventCreatePoll, p.Event)
}
