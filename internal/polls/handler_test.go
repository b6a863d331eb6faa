package polls_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/livepoll/internal/models"
	"github.com/aura-webinar/livepoll/internal/polls"
	"github.com/aura-webinar/livepoll/internal/store"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func setup(t *testing.T) (*gin.Engine, *store.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := store.NewMemory()
	h := polls.NewHandler(s)
	r := gin.New()
	r.GET("/api/polls", h.List)
	r.GET("/api/polls/:id", h.GetByID)
	return r, s
}

func seed(t *testing.T, s *store.Memory, n int, status models.PollStatus) []*models.Poll {
	t.Helper()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	var out []*models.Poll
	for i := 0; i < n; i++ {
		p := &models.Poll{
			ID:        uuid.New(),
			Question:  "Q",
			Options:   []string{"A", "B"},
			TimeLimit: 60,
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.SavePoll(context.Background(), p))
		out = append(out, p)
	}
	return out
}

func get(t *testing.T, r *gin.Engine, url string) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	r, s := setup(t)
	seeded := seed(t, s, 3, models.PollClosed)
	seed(t, s, 1, models.PollActive)

	code, body := get(t, r, "/api/polls?status=closed&limit=2")
	require.Equal(t, http.StatusOK, code)
	var data struct {
		Polls []polls.PollView `json:"polls"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	require.Len(t, data.Polls, 2)
	assert.Equal(t, seeded[2].ID, data.Polls[0].ID)
	assert.Equal(t, seeded[1].ID, data.Polls[1].ID)
	assert.Len(t, data.Polls[0].Tally.Counts, 2)
}

func TestList_BadQuery(t *testing.T) {
	r, _ := setup(t)
	code, body := get(t, r, "/api/polls?status=archived")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, body.Success)

	code, _ = get(t, r, "/api/polls?limit=-1")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetByID(t *testing.T) {
	r, s := setup(t)
	p := seed(t, s, 1, models.PollClosed)[0]

	code, body := get(t, r, "/api/polls/"+p.ID.String())
	require.Equal(t, http.StatusOK, code)
	var view polls.PollView
	require.NoError(t, json.Unmarshal(body.Data, &view))
	assert.Equal(t, p.ID, view.ID)
	assert.NotNil(t, view.Responses)

	code, _ = get(t, r, "/api/polls/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, r, "/api/polls/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, code)
}
