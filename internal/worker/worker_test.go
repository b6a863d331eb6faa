package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aura-webinar/livepoll/internal/models"
	"github.com/aura-webinar/livepoll/internal/store"
	"github.com/aura-webinar/livepoll/pkg/queue"
)

type upload struct {
	key         string
	contentType string
	body        []byte
}

type fakeUploader struct {
	uploads []upload
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, key, contentType string, body io.Reader, _ int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.uploads = append(f.uploads, upload{key: key, contentType: contentType, body: b})
	return "https://bucket/" + key, nil
}

// chanQueue hands out queued jobs and records retries.
type chanQueue struct {
	mu      sync.Mutex
	jobs    chan *queue.Job
	retried []*queue.Job
}

func (q *chanQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case j := <-q.jobs:
		return j, nil
	}
}

func (q *chanQueue) Retry(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Attempt++
	q.retried = append(q.retried, job)
	return nil
}

func (q *chanQueue) retries() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.retried)
}

var closedAt = time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)

func closedPoll(t *testing.T, s *store.Memory) *models.Poll {
	t.Helper()
	p := &models.Poll{
		ID:        uuid.New(),
		Question:  "Q",
		Options:   []string{"A", "B"},
		TimeLimit: 30,
		Status:    models.PollActive,
		CreatedAt: closedAt.Add(-time.Minute),
	}
	p.Upsert("alice", "A", closedAt.Add(-time.Second))
	p.Close(closedAt)
	require.NoError(t, s.SavePoll(context.Background(), p))
	return p
}

func archiveJob(t *testing.T, id uuid.UUID) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(queue.JobTypePollArchive, queue.ArchivePayload{PollID: id, ClosedAt: closedAt})
	require.NoError(t, err)
	return job
}

func TestProcess_UploadsArchive(t *testing.T) {
	s := store.NewMemory()
	p := closedPoll(t, s)
	up := &fakeUploader{}
	proc := NewArchiveProcessor(s, up, nil, zaptest.NewLogger(t))

	require.NoError(t, proc.Process(context.Background(), archiveJob(t, p.ID)))
	require.Len(t, up.uploads, 1)
	assert.Equal(t, "polls/2026/03/02/"+p.ID.String()+".json", up.uploads[0].key)
	assert.Equal(t, "application/json", up.uploads[0].contentType)

	var doc ArchiveDocument
	require.NoError(t, json.Unmarshal(up.uploads[0].body, &doc))
	assert.Equal(t, p.ID, doc.Poll.ID)
	assert.Equal(t, 1, doc.Tally.Count("A"))
}

func TestProcess_Rejects(t *testing.T) {
	s := store.NewMemory()
	active := &models.Poll{ID: uuid.New(), Question: "Q", Options: []string{"A", "B"}, Status: models.PollActive, CreatedAt: closedAt}
	require.NoError(t, s.SavePoll(context.Background(), active))
	proc := NewArchiveProcessor(s, &fakeUploader{}, nil, zaptest.NewLogger(t))

	err := proc.Process(context.Background(), archiveJob(t, uuid.New()))
	assert.ErrorIs(t, err, models.ErrPollNotFound)

	err = proc.Process(context.Background(), archiveJob(t, active.ID))
	assert.ErrorIs(t, err, ErrPollNotClosed)

	err = proc.Process(context.Background(), &queue.Job{Type: "email"})
	assert.Error(t, err)
}

func TestRun_RetriesFailedJobs(t *testing.T) {
	s := store.NewMemory()
	p := closedPoll(t, s)
	q := &chanQueue{jobs: make(chan *queue.Job, 1)}
	proc := NewArchiveProcessor(s, &fakeUploader{err: errors.New("s3 unavailable")}, q, zaptest.NewLogger(t))
	proc.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		proc.Run(ctx)
		close(done)
	}()

	q.jobs <- archiveJob(t, p.ID)
	require.Eventually(t, func() bool { return q.retries() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, 1, q.retried[0].Attempt)
}
