// Package worker runs background jobs. The archive processor exports closed polls
// to object storage.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/livepoll/internal/models"
	"github.com/aura-webinar/livepoll/pkg/queue"
	"github.com/aura-webinar/livepoll/pkg/storage"
)

// ErrPollNotClosed is returned for an archive job whose poll is still active.
var ErrPollNotClosed = errors.New("poll is not closed")

// PollLoader reads polls from the shared store.
type PollLoader interface {
	LoadPollByID(ctx context.Context, id uuid.UUID) (*models.Poll, error)
}

// Uploader writes an object to the archive bucket.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
}

// JobQueue is the subset of queue.Queue the processor uses.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// ArchiveDocument is the JSON written for each closed poll.
type ArchiveDocument struct {
	Poll       *models.Poll `json:"poll"`
	Tally      models.Tally `json:"tally"`
	ArchivedAt time.Time    `json:"archivedAt"`
}

// ArchiveProcessor processes poll archive jobs: load the poll, upload it as JSON.
type ArchiveProcessor struct {
	polls   PollLoader
	s3      Uploader
	queue   JobQueue
	logger  *zap.Logger
	now     func() time.Time
	backoff time.Duration
}

// NewArchiveProcessor creates a poll archive processor.
func NewArchiveProcessor(polls PollLoader, s3 Uploader, q JobQueue, logger *zap.Logger) *ArchiveProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveProcessor{polls: polls, s3: s3, queue: q, logger: logger, now: time.Now, backoff: queue.RetryBackoff}
}

// Process executes one archive job.
func (p *ArchiveProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypePollArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	poll, err := p.polls.LoadPollByID(ctx, payload.PollID)
	if err != nil {
		return fmt.Errorf("load poll %s: %w", payload.PollID, err)
	}
	if poll == nil {
		return fmt.Errorf("%w: %s", models.ErrPollNotFound, payload.PollID)
	}
	if poll.IsActive() {
		return fmt.Errorf("%w: %s", ErrPollNotClosed, payload.PollID)
	}

	body, err := json.MarshalIndent(ArchiveDocument{Poll: poll, Tally: poll.Tally(), ArchivedAt: p.now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal archive: %w", err)
	}
	closedAt := poll.CreatedAt
	if poll.ClosedAt != nil {
		closedAt = *poll.ClosedAt
	}
	key := storage.ArchiveKey(poll.ID.String(), closedAt)
	url, err := p.s3.Upload(ctx, key, "application/json", bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	p.logger.Info("poll archived", zap.String("poll_id", poll.ID.String()), zap.String("s3_key", key), zap.String("url", url))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ArchiveProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("archive worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *ArchiveProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
