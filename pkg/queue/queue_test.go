package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	payload := ArchivePayload{PollID: uuid.New(), ClosedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	job, err := NewJob(JobTypePollArchive, payload)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobTypePollArchive, job.Type)
	assert.Zero(t, job.Attempt)

	var got ArchivePayload
	require.NoError(t, json.Unmarshal(job.Payload, &got))
	assert.Equal(t, payload.PollID, got.PollID)
	assert.True(t, payload.ClosedAt.Equal(got.ClosedAt))
}

func TestNewJob_UnencodablePayload(t *testing.T) {
	_, err := NewJob(JobTypePollArchive, make(chan int))
	assert.Error(t, err)
}
