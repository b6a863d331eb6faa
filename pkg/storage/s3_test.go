package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestArchiveKey(t *testing.T) {
	closed := time.Date(2026, 3, 2, 23, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	assert.Equal(t, "polls/2026/03/02/abc.json", ArchiveKey("abc", closed))
}

func TestObjectURL(t *testing.T) {
	s := &S3{cfg: S3Config{Region: "eu-west-1", ArchiveBucket: "class-archive"}}
	assert.Equal(t, "https://class-archive.s3.eu-west-1.amazonaws.com/polls/x.json", s.ObjectURL("polls/x.json"))
}
