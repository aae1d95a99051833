package queue

import (
	"context"
	"errors"
	"time"

	"github.com/nikhilbhutani/farmassist/internal/cache"
)

const (
	JobPending   = "pending"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// JobRecord is the stored outcome of an asynchronous transcription.
type JobRecord struct {
	ID            string     `json:"job_id"`
	Status        string     `json:"status"`
	Filename      string     `json:"filename,omitempty"`
	Transcription string     `json:"transcription,omitempty"`
	Error         string     `json:"error,omitempty"`
	Details       string     `json:"details,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// JobStore keeps job records in redis until they expire.
type JobStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewJobStore(c *cache.Cache, ttl time.Duration) *JobStore {
	return &JobStore{cache: c, ttl: ttl}
}

func (s *JobStore) Save(ctx context.Context, rec JobRecord) error {
	return s.cache.Set(ctx, rec.ID, rec, s.ttl)
}

// Get returns the record for id. Unknown ids read as pending since the
// worker may not have picked the job up yet.
func (s *JobStore) Get(ctx context.Context, id string) (*JobRecord, error) {
	var rec JobRecord
	err := s.cache.Get(ctx, id, &rec)
	if errors.Is(err, cache.ErrMiss) {
		return &JobRecord{ID: id, Status: JobPending}, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
