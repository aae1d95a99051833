package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/farmassist/internal/cache"
)

func newStore(t *testing.T) (*JobStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "jobs")
	return NewJobStore(c, time.Hour), mr
}

func TestJobStoreUnknownIsPending(t *testing.T) {
	store, _ := newStore(t)

	rec, err := store.Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, &JobRecord{ID: "abc", Status: JobPending}, rec)
}

func TestJobStoreRoundTripAndExpiry(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, JobRecord{ID: "j1", Status: JobCompleted, Transcription: "hello"}))
	assert.True(t, mr.Exists("jobs:j1"))

	rec, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, rec.Status)
	assert.Equal(t, "hello", rec.Transcription)

	mr.FastForward(2 * time.Hour)
	rec, err = store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, JobPending, rec.Status)
}
