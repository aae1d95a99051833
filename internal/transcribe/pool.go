package transcribe

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/nikhilbhutani/farmassist/internal/metrics"
)

// Pool bounds how many blocking recognizer invocations run at once. Work
// runs on its own goroutine and the caller waits for it to return.
type Pool struct {
	sem *semaphore.Weighted
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Do runs fn once a slot is free. It returns ctx's error if ctx ends while
// waiting for a slot. Once started, fn is awaited even if ctx is cancelled,
// so callers may rely on fn having finished with any files it was using.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recognizer worker panicked", "panic", r)
				done <- &UnexpectedError{Err: fmt.Errorf("panic: %v", r)}
			}
		}()

		metrics.DefaultMetrics.RecognizerInFlight.Inc()
		defer metrics.DefaultMetrics.RecognizerInFlight.Dec()

		done <- fn(ctx)
	}()

	return <-done
}
