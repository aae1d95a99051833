package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/farmassist/internal/config"
)

// Enqueuer is what the API needs from the queue.
type Enqueuer interface {
	EnqueueTranscription(ctx context.Context, payload TranscribeAudioPayload) error
}

type Client struct {
	client  *asynq.Client
	timeout time.Duration
}

func NewClient(cfg config.RedisConfig, jobTimeout time.Duration) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		timeout: jobTimeout,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueTranscription schedules a staged upload. Jobs run at most once.
func (c *Client) EnqueueTranscription(ctx context.Context, payload TranscribeAudioPayload) error {
	return c.enqueue(ctx, TypeTranscribeAudio, payload,
		asynq.TaskID(payload.WorkspaceID),
		asynq.MaxRetry(0),
		asynq.Timeout(c.timeout),
	)
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
