package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/MeKo-Tech/stmtgrid/internal/metrics"
)

// ErrJobNotFound is returned for unknown or expired job IDs.
var ErrJobNotFound = errors.New("job not found")

// JobStatus is the state of an enqueued extraction.
type JobStatus struct {
	ID          string          `json:"id"`
	State       string          `json:"state"`
	Retried     int             `json:"retried"`
	MaxRetry    int             `json:"max_retry"`
	LastError   string          `json:"last_error,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// Client enqueues extraction jobs and reports their state.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	config    Config
}

// NewClient connects to Redis.
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid queue config: %w", err)
	}
	opt := config.RedisOpt()
	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		config:    config,
	}, nil
}

// Enqueue submits a document and returns its job ID.
func (c *Client) Enqueue(ctx context.Context, filename string, data []byte) (string, error) {
	jobID := uuid.NewString()
	task, err := NewExtractTask(Payload{JobID: jobID, Filename: filename, Data: data})
	if err != nil {
		return "", err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.TaskID(jobID),
		asynq.Queue(c.config.Queue),
		asynq.MaxRetry(c.config.MaxRetry),
		asynq.Timeout(c.config.Timeout),
		asynq.Retention(c.config.Retention),
	)
	if err != nil {
		metrics.QueueJobsTotal.WithLabelValues("enqueue_failed").Inc()
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	metrics.QueueJobsTotal.WithLabelValues("enqueued").Inc()
	return jobID, nil
}

// Status returns the state of a job, with its result once completed.
func (c *Client) Status(_ context.Context, jobID string) (*JobStatus, error) {
	info, err := c.inspector.GetTaskInfo(c.config.Queue, jobID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to inspect job %s: %w", jobID, err)
	}

	st := &JobStatus{
		ID:        info.ID,
		State:     info.State.String(),
		Retried:   info.Retried,
		MaxRetry:  info.MaxRetry,
		LastError: info.LastErr,
	}
	if !info.CompletedAt.IsZero() {
		t := info.CompletedAt
		st.CompletedAt = &t
	}
	if len(info.Result) > 0 {
		st.Result = json.RawMessage(info.Result)
	}
	return st, nil
}

// Close closes the Redis connections.
func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}
