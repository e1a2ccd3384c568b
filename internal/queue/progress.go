package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// publishTimeout bounds a single progress publish.
const publishTimeout = 2 * time.Second

// ProgressMessage is published on a job's progress channel.
type ProgressMessage struct {
	JobID string `json:"job_id"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

// RedisProgress publishes page progress for one job. It implements
// progress.Callback; publish failures are logged and otherwise ignored.
type RedisProgress struct {
	rdb     redis.UniversalClient
	channel string
	jobID   string
	logger  *slog.Logger
}

// NewRedisProgress returns a publisher for jobID.
func NewRedisProgress(rdb redis.UniversalClient, prefix, jobID string, logger *slog.Logger) *RedisProgress {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisProgress{
		rdb:     rdb,
		channel: Channel(prefix, jobID),
		jobID:   jobID,
		logger:  logger,
	}
}

func (p *RedisProgress) OnProgress(done, total int) {
	msg, err := json.Marshal(ProgressMessage{JobID: p.jobID, Done: done, Total: total})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.rdb.Publish(ctx, p.channel, msg).Err(); err != nil {
		p.logger.Warn("progress publish failed", "job_id", p.jobID, "channel", p.channel, "error", err)
	}
}

// Subscribe listens on a job's progress channel until ctx ends. Messages that
// do not decode are skipped.
func Subscribe(ctx context.Context, rdb redis.UniversalClient, prefix, jobID string) <-chan ProgressMessage {
	out := make(chan ProgressMessage)
	sub := rdb.Subscribe(ctx, Channel(prefix, jobID))

	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var pm ProgressMessage
				if err := json.Unmarshal([]byte(m.Payload), &pm); err != nil {
					continue
				}
				select {
				case out <- pm:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
