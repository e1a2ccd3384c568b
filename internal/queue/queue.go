// Package queue runs extractions as background jobs on Redis through asynq.
// The HTTP service enqueues documents; workers extract them, publish page
// progress on a Redis channel and keep the result on the task.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TypeExtract is the asynq task type for document extraction.
const TypeExtract = "statement:extract"

// Config configures the queue client and worker.
type Config struct {
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `json:"-" yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db" mapstructure:"redis_db"`

	Queue       string `json:"queue" yaml:"queue" mapstructure:"queue"`
	Concurrency int    `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetry    int    `json:"max_retry" yaml:"max_retry" mapstructure:"max_retry"`
	// Timeout bounds one extraction attempt.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	// Retention keeps completed tasks, and their results, for this long.
	Retention time.Duration `json:"retention" yaml:"retention" mapstructure:"retention"`
	// ProgressPrefix prefixes the Redis channel carrying page progress.
	ProgressPrefix string `json:"progress_prefix" yaml:"progress_prefix" mapstructure:"progress_prefix"`
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		Queue:          "statements",
		Concurrency:    4,
		MaxRetry:       3,
		Timeout:        10 * time.Minute,
		Retention:      24 * time.Hour,
		ProgressPrefix: "stmtgrid:progress",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.RedisAddr == "" {
		return errors.New("redis address is required")
	}
	if c.Queue == "" {
		return errors.New("queue name is required")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.MaxRetry < 0 {
		return fmt.Errorf("max retry must be non-negative, got %d", c.MaxRetry)
	}
	return nil
}

// RedisOpt returns the asynq connection options.
func (c Config) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// Payload is the body of an extraction task.
type Payload struct {
	JobID    string `json:"job_id"`
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"data"`
}

// NewExtractTask builds an extraction task for p.
func NewExtractTask(p Payload) (*asynq.Task, error) {
	if p.JobID == "" {
		return nil, errors.New("job ID is required")
	}
	if len(p.Data) == 0 {
		return nil, errors.New("document is empty")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return asynq.NewTask(TypeExtract, body), nil
}

// Channel returns the progress channel name for a job.
func Channel(prefix, jobID string) string {
	return prefix + ":" + jobID
}
