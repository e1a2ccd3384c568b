package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/metrics"
	"github.com/MeKo-Tech/stmtgrid/internal/progress"
	"github.com/MeKo-Tech/stmtgrid/internal/storage"
)

// Extractor extracts a document held in memory. *extract.Service implements it.
type Extractor interface {
	ProcessBytes(ctx context.Context, data []byte, cb progress.Callback) (*extract.Result, error)
}

// Store persists processed documents. *storage.PostgresStore implements it.
type Store interface {
	Save(ctx context.Context, rec storage.Record) error
}

// Handler processes extraction tasks.
type Handler struct {
	extractor Extractor
	store     Store
	rdb       redis.UniversalClient
	prefix    string
	logger    *slog.Logger
}

// NewHandler creates a task handler. store and rdb are optional: without a
// store results live only on the task, without rdb no progress is published.
func NewHandler(ex Extractor, store Store, rdb redis.UniversalClient, prefix string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{extractor: ex, store: store, rdb: rdb, prefix: prefix, logger: logger}
}

// ProcessTask implements asynq.Handler. Documents that can never succeed are
// failed without retry.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		metrics.QueueJobsTotal.WithLabelValues("invalid_payload").Inc()
		return fmt.Errorf("failed to decode payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := h.logger.With("job_id", p.JobID, "filename", p.Filename)

	var cb progress.Callback = progress.NoOp{}
	if h.rdb != nil {
		cb = NewRedisProgress(h.rdb, h.prefix, p.JobID, logger)
	}

	start := time.Now()
	res, err := h.extractor.ProcessBytes(ctx, p.Data, cb)
	duration := time.Since(start)

	h.save(ctx, logger, storage.Record{
		ID:       p.JobID,
		JobID:    p.JobID,
		Filename: p.Filename,
		Result:   res,
		Err:      err,
		Duration: duration,
	})

	if err != nil {
		code := extract.Code(err)
		if extract.IsPermanent(err) {
			metrics.QueueJobsTotal.WithLabelValues("rejected").Inc()
			logger.Warn("job rejected", "code", code, "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		metrics.QueueJobsTotal.WithLabelValues("failed").Inc()
		logger.Error("job failed", "code", code, "error", err, "duration", duration)
		return err
	}

	if rw := t.ResultWriter(); rw != nil {
		body, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		if _, err := rw.Write(body); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}

	metrics.QueueJobsTotal.WithLabelValues("completed").Inc()
	logger.Info("job completed", "path", res.Path, "pages", res.Pages,
		"rows", len(res.StructuredRows), "duration", duration)
	return nil
}

func (h *Handler) save(ctx context.Context, logger *slog.Logger, rec storage.Record) {
	if h.store == nil {
		return
	}
	if err := h.store.Save(ctx, rec); err != nil {
		logger.Error("failed to persist document", "error", err)
	}
}

// Worker runs the asynq server.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	config Config
	logger *slog.Logger
}

// NewWorker creates a worker that routes extraction tasks to h.
func NewWorker(config Config, h *Handler, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid queue config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	server := asynq.NewServer(config.RedisOpt(), asynq.Config{
		Concurrency: config.Concurrency,
		Queues:      map[string]int{config.Queue: 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			delay := time.Duration(5*(1<<uint(n))) * time.Second //nolint:gosec // n is the retry count
			if delay > time.Minute {
				delay = time.Minute
			}
			return delay
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error("task failed", "type", task.Type(), "error", err)
		}),
		Logger: slogAdapter{logger: logger.With("component", "asynq")},
	})

	mux := asynq.NewServeMux()
	mux.Handle(TypeExtract, h)

	return &Worker{server: server, mux: mux, config: config, logger: logger}, nil
}

// Run processes tasks until ctx ends, then shuts down gracefully.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("starting worker", "queue", w.config.Queue, "concurrency", w.config.Concurrency)
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	<-ctx.Done()
	w.logger.Info("stopping worker")
	w.server.Shutdown()
	return nil
}

// slogAdapter implements asynq.Logger on slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Debug(args ...interface{}) { a.logger.Debug(fmt.Sprint(args...)) }
func (a slogAdapter) Info(args ...interface{})  { a.logger.Info(fmt.Sprint(args...)) }
func (a slogAdapter) Warn(args ...interface{})  { a.logger.Warn(fmt.Sprint(args...)) }
func (a slogAdapter) Error(args ...interface{}) { a.logger.Error(fmt.Sprint(args...)) }
func (a slogAdapter) Fatal(args ...interface{}) { a.logger.Error(fmt.Sprint(args...)) }
