package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/stmtgrid/internal/config"
	"github.com/MeKo-Tech/stmtgrid/internal/queue"
	"github.com/MeKo-Tech/stmtgrid/internal/storage"
)

// workerCmd runs queued extraction jobs.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued extraction jobs",
	Long: `Run a worker that takes extraction jobs from the Redis queue filled by
"stmtgrid serve --jobs". Page progress is published on Redis; when a database
URL is configured, every processed document is stored in PostgreSQL.

Examples:
  stmtgrid worker
  stmtgrid worker --concurrency 8 --redis-addr redis:6379
  stmtgrid worker --database-url postgres://stmtgrid@db/stmtgrid`,
	SilenceUsage: true,
	RunE:         runWorkerCommand,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().String("redis-addr", "localhost:6379", "Redis address")
	workerCmd.Flags().Int("concurrency", 4, "number of jobs processed at once")
	workerCmd.Flags().String("database-url", "", "PostgreSQL URL for storing results")
	workerCmd.Flags().Bool("migrate", true, "create the database schema at startup")
}

// applyWorkerFlags overrides cfg with the flags set on cmd.
func applyWorkerFlags(cfg *config.Config, cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("redis-addr") {
		cfg.Queue.RedisAddr, _ = flags.GetString("redis-addr")
	}
	if flags.Changed("concurrency") {
		cfg.Queue.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("database-url") {
		cfg.Storage.DatabaseURL, _ = flags.GetString("database-url")
	}
}

// newRedisClient connects the progress publisher to the queue's Redis.
func newRedisClient(cfg queue.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// openStore returns nil when storage is not configured.
func openStore(ctx context.Context, cfg storage.Config, migrate bool, logger *slog.Logger) (*storage.PostgresStore, error) {
	if !cfg.Enabled() {
		logger.Info("result storage disabled")
		return nil, nil
	}
	store, err := storage.NewPostgresStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if migrate {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return store, nil
}

func runWorkerCommand(cmd *cobra.Command, args []string) error {
	cfg := *GetConfig()
	applyWorkerFlags(&cfg, cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := slog.Default()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	svc, cleanup, err := serviceFactory(&cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	migrate, _ := cmd.Flags().GetBool("migrate")
	pg, err := openStore(ctx, cfg.ToStorageConfig(), migrate, logger)
	if err != nil {
		return err
	}
	// A nil *PostgresStore must not reach the interface.
	var store queue.Store
	if pg != nil {
		defer func() { _ = pg.Close() }()
		store = pg
	}

	queueConfig := cfg.ToQueueConfig()
	rdb := newRedisClient(queueConfig)
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis at %s: %w", queueConfig.RedisAddr, err)
	}

	handler := queue.NewHandler(svc, store, rdb, queueConfig.ProgressPrefix, logger)
	worker, err := queue.NewWorker(queueConfig, handler, logger)
	if err != nil {
		return err
	}
	return worker.Run(ctx)
}
