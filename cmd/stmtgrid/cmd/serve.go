package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/stmtgrid/internal/config"
	"github.com/MeKo-Tech/stmtgrid/internal/queue"
	"github.com/MeKo-Tech/stmtgrid/internal/server"
	"github.com/MeKo-Tech/stmtgrid/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the extraction API",
	Long: `Start an HTTP server that extracts uploaded statements.

The server provides the following endpoints:
  POST /v1/extract    - Extract an uploaded PDF (multipart field "document" or raw body)
  POST /v1/jobs       - Queue a PDF for a worker (requires --jobs)
  GET  /v1/jobs/{id}  - Job state and result
  GET  /v1/ws         - WebSocket extraction with page progress
  GET  /health        - Health check endpoint
  GET  /metrics       - Prometheus metrics

Examples:
  stmtgrid serve
  stmtgrid serve --port 8080
  stmtgrid serve --host 0.0.0.0 --jobs --redis-addr redis:6379`,
	SilenceUsage: true,
	RunE:         runServeCommand,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "allowed CORS origin")
	serveCmd.Flags().Int64("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 120, "extraction timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "graceful shutdown timeout in seconds")
	serveCmd.Flags().Bool("rate-limit", false, "enable per-client rate limiting")
	serveCmd.Flags().Int("rate-limit-requests-per-minute", 60, "requests per minute per client")
	serveCmd.Flags().Int("rate-limit-requests-per-hour", 1000, "requests per hour per client")
	serveCmd.Flags().Int("rate-limit-max-requests-per-day", 5000, "requests per day per client")
	serveCmd.Flags().Int64("rate-limit-max-data-per-day", 500, "uploaded MB per day per client")
	serveCmd.Flags().Bool("jobs", false, "enable the /v1/jobs endpoints backed by Redis")
	serveCmd.Flags().String("redis-addr", "localhost:6379", "Redis address for the job queue")
}

// applyServeFlags overrides cfg with the flags set on cmd.
func applyServeFlags(cfg *config.Config, cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-upload-size") {
		cfg.Server.MaxUploadMB, _ = flags.GetInt64("max-upload-size")
	}
	if flags.Changed("timeout") {
		cfg.Server.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}

	rl := &cfg.Server.RateLimit
	if flags.Changed("rate-limit") {
		rl.Enabled, _ = flags.GetBool("rate-limit")
	}
	if flags.Changed("rate-limit-requests-per-minute") {
		rl.RequestsPerMinute, _ = flags.GetInt("rate-limit-requests-per-minute")
	}
	if flags.Changed("rate-limit-requests-per-hour") {
		rl.RequestsPerHour, _ = flags.GetInt("rate-limit-requests-per-hour")
	}
	if flags.Changed("rate-limit-max-requests-per-day") {
		rl.MaxRequestsPerDay, _ = flags.GetInt("rate-limit-max-requests-per-day")
	}
	if flags.Changed("rate-limit-max-data-per-day") {
		rl.MaxDataPerDayMB, _ = flags.GetInt64("rate-limit-max-data-per-day")
	}

	if flags.Changed("redis-addr") {
		cfg.Queue.RedisAddr, _ = flags.GetString("redis-addr")
	}
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	cfg := *GetConfig()
	applyServeFlags(&cfg, cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := slog.Default()

	svc, cleanup, err := serviceFactory(&cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// A nil *queue.Client must not reach the interface.
	var jobs server.JobQueue
	if enabled, _ := cmd.Flags().GetBool("jobs"); enabled {
		client, err := queue.NewClient(cfg.ToQueueConfig())
		if err != nil {
			return fmt.Errorf("failed to create queue client: %w", err)
		}
		defer func() { _ = client.Close() }()
		jobs = client
		logger.Info("job queue enabled", "redis", cfg.Queue.RedisAddr, "queue", cfg.Queue.Queue)
	}

	serverConfig := cfg.ToServerConfig(version.Version)
	srv := server.NewServer(serverConfig, svc, jobs, logger)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return srv.ListenAndServe(ctx, serverConfig)
}
