package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/output"
	"github.com/MeKo-Tech/stmtgrid/internal/progress"
	"github.com/MeKo-Tech/stmtgrid/internal/queue"
	"github.com/MeKo-Tech/stmtgrid/internal/table"
)

const jobPollInterval = time.Second

// jobCmd groups the commands talking to the job queue directly.
var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Submit and inspect queued extraction jobs",
	Long: `Submit statements to the Redis job queue and follow them while a
worker processes them.

Examples:
  stmtgrid job submit statement.pdf --watch
  stmtgrid job status 3f1c...
  stmtgrid job rows 3f1c... --format csv`,
}

var jobSubmitCmd = &cobra.Command{
	Use:          "submit <file>",
	Short:        "Queue a statement for extraction",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		client, err := newJobClient(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		id, err := client.Enqueue(cmd.Context(), filepath.Base(args[0]), data)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)

		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			return watchJob(cmd, client, id)
		}
		return nil
	},
}

var jobStatusCmd = &cobra.Command{
	Use:          "status <job-id>",
	Short:        "Print the state of a job as JSON",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newJobClient(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		st, err := client.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeJobStatus(cmd.OutOrStdout(), st)
	},
}

var jobWatchCmd = &cobra.Command{
	Use:          "watch <job-id>",
	Short:        "Follow page progress until a job finishes",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newJobClient(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		return watchJob(cmd, client, args[0])
	},
}

var jobRowsCmd = &cobra.Command{
	Use:          "rows <job-id>",
	Short:        "Print the rows stored for a processed job",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *GetConfig()
		if cmd.Flags().Changed("database-url") {
			cfg.Storage.DatabaseURL, _ = cmd.Flags().GetString("database-url")
		}
		formatName, _ := cmd.Flags().GetString("format")
		format, err := output.ParseFormat(formatName)
		if err != nil {
			return err
		}
		if !cfg.Storage.Enabled() {
			return errors.New("no database configured (set storage.database_url or --database-url)")
		}

		store, err := openStore(cmd.Context(), cfg.ToStorageConfig(), false, slog.Default())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		rows, err := store.Rows(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeRows(cmd.OutOrStdout(), rows, format)
	},
}

func init() {
	rootCmd.AddCommand(jobCmd)
	jobCmd.AddCommand(jobSubmitCmd, jobStatusCmd, jobWatchCmd, jobRowsCmd)

	jobCmd.PersistentFlags().String("redis-addr", "localhost:6379", "Redis address")
	jobSubmitCmd.Flags().Bool("watch", false, "follow the job until it finishes")
	jobRowsCmd.Flags().String("database-url", "", "PostgreSQL URL holding stored results")
	jobRowsCmd.Flags().StringP("format", "f", "text", "output format (text, json, csv, yaml)")
}

// jobQueueConfig returns the queue settings with --redis-addr applied.
func jobQueueConfig(cmd *cobra.Command) queue.Config {
	cfg := GetConfig().ToQueueConfig()
	if cmd.Flags().Changed("redis-addr") {
		cfg.RedisAddr, _ = cmd.Flags().GetString("redis-addr")
	}
	return cfg
}

// newJobClient connects to the queue configured for cmd.
func newJobClient(cmd *cobra.Command) (*queue.Client, error) {
	return queue.NewClient(jobQueueConfig(cmd))
}

// watchJob prints page progress from Redis and polls the job state until it
// completes or is archived after its last retry.
func watchJob(cmd *cobra.Command, client *queue.Client, id string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg := jobQueueConfig(cmd)
	rdb := newRedisClient(cfg)
	defer func() { _ = rdb.Close() }()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates := queue.Subscribe(watchCtx, rdb, cfg.ProgressPrefix, id)
	bar := progress.NewConsole(cmd.ErrOrStderr(), id)

	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			bar.OnProgress(msg.Done, msg.Total)
		case <-ticker.C:
			st, err := client.Status(ctx, id)
			if err != nil {
				return err
			}
			switch st.State {
			case "completed":
				return writeJobStatus(cmd.OutOrStdout(), st)
			case "archived":
				_ = writeJobStatus(cmd.OutOrStdout(), st)
				return fmt.Errorf("job %s failed: %s", id, st.LastError)
			}
		}
	}
}

func writeJobStatus(w io.Writer, st *queue.JobStatus) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

// writeRows renders stored rows as a result holding only rows.
func writeRows(w io.Writer, rows []table.StructuredRow, format output.Format) error {
	return output.Write(w, format, &extract.Result{StructuredRows: rows})
}
