package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/stmtgrid/internal/batch"
	"github.com/MeKo-Tech/stmtgrid/internal/config"
	"github.com/MeKo-Tech/stmtgrid/internal/output"
	"github.com/MeKo-Tech/stmtgrid/internal/progress"
)

// extractCmd reconstructs the transaction tables of one or more statements.
var extractCmd = &cobra.Command{
	Use:   "extract [files or directories...]",
	Short: "Extract transaction rows from statement PDFs",
	Long: `Extract the transaction table of each statement PDF. Directories are
searched for PDF files; use --recursive to descend into subdirectories.

Output formats: text, json, csv, yaml

Examples:
  stmtgrid extract statement.pdf
  stmtgrid extract statement.pdf --format json
  stmtgrid extract statements/ --recursive --workers 4 --format csv -o rows.csv
  stmtgrid extract scan.pdf --dump-pages ./pages`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runExtractCommand,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("format", "f", "text", "output format (text, json, csv, yaml)")
	extractCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	extractCmd.Flags().BoolP("recursive", "r", false, "search directories recursively")
	extractCmd.Flags().StringSlice("include", nil, "glob patterns of files to include")
	extractCmd.Flags().StringSlice("exclude", nil, "glob patterns of files to exclude")
	extractCmd.Flags().Int("workers", 1, "number of documents extracted at once")
	extractCmd.Flags().Int("page-workers", 1, "number of OCR pages recognized at once per document")
	extractCmd.Flags().Duration("ocr-timeout", 0, "time limit per OCR page (0 disables)")
	extractCmd.Flags().String("dump-pages", "", "directory receiving rendered OCR pages as TIFF")
	extractCmd.Flags().String("password", "", "user password for encrypted PDFs")
	extractCmd.Flags().Bool("fail-fast", false, "stop at the first failed document")
	extractCmd.Flags().BoolP("quiet", "q", false, "do not print progress")
	extractCmd.Flags().Bool("stats", false, "print batch statistics to stderr")
}

// applyExtractFlags overrides cfg with the flags set on cmd.
func applyExtractFlags(cfg *config.Config, cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if flags.Changed("output") {
		cfg.Output.File, _ = flags.GetString("output")
	}
	if flags.Changed("dump-pages") {
		cfg.Output.DumpDir, _ = flags.GetString("dump-pages")
	}
	if flags.Changed("recursive") {
		cfg.Batch.Recursive, _ = flags.GetBool("recursive")
	}
	if flags.Changed("include") {
		cfg.Batch.Include, _ = flags.GetStringSlice("include")
	}
	if flags.Changed("exclude") {
		cfg.Batch.Exclude, _ = flags.GetStringSlice("exclude")
	}
	if flags.Changed("workers") {
		cfg.Batch.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("fail-fast") {
		cfg.Batch.FailFast, _ = flags.GetBool("fail-fast")
	}
	if flags.Changed("page-workers") {
		cfg.Extraction.Workers, _ = flags.GetInt("page-workers")
	}
	if flags.Changed("ocr-timeout") {
		cfg.Extraction.OCRPageTimeout, _ = flags.GetDuration("ocr-timeout")
	}
	if flags.Changed("password") {
		cfg.PDF.UserPassword, _ = flags.GetString("password")
	}
}

func runExtractCommand(cmd *cobra.Command, args []string) error {
	cfg := *GetConfig()
	applyExtractFlags(&cfg, cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}
	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	logger := slog.Default()

	// Dumped pages are named per document, which needs one document at a time.
	dumpDir := cfg.Output.DumpDir
	cfg.Output.DumpDir = ""
	if dumpDir != "" && cfg.Batch.Workers > 1 {
		logger.Info("page dumps require a single batch worker", "workers", cfg.Batch.Workers)
		cfg.Batch.Workers = 1
	}

	svc, cleanup, err := serviceFactory(&cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var ex batch.Extractor = svc
	if dumpDir != "" {
		ex = dumpingExtractor{svc: svc, dir: dumpDir, logger: logger}
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	batchConfig := cfg.ToBatchConfig()
	if !quiet {
		stderr := cmd.ErrOrStderr()
		batchConfig.Progress = progress.NewConsole(stderr, "documents")
		batchConfig.PageProgress = func(file string) progress.Callback {
			return progress.NewConsole(stderr, filepath.Base(file))
		}
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	result, err := batch.Process(ctx, ex, args, batchConfig)
	if err != nil {
		return err
	}

	if err := writeExtractOutput(cmd.OutOrStdout(), cfg.Output.File, result, format); err != nil {
		return err
	}
	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		result.PrintStats(cmd.ErrOrStderr())
	}

	if failed := result.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(result.Documents))
	}
	return nil
}

// writeExtractOutput writes result to file, or to stdout when file is empty.
func writeExtractOutput(stdout io.Writer, file string, result *batch.Result, format output.Format) error {
	if file == "" {
		return result.Write(stdout, format)
	}
	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(file) //nolint:gosec // path comes from the user
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := result.Write(f, format); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
