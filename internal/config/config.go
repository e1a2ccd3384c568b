package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/stmtgrid/internal/batch"
	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/ocr"
	"github.com/MeKo-Tech/stmtgrid/internal/output"
	"github.com/MeKo-Tech/stmtgrid/internal/pdf"
	"github.com/MeKo-Tech/stmtgrid/internal/queue"
	"github.com/MeKo-Tech/stmtgrid/internal/server"
	"github.com/MeKo-Tech/stmtgrid/internal/storage"
	"github.com/MeKo-Tech/stmtgrid/internal/table"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	ex := extract.DefaultConfig()
	patterns := table.DefaultPatternConfig()
	pdfCfg := pdf.DefaultConfig()
	srv := server.DefaultConfig()

	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Verbose:   false,
		Extraction: ExtractionConfig{
			RenderScale:      ex.RenderScale,
			Workers:          ex.Workers,
			OCRPageTimeout:   ex.OCRPageTimeout,
			Delimiters:       patterns.Delimiters,
			DateMarkers:      patterns.DateMarkers,
			OperationMarkers: patterns.OperationMarkers,
			DatePattern:      patterns.DatePattern,
			AmountPattern:    patterns.AmountPattern,
			Direct:           ex.Direct,
			OCR:              ex.OCR,
		},
		OCR: ocr.DefaultConfig(),
		PDF: PDFConfig{
			PoolSize:        pdfCfg.PoolSize,
			InstanceTimeout: pdfCfg.InstanceTimeout,
			Validate:        pdfCfg.Validate,
		},
		Output: OutputConfig{
			Format: string(output.FormatText),
		},
		Batch: BatchConfig{
			Workers: 1,
			Include: batch.DefaultIncludePatterns,
		},
		Server: ServerConfig{
			Host:            srv.Host,
			Port:            srv.Port,
			CORSOrigin:      srv.CORSOrigin,
			MaxUploadMB:     srv.MaxUploadMB,
			TimeoutSec:      int(srv.Timeout / time.Second),
			ShutdownTimeout: int(srv.ShutdownTimeout / time.Second),
			RateLimit: server.RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 5000,
				MaxDataPerDayMB:   500,
			},
		},
		Queue:   queue.DefaultConfig(),
		Storage: storage.Config{MaxOpenConns: 10, ConnMaxLifetime: 30 * time.Minute},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	validLogFormats := []string{"text", "json"}
	if !slices.Contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		return fmt.Errorf("invalid log format: %s (must be one of: %s)", c.LogFormat, strings.Join(validLogFormats, ", "))
	}

	if _, err := output.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("invalid output format: %w", err)
	}

	if err := c.ToExtractConfig().Validate(); err != nil {
		return fmt.Errorf("invalid extraction config: %w", err)
	}
	if _, err := table.NewPatterns(c.ToPatternsConfig()); err != nil {
		return fmt.Errorf("invalid extraction patterns: %w", err)
	}
	if err := validateThreshold(c.OCR.MinConfidence, "ocr.min_confidence"); err != nil {
		return err
	}
	if c.OCR.PoolSize < 0 {
		return fmt.Errorf("invalid ocr pool size: %d (must be non-negative)", c.OCR.PoolSize)
	}
	if c.PDF.PoolSize <= 0 {
		return fmt.Errorf("invalid pdf pool size: %d (must be positive)", c.PDF.PoolSize)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("invalid queue config: %w", err)
	}

	return nil
}

// SlogLevel returns the log level, forced to debug when Verbose is set.
func (c *Config) SlogLevel() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// ToExtractConfig converts to extract.Config.
func (c *Config) ToExtractConfig() extract.Config {
	return extract.Config{
		RenderScale:    c.Extraction.RenderScale,
		Workers:        c.Extraction.Workers,
		OCRPageTimeout: c.Extraction.OCRPageTimeout,
		Direct:         c.Extraction.Direct,
		OCR:            c.Extraction.OCR,
	}
}

// ToPatternsConfig converts to table.PatternConfig.
func (c *Config) ToPatternsConfig() table.PatternConfig {
	return table.PatternConfig{
		Delimiters:       c.Extraction.Delimiters,
		DateMarkers:      c.Extraction.DateMarkers,
		OperationMarkers: c.Extraction.OperationMarkers,
		DatePattern:      c.Extraction.DatePattern,
		AmountPattern:    c.Extraction.AmountPattern,
	}
}

// ToOCRConfig returns the recognizer configuration.
func (c *Config) ToOCRConfig() ocr.Config {
	return c.OCR
}

// ToPDFConfig converts to pdf.Config.
func (c *Config) ToPDFConfig() pdf.Config {
	cfg := pdf.Config{
		PoolSize:        c.PDF.PoolSize,
		InstanceTimeout: c.PDF.InstanceTimeout,
		Validate:        c.PDF.Validate,
	}
	if c.PDF.UserPassword != "" || c.PDF.OwnerPassword != "" {
		cfg.Credentials = &pdf.Credentials{
			UserPassword:  c.PDF.UserPassword,
			OwnerPassword: c.PDF.OwnerPassword,
		}
	}
	return cfg
}

// ToBatchConfig converts to batch.Config. Progress callbacks are left to the
// caller.
func (c *Config) ToBatchConfig() *batch.Config {
	return &batch.Config{
		Recursive:       c.Batch.Recursive,
		IncludePatterns: c.Batch.Include,
		ExcludePatterns: c.Batch.Exclude,
		Workers:         c.Batch.Workers,
		FailFast:        c.Batch.FailFast,
	}
}

// ToServerConfig converts to server.Config.
func (c *Config) ToServerConfig(version string) server.Config {
	return server.Config{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		CORSOrigin:      c.Server.CORSOrigin,
		MaxUploadMB:     c.Server.MaxUploadMB,
		Timeout:         time.Duration(c.Server.TimeoutSec) * time.Second,
		ShutdownTimeout: time.Duration(c.Server.ShutdownTimeout) * time.Second,
		RateLimit:       c.Server.RateLimit,
		Version:         version,
	}
}

// ToQueueConfig returns the queue configuration.
func (c *Config) ToQueueConfig() queue.Config {
	return c.Queue
}

// ToStorageConfig returns the storage configuration.
func (c *Config) ToStorageConfig() storage.Config {
	return c.Storage
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
