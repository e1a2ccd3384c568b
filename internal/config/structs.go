//nolint:lll
package config

import (
	"time"

	"github.com/MeKo-Tech/stmtgrid/internal/ocr"
	"github.com/MeKo-Tech/stmtgrid/internal/queue"
	"github.com/MeKo-Tech/stmtgrid/internal/server"
	"github.com/MeKo-Tech/stmtgrid/internal/storage"
	"github.com/MeKo-Tech/stmtgrid/internal/table"
)

// Config represents the complete configuration for stmtgrid. It covers every
// command (extract, serve, worker) and is loaded from configuration files,
// environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" json:"log_format"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Extraction ExtractionConfig `mapstructure:"extraction" yaml:"extraction" json:"extraction"`
	OCR        ocr.Config       `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	PDF        PDFConfig        `mapstructure:"pdf" yaml:"pdf" json:"pdf"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output" json:"output"`
	Batch      BatchConfig      `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Queue and storage (for serve and worker commands)
	Queue   queue.Config   `mapstructure:"queue" yaml:"queue" json:"queue"`
	Storage storage.Config `mapstructure:"storage" yaml:"storage" json:"storage"`
}

// ExtractionConfig contains the reconstruction settings.
type ExtractionConfig struct {
	RenderScale    float64       `mapstructure:"render_scale" yaml:"render_scale" json:"render_scale"`
	Workers        int           `mapstructure:"workers" yaml:"workers" json:"workers"`
	OCRPageTimeout time.Duration `mapstructure:"ocr_page_timeout" yaml:"ocr_page_timeout" json:"ocr_page_timeout"`

	// Lexical markers
	Delimiters       []string `mapstructure:"delimiters" yaml:"delimiters" json:"delimiters"`
	DateMarkers      []string `mapstructure:"date_markers" yaml:"date_markers" json:"date_markers"`
	OperationMarkers []string `mapstructure:"operation_markers" yaml:"operation_markers" json:"operation_markers"`
	DatePattern      string   `mapstructure:"date_pattern" yaml:"date_pattern" json:"date_pattern"`
	AmountPattern    string   `mapstructure:"amount_pattern" yaml:"amount_pattern" json:"amount_pattern"`

	// Path-specific thresholds
	Direct table.Profile `mapstructure:"direct" yaml:"direct" json:"direct"`
	OCR    table.Profile `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
}

// PDFConfig contains PDF engine settings.
type PDFConfig struct {
	PoolSize        int           `mapstructure:"pool_size" yaml:"pool_size" json:"pool_size"`
	InstanceTimeout time.Duration `mapstructure:"instance_timeout" yaml:"instance_timeout" json:"instance_timeout"`
	Validate        bool          `mapstructure:"validate" yaml:"validate" json:"validate"`
	UserPassword    string        `mapstructure:"user_password" yaml:"user_password,omitempty" json:"-"`
	OwnerPassword   string        `mapstructure:"owner_password" yaml:"owner_password,omitempty" json:"-"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
	// DumpDir receives rasterized OCR pages as TIFF when set.
	DumpDir string `mapstructure:"dump_dir" yaml:"dump_dir" json:"dump_dir"`
}

// BatchConfig contains multi-document settings.
type BatchConfig struct {
	Workers   int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include   []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude   []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	FailFast  bool     `mapstructure:"fail_fast" yaml:"fail_fast" json:"fail_fast"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string                 `mapstructure:"host" yaml:"host" json:"host"`
	Port            int                    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string                 `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int64                  `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int                    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int                    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       server.RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}
