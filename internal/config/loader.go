package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/stmtgrid/internal/table"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "stmtgrid"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "STMTGRID"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance, so flags bound by
// the root command take part.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader on v.
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from the first config file found on the search
// paths, environment variables and defaults, and validates it.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithFile loads configuration from configFile, or searches the standard
// paths when it is empty.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	config, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// LoadWithFileWithoutValidation is LoadWithFile without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	l.setupEnvironmentVariables()
	l.setDefaults()

	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
		if err := l.v.ReadInConfig(); err != nil {
			// A missing config file is fine; defaults and env vars apply.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	// STMTGRID_SERVER_PORT -> server.port
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options. Every key
// needs a default for environment overrides to reach Unmarshal.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	// Global settings
	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("log_format", defaults.LogFormat)
	l.v.SetDefault("verbose", defaults.Verbose)

	// Extraction defaults
	l.v.SetDefault("extraction.render_scale", defaults.Extraction.RenderScale)
	l.v.SetDefault("extraction.workers", defaults.Extraction.Workers)
	l.v.SetDefault("extraction.ocr_page_timeout", defaults.Extraction.OCRPageTimeout)
	l.v.SetDefault("extraction.delimiters", defaults.Extraction.Delimiters)
	l.v.SetDefault("extraction.date_markers", defaults.Extraction.DateMarkers)
	l.v.SetDefault("extraction.operation_markers", defaults.Extraction.OperationMarkers)
	l.v.SetDefault("extraction.date_pattern", defaults.Extraction.DatePattern)
	l.v.SetDefault("extraction.amount_pattern", defaults.Extraction.AmountPattern)
	l.setProfileDefaults("extraction.direct", defaults.Extraction.Direct)
	l.setProfileDefaults("extraction.ocr", defaults.Extraction.OCR)

	// OCR defaults
	l.v.SetDefault("ocr.languages", defaults.OCR.Languages)
	l.v.SetDefault("ocr.page_seg_mode", int(defaults.OCR.PageSegMode))
	l.v.SetDefault("ocr.pool_size", defaults.OCR.PoolSize)
	l.v.SetDefault("ocr.preprocess", defaults.OCR.Preprocess)
	l.v.SetDefault("ocr.min_confidence", defaults.OCR.MinConfidence)

	// PDF defaults
	l.v.SetDefault("pdf.pool_size", defaults.PDF.PoolSize)
	l.v.SetDefault("pdf.instance_timeout", defaults.PDF.InstanceTimeout)
	l.v.SetDefault("pdf.validate", defaults.PDF.Validate)
	l.v.SetDefault("pdf.user_password", "")
	l.v.SetDefault("pdf.owner_password", "")

	// Output defaults
	l.v.SetDefault("output.format", defaults.Output.Format)
	l.v.SetDefault("output.file", defaults.Output.File)
	l.v.SetDefault("output.dump_dir", defaults.Output.DumpDir)

	// Batch defaults
	l.v.SetDefault("batch.workers", defaults.Batch.Workers)
	l.v.SetDefault("batch.recursive", defaults.Batch.Recursive)
	l.v.SetDefault("batch.include", defaults.Batch.Include)
	l.v.SetDefault("batch.exclude", defaults.Batch.Exclude)
	l.v.SetDefault("batch.fail_fast", defaults.Batch.FailFast)

	// Server defaults
	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_limit.enabled", defaults.Server.RateLimit.Enabled)
	l.v.SetDefault("server.rate_limit.requests_per_minute", defaults.Server.RateLimit.RequestsPerMinute)
	l.v.SetDefault("server.rate_limit.requests_per_hour", defaults.Server.RateLimit.RequestsPerHour)
	l.v.SetDefault("server.rate_limit.max_requests_per_day", defaults.Server.RateLimit.MaxRequestsPerDay)
	l.v.SetDefault("server.rate_limit.max_data_per_day_mb", defaults.Server.RateLimit.MaxDataPerDayMB)

	// Queue defaults
	l.v.SetDefault("queue.redis_addr", defaults.Queue.RedisAddr)
	l.v.SetDefault("queue.redis_password", defaults.Queue.RedisPassword)
	l.v.SetDefault("queue.redis_db", defaults.Queue.RedisDB)
	l.v.SetDefault("queue.queue", defaults.Queue.Queue)
	l.v.SetDefault("queue.concurrency", defaults.Queue.Concurrency)
	l.v.SetDefault("queue.max_retry", defaults.Queue.MaxRetry)
	l.v.SetDefault("queue.timeout", defaults.Queue.Timeout)
	l.v.SetDefault("queue.retention", defaults.Queue.Retention)
	l.v.SetDefault("queue.progress_prefix", defaults.Queue.ProgressPrefix)

	// Storage defaults
	l.v.SetDefault("storage.database_url", defaults.Storage.DatabaseURL)
	l.v.SetDefault("storage.max_open_conns", defaults.Storage.MaxOpenConns)
	l.v.SetDefault("storage.conn_max_lifetime", defaults.Storage.ConnMaxLifetime)
}

func (l *Loader) setProfileDefaults(prefix string, p table.Profile) {
	l.v.SetDefault(prefix+".path", string(p.Path))
	l.v.SetDefault(prefix+".row_tolerance_ratio", p.RowToleranceRatio)
	l.v.SetDefault(prefix+".row_height_factor", p.RowHeightFactor)
	l.v.SetDefault(prefix+".gap_mode", string(p.GapMode))
	l.v.SetDefault(prefix+".avg_gap_factor", p.AvgGapFactor)
	l.v.SetDefault(prefix+".min_gap_ratio", p.MinGapRatio)
	l.v.SetDefault(prefix+".fallback_gap_ratio", p.FallbackGapRatio)
	l.v.SetDefault(prefix+".min_cells", p.MinCells)
	l.v.SetDefault(prefix+".drop_single_token_rows", p.DropSingleTokenRows)
}

// GenerateDefaultConfigFile writes the default configuration as YAML.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("config file already exists: %s", filename)
	}

	data, err := MarshalYAML(DefaultConfig())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MarshalYAML encodes config with two-space indentation.
func MarshalYAML(config Config) ([]byte, error) {
	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(config); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return []byte(b.String()), nil
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	paths = append(paths, filepath.Join("/etc", ConfigFileName))
	return paths
}
