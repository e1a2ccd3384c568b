package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func newTestLoader() *Loader {
	return NewLoaderWith(viper.New())
}

// normalized replaces nil slices with empty ones, since YAML and viper do not
// keep the distinction.
func normalized(c Config) Config {
	for _, s := range []*[]string{
		&c.Extraction.Delimiters, &c.Extraction.DateMarkers, &c.Extraction.OperationMarkers,
		&c.OCR.Languages, &c.Batch.Include, &c.Batch.Exclude,
	} {
		if *s == nil {
			*s = []string{}
		}
	}
	return c
}

func sameConfig(t *testing.T, got, want Config) {
	t.Helper()
	if !reflect.DeepEqual(normalized(got), normalized(want)) {
		t.Errorf("config mismatch\ngot:  %+v\nwant: %+v", got, want)
	}
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil || loader.v == nil {
		t.Fatal("NewLoader() returned a loader without viper")
	}
	if loader.GetViper() != viper.GetViper() {
		t.Error("NewLoader() should use the global viper instance")
	}
}

func TestLoadWithNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := newTestLoader().Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	sameConfig(t, *cfg, DefaultConfig())
}

func TestLoadWithValidYAMLFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "stmtgrid.yaml")
	content := `
log_level: debug
verbose: true
extraction:
  workers: 4
  ocr_page_timeout: 45s
  date_markers: [datum, date]
  ocr:
    min_cells: 4
ocr:
  languages: [deu]
  page_seg_mode: 6
server:
  port: 9090
  rate_limit:
    enabled: true
    requests_per_minute: 5
queue:
  redis_addr: redis:6379
  retention: 1h
storage:
  database_url: postgres://localhost/stmtgrid
`
	if err := os.WriteFile(configFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	loader := newTestLoader()
	cfg, err := loader.LoadWithFile(configFile)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}
	if loader.GetConfigFileUsed() != configFile {
		t.Errorf("GetConfigFileUsed() = %s", loader.GetConfigFileUsed())
	}

	if cfg.LogLevel != "debug" || !cfg.Verbose {
		t.Errorf("global settings not loaded: %+v", cfg)
	}
	if cfg.Extraction.Workers != 4 || cfg.Extraction.OCRPageTimeout != 45*time.Second {
		t.Errorf("extraction settings not loaded: %+v", cfg.Extraction)
	}
	if !reflect.DeepEqual(cfg.Extraction.DateMarkers, []string{"datum", "date"}) {
		t.Errorf("date markers = %v", cfg.Extraction.DateMarkers)
	}
	if cfg.Extraction.OCR.MinCells != 4 {
		t.Errorf("ocr profile min cells = %d", cfg.Extraction.OCR.MinCells)
	}
	// untouched profile keys keep their defaults
	if cfg.Extraction.OCR.MinGapRatio != DefaultConfig().Extraction.OCR.MinGapRatio {
		t.Errorf("ocr profile min gap ratio = %f", cfg.Extraction.OCR.MinGapRatio)
	}
	if cfg.OCR.PageSegMode != 6 || !reflect.DeepEqual(cfg.OCR.Languages, []string{"deu"}) {
		t.Errorf("ocr settings not loaded: %+v", cfg.OCR)
	}
	if cfg.Server.Port != 9090 || !cfg.Server.RateLimit.Enabled || cfg.Server.RateLimit.RequestsPerMinute != 5 {
		t.Errorf("server settings not loaded: %+v", cfg.Server)
	}
	if cfg.Server.RateLimit.RequestsPerHour != 1000 {
		t.Errorf("rate limit defaults lost: %+v", cfg.Server.RateLimit)
	}
	if cfg.Queue.RedisAddr != "redis:6379" || cfg.Queue.Retention != time.Hour {
		t.Errorf("queue settings not loaded: %+v", cfg.Queue)
	}
	if !cfg.Storage.Enabled() {
		t.Error("storage should be enabled")
	}
}

func TestLoadWithInvalidFile(t *testing.T) {
	dir := t.TempDir()

	if _, err := newTestLoader().LoadWithFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("server: [port"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := newTestLoader().LoadWithFile(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("log_level: loud\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := newTestLoader().LoadWithFile(invalid)
	if err == nil || !strings.Contains(err.Error(), "configuration validation failed") {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := newTestLoader().LoadWithFileWithoutValidation(invalid); err != nil {
		t.Errorf("LoadWithFileWithoutValidation() unexpected error: %v", err)
	}
}

func TestLoadFromSearchPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, "stmtgrid.yaml"), []byte("output:\n  format: csv\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := newTestLoader().Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Output.Format != "csv" {
		t.Errorf("Expected format csv from ./stmtgrid.yaml, got %s", cfg.Output.Format)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STMTGRID_SERVER_PORT", "7070")
	t.Setenv("STMTGRID_LOG_LEVEL", "warn")
	t.Setenv("STMTGRID_QUEUE_REDIS_ADDR", "cache:6380")
	t.Setenv("STMTGRID_EXTRACTION_OCR_PAGE_TIMEOUT", "2m")
	t.Setenv("STMTGRID_STORAGE_DATABASE_URL", "postgres://db/stmtgrid")

	cfg, err := newTestLoader().Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Expected port 7070 from env, got %d", cfg.Server.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Expected log level warn from env, got %s", cfg.LogLevel)
	}
	if cfg.Queue.RedisAddr != "cache:6380" {
		t.Errorf("Expected redis addr from env, got %s", cfg.Queue.RedisAddr)
	}
	if cfg.Extraction.OCRPageTimeout != 2*time.Minute {
		t.Errorf("Expected OCR page timeout from env, got %v", cfg.Extraction.OCRPageTimeout)
	}
	if cfg.Storage.DatabaseURL != "postgres://db/stmtgrid" {
		t.Errorf("Expected database URL from env, got %s", cfg.Storage.DatabaseURL)
	}
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "conf", "stmtgrid.yaml")

	if err := GenerateDefaultConfigFile(filename); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() unexpected error: %v", err)
	}
	if err := GenerateDefaultConfigFile(filename); err == nil {
		t.Error("expected error when the file already exists")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "ocr_page_timeout:") || !strings.Contains(string(data), "rate_limit:") {
		t.Errorf("generated config is missing keys:\n%s", data)
	}

	var decoded Config
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("generated config is not valid YAML: %v", err)
	}
	sameConfig(t, decoded, DefaultConfig())

	cfg, err := newTestLoader().LoadWithFile(filename)
	if err != nil {
		t.Fatalf("LoadWithFile() on generated config: %v", err)
	}
	sameConfig(t, *cfg, DefaultConfig())
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()

	if paths[0] != "." {
		t.Errorf("first search path = %s", paths[0])
	}
	want := []string{filepath.Join("/xdg", "stmtgrid"), "/etc/stmtgrid"}
	for _, w := range want {
		found := false
		for _, p := range paths {
			if p == w {
				found = true
			}
		}
		if !found {
			t.Errorf("search paths %v missing %s", paths, w)
		}
	}
}
