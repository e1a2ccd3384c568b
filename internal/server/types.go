package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/progress"
	"github.com/MeKo-Tech/stmtgrid/internal/queue"
)

// Extractor runs the extraction on an uploaded document.
type Extractor interface {
	ProcessBytes(ctx context.Context, data []byte, cb progress.Callback) (*extract.Result, error)
}

// JobQueue accepts documents for background extraction.
type JobQueue interface {
	Enqueue(ctx context.Context, filename string, data []byte) (string, error)
	Status(ctx context.Context, jobID string) (*queue.JobStatus, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	extractor   Extractor
	jobs        JobQueue
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	rateLimiter *RateLimiter
	version     string
	logger      *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	CORSOrigin      string
	MaxUploadMB     int64
	Timeout         time.Duration
	ShutdownTimeout time.Duration
	RateLimit       RateLimitConfig
	Version         string
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            8080,
		CORSOrigin:      "*",
		MaxUploadMB:     50,
		Timeout:         2 * time.Minute,
		ShutdownTimeout: 10 * time.Second,
	}
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
	Queue   bool   `json:"queue"`
}

// ExtractResponse is the JSON body of /v1/extract.
type ExtractResponse struct {
	Success   bool            `json:"success"`
	RequestID string          `json:"request_id,omitempty"`
	File      string          `json:"file,omitempty"`
	Result    *extract.Result `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Code      string          `json:"code,omitempty"`
	ElapsedMs int64           `json:"elapsed_ms"`
}

// JobResponse is returned when a document is queued.
type JobResponse struct {
	JobID     string `json:"job_id"`
	StatusURL string `json:"status_url"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// NewServer creates a server. jobs may be nil, in which case the job
// endpoints answer 503.
func NewServer(config Config, ex Extractor, jobs JobQueue, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = def.MaxUploadMB
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.CORSOrigin == "" {
		config.CORSOrigin = def.CORSOrigin
	}

	s := &Server{
		extractor:   ex,
		jobs:        jobs,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeout:     config.Timeout,
		version:     config.Version,
		logger:      logger,
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(config.RateLimit)
	}
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.middleware("health", s.healthHandler))
	mux.HandleFunc("/v1/extract", s.middleware("extract", s.rateLimitMiddleware(s.extractHandler)))
	mux.HandleFunc("/v1/jobs", s.middleware("jobs", s.rateLimitMiddleware(s.enqueueHandler)))
	mux.HandleFunc("/v1/jobs/{id}", s.middleware("job", s.jobStatusHandler))
	mux.HandleFunc("/v1/ws", s.extractWebSocketHandler)
	mux.Handle("/metrics", metricsHandler())
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) maxUploadBytes() int64 {
	return s.maxUploadMB * 1024 * 1024
}

func (s *Server) errorStatus(err error) int {
	switch extract.Code(err) {
	case extract.CodeInvalidDocument:
		return http.StatusBadRequest
	case extract.CodeUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case extract.CodeNoTextFound:
		return http.StatusUnprocessableEntity
	case extract.CodeCanceled:
		if errorsIsDeadline(err) {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
