package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/stmtgrid/internal/progress"
)

// Service opens raw documents and runs them through an Orchestrator.
type Service struct {
	opener Opener
	orch   *Orchestrator
	logger *slog.Logger
}

// NewService creates a service. A nil logger uses slog.Default.
func NewService(opener Opener, orch *Orchestrator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{opener: opener, orch: orch, logger: logger}
}

// Orchestrator returns the orchestrator used by the service.
func (s *Service) Orchestrator() *Orchestrator {
	return s.orch
}

// ProcessBytes opens data and extracts it. The document is always closed
// before returning.
func (s *Service) ProcessBytes(ctx context.Context, data []byte, cb progress.Callback) (*Result, error) {
	doc, err := s.opener.Open(ctx, data)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			s.logger.Warn("failed to close document", "error", cerr)
		}
	}()

	return s.orch.Process(ctx, doc, cb)
}

// ProcessFile reads path and extracts it.
func (s *Service) ProcessFile(ctx context.Context, path string, cb progress.Callback) (*Result, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the caller
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	res, err := s.ProcessBytes(ctx, data, cb)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}
