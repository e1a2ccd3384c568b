package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/stmtgrid/internal/config"
	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/ocr"
	"github.com/MeKo-Tech/stmtgrid/internal/pdf"
	"github.com/MeKo-Tech/stmtgrid/internal/progress"
	"github.com/MeKo-Tech/stmtgrid/internal/table"
)

// serviceFactory builds the extraction service. Tests replace it.
var serviceFactory = newService

// newService wires the PDF engine, the recognizer and the reconstructor into
// an extraction service. The returned cleanup releases the native engines.
func newService(cfg *config.Config, logger *slog.Logger) (*extract.Service, func(), error) {
	patterns, err := table.NewPatterns(cfg.ToPatternsConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("invalid extraction patterns: %w", err)
	}

	engine, err := pdf.NewEngine(cfg.ToPDFConfig(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start PDF engine: %w", err)
	}

	tess, err := ocr.New(cfg.ToOCRConfig())
	if err != nil {
		_ = engine.Close()
		return nil, nil, fmt.Errorf("failed to start OCR engine: %w", err)
	}
	if !tess.Enabled() {
		logger.Warn("OCR is not compiled in; scanned documents will fail (rebuild with -tags ocr)")
	}

	orch := extract.NewOrchestrator(cfg.ToExtractConfig(), table.NewReconstructor(patterns), tess, logger)
	if cfg.Output.DumpDir != "" {
		orch.SetRenderHook(ocr.DumpHook(cfg.Output.DumpDir, "", logger))
	}

	cleanup := func() {
		if err := tess.Close(); err != nil {
			logger.Warn("failed to close OCR engine", "error", err)
		}
		if err := engine.Close(); err != nil {
			logger.Warn("failed to close PDF engine", "error", err)
		}
	}
	return extract.NewService(engine, orch, logger), cleanup, nil
}

// dumpingExtractor names rendered page dumps after the file being extracted.
// The render hook is shared by the orchestrator, so it must run with a single
// batch worker.
type dumpingExtractor struct {
	svc    *extract.Service
	dir    string
	logger *slog.Logger
}

func (d dumpingExtractor) ProcessFile(ctx context.Context, path string, cb progress.Callback) (*extract.Result, error) {
	prefix := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	d.svc.Orchestrator().SetRenderHook(ocr.DumpHook(d.dir, prefix, d.logger))
	return d.svc.ProcessFile(ctx, path, cb)
}
