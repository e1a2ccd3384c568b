package extract_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/table"
	"github.com/MeKo-Tech/stmtgrid/internal/testutil"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      string
		permanent bool
	}{
		{"nil", nil, extract.CodeOK, false},
		{"invalid", fmt.Errorf("open: %w", extract.ErrInvalidDocument), extract.CodeInvalidDocument, true},
		{"unsupported", fmt.Errorf("sniff: %w", extract.ErrUnsupportedFormat), extract.CodeUnsupportedFormat, true},
		{"no text", fmt.Errorf("ocr: %w", extract.ErrNoTextFound), extract.CodeNoTextFound, true},
		{"ocr", fmt.Errorf("doc: %w", &extract.OCRError{Page: 3, Message: "x"}), extract.CodeOCRError, false},
		{"ocr timeout", &extract.OCRError{Page: 1, Message: "timed out", Err: context.DeadlineExceeded}, extract.CodeOCRError, false},
		{"canceled", fmt.Errorf("page 2: %w", context.Canceled), extract.CodeCanceled, false},
		{"deadline", context.DeadlineExceeded, extract.CodeCanceled, false},
		{"other", errors.New("disk full"), extract.CodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extract.Code(tt.err))
			assert.Equal(t, tt.permanent, extract.IsPermanent(tt.err))
		})
	}
}

func TestOCRError(t *testing.T) {
	inner := errors.New("tesseract: bad image")
	err := &extract.OCRError{Page: 4, Message: inner.Error(), Err: inner}

	assert.Equal(t, "OCR failed on page 4: tesseract: bad image", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, extract.DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*extract.Config)
		errMsg string
	}{
		{"render scale", func(c *extract.Config) { c.RenderScale = 0 }, "render scale"},
		{"huge render scale", func(c *extract.Config) { c.RenderScale = 20 }, "render scale"},
		{"workers", func(c *extract.Config) { c.Workers = -1 }, "workers"},
		{"timeout", func(c *extract.Config) { c.OCRPageTimeout = -time.Second }, "timeout"},
		{"direct profile", func(c *extract.Config) { c.Direct.MinCells = 0 }, "direct profile"},
		{"ocr profile", func(c *extract.Config) { c.OCR.GapMode = "x" }, "ocr profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := extract.DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewOrchestrator_Defaults(t *testing.T) {
	orch := extract.NewOrchestrator(extract.Config{}, nil, nil, nil)
	assert.InDelta(t, 2.0, orch.Config().RenderScale, 1e-9)
}

func TestService_ProcessBytes(t *testing.T) {
	doc := testutil.NewFakeDocument(testutil.TextPage("01.03.2024 Coffee Shop 4.50"))
	svc := extract.NewService(testutil.FakeOpener{Doc: doc},
		extract.NewOrchestrator(extract.DefaultConfig(), nil, nil, nil), nil)

	res, err := svc.ProcessBytes(context.Background(), []byte("%PDF-"), nil)
	require.NoError(t, err)
	assert.Equal(t, table.PathDirect, res.Path)
	assert.True(t, doc.Closed())
}

func TestService_ClosesOnFailure(t *testing.T) {
	doc := testutil.NewFakeDocument(testutil.ScannedPage())
	doc.CloseErr = errors.New("already closed")
	svc := extract.NewService(testutil.FakeOpener{Doc: doc},
		extract.NewOrchestrator(extract.DefaultConfig(), nil, nil, nil), nil)

	_, err := svc.ProcessBytes(context.Background(), []byte("%PDF-"), nil)
	assert.ErrorIs(t, err, extract.ErrNoTextFound)
	assert.True(t, doc.Closed())
}

func TestService_OpenError(t *testing.T) {
	svc := extract.NewService(testutil.FakeOpener{Err: fmt.Errorf("%w: bad xref", extract.ErrInvalidDocument)},
		extract.NewOrchestrator(extract.DefaultConfig(), nil, nil, nil), nil)

	_, err := svc.ProcessBytes(context.Background(), []byte("garbage"), nil)
	assert.Equal(t, extract.CodeInvalidDocument, extract.Code(err))
}

func TestService_ProcessFile(t *testing.T) {
	doc := testutil.NewFakeDocument(testutil.TextPage("01.03.2024 Coffee Shop 4.50"))
	svc := extract.NewService(testutil.FakeOpener{Doc: doc},
		extract.NewOrchestrator(extract.DefaultConfig(), nil, nil, nil), nil)
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "statement.pdf", []byte("%PDF-1.4"))

	res, err := svc.ProcessFile(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Len(t, res.StructuredRows, 1)

	_, err = svc.ProcessFile(context.Background(), filepath.Join(dir, "missing.pdf"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
