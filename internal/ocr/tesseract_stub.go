//go:build !ocr

package ocr

import (
	"context"
	"image"

	"github.com/MeKo-Tech/stmtgrid/internal/token"
)

// Tesseract is a placeholder used when OCR is not compiled in.
type Tesseract struct {
	config Config
}

// New returns a recognizer whose Recognize always fails with
// ErrOCRNotEnabled. Documents with a text layer still extract normally.
func New(config Config) (*Tesseract, error) {
	return &Tesseract{config: config.withDefaults()}, nil
}

// Enabled reports whether OCR is compiled in.
func (t *Tesseract) Enabled() bool { return false }

// Recognize returns ErrOCRNotEnabled.
func (t *Tesseract) Recognize(_ context.Context, _ image.Image) ([]token.RawFragment, error) {
	return nil, ErrOCRNotEnabled
}

// Close is a no-op.
func (t *Tesseract) Close() error { return nil }
