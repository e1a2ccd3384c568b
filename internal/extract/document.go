// Package extract drives statement reconstruction for whole documents. It
// decides between the text-layer path and the OCR path, runs the table
// reconstruction per page and aggregates the results in page order.
package extract

import (
	"context"
	"image"

	"github.com/MeKo-Tech/stmtgrid/internal/table"
	"github.com/MeKo-Tech/stmtgrid/internal/token"
)

// Document is an opened document. Page indices are 0-based.
//
// Render may be called from several goroutines when Config.Workers > 1.
type Document interface {
	PageCount() int
	// Lines returns the text-layer lines of a page with native bounds.
	Lines(ctx context.Context, page int) (token.PageLines, error)
	// Render rasterizes a page at scale times its natural size.
	Render(ctx context.Context, page int, scale float64) (image.Image, error)
	Close() error
}

// Opener opens raw document bytes. It returns errors wrapping
// ErrInvalidDocument or ErrUnsupportedFormat when data cannot be handled.
type Opener interface {
	Open(ctx context.Context, data []byte) (Document, error)
}

// Recognizer is an OCR engine. Fragment boxes are normalized to [0,1] with
// origin bottom-left.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]token.RawFragment, error)
}

// Result is the document-level outcome of an extraction.
type Result struct {
	FullText       string                `json:"full_text" yaml:"full_text"`
	PageTexts      []string              `json:"page_texts" yaml:"page_texts"`
	StructuredRows []table.StructuredRow `json:"structured_rows,omitempty" yaml:"structured_rows,omitempty"`
	Path           table.Path            `json:"path" yaml:"path"`
	Pages          int                   `json:"pages" yaml:"pages"`
}
