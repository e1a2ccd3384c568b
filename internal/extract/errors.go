package extract

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidDocument means the input could not be opened or parsed at all.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrNoTextFound means neither the text layer nor OCR produced any text.
	ErrNoTextFound = errors.New("no text found")
	// ErrUnsupportedFormat means the input is a recognized container type that
	// is not handled. Raised by callers, never by the orchestrator.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// OCRError reports a failed recognition call. Page is 1-based.
type OCRError struct {
	Page    int
	Message string
	Err     error
}

func (e *OCRError) Error() string {
	return fmt.Sprintf("OCR failed on page %d: %s", e.Page, e.Message)
}

func (e *OCRError) Unwrap() error { return e.Err }

// Stable error codes shared by the HTTP API, the queue worker and metrics.
const (
	CodeOK                = "ok"
	CodeInvalidDocument   = "invalid_document"
	CodeNoTextFound       = "no_text_found"
	CodeUnsupportedFormat = "unsupported_format"
	CodeOCRError          = "ocr_error"
	CodeCanceled          = "canceled"
	CodeInternal          = "internal"
)

// Code maps err to one of the stable error codes. A nil error maps to CodeOK.
func Code(err error) string {
	var ocrErr *OCRError
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrInvalidDocument):
		return CodeInvalidDocument
	case errors.Is(err, ErrUnsupportedFormat):
		return CodeUnsupportedFormat
	case errors.Is(err, ErrNoTextFound):
		return CodeNoTextFound
	case errors.As(err, &ocrErr):
		return CodeOCRError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	default:
		return CodeInternal
	}
}

// IsPermanent reports whether retrying the same input cannot succeed.
func IsPermanent(err error) bool {
	switch Code(err) {
	case CodeInvalidDocument, CodeNoTextFound, CodeUnsupportedFormat:
		return true
	default:
		return false
	}
}
