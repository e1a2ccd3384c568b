package ocr

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"
)

// DumpPage writes a rendered page to dir as <prefix>-page-NNN.tiff. Page is
// 0-based; the file name is 1-based.
func DumpPage(dir, prefix string, page int, img image.Image) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", errors.Wrap(err, "failed to create dump directory")
	}
	if prefix == "" {
		prefix = "document"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-page-%03d.tiff", prefix, page+1))
	f, err := os.Create(path) //nolint:gosec // path is built from a configured directory
	if err != nil {
		return "", errors.Wrap(err, "failed to create dump file")
	}
	defer func() { _ = f.Close() }()

	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		return "", errors.Wrap(err, "failed to encode page dump")
	}
	return path, nil
}

// DumpHook returns a render hook that writes every page to dir. Failures are
// logged and do not interrupt extraction.
func DumpHook(dir, prefix string, logger *slog.Logger) func(page int, img image.Image) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(page int, img image.Image) {
		path, err := DumpPage(dir, prefix, page, img)
		if err != nil {
			logger.Warn("page dump failed", "page", page+1, "error", err)
			return
		}
		logger.Debug("page dumped", "page", page+1, "path", path)
	}
}
