package pdf

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
)

// pdfHeaderWindow is how far into the input the %PDF- marker may appear.
// Some generators prepend junk before the header.
const pdfHeaderWindow = 1024

var pdfMagic = []byte("%PDF-")

// knownContainers maps detected content types to the names reported for
// recognized formats that are not handled.
var knownContainers = map[string]string{
	"image/png":                    "PNG image",
	"image/jpeg":                   "JPEG image",
	"image/gif":                    "GIF image",
	"image/bmp":                    "BMP image",
	"image/webp":                   "WebP image",
	"image/tiff":                   "TIFF image",
	"application/zip":              "ZIP archive",
	"application/x-gzip":           "gzip archive",
	"application/x-rar-compressed": "RAR archive",
	"application/postscript":       "PostScript document",
	"text/html; charset=utf-8":     "HTML document",
	"text/xml; charset=utf-8":      "XML document",
}

// Sniff checks that data looks like a PDF. Recognized non-PDF containers yield
// an error wrapping extract.ErrUnsupportedFormat; anything else that is not a
// PDF wraps extract.ErrInvalidDocument.
func Sniff(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty input", extract.ErrInvalidDocument)
	}

	window := data
	if len(window) > pdfHeaderWindow {
		window = window[:pdfHeaderWindow]
	}
	if bytes.Contains(window, pdfMagic) {
		return nil
	}

	if name, ok := containerName(data); ok {
		return fmt.Errorf("%w: %s", extract.ErrUnsupportedFormat, name)
	}
	return fmt.Errorf("%w: missing %%PDF- header", extract.ErrInvalidDocument)
}

func containerName(data []byte) (string, bool) {
	// TIFF is not sniffed by net/http.
	if bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*")) {
		return knownContainers["image/tiff"], true
	}
	ct := http.DetectContentType(data)
	if name, ok := knownContainers[ct]; ok {
		return name, true
	}
	if strings.HasPrefix(ct, "image/") {
		return ct, true
	}
	return "", false
}
