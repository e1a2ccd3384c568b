package ocr

import (
	"bytes"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// contrast is the contrast boost applied to grayscale pages, in percent.
const contrast = 20

// Prepare converts a page to grayscale with boosted contrast. The result has
// the same bounds as img, so word boxes stay valid for the original.
func Prepare(img image.Image) *image.NRGBA {
	gray := imaging.Grayscale(img)
	return imaging.AdjustContrast(gray, contrast)
}

// EncodePNG encodes img as PNG for the recognizer.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "failed to encode page image")
	}
	return buf.Bytes(), nil
}
