package ocr

import (
	"image"
	"strings"

	"github.com/MeKo-Tech/stmtgrid/internal/token"
)

// Word is one recognized word in pixel space, origin top-left. Confidence is
// Tesseract's 0..100 score.
type Word struct {
	Text       string
	Rect       image.Rectangle
	Confidence float64
}

// Fragments converts pixel-space words on an image of the given bounds to
// normalized fragments with origin bottom-left. Blank words and words below
// minConfidence are dropped.
func Fragments(words []Word, bounds image.Rectangle, minConfidence float64) []token.RawFragment {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	if w <= 0 || h <= 0 {
		return nil
	}

	out := make([]token.RawFragment, 0, len(words))
	for _, word := range words {
		text := strings.TrimSpace(word.Text)
		if text == "" {
			continue
		}
		conf := word.Confidence / 100
		if conf < minConfidence {
			continue
		}
		r := word.Rect.Sub(bounds.Min).Intersect(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		if r.Empty() {
			continue
		}
		out = append(out, token.RawFragment{
			Text: text,
			Box: token.BBox{
				X:      float64(r.Min.X) / w,
				Y:      1 - float64(r.Max.Y)/h,
				Width:  float64(r.Dx()) / w,
				Height: float64(r.Dy()) / h,
			},
			Confidence: conf,
		})
	}
	return out
}
