package token

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// LineClassifier answers the lexical questions the direct-extraction producer
// needs when deciding how to split a line.
type LineClassifier interface {
	// Delimiter returns the first explicit column delimiter found in text.
	Delimiter(text string) (string, bool)
	// IsTableLike reports whether text looks like a transaction row.
	IsTableLike(text string) bool
}

// SplitLine turns one text-layer line into tokens. Tokens get synthetic
// bounding boxes by evenly distributing the line's measured bounds.
func SplitLine(line RawLine, lc LineClassifier) []DirectToken {
	text := strings.TrimSpace(norm.NFC.String(line.Text))
	if text == "" {
		return nil
	}

	if delim, ok := lc.Delimiter(text); ok {
		var parts []string
		for _, p := range strings.Split(text, delim) {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		return distribute(parts, line.Bounds, text)
	}

	words := strings.Fields(text)
	if len(words) > 1 || lc.IsTableLike(text) {
		return distribute(words, line.Bounds, text)
	}
	return []DirectToken{{Text: text, Box: line.Bounds, Line: text}}
}

// distribute gives each part an equal slice of the line width.
func distribute(parts []string, bounds BBox, line string) []DirectToken {
	if len(parts) == 0 {
		return nil
	}
	step := bounds.Width / float64(len(parts))
	out := make([]DirectToken, len(parts))
	for i, p := range parts {
		out[i] = DirectToken{
			Text: p,
			Box: BBox{
				X:      bounds.X + float64(i)*step,
				Y:      bounds.Y,
				Width:  step,
				Height: bounds.Height,
			},
			Line: line,
		}
	}
	return out
}

// FromLines runs the direct-extraction producer over a page and returns
// canonical tokens.
func FromLines(pl PageLines, lc LineClassifier) []TextToken {
	n := Normalizer{PageWidth: pl.Width, PageHeight: pl.Height}
	var out []TextToken
	for _, line := range pl.Lines {
		for _, dt := range SplitLine(line, lc) {
			out = append(out, n.Normalize(dt))
		}
	}
	return out
}

// FromFragments runs the OCR producer over recognized fragments. Page size is
// the rendered image size in pixels.
func FromFragments(frags []RawFragment, pageWidth, pageHeight float64) []TextToken {
	n := Normalizer{PageWidth: pageWidth, PageHeight: pageHeight}
	out := make([]TextToken, 0, len(frags))
	for _, f := range frags {
		text := strings.TrimSpace(norm.NFC.String(f.Text))
		if text == "" {
			continue
		}
		out = append(out, n.Normalize(OCRToken{Text: text, Box: f.Box, Confidence: f.Confidence}))
	}
	return out
}

// Text joins the trimmed, non-empty line texts of a page with newlines.
func (pl PageLines) Text() string {
	var b strings.Builder
	for _, l := range pl.Lines {
		t := strings.TrimSpace(norm.NFC.String(l.Text))
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t)
	}
	return b.String()
}
