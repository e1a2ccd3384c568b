package token

// Normalizer maps native tokens of one page into canonical space.
type Normalizer struct {
	PageWidth  float64
	PageHeight float64
}

// Normalize returns a new canonical token. The input is left untouched.
func (n Normalizer) Normalize(t Native) TextToken {
	switch v := t.(type) {
	case DirectToken:
		return TextToken{
			Text: v.Text,
			Box: BBox{
				X:      v.Box.X,
				Y:      n.PageHeight - v.Box.MaxY(),
				Width:  v.Box.Width,
				Height: v.Box.Height,
			},
			Confidence: 1.0,
			Line:       v.Line,
		}
	case OCRToken:
		return TextToken{
			Text: v.Text,
			Box: BBox{
				X:      v.Box.X * n.PageWidth,
				Y:      (1 - v.Box.Y - v.Box.Height) * n.PageHeight,
				Width:  v.Box.Width * n.PageWidth,
				Height: v.Box.Height * n.PageHeight,
			},
			Confidence: clamp01(v.Confidence),
		}
	default:
		panic("token: unknown native token type")
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
