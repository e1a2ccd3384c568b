// Package token defines positioned text tokens and the two producers that
// emit them: direct text-layer extraction and OCR. Both producers are unified
// into one canonical coordinate frame by Normalizer before any geometric
// reasoning happens.
//
// Canonical frame: origin top-left, X rightward, Y downward, absolute page
// units matching the page's rendered size.
package token

// BBox is an axis-aligned bounding box. The meaning of Y depends on the frame
// the box lives in; in canonical space Y is the top edge.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MaxX returns the right edge.
func (b BBox) MaxX() float64 { return b.X + b.Width }

// MaxY returns Y + Height.
func (b BBox) MaxY() float64 { return b.Y + b.Height }

// CenterY returns the vertical center.
func (b BBox) CenterY() float64 { return b.Y + b.Height/2 }

// TextToken is a single text fragment in canonical space.
type TextToken struct {
	Text       string  `json:"text"`
	Box        BBox    `json:"box"`
	Confidence float64 `json:"confidence"`
	// Line is the trimmed text of the source line this token was cut from.
	// Empty for OCR fragments.
	Line string `json:"line,omitempty"`
}

// Page is the canonical token set of one document page.
type Page struct {
	Tokens []TextToken
	Width  float64
	Height float64
}

// RawLine is a line-level text selection from a document's text layer.
// Bounds are native PDF user space: origin bottom-left, Y upward, Y is the
// bottom edge.
type RawLine struct {
	Text   string `json:"text"`
	Bounds BBox   `json:"bounds"`
}

// PageLines is everything the direct-extraction producer knows about a page.
type PageLines struct {
	Width  float64
	Height float64
	Lines  []RawLine
}

// RawFragment is one recognized fragment from an OCR engine. Box is
// normalized to [0,1] with origin bottom-left; Y is the bottom edge.
type RawFragment struct {
	Text       string  `json:"text"`
	Box        BBox    `json:"box"`
	Confidence float64 `json:"confidence"`
}

// Native is a token still in its producer's coordinate frame. The set of
// implementations is closed: DirectToken and OCRToken.
type Native interface {
	native()
}

// DirectToken is a token synthesized from a text-layer line, in native PDF
// user space.
type DirectToken struct {
	Text string
	Box  BBox
	Line string
}

// OCRToken is a recognized fragment in the engine's normalized frame.
type OCRToken struct {
	Text       string
	Box        BBox
	Confidence float64
}

func (DirectToken) native() {}
func (OCRToken) native()    {}
