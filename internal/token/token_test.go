package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeClassifier treats '|' as the delimiter and anything containing a digit
// and longer than 10 runes as table-like.
type pipeClassifier struct{}

func (pipeClassifier) Delimiter(text string) (string, bool) {
	if strings.Contains(text, "|") {
		return "|", true
	}
	return "", false
}

func (pipeClassifier) IsTableLike(text string) bool {
	return strings.ContainsAny(text, "0123456789") && len([]rune(text)) > 10
}

func TestSplitLine(t *testing.T) {
	bounds := BBox{X: 100, Y: 500, Width: 400, Height: 10}

	tests := []struct {
		name      string
		text      string
		wantTexts []string
	}{
		{name: "blank line", text: "   ", wantTexts: nil},
		{name: "single word spans line", text: " Statement ", wantTexts: []string{"Statement"}},
		{name: "words", text: "Coffee Shop", wantTexts: []string{"Coffee", "Shop"}},
		{name: "delimiter drops empty parts", text: "a | | b |c", wantTexts: []string{"a", "b", "c"}},
		{name: "only delimiters", text: "| |", wantTexts: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitLine(RawLine{Text: tt.text, Bounds: bounds}, pipeClassifier{})
			texts := make([]string, 0, len(got))
			for _, tok := range got {
				texts = append(texts, tok.Text)
			}
			if tt.wantTexts == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.wantTexts, texts)
		})
	}
}

func TestSplitLine_EvenDistribution(t *testing.T) {
	bounds := BBox{X: 100, Y: 500, Width: 400, Height: 10}
	got := SplitLine(RawLine{Text: "01.03.2024 Coffee Shop 4.50", Bounds: bounds}, pipeClassifier{})
	require.Len(t, got, 4)

	for i, tok := range got {
		assert.InDelta(t, 100+float64(i)*100, tok.Box.X, 1e-9)
		assert.InDelta(t, 100, tok.Box.Width, 1e-9)
		assert.InDelta(t, 500, tok.Box.Y, 1e-9)
		assert.InDelta(t, 10, tok.Box.Height, 1e-9)
		assert.Equal(t, "01.03.2024 Coffee Shop 4.50", tok.Line)
	}
}

func TestSplitLine_SingleWordKeepsBounds(t *testing.T) {
	bounds := BBox{X: 10, Y: 20, Width: 30, Height: 40}
	got := SplitLine(RawLine{Text: "Statement", Bounds: bounds}, pipeClassifier{})
	require.Len(t, got, 1)
	assert.Equal(t, bounds, got[0].Box)
}

func TestNormalizer_Direct(t *testing.T) {
	n := Normalizer{PageWidth: 612, PageHeight: 792}
	in := DirectToken{Text: "x", Box: BBox{X: 50, Y: 700, Width: 20, Height: 12}, Line: "x"}

	got := n.Normalize(in)

	assert.InDelta(t, 50, got.Box.X, 1e-9)
	assert.InDelta(t, 792-712, got.Box.Y, 1e-9)
	assert.InDelta(t, 20, got.Box.Width, 1e-9)
	assert.InDelta(t, 12, got.Box.Height, 1e-9)
	assert.InDelta(t, 1.0, got.Confidence, 1e-9)
	assert.Equal(t, "x", got.Line)
	// input untouched
	assert.InDelta(t, 700, in.Box.Y, 1e-9)
}

func TestNormalizer_OCR(t *testing.T) {
	n := Normalizer{PageWidth: 1000, PageHeight: 2000}
	got := n.Normalize(OCRToken{
		Text:       "4.50",
		Box:        BBox{X: 0.25, Y: 0.75, Width: 0.1, Height: 0.05},
		Confidence: 1.7,
	})

	assert.InDelta(t, 250, got.Box.X, 1e-9)
	assert.InDelta(t, (1-0.75-0.05)*2000, got.Box.Y, 1e-9)
	assert.InDelta(t, 100, got.Box.Width, 1e-9)
	assert.InDelta(t, 100, got.Box.Height, 1e-9)
	assert.InDelta(t, 1.0, got.Confidence, 1e-9)
	assert.Empty(t, got.Line)
}

func TestNormalizer_TopOfPageMapsNearZero(t *testing.T) {
	// A fragment touching the top edge in the bottom-left frame lands at Y=0.
	n := Normalizer{PageWidth: 100, PageHeight: 100}
	got := n.Normalize(OCRToken{Text: "t", Box: BBox{X: 0, Y: 0.9, Width: 0.1, Height: 0.1}})
	assert.InDelta(t, 0, got.Box.Y, 1e-9)
}

func TestFromFragments_SkipsBlank(t *testing.T) {
	frags := []RawFragment{
		{Text: " ", Box: BBox{X: 0.1, Y: 0.1, Width: 0.1, Height: 0.1}, Confidence: 0.9},
		{Text: "Итого", Box: BBox{X: 0.2, Y: 0.1, Width: 0.1, Height: 0.1}, Confidence: 0.8},
	}
	got := FromFragments(frags, 200, 100)
	require.Len(t, got, 1)
	assert.Equal(t, "Итого", got[0].Text)
	assert.InDelta(t, 40, got[0].Box.X, 1e-9)
}

func TestFromLines(t *testing.T) {
	pl := PageLines{
		Width:  600,
		Height: 800,
		Lines: []RawLine{
			{Text: "Header", Bounds: BBox{X: 10, Y: 780, Width: 100, Height: 10}},
			{Text: "", Bounds: BBox{X: 10, Y: 760, Width: 100, Height: 10}},
			{Text: "a b", Bounds: BBox{X: 10, Y: 740, Width: 100, Height: 10}},
		},
	}
	got := FromLines(pl, pipeClassifier{})
	require.Len(t, got, 3)
	assert.InDelta(t, 10, got[0].Box.Y, 1e-9)
	assert.InDelta(t, 50, got[1].Box.Y, 1e-9)
	assert.Equal(t, "Header\na b", pl.Text())
}
