package table

import (
	"math"
	"sort"
	"strings"

	"github.com/MeKo-Tech/stmtgrid/internal/token"
)

// Cell is a run of horizontally contiguous tokens within a row.
type Cell struct {
	Text string  `json:"text"`
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
}

// SegmentColumns splits a row cluster into cells ordered left to right.
//
// Rows whose raw text carries an explicit delimiter with at least two
// non-empty parts are split on the delimiter and token geometry is ignored.
// All other rows are cut wherever the distance between consecutive token
// starts exceeds the profile's minimum column gap.
func SegmentColumns(cluster RowCluster, pageWidth float64, prof Profile, pat *Patterns) []Cell {
	if len(cluster.Tokens) == 0 {
		return nil
	}

	tokens := make([]token.TextToken, len(cluster.Tokens))
	copy(tokens, cluster.Tokens)
	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].Box.X < tokens[j].Box.X
	})

	if cells, ok := delimitedCells(tokens, pat); ok {
		return cells
	}

	minGap := MinColumnGap(tokens, pageWidth, prof)

	var cells []Cell
	current := cellBuilder{}
	current.add(tokens[0])
	for i := 1; i < len(tokens); i++ {
		gap := tokens[i].Box.X - tokens[i-1].Box.X
		if gap > minGap {
			cells = append(cells, current.cell())
			current = cellBuilder{}
		}
		current.add(tokens[i])
	}
	cells = append(cells, current.cell())
	return cells
}

// MinColumnGap returns the horizontal distance between consecutive token
// starts above which a new cell begins. tokens must be sorted by X.
func MinColumnGap(tokens []token.TextToken, pageWidth float64, prof Profile) float64 {
	if prof.GapMode == GapFlat {
		return pageWidth * prof.MinGapRatio
	}

	avgGap := pageWidth * prof.FallbackGapRatio
	if len(tokens) >= 2 {
		var sum float64
		for i := 1; i < len(tokens); i++ {
			sum += tokens[i].Box.X - tokens[i-1].Box.X
		}
		avgGap = sum / float64(len(tokens)-1)
	}
	return math.Max(avgGap*prof.AvgGapFactor, pageWidth*prof.MinGapRatio)
}

// rawRowText returns the text of the source line when every token was cut
// from the same line, and the space-joined token texts otherwise.
func rawRowText(tokens []token.TextToken) string {
	line := tokens[0].Line
	for _, t := range tokens[1:] {
		if t.Line != line {
			line = ""
			break
		}
	}
	if line != "" {
		return line
	}
	return joinTokens(tokens)
}

func delimitedCells(tokens []token.TextToken, pat *Patterns) ([]Cell, bool) {
	raw := rawRowText(tokens)
	delim, ok := pat.Delimiter(raw)
	if !ok {
		return nil, false
	}

	var parts []string
	for _, p := range strings.Split(raw, delim) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return nil, false
	}

	minX, maxX := tokens[0].Box.X, tokens[0].Box.MaxX()
	for _, t := range tokens[1:] {
		minX = math.Min(minX, t.Box.X)
		maxX = math.Max(maxX, t.Box.MaxX())
	}
	step := (maxX - minX) / float64(len(parts))

	cells := make([]Cell, len(parts))
	for i, p := range parts {
		cells[i] = Cell{
			Text: p,
			MinX: minX + float64(i)*step,
			MaxX: minX + float64(i+1)*step,
		}
	}
	return cells, true
}

func joinTokens(tokens []token.TextToken) string {
	texts := make([]string, len(tokens))
	for i, t := range tokens {
		texts[i] = t.Text
	}
	return strings.Join(texts, " ")
}

type cellBuilder struct {
	texts []string
	minX  float64
	maxX  float64
}

func (b *cellBuilder) add(t token.TextToken) {
	if len(b.texts) == 0 {
		b.minX, b.maxX = t.Box.X, t.Box.MaxX()
	} else {
		b.minX = math.Min(b.minX, t.Box.X)
		b.maxX = math.Max(b.maxX, t.Box.MaxX())
	}
	b.texts = append(b.texts, t.Text)
}

func (b *cellBuilder) cell() Cell {
	return Cell{Text: strings.Join(b.texts, " "), MinX: b.minX, MaxX: b.maxX}
}
