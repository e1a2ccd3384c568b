package pdf

import (
	"math"
	"sort"
	"strings"

	"github.com/MeKo-Tech/stmtgrid/internal/token"
)

// lineHeightTolerance is the baseline distance, as a fraction of the average
// rect height, within which two rects belong to the same line.
const lineHeightTolerance = 0.5

// textRect is one PDFium text rectangle in PDF user space.
type textRect struct {
	Left, Top, Right, Bottom float64
	Text                     string
}

// bounds maps the rect to a native box: origin bottom-left, Y the bottom edge.
func (r textRect) bounds() token.BBox {
	return token.BBox{
		X:      r.Left,
		Y:      r.Bottom,
		Width:  r.Right - r.Left,
		Height: r.Top - r.Bottom,
	}
}

// groupLines merges rects sharing a baseline into lines. Lines come out top
// to bottom, rects within a line left to right, joined by single spaces, with
// the union of their bounds.
func groupLines(rects []textRect) []token.RawLine {
	kept := make([]textRect, 0, len(rects))
	totalHeight := 0.0
	for _, r := range rects {
		r.Text = strings.TrimSpace(r.Text)
		if r.Text == "" {
			continue
		}
		kept = append(kept, r)
		totalHeight += r.Top - r.Bottom
	}
	if len(kept) == 0 {
		return nil
	}
	tolerance := totalHeight / float64(len(kept)) * lineHeightTolerance

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Bottom > kept[j].Bottom
	})

	var groups [][]textRect
	var current []textRect
	sum := 0.0
	for _, r := range kept {
		if len(current) > 0 && math.Abs(r.Bottom-sum/float64(len(current))) > tolerance {
			groups = append(groups, current)
			current, sum = nil, 0
		}
		current = append(current, r)
		sum += r.Bottom
	}
	groups = append(groups, current)

	lines := make([]token.RawLine, 0, len(groups))
	for _, g := range groups {
		lines = append(lines, mergeLine(g))
	}
	return lines
}

func mergeLine(g []textRect) token.RawLine {
	sort.SliceStable(g, func(i, j int) bool { return g[i].Left < g[j].Left })

	u := g[0]
	texts := make([]string, 0, len(g))
	for _, r := range g {
		u.Left = math.Min(u.Left, r.Left)
		u.Right = math.Max(u.Right, r.Right)
		u.Bottom = math.Min(u.Bottom, r.Bottom)
		u.Top = math.Max(u.Top, r.Top)
		texts = append(texts, r.Text)
	}
	return token.RawLine{Text: strings.Join(texts, " "), Bounds: u.bounds()}
}
