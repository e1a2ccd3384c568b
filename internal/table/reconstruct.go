package table

import (
	"sort"

	"github.com/MeKo-Tech/stmtgrid/internal/token"
)

// PageResult is the reconstruction of one page.
type PageResult struct {
	Rows []StructuredRow
	// Lines holds one line of text per row cluster, top to bottom, tokens
	// joined left to right. It is the page text of OCR pages.
	Lines []string
}

// Reconstructor runs clustering, segmentation and classification for a page.
// It holds no per-page state and may be shared between goroutines.
type Reconstructor struct {
	patterns *Patterns
}

// NewReconstructor returns a Reconstructor using p. A nil p uses DefaultPatterns.
func NewReconstructor(p *Patterns) *Reconstructor {
	if p == nil {
		p = DefaultPatterns()
	}
	return &Reconstructor{patterns: p}
}

// Patterns returns the lexical patterns in use.
func (r *Reconstructor) Patterns() *Patterns {
	return r.patterns
}

// Reconstruct returns the structured rows and cluster lines of page.
func (r *Reconstructor) Reconstruct(page token.Page, prof Profile) PageResult {
	var res PageResult
	for _, cluster := range ClusterRows(page.Tokens, page.Height, prof) {
		res.Lines = append(res.Lines, clusterLine(cluster))

		if prof.DropSingleTokenRows && len(cluster.Tokens) < 2 {
			continue
		}
		cells := SegmentColumns(cluster, page.Width, prof, r.patterns)
		if row, ok := Classify(cells, prof.MinCells, r.patterns); ok {
			res.Rows = append(res.Rows, row)
		}
	}
	return res
}

// Rows is Reconstruct without the cluster lines.
func (r *Reconstructor) Rows(page token.Page, prof Profile) []StructuredRow {
	return r.Reconstruct(page, prof).Rows
}

func clusterLine(c RowCluster) string {
	tokens := make([]token.TextToken, len(c.Tokens))
	copy(tokens, c.Tokens)
	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].Box.X < tokens[j].Box.X
	})
	return joinTokens(tokens)
}
