package table

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/stmtgrid/internal/token"
)

// RowCluster is an ordered group of tokens believed to share one table line.
// Membership is decided against the first token only.
type RowCluster struct {
	Tokens []token.TextToken
}

// Anchor returns the token that opened the cluster.
func (c RowCluster) Anchor() token.TextToken {
	return c.Tokens[0]
}

// RowTolerance returns max(avgTokenHeight*heightFactor, pageHeight*ratio).
func RowTolerance(tokens []token.TextToken, pageHeight, ratio, heightFactor float64) float64 {
	var avgHeight float64
	if len(tokens) > 0 {
		var sum float64
		for _, t := range tokens {
			sum += t.Box.Height
		}
		avgHeight = sum / float64(len(tokens))
	}
	return math.Max(avgHeight*heightFactor, pageHeight*ratio)
}

// ClusterRows groups tokens into rows ordered top to bottom. Each token joins
// the first cluster whose anchor center lies within the row tolerance;
// otherwise it opens a new cluster. The anchor never moves, so a slowly
// descending run of tokens is not pulled into one row.
func ClusterRows(tokens []token.TextToken, pageHeight float64, prof Profile) []RowCluster {
	if len(tokens) == 0 {
		return nil
	}

	tolerance := RowTolerance(tokens, pageHeight, prof.RowToleranceRatio, prof.RowHeightFactor)

	sorted := make([]token.TextToken, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Box.CenterY() < sorted[j].Box.CenterY()
	})

	var clusters []RowCluster
	for _, t := range sorted {
		y := t.Box.CenterY()
		placed := false
		for i := range clusters {
			if math.Abs(clusters[i].Anchor().Box.CenterY()-y) <= tolerance {
				clusters[i].Tokens = append(clusters[i].Tokens, t)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, RowCluster{Tokens: []token.TextToken{t}})
		}
	}
	return clusters
}
