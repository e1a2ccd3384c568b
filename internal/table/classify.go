package table

import "strings"

// StructuredRow is an accepted table row: cell texts left to right.
type StructuredRow []string

// Classify decides whether cells form a transaction row. A row must contain a
// date, must not be the table header and must keep at least minCells cells.
// Trailing blank cells are dropped from accepted rows; interior ones are kept.
func Classify(cells []Cell, minCells int, pat *Patterns) (StructuredRow, bool) {
	if len(cells) == 0 {
		return nil, false
	}

	texts := make([]string, len(cells))
	for i, c := range cells {
		texts[i] = c.Text
	}
	rowText := strings.Join(texts, " ")

	if !pat.HasDate(rowText) {
		return nil, false
	}
	if pat.IsHeader(rowText) {
		return nil, false
	}
	if len(cells) < minCells {
		return nil, false
	}

	end := len(texts)
	for end > 0 && strings.TrimSpace(texts[end-1]) == "" {
		end--
	}
	if end == 0 {
		return nil, false
	}
	return StructuredRow(texts[:end]), true
}
