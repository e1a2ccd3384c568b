package batch

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/output"
	"github.com/MeKo-Tech/stmtgrid/internal/table"
)

func sampleBatch() *Result {
	res := &extract.Result{
		FullText:       "01.03.2024 Coffee 4.50",
		PageTexts:      []string{"01.03.2024 Coffee 4.50"},
		StructuredRows: []table.StructuredRow{{"01.03.2024", "Coffee", "4.50"}},
		Path:           table.PathDirect,
		Pages:          1,
	}
	return &Result{
		Documents: []output.Document{
			output.NewDocument("a.pdf", res, nil),
			output.NewDocument("b.pdf", nil, extract.ErrNoTextFound),
		},
		Duration:    2 * time.Second,
		WorkerCount: 2,
	}
}

func TestResult_Write(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleBatch().Write(&buf, output.FormatText))
	assert.Contains(t, buf.String(), "# a.pdf")
	assert.Contains(t, buf.String(), "error (no_text_found)")
}

func TestResult_WriteSingleDocument(t *testing.T) {
	r := sampleBatch()
	r.Documents = r.Documents[:1]

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf, output.FormatText))
	assert.NotContains(t, buf.String(), "# a.pdf")
	assert.Contains(t, buf.String(), "01.03.2024\tCoffee\t4.50")
}

func TestResult_Counts(t *testing.T) {
	r := sampleBatch()
	assert.Equal(t, 1, r.Failed())
	assert.Equal(t, 1, r.Rows())
	assert.Equal(t, 0, (&Result{}).Failed())
}

func TestResult_PrintStats(t *testing.T) {
	var buf bytes.Buffer
	sampleBatch().PrintStats(&buf)
	out := buf.String()
	assert.Contains(t, out, "Total documents: 2")
	assert.Contains(t, out, "Failed: 1")
	assert.Contains(t, out, "Structured rows: 1")
	assert.Contains(t, out, "Avg per document: 1s")

	buf.Reset()
	(&Result{}).PrintStats(&buf)
	assert.NotContains(t, buf.String(), "Avg per document")
}
