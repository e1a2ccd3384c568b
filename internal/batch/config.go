package batch

import (
	"fmt"
	"io"
	"time"

	"github.com/MeKo-Tech/stmtgrid/internal/output"
	"github.com/MeKo-Tech/stmtgrid/internal/progress"
)

// Config holds all configuration for batch extraction.
type Config struct {
	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Workers is the number of documents extracted at once.
	Workers int

	// FailFast stops the batch at the first failed document. Otherwise
	// failures are recorded per document.
	FailFast bool

	// Progress receives (documents done, documents total).
	Progress progress.Callback
	// PageProgress, when set, returns a page progress callback for a file.
	// It is only used with a single worker, where page updates do not
	// interleave.
	PageProgress func(file string) progress.Callback
}

// Result holds the result of a batch.
type Result struct {
	Documents   []output.Document
	Duration    time.Duration
	WorkerCount int
}

// Failed returns the number of documents that failed.
func (r *Result) Failed() int {
	n := 0
	for _, d := range r.Documents {
		if d.Error != "" {
			n++
		}
	}
	return n
}

// Rows returns the total number of structured rows over all documents.
func (r *Result) Rows() int {
	n := 0
	for _, d := range r.Documents {
		if d.Result != nil {
			n += len(d.Result.StructuredRows)
		}
	}
	return n
}

// Write renders the batch. A batch of one document is written as a single
// result so that single-file output stays free of file headings.
func (r *Result) Write(w io.Writer, format output.Format) error {
	if len(r.Documents) == 1 && r.Documents[0].Result != nil {
		return output.Write(w, format, r.Documents[0].Result)
	}
	return output.WriteBatch(w, format, r.Documents)
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	total := len(r.Documents)
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total documents: %d\n", total)
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", total-r.Failed())
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", r.Failed())
	_, _ = fmt.Fprintf(w, "  Structured rows: %d\n", r.Rows())
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if total > 0 {
		_, _ = fmt.Fprintf(w, "  Avg per document: %v\n", (r.Duration / time.Duration(total)).Round(time.Millisecond))
	}
}
