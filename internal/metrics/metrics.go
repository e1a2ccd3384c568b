// Package metrics holds the Prometheus collectors of the extraction engine.
// They register with the default registry and are served by the HTTP server
// at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsTotal counts processed documents.
	DocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stmtgrid_documents_total",
			Help: "Total number of processed documents",
		},
		[]string{"path", "outcome"}, // path: direct, ocr, none; outcome: error code or ok
	)

	DocumentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stmtgrid_document_duration_seconds",
			Help:    "Document processing duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		},
		[]string{"path"},
	)

	PagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stmtgrid_pages_total",
			Help: "Total number of processed pages",
		},
		[]string{"path"},
	)

	// PageFailures counts pages recovered as empty after a read or render failure.
	PageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stmtgrid_page_failures_total",
			Help: "Total number of pages that failed to read or render",
		},
		[]string{"stage"}, // stage: lines, render
	)

	StructuredRows = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stmtgrid_structured_rows",
			Help:    "Number of structured rows per document",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"path"},
	)

	OCRErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stmtgrid_ocr_errors_total",
			Help: "Total number of OCR invocations that failed",
		},
	)

	OCRPageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stmtgrid_ocr_page_duration_seconds",
			Help:    "Render plus recognition time per page in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50},
		},
	)

	// QueueJobsTotal counts finished background jobs.
	QueueJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stmtgrid_queue_jobs_total",
			Help: "Total number of processed queue jobs",
		},
		[]string{"outcome"},
	)
)
