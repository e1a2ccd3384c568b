package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/stmtgrid/internal/metrics"
	"github.com/MeKo-Tech/stmtgrid/internal/progress"
	"github.com/MeKo-Tech/stmtgrid/internal/table"
	"github.com/MeKo-Tech/stmtgrid/internal/token"
)

const pageSeparator = "\n\n"

// RenderHook observes every page image rendered for OCR. Page is 0-based.
type RenderHook func(page int, img image.Image)

// Orchestrator runs the per-page pipeline for a document.
//
// If any page has a text layer, the whole document goes through the direct
// path and pages without text contribute an empty text and no rows. Only when
// no page has text is every page rendered and recognized.
type Orchestrator struct {
	config     Config
	rec        *table.Reconstructor
	recognizer Recognizer
	logger     *slog.Logger
	renderHook RenderHook
}

// NewOrchestrator creates an orchestrator. recognizer may be nil, in which
// case documents without a text layer fail with ErrNoTextFound.
func NewOrchestrator(config Config, rec *table.Reconstructor, recognizer Recognizer, logger *slog.Logger) *Orchestrator {
	if rec == nil {
		rec = table.NewReconstructor(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.RenderScale <= 0 {
		config.RenderScale = DefaultConfig().RenderScale
	}
	return &Orchestrator{
		config:     config,
		rec:        rec,
		recognizer: recognizer,
		logger:     logger,
	}
}

// SetRenderHook installs a hook called with each rendered OCR page.
func (o *Orchestrator) SetRenderHook(h RenderHook) {
	o.renderHook = h
}

// Config returns the orchestrator's configuration.
func (o *Orchestrator) Config() Config {
	return o.config
}

// Process extracts text and structured rows from doc. cb may be nil.
//
// The context is checked between pages; a canceled context aborts with no
// partial result.
func (o *Orchestrator) Process(ctx context.Context, doc Document, cb progress.Callback) (*Result, error) {
	start := time.Now()
	cb = progress.OrNoOp(cb)

	res, err := o.process(ctx, doc, cb)

	path := "none"
	if res != nil {
		path = string(res.Path)
		metrics.StructuredRows.WithLabelValues(path).Observe(float64(len(res.StructuredRows)))
		metrics.DocumentDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
	metrics.DocumentsTotal.WithLabelValues(path, Code(err)).Inc()

	if err != nil {
		o.logger.Warn("document extraction failed", "error", err, "code", Code(err))
		return nil, err
	}
	o.logger.Info("document extracted",
		"path", res.Path,
		"pages", res.Pages,
		"rows", len(res.StructuredRows),
		"duration", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (o *Orchestrator) process(ctx context.Context, doc Document, cb progress.Callback) (*Result, error) {
	total := doc.PageCount()

	pages := make([]token.PageLines, total)
	anyText := false
	for i := range total {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extraction canceled at page %d: %w", i+1, err)
		}
		pl, err := doc.Lines(ctx, i)
		if err != nil {
			metrics.PageFailures.WithLabelValues("lines").Inc()
			o.logger.Warn("failed to read text layer, page left empty", "page", i+1, "error", err)
			continue
		}
		pages[i] = pl
		if !anyText && pl.Text() != "" {
			anyText = true
		}
	}

	if anyText {
		o.logger.Debug("text layer found, using direct extraction", "pages", total)
		res := o.direct(pages)
		cb.OnProgress(total, total)
		return res, nil
	}

	if o.recognizer == nil {
		return nil, fmt.Errorf("%w: document has no text layer and OCR is not configured", ErrNoTextFound)
	}
	o.logger.Debug("no text layer, falling back to OCR", "pages", total, "workers", o.config.Workers)
	return o.ocr(ctx, doc, total, cb)
}

func (o *Orchestrator) direct(pages []token.PageLines) *Result {
	res := &Result{
		Path:      table.PathDirect,
		Pages:     len(pages),
		PageTexts: make([]string, len(pages)),
	}
	for i, pl := range pages {
		res.PageTexts[i] = pl.Text()
		page := token.Page{
			Tokens: token.FromLines(pl, o.rec.Patterns()),
			Width:  pl.Width,
			Height: pl.Height,
		}
		res.StructuredRows = append(res.StructuredRows, o.rec.Rows(page, o.config.Direct)...)
	}
	metrics.PagesTotal.WithLabelValues(string(table.PathDirect)).Add(float64(len(pages)))
	res.FullText = strings.Join(res.PageTexts, pageSeparator)
	return res
}

type pageOutput struct {
	text string
	rows []table.StructuredRow
}

func (o *Orchestrator) ocr(ctx context.Context, doc Document, total int, cb progress.Callback) (*Result, error) {
	outputs := make([]pageOutput, total)

	workers := o.config.Workers
	if workers > total {
		workers = total
	}

	var err error
	if workers <= 1 {
		err = o.ocrSequential(ctx, doc, outputs, cb)
	} else {
		err = o.ocrParallel(ctx, doc, outputs, workers, cb)
	}
	if err != nil {
		return nil, err
	}
	cb.OnProgress(total, total)

	res := &Result{
		Path:      table.PathOCR,
		Pages:     total,
		PageTexts: make([]string, total),
	}
	for i, out := range outputs {
		res.PageTexts[i] = out.text
		res.StructuredRows = append(res.StructuredRows, out.rows...)
	}
	res.FullText = strings.Join(res.PageTexts, pageSeparator)

	if strings.TrimSpace(res.FullText) == "" {
		return nil, fmt.Errorf("%w: OCR produced no text on %d pages", ErrNoTextFound, total)
	}
	return res, nil
}

func (o *Orchestrator) ocrSequential(ctx context.Context, doc Document, outputs []pageOutput, cb progress.Callback) error {
	total := len(outputs)
	for i := range total {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("extraction canceled at page %d: %w", i+1, err)
		}
		out, err := o.ocrPage(ctx, doc, i)
		if err != nil {
			return err
		}
		outputs[i] = out
		cb.OnProgress(i+1, total)
	}
	return nil
}

// ocrParallel fans pages out to a bounded worker pool. Results land in
// outputs by page index, so aggregation order does not depend on completion
// order. Progress reports the number of completed pages.
func (o *Orchestrator) ocrParallel(ctx context.Context, doc Document, outputs []pageOutput, workers int, cb progress.Callback) error {
	total := len(outputs)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type out struct {
		page int
		res  pageOutput
		err  error
	}

	jobs := make(chan int, total)
	results := make(chan out, total)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range jobs {
				if err := ctx.Err(); err != nil {
					results <- out{page: page, err: fmt.Errorf("extraction canceled at page %d: %w", page+1, err)}
					continue
				}
				res, err := o.ocrPage(ctx, doc, page)
				results <- out{page: page, res: res, err: err}
			}
		}()
	}

	for i := range total {
		jobs <- i
	}
	close(jobs)

	go func() { wg.Wait(); close(results) }()

	var firstErr error
	done := 0
	for r := range results {
		if r.err != nil {
			if firstErr == nil || isCancelErr(firstErr) && !isCancelErr(r.err) {
				firstErr = r.err
			}
			cancel()
			continue
		}
		if firstErr != nil {
			continue
		}
		outputs[r.page] = r.res
		done++
		cb.OnProgress(done, total)
	}
	return firstErr
}

// isCancelErr reports errors caused by our own cancellation after another
// page failed; the original failure is the one worth returning.
func isCancelErr(err error) bool {
	var ocrErr *OCRError
	return !errors.As(err, &ocrErr) && errors.Is(err, context.Canceled)
}

// ocrPage renders and recognizes one page. Render failures are recovered as
// an empty page; recognition failures abort the document.
func (o *Orchestrator) ocrPage(ctx context.Context, doc Document, page int) (pageOutput, error) {
	start := time.Now()
	metrics.PagesTotal.WithLabelValues(string(table.PathOCR)).Inc()

	img, err := doc.Render(ctx, page, o.config.RenderScale)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return pageOutput{}, fmt.Errorf("extraction canceled at page %d: %w", page+1, ctxErr)
		}
		metrics.PageFailures.WithLabelValues("render").Inc()
		o.logger.Warn("failed to render page, page left empty", "page", page+1, "error", err)
		return pageOutput{}, nil
	}
	if o.renderHook != nil {
		o.renderHook(page, img)
	}

	rctx := ctx
	if o.config.OCRPageTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, o.config.OCRPageTimeout)
		defer cancel()
	}

	frags, err := o.recognizer.Recognize(rctx, img)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return pageOutput{}, fmt.Errorf("extraction canceled at page %d: %w", page+1, ctxErr)
		}
		metrics.OCRErrors.Inc()
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("recognition timed out after %v", o.config.OCRPageTimeout)
		}
		return pageOutput{}, &OCRError{Page: page + 1, Message: msg, Err: err}
	}

	b := img.Bounds()
	width, height := float64(b.Dx()), float64(b.Dy())
	pr := o.rec.Reconstruct(token.Page{
		Tokens: token.FromFragments(frags, width, height),
		Width:  width,
		Height: height,
	}, o.config.OCR)

	metrics.OCRPageDuration.Observe(time.Since(start).Seconds())
	o.logger.Debug("page recognized",
		"page", page+1,
		"fragments", len(frags),
		"rows", len(pr.Rows),
		"duration", time.Since(start).Round(time.Millisecond))

	return pageOutput{text: strings.Join(pr.Lines, "\n"), rows: pr.Rows}, nil
}
