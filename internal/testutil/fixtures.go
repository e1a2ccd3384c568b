package testutil

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/token"
)

// FakePage describes one page of a FakeDocument.
type FakePage struct {
	Width, Height float64
	// Lines is the text layer in native PDF space. Empty for scanned pages.
	Lines     []token.RawLine
	LinesErr  error
	RenderErr error
}

// FakeDocument is an in-memory extract.Document.
type FakeDocument struct {
	Pages    []FakePage
	CloseErr error

	mu          sync.Mutex
	linesCalls  []int
	renderCalls []int
	closed      bool
}

// NewFakeDocument returns a document with the given pages.
func NewFakeDocument(pages ...FakePage) *FakeDocument {
	return &FakeDocument{Pages: pages}
}

// TextPage returns a 612x792 page whose text layer holds one line per entry,
// laid out top to bottom 20 points apart.
func TextPage(lines ...string) FakePage {
	p := FakePage{Width: 612, Height: 792}
	for i, text := range lines {
		p.Lines = append(p.Lines, token.RawLine{
			Text:   text,
			Bounds: token.BBox{X: 50, Y: 740 - float64(i)*20, Width: 400, Height: 10},
		})
	}
	return p
}

// ScannedPage returns a 612x792 page without a text layer.
func ScannedPage() FakePage {
	return FakePage{Width: 612, Height: 792}
}

func (d *FakeDocument) PageCount() int { return len(d.Pages) }

func (d *FakeDocument) Lines(_ context.Context, page int) (token.PageLines, error) {
	d.mu.Lock()
	d.linesCalls = append(d.linesCalls, page)
	d.mu.Unlock()

	if page < 0 || page >= len(d.Pages) {
		return token.PageLines{}, fmt.Errorf("page %d out of range", page)
	}
	p := d.Pages[page]
	if p.LinesErr != nil {
		return token.PageLines{}, p.LinesErr
	}
	return token.PageLines{Width: p.Width, Height: p.Height, Lines: p.Lines}, nil
}

func (d *FakeDocument) Render(ctx context.Context, page int, scale float64) (image.Image, error) {
	d.mu.Lock()
	d.renderCalls = append(d.renderCalls, page)
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if page < 0 || page >= len(d.Pages) {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	p := d.Pages[page]
	if p.RenderErr != nil {
		return nil, p.RenderErr
	}
	return PageImage{
		Image: BlankPage(int(p.Width*scale), int(p.Height*scale)),
		Page:  page,
	}, nil
}

func (d *FakeDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return d.CloseErr
}

// Closed reports whether Close was called.
func (d *FakeDocument) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// RenderCalls returns the page indices passed to Render, in call order.
func (d *FakeDocument) RenderCalls() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.renderCalls...)
}

// LinesCalls returns the page indices passed to Lines, in call order.
func (d *FakeDocument) LinesCalls() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.linesCalls...)
}

// PageImage is a rendered fake page that remembers its index, so a
// FakeRecognizer can answer per page.
type PageImage struct {
	image.Image
	Page int
}

// FakeRecognizer returns canned fragments per page.
type FakeRecognizer struct {
	Fragments map[int][]token.RawFragment
	Errs      map[int]error
	// Delay is waited before answering, honoring context cancellation.
	Delay time.Duration
	// DelayFor overrides Delay for specific pages.
	DelayFor map[int]time.Duration

	mu    sync.Mutex
	calls []int
}

func (r *FakeRecognizer) Recognize(ctx context.Context, img image.Image) ([]token.RawFragment, error) {
	page := -1
	if pi, ok := img.(PageImage); ok {
		page = pi.Page
	}

	r.mu.Lock()
	r.calls = append(r.calls, page)
	r.mu.Unlock()

	delay := r.Delay
	if d, ok := r.DelayFor[page]; ok {
		delay = d
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if err := r.Errs[page]; err != nil {
		return nil, err
	}
	return r.Fragments[page], nil
}

// Calls returns the pages recognized, in call order.
func (r *FakeRecognizer) Calls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.calls...)
}

// StatementFragments returns OCR fragments for a statement page: a title and
// one transaction row per entry of rows, each with a date, a description and
// an amount column.
func StatementFragments(title string, rows ...[3]string) []token.RawFragment {
	frags := []token.RawFragment{
		{Text: title, Box: token.BBox{X: 0.05, Y: 0.95, Width: 0.3, Height: 0.02}, Confidence: 0.9},
	}
	for i, r := range rows {
		y := 0.85 - float64(i)*0.04
		frags = append(frags,
			token.RawFragment{Text: r[0], Box: token.BBox{X: 0.05, Y: y, Width: 0.12, Height: 0.012}, Confidence: 0.95},
			token.RawFragment{Text: r[1], Box: token.BBox{X: 0.30, Y: y, Width: 0.25, Height: 0.012}, Confidence: 0.9},
			token.RawFragment{Text: r[2], Box: token.BBox{X: 0.80, Y: y, Width: 0.08, Height: 0.012}, Confidence: 0.92},
		)
	}
	return frags
}

// FakeOpener returns Doc, or Err when set.
type FakeOpener struct {
	Doc extract.Document
	Err error
}

func (o FakeOpener) Open(_ context.Context, data []byte) (extract.Document, error) {
	if o.Err != nil {
		return nil, o.Err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", extract.ErrInvalidDocument)
	}
	if o.Doc == nil {
		return nil, errors.New("fake opener has no document")
	}
	return o.Doc, nil
}
