package pdf

import (
	"context"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/pkg/errors"

	"github.com/MeKo-Tech/stmtgrid/internal/token"
)

// pointsPerInch is the resolution of PDF user space.
const pointsPerInch = 72

// document is an open PDF on one PDFium instance. PDFium instances are not
// safe for concurrent use, so every call holds mu.
type document struct {
	mu       sync.Mutex
	instance pdfium.Pdfium
	doc      references.FPDF_DOCUMENT
	pages    int
	closed   bool
}

func (d *document) PageCount() int { return d.pages }

// Lines returns the text lines of a page, bounds in PDF user space. PDFium
// reports text rectangles, which groupLines merges by baseline.
func (d *document) Lines(ctx context.Context, index int) (token.PageLines, error) {
	if err := ctx.Err(); err != nil {
		return token.PageLines{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return token.PageLines{}, errors.New("document is closed")
	}

	pageResp, err := d.instance.FPDF_LoadPage(&requests.FPDF_LoadPage{
		Document: d.doc,
		Index:    index,
	})
	if err != nil {
		return token.PageLines{}, errors.Wrap(err, "failed to load page")
	}
	page := pageResp.Page
	defer d.instance.FPDF_ClosePage(&requests.FPDF_ClosePage{
		Page: page,
	})

	width, err := d.instance.FPDF_GetPageWidthF(&requests.FPDF_GetPageWidthF{
		Page: requests.Page{ByReference: &page},
	})
	if err != nil {
		return token.PageLines{}, errors.Wrap(err, "failed to get page width")
	}
	height, err := d.instance.FPDF_GetPageHeightF(&requests.FPDF_GetPageHeightF{
		Page: requests.Page{ByReference: &page},
	})
	if err != nil {
		return token.PageLines{}, errors.Wrap(err, "failed to get page height")
	}

	textPage, err := d.instance.FPDFText_LoadPage(&requests.FPDFText_LoadPage{
		Page: requests.Page{ByReference: &page},
	})
	if err != nil {
		return token.PageLines{}, errors.Wrap(err, "failed to load text page")
	}
	defer d.instance.FPDFText_ClosePage(&requests.FPDFText_ClosePage{
		TextPage: textPage.TextPage,
	})

	rects, err := d.instance.FPDFText_CountRects(&requests.FPDFText_CountRects{
		TextPage:   textPage.TextPage,
		StartIndex: 0,
		Count:      -1,
	})
	if err != nil {
		return token.PageLines{}, errors.Wrap(err, "failed to count text rects")
	}

	pl := token.PageLines{
		Width:  float64(width.PageWidth),
		Height: float64(height.PageHeight),
	}
	rs := make([]textRect, 0, rects.Count)
	for i := 0; i < rects.Count; i++ {
		rect, err := d.instance.FPDFText_GetRect(&requests.FPDFText_GetRect{
			TextPage: textPage.TextPage,
			Index:    i,
		})
		if err != nil {
			return token.PageLines{}, errors.Wrapf(err, "failed to get text rect %d", i)
		}
		text, err := d.instance.FPDFText_GetBoundedText(&requests.FPDFText_GetBoundedText{
			TextPage: textPage.TextPage,
			Left:     rect.Left,
			Top:      rect.Top,
			Right:    rect.Right,
			Bottom:   rect.Bottom,
		})
		if err != nil {
			return token.PageLines{}, errors.Wrapf(err, "failed to get text of rect %d", i)
		}
		rs = append(rs, textRect{
			Left:   rect.Left,
			Top:    rect.Top,
			Right:  rect.Right,
			Bottom: rect.Bottom,
			Text:   text.Text,
		})
	}
	pl.Lines = groupLines(rs)
	return pl, nil
}

// Render rasterizes a page at scale times its size in points.
func (d *document) Render(ctx context.Context, index int, scale float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.New("document is closed")
	}

	res, err := d.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: d.doc,
				Index:    index,
			},
		},
		DPI: int(pointsPerInch * scale),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to render page %d", index+1)
	}
	// The bitmap lives in PDFium memory and is released by Cleanup.
	img := imaging.Clone(res.Result.Image)
	res.Cleanup()
	return img, nil
}

// Close closes the document and returns the instance to the pool.
func (d *document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	_, closeErr := d.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: d.doc,
	})
	if err := d.instance.Close(); err != nil {
		return errors.Wrap(err, "failed to release pdfium instance")
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, "failed to close PDF document")
	}
	return nil
}
