package support

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/testutil"
)

// RegisterEngineSteps registers the steps driving the extraction engine.
func (tc *TestContext) RegisterEngineSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a statement page with the text layer:$`, tc.textPage)
	sc.Step(`^a scanned statement page with the transactions:$`, tc.scannedPage)
	sc.Step(`^a scanned page without any text$`, tc.blankScannedPage)
	sc.Step(`^a scanned page that cannot be rendered$`, tc.unrenderablePage)
	sc.Step(`^a document that cannot be opened$`, tc.brokenDocument)
	sc.Step(`^no OCR engine is available$`, tc.noOCREngine)
	sc.Step(`^the OCR engine fails on page (\d+)$`, tc.ocrFailsOnPage)
	sc.Step(`^(\d+) OCR workers$`, tc.ocrWorkers)
	sc.Step(`^"([^"]*)" is also a date marker and "([^"]*)" an operation marker$`, tc.addHeaderMarkers)

	sc.Step(`^I extract the statement$`, tc.extractStatement)

	sc.Step(`^the extraction succeeds on the "([^"]*)" path$`, tc.extractionSucceedsOn)
	sc.Step(`^the extraction fails with code "([^"]*)"$`, tc.extractionFailsWith)
	sc.Step(`^the error mentions page (\d+)$`, tc.errorMentionsPage)
	sc.Step(`^the result has (\d+) pages?$`, tc.resultHasPages)
	sc.Step(`^the result has (\d+) structured rows?$`, tc.resultHasRows)
	sc.Step(`^the result has no structured rows$`, tc.resultHasNoRows)
	sc.Step(`^the structured rows are:$`, tc.structuredRowsAre)
	sc.Step(`^row (\d+) starts with "([^"]*)" and ends with "([^"]*)"$`, tc.rowStartsAndEnds)
	sc.Step(`^no row contains "([^"]*)"$`, tc.noRowContains)
	sc.Step(`^the full text contains "([^"]*)"$`, tc.fullTextContains)
	sc.Step(`^page (\d+) text is empty$`, tc.pageTextIsEmpty)
	sc.Step(`^no page was rendered$`, tc.noPageRendered)
	sc.Step(`^the document was closed$`, tc.documentClosed)
	sc.Step(`^progress was reported up to (\d+) of (\d+)$`, tc.progressReportedUpTo)
	sc.Step(`^progress never went backwards$`, tc.progressMonotonic)
}

func (tc *TestContext) textPage(tbl *godog.Table) error {
	var lines []string
	for i, row := range tbl.Rows {
		if i == 0 {
			continue
		}
		lines = append(lines, row.Cells[0].Value)
	}
	tc.Pages = append(tc.Pages, testutil.TextPage(lines...))
	return nil
}

func (tc *TestContext) scannedPage(tbl *godog.Table) error {
	var rows [][3]string
	for i, row := range tbl.Rows {
		if i == 0 {
			continue
		}
		if len(row.Cells) != 3 {
			return fmt.Errorf("expected date, description and amount columns, got %d", len(row.Cells))
		}
		rows = append(rows, [3]string{row.Cells[0].Value, row.Cells[1].Value, row.Cells[2].Value})
	}
	page := len(tc.Pages)
	tc.Pages = append(tc.Pages, testutil.ScannedPage())
	tc.Fragments[page] = testutil.StatementFragments("Account statement", rows...)
	return nil
}

func (tc *TestContext) blankScannedPage() error {
	tc.Pages = append(tc.Pages, testutil.ScannedPage())
	return nil
}

func (tc *TestContext) unrenderablePage() error {
	p := testutil.ScannedPage()
	p.RenderErr = errors.New("rasterizer crashed")
	tc.Pages = append(tc.Pages, p)
	return nil
}

func (tc *TestContext) brokenDocument() error {
	tc.OpenErr = fmt.Errorf("%w: missing xref table", extract.ErrInvalidDocument)
	return nil
}

func (tc *TestContext) noOCREngine() error {
	tc.NoOCR = true
	return nil
}

func (tc *TestContext) ocrFailsOnPage(page int) error {
	tc.OCRErrors[page-1] = errors.New("engine crashed")
	return nil
}

func (tc *TestContext) ocrWorkers(n int) error {
	tc.Config.Workers = n
	return nil
}

func (tc *TestContext) addHeaderMarkers(date, operation string) error {
	tc.PatternConf.DateMarkers = append(tc.PatternConf.DateMarkers, date)
	tc.PatternConf.OperationMarkers = append(tc.PatternConf.OperationMarkers, operation)
	return nil
}

func (tc *TestContext) extractStatement(ctx context.Context) error {
	return tc.Extract(ctx)
}

func (tc *TestContext) extractionSucceedsOn(path string) error {
	if tc.Err != nil {
		return fmt.Errorf("extraction failed: %w", tc.Err)
	}
	if tc.Result == nil {
		return errors.New("no result")
	}
	if string(tc.Result.Path) != path {
		return fmt.Errorf("expected path %q, got %q", path, tc.Result.Path)
	}
	return nil
}

func (tc *TestContext) extractionFailsWith(code string) error {
	if tc.Err == nil {
		return errors.New("expected extraction to fail")
	}
	if tc.Result != nil {
		return errors.New("a failed extraction must not return a partial result")
	}
	if got := extract.Code(tc.Err); got != code {
		return fmt.Errorf("expected code %q, got %q (%v)", code, got, tc.Err)
	}
	return nil
}

func (tc *TestContext) errorMentionsPage(page int) error {
	var ocrErr *extract.OCRError
	if !errors.As(tc.Err, &ocrErr) {
		return fmt.Errorf("expected an OCR error, got %v", tc.Err)
	}
	if ocrErr.Page != page {
		return fmt.Errorf("expected page %d, got %d", page, ocrErr.Page)
	}
	return nil
}

func (tc *TestContext) resultHasPages(n int) error {
	if tc.Result == nil {
		return errors.New("no result")
	}
	if tc.Result.Pages != n || len(tc.Result.PageTexts) != n {
		return fmt.Errorf("expected %d pages, got %d with %d page texts", n, tc.Result.Pages, len(tc.Result.PageTexts))
	}
	return nil
}

func (tc *TestContext) resultHasRows(n int) error {
	if tc.Result == nil {
		return errors.New("no result")
	}
	if got := len(tc.Result.StructuredRows); got != n {
		return fmt.Errorf("expected %d rows, got %d: %v", n, got, tc.Result.StructuredRows)
	}
	return nil
}

func (tc *TestContext) resultHasNoRows() error {
	return tc.resultHasRows(0)
}

func (tc *TestContext) structuredRowsAre(tbl *godog.Table) error {
	if tc.Result == nil {
		return errors.New("no result")
	}
	want := make([][]string, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = c.Value
		}
		want = append(want, cells)
	}
	got := tc.Result.StructuredRows
	if len(got) != len(want) {
		return fmt.Errorf("expected %d rows, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if strings.Join(got[i], "|") != strings.Join(want[i], "|") {
			return fmt.Errorf("row %d: expected %q, got %q", i+1, want[i], []string(got[i]))
		}
	}
	return nil
}

func (tc *TestContext) row(n int) ([]string, error) {
	if tc.Result == nil {
		return nil, errors.New("no result")
	}
	if n < 1 || n > len(tc.Result.StructuredRows) {
		return nil, fmt.Errorf("row %d does not exist (%d rows)", n, len(tc.Result.StructuredRows))
	}
	return tc.Result.StructuredRows[n-1], nil
}

func (tc *TestContext) rowStartsAndEnds(n int, first, last string) error {
	row, err := tc.row(n)
	if err != nil {
		return err
	}
	if row[0] != first || row[len(row)-1] != last {
		return fmt.Errorf("row %d is %q", n, row)
	}
	return nil
}

func (tc *TestContext) noRowContains(text string) error {
	if tc.Result == nil {
		return errors.New("no result")
	}
	for _, row := range tc.Result.StructuredRows {
		if strings.Contains(strings.Join(row, " "), text) {
			return fmt.Errorf("row %q contains %q", []string(row), text)
		}
	}
	return nil
}

func (tc *TestContext) fullTextContains(text string) error {
	if tc.Result == nil {
		return errors.New("no result")
	}
	if !strings.Contains(tc.Result.FullText, text) {
		return fmt.Errorf("full text does not contain %q:\n%s", text, tc.Result.FullText)
	}
	return nil
}

func (tc *TestContext) pageTextIsEmpty(page int) error {
	if tc.Result == nil {
		return errors.New("no result")
	}
	if page < 1 || page > len(tc.Result.PageTexts) {
		return fmt.Errorf("page %d does not exist", page)
	}
	if text := tc.Result.PageTexts[page-1]; text != "" {
		return fmt.Errorf("page %d text is %q", page, text)
	}
	return nil
}

func (tc *TestContext) noPageRendered() error {
	if calls := tc.Document.RenderCalls(); len(calls) > 0 {
		return fmt.Errorf("pages rendered: %v", calls)
	}
	return nil
}

func (tc *TestContext) documentClosed() error {
	if tc.Document == nil || !tc.Document.Closed() {
		return errors.New("document was not closed")
	}
	return nil
}

func (tc *TestContext) progressReportedUpTo(done, total int) error {
	calls := tc.Progress.Calls()
	if len(calls) == 0 {
		return errors.New("no progress reported")
	}
	last := calls[len(calls)-1]
	if last != [2]int{done, total} {
		return fmt.Errorf("last progress %v, expected [%d %d]", last, done, total)
	}
	return nil
}

func (tc *TestContext) progressMonotonic() error {
	prev := -1
	for _, c := range tc.Progress.Calls() {
		if c[0] < prev {
			return fmt.Errorf("progress went from %d to %d", prev, c[0])
		}
		prev = c[0]
	}
	return nil
}
