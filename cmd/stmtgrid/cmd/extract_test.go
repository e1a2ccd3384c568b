package cmd

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/stmtgrid/internal/batch"
	"github.com/MeKo-Tech/stmtgrid/internal/config"
	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/output"
	"github.com/MeKo-Tech/stmtgrid/internal/table"
	"github.com/MeKo-Tech/stmtgrid/internal/testutil"
	"github.com/MeKo-Tech/stmtgrid/internal/token"
)

// fakeService replaces the service factory with one serving doc through
// opener, and records the configuration it was built with.
func fakeService(t *testing.T, opener extract.Opener, rec extract.Recognizer) *config.Config {
	t.Helper()
	var seen config.Config
	prev := serviceFactory
	serviceFactory = func(cfg *config.Config, logger *slog.Logger) (*extract.Service, func(), error) {
		seen = *cfg
		patterns, err := table.NewPatterns(cfg.ToPatternsConfig())
		if err != nil {
			return nil, nil, err
		}
		orch := extract.NewOrchestrator(cfg.ToExtractConfig(), table.NewReconstructor(patterns), rec, logger)
		return extract.NewService(opener, orch, logger), func() {}, nil
	}
	t.Cleanup(func() { serviceFactory = prev })
	return &seen
}

func statementDoc() *testutil.FakeDocument {
	return testutil.NewFakeDocument(testutil.TextPage(
		"Account statement March",
		"01.03.2024 Coffee Shop 4.50",
		"02.03.2024 Book Store 12.00",
	))
}

func TestExtractCommand(t *testing.T) {
	dir := isolate(t)
	fakeService(t, testutil.FakeOpener{Doc: statementDoc()}, nil)
	path := testutil.WriteFile(t, dir, "march.pdf", []byte("%PDF-1.4"))

	out, _, err := execute(t, "extract", path, "--format", "csv", "--quiet")
	require.NoError(t, err)
	assert.Contains(t, out, "01.03.2024")
	assert.Contains(t, out, "02.03.2024")
	assert.NotContains(t, out, "Account statement")
}

func TestExtractCommandOutputFile(t *testing.T) {
	dir := isolate(t)
	fakeService(t, testutil.FakeOpener{Doc: statementDoc()}, nil)
	path := testutil.WriteFile(t, dir, "march.pdf", []byte("%PDF-1.4"))
	target := filepath.Join(dir, "out", "rows.json")

	out, stderr, err := execute(t, "extract", path, "-f", "json", "-o", target, "--stats")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NotEmpty(t, stderr)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"structured_rows"`)
	assert.Contains(t, string(data), `"path": "direct"`)
}

func TestExtractCommandDirectory(t *testing.T) {
	dir := isolate(t)
	fakeService(t, testutil.FakeOpener{Doc: statementDoc()}, nil)
	docs := filepath.Join(dir, "statements")
	testutil.WriteFile(t, docs, "a.pdf", []byte("%PDF-1.4"))
	testutil.WriteFile(t, docs, "b.pdf", []byte("%PDF-1.4"))
	testutil.WriteFile(t, docs, "notes.txt", []byte("ignored"))

	out, _, err := execute(t, "extract", docs, "-f", "json", "-q", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "a.pdf")
	assert.Contains(t, out, "b.pdf")
	assert.NotContains(t, out, "notes.txt")
}

func TestExtractCommandFailedDocument(t *testing.T) {
	dir := isolate(t)
	fakeService(t, testutil.FakeOpener{Err: fmt.Errorf("%w: bad header", extract.ErrInvalidDocument)}, nil)
	path := testutil.WriteFile(t, dir, "broken.pdf", []byte("nope"))

	out, _, err := execute(t, "extract", path, "-f", "json", "-q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 documents failed")
	assert.Contains(t, out, extract.CodeInvalidDocument)
}

func TestExtractCommandInvalidFlags(t *testing.T) {
	dir := isolate(t)
	fakeService(t, testutil.FakeOpener{Doc: statementDoc()}, nil)
	path := testutil.WriteFile(t, dir, "march.pdf", []byte("%PDF-1.4"))

	_, _, err := execute(t, "extract", path, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")

	_, _, err = execute(t, "extract")
	require.Error(t, err)

	_, _, err = execute(t, "extract", filepath.Join(dir, "missing.pdf"))
	require.Error(t, err)
}

func TestExtractCommandFlagOverrides(t *testing.T) {
	dir := isolate(t)
	seen := fakeService(t, testutil.FakeOpener{Doc: statementDoc()}, nil)
	path := testutil.WriteFile(t, dir, "march.pdf", []byte("%PDF-1.4"))

	_, _, err := execute(t, "extract", path, "-q", "--page-workers", "3", "--ocr-timeout", "5s", "--password", "pw")
	require.NoError(t, err)
	assert.Equal(t, 3, seen.Extraction.Workers)
	assert.Equal(t, "5s", seen.Extraction.OCRPageTimeout.String())
	assert.Equal(t, "pw", seen.PDF.UserPassword)
}

func TestExtractCommandDumpPages(t *testing.T) {
	dir := isolate(t)
	doc := testutil.NewFakeDocument(testutil.ScannedPage())
	rec := &testutil.FakeRecognizer{Fragments: map[int][]token.RawFragment{
		0: testutil.StatementFragments("Statement", [3]string{"01.03.2024", "Coffee Shop", "4.50"}),
	}}
	seen := fakeService(t, testutil.FakeOpener{Doc: doc}, rec)
	path := testutil.WriteFile(t, dir, "scan.pdf", []byte("%PDF-1.4"))
	dumpDir := filepath.Join(dir, "pages")

	_, _, err := execute(t, "extract", path, "-q", "--workers", "4", "--dump-pages", dumpDir)
	require.NoError(t, err)
	assert.Equal(t, 1, seen.Batch.Workers)
	assert.Empty(t, seen.Output.DumpDir)
	assert.FileExists(t, filepath.Join(dumpDir, "scan-page-001.tiff"))
}

func statementBatch() *batch.Result {
	res := &extract.Result{
		FullText:       "01.03.2024 Coffee Shop 4.50",
		StructuredRows: []table.StructuredRow{{"01.03.2024", "Coffee Shop", "4.50"}},
		Path:           table.PathDirect,
		Pages:          1,
	}
	return &batch.Result{Documents: []output.Document{
		output.NewDocument("statement.pdf", res, nil),
		output.NewDocument("scan.pdf", nil, extract.ErrNoTextFound),
	}}
}

func TestWriteExtractOutput(t *testing.T) {
	var buf bytes.Buffer
	res := statementBatch()
	require.NoError(t, writeExtractOutput(&buf, "", res, output.FormatText))
	assert.Contains(t, buf.String(), "statement.pdf")

	file := filepath.Join(t.TempDir(), "nested", "out.csv")
	require.NoError(t, writeExtractOutput(&buf, file, res, output.FormatCSV))
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "statement.pdf,01.03.2024,Coffee Shop,4.50\n", string(data))
}
