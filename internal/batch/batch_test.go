package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/progress"
	"github.com/MeKo-Tech/stmtgrid/internal/table"
	"github.com/MeKo-Tech/stmtgrid/internal/testutil"
)

// fakeExtractor returns a result per file name; names listed in fail return
// an invalid document error.
type fakeExtractor struct {
	fail  map[string]bool
	delay time.Duration

	mu    sync.Mutex
	calls []string
}

func (f *fakeExtractor) ProcessFile(ctx context.Context, path string, cb progress.Callback) (*extract.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	name := filepath.Base(path)
	if f.fail[name] {
		return nil, fmt.Errorf("%s: %w", name, extract.ErrInvalidDocument)
	}
	if cb != nil {
		cb.OnProgress(1, 1)
	}
	return &extract.Result{
		FullText:       name,
		PageTexts:      []string{name},
		StructuredRows: []table.StructuredRow{{"01.01.2024", name}},
		Path:           table.PathDirect,
		Pages:          1,
	}, nil
}

func writeStatements(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		testutil.WriteFile(t, dir, n, []byte("%PDF-1.4"))
	}
	return dir
}

func TestProcess_NoFiles(t *testing.T) {
	result, err := Process(context.Background(), &fakeExtractor{}, []string{t.TempDir()}, &Config{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "no PDF files found")
}

func TestProcess_MissingPath(t *testing.T) {
	result, err := Process(context.Background(), &fakeExtractor{}, []string{"/nonexistent/file.pdf"}, &Config{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestProcess_OrderAndFailures(t *testing.T) {
	dir := writeStatements(t, "a.pdf", "b.pdf", "c.pdf", "d.pdf")
	ex := &fakeExtractor{fail: map[string]bool{"b.pdf": true}}
	rec := &testutil.Recorder{}

	result, err := Process(context.Background(), ex, []string{dir}, &Config{Workers: 3, Progress: rec})
	require.NoError(t, err)
	require.Len(t, result.Documents, 4)

	for i, name := range []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"} {
		assert.Equal(t, name, filepath.Base(result.Documents[i].File))
	}
	assert.Equal(t, extract.CodeInvalidDocument, result.Documents[1].Code)
	assert.Nil(t, result.Documents[1].Result)
	assert.Equal(t, 1, result.Failed())
	assert.Equal(t, 3, result.Rows())
	assert.Equal(t, 3, result.WorkerCount)

	calls := rec.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, [2]int{4, 4}, calls[3])
}

func TestProcess_FailFast(t *testing.T) {
	dir := writeStatements(t, "a.pdf", "b.pdf", "c.pdf")
	ex := &fakeExtractor{fail: map[string]bool{"a.pdf": true}}

	result, err := Process(context.Background(), ex, []string{dir}, &Config{Workers: 1, FailFast: true})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, extract.ErrInvalidDocument)
	assert.Contains(t, err.Error(), "a.pdf")
}

func TestProcess_PageProgressSingleWorker(t *testing.T) {
	dir := writeStatements(t, "a.pdf", "b.pdf")
	var mu sync.Mutex
	seen := map[string]int{}

	cfg := &Config{
		Workers: 1,
		PageProgress: func(file string) progress.Callback {
			return progress.Func(func(done, total int) {
				mu.Lock()
				seen[filepath.Base(file)]++
				mu.Unlock()
			})
		},
	}
	_, err := Process(context.Background(), &fakeExtractor{}, []string{dir}, cfg)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a.pdf": 1, "b.pdf": 1}, seen)
}

func TestProcess_Canceled(t *testing.T) {
	dir := writeStatements(t, "a.pdf", "b.pdf", "c.pdf")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Process(ctx, &fakeExtractor{delay: time.Second}, []string{dir}, &Config{Workers: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
