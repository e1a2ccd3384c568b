package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/table"
)

func sampleResult() *extract.Result {
	return &extract.Result{
		FullText:  "01.03.2024 Coffee\x00 4.50",
		PageTexts: []string{"01.03.2024 Coffee\x00 4.50", ""},
		StructuredRows: []table.StructuredRow{
			{"01.03.2024", "Coffee\x00", "4.50"},
		},
		Path:  table.PathDirect,
		Pages: 2,
	}
}

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{DatabaseURL: "  "}.Enabled())
	assert.True(t, Config{DatabaseURL: "postgres://localhost/stmtgrid"}.Enabled())
}

func TestDocumentRow(t *testing.T) {
	d := documentRow(Record{ID: "x", Result: sampleResult()})
	assert.Equal(t, StatusCompleted, d.status)
	assert.Equal(t, "direct", d.path)
	assert.Equal(t, 2, d.pages)
	assert.Equal(t, "01.03.2024 Coffee 4.50", d.fullText)
	assert.Equal(t, []string{"01.03.2024 Coffee 4.50", ""}, d.pageTexts)
	assert.Empty(t, d.errorCode)

	d = documentRow(Record{ID: "x", Err: fmt.Errorf("open: %w", extract.ErrNoTextFound)})
	assert.Equal(t, StatusFailed, d.status)
	assert.Equal(t, extract.CodeNoTextFound, d.errorCode)
	assert.Contains(t, d.errorMessage, "open")
	assert.NotNil(t, d.pageTexts)
}

func TestCellsForInsert(t *testing.T) {
	assert.Nil(t, cellsForInsert(nil))
	rows := cellsForInsert(sampleResult())
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"01.03.2024", "Coffee", "4.50"}, rows[0])
}

func TestDescribe(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, plain, describe(plain))

	err := describe(&pq.Error{Code: "23503", Message: "violates foreign key"})
	assert.Contains(t, err.Error(), "foreign_key_violation")
	var pqErr *pq.Error
	assert.ErrorAs(t, err, &pqErr)
}

func TestNewPostgresStore_RequiresURL(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), Config{})
	assert.Error(t, err)
}

// TestPostgresStore_RoundTrip needs a database; set STMTGRID_TEST_DATABASE_URL
// to run it.
func TestPostgresStore_RoundTrip(t *testing.T) {
	url := os.Getenv("STMTGRID_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("STMTGRID_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	store, err := NewPostgresStore(ctx, Config{DatabaseURL: url})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	require.NoError(t, store.Migrate(ctx))

	id := uuid.NewString()
	require.NoError(t, store.Save(ctx, Record{ID: id, JobID: "job-1", Filename: "a.pdf", Result: sampleResult()}))
	// saving again replaces the rows
	require.NoError(t, store.Save(ctx, Record{ID: id, JobID: "job-1", Filename: "a.pdf", Result: sampleResult()}))

	rows, err := store.Rows(ctx, id)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, table.StructuredRow{"01.03.2024", "Coffee", "4.50"}, rows[0])
}
