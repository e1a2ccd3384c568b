package batch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/stmtgrid/internal/testutil"
)

func TestDiscoverFiles_EmptyArgs(t *testing.T) {
	files, err := discoverFiles([]string{}, false, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverFiles_ExplicitFiles(t *testing.T) {
	dir := t.TempDir()
	pdf := testutil.WriteFile(t, dir, "march.pdf", []byte("%PDF-1.4"))
	txt := testutil.WriteFile(t, dir, "notes.txt", []byte("text"))

	// explicit files are taken as given, even without a .pdf suffix
	files, err := discoverFiles([]string{pdf, txt}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{pdf, txt}, files)

	files, err = discoverFiles([]string{pdf, txt}, false, nil, []string{"*.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{pdf}, files)
}

func TestDiscoverFiles_Directory(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WriteFile(t, dir, "a.pdf", nil)
	b := testutil.WriteFile(t, dir, "B.PDF", nil)
	testutil.WriteFile(t, dir, "c.png", nil)

	files, err := discoverFiles([]string{dir}, false, nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, files)
}

func TestDiscoverFiles_Recursive(t *testing.T) {
	dir := t.TempDir()
	root := testutil.WriteFile(t, dir, "root.pdf", nil)
	sub := testutil.WriteFile(t, dir, filepath.Join("2024", "sub.pdf"), nil)

	files, err := discoverFiles([]string{dir}, true, nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{root, sub}, files)

	files, err = discoverFiles([]string{dir}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{root}, files)
}

func TestDiscoverFiles_IncludeExclude(t *testing.T) {
	dir := t.TempDir()
	jan := testutil.WriteFile(t, dir, "stmt-jan.pdf", nil)
	testutil.WriteFile(t, dir, "stmt-feb-draft.pdf", nil)
	testutil.WriteFile(t, dir, "invoice.pdf", nil)

	files, err := discoverFiles([]string{dir}, false, []string{"stmt-*"}, []string{"*draft*"})
	require.NoError(t, err)
	assert.Equal(t, []string{jan}, files)
}

func TestDiscoverFiles_Missing(t *testing.T) {
	files, err := discoverFiles([]string{"/nonexistent/directory"}, false, nil, nil)
	require.Error(t, err)
	assert.Nil(t, files)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestMatchesAnyPattern(t *testing.T) {
	testCases := []struct {
		filename string
		patterns []string
		expected bool
	}{
		{"stmt.pdf", nil, false},
		{"stmt.pdf", []string{"*.pdf"}, true},
		{"STMT.PDF", []string{"*.pdf"}, true},
		{"/a/b/stmt.pdf", []string{"stmt.*"}, true},
		{"stmt.png", []string{"*.pdf", "*.tif"}, false},
	}

	for _, tc := range testCases {
		result := matchesAnyPattern(tc.filename, tc.patterns)
		assert.Equal(t, tc.expected, result, "filename=%s, patterns=%v", tc.filename, tc.patterns)
	}
}
