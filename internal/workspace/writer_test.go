package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cortex-ai/cortex/internal/cortexerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPathAcceptsEveryCategory(t *testing.T) {
	for _, c := range Categories {
		assert.NoError(t, CheckPath(c+"/doc.md"), c)
	}
}

func TestCheckPathRefusesRootLevelWrite(t *testing.T) {
	err := CheckPath("NOTES.md")
	require.Error(t, err)
	assert.True(t, errors.Is(err, cortexerr.ErrBlockedByRule))

	ruleID, alternatives, ok := cortexerr.AsBlocked(err)
	require.True(t, ok)
	assert.Equal(t, "no_root_docs", ruleID)
	assert.Contains(t, alternatives, "reports/")
}

func TestCheckPathRefusesEscapesAndAbsolutePaths(t *testing.T) {
	for _, p := range []string{"../outside.md", "reports/../../etc/passwd", "/etc/passwd"} {
		err := CheckPath(p)
		assert.True(t, errors.Is(err, cortexerr.ErrBlockedByRule), p)
	}
}

func TestCheckPathRefusesUnknownCategory(t *testing.T) {
	err := CheckPath("scratch/doc.md")
	require.Error(t, err)
	assert.True(t, errors.Is(err, cortexerr.ErrBlockedByRule))
}

func TestWriteLandsUnderCategory(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	abs, err := w.Write("reports/out.md", []byte("# Report\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "reports", "out.md"), abs)

	data, err := os.ReadFile(abs)
	require.NoError(t, err)
	assert.Equal(t, "# Report\n", string(data))
}

func TestWriteRefusalLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	_, err := w.Write("root.md", []byte("nope"))
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	_, err := w.Write("analysis/deep-dive.md", []byte("body"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "analysis"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "deep-dive.md", entries[0].Name())
}
