package logtail

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLines_ReturnsLastNLines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "d.log")
	content := strings.Repeat("line\n", 5) + "line6\n"
	require.NoError(t, os.WriteFile(logPath, []byte(content), 0o644))

	lines := Lines(logPath, 3)
	require.Len(t, lines, 3)
	assert.Equal(t, "line6", lines[2])
}

func TestLines_FewerLinesThanRequestedReturnsAll(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "d.log")
	require.NoError(t, os.WriteFile(logPath, []byte("one\ntwo\n"), 0o644))

	lines := Lines(logPath, 50)
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"one", "two"}, lines)
}

func TestLines_EmptyFileReturnsNil(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "empty.log")
	require.NoError(t, os.WriteFile(logPath, nil, 0o644))

	assert.Nil(t, Lines(logPath, 10))
}

func TestLines_MissingFileReturnsNil(t *testing.T) {
	assert.Nil(t, Lines(filepath.Join(t.TempDir(), "missing.log"), 10))
}

func TestLines_SpansMultipleChunks(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "big.log")
	var b strings.Builder
	for i := 0; i < 2000; i++ {
		b.WriteString("line of reasonable length to force multiple 4096-byte chunks\n")
	}
	require.NoError(t, os.WriteFile(logPath, []byte(b.String()), 0o644))

	lines := Lines(logPath, 10)
	require.Len(t, lines, 10)
	for _, line := range lines {
		assert.Contains(t, line, "line of reasonable length")
	}
}

func TestFromFile_SurfacesNothingOnCleanRead(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "d.log")
	content := "a\nb\nc\n"
	require.NoError(t, os.WriteFile(logPath, []byte(content), 0o644))

	f, err := os.Open(logPath)
	require.NoError(t, err)
	defer f.Close()

	stat, err := f.Stat()
	require.NoError(t, err)

	lines, err := FromFile(f, stat.Size(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, lines)
}
