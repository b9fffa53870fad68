package logging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("unknown"))
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "divan.log")
	logger, closer, err := New(Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info().Str("event", "test").Msg("hello")
	logger.Debug().Msg("filtered out")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"test"`)
	assert.NotContains(t, string(data), "filtered out")
}

func TestRotatingWriterRotatesAndCompresses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "divan.log")

	w, err := NewRotatingWriter(path, RotationConfig{
		Enabled:     true,
		MaxSizeMB:   1,
		MaxArchives: 2,
		Compress:    true,
	})
	require.NoError(t, err)
	defer w.Close()

	line := bytes.Repeat([]byte("x"), 64*1024)
	line[len(line)-1] = '\n'
	for i := 0; i < 40; i++ { // ~2.5 MB total, forces at least one rotation
		_, err := w.Write(line)
		require.NoError(t, err)
	}

	archives, err := w.Archives()
	require.NoError(t, err)
	require.NotEmpty(t, archives)
	assert.LessOrEqual(t, len(archives), 2)

	// Archives must be valid gzip streams of the original content.
	f, err := os.Open(archives[0])
	require.NoError(t, err)
	defer f.Close()
	require.True(t, strings.HasSuffix(archives[0], ".gz"))

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	content, err := io.ReadAll(gz)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	assert.NotEmpty(t, content)
	assert.Equal(t, byte('x'), content[0])
}

func TestRotatingWriterPrunes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "divan.log")

	w, err := NewRotatingWriter(path, RotationConfig{
		Enabled:     true,
		MaxSizeMB:   1,
		MaxArchives: 1,
		Compress:    false,
	})
	require.NoError(t, err)
	defer w.Close()

	chunk := bytes.Repeat([]byte("y"), 512*1024)
	for i := 0; i < 10; i++ { // several rotations
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	archives, err := w.Archives()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(archives), 1)
}

func TestRotatingWriterCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "divan.log")
	w, err := NewRotatingWriter(path, RotationConfig{Enabled: true, MaxSizeMB: 1})
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late"))
	require.ErrorIs(t, err, os.ErrClosed)
}

func TestRotatingWriterRejectsZeroSize(t *testing.T) {
	_, err := NewRotatingWriter(filepath.Join(t.TempDir(), "x.log"), RotationConfig{Enabled: true})
	require.Error(t, err)
}
