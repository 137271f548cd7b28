package storage_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/annotation-desk/internal/adapter/fs/storage"
	"github.com/alanyang/annotation-desk/internal/domain/artifact"
)

func TestStat(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("abc"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.xcf"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.xcf"), 0o755))
	s := storage.New(dir)
	ctx := context.Background()

	info, err := s.Stat(ctx, "a.png")
	require.NoError(t, err)
	assert.Equal(t, "a.png", info.Name)
	assert.Equal(t, int64(3), info.Size)
	assert.False(t, info.ModTime.IsZero())

	info, err = s.Stat(ctx, "empty.xcf")
	require.NoError(t, err, "zero-byte files still count as present")
	assert.Equal(t, int64(0), info.Size)

	_, err = s.Stat(ctx, "d.xcf")
	assert.True(t, errors.Is(err, artifact.ErrNotFound))

	_, err = s.Stat(ctx, "missing.png")
	assert.True(t, errors.Is(err, artifact.ErrNotFound))
}

func TestStat_RejectsPaths(t *testing.T) {
	s := storage.New(t.TempDir())
	for _, name := range []string{"", ".", "..", "../x.png", "sub/x.png"} {
		_, err := s.Stat(context.Background(), name)
		assert.True(t, errors.Is(err, storage.ErrInvalidName), "name %q", name)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("content"), 0o644))
	s := storage.New(dir)

	rc, info, err := s.Open(context.Background(), "a.png")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
	assert.Equal(t, int64(7), info.Size)

	_, _, err = s.Open(context.Background(), "b.png")
	assert.True(t, errors.Is(err, artifact.ErrNotFound))
}

func TestWrite_ReplacesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xcf"), []byte("old"), 0o644))
	s := storage.New(dir)

	require.NoError(t, s.Write(context.Background(), "a.xcf", strings.NewReader("new")))

	data, err := os.ReadFile(filepath.Join(dir, "a.xcf"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWrite_Failures(t *testing.T) {
	dir := t.TempDir()
	s := storage.New(dir)

	err := s.Write(context.Background(), "a.xcf", failingReader{})
	assert.True(t, errors.Is(err, artifact.ErrWriteFailure))
	_, statErr := os.Stat(filepath.Join(dir, "a.xcf"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))

	err = s.Write(context.Background(), "../escape.xcf", strings.NewReader("x"))
	assert.True(t, errors.Is(err, artifact.ErrWriteFailure))

	err = storage.New(filepath.Join(dir, "gone")).Write(context.Background(), "a.xcf", strings.NewReader("x"))
	assert.True(t, errors.Is(err, artifact.ErrWriteFailure))
}
