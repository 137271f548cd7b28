package statefile_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/annotation-desk/internal/adapter/fs/statefile"
	"github.com/alanyang/annotation-desk/internal/domain/assignment"
)

func TestLoad_Missing(t *testing.T) {
	s := statefile.New(filepath.Join(t.TempDir(), "assignments.json"))
	_, err := s.Load(context.Background())
	assert.True(t, errors.Is(err, assignment.ErrStateNotFound))
}

func TestLoad_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "{not json"},
		{name: "wrong shape", content: `["a.png"]`},
		{name: "null", content: "null"},
		{name: "empty", content: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "assignments.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := statefile.New(path).Load(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, assignment.ErrStateCorrupt))
		})
	}
}

func TestLoad_UnreadableIsCorrupt(t *testing.T) {
	// A directory at the state path cannot be read as a file.
	path := filepath.Join(t.TempDir(), "assignments.json")
	require.NoError(t, os.Mkdir(path, 0o755))

	_, err := statefile.New(path).Load(context.Background())
	assert.True(t, errors.Is(err, assignment.ErrStateCorrupt))
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "assignments.json")
	s := statefile.New(path)

	workers := []assignment.Worker{{Name: "Zed", Quota: 1}, {Name: "Amy", Quota: 1}}
	table := assignment.Partition([]string{"b.png", "a.png"}, workers)
	require.NoError(t, s.Save(ctx, table))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"Zed\": [\n        \"b.png\"\n    ],\n    \"Amy\": [\n        \"a.png\"\n    ]\n}\n", string(data))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	files, ok := got.Assigned("Zed")
	require.True(t, ok)
	assert.Equal(t, []string{"b.png"}, files)
	assert.Equal(t, 2, got.Total())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestSave_Overwrites(t *testing.T) {
	ctx := context.Background()
	s := statefile.New(filepath.Join(t.TempDir(), "assignments.json"))
	workers := []assignment.Worker{{Name: "Amy", Quota: 5}}

	require.NoError(t, s.Save(ctx, assignment.Partition([]string{"a.png"}, workers)))
	require.NoError(t, s.Save(ctx, assignment.Partition([]string{"b.png", "c.png"}, workers)))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	files, _ := got.Assigned("Amy")
	assert.Equal(t, []string{"b.png", "c.png"}, files)
}

func TestSave_MissingDirectory(t *testing.T) {
	s := statefile.New(filepath.Join(t.TempDir(), "gone", "assignments.json"))
	err := s.Save(context.Background(), assignment.Empty([]assignment.Worker{{Name: "Amy"}}))
	assert.Error(t, err)
}
