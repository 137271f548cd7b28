package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alanyang/annotation-desk/internal/domain/artifact"
	portstorage "github.com/alanyang/annotation-desk/internal/port/storage"
)

var _ portstorage.Storage = (*Storage)(nil)

var ErrInvalidName = errors.New("invalid file name")

// Storage serves artifacts from the image directory. Names are bare
// filenames; anything with a path component is rejected.
type Storage struct {
	dir string
}

func New(dir string) *Storage {
	return &Storage{dir: dir}
}

func (s *Storage) resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *Storage) Stat(_ context.Context, name string) (portstorage.Info, error) {
	path, err := s.resolve(name)
	if err != nil {
		return portstorage.Info{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return portstorage.Info{}, fmt.Errorf("%w: %s", artifact.ErrNotFound, name)
		}
		return portstorage.Info{}, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		return portstorage.Info{}, fmt.Errorf("%w: %s is a directory", artifact.ErrNotFound, name)
	}
	return portstorage.Info{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (s *Storage) Open(ctx context.Context, name string) (io.ReadCloser, portstorage.Info, error) {
	info, err := s.Stat(ctx, name)
	if err != nil {
		return nil, portstorage.Info{}, err
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, portstorage.Info{}, fmt.Errorf("%w: %s", artifact.ErrNotFound, name)
		}
		return nil, portstorage.Info{}, fmt.Errorf("open %s: %w", name, err)
	}
	return f, info, nil
}

// Write streams r into a hidden temporary file and renames it over name.
// The hidden prefix keeps half-written uploads out of the image set.
func (s *Storage) Write(_ context.Context, name string, r io.Reader) error {
	path, err := s.resolve(name)
	if err != nil {
		return fmt.Errorf("%w: %v", artifact.ErrWriteFailure, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", artifact.ErrWriteFailure, name, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: copy %s: %v", artifact.ErrWriteFailure, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", artifact.ErrWriteFailure, name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("%w: chmod %s: %v", artifact.ErrWriteFailure, name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", artifact.ErrWriteFailure, name, err)
	}
	return nil
}
