package storage

import (
	"context"
	"io"
	"time"
)

//go:generate mockgen -destination=../../mocks/storage.go -package=mocks -mock_names=Storage=MockStorage . Storage

// Info describes a stored file.
type Info struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Storage reads and writes artifacts by bare filename inside the image
// directory.
type Storage interface {
	// Stat returns artifact.ErrNotFound if name does not exist as a regular file.
	Stat(ctx context.Context, name string) (Info, error)
	Open(ctx context.Context, name string) (io.ReadCloser, Info, error)
	// Write replaces name with the contents of r.
	Write(ctx context.Context, name string, r io.Reader) error
}
