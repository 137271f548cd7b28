package imageset

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/alanyang/annotation-desk/internal/domain/artifact"
	"github.com/alanyang/annotation-desk/internal/domain/assignment"
	portimageset "github.com/alanyang/annotation-desk/internal/port/imageset"
)

var _ portimageset.Lister = (*Lister)(nil)

// Lister reads the image set from a single flat directory.
type Lister struct {
	dir string
}

func New(dir string) *Lister {
	return &Lister{dir: dir}
}

// List returns eligible image names sorted by name. Subdirectories are not
// descended into; symlinks count if they resolve to a regular file.
func (l *Lister) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", assignment.ErrStorageUnavailable, l.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !artifact.Eligible(e.Name()) {
			continue
		}
		if !l.isRegular(e) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

func (l *Lister) isRegular(e fs.DirEntry) bool {
	if e.Type().IsRegular() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(l.dir, e.Name()))
	return err == nil && info.Mode().IsRegular()
}
