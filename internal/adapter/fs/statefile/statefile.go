package statefile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alanyang/annotation-desk/internal/domain/assignment"
	portstate "github.com/alanyang/annotation-desk/internal/port/statestore"
)

var _ portstate.Store = (*Store)(nil)

// Store keeps the assignment table in a human-readable JSON document.
type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load(_ context.Context) (assignment.Table, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return assignment.Table{}, assignment.ErrStateNotFound
		}
		return assignment.Table{}, fmt.Errorf("%w: read %s: %v", assignment.ErrStateCorrupt, s.path, err)
	}

	var t assignment.Table
	if err := json.Unmarshal(data, &t); err != nil {
		return assignment.Table{}, fmt.Errorf("%w: parse %s: %v", assignment.ErrStateCorrupt, s.path, err)
	}
	return t, nil
}

// Save writes the table to a temporary file next to the target and renames
// it into place so readers never see a partial document.
func (s *Store) Save(_ context.Context, t assignment.Table) error {
	data, err := json.MarshalIndent(t, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal assignments: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
