package statestore

import (
	"context"

	"github.com/alanyang/annotation-desk/internal/domain/assignment"
)

//go:generate mockgen -destination=../../mocks/statestore.go -package=mocks -mock_names=Store=MockStateStore . Store

// Store persists the assignment table.
// Load returns assignment.ErrStateNotFound when nothing has been saved and
// assignment.ErrStateCorrupt when the stored document cannot be parsed.
type Store interface {
	Load(ctx context.Context) (assignment.Table, error)
	Save(ctx context.Context, t assignment.Table) error
}
