package imageset

import "context"

//go:generate mockgen -destination=../../mocks/imageset.go -package=mocks -mock_names=Lister=MockImageLister . Lister

// Lister enumerates the eligible images in the base directory.
// A missing directory is reported as assignment.ErrStorageUnavailable.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}
