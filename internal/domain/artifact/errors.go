package artifact

import "errors"

var (
	ErrNotFound            = errors.New("file not found")
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
	ErrNoFiles             = errors.New("no files selected for upload")
	ErrWriteFailure        = errors.New("write failed")
)
