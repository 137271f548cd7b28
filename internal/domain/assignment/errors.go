package assignment

import "errors"

var (
	// ErrStorageUnavailable means the image base directory could not be listed.
	ErrStorageUnavailable = errors.New("image storage unavailable")

	// ErrStateNotFound means no persisted table exists yet.
	ErrStateNotFound = errors.New("assignment state not found")

	// ErrStateCorrupt means the persisted table could not be read or parsed.
	ErrStateCorrupt = errors.New("assignment state corrupt")

	// ErrMismatch means the persisted table references missing images or a
	// different set of workers than configured.
	ErrMismatch = errors.New("assignment state mismatch")

	ErrUnknownWorker = errors.New("unknown worker")
	ErrUnauthorized  = errors.New("file not assigned to worker")
)
