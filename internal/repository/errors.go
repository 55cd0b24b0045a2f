package repository

import "errors"

var (
	// ErrInvalidFileName indicates a file name with nothing usable left after sanitizing
	ErrInvalidFileName = errors.New("invalid file name")

	// ErrFrameNotFound indicates the processed frame was not found
	ErrFrameNotFound = errors.New("processed frame not found")

	// ErrRepositoryUnavailable indicates the underlying store failed
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
