package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrSnapshotIntegrity     = errors.New("snapshot integrity check failed")
)
