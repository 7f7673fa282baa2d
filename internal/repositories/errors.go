package repositories

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrIndexUnavailable is returned when the store cannot serve a compound ordering.
	ErrIndexUnavailable = errors.New("query requires an index that is not available")
)
