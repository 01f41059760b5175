package shared

import "errors"

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStaleOrder indicates the order changed since it was read.
	ErrStaleOrder = errors.New("order version is stale")
	// ErrRepositoryUnavailable wraps store failures so callers can tell
	// them apart from domain rule failures.
	ErrRepositoryUnavailable = errors.New("repository unavailable")
	// ErrLockBusy indicates another caller holds the mutation lock.
	ErrLockBusy = errors.New("mutation lock busy")
)
