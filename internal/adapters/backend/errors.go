package backend

import "errors"

// Sentinel kinds for backend errors.
var (
	ErrUnavailable  = errors.New("backend unavailable")
	ErrBackendPanic = errors.New("backend panicked")
	ErrNoTrackers   = errors.New("no trackers")
	ErrUnknown      = errors.New("unknown backend")
)
