package dryrun

import "errors"

// Sentinel error kinds for this package.
var (
	ErrScenario = errors.New("invalid scenario")
	ErrMismatch = errors.New("expectation mismatch")
)
