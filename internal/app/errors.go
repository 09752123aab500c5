package app

import "errors"

// ErrHookPanic marks a recovered panic raised by the interception hook.
var ErrHookPanic = errors.New("hook panicked")
