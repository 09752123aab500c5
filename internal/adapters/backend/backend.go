// Package backend translates the canonical tracking event into the call
// convention of each third-party analytics surface.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/komito/internal/domain/event"
	"github.com/okian/komito/internal/host"
)

// Backend names, as used in configuration, logs and metrics.
const (
	NameUniversal = "universal"
	NameGtag      = "gtag"
	NameAdobe     = "adobe"
	NameClickTale = "clicktale"
	NameUtm       = "utm"
	NameBaidu     = "baidu"
	NameClassic   = "classic"
	NameYandex    = "yandex"
)

// Dispatch is the per-call input of an adapter. It lives on the caller's
// stack and is never retained.
type Dispatch struct {
	Event          event.Event
	NonInteraction bool
}

// Adapter maps a Dispatch onto one analytics backend.
type Adapter interface {
	// Name identifies the backend.
	Name() string
	// Args returns the call the adapter would make, method name first, for
	// debug logging. It must not touch the host.
	Args(d Dispatch) []any
	// Available probes env for the backend without side effects.
	Available(env host.Env) bool
	// Send delivers d. Failures are returned, never panicked.
	Send(ctx context.Context, d Dispatch, env host.Env) error
}

// Safely runs fn and converts a panic raised inside it into an error
// wrapping ErrBackendPanic.
func Safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrBackendPanic, r)
		}
	}()
	return fn()
}

// Available wraps a.Available so that a host panicking during the probe
// reads as "not available".
func Available(a Adapter, env host.Env) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return a.Available(env)
}

// IsPanic reports whether err came from a recovered panic.
func IsPanic(err error) bool {
	return errors.Is(err, ErrBackendPanic)
}
