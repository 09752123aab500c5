package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/komito/internal/host"
)

// Universal sends to every analytics.js tracker returned by ga.getAll().
type Universal struct {
	object      string
	trackingIDs map[string]struct{}
}

// NewUniversal creates the analytics.js adapter. object overrides the global
// name of the ga function; when empty the page's GoogleAnalyticsObject is
// honoured, then "ga". A non-empty trackingIDs restricts the fan-out to
// trackers with those ids.
func NewUniversal(object string, trackingIDs []string) *Universal {
	u := &Universal{object: object}
	if len(trackingIDs) > 0 {
		u.trackingIDs = make(map[string]struct{}, len(trackingIDs))
		for _, id := range trackingIDs {
			u.trackingIDs[id] = struct{}{}
		}
	}
	return u
}

// Name implements Adapter.
func (u *Universal) Name() string { return NameUniversal }

// Args implements Adapter.
func (u *Universal) Args(d Dispatch) []any {
	return append([]any{"send"}, u.sendArgs(d)...)
}

func (u *Universal) sendArgs(d Dispatch) []any {
	args := append([]any{d.Event.Kind.String()}, d.Event.Args()...)
	if d.NonInteraction {
		args = append(args, map[string]any{"nonInteraction": 1})
	}
	return args
}

// Available implements Adapter.
func (u *Universal) Available(env host.Env) bool {
	_, ok := u.lookup(env)
	return ok
}

func (u *Universal) globalName(env host.Env) string {
	if u.object != "" {
		return u.object
	}
	if name, ok := host.StringGlobal(env, host.GlobalGAObject); ok && name != "" {
		return name
	}
	return host.GlobalUniversalGA
}

func (u *Universal) lookup(env host.Env) (host.UniversalGA, bool) {
	v, ok := env.Lookup(u.globalName(env))
	if !ok {
		return nil, false
	}
	ga, ok := v.(host.UniversalGA)
	if !ok || !host.IsCallable(v) || !host.HasMethod(v, "getAll") {
		return nil, false
	}
	return ga, true
}

// Send implements Adapter. A failing tracker does not stop the others.
func (u *Universal) Send(_ context.Context, d Dispatch, env host.Env) error {
	ga, ok := u.lookup(env)
	if !ok {
		return ErrUnavailable
	}

	var trackers []host.UniversalTracker
	if err := Safely(func() (err error) {
		trackers, err = ga.GetAll()
		return err
	}); err != nil {
		return fmt.Errorf("universal: getAll: %w", err)
	}
	trackers = u.selectTrackers(trackers)
	if len(trackers) == 0 {
		return ErrNoTrackers
	}

	args := u.sendArgs(d)
	var errs []error
	for _, t := range trackers {
		if err := Safely(func() error { return t.Send(args...) }); err != nil {
			errs = append(errs, fmt.Errorf("universal: tracker %q: %w", t.TrackingID(), err))
		}
	}
	return errors.Join(errs...)
}

// selectTrackers applies the tracking-id allowlist, then keeps the first
// tracker of every tracking id. Trackers without an id are always kept.
func (u *Universal) selectTrackers(in []host.UniversalTracker) []host.UniversalTracker {
	out := make([]host.UniversalTracker, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		if t == nil {
			continue
		}
		id := t.TrackingID()
		if u.trackingIDs != nil {
			if _, ok := u.trackingIDs[id]; !ok {
				continue
			}
		}
		if id != "" {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		out = append(out, t)
	}
	return out
}
