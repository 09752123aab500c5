package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/komito/internal/domain/event"
	"github.com/okian/komito/internal/host"
)

// Classic drives ga.js: tracker objects from _gat when present, otherwise
// the _gaq command queue. A non-interaction event gets a bare trailing 1.
type Classic struct{}

// NewClassic creates the ga.js adapter.
func NewClassic() *Classic { return &Classic{} }

// Name implements Adapter.
func (c *Classic) Name() string { return NameClassic }

// Args implements Adapter.
func (c *Classic) Args(d Dispatch) []any {
	return []any(c.command(d))
}

func (c *Classic) command(d Dispatch) host.Command {
	method := "_trackEvent"
	if d.Event.Kind == event.KindSocial {
		method = "_trackSocial"
	}
	cmd := append(host.Command{method}, d.Event.Args()...)
	if d.NonInteraction {
		cmd = append(cmd, 1)
	}
	return cmd
}

// Available implements Adapter.
func (c *Classic) Available(env host.Env) bool {
	if _, ok := classicGAT(env); ok {
		return true
	}
	_, ok := classicGAQ(env)
	return ok
}

// Send implements Adapter.
func (c *Classic) Send(_ context.Context, d Dispatch, env host.Env) error {
	cmd := c.command(d)

	if gat, ok := classicGAT(env); ok {
		var trackers []host.ClassicTracker
		err := Safely(func() (err error) {
			trackers, err = gat.GetTrackers()
			return err
		})
		if err == nil && len(trackers) > 0 {
			return c.sendTrackers(trackers, d.Event.Kind, cmd[1:])
		}
	}

	gaq, ok := classicGAQ(env)
	if !ok {
		return ErrNoTrackers
	}
	if err := gaq.Push(cmd); err != nil {
		return fmt.Errorf("classic: _gaq.push: %w", err)
	}
	return nil
}

func (c *Classic) sendTrackers(trackers []host.ClassicTracker, kind event.Kind, args []any) error {
	var errs []error
	for i, t := range trackers {
		if t == nil {
			continue
		}
		err := Safely(func() error {
			if kind == event.KindSocial {
				return t.TrackSocial(args...)
			}
			return t.TrackEvent(args...)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("classic: tracker %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func classicGAT(env host.Env) (host.ClassicGA, bool) {
	v, ok := env.Lookup(host.GlobalClassicGAT)
	if !ok {
		return nil, false
	}
	gat, ok := v.(host.ClassicGA)
	if !ok || !host.HasMethod(v, "_getTrackers") {
		return nil, false
	}
	return gat, true
}

func classicGAQ(env host.Env) (host.Pusher, bool) {
	v, ok := env.Lookup(host.GlobalClassicGAQ)
	if !ok {
		return nil, false
	}
	gaq, ok := v.(host.Pusher)
	if !ok || !host.HasMethod(v, "push") {
		return nil, false
	}
	return gaq, true
}
