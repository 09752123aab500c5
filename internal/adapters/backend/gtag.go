package backend

import (
	"context"
	"fmt"

	"github.com/okian/komito/internal/domain/event"
	"github.com/okian/komito/internal/host"
)

const socialShare = "share"

// Gtag pushes gtag.js "event" commands onto the data layer. When the data
// layer is missing or still empty it hands the event to the analytics.js
// adapter instead. Built by NewGoogle it tries analytics.js first and only
// uses the data layer on pages without a ga function.
type Gtag struct {
	fallback *Universal
	// gtagFirst is false when analytics.js is the preferred library.
	gtagFirst bool
}

// NewGtag creates the gtag.js adapter with its analytics.js fallback.
func NewGtag(fallback *Universal) *Gtag {
	return &Gtag{fallback: fallback, gtagFirst: true}
}

// NewGoogle creates the shared Google slot that prefers analytics.js and
// falls back to gtag.js.
func NewGoogle(universal *Universal) *Gtag {
	return &Gtag{fallback: universal}
}

func (g *Gtag) universalFirst() bool {
	return !g.gtagFirst && g.fallback != nil
}

// Name implements Adapter. The slot is named after the preferred library.
func (g *Gtag) Name() string {
	if g.universalFirst() {
		return NameUniversal
	}
	return NameGtag
}

// Args implements Adapter.
func (g *Gtag) Args(d Dispatch) []any {
	if g.universalFirst() {
		return g.fallback.Args(d)
	}
	return append([]any{"gtag"}, g.command(d)...)
}

// Available implements Adapter.
func (g *Gtag) Available(env host.Env) bool {
	if _, ok := dataLayer(env); ok {
		return true
	}
	return g.fallback != nil && g.fallback.Available(env)
}

// Send implements Adapter.
func (g *Gtag) Send(ctx context.Context, d Dispatch, env host.Env) error {
	if g.universalFirst() && g.fallback.Available(env) {
		return g.fallback.Send(ctx, d, env)
	}
	if dl, ok := dataLayer(env); ok {
		if err := dl.Push(g.command(d)); err != nil {
			return fmt.Errorf("gtag: push: %w", err)
		}
		return nil
	}
	if g.fallback == nil {
		return ErrUnavailable
	}
	return g.fallback.Send(ctx, d, env)
}

func (g *Gtag) command(d Dispatch) host.Arguments {
	e := d.Event
	if e.Kind == event.KindSocial && e.Action == socialShare {
		return host.Arguments{"event", socialShare, map[string]any{
			"method":        e.Category,
			"target":        e.Label,
			"social_target": e.Label,
		}}
	}
	return host.Arguments{"event", e.Action, map[string]any{
		"event_category":  e.Category,
		"event_label":     e.Label,
		"non_interaction": d.NonInteraction,
	}}
}

// dataLayer returns the gtag.js queue when it exists and already holds the
// snippet's bootstrap commands.
func dataLayer(env host.Env) (host.DataLayer, bool) {
	v, ok := env.Lookup(host.GlobalDataLayer)
	if !ok {
		return nil, false
	}
	dl, ok := v.(host.DataLayer)
	if !ok || !host.HasMethod(v, "push") || dl.Len() == 0 {
		return nil, false
	}
	return dl, true
}
