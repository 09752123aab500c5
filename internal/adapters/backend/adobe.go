package backend

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/komito/internal/host"
)

const (
	linkTypeDownload = "d"
	linkTypeOther    = "o"
	categoryDownload = "download"
	categoryOutbound = "outbound"
)

// Adobe copies the event into sequential propN variables of an
// AppMeasurement instance created by the Tag Loader, then calls s.tl().
type Adobe struct {
	propIndex int
}

// NewAdobe creates the Adobe adapter. propIndex reserves the leading prop
// slots for other uses: with propIndex 2 the event lands in prop3..prop5.
func NewAdobe(propIndex int) *Adobe {
	if propIndex < 0 {
		propIndex = 0
	}
	return &Adobe{propIndex: propIndex}
}

// Name implements Adapter.
func (a *Adobe) Name() string { return NameAdobe }

// Args implements Adapter.
func (a *Adobe) Args(d Dispatch) []any {
	vars := make(map[string]any)
	for i, v := range d.Event.Fields() {
		vars[a.prop(i)] = v
	}
	return []any{"tl", linkType(d), d.Event.Kind.String(), vars}
}

// Available implements Adapter.
func (a *Adobe) Available(env host.Env) bool {
	_, ok := appMeasurement(env)
	return ok
}

// Send implements Adapter.
func (a *Adobe) Send(_ context.Context, d Dispatch, env host.Env) error {
	s, ok := appMeasurement(env)
	if !ok {
		return ErrUnavailable
	}

	fields := d.Event.Fields()
	keys := make([]string, len(fields))
	for i, v := range fields {
		keys[i] = a.prop(i)
		s.SetVar(keys[i], v)
	}
	s.SetVar("linkTrackEvents", "None")
	s.SetVar("linkTrackVars", strings.Join(keys, ","))

	if err := s.TrackLink(linkType(d), d.Event.Kind.String()); err != nil {
		return fmt.Errorf("adobe: tl: %w", err)
	}
	return nil
}

func (a *Adobe) prop(i int) string {
	return "prop" + strconv.Itoa(a.propIndex+i+1)
}

func linkType(d Dispatch) string {
	if d.Event.Category == categoryDownload {
		return linkTypeDownload
	}
	return linkTypeOther
}

func appMeasurement(env host.Env) (host.AppMeasurement, bool) {
	lv, ok := env.Lookup(host.GlobalTagLoader)
	if !ok {
		return nil, false
	}
	loader, ok := lv.(host.TagLoader)
	if !ok {
		return nil, false
	}
	sv, ok := env.Lookup(host.GlobalAppMeasure)
	if !ok {
		return nil, false
	}
	s, ok := sv.(host.AppMeasurement)
	if !ok || !loader.Constructed(sv) || !host.HasMethod(sv, "tl") {
		return nil, false
	}
	return s, true
}
