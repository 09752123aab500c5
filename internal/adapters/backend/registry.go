package backend

import (
	"fmt"
	"slices"
)

// Settings carries the per-backend configuration bound at build time.
type Settings struct {
	// GAObject overrides the analytics.js global name.
	GAObject string
	// TrackingIDs restricts analytics.js fan-out when non-empty.
	TrackingIDs []string
	// PropIndex offsets the Adobe prop slots.
	PropIndex int
	// Gtag prefers gtag.js over analytics.js when a page has both.
	Gtag bool
	// Backends enables a subset by name. Empty enables all of them.
	Backends []string
}

// Names returns every backend name in dispatch order.
func Names() []string {
	return []string{
		NameUniversal,
		NameGtag,
		NameAdobe,
		NameClickTale,
		NameUtm,
		NameBaidu,
		NameClassic,
		NameYandex,
	}
}

// Known reports whether name is a backend name.
func Known(name string) bool {
	return slices.Contains(Names(), name)
}

// Build assembles the enabled adapters in dispatch order. Universal and
// gtag share the first slot. With both enabled the slot serves either
// library, preferring gtag.js when s.Gtag is set; naming only gtag in
// s.Backends leaves the slot to gtag.js alone.
func Build(s Settings) ([]Adapter, error) {
	for _, name := range s.Backends {
		if !Known(name) {
			return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
		}
	}
	enabled := func(name string) bool {
		return len(s.Backends) == 0 || slices.Contains(s.Backends, name)
	}

	var out []Adapter
	universal := NewUniversal(s.GAObject, s.TrackingIDs)
	useUniversal := enabled(NameUniversal)
	useGtag := enabled(NameGtag) || (s.Gtag && useUniversal)
	switch {
	case useGtag && useUniversal && s.Gtag:
		out = append(out, NewGtag(universal))
	case useGtag && useUniversal:
		out = append(out, NewGoogle(universal))
	case useGtag:
		out = append(out, NewGtag(nil))
	case useUniversal:
		out = append(out, universal)
	}
	if enabled(NameAdobe) {
		out = append(out, NewAdobe(s.PropIndex))
	}
	if enabled(NameClickTale) {
		out = append(out, NewClickTale())
	}
	if enabled(NameUtm) {
		out = append(out, NewUtm())
	}
	if enabled(NameBaidu) {
		out = append(out, NewBaidu())
	}
	if enabled(NameClassic) {
		out = append(out, NewClassic())
	}
	if enabled(NameYandex) {
		out = append(out, NewYandex())
	}
	return out, nil
}
