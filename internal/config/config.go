// Package config defines the dispatch engine configuration and its loaders.
//
// Conventions:
// - New returns a Config holding every default.
// - Loaders layer sources on top of New with koanf and unmarshal by the
//   koanf struct tags.
// - Loader and validation errors wrap this package's sentinel errors.
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/okian/komito/internal/adapters/backend"
	"github.com/okian/komito/internal/domain/event"
)

// Config contains page-lifetime configuration. The engine only reads it.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// DebugMode logs every backend call to the page console.
	DebugMode bool `koanf:"debug_mode"`

	// NonInteraction lists tokens whose events must not affect bounce rate.
	NonInteraction []string `koanf:"non_interaction"`

	// TrackingIDs restricts analytics.js dispatch to these properties.
	TrackingIDs []string `koanf:"tracking_ids"`

	// OnBeforeTrack names the page global holding the interception hook.
	OnBeforeTrack string `koanf:"on_before_track"`

	// PropIndex offsets the Adobe prop slots.
	PropIndex int `koanf:"prop_index"`

	// Gtag prefers gtag.js over analytics.js on pages that load both.
	Gtag bool `koanf:"gtag"`

	// GAObject overrides the analytics.js global name.
	GAObject string `koanf:"ga_object"`

	// Backends enables a subset of backends. Empty means all.
	Backends []string `koanf:"backends"`

	// Trackers holds the observer toggles (trackLinks, trackScroll...).
	// The engine passes them through to producers untouched.
	Trackers map[string]bool `koanf:"trackers"`

	// LazyProbe re-checks backend availability on every dispatch.
	LazyProbe bool `koanf:"lazy_probe"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		NonInteraction: slices.Clone(event.DefaultNonInteraction),
		Trackers: map[string]bool{
			"trackTwitter":   true,
			"trackFacebook":  true,
			"trackLinkedIn":  true,
			"trackDownloads": true,
			"trackOutbound":  true,
			"trackForms":     true,
			"trackUsers":     true,
			"trackActions":   true,
			"trackPrint":     true,
			"trackMedia":     true,
			"trackScroll":    true,
		},
		LazyProbe: true,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.PropIndex < 0 {
		return fmt.Errorf("%w: prop_index must not be negative, got %d", ErrInvalidConfig, c.PropIndex)
	}
	for _, name := range c.Backends {
		if !backend.Known(name) {
			return fmt.Errorf("%w: unknown backend %q (known: %s)",
				ErrInvalidConfig, name, strings.Join(backend.Names(), ", "))
		}
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// Settings returns the backend registry settings.
func (c *Config) Settings() backend.Settings {
	return backend.Settings{
		GAObject:    c.GAObject,
		TrackingIDs: c.TrackingIDs,
		PropIndex:   c.PropIndex,
		Gtag:        c.Gtag,
		Backends:    c.Backends,
	}
}
