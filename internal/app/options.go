package app

import (
	"github.com/okian/komito/internal/adapters/backend"
	"github.com/okian/komito/internal/config"
	"github.com/okian/komito/pkg/logger"
	"github.com/okian/komito/pkg/metrics"
)

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithConfig sets the configuration. The tracker keeps the pointer and
// never writes through it.
func WithConfig(cfg *config.Config) Option {
	return func(t *Tracker) {
		if cfg != nil {
			t.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the tracker.
func WithLogger(l logger.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithHook installs the interception hook run before every dispatch.
func WithHook(h Hook) Option {
	return func(t *Tracker) {
		t.hook = h
	}
}

// WithAdapters replaces the adapters built from configuration.
func WithAdapters(adapters ...backend.Adapter) Option {
	return func(t *Tracker) {
		t.adapters = adapters
		t.customAdapters = true
	}
}

// WithLazyProbe overrides the configured probing mode. With lazy probing
// every dispatch re-checks backend availability; without it the result of
// the last Probe is reused.
func WithLazyProbe(lazy bool) Option {
	return func(t *Tracker) {
		t.lazy = &lazy
	}
}

// WithMetrics records to m instead of the global metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(t *Tracker) {
		if m != nil {
			t.metrics = m
		}
	}
}
