package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "KOMITO_"
	// EnvConfigFile names the variable holding an optional YAML file path.
	EnvConfigFile = "KOMITO_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if KOMITO_CONFIG is set
//  3. env (prefix KOMITO_)
func Load(ctx context.Context) (*Config, error) {
	return LoadWithOverrides(ctx, nil)
}

// LoadWithOverrides is Load with one more layer on top, typically the page's
// _komito object after PageOverrides.
func LoadWithOverrides(_ context.Context, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(New().defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("%w: defaults: %w", ErrLoadConfig, err)
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: file %s: %w", ErrLoadConfig, path, err)
		}
	}

	// KOMITO_DEBUG_MODE -> debug_mode. Keys stay flat to match the koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("%w: overrides: %w", ErrLoadConfig, err)
		}
	}

	cfg := &Config{}
	conf := koanf.UnmarshalConf{
		Tag: "koanf",
		// Comma lists from env vars (KOMITO_BACKENDS=adobe,yandex) become slices.
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           cfg,
			WeaklyTypedInput: true,
			ZeroFields:       true,
		},
	}
	if err := k.UnmarshalWithConf("", cfg, conf); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaults flattens c into the first koanf layer, so that later layers
// replace lists instead of patching them element by element.
func (c *Config) defaults() map[string]any {
	m := map[string]any{
		"log_level":       c.LogLevel,
		"debug_mode":      c.DebugMode,
		"non_interaction": slices.Clone(c.NonInteraction),
		"tracking_ids":    slices.Clone(c.TrackingIDs),
		"on_before_track": c.OnBeforeTrack,
		"prop_index":      c.PropIndex,
		"gtag":            c.Gtag,
		"ga_object":       c.GAObject,
		"backends":        slices.Clone(c.Backends),
		"lazy_probe":      c.LazyProbe,
	}
	for name, on := range c.Trackers {
		m["trackers."+name] = on
	}
	return m
}

// pageKeys maps _komito option names to koanf keys.
var pageKeys = map[string]string{ //nolint:gochecknoglobals // static lookup table
	"debugMode":      "debug_mode",
	"nonInteraction": "non_interaction",
	"trackingIds":    "tracking_ids",
	"trackingId":     "tracking_ids",
	"onBeforeTrack":  "on_before_track",
	"propIndex":      "prop_index",
	"gtag":           "gtag",
	"gaObject":       "ga_object",
	"backends":       "backends",
	"lazyProbe":      "lazy_probe",
	"logLevel":       "log_level",
}

// PageOverrides converts a page configuration object (window._komito) into
// override keys. Observer toggles such as trackScroll land under trackers.
// Unknown keys are dropped.
func PageOverrides(page map[string]any) map[string]any {
	out := make(map[string]any, len(page))
	for key, v := range page {
		if v == nil {
			continue
		}
		if mapped, ok := pageKeys[key]; ok {
			out[mapped] = v
			continue
		}
		if strings.HasPrefix(key, "track") {
			out["trackers."+key] = v
		}
	}
	return out
}

// debugQuery matches a ?debug=1 switch in a page's query string.
var debugQuery = regexp.MustCompile(`[?&]debug=1`) //nolint:gochecknoglobals // compiled once

// QueryOverrides adds the query-string debug switch to page overrides:
// when search (location.search) carries debug=1 and the page did not set
// debugMode itself, debug mode is turned on. overrides is modified in place
// and returned.
func QueryOverrides(overrides map[string]any, search string) map[string]any {
	if overrides == nil {
		overrides = make(map[string]any, 1)
	}
	if _, set := overrides["debug_mode"]; set {
		return overrides
	}
	if debugQuery.MatchString(search) {
		overrides["debug_mode"] = true
	}
	return overrides
}
