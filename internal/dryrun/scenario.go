// Package dryrun replays tracking calls from a scenario file against stub
// backends and reports every backend call the engine makes. Page owners use
// it to check a configuration without a browser.
package dryrun

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/okian/komito/internal/adapters/backend"
)

// Failure modes a stub backend can be told to simulate.
const (
	FailNone  = ""
	FailError = "error"
	FailPanic = "panic"
)

// Scenario describes the page under test and the calls to replay.
type Scenario struct {
	Name string `koanf:"name"`
	// Config uses the engine's configuration keys (debug_mode, tracking_ids...).
	Config map[string]any `koanf:"config"`
	// Backends lists the stub globals to install, by backend name.
	Backends map[string]BackendSpec `koanf:"backends"`
	// Veto lists categories the interception hook cancels.
	Veto []string `koanf:"veto"`
	// Redact replaces every label with this value in the hook when set.
	Redact string `koanf:"redact"`
	Calls  []Call `koanf:"calls"`
}

// BackendSpec configures one stub backend.
type BackendSpec struct {
	// Trackers are analytics.js tracking ids, or ga.js tracker names. A
	// classic backend without trackers is installed as the _gaq queue only.
	Trackers []string `koanf:"trackers"`
	// Counters are Yandex Metrica counter ids.
	Counters []string `koanf:"counters"`
	// Fail makes the stub return an error or panic on every call.
	Fail string `koanf:"fail"`
}

// Call is one producer track call.
type Call struct {
	Type int      `koanf:"type"`
	Args []string `koanf:"args"`
	// Expect lists the backends that must receive the call. Nil skips the
	// check; an empty list expects no delivery.
	Expect []string `koanf:"expect"`
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrScenario, path, err)
	}
	return fromKoanf(k)
}

// ParseScenario decodes a YAML scenario held in memory.
func ParseScenario(data []byte) (*Scenario, error) {
	raw, err := yaml.Parser().Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScenario, err)
	}
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(raw, ""), nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScenario, err)
	}
	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Scenario, error) {
	var sc Scenario
	if err := k.UnmarshalWithConf("", &sc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScenario, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks backend names, failure modes and calls.
func (s *Scenario) Validate() error {
	if len(s.Calls) == 0 {
		return fmt.Errorf("%w: no calls", ErrScenario)
	}
	for name, spec := range s.Backends {
		if !backend.Known(name) {
			return fmt.Errorf("%w: unknown backend %q", ErrScenario, name)
		}
		switch spec.Fail {
		case FailNone, FailError, FailPanic:
		default:
			return fmt.Errorf("%w: backend %s: unknown failure mode %q", ErrScenario, name, spec.Fail)
		}
	}
	for i, c := range s.Calls {
		if len(c.Args) < 2 || len(c.Args) > 3 {
			return fmt.Errorf("%w: call %d: want 2 or 3 args, got %d", ErrScenario, i+1, len(c.Args))
		}
	}
	return nil
}
