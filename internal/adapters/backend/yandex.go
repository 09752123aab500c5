package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/komito/internal/host"
)

// Yandex reports to every Yandex Metrica counter on the page. Outbound and
// download events go to the counter's dedicated link methods with the target
// URL alone; everything else becomes nested visit params.
type Yandex struct{}

// NewYandex creates the Yandex Metrica adapter.
func NewYandex() *Yandex { return &Yandex{} }

// Name implements Adapter.
func (y *Yandex) Name() string { return NameYandex }

// Args implements Adapter.
func (y *Yandex) Args(d Dispatch) []any {
	method, arg := y.call(d)
	return []any{method, arg}
}

func (y *Yandex) call(d Dispatch) (string, any) {
	switch d.Event.Category {
	case categoryOutbound:
		return "extLink", d.Event.Label
	case categoryDownload:
		return "file", d.Event.Label
	}
	return "params", yandexParams(d.Event.Legacy())
}

// yandexParams nests the tuple right to left: (a, b, c) -> {a: {b: c}}.
func yandexParams(fields []string) map[string]any {
	var v any = fields[len(fields)-1]
	for i := len(fields) - 2; i >= 0; i-- {
		v = map[string]any{fields[i]: v}
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{fields[0]: ""}
}

// Available implements Adapter.
func (y *Yandex) Available(env host.Env) bool {
	return len(yandexCounters(env)) > 0
}

// Send implements Adapter.
func (y *Yandex) Send(_ context.Context, d Dispatch, env host.Env) error {
	counters := yandexCounters(env)
	if len(counters) == 0 {
		return ErrUnavailable
	}

	method, arg := y.call(d)
	var errs []error
	for _, c := range counters {
		err := Safely(func() error {
			switch method {
			case "extLink":
				return c.counter.ExtLink(arg.(string))
			case "file":
				return c.counter.File(arg.(string))
			default:
				return c.counter.Params(arg.(map[string]any))
			}
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("yandex: %s.%s: %w", c.name, method, err))
		}
	}
	return errors.Join(errs...)
}

type namedCounter struct {
	name    string
	counter host.YandexCounter
}

// yandexCounters returns the yaCounterNNN globals in name order.
func yandexCounters(env host.Env) []namedCounter {
	names := env.Names()
	sort.Strings(names)

	var out []namedCounter
	for _, name := range names {
		if !isCounterName(name) {
			continue
		}
		v, ok := env.Lookup(name)
		if !ok {
			continue
		}
		c, ok := v.(host.YandexCounter)
		if !ok || !host.HasMethod(v, "params") {
			continue
		}
		out = append(out, namedCounter{name: name, counter: c})
	}
	return out
}

func isCounterName(name string) bool {
	id, ok := strings.CutPrefix(name, host.YandexPrefix)
	if !ok || id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}
