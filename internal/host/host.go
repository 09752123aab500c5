// Package host models the execution environment the dispatch engine runs in:
// a set of named globals, any of which may be absent, replaced at runtime or
// misbehaving. Backends are reached only through the capability interfaces
// declared here.
package host

import (
	"sort"
	"sync"
)

// Well-known global names.
const (
	GlobalUniversalGA = "ga"
	GlobalDataLayer   = "dataLayer"
	GlobalClassicGAT  = "_gat"
	GlobalClassicGAQ  = "_gaq"
	GlobalTagLoader   = "TagLoader"
	GlobalAppMeasure  = "s"
	GlobalClickTale   = "ClickTaleEvent"
	GlobalUtm         = "__utmTrackEvent"
	GlobalBaidu       = "_hmt"
	GlobalConsole     = "console"
	GlobalGAObject    = "GoogleAnalyticsObject"
	YandexPrefix      = "yaCounter"
)

// Env is a read view of the globals of the page.
type Env interface {
	// Lookup returns the global bound to name. ok is false when the name is
	// unbound or bound to null/undefined.
	Lookup(name string) (v any, ok bool)
	// Names lists the currently bound global names.
	Names() []string
}

// MapEnv is an in-memory Env. It is safe for concurrent use.
type MapEnv struct {
	mu      sync.RWMutex
	globals map[string]any
}

// NewMapEnv creates an empty environment.
func NewMapEnv() *MapEnv {
	return &MapEnv{globals: make(map[string]any)}
}

// Set binds name to v. Binding nil is the same as Delete.
func (e *MapEnv) Set(name string, v any) *MapEnv {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v == nil {
		delete(e.globals, name)
		return e
	}
	e.globals[name] = v
	return e
}

// Delete unbinds name.
func (e *MapEnv) Delete(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.globals, name)
}

// Lookup implements Env.
func (e *MapEnv) Lookup(name string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.globals[name]
	return v, ok
}

// Names implements Env. The result is sorted.
func (e *MapEnv) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.globals))
	for n := range e.globals {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// StringGlobal returns the global bound to name when it is a Go string.
func StringGlobal(env Env, name string) (string, bool) {
	v, ok := env.Lookup(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
