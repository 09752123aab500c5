// Package stub provides recording implementations of every host capability.
// Each stub records its calls and can be told to fail with an error or a
// panic, which is how a misbehaving third-party SDK looks from Go.
package stub

import (
	"sync"

	"github.com/okian/komito/internal/host"
)

// Call is one recorded method invocation.
type Call struct {
	Method string
	Args   []any
}

// Recorder stores calls made on a stub.
type Recorder struct {
	mu    sync.Mutex
	calls []Call

	// Err is returned by every recorded call when set.
	Err error
	// Panic is raised by every recorded call when non-nil.
	Panic any
	// OnCall runs after a call is recorded and before Err/Panic apply.
	OnCall func(c Call)
}

func (r *Recorder) record(method string, args ...any) error {
	c := Call{Method: method, Args: append([]any(nil), args...)}
	r.mu.Lock()
	r.calls = append(r.calls, c)
	onCall, p, err := r.OnCall, r.Panic, r.Err
	r.mu.Unlock()

	if onCall != nil {
		onCall(c)
	}
	if p != nil {
		panic(p)
	}
	return err
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Count returns the number of recorded calls.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Reset forgets recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// Console records Log calls.
type Console struct{ Recorder }

// Log implements host.Console.
func (c *Console) Log(args ...any) { _ = c.record("log", args...) }

// UniversalTracker is an analytics.js tracker.
type UniversalTracker struct {
	Recorder
	ID string
}

// TrackingID implements host.UniversalTracker.
func (t *UniversalTracker) TrackingID() string { return t.ID }

// Send implements host.UniversalTracker.
func (t *UniversalTracker) Send(args ...any) error { return t.record("send", args...) }

// UniversalGA is the window.ga function.
type UniversalGA struct {
	Trackers []*UniversalTracker
	// GetAllErr is returned by GetAll when set.
	GetAllErr error
}

// NewUniversalGA creates a ga stub with one tracker per tracking id.
func NewUniversalGA(ids ...string) *UniversalGA {
	g := &UniversalGA{}
	for _, id := range ids {
		g.Trackers = append(g.Trackers, &UniversalTracker{ID: id})
	}
	return g
}

// GetAll implements host.UniversalGA.
func (g *UniversalGA) GetAll() ([]host.UniversalTracker, error) {
	if g.GetAllErr != nil {
		return nil, g.GetAllErr
	}
	out := make([]host.UniversalTracker, len(g.Trackers))
	for i, t := range g.Trackers {
		out[i] = t
	}
	return out, nil
}

// Sends returns the total number of send calls across trackers.
func (g *UniversalGA) Sends() int {
	n := 0
	for _, t := range g.Trackers {
		n += t.Count()
	}
	return n
}

// Queue is an array-like command queue (_gaq, _hmt, dataLayer).
type Queue struct {
	Recorder
	items []any
}

// NewQueue creates a queue pre-filled with items, the way gtag.js snippets
// leave "js" and "config" commands in the data layer before any event.
func NewQueue(items ...any) *Queue {
	return &Queue{items: items}
}

// Push implements host.Pusher.
func (q *Queue) Push(entry any) error {
	if err := q.record("push", entry); err != nil {
		return err
	}
	q.mu.Lock()
	q.items = append(q.items, entry)
	q.mu.Unlock()
	return nil
}

// Len implements host.DataLayer.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy of the queued entries.
func (q *Queue) Items() []any {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]any(nil), q.items...)
}

// ClassicTracker is a ga.js tracker.
type ClassicTracker struct{ Recorder }

// TrackEvent implements host.ClassicTracker.
func (t *ClassicTracker) TrackEvent(args ...any) error { return t.record("_trackEvent", args...) }

// TrackSocial implements host.ClassicTracker.
func (t *ClassicTracker) TrackSocial(args ...any) error { return t.record("_trackSocial", args...) }

// ClassicGA is the window._gat registry.
type ClassicGA struct {
	Trackers []*ClassicTracker
	// GetTrackersErr is returned by GetTrackers when set.
	GetTrackersErr error
}

// GetTrackers implements host.ClassicGA.
func (g *ClassicGA) GetTrackers() ([]host.ClassicTracker, error) {
	if g.GetTrackersErr != nil {
		return nil, g.GetTrackersErr
	}
	out := make([]host.ClassicTracker, len(g.Trackers))
	for i, t := range g.Trackers {
		out[i] = t
	}
	return out, nil
}

// TagLoader is the Adobe loader constructor. It is never zero-sized, so every
// loader has its own address.
type TagLoader struct {
	_ byte
}

// New constructs an AppMeasurement owned by this loader.
func (l *TagLoader) New() *AppMeasurement {
	return &AppMeasurement{loader: l, vars: make(map[string]any)}
}

// Constructed implements host.TagLoader.
func (l *TagLoader) Constructed(v any) bool {
	s, ok := v.(*AppMeasurement)
	return ok && s.loader == l
}

// AppMeasurement is an Adobe tracker instance.
type AppMeasurement struct {
	Recorder
	loader *TagLoader
	vars   map[string]any
}

// SetVar implements host.AppMeasurement.
func (s *AppMeasurement) SetVar(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vars == nil {
		s.vars = make(map[string]any)
	}
	s.vars[name] = value
}

// Var returns a variable previously set.
func (s *AppMeasurement) Var(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vars[name]
	return v, ok
}

// TrackLink implements host.AppMeasurement.
func (s *AppMeasurement) TrackLink(linkType, name string) error {
	return s.record("tl", linkType, name)
}

// YandexCounter is a Metrica counter.
type YandexCounter struct{ Recorder }

// ExtLink implements host.YandexCounter.
func (c *YandexCounter) ExtLink(url string) error { return c.record("extLink", url) }

// File implements host.YandexCounter.
func (c *YandexCounter) File(url string) error { return c.record("file", url) }

// Params implements host.YandexCounter.
func (c *YandexCounter) Params(params map[string]any) error { return c.record("params", params) }

// Func is a callable global.
type Func struct{ Recorder }

// Invoke implements host.Func.
func (f *Func) Invoke(args ...any) error { return f.record("call", args...) }
