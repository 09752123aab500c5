package host

// Console is a console-like debug sink (window.console).
type Console interface {
	Log(args ...any)
}

// UniversalGA is the analytics.js command queue function (window.ga).
type UniversalGA interface {
	GetAll() ([]UniversalTracker, error)
}

// UniversalTracker is one analytics.js tracker object.
type UniversalTracker interface {
	TrackingID() string
	Send(args ...any) error
}

// Pusher is an array-like command queue (window._gaq, window._hmt).
type Pusher interface {
	Push(entry any) error
}

// Command is a queue entry pushed as a plain array, e.g. ["_trackEvent", ...].
type Command []any

// Arguments is a queue entry pushed as a function arguments object, the
// shape gtag() itself leaves on the data layer.
type Arguments []any

// DataLayer is the gtag.js queue (window.dataLayer).
type DataLayer interface {
	Pusher
	Len() int
}

// ClassicGA is the ga.js tracker registry (window._gat).
type ClassicGA interface {
	GetTrackers() ([]ClassicTracker, error)
}

// ClassicTracker is a ga.js tracker object.
type ClassicTracker interface {
	TrackEvent(args ...any) error
	TrackSocial(args ...any) error
}

// TagLoader is the Adobe Tag Loader constructor (window.TagLoader).
type TagLoader interface {
	// Constructed reports whether v was created by this loader.
	Constructed(v any) bool
}

// AppMeasurement is an Adobe tracker instance (window.s).
type AppMeasurement interface {
	SetVar(name string, value any)
	// TrackLink invokes s.tl(s, linkType, name).
	TrackLink(linkType, name string) error
}

// YandexCounter is a Yandex Metrica counter (window.yaCounterNNN).
type YandexCounter interface {
	ExtLink(url string) error
	File(url string) error
	Params(params map[string]any) error
}

// Func is a callable global (window.ClickTaleEvent, window.__utmTrackEvent).
type Func interface {
	Invoke(args ...any) error
}

// FuncOf adapts a Go function to Func.
type FuncOf func(args ...any) error

// Invoke implements Func.
func (f FuncOf) Invoke(args ...any) error { return f(args...) }

// MethodSet is implemented by dynamically typed host values, whose static Go
// type cannot tell which methods exist at runtime.
type MethodSet interface {
	HasMethod(name string) bool
	Callable() bool
}

// HasMethod reports whether v exposes the named method. Values that are not
// a MethodSet are statically typed and support whatever interface they
// satisfy.
func HasMethod(v any, name string) bool {
	if ms, ok := v.(MethodSet); ok {
		return ms.HasMethod(name)
	}
	return true
}

// IsCallable reports whether v is a function at runtime. Like HasMethod, it
// trusts the static type of values that are not a MethodSet.
func IsCallable(v any) bool {
	if ms, ok := v.(MethodSet); ok {
		return ms.Callable()
	}
	return true
}
