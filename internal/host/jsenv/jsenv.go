//go:build js && wasm

// Package jsenv binds host.Env to the browser window through syscall/js.
// JavaScript exceptions raised by page scripts come back as errors.
package jsenv

import (
	"errors"
	"fmt"
	"syscall/js"

	"github.com/okian/komito/internal/host"
)

// Env reads globals from a JavaScript object, normally window.
type Env struct {
	global js.Value
}

// New returns an Env over the JavaScript global object.
func New() *Env {
	return &Env{global: js.Global()}
}

// Lookup implements host.Env. String globals come back as Go strings; every
// other value is wrapped in an *Object.
func (e *Env) Lookup(name string) (v any, ok bool) {
	defer func() {
		if recover() != nil {
			v, ok = nil, false
		}
	}()
	jv := e.global.Get(name)
	if jv.IsUndefined() || jv.IsNull() {
		return nil, false
	}
	if jv.Type() == js.TypeString {
		return jv.String(), true
	}
	return &Object{v: jv}, true
}

// Names implements host.Env.
func (e *Env) Names() []string {
	keys, err := call(func() js.Value {
		return js.Global().Get("Object").Call("keys", e.global)
	})
	if err != nil {
		return nil
	}
	out := make([]string, keys.Length())
	for i := range out {
		out[i] = keys.Index(i).String()
	}
	return out
}

// Object wraps any JavaScript value and implements every host capability by
// calling the method of the same name. Whether a method exists is only known
// at runtime, which is what MethodSet reports.
type Object struct {
	v js.Value
}

// HasMethod implements host.MethodSet.
func (o *Object) HasMethod(name string) bool {
	t := o.v.Type()
	if t != js.TypeObject && t != js.TypeFunction {
		return false
	}
	return o.v.Get(name).Type() == js.TypeFunction
}

// Callable implements host.MethodSet.
func (o *Object) Callable() bool {
	return o.v.Type() == js.TypeFunction
}

func (o *Object) method(name string, args ...any) (js.Value, error) {
	if !o.HasMethod(name) {
		return js.Undefined(), fmt.Errorf("%s is not a function", name)
	}
	return call(func() js.Value { return o.v.Call(name, toJS(args)...) })
}

// Log implements host.Console.
func (o *Object) Log(args ...any) {
	_, _ = o.method("log", args...)
}

// GetAll implements host.UniversalGA.
func (o *Object) GetAll() ([]host.UniversalTracker, error) {
	arr, err := o.method("getAll")
	if err != nil {
		return nil, err
	}
	if arr.Type() != js.TypeObject {
		return nil, nil
	}
	out := make([]host.UniversalTracker, 0, arr.Length())
	for i := 0; i < arr.Length(); i++ {
		out = append(out, &Object{v: arr.Index(i)})
	}
	return out, nil
}

// TrackingID implements host.UniversalTracker.
func (o *Object) TrackingID() string {
	v, err := o.method("get", "trackingId")
	if err != nil || v.Type() != js.TypeString {
		return ""
	}
	return v.String()
}

// Send implements host.UniversalTracker.
func (o *Object) Send(args ...any) error {
	_, err := o.method("send", args...)
	return err
}

// Push implements host.Pusher.
func (o *Object) Push(entry any) error {
	_, err := o.method("push", entry)
	return err
}

// Len implements host.DataLayer.
func (o *Object) Len() int {
	n := o.v.Get("length")
	if n.Type() != js.TypeNumber {
		return 0
	}
	return n.Int()
}

// GetTrackers implements host.ClassicGA.
func (o *Object) GetTrackers() ([]host.ClassicTracker, error) {
	arr, err := o.method("_getTrackers")
	if err != nil {
		return nil, err
	}
	if arr.Type() != js.TypeObject {
		return nil, nil
	}
	out := make([]host.ClassicTracker, 0, arr.Length())
	for i := 0; i < arr.Length(); i++ {
		out = append(out, &Object{v: arr.Index(i)})
	}
	return out, nil
}

// TrackEvent implements host.ClassicTracker.
func (o *Object) TrackEvent(args ...any) error {
	_, err := o.method("_trackEvent", args...)
	return err
}

// TrackSocial implements host.ClassicTracker.
func (o *Object) TrackSocial(args ...any) error {
	_, err := o.method("_trackSocial", args...)
	return err
}

// Constructed implements host.TagLoader.
func (o *Object) Constructed(v any) bool {
	s, ok := v.(*Object)
	if !ok || !o.Callable() {
		return false
	}
	res, err := call(func() js.Value { return js.ValueOf(s.v.InstanceOf(o.v)) })
	return err == nil && res.Bool()
}

// SetVar implements host.AppMeasurement.
func (o *Object) SetVar(name string, value any) {
	_, _ = call(func() js.Value {
		o.v.Set(name, toJS([]any{value})[0])
		return js.Undefined()
	})
}

// TrackLink implements host.AppMeasurement. AppMeasurement expects itself as
// the link object: s.tl(s, type, name).
func (o *Object) TrackLink(linkType, name string) error {
	_, err := o.method("tl", o, linkType, name)
	return err
}

// ExtLink implements host.YandexCounter.
func (o *Object) ExtLink(url string) error {
	_, err := o.method("extLink", url)
	return err
}

// File implements host.YandexCounter.
func (o *Object) File(url string) error {
	_, err := o.method("file", url)
	return err
}

// Params implements host.YandexCounter.
func (o *Object) Params(params map[string]any) error {
	_, err := o.method("params", params)
	return err
}

// Invoke implements host.Func.
func (o *Object) Invoke(args ...any) error {
	if !o.Callable() {
		return errors.New("value is not a function")
	}
	_, err := call(func() js.Value { return o.v.Invoke(toJS(args)...) })
	return err
}

// call runs fn and turns a thrown JavaScript exception into an error.
func call(fn func() js.Value) (v js.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = js.Undefined()
			if je, ok := r.(js.Error); ok {
				err = je
				return
			}
			err = fmt.Errorf("javascript call failed: %v", r)
		}
	}()
	return fn(), nil
}

// toJS converts Go call arguments into JavaScript values. host.Arguments
// becomes a real arguments object, the shape gtag.js expects on dataLayer.
func toJS(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = value(a)
	}
	return out
}

func value(a any) any {
	switch v := a.(type) {
	case *Object:
		return v.v
	case host.Command:
		return js.ValueOf(toJS(v))
	case host.Arguments:
		return argumentsOf(toJS(v))
	case []any:
		return js.ValueOf(toJS(v))
	case []string:
		arr := make([]any, len(v))
		for i, s := range v {
			arr[i] = s
		}
		return js.ValueOf(arr)
	case map[string]any:
		obj := make(map[string]any, len(v))
		for k, x := range v {
			obj[k] = value(x)
		}
		return js.ValueOf(obj)
	default:
		return a
	}
}

var argumentsFactory = js.Global().Get("Function").New("return arguments") //nolint:gochecknoglobals // created once per page

func argumentsOf(args []any) js.Value {
	return argumentsFactory.Call("apply", js.Null(), js.ValueOf(args))
}
