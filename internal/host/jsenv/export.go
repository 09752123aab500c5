//go:build js && wasm

package jsenv

import "syscall/js"

// Export converts plain JavaScript data into Go values: objects become
// map[string]any, arrays []any, numbers float64. Functions, symbols and
// undefined are dropped.
func Export(v js.Value) any {
	switch v.Type() {
	case js.TypeBoolean:
		return v.Bool()
	case js.TypeNumber:
		return v.Float()
	case js.TypeString:
		return v.String()
	case js.TypeObject:
		if js.Global().Get("Array").Call("isArray", v).Bool() {
			out := make([]any, 0, v.Length())
			for i := 0; i < v.Length(); i++ {
				if x := Export(v.Index(i)); x != nil {
					out = append(out, x)
				}
			}
			return out
		}
		keys := js.Global().Get("Object").Call("keys", v)
		out := make(map[string]any, keys.Length())
		for i := 0; i < keys.Length(); i++ {
			k := keys.Index(i).String()
			if x := Export(v.Get(k)); x != nil {
				out[k] = x
			}
		}
		return out
	default:
		return nil
	}
}

// ExportMap is Export for an object value. Anything else yields an empty map.
func ExportMap(v js.Value) map[string]any {
	if m, ok := Export(v).(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
