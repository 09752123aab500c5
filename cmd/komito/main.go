//go:build js && wasm

// Command komito is the browser build of the dispatch engine. It reads the
// page's _komito object, then exposes komito.track(type, category, action,
// label) to the page's event observers.
package main

import (
	"context"
	"os"
	"syscall/js"

	"github.com/okian/komito/internal/app"
	"github.com/okian/komito/internal/config"
	"github.com/okian/komito/internal/host/jsenv"
	"github.com/okian/komito/pkg/logger"
)

// Page globals holding the configuration object, newest name first.
var configGlobals = []string{"_komito", "_ega"} //nolint:gochecknoglobals // fixed lookup order

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Named("komito")
	ctx := context.Background()

	page := pageConfig()
	overrides := config.QueryOverrides(config.PageOverrides(jsenv.ExportMap(page)), locationSearch())
	cfg, err := config.LoadWithOverrides(ctx, overrides)
	if err != nil {
		log.Error(ctx, "failed to load config", logger.Error(err))
		return
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	opts := []app.Option{app.WithConfig(cfg), app.WithLogger(log)}
	if hook, ok := pageHook(page, cfg.OnBeforeTrack); ok {
		opts = append(opts, app.WithHook(hook))
	}

	tracker, err := app.New(jsenv.New(), opts...)
	if err != nil {
		log.Error(ctx, "failed to create tracker", logger.Error(err))
		return
	}
	available := tracker.Probe(ctx)
	log.Info(ctx, "komito ready",
		logger.Strings("backends", tracker.Adapters()),
		logger.Strings("available", available))

	track := js.FuncOf(func(_ js.Value, args []js.Value) any {
		flag, fields := trackArgs(args)
		tracker.Track(ctx, flag, fields...)
		return nil
	})
	js.Global().Set("komito", map[string]any{
		"track": track,
	})

	select {}
}

func locationSearch() string {
	loc := js.Global().Get("location")
	if loc.Type() != js.TypeObject {
		return ""
	}
	if search := loc.Get("search"); search.Type() == js.TypeString {
		return search.String()
	}
	return ""
}

func pageConfig() js.Value {
	for _, name := range configGlobals {
		if v := js.Global().Get(name); v.Type() == js.TypeObject {
			return v
		}
	}
	return js.Undefined()
}

// trackArgs reads (type, category, action[, label]) from a page call. Any
// truthy type marks a social interaction. Missing or non-string fields
// become "".
func trackArgs(args []js.Value) (int, []string) {
	flag := 0
	if len(args) > 0 && args[0].Truthy() {
		flag = 1
	}
	var fields []string
	for i := 1; i < len(args) && i <= 3; i++ {
		if args[i].Type() == js.TypeString {
			fields = append(fields, args[i].String())
		} else {
			fields = append(fields, "")
		}
	}
	return flag, fields
}

// pageHook finds the onBeforeTrack function, either on the configuration
// object or as the page global named by on_before_track.
func pageHook(page js.Value, global string) (app.Hook, bool) {
	var fn js.Value
	if page.Type() == js.TypeObject {
		fn = page.Get("onBeforeTrack")
	}
	if fn.Type() != js.TypeFunction && global != "" {
		fn = js.Global().Get(global)
	}
	if fn.Type() != js.TypeFunction {
		return nil, false
	}

	return func(_ context.Context, d *app.HookData) {
		obj := js.Global().Get("Object").New()
		obj.Set("type", d.Type)
		obj.Set("category", d.Category)
		obj.Set("action", d.Action)
		obj.Set("label", d.Label)
		obj.Set("defaultPrevented", false)
		prevent := js.FuncOf(func(js.Value, []js.Value) any {
			d.PreventDefault()
			obj.Set("defaultPrevented", true)
			return nil
		})
		defer prevent.Release()
		obj.Set("preventDefault", prevent)

		// A JavaScript exception surfaces as a Go panic, which the tracker
		// recovers and counts.
		fn.Invoke(obj)

		d.Category = stringField(obj, "category", d.Category)
		d.Action = stringField(obj, "action", d.Action)
		d.Label = stringField(obj, "label", d.Label)
	}, true
}

func stringField(obj js.Value, name, fallback string) string {
	v := obj.Get(name)
	if v.Type() != js.TypeString {
		return fallback
	}
	return v.String()
}
