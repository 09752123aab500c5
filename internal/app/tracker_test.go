package app_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/okian/komito/internal/adapters/backend"
	"github.com/okian/komito/internal/app"
	"github.com/okian/komito/internal/config"
	"github.com/okian/komito/internal/domain/event"
	"github.com/okian/komito/internal/host"
	"github.com/okian/komito/internal/host/stub"
	"github.com/okian/komito/pkg/logger"
	"github.com/okian/komito/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

// page is a host environment with a stub for every backend.
type page struct {
	env     *host.MapEnv
	ga      *stub.UniversalGA
	gaq     *stub.Queue
	adobe   *stub.AppMeasurement
	ct      *stub.Func
	utm     *stub.Func
	hmt     *stub.Queue
	counter *stub.YandexCounter
	console *stub.Console
}

func newPage() *page {
	loader := &stub.TagLoader{}
	p := &page{
		env:     host.NewMapEnv(),
		ga:      stub.NewUniversalGA("UA-1"),
		gaq:     stub.NewQueue(),
		adobe:   loader.New(),
		ct:      &stub.Func{},
		utm:     &stub.Func{},
		hmt:     stub.NewQueue(),
		counter: &stub.YandexCounter{},
		console: &stub.Console{},
	}
	p.env.
		Set(host.GlobalUniversalGA, p.ga).
		Set(host.GlobalClassicGAQ, p.gaq).
		Set(host.GlobalTagLoader, loader).
		Set(host.GlobalAppMeasure, p.adobe).
		Set(host.GlobalClickTale, p.ct).
		Set(host.GlobalUtm, p.utm).
		Set(host.GlobalBaidu, p.hmt).
		Set("yaCounter42", p.counter).
		Set(host.GlobalConsole, p.console)
	return p
}

// backendCalls counts calls received by every backend stub.
func (p *page) backendCalls() int {
	return p.ga.Sends() + p.gaq.Count() + p.adobe.Count() + p.ct.Count() +
		p.utm.Count() + p.hmt.Count() + p.counter.Count()
}

func newMetrics() (*metrics.Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return metrics.NewManager(metrics.WithPrometheusRegistry(reg)), reg
}

// metricValue returns the counter or gauge value of the series matching labels.
func metricValue(reg *prometheus.Registry, name string, labels map[string]string) float64 {
	families, err := reg.Gather()
	if err != nil {
		return -1
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if !labelsMatch(m.GetLabel(), labels) {
				continue
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	found := 0
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; ok && v == p.GetValue() {
			found++
		}
	}
	return found == len(want)
}

func mustTracker(env host.Env, opts ...app.Option) *app.Tracker {
	tr, err := app.New(env, opts...)
	if err != nil {
		panic(err)
	}
	return tr
}

func TestTracker_New(t *testing.T) {
	Convey("Given tracker construction", t, func() {
		Convey("With defaults every backend is registered in order", func() {
			tr := mustTracker(host.NewMapEnv())
			So(tr.Adapters(), ShouldResemble,
				[]string{"universal", "adobe", "clicktale", "utm", "baidu", "classic", "yandex"})
			So(tr.Config().LazyProbe, ShouldBeTrue)
		})

		Convey("With gtag enabled it takes the analytics.js slot", func() {
			cfg := config.New()
			cfg.Gtag = true
			tr := mustTracker(host.NewMapEnv(), app.WithConfig(cfg))
			So(tr.Adapters()[0], ShouldEqual, "gtag")
		})

		Convey("Without metrics options it records on the process registry", func() {
			env := host.NewMapEnv().Set(host.GlobalUtm, &stub.Func{})
			labels := map[string]string{"backend": "utm"}
			before := metricValue(metrics.GetRegistry(), "komito_dispatch_backend_dispatch_total", labels)
			tr := mustTracker(env)
			tr.Track(context.Background(), event.EventActionType, "a", "b")
			So(metricValue(metrics.GetRegistry(), "komito_dispatch_backend_dispatch_total", labels), ShouldEqual, before+1)
		})

		Convey("With an unknown backend it fails", func() {
			cfg := config.New()
			cfg.Backends = []string{"omniture"}
			_, err := app.New(host.NewMapEnv(), app.WithConfig(cfg))
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			So(errors.Is(err, backend.ErrUnknown), ShouldBeTrue)
		})

		Convey("Without an environment it fails", func() {
			_, err := app.New(nil)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestTracker_EndToEnd(t *testing.T) {
	ctx := context.Background()

	Convey("Given a page with only analytics.js loaded", t, func() {
		env := host.NewMapEnv()
		ga := stub.NewUniversalGA("UA-1")
		env.Set(host.GlobalUniversalGA, ga)
		m, _ := newMetrics()
		tr := mustTracker(env, app.WithMetrics(m))

		Convey("When an outbound link is tracked", func() {
			out := tr.Track(ctx, event.EventActionType, "outbound", "example.com", "http://example.com/page")

			Convey("Then the tracker receives exactly one send", func() {
				So(ga.Trackers[0].Calls(), ShouldResemble, []stub.Call{
					{Method: "send", Args: []any{"event", "outbound", "example.com", "http://example.com/page"}},
				})
				So(out.Delivered, ShouldResemble, []string{"universal"})
				So(out.Failed, ShouldBeEmpty)
				So(out.Skipped, ShouldContain, "clicktale")
			})
		})
	})

	Convey("Given a page with only gtag.js loaded", t, func() {
		env := host.NewMapEnv()
		dl := stub.NewQueue(host.Arguments{"js"}, host.Arguments{"config", "G-1"})
		env.Set(host.GlobalDataLayer, dl)
		m, _ := newMetrics()
		tr := mustTracker(env, app.WithMetrics(m))

		Convey("When an outbound link is tracked", func() {
			out := tr.Track(ctx, event.EventActionType, "outbound", "example.com", "http://example.com/page")

			Convey("Then one event command lands on the data layer", func() {
				So(dl.Len(), ShouldEqual, 3)
				So(dl.Items()[2], ShouldResemble, host.Arguments{"event", "example.com", map[string]any{
					"event_category":  "outbound",
					"event_label":     "http://example.com/page",
					"non_interaction": false,
				}})
				So(out.Delivered, ShouldResemble, []string{"universal"})
				So(out.Failed, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a page with only the ga.js queue", t, func() {
		env := host.NewMapEnv()
		gaq := stub.NewQueue()
		env.Set(host.GlobalClassicGAQ, gaq)
		m, _ := newMetrics()
		tr := mustTracker(env, app.WithMetrics(m))

		Convey("When a social like is tracked", func() {
			out := tr.Track(ctx, event.SocialActionType, "Twitter", "like", "http://x")

			Convey("Then one _trackSocial command is queued without a marker", func() {
				So(gaq.Items(), ShouldResemble, []any{host.Command{"_trackSocial", "Twitter", "like", "http://x"}})
				So(out.NonInteraction, ShouldBeFalse)
				So(out.Delivered, ShouldResemble, []string{"classic"})
			})
		})

		Convey("When a scroll event is tracked", func() {
			out := tr.Track(ctx, event.EventActionType, "scroll", "50%")

			Convey("Then the non-interaction marker is appended", func() {
				So(out.NonInteraction, ShouldBeTrue)
				So(gaq.Items(), ShouldResemble, []any{host.Command{"_trackEvent", "scroll", "50%", 1}})
			})
		})
	})
}

func TestTracker_Isolation(t *testing.T) {
	ctx := context.Background()

	Convey("Given every backend present", t, func() {
		p := newPage()
		m, reg := newMetrics()
		tr := mustTracker(p.env, app.WithMetrics(m))

		Convey("When one backend panics", func() {
			p.adobe.Panic = "s.tl is not a function"
			out := tr.Track(ctx, 0, "download", "pdf", "/report.pdf")

			Convey("Then the others still receive the event", func() {
				So(out.Failed, ShouldContainKey, "adobe")
				So(backend.IsPanic(out.Failed["adobe"]), ShouldBeTrue)
				So(p.ga.Sends(), ShouldEqual, 1)
				So(p.ct.Count(), ShouldEqual, 1)
				So(p.utm.Count(), ShouldEqual, 1)
				So(p.hmt.Count(), ShouldEqual, 1)
				So(p.gaq.Count(), ShouldEqual, 1)
				So(p.counter.Calls()[0].Method, ShouldEqual, "file")
				So(metricValue(reg, "komito_dispatch_backend_errors_total",
					map[string]string{"backend": "adobe", "reason": "panic"}), ShouldEqual, 1)
			})
		})

		Convey("When one backend returns an error", func() {
			p.utm.Err = errors.New("urchin gone")
			out := tr.Track(ctx, 0, "print", "Title")

			Convey("Then it is reported and the rest continue", func() {
				So(out.Failed, ShouldHaveLength, 1)
				So(out.Failed["utm"].Error(), ShouldContainSubstring, "urchin gone")
				So(p.counter.Count(), ShouldEqual, 1)
				So(metricValue(reg, "komito_dispatch_backend_errors_total",
					map[string]string{"backend": "utm", "reason": "error"}), ShouldEqual, 1)
			})
		})
	})
}

func TestTracker_Dedupe(t *testing.T) {
	Convey("Given two analytics.js trackers sharing a tracking id", t, func() {
		env := host.NewMapEnv()
		ga := stub.NewUniversalGA("UA-1", "UA-1")
		env.Set(host.GlobalUniversalGA, ga)
		m, _ := newMetrics()
		tr := mustTracker(env, app.WithMetrics(m))

		tr.Track(context.Background(), 0, "outbound", "a.com", "http://a.com")

		So(ga.Trackers[0].Count()+ga.Trackers[1].Count(), ShouldEqual, 1)
	})
}

func TestTracker_Hook(t *testing.T) {
	ctx := context.Background()

	Convey("Given every backend present and a hook", t, func() {
		p := newPage()
		m, reg := newMetrics()

		Convey("When the hook prevents the default", func() {
			var seen app.HookData
			tr := mustTracker(p.env, app.WithMetrics(m), app.WithHook(func(_ context.Context, d *app.HookData) {
				seen = *d
				d.PreventDefault()
			}))
			out := tr.Track(ctx, event.SocialActionType, "Facebook", "like", "http://x")

			Convey("Then no backend receives anything", func() {
				So(out.Vetoed, ShouldBeTrue)
				So(p.backendCalls(), ShouldEqual, 0)
				So(seen.Type, ShouldEqual, event.SocialActionType)
				So(seen.Category, ShouldEqual, "Facebook")
				So(seen.Action, ShouldEqual, "like")
				So(seen.Label, ShouldEqual, "http://x")
				So(metricValue(reg, "komito_dispatch_events_vetoed_total", nil), ShouldEqual, 1)
			})
		})

		Convey("When the hook edits the fields", func() {
			tr := mustTracker(p.env, app.WithMetrics(m), app.WithHook(func(_ context.Context, d *app.HookData) {
				d.Label = "redacted"
				d.Type = event.SocialActionType
			}))
			out := tr.Track(ctx, 0, "outbound", "example.com", "http://example.com/?token=secret")

			Convey("Then the edited event is sent and the type is kept", func() {
				So(out.Vetoed, ShouldBeFalse)
				So(p.ga.Trackers[0].Calls()[0].Args, ShouldResemble,
					[]any{"event", "outbound", "example.com", "redacted"})
			})
		})

		Convey("When the hook panics", func() {
			tr := mustTracker(p.env, app.WithMetrics(m), app.WithHook(func(_ context.Context, d *app.HookData) {
				d.Label = "lost"
				panic("hook bug")
			}))
			out := tr.Track(ctx, 0, "outbound", "example.com", "http://example.com")

			Convey("Then dispatch continues with the original event", func() {
				So(out.Vetoed, ShouldBeFalse)
				So(p.ga.Trackers[0].Calls()[0].Args[3], ShouldEqual, "http://example.com")
				So(metricValue(reg, "komito_dispatch_hook_errors_total", nil), ShouldEqual, 1)
			})
		})

		Convey("When the hook vetoes and then panics", func() {
			tr := mustTracker(p.env, app.WithMetrics(m), app.WithHook(func(_ context.Context, d *app.HookData) {
				d.PreventDefault()
				panic("after veto")
			}))
			out := tr.Track(ctx, 0, "print", "Title")

			Convey("Then the veto stands", func() {
				So(out.Vetoed, ShouldBeTrue)
				So(p.backendCalls(), ShouldEqual, 0)
			})
		})
	})
}

func TestTracker_Debug(t *testing.T) {
	ctx := context.Background()

	Convey("Given debug mode on", t, func() {
		env := host.NewMapEnv()
		console := &stub.Console{}
		ga := stub.NewUniversalGA("UA-1")
		env.Set(host.GlobalConsole, console).Set(host.GlobalUniversalGA, ga)

		cfg := config.New()
		cfg.DebugMode = true
		cfg.Backends = []string{"universal", "utm"}
		m, _ := newMetrics()
		tr := mustTracker(env, app.WithConfig(cfg), app.WithMetrics(m))

		Convey("When an event is tracked", func() {
			tr.Track(ctx, 0, "print", "Title")

			Convey("Then every backend call is logged, present or not", func() {
				So(console.Calls(), ShouldResemble, []stub.Call{
					{Method: "log", Args: []any{"[komito]", "universal", "send", "event", "print", "Title",
						map[string]any{"nonInteraction": 1}}},
					{Method: "log", Args: []any{"[komito]", "utm", "__utmTrackEvent", "print", "Title"}},
				})
			})
		})

		Convey("When the console itself throws", func() {
			console.Panic = "console is broken"
			out := tr.Track(ctx, 0, "print", "Title")

			Convey("Then delivery is unaffected", func() {
				So(out.Delivered, ShouldResemble, []string{"universal"})
			})
		})
	})

	Convey("Given debug mode off", t, func() {
		p := newPage()
		m, _ := newMetrics()
		tr := mustTracker(p.env, app.WithMetrics(m))
		tr.Track(ctx, 0, "print", "Title")
		So(p.console.Count(), ShouldEqual, 0)
	})
}

func TestTracker_Probe(t *testing.T) {
	ctx := context.Background()

	Convey("Given a page where analytics.js loads late", t, func() {
		env := host.NewMapEnv()
		ga := stub.NewUniversalGA("UA-1")
		m, reg := newMetrics()

		Convey("With lazy probing the late backend is picked up", func() {
			tr := mustTracker(env, app.WithMetrics(m))
			So(tr.Probe(ctx), ShouldResemble, []string{"clicktale"})

			env.Set(host.GlobalUniversalGA, ga)
			out := tr.Track(ctx, 0, "a", "b")
			So(out.Delivered, ShouldContain, "universal")
			So(metricValue(reg, "komito_dispatch_backends_available", nil), ShouldEqual, 1)
		})

		Convey("With eager probing the snapshot is reused until the next probe", func() {
			tr := mustTracker(env, app.WithMetrics(m), app.WithLazyProbe(false))
			tr.Probe(ctx)

			env.Set(host.GlobalUniversalGA, ga)
			out := tr.Track(ctx, 0, "a", "b")
			So(out.Skipped, ShouldContain, "universal")
			So(ga.Sends(), ShouldEqual, 0)

			tr.Probe(ctx)
			out = tr.Track(ctx, 0, "a", "b")
			So(out.Delivered, ShouldContain, "universal")
		})
	})
}

func TestTracker_Reentrancy(t *testing.T) {
	ctx := context.Background()

	Convey("Given a backend that tracks again while being called", t, func() {
		env := host.NewMapEnv()
		gaq := stub.NewQueue()
		env.Set(host.GlobalClassicGAQ, gaq)
		m, _ := newMetrics()
		tr := mustTracker(env, app.WithMetrics(m))

		gaq.OnCall = func(c stub.Call) {
			cmd := c.Args[0].(host.Command)
			if cmd[1] == "outbound" {
				tr.Track(ctx, 0, "nested", "from-backend")
			}
		}

		out := tr.Track(ctx, 0, "outbound", "example.com", "http://example.com")

		So(out.Delivered, ShouldResemble, []string{"classic"})
		So(gaq.Items(), ShouldResemble, []any{
			host.Command{"_trackEvent", "nested", "from-backend"},
			host.Command{"_trackEvent", "outbound", "example.com", "http://example.com"},
		})
	})
}

func TestTracker_Concurrency(t *testing.T) {
	Convey("Given many goroutines tracking at once", t, func() {
		p := newPage()
		m, reg := newMetrics()
		tr := mustTracker(p.env, app.WithMetrics(m))

		const n = 50
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			i := i // per-iteration copy (go directive < 1.22)
			wg.Add(1)
			go func() {
				defer wg.Done()
				tr.Track(context.Background(), i%2, "scroll", "25%")
			}()
		}
		wg.Wait()

		So(p.ga.Sends(), ShouldEqual, n)
		So(p.hmt.Len(), ShouldEqual, n)
		So(metricValue(reg, "komito_dispatch_events_tracked_total", map[string]string{"kind": "event"})+
			metricValue(reg, "komito_dispatch_events_tracked_total", map[string]string{"kind": "social"}),
			ShouldEqual, n)
	})
}

func TestTracker_Logging(t *testing.T) {
	Convey("Given a tracker with a debug logger", t, func() {
		var buf bytes.Buffer
		env := host.NewMapEnv()
		env.Set(host.GlobalUtm, &stub.Func{Recorder: stub.Recorder{Err: errors.New("denied")}})
		m, _ := newMetrics()
		tr := mustTracker(env, app.WithMetrics(m), app.WithLogger(logger.New(&buf, slog.LevelDebug)))

		tr.Track(context.Background(), 0, "print", "Title")

		So(buf.String(), ShouldContainSubstring, "backend dispatch failed")
		So(buf.String(), ShouldContainSubstring, "backend=utm")
		So(buf.String(), ShouldContainSubstring, "event dispatched")
	})
}
