package dryrun_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/okian/komito/internal/dryrun"
	"github.com/okian/komito/internal/host"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadScenario(t *testing.T) {
	Convey("Given the sample scenario file", t, func() {
		sc, err := dryrun.LoadScenario("testdata/page.yaml")

		Convey("Then it decodes every section", func() {
			So(err, ShouldBeNil)
			So(sc.Name, ShouldEqual, "product page")
			So(sc.Config["debug_mode"], ShouldEqual, true)
			So(sc.Backends, ShouldContainKey, "universal")
			So(sc.Backends["universal"].Trackers, ShouldResemble, []string{"UA-1", "UA-1", "UA-2"})
			So(sc.Backends["yandex"].Fail, ShouldEqual, dryrun.FailError)
			So(sc.Veto, ShouldResemble, []string{"adblock"})
			So(sc.Calls, ShouldHaveLength, 3)
			So(sc.Calls[1].Type, ShouldEqual, 1)
			So(sc.Calls[1].Expect, ShouldBeNil)
		})
	})

	Convey("Given a missing file", t, func() {
		_, err := dryrun.LoadScenario("testdata/missing.yaml")
		So(errors.Is(err, dryrun.ErrScenario), ShouldBeTrue)
	})
}

func TestParseScenario(t *testing.T) {
	Convey("Given invalid scenarios", t, func() {
		cases := map[string]string{
			"no calls":        "name: empty\n",
			"unknown backend": "backends: {mixpanel: {}}\ncalls: [{type: 0, args: [a, b]}]\n",
			"bad fail mode":   "backends: {utm: {fail: sometimes}}\ncalls: [{type: 0, args: [a, b]}]\n",
			"too few args":    "calls: [{type: 0, args: [a]}]\n",
			"broken yaml":     "calls: [",
		}
		for name, doc := range cases {
			Convey(name, func() {
				_, err := dryrun.ParseScenario([]byte(doc))
				So(errors.Is(err, dryrun.ErrScenario), ShouldBeTrue)
			})
		}
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	Convey("Given the sample scenario", t, func() {
		sc, err := dryrun.LoadScenario("testdata/page.yaml")
		So(err, ShouldBeNil)

		report, err := dryrun.Run(ctx, sc, nil)

		Convey("Then every expectation holds", func() {
			So(err, ShouldBeNil)
			So(report.Mismatches(), ShouldEqual, 0)
			So(report.Available, ShouldResemble, []string{"universal", "adobe", "clicktale", "classic", "yandex"})
		})

		Convey("Then the allowlisted, de-duplicated tracker is the only analytics.js receiver", func() {
			var universal []dryrun.BackendCall
			for _, c := range report.Steps[0].Calls {
				if c.Backend == "universal/UA-1" {
					universal = append(universal, c)
				}
			}
			So(universal, ShouldHaveLength, 1)
			So(universal[0].Args, ShouldResemble, []any{"event", "outbound", "example.com", "http://example.com/page"})
		})

		Convey("Then the Adobe props honour the prop index", func() {
			for _, c := range report.Steps[0].Calls {
				if c.Backend == "adobe" {
					So(c.Args, ShouldResemble, []any{"o", "event", map[string]any{
						"prop3": "outbound",
						"prop4": "example.com",
						"prop5": "http://example.com/page",
					}})
				}
			}
		})

		Convey("Then the failing Yandex counter is isolated", func() {
			So(report.Steps[0].Outcome.Failed, ShouldContainKey, "yandex")
			So(report.Steps[1].Outcome.Delivered, ShouldContain, "classic")
		})

		Convey("Then the vetoed call reaches nobody", func() {
			So(report.Steps[2].Outcome.Vetoed, ShouldBeTrue)
			So(report.Steps[2].Calls, ShouldBeEmpty)
		})

		Convey("Then debug mode logged to the console", func() {
			So(report.Console, ShouldNotBeEmpty)
			So(report.Console[0][0], ShouldEqual, "[komito]")
		})

		Convey("Then the metrics summary is filled", func() {
			found := false
			for _, s := range report.Metrics {
				if s.Name == "komito_dispatch_events_vetoed_total" {
					found = true
					So(s.Value, ShouldEqual, 1)
				}
			}
			So(found, ShouldBeTrue)
		})

		Convey("Then the report prints", func() {
			var buf bytes.Buffer
			So(dryrun.WriteReport(&buf, report), ShouldBeNil)
			out := buf.String()
			So(out, ShouldContainSubstring, "scenario: product page")
			So(out, ShouldContainSubstring, "vetoed by hook")
			So(out, ShouldContainSubstring, "failed:    yandex")
			So(out, ShouldContainSubstring, "komito_dispatch_events_tracked_total{kind=\"event\"} 1")
		})
	})

	Convey("Given an expectation that cannot hold", t, func() {
		sc, err := dryrun.ParseScenario([]byte(`
backends:
  utm: {}
calls:
  - type: 0
    args: [print, Title]
    expect: [universal]
`))
		So(err, ShouldBeNil)

		report, err := dryrun.Run(ctx, sc, nil)

		So(errors.Is(err, dryrun.ErrMismatch), ShouldBeTrue)
		So(report, ShouldNotBeNil)
		So(report.Steps[0].Mismatch, ShouldContainSubstring, "universal")
		So(report.Steps[0].Outcome.Delivered, ShouldResemble, []string{"utm"})
	})

	Convey("Given a cancelled context", t, func() {
		sc, err := dryrun.LoadScenario("testdata/page.yaml")
		So(err, ShouldBeNil)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		report, err := dryrun.Run(cctx, sc, nil)

		So(errors.Is(err, context.Canceled), ShouldBeTrue)
		So(report, ShouldNotBeNil)
		So(report.Steps, ShouldBeEmpty)
	})

	Convey("Given a hook that redacts labels", t, func() {
		sc, err := dryrun.ParseScenario([]byte(`
redact: "[redacted]"
backends:
  baidu: {}
calls:
  - type: 0
    args: [outbound, example.com, "http://example.com/?email=a@b.c"]
`))
		So(err, ShouldBeNil)

		report, err := dryrun.Run(ctx, sc, nil)
		So(err, ShouldBeNil)
		So(report.Steps[0].Calls[0].Args, ShouldResemble, []any{
			host.Command{"_trackEvent", "outbound", "example.com", "[redacted]"},
		})
	})
}
