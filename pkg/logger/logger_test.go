package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf), ShouldBeNil)
		defer func() { So(Sync(), ShouldBeNil) }()

		Convey("Then Get returns an instance", func() {
			So(Get(), ShouldNotBeNil)
		})

		Convey("When logging at info", func() {
			Get().Info(context.Background(), "backend dispatched", String("backend", "universal"))

			Convey("Then the record carries fields and source", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "backend dispatched")
				So(out, ShouldContainSubstring, "backend=universal")
				So(out, ShouldContainSubstring, "source=")
			})
		})

		Convey("When debug is below the level", func() {
			Get().Debug(context.Background(), "hidden")
			So(buf.String(), ShouldNotContainSubstring, "hidden")
		})

		Convey("When the level is lowered to debug", func() {
			So(SetLevelString("DEBUG"), ShouldBeNil)
			defer func() { _ = SetLevelString("info") }()
			Get().Debug(context.Background(), "visible")
			So(buf.String(), ShouldContainSubstring, "visible")
		})

		Convey("When a named logger is used", func() {
			Named("dispatch").Warn(context.Background(), "hook failed", Error(errors.New("boom")))
			out := buf.String()
			So(out, ShouldContainSubstring, "component=dispatch")
			So(out, ShouldContainSubstring, "error=boom")
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		So(InitWithWriter(&bytes.Buffer{}), ShouldBeNil)
		for _, lvl := range []string{"debug", "info", "", "warn", "warning", "error", " Info "} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		So(SetLevelString("verbose"), ShouldNotBeNil)
		So(InitWithWriter(nil), ShouldNotBeNil)
	})
}

func TestStandaloneLoggers(t *testing.T) {
	Convey("Given a standalone logger", t, func() {
		var buf bytes.Buffer
		l := New(&buf, slog.LevelWarn)

		l.Info(context.Background(), "skipped")
		l.Warn(context.Background(), "kept", Bool("vetoed", true), Strings("ids", []string{"UA-1"}))

		So(buf.String(), ShouldNotContainSubstring, "skipped")
		So(buf.String(), ShouldContainSubstring, "vetoed=true")
		So(buf.String(), ShouldNotContainSubstring, "source=")

		Convey("And Nop discards everything", func() {
			So(func() { Nop().Error(context.Background(), "nothing", Int("n", 1)) }, ShouldNotPanic)
		})
	})
}
