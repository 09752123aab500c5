// Package app implements the dispatch driver: it turns producer calls into
// canonical events, runs the interception hook and fans the result out to
// every available analytics backend.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/komito/internal/adapters/backend"
	"github.com/okian/komito/internal/config"
	"github.com/okian/komito/internal/domain/event"
	"github.com/okian/komito/internal/host"
	"github.com/okian/komito/pkg/logger"
	"github.com/okian/komito/pkg/metrics"
)

const debugPrefix = "[komito]"

// Outcome reports what a single dispatch did, per backend name.
type Outcome struct {
	Vetoed         bool
	NonInteraction bool
	Delivered      []string
	Skipped        []string
	Failed         map[string]error
}

// Tracker is the dispatch engine. After New it holds only read-only state,
// so Track may be called concurrently and re-entrantly from inside a backend.
type Tracker struct {
	env        host.Env
	cfg        *config.Config
	logger     logger.Logger
	metrics    *metrics.Manager
	hook       Hook
	classifier event.Classifier

	adapters       []backend.Adapter
	customAdapters bool
	lazy           *bool

	// snapshot holds the last Probe result when probing is eager.
	snapshot atomic.Pointer[map[string]bool]
}

// New constructs a Tracker over env. Without WithAdapters the backend set is
// built from the configuration.
func New(env host.Env, opts ...Option) (*Tracker, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: nil host environment", config.ErrInvalidConfig)
	}
	t := &Tracker{
		env:     env,
		cfg:     config.New(),
		metrics: metrics.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.logger == nil {
		t.logger = logger.Nop()
	}
	if t.lazy == nil {
		lazy := t.cfg.LazyProbe
		t.lazy = &lazy
	}
	t.classifier = event.NewClassifier(t.cfg.NonInteraction)

	if !t.customAdapters {
		adapters, err := backend.Build(t.cfg.Settings())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
		}
		t.adapters = adapters
	}
	return t, nil
}

// Adapters returns the backend names in dispatch order.
func (t *Tracker) Adapters() []string {
	names := make([]string, len(t.adapters))
	for i, a := range t.adapters {
		names[i] = a.Name()
	}
	return names
}

// Config returns the configuration the tracker runs with.
func (t *Tracker) Config() *config.Config { return t.cfg }

// Probe checks every backend once and returns the available ones. With eager
// probing the result is reused by later dispatches.
func (t *Tracker) Probe(ctx context.Context) []string {
	avail := make(map[string]bool, len(t.adapters))
	var names []string
	for _, a := range t.adapters {
		ok := backend.Available(a, t.env)
		avail[a.Name()] = ok
		if ok {
			names = append(names, a.Name())
		}
	}
	t.metrics.UpdateBackendsAvailable(len(names))
	if !*t.lazy {
		t.snapshot.Store(&avail)
	}
	t.logger.Debug(ctx, "backends probed",
		logger.Strings("available", names),
		logger.Bool("lazy", *t.lazy))
	return names
}

// Track is the producer entry point: flag selects the event kind and args
// are category, action and label. It never fails; see Outcome for details.
func (t *Tracker) Track(ctx context.Context, flag int, args ...string) Outcome {
	return t.Dispatch(ctx, event.New(flag, args...))
}

// Dispatch runs the hook and delivers e to every available backend.
func (t *Tracker) Dispatch(ctx context.Context, e event.Event) Outcome {
	start := time.Now()
	defer func() {
		t.metrics.RecordDispatchLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	var out Outcome
	if t.hook != nil {
		var (
			vetoed bool
			err    error
		)
		e, vetoed, err = runHook(ctx, t.hook, e)
		if err != nil {
			t.metrics.RecordHookError()
			t.logger.Warn(ctx, "hook failed", logger.String("event_id", e.ID), logger.Error(err))
		}
		if vetoed {
			t.metrics.RecordEventVetoed()
			t.logger.Debug(ctx, "event vetoed by hook", logger.String("event_id", e.ID))
			out.Vetoed = true
			return out
		}
	}

	d := backend.Dispatch{Event: e, NonInteraction: t.classifier.Classify(e)}
	t.metrics.RecordEventTracked(e.Kind.String())
	if d.NonInteraction {
		t.metrics.RecordNonInteraction()
	}
	out.NonInteraction = d.NonInteraction

	var console host.Console
	if t.cfg.DebugMode {
		console = lookupConsole(t.env)
	}
	snapshot := t.snapshot.Load()

	for _, a := range t.adapters {
		name := a.Name()
		if console != nil {
			debugLog(console, a, d)
		}

		if !t.available(a, snapshot) {
			t.metrics.RecordBackendSkipped(name)
			out.Skipped = append(out.Skipped, name)
			continue
		}

		err := backend.Safely(func() error { return a.Send(ctx, d, t.env) })
		switch {
		case err == nil:
			t.metrics.RecordBackendDispatch(name)
			out.Delivered = append(out.Delivered, name)
		case errors.Is(err, backend.ErrUnavailable), errors.Is(err, backend.ErrNoTrackers):
			t.metrics.RecordBackendSkipped(name)
			out.Skipped = append(out.Skipped, name)
		default:
			reason := metrics.ReasonError
			if backend.IsPanic(err) {
				reason = metrics.ReasonPanic
			}
			t.metrics.RecordBackendError(name, reason)
			t.logger.Warn(ctx, "backend dispatch failed",
				logger.String("backend", name),
				logger.String("event_id", e.ID),
				logger.Error(err))
			if out.Failed == nil {
				out.Failed = make(map[string]error)
			}
			out.Failed[name] = err
		}
	}

	t.logger.Debug(ctx, "event dispatched",
		logger.String("event_id", e.ID),
		logger.String("kind", e.Kind.String()),
		logger.Bool("non_interaction", d.NonInteraction),
		logger.Strings("delivered", out.Delivered))
	return out
}

func (t *Tracker) available(a backend.Adapter, snapshot *map[string]bool) bool {
	if !*t.lazy && snapshot != nil {
		return (*snapshot)[a.Name()]
	}
	return backend.Available(a, t.env)
}

func lookupConsole(env host.Env) host.Console {
	v, ok := env.Lookup(host.GlobalConsole)
	if !ok {
		return nil
	}
	c, ok := v.(host.Console)
	if !ok || !host.HasMethod(v, "log") {
		return nil
	}
	return c
}

// debugLog writes the call a backend is about to receive. A broken console
// must not affect delivery.
func debugLog(c host.Console, a backend.Adapter, d backend.Dispatch) {
	defer func() { _ = recover() }()
	c.Log(append([]any{debugPrefix, a.Name()}, a.Args(d)...)...)
}
