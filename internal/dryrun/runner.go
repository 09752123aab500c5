package dryrun

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/okian/komito/internal/adapters/backend"
	"github.com/okian/komito/internal/app"
	"github.com/okian/komito/internal/config"
	"github.com/okian/komito/internal/host"
	"github.com/okian/komito/internal/host/stub"
	"github.com/okian/komito/pkg/logger"
	"github.com/okian/komito/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const defaultTrackingID = "UA-DRYRUN-1"

// BackendCall is one call received by a stub backend.
type BackendCall struct {
	Backend string
	Method  string
	Args    []any
}

// Step is the result of one replayed call.
type Step struct {
	Call     Call
	Outcome  app.Outcome
	Calls    []BackendCall
	Mismatch string
}

// Sample is one non-zero metric series recorded during the run.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Report is the result of Run.
type Report struct {
	Scenario  string
	Backends  []string
	Available []string
	Steps     []Step
	Console   [][]any
	Metrics   []Sample
}

// Mismatches counts steps whose delivery differed from the expectation.
func (r *Report) Mismatches() int {
	n := 0
	for _, s := range r.Steps {
		if s.Mismatch != "" {
			n++
		}
	}
	return n
}

// Run replays sc against stub backends. The report is returned even when
// expectations fail; the error then wraps ErrMismatch. Cancelling ctx stops
// the replay before the next call and returns the partial report.
func Run(ctx context.Context, sc *Scenario, log logger.Logger) (*Report, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	cfg, err := config.LoadWithOverrides(ctx, sc.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: config: %w", ErrScenario, err)
	}

	j := &journal{}
	env := host.NewMapEnv()
	console := &stub.Console{}
	env.Set(host.GlobalConsole, console)
	install(env, sc.Backends, j)

	reg := prometheus.NewRegistry()
	opts := []app.Option{
		app.WithConfig(cfg),
		app.WithLogger(log),
		app.WithMetrics(metrics.NewManager(metrics.WithPrometheusRegistry(reg))),
	}
	if h := scenarioHook(sc); h != nil {
		opts = append(opts, app.WithHook(h))
	}
	tr, err := app.New(env, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScenario, err)
	}

	report := &Report{
		Scenario:  sc.Name,
		Backends:  tr.Adapters(),
		Available: tr.Probe(ctx),
	}
	log.Info(ctx, "replaying scenario",
		logger.String("scenario", sc.Name),
		logger.Int("calls", len(sc.Calls)),
		logger.Strings("available", report.Available))

	for i, c := range sc.Calls {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("stopped after %d of %d calls: %w", i, len(sc.Calls), err)
		}
		out := tr.Track(ctx, c.Type, c.Args...)
		step := Step{Call: c, Outcome: out, Calls: j.drain()}
		if c.Expect != nil && !sameSet(c.Expect, out.Delivered) {
			step.Mismatch = fmt.Sprintf("expected delivery to %v, got %v", c.Expect, out.Delivered)
			log.Warn(ctx, "expectation mismatch",
				logger.Strings("args", c.Args),
				logger.String("detail", step.Mismatch))
		}
		report.Steps = append(report.Steps, step)
	}

	for _, c := range console.Calls() {
		report.Console = append(report.Console, c.Args)
	}
	report.Metrics = gather(reg)

	if n := report.Mismatches(); n > 0 {
		return report, fmt.Errorf("%w: %d of %d calls", ErrMismatch, n, len(report.Steps))
	}
	return report, nil
}

func scenarioHook(sc *Scenario) app.Hook {
	if len(sc.Veto) == 0 && sc.Redact == "" {
		return nil
	}
	return func(_ context.Context, d *app.HookData) {
		if slices.Contains(sc.Veto, d.Category) {
			d.PreventDefault()
			return
		}
		if sc.Redact != "" && d.Label != "" {
			d.Label = sc.Redact
		}
	}
}

// journal collects backend calls in arrival order.
type journal struct {
	mu    sync.Mutex
	calls []BackendCall
}

func (j *journal) add(c BackendCall) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, c)
}

func (j *journal) recorder(name string) func(stub.Call) {
	return func(c stub.Call) {
		j.add(BackendCall{Backend: name, Method: c.Method, Args: c.Args})
	}
}

func (j *journal) drain() []BackendCall {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := j.calls
	j.calls = nil
	return out
}

// arm wires r into the journal and applies the failure mode.
func arm(r *stub.Recorder, name, fail string, j *journal) {
	r.OnCall = j.recorder(name)
	switch fail {
	case FailError:
		r.Err = fmt.Errorf("%s: simulated failure", name)
	case FailPanic:
		r.Panic = "simulated panic in " + name
	}
}

// install binds a stub global for every backend in specs.
func install(env *host.MapEnv, specs map[string]BackendSpec, j *journal) {
	for name, spec := range specs {
		switch name {
		case backend.NameUniversal:
			ids := spec.Trackers
			if len(ids) == 0 {
				ids = []string{defaultTrackingID}
			}
			ga := stub.NewUniversalGA(ids...)
			for _, t := range ga.Trackers {
				arm(&t.Recorder, name+"/"+t.ID, spec.Fail, j)
			}
			env.Set(host.GlobalUniversalGA, ga)

		case backend.NameGtag:
			id := defaultTrackingID
			if len(spec.Trackers) > 0 {
				id = spec.Trackers[0]
			}
			dl := stub.NewQueue(host.Arguments{"js"}, host.Arguments{"config", id})
			arm(&dl.Recorder, name, spec.Fail, j)
			env.Set(host.GlobalDataLayer, dl)

		case backend.NameAdobe:
			loader := &stub.TagLoader{}
			s := loader.New()
			arm(&s.Recorder, name, spec.Fail, j)
			s.OnCall = func(c stub.Call) {
				j.add(BackendCall{Backend: name, Method: c.Method, Args: append(c.Args, adobeVars(s))})
			}
			env.Set(host.GlobalTagLoader, loader).Set(host.GlobalAppMeasure, s)

		case backend.NameClickTale:
			fn := &stub.Func{}
			arm(&fn.Recorder, name, spec.Fail, j)
			env.Set(host.GlobalClickTale, fn)

		case backend.NameUtm:
			fn := &stub.Func{}
			arm(&fn.Recorder, name, spec.Fail, j)
			env.Set(host.GlobalUtm, fn)

		case backend.NameBaidu:
			hmt := stub.NewQueue()
			arm(&hmt.Recorder, name, spec.Fail, j)
			env.Set(host.GlobalBaidu, hmt)

		case backend.NameClassic:
			if len(spec.Trackers) == 0 {
				gaq := stub.NewQueue()
				arm(&gaq.Recorder, name+"/_gaq", spec.Fail, j)
				env.Set(host.GlobalClassicGAQ, gaq)
				continue
			}
			gat := &stub.ClassicGA{}
			for _, tn := range spec.Trackers {
				t := &stub.ClassicTracker{}
				arm(&t.Recorder, name+"/"+tn, spec.Fail, j)
				gat.Trackers = append(gat.Trackers, t)
			}
			env.Set(host.GlobalClassicGAT, gat)

		case backend.NameYandex:
			ids := spec.Counters
			if len(ids) == 0 {
				ids = []string{"1"}
			}
			for _, id := range ids {
				c := &stub.YandexCounter{}
				arm(&c.Recorder, name+"/"+id, spec.Fail, j)
				env.Set(host.YandexPrefix+id, c)
			}
		}
	}
}

// adobeVars returns the props named by linkTrackVars.
func adobeVars(s *stub.AppMeasurement) map[string]any {
	out := make(map[string]any)
	v, ok := s.Var("linkTrackVars")
	if !ok {
		return out
	}
	names, _ := v.(string)
	for _, name := range strings.Split(names, ",") {
		if pv, ok := s.Var(name); ok {
			out[name] = pv
		}
	}
	return out
}

func sameSet(want, got []string) bool {
	a, b := slices.Clone(want), slices.Clone(got)
	sort.Strings(a)
	sort.Strings(b)
	return slices.Equal(a, b)
}

// gather returns every non-zero counter and gauge series, plus histogram
// sample counts, sorted by name.
func gather(reg *prometheus.Registry) []Sample {
	families, err := reg.Gather()
	if err != nil {
		return nil
	}
	var out []Sample
	for _, f := range families {
		for _, m := range f.GetMetric() {
			name, value := f.GetName(), 0.0
			switch f.GetType() {
			case dto.MetricType_COUNTER:
				value = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				value = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				name += "_count"
				value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			if value == 0 {
				continue
			}
			out = append(out, Sample{Name: name, Labels: labels(m.GetLabel()), Value: value})
		}
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

func labels(pairs []*dto.LabelPair) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p.GetName()] = p.GetValue()
	}
	return out
}
