package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Error reasons used as the "reason" label of backend errors.
const (
	ReasonError = "error"
	ReasonPanic = "panic"
)

// Dispatches complete in well under a millisecond unless a backend misbehaves.
var defaultLatencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50} //nolint:gochecknoglobals // immutable default

// Manager owns the Prometheus collectors of the dispatch engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Event flow
	eventsTracked        *prometheus.CounterVec
	eventsVetoed         prometheus.Counter
	eventsNonInteraction prometheus.Counter
	dispatchLatency      prometheus.Histogram

	// Backend fan-out
	backendDispatch   *prometheus.CounterVec
	backendSkipped    *prometheus.CounterVec
	backendErrors     *prometheus.CounterVec
	backendsAvailable prometheus.Gauge

	hookErrors prometheus.Counter
}

var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "komito",
		subsystem:        "dispatch",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.eventsTracked = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "events_tracked_total",
		Help:        "Total number of track calls by event kind",
		ConstLabels: m.constLabels,
	}, []string{"kind"})

	m.eventsVetoed = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "events_vetoed_total",
		Help:        "Total number of events cancelled by the interception hook",
		ConstLabels: m.constLabels,
	})

	m.eventsNonInteraction = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "events_non_interaction_total",
		Help:        "Total number of events dispatched as non-interaction",
		ConstLabels: m.constLabels,
	})

	m.dispatchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "dispatch_latency_milliseconds",
		Help:        "Time spent fanning one event out to every backend",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.backendDispatch = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "backend_dispatch_total",
		Help:        "Total number of events handed to a backend without error",
		ConstLabels: m.constLabels,
	}, []string{"backend"})

	m.backendSkipped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "backend_skipped_total",
		Help:        "Total number of events skipped because the backend was not present",
		ConstLabels: m.constLabels,
	}, []string{"backend"})

	m.backendErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "backend_errors_total",
		Help:        "Total number of backend calls that failed, by reason",
		ConstLabels: m.constLabels,
	}, []string{"backend", "reason"})

	m.backendsAvailable = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "backends_available",
		Help:        "Number of backends found by the last capability probe",
		ConstLabels: m.constLabels,
	})

	m.hookErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "hook_errors_total",
		Help:        "Total number of interception hook panics",
		ConstLabels: m.constLabels,
	})
}

// RecordEventTracked counts a track call of the given kind.
func (m *Manager) RecordEventTracked(kind string) {
	if m.enabled {
		m.eventsTracked.WithLabelValues(kind).Inc()
	}
}

// RecordEventVetoed counts an event cancelled by the hook.
func (m *Manager) RecordEventVetoed() {
	if m.enabled {
		m.eventsVetoed.Inc()
	}
}

// RecordNonInteraction counts a non-interaction event.
func (m *Manager) RecordNonInteraction() {
	if m.enabled {
		m.eventsNonInteraction.Inc()
	}
}

// RecordDispatchLatency observes the fan-out duration in milliseconds.
func (m *Manager) RecordDispatchLatency(latencyMs float64) {
	if m.enabled {
		m.dispatchLatency.Observe(latencyMs)
	}
}

// RecordBackendDispatch counts a successful hand-off to backend.
func (m *Manager) RecordBackendDispatch(backend string) {
	if m.enabled {
		m.backendDispatch.WithLabelValues(backend).Inc()
	}
}

// RecordBackendSkipped counts a dispatch skipped because backend is absent.
func (m *Manager) RecordBackendSkipped(backend string) {
	if m.enabled {
		m.backendSkipped.WithLabelValues(backend).Inc()
	}
}

// RecordBackendError counts a failed backend call.
func (m *Manager) RecordBackendError(backend, reason string) {
	if m.enabled {
		m.backendErrors.WithLabelValues(backend, reason).Inc()
	}
}

// UpdateBackendsAvailable sets the number of backends found by the last probe.
func (m *Manager) UpdateBackendsAvailable(count int) {
	if m.enabled {
		m.backendsAvailable.Set(float64(count))
	}
}

// RecordHookError counts a panicking interception hook.
func (m *Manager) RecordHookError() {
	if m.enabled {
		m.hookErrors.Inc()
	}
}

// Default returns the process-wide manager registered on GetRegistry().
func Default() *Manager {
	return globalManager
}

// GetRegistry returns the custom Prometheus registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
