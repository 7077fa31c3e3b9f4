package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for OpenHyve.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	// Reconciliation metrics
	reconciles        *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec

	// Task polling metrics
	taskPolls        prometheus.Counter
	taskWaitDuration *prometheus.HistogramVec
	pollTimeouts     *prometheus.CounterVec

	// Provider metrics
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	providerErrors   *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec

	// System metrics
	activeReconciles prometheus.Gauge
	managedOutputs   *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Task waits span seconds to half an hour; the default buckets
	// top out far too early for download tasks.
	waitBuckets := []float64{1, 2, 5, 10, 30, 60, 120, 300, 600, 1200, 1800}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Run metrics
		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of runs started",
			},
			[]string{"phase"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of run execution in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		// Reconciliation metrics
		reconciles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciles_total",
				Help:      "Total number of resource reconciliations",
			},
			[]string{"phase", "status"},
		),
		reconcileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_duration_seconds",
				Help:      "Duration of resource reconciliations in seconds",
				Buckets:   waitBuckets,
			},
			[]string{"phase", "resource_type"},
		),

		// Task polling metrics
		taskPolls: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_polls_total",
				Help:      "Total number of task status probes",
			},
		),
		taskWaitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_wait_duration_seconds",
				Help:      "Time spent waiting for task completion in seconds",
				Buckets:   waitBuckets,
			},
			[]string{"class"},
		),
		pollTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_timeouts_total",
				Help:      "Total number of task waits that exhausted their budget",
			},
			[]string{"class"},
		),

		// Provider metrics
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Total number of provider calls",
			},
			[]string{"resource_type", "operation"},
		),
		providerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_call_duration_seconds",
				Help:      "Duration of provider calls in seconds",
				Buckets:   buckets,
			},
			[]string{"resource_type", "operation"},
		),
		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_errors_total",
				Help:      "Total number of provider errors",
			},
			[]string{"resource_type", "operation"},
		),

		// Error metrics
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),

		// System metrics
		activeReconciles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_reconciles",
				Help:      "Current number of in-flight reconciliations",
			},
		),
		managedOutputs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "managed_outputs",
				Help:      "Current number of resources with stored outputs",
			},
			[]string{"resource_type"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.reconciles,
		m.reconcileDuration,
		m.taskPolls,
		m.taskWaitDuration,
		m.pollTimeouts,
		m.providerCalls,
		m.providerDuration,
		m.providerErrors,
		m.errorsByClass,
		m.activeReconciles,
		m.managedOutputs,
	)

	return m, nil
}

// Run Metrics

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted(phase string) {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.WithLabelValues(phase).Inc()
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// Reconciliation Metrics

// RecordReconcile records one resource reconciliation.
func (m *Metrics) RecordReconcile(phase, status, resourceType string, duration time.Duration) {
	if m.reconciles == nil {
		return
	}
	m.reconciles.WithLabelValues(phase, status).Inc()
	m.reconcileDuration.WithLabelValues(phase, resourceType).Observe(duration.Seconds())
}

// ReconcileStarted marks a reconciliation as in flight.
func (m *Metrics) ReconcileStarted() {
	if m.activeReconciles == nil {
		return
	}
	m.activeReconciles.Inc()
}

// ReconcileFinished marks an in-flight reconciliation as done.
func (m *Metrics) ReconcileFinished() {
	if m.activeReconciles == nil {
		return
	}
	m.activeReconciles.Dec()
}

// Task Polling Metrics

// RecordTaskPoll counts one task status probe.
func (m *Metrics) RecordTaskPoll() {
	if m.taskPolls == nil {
		return
	}
	m.taskPolls.Inc()
}

// RecordTaskWait records the total time spent waiting for a task.
func (m *Metrics) RecordTaskWait(class string, duration time.Duration) {
	if m.taskWaitDuration == nil {
		return
	}
	m.taskWaitDuration.WithLabelValues(class).Observe(duration.Seconds())
}

// RecordPollTimeout counts a task wait that exhausted its budget.
func (m *Metrics) RecordPollTimeout(class string) {
	if m.pollTimeouts == nil {
		return
	}
	m.pollTimeouts.WithLabelValues(class).Inc()
}

// Provider Metrics

// RecordProviderCall records a provider call with its duration.
func (m *Metrics) RecordProviderCall(resourceType, operation string, duration time.Duration) {
	if m.providerCalls == nil {
		return
	}
	m.providerCalls.WithLabelValues(resourceType, operation).Inc()
	m.providerDuration.WithLabelValues(resourceType, operation).Observe(duration.Seconds())
}

// RecordProviderError records a provider error.
func (m *Metrics) RecordProviderError(resourceType, operation string) {
	if m.providerErrors == nil {
		return
	}
	m.providerErrors.WithLabelValues(resourceType, operation).Inc()
}

// Error Metrics

// RecordError records an error by class.
func (m *Metrics) RecordError(errorClass string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
}

// System Metrics

// SetManagedOutputs sets the current count of stored outputs.
func (m *Metrics) SetManagedOutputs(resourceType string, count float64) {
	if m.managedOutputs == nil {
		return
	}
	m.managedOutputs.WithLabelValues(resourceType).Set(count)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
