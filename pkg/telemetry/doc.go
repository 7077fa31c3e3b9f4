// Package telemetry provides observability instrumentation for OpenHyve.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring and debugging reconciliation runs.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "openhyve"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("runner")
//	logger = logger.WithRunID("run-123").WithResourceID("vm.web01")
//	logger.Info("Starting reconciliation")
//	logger.WithError(err).Error("Reconciliation failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into request flow and performance:
//
//	ctx, span := tel.Tracer.Start(ctx, "operation.name")
//	defer span.End()
//
//	span.SetAttributes(
//	    attribute.String("resource.id", resourceID),
//	    attribute.String("phase", "create"),
//	)
//
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development)
//
// # Metrics
//
// Prometheus metrics track system behavior and performance:
//
//	tel.Metrics.RecordRunStarted("apply")
//	tel.Metrics.RecordRunCompleted("succeeded", duration)
//	tel.Metrics.RecordReconcile("create", "succeeded", "vm", duration)
//	tel.Metrics.RecordProviderCall("vm", "create", duration)
//	tel.Metrics.RecordPollTimeout("download")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	tel.Events.PublishRunStarted(runID, phase)
//	tel.Events.PublishReconcileCompleted(runID, resourceID, phase, duration)
//	tel.Events.PublishTaskTimeout(runID, resourceID, taskHandle, budget)
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByRunID, FilterByResourceID
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Run context
//	ctx = telemetry.WithRunContext(ctx, runID, phase)
//	defer telemetry.EndRunContext(ctx, runID, status, err)
//
//	// Reconcile context
//	ctx = telemetry.WithReconcileContext(ctx, runID, resourceID, resourceType, phase)
//	defer telemetry.EndReconcileContext(ctx, runID, resourceID, resourceType, phase, status, err)
//
//	// Provider operation
//	err := telemetry.RecordProviderOperation(ctx, "vm", "create", func() error {
//	    return ops.Create(ctx, cfg)
//	})
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
// # Common Metrics
//
// Key metrics exposed:
//
//   - openhyve_runs_started_total{phase}
//   - openhyve_runs_completed_total{status}
//   - openhyve_run_duration_seconds{status}
//   - openhyve_reconciles_total{phase,status}
//   - openhyve_reconcile_duration_seconds{phase,resource_type}
//   - openhyve_task_polls_total
//   - openhyve_task_wait_duration_seconds{class}
//   - openhyve_poll_timeouts_total{class}
//   - openhyve_provider_calls_total{resource_type,operation}
//   - openhyve_provider_errors_total{resource_type,operation}
//   - openhyve_errors_by_class_total{class}
//   - openhyve_active_reconciles
//   - openhyve_managed_outputs{resource_type}
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
package telemetry
