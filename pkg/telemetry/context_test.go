package telemetry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openhyve/openhyve/pkg/telemetry"
)

func newContextTelemetry(t *testing.T) *telemetry.Telemetry {
	t.Helper()

	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = "error"
	cfg.Logging.Output = "stderr"
	cfg.Tracing.Enabled = false
	cfg.Tracing.Exporter = "none"
	cfg.Metrics.Enabled = true
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("Failed to create telemetry: %v", err)
	}
	t.Cleanup(func() {
		_ = tel.Shutdown(context.Background())
	})
	return tel
}

func scrapeMetrics(t *testing.T, tel *telemetry.Telemetry) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	tel.Metrics.Handler().ServeHTTP(rec, req)
	return rec.Body.String()
}

func TestRunContextRecordsMetrics(t *testing.T) {
	tel := newContextTelemetry(t)

	ctx := tel.WithContext(context.Background())
	ctx = telemetry.WithRunContext(ctx, "run-1", "apply")
	telemetry.EndRunContext(ctx, "run-1", "completed", nil)

	body := scrapeMetrics(t, tel)
	wantLines := []string{
		`openhyve_runs_started_total{phase="apply"} 1`,
		`openhyve_runs_completed_total{status="completed"} 1`,
	}
	for _, line := range wantLines {
		if !strings.Contains(body, line) {
			t.Errorf("Metrics output missing %q", line)
		}
	}
}

func TestReconcileContextRecordsMetrics(t *testing.T) {
	tel := newContextTelemetry(t)

	ctx := tel.WithContext(context.Background())
	ctx = telemetry.WithReconcileContext(ctx, "run-1", "vm.web01", "vm", "create")
	telemetry.EndReconcileContext(ctx, "run-1", "vm.web01", "vm", "create", "succeeded", nil)

	body := scrapeMetrics(t, tel)
	wantLines := []string{
		`openhyve_reconciles_total{phase="create",status="succeeded"} 1`,
		`openhyve_active_reconciles 0`,
	}
	for _, line := range wantLines {
		if !strings.Contains(body, line) {
			t.Errorf("Metrics output missing %q", line)
		}
	}
}

func TestRunContextWithoutTelemetryIsInert(t *testing.T) {
	tel := newContextTelemetry(t)

	// The helpers only fire when the telemetry instance has been
	// attached to the context first.
	ctx := telemetry.WithRunContext(context.Background(), "run-1", "apply")
	telemetry.EndRunContext(ctx, "run-1", "completed", nil)

	body := scrapeMetrics(t, tel)
	if strings.Contains(body, `openhyve_runs_started_total`) {
		t.Errorf("Expected no run metrics without an attached context, got:\n%s", body)
	}
}
