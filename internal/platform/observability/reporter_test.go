package observability

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewSentryReporterWithoutDSN(t *testing.T) {
	reporter, err := NewSentryReporter("  ", "local", "dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := reporter.(NopReporter); !ok {
		t.Fatalf("expected NopReporter, got %T", reporter)
	}
	if !reporter.Flush(time.Millisecond) {
		t.Fatalf("nop flush should report success")
	}
}

func TestNewSentryReporterRejectsBadDSN(t *testing.T) {
	if _, err := NewSentryReporter("not a dsn", "local", "dev"); err == nil {
		t.Fatalf("expected error for malformed dsn")
	}
}

func TestPageMetricsNilSafe(t *testing.T) {
	var m *PageMetrics
	m.Rendered(context.Background(), "stl", true, []string{"missing_required_parameter"})

	m, err := NewPageMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.Rendered(context.Background(), "gcode", false, nil)
}
