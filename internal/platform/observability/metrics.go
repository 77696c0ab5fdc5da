package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/iforge-uos/print-queue-api/internal/platform/observability"

// PageMetrics records viewer page renders.
type PageMetrics struct {
	rendered metric.Int64Counter
	problems metric.Int64Counter
}

// NewPageMetrics registers the counters on meter, or on the global provider when nil.
func NewPageMetrics(meter metric.Meter) (*PageMetrics, error) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	rendered, err := meter.Int64Counter(
		"viewer.pages.rendered",
		metric.WithDescription("Viewer pages rendered, by widget and whether a resource was supplied"),
	)
	if err != nil {
		return nil, err
	}
	problems, err := meter.Int64Counter(
		"viewer.pages.problems",
		metric.WithDescription("Query parameters replaced by defaults, by problem code"),
	)
	if err != nil {
		return nil, err
	}
	return &PageMetrics{rendered: rendered, problems: problems}, nil
}

// Rendered counts one page render.
func (m *PageMetrics) Rendered(ctx context.Context, widget string, empty bool, problemCodes []string) {
	if m == nil {
		return
	}
	m.rendered.Add(ctx, 1, metric.WithAttributes(
		attribute.String("widget", widget),
		attribute.Bool("empty", empty),
	))
	for _, code := range problemCodes {
		m.problems.Add(ctx, 1, metric.WithAttributes(
			attribute.String("widget", widget),
			attribute.String("code", code),
		))
	}
}
