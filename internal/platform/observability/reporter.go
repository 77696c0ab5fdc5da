package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/iforge-uos/print-queue-api/internal/platform/requestctx"
)

// Reporter forwards recovered panics to an error tracking backend.
type Reporter interface {
	Recover(ctx context.Context, rec any)
	Flush(timeout time.Duration) bool
}

// NopReporter discards reports.
type NopReporter struct{}

func (NopReporter) Recover(context.Context, any) {}
func (NopReporter) Flush(time.Duration) bool { return true }

// SentryReporter reports panics through sentry-go.
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter initialises Sentry. An empty DSN yields a NopReporter.
func NewSentryReporter(dsn, environment, release string) (Reporter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return NopReporter{}, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, fmt.Errorf("observability: init sentry: %w", err)
	}
	return &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Recover reports rec on a hub cloned for the request.
func (s *SentryReporter) Recover(ctx context.Context, rec any) {
	hub := s.hub.Clone()
	if traceID := requestctx.TraceID(ctx); traceID != "" {
		hub.Scope().SetTag("trace_id", traceID)
	}
	hub.RecoverWithContext(ctx, rec)
}

// Flush waits for buffered events to be sent.
func (s *SentryReporter) Flush(timeout time.Duration) bool {
	return s.hub.Flush(timeout)
}
