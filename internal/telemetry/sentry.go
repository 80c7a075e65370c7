// Package telemetry wraps Sentry tracing for the analysis pipeline.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	serverName   = "huddled"
	flushTimeout = 5 * time.Second
)

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init starts the Sentry client and returns its flush function.
// An empty DSN yields a no-op.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate <= 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serverName,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			return sampleRate(ctx.Span, cfg.TracesSampleRate)
		}),
	})
	if err != nil {
		return func() {}, err
	}

	slog.Info("sentry tracing initialized", "environment", cfg.Environment, "sample_rate", cfg.TracesSampleRate)
	return func() { sentry.Flush(flushTimeout) }, nil
}

// sampleRate follows the parent decision for continued traces and the
// configured rate for new ones.
func sampleRate(span *sentry.Span, rate float64) float64 {
	if span == nil {
		return rate
	}
	var noParent sentry.SpanID
	if span.ParentSpanID != noParent {
		if span.Sampled.Bool() {
			return 1.0
		}
		return 0.0
	}
	return rate
}

// SpanAttributes tags a pipeline span.
type SpanAttributes struct {
	SourceID   string
	Operation  string
	ChunkCount int
}

// Span is a pipeline step. The zero value is usable and records nothing.
type Span struct {
	inner *sentry.Span
}

// End finishes the span.
func (s *Span) End() {
	if s.inner == nil {
		return
	}
	if s.inner.Status == sentry.SpanStatusUndefined {
		s.inner.Status = sentry.SpanStatusOK
	}
	s.inner.Finish()
}

// SetChunkCount records how many chunks an operation processed.
func (s *Span) SetChunkCount(n int) {
	if s.inner != nil {
		s.inner.SetData("chunk_count", n)
	}
}

// SetTag sets a span tag.
func (s *Span) SetTag(key, value string) {
	if s.inner != nil {
		s.inner.SetTag(key, value)
	}
}

// SetError marks the span failed. Cancellations are recorded as such and
// not reported.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		s.inner.Status = sentry.SpanStatusCanceled
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		s.inner.Status = sentry.SpanStatusDeadlineExceeded
	} else {
		s.inner.Status = sentry.SpanStatusInternalError
	}
	CaptureError(s.inner.Context(), err)
}

// StartSpan starts a child of the span in ctx, or a new transaction when
// there is none. name is used as the span operation.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartTransaction(ctx, name, sentry.WithOpName(name))
	}

	if attrs.SourceID != "" {
		span.SetTag("source_id", attrs.SourceID)
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}
	if attrs.ChunkCount > 0 {
		span.SetData("chunk_count", attrs.ChunkCount)
	}

	return span.Context(), &Span{inner: span}
}

func hubFor(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

// CaptureError reports err on the hub bound to ctx.
func CaptureError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	hubFor(ctx).CaptureException(err)
}

// AddBreadcrumb records a pipeline step on the current scope.
func AddBreadcrumb(ctx context.Context, category, message string) {
	hubFor(ctx).AddBreadcrumb(&sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}, nil)
}
