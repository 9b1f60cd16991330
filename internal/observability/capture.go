// Package observability provides error capture, metrics, and tracing.
package observability

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// coded is satisfied by application errors that carry a machine-readable code.
type coded interface {
	ErrorCode() string
}

// CaptureError is the single sink for unexpected errors. It records err on the
// active span, increments campus_errors_total and logs it with attrs.
// A nil err is ignored.
func CaptureError(ctx context.Context, err error, attrs ...slog.Attr) {
	if err == nil {
		return
	}

	code := "UNKNOWN"
	var c coded
	if errors.As(err, &c) {
		code = c.ErrorCode()
	}

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("error.code", code))

	ErrorsTotal.WithLabelValues(code).Inc()

	args := make([]any, 0, len(attrs)+2)
	args = append(args, slog.String("error", err.Error()), slog.String("code", code))
	for _, a := range attrs {
		args = append(args, a)
	}
	slog.Default().ErrorContext(ctx, "captured error", args...)
}

// CaptureMessage logs a non-error telemetry event at warn level and tags the active span.
func CaptureMessage(ctx context.Context, msg string, attrs ...slog.Attr) {
	trace.SpanFromContext(ctx).AddEvent(msg)
	args := make([]any, 0, len(attrs))
	for _, a := range attrs {
		args = append(args, a)
	}
	slog.Default().WarnContext(ctx, msg, args...)
}
