package log

import (
	"context"
	"log/slog"
	"net/http"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogHTTPEnd logs the completion of an HTTP request
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithHTTPResponse(statusCode, durationMs).
		WithClientIP(clientIP)

	l := FromContextOr(ctx, sl.logger).WithComponent(ComponentHTTP)
	l.Logger.Log(ctx, level, "HTTP request completed", l.attrs(fields.ToSlice())...)
}

// LogInvoiceApplied logs an invoice attributed to a forecast cell.
func (sl *StructuredLogger) LogInvoiceApplied(ctx context.Context, invoiceID, projectID, rubroID string, month int, reason string) {
	fields := NewFields().
		WithCell(projectID, rubroID, month).
		WithOperation(OpReconcile)
	fields[FieldInvoiceID] = invoiceID
	fields[FieldReason] = reason

	sl.logger.WithComponent(ComponentInvoice).InfoContext(ctx, "Invoice applied", fields.ToSlice()...)
}

// LogInvoiceUnmatched logs an invoice that matched no forecast cell.
func (sl *StructuredLogger) LogInvoiceUnmatched(ctx context.Context, invoiceID, projectID string, month int) {
	fields := NewFields().WithOperation(OpReconcile)
	fields[FieldInvoiceID] = invoiceID
	fields[FieldProjectID] = projectID
	fields[FieldMonth] = month

	sl.logger.WithComponent(ComponentInvoice).WarnContext(ctx, "Invoice unmatched", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation)
	FromContextOr(ctx, sl.logger).WithComponent(component).ErrorContext(ctx, msg, fields.ToSlice()...)
}

// FromContextOr returns the request logger in ctx, or fallback.
func FromContextOr(ctx context.Context, fallback *Logger) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return fallback
}
