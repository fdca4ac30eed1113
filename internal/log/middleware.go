package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type ContextKey string

const (
	LoggerContextKey    ContextKey = "logger"
	RequestIDContextKey ContextKey = "request_id"
	failureContextKey   ContextKey = "request_failure"

	RequestIDHeader = "X-Request-ID"
)

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

// RequestID returns the request id stored by RequestMiddleware, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// WithLogger stores logger in ctx
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// requestFailure holds the error a handler reported through LogError so the
// completion line carries it.
type requestFailure struct {
	msg       string
	err       error
	component string
	operation string
	fields    LogFields
}

// RequestMiddleware assigns a request id, stores a request-scoped logger in
// the context and logs request completion. With logAll false only responses
// with status >= 500, or that reported an error, are logged.
func RequestMiddleware(logger *Logger, logAll bool, extractIP func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			clientIP := ""
			if extractIP != nil {
				clientIP = extractIP(r)
			}

			reqLogger := logger.WithComponent(ComponentHTTP).With(FieldRequestID, requestID)
			ctx := WithLogger(r.Context(), reqLogger)
			ctx = context.WithValue(ctx, RequestIDContextKey, requestID)
			failure := &requestFailure{}
			ctx = context.WithValue(ctx, failureContextKey, failure)
			r = r.WithContext(ctx)

			rw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			if !logAll && rw.statusCode < http.StatusInternalServerError && failure.err == nil {
				return
			}
			NewStructuredLogger(reqLogger).LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogHTTPEnd logs the completion of an HTTP request at a level derived from status
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP)
	if f, ok := ctx.Value(failureContextKey).(*requestFailure); ok && f.err != nil {
		for k, v := range f.fields {
			if _, set := fields[k]; !set {
				fields[k] = v
			}
		}
		fields.WithError(f.err).WithOperation(f.operation)
		fields[FieldFailure] = f.msg
		fields[FieldSource] = f.component
		level = slog.LevelError
	}

	sl.logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogRecordCreated logs a stored budget record
func (sl *StructuredLogger) LogRecordCreated(ctx context.Context, id int64, year, month int, amount int64, budgetType string, authorID *int64) {
	fields := NewFields().
		WithRecord(id, year, month, amount, budgetType).
		WithOperation(OpCreate)
	if authorID != nil {
		fields[FieldAuthorID] = *authorID
	}

	sl.logger.WithComponent(ComponentBudget).InfoContext(ctx, "Budget record created", fields.ToSlice()...)
}

// LogError logs an error with structured context. Inside RequestMiddleware
// the first error is attached to the request's completion line instead.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	if f, ok := ctx.Value(failureContextKey).(*requestFailure); ok && err != nil {
		if f.err == nil {
			*f = requestFailure{msg: msg, err: err, component: component, operation: operation, fields: fields}
		}
		return
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation)

	sl.logger.WithComponent(component).ErrorContext(ctx, msg, allFields.ToSlice()...)
}
