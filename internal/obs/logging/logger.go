// Package logging provides the structured, service-tagged logger used by the
// admin daemon and the registry.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys carried alongside a request.
type ContextKey string

const (
	TraceIDKey ContextKey = "trace_id"
	UnitKey    ContextKey = "unit"
	VMKey      ContextKey = "vm"
)

// Logger wraps logrus.Logger with givc's fields baked in.
type Logger struct {
	*logrus.Logger
	component string
}

// New creates a Logger tagged with component, at the given level ("debug",
// "info", ...) and format ("json" or "text").
func New(component, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, component: component}
}

// NewFromEnv builds a Logger from LOG_LEVEL/LOG_FORMAT, defaulting to
// info/json.
func NewFromEnv(component string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(component, level, format)
}

// WithContext attaches trace/unit/vm fields carried on ctx, if present.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("component", l.component)
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	if unit, ok := ctx.Value(UnitKey).(string); ok && unit != "" {
		entry = entry.WithField("unit", unit)
	}
	if vm, ok := ctx.Value(VMKey).(string); ok && vm != "" {
		entry = entry.WithField("vm", vm)
	}
	return entry
}

// WithFields creates an entry carrying both component and the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["component"] = l.component
	return l.Logger.WithFields(fields)
}

// WithError creates an entry carrying the error.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{"component": l.component, "error": err.Error()})
}

// NewTraceID returns a fresh trace identifier for a request.
func NewTraceID() string { return uuid.New().String() }

// WithTraceID attaches a trace ID to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithUnit attaches a unit name to ctx.
func WithUnit(ctx context.Context, unit string) context.Context {
	return context.WithValue(ctx, UnitKey, unit)
}

// WithVM attaches a VM name to ctx.
func WithVM(ctx context.Context, vm string) context.Context {
	return context.WithValue(ctx, VMKey, vm)
}

// LogUnitEvent logs a registry lifecycle event.
func (l *Logger) LogUnitEvent(ctx context.Context, kind, unit string) {
	l.WithContext(ctx).WithFields(logrus.Fields{"event": kind, "unit": unit}).Info("unit event")
}

// LogRPC logs the outcome of an agent RPC call.
func (l *Logger) LogRPC(ctx context.Context, method, target string, duration time.Duration, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"target":      target,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("agent rpc failed")
		return
	}
	entry.Debug("agent rpc completed")
}

// LogAudit logs a security/audit-relevant admin action.
func (l *Logger) LogAudit(ctx context.Context, action, target, result string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"action": action,
		"target": target,
		"result": result,
		"audit":  true,
	}).Info("admin action")
}

var defaultLogger *Logger

// InitDefault initializes the package-wide default logger.
func InitDefault(component, level, format string) {
	defaultLogger = New(component, level, format)
}

// Default returns the package-wide logger, initializing a fallback if needed.
func Default() *Logger {
	if defaultLogger == nil {
		defaultLogger = New("givc", "info", "json")
	}
	return defaultLogger
}
