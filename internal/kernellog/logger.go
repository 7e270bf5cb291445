// Package kernellog provides structured logging for the kernel core,
// tagging every entry with the emitting component and (when present) the
// object reference the entry concerns.
package kernellog

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ContextKey is the type used for logging-related context values.
type ContextKey string

// TraceIDKey is the context key under which a request trace ID is stored.
const TraceIDKey ContextKey = "trace_id"

// Logger wraps logrus.Logger with a fixed component tag.
type Logger struct {
	*logrus.Logger
	component string
}

// New creates a Logger tagged with component, at the given level ("debug",
// "info", ...) and format ("json" or "text").
func New(component, level, format string) *Logger {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339, FullTimestamp: true})
	}
	l.SetOutput(os.Stdout)

	return &Logger{Logger: l, component: component}
}

// NewFromEnv builds a Logger using LOG_LEVEL/LOG_FORMAT, defaulting to
// info/json, following the teacher's bootstrap convention.
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

// WithContext returns an entry carrying the trace ID from ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("component", l.component)
	if traceID := ctx.Value(TraceIDKey); traceID != nil {
		entry = entry.WithField("trace_id", traceID)
	}
	return entry
}

// WithRef returns an entry tagged with the object reference under discussion.
func (l *Logger) WithRef(ref string) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{"component": l.component, "ref": ref})
}

// WithError returns an entry tagged with err.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{"component": l.component, "error": err.Error()})
}
