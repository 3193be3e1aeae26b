// Package logging provides structured, context-aware logging shared by
// every pipeline component: the archive client, repository store, work
// queue, pipeline service, search index, and connector all log through a
// ContextLogger rather than a package-level global.
package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Level is a normalized log level independent of the logrus constant
// names, so callers never import logrus directly.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config controls how the root logger is constructed.
type Config struct {
	Level     Level
	Format    string // "json" or "text"
	AddCaller bool
}

// New builds a configured *logrus.Logger. Output format and level come
// from the loaded configuration's log section.
func New(cfg Config) *logrus.Logger {
	l := logrus.New()

	switch cfg.Level {
	case LevelDebug:
		l.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		l.SetLevel(logrus.WarnLevel)
	case LevelError:
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339, FullTimestamp: true})
	}
	l.SetReportCaller(cfg.AddCaller)

	return l
}

// ContextLogger carries an accumulated set of fields through a call
// chain without mutating a shared logger instance.
type ContextLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// NewContextLogger wraps logger with an initial field set.
func NewContextLogger(logger *logrus.Logger, fields map[string]interface{}) *ContextLogger {
	base := make(logrus.Fields, len(fields))
	for k, v := range fields {
		base[k] = v
	}
	return &ContextLogger{logger: logger, fields: base}
}

func (cl *ContextLogger) clone(extra logrus.Fields) *ContextLogger {
	merged := make(logrus.Fields, len(cl.fields)+len(extra))
	for k, v := range cl.fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return &ContextLogger{logger: cl.logger, fields: merged}
}

// WithField returns a derived logger carrying one additional field.
func (cl *ContextLogger) WithField(key string, value interface{}) *ContextLogger {
	return cl.clone(logrus.Fields{key: value})
}

// WithFields returns a derived logger carrying additional fields.
func (cl *ContextLogger) WithFields(fields map[string]interface{}) *ContextLogger {
	f := make(logrus.Fields, len(fields))
	for k, v := range fields {
		f[k] = v
	}
	return cl.clone(f)
}

// WithError attaches an error's message and Go type.
func (cl *ContextLogger) WithError(err error) *ContextLogger {
	return cl.clone(logrus.Fields{"error": err.Error(), "error_type": fmt.Sprintf("%T", err)})
}

// WithContext pulls well-known values (task/bulk identifiers) off a
// context.Context, when present, for correlation across log lines.
func (cl *ContextLogger) WithContext(ctx context.Context) *ContextLogger {
	extra := logrus.Fields{}
	if v := ctx.Value(taskIDKey); v != nil {
		extra["task_id"] = v
	}
	if v := ctx.Value(bulkIDKey); v != nil {
		extra["bulk_id"] = v
	}
	if len(extra) == 0 {
		return cl
	}
	return cl.clone(extra)
}

type ctxKey int

const (
	taskIDKey ctxKey = iota
	bulkIDKey
)

// WithTaskID returns a context annotated with a task identifier for log
// correlation.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey, taskID)
}

// WithBulkID returns a context annotated with a bulk identifier for log
// correlation.
func WithBulkID(ctx context.Context, bulkID string) context.Context {
	return context.WithValue(ctx, bulkIDKey, bulkID)
}

func (cl *ContextLogger) Debug(msg string) { cl.logger.WithFields(cl.fields).Debug(msg) }
func (cl *ContextLogger) Info(msg string)  { cl.logger.WithFields(cl.fields).Info(msg) }
func (cl *ContextLogger) Warn(msg string)  { cl.logger.WithFields(cl.fields).Warn(msg) }
func (cl *ContextLogger) Error(msg string) { cl.logger.WithFields(cl.fields).Error(msg) }

func (cl *ContextLogger) Debugf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Debugf(format, args...)
}
func (cl *ContextLogger) Infof(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Infof(format, args...)
}
func (cl *ContextLogger) Warnf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Warnf(format, args...)
}
func (cl *ContextLogger) Errorf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Errorf(format, args...)
}

// LogOperation runs fn, logging its start, duration, and outcome.
func LogOperation(logger *ContextLogger, operation string, fn func() error) error {
	start := time.Now()
	logger.WithField("operation", operation).Debug("operation started")

	err := fn()

	entry := logger.WithFields(map[string]interface{}{
		"operation":   operation,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("operation failed")
		return err
	}
	entry.Info("operation completed")
	return nil
}

// HTTPFields builds the standard field set for an outbound HTTP call log
// line (archive client requests).
func HTTPFields(method, url string, statusCode int, duration time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"http_method":      method,
		"http_url":         url,
		"http_status_code": statusCode,
		"duration_ms":      duration.Milliseconds(),
	}
}

// DatabaseFields builds the standard field set for a SQL operation log
// line.
func DatabaseFields(operation, table string, rowsAffected int64, duration time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"db_operation":  operation,
		"db_table":      table,
		"rows_affected": rowsAffected,
		"duration_ms":   duration.Milliseconds(),
	}
}
