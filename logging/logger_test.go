package logging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() (*ContextLogger, *logrustest.Hook) {
	logger, hook := logrustest.NewNullLogger()
	return NewContextLogger(logger, nil), hook
}

func TestNewSetsLevelAndFormatter(t *testing.T) {
	l := New(Config{Level: LevelDebug, Format: "json"})
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	_, ok := l.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)

	l2 := New(Config{Level: LevelWarn, Format: "text"})
	assert.Equal(t, logrus.WarnLevel, l2.GetLevel())
	_, ok = l2.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
}

func TestContextLoggerWithFieldDoesNotMutateParent(t *testing.T) {
	cl, hook := newTestLogger()
	child := cl.WithField("page_id", "p-1")

	child.Info("child event")
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "p-1", hook.LastEntry().Data["page_id"])

	hook.Reset()
	cl.Info("parent event")
	require.Len(t, hook.Entries, 1)
	_, present := hook.LastEntry().Data["page_id"]
	assert.False(t, present)
}

func TestContextLoggerWithFields(t *testing.T) {
	cl, hook := newTestLogger()
	cl.WithFields(map[string]interface{}{"publication_id": "sn123", "seq": 4}).Info("event")

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "sn123", hook.LastEntry().Data["publication_id"])
	assert.Equal(t, 4, hook.LastEntry().Data["seq"])
}

func TestContextLoggerWithError(t *testing.T) {
	cl, hook := newTestLogger()
	cl.WithError(errors.New("connection refused")).Error("fetch failed")

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "connection refused", hook.LastEntry().Data["error"])
	assert.Contains(t, hook.LastEntry().Data["error_type"], "errorString")
}

func TestContextLoggerWithContext(t *testing.T) {
	cl, hook := newTestLogger()
	ctx := WithTaskID(context.Background(), "task-1")
	ctx = WithBulkID(ctx, "bulk-1")

	cl.WithContext(ctx).Info("task progress")

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "task-1", hook.LastEntry().Data["task_id"])
	assert.Equal(t, "bulk-1", hook.LastEntry().Data["bulk_id"])
}

func TestContextLoggerWithContextNoValues(t *testing.T) {
	cl, hook := newTestLogger()
	cl.WithContext(context.Background()).Info("no correlation")

	require.Len(t, hook.Entries, 1)
	_, hasTask := hook.LastEntry().Data["task_id"]
	assert.False(t, hasTask)
}

func TestLogOperationSuccess(t *testing.T) {
	cl, hook := newTestLogger()
	err := LogOperation(cl, "ocr_extract", func() error { return nil })

	require.NoError(t, err)
	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "operation completed", last.Message)
	assert.Equal(t, "ocr_extract", last.Data["operation"])
}

func TestLogOperationFailure(t *testing.T) {
	cl, hook := newTestLogger()
	wantErr := errors.New("ocr engine crashed")
	err := LogOperation(cl, "ocr_extract", func() error { return wantErr })

	assert.ErrorIs(t, err, wantErr)
	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "operation failed", last.Message)
	assert.Equal(t, "ocr engine crashed", last.Data["error"])
}

func TestHTTPFields(t *testing.T) {
	f := HTTPFields("GET", "https://chroniclingamerica.loc.gov/search", 200, 150*time.Millisecond)
	assert.Equal(t, "GET", f["http_method"])
	assert.Equal(t, 200, f["http_status_code"])
	assert.Equal(t, int64(150), f["duration_ms"])
}

func TestDatabaseFields(t *testing.T) {
	f := DatabaseFields("INSERT", "newspaper_pages", 1, 12*time.Millisecond)
	assert.Equal(t, "INSERT", f["db_operation"])
	assert.Equal(t, "newspaper_pages", f["db_table"])
	assert.Equal(t, int64(1), f["rows_affected"])
	assert.Equal(t, int64(12), f["duration_ms"])
}
