package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsarchive/queue"
)

func TestRegistryDispatchRoutesToMatchingHandler(t *testing.T) {
	r := NewRegistry()
	var ran string
	r.Register(HandlerFunc{Operation: "download", Fn: func(ctx context.Context, task queue.Task) error {
		ran = "download"
		return nil
	}})
	r.Register(HandlerFunc{Operation: "ocr_extract", Fn: func(ctx context.Context, task queue.Task) error {
		ran = "ocr_extract"
		return nil
	}})

	result := r.Dispatch(context.Background(), queue.Task{TaskID: "t1", Operation: "ocr_extract"})

	assert.Equal(t, "ocr_extract", ran)
	assert.Equal(t, queue.StatusSucceeded, result.Status)
	assert.NoError(t, result.Err)
	assert.Equal(t, "t1", result.TaskID)
}

func TestRegistryDispatchFirstMatchWins(t *testing.T) {
	r := NewRegistry()
	var ran []string
	r.Register(HandlerFunc{Operation: "segment", Fn: func(ctx context.Context, task queue.Task) error {
		ran = append(ran, "first")
		return nil
	}})
	r.Register(HandlerFunc{Operation: "segment", Fn: func(ctx context.Context, task queue.Task) error {
		ran = append(ran, "second")
		return nil
	}})

	r.Dispatch(context.Background(), queue.Task{Operation: "segment"})

	assert.Equal(t, []string{"first"}, ran)
}

func TestRegistryDispatchNoHandlerRegistered(t *testing.T) {
	r := NewRegistry()
	result := r.Dispatch(context.Background(), queue.Task{TaskID: "t2", Operation: "unknown_op"})

	require.Error(t, result.Err)
	assert.Equal(t, queue.StatusFailed, result.Status)
	assert.Contains(t, result.Err.Error(), "unknown_op")
}

func TestRegistryDispatchHandlerError(t *testing.T) {
	r := NewRegistry()
	wantErr := errors.New("boom")
	r.Register(HandlerFunc{Operation: "ocr_extract", Fn: func(ctx context.Context, task queue.Task) error {
		return wantErr
	}})

	result := r.Dispatch(context.Background(), queue.Task{Operation: "ocr_extract"})

	assert.Equal(t, queue.StatusFailed, result.Status)
	assert.ErrorIs(t, result.Err, wantErr)
}

func TestHandlerFuncCanHandle(t *testing.T) {
	h := HandlerFunc{Operation: "extract_entities"}
	assert.True(t, h.CanHandle("extract_entities"))
	assert.False(t, h.CanHandle("segment"))
	assert.Equal(t, "extract_entities", h.Name())
}
