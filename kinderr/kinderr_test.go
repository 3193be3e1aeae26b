package kinderr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndWrap(t *testing.T) {
	plain := New(Validation, "lccn is required")
	assert.Error(t, plain)
	assert.Equal(t, "lccn is required", plain.Error())
	assert.Equal(t, Validation, plain.Kind())

	cause := errors.New("connection reset")
	wrapped := Wrap(TransientUpstream, cause, "fetch issue list")
	assert.Contains(t, wrapped.Error(), "fetch issue list")
	assert.Contains(t, wrapped.Error(), "connection reset")
	assert.ErrorIs(t, wrapped, cause)
}

func TestWithDetail(t *testing.T) {
	err := New(Conflict, "page already exists").WithDetail("page_id", "p-1").WithDetail("seq", 4)
	assert.Equal(t, "p-1", err.Details()["page_id"])
	assert.Equal(t, 4, err.Details()["seq"])
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, Internal, KindOf(errors.New("plain")))
	assert.Equal(t, NotFound, KindOf(New(NotFound, "no such publication")))

	wrappedTwice := fmt.Errorf("outer: %w", New(Conflict, "dup"))
	assert.Equal(t, Conflict, KindOf(wrappedTwice))
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transient upstream", New(TransientUpstream, "timeout"), true},
		{"resource exhausted", New(ResourceExhausted, "rate limited"), true},
		{"validation", New(Validation, "bad input"), false},
		{"not found", New(NotFound, "missing"), false},
		{"plain error", errors.New("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"validation", New(Validation, "x"), 2},
		{"not found", New(NotFound, "x"), 3},
		{"conflict", New(Conflict, "x"), 4},
		{"transient upstream", New(TransientUpstream, "x"), 5},
		{"permanent upstream", New(PermanentUpstream, "x"), 5},
		{"corrupt data", New(CorruptData, "x"), 1},
		{"plain error", errors.New("x"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
