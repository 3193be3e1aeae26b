package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHostLimitersForHostReusesLimiter(t *testing.T) {
	h := newHostLimiters(10)
	a := h.forHost("chroniclingamerica.loc.gov")
	b := h.forHost("chroniclingamerica.loc.gov")
	assert.Same(t, a, b)
}

func TestHostLimitersPerHostIndependent(t *testing.T) {
	h := newHostLimiters(10)
	a := h.forHost("host-a")
	b := h.forHost("host-b")
	assert.NotSame(t, a, b)
}

func TestHostLimitersWaitRespectsContextCancellation(t *testing.T) {
	h := newHostLimiters(0.001)
	// Drain the single burst token so the next Wait would block on refill.
	limiter := h.forHost("slow-host")
	assert.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := h.Wait(ctx, "slow-host")
	assert.Error(t, err)
}

func TestHostLimitersWaitSucceedsWithinBudget(t *testing.T) {
	h := newHostLimiters(1000)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := h.Wait(ctx, "fast-host")
	assert.NoError(t, err)
}
