package archive

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// hostLimiters holds one process-local token bucket per archive host, so
// concurrent callers targeting the same host share a single budget.
type hostLimiters struct {
	mu       sync.Mutex
	perHost  map[string]*rate.Limiter
	ratePerS float64
}

func newHostLimiters(requestsPerSecond float64) *hostLimiters {
	return &hostLimiters{perHost: make(map[string]*rate.Limiter), ratePerS: requestsPerSecond}
}

func (h *hostLimiters) forHost(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.perHost[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(h.ratePerS), 1)
		h.perHost[host] = l
	}
	return l
}

// Wait blocks until a token is available for host or ctx is done.
func (h *hostLimiters) Wait(ctx context.Context, host string) error {
	return h.forHost(host).Wait(ctx)
}
