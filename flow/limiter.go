package flow

import (
	"context"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"
)

// MaxConnections is the process-wide cap on live connections (I3).
const MaxConnections = 250

// MaxRequests is the per-connection cap on in-flight request-handler tasks
// (I4). Mirrors the canonical protocol's MAX_CONNECTIONS*2.
const MaxRequests = MaxConnections * 2

// limiter bounds concurrent holders of a resource using a weighted
// semaphore, and tracks how many permits are currently outstanding for
// diagnostics. The "poll_ready, then call" pattern of §5 is satisfied
// structurally: each of Receiver and Listener has exactly one goroutine
// that calls Acquire and then performs its dispatch before looping back to
// acquire again, so no two dispatches on the same limiter can interleave
// between a given Acquire and the action it gates (§9, Limiter/dispatch
// atomicity).
type limiter struct {
	sem      *semaphore.Weighted
	inFlight atomic.Int64
}

func newLimiter(capacity int64) *limiter {
	return &limiter{sem: semaphore.NewWeighted(capacity)}
}

// acquire blocks until a permit is available or ctx is done.
func (l *limiter) acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.inFlight.Inc()
	return nil
}

// release returns a permit acquired via acquire.
func (l *limiter) release() {
	l.inFlight.Dec()
	l.sem.Release(1)
}

// InFlight reports the current number of outstanding permits.
func (l *limiter) InFlight() int64 {
	return l.inFlight.Load()
}
