package flows

import (
	"context"
	"sync"
)

// Guard enforces the request discipline of one controller: at most one request
// in flight, and nothing committed after Dispose.
//
// The zero value is not usable; call NewGuard.
type Guard struct {
	mu       sync.Mutex
	inFlight bool
	disposed bool

	lifetime context.Context
	cancel   context.CancelFunc
	stop     func() bool
}

// NewGuard returns a live, idle guard.
func NewGuard() *Guard {
	lifetime, cancel := context.WithCancel(context.Background())
	return &Guard{lifetime: lifetime, cancel: cancel}
}

// Begin reserves the request slot. The returned context is cancelled when the
// caller's ctx ends or when the guard is disposed. ok is false, and nothing is
// reserved, when a request is already in flight or the guard is disposed.
func (g *Guard) Begin(ctx context.Context) (context.Context, context.CancelFunc, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.disposed || g.inFlight {
		return nil, nil, false
	}
	g.inFlight = true

	reqCtx, cancel := context.WithCancel(ctx)
	g.stop = context.AfterFunc(g.lifetime, cancel)
	return reqCtx, cancel, true
}

// Finish releases the request slot and, if the guard is still live, runs
// commit while holding the guard lock so Dispose cannot interleave with it.
// It reports whether commit ran.
func (g *Guard) Finish(commit func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.inFlight = false
	if g.stop != nil {
		g.stop()
		g.stop = nil
	}
	if g.disposed {
		return false
	}
	if commit != nil {
		commit()
	}
	return true
}

// Dispose marks the guard finished and cancels any in-flight request. Later
// Begin calls fail and later Finish calls skip their commit. Dispose is
// idempotent.
func (g *Guard) Dispose() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.disposed {
		return
	}
	g.disposed = true
	g.cancel()
}

// Deliver runs fn, outside the guard lock, unless the guard has been disposed.
// It reports whether fn ran. fn may call Dispose. A Dispose racing with the
// start of fn on another goroutine can still observe fn run once.
func (g *Guard) Deliver(fn func()) bool {
	if g.Disposed() {
		return false
	}
	if fn != nil {
		fn()
	}
	return true
}

// Busy reports whether a request is in flight.
func (g *Guard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// Disposed reports whether Dispose has been called.
func (g *Guard) Disposed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.disposed
}
