package authflow

import (
	"context"
	"sync"
	"time"
)

// CooldownPhase is the phase of a [CooldownTimer].
type CooldownPhase uint8

const (
	// CooldownIdle means the guarded action is available.
	CooldownIdle CooldownPhase = iota
	// CooldownCounting means the guarded action is disabled until the count reaches zero.
	CooldownCounting
)

func (p CooldownPhase) String() string {
	if p == CooldownCounting {
		return "counting"
	}
	return "idle"
}

// CooldownState is a snapshot of a [CooldownTimer].
type CooldownState struct {
	Phase            CooldownPhase
	RemainingSeconds int
}

// CooldownTimer is a countdown state machine, independent of any clock: an
// external scheduler calls Tick once per elapsed second.
//
// Phase is Counting exactly when RemainingSeconds > 0, and RemainingSeconds
// never goes negative. CooldownTimer is safe for concurrent use.
type CooldownTimer struct {
	mu        sync.Mutex
	phase     CooldownPhase
	remaining int
}

// Start begins counting down from seconds. It is only legal from Idle.
func (c *CooldownTimer) Start(seconds int) error {
	if seconds <= 0 {
		return ErrCooldownDuration
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == CooldownCounting {
		return ErrCooldownActive
	}
	c.phase = CooldownCounting
	c.remaining = seconds
	return nil
}

// Tick consumes one second. It reports whether the timer is still counting
// afterwards. Ticking an idle timer does nothing.
func (c *CooldownTimer) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != CooldownCounting {
		return false
	}
	c.remaining--
	if c.remaining <= 0 {
		c.remaining = 0
		c.phase = CooldownIdle
		return false
	}
	return true
}

// Cancel forces the timer back to Idle with nothing remaining.
func (c *CooldownTimer) Cancel() {
	c.mu.Lock()
	c.phase = CooldownIdle
	c.remaining = 0
	c.mu.Unlock()
}

// State returns a consistent snapshot.
func (c *CooldownTimer) State() CooldownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CooldownState{Phase: c.phase, RemainingSeconds: c.remaining}
}

// Counting reports whether the timer is in the Counting phase.
func (c *CooldownTimer) Counting() bool {
	return c.State().Phase == CooldownCounting
}

// TickSource delivers ticks to a cooldown driver.
type TickSource interface {
	C() <-chan time.Time
	Stop()
}

type clockTicks struct {
	ticker *time.Ticker
}

// NewClockTicks returns a TickSource backed by the real clock.
func NewClockTicks(interval time.Duration) TickSource {
	return &clockTicks{ticker: time.NewTicker(interval)}
}

func (t *clockTicks) C() <-chan time.Time { return t.ticker.C }
func (t *clockTicks) Stop()               { t.ticker.Stop() }

// runCooldown ticks timer from src until the timer goes idle or ctx ends.
// onTick, when non-nil, observes the state after every tick.
func runCooldown(ctx context.Context, timer *CooldownTimer, src TickSource, onTick func(CooldownState)) {
	defer src.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-src.C():
			counting := timer.Tick()
			if onTick != nil {
				onTick(timer.State())
			}
			if !counting {
				return
			}
		}
	}
}
