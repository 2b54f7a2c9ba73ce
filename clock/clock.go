// Package clock provides a free-running millisecond counter, the time base
// for everything in the main loop.
package clock

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultPeriod is the interval between two ticks of the counter.
const DefaultPeriod = time.Millisecond

// Clock is a free-running tick counter. The counter is only ever changed by
// Tick, which is what the periodic timer calls. Everything else reads it.
type Clock struct {
	period time.Duration
	ticks  uint32 // accessed atomically
	halted int32  // accessed atomically, non-zero while suspended
	wake   chan struct{}
}

func New(period time.Duration) *Clock {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Clock{
		period: period,
		wake:   make(chan struct{}, 1),
	}
}

func (c *Clock) Period() time.Duration {
	return c.period
}

// Tick advances the counter by exactly one. Overflow wraps silently.
func (c *Clock) Tick() {
	atomic.AddUint32(&c.ticks, 1)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Now returns the current tick count.
func (c *Clock) Now() uint32 {
	return atomic.LoadUint32(&c.ticks)
}

// Since returns the number of ticks between start and now. Unsigned
// subtraction keeps this correct across a wrap of the counter.
func Since(now, start uint32) uint32 {
	return now - start
}

// Elapsed returns the ticks that have passed since start.
func (c *Clock) Elapsed(start uint32) uint32 {
	return Since(c.Now(), start)
}

// Wake is signalled after every tick. Receiving from it is the loop's
// equivalent of waiting for an interrupt.
func (c *Clock) Wake() <-chan struct{} {
	return c.wake
}

// Suspend stops the counter. Ticks delivered while suspended are dropped.
func (c *Clock) Suspend() {
	atomic.StoreInt32(&c.halted, 1)
}

func (c *Clock) Resume() {
	atomic.StoreInt32(&c.halted, 0)
}

func (c *Clock) Running() bool {
	return atomic.LoadInt32(&c.halted) == 0
}

// Run calls Tick once per period until ctx is done.
func (c *Clock) Run(ctx context.Context) {
	t := time.NewTicker(c.period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if c.Running() {
				c.Tick()
			}
		}
	}
}

// Delay busy-waits for d. It's meant for sub-tick delays such as the settle
// time after a frame, so it spins rather than sleeping. It returns at once
// for d <= 0 or when the clock is suspended.
func (c *Clock) Delay(d time.Duration) {
	if d <= 0 || !c.Running() {
		return
	}
	start := time.Now()
	for time.Since(start) < d {
	}
}
