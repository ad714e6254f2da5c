package timeutil

import (
	"context"
	"sync"
	"time"
)

// Clock supplies the current time. Components that judge staleness take a Clock
// instead of calling time.Now so tests can move time explicitly.
type Clock interface {
	Now() time.Time
}

// Sleeper is the single suspension point of a sweep. Every pacing delay, jitter
// delay, and cool-down goes through it. Sleep returns ctx.Err() when the context
// is cancelled before the duration elapses.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ManualClock is a Clock whose time only moves when Advance or Set is called.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// VirtualSleeper records every requested sleep and advances its clock (if any)
// instead of blocking.
type VirtualSleeper struct {
	mu     sync.Mutex
	clock  *ManualClock
	sleeps []time.Duration
}

func NewVirtualSleeper(clock *ManualClock) *VirtualSleeper {
	return &VirtualSleeper{clock: clock}
}

func (v *VirtualSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	v.sleeps = append(v.sleeps, d)
	v.mu.Unlock()
	if v.clock != nil {
		v.clock.Advance(d)
	}
	return nil
}

// Sleeps returns a copy of the recorded sleep durations in call order.
func (v *VirtualSleeper) Sleeps() []time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]time.Duration, len(v.sleeps))
	copy(out, v.sleeps)
	return out
}

// Total returns the sum of all recorded sleeps.
func (v *VirtualSleeper) Total() time.Duration {
	var total time.Duration
	for _, d := range v.Sleeps() {
		total += d
	}
	return total
}
