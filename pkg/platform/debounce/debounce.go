// Package debounce collapses bursts of triggers into a single callback that
// runs after a quiet period.
package debounce

import (
	"sync"
	"time"

	"pulsegate/pkg/platform/clock"
)

// Debouncer arms a timer on Trigger and re-arms it on every further Trigger
// before it fires. When the timer fires the callback runs exactly once.
// After Stop the debouncer is inert: pending timers are cancelled and later
// triggers are ignored.
type Debouncer struct {
	mu      sync.Mutex
	clock   clock.Clock
	delay   time.Duration
	fn      func()
	timer   clock.Timer
	gen     uint64
	stopped bool
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithClock overrides the real clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(d *Debouncer) {
		d.clock = c
	}
}

// New returns a Debouncer that calls fn after delay of trigger silence.
func New(delay time.Duration, fn func(), opts ...Option) *Debouncer {
	d := &Debouncer{
		clock: clock.Real(),
		delay: delay,
		fn:    fn,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Trigger arms the timer, resetting it if already armed.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

// fire runs fn unless the timer was superseded or the debouncer stopped
// after the underlying timer had already committed to firing.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

// Pending reports whether a trigger is waiting to fire.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil && !d.stopped
}

// Stop cancels any pending fire and disables further triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
