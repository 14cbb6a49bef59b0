// Package ticker owns the periodic interval that advances the timer.
package ticker

import (
	"sync"
	"time"
)

// TickFunc is invoked once per interval. Returning false stops the driver,
// which lets the session owner end ticking from inside a tick without
// calling Stop re-entrantly.
type TickFunc func(at time.Time) bool

// Driver runs at most one interval at a time. Start and Stop are idempotent
// and the driver can be restarted after it stops.
type Driver struct {
	mu       sync.Mutex
	interval time.Duration
	fn       TickFunc
	stopCh   chan struct{}
	done     chan struct{}
	running  bool
}

func New(interval time.Duration, fn TickFunc) *Driver {
	if interval <= 0 {
		interval = time.Second
	}
	return &Driver{interval: interval, fn: fn}
}

// Start launches the interval unless it is already running.
func (d *Driver) Start() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return false
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.done = make(chan struct{})
	go d.run(d.stopCh, d.done)
	return true
}

// Stop releases the interval. It does not wait for an in-progress tick so it
// is safe to call while holding locks the tick function also takes; use Wait
// to block until the goroutine has exited.
func (d *Driver) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return false
	}
	close(d.stopCh)
	d.running = false
	return true
}

// Wait blocks until the most recently started interval goroutine exits.
func (d *Driver) Wait() {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Driver) run(stopCh, done chan struct{}) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	defer close(done)

	for {
		select {
		case <-stopCh:
			return
		case tickTime := <-ticker.C:
			select {
			case <-stopCh:
				return
			default:
			}
			if !d.fn(tickTime) {
				d.release(stopCh)
				return
			}
		}
	}
}

// release clears the running flag if stopCh still belongs to the current
// generation; a concurrent Stop+Start must not be undone.
func (d *Driver) release(stopCh chan struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running && d.stopCh == stopCh {
		close(d.stopCh)
		d.running = false
	}
}
