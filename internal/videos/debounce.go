package videos

import (
	"context"
	"sync"
	"time"
)

// Debouncer defers a task until its input has been quiet for the window.
// Each Trigger replaces the pending task and cancels the context of a task
// that is already running.
type Debouncer struct {
	window time.Duration
	fn     func(ctx context.Context, value string)

	mu     sync.Mutex
	timer  *time.Timer
	token  uint64
	cancel context.CancelFunc
}

// NewDebouncer returns a Debouncer that calls fn with the latest value.
func NewDebouncer(window time.Duration, fn func(ctx context.Context, value string)) *Debouncer {
	return &Debouncer{window: window, fn: fn}
}

// Trigger schedules fn(value) after the window, dropping any earlier value.
func (d *Debouncer) Trigger(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.token++
	token := d.token
	d.timer = time.AfterFunc(d.window, func() { d.fire(token, value) })
}

// Stop cancels both the pending task and a running one.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.token++
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Debouncer) fire(token uint64, value string) {
	d.mu.Lock()
	if token != d.token {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.timer = nil
	d.mu.Unlock()

	defer cancel()
	d.fn(ctx, value)
}
