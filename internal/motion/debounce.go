package motion

import (
	"sync"
	"time"
)

// State of one debouncer.
type State int

const (
	// Idle: no motion window open.
	Idle State = iota
	// Active: a motion window is open and a clear timer is armed.
	Active
)

// DefaultWindow is how long a motion window stays open after the last
// trigger. Ring sends no "motion ended" event, so the end is synthesized.
const DefaultWindow = 8 * time.Second

// Debouncer turns a stream of momentary motion triggers into a pair of
// started/ended notifications per window. Every trigger re-arms the clear
// timer, so a burst of triggers yields one window that ends a full window
// after the last trigger.
//
// Each trigger inside an open window still reports started again; consumers
// treat the repeat as a refresh of the same window.
type Debouncer struct {
	window  time.Duration
	onStart func()
	onEnd   func()

	mu    sync.Mutex
	state State
	timer *time.Timer
	gen   uint64
}

// NewDebouncer creates a debouncer. A zero window falls back to
// DefaultWindow. Callbacks run on timer goroutines and must not block.
func NewDebouncer(window time.Duration, onStart, onEnd func()) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer{
		window:  window,
		onStart: onStart,
		onEnd:   onEnd,
		state:   Idle,
	}
}

// Trigger records a motion event: opens a window or extends the open one.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	if d.state == Active {
		d.timer.Stop()
	}
	d.state = Active
	// Stop is a no-op on a timer whose callback already fired, so the
	// generation marks which window an expiry belongs to. A preempted
	// timer's callback finds a newer generation and does nothing.
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.window, func() { d.expire(gen) })
	d.mu.Unlock()

	if d.onStart != nil {
		d.onStart()
	}
}

func (d *Debouncer) expire(gen uint64) {
	d.mu.Lock()
	if d.state != Active || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.state = Idle
	d.timer = nil
	d.mu.Unlock()

	if d.onEnd != nil {
		d.onEnd()
	}
}

// State returns the current state.
func (d *Debouncer) CurrentState() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Stop cancels any open window without emitting ended. Used on shutdown.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.state = Idle
}
