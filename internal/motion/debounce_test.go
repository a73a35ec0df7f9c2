package motion

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSingleTriggerOpensAndClosesWindow(t *testing.T) {
	var starts, ends int32
	d := NewDebouncer(40*time.Millisecond,
		func() { atomic.AddInt32(&starts, 1) },
		func() { atomic.AddInt32(&ends, 1) })

	d.Trigger()
	assert.Equal(t, Active, d.CurrentState())
	assert.Equal(t, int32(1), atomic.LoadInt32(&starts))
	assert.Equal(t, int32(0), atomic.LoadInt32(&ends))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&ends) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, Idle, d.CurrentState())
	assert.Equal(t, int32(1), atomic.LoadInt32(&starts))
}

func TestBurstExtendsWindow(t *testing.T) {
	var starts, ends int32
	d := NewDebouncer(80*time.Millisecond,
		func() { atomic.AddInt32(&starts, 1) },
		func() { atomic.AddInt32(&ends, 1) })

	// Second trigger halfway through the window re-arms the timer.
	d.Trigger()
	time.Sleep(40 * time.Millisecond)
	d.Trigger()

	assert.Equal(t, int32(2), atomic.LoadInt32(&starts))
	assert.Equal(t, int32(0), atomic.LoadInt32(&ends))

	// The window ends one full window after the second trigger, so after
	// another 40ms it is still open.
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ends))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&ends) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&starts))
}

func TestNewWindowAfterClose(t *testing.T) {
	var starts, ends int32
	d := NewDebouncer(20*time.Millisecond,
		func() { atomic.AddInt32(&starts, 1) },
		func() { atomic.AddInt32(&ends, 1) })

	d.Trigger()
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&ends) == 1
	}, time.Second, 5*time.Millisecond)

	d.Trigger()
	assert.Equal(t, Active, d.CurrentState())
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&ends) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&starts))
}

func TestRetriggerOnExpiryBoundaryKeepsWindowOpen(t *testing.T) {
	// A re-trigger racing the clear timer must not let the old timer's
	// callback close the window it just reopened. Each iteration lands a
	// trigger right at the expiry boundary and then checks the new window
	// survives its first half.
	const window = 30 * time.Millisecond
	for i := 0; i < 20; i++ {
		var ends int32
		d := NewDebouncer(window, nil,
			func() { atomic.AddInt32(&ends, 1) })

		d.Trigger()
		time.Sleep(window)
		d.Trigger()

		// Whether or not the first window managed to close, the second
		// must still be open halfway through, and at most one end may
		// have been emitted.
		time.Sleep(window / 2)
		assert.Equal(t, Active, d.CurrentState(), "iteration %d", i)
		assert.LessOrEqual(t, atomic.LoadInt32(&ends), int32(1), "iteration %d", i)
		d.Stop()
	}
}

func TestStopSuppressesEnd(t *testing.T) {
	var ends int32
	d := NewDebouncer(20*time.Millisecond, nil,
		func() { atomic.AddInt32(&ends, 1) })

	d.Trigger()
	d.Stop()
	assert.Equal(t, Idle, d.CurrentState())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ends))
}

func TestZeroWindowUsesDefault(t *testing.T) {
	d := NewDebouncer(0, nil, nil)
	assert.Equal(t, DefaultWindow, d.window)
}

func TestNilCallbacks(t *testing.T) {
	d := NewDebouncer(10*time.Millisecond, nil, nil)
	d.Trigger()
	assert.Eventually(t, func() bool {
		return d.CurrentState() == Idle
	}, time.Second, 5*time.Millisecond)
}
