package socketio

import (
	"sync"
	"time"
)

// PushDebouncer collapses rapid engine changes into batched pushes.
// Multiple triggers within the window result in a single broadcast per
// affected kind (state and/or queue).
type PushDebouncer struct {
	window        time.Duration
	stateCallback func()
	queueCallback func()

	mu           sync.Mutex
	pendingState bool
	pendingQueue bool
	timer        *time.Timer
	stopped      bool
}

// NewPushDebouncer creates a debouncer with the given window duration.
func NewPushDebouncer(window time.Duration, stateCallback, queueCallback func()) *PushDebouncer {
	return &PushDebouncer{
		window:        window,
		stateCallback: stateCallback,
		queueCallback: queueCallback,
	}
}

// TriggerState schedules a state broadcast once the window elapses
// without further triggers.
func (d *PushDebouncer) TriggerState() {
	d.trigger(func() { d.pendingState = true })
}

// TriggerQueue schedules a queue broadcast once the window elapses
// without further triggers.
func (d *PushDebouncer) TriggerQueue() {
	d.trigger(func() { d.pendingQueue = true })
}

func (d *PushDebouncer) trigger(mark func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	mark()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush fires callbacks for any pending flags and resets them.
func (d *PushDebouncer) flush() {
	d.mu.Lock()
	doState := d.pendingState
	doQueue := d.pendingQueue
	d.pendingState = false
	d.pendingQueue = false
	d.mu.Unlock()

	if doState && d.stateCallback != nil {
		d.stateCallback()
	}
	if doQueue && d.queueCallback != nil {
		d.queueCallback()
	}
}

// Stop prevents any further callbacks from firing.
func (d *PushDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pendingState = false
	d.pendingQueue = false
}
