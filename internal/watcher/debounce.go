package watcher

import (
	"sync"
	"time"
)

// Debouncer groups a burst of triggers into a single call of fire, made once
// delay has passed without a new trigger. A zero delay calls fire directly.
type Debouncer struct {
	delay   time.Duration
	fire    func()
	timer   *time.Timer
	stopped bool
	mutex   sync.Mutex
}

// NewDebouncer creates a debouncer calling fire after each quiet period.
func NewDebouncer(delay time.Duration, fire func()) *Debouncer {
	return &Debouncer{delay: delay, fire: fire}
}

// Trigger records a change and (re)starts the quiet period.
func (d *Debouncer) Trigger() {
	if d.delay <= 0 {
		d.fire()
		return
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

// Stop cancels a pending call; later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
