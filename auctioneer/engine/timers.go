package engine

import "time"

// Clock abstracts wall time so tests drive phase transitions
// deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// Scheduler arms one-shot callbacks. After returns a stop function;
// stopping an already-fired timer is a no-op. The engine additionally
// tombstones stale callbacks by lot version, so a fire that loses the race
// with its stop function is still harmless.
type Scheduler interface {
	After(d time.Duration, fn func()) (stop func())
}

type systemScheduler struct{}

func (systemScheduler) After(d time.Duration, fn func()) func() {
	if d < 0 {
		// Clock skew is clamped, not propagated.
		d = 0
	}
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

func SystemScheduler() Scheduler { return systemScheduler{} }
