package timer

import (
	"log/slog"
	"sync"
	"time"
)

// Alarm mirrors the platform alarm primitive: arm a deferred callback
// by delay in (fractional) minutes under a unique string name; firing
// delivers just the name. Mapping the name back to a Timer record is
// the scheduler's job.
type Alarm interface {
	Arm(name string, delayMinutes float64)
	// Cancel stops a pending alarm. Idempotent; reports whether an
	// alarm was actually armed.
	Cancel(name string) bool
	Exists(name string) bool
}

// ClockAlarm is the in-process Alarm on top of time.AfterFunc. It does
// not survive a restart, which is why the Timer record is persisted
// and re-armed on startup.
type ClockAlarm struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	fire   func(name string)
}

func NewClockAlarm() *ClockAlarm {
	return &ClockAlarm{timers: make(map[string]*time.Timer)}
}

// SetHandler installs the fire callback. Must be called before Arm.
func (a *ClockAlarm) SetHandler(fire func(name string)) {
	a.mu.Lock()
	a.fire = fire
	a.mu.Unlock()
}

func (a *ClockAlarm) Arm(name string, delayMinutes float64) {
	d := time.Duration(delayMinutes * float64(time.Minute))
	if d < 0 {
		d = 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if prev, ok := a.timers[name]; ok {
		prev.Stop()
	}
	a.timers[name] = time.AfterFunc(d, func() {
		a.mu.Lock()
		_, live := a.timers[name]
		delete(a.timers, name)
		fire := a.fire
		a.mu.Unlock()
		// A Cancel that won the race removes the entry before we run.
		if !live || fire == nil {
			return
		}
		slog.Debug("alarm fired", "name", name, "delay", d)
		fire(name)
	})
	slog.Debug("alarm armed", "name", name, "delay", d)
}

func (a *ClockAlarm) Cancel(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.timers[name]
	if !ok {
		return false
	}
	delete(a.timers, name)
	t.Stop()
	slog.Debug("alarm cancelled", "name", name)
	return true
}

func (a *ClockAlarm) Exists(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.timers[name]
	return ok
}
