package link

import (
	"sync"
	"time"

	"github.com/pmiettinen/piksi-tools/internal/sbp"
)

// WatchdogState is the watchdog's lifecycle position.
type WatchdogState int

const (
	WatchdogUnarmed WatchdogState = iota
	WatchdogArmed
	WatchdogExpired
)

func (s WatchdogState) String() string {
	switch s {
	case WatchdogUnarmed:
		return "unarmed"
	case WatchdogArmed:
		return "armed"
	case WatchdogExpired:
		return "expired"
	}
	return "unknown"
}

// Watchdog alarms when heartbeats stop arriving. Register it on the dispatch
// table for the heartbeat message type; each observed heartbeat resets its
// timer. If the interval elapses without a reset the alarm fires exactly
// once and the watchdog stays expired until Rearm.
//
// The alarm only signals. Whatever it should cause (typically a session
// shutdown request) is the caller's business.
type Watchdog struct {
	interval time.Duration
	alarm    func()

	mu    sync.Mutex
	state WatchdogState
	timer *time.Timer

	// gen invalidates timer fires that raced with a reset: a fire scheduled
	// before the latest reset carries a stale generation and is ignored.
	gen uint64
}

// NewWatchdog returns an armed watchdog whose timer is already running.
func NewWatchdog(interval time.Duration, alarm func()) *Watchdog {
	w := &Watchdog{
		interval: interval,
		alarm:    alarm,
		state:    WatchdogArmed,
	}
	w.mu.Lock()
	w.schedule()
	w.mu.Unlock()
	return w
}

// schedule starts a fresh timer for the current generation. Caller holds mu.
func (w *Watchdog) schedule() {
	gen := w.gen
	w.timer = time.AfterFunc(w.interval, func() { w.expire(gen) })
}

// HandleMessage resets the timer. State does not change: an expired watchdog
// ignores late heartbeats until explicitly re-armed.
func (w *Watchdog) HandleMessage(sbp.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != WatchdogArmed {
		return
	}
	w.gen++
	w.timer.Stop()
	w.schedule()
}

// Rearm restarts the timer from an expired or stopped watchdog.
func (w *Watchdog) Rearm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == WatchdogArmed {
		return
	}
	w.state = WatchdogArmed
	w.gen++
	w.schedule()
}

// Stop disarms the watchdog without firing.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	w.state = WatchdogUnarmed
}

func (w *Watchdog) State() WatchdogState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Watchdog) expire(gen uint64) {
	w.mu.Lock()
	if w.state != WatchdogArmed || gen != w.gen {
		w.mu.Unlock()
		return
	}
	w.state = WatchdogExpired
	alarm := w.alarm
	w.mu.Unlock()

	if alarm != nil {
		alarm()
	}
}
