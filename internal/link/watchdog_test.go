package link

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/pmiettinen/piksi-tools/internal/sbp"
)

func TestWatchdog_FiresOnceWhenStarved(t *testing.T) {
	var fired atomic.Int32
	w := NewWatchdog(50*time.Millisecond, func() { fired.Add(1) })
	defer w.Stop()

	waitFor(t, time.Second, func() bool { return fired.Load() == 1 })

	if got := w.State(); got != WatchdogExpired {
		t.Fatalf("State()=%v want expired", got)
	}

	// No repeat without re-arm, even across further intervals.
	time.Sleep(120 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("alarm fired %d times, want exactly 1", got)
	}
}

func TestWatchdog_HeartbeatsHoldItOff(t *testing.T) {
	var fired atomic.Int32
	w := NewWatchdog(100*time.Millisecond, func() { fired.Add(1) })
	defer w.Stop()

	// Feed heartbeats at a quarter of the interval for a while.
	for i := 0; i < 20; i++ {
		time.Sleep(25 * time.Millisecond)
		w.HandleMessage(sbp.Message{Type: sbp.MsgHeartbeat})
	}

	if got := fired.Load(); got != 0 {
		t.Fatalf("alarm fired %d times while fed, want 0", got)
	}
	if got := w.State(); got != WatchdogArmed {
		t.Fatalf("State()=%v want armed", got)
	}
}

func TestWatchdog_ExpiredIgnoresLateHeartbeat(t *testing.T) {
	var fired atomic.Int32
	w := NewWatchdog(30*time.Millisecond, func() { fired.Add(1) })
	defer w.Stop()

	waitFor(t, time.Second, func() bool { return fired.Load() == 1 })

	w.HandleMessage(sbp.Message{Type: sbp.MsgHeartbeat})
	time.Sleep(80 * time.Millisecond)

	if got := w.State(); got != WatchdogExpired {
		t.Fatalf("State()=%v want expired after late heartbeat", got)
	}
	if got := fired.Load(); got != 1 {
		t.Fatalf("alarm fired %d times, want 1", got)
	}
}

func TestWatchdog_Rearm(t *testing.T) {
	var fired atomic.Int32
	w := NewWatchdog(30*time.Millisecond, func() { fired.Add(1) })
	defer w.Stop()

	waitFor(t, time.Second, func() bool { return fired.Load() == 1 })

	w.Rearm()
	if got := w.State(); got != WatchdogArmed {
		t.Fatalf("State()=%v want armed after Rearm", got)
	}
	waitFor(t, time.Second, func() bool { return fired.Load() == 2 })
}

func TestWatchdog_StopPreventsAlarm(t *testing.T) {
	var fired atomic.Int32
	w := NewWatchdog(40*time.Millisecond, func() { fired.Add(1) })
	w.Stop()

	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Fatalf("alarm fired %d times after Stop, want 0", got)
	}
	if got := w.State(); got != WatchdogUnarmed {
		t.Fatalf("State()=%v want unarmed", got)
	}
}
