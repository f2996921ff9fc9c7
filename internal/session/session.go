// Package session runs the foreground control flow: wait in bounded
// increments for a deadline, an interrupt, a stop request, or link death,
// then let the caller tear everything down through one path.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status says why the session ended. Only a reached deadline is a normal
// exit; everything else maps to a failing process status.
type Status int

const (
	StatusDeadline Status = iota
	StatusInterrupted
	StatusCanceled
	StatusLinkDead
)

func (s Status) String() string {
	switch s {
	case StatusDeadline:
		return "deadline"
	case StatusInterrupted:
		return "interrupted"
	case StatusCanceled:
		return "canceled"
	case StatusLinkDead:
		return "link dead"
	}
	return "unknown"
}

// ExitCode maps the status onto the process exit convention: 0 for a normal
// deadline expiry, 1 for everything else.
func (s Status) ExitCode() int {
	if s == StatusDeadline {
		return 0
	}
	return 1
}

// Result carries the ending status and, for stop requests, the stated reason.
type Result struct {
	Status Status
	Reason string
}

// Config controls one Run.
type Config struct {
	// Deadline is the absolute expiry; zero means run until interrupted,
	// stopped, or the link dies.
	Deadline time.Time

	// Poll bounds the wait increments so the loop stays responsive.
	// Defaults to 100ms.
	Poll time.Duration

	// Alive is polled each increment; nil means the link is not supervised.
	Alive func() bool

	Log zerolog.Logger
}

// Loop is the session's cancellation mailbox. Background alarms (the
// heartbeat watchdog, the link's error callback) request a stop here instead
// of interrupting the main goroutine; Run polls cooperatively. The first
// request wins, later ones are dropped.
type Loop struct {
	stopCh   chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	reason string
}

func NewLoop() *Loop {
	return &Loop{stopCh: make(chan struct{})}
}

// RequestStop asks the session to end with a failing status. Safe from any
// goroutine; only the first call's reason is kept.
func (l *Loop) RequestStop(reason string) {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.reason = reason
		l.mu.Unlock()
		close(l.stopCh)
	})
}

func (l *Loop) stopReason() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reason
}

// Run blocks on the calling goroutine until one exit condition holds.
// Conditions are checked in priority order each wake: interrupt, stop
// request, deadline, link liveness.
func (l *Loop) Run(ctx context.Context, cfg Config) Result {
	poll := cfg.Poll
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			cfg.Log.Warn().Msg("interrupted")
			return Result{Status: StatusInterrupted}
		}
		select {
		case <-l.stopCh:
			reason := l.stopReason()
			cfg.Log.Error().Str("reason", reason).Msg("session stop requested")
			return Result{Status: StatusCanceled, Reason: reason}
		default:
		}
		if !cfg.Deadline.IsZero() && !time.Now().Before(cfg.Deadline) {
			cfg.Log.Info().Msg("timer expired")
			return Result{Status: StatusDeadline}
		}
		if cfg.Alive != nil && !cfg.Alive() {
			cfg.Log.Error().Msg("receive loop died")
			return Result{Status: StatusLinkDead}
		}

		select {
		case <-ctx.Done():
		case <-l.stopCh:
		case <-ticker.C:
		}
	}
}
