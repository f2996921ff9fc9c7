package link

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/pmiettinen/piksi-tools/internal/sbp"
	"github.com/pmiettinen/piksi-tools/internal/stats"
	"github.com/pmiettinen/piksi-tools/internal/transport"
)

var (
	// ErrAlreadyStarted is returned by a second Start call.
	ErrAlreadyStarted = errors.New("link: already started")

	// ErrWrite wraps transport failures during Send.
	ErrWrite = errors.New("link: write failed")

	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("link: closed")
)

// closeJoinTimeout bounds how long Close waits for the receive goroutine
// after the transport has been closed under it.
const closeJoinTimeout = 2 * time.Second

// Config configures a Link. Transport is required and becomes exclusively
// owned by the Link; OnError, if set, is invoked once should the receive
// loop die on a read error.
type Config struct {
	Transport transport.Transport

	// Sender tags outgoing frames. The device does not care for this tool's
	// purposes; zero is fine.
	Sender uint16

	OnError func(error)
	Log     zerolog.Logger
	Stats   *stats.Link
}

// Link owns the transport, runs the background receive loop, and exposes the
// synchronous send path. Inbound bytes flow Transport -> Decoder -> Dispatch;
// sends are serialized by a write lock and independent of the receive loop.
type Link struct {
	cfg      Config
	dispatch *Dispatch
	dec      sbp.Decoder

	writeMu sync.Mutex

	started atomic.Bool
	alive   atomic.Bool
	closed  atomic.Bool
	done    chan struct{}
}

func New(cfg Config) *Link {
	l := &Link{
		cfg:  cfg,
		done: make(chan struct{}),
	}
	var panics prometheus.Counter
	if cfg.Stats != nil {
		panics = cfg.Stats.HandlerPanics
	}
	l.dispatch = NewDispatch(cfg.Log, panics)
	return l
}

// Dispatch exposes the registration surface. Consumers should be registered
// before Start so no message is missed.
func (l *Link) Dispatch() *Dispatch {
	return l.dispatch
}

// Start launches the receive loop. A second call fails with
// ErrAlreadyStarted; a call after Close fails with ErrClosed.
func (l *Link) Start() error {
	if l.closed.Load() {
		return ErrClosed
	}
	if l.started.Swap(true) {
		return ErrAlreadyStarted
	}
	l.alive.Store(true)
	go l.receiveLoop()
	return nil
}

// Send frames the payload and writes it synchronously. Concurrent Send calls
// are serialized; a transport failure wraps ErrWrite and does not affect the
// receive loop.
func (l *Link) Send(msgType uint16, payload []byte) error {
	if l.closed.Load() {
		return ErrClosed
	}
	frame, err := sbp.EncodeFrame(msgType, l.cfg.Sender, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	for len(frame) > 0 {
		n, err := l.cfg.Transport.Write(frame)
		if err != nil {
			if l.cfg.Stats != nil {
				l.cfg.Stats.SendErrors.Inc()
			}
			return fmt.Errorf("%w: %v", ErrWrite, err)
		}
		frame = frame[n:]
	}
	if l.cfg.Stats != nil {
		l.cfg.Stats.SendsTotal.Inc()
	}
	return nil
}

// IsAlive reports whether the receive loop is still running. External
// supervisors poll this to detect silent loop death; a read error is never
// re-raised across the goroutine boundary.
func (l *Link) IsAlive() bool {
	return l.alive.Load()
}

// Close stops the receive loop, waits for it with a bounded join, and
// releases the transport. Idempotent; a second call is a no-op returning nil.
func (l *Link) Close() error {
	if l.closed.Swap(true) {
		return nil
	}

	// Closing the transport unblocks the loop's pending Read.
	err := l.cfg.Transport.Close()

	if l.started.Load() {
		select {
		case <-l.done:
		case <-time.After(closeJoinTimeout):
			l.cfg.Log.Warn().Msg("receive loop did not exit before join timeout")
		}
	}
	l.alive.Store(false)
	return err
}

func (l *Link) receiveLoop() {
	defer close(l.done)

	buf := make([]byte, 4096)
	var lastDrops uint64

	for {
		n, err := l.cfg.Transport.Read(buf)
		if n > 0 {
			if l.cfg.Stats != nil {
				l.cfg.Stats.BytesRead.Add(float64(n))
			}
			for _, m := range l.dec.Feed(buf[:n]) {
				if l.cfg.Stats != nil {
					l.cfg.Stats.FramesDecoded.Inc()
				}
				l.dispatch.DispatchMessage(m)
			}
			if drops := l.dec.CRCErrors(); drops != lastDrops {
				if l.cfg.Stats != nil {
					l.cfg.Stats.CRCDrops.Add(float64(drops - lastDrops))
				}
				l.cfg.Log.Debug().Uint64("total", drops).Msg("dropped frame with bad checksum")
				lastDrops = drops
			}
		}
		if err != nil {
			l.alive.Store(false)
			if !l.closed.Load() {
				l.cfg.Log.Error().Err(err).Msg("receive loop terminated")
				if l.cfg.OnError != nil {
					l.cfg.OnError(err)
				}
			}
			return
		}
	}
}
