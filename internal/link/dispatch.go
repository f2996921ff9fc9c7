package link

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/pmiettinen/piksi-tools/internal/sbp"
)

// Handler consumes decoded messages. Implementations must not assume any
// particular goroutine; dispatch happens on the link's receive goroutine.
type Handler interface {
	HandleMessage(m sbp.Message)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(m sbp.Message)

func (f HandlerFunc) HandleMessage(m sbp.Message) { f(m) }

type registration struct {
	id       int
	msgType  uint16
	wildcard bool
	h        Handler
}

// Dispatch routes each message to every matching registration, in
// registration order. Register/Unregister are safe against a concurrent
// DispatchMessage; handlers themselves run synchronously and sequentially on
// the dispatching goroutine.
type Dispatch struct {
	log    zerolog.Logger
	panics prometheus.Counter

	mu     sync.Mutex
	nextID int
	regs   []registration
}

func NewDispatch(log zerolog.Logger, panics prometheus.Counter) *Dispatch {
	return &Dispatch{log: log, panics: panics}
}

// Register adds h for one message type and returns a token for Unregister.
func (d *Dispatch) Register(msgType uint16, h Handler) int {
	return d.add(registration{msgType: msgType, h: h})
}

// RegisterAll adds h as a wildcard consumer that sees every message.
func (d *Dispatch) RegisterAll(h Handler) int {
	return d.add(registration{wildcard: true, h: h})
}

func (d *Dispatch) add(r registration) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	r.id = d.nextID
	d.regs = append(d.regs, r)
	return r.id
}

// Unregister removes the registration returned by Register/RegisterAll.
// Unknown tokens are ignored.
func (d *Dispatch) Unregister(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, r := range d.regs {
		if r.id == id {
			d.regs = append(d.regs[:i], d.regs[i+1:]...)
			return
		}
	}
}

// DispatchMessage invokes every handler registered for m.Type plus every
// wildcard handler. A panicking handler is recovered and logged; the
// remaining handlers still run.
func (d *Dispatch) DispatchMessage(m sbp.Message) {
	d.mu.Lock()
	matched := make([]Handler, 0, len(d.regs))
	for _, r := range d.regs {
		if r.wildcard || r.msgType == m.Type {
			matched = append(matched, r.h)
		}
	}
	d.mu.Unlock()

	for _, h := range matched {
		d.invoke(h, m)
	}
}

func (d *Dispatch) invoke(h Handler, m sbp.Message) {
	defer func() {
		if r := recover(); r != nil {
			if d.panics != nil {
				d.panics.Inc()
			}
			d.log.Error().
				Interface("panic", r).
				Uint16("msg_type", m.Type).
				Msg("message handler panicked")
		}
	}()
	h.HandleMessage(m)
}
