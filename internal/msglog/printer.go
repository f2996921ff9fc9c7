// Package msglog holds the message consumers that hang off the dispatch
// table: a raw payload printer for device console output and a durable JSON
// record appender.
package msglog

import (
	"io"

	"github.com/pmiettinen/piksi-tools/internal/sbp"
)

// Printer writes message payloads verbatim to w. Register it for the
// device's print/console message type; the payload bytes are already
// human-readable text.
type Printer struct {
	w io.Writer
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) HandleMessage(m sbp.Message) {
	_, _ = p.w.Write(m.Payload)
}
