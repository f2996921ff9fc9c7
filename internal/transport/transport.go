package transport

import (
	"errors"
	"fmt"
	"io"

	"github.com/tarm/serial"
)

// ErrConnection wraps any failure to open the underlying medium. It is
// surfaced before any receive loop starts; nothing in this package retries.
var ErrConnection = errors.New("transport: connection failed")

// Transport is the byte channel beneath the framing layer. Read blocks until
// at least one byte is available and may return partial reads; Write returns
// the count written. Close releases the medium and unblocks a pending Read.
type Transport interface {
	io.ReadWriteCloser
}

// OpenSerial opens a serial port at the given path and baud rate.
func OpenSerial(port string, baud int) (Transport, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        port,
		Baud:        baud,
		Parity:      serial.ParityNone,
		ReadTimeout: 0, // block until data arrives
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s @ %d: %v", ErrConnection, port, baud, err)
	}
	return p, nil
}

// pipeHalf is one end of an in-memory loop-back pair.
type pipeHalf struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p *pipeHalf) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeHalf) Write(b []byte) (int, error) { return p.w.Write(b) }

func (p *pipeHalf) Close() error {
	// Closing the read side unblocks a concurrent Read on this end.
	_ = p.r.CloseWithError(io.ErrClosedPipe)
	return p.w.Close()
}

// Pipe returns two connected in-memory Transports: bytes written to one are
// read from the other. Used by tests and loop-back diagnostics; it honors the
// same partial-read, blocking semantics as a real port.
func Pipe() (Transport, Transport) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	return &pipeHalf{r: ar, w: aw}, &pipeHalf{r: br, w: bw}
}
