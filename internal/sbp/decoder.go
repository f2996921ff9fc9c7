package sbp

import (
	"bytes"
	"encoding/binary"
	"sync/atomic"

	"github.com/sigurn/crc16"
)

// Decoder extracts complete frames from an arbitrarily chunked byte stream.
//
// Feed never blocks and may be called with chunks split at any boundary; the
// decoder buffers partial frames across calls. A frame that fails its CRC is
// dropped, the drop is counted, and scanning resumes at the next preamble
// byte after the failed one.
//
// Not safe for concurrent use; the link's receive loop is the only caller.
type Decoder struct {
	buf []byte

	crcErrors atomic.Uint64
}

// Feed appends chunk to the internal buffer and returns every message whose
// frame completed, in wire order. The returned messages own their payloads.
func (d *Decoder) Feed(chunk []byte) []Message {
	d.buf = append(d.buf, chunk...)

	var out []Message
	for {
		// Resynchronize: drop any leading noise before the preamble.
		if i := bytes.IndexByte(d.buf, Preamble); i < 0 {
			d.buf = d.buf[:0]
			return out
		} else if i > 0 {
			d.buf = d.buf[i:]
		}

		if len(d.buf) < headerLen {
			break
		}
		payloadLen := int(d.buf[5])
		frameLen := headerLen + payloadLen + crcLen
		if len(d.buf) < frameLen {
			break
		}

		want := binary.LittleEndian.Uint16(d.buf[frameLen-crcLen:])
		got := crc16.Checksum(d.buf[1:frameLen-crcLen], crcTable)
		if got != want {
			d.crcErrors.Add(1)
			// Skip just the preamble; the real frame start may be inside
			// what we misread as header or payload.
			d.buf = d.buf[1:]
			continue
		}

		out = append(out, Message{
			Type:    binary.LittleEndian.Uint16(d.buf[1:3]),
			Sender:  binary.LittleEndian.Uint16(d.buf[3:5]),
			Payload: append([]byte(nil), d.buf[headerLen:headerLen+payloadLen]...),
		})
		d.buf = d.buf[frameLen:]
	}

	// Compact so the backing array does not grow without bound while a
	// partial frame straddles Feed calls.
	if len(d.buf) > 0 {
		d.buf = append(make([]byte, 0, len(d.buf)), d.buf...)
	}
	return out
}

// CRCErrors reports how many frames were dropped for checksum mismatch since
// the decoder was created.
func (d *Decoder) CRCErrors() uint64 {
	return d.crcErrors.Load()
}
