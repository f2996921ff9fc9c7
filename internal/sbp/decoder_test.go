package sbp

import (
	"bytes"
	"testing"
)

func mustFrame(t *testing.T, msgType uint16, sender uint16, payload []byte) []byte {
	t.Helper()
	frame, err := EncodeFrame(msgType, sender, payload)
	if err != nil {
		t.Fatalf("EncodeFrame() error: %v", err)
	}
	return frame
}

func TestDecoder_RoundTrip(t *testing.T) {
	var d Decoder
	msgs := d.Feed(mustFrame(t, 0x0001, 7, []byte("hi")))
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.Type != 0x0001 || m.Sender != 7 || !bytes.Equal(m.Payload, []byte("hi")) {
		t.Fatalf("decoded %+v, want type=1 sender=7 payload=hi", m)
	}
}

// Feeding the same stream in different chunkings must produce the same
// message sequence.
func TestDecoder_ChunkBoundaryIndependence(t *testing.T) {
	var stream []byte
	stream = append(stream, 0x13, 0x37) // leading noise
	for i := 0; i < 5; i++ {
		stream = append(stream, mustFrame(t, uint16(i+1), 99, []byte{byte(i), byte(i * 2)})...)
	}

	decode := func(chunkSize int) []Message {
		var d Decoder
		var out []Message
		for off := 0; off < len(stream); off += chunkSize {
			end := off + chunkSize
			if end > len(stream) {
				end = len(stream)
			}
			out = append(out, d.Feed(stream[off:end])...)
		}
		return out
	}

	want := decode(len(stream))
	if len(want) != 5 {
		t.Fatalf("whole-stream decode yielded %d messages, want 5", len(want))
	}
	for _, chunkSize := range []int{1, 2, 3, 7, 16} {
		got := decode(chunkSize)
		if len(got) != len(want) {
			t.Fatalf("chunk=%d: got %d messages, want %d", chunkSize, len(got), len(want))
		}
		for i := range want {
			if got[i].Type != want[i].Type || got[i].Sender != want[i].Sender || !bytes.Equal(got[i].Payload, want[i].Payload) {
				t.Fatalf("chunk=%d msg[%d]: got %+v want %+v", chunkSize, i, got[i], want[i])
			}
		}
	}
}

func TestDecoder_CorruptFrameIsolated(t *testing.T) {
	var stream []byte
	stream = append(stream, mustFrame(t, 1, 0, []byte("aa"))...)
	stream = append(stream, mustFrame(t, 2, 0, []byte("bb"))...)
	stream = append(stream, mustFrame(t, 3, 0, []byte("cc"))...)

	bad := mustFrame(t, 4, 0, []byte("dd"))
	bad[len(bad)-1] ^= 0xFF // flip checksum
	stream = append(stream, bad...)

	stream = append(stream, mustFrame(t, 5, 0, []byte("ee"))...)
	stream = append(stream, mustFrame(t, 6, 0, []byte("ff"))...)

	var d Decoder
	msgs := d.Feed(stream)
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(msgs))
	}
	wantTypes := []uint16{1, 2, 3, 5, 6}
	for i, w := range wantTypes {
		if msgs[i].Type != w {
			t.Fatalf("msg[%d].Type=%d want %d", i, msgs[i].Type, w)
		}
	}
	if d.CRCErrors() == 0 {
		t.Fatal("CRCErrors()=0, want at least 1")
	}
}

func TestDecoder_PreambleInsidePayload(t *testing.T) {
	// A payload full of preamble bytes must not confuse framing.
	payload := bytes.Repeat([]byte{Preamble}, 10)
	frame := mustFrame(t, 0x00AA, 1, payload)

	var d Decoder
	var msgs []Message
	for _, b := range frame {
		msgs = append(msgs, d.Feed([]byte{b})...)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if !bytes.Equal(msgs[0].Payload, payload) {
		t.Fatalf("payload=% X want % X", msgs[0].Payload, payload)
	}
}

func TestDecoder_PartialFrameAcrossFeeds(t *testing.T) {
	frame := mustFrame(t, 9, 3, []byte("split"))
	var d Decoder

	if msgs := d.Feed(frame[:4]); len(msgs) != 0 {
		t.Fatalf("premature messages: %d", len(msgs))
	}
	msgs := d.Feed(frame[4:])
	if len(msgs) != 1 || msgs[0].Type != 9 {
		t.Fatalf("got %+v, want one message of type 9", msgs)
	}
}

func TestDecoder_NoiseOnlyDiscarded(t *testing.T) {
	var d Decoder
	if msgs := d.Feed([]byte{0x00, 0x01, 0x02, 0xFE}); len(msgs) != 0 {
		t.Fatalf("decoded %d messages from noise", len(msgs))
	}
	// A valid frame after garbage still decodes.
	if msgs := d.Feed(mustFrame(t, 2, 2, nil)); len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
}
