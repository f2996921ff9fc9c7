package sbp

import (
	"encoding/binary"
	"fmt"

	"github.com/sigurn/crc16"
)

// Wire layout of one SBP frame, little-endian:
//
//	preamble  u8   0x55
//	msg type  u16
//	sender    u16
//	length    u8
//	payload   [length]u8
//	crc       u16  CRC-16/XMODEM over type..payload (preamble excluded)
const (
	Preamble = 0x55

	headerLen   = 6 // preamble + type + sender + length
	crcLen      = 2
	minFrameLen = headerLen + crcLen

	// MaxPayload is the largest payload a single frame can carry.
	MaxPayload = 255
)

// Message types understood by this tool. The device emits many more; anything
// not listed here is still decoded and dispatched by numeric type.
const (
	MsgPrint     uint16 = 0x0010
	MsgReset     uint16 = 0x00B2
	MsgHeartbeat uint16 = 0xFFFF
)

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// Message is one decoded protocol unit. Payload is owned by the Message and
// never aliased into decoder buffers.
type Message struct {
	Type    uint16
	Sender  uint16
	Payload []byte
}

func (m Message) String() string {
	return fmt.Sprintf("sbp type=0x%04X sender=%d len=%d", m.Type, m.Sender, len(m.Payload))
}

// EncodeFrame builds the complete wire frame for one message.
func EncodeFrame(msgType uint16, sender uint16, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("sbp: payload too large: %d > %d", len(payload), MaxPayload)
	}

	frame := make([]byte, headerLen+len(payload)+crcLen)
	frame[0] = Preamble
	binary.LittleEndian.PutUint16(frame[1:3], msgType)
	binary.LittleEndian.PutUint16(frame[3:5], sender)
	frame[5] = byte(len(payload))
	copy(frame[headerLen:], payload)

	crc := crc16.Checksum(frame[1:headerLen+len(payload)], crcTable)
	binary.LittleEndian.PutUint16(frame[headerLen+len(payload):], crc)
	return frame, nil
}
