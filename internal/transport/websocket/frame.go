package websocket

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame types. Every binary message starts with one of these bytes.
const (
	frameData   byte = 0x01
	frameCredit byte = 0x02
	frameClose  byte = 0x03
)

// ErrBadFrame is returned for a message that does not decode.
var ErrBadFrame = errors.New("malformed channel frame")

type frame struct {
	kind    byte
	payload []byte
	credit  uint32
}

func encodeData(p []byte) []byte {
	msg := make([]byte, 1+len(p))
	msg[0] = frameData
	copy(msg[1:], p)
	return msg
}

func encodeCredit(n uint32) []byte {
	msg := make([]byte, 5)
	msg[0] = frameCredit
	binary.BigEndian.PutUint32(msg[1:], n)
	return msg
}

func encodeClose() []byte {
	return []byte{frameClose}
}

func decodeFrame(msg []byte) (frame, error) {
	if len(msg) == 0 {
		return frame{}, fmt.Errorf("%w: empty message", ErrBadFrame)
	}

	f := frame{kind: msg[0]}
	switch f.kind {
	case frameData:
		f.payload = msg[1:]
	case frameCredit:
		if len(msg) != 5 {
			return frame{}, fmt.Errorf("%w: credit frame of %d bytes", ErrBadFrame, len(msg))
		}
		f.credit = binary.BigEndian.Uint32(msg[1:])
	case frameClose:
	default:
		return frame{}, fmt.Errorf("%w: unknown type 0x%02x", ErrBadFrame, f.kind)
	}
	return f, nil
}
