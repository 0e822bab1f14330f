package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrFrameTooLarge is a protocol violation: the declared length exceeds MaxFrameLength.
	ErrFrameTooLarge = errors.New("frame length exceeds limit")
	// ErrUnknownType is returned by Decode for tags outside the known set.
	ErrUnknownType = errors.New("unknown message type")
)

// Frame layout on the wire:
//
//	0..3   Length  u32 LE, counts Type + Payload
//	4      Type    u8
//	5..    Payload Length-1 bytes

// Frame is one extracted frame body.
type Frame struct {
	Type    MessageType
	Payload []byte
}

// Encode serializes m into a complete frame including the length prefix.
func Encode(m Message) ([]byte, error) {
	w := writer{buf: make([]byte, LengthPrefixSize+1, 64)}
	w.buf[LengthPrefixSize] = byte(m.Type())
	m.encode(&w)
	length := len(w.buf) - LengthPrefixSize
	if length > MaxFrameLength {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrFrameTooLarge, m.Type(), length)
	}
	binary.LittleEndian.PutUint32(w.buf[:LengthPrefixSize], uint32(length))
	return w.buf, nil
}

// Decode builds the variant for tag t from payload. Unknown tags yield
// ErrUnknownType; trailing bytes after the known fields are ignored.
func Decode(t MessageType, payload []byte) (Message, error) {
	m := newMessage(t)
	if m == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
	}
	r := reader{buf: payload}
	m.decode(&r)
	if r.err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, r.err)
	}
	return m, nil
}

// DecodeFrame is Decode applied to an extracted frame.
func DecodeFrame(f Frame) (Message, error) { return Decode(f.Type, f.Payload) }
