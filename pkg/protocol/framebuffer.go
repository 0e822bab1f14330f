package protocol

import (
	"encoding/binary"
	"fmt"
)

// ReceiveBufferSize is the initial capacity of a FrameBuffer.
const ReceiveBufferSize = 0x40000

// FrameBuffer accumulates raw stream bytes and extracts complete frames.
// Partial frames stay buffered across reads. It is not safe for concurrent use.
type FrameBuffer struct {
	buf []byte
	n   int
}

// NewFrameBuffer returns an empty buffer with ReceiveBufferSize capacity.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{buf: make([]byte, ReceiveBufferSize)}
}

// Free returns the writable tail of the buffer. Call Commit with the number of bytes filled.
func (b *FrameBuffer) Free() []byte { return b.buf[b.n:] }

// Commit marks n bytes of Free() as filled.
func (b *FrameBuffer) Commit(n int) {
	if n <= 0 {
		return
	}
	if b.n+n > len(b.buf) {
		n = len(b.buf) - b.n
	}
	b.n += n
}

// Write copies as much of p as fits and reports how much was taken.
func (b *FrameBuffer) Write(p []byte) (int, error) {
	n := copy(b.Free(), p)
	b.Commit(n)
	if n < len(p) {
		return n, fmt.Errorf("frame buffer full: %d of %d bytes accepted", n, len(p))
	}
	return n, nil
}

// Len is the number of buffered bytes not yet extracted.
func (b *FrameBuffer) Len() int { return b.n }

// Cap is the current capacity.
func (b *FrameBuffer) Cap() int { return len(b.buf) }

// Reset drops all buffered bytes.
func (b *FrameBuffer) Reset() { b.n = 0 }

// Next extracts the oldest complete frame. ok is false when more bytes are
// needed. A declared length above MaxFrameLength returns ErrFrameTooLarge and
// leaves the buffer untouched; the stream cannot be resynchronized after that.
func (b *FrameBuffer) Next() (f Frame, ok bool, err error) {
	for {
		if b.n < LengthPrefixSize {
			return Frame{}, false, nil
		}
		length := binary.LittleEndian.Uint32(b.buf[:LengthPrefixSize])
		if length > MaxFrameLength {
			return Frame{}, false, fmt.Errorf("%w: declared %d, max %d", ErrFrameTooLarge, length, MaxFrameLength)
		}
		need := LengthPrefixSize + int(length)
		if need > len(b.buf) {
			b.grow(need)
		}
		if b.n < need {
			return Frame{}, false, nil
		}
		if length == 0 {
			// nothing to dispatch; keep the stream aligned
			b.consume(need)
			continue
		}
		f = Frame{
			Type:    MessageType(b.buf[LengthPrefixSize]),
			Payload: append([]byte(nil), b.buf[LengthPrefixSize+1:need]...),
		}
		b.consume(need)
		return f, true, nil
	}
}

func (b *FrameBuffer) consume(n int) {
	copy(b.buf, b.buf[n:b.n])
	b.n -= n
}

// grow enlarges the buffer so one legal frame larger than the initial capacity can be assembled.
func (b *FrameBuffer) grow(size int) {
	nb := make([]byte, size)
	copy(nb, b.buf[:b.n])
	b.buf = nb
}
