// Package conn turns a Socket byte stream into dispatched protocol messages.
package conn

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"netplay/pkg/observability"
	"netplay/pkg/protocol"
	"netplay/pkg/transport"
)

// Socket is the part of transport.Socket a Connection drives.
type Socket interface {
	Recv(buf []byte) int
	Send(buf []byte) int
	BufferedSend(buf []byte)
	Flush()
	Close()
	ConnectionError() bool
}

var _ Socket = (*transport.Socket)(nil)

// Handler receives decoded messages in arrival order.
type Handler interface {
	HandleMessage(m protocol.Message)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(m protocol.Message)

func (f HandlerFunc) HandleMessage(m protocol.Message) { f(m) }

// Connection owns a Socket and its receive buffer. Reads and writes on the
// socket share one lock; handlers run outside it and may call Send.
type Connection struct {
	mu   sync.Mutex
	sock Socket
	fb   *protocol.FrameBuffer

	handler Handler
	metrics *observability.Metrics
}

// New wraps sock. A nil handler drops every message until SetHandler is called.
func New(sock Socket, h Handler, m *observability.Metrics) *Connection {
	return &Connection{sock: sock, fb: protocol.NewFrameBuffer(), handler: h, metrics: m}
}

// SetHandler replaces the message handler. It must not race ProcessMessages.
func (c *Connection) SetHandler(h Handler) { c.handler = h }

// ProcessMessages runs one drain cycle: receive what is available, dispatch
// every complete frame, and repeat until no complete frame remains. It
// returns the number of messages dispatched. An oversized frame disconnects
// and stops the cycle.
func (c *Connection) ProcessMessages() int {
	dispatched := 0
	for {
		frames, err := c.readFrames()
		for _, f := range frames {
			if c.dispatch(f) {
				dispatched++
			}
		}
		if err != nil {
			zap.L().Warn("conn: protocol violation, disconnecting", zap.Error(err))
			c.metrics.Violation("frame_too_large")
			c.Disconnect()
			return dispatched
		}
		if len(frames) == 0 {
			return dispatched
		}
	}
}

// readFrames receives once and extracts every complete frame.
func (c *Connection) readFrames() ([]protocol.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock.ConnectionError() {
		return nil, nil
	}
	c.fb.Commit(c.sock.Recv(c.fb.Free()))
	var frames []protocol.Frame
	for {
		f, ok, err := c.fb.Next()
		if err != nil {
			return frames, err
		}
		if !ok {
			return frames, nil
		}
		frames = append(frames, f)
	}
}

func (c *Connection) dispatch(f protocol.Frame) bool {
	m, err := protocol.DecodeFrame(f)
	switch {
	case errors.Is(err, protocol.ErrUnknownType):
		zap.L().Debug("conn: skipping unknown message", zap.Uint8("type", uint8(f.Type)), zap.Int("len", len(f.Payload)))
		c.metrics.Violation("unknown_type")
		return false
	case err != nil:
		zap.L().Warn("conn: dropping malformed message", zap.Stringer("type", f.Type), zap.Error(err))
		c.metrics.Violation("malformed")
		return false
	}
	c.metrics.FrameIn(f.Type.String())
	if c.handler != nil {
		c.handler.HandleMessage(m)
	}
	return true
}

// Send encodes m and writes it under the socket lock. Frames larger than the
// socket's send buffer bypass it.
func (c *Connection) Send(m protocol.Message) error {
	frame, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(frame) >= transport.SendBufferSize {
		c.sock.Send(frame)
	} else {
		c.sock.BufferedSend(frame)
		c.sock.Flush()
	}
	c.metrics.FrameOut(m.Type().String())
	return nil
}

// Disconnect closes the socket and drops any partial frame. It is safe to
// call more than once.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sock.Close()
	c.fb.Reset()
}

// ConnectionError reports whether the underlying socket is no longer open.
func (c *Connection) ConnectionError() bool {
	return c.sock.ConnectionError()
}
