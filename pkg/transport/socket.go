package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"netplay/pkg/observability"
)

// Socket tuning defaults.
const (
	// SendBufferSize is the capacity of the BufferedSend buffer.
	SendBufferSize = 200000

	DefaultConnectTimeout    = 3 * time.Second
	DefaultSendRetries       = 15
	DefaultSendBackoff       = 10 * time.Millisecond
	DefaultRecvPollWindow    = time.Millisecond
	DefaultSendAttemptWindow = time.Millisecond
)

// State is the connection state of a Socket. It only ever moves forward.
type State int32

const (
	StateOpen State = iota
	StateErrored
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateErrored:
		return "errored"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options tunes a Socket. Zero values take the package defaults.
type Options struct {
	SendRetries       int
	SendBackoff       time.Duration
	RecvPollWindow    time.Duration
	SendAttemptWindow time.Duration

	// Mapper is asked to forward the port passed to Bind.
	Mapper  PortMapper
	Metrics *observability.Metrics
}

func (o Options) withDefaults() Options {
	if o.SendRetries <= 0 {
		o.SendRetries = DefaultSendRetries
	}
	if o.SendBackoff < 0 {
		o.SendBackoff = 0
	} else if o.SendBackoff == 0 {
		o.SendBackoff = DefaultSendBackoff
	}
	if o.RecvPollWindow <= 0 {
		o.RecvPollWindow = DefaultRecvPollWindow
	}
	if o.SendAttemptWindow <= 0 {
		o.SendAttemptWindow = DefaultSendAttemptWindow
	}
	if o.Mapper == nil {
		o.Mapper = NopMapper{}
	}
	return o
}

// Socket wraps a stream Conn with non-blocking send/recv semantics, an
// application-level send buffer and a sticky error state. Send and Recv are
// not safe for concurrent use; owners serialize them.
type Socket struct {
	tr   Transport
	opts Options

	conn Conn
	ln   Listener

	mappedPort uint16

	state     atomic.Int32
	closeOnce sync.Once

	sendBuf []byte
}

// NewSocket returns an unconnected Socket that dials and listens through tr.
func NewSocket(tr Transport, opts Options) *Socket {
	return &Socket{tr: tr, opts: opts.withDefaults(), sendBuf: make([]byte, 0, SendBufferSize)}
}

// NewSocketFromConn wraps an established Conn.
func NewSocketFromConn(c Conn, opts Options) *Socket {
	s := NewSocket(nil, opts)
	s.conn = c
	return s
}

// Connect dials host:port and reports whether the connection was
// established within timeout. Failure marks the socket errored.
func (s *Socket) Connect(ctx context.Context, host string, port uint16, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	if s.tr == nil {
		zap.L().Error("socket: connect without transport", zap.String("addr", addr))
		s.setState(StateErrored)
		return false
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	c, err := s.tr.Dial(dctx, addr)
	if err != nil {
		zap.L().Warn("socket: connect failed",
			zap.String("transport", s.tr.Kind().String()),
			zap.String("addr", addr),
			zap.Duration("timeout", timeout),
			zap.Error(err))
		s.setState(StateErrored)
		return false
	}
	s.conn = c
	return true
}

// Bind listens on port on every local address and asks the mapper to
// forward it. Mapping failures are logged and otherwise ignored. Port 0
// picks an ephemeral port and is never mapped.
func (s *Socket) Bind(ctx context.Context, port uint16) error {
	if s.tr == nil {
		s.setState(StateErrored)
		return errors.New("socket: bind without transport")
	}
	ln, err := s.tr.Listen(ctx, net.JoinHostPort("", strconv.Itoa(int(port))))
	if err != nil {
		s.setState(StateErrored)
		return err
	}
	s.ln = ln
	if port == 0 {
		return nil
	}
	if err := s.opts.Mapper.Map(port); err != nil {
		zap.L().Warn("socket: port mapping failed", zap.Uint16("port", port), zap.Error(err))
	} else {
		s.mappedPort = port
	}
	return nil
}

// Accept waits for an inbound connection on a bound socket. The returned
// Socket shares this socket's tuning but never owns a port mapping.
func (s *Socket) Accept(ctx context.Context) (*Socket, error) {
	if s.ln == nil {
		return nil, errors.New("socket: accept on unbound socket")
	}
	c, err := s.ln.Accept(ctx)
	if err != nil {
		return nil, err
	}
	opts := s.opts
	opts.Mapper = NopMapper{}
	return NewSocketFromConn(c, opts), nil
}

// Send writes buf, retrying would-block up to SendRetries times with
// SendBackoff between attempts. Partial writes advance and continue. When
// the retries run out the socket is closed and 0 returned. Any other write
// error marks the socket errored and returns what was written so far.
func (s *Socket) Send(buf []byte) int {
	if s.conn == nil || s.State() == StateClosed {
		return 0
	}
	sent, retries := 0, 0
	for sent < len(buf) {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.SendAttemptWindow))
		n, err := s.conn.Write(buf[sent:])
		sent += n
		if err == nil {
			continue
		}
		if !isWouldBlock(err) {
			zap.L().Warn("socket: send failed", zap.Int("sent", sent), zap.Int("len", len(buf)), zap.Error(err))
			s.setState(StateErrored)
			return sent
		}
		if n > 0 {
			continue
		}
		retries++
		s.opts.Metrics.SendRetry()
		if retries >= s.opts.SendRetries {
			zap.L().Warn("socket: send would block, giving up",
				zap.Int("retries", retries), zap.Int("sent", sent), zap.Int("len", len(buf)))
			s.Close()
			return 0
		}
		time.Sleep(s.opts.SendBackoff)
	}
	return sent
}

// BufferedSend appends buf to the send buffer. A write that does not fit is
// dropped whole and the buffer is left as it was.
func (s *Socket) BufferedSend(buf []byte) {
	if len(s.sendBuf)+len(buf) > SendBufferSize {
		zap.L().Warn("socket: send buffer full, dropping write",
			zap.Int("buffered", len(s.sendBuf)), zap.Int("len", len(buf)))
		s.opts.Metrics.DroppedWrite()
		return
	}
	s.sendBuf = append(s.sendBuf, buf...)
}

// Buffered returns the number of bytes waiting for Flush.
func (s *Socket) Buffered() int { return len(s.sendBuf) }

// Flush sends the buffered bytes and empties the buffer.
func (s *Socket) Flush() {
	if len(s.sendBuf) == 0 {
		return
	}
	s.Send(s.sendBuf)
	s.sendBuf = s.sendBuf[:0]
}

// Recv reads whatever is available into buf, waiting at most RecvPollWindow.
// It returns 0 when nothing arrived. A peer close closes the socket; other
// read errors mark it errored.
func (s *Socket) Recv(buf []byte) int {
	if s.conn == nil || s.State() == StateClosed || len(buf) == 0 {
		return 0
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.RecvPollWindow))
	n, err := s.conn.Read(buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		zap.L().Info("socket: peer closed connection")
		s.Close()
	case isWouldBlock(err):
	default:
		zap.L().Warn("socket: recv failed", zap.Error(err))
		s.setState(StateErrored)
	}
	return n
}

// Close half-closes the write side when the carrier supports it, then
// releases the connection, the listener and any port mapping. It is safe to
// call more than once.
func (s *Socket) Close() {
	s.closeOnce.Do(func() {
		if s.conn != nil {
			if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
				_ = cw.CloseWrite()
			}
			_ = s.conn.Close()
		}
		if s.ln != nil {
			_ = s.ln.Close()
		}
		if s.mappedPort != 0 {
			if err := s.opts.Mapper.Unmap(s.mappedPort); err != nil {
				zap.L().Warn("socket: port unmapping failed", zap.Uint16("port", s.mappedPort), zap.Error(err))
			}
		}
	})
	s.setState(StateClosed)
}

// State returns the current connection state.
func (s *Socket) State() State { return State(s.state.Load()) }

// ConnectionError reports whether the socket has left the open state.
func (s *Socket) ConnectionError() bool { return s.State() != StateOpen }

// Addr returns the listening address of a bound socket, otherwise the
// remote address of the connection.
func (s *Socket) Addr() net.Addr {
	if s.ln != nil {
		return s.ln.Addr()
	}
	if s.conn != nil {
		return s.conn.RemoteAddr()
	}
	return nil
}

// setState advances the state; it never moves backwards.
func (s *Socket) setState(next State) {
	for {
		cur := s.state.Load()
		if State(cur) >= next {
			return
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			return
		}
	}
}

// isWouldBlock reports whether err is a deadline expiry.
func isWouldBlock(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
