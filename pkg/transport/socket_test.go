package transport_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"netplay/pkg/transport"
	"netplay/pkg/transport/mem"
	tquic "netplay/pkg/transport/quic"
	"netplay/pkg/transport/tcp"
)

// scriptConn is a Conn whose Read and Write results are chosen by the test.
type scriptConn struct {
	mu      sync.Mutex
	write   func(p []byte) (int, error)
	read    func(p []byte) (int, error)
	writes  int
	written bytes.Buffer
	closed  bool
}

func (c *scriptConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	n, err := c.write(p)
	c.written.Write(p[:n])
	return n, err
}

func (c *scriptConn) Read(p []byte) (int, error) {
	if c.read == nil {
		return 0, os.ErrDeadlineExceeded
	}
	return c.read(p)
}

func (c *scriptConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *scriptConn) SetReadDeadline(time.Time) error  { return nil }
func (c *scriptConn) SetWriteDeadline(time.Time) error { return nil }
func (c *scriptConn) LocalAddr() net.Addr              { return nil }
func (c *scriptConn) RemoteAddr() net.Addr             { return nil }

func fastOpts() transport.Options {
	return transport.Options{SendBackoff: time.Microsecond}
}

func TestSendGivesUpAfterRetriesAndCloses(t *testing.T) {
	c := &scriptConn{write: func([]byte) (int, error) { return 0, os.ErrDeadlineExceeded }}
	s := transport.NewSocketFromConn(c, fastOpts())

	if n := s.Send([]byte("hello")); n != 0 {
		t.Fatalf("Send = %d, want 0", n)
	}
	if c.writes != transport.DefaultSendRetries {
		t.Fatalf("write attempts = %d, want %d", c.writes, transport.DefaultSendRetries)
	}
	if s.State() != transport.StateClosed || !c.closed {
		t.Fatalf("socket should be closed, state=%s closed=%v", s.State(), c.closed)
	}
}

func TestSendPartialWritesAdvance(t *testing.T) {
	// one byte per attempt, each attempt hitting the deadline
	c := &scriptConn{write: func(p []byte) (int, error) { return 1, os.ErrDeadlineExceeded }}
	s := transport.NewSocketFromConn(c, fastOpts())

	payload := bytes.Repeat([]byte{0xAB}, 40)
	if n := s.Send(payload); n != len(payload) {
		t.Fatalf("Send = %d, want %d", n, len(payload))
	}
	if !bytes.Equal(c.written.Bytes(), payload) {
		t.Fatalf("written bytes differ")
	}
	if s.State() != transport.StateOpen {
		t.Fatalf("state = %s, want open", s.State())
	}
}

func TestSendErrorIsSticky(t *testing.T) {
	c := &scriptConn{write: func([]byte) (int, error) { return 0, errors.New("connection reset") }}
	s := transport.NewSocketFromConn(c, fastOpts())

	s.Send([]byte{1})
	if s.State() != transport.StateErrored || !s.ConnectionError() {
		t.Fatalf("state = %s, want errored", s.State())
	}
	if c.closed {
		t.Fatalf("hard send error must not close the socket")
	}
	s.Close()
	s.Close()
	if s.State() != transport.StateClosed {
		t.Fatalf("state = %s, want closed", s.State())
	}
}

func TestBufferedSendOverflowDropsWrite(t *testing.T) {
	c := &scriptConn{write: func(p []byte) (int, error) { return len(p), nil }}
	s := transport.NewSocketFromConn(c, fastOpts())

	s.BufferedSend(make([]byte, 150000))
	s.BufferedSend(make([]byte, 60000))
	if got := s.Buffered(); got != 150000 {
		t.Fatalf("buffered = %d, want 150000", got)
	}
	s.BufferedSend(make([]byte, 50000))
	if got := s.Buffered(); got != transport.SendBufferSize {
		t.Fatalf("buffered = %d, want %d", got, transport.SendBufferSize)
	}
	s.Flush()
	if s.Buffered() != 0 || c.written.Len() != transport.SendBufferSize {
		t.Fatalf("flush: buffered=%d written=%d", s.Buffered(), c.written.Len())
	}
}

func TestRecvWouldBlockIsNotAnError(t *testing.T) {
	s := transport.NewSocketFromConn(&scriptConn{}, fastOpts())
	buf := make([]byte, 16)
	if n := s.Recv(buf); n != 0 {
		t.Fatalf("Recv = %d, want 0", n)
	}
	if s.ConnectionError() {
		t.Fatalf("would-block flagged as connection error")
	}
}

func TestRecvEOFCloses(t *testing.T) {
	c := &scriptConn{read: func([]byte) (int, error) { return 0, io.EOF }}
	s := transport.NewSocketFromConn(c, fastOpts())
	s.Recv(make([]byte, 16))
	if s.State() != transport.StateClosed {
		t.Fatalf("state = %s, want closed", s.State())
	}
}

func TestRecvErrorMarksErrored(t *testing.T) {
	c := &scriptConn{read: func([]byte) (int, error) { return 0, errors.New("boom") }}
	s := transport.NewSocketFromConn(c, fastOpts())
	s.Recv(make([]byte, 16))
	if s.State() != transport.StateErrored {
		t.Fatalf("state = %s, want errored", s.State())
	}
}

func TestConnectFailureSetsErrored(t *testing.T) {
	s := transport.NewSocket(mem.New(), fastOpts())
	if s.Connect(context.Background(), "localhost", 1, 50*time.Millisecond) {
		t.Fatalf("connect to missing listener succeeded")
	}
	if s.State() != transport.StateErrored {
		t.Fatalf("state = %s, want errored", s.State())
	}
}

type recordingMapper struct {
	mu       sync.Mutex
	mapped   []uint16
	unmapped []uint16
	err      error
}

func (m *recordingMapper) Map(port uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mapped = append(m.mapped, port)
	return m.err
}

func (m *recordingMapper) Unmap(port uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmapped = append(m.unmapped, port)
	return nil
}

func TestBindMapsAndCloseUnmaps(t *testing.T) {
	mapper := &recordingMapper{}
	opts := fastOpts()
	opts.Mapper = mapper
	s := transport.NewSocket(mem.New(), opts)
	if err := s.Bind(context.Background(), 9100); err != nil {
		t.Fatalf("bind: %v", err)
	}
	s.Close()
	if len(mapper.mapped) != 1 || mapper.mapped[0] != 9100 {
		t.Fatalf("mapped = %v", mapper.mapped)
	}
	if len(mapper.unmapped) != 1 || mapper.unmapped[0] != 9100 {
		t.Fatalf("unmapped = %v", mapper.unmapped)
	}
}

func TestBindSurvivesMappingFailure(t *testing.T) {
	mapper := &recordingMapper{err: errors.New("no gateway")}
	opts := fastOpts()
	opts.Mapper = mapper
	s := transport.NewSocket(mem.New(), opts)
	if err := s.Bind(context.Background(), 9101); err != nil {
		t.Fatalf("bind: %v", err)
	}
	s.Close()
	if len(mapper.unmapped) != 0 {
		t.Fatalf("unmapped a port that was never mapped: %v", mapper.unmapped)
	}
}

// exchange binds a server, connects a client and checks bytes flow both
// ways. The host speaks first, as in a session; a QUIC dialer only sees the
// stream once the listener has written to it.
func exchange(t *testing.T, tr transport.Transport, port uint16, host string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := transport.NewSocket(tr, transport.Options{})
	if err := srv.Bind(ctx, port); err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer srv.Close()
	if port == 0 {
		switch a := srv.Addr().(type) {
		case *net.TCPAddr:
			port = uint16(a.Port)
		case *net.UDPAddr:
			port = uint16(a.Port)
		default:
			t.Fatalf("unexpected listen address %T", a)
		}
	}

	accepted := make(chan *transport.Socket, 1)
	go func() {
		a, err := srv.Accept(ctx)
		if err != nil {
			close(accepted)
			return
		}
		accepted <- a
	}()

	cli := transport.NewSocket(tr, transport.Options{})
	want := []byte("ServerInformation")
	got := make(chan []byte, 1)
	go func() {
		if !cli.Connect(ctx, host, port, 2*time.Second) {
			got <- nil
			return
		}
		got <- readN(cli, len(want))
	}()
	peer, ok := <-accepted
	if !ok {
		t.Fatalf("accept failed")
	}
	defer peer.Close()

	if n := peer.Send(want); n != len(want) {
		t.Fatalf("host Send = %d", n)
	}
	b := <-got
	if b == nil {
		t.Fatalf("connect failed")
	}
	defer cli.Close()
	if !bytes.Equal(b, want) {
		t.Fatalf("client read %q, want %q", b, want)
	}

	reply := []byte("HandShake")
	got2 := make(chan []byte, 1)
	go func() { got2 <- readN(peer, len(reply)) }()
	cli.BufferedSend(reply)
	cli.Flush()
	if b := <-got2; !bytes.Equal(b, reply) {
		t.Fatalf("host read %q, want %q", b, reply)
	}

	peer.Close()
	deadline := time.Now().Add(2 * time.Second)
	for cli.State() == transport.StateOpen && time.Now().Before(deadline) {
		cli.Recv(make([]byte, 16))
	}
	if cli.State() != transport.StateClosed {
		t.Fatalf("client state after peer close = %s, want closed", cli.State())
	}
}

func readN(s *transport.Socket, n int) []byte {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	deadline := time.Now().Add(2 * time.Second)
	for len(out) < n && time.Now().Before(deadline) {
		k := s.Recv(buf[:n-len(out)])
		out = append(out, buf[:k]...)
	}
	return out
}

func TestMemSocketExchange(t *testing.T) {
	exchange(t, mem.New(), 9200, "localhost")
}

func TestTCPSocketExchange(t *testing.T) {
	exchange(t, tcp.New(), 0, "127.0.0.1")
}

func TestQUICSocketExchange(t *testing.T) {
	tr, err := tquic.New()
	if err != nil {
		t.Fatalf("quic transport: %v", err)
	}
	exchange(t, tr, 0, "127.0.0.1")
}
