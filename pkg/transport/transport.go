package transport

import (
	"context"
	"io"
	"net"
	"time"
)

// Kind identifies the carrier a Transport dials over.
type Kind string

const (
	KindTCP     Kind = "tcp"
	KindQUIC    Kind = "quic"
	KindMem     Kind = "mem"
	KindWinPipe Kind = "winpipe"
)

func (k Kind) String() string { return string(k) }

// Conn is a reliable, ordered, bidirectional byte stream.
// Deadlines follow net.Conn: an expired deadline fails the call with a
// timeout error and leaves the Conn usable once the deadline is moved.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// Listener accepts inbound Conns.
type Listener interface {
	// Accept blocks until an inbound conn is available or ctx is done.
	Accept(ctx context.Context) (Conn, error)
	// Addr returns the local listening address.
	Addr() net.Addr
	// Close stops the listener and unblocks Accept.
	Close() error
}

// Transport provides dialing/listening for a specific carrier kind.
type Transport interface {
	Kind() Kind
	// Listen starts accepting inbound conns on address (carrier-specific format).
	Listen(ctx context.Context, address string) (Listener, error)
	// Dial opens an outbound conn; ctx bounds connection establishment only.
	Dial(ctx context.Context, address string) (Conn, error)
}

// PortMapper requests NAT port forwarding for a listening port. Both calls
// are best effort; callers log failures and carry on.
type PortMapper interface {
	Map(port uint16) error
	Unmap(port uint16) error
}

// NopMapper is a PortMapper that does nothing.
type NopMapper struct{}

func (NopMapper) Map(uint16) error   { return nil }
func (NopMapper) Unmap(uint16) error { return nil }
