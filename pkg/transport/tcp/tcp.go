// Package tcp is the TCP carrier.
package tcp

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"

	"netplay/pkg/transport"
)

// SocketBufferSize is applied to both the kernel send and receive buffers.
const SocketBufferSize = 256 * 1024

// Transport dials and listens on TCP with Nagle disabled and enlarged buffers.
// Listening on ":port" accepts both address families.
type Transport struct{}

func New() *Transport { return &Transport{} }

func (t *Transport) Kind() transport.Kind { return transport.KindTCP }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	tl := &listener{l: l, newCh: make(chan *net.TCPConn, 8), closeCh: make(chan struct{})}
	go tl.acceptLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = tl.Close()
		case <-tl.closeCh:
		}
	}()
	return tl, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Conn, error) {
	d := &net.Dialer{}
	c, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	tc, ok := c.(*net.TCPConn)
	if !ok {
		_ = c.Close()
		return nil, errors.New("tcp: dial returned non-TCP conn")
	}
	tune(tc)
	return tc, nil
}

func tune(c *net.TCPConn) {
	if err := c.SetNoDelay(true); err != nil {
		zap.L().Debug("tcp: set nodelay", zap.Error(err))
	}
	if err := c.SetReadBuffer(SocketBufferSize); err != nil {
		zap.L().Debug("tcp: set read buffer", zap.Error(err))
	}
	if err := c.SetWriteBuffer(SocketBufferSize); err != nil {
		zap.L().Debug("tcp: set write buffer", zap.Error(err))
	}
}

type listener struct {
	l       net.Listener
	newCh   chan *net.TCPConn
	closeCh chan struct{}
}

func (l *listener) Addr() net.Addr { return l.l.Addr() }

func (l *listener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closeCh:
		return nil, errors.New("tcp listener closed")
	case c := <-l.newCh:
		return c, nil
	}
}

func (l *listener) Close() error {
	select {
	case <-l.closeCh:
		return nil
	default:
		close(l.closeCh)
	}
	return l.l.Close()
}

func (l *listener) acceptLoop() {
	for {
		c, err := l.l.Accept()
		if err != nil {
			return
		}
		tc, ok := c.(*net.TCPConn)
		if !ok {
			_ = c.Close()
			continue
		}
		tune(tc)
		select {
		case l.newCh <- tc:
		default:
			zap.L().Warn("tcp: accept backlog full, dropping", zap.Stringer("remote", tc.RemoteAddr()))
			_ = tc.Close()
		}
	}
}
