//go:build windows

// Package winpipe carries a session over a Windows named pipe.
package winpipe

import (
	"context"
	"errors"
	"net"

	"github.com/Microsoft/go-winio"

	"netplay/pkg/transport"
)

type Transport struct{}

func New() *Transport { return &Transport{} }

func (t *Transport) Kind() transport.Kind { return transport.KindWinPipe }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
	l, err := winio.ListenPipe(PipeName(address), nil)
	if err != nil {
		return nil, err
	}
	wl := &listener{l: l, newCh: make(chan net.Conn, 8), closeCh: make(chan struct{})}
	go wl.acceptLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = wl.Close()
		case <-wl.closeCh:
		}
	}()
	return wl, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Conn, error) {
	return winio.DialPipeContext(ctx, PipeName(address))
}

type listener struct {
	l       net.Listener
	newCh   chan net.Conn
	closeCh chan struct{}
}

func (l *listener) Addr() net.Addr { return l.l.Addr() }

func (l *listener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closeCh:
		return nil, errors.New("winpipe listener closed")
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
		select {
		case l.newCh <- c:
		default:
			_ = c.Close()
		}
	}
}
