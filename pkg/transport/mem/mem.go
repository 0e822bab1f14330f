// Package mem is an in-process carrier built on net.Pipe, used by tests and
// when host and client live in one process.
package mem

import (
	"context"
	"errors"
	"net"
	"sync"

	"netplay/pkg/transport"
)

// Transport connects dialers to listeners registered under the same name.
type Transport struct {
	mu        sync.Mutex
	listeners map[string]*listener
}

func New() *Transport { return &Transport{listeners: make(map[string]*listener)} }

func (t *Transport) Kind() transport.Kind { return transport.KindMem }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
	name := key(address)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.listeners[name]; ok {
		return nil, errors.New("mem: listener already exists")
	}
	l := &listener{name: name, newCh: make(chan net.Conn, 8), closeCh: make(chan struct{})}
	l.release = func() {
		t.mu.Lock()
		if t.listeners[name] == l {
			delete(t.listeners, name)
		}
		t.mu.Unlock()
	}
	t.listeners[name] = l
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-l.closeCh:
		}
	}()
	return l, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Conn, error) {
	t.mu.Lock()
	l := t.listeners[key(address)]
	t.mu.Unlock()
	if l == nil {
		return nil, errors.New("mem: no such listener")
	}
	srv, cli := net.Pipe()
	select {
	case l.newCh <- srv:
		return cli, nil
	case <-l.closeCh:
	case <-ctx.Done():
	}
	_ = srv.Close()
	_ = cli.Close()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("mem: listener closed")
}

// key drops the host part of host:port so that a listener bound to ":port"
// is reachable as "localhost:port". Other names are used as given.
func key(address string) string {
	if _, port, err := net.SplitHostPort(address); err == nil {
		return port
	}
	return address
}

type listener struct {
	name    string
	newCh   chan net.Conn
	closeCh chan struct{}
	once    sync.Once
	release func()
}

func (l *listener) Addr() net.Addr { return memAddr(l.name) }

func (l *listener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closeCh:
		return nil, errors.New("mem listener closed")
	case c := <-l.newCh:
		return c, nil
	}
}

func (l *listener) Close() error {
	l.once.Do(func() {
		close(l.closeCh)
		l.release()
	})
	return nil
}

type memAddr string

func (a memAddr) Network() string { return "mem" }
func (a memAddr) String() string  { return string(a) }
