// Package quic carries a session over a single bidirectional QUIC stream.
package quic

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"math/big"
	"net"
	"time"

	quicgo "github.com/quic-go/quic-go"
	"go.uber.org/zap"

	"netplay/pkg/transport"
)

const alpn = "netplay"

// Transport implements the QUIC carrier. The listener side opens the stream
// and the dialer accepts it, because the host always speaks first.
type Transport struct {
	tlsConf  *tls.Config
	quicConf *quicgo.Config
}

func New() (*Transport, error) {
	// Ephemeral self-signed certificate for the listening side.
	cert, err := selfSignedCert()
	if err != nil {
		return nil, err
	}
	tlsConf := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{alpn},
		MinVersion:   tls.VersionTLS13,
	}
	qconf := &quicgo.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	}
	return &Transport{tlsConf: tlsConf, quicConf: qconf}, nil
}

func (t *Transport) Kind() transport.Kind { return transport.KindQUIC }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
	l, err := quicgo.ListenAddr(address, t.tlsConf, t.quicConf)
	if err != nil {
		return nil, err
	}
	lctx, cancel := context.WithCancel(ctx)
	ql := &listener{l: l, cancel: cancel, newCh: make(chan *conn, 8), closeCh: make(chan struct{})}
	go ql.acceptLoop(lctx)
	go func() {
		<-lctx.Done()
		_ = ql.Close()
	}()
	return ql, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Conn, error) {
	// The session layer authenticates with the password hash; the carrier
	// makes no identity claim.
	tlsClient := &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{alpn},
		MinVersion:         tls.VersionTLS13,
	}
	c, err := quicgo.DialAddr(ctx, address, tlsClient, t.quicConf)
	if err != nil {
		return nil, err
	}
	st, err := c.AcceptStream(ctx)
	if err != nil {
		_ = c.CloseWithError(0, "no stream")
		return nil, err
	}
	return &conn{Stream: st, c: c}, nil
}

type listener struct {
	l       *quicgo.Listener
	cancel  context.CancelFunc
	newCh   chan *conn
	closeCh chan struct{}
}

func (l *listener) Addr() net.Addr { return l.l.Addr() }

func (l *listener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closeCh:
		return nil, errors.New("quic listener closed")
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
	l.cancel()
	return l.l.Close()
}

func (l *listener) acceptLoop(ctx context.Context) {
	for {
		c, err := l.l.Accept(ctx)
		if err != nil {
			return
		}
		go func(c quicgo.Connection) {
			st, err := c.OpenStreamSync(ctx)
			if err != nil {
				zap.L().Debug("quic: open stream", zap.Stringer("remote", c.RemoteAddr()), zap.Error(err))
				_ = c.CloseWithError(0, "")
				return
			}
			qc := &conn{Stream: st, c: c}
			select {
			case l.newCh <- qc:
			default:
				_ = qc.Close()
			}
		}(c)
	}
}

// conn exposes one QUIC stream as a transport.Conn. Stream supplies
// Read, Write and the deadlines.
type conn struct {
	quicgo.Stream
	c quicgo.Connection
}

func (c *conn) LocalAddr() net.Addr  { return c.c.LocalAddr() }
func (c *conn) RemoteAddr() net.Addr { return c.c.RemoteAddr() }

// Read reports a peer that closed the connection or reset the stream as
// io.EOF, like a TCP peer sending FIN.
func (c *conn) Read(p []byte) (int, error) {
	n, err := c.Stream.Read(p)
	if err != nil && peerClosed(err) {
		return n, io.EOF
	}
	return n, err
}

func peerClosed(err error) bool {
	var appErr *quicgo.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Remote
	}
	var streamErr *quicgo.StreamError
	if errors.As(err, &streamErr) {
		return streamErr.Remote
	}
	return false
}

// CloseWrite finishes the send direction of the stream.
func (c *conn) CloseWrite() error { return c.Stream.Close() }

func (c *conn) Close() error {
	c.Stream.CancelRead(0)
	return c.c.CloseWithError(0, "")
}

// selfSignedCert generates a short-lived self-signed TLS certificate.
func selfSignedCert() (tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}
	tmpl := x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}, nil
}
