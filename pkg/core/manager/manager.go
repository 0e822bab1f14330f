// Package manager owns at most one client session at a time and drives it
// from a polling goroutine.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"netplay/pkg/api"
	"netplay/pkg/config"
	"netplay/pkg/core/conn"
	"netplay/pkg/core/session"
	"netplay/pkg/observability"
	"netplay/pkg/protocol"
	"netplay/pkg/transport"
	"netplay/pkg/transports"
)

// MsgCouldNotConnect is displayed when Connect fails.
const MsgCouldNotConnect = "CouldNotConnect"

// ErrConnectFailed is returned by Connect when the host cannot be reached.
var ErrConnectFailed = errors.New("could not connect")

// Options configures a Manager.
type Options struct {
	Net     config.NetConfig
	Deps    api.Deps
	Metrics *observability.Metrics
	// Mapper is handed to sockets; unused by clients that never Bind.
	Mapper transport.PortMapper
	// NewTransport builds the carrier; transports.NewByKind when nil.
	NewTransport func(kind string) (transport.Transport, error)
}

// intervalCall is a callback fired by the polling loop at most once per interval.
type intervalCall struct {
	interval time.Duration
	last     time.Time
	fn       func()
}

// Manager is the process-wide entry point for joining a session.
type Manager struct {
	opts Options

	// lifecycle serializes Connect and Disconnect so at most one session is
	// ever installed.
	lifecycle sync.Mutex

	mu       sync.Mutex
	cfg      config.SessionConfig
	sock     *transport.Socket
	conn     *conn.Connection
	sess     *session.ClientSession
	stop     chan struct{}
	loopDone chan struct{}
}

func New(opts Options) *Manager {
	if opts.NewTransport == nil {
		opts.NewTransport = transports.NewByKind
	}
	opts.Deps = opts.Deps.WithDefaults()
	return &Manager{opts: opts}
}

// Connect replaces any active session with a new one connected to cfg's
// host. The polling loop is running when it returns nil.
func (m *Manager) Connect(ctx context.Context, cfg config.SessionConfig) (err error) {
	ctx, span := observability.Tracer().Start(ctx, "netplay.connect", trace.WithAttributes(
		attribute.String("netplay.host", cfg.Host),
		attribute.Int("netplay.port", int(cfg.Port)),
		attribute.String("netplay.transport", m.opts.Net.Transport),
		attribute.Bool("netplay.spectator", cfg.Spectator),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.disconnect()

	if err := cfg.Validate(); err != nil {
		return err
	}
	tr, err := m.opts.NewTransport(m.opts.Net.Transport)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	sock := transport.NewSocket(tr, transport.Options{
		SendRetries: m.opts.Net.SendRetries,
		SendBackoff: m.opts.Net.SendBackoff(),
		Mapper:      m.opts.Mapper,
		Metrics:     m.opts.Metrics,
	})
	if !sock.Connect(ctx, cfg.Host, cfg.Port, m.opts.Net.ConnectTimeout()) {
		m.opts.Deps.Notifier.DisplayMessage(session.MessageCategory, MsgCouldNotConnect)
		return fmt.Errorf("%w to %s", ErrConnectFailed, cfg.Address())
	}

	c := conn.New(sock, nil, m.opts.Metrics)
	s := session.New(cfg, c, m.opts.Deps, session.Options{Metrics: m.opts.Metrics})
	c.SetHandler(s)

	calls := []*intervalCall{
		{interval: m.opts.Net.PingInterval(), fn: s.SendPing},
		{interval: m.opts.Net.InputInterval(), fn: s.SendInput},
	}
	stop := make(chan struct{})
	done := make(chan struct{})

	m.mu.Lock()
	m.cfg, m.sock, m.conn, m.sess = cfg, sock, c, s
	m.stop, m.loopDone = stop, done
	m.mu.Unlock()

	span.SetAttributes(attribute.String("netplay.session", s.ID()))
	m.opts.Metrics.SessionOpened()
	zap.L().Info("netplay: connected",
		zap.String("session", s.ID()),
		zap.String("addr", cfg.Address()),
		zap.String("transport", tr.Kind().String()),
		zap.Any("config", cfg.Redacted()))

	go m.loop(c, s, calls, stop, done)
	return nil
}

// loop polls the connection, dispatches messages and fires interval calls
// until stopped or the connection fails.
func (m *Manager) loop(c *conn.Connection, s *session.ClientSession, calls []*intervalCall, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.opts.Net.PollInterval())
	defer ticker.Stop()
	for {
		if c.ConnectionError() {
			zap.L().Info("netplay: connection lost", zap.String("session", s.ID()))
			s.Shutdown()
			c.Disconnect()
			return
		}
		c.ProcessMessages()
		now := time.Now()
		for _, call := range calls {
			if now.Sub(call.last) >= call.interval {
				call.last = now
				call.fn()
			}
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// Disconnect stops the loop, shuts the session down and closes the socket.
// It is a no-op without an active session.
func (m *Manager) Disconnect() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.disconnect()
}

func (m *Manager) disconnect() {
	m.mu.Lock()
	stop, done := m.stop, m.loopDone
	s, sock := m.sess, m.sock
	m.stop, m.loopDone = nil, nil
	m.sess, m.conn, m.sock = nil, nil, nil
	m.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	s.Shutdown()
	sock.Close()
	zap.L().Info("netplay: disconnected", zap.String("session", s.ID()))
}

// IsConnected reports whether a session exists and its connection is healthy.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil && !m.conn.ConnectionError()
}

func (m *Manager) session() *session.ClientSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

// SelectController asks the host for port.
func (m *Manager) SelectController(port uint8) {
	if s := m.session(); s != nil {
		s.SelectController(port)
	}
}

// ControllerPort is the assigned port, or protocol.SpectatorPort.
func (m *Manager) ControllerPort() uint8 {
	if s := m.session(); s != nil {
		return s.ControllerPort()
	}
	return protocol.SpectatorPort
}

// AvailableControllers is the bitmask of free ports, 0 without a session.
func (m *Manager) AvailableControllers() uint8 {
	if s := m.session(); s != nil {
		return s.AvailableControllers()
	}
	return 0
}

// InputProvider exposes the active session to the emulation thread.
func (m *Manager) InputProvider() api.InputProvider {
	if s := m.session(); s != nil {
		return s
	}
	return nil
}

// ProcessNotification forwards emulator events to the active session.
func (m *Manager) ProcessNotification(n api.Notification) {
	if s := m.session(); s != nil {
		s.ProcessNotification(n)
	}
}
