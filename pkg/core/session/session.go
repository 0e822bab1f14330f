// Package session implements the client side of a netplay session: the
// protocol state machine, buffered authoritative input and RTT tracking.
package session

import (
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid"
	"go.uber.org/zap"

	"netplay/pkg/api"
	"netplay/pkg/config"
	"netplay/pkg/handshake"
	"netplay/pkg/observability"
	"netplay/pkg/protocol"
)

// Message categories and keys passed to api.Notifier.DisplayMessage.
const (
	MessageCategory = "NetPlay"

	MsgConnectedToServer    = "ConnectedToServer"
	MsgConnectedAsPlayer    = "ConnectedAsPlayer"
	MsgConnectedAsSpectator = "ConnectedAsSpectator"
	MsgCouldNotFindRom      = "CouldNotFindRom"
	MsgConnectionLost       = "ConnectionLost"
)

// Sender is the outbound half of a connection.
type Sender interface {
	Send(m protocol.Message) error
	Disconnect()
}

// Options carries optional session dependencies.
type Options struct {
	Metrics *observability.Metrics
	// Now is the clock used for RTT; time.Now when nil.
	Now func() time.Time
}

// ClientSession is the client protocol state machine. HandleMessage,
// SendInput and SendPing run on the network goroutine; SetInput runs on the
// emulation goroutine.
type ClientSession struct {
	id      ulid.ULID
	cfg     config.SessionConfig
	conn    Sender
	deps    api.Deps
	metrics *observability.Metrics

	state      atomic.Int32
	gameLoaded atomic.Bool
	enabled    atomic.Bool
	shutdown   atomic.Bool
	done       chan struct{}
	once       sync.Once

	queues    *portQueues
	threshold *AdaptiveThreshold
	pings     *pingTracker

	mu            sync.Mutex
	salt          string
	port          uint8
	roster        []protocol.PlayerInfo
	device        api.Device
	pendingDevice api.Device
	lastSent      protocol.ControllerState
}

// New creates a session in the Connecting state that sends through conn.
func New(cfg config.SessionConfig, conn Sender, deps api.Deps, opts Options) *ClientSession {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	t := now()
	entropy := rand.New(rand.NewSource(t.UnixNano()))
	s := &ClientSession{
		id:        ulid.MustNew(ulid.Timestamp(t), entropy),
		cfg:       cfg,
		conn:      conn,
		deps:      deps.WithDefaults(),
		metrics:   opts.Metrics,
		done:      make(chan struct{}),
		queues:    newPortQueues(),
		threshold: newThreshold(),
		pings:     newPingTracker(now),
		port:      protocol.SpectatorPort,
	}
	s.metrics.Threshold(s.threshold.Load())
	s.deps.Notifier.DisplayMessage(MessageCategory, MsgConnectedToServer)
	return s
}

// HandleMessage applies one message from the host.
func (s *ClientSession) HandleMessage(m protocol.Message) {
	switch msg := m.(type) {
	case *protocol.ServerInformation:
		s.onServerInformation(msg)
	case *protocol.GameInformation:
		s.onGameInformation(msg)
	case *protocol.SaveState:
		s.onSaveState(msg)
	case *protocol.MovieData:
		if s.gameLoaded.Load() {
			s.PushControllerState(msg.Port, msg.State)
		}
	case *protocol.PlayerList:
		s.mu.Lock()
		s.roster = msg.Players
		s.mu.Unlock()
	case *protocol.ForceDisconnect:
		zap.L().Info("session: disconnected by host", zap.String("reason", msg.Reason))
		s.deps.Notifier.DisplayMessage(MessageCategory, msg.Reason)
		s.setState(StateDisconnected)
		s.conn.Disconnect()
	case *protocol.Ping:
		s.onPing(msg)
	default:
		zap.L().Debug("session: ignoring message", zap.Stringer("type", m.Type()))
	}
}

func (s *ClientSession) onServerInformation(msg *protocol.ServerInformation) {
	s.mu.Lock()
	s.salt = msg.Salt
	s.mu.Unlock()
	hs := handshake.Build(s.cfg.PlayerName, s.cfg.Password, msg.Salt, s.cfg.Spectator)
	if err := s.conn.Send(hs); err != nil {
		zap.L().Error("session: send handshake", zap.Error(err))
		return
	}
	s.setState(StateHandshaking)
}

func (s *ClientSession) onGameInformation(msg *protocol.GameInformation) {
	s.DisableControllers()
	s.deps.Emulator.Pause()

	s.mu.Lock()
	changed := msg.Port != s.port
	s.port = msg.Port
	s.mu.Unlock()
	if changed {
		if msg.Port == protocol.SpectatorPort {
			s.deps.Notifier.DisplayMessage(MessageCategory, MsgConnectedAsSpectator)
		} else {
			s.deps.Notifier.DisplayMessage(MessageCategory, MsgConnectedAsPlayer, strconv.Itoa(int(msg.Port)+1))
		}
	}

	s.clearQueues()
	s.gameLoaded.Store(s.loadGame(msg.RomFilename, msg.CRC32))
	s.deps.Emulator.SetPaused(msg.Paused)
	s.deps.Emulator.Resume()

	if msg.Port == protocol.SpectatorPort {
		s.setState(StateSpectating)
	} else {
		s.setState(StatePlaying)
	}
}

func (s *ClientSession) loadGame(filename string, crc32 uint32) bool {
	if filename == "" {
		return false
	}
	if s.deps.ROMs.LoadMatchingROM(filename, crc32) {
		return true
	}
	zap.L().Warn("session: no matching rom", zap.String("file", filename), zap.Uint32("crc32", crc32))
	s.deps.Notifier.DisplayMessage(MessageCategory, MsgCouldNotFindRom)
	return false
}

func (s *ClientSession) onSaveState(msg *protocol.SaveState) {
	if !s.gameLoaded.Load() {
		return
	}
	s.DisableControllers()
	s.deps.Emulator.Pause()
	s.clearQueues()
	if err := s.deps.States.LoadState(msg.State); err != nil {
		zap.L().Error("session: load state", zap.Int("len", len(msg.State)), zap.Error(err))
	}
	s.queues.drain()
	s.enabled.Store(true)
	s.initControlDevice()
	s.deps.Emulator.Resume()
}

func (s *ClientSession) onPing(msg *protocol.Ping) {
	rtt, ok := s.pings.reply(msg.ID)
	if !ok {
		zap.L().Warn("session: ping reply with unknown id", zap.Uint32("id", msg.ID))
		return
	}
	zap.L().Debug("session: ping", zap.Uint32("id", msg.ID), zap.Duration("rtt", rtt))
	s.metrics.ObserveRTT(rtt)
}

// PushControllerState queues an authoritative state for port and wakes the
// port's waiter once the queue reaches the threshold. Out of range ports are
// dropped.
func (s *ClientSession) PushControllerState(port uint8, st protocol.ControllerState) {
	if port >= protocol.PortCount {
		zap.L().Debug("session: dropping input for invalid port", zap.Uint8("port", port))
		return
	}
	n := s.queues.push(port, st)
	s.metrics.QueueDepth(strconv.Itoa(int(port)), n)
	if n >= s.threshold.Load() {
		s.queues.signal(port)
	}
}

// DisableControllers stops input delivery, drops buffered input and wakes
// every waiting SetInput so the emulation thread cannot stay blocked while
// the core is paused.
func (s *ClientSession) DisableControllers() {
	s.clearQueues()
	s.enabled.Store(false)
	s.queues.signalAll()
}

// clearQueues drops buffered input on every port and publishes the empty depths.
func (s *ClientSession) clearQueues() {
	s.queues.clear()
	for p := 0; p < protocol.PortCount; p++ {
		s.metrics.QueueDepth(strconv.Itoa(p), 0)
	}
}

// SetInput feeds dev with the next authoritative state for its port,
// blocking until one is buffered. It returns without touching dev when
// delivery is disabled or the session shuts down while waiting.
func (s *ClientSession) SetInput(dev api.Device) bool {
	if !s.enabled.Load() {
		return true
	}
	port := dev.Port()
	if port >= protocol.PortCount {
		return true
	}
	for s.queues.size(port) == 0 {
		if port == 0 {
			s.metrics.Threshold(s.threshold.Grow())
		}
		select {
		case <-s.queues.wake[port]:
		case <-s.done:
		}
		if s.shutdown.Load() || !s.enabled.Load() {
			return true
		}
	}

	st, remaining, ok := s.queues.pop(port)
	if !ok {
		return true
	}
	s.metrics.QueueDepth(strconv.Itoa(int(port)), remaining)
	catchUp := remaining > s.threshold.Load()
	s.deps.Emulator.SetSpeedOverride(catchUp)
	s.metrics.SpeedOverride(catchUp)
	dev.SetRawState(st)
	return true
}

// initControlDevice stages a new local control device for the next SendInput.
// Controller ports use port 0's bindings; the expansion port keeps its own.
func (s *ClientSession) initControlDevice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.port == protocol.SpectatorPort:
		s.pendingDevice = nil
	case s.port == protocol.ExpansionPort:
		s.pendingDevice = s.deps.Devices.CreateDevice(protocol.ExpansionPort)
	default:
		s.pendingDevice = s.deps.Devices.CreateDevice(0)
	}
}

// SendInput polls the local device and sends its state when it changed
// since the last send.
func (s *ClientSession) SendInput() {
	if !s.gameLoaded.Load() {
		return
	}
	s.mu.Lock()
	if s.pendingDevice != nil {
		s.device = s.pendingDevice
		s.pendingDevice = nil
	}
	var st protocol.ControllerState
	if s.device != nil {
		st = s.device.PollState()
	}
	if st == s.lastSent {
		s.mu.Unlock()
		return
	}
	s.lastSent = st
	s.mu.Unlock()

	if err := s.conn.Send(&protocol.InputData{State: st}); err != nil {
		zap.L().Error("session: send input", zap.Error(err))
	}
}

// SendPing sends a Ping with the next id and records when it left.
func (s *ClientSession) SendPing() {
	id := s.pings.start()
	if err := s.conn.Send(&protocol.Ping{ID: id}); err != nil {
		zap.L().Error("session: send ping", zap.Uint32("id", id), zap.Error(err))
	}
}

// SelectController asks the host for port.
func (s *ClientSession) SelectController(port uint8) {
	if err := s.conn.Send(&protocol.SelectController{Port: port}); err != nil {
		zap.L().Error("session: select controller", zap.Uint8("port", port), zap.Error(err))
	}
}

// ProcessNotification reacts to emulator events.
func (s *ClientSession) ProcessNotification(n api.Notification) {
	switch n {
	case api.NotifyConfigChanged:
		s.initControlDevice()
	case api.NotifyGameLoaded:
		s.deps.Inputs.RegisterInputProvider(s)
	}
}

// Shutdown releases waiters and detaches from the emulator. It is idempotent.
func (s *ClientSession) Shutdown() {
	s.once.Do(func() {
		s.shutdown.Store(true)
		close(s.done)
		s.DisableControllers()
		s.deps.Inputs.UnregisterInputProvider(s)
		s.deps.Notifier.Notify(api.NotifyDisconnectedFromServer)
		s.deps.Notifier.DisplayMessage(MessageCategory, MsgConnectionLost)
		s.deps.Emulator.SetSpeedOverride(false)
		s.metrics.SpeedOverride(false)
		s.setState(StateDisconnected)
	})
}

// AvailableControllers returns a bitmask of ports no roster entry occupies.
func (s *ClientSession) AvailableControllers() uint8 {
	avail := uint8(1<<protocol.PortCount - 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.roster {
		if p.ControllerPort < protocol.PortCount {
			avail &^= 1 << p.ControllerPort
		}
	}
	return avail
}

func (s *ClientSession) ControllerPort() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Roster returns a copy of the latest player list.
func (s *ClientSession) Roster() []protocol.PlayerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.PlayerInfo(nil), s.roster...)
}

func (s *ClientSession) ID() string             { return s.id.String() }
func (s *ClientSession) State() State           { return State(s.state.Load()) }
func (s *ClientSession) Threshold() int         { return s.threshold.Load() }
func (s *ClientSession) LastRTT() time.Duration { return s.pings.lastRTT() }
func (s *ClientSession) GameLoaded() bool       { return s.gameLoaded.Load() }
func (s *ClientSession) Enabled() bool          { return s.enabled.Load() }

// QueueDepth is the number of states buffered for port.
func (s *ClientSession) QueueDepth(port uint8) int {
	if port >= protocol.PortCount {
		return 0
	}
	return s.queues.size(port)
}

// setState moves to next. Disconnected is terminal.
func (s *ClientSession) setState(next State) {
	for {
		cur := s.state.Load()
		if State(cur) == StateDisconnected {
			return
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			if State(cur) != next {
				zap.L().Debug("session: state", zap.String("session", s.id.String()),
					zap.Stringer("from", State(cur)), zap.Stringer("to", next))
			}
			return
		}
	}
}

var (
	_ api.InputProvider        = (*ClientSession)(nil)
	_ api.NotificationListener = (*ClientSession)(nil)
)
