package session

import (
	"strings"
	"sync"
	"time"

	"netplay/pkg/api"
	"netplay/pkg/config"
	"netplay/pkg/protocol"
)

type fakeSender struct {
	mu           sync.Mutex
	sent         []protocol.Message
	disconnected bool
}

func (f *fakeSender) Send(m protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeSender) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func (f *fakeSender) messages() []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Message(nil), f.sent...)
}

// fakeEmu records run control calls in order.
type fakeEmu struct {
	mu       sync.Mutex
	calls    []string
	override bool
}

func (e *fakeEmu) record(s string) {
	e.mu.Lock()
	e.calls = append(e.calls, s)
	e.mu.Unlock()
}

func (e *fakeEmu) Pause()  { e.record("pause") }
func (e *fakeEmu) Resume() { e.record("resume") }

func (e *fakeEmu) SetPaused(p bool) {
	if p {
		e.record("paused")
	} else {
		e.record("running")
	}
}

func (e *fakeEmu) SetSpeedOverride(on bool) {
	e.mu.Lock()
	e.override = on
	e.mu.Unlock()
}

func (e *fakeEmu) speedOverride() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.override
}

func (e *fakeEmu) log() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return strings.Join(e.calls, ",")
}

type fakeROMs struct{ ok bool }

func (r fakeROMs) LoadMatchingROM(string, uint32) bool { return r.ok }

type fakeStates struct {
	mu     sync.Mutex
	loaded [][]byte
}

func (s *fakeStates) LoadState(b []byte) error {
	s.mu.Lock()
	s.loaded = append(s.loaded, b)
	s.mu.Unlock()
	return nil
}

type fakeDevice struct {
	mu    sync.Mutex
	port  uint8
	raw   protocol.ControllerState
	sets  int
	local protocol.ControllerState
}

func (d *fakeDevice) Port() uint8 { return d.port }

func (d *fakeDevice) SetRawState(st protocol.ControllerState) {
	d.mu.Lock()
	d.raw = st
	d.sets++
	d.mu.Unlock()
}

func (d *fakeDevice) PollState() protocol.ControllerState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.local
}

func (d *fakeDevice) setCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sets
}

type fakeDevices struct {
	mu      sync.Mutex
	created []uint8
	dev     *fakeDevice
}

func (f *fakeDevices) CreateDevice(port uint8) api.Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, port)
	return f.dev
}

type fakeInputs struct {
	mu           sync.Mutex
	registered   int
	unregistered int
}

func (f *fakeInputs) RegisterInputProvider(api.InputProvider) {
	f.mu.Lock()
	f.registered++
	f.mu.Unlock()
}

func (f *fakeInputs) UnregisterInputProvider(api.InputProvider) {
	f.mu.Lock()
	f.unregistered++
	f.mu.Unlock()
}

type fakeNotifier struct {
	mu            sync.Mutex
	messages      []string
	notifications []api.Notification
}

func (n *fakeNotifier) DisplayMessage(category, key string, args ...string) {
	n.mu.Lock()
	n.messages = append(n.messages, strings.Join(append([]string{key}, args...), " "))
	n.mu.Unlock()
}

func (n *fakeNotifier) Notify(x api.Notification) {
	n.mu.Lock()
	n.notifications = append(n.notifications, x)
	n.mu.Unlock()
}

func (n *fakeNotifier) has(msg string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, m := range n.messages {
		if m == msg {
			return true
		}
	}
	return false
}

// fakeClock is advanced by hand.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	s        *ClientSession
	conn     *fakeSender
	emu      *fakeEmu
	states   *fakeStates
	devices  *fakeDevices
	inputs   *fakeInputs
	notifier *fakeNotifier
	clock    *fakeClock
}

func newHarness(romFound bool) *harness {
	h := &harness{
		conn:     &fakeSender{},
		emu:      &fakeEmu{},
		states:   &fakeStates{},
		devices:  &fakeDevices{dev: &fakeDevice{}},
		inputs:   &fakeInputs{},
		notifier: &fakeNotifier{},
		clock:    &fakeClock{t: time.Unix(1700000000, 0)},
	}
	cfg := config.SessionConfig{Host: "localhost", Port: config.DefaultPort, PlayerName: "Ness", Password: "pk"}
	deps := api.Deps{
		ROMs:     fakeROMs{ok: romFound},
		Emulator: h.emu,
		States:   h.states,
		Devices:  h.devices,
		Inputs:   h.inputs,
		Notifier: h.notifier,
	}
	h.s = New(cfg, h.conn, deps, Options{Now: h.clock.Now})
	return h
}

// playing puts the session into Playing on port with a loaded game and
// input delivery enabled.
func (h *harness) playing(port uint8) {
	h.s.HandleMessage(&protocol.GameInformation{Port: port, RomFilename: "game.nes", CRC32: 1})
	h.s.HandleMessage(&protocol.SaveState{State: []byte{1, 2, 3}})
}

func st(b byte) protocol.ControllerState {
	return protocol.ControllerState{b}
}
