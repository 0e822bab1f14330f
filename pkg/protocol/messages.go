package protocol

// Message is the closed set of wire variants. Only types in this package
// implement it; each one knows its tag and how to (de)serialize its payload.
type Message interface {
	Type() MessageType
	encode(w *writer)
	decode(r *reader)
}

// HandShake is sent by the client once the host's salt is known.
type HandShake struct {
	ProtocolVersion uint32
	PlayerName      string
	PasswordHash    string
	Spectator       bool
}

func (*HandShake) Type() MessageType { return TypeHandShake }

func (m *HandShake) encode(w *writer) {
	w.u32(m.ProtocolVersion)
	w.str(m.PlayerName)
	w.str(m.PasswordHash)
	w.boolean(m.Spectator)
}

func (m *HandShake) decode(r *reader) {
	m.ProtocolVersion = r.u32()
	m.PlayerName = r.str()
	m.PasswordHash = r.str()
	m.Spectator = r.boolean()
}

// SaveState carries an opaque serialized emulation state.
type SaveState struct {
	State []byte
}

func (*SaveState) Type() MessageType  { return TypeSaveState }
func (m *SaveState) encode(w *writer) { w.bytes(m.State) }
func (m *SaveState) decode(r *reader) { m.State = r.bytes() }

// InputData is the client's local controller state for its assigned port.
type InputData struct {
	State ControllerState
}

func (*InputData) Type() MessageType  { return TypeInputData }
func (m *InputData) encode(w *writer) { w.state(m.State) }
func (m *InputData) decode(r *reader) { m.State = r.state() }

// MovieData is authoritative controller input for one port.
type MovieData struct {
	Port  uint8
	State ControllerState
}

func (*MovieData) Type() MessageType { return TypeMovieData }

func (m *MovieData) encode(w *writer) {
	w.u8(m.Port)
	w.state(m.State)
}

func (m *MovieData) decode(r *reader) {
	m.Port = r.u8()
	m.State = r.state()
}

// GameInformation assigns a controller port and names the game to load.
type GameInformation struct {
	Port        uint8
	RomFilename string
	CRC32       uint32
	Paused      bool
}

func (*GameInformation) Type() MessageType { return TypeGameInformation }

func (m *GameInformation) encode(w *writer) {
	w.u8(m.Port)
	w.str(m.RomFilename)
	w.u32(m.CRC32)
	w.boolean(m.Paused)
}

func (m *GameInformation) decode(r *reader) {
	m.Port = r.u8()
	m.RomFilename = r.str()
	m.CRC32 = r.u32()
	m.Paused = r.boolean()
}

// PlayerList is the full roster; it replaces any previous one.
type PlayerList struct {
	Players []PlayerInfo
}

// minPlayerEntry is the smallest encoded PlayerInfo: empty name, port, host flag.
const minPlayerEntry = 4 + 1 + 1

func (*PlayerList) Type() MessageType { return TypePlayerList }

func (m *PlayerList) encode(w *writer) {
	w.u32(uint32(len(m.Players)))
	for _, p := range m.Players {
		w.str(p.Name)
		w.u8(p.ControllerPort)
		w.boolean(p.IsHost)
	}
}

func (m *PlayerList) decode(r *reader) {
	n := int(r.u32())
	if n == 0 || !r.need(n*minPlayerEntry) {
		return
	}
	m.Players = make([]PlayerInfo, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		p := PlayerInfo{Name: r.str(), ControllerPort: r.u8(), IsHost: r.boolean()}
		m.Players = append(m.Players, p)
	}
}

// SelectController asks the host for a controller port.
type SelectController struct {
	Port uint8
}

func (*SelectController) Type() MessageType  { return TypeSelectController }
func (m *SelectController) encode(w *writer) { w.u8(m.Port) }
func (m *SelectController) decode(r *reader) { m.Port = r.u8() }

// ForceDisconnect tells the client why the host is dropping it.
type ForceDisconnect struct {
	Reason string
}

func (*ForceDisconnect) Type() MessageType  { return TypeForceDisconnect }
func (m *ForceDisconnect) encode(w *writer) { w.str(m.Reason) }
func (m *ForceDisconnect) decode(r *reader) { m.Reason = r.str() }

// ServerInformation carries the per-session password salt.
type ServerInformation struct {
	Salt string
}

func (*ServerInformation) Type() MessageType  { return TypeServerInformation }
func (m *ServerInformation) encode(w *writer) { w.str(m.Salt) }
func (m *ServerInformation) decode(r *reader) { m.Salt = r.str() }

// Ping is echoed by the peer with the same ID.
type Ping struct {
	ID uint32
}

func (*Ping) Type() MessageType  { return TypePing }
func (m *Ping) encode(w *writer) { w.u32(m.ID) }
func (m *Ping) decode(r *reader) { m.ID = r.u32() }

// newMessage returns an empty variant for tag t, or nil for unknown tags.
func newMessage(t MessageType) Message {
	switch t {
	case TypeHandShake:
		return &HandShake{}
	case TypeSaveState:
		return &SaveState{}
	case TypeInputData:
		return &InputData{}
	case TypeMovieData:
		return &MovieData{}
	case TypeGameInformation:
		return &GameInformation{}
	case TypePlayerList:
		return &PlayerList{}
	case TypeSelectController:
		return &SelectController{}
	case TypeForceDisconnect:
		return &ForceDisconnect{}
	case TypeServerInformation:
		return &ServerInformation{}
	case TypePing:
		return &Ping{}
	default:
		return nil
	}
}
