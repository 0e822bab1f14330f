package protocol

import "fmt"

// MessageType is the wire tag carried as the first byte of every frame body.
// Values are part of the wire contract and must not be renumbered.
type MessageType uint8

const (
	TypeHandShake MessageType = iota
	TypeSaveState
	TypeInputData
	TypeMovieData
	TypeGameInformation
	TypePlayerList
	TypeSelectController
	TypeForceDisconnect
	TypeServerInformation
	TypePing
)

func (t MessageType) String() string {
	switch t {
	case TypeHandShake:
		return "handshake"
	case TypeSaveState:
		return "save_state"
	case TypeInputData:
		return "input_data"
	case TypeMovieData:
		return "movie_data"
	case TypeGameInformation:
		return "game_information"
	case TypePlayerList:
		return "player_list"
	case TypeSelectController:
		return "select_controller"
	case TypeForceDisconnect:
		return "force_disconnect"
	case TypeServerInformation:
		return "server_information"
	case TypePing:
		return "ping"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Frame and port limits shared by both ends of a session.
const (
	// MaxFrameLength caps the declared length (tag + payload) of a frame.
	MaxFrameLength = 1_000_000
	// LengthPrefixSize is the size of the little-endian length prefix.
	LengthPrefixSize = 4

	// PortCount is the number of input ports: four controllers plus the expansion port.
	PortCount = 5
	// ExpansionPort is the port index of the expansion device.
	ExpansionPort uint8 = 4
	// SpectatorPort is assigned to participants without a controller.
	SpectatorPort uint8 = 0xFF

	// ProtocolVersion is sent in HandShake so a host can reject mismatched builds.
	ProtocolVersion uint32 = 1
)

// ControllerStateSize is the size of one raw controller port state.
const ControllerStateSize = 8

// ControllerState is the raw polled state of one controller port at one tick.
// It is opaque to this layer and compared with == to detect changes.
type ControllerState [ControllerStateSize]byte

// PlayerInfo is one roster entry.
type PlayerInfo struct {
	Name           string
	ControllerPort uint8
	IsHost         bool
}
