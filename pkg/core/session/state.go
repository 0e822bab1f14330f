package session

// State is the client protocol state.
type State int32

const (
	StateConnecting State = iota
	StateHandshaking
	StateSpectating
	StatePlaying
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateSpectating:
		return "spectating"
	case StatePlaying:
		return "playing"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
