package manager

import (
	"encoding/json"
	"fmt"

	"netplay/pkg/protocol"
	"netplay/pkg/protocol/codec"
)

// PlayerStatus is one roster entry in a Status.
type PlayerStatus struct {
	Name string `json:"name" msgpack:"name"`
	Port int    `json:"port" msgpack:"port"`
	Host bool   `json:"host" msgpack:"host"`
}

// Status is a point-in-time snapshot of the manager and its session.
type Status struct {
	Connected            bool           `json:"connected" msgpack:"connected"`
	SessionID            string         `json:"session_id,omitempty" msgpack:"session_id"`
	State                string         `json:"state" msgpack:"state"`
	Transport            string         `json:"transport" msgpack:"transport"`
	Host                 string         `json:"host,omitempty" msgpack:"host"`
	Port                 int            `json:"port,omitempty" msgpack:"port"`
	Player               string         `json:"player,omitempty" msgpack:"player"`
	Spectator            bool           `json:"spectator" msgpack:"spectator"`
	ControllerPort       int            `json:"controller_port" msgpack:"controller_port"`
	AvailableControllers int            `json:"available_controllers" msgpack:"available_controllers"`
	Threshold            int            `json:"threshold" msgpack:"threshold"`
	QueueDepths          []int          `json:"queue_depths" msgpack:"queue_depths"`
	RTTMillis            float64        `json:"rtt_ms" msgpack:"rtt_ms"`
	Players              []PlayerStatus `json:"players" msgpack:"players"`
}

// Status snapshots the active session, if any.
func (m *Manager) Status() Status {
	m.mu.Lock()
	s, c, cfg := m.sess, m.conn, m.cfg
	m.mu.Unlock()

	st := Status{
		State:          "idle",
		Transport:      m.opts.Net.Transport,
		ControllerPort: int(protocol.SpectatorPort),
		QueueDepths:    make([]int, protocol.PortCount),
		Players:        []PlayerStatus{},
	}
	if s == nil {
		return st
	}
	st.Connected = !c.ConnectionError()
	st.SessionID = s.ID()
	st.State = s.State().String()
	st.Host = cfg.Host
	st.Port = int(cfg.Port)
	st.Player = cfg.PlayerName
	st.Spectator = cfg.Spectator
	st.ControllerPort = int(s.ControllerPort())
	st.AvailableControllers = int(s.AvailableControllers())
	st.Threshold = s.Threshold()
	for p := range st.QueueDepths {
		st.QueueDepths[p] = s.QueueDepth(uint8(p))
	}
	st.RTTMillis = float64(s.LastRTT().Microseconds()) / 1000
	for _, p := range s.Roster() {
		st.Players = append(st.Players, PlayerStatus{Name: p.Name, Port: int(p.ControllerPort), Host: p.IsHost})
	}
	return st
}

// EncodeStatus renders st with the named codec (json, cbor, msgpack, proto)
// and returns the bytes with their content type.
func EncodeStatus(st Status, format string) ([]byte, string, error) {
	reg, err := codec.NewRegistry()
	if err != nil {
		return nil, "", err
	}
	c, err := reg.ByName(format)
	if err != nil {
		return nil, "", err
	}
	var v any = st
	if c.ContentType() == codec.ContentProto {
		// protobuf carries it as google.protobuf.Struct
		m, err := statusMap(st)
		if err != nil {
			return nil, "", err
		}
		v = m
	}
	b, err := c.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("encode status as %s: %w", format, err)
	}
	return b, c.ContentType(), nil
}

func statusMap(st Status) (map[string]any, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
