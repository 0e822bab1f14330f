package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the host's default listening port.
const DefaultPort = 8888

// maxPlayerNameLen bounds the name sent in HandShake.
const maxPlayerNameLen = 64

// SessionConfig is the immutable data a client session is created with.
// The host's salt arrives later and is combined with Password at handshake.
type SessionConfig struct {
	Host       string `mapstructure:"host" json:"host"`
	Port       uint16 `mapstructure:"port" json:"port"`
	PlayerName string `mapstructure:"player_name" json:"player_name"`
	Password   string `mapstructure:"password" json:"password"`
	Spectator  bool   `mapstructure:"spectator" json:"spectator"`
}

// Validate checks the fields needed to connect.
func (s SessionConfig) Validate() error {
	if strings.TrimSpace(s.Host) == "" {
		return fmt.Errorf("session.host is required")
	}
	if s.Port == 0 {
		return fmt.Errorf("session.port is required")
	}
	if n := len(s.PlayerName); n == 0 || n > maxPlayerNameLen {
		return fmt.Errorf("session.player_name must be 1..%d bytes, got %d", maxPlayerNameLen, n)
	}
	return nil
}

// Address is host:port in the form the transports expect.
func (s SessionConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port)))
}

// Redacted returns a copy safe to log.
func (s SessionConfig) Redacted() SessionConfig {
	if s.Password != "" {
		s.Password = "***"
	}
	return s
}
