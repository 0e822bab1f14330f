package config

import (
	"fmt"
	"strings"
	"time"
)

// NetConfig contains transport selection and timing options.
type NetConfig struct {
	// Transport kind: tcp, quic, mem, winpipe
	Transport        string `mapstructure:"transport" json:"transport" jsonschema:"enum=tcp,enum=quic,enum=mem,enum=winpipe"`
	ConnectTimeoutMS int    `mapstructure:"connect_timeout_ms" json:"connect_timeout_ms"`
	PollIntervalMS   int    `mapstructure:"poll_interval_ms" json:"poll_interval_ms"`
	PingIntervalMS   int    `mapstructure:"ping_interval_ms" json:"ping_interval_ms"`
	InputIntervalMS  int    `mapstructure:"input_interval_ms" json:"input_interval_ms"`
	SendRetries      int    `mapstructure:"send_retries" json:"send_retries"`
	SendBackoffMS    int    `mapstructure:"send_backoff_ms" json:"send_backoff_ms"`
}

func (n *NetConfig) normalize() error {
	n.Transport = strings.ToLower(strings.TrimSpace(n.Transport))
	if n.Transport == "" {
		n.Transport = "tcp"
	}
	for name, v := range map[string]int{
		"net.connect_timeout_ms": n.ConnectTimeoutMS,
		"net.poll_interval_ms":   n.PollIntervalMS,
		"net.ping_interval_ms":   n.PingIntervalMS,
		"net.input_interval_ms":  n.InputIntervalMS,
		"net.send_retries":       n.SendRetries,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if n.SendBackoffMS < 0 {
		return fmt.Errorf("net.send_backoff_ms must not be negative, got %d", n.SendBackoffMS)
	}
	return nil
}

func (n NetConfig) ConnectTimeout() time.Duration { return ms(n.ConnectTimeoutMS) }
func (n NetConfig) PollInterval() time.Duration   { return ms(n.PollIntervalMS) }
func (n NetConfig) PingInterval() time.Duration   { return ms(n.PingIntervalMS) }
func (n NetConfig) InputInterval() time.Duration  { return ms(n.InputIntervalMS) }
func (n NetConfig) SendBackoff() time.Duration    { return ms(n.SendBackoffMS) }
