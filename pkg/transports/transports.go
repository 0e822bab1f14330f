// Package transports builds carriers by kind name.
package transports

import (
	"strings"

	"netplay/pkg/transport"
	"netplay/pkg/transport/mem"
	tquic "netplay/pkg/transport/quic"
	ttcp "netplay/pkg/transport/tcp"
)

// sharedMem lets every in-process dialer reach every in-process listener.
var sharedMem = mem.New()

// NewByKind returns the carrier for kind. Aliases follow the config file.
func NewByKind(kind string) (transport.Transport, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "tcp":
		return ttcp.New(), nil
	case "quic":
		tr, err := tquic.New()
		if err != nil {
			return nil, err
		}
		return tr, nil
	case "mem", "inproc":
		return sharedMem, nil
	case "winpipe", "pipe":
		return newWinPipeTransport()
	default:
		return nil, ErrUnknownKind(kind)
	}
}

// ErrUnknownKind is returned for transport names NewByKind does not know.
type ErrUnknownKind string

func (e ErrUnknownKind) Error() string { return "unknown transport kind: " + string(e) }
