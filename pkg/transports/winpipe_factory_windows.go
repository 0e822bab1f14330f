//go:build windows

package transports

import (
	"netplay/pkg/transport"
	"netplay/pkg/transport/winpipe"
)

func newWinPipeTransport() (transport.Transport, error) { return winpipe.New(), nil }
