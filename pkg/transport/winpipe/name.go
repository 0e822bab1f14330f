package winpipe

import (
	"net"
	"strings"
)

const pipePrefix = `\\.\pipe\`

// PipeName maps a host:port address to the local pipe `\\.\pipe\netplay-<port>`.
// Addresses already naming a pipe are returned unchanged.
func PipeName(address string) string {
	if strings.HasPrefix(address, pipePrefix) {
		return address
	}
	if _, port, err := net.SplitHostPort(address); err == nil {
		return pipePrefix + "netplay-" + port
	}
	return pipePrefix + "netplay-" + address
}
