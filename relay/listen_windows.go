//go:build windows

package relay

import "net"

// listenTCP falls back to the platform default on Windows, where the
// socket API does not honour an explicit backlog the same way. The
// configured value is advisory only.
func listenTCP(addr string, _ int) (net.Listener, error) {
	return net.Listen("tcp4", addr)
}
