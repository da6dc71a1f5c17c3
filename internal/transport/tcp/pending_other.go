//go:build !linux

package tcp

import "net"

// pendingBytes is unsupported here; Available falls back to a short peek.
func pendingBytes(net.Conn) (int, bool) {
	return 0, false
}
