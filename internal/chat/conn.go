// Package chat provides the connection protocol engine shared by all transports:
// frame accumulation, the authentication handshake, the message loop and the
// broadcast fan-out.
package chat

import "context"

// Conn abstracts a bidirectional transport channel for both TCP and WebSocket.
// This interface isolates transport details from chat logic.
type Conn interface {
	// Read blocks until at least one byte is available and returns the chunk.
	// Returns io.EOF when the peer has closed the connection.
	Read(ctx context.Context) ([]byte, error)

	// Write sends data to the peer. It is safe for concurrent use.
	Write(ctx context.Context, data []byte) error

	// Available reports whether more bytes can be read right now without blocking.
	Available() bool

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
