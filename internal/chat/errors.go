package chat

import "errors"

var (
	// ErrUnauthorized is returned when credentials do not match the shared key
	// or the username is empty.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrHandshake is returned when the handshake frame cannot be read or decoded.
	ErrHandshake = errors.New("handshake failed")

	// ErrPeerClosed is returned when the peer ended the stream.
	ErrPeerClosed = errors.New("peer closed connection")

	// ErrNotConnected is returned when sending without an authenticated session.
	ErrNotConnected = errors.New("not connected to server")

	// ErrAlreadyAuthenticated is returned on a second handshake for one connection.
	ErrAlreadyAuthenticated = errors.New("connection already authenticated")

	// ErrQueueFull is returned when a peer's outbound queue cannot take more data.
	ErrQueueFull = errors.New("outbound queue full")

	// ErrConnClosed is returned when sending to a connection that has been closed.
	ErrConnClosed = errors.New("connection closed")
)
