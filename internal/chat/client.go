package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// State is the position of a connection in its lifecycle.
type State int

const (
	StateHandshaking State = iota
	StateAuthenticated
	StateClosed
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "HANDSHAKING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Client represents one connected peer with a transport-agnostic connection.
// The connection is owned by the Client; the Hub only keeps references to it.
type Client struct {
	id     uint64
	conn   Conn
	frames *FrameReader

	mu       sync.RWMutex
	username string
	state    State
	outgoing chan []byte
	drained  bool
}

func newClient(id uint64, conn Conn, queueSize int) *Client {
	return &Client{
		id:       id,
		conn:     conn,
		frames:   NewFrameReader(conn),
		state:    StateHandshaking,
		outgoing: make(chan []byte, queueSize),
	}
}

// ID returns the process-unique connection id.
func (c *Client) ID() uint64 {
	return c.id
}

// Username returns the authenticated username, or "" before authentication.
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// RemoteAddr returns the peer address.
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr()
}

// Send queues data for the write loop without blocking.
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.drained {
		return ErrConnClosed
	}
	select {
	case c.outgoing <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// WriteLoop writes queued data to the connection until the client is closed.
// A failed write is logged and the loop keeps draining the queue.
func (c *Client) WriteLoop(ctx context.Context, log zerolog.Logger) {
	for data := range c.outgoing {
		if err := c.conn.Write(ctx, data); err != nil {
			if isClosed(err) {
				log.Debug().Err(err).Msg("write to closed connection")
				continue
			}
			log.Error().Err(err).Msg("write failed")
		}
	}
}

// authenticate moves the client from Handshaking to Authenticated.
func (c *Client) authenticate(username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateHandshaking:
	case StateAuthenticated:
		return ErrAlreadyAuthenticated
	default:
		return ErrConnClosed
	}
	if username == "" {
		return ErrUnauthorized
	}
	c.username = username
	c.state = StateAuthenticated
	return nil
}

// close closes the connection and stops the write loop. Safe to call repeatedly.
func (c *Client) close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	c.drained = true
	close(c.outgoing)
	c.mu.Unlock()

	if err := c.conn.Close(); err != nil && !errors.Is(err, ErrConnClosed) && !isClosed(err) {
		return err
	}
	return nil
}
