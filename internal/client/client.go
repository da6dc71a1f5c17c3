// Package client implements the chat client: dial, handshake, receive loop
// and ordered sends over TCP or WebSocket.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/omochice/keychat/internal/chat"
	"github.com/omochice/keychat/internal/client/ws"
	"github.com/omochice/keychat/internal/transport/tcp"
	"github.com/omochice/keychat/pkg/protocol"
)

// Config holds connection parameters.
type Config struct {
	// Address is the server host:port.
	Address string
	// Username presented in the handshake.
	Username string
	// Key is the server's shared key.
	Key string
	// WebSocket dials ws://Address/ instead of a raw TCP connection.
	WebSocket bool
}

// Client represents a chat client with a single connection to the server.
type Client struct {
	cfg Config
	log zerolog.Logger

	mu    sync.RWMutex
	conn  chat.Conn
	state chat.State

	sendMu   sync.Mutex
	messages chan string
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// New creates a new Client instance
func New(cfg Config, log zerolog.Logger) *Client {
	return &Client{
		cfg:      cfg,
		log:      log,
		state:    chat.StateHandshaking,
		messages: make(chan string, 64),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Connect dials the server, authenticates and starts receiving messages.
// ctx bounds the dial and the handshake only.
// Any handshake failure, including the server closing the connection,
// is reported as chat.ErrUnauthorized; a ctx that ends first wins instead.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != chat.StateHandshaking || c.conn != nil {
		c.mu.Unlock()
		return errors.New("client already used")
	}
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	frames := chat.NewFrameReader(conn)
	// Reads do not observe ctx once blocked; closing the connection unblocks them.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	err = c.handshake(ctx, conn, frames)
	if !stop() {
		err = fmt.Errorf("handshake interrupted: %w", ctx.Err())
	}
	if err != nil {
		conn.Close()
		c.setState(chat.StateClosed)
		close(c.messages)
		close(c.done)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.state = chat.StateAuthenticated
	c.mu.Unlock()

	c.wg.Add(1)
	go c.receiveMessages(context.WithoutCancel(ctx), conn, frames)
	return nil
}

// Disconnect closes the connection and waits for the receive loop to stop.
func (c *Client) Disconnect() {
	c.quitOnce.Do(func() { close(c.quit) })

	c.mu.Lock()
	conn := c.conn
	c.state = chat.StateClosed
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}

	c.wg.Wait()
}

// IsConnected returns whether the client is authenticated and connected.
func (c *Client) IsConnected() bool {
	return c.State() == chat.StateAuthenticated
}

// State returns the lifecycle state of the connection.
func (c *Client) State() chat.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Username returns the name peers see, truncated the way the server stores it.
func (c *Client) Username() string {
	return protocol.TruncateUsername(c.cfg.Username)
}

// Messages returns the channel of frames received from the server.
// It is closed when the session ends.
func (c *Client) Messages() <-chan string {
	return c.messages
}

// Done is closed when the session has ended for any reason.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Send sends one line to the server. Sends are written one at a time in
// the order they were submitted. Empty text is ignored.
func (c *Client) Send(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()
	if conn == nil || state != chat.StateAuthenticated {
		return chat.ErrNotConnected
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := conn.Write(ctx, []byte(text)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (c *Client) dial(ctx context.Context) (chat.Conn, error) {
	if c.cfg.WebSocket {
		return ws.Dial(ctx, "ws://"+c.cfg.Address+"/")
	}
	return tcp.Dial(ctx, c.cfg.Address)
}

// handshake sends the credentials frame and waits for exactly one reply.
func (c *Client) handshake(ctx context.Context, conn chat.Conn, frames *chat.FrameReader) error {
	creds := protocol.Credentials{Username: c.cfg.Username, Key: c.cfg.Key}
	data, err := creds.Encode()
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, data); err != nil {
		return fmt.Errorf("failed to send credentials: %w", err)
	}

	frame, err := frames.Next(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", chat.ErrUnauthorized, err)
	}
	var status protocol.Status
	if err := status.Decode([]byte(frame)); err != nil {
		return fmt.Errorf("%w: %w", chat.ErrUnauthorized, err)
	}
	if !status.Authorized() {
		return fmt.Errorf("%w: status %q", chat.ErrUnauthorized, status.Status)
	}
	return nil
}

// receiveMessages continuously receives frames from the server
func (c *Client) receiveMessages(ctx context.Context, conn chat.Conn, frames *chat.FrameReader) {
	defer c.wg.Done()
	defer close(c.done)
	defer close(c.messages)
	defer func() {
		c.setState(chat.StateClosed)
		conn.Close()
	}()

	for {
		text, err := frames.Next(ctx)
		if err != nil {
			select {
			case <-c.quit:
			default:
				if !errors.Is(err, chat.ErrPeerClosed) {
					c.log.Error().Err(err).Msg("error reading from server")
				}
			}
			return
		}

		select {
		case c.messages <- text:
		case <-c.quit:
			return
		}
	}
}

func (c *Client) setState(s chat.State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
