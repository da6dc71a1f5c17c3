// Package ws provides WebSocket transport implementation for the chat server.
package ws

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn adapts a server-side gobwas/ws connection to chat.Conn interface.
// Each data message is delivered as one chunk, so message boundaries are exact.
type Conn struct {
	conn    net.Conn
	rw      io.ReadWriter
	reader  *wsutil.Reader
	control wsutil.FrameHandlerFunc

	// mu serializes every frame written to conn, control replies included.
	mu sync.Mutex
}

// bufferedConn wraps a net.Conn with a bufio.Reader to preserve peeked data
type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (bc *bufferedConn) Read(p []byte) (int, error) {
	return bc.reader.Read(p)
}

// Upgrade performs the server side of the WebSocket opening handshake on a
// raw connection whose first bytes may already sit in reader.
func Upgrade(conn net.Conn, reader *bufio.Reader) (*Conn, error) {
	if reader == nil {
		reader = bufio.NewReader(conn)
	}
	rw := &bufferedConn{Conn: conn, reader: reader}
	if _, err := ws.Upgrade(rw); err != nil {
		return nil, fmt.Errorf("websocket upgrade failed: %w", err)
	}
	c := &Conn{conn: conn, rw: rw}
	c.control = wsutil.ControlFrameHandler(rw, ws.StateServerSide)
	c.reader = &wsutil.Reader{
		Source:         rw,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: c.handleControl,
	}
	return c, nil
}

// Read implements chat.Conn.
// Reads the next non-empty text or binary message. Control frames are
// answered under the write lock; a close frame is reported as io.EOF.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := c.readData()
		if err != nil {
			var closed wsutil.ClosedError
			if errors.As(err, &closed) {
				return nil, io.EOF
			}
			return nil, err
		}
		if len(data) > 0 {
			return data, nil
		}
	}
}

func (c *Conn) readData() ([]byte, error) {
	for {
		hdr, err := c.reader.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			if err := c.handleControl(hdr, c.reader); err != nil {
				return nil, err
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := c.reader.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		return io.ReadAll(c.reader)
	}
}

// handleControl replies to ping and close frames.
func (c *Conn) handleControl(hdr ws.Header, r io.Reader) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.control(hdr, r)
}

// Write implements chat.Conn.
// Writes a text message to the WebSocket connection.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return wsutil.WriteServerText(c.conn, data)
}

// Available implements chat.Conn.
func (c *Conn) Available() bool {
	return false
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	c.mu.Lock()
	_ = wsutil.WriteServerMessage(c.conn, ws.OpClose, nil)
	c.mu.Unlock()
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
