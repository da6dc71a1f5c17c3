// Package tcp provides TCP transport implementation for the chat server and client.
package tcp

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"
)

// DefaultReadBufferSize is the largest chunk returned by a single Read.
const DefaultReadBufferSize = 8192

// probeWindow bounds how long Available waits for more bytes on connections
// that cannot report their receive queue length.
const probeWindow = time.Millisecond

// Conn adapts net.Conn to chat.Conn interface.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
	buf    []byte
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn) *Conn {
	return NewConnWithReader(conn, bufio.NewReader(conn), DefaultReadBufferSize)
}

// NewConnWithReader wraps a net.Conn whose first bytes were already peeked into reader.
func NewConnWithReader(conn net.Conn, reader *bufio.Reader, bufSize int) *Conn {
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}
	return &Conn{
		conn:   conn,
		reader: reader,
		buf:    make([]byte, bufSize),
	}
}

// Dial connects to address over TCP.
func Dial(ctx context.Context, address string) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return NewConn(conn), nil
}

// Read implements chat.Conn.
// Reads available bytes from the TCP connection.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := c.reader.Read(c.buf)
	if n > 0 {
		data := make([]byte, n)
		copy(data, c.buf[:n])
		return data, nil
	}
	return nil, err
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	_, err := c.conn.Write(data)
	return err
}

// Available implements chat.Conn.
// It asks the kernel for the receive queue length where supported and
// otherwise peeks with a short deadline.
func (c *Conn) Available() bool {
	if c.reader.Buffered() > 0 {
		return true
	}
	if n, ok := pendingBytes(c.conn); ok {
		return n > 0
	}
	return c.probe()
}

func (c *Conn) probe() bool {
	if err := c.conn.SetReadDeadline(time.Now().Add(probeWindow)); err != nil {
		return false
	}
	_, err := c.reader.Peek(1)
	_ = c.conn.SetReadDeadline(time.Time{})
	return err == nil
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
