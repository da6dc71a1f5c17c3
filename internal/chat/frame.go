package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// FrameReader turns transport chunks into logical messages.
//
// There is no length prefix or delimiter on the wire. A message is complete
// when, after a non-empty read, the transport reports no further bytes
// immediately available. Bursts separated by a short pause can therefore be
// split into several messages, and messages sent back to back can be
// coalesced into one. WebSocket transports deliver whole data messages, so
// there the boundary is exact.
type FrameReader struct {
	conn    Conn
	pending bytes.Buffer
}

// NewFrameReader creates a FrameReader over conn.
func NewFrameReader(conn Conn) *FrameReader {
	return &FrameReader{conn: conn}
}

// Next reads until a message is complete and returns it decoded as UTF-8.
// Invalid byte sequences are replaced with U+FFFD.
// A zero-length read or end of stream returns ErrPeerClosed and discards
// anything accumulated so far.
func (r *FrameReader) Next(ctx context.Context) (string, error) {
	for {
		chunk, err := r.conn.Read(ctx)
		if err != nil {
			r.pending.Reset()
			if isClosed(err) {
				return "", ErrPeerClosed
			}
			return "", fmt.Errorf("read failed: %w", err)
		}
		if len(chunk) == 0 {
			r.pending.Reset()
			return "", ErrPeerClosed
		}

		r.pending.Write(chunk)
		if r.conn.Available() {
			continue
		}

		text := strings.ToValidUTF8(r.pending.String(), "\uFFFD")
		r.pending.Reset()
		return text, nil
	}
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, ErrPeerClosed)
}
