// Package server wires the chat hub to a listening socket. Raw TCP and
// WebSocket clients share one port and one broadcast domain.
package server

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/omochice/keychat/internal/chat"
	"github.com/omochice/keychat/internal/transport/tcp"
	"github.com/omochice/keychat/internal/transport/ws"
)

// Config holds server parameters.
type Config struct {
	// Address to listen on, host:port.
	Address string
	// Key every client must present.
	Key string
	// ReadBufferSize is the per-read buffer of a raw TCP connection.
	ReadBufferSize int
	// QueueSize bounds each client's outbound queue.
	QueueSize int
}

// DefaultConfig returns a Config listening on 127.0.0.1:8080.
func DefaultConfig() Config {
	return Config{
		Address:        "127.0.0.1:8080",
		ReadBufferSize: tcp.DefaultReadBufferSize,
		QueueSize:      chat.DefaultQueueSize,
	}
}

// Server represents a chat server
type Server struct {
	id  string
	cfg Config
	log zerolog.Logger
	hub *chat.Hub
	tcp *tcp.Server
}

// New creates a new Server instance
func New(cfg Config, log zerolog.Logger) *Server {
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = tcp.DefaultReadBufferSize
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = chat.DefaultQueueSize
	}

	id := uuid.New().String()
	log = log.With().Str("server", id).Logger()

	s := &Server{
		id:  id,
		cfg: cfg,
		log: log,
		hub: chat.NewHub(cfg.Key, chat.WithQueueSize(cfg.QueueSize), chat.WithLogger(log)),
	}
	s.tcp = tcp.New(cfg.Address, s.handleConnection, log)
	return s
}

// Listen binds the listening socket without accepting yet.
func (s *Server) Listen() error {
	return s.tcp.Listen()
}

// Serve accepts connections until Stop is called.
func (s *Server) Serve() error {
	s.log.Info().Str("address", s.Addr()).Msg("SYSTEM: Server has started")
	err := s.tcp.Serve()
	s.log.Info().Msg("SYSTEM: Server has stopped")
	return err
}

// Start listens and serves. It blocks until Stop is called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Stop stops accepting, closes every connection and waits for handlers.
func (s *Server) Stop() {
	s.tcp.Stop()
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	return s.tcp.Addr()
}

// ID returns the instance id attached to every log line.
func (s *Server) ID() string {
	return s.id
}

// ClientCount returns the number of authenticated clients.
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

// Usernames returns authenticated usernames in connection order.
func (s *Server) Usernames() []string {
	return s.hub.Usernames()
}

// handleConnection detects the protocol of an accepted connection and hands
// it to the hub.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	log := s.log.With().Str("remote", conn.RemoteAddr().String()).Logger()

	proto, reader, err := detectProtocol(conn, s.cfg.ReadBufferSize)
	if err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			log.Debug().Err(err).Msg("failed to peek connection")
		}
		conn.Close()
		return
	}
	log.Debug().Stringer("protocol", proto).Msg("connection accepted")

	var c chat.Conn
	switch proto {
	case protocolWebSocket:
		wsConn, err := ws.Upgrade(conn, reader)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			conn.Close()
			return
		}
		c = wsConn
	default:
		c = tcp.NewConnWithReader(conn, reader, s.cfg.ReadBufferSize)
	}

	s.hub.HandleClient(ctx, s.hub.NewClient(c))
}
