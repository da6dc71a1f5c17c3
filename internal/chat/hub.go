package chat

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/omochice/keychat/pkg/protocol"
)

// DefaultQueueSize is the outbound queue length of each connection.
const DefaultQueueSize = 64

// Hub manages all authenticated clients and handles broadcast.
// Both TCP and WebSocket connections share a single Hub instance.
type Hub struct {
	key       string
	queueSize int
	log       zerolog.Logger
	nextID    atomic.Uint64

	clients map[uint64]*Client
	mu      sync.RWMutex
}

// HubOption configures a Hub.
type HubOption func(h *Hub)

// WithQueueSize overrides DefaultQueueSize. Non-positive values are ignored.
func WithQueueSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithLogger sets the logger used for chat lines and connection errors.
func WithLogger(log zerolog.Logger) HubOption {
	return func(h *Hub) {
		h.log = log
	}
}

// NewHub creates a Hub that admits clients presenting key.
func NewHub(key string, options ...HubOption) *Hub {
	h := &Hub{
		key:       key,
		queueSize: DefaultQueueSize,
		log:       zerolog.Nop(),
		clients:   make(map[uint64]*Client),
	}
	for _, option := range options {
		if option != nil {
			option(h)
		}
	}
	return h
}

// NewClient allocates a Client with the next connection id.
// Ids start at zero and are never reused.
func (h *Hub) NewClient(conn Conn) *Client {
	return newClient(h.nextID.Add(1)-1, conn, h.queueSize)
}

// Register adds an authenticated client to the hub.
func (h *Hub) Register(client *Client) bool {
	if client.State() != StateAuthenticated {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.id]; ok {
		return false
	}
	h.clients[client.id] = client
	return true
}

// Unregister removes a client from the hub and reports whether it was present.
func (h *Hub) Unregister(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.id]; !ok {
		return false
	}
	delete(h.clients, client.id)
	return true
}

// ClientCount returns number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Snapshot returns the registered clients ordered by id.
func (h *Hub) Snapshot() []*Client {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	return clients
}

// Usernames returns the usernames of registered clients ordered by id.
func (h *Hub) Usernames() []string {
	snapshot := h.Snapshot()
	names := make([]string, 0, len(snapshot))
	for _, c := range snapshot {
		names = append(names, c.Username())
	}
	return names
}

// Broadcast queues text for every registered, open client except exclude.
// It returns how many clients accepted the message. A full or closed queue
// is logged and skipped; it never unregisters the peer.
func (h *Hub) Broadcast(text string, exclude uint64) int {
	data := []byte(text)
	delivered := 0
	for _, c := range h.Snapshot() {
		if c.id == exclude || c.State() != StateAuthenticated {
			continue
		}
		if err := c.Send(data); err != nil {
			h.log.Warn().Err(err).Uint64("id", c.id).Msg("broadcast skipped")
			continue
		}
		delivered++
	}
	return delivered
}

// Authenticate validates a handshake frame and returns the username to store.
func (h *Hub) Authenticate(frame string) (string, error) {
	var creds protocol.Credentials
	if err := creds.Decode([]byte(frame)); err != nil {
		return "", fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if creds.Username == "" {
		return "", ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(creds.Key), []byte(h.key)) != 1 {
		return "", ErrUnauthorized
	}
	return protocol.TruncateUsername(creds.Username), nil
}

// HandleClient runs the handshake and the message loop of one client and
// tears it down afterwards. It returns when the connection is closed.
func (h *Hub) HandleClient(ctx context.Context, client *Client) {
	log := h.log.With().Uint64("id", client.id).Str("remote", client.RemoteAddr()).Logger()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		client.WriteLoop(ctx, log)
	}()
	defer wg.Wait()

	if err := h.handshake(ctx, client); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			log.Warn().Msg("rejected credentials")
		} else {
			log.Error().Err(err).Msg("handshake failed")
		}
		h.closeClient(client, log)
		return
	}

	joined := protocol.Message{Type: protocol.MessageTypeJoin, Sender: client.Username()}.String()
	h.log.Info().Msg(joined)
	h.Broadcast(joined, client.id)

	h.readLoop(ctx, client, log)

	h.closeClient(client, log)
	if h.Unregister(client) {
		left := protocol.Message{Type: protocol.MessageTypeLeave, Sender: client.Username()}.String()
		h.log.Info().Msg(left)
		h.Broadcast(left, client.id)
	}
}

// handshake reads exactly one frame, validates it and, on success, queues the
// status reply and registers the client. The reply is queued before the client
// becomes visible to Broadcast so it is always the first frame the peer gets.
func (h *Hub) handshake(ctx context.Context, client *Client) error {
	frame, err := client.frames.Next(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	username, err := h.Authenticate(frame)
	if err != nil {
		return err
	}
	if err := client.authenticate(username); err != nil {
		return err
	}

	reply, err := protocol.Status{Status: protocol.StatusAuthorized}.Encode()
	if err != nil {
		return err
	}
	if err := client.Send(reply); err != nil {
		return err
	}
	if !h.Register(client) {
		return fmt.Errorf("%w: client %d already registered", ErrHandshake, client.id)
	}
	return nil
}

func (h *Hub) readLoop(ctx context.Context, client *Client, log zerolog.Logger) {
	for {
		text, err := client.frames.Next(ctx)
		if err != nil {
			if !errors.Is(err, ErrPeerClosed) && ctx.Err() == nil {
				log.Error().Err(err).Msg("read failed")
			}
			return
		}

		line := protocol.Message{Type: protocol.MessageTypeText, Sender: client.Username(), Content: text}.String()
		h.log.Info().Msg(line)
		h.Broadcast(line, client.id)
	}
}

func (h *Hub) closeClient(client *Client, log zerolog.Logger) {
	if err := client.close(); err != nil {
		log.Debug().Err(err).Msg("close failed")
	}
}
