package client

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/keychat/internal/chat"
	"github.com/omochice/keychat/internal/server"
)

const testKey = "s3cret"

func startServer(t *testing.T) *server.Server {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.Key = testKey
	srv := server.New(cfg, zerolog.Nop())
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	go srv.Serve()
	t.Cleanup(srv.Stop)
	return srv
}

func connect(t *testing.T, srv *server.Server, username string, websocket bool) *Client {
	t.Helper()
	c := New(Config{Address: srv.Addr(), Username: username, Key: testKey, WebSocket: websocket}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(c.Disconnect)
	return c
}

func waitCount(srv *server.Server, n int) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.ClientCount() == n {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// receive waits for a frame containing want.
func receive(t *testing.T, c *Client, want string) bool {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-c.Messages():
			if !ok {
				return false
			}
			if strings.Contains(msg, want) {
				return true
			}
		case <-timeout:
			return false
		}
	}
}

func TestNew(t *testing.T) {
	c := New(Config{Address: "127.0.0.1:8080", Username: "alice"}, zerolog.Nop())
	if c.IsConnected() {
		t.Error("New client should not be connected")
	}
	if c.State() != chat.StateHandshaking {
		t.Errorf("Expected HANDSHAKING, got %v", c.State())
	}
	if c.Username() != "alice" {
		t.Errorf("Expected alice, got %s", c.Username())
	}
}

func TestClient_Connect(t *testing.T) {
	srv := startServer(t)
	c := connect(t, srv, "alice", false)

	if !c.IsConnected() {
		t.Error("Expected client to be connected")
	}
	if !waitCount(srv, 1) {
		t.Errorf("Expected 1 client, got %d", srv.ClientCount())
	}
}

func TestClient_Connect_WrongKey(t *testing.T) {
	srv := startServer(t)
	c := New(Config{Address: srv.Addr(), Username: "mallory", Key: "guess"}, zerolog.Nop())

	err := c.Connect(context.Background())
	if !errors.Is(err, chat.ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
	if c.IsConnected() {
		t.Error("Rejected client should not be connected")
	}
	select {
	case <-c.Done():
	default:
		t.Error("Expected Done to be closed after rejection")
	}
}

func TestClient_Connect_Refused(t *testing.T) {
	c := New(Config{Address: "127.0.0.1:1", Username: "alice", Key: testKey}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := c.Connect(ctx)
	if err == nil {
		t.Fatal("Expected error")
	}
	if errors.Is(err, chat.ErrUnauthorized) {
		t.Error("Dial failure should not be reported as unauthorized")
	}
}

func TestClient_Send_NotConnected(t *testing.T) {
	c := New(Config{Address: "127.0.0.1:8080", Username: "alice"}, zerolog.Nop())
	if err := c.Send(context.Background(), "hello"); !errors.Is(err, chat.ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestClient_SendReceive(t *testing.T) {
	srv := startServer(t)
	alice := connect(t, srv, "alice", false)
	if !waitCount(srv, 1) {
		t.Fatal("alice not registered")
	}
	bob := connect(t, srv, "bob", false)
	if !waitCount(srv, 2) {
		t.Fatal("bob not registered")
	}

	if !receive(t, alice, "SYSTEM: bob has connected") {
		t.Fatal("alice did not see bob connect")
	}
	if err := alice.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !receive(t, bob, "alice: hello") {
		t.Error("bob did not receive alice's message")
	}
}

func TestClient_WebSocket(t *testing.T) {
	srv := startServer(t)
	alice := connect(t, srv, "alice", true)
	bob := connect(t, srv, "bob", false)
	if !waitCount(srv, 2) {
		t.Fatal("clients not registered")
	}

	if err := bob.Send(context.Background(), "hi alice"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !receive(t, alice, "bob: hi alice") {
		t.Error("alice did not receive bob's message")
	}
}

func TestClient_Disconnect(t *testing.T) {
	srv := startServer(t)
	alice := connect(t, srv, "alice", false)
	bob := connect(t, srv, "bob", false)
	if !waitCount(srv, 2) {
		t.Fatal("clients not registered")
	}

	alice.Disconnect()
	alice.Disconnect()

	if alice.IsConnected() {
		t.Error("Expected alice to be disconnected")
	}
	select {
	case <-alice.Done():
	case <-time.After(time.Second):
		t.Error("Expected Done to be closed")
	}
	if err := alice.Send(context.Background(), "late"); !errors.Is(err, chat.ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if !receive(t, bob, "SYSTEM: alice has disconnected") {
		t.Error("bob did not see alice disconnect")
	}
}

func TestClient_ServerStop(t *testing.T) {
	srv := startServer(t)
	c := connect(t, srv, "alice", false)

	srv.Stop()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Expected session to end when the server stops")
	}
	if c.IsConnected() {
		t.Error("Expected client to be disconnected")
	}
}

func TestClient_Connect_Twice(t *testing.T) {
	srv := startServer(t)
	c := connect(t, srv, "alice", false)
	if err := c.Connect(context.Background()); err == nil {
		t.Error("Expected error on second Connect")
	}
}

func TestClient_Connect_SilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()

	release := make(chan struct{})
	defer close(release)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		<-release
	}()

	c := New(Config{Address: ln.Addr().String(), Username: "alice", Key: testKey}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = c.Connect(ctx)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Connect returned after %v, want it bounded by the context", elapsed)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
	if c.IsConnected() {
		t.Error("Expected client to stay disconnected")
	}
	select {
	case <-c.Done():
	default:
		t.Error("Expected Done to be closed after an interrupted handshake")
	}
}
