package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coregx/wsock"
)

// pipeConn returns a (server, client) Conn pair produced by a real upgrade
// handshake against an httptest server, the same way cmd/wsock-chat wires
// connections in production. The Hub only ever holds the server side.
func pipeConn(t *testing.T) (server, client *wsock.Conn) {
	t.Helper()

	serverReady := make(chan *wsock.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := wsock.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade: %v", err)
			return
		}
		serverReady <- c
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws://" + strings.TrimPrefix(srv.URL, "http://")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, _, err := wsock.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	select {
	case server = <-serverReady:
	case <-time.After(3 * time.Second):
		t.Fatal("server never completed Upgrade")
	}

	return server, client
}

// waitForEvent allows longer than wsock's 2-second close drain: Unregister
// closes the connection and waits up to that long for the peer's close
// frame before EventLeft is emitted.
func waitForEvent(t *testing.T, h *Hub, kind EventKind) {
	t.Helper()
	select {
	case evt := <-h.Events():
		if evt.Kind != kind {
			t.Fatalf("event kind = %v, want %v", evt.Kind, kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for event kind %v", kind)
	}
}

func TestHub_RegisterAndClientCount(t *testing.T) {
	h := New()
	go h.Run()
	defer h.Close()

	server, client := pipeConn(t)
	defer client.Deinit()

	h.Register(server)
	waitForEvent(t, h, EventJoined)

	if got := h.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1", got)
	}
}

func TestHub_Unregister(t *testing.T) {
	h := New()
	go h.Run()
	defer h.Close()

	server, client := pipeConn(t)
	defer client.Deinit()

	h.Register(server)
	waitForEvent(t, h, EventJoined)

	h.Unregister(server)
	waitForEvent(t, h, EventLeft)

	if got := h.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d, want 0", got)
	}
}

func TestHub_BroadcastDeliversToAllClients(t *testing.T) {
	h := New()
	go h.Run()
	defer h.Close()

	server1, client1 := pipeConn(t)
	defer client1.Deinit()
	server2, client2 := pipeConn(t)
	defer client2.Deinit()

	h.Register(server1)
	waitForEvent(t, h, EventJoined)
	h.Register(server2)
	waitForEvent(t, h, EventJoined)

	h.Broadcast([]byte("hello everyone"))

	for _, c := range []*wsock.Conn{client1, client2} {
		msg, err := c.Receive()
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if msg.Kind != wsock.KindBinary || string(msg.Data) != "hello everyone" {
			t.Errorf("msg = %+v", msg)
		}
	}
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	h := New()
	go h.Run()

	if err := h.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close: %v, want nil", err)
	}
}

// Register/Unregister/Broadcast racing a concurrent Close must never panic
// with "send on closed channel" — the bug this guards against came from
// Close closing the input channels while a caller was mid-send on them.
func TestHub_CloseRacesWithRegisterAndBroadcast(t *testing.T) {
	h := New()
	go h.Run()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		server, client := pipeConn(t)
		defer client.Deinit()

		wg.Add(1)
		go func(server *wsock.Conn) {
			defer wg.Done()
			h.Register(server)
			h.Broadcast([]byte("racing close"))
			h.Unregister(server)
		}(server)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wg.Wait()
}

func TestHub_BroadcastJSON(t *testing.T) {
	h := New()
	go h.Run()
	defer h.Close()

	server, client := pipeConn(t)
	defer client.Deinit()

	h.Register(server)
	waitForEvent(t, h, EventJoined)

	type payload struct {
		Text string `json:"text"`
	}
	if err := h.BroadcastJSON(payload{Text: "hi"}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}

	var got payload
	if err := client.ReceiveJSON(&got); err != nil {
		t.Fatalf("ReceiveJSON: %v", err)
	}
	if got.Text != "hi" {
		t.Errorf("Text = %q, want %q", got.Text, "hi")
	}
}
