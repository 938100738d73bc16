// Package hub implements a multi-client broadcast dispatch loop on top of
// wsock.Conn. It is kept out of the wsock package itself because an
// application dispatch loop is an external collaborator to the WebSocket
// core, not part of it — this package is a concrete example of such a
// collaborator, wired up for the cmd/wsock-chat demo.
package hub

import (
	"encoding/json/v2"
	"sync"

	"github.com/lithammer/shortuuid/v4"

	"github.com/coregx/wsock"
)

// client pairs a connection with the correlation ID used in logs, so a
// hub operator can follow one connection's messages across broadcasts
// without guessing from connection pointers.
type client struct {
	id   string
	conn *wsock.Conn
}

// Event describes something the Hub wants a caller to observe: client
// joins/leaves and broadcast write failures. Hub has no logger of its own
// (like the wsock core, this package carries no logging dependency);
// callers subscribe to Events and log however they like.
type Event struct {
	Kind EventKind
	ID   string
	Err  error
}

// EventKind discriminates Event.
type EventKind int

const (
	EventJoined EventKind = iota
	EventLeft
	EventWriteFailed
)

// Hub manages a set of WebSocket connections and broadcasts messages to
// all of them. Registration, unregistration, and broadcast all go through
// a single event loop goroutine (Run), the same shape as the register/
// unregister/broadcast channel trio this pattern is grounded on.
type Hub struct {
	clients map[*wsock.Conn]*client

	register      chan *wsock.Conn
	unregister    chan *wsock.Conn
	broadcast     chan []byte
	broadcastText chan string

	events chan Event

	done   chan struct{}
	closed bool
	wg     sync.WaitGroup

	mu sync.RWMutex
}

// New creates a Hub. Call Run in a goroutine before registering clients.
func New() *Hub {
	return &Hub{
		clients:       make(map[*wsock.Conn]*client),
		register:      make(chan *wsock.Conn),
		unregister:    make(chan *wsock.Conn),
		broadcast:     make(chan []byte, 256),
		broadcastText: make(chan string, 256),
		events:        make(chan Event, 256),
		done:          make(chan struct{}),
	}
}

// Events returns the channel of join/leave/write-failure notifications.
// Callers should drain it (e.g. to log) for as long as the Hub runs.
func (h *Hub) Events() <-chan Event {
	return h.events
}

// Run starts the Hub's event loop; it blocks until Close is called.
func (h *Hub) Run() {
	h.wg.Add(1)
	defer h.wg.Done()

	for {
		select {
		case conn := <-h.register:
			id := shortuuid.New()
			h.mu.Lock()
			h.clients[conn] = &client{id: id, conn: conn}
			h.mu.Unlock()
			h.emit(Event{Kind: EventJoined, ID: id})

		case conn := <-h.unregister:
			h.mu.Lock()
			c, ok := h.clients[conn]
			if ok {
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			if ok {
				_ = conn.Close()
				h.emit(Event{Kind: EventLeft, ID: c.id})
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			targets := make([]*client, 0, len(h.clients))
			for _, c := range h.clients {
				targets = append(targets, c)
			}
			h.mu.RUnlock()

			for _, c := range targets {
				h.wg.Add(1)
				go func(c *client, msg []byte) {
					defer h.wg.Done()
					if err := c.conn.SendBinary(msg); err != nil {
						h.emit(Event{Kind: EventWriteFailed, ID: c.id, Err: err})
						h.Unregister(c.conn)
					}
				}(c, message)
			}

		case message := <-h.broadcastText:
			h.mu.RLock()
			targets := make([]*client, 0, len(h.clients))
			for _, c := range h.clients {
				targets = append(targets, c)
			}
			h.mu.RUnlock()

			for _, c := range targets {
				h.wg.Add(1)
				go func(c *client, msg string) {
					defer h.wg.Done()
					if err := c.conn.SendText(msg); err != nil {
						h.emit(Event{Kind: EventWriteFailed, ID: c.id, Err: err})
						h.Unregister(c.conn)
					}
				}(c, message)
			}

		case <-h.done:
			return
		}
	}
}

func (h *Hub) emit(e Event) {
	select {
	case h.events <- e:
	default:
		// Events channel full: drop rather than block the dispatch loop.
	}
}

// Register adds conn to the Hub; it will receive every subsequent
// Broadcast. No-op once the Hub is closed.
//
// register/unregister/broadcast/broadcastText are never closed by Close:
// Close only closes done, and every send here races that close through a
// select rather than a bare channel send, so a caller racing Close either
// delivers to Run before it exits or falls through the done case — it can
// never send on a channel Close has torn down.
func (h *Hub) Register(conn *wsock.Conn) {
	if h.isClosed() {
		return
	}
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister removes conn and closes it. Safe to call more than once for
// the same connection.
func (h *Hub) Unregister(conn *wsock.Conn) {
	if h.isClosed() {
		return
	}
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast queues message for delivery to every registered client; the
// sends happen asynchronously in Run. It returns once the message is queued,
// and blocks while the 256-message queue is full.
func (h *Hub) Broadcast(message []byte) {
	if h.isClosed() {
		return
	}
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// BroadcastJSON marshals v and broadcasts it as a text frame, so a
// receiver's ReceiveJSON (which requires KindText) can read it back
// directly.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if h.isClosed() {
		return nil
	}
	select {
	case h.broadcastText <- string(data):
	case <-h.done:
	}
	return nil
}

// ClientCount returns the number of currently registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// Close stops the event loop, disconnects every client, and closes the
// events channel. Safe to call more than once.
//
// register/unregister/broadcast/broadcastText are deliberately never
// closed here: they are shared with callers that may still be in flight
// (Register/Unregister/Broadcast/BroadcastJSON), and closing a channel a
// concurrent sender might write to is the send-on-closed-channel panic
// this is built to avoid. done is the only channel Close closes directly;
// wg.Wait, by construction, only returns once Run and every per-client
// broadcast goroutine it spawned — the only other writers of events — have
// exited, so closing events afterward is race-free.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	close(h.done)
	h.wg.Wait()

	h.mu.Lock()
	for conn := range h.clients {
		_ = conn.Close()
	}
	h.clients = make(map[*wsock.Conn]*client)
	h.mu.Unlock()

	close(h.events)

	return nil
}
