package http

import (
	"sync"

	"github.com/gorilla/websocket"
)

// client is one connected socket with its outbound queue. The writer
// goroutine in ServeWS is the only reader of send; pushes and shutdown
// serialize on mu so a broadcast racing the teardown never hits a closed
// channel.
type client struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
	send   chan outboundMessage[any]
}

func (c *client) push(msg outboundMessage[any]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		// Slow client: drop the oldest queued frame rather than block the
		// room's event flow.
		select {
		case <-c.send:
		default:
		}
		c.send <- msg
	}
}

// shutdown closes the outbound queue exactly once. Later pushes no-op.
func (c *client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// hub tracks which clients sit in which room so engine results can be fanned
// out. It knows nothing about game state.
type hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func newHub() *hub {
	return &hub{rooms: make(map[string]map[*client]struct{})}
}

func (h *hub) add(roomCode string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[roomCode]
	if !ok {
		clients = make(map[*client]struct{})
		h.rooms[roomCode] = clients
	}
	clients[c] = struct{}{}
}

func (h *hub) remove(roomCode string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[roomCode]
	if !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.rooms, roomCode)
	}
}

func (h *hub) dropRoom(roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, roomCode)
}

func (h *hub) broadcast(roomCode string, msg outboundMessage[any]) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomCode] {
		c.push(msg)
	}
}
