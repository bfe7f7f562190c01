// Package realtime pushes change events to connected browsers.
//
// Clients open one WebSocket and subscribe to the topics they render
// ("orders", "presence", "photos", "stages", "todos", "races"). Services
// publish an event after every successful write; the hub fans it out to
// every subscriber of that topic. Delivery is ordered per topic — events
// reach each subscriber in publish order — but independent across topics.
package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakif/runclub/internal/auth"
	"github.com/sakif/runclub/internal/metrics"
)

// Event is one change notification pushed to subscribers.
type Event struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"` // e.g. "created", "removed", "updated"
	Payload any    `json:"payload,omitempty"`
}

// DisconnectHook runs when a signed-in member's socket closes. The presence
// service uses this to drop the member's entry.
type DisconnectHook func(ctx context.Context, userID string)

// subscribeMessage is the only thing clients send upward.
type subscribeMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Topic  string `json:"topic"`
}

const (
	writeWait = 10 * time.Second
	// sendBuffer bounds per-connection backlog. A client that falls this
	// far behind is dropped rather than allowed to stall everyone else.
	sendBuffer = 32
)

type conn struct {
	sock   *websocket.Conn
	userID string // empty for anonymous viewers
	send   chan Event

	mu     sync.Mutex
	topics map[string]bool
}

func (c *conn) subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topics[topic]
}

func (c *conn) setSubscribed(topic string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.topics[topic] = true
	} else {
		delete(c.topics, topic)
	}
}

// Hub tracks connections and fans events out to them.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*conn]struct{}
	hooks []DisconnectHook
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The session cookie is the access control; the socket itself
			// only carries data the REST API serves anyway.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*conn]struct{}),
	}
}

// OnDisconnect registers a hook run whenever an authenticated connection
// closes. Register before the server starts accepting connections.
func (h *Hub) OnDisconnect(hook DisconnectHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// Publish fans an event out to every subscriber of its topic. Callers that
// publish from a single goroutine per topic get per-topic ordering for
// free: the hub never reorders what it is handed.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.conns {
		if !c.subscribed(event.Topic) {
			continue
		}
		select {
		case c.send <- event:
		default:
			// Slow consumer: drop the connection, not the event stream.
			h.log.Warn("dropping slow websocket consumer", "topic", event.Topic)
			delete(h.conns, c)
			close(c.send)
			metrics.SlowConsumerDropped()
			metrics.ConnectionClosed()
		}
	}
}

// ServeHTTP upgrades the request and runs the connection until the client
// goes away. Mount behind OptionalAuth so signed-in members get their
// disconnect hooks.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	c := &conn{
		sock:   sock,
		userID: userID,
		send:   make(chan Event, sendBuffer),
		topics: make(map[string]bool),
	}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	metrics.ConnectionOpened()

	go h.writePump(c)
	h.readLoop(c)
}

// readLoop consumes subscribe/unsubscribe messages until the socket errors,
// then unregisters the connection and runs the disconnect hooks.
func (h *Hub) readLoop(c *conn) {
	defer h.drop(c)

	for {
		var msg subscribeMessage
		if err := c.sock.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Action {
		case "subscribe":
			c.setSubscribed(msg.Topic, true)
		case "unsubscribe":
			c.setSubscribed(msg.Topic, false)
		}
	}
}

func (h *Hub) writePump(c *conn) {
	defer c.sock.Close()

	for event := range c.send {
		c.sock.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.sock.WriteJSON(event); err != nil {
			return
		}
	}
	// Channel closed: the hub dropped us. Tell the client why.
	c.sock.SetWriteDeadline(time.Now().Add(writeWait))
	c.sock.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"))
}

func (h *Hub) drop(c *conn) {
	h.mu.Lock()
	hooks := h.hooks
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		close(c.send)
		metrics.ConnectionClosed()
	}
	h.mu.Unlock()

	if c.userID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, hook := range hooks {
			hook(ctx, c.userID)
		}
	}
}
