package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"form-analytics-server/metrics"
	"form-analytics-server/models"
)

var ErrHubStopped = errors.New("hub stopped")

// Client is one subscribed dashboard session.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// Message is the frame pushed to subscribers.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEventMessage wraps a stored-response event in a new_response frame.
func NewEventMessage(event models.ResponseEvent) *Message {
	return &Message{
		Type:      models.EventNewResponse,
		Data:      event,
		Timestamp: time.Now().UTC(),
	}
}

// Hub fans messages out to every member of one named group. Membership
// changes and broadcasts are serialised through the Run loop.
type Hub struct {
	Group string

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu  sync.RWMutex
	log *logrus.Entry
}

func NewHub(group string, log *logrus.Entry) *Hub {
	return &Hub{
		Group:      group,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log.WithField("group", group),
	}
}

// Run processes joins, leaves and broadcasts until ctx is cancelled. On exit
// every remaining member's send channel is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if !h.clients[client] {
				h.clients[client] = true
				metrics.ConnectedDashboards.Inc()
				h.log.WithField("client_id", client.ID).Info("🔌 Dashboard joined")
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case data := <-h.broadcast:
			h.broadcastMessage(data)

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.remove(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Join adds a client. Joining twice is a no-op.
func (h *Hub) Join(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Leave removes a client. Leaving without being a member is a no-op.
func (h *Hub) Leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues msg for every current member. Members that connect later
// never see it.
func (h *Hub) Broadcast(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Members returns the number of subscribed clients.
func (h *Hub) Members() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcastMessage delivers without blocking; a member whose buffer is full
// is dropped.
func (h *Hub) broadcastMessage(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.log.WithField("client_id", client.ID).Warn("⚠️ Dashboard send buffer full, disconnecting")
			metrics.BroadcastsDropped.WithLabelValues("slow_client").Inc()
			h.remove(client)
		}
	}
	metrics.BroadcastsSent.Inc()
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	close(client.send)
	metrics.ConnectedDashboards.Dec()
	h.log.WithField("client_id", client.ID).Info("🔌 Dashboard left")
}
