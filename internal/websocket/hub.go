package cashws

import (
	"encoding/json"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachLedgerBack/internal/logging"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
)

// Hub fans cash events out to the websocket connections of their owner.
// Run owns the client map; everything else talks to it through channels.
type Hub struct {
	clients    map[int64]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan models.CashEvent
	done       chan struct{}
	logger     zerolog.Logger
}

// Client is one websocket connection. send is never closed; the hub closes
// done when it drops the client, and both pumps stop on it.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID int64
	send   chan []byte
	done   chan struct{}
}

type Message struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	Timestamp string `json:"timestamp"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan models.CashEvent, 64),
		done:       make(chan struct{}),
		logger:     logging.Component("realtime"),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
		done:   make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			h.remove(client)
		case event := <-h.broadcast:
			h.deliver(event)
		case <-h.done:
			for _, set := range h.clients {
				for client := range set {
					close(client.done)
				}
			}
			h.clients = make(map[int64]map[*Client]struct{})
			return
		}
	}
}

// Stop ends Run and releases every registered client.
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues an event without blocking. Events are dropped when the
// queue is full.
func (h *Hub) Publish(event models.CashEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn().Str("type", string(event.Type)).Int64("user_id", event.UserID).Msg("Realtime queue full, event dropped")
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := set[client]; exists {
		delete(set, client)
		close(client.done)
	}
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
}

func (h *Hub) deliver(event models.CashEvent) {
	encoded, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(event.Type)).Msg("Failed to encode cash event")
		return
	}

	set, ok := h.clients[event.UserID]
	if !ok {
		return
	}

	for client := range set {
		select {
		case client.send <- encoded:
		default:
			delete(set, client)
			close(client.done)
			h.logger.Debug().Int64("user_id", event.UserID).Msg("Dropped slow realtime client")
		}
	}
	if len(set) == 0 {
		delete(h.clients, event.UserID)
	}
}

// ReadPump answers pings and keeps the connection registered until the
// peer goes away. Clients never push cash data through the socket.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(payload, &incoming); err != nil {
			writeMessage(c, Message{Type: "error", Content: "invalid message payload"})
			continue
		}
		if incoming.Type != "ping" {
			writeMessage(c, Message{Type: "error", Content: "unsupported message type"})
			continue
		}
		writeMessage(c, Message{Type: "pong"})
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func writeMessage(client *Client, message Message) {
	message.Timestamp = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(message)
	if err != nil {
		return
	}
	select {
	case <-client.done:
		return
	default:
	}
	select {
	case client.send <- payload:
	case <-client.done:
	default:
		client.hub.Unregister(client)
	}
}
