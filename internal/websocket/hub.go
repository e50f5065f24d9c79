package seatws

import (
	"encoding/json"
	"log"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
)

// Hub fans seat-availability updates out to subscribed clients. It is fed by
// the enrollment service after a successful enroll or cancel commit; clients
// never send commands, the feed is read-only.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *SeatUpdate
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

type SeatUpdate struct {
	Type           string `json:"type"`
	SessionID      int64  `json:"session_id"`
	RemainingSeats int    `json:"remaining_seats"`
	Timestamp      string `json:"timestamp"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *SeatUpdate, 64),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			if _, exists := h.clients[client]; exists {
				delete(h.clients, client)
				close(client.send)
			}
		case update := <-h.broadcast:
			h.deliver(update)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// NotifySeats satisfies services.AvailabilityNotifier. It never blocks the
// caller; if the hub is saturated the update is dropped, the next enrollment
// event carries a fresh count anyway.
func (h *Hub) NotifySeats(sessionID int64, remainingSeats int) {
	update := &SeatUpdate{
		Type:           "seat_update",
		SessionID:      sessionID,
		RemainingSeats: remainingSeats,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
	select {
	case h.broadcast <- update:
	default:
	}
}

func (h *Hub) deliver(update *SeatUpdate) {
	encoded, err := json.Marshal(update)
	if err != nil {
		log.Printf("seat hub encode update: %v", err)
		return
	}

	for client := range h.clients {
		select {
		case client.send <- encoded:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// ReadPump discards anything the client sends and returns once the
// connection closes, unregistering the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
