package handlers

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	seatws "github.com/marc-dlt/StageBookingBack/internal/websocket"
)

// AvailabilityHandler upgrades clients onto the read-only seat feed.
type AvailabilityHandler struct {
	hub *seatws.Hub
}

func NewAvailabilityHandler(hub *seatws.Hub) *AvailabilityHandler {
	return &AvailabilityHandler{hub: hub}
}

func (h *AvailabilityHandler) WebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

func (h *AvailabilityHandler) HandleWebSocket(conn *websocket.Conn) {
	client := seatws.NewClient(h.hub, conn)
	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump()
}
