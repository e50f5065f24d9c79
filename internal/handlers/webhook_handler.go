package handlers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/marc-dlt/StageBookingBack/internal/services"
)

// WebhookHandler consumes the payment gateway's webhook deliveries. The
// gateway retries on non-2xx responses, so only malformed payloads get a 4xx;
// events for unknown intents are acknowledged and dropped.
type WebhookHandler struct {
	service gatewayReconciler
}

type gatewayReconciler interface {
	ReconcileFromGateway(ctx context.Context, event services.GatewayEvent) error
}

func NewWebhookHandler(service *services.PaymentService) *WebhookHandler {
	return &WebhookHandler{service: service}
}

type gatewayEventRequest struct {
	StripePaymentIntentID string           `json:"stripe_payment_intent_id"`
	GatewayStatus         string           `json:"gateway_status"`
	Amount                *decimal.Decimal `json:"amount"`
	Timestamp             string           `json:"timestamp"`
}

func (h *WebhookHandler) HandlePaymentEvent(c *fiber.Ctx) error {
	var req gatewayEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.StripePaymentIntentID) == "" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "stripe_payment_intent_id is required"})
	}

	timestamp := time.Now().UTC()
	if strings.TrimSpace(req.Timestamp) != "" {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(req.Timestamp))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).
				JSON(fiber.Map{"error": "timestamp must be a valid RFC3339 timestamp"})
		}
		timestamp = parsed
	}

	event := services.GatewayEvent{
		StripePaymentIntentID: strings.TrimSpace(req.StripePaymentIntentID),
		Status:                services.GatewayStatus(strings.ToLower(strings.TrimSpace(req.GatewayStatus))),
		Amount:                req.Amount,
		Timestamp:             timestamp,
	}

	if err := h.service.ReconcileFromGateway(c.Context(), event); err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownPaymentIntent):
			log.Printf("webhook: dropping event for unknown payment intent %s", event.StripePaymentIntentID)
			return c.JSON(fiber.Map{"status": "dropped"})
		case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidAmount):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, services.ErrInvalidTransition):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).
				JSON(fiber.Map{"error": "Failed to process gateway event"})
		}
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
