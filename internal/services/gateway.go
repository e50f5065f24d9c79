package services

import (
	"time"

	"github.com/shopspring/decimal"
)

// GatewayStatus is the payment gateway's view of a payment intent, as carried
// on webhook deliveries. The gateway retries delivery on failure, so every
// consumer of these events has to tolerate redelivery.
type GatewayStatus string

const (
	GatewayStatusAuthorized        GatewayStatus = "authorized"
	GatewayStatusCaptured          GatewayStatus = "captured"
	GatewayStatusPaymentFailed     GatewayStatus = "payment_failed"
	GatewayStatusRefunded          GatewayStatus = "refunded"
	GatewayStatusPartiallyRefunded GatewayStatus = "partially_refunded"
)

type GatewayEvent struct {
	StripePaymentIntentID string
	Status                GatewayStatus
	Amount                *decimal.Decimal
	Timestamp             time.Time
}

func ValidGatewayStatus(status GatewayStatus) bool {
	switch status {
	case GatewayStatusAuthorized,
		GatewayStatusCaptured,
		GatewayStatusPaymentFailed,
		GatewayStatusRefunded,
		GatewayStatusPartiallyRefunded:
		return true
	default:
		return false
	}
}
