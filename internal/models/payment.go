package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

type Payment struct {
	ID                    int64            `json:"id"`
	EnrollmentID          int64            `json:"enrollment_id"`
	Reference             string           `json:"reference"`
	StripePaymentIntentID *string          `json:"stripe_payment_intent_id,omitempty"`
	Amount                decimal.Decimal  `json:"amount"`
	Currency              string           `json:"currency"`
	Method                PaymentMethod    `json:"method"`
	Status                PaymentStatus    `json:"status"`
	RefundedAmount        *decimal.Decimal `json:"refunded_amount,omitempty"`
	RefundedAt            *time.Time       `json:"refunded_at,omitempty"`
	PaidAt                *time.Time       `json:"paid_at,omitempty"`
	RecordedBy            *int64           `json:"recorded_by,omitempty"`
	Notes                 *string          `json:"notes,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

func ValidPaymentMethod(method PaymentMethod) bool {
	switch method {
	case PaymentMethodCash, PaymentMethodCreditCard, PaymentMethodBankTransfer:
		return true
	default:
		return false
	}
}
