package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/marc-dlt/StageBookingBack/internal/models"
	"github.com/marc-dlt/StageBookingBack/internal/services"
)

type PaymentHandler struct {
	service paymentApplicationService
}

type paymentApplicationService interface {
	CreatePayment(ctx context.Context, input services.CreatePaymentInput) (*models.Payment, error)
	MarkCompleted(ctx context.Context, paymentID int64, paidAt time.Time, recordedBy *int64) (*models.Payment, error)
	MarkFailed(ctx context.Context, paymentID int64, reason *string) (*models.Payment, error)
	Refund(ctx context.Context, paymentID int64, refundedAmount decimal.Decimal, refundedAt time.Time) (*models.Payment, error)
	GetPayment(ctx context.Context, paymentID int64) (*models.Payment, error)
	ListForEnrollment(ctx context.Context, enrollmentID int64) ([]models.Payment, error)
}

func NewPaymentHandler(service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

type createPaymentRequest struct {
	EnrollmentID          int64           `json:"enrollment_id" validate:"required,min=1"`
	Amount                decimal.Decimal `json:"amount" validate:"required"`
	Currency              string          `json:"currency" validate:"required,len=3"`
	Method                string          `json:"method" validate:"required"`
	Reference             string          `json:"reference"`
	StripePaymentIntentID *string         `json:"stripe_payment_intent_id"`
	Notes                 *string         `json:"notes"`
}

type markCompletedRequest struct {
	PaidAt *string `json:"paid_at"`
}

type markFailedRequest struct {
	Reason *string `json:"reason"`
}

type refundRequest struct {
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	RefundedAt *string         `json:"refunded_at"`
}

func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	var req createPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var recordedBy *int64
	if adminID, err := parseActorID(c); err == nil {
		recordedBy = &adminID
	}

	payment, err := h.service.CreatePayment(c.Context(), services.CreatePaymentInput{
		EnrollmentID:          req.EnrollmentID,
		Amount:                req.Amount,
		Currency:              req.Currency,
		Method:                models.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.Method))),
		Reference:             req.Reference,
		StripePaymentIntentID: req.StripePaymentIntentID,
		RecordedBy:            recordedBy,
		Notes:                 req.Notes,
	})
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"payment": payment})
}

func (h *PaymentHandler) MarkCompleted(c *fiber.Ctx) error {
	paymentID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || paymentID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payment id"})
	}

	var req markCompletedRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	paidAt := time.Now().UTC()
	if req.PaidAt != nil {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.PaidAt))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).
				JSON(fiber.Map{"error": "paid_at must be a valid RFC3339 timestamp"})
		}
		paidAt = parsed
	}

	var recordedBy *int64
	if adminID, err := parseActorID(c); err == nil {
		recordedBy = &adminID
	}

	payment, err := h.service.MarkCompleted(c.Context(), paymentID, paidAt, recordedBy)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.JSON(fiber.Map{"payment": payment})
}

func (h *PaymentHandler) MarkFailed(c *fiber.Ctx) error {
	paymentID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || paymentID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payment id"})
	}

	var req markFailedRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	payment, err := h.service.MarkFailed(c.Context(), paymentID, req.Reason)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.JSON(fiber.Map{"payment": payment})
}

func (h *PaymentHandler) Refund(c *fiber.Ctx) error {
	paymentID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || paymentID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payment id"})
	}

	var req refundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	refundedAt := time.Now().UTC()
	if req.RefundedAt != nil {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.RefundedAt))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).
				JSON(fiber.Map{"error": "refunded_at must be a valid RFC3339 timestamp"})
		}
		refundedAt = parsed
	}

	payment, err := h.service.Refund(c.Context(), paymentID, req.Amount, refundedAt)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.JSON(fiber.Map{"payment": payment})
}

func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	paymentID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || paymentID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payment id"})
	}

	payment, err := h.service.GetPayment(c.Context(), paymentID)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.JSON(fiber.Map{"payment": payment})
}

func (h *PaymentHandler) ListForEnrollment(c *fiber.Ctx) error {
	enrollmentID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || enrollmentID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid enrollment id"})
	}

	payments, err := h.service.ListForEnrollment(c.Context(), enrollmentID)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.JSON(fiber.Map{"payments": payments})
}

func mapPaymentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidAmount):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Amount is invalid"})
	case errors.Is(err, services.ErrInvalidTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Payment reference or intent already exists"})
	case errors.Is(err, services.ErrEnrollmentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Enrollment not found"})
	case errors.Is(err, services.ErrPaymentNotFound), errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payment not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process payment request"})
	}
}
