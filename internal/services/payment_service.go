package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/marc-dlt/StageBookingBack/internal/models"
	"github.com/marc-dlt/StageBookingBack/internal/repository"
	"github.com/marc-dlt/StageBookingBack/pkg/utils"
)

var (
	ErrInvalidTransition    = errors.New("invalid payment transition")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrUnknownPaymentIntent = errors.New("unknown payment intent")
	ErrPaymentNotFound      = errors.New("payment not found")
)

type CreatePaymentInput struct {
	EnrollmentID          int64
	Amount                decimal.Decimal
	Currency              string
	Method                models.PaymentMethod
	Reference             string
	StripePaymentIntentID *string
	RecordedBy            *int64
	Notes                 *string
}

// PaymentService owns the monetary lifecycle of an enrollment. It is the only
// writer of session_users.is_paid; enrollment code never touches that flag.
type PaymentService struct {
	db             *pgxpool.Pool
	paymentRepo    *repository.PaymentRepository
	enrollmentRepo *repository.EnrollmentRepository
	sessionRepo    *repository.SessionRepository
}

func NewPaymentService(
	db *pgxpool.Pool,
	paymentRepo *repository.PaymentRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	sessionRepo *repository.SessionRepository,
) *PaymentService {
	return &PaymentService{
		db:             db,
		paymentRepo:    paymentRepo,
		enrollmentRepo: enrollmentRepo,
		sessionRepo:    sessionRepo,
	}
}

// CreatePayment opens a PENDING payment against an enrollment. It never sets
// is_paid; only a completed transition does that.
func (s *PaymentService) CreatePayment(
	ctx context.Context,
	input CreatePaymentInput,
) (*models.Payment, error) {
	if input.EnrollmentID <= 0 {
		return nil, ErrInvalidInput
	}
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !models.ValidPaymentMethod(input.Method) {
		return nil, ErrInvalidInput
	}

	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		reference = utils.NewPaymentReference()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txEnrollmentRepo := repository.NewEnrollmentRepository(tx)
	txPaymentRepo := repository.NewPaymentRepository(tx)
	txSessionRepo := repository.NewSessionRepository(tx)

	enrollment, err := txEnrollmentRepo.GetByID(ctx, input.EnrollmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, err
	}

	session, err := txSessionRepo.GetByID(ctx, enrollment.SessionID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(input.Currency), session.Currency) {
		return nil, ErrInvalidInput
	}

	payment, err := txPaymentRepo.Create(ctx, repository.CreatePaymentInput{
		EnrollmentID:          input.EnrollmentID,
		Reference:             reference,
		StripePaymentIntentID: input.StripePaymentIntentID,
		Amount:                input.Amount,
		Currency:              session.Currency,
		Method:                input.Method,
		RecordedBy:            input.RecordedBy,
		Notes:                 input.Notes,
	})
	if err != nil {
		if repository.IsUniqueViolation(err, "") {
			return nil, ErrConflict
		}
		return nil, err
	}

	if input.StripePaymentIntentID != nil {
		if _, err := txEnrollmentRepo.SetPaymentIntentID(ctx, enrollment.ID, *input.StripePaymentIntentID); err != nil {
			if repository.IsUniqueViolation(err, "") {
				return nil, ErrConflict
			}
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return payment, nil
}

// MarkCompleted moves a PENDING payment to COMPLETED and flips the owning
// enrollment to paid. Any other starting status is ErrInvalidTransition.
func (s *PaymentService) MarkCompleted(
	ctx context.Context,
	paymentID int64,
	paidAt time.Time,
	recordedBy *int64,
) (*models.Payment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txPaymentRepo := repository.NewPaymentRepository(tx)
	txEnrollmentRepo := repository.NewEnrollmentRepository(tx)

	if _, err := s.lockPayment(ctx, txPaymentRepo, paymentID); err != nil {
		return nil, err
	}

	payment, err := txPaymentRepo.MarkCompletedIfPending(ctx, paymentID, paidAt.UTC(), recordedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	if _, err := txEnrollmentRepo.SetPaid(ctx, payment.EnrollmentID, true); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return payment, nil
}

// MarkFailed is terminal and leaves is_paid alone (it was never true).
func (s *PaymentService) MarkFailed(
	ctx context.Context,
	paymentID int64,
	reason *string,
) (*models.Payment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txPaymentRepo := repository.NewPaymentRepository(tx)

	if _, err := s.lockPayment(ctx, txPaymentRepo, paymentID); err != nil {
		return nil, err
	}

	payment, err := txPaymentRepo.MarkFailedIfPending(ctx, paymentID, reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return payment, nil
}

// Refund moves a COMPLETED payment to REFUNDED. A full refund flips the
// enrollment back to unpaid; a partial refund leaves it paid, since the seat
// was paid for in full intent terms.
func (s *PaymentService) Refund(
	ctx context.Context,
	paymentID int64,
	refundedAmount decimal.Decimal,
	refundedAt time.Time,
) (*models.Payment, error) {
	if !refundedAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txPaymentRepo := repository.NewPaymentRepository(tx)
	txEnrollmentRepo := repository.NewEnrollmentRepository(tx)

	current, err := s.lockPayment(ctx, txPaymentRepo, paymentID)
	if err != nil {
		return nil, err
	}
	if refundedAmount.GreaterThan(current.Amount) {
		return nil, ErrInvalidAmount
	}

	payment, err := txPaymentRepo.RefundIfCompleted(ctx, paymentID, refundedAmount, refundedAt.UTC())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	if refundedAmount.Equal(payment.Amount) {
		if _, err := txEnrollmentRepo.SetPaid(ctx, payment.EnrollmentID, false); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return payment, nil
}

// ReconcileFromGateway applies an asynchronous gateway event onto the local
// state machine. Redelivered events whose target state is already satisfied
// are no-ops; unknown intent ids are ErrUnknownPaymentIntent, to be logged
// and dropped by the webhook handler (the gateway redelivers).
func (s *PaymentService) ReconcileFromGateway(ctx context.Context, event GatewayEvent) error {
	intentID := strings.TrimSpace(event.StripePaymentIntentID)
	if intentID == "" || !ValidGatewayStatus(event.Status) {
		return ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txPaymentRepo := repository.NewPaymentRepository(tx)
	txEnrollmentRepo := repository.NewEnrollmentRepository(tx)

	payment, err := txPaymentRepo.GetByStripeIntentIDForUpdate(ctx, intentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUnknownPaymentIntent
		}
		return err
	}

	switch event.Status {
	case GatewayStatusAuthorized, GatewayStatusCaptured:
		if payment.Status == models.PaymentStatusCompleted {
			return tx.Commit(ctx)
		}
		completed, err := txPaymentRepo.MarkCompletedIfPending(ctx, payment.ID, event.Timestamp.UTC(), nil)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrInvalidTransition
			}
			return err
		}
		if _, err := txEnrollmentRepo.SetPaid(ctx, completed.EnrollmentID, true); err != nil {
			return err
		}

	case GatewayStatusPaymentFailed:
		if payment.Status == models.PaymentStatusFailed {
			return tx.Commit(ctx)
		}
		if _, err := txPaymentRepo.MarkFailedIfPending(ctx, payment.ID, nil); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrInvalidTransition
			}
			return err
		}

	case GatewayStatusRefunded, GatewayStatusPartiallyRefunded:
		if payment.Status == models.PaymentStatusRefunded {
			return tx.Commit(ctx)
		}
		refundedAmount := payment.Amount
		if event.Status == GatewayStatusPartiallyRefunded {
			if event.Amount == nil {
				return ErrInvalidAmount
			}
			refundedAmount = *event.Amount
		} else if event.Amount != nil {
			refundedAmount = *event.Amount
		}
		if !refundedAmount.IsPositive() || refundedAmount.GreaterThan(payment.Amount) {
			return ErrInvalidAmount
		}
		refunded, err := txPaymentRepo.RefundIfCompleted(ctx, payment.ID, refundedAmount, event.Timestamp.UTC())
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrInvalidTransition
			}
			return err
		}
		if refundedAmount.Equal(refunded.Amount) {
			if _, err := txEnrollmentRepo.SetPaid(ctx, refunded.EnrollmentID, false); err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

func (s *PaymentService) GetPayment(ctx context.Context, paymentID int64) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

func (s *PaymentService) ListForEnrollment(
	ctx context.Context,
	enrollmentID int64,
) ([]models.Payment, error) {
	return s.paymentRepo.ListByEnrollmentID(ctx, enrollmentID)
}

func (s *PaymentService) lockPayment(
	ctx context.Context,
	txPaymentRepo *repository.PaymentRepository,
	paymentID int64,
) (*models.Payment, error) {
	payment, err := txPaymentRepo.GetByIDForUpdate(ctx, paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}
