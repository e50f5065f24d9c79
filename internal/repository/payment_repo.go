package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marc-dlt/StageBookingBack/internal/models"
)

type CreatePaymentInput struct {
	EnrollmentID          int64
	Reference             string
	StripePaymentIntentID *string
	Amount                decimal.Decimal
	Currency              string
	Method                models.PaymentMethod
	RecordedBy            *int64
	Notes                 *string
}

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, input CreatePaymentInput) (*models.Payment, error) {
	query := `
		INSERT INTO payments (enrollment_id, reference, stripe_payment_intent_id, amount, currency, method, status, recorded_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6, 'PENDING', $7, $8)
		RETURNING id, enrollment_id, reference, stripe_payment_intent_id, amount, currency, method, status, refunded_amount, refunded_at, paid_at, recorded_by, notes, created_at, updated_at
	`

	var payment models.Payment
	err := r.db.QueryRow(
		ctx,
		query,
		input.EnrollmentID,
		input.Reference,
		input.StripePaymentIntentID,
		input.Amount,
		input.Currency,
		input.Method,
		input.RecordedBy,
		input.Notes,
	).Scan(
		&payment.ID,
		&payment.EnrollmentID,
		&payment.Reference,
		&payment.StripePaymentIntentID,
		&payment.Amount,
		&payment.Currency,
		&payment.Method,
		&payment.Status,
		&payment.RefundedAmount,
		&payment.RefundedAt,
		&payment.PaidAt,
		&payment.RecordedBy,
		&payment.Notes,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, paymentID int64) (*models.Payment, error) {
	query := `
		SELECT id, enrollment_id, reference, stripe_payment_intent_id, amount, currency, method, status, refunded_amount, refunded_at, paid_at, recorded_by, notes, created_at, updated_at
		FROM payments
		WHERE id = $1
	`

	var payment models.Payment
	err := r.db.QueryRow(ctx, query, paymentID).Scan(
		&payment.ID,
		&payment.EnrollmentID,
		&payment.Reference,
		&payment.StripePaymentIntentID,
		&payment.Amount,
		&payment.Currency,
		&payment.Method,
		&payment.Status,
		&payment.RefundedAmount,
		&payment.RefundedAt,
		&payment.PaidAt,
		&payment.RecordedBy,
		&payment.Notes,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, paymentID int64) (*models.Payment, error) {
	query := `
		SELECT id, enrollment_id, reference, stripe_payment_intent_id, amount, currency, method, status, refunded_amount, refunded_at, paid_at, recorded_by, notes, created_at, updated_at
		FROM payments
		WHERE id = $1
		FOR UPDATE
	`

	var payment models.Payment
	err := r.db.QueryRow(ctx, query, paymentID).Scan(
		&payment.ID,
		&payment.EnrollmentID,
		&payment.Reference,
		&payment.StripePaymentIntentID,
		&payment.Amount,
		&payment.Currency,
		&payment.Method,
		&payment.Status,
		&payment.RefundedAmount,
		&payment.RefundedAt,
		&payment.PaidAt,
		&payment.RecordedBy,
		&payment.Notes,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) GetByStripeIntentIDForUpdate(
	ctx context.Context,
	stripePaymentIntentID string,
) (*models.Payment, error) {
	query := `
		SELECT id, enrollment_id, reference, stripe_payment_intent_id, amount, currency, method, status, refunded_amount, refunded_at, paid_at, recorded_by, notes, created_at, updated_at
		FROM payments
		WHERE stripe_payment_intent_id = $1
		FOR UPDATE
	`

	var payment models.Payment
	err := r.db.QueryRow(ctx, query, stripePaymentIntentID).Scan(
		&payment.ID,
		&payment.EnrollmentID,
		&payment.Reference,
		&payment.StripePaymentIntentID,
		&payment.Amount,
		&payment.Currency,
		&payment.Method,
		&payment.Status,
		&payment.RefundedAmount,
		&payment.RefundedAt,
		&payment.PaidAt,
		&payment.RecordedBy,
		&payment.Notes,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByEnrollmentIDs returns the latest payment per enrollment.
func (r *PaymentRepository) ListByEnrollmentIDs(
	ctx context.Context,
	enrollmentIDs []int64,
) (map[int64]models.Payment, error) {
	payments := make(map[int64]models.Payment, len(enrollmentIDs))
	if len(enrollmentIDs) == 0 {
		return payments, nil
	}

	query := `
		SELECT DISTINCT ON (enrollment_id) id, enrollment_id, reference, stripe_payment_intent_id, amount, currency, method, status, refunded_amount, refunded_at, paid_at, recorded_by, notes, created_at, updated_at
		FROM payments
		WHERE enrollment_id = ANY($1)
		ORDER BY enrollment_id, id DESC
	`

	rows, err := r.db.Query(ctx, query, enrollmentIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var payment models.Payment
		if err := rows.Scan(
			&payment.ID,
			&payment.EnrollmentID,
			&payment.Reference,
			&payment.StripePaymentIntentID,
			&payment.Amount,
			&payment.Currency,
			&payment.Method,
			&payment.Status,
			&payment.RefundedAmount,
			&payment.RefundedAt,
			&payment.PaidAt,
			&payment.RecordedBy,
			&payment.Notes,
			&payment.CreatedAt,
			&payment.UpdatedAt,
		); err != nil {
			return nil, err
		}
		payments[payment.EnrollmentID] = payment
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *PaymentRepository) ListByEnrollmentID(
	ctx context.Context,
	enrollmentID int64,
) ([]models.Payment, error) {
	query := `
		SELECT id, enrollment_id, reference, stripe_payment_intent_id, amount, currency, method, status, refunded_amount, refunded_at, paid_at, recorded_by, notes, created_at, updated_at
		FROM payments
		WHERE enrollment_id = $1
		ORDER BY id ASC
	`

	rows, err := r.db.Query(ctx, query, enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		var payment models.Payment
		if err := rows.Scan(
			&payment.ID,
			&payment.EnrollmentID,
			&payment.Reference,
			&payment.StripePaymentIntentID,
			&payment.Amount,
			&payment.Currency,
			&payment.Method,
			&payment.Status,
			&payment.RefundedAmount,
			&payment.RefundedAt,
			&payment.PaidAt,
			&payment.RecordedBy,
			&payment.Notes,
			&payment.CreatedAt,
			&payment.UpdatedAt,
		); err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

// MarkCompletedIfPending performs the optimistic PENDING -> COMPLETED
// transition; pgx.ErrNoRows means the payment was not PENDING.
func (r *PaymentRepository) MarkCompletedIfPending(
	ctx context.Context,
	paymentID int64,
	paidAt time.Time,
	recordedBy *int64,
) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET status = 'COMPLETED', paid_at = $2, recorded_by = COALESCE($3, recorded_by), updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING id, enrollment_id, reference, stripe_payment_intent_id, amount, currency, method, status, refunded_amount, refunded_at, paid_at, recorded_by, notes, created_at, updated_at
	`

	var payment models.Payment
	err := r.db.QueryRow(ctx, query, paymentID, paidAt, recordedBy).Scan(
		&payment.ID,
		&payment.EnrollmentID,
		&payment.Reference,
		&payment.StripePaymentIntentID,
		&payment.Amount,
		&payment.Currency,
		&payment.Method,
		&payment.Status,
		&payment.RefundedAmount,
		&payment.RefundedAt,
		&payment.PaidAt,
		&payment.RecordedBy,
		&payment.Notes,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) MarkFailedIfPending(
	ctx context.Context,
	paymentID int64,
	reason *string,
) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET status = 'FAILED', notes = COALESCE($2, notes), updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING id, enrollment_id, reference, stripe_payment_intent_id, amount, currency, method, status, refunded_amount, refunded_at, paid_at, recorded_by, notes, created_at, updated_at
	`

	var payment models.Payment
	err := r.db.QueryRow(ctx, query, paymentID, reason).Scan(
		&payment.ID,
		&payment.EnrollmentID,
		&payment.Reference,
		&payment.StripePaymentIntentID,
		&payment.Amount,
		&payment.Currency,
		&payment.Method,
		&payment.Status,
		&payment.RefundedAmount,
		&payment.RefundedAt,
		&payment.PaidAt,
		&payment.RecordedBy,
		&payment.Notes,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) RefundIfCompleted(
	ctx context.Context,
	paymentID int64,
	refundedAmount decimal.Decimal,
	refundedAt time.Time,
) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET status = 'REFUNDED', refunded_amount = $2, refunded_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'COMPLETED'
		RETURNING id, enrollment_id, reference, stripe_payment_intent_id, amount, currency, method, status, refunded_amount, refunded_at, paid_at, recorded_by, notes, created_at, updated_at
	`

	var payment models.Payment
	err := r.db.QueryRow(ctx, query, paymentID, refundedAmount, refundedAt).Scan(
		&payment.ID,
		&payment.EnrollmentID,
		&payment.Reference,
		&payment.StripePaymentIntentID,
		&payment.Amount,
		&payment.Currency,
		&payment.Method,
		&payment.Status,
		&payment.RefundedAmount,
		&payment.RefundedAt,
		&payment.PaidAt,
		&payment.RecordedBy,
		&payment.Notes,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
