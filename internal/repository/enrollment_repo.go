package repository

import (
	"context"

	"github.com/marc-dlt/StageBookingBack/internal/models"
)

type EnrollmentRepository struct {
	db DBTX
}

func NewEnrollmentRepository(db DBTX) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) Create(
	ctx context.Context,
	sessionID int64,
	userID int64,
) (*models.Enrollment, error) {
	query := `
		INSERT INTO session_users (session_id, user_id, is_paid, is_archived)
		VALUES ($1, $2, FALSE, FALSE)
		RETURNING id, session_id, user_id, is_paid, is_archived, payment_intent_id, created_at, updated_at
	`
	var enrollment models.Enrollment
	err := r.db.QueryRow(ctx, query, sessionID, userID).Scan(
		&enrollment.ID,
		&enrollment.SessionID,
		&enrollment.UserID,
		&enrollment.IsPaid,
		&enrollment.IsArchived,
		&enrollment.PaymentIntentID,
		&enrollment.CreatedAt,
		&enrollment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *EnrollmentRepository) GetByID(ctx context.Context, enrollmentID int64) (*models.Enrollment, error) {
	query := `
		SELECT id, session_id, user_id, is_paid, is_archived, payment_intent_id, created_at, updated_at
		FROM session_users
		WHERE id = $1
	`
	var enrollment models.Enrollment
	err := r.db.QueryRow(ctx, query, enrollmentID).Scan(
		&enrollment.ID,
		&enrollment.SessionID,
		&enrollment.UserID,
		&enrollment.IsPaid,
		&enrollment.IsArchived,
		&enrollment.PaymentIntentID,
		&enrollment.CreatedAt,
		&enrollment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *EnrollmentRepository) GetByIDForUpdate(
	ctx context.Context,
	enrollmentID int64,
) (*models.Enrollment, error) {
	query := `
		SELECT id, session_id, user_id, is_paid, is_archived, payment_intent_id, created_at, updated_at
		FROM session_users
		WHERE id = $1
		FOR UPDATE
	`
	var enrollment models.Enrollment
	err := r.db.QueryRow(ctx, query, enrollmentID).Scan(
		&enrollment.ID,
		&enrollment.SessionID,
		&enrollment.UserID,
		&enrollment.IsPaid,
		&enrollment.IsArchived,
		&enrollment.PaymentIntentID,
		&enrollment.CreatedAt,
		&enrollment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// CountActiveBySession counts non-archived enrollments for a session. Must be
// called inside the same transaction that inserts a new enrollment, after the
// session's advisory lock is held, or the count may be stale.
func (r *EnrollmentRepository) CountActiveBySession(ctx context.Context, sessionID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM session_users
		WHERE session_id = $1 AND is_archived = FALSE
	`
	var count int
	if err := r.db.QueryRow(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *EnrollmentRepository) HasActivePair(
	ctx context.Context,
	sessionID int64,
	userID int64,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM session_users
			WHERE session_id = $1
			  AND user_id = $2
			  AND is_archived = FALSE
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, sessionID, userID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID int64) ([]models.Enrollment, error) {
	query := `
		SELECT id, session_id, user_id, is_paid, is_archived, payment_intent_id, created_at, updated_at
		FROM session_users
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	enrollments := make([]models.Enrollment, 0)
	for rows.Next() {
		var enrollment models.Enrollment
		if err := rows.Scan(
			&enrollment.ID,
			&enrollment.SessionID,
			&enrollment.UserID,
			&enrollment.IsPaid,
			&enrollment.IsArchived,
			&enrollment.PaymentIntentID,
			&enrollment.CreatedAt,
			&enrollment.UpdatedAt,
		); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, enrollment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return enrollments, nil
}

func (r *EnrollmentRepository) Archive(ctx context.Context, enrollmentID int64) (*models.Enrollment, error) {
	query := `
		UPDATE session_users
		SET is_archived = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING id, session_id, user_id, is_paid, is_archived, payment_intent_id, created_at, updated_at
	`
	var enrollment models.Enrollment
	err := r.db.QueryRow(ctx, query, enrollmentID).Scan(
		&enrollment.ID,
		&enrollment.SessionID,
		&enrollment.UserID,
		&enrollment.IsPaid,
		&enrollment.IsArchived,
		&enrollment.PaymentIntentID,
		&enrollment.CreatedAt,
		&enrollment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// SetPaid is only called by the payment service, which owns the is_paid flag.
func (r *EnrollmentRepository) SetPaid(
	ctx context.Context,
	enrollmentID int64,
	isPaid bool,
) (*models.Enrollment, error) {
	query := `
		UPDATE session_users
		SET is_paid = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, session_id, user_id, is_paid, is_archived, payment_intent_id, created_at, updated_at
	`
	var enrollment models.Enrollment
	err := r.db.QueryRow(ctx, query, enrollmentID, isPaid).Scan(
		&enrollment.ID,
		&enrollment.SessionID,
		&enrollment.UserID,
		&enrollment.IsPaid,
		&enrollment.IsArchived,
		&enrollment.PaymentIntentID,
		&enrollment.CreatedAt,
		&enrollment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *EnrollmentRepository) SetPaymentIntentID(
	ctx context.Context,
	enrollmentID int64,
	paymentIntentID string,
) (*models.Enrollment, error) {
	query := `
		UPDATE session_users
		SET payment_intent_id = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, session_id, user_id, is_paid, is_archived, payment_intent_id, created_at, updated_at
	`
	var enrollment models.Enrollment
	err := r.db.QueryRow(ctx, query, enrollmentID, paymentIntentID).Scan(
		&enrollment.ID,
		&enrollment.SessionID,
		&enrollment.UserID,
		&enrollment.IsPaid,
		&enrollment.IsArchived,
		&enrollment.PaymentIntentID,
		&enrollment.CreatedAt,
		&enrollment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}
