package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marc-dlt/StageBookingBack/internal/models"
	"github.com/marc-dlt/StageBookingBack/internal/repository"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("conflict")
	ErrUserNotFound        = errors.New("user not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionArchived     = errors.New("session archived")
	ErrDuplicateEnrollment = errors.New("duplicate enrollment")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrEnrollmentNotFound  = errors.New("enrollment not found")
)

// AvailabilityNotifier receives the remaining seat count of a session after
// an enrollment commit. Implemented by the websocket hub; may be nil.
type AvailabilityNotifier interface {
	NotifySeats(sessionID int64, remainingSeats int)
}

type enrollmentUserReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type EnrollmentService struct {
	db             *pgxpool.Pool
	sessionRepo    *repository.SessionRepository
	enrollmentRepo *repository.EnrollmentRepository
	paymentRepo    *repository.PaymentRepository
	userRepo       enrollmentUserReader
	notifier       AvailabilityNotifier
}

func NewEnrollmentService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	paymentRepo *repository.PaymentRepository,
	userRepo enrollmentUserReader,
	notifier AvailabilityNotifier,
) *EnrollmentService {
	return &EnrollmentService{
		db:             db,
		sessionRepo:    sessionRepo,
		enrollmentRepo: enrollmentRepo,
		paymentRepo:    paymentRepo,
		userRepo:       userRepo,
		notifier:       notifier,
	}
}

// Enroll reserves a seat for a learner. Uniqueness of the active
// (session, user) pair and the capacity bound are both checked inside one
// transaction under the session's advisory lock; the partial unique index on
// session_users backstops the pair check, the lock is the only thing
// enforcing capacity.
func (s *EnrollmentService) Enroll(
	ctx context.Context,
	userID int64,
	sessionID int64,
) (*models.Enrollment, error) {
	if userID <= 0 || sessionID <= 0 {
		return nil, ErrInvalidInput
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txEnrollmentRepo := repository.NewEnrollmentRepository(tx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", sessionID); err != nil {
		return nil, err
	}

	session, err := txSessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.IsArchived {
		return nil, ErrSessionArchived
	}

	hasActive, err := txEnrollmentRepo.HasActivePair(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if hasActive {
		return nil, ErrDuplicateEnrollment
	}

	ledger := NewCapacityLedger(txEnrollmentRepo)
	hasCapacity, err := ledger.HasCapacity(ctx, session)
	if err != nil {
		return nil, err
	}
	if !hasCapacity {
		return nil, ErrCapacityExceeded
	}

	enrollment, err := txEnrollmentRepo.Create(ctx, sessionID, userID)
	if err != nil {
		if repository.IsUniqueViolation(err, "session_users_active_pair_idx") {
			return nil, ErrDuplicateEnrollment
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.publishAvailability(ctx, session)

	return enrollment, nil
}

// Cancel archives an enrollment and frees its seat. The row and its payments
// are kept; cancelling an already-archived enrollment is a no-op. A paid
// enrollment stays paid: refunding is a separate, explicit payment operation.
func (s *EnrollmentService) Cancel(ctx context.Context, enrollmentID int64) error {
	if enrollmentID <= 0 {
		return ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txEnrollmentRepo := repository.NewEnrollmentRepository(tx)

	enrollment, err := txEnrollmentRepo.GetByIDForUpdate(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEnrollmentNotFound
		}
		return err
	}
	if enrollment.IsArchived {
		return tx.Commit(ctx)
	}

	if _, err := txEnrollmentRepo.Archive(ctx, enrollmentID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if session, err := s.sessionRepo.GetByID(ctx, enrollment.SessionID); err == nil {
		s.publishAvailability(ctx, session)
	}

	return nil
}

func (s *EnrollmentService) GetEnrollment(
	ctx context.Context,
	enrollmentID int64,
) (*models.EnrollmentDetail, error) {
	enrollment, err := s.enrollmentRepo.GetByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, err
	}

	detail := &models.EnrollmentDetail{Enrollment: *enrollment}
	payments, err := s.paymentRepo.ListByEnrollmentIDs(ctx, []int64{enrollmentID})
	if err != nil {
		return nil, err
	}
	if payment, ok := payments[enrollmentID]; ok {
		paymentCopy := payment
		detail.Payment = &paymentCopy
	}
	return detail, nil
}

func (s *EnrollmentService) ListForUser(
	ctx context.Context,
	userID int64,
) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.enrollmentRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	enrollmentIDs := make([]int64, 0, len(enrollments))
	for _, enrollment := range enrollments {
		enrollmentIDs = append(enrollmentIDs, enrollment.ID)
	}

	paymentsByEnrollment, err := s.paymentRepo.ListByEnrollmentIDs(ctx, enrollmentIDs)
	if err != nil {
		return nil, err
	}

	details := make([]models.EnrollmentDetail, 0, len(enrollments))
	for _, enrollment := range enrollments {
		detail := models.EnrollmentDetail{Enrollment: enrollment}
		if payment, ok := paymentsByEnrollment[enrollment.ID]; ok {
			paymentCopy := payment
			detail.Payment = &paymentCopy
		}
		details = append(details, detail)
	}

	return details, nil
}

func (s *EnrollmentService) publishAvailability(ctx context.Context, session *models.Session) {
	if s.notifier == nil {
		return
	}
	ledger := NewCapacityLedger(s.enrollmentRepo)
	remaining, err := ledger.RemainingSeats(ctx, session)
	if err != nil {
		return
	}
	s.notifier.NotifySeats(session.ID, remaining)
}
