package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/marc-dlt/StageBookingBack/internal/models"
	"github.com/marc-dlt/StageBookingBack/internal/repository"
)

var (
	ErrInstructorNotFound  = errors.New("instructor not found")
	ErrPsychologueNotFound = errors.New("psychologue not found")
)

type directoryReader interface {
	InstructorExists(ctx context.Context, instructorID int64) (bool, error)
	PsychologueExists(ctx context.Context, psychologueID int64) (bool, error)
}

type CreateStageInput struct {
	NumeroStageAnts string
	Price           decimal.Decimal
	Currency        string
	StartDate       time.Time
	EndDate         time.Time
	Capacity        int
	InstructorID    int64
	PsychologueID   int64
}

// SessionService is the admin-facing scheduling surface: creating stages,
// archiving them, and exposing the catalog with remaining seats.
type SessionService struct {
	sessionRepo    *repository.SessionRepository
	enrollmentRepo *repository.EnrollmentRepository
	directoryRepo  directoryReader
}

func NewSessionService(
	sessionRepo *repository.SessionRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	directoryRepo directoryReader,
) *SessionService {
	return &SessionService{
		sessionRepo:    sessionRepo,
		enrollmentRepo: enrollmentRepo,
		directoryRepo:  directoryRepo,
	}
}

func (s *SessionService) CreateStage(
	ctx context.Context,
	input CreateStageInput,
) (*models.Session, error) {
	if strings.TrimSpace(input.NumeroStageAnts) == "" {
		return nil, ErrInvalidInput
	}
	if input.Price.IsNegative() {
		return nil, ErrInvalidInput
	}
	if input.Capacity < 1 {
		return nil, ErrInvalidInput
	}
	if !input.StartDate.Before(input.EndDate) {
		return nil, ErrInvalidInput
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		return nil, ErrInvalidInput
	}

	instructorExists, err := s.directoryRepo.InstructorExists(ctx, input.InstructorID)
	if err != nil {
		return nil, err
	}
	if !instructorExists {
		return nil, ErrInstructorNotFound
	}

	psychologueExists, err := s.directoryRepo.PsychologueExists(ctx, input.PsychologueID)
	if err != nil {
		return nil, err
	}
	if !psychologueExists {
		return nil, ErrPsychologueNotFound
	}

	session, err := s.sessionRepo.Create(ctx, repository.CreateSessionInput{
		NumeroStageAnts: strings.TrimSpace(input.NumeroStageAnts),
		Price:           input.Price,
		Currency:        currency,
		StartDate:       input.StartDate.UTC(),
		EndDate:         input.EndDate.UTC(),
		Capacity:        input.Capacity,
		InstructorID:    input.InstructorID,
		PsychologueID:   input.PsychologueID,
	})
	if err != nil {
		if repository.IsUniqueViolation(err, "") {
			return nil, ErrConflict
		}
		return nil, err
	}
	return session, nil
}

// ArchiveStage soft-deletes a session: its enrollment and payment history is
// kept, but new enrollments are refused. Archiving twice is a no-op.
func (s *SessionService) ArchiveStage(ctx context.Context, sessionID int64) (*models.Session, error) {
	session, err := s.sessionRepo.Archive(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func (s *SessionService) ListStages(
	ctx context.Context,
	filter repository.SessionListFilter,
) ([]models.SessionAvailability, error) {
	return s.sessionRepo.ListWithAvailability(ctx, filter)
}

func (s *SessionService) GetStage(
	ctx context.Context,
	sessionID int64,
) (*models.SessionAvailability, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	ledger := NewCapacityLedger(s.enrollmentRepo)
	remaining, err := ledger.RemainingSeats(ctx, session)
	if err != nil {
		return nil, err
	}

	return &models.SessionAvailability{
		Session:        *session,
		RemainingSeats: remaining,
	}, nil
}
