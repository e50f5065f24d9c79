package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marc-dlt/StageBookingBack/internal/models"
)

type CreateSessionInput struct {
	NumeroStageAnts string
	Price           decimal.Decimal
	Currency        string
	StartDate       time.Time
	EndDate         time.Time
	Capacity        int
	InstructorID    int64
	PsychologueID   int64
}

type SessionListFilter struct {
	Timeframe       string
	IncludeArchived bool
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(
	ctx context.Context,
	input CreateSessionInput,
) (*models.Session, error) {
	query := `
		INSERT INTO sessions (numero_stage_ants, price, currency, start_date, end_date, capacity, instructor_id, psychologue_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, numero_stage_ants, price, currency, start_date, end_date, capacity, is_archived, instructor_id, psychologue_id, created_at, updated_at
	`

	var session models.Session
	err := r.db.QueryRow(
		ctx,
		query,
		input.NumeroStageAnts,
		input.Price,
		input.Currency,
		input.StartDate,
		input.EndDate,
		input.Capacity,
		input.InstructorID,
		input.PsychologueID,
	).Scan(
		&session.ID,
		&session.NumeroStageAnts,
		&session.Price,
		&session.Currency,
		&session.StartDate,
		&session.EndDate,
		&session.Capacity,
		&session.IsArchived,
		&session.InstructorID,
		&session.PsychologueID,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := `
		SELECT id, numero_stage_ants, price, currency, start_date, end_date, capacity, is_archived, instructor_id, psychologue_id, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`
	var session models.Session
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&session.ID,
		&session.NumeroStageAnts,
		&session.Price,
		&session.Currency,
		&session.StartDate,
		&session.EndDate,
		&session.Capacity,
		&session.IsArchived,
		&session.InstructorID,
		&session.PsychologueID,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) GetByIDForUpdate(
	ctx context.Context,
	sessionID int64,
) (*models.Session, error) {
	query := `
		SELECT id, numero_stage_ants, price, currency, start_date, end_date, capacity, is_archived, instructor_id, psychologue_id, created_at, updated_at
		FROM sessions
		WHERE id = $1
		FOR UPDATE
	`
	var session models.Session
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&session.ID,
		&session.NumeroStageAnts,
		&session.Price,
		&session.Currency,
		&session.StartDate,
		&session.EndDate,
		&session.Capacity,
		&session.IsArchived,
		&session.InstructorID,
		&session.PsychologueID,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListWithAvailability returns sessions together with the number of seats not
// taken by a non-archived enrollment, ordered by start date.
func (r *SessionRepository) ListWithAvailability(
	ctx context.Context,
	filter SessionListFilter,
) ([]models.SessionAvailability, error) {
	whereParts := []string{"TRUE"}
	if !filter.IncludeArchived {
		whereParts = []string{"s.is_archived = FALSE"}
	}

	switch strings.TrimSpace(filter.Timeframe) {
	case "upcoming":
		whereParts = append(whereParts, "s.start_date > NOW()")
	case "past":
		whereParts = append(whereParts, "s.end_date <= NOW()")
	}

	query := fmt.Sprintf(`
		SELECT s.id, s.numero_stage_ants, s.price, s.currency, s.start_date, s.end_date, s.capacity, s.is_archived, s.instructor_id, s.psychologue_id, s.created_at, s.updated_at,
		       s.capacity - COUNT(e.id) FILTER (WHERE e.is_archived = FALSE) AS remaining_seats
		FROM sessions s
		LEFT JOIN session_users e ON e.session_id = s.id
		WHERE %s
		GROUP BY s.id
		ORDER BY s.start_date ASC, s.id ASC
	`, strings.Join(whereParts, " AND "))

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.SessionAvailability, 0)
	for rows.Next() {
		var item models.SessionAvailability
		if err := rows.Scan(
			&item.ID,
			&item.NumeroStageAnts,
			&item.Price,
			&item.Currency,
			&item.StartDate,
			&item.EndDate,
			&item.Capacity,
			&item.IsArchived,
			&item.InstructorID,
			&item.PsychologueID,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.RemainingSeats,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *SessionRepository) Archive(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET is_archived = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING id, numero_stage_ants, price, currency, start_date, end_date, capacity, is_archived, instructor_id, psychologue_id, created_at, updated_at
	`
	var session models.Session
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&session.ID,
		&session.NumeroStageAnts,
		&session.Price,
		&session.Currency,
		&session.StartDate,
		&session.EndDate,
		&session.Capacity,
		&session.IsArchived,
		&session.InstructorID,
		&session.PsychologueID,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}
