package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Session struct {
	ID              int64           `json:"id"`
	NumeroStageAnts string          `json:"numero_stage_ants"`
	Price           decimal.Decimal `json:"price"`
	Currency        string          `json:"currency"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	Capacity        int             `json:"capacity"`
	IsArchived      bool            `json:"is_archived"`
	InstructorID    int64           `json:"instructor_id"`
	PsychologueID   int64           `json:"psychologue_id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SessionAvailability pairs a session with its remaining seat count as
// computed from non-archived enrollments.
type SessionAvailability struct {
	Session
	RemainingSeats int `json:"remaining_seats"`
}
