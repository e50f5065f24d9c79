package models

import "time"

// Enrollment is the join row tying one learner to one stage session.
// Archived rows are kept for payment history; the partial unique index on
// (session_id, user_id) only covers non-archived rows, so a learner may
// re-enroll after cancelling.
type Enrollment struct {
	ID              int64     `json:"id"`
	SessionID       int64     `json:"session_id"`
	UserID          int64     `json:"user_id"`
	IsPaid          bool      `json:"is_paid"`
	IsArchived      bool      `json:"is_archived"`
	PaymentIntentID *string   `json:"payment_intent_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type EnrollmentDetail struct {
	Enrollment
	Payment *Payment `json:"payment,omitempty"`
}
