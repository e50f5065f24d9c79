package services

import (
	"context"

	"github.com/marc-dlt/StageBookingBack/internal/models"
)

type activeEnrollmentCounter interface {
	CountActiveBySession(ctx context.Context, sessionID int64) (int, error)
}

// CapacityLedger answers whether a session has room for one more active
// enrollment. It never mutates anything; the enrollment service must consult
// it inside the transaction that inserts the enrollment, with the session's
// advisory lock held, or two concurrent enrollments can both observe a free
// seat.
type CapacityLedger struct {
	enrollmentRepo activeEnrollmentCounter
}

func NewCapacityLedger(enrollmentRepo activeEnrollmentCounter) *CapacityLedger {
	return &CapacityLedger{enrollmentRepo: enrollmentRepo}
}

func (l *CapacityLedger) ActiveEnrollmentCount(
	ctx context.Context,
	session *models.Session,
) (int, error) {
	return l.enrollmentRepo.CountActiveBySession(ctx, session.ID)
}

func (l *CapacityLedger) HasCapacity(ctx context.Context, session *models.Session) (bool, error) {
	count, err := l.ActiveEnrollmentCount(ctx, session)
	if err != nil {
		return false, err
	}
	return count < session.Capacity, nil
}

// RemainingSeats is the read-only variant the catalog and the availability
// feed use; it clamps at zero for sessions whose capacity was lowered after
// enrollments existed.
func (l *CapacityLedger) RemainingSeats(ctx context.Context, session *models.Session) (int, error) {
	count, err := l.ActiveEnrollmentCount(ctx, session)
	if err != nil {
		return 0, err
	}
	remaining := session.Capacity - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
