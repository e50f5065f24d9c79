package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/marc-dlt/StageBookingBack/internal/models"
	"github.com/marc-dlt/StageBookingBack/internal/repository"
)

var (
	testDBOnce sync.Once
	testDBPool *pgxpool.Pool
	testDBErr  error
)

func TestEnrollCancelFreesSeatForNextLearner(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	enrollmentService := newIntegrationEnrollmentService(pool)

	firstUserID := createTestLearner(t, ctx, pool)
	secondUserID := createTestLearner(t, ctx, pool)
	stage := createTestStage(t, ctx, pool, 1, "259.00")
	t.Cleanup(func() { cleanupTestStage(t, ctx, pool, stage.ID, firstUserID, secondUserID) })

	first, err := enrollmentService.Enroll(ctx, firstUserID, stage.ID)
	if err != nil {
		t.Fatalf("first Enroll: %v", err)
	}
	if first.IsPaid {
		t.Fatalf("expected fresh enrollment to be unpaid")
	}

	if _, err := enrollmentService.Enroll(ctx, secondUserID, stage.ID); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded for full session, got %v", err)
	}

	if err := enrollmentService.Cancel(ctx, first.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	second, err := enrollmentService.Enroll(ctx, secondUserID, stage.ID)
	if err != nil {
		t.Fatalf("Enroll after cancel: %v", err)
	}
	if second.SessionID != stage.ID || second.UserID != secondUserID {
		t.Fatalf("unexpected enrollment row: %+v", second)
	}
}

func TestEnrollRejectsDuplicateActivePair(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	enrollmentService := newIntegrationEnrollmentService(pool)

	userID := createTestLearner(t, ctx, pool)
	stage := createTestStage(t, ctx, pool, 10, "259.00")
	t.Cleanup(func() { cleanupTestStage(t, ctx, pool, stage.ID, userID) })

	if _, err := enrollmentService.Enroll(ctx, userID, stage.ID); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if _, err := enrollmentService.Enroll(ctx, userID, stage.ID); !errors.Is(err, ErrDuplicateEnrollment) {
		t.Fatalf("expected ErrDuplicateEnrollment, got %v", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	enrollmentService := newIntegrationEnrollmentService(pool)

	userID := createTestLearner(t, ctx, pool)
	stage := createTestStage(t, ctx, pool, 5, "259.00")
	t.Cleanup(func() { cleanupTestStage(t, ctx, pool, stage.ID, userID) })

	enrollment, err := enrollmentService.Enroll(ctx, userID, stage.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	if err := enrollmentService.Cancel(ctx, enrollment.ID); err != nil {
		t.Fatalf("first Cancel: %v", err)
	}
	if err := enrollmentService.Cancel(ctx, enrollment.ID); err != nil {
		t.Fatalf("second Cancel should be a no-op, got %v", err)
	}

	archived, err := repository.NewEnrollmentRepository(pool).GetByID(ctx, enrollment.ID)
	if err != nil {
		t.Fatalf("GetByID after cancel: %v", err)
	}
	if !archived.IsArchived {
		t.Fatalf("expected archived enrollment, got %+v", archived)
	}
}

func TestEnrollRefusesArchivedSession(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	enrollmentService := newIntegrationEnrollmentService(pool)
	sessionService := newIntegrationSessionService(pool)

	userID := createTestLearner(t, ctx, pool)
	stage := createTestStage(t, ctx, pool, 5, "259.00")
	t.Cleanup(func() { cleanupTestStage(t, ctx, pool, stage.ID, userID) })

	if _, err := sessionService.ArchiveStage(ctx, stage.ID); err != nil {
		t.Fatalf("ArchiveStage: %v", err)
	}

	if _, err := enrollmentService.Enroll(ctx, userID, stage.ID); !errors.Is(err, ErrSessionArchived) {
		t.Fatalf("expected ErrSessionArchived, got %v", err)
	}
}

func TestConcurrentEnrollmentsAtLastSeat(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	enrollmentService := newIntegrationEnrollmentService(pool)

	const contenders = 6
	userIDs := make([]int64, 0, contenders)
	for i := 0; i < contenders; i++ {
		userIDs = append(userIDs, createTestLearner(t, ctx, pool))
	}
	stage := createTestStage(t, ctx, pool, 1, "259.00")
	t.Cleanup(func() { cleanupTestStage(t, ctx, pool, stage.ID, userIDs...) })

	var wg sync.WaitGroup
	results := make([]error, contenders)
	for i, userID := range userIDs {
		wg.Add(1)
		go func(i int, userID int64) {
			defer wg.Done()
			_, results[i] = enrollmentService.Enroll(ctx, userID, stage.ID)
		}(i, userID)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrCapacityExceeded):
		default:
			t.Fatalf("unexpected enroll error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner for the last seat, got %d", winners)
	}

	count, err := repository.NewEnrollmentRepository(pool).CountActiveBySession(ctx, stage.ID)
	if err != nil {
		t.Fatalf("CountActiveBySession: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 active enrollment, got %d", count)
	}
}

func TestPaymentCompleteThenFullRefund(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	enrollmentService := newIntegrationEnrollmentService(pool)
	paymentService := newIntegrationPaymentService(pool)

	userID := createTestLearner(t, ctx, pool)
	stage := createTestStage(t, ctx, pool, 5, "100.00")
	t.Cleanup(func() { cleanupTestStage(t, ctx, pool, stage.ID, userID) })

	enrollment, err := enrollmentService.Enroll(ctx, userID, stage.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	payment, err := paymentService.CreatePayment(ctx, CreatePaymentInput{
		EnrollmentID: enrollment.ID,
		Amount:       decimal.RequireFromString("100.00"),
		Currency:     "EUR",
		Method:       models.PaymentMethodBankTransfer,
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if payment.Status != models.PaymentStatusPending {
		t.Fatalf("expected PENDING payment, got %q", payment.Status)
	}

	completed, err := paymentService.MarkCompleted(ctx, payment.ID, time.Now(), nil)
	if err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if completed.Status != models.PaymentStatusCompleted || completed.PaidAt == nil {
		t.Fatalf("expected COMPLETED payment with paid_at, got %+v", completed)
	}
	assertEnrollmentPaid(t, ctx, pool, enrollment.ID, true)

	refunded, err := paymentService.Refund(ctx, payment.ID, decimal.RequireFromString("100.00"), time.Now())
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if refunded.Status != models.PaymentStatusRefunded {
		t.Fatalf("expected REFUNDED payment, got %q", refunded.Status)
	}
	if refunded.RefundedAmount == nil || !refunded.RefundedAmount.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected refunded_amount 100.00, got %+v", refunded.RefundedAmount)
	}
	assertEnrollmentPaid(t, ctx, pool, enrollment.ID, false)
}

func TestPartialRefundKeepsEnrollmentPaid(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	enrollmentService := newIntegrationEnrollmentService(pool)
	paymentService := newIntegrationPaymentService(pool)

	userID := createTestLearner(t, ctx, pool)
	stage := createTestStage(t, ctx, pool, 5, "100.00")
	t.Cleanup(func() { cleanupTestStage(t, ctx, pool, stage.ID, userID) })

	enrollment, err := enrollmentService.Enroll(ctx, userID, stage.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	payment, err := paymentService.CreatePayment(ctx, CreatePaymentInput{
		EnrollmentID: enrollment.ID,
		Amount:       decimal.RequireFromString("100.00"),
		Currency:     "EUR",
		Method:       models.PaymentMethodCreditCard,
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if _, err := paymentService.MarkCompleted(ctx, payment.ID, time.Now(), nil); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	refunded, err := paymentService.Refund(ctx, payment.ID, decimal.RequireFromString("40.00"), time.Now())
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if refunded.Status != models.PaymentStatusRefunded {
		t.Fatalf("expected REFUNDED payment, got %q", refunded.Status)
	}
	if refunded.RefundedAmount == nil || !refunded.RefundedAmount.Equal(decimal.RequireFromString("40.00")) {
		t.Fatalf("expected refunded_amount 40.00, got %+v", refunded.RefundedAmount)
	}
	assertEnrollmentPaid(t, ctx, pool, enrollment.ID, true)
}

func TestFailedPaymentCannotComplete(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	enrollmentService := newIntegrationEnrollmentService(pool)
	paymentService := newIntegrationPaymentService(pool)

	userID := createTestLearner(t, ctx, pool)
	stage := createTestStage(t, ctx, pool, 5, "259.00")
	t.Cleanup(func() { cleanupTestStage(t, ctx, pool, stage.ID, userID) })

	enrollment, err := enrollmentService.Enroll(ctx, userID, stage.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	payment, err := paymentService.CreatePayment(ctx, CreatePaymentInput{
		EnrollmentID: enrollment.ID,
		Amount:       decimal.RequireFromString("259.00"),
		Currency:     "EUR",
		Method:       models.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	failed, err := paymentService.MarkFailed(ctx, payment.ID, nil)
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if failed.Status != models.PaymentStatusFailed {
		t.Fatalf("expected FAILED payment, got %q", failed.Status)
	}

	if _, err := paymentService.MarkCompleted(ctx, payment.ID, time.Now(), nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	assertEnrollmentPaid(t, ctx, pool, enrollment.ID, false)
}

func TestRefundAboveOriginalAmountRejected(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	enrollmentService := newIntegrationEnrollmentService(pool)
	paymentService := newIntegrationPaymentService(pool)

	userID := createTestLearner(t, ctx, pool)
	stage := createTestStage(t, ctx, pool, 5, "100.00")
	t.Cleanup(func() { cleanupTestStage(t, ctx, pool, stage.ID, userID) })

	enrollment, err := enrollmentService.Enroll(ctx, userID, stage.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	payment, err := paymentService.CreatePayment(ctx, CreatePaymentInput{
		EnrollmentID: enrollment.ID,
		Amount:       decimal.RequireFromString("100.00"),
		Currency:     "EUR",
		Method:       models.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if _, err := paymentService.MarkCompleted(ctx, payment.ID, time.Now(), nil); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	if _, err := paymentService.Refund(ctx, payment.ID, decimal.RequireFromString("100.01"), time.Now()); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	current, err := paymentService.GetPayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if current.Status != models.PaymentStatusCompleted {
		t.Fatalf("expected payment to stay COMPLETED, got %q", current.Status)
	}
	assertEnrollmentPaid(t, ctx, pool, enrollment.ID, true)
}

func TestGatewayCapturedRedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	enrollmentService := newIntegrationEnrollmentService(pool)
	paymentService := newIntegrationPaymentService(pool)

	userID := createTestLearner(t, ctx, pool)
	stage := createTestStage(t, ctx, pool, 5, "259.00")
	t.Cleanup(func() { cleanupTestStage(t, ctx, pool, stage.ID, userID) })

	enrollment, err := enrollmentService.Enroll(ctx, userID, stage.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	intentID := fmt.Sprintf("pi_test_%d", time.Now().UnixNano())
	payment, err := paymentService.CreatePayment(ctx, CreatePaymentInput{
		EnrollmentID:          enrollment.ID,
		Amount:                decimal.RequireFromString("259.00"),
		Currency:              "EUR",
		Method:                models.PaymentMethodCreditCard,
		StripePaymentIntentID: &intentID,
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	event := GatewayEvent{
		StripePaymentIntentID: intentID,
		Status:                GatewayStatusCaptured,
		Timestamp:             time.Now(),
	}
	if err := paymentService.ReconcileFromGateway(ctx, event); err != nil {
		t.Fatalf("first ReconcileFromGateway: %v", err)
	}
	if err := paymentService.ReconcileFromGateway(ctx, event); err != nil {
		t.Fatalf("redelivered ReconcileFromGateway should be a no-op, got %v", err)
	}

	current, err := paymentService.GetPayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if current.Status != models.PaymentStatusCompleted {
		t.Fatalf("expected COMPLETED payment, got %q", current.Status)
	}
	assertEnrollmentPaid(t, ctx, pool, enrollment.ID, true)
}

func TestGatewayUnknownIntentIsReported(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	paymentService := newIntegrationPaymentService(pool)

	err := paymentService.ReconcileFromGateway(ctx, GatewayEvent{
		StripePaymentIntentID: fmt.Sprintf("pi_missing_%d", time.Now().UnixNano()),
		Status:                GatewayStatusCaptured,
		Timestamp:             time.Now(),
	})
	if !errors.Is(err, ErrUnknownPaymentIntent) {
		t.Fatalf("expected ErrUnknownPaymentIntent, got %v", err)
	}
}

func TestGatewayPartialRefundKeepsEnrollmentPaid(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	enrollmentService := newIntegrationEnrollmentService(pool)
	paymentService := newIntegrationPaymentService(pool)

	userID := createTestLearner(t, ctx, pool)
	stage := createTestStage(t, ctx, pool, 5, "100.00")
	t.Cleanup(func() { cleanupTestStage(t, ctx, pool, stage.ID, userID) })

	enrollment, err := enrollmentService.Enroll(ctx, userID, stage.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	intentID := fmt.Sprintf("pi_test_%d", time.Now().UnixNano())
	payment, err := paymentService.CreatePayment(ctx, CreatePaymentInput{
		EnrollmentID:          enrollment.ID,
		Amount:                decimal.RequireFromString("100.00"),
		Currency:              "EUR",
		Method:                models.PaymentMethodCreditCard,
		StripePaymentIntentID: &intentID,
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	if err := paymentService.ReconcileFromGateway(ctx, GatewayEvent{
		StripePaymentIntentID: intentID,
		Status:                GatewayStatusCaptured,
		Timestamp:             time.Now(),
	}); err != nil {
		t.Fatalf("captured event: %v", err)
	}

	partial := decimal.RequireFromString("40.00")
	if err := paymentService.ReconcileFromGateway(ctx, GatewayEvent{
		StripePaymentIntentID: intentID,
		Status:                GatewayStatusPartiallyRefunded,
		Amount:                &partial,
		Timestamp:             time.Now(),
	}); err != nil {
		t.Fatalf("partially_refunded event: %v", err)
	}

	current, err := paymentService.GetPayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if current.Status != models.PaymentStatusRefunded {
		t.Fatalf("expected REFUNDED payment, got %q", current.Status)
	}
	if current.RefundedAmount == nil || !current.RefundedAmount.Equal(partial) {
		t.Fatalf("expected refunded_amount 40.00, got %+v", current.RefundedAmount)
	}
	assertEnrollmentPaid(t, ctx, pool, enrollment.ID, true)
}

func integrationTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	testDBOnce.Do(func() {
		_ = godotenv.Load(".env")
		_ = godotenv.Load(filepath.Join("..", "..", ".env"))

		dbURL := os.Getenv("DB_URL")
		if dbURL == "" {
			testDBErr = fmt.Errorf("DB_URL is not set")
			return
		}

		cfg, err := pgxpool.ParseConfig(dbURL)
		if err != nil {
			testDBErr = err
			return
		}

		testDBPool, testDBErr = pgxpool.NewWithConfig(context.Background(), cfg)
		if testDBErr != nil {
			return
		}
		testDBErr = testDBPool.Ping(context.Background())
	})

	if testDBErr != nil {
		t.Skipf("skipping integration test: %v", testDBErr)
	}
	return testDBPool
}

func newIntegrationEnrollmentService(pool *pgxpool.Pool) *EnrollmentService {
	return NewEnrollmentService(
		pool,
		repository.NewSessionRepository(pool),
		repository.NewEnrollmentRepository(pool),
		repository.NewPaymentRepository(pool),
		repository.NewUserRepository(pool),
		nil,
	)
}

func newIntegrationPaymentService(pool *pgxpool.Pool) *PaymentService {
	return NewPaymentService(
		pool,
		repository.NewPaymentRepository(pool),
		repository.NewEnrollmentRepository(pool),
		repository.NewSessionRepository(pool),
	)
}

func newIntegrationSessionService(pool *pgxpool.Pool) *SessionService {
	return NewSessionService(
		repository.NewSessionRepository(pool),
		repository.NewEnrollmentRepository(pool),
		repository.NewDirectoryRepository(pool),
	)
}

func createTestLearner(t *testing.T, ctx context.Context, pool *pgxpool.Pool) int64 {
	t.Helper()

	user := &models.User{
		Email:     fmt.Sprintf("stage-test-%d@example.com", time.Now().UnixNano()),
		FirstName: "Test",
		LastName:  "Learner",
	}
	if err := repository.NewUserRepository(pool).Create(ctx, user); err != nil {
		t.Fatalf("create learner: %v", err)
	}
	return user.ID
}

func createTestStage(
	t *testing.T,
	ctx context.Context,
	pool *pgxpool.Pool,
	capacity int,
	price string,
) *models.Session {
	t.Helper()

	directoryRepo := repository.NewDirectoryRepository(pool)
	instructor := &models.Instructor{
		FirstName: "Test",
		LastName:  "Instructor",
		Email:     fmt.Sprintf("instructor-%d@example.com", time.Now().UnixNano()),
	}
	if err := directoryRepo.CreateInstructor(ctx, instructor); err != nil {
		t.Fatalf("create instructor: %v", err)
	}
	psychologue := &models.Psychologue{
		FirstName: "Test",
		LastName:  "Psychologue",
		Email:     fmt.Sprintf("psychologue-%d@example.com", time.Now().UnixNano()),
	}
	if err := directoryRepo.CreatePsychologue(ctx, psychologue); err != nil {
		t.Fatalf("create psychologue: %v", err)
	}

	stage, err := newIntegrationSessionService(pool).CreateStage(ctx, CreateStageInput{
		NumeroStageAnts: fmt.Sprintf("STG-%d", time.Now().UnixNano()),
		Price:           decimal.RequireFromString(price),
		Currency:        "EUR",
		StartDate:       time.Date(2030, 6, 10, 8, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2030, 6, 11, 17, 0, 0, 0, time.UTC),
		Capacity:        capacity,
		InstructorID:    instructor.ID,
		PsychologueID:   psychologue.ID,
	})
	if err != nil {
		t.Fatalf("CreateStage: %v", err)
	}
	return stage
}

func assertEnrollmentPaid(
	t *testing.T,
	ctx context.Context,
	pool *pgxpool.Pool,
	enrollmentID int64,
	wantPaid bool,
) {
	t.Helper()

	enrollment, err := repository.NewEnrollmentRepository(pool).GetByID(ctx, enrollmentID)
	if err != nil {
		t.Fatalf("GetByID enrollment: %v", err)
	}
	if enrollment.IsPaid != wantPaid {
		t.Fatalf("expected is_paid=%v, got %v", wantPaid, enrollment.IsPaid)
	}
}

func cleanupTestStage(
	t *testing.T,
	ctx context.Context,
	pool *pgxpool.Pool,
	sessionID int64,
	userIDs ...int64,
) {
	t.Helper()

	if _, err := pool.Exec(ctx, "DELETE FROM payments WHERE enrollment_id IN (SELECT id FROM session_users WHERE session_id = $1)", sessionID); err != nil {
		t.Fatalf("cleanup payments: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM session_users WHERE session_id = $1", sessionID); err != nil {
		t.Fatalf("cleanup session_users: %v", err)
	}

	var instructorID, psychologueID int64
	if err := pool.QueryRow(ctx, "SELECT instructor_id, psychologue_id FROM sessions WHERE id = $1", sessionID).Scan(&instructorID, &psychologueID); err == nil {
		if _, err := pool.Exec(ctx, "DELETE FROM sessions WHERE id = $1", sessionID); err != nil {
			t.Fatalf("cleanup sessions: %v", err)
		}
		if _, err := pool.Exec(ctx, "DELETE FROM instructors WHERE id = $1", instructorID); err != nil {
			t.Fatalf("cleanup instructors: %v", err)
		}
		if _, err := pool.Exec(ctx, "DELETE FROM psychologues WHERE id = $1", psychologueID); err != nil {
			t.Fatalf("cleanup psychologues: %v", err)
		}
	}

	if len(userIDs) > 0 {
		if _, err := pool.Exec(ctx, "DELETE FROM users WHERE id = ANY($1)", userIDs); err != nil {
			t.Fatalf("cleanup users: %v", err)
		}
	}
}
