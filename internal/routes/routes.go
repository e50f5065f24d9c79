package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marc-dlt/StageBookingBack/internal/config"
	"github.com/marc-dlt/StageBookingBack/internal/handlers"
	"github.com/marc-dlt/StageBookingBack/internal/middleware"
	"github.com/marc-dlt/StageBookingBack/internal/repository"
	"github.com/marc-dlt/StageBookingBack/internal/services"
	seatws "github.com/marc-dlt/StageBookingBack/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) {
	userRepo := repository.NewUserRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)

	seatHub := seatws.NewHub()
	go seatHub.Run()

	sessionService := services.NewSessionService(sessionRepo, enrollmentRepo, directoryRepo)
	enrollmentService := services.NewEnrollmentService(db, sessionRepo, enrollmentRepo, paymentRepo, userRepo, seatHub)
	paymentService := services.NewPaymentService(db, paymentRepo, enrollmentRepo, sessionRepo)

	authHandler := handlers.NewAuthHandler(adminRepo, cfg.JWTSecret)
	userHandler := handlers.NewUserHandler(userRepo)
	directoryHandler := handlers.NewDirectoryHandler(directoryRepo)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	enrollmentHandler := handlers.NewEnrollmentHandler(enrollmentService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	webhookHandler := handlers.NewWebhookHandler(paymentService)
	availabilityHandler := handlers.NewAvailabilityHandler(seatHub)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	// The gateway authenticates by shared knowledge of intent ids, not JWT.
	api.Post("/webhooks/payments", webhookHandler.HandlePaymentEvent)

	public := api.Group("/v1")
	public.Get("/sessions", sessionHandler.ListStages)
	public.Get("/sessions/:id", sessionHandler.GetStage)

	public.Use("/ws", availabilityHandler.WebSocketUpgrade)
	public.Get("/ws", websocket.New(availabilityHandler.HandleWebSocket))

	admin := api.Group("/v1/admin", middleware.AuthRequired(cfg.JWTSecret), middleware.AdminOnly())

	admin.Post("/users", userHandler.CreateUser)
	admin.Get("/users/:id", userHandler.GetUser)
	admin.Get("/users/:id/enrollments", enrollmentHandler.ListForUser)

	admin.Post("/instructors", directoryHandler.CreateInstructor)
	admin.Delete("/instructors/:id", directoryHandler.ArchiveInstructor)
	admin.Post("/psychologues", directoryHandler.CreatePsychologue)
	admin.Delete("/psychologues/:id", directoryHandler.ArchivePsychologue)

	admin.Post("/sessions", sessionHandler.CreateStage)
	admin.Delete("/sessions/:id", sessionHandler.ArchiveStage)

	admin.Post("/enrollments", enrollmentHandler.Enroll)
	admin.Get("/enrollments/:id", enrollmentHandler.GetEnrollment)
	admin.Post("/enrollments/:id/cancel", enrollmentHandler.Cancel)
	admin.Get("/enrollments/:id/payments", paymentHandler.ListForEnrollment)

	admin.Post("/payments", paymentHandler.CreatePayment)
	admin.Get("/payments/:id", paymentHandler.GetPayment)
	admin.Post("/payments/:id/complete", paymentHandler.MarkCompleted)
	admin.Post("/payments/:id/fail", paymentHandler.MarkFailed)
	admin.Post("/payments/:id/refund", paymentHandler.Refund)
}
