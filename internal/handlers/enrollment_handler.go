package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/marc-dlt/StageBookingBack/internal/models"
	"github.com/marc-dlt/StageBookingBack/internal/services"
)

type EnrollmentHandler struct {
	service enrollmentApplicationService
}

type enrollmentApplicationService interface {
	Enroll(ctx context.Context, userID int64, sessionID int64) (*models.Enrollment, error)
	Cancel(ctx context.Context, enrollmentID int64) error
	GetEnrollment(ctx context.Context, enrollmentID int64) (*models.EnrollmentDetail, error)
	ListForUser(ctx context.Context, userID int64) ([]models.EnrollmentDetail, error)
}

func NewEnrollmentHandler(service *services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

type enrollRequest struct {
	UserID    int64 `json:"user_id" validate:"required,min=1"`
	SessionID int64 `json:"session_id" validate:"required,min=1"`
}

func (h *EnrollmentHandler) Enroll(c *fiber.Ctx) error {
	var req enrollRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	enrollment, err := h.service.Enroll(c.Context(), req.UserID, req.SessionID)
	if err != nil {
		return mapEnrollmentError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"enrollment": enrollment})
}

func (h *EnrollmentHandler) Cancel(c *fiber.Ctx) error {
	enrollmentID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || enrollmentID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid enrollment id"})
	}

	if err := h.service.Cancel(c.Context(), enrollmentID); err != nil {
		return mapEnrollmentError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *EnrollmentHandler) GetEnrollment(c *fiber.Ctx) error {
	enrollmentID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || enrollmentID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid enrollment id"})
	}

	enrollment, err := h.service.GetEnrollment(c.Context(), enrollmentID)
	if err != nil {
		return mapEnrollmentError(c, err)
	}

	return c.JSON(fiber.Map{"enrollment": enrollment})
}

func (h *EnrollmentHandler) ListForUser(c *fiber.Ctx) error {
	userID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || userID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
	}

	enrollments, err := h.service.ListForUser(c.Context(), userID)
	if err != nil {
		return mapEnrollmentError(c, err)
	}

	return c.JSON(fiber.Map{"enrollments": enrollments})
}

func mapEnrollmentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrDuplicateEnrollment):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "User is already enrolled in this session"})
	case errors.Is(err, services.ErrCapacityExceeded):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Session is full"})
	case errors.Is(err, services.ErrSessionArchived):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Session is archived"})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	case errors.Is(err, services.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	case errors.Is(err, services.ErrEnrollmentNotFound), errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Enrollment not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process enrollment request"})
	}
}
