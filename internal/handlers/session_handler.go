package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/marc-dlt/StageBookingBack/internal/models"
	"github.com/marc-dlt/StageBookingBack/internal/repository"
	"github.com/marc-dlt/StageBookingBack/internal/services"
)

var validate = validator.New()

type SessionHandler struct {
	service stageApplicationService
}

type stageApplicationService interface {
	CreateStage(ctx context.Context, input services.CreateStageInput) (*models.Session, error)
	ArchiveStage(ctx context.Context, sessionID int64) (*models.Session, error)
	ListStages(ctx context.Context, filter repository.SessionListFilter) ([]models.SessionAvailability, error)
	GetStage(ctx context.Context, sessionID int64) (*models.SessionAvailability, error)
}

func NewSessionHandler(service *services.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

type createStageRequest struct {
	NumeroStageAnts string          `json:"numero_stage_ants" validate:"required"`
	Price           decimal.Decimal `json:"price" validate:"required"`
	Currency        string          `json:"currency" validate:"required,len=3"`
	StartDate       string          `json:"start_date" validate:"required"`
	EndDate         string          `json:"end_date" validate:"required"`
	Capacity        int             `json:"capacity" validate:"required,min=1"`
	InstructorID    int64           `json:"instructor_id" validate:"required,min=1"`
	PsychologueID   int64           `json:"psychologue_id" validate:"required,min=1"`
}

func (h *SessionHandler) CreateStage(c *fiber.Ctx) error {
	var req createStageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	startDate, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartDate))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "start_date must be a valid RFC3339 timestamp"})
	}
	endDate, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndDate))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "end_date must be a valid RFC3339 timestamp"})
	}

	session, err := h.service.CreateStage(c.Context(), services.CreateStageInput{
		NumeroStageAnts: req.NumeroStageAnts,
		Price:           req.Price,
		Currency:        req.Currency,
		StartDate:       startDate,
		EndDate:         endDate,
		Capacity:        req.Capacity,
		InstructorID:    req.InstructorID,
		PsychologueID:   req.PsychologueID,
	})
	if err != nil {
		return mapStageError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) ArchiveStage(c *fiber.Ctx) error {
	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.ArchiveStage(c.Context(), sessionID)
	if err != nil {
		return mapStageError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) ListStages(c *fiber.Ctx) error {
	timeframe := strings.TrimSpace(c.Query("timeframe"))
	if timeframe != "" && timeframe != "upcoming" && timeframe != "past" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "timeframe must be upcoming or past"})
	}

	sessions, err := h.service.ListStages(c.Context(), repository.SessionListFilter{
		Timeframe:       timeframe,
		IncludeArchived: c.QueryBool("include_archived"),
	})
	if err != nil {
		return mapStageError(c, err)
	}

	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *SessionHandler) GetStage(c *fiber.Ctx) error {
	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.GetStage(c.Context(), sessionID)
	if err != nil {
		return mapStageError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func mapStageError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Stage reference already exists"})
	case errors.Is(err, services.ErrInstructorNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Instructor not found"})
	case errors.Is(err, services.ErrPsychologueNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Psychologue not found"})
	case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process session request"})
	}
}
