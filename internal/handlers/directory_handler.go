package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/marc-dlt/StageBookingBack/internal/models"
	"github.com/marc-dlt/StageBookingBack/internal/repository"
)

type DirectoryHandler struct {
	directoryRepo *repository.DirectoryRepository
}

func NewDirectoryHandler(directoryRepo *repository.DirectoryRepository) *DirectoryHandler {
	return &DirectoryHandler{directoryRepo: directoryRepo}
}

type createDirectoryEntryRequest struct {
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name" validate:"required"`
	Email     string  `json:"email" validate:"required,email"`
	Phone     *string `json:"phone"`
}

func (h *DirectoryHandler) CreateInstructor(c *fiber.Ctx) error {
	var req createDirectoryEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	instructor := &models.Instructor{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     req.Phone,
	}
	if err := h.directoryRepo.CreateInstructor(c.Context(), instructor); err != nil {
		if repository.IsUniqueViolation(err, "") {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email already exists"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create instructor"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"instructor": instructor})
}

func (h *DirectoryHandler) CreatePsychologue(c *fiber.Ctx) error {
	var req createDirectoryEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	psychologue := &models.Psychologue{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     req.Phone,
	}
	if err := h.directoryRepo.CreatePsychologue(c.Context(), psychologue); err != nil {
		if repository.IsUniqueViolation(err, "") {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email already exists"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create psychologue"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"psychologue": psychologue})
}

func (h *DirectoryHandler) ArchiveInstructor(c *fiber.Ctx) error {
	instructorID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || instructorID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid instructor id"})
	}

	if err := h.directoryRepo.ArchiveInstructor(c.Context(), instructorID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to archive instructor"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *DirectoryHandler) ArchivePsychologue(c *fiber.Ctx) error {
	psychologueID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || psychologueID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid psychologue id"})
	}

	if err := h.directoryRepo.ArchivePsychologue(c.Context(), psychologueID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to archive psychologue"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
