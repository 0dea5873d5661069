package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
	"github.com/saeid-a/CoachLedgerBack/internal/services"
)

type cashApplicationService interface {
	ListRegisters(ctx context.Context, userID int64) ([]models.CashRegister, error)
	CreateRegister(ctx context.Context, userID int64, input services.RegisterInput) (*models.CashRegister, error)
	UpdateRegister(
		ctx context.Context,
		userID int64,
		registerID string,
		input services.RegisterInput,
	) (*models.CashRegister, error)
	DeleteRegister(ctx context.Context, userID int64, registerID string) error
	OpenSession(
		ctx context.Context,
		userID int64,
		registerID string,
		input services.OpenSessionInput,
	) (*models.CashSessionDetail, error)
	CloseSession(
		ctx context.Context,
		userID int64,
		sessionID string,
		input services.CloseSessionInput,
	) (*models.CashSessionDetail, error)
	CurrentSession(ctx context.Context, userID int64, registerID string) (*models.CashSessionDetail, error)
	ListSessions(ctx context.Context, userID int64, registerID string, limit int) ([]models.CashSession, error)
	GetSession(ctx context.Context, userID int64, sessionID string) (*models.CashSessionDetail, error)
	ListMovements(ctx context.Context, userID int64, sessionID string) ([]models.CashMovement, error)
	AddMovement(
		ctx context.Context,
		userID int64,
		sessionID string,
		input services.AddMovementInput,
	) (*models.CashMovement, error)
	DeleteMovement(ctx context.Context, userID int64, movementID string) error
	Summary(ctx context.Context, userID int64) (*models.CashSummary, error)
}

type CashHandler struct {
	service cashApplicationService
}

func NewCashHandler(service cashApplicationService) *CashHandler {
	return &CashHandler{service: service}
}

func (h *CashHandler) ListRegisters(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	registers, err := h.service.ListRegisters(c.Context(), userID)
	if err != nil {
		return mapCashError(c, err)
	}
	return c.JSON(fiber.Map{"registers": registers})
}

func (h *CashHandler) CreateRegister(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	var req services.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	register, err := h.service.CreateRegister(c.Context(), userID, req)
	if err != nil {
		return mapCashError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"register": register})
}

func (h *CashHandler) UpdateRegister(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	var req services.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	register, err := h.service.UpdateRegister(c.Context(), userID, c.Params("id"), req)
	if err != nil {
		return mapCashError(c, err)
	}
	return c.JSON(fiber.Map{"register": register})
}

func (h *CashHandler) DeleteRegister(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	if err := h.service.DeleteRegister(c.Context(), userID, c.Params("id")); err != nil {
		return mapCashError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CashHandler) ListSessions(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	sessions, err := h.service.ListSessions(c.Context(), userID, c.Params("id"), c.QueryInt("limit", 0))
	if err != nil {
		return mapCashError(c, err)
	}
	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *CashHandler) OpenSession(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	var req services.OpenSessionInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	session, err := h.service.OpenSession(c.Context(), userID, c.Params("id"), req)
	if err != nil {
		return mapCashError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": session})
}

func (h *CashHandler) CurrentSession(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	session, err := h.service.CurrentSession(c.Context(), userID, c.Params("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(fiber.Map{"session": nil})
		}
		return mapCashError(c, err)
	}
	return c.JSON(fiber.Map{"session": session})
}

func (h *CashHandler) GetSession(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	session, err := h.service.GetSession(c.Context(), userID, c.Params("id"))
	if err != nil {
		return mapCashError(c, err)
	}
	return c.JSON(fiber.Map{"session": session})
}

func (h *CashHandler) CloseSession(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	var req services.CloseSessionInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	session, err := h.service.CloseSession(c.Context(), userID, c.Params("id"), req)
	if err != nil {
		return mapCashError(c, err)
	}
	return c.JSON(fiber.Map{"session": session})
}

func (h *CashHandler) ListMovements(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	movements, err := h.service.ListMovements(c.Context(), userID, c.Params("id"))
	if err != nil {
		return mapCashError(c, err)
	}
	return c.JSON(fiber.Map{"movements": movements})
}

func (h *CashHandler) AddMovement(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	var req services.AddMovementInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	movement, err := h.service.AddMovement(c.Context(), userID, c.Params("id"), req)
	if err != nil {
		return mapCashError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"movement": movement})
}

func (h *CashHandler) DeleteMovement(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	if err := h.service.DeleteMovement(c.Context(), userID, c.Params("id")); err != nil {
		return mapCashError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CashHandler) Summary(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	summary, err := h.service.Summary(c.Context(), userID)
	if err != nil {
		return mapCashError(c, err)
	}
	return c.JSON(fiber.Map{"summary": summary})
}

func mapCashError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).
			JSON(fiber.Map{"error": "Cash register already has an open session"})
	case errors.Is(err, services.ErrSessionClosed):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Cash session is closed"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).
			JSON(fiber.Map{"error": "Cash record not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process cash request"})
	}
}
