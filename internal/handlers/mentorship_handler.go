package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachLedgerBack/internal/batch"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
	"github.com/saeid-a/CoachLedgerBack/internal/services"
)

type mentorshipApplicationService interface {
	Create(ctx context.Context, userID int64, input services.CreateMentorshipInput) (*models.Mentorship, error)
	List(ctx context.Context, userID int64, activeOnly bool) ([]models.Mentorship, error)
	Get(ctx context.Context, userID int64, id string) (*models.Mentorship, error)
	ListCatalog(ctx context.Context, coachID int64) ([]models.Mentorship, error)
	Update(ctx context.Context, userID int64, id string, patch models.MentorshipPatch) (*models.Mentorship, error)
	Delete(ctx context.Context, userID int64, id string) error
	BulkCreate(
		ctx context.Context,
		userID int64,
		inputs []services.CreateMentorshipInput,
		onProgress batch.ProgressFunc,
	) (*batch.Result[models.Mentorship], error)
	BulkUpdate(
		ctx context.Context,
		userID int64,
		changes []batch.Change[models.MentorshipPatch],
		onProgress batch.ProgressFunc,
	) (*batch.Result[models.Mentorship], error)
	BulkDelete(
		ctx context.Context,
		userID int64,
		ids []string,
		onProgress batch.ProgressFunc,
	) (*batch.Result[batch.Deleted], error)
	FetchMany(ctx context.Context, userID int64, ids []string) ([]models.Mentorship, error)
}

type MentorshipHandler struct {
	service mentorshipApplicationService
}

func NewMentorshipHandler(service mentorshipApplicationService) *MentorshipHandler {
	return &MentorshipHandler{service: service}
}

type mentorshipPatchRequest struct {
	ID          string   `json:"id"`
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Duration    *string  `json:"duration"`
	IsActive    *bool    `json:"is_active"`
}

func (r mentorshipPatchRequest) patch() models.MentorshipPatch {
	return models.MentorshipPatch{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Duration:    r.Duration,
		IsActive:    r.IsActive,
	}
}

type bulkCreateMentorshipsRequest struct {
	Items []services.CreateMentorshipInput `json:"items"`
}

type bulkUpdateMentorshipsRequest struct {
	Items []mentorshipPatchRequest `json:"items"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

func (h *MentorshipHandler) List(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	mentorships, err := h.service.List(c.Context(), userID, c.QueryBool("active_only", false))
	if err != nil {
		return mapMentorshipError(c, err)
	}
	page, meta := paginate(c, mentorships)
	return c.JSON(fiber.Map{"mentorships": page, "pagination": meta})
}

func (h *MentorshipHandler) Create(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	var req services.CreateMentorshipInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	mentorship, err := h.service.Create(c.Context(), userID, req)
	if err != nil {
		return mapMentorshipError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"mentorship": mentorship})
}

func (h *MentorshipHandler) Get(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	mentorship, err := h.service.Get(c.Context(), userID, c.Params("id"))
	if err != nil {
		return mapMentorshipError(c, err)
	}
	return c.JSON(fiber.Map{"mentorship": mentorship})
}

func (h *MentorshipHandler) Update(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	var req mentorshipPatchRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	mentorship, err := h.service.Update(c.Context(), userID, c.Params("id"), req.patch())
	if err != nil {
		return mapMentorshipError(c, err)
	}
	return c.JSON(fiber.Map{"mentorship": mentorship})
}

func (h *MentorshipHandler) Delete(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	if err := h.service.Delete(c.Context(), userID, c.Params("id")); err != nil {
		return mapMentorshipError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Catalog lists the active mentorships of a coach for any signed-in user.
func (h *MentorshipHandler) Catalog(c *fiber.Ctx) error {
	coachID, err := parsePathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid coach id"})
	}

	mentorships, err := h.service.ListCatalog(c.Context(), coachID)
	if err != nil {
		return mapMentorshipError(c, err)
	}
	return c.JSON(fiber.Map{"mentorships": mentorships})
}

func (h *MentorshipHandler) Lookup(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	ids := splitIDs(c.Query("ids"))
	if len(ids) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ids is required"})
	}

	if len(ids) > maxBulkItems {
		return tooManyItems(c)
	}

	mentorships, err := h.service.FetchMany(c.Context(), userID, ids)
	if err != nil {
		return mapMentorshipError(c, err)
	}
	return c.JSON(fiber.Map{"mentorships": mentorships})
}

func (h *MentorshipHandler) BulkCreate(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	var req bulkCreateMentorshipsRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	if len(req.Items) > maxBulkItems {
		return tooManyItems(c)
	}

	result, err := h.service.BulkCreate(c.Context(), userID, req.Items, nil)
	return respondBatch(c, result, err, mapMentorshipError)
}

func (h *MentorshipHandler) BulkUpdate(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	var req bulkUpdateMentorshipsRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	if len(req.Items) > maxBulkItems {
		return tooManyItems(c)
	}

	changes := make([]batch.Change[models.MentorshipPatch], 0, len(req.Items))
	for _, item := range req.Items {
		changes = append(changes, batch.Change[models.MentorshipPatch]{ID: item.ID, Patch: item.patch()})
	}

	result, err := h.service.BulkUpdate(c.Context(), userID, changes, nil)
	return respondBatch(c, result, err, mapMentorshipError)
}

func (h *MentorshipHandler) BulkDelete(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	var req bulkDeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	if len(req.IDs) > maxBulkItems {
		return tooManyItems(c)
	}

	result, err := h.service.BulkDelete(c.Context(), userID, req.IDs, nil)
	return respondBatch(c, result, err, mapMentorshipError)
}

// maxBulkItems caps one bulk HTTP request. Imports through cashctl are not
// capped.
const maxBulkItems = 1000

func tooManyItems(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestEntityTooLarge).
		JSON(fiber.Map{"error": fmt.Sprintf("At most %d items per request", maxBulkItems)})
}

// respondBatch reports a bulk result. A partial failure answers 207 with the
// per-item errors; a run that produced no result goes through mapErr.
func respondBatch[T any](
	c *fiber.Ctx,
	result *batch.Result[T],
	err error,
	mapErr func(*fiber.Ctx, error) error,
) error {
	if result == nil {
		if err == nil {
			err = errors.New("empty batch result")
		}
		return mapErr(c, err)
	}
	if result.Success && err == nil {
		return c.JSON(fiber.Map{"result": result})
	}
	return c.Status(fiber.StatusMultiStatus).JSON(fiber.Map{"result": result})
}

func mapMentorshipError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Mentorship already exists"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mentorship not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process mentorship request"})
	}
}
