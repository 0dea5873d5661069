package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachLedgerBack/internal/batch"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
	"github.com/saeid-a/CoachLedgerBack/internal/repository"
	"github.com/saeid-a/CoachLedgerBack/internal/services"
)

const maxAttachmentSizeBytes = 10 * 1024 * 1024

var errInvalidDate = errors.New("invalid date")

type expenseApplicationService interface {
	ListCategories(ctx context.Context, userID int64, activeOnly bool) ([]models.ExpenseCategory, error)
	CreateCategory(ctx context.Context, userID int64, input services.CategoryInput) (*models.ExpenseCategory, error)
	UpdateCategory(
		ctx context.Context,
		userID int64,
		categoryID string,
		input services.CategoryInput,
	) (*models.ExpenseCategory, error)
	DeleteCategory(ctx context.Context, userID int64, categoryID string) error
	SeedDefaultCategories(ctx context.Context, userID int64) (*batch.Result[models.ExpenseCategory], error)
	CreateExpense(ctx context.Context, userID int64, input services.CreateExpenseInput) (*models.Expense, error)
	ListExpenses(ctx context.Context, userID int64, filter repository.ExpenseListFilter) ([]models.Expense, error)
	GetExpense(ctx context.Context, userID int64, expenseID string) (*models.Expense, error)
	UpdateExpense(
		ctx context.Context,
		userID int64,
		expenseID string,
		input services.UpdateExpenseInput,
	) (*models.Expense, error)
	DeleteExpense(ctx context.Context, userID int64, expenseID string) error
	MarkPaid(ctx context.Context, userID int64, expenseID string, paidAt *time.Time) (*models.Expense, error)
	MarkOverdue(ctx context.Context, userID int64, onProgress batch.ProgressFunc) (*batch.Result[models.Expense], error)
	AddAttachment(
		ctx context.Context,
		userID int64,
		expenseID string,
		input services.AttachmentInput,
	) (*models.Expense, error)
}

type ExpenseHandler struct {
	service expenseApplicationService
}

func NewExpenseHandler(service expenseApplicationService) *ExpenseHandler {
	return &ExpenseHandler{service: service}
}

type createExpenseRequest struct {
	CategoryID         *string                    `json:"category_id"`
	CategoryName       *string                    `json:"category_name"`
	Description        string                     `json:"description"`
	Amount             float64                    `json:"amount"`
	PaymentMethod      models.PaymentMethod       `json:"payment_method"`
	PaymentStatus      models.PaymentStatus       `json:"payment_status"`
	DueDate            string                     `json:"due_date"`
	IsRecurring        bool                       `json:"is_recurring"`
	RecurringFrequency *models.RecurringFrequency `json:"recurring_frequency"`
	RecurringDay       *int                       `json:"recurring_day"`
	RecurringEndDate   string                     `json:"recurring_end_date"`
	ParentExpenseID    *string                    `json:"parent_expense_id"`
	Notes              *string                    `json:"notes"`
}

type updateExpenseRequest struct {
	CategoryID    *string               `json:"category_id"`
	Description   *string               `json:"description"`
	Amount        *float64              `json:"amount"`
	PaymentMethod *models.PaymentMethod `json:"payment_method"`
	DueDate       string                `json:"due_date"`
	Notes         *string               `json:"notes"`
}

type markPaidRequest struct {
	PaidAt string `json:"paid_at"`
}

func (h *ExpenseHandler) ListCategories(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	categories, err := h.service.ListCategories(c.Context(), userID, c.QueryBool("active_only", false))
	if err != nil {
		return mapExpenseError(c, err)
	}
	return c.JSON(fiber.Map{"categories": categories})
}

func (h *ExpenseHandler) CreateCategory(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	var req services.CategoryInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	category, err := h.service.CreateCategory(c.Context(), userID, req)
	if err != nil {
		return mapExpenseError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"category": category})
}

func (h *ExpenseHandler) UpdateCategory(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	var req services.CategoryInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	category, err := h.service.UpdateCategory(c.Context(), userID, c.Params("id"), req)
	if err != nil {
		return mapExpenseError(c, err)
	}
	return c.JSON(fiber.Map{"category": category})
}

func (h *ExpenseHandler) DeleteCategory(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	if err := h.service.DeleteCategory(c.Context(), userID, c.Params("id")); err != nil {
		return mapExpenseError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ExpenseHandler) SeedDefaultCategories(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	result, err := h.service.SeedDefaultCategories(c.Context(), userID)
	return respondBatch(c, result, err, mapExpenseError)
}

func (h *ExpenseHandler) ListExpenses(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	from, err := parseOptionalDate(c.Query("from"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "from must be a date (YYYY-MM-DD)"})
	}
	to, err := parseOptionalDate(c.Query("to"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "to must be a date (YYYY-MM-DD)"})
	}

	expenses, err := h.service.ListExpenses(c.Context(), userID, repository.ExpenseListFilter{
		Status: strings.TrimSpace(c.Query("status")),
		From:   from,
		To:     to,
	})
	if err != nil {
		return mapExpenseError(c, err)
	}
	page, meta := paginate(c, expenses)
	return c.JSON(fiber.Map{"expenses": page, "pagination": meta})
}

func (h *ExpenseHandler) CreateExpense(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	var req createExpenseRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	dueDate, err := parseOptionalDate(req.DueDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "due_date must be a date (YYYY-MM-DD)"})
	}
	recurringEndDate, err := parseOptionalDate(req.RecurringEndDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "recurring_end_date must be a date (YYYY-MM-DD)"})
	}

	expense, err := h.service.CreateExpense(c.Context(), userID, services.CreateExpenseInput{
		CategoryID:         req.CategoryID,
		CategoryName:       req.CategoryName,
		Description:        req.Description,
		Amount:             req.Amount,
		PaymentMethod:      req.PaymentMethod,
		PaymentStatus:      req.PaymentStatus,
		DueDate:            dueDate,
		IsRecurring:        req.IsRecurring,
		RecurringFrequency: req.RecurringFrequency,
		RecurringDay:       req.RecurringDay,
		RecurringEndDate:   recurringEndDate,
		ParentExpenseID:    req.ParentExpenseID,
		Notes:              req.Notes,
	})
	if err != nil {
		return mapExpenseError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"expense": expense})
}

func (h *ExpenseHandler) GetExpense(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	expense, err := h.service.GetExpense(c.Context(), userID, c.Params("id"))
	if err != nil {
		return mapExpenseError(c, err)
	}
	return c.JSON(fiber.Map{"expense": expense})
}

func (h *ExpenseHandler) UpdateExpense(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	var req updateExpenseRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	dueDate, err := parseOptionalDate(req.DueDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "due_date must be a date (YYYY-MM-DD)"})
	}

	expense, err := h.service.UpdateExpense(c.Context(), userID, c.Params("id"), services.UpdateExpenseInput{
		CategoryID:    req.CategoryID,
		Description:   req.Description,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		DueDate:       dueDate,
		Notes:         req.Notes,
	})
	if err != nil {
		return mapExpenseError(c, err)
	}
	return c.JSON(fiber.Map{"expense": expense})
}

func (h *ExpenseHandler) DeleteExpense(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	if err := h.service.DeleteExpense(c.Context(), userID, c.Params("id")); err != nil {
		return mapExpenseError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ExpenseHandler) MarkPaid(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	var req markPaidRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
	}
	paidAt, err := parseOptionalDate(req.PaidAt)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "paid_at must be a date or RFC3339 timestamp"})
	}

	expense, err := h.service.MarkPaid(c.Context(), userID, c.Params("id"), paidAt)
	if err != nil {
		return mapExpenseError(c, err)
	}
	return c.JSON(fiber.Map{"expense": expense})
}

func (h *ExpenseHandler) AddAttachment(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}
	if fileHeader.Size <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is empty"})
	}
	if fileHeader.Size > maxAttachmentSizeBytes {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file exceeds 10MB limit"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to open file"})
	}
	defer file.Close()

	expense, err := h.service.AddAttachment(c.Context(), userID, c.Params("id"), services.AttachmentInput{
		File:     file,
		Filename: fileHeader.Filename,
		Type:     fileHeader.Header.Get("Content-Type"),
	})
	if err != nil {
		return mapExpenseError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"expense": expense})
}

// OverdueSweep marks the caller's pending expenses that are past due.
func (h *ExpenseHandler) OverdueSweep(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return invalidToken(c)
	}

	result, err := h.service.MarkOverdue(c.Context(), userID, nil)
	return respondBatch(c, result, err, mapExpenseError)
}

// parseOptionalDate accepts YYYY-MM-DD or RFC3339. Empty input yields nil.
func parseOptionalDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed, nil
		}
	}
	return nil, errInvalidDate
}

func mapExpenseError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).
			JSON(fiber.Map{"error": "Expense or category conflicts with existing data"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusUnprocessableEntity).
			JSON(fiber.Map{"error": "Payment status transition not allowed"})
	case errors.Is(err, services.ErrStorageUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).
			JSON(fiber.Map{"error": "Storage service is not configured"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Expense or category not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process expense request"})
	}
}
