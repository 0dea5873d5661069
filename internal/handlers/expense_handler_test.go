package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachLedgerBack/internal/batch"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
	"github.com/saeid-a/CoachLedgerBack/internal/repository"
	"github.com/saeid-a/CoachLedgerBack/internal/services"
)

type stubExpenseService struct {
	err            error
	expense        *models.Expense
	listResult     []models.Expense
	seedResult     *batch.Result[models.ExpenseCategory]
	overdueResult  *batch.Result[models.Expense]
	lastUserID     int64
	lastID         string
	lastFilter     repository.ExpenseListFilter
	lastCreate     services.CreateExpenseInput
	lastPaidAt     *time.Time
	lastAttachment []byte
	lastFilename   string
}

func (s *stubExpenseService) ListCategories(_ context.Context, userID int64, _ bool) ([]models.ExpenseCategory, error) {
	s.lastUserID = userID
	return []models.ExpenseCategory{}, s.err
}

func (s *stubExpenseService) CreateCategory(
	_ context.Context,
	userID int64,
	_ services.CategoryInput,
) (*models.ExpenseCategory, error) {
	s.lastUserID = userID
	return &models.ExpenseCategory{}, s.err
}

func (s *stubExpenseService) UpdateCategory(
	_ context.Context,
	userID int64,
	categoryID string,
	_ services.CategoryInput,
) (*models.ExpenseCategory, error) {
	s.lastUserID = userID
	s.lastID = categoryID
	return &models.ExpenseCategory{}, s.err
}

func (s *stubExpenseService) DeleteCategory(_ context.Context, userID int64, categoryID string) error {
	s.lastUserID = userID
	s.lastID = categoryID
	return s.err
}

func (s *stubExpenseService) SeedDefaultCategories(
	_ context.Context,
	userID int64,
) (*batch.Result[models.ExpenseCategory], error) {
	s.lastUserID = userID
	return s.seedResult, s.err
}

func (s *stubExpenseService) CreateExpense(
	_ context.Context,
	userID int64,
	input services.CreateExpenseInput,
) (*models.Expense, error) {
	s.lastUserID = userID
	s.lastCreate = input
	return s.expense, s.err
}

func (s *stubExpenseService) ListExpenses(
	_ context.Context,
	userID int64,
	filter repository.ExpenseListFilter,
) ([]models.Expense, error) {
	s.lastUserID = userID
	s.lastFilter = filter
	return s.listResult, s.err
}

func (s *stubExpenseService) GetExpense(_ context.Context, userID int64, expenseID string) (*models.Expense, error) {
	s.lastUserID = userID
	s.lastID = expenseID
	return s.expense, s.err
}

func (s *stubExpenseService) UpdateExpense(
	_ context.Context,
	userID int64,
	expenseID string,
	_ services.UpdateExpenseInput,
) (*models.Expense, error) {
	s.lastUserID = userID
	s.lastID = expenseID
	return s.expense, s.err
}

func (s *stubExpenseService) DeleteExpense(_ context.Context, userID int64, expenseID string) error {
	s.lastUserID = userID
	s.lastID = expenseID
	return s.err
}

func (s *stubExpenseService) MarkPaid(
	_ context.Context,
	userID int64,
	expenseID string,
	paidAt *time.Time,
) (*models.Expense, error) {
	s.lastUserID = userID
	s.lastID = expenseID
	s.lastPaidAt = paidAt
	return s.expense, s.err
}

func (s *stubExpenseService) MarkOverdue(
	_ context.Context,
	userID int64,
	_ batch.ProgressFunc,
) (*batch.Result[models.Expense], error) {
	s.lastUserID = userID
	return s.overdueResult, s.err
}

func (s *stubExpenseService) AddAttachment(
	_ context.Context,
	userID int64,
	expenseID string,
	input services.AttachmentInput,
) (*models.Expense, error) {
	s.lastUserID = userID
	s.lastID = expenseID
	s.lastFilename = input.Filename
	content, err := io.ReadAll(input.File)
	if err != nil {
		return nil, err
	}
	s.lastAttachment = content
	return s.expense, s.err
}

func newExpenseTestApp(service *stubExpenseService) *fiber.App {
	handler := NewExpenseHandler(service)
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", models.RoleCoach)
		c.Locals("user_id", "7")
		return c.Next()
	})
	app.Post("/expense-categories/defaults", handler.SeedDefaultCategories)
	app.Get("/expenses", handler.ListExpenses)
	app.Post("/expenses", handler.CreateExpense)
	app.Post("/expenses/overdue-sweep", handler.OverdueSweep)
	app.Get("/expenses/:id", handler.GetExpense)
	app.Post("/expenses/:id/pay", handler.MarkPaid)
	app.Post("/expenses/:id/attachments", handler.AddAttachment)
	return app
}

func TestCreateExpenseParsesDates(t *testing.T) {
	service := &stubExpenseService{expense: &models.Expense{ID: "e-1"}}
	app := newExpenseTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(`{
		"category_name": "Aluguel",
		"description": "Studio rent",
		"amount": 1500,
		"payment_method": "pix",
		"due_date": "2026-11-05"
	}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastCreate.PaymentMethod != models.PaymentMethodPix {
		t.Fatalf("unexpected payment method %q", service.lastCreate.PaymentMethod)
	}
	if service.lastCreate.DueDate == nil || service.lastCreate.DueDate.Format(time.DateOnly) != "2026-11-05" {
		t.Fatalf("unexpected due date %v", service.lastCreate.DueDate)
	}

	req = httptest.NewRequest(http.MethodPost, "/expenses",
		strings.NewReader(`{"description":"x","amount":1,"payment_method":"pix","due_date":"05/11/2026"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", resp.StatusCode)
	}
}

func TestListExpensesForwardsFilter(t *testing.T) {
	service := &stubExpenseService{listResult: []models.Expense{{ID: "e-1"}}}
	app := newExpenseTestApp(service)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/expenses?status=overdue&from=2026-10-01", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastFilter.Status != "overdue" || service.lastFilter.From == nil || service.lastFilter.To != nil {
		t.Fatalf("unexpected filter %+v", service.lastFilter)
	}
}

func TestExpenseErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{services.ErrInvalidStateTransition, http.StatusUnprocessableEntity},
		{services.ErrConflict, http.StatusConflict},
		{services.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{services.ErrForbidden, http.StatusForbidden},
	}

	for _, tc := range cases {
		service := &stubExpenseService{err: tc.err}
		app := newExpenseTestApp(service)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/expenses/e-1/pay", nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, resp.StatusCode)
		}
	}
}

func TestMarkPaidAcceptsOptionalTimestamp(t *testing.T) {
	service := &stubExpenseService{expense: &models.Expense{ID: "e-1", PaymentStatus: models.PaymentStatusPaid}}
	app := newExpenseTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/expenses/e-1/pay",
		strings.NewReader(`{"paid_at":"2026-10-16T14:30:00Z"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastID != "e-1" || service.lastPaidAt == nil || service.lastPaidAt.Hour() != 14 {
		t.Fatalf("unexpected forwarding %q %v", service.lastID, service.lastPaidAt)
	}
}

func TestAddAttachmentUploadsMultipartFile(t *testing.T) {
	service := &stubExpenseService{expense: &models.Expense{ID: "e-1"}}
	app := newExpenseTestApp(service)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "receipt.pdf")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte("receipt-bytes")); err != nil {
		t.Fatalf("part.Write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/expenses/e-1/attachments", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastFilename != "receipt.pdf" || string(service.lastAttachment) != "receipt-bytes" {
		t.Fatalf("unexpected upload %q %q", service.lastFilename, service.lastAttachment)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/expenses/e-1/attachments", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without file, got %d", resp.StatusCode)
	}
}

func TestSeedDefaultsConflict(t *testing.T) {
	service := &stubExpenseService{err: services.ErrConflict}
	app := newExpenseTestApp(service)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/expense-categories/defaults", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestOverdueSweepReturnsResult(t *testing.T) {
	service := &stubExpenseService{overdueResult: &batch.Result[models.Expense]{
		Success:        true,
		Data:           []models.Expense{{ID: "e-1", PaymentStatus: models.PaymentStatusOverdue}},
		TotalProcessed: 1,
		TotalSuccess:   1,
	}}
	app := newExpenseTestApp(service)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/expenses/overdue-sweep", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastUserID != 7 {
		t.Fatalf("expected user 7, got %d", service.lastUserID)
	}
}

func TestParseOptionalDate(t *testing.T) {
	if value, err := parseOptionalDate(""); err != nil || value != nil {
		t.Fatalf("expected nil for empty input, got %v %v", value, err)
	}
	if value, err := parseOptionalDate("2026-01-31"); err != nil || value.Day() != 31 {
		t.Fatalf("unexpected date %v %v", value, err)
	}
	if _, err := parseOptionalDate("tomorrow"); err == nil {
		t.Fatal("expected error for free text")
	}
}
