package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
	"github.com/saeid-a/CoachLedgerBack/internal/services"
)

type stubCashService struct {
	err          error
	session      *models.CashSessionDetail
	summary      *models.CashSummary
	lastUserID   int64
	lastID       string
	lastLimit    int
	lastOpen     services.OpenSessionInput
	lastClose    services.CloseSessionInput
	lastMovement services.AddMovementInput
}

func (s *stubCashService) ListRegisters(_ context.Context, userID int64) ([]models.CashRegister, error) {
	s.lastUserID = userID
	return []models.CashRegister{}, s.err
}

func (s *stubCashService) CreateRegister(
	_ context.Context,
	userID int64,
	_ services.RegisterInput,
) (*models.CashRegister, error) {
	s.lastUserID = userID
	return &models.CashRegister{}, s.err
}

func (s *stubCashService) UpdateRegister(
	_ context.Context,
	userID int64,
	registerID string,
	_ services.RegisterInput,
) (*models.CashRegister, error) {
	s.lastUserID = userID
	s.lastID = registerID
	return &models.CashRegister{}, s.err
}

func (s *stubCashService) DeleteRegister(_ context.Context, userID int64, registerID string) error {
	s.lastUserID = userID
	s.lastID = registerID
	return s.err
}

func (s *stubCashService) OpenSession(
	_ context.Context,
	userID int64,
	registerID string,
	input services.OpenSessionInput,
) (*models.CashSessionDetail, error) {
	s.lastUserID = userID
	s.lastID = registerID
	s.lastOpen = input
	return s.session, s.err
}

func (s *stubCashService) CloseSession(
	_ context.Context,
	userID int64,
	sessionID string,
	input services.CloseSessionInput,
) (*models.CashSessionDetail, error) {
	s.lastUserID = userID
	s.lastID = sessionID
	s.lastClose = input
	return s.session, s.err
}

func (s *stubCashService) CurrentSession(
	_ context.Context,
	userID int64,
	registerID string,
) (*models.CashSessionDetail, error) {
	s.lastUserID = userID
	s.lastID = registerID
	return s.session, s.err
}

func (s *stubCashService) ListSessions(
	_ context.Context,
	userID int64,
	registerID string,
	limit int,
) ([]models.CashSession, error) {
	s.lastUserID = userID
	s.lastID = registerID
	s.lastLimit = limit
	return []models.CashSession{}, s.err
}

func (s *stubCashService) GetSession(_ context.Context, userID int64, sessionID string) (*models.CashSessionDetail, error) {
	s.lastUserID = userID
	s.lastID = sessionID
	return s.session, s.err
}

func (s *stubCashService) ListMovements(_ context.Context, userID int64, sessionID string) ([]models.CashMovement, error) {
	s.lastUserID = userID
	s.lastID = sessionID
	return []models.CashMovement{}, s.err
}

func (s *stubCashService) AddMovement(
	_ context.Context,
	userID int64,
	sessionID string,
	input services.AddMovementInput,
) (*models.CashMovement, error) {
	s.lastUserID = userID
	s.lastID = sessionID
	s.lastMovement = input
	return &models.CashMovement{}, s.err
}

func (s *stubCashService) DeleteMovement(_ context.Context, userID int64, movementID string) error {
	s.lastUserID = userID
	s.lastID = movementID
	return s.err
}

func (s *stubCashService) Summary(_ context.Context, userID int64) (*models.CashSummary, error) {
	s.lastUserID = userID
	return s.summary, s.err
}

func newCashTestApp(service *stubCashService) *fiber.App {
	handler := NewCashHandler(service)
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", models.RoleCoach)
		c.Locals("user_id", "7")
		return c.Next()
	})
	app.Get("/cash/summary", handler.Summary)
	app.Get("/cash/registers/:id/sessions", handler.ListSessions)
	app.Post("/cash/registers/:id/sessions", handler.OpenSession)
	app.Get("/cash/registers/:id/sessions/current", handler.CurrentSession)
	app.Delete("/cash/registers/:id", handler.DeleteRegister)
	app.Post("/cash/sessions/:id/close", handler.CloseSession)
	app.Post("/cash/sessions/:id/movements", handler.AddMovement)
	app.Delete("/cash/movements/:id", handler.DeleteMovement)
	return app
}

func TestOpenSessionForwardsBalance(t *testing.T) {
	service := &stubCashService{session: &models.CashSessionDetail{}}
	app := newCashTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/cash/registers/r-1/sessions",
		strings.NewReader(`{"opening_balance":200,"notes":"morning"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastID != "r-1" || service.lastOpen.OpeningBalance != 200 {
		t.Fatalf("unexpected forwarding %q %+v", service.lastID, service.lastOpen)
	}
}

func TestOpenSessionConflict(t *testing.T) {
	service := &stubCashService{err: services.ErrConflict}
	app := newCashTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/cash/registers/r-1/sessions", strings.NewReader(`{"opening_balance":0}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestCloseSessionOnClosedSession(t *testing.T) {
	service := &stubCashService{err: services.ErrSessionClosed}
	app := newCashTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/cash/sessions/s-1/close", strings.NewReader(`{"closing_balance":235}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if service.lastClose.ClosingBalance != 235 {
		t.Fatalf("unexpected closing balance %v", service.lastClose.ClosingBalance)
	}
}

func TestCurrentSessionWithoutOpenSession(t *testing.T) {
	service := &stubCashService{err: pgx.ErrNoRows}
	app := newCashTestApp(service)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/cash/registers/r-1/sessions/current", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if session, ok := payload["session"]; !ok || session != nil {
		t.Fatalf("expected null session, got %v", payload)
	}
}

func TestListSessionsForwardsLimit(t *testing.T) {
	service := &stubCashService{}
	app := newCashTestApp(service)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/cash/registers/r-1/sessions?limit=5", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK || service.lastLimit != 5 {
		t.Fatalf("unexpected response %d limit %d", resp.StatusCode, service.lastLimit)
	}
}

func TestAddMovementParsesEnums(t *testing.T) {
	service := &stubCashService{}
	app := newCashTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/cash/sessions/s-1/movements", strings.NewReader(`{
		"type": "income",
		"category": "procedure",
		"amount": 80,
		"payment_method": "card",
		"description": "Consult"
	}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastMovement.Type != models.MovementIncome ||
		service.lastMovement.Category != models.MovementCategoryProcedure ||
		service.lastMovement.PaymentMethod != models.PaymentMethodCard {
		t.Fatalf("unexpected movement %+v", service.lastMovement)
	}
}

func TestDeleteRegisterStatuses(t *testing.T) {
	service := &stubCashService{}
	app := newCashTestApp(service)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/cash/registers/r-1", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	service.err = services.ErrForbidden
	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/cash/registers/r-1", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestSummaryIncludesWarnings(t *testing.T) {
	service := &stubCashService{summary: &models.CashSummary{
		Registers:       []models.CashRegister{},
		OpenSessions:    []models.CashSession{},
		PendingExpenses: []models.Expense{},
		Warnings:        []string{"pending expenses unavailable"},
	}}
	app := newCashTestApp(service)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/cash/summary", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Summary models.CashSummary `json:"summary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(payload.Summary.Warnings) != 1 {
		t.Fatalf("expected warning to be returned, got %+v", payload.Summary)
	}
}

func TestCashHandlerRejectsMissingUser(t *testing.T) {
	handler := NewCashHandler(&stubCashService{})
	app := fiber.New()
	app.Get("/cash/summary", handler.Summary)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/cash/summary", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
