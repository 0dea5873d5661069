package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachLedgerBack/internal/batch"
	"github.com/saeid-a/CoachLedgerBack/internal/logging"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
	"github.com/saeid-a/CoachLedgerBack/internal/repository"
)

const (
	referenceTypeExpense = "expense"
	defaultSessionLimit  = 30
	maxSessionLimit      = 200
)

type txStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type cashRegisterStore interface {
	Create(ctx context.Context, input repository.CreateCashRegisterInput) (*models.CashRegister, error)
	GetByID(ctx context.Context, id string) (*models.CashRegister, error)
	ListByUserID(ctx context.Context, userID int64) ([]models.CashRegister, error)
	Update(ctx context.Context, userID int64, id string, name *string, description *string) (*models.CashRegister, error)
	Deactivate(ctx context.Context, userID int64, id string) error
}

type cashSessionStore interface {
	GetByID(ctx context.Context, id string) (*models.CashSession, error)
	GetOpenByRegisterID(ctx context.Context, registerID string) (*models.CashSession, error)
	GetLatestOpenByUserID(ctx context.Context, userID int64) (*models.CashSession, error)
	ListOpenByUserID(ctx context.Context, userID int64) ([]models.CashSession, error)
	ListByRegisterID(ctx context.Context, registerID string, limit int) ([]models.CashSession, error)
}

type cashMovementStore interface {
	Create(ctx context.Context, input repository.CreateCashMovementInput) (*models.CashMovement, error)
	GetByID(ctx context.Context, id string) (*models.CashMovement, error)
	ListBySessionID(ctx context.Context, sessionID string) ([]models.CashMovement, error)
	Delete(ctx context.Context, userID int64, id string) error
	DeleteByReference(ctx context.Context, userID int64, referenceType string, referenceID string) (int64, error)
}

type expenseLister interface {
	List(ctx context.Context, filter repository.ExpenseListFilter) ([]models.Expense, error)
}

type CashService struct {
	db        txStarter
	registers cashRegisterStore
	sessions  cashSessionStore
	movements cashMovementStore
	expenses  expenseLister
	events    EventPublisher
	logger    zerolog.Logger
}

type RegisterInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type OpenSessionInput struct {
	OpeningBalance float64 `json:"opening_balance"`
	Notes          *string `json:"notes"`
}

type CloseSessionInput struct {
	ClosingBalance float64 `json:"closing_balance"`
	Notes          *string `json:"notes"`
}

type AddMovementInput struct {
	Type          models.CashMovementType     `json:"type"`
	Category      models.CashMovementCategory `json:"category"`
	Amount        float64                     `json:"amount"`
	PaymentMethod models.PaymentMethod        `json:"payment_method"`
	Description   string                      `json:"description"`
	Notes         *string                     `json:"notes"`
	ReferenceType *string                     `json:"reference_type"`
	ReferenceID   *string                     `json:"reference_id"`
}

func NewCashService(
	db txStarter,
	registers cashRegisterStore,
	sessions cashSessionStore,
	movements cashMovementStore,
	expenses expenseLister,
	events EventPublisher,
) *CashService {
	return &CashService{
		db:        db,
		registers: registers,
		sessions:  sessions,
		movements: movements,
		expenses:  expenses,
		events:    events,
		logger:    logging.Component("cash"),
	}
}

func (s *CashService) ListRegisters(ctx context.Context, userID int64) ([]models.CashRegister, error) {
	return s.registers.ListByUserID(ctx, userID)
}

func (s *CashService) CreateRegister(ctx context.Context, userID int64, input RegisterInput) (*models.CashRegister, error) {
	if input.Name == nil {
		return nil, ErrInvalidInput
	}
	name := strings.TrimSpace(*input.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	return s.registers.Create(ctx, repository.CreateCashRegisterInput{
		UserID:      userID,
		Name:        name,
		Description: input.Description,
	})
}

func (s *CashService) UpdateRegister(
	ctx context.Context,
	userID int64,
	registerID string,
	input RegisterInput,
) (*models.CashRegister, error) {
	if !models.IsValidID(registerID) || (input.Name == nil && input.Description == nil) {
		return nil, ErrInvalidInput
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		input.Name = &name
	}
	return s.registers.Update(ctx, userID, registerID, input.Name, input.Description)
}

// DeleteRegister deactivates a register. A register with an open session
// has to be closed first.
func (s *CashService) DeleteRegister(ctx context.Context, userID int64, registerID string) error {
	if _, err := s.ownedRegister(ctx, userID, registerID); err != nil {
		return err
	}

	_, err := s.sessions.GetOpenByRegisterID(ctx, registerID)
	switch {
	case err == nil:
		return ErrConflict
	case !isNotFound(err):
		return err
	}

	return s.registers.Deactivate(ctx, userID, registerID)
}

// OpenSession starts a new session on a register. A register holds at most
// one open session; a second attempt returns ErrConflict.
func (s *CashService) OpenSession(
	ctx context.Context,
	userID int64,
	registerID string,
	input OpenSessionInput,
) (*models.CashSessionDetail, error) {
	if !validAmount(input.OpeningBalance, true) {
		return nil, ErrInvalidInput
	}
	if _, err := s.ownedRegister(ctx, userID, registerID); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", registerID); err != nil {
		return nil, err
	}

	txSessionRepo := repository.NewCashSessionRepository(tx)
	_, err = txSessionRepo.GetOpenByRegisterID(ctx, registerID)
	switch {
	case err == nil:
		return nil, ErrConflict
	case !isNotFound(err):
		return nil, err
	}

	session, err := txSessionRepo.Open(ctx, repository.OpenCashSessionInput{
		UserID:         userID,
		CashRegisterID: registerID,
		OpeningBalance: roundCents(input.OpeningBalance),
		OpeningNotes:   input.Notes,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("register_id", registerID).
		Str("session_id", session.ID).
		Float64("opening_balance", session.OpeningBalance).
		Msg("Cash session opened")

	detail := &models.CashSessionDetail{
		CashSession: *session,
		Totals:      models.ComputeSessionTotals(session.OpeningBalance, nil),
	}
	s.publish(models.CashEventSessionOpened, userID, detail)
	return detail, nil
}

// CloseSession records the counted drawer amount together with the expected
// balance and the difference between them.
func (s *CashService) CloseSession(
	ctx context.Context,
	userID int64,
	sessionID string,
	input CloseSessionInput,
) (*models.CashSessionDetail, error) {
	if !models.IsValidID(sessionID) || !validAmount(input.ClosingBalance, true) {
		return nil, ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewCashSessionRepository(tx)
	txMovementRepo := repository.NewCashMovementRepository(tx)

	session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrForbidden
	}
	if session.Status != models.CashSessionOpen {
		return nil, ErrSessionClosed
	}

	movements, err := txMovementRepo.ListBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	totals := models.ComputeSessionTotals(session.OpeningBalance, movements)
	closing := roundCents(input.ClosingBalance)
	expected := roundCents(totals.Balance)

	closed, err := txSessionRepo.Close(ctx, sessionID, repository.CloseCashSessionInput{
		ClosingBalance:  closing,
		ExpectedBalance: expected,
		Difference:      roundCents(closing - expected),
		ClosingNotes:    input.Notes,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrSessionClosed
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logEvent := s.logger.Info()
	if closed.Difference != nil && *closed.Difference != 0 {
		logEvent = s.logger.Warn()
	}
	logEvent.
		Int64("user_id", userID).
		Str("session_id", sessionID).
		Float64("expected", expected).
		Float64("closing", closing).
		Msg("Cash session closed")

	detail := &models.CashSessionDetail{CashSession: *closed, Totals: totals}
	s.publish(models.CashEventSessionClosed, userID, detail)
	return detail, nil
}

func (s *CashService) CurrentSession(ctx context.Context, userID int64, registerID string) (*models.CashSessionDetail, error) {
	if _, err := s.ownedRegister(ctx, userID, registerID); err != nil {
		return nil, err
	}
	session, err := s.sessions.GetOpenByRegisterID(ctx, registerID)
	if err != nil {
		return nil, err
	}
	return s.withTotals(ctx, session)
}

func (s *CashService) ListSessions(
	ctx context.Context,
	userID int64,
	registerID string,
	limit int,
) ([]models.CashSession, error) {
	if _, err := s.ownedRegister(ctx, userID, registerID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSessionLimit
	}
	if limit > maxSessionLimit {
		limit = maxSessionLimit
	}
	return s.sessions.ListByRegisterID(ctx, registerID, limit)
}

func (s *CashService) GetSession(ctx context.Context, userID int64, sessionID string) (*models.CashSessionDetail, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.withTotals(ctx, session)
}

// SessionTotals sums a session's movements by type.
func (s *CashService) SessionTotals(ctx context.Context, userID int64, sessionID string) (*models.CashSessionTotals, error) {
	detail, err := s.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return &detail.Totals, nil
}

func (s *CashService) ListMovements(ctx context.Context, userID int64, sessionID string) ([]models.CashMovement, error) {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.movements.ListBySessionID(ctx, sessionID)
}

func (s *CashService) AddMovement(
	ctx context.Context,
	userID int64,
	sessionID string,
	input AddMovementInput,
) (*models.CashMovement, error) {
	description := strings.TrimSpace(input.Description)
	if !input.Type.IsValid() || !input.Category.IsValid() || !input.PaymentMethod.IsValid() ||
		!validAmount(input.Amount, false) || description == "" {
		return nil, ErrInvalidInput
	}

	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.CashSessionOpen {
		return nil, ErrSessionClosed
	}

	movement, err := s.movements.Create(ctx, repository.CreateCashMovementInput{
		UserID:         userID,
		CashSessionID:  session.ID,
		CashRegisterID: session.CashRegisterID,
		Type:           input.Type,
		Category:       input.Category,
		Amount:         roundCents(input.Amount),
		PaymentMethod:  input.PaymentMethod,
		ReferenceType:  input.ReferenceType,
		ReferenceID:    input.ReferenceID,
		Description:    description,
		Notes:          input.Notes,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrSessionClosed
		}
		return nil, err
	}

	s.publish(models.CashEventMovementAdded, userID, movement)
	return movement, nil
}

// DeleteMovement removes a movement from an open session. Closed sessions
// keep their movements so the recorded difference stays explainable.
func (s *CashService) DeleteMovement(ctx context.Context, userID int64, movementID string) error {
	if !models.IsValidID(movementID) {
		return ErrInvalidInput
	}
	movement, err := s.movements.GetByID(ctx, movementID)
	if err != nil {
		return err
	}
	if movement.UserID != userID {
		return ErrForbidden
	}

	session, err := s.sessions.GetByID(ctx, movement.CashSessionID)
	if err != nil {
		return err
	}
	if session.Status != models.CashSessionOpen {
		return ErrSessionClosed
	}

	if err := s.movements.Delete(ctx, userID, movementID); err != nil {
		if isNotFound(err) {
			return ErrSessionClosed
		}
		return err
	}
	s.publish(models.CashEventMovementRemoved, userID, movement)
	return nil
}

// RemoveMovementsByReference deletes the movements generated from one source
// record, such as a paid expense that was later removed.
func (s *CashService) RemoveMovementsByReference(
	ctx context.Context,
	userID int64,
	referenceType string,
	referenceID string,
) (int64, error) {
	referenceType = strings.TrimSpace(referenceType)
	referenceID = strings.TrimSpace(referenceID)
	if referenceType == "" || referenceID == "" {
		return 0, ErrInvalidInput
	}

	removed, err := s.movements.DeleteByReference(ctx, userID, referenceType, referenceID)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info().
			Int64("user_id", userID).
			Str("reference_type", referenceType).
			Str("reference_id", referenceID).
			Int64("removed", removed).
			Msg("Removed cash movements by reference")
		s.publish(models.CashEventMovementRemoved, userID, movementReference{Type: referenceType, ID: referenceID})
	}
	return removed, nil
}

// RecordExpensePayment books a paid expense in the newest open session of
// its owner. Having no open session is not an error.
func (s *CashService) RecordExpensePayment(ctx context.Context, expense *models.Expense) (*models.CashMovement, error) {
	if expense == nil || expense.PaymentStatus != models.PaymentStatusPaid {
		return nil, ErrInvalidInput
	}

	session, err := s.sessions.GetLatestOpenByUserID(ctx, expense.UserID)
	if err != nil {
		if isNotFound(err) {
			s.logger.Debug().Int64("user_id", expense.UserID).Str("expense_id", expense.ID).
				Msg("No open cash session, expense not booked")
			return nil, nil
		}
		return nil, err
	}

	referenceType := referenceTypeExpense
	referenceID := expense.ID
	movement, err := s.movements.Create(ctx, repository.CreateCashMovementInput{
		UserID:         expense.UserID,
		CashSessionID:  session.ID,
		CashRegisterID: session.CashRegisterID,
		Type:           models.MovementExpense,
		Category:       models.MovementCategoryExpense,
		Amount:         expense.Amount,
		PaymentMethod:  expense.PaymentMethod,
		ReferenceType:  &referenceType,
		ReferenceID:    &referenceID,
		Description:    fmt.Sprintf("%s - %s", expense.CategoryName, expense.Description),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrSessionClosed
		}
		return nil, err
	}

	s.publish(models.CashEventMovementAdded, expense.UserID, movement)
	return movement, nil
}

// Summary loads registers, open sessions and pending expenses concurrently.
// A failed part is reported as a warning; the call fails only when every
// part failed.
func (s *CashService) Summary(ctx context.Context, userID int64) (*models.CashSummary, error) {
	summary := &models.CashSummary{
		Registers:       []models.CashRegister{},
		OpenSessions:    []models.CashSession{},
		PendingExpenses: []models.Expense{},
	}

	errs := batch.Parallel(ctx,
		func(ctx context.Context) error {
			registers, err := s.registers.ListByUserID(ctx, userID)
			if err == nil {
				summary.Registers = registers
			}
			return err
		},
		func(ctx context.Context) error {
			sessions, err := s.sessions.ListOpenByUserID(ctx, userID)
			if err == nil {
				summary.OpenSessions = sessions
			}
			return err
		},
		func(ctx context.Context) error {
			expenses, err := s.expenses.List(ctx, repository.ExpenseListFilter{
				UserID: userID,
				Status: string(models.PaymentStatusPending),
			})
			if err == nil {
				summary.PendingExpenses = expenses
			}
			return err
		},
	)

	parts := []string{"registers", "open sessions", "pending expenses"}
	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			summary.Warnings = append(summary.Warnings, parts[i]+" unavailable")
		}
	}
	if failed == len(errs) {
		return nil, errs[0]
	}

	for _, expense := range summary.PendingExpenses {
		summary.PendingTotal += expense.Amount
	}
	summary.PendingTotal = roundCents(summary.PendingTotal)
	return summary, nil
}

func (s *CashService) ownedRegister(ctx context.Context, userID int64, registerID string) (*models.CashRegister, error) {
	if !models.IsValidID(registerID) {
		return nil, ErrInvalidInput
	}
	register, err := s.registers.GetByID(ctx, registerID)
	if err != nil {
		return nil, err
	}
	if register.UserID != userID {
		return nil, ErrForbidden
	}
	if !register.IsActive {
		return nil, pgx.ErrNoRows
	}
	return register, nil
}

func (s *CashService) ownedSession(ctx context.Context, userID int64, sessionID string) (*models.CashSession, error) {
	if !models.IsValidID(sessionID) {
		return nil, ErrInvalidInput
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrForbidden
	}
	return session, nil
}

func (s *CashService) withTotals(ctx context.Context, session *models.CashSession) (*models.CashSessionDetail, error) {
	movements, err := s.movements.ListBySessionID(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return &models.CashSessionDetail{
		CashSession: *session,
		Totals:      models.ComputeSessionTotals(session.OpeningBalance, movements),
	}, nil
}

func (s *CashService) publish(eventType models.CashEventType, userID int64, payload any) {
	if s.events == nil {
		return
	}
	s.events.Publish(models.NewCashEvent(eventType, userID, payload))
}

type movementReference struct {
	Type string `json:"reference_type"`
	ID   string `json:"reference_id"`
}

func validAmount(amount float64, allowZero bool) bool {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return false
	}
	if allowZero {
		return amount >= 0
	}
	return amount > 0
}

func roundCents(value float64) float64 {
	return math.Round(value*100) / 100
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
