package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachLedgerBack/internal/batch"
	"github.com/saeid-a/CoachLedgerBack/internal/config"
	"github.com/saeid-a/CoachLedgerBack/internal/logging"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
	"github.com/saeid-a/CoachLedgerBack/internal/repository"
)

const (
	defaultCategoryName  = "Outros"
	defaultCategoryColor = "#94A3B8"
	defaultCategoryIcon  = "MoreHorizontal"
)

type expenseCategoryStore interface {
	Create(ctx context.Context, input repository.CreateExpenseCategoryInput) (*models.ExpenseCategory, error)
	InsertMany(ctx context.Context, inputs []repository.CreateExpenseCategoryInput) ([]models.ExpenseCategory, error)
	GetByID(ctx context.Context, id string) (*models.ExpenseCategory, error)
	ListByUserID(ctx context.Context, userID int64, activeOnly bool) ([]models.ExpenseCategory, error)
	CountByUserID(ctx context.Context, userID int64) (int, error)
	Update(ctx context.Context, userID int64, id string, input repository.UpdateExpenseCategoryInput) (*models.ExpenseCategory, error)
	Delete(ctx context.Context, userID int64, id string) error
}

type expenseStore interface {
	Create(ctx context.Context, input repository.CreateExpenseInput) (*models.Expense, error)
	GetByID(ctx context.Context, id string) (*models.Expense, error)
	List(ctx context.Context, filter repository.ExpenseListFilter) ([]models.Expense, error)
	ListOverdueCandidates(ctx context.Context, userID int64, today time.Time) ([]models.Expense, error)
	Update(ctx context.Context, userID int64, id string, input repository.UpdateExpenseInput) (*models.Expense, error)
	UpdateStatusIfCurrent(
		ctx context.Context,
		id string,
		currentStatus models.PaymentStatus,
		nextStatus models.PaymentStatus,
		paidAt *time.Time,
	) (*models.Expense, error)
	AppendAttachment(ctx context.Context, userID int64, id string, attachment models.ExpenseAttachment) (*models.Expense, error)
	Delete(ctx context.Context, userID int64, id string) error
}

// cashBook is the part of CashService that expenses write into.
type cashBook interface {
	RecordExpensePayment(ctx context.Context, expense *models.Expense) (*models.CashMovement, error)
	RemoveMovementsByReference(ctx context.Context, userID int64, referenceType string, referenceID string) (int64, error)
}

type ExpenseService struct {
	categories expenseCategoryStore
	expenses   expenseStore
	cash       cashBook
	storage    StorageService
	events     EventPublisher
	batchCfg   config.BatchConfig
	logger     zerolog.Logger
	now        func() time.Time
}

type CategoryInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	Icon        *string `json:"icon"`
	IsActive    *bool   `json:"is_active"`
}

type CreateExpenseInput struct {
	CategoryID         *string                    `json:"category_id"`
	CategoryName       *string                    `json:"category_name"`
	Description        string                     `json:"description"`
	Amount             float64                    `json:"amount"`
	PaymentMethod      models.PaymentMethod       `json:"payment_method"`
	PaymentStatus      models.PaymentStatus       `json:"payment_status"`
	DueDate            *time.Time                 `json:"due_date"`
	IsRecurring        bool                       `json:"is_recurring"`
	RecurringFrequency *models.RecurringFrequency `json:"recurring_frequency"`
	RecurringDay       *int                       `json:"recurring_day"`
	RecurringEndDate   *time.Time                 `json:"recurring_end_date"`
	ParentExpenseID    *string                    `json:"parent_expense_id"`
	Notes              *string                    `json:"notes"`
}

type UpdateExpenseInput struct {
	CategoryID    *string               `json:"category_id"`
	Description   *string               `json:"description"`
	Amount        *float64              `json:"amount"`
	PaymentMethod *models.PaymentMethod `json:"payment_method"`
	DueDate       *time.Time            `json:"due_date"`
	Notes         *string               `json:"notes"`
}

type AttachmentInput struct {
	File     io.Reader
	Filename string
	Type     string
}

func NewExpenseService(
	categories expenseCategoryStore,
	expenses expenseStore,
	cash cashBook,
	storage StorageService,
	events EventPublisher,
	batchCfg config.BatchConfig,
) *ExpenseService {
	return &ExpenseService{
		categories: categories,
		expenses:   expenses,
		cash:       cash,
		storage:    storage,
		events:     events,
		batchCfg:   batchCfg,
		logger:     logging.Component("expenses"),
		now:        time.Now,
	}
}

func (s *ExpenseService) ListCategories(ctx context.Context, userID int64, activeOnly bool) ([]models.ExpenseCategory, error) {
	return s.categories.ListByUserID(ctx, userID, activeOnly)
}

func (s *ExpenseService) CreateCategory(ctx context.Context, userID int64, input CategoryInput) (*models.ExpenseCategory, error) {
	if input.Name == nil {
		return nil, ErrInvalidInput
	}
	name := strings.TrimSpace(*input.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}

	category, err := s.categories.Create(ctx, repository.CreateExpenseCategoryInput{
		UserID:      userID,
		Name:        name,
		Description: input.Description,
		Color:       valueOr(input.Color, defaultCategoryColor),
		Icon:        valueOr(input.Icon, defaultCategoryIcon),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return category, nil
}

func (s *ExpenseService) UpdateCategory(
	ctx context.Context,
	userID int64,
	categoryID string,
	input CategoryInput,
) (*models.ExpenseCategory, error) {
	if !models.IsValidID(categoryID) {
		return nil, ErrInvalidInput
	}
	if input.Name == nil && input.Description == nil && input.Color == nil && input.Icon == nil && input.IsActive == nil {
		return nil, ErrInvalidInput
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		input.Name = &name
	}

	category, err := s.categories.Update(ctx, userID, categoryID, repository.UpdateExpenseCategoryInput{
		Name:        input.Name,
		Description: input.Description,
		Color:       input.Color,
		Icon:        input.Icon,
		IsActive:    input.IsActive,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return category, nil
}

func (s *ExpenseService) DeleteCategory(ctx context.Context, userID int64, categoryID string) error {
	if !models.IsValidID(categoryID) {
		return ErrInvalidInput
	}
	return s.categories.Delete(ctx, userID, categoryID)
}

// SeedDefaultCategories creates the starter categories for a user who has
// none yet. Users that already have categories get ErrConflict.
func (s *ExpenseService) SeedDefaultCategories(
	ctx context.Context,
	userID int64,
) (*batch.Result[models.ExpenseCategory], error) {
	count, err := s.categories.CountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrConflict
	}

	records := make([]repository.CreateExpenseCategoryInput, 0, len(models.DefaultExpenseCategories))
	for _, category := range models.DefaultExpenseCategories {
		description := category.Description
		records = append(records, repository.CreateExpenseCategoryInput{
			UserID:      userID,
			Name:        category.Name,
			Description: &description,
			Color:       category.Color,
			Icon:        category.Icon,
		})
	}

	result, err := batch.Insert(ctx, s.categories.InsertMany, records, batchOptions(s.batchCfg, nil))
	if err != nil {
		return result, err
	}
	s.logger.Info().Int64("user_id", userID).Int("created", result.TotalSuccess).Msg("Seeded default expense categories")
	return result, nil
}

func (s *ExpenseService) CreateExpense(ctx context.Context, userID int64, input CreateExpenseInput) (*models.Expense, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" || !validAmount(input.Amount, false) || !input.PaymentMethod.IsValid() {
		return nil, ErrInvalidInput
	}

	status := input.PaymentStatus
	if status == "" {
		status = models.PaymentStatusPending
	}
	if !status.IsValid() {
		return nil, ErrInvalidInput
	}
	if input.IsRecurring {
		if input.RecurringFrequency == nil || !input.RecurringFrequency.IsValid() {
			return nil, ErrInvalidInput
		}
		if input.RecurringDay != nil && (*input.RecurringDay < 1 || *input.RecurringDay > 31) {
			return nil, ErrInvalidInput
		}
	}
	if input.ParentExpenseID != nil && !models.IsValidID(*input.ParentExpenseID) {
		return nil, ErrInvalidInput
	}

	categoryID, categoryName, err := s.resolveCategory(ctx, userID, input.CategoryID, input.CategoryName)
	if err != nil {
		return nil, err
	}

	var paidAt *time.Time
	if status == models.PaymentStatusPaid {
		now := s.now().UTC()
		paidAt = &now
	}

	expense, err := s.expenses.Create(ctx, repository.CreateExpenseInput{
		UserID:             userID,
		CategoryID:         categoryID,
		CategoryName:       categoryName,
		Description:        description,
		Amount:             roundCents(input.Amount),
		PaymentMethod:      input.PaymentMethod,
		PaymentStatus:      status,
		DueDate:            input.DueDate,
		PaidAt:             paidAt,
		IsRecurring:        input.IsRecurring,
		RecurringFrequency: input.RecurringFrequency,
		RecurringDay:       input.RecurringDay,
		RecurringEndDate:   input.RecurringEndDate,
		ParentExpenseID:    input.ParentExpenseID,
		Notes:              input.Notes,
	})
	if err != nil {
		return nil, err
	}

	if expense.PaymentStatus == models.PaymentStatusPaid {
		s.bookPayment(ctx, expense)
	}
	return expense, nil
}

func (s *ExpenseService) ListExpenses(ctx context.Context, userID int64, filter repository.ExpenseListFilter) ([]models.Expense, error) {
	if filter.Status != "" {
		status, err := models.ParsePaymentStatus(filter.Status)
		if err != nil {
			return nil, ErrInvalidInput
		}
		filter.Status = string(status)
	}
	filter.UserID = userID
	return s.expenses.List(ctx, filter)
}

func (s *ExpenseService) GetExpense(ctx context.Context, userID int64, expenseID string) (*models.Expense, error) {
	if !models.IsValidID(expenseID) {
		return nil, ErrInvalidInput
	}
	expense, err := s.expenses.GetByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense.UserID != userID {
		return nil, ErrForbidden
	}
	return expense, nil
}

// UpdateExpense edits the descriptive fields. Payment status only moves
// through MarkPaid and the overdue sweep.
func (s *ExpenseService) UpdateExpense(
	ctx context.Context,
	userID int64,
	expenseID string,
	input UpdateExpenseInput,
) (*models.Expense, error) {
	if !models.IsValidID(expenseID) {
		return nil, ErrInvalidInput
	}
	if input.CategoryID == nil && input.Description == nil && input.Amount == nil &&
		input.PaymentMethod == nil && input.DueDate == nil && input.Notes == nil {
		return nil, ErrInvalidInput
	}

	update := repository.UpdateExpenseInput{
		DueDate: input.DueDate,
		Notes:   input.Notes,
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return nil, ErrInvalidInput
		}
		update.Description = &description
	}
	if input.Amount != nil {
		if !validAmount(*input.Amount, false) {
			return nil, ErrInvalidInput
		}
		amount := roundCents(*input.Amount)
		update.Amount = &amount
	}
	if input.PaymentMethod != nil {
		if !input.PaymentMethod.IsValid() {
			return nil, ErrInvalidInput
		}
		update.PaymentMethod = input.PaymentMethod
	}
	if input.CategoryID != nil {
		categoryID, categoryName, err := s.resolveCategory(ctx, userID, input.CategoryID, nil)
		if err != nil {
			return nil, err
		}
		update.CategoryID = categoryID
		update.CategoryName = &categoryName
	}

	return s.expenses.Update(ctx, userID, expenseID, update)
}

// DeleteExpense removes the expense and any cash movement booked for it.
func (s *ExpenseService) DeleteExpense(ctx context.Context, userID int64, expenseID string) error {
	if !models.IsValidID(expenseID) {
		return ErrInvalidInput
	}
	if err := s.expenses.Delete(ctx, userID, expenseID); err != nil {
		return err
	}

	if s.cash != nil {
		if _, err := s.cash.RemoveMovementsByReference(ctx, userID, referenceTypeExpense, expenseID); err != nil {
			s.logger.Error().Err(err).Str("expense_id", expenseID).Msg("Failed to remove cash movements of deleted expense")
		}
	}
	return nil
}

// MarkPaid settles a pending or overdue expense and books it in the open
// cash session, if there is one.
func (s *ExpenseService) MarkPaid(
	ctx context.Context,
	userID int64,
	expenseID string,
	paidAt *time.Time,
) (*models.Expense, error) {
	expense, err := s.GetExpense(ctx, userID, expenseID)
	if err != nil {
		return nil, err
	}
	if !expense.PaymentStatus.CanTransitionTo(models.PaymentStatusPaid) {
		return nil, ErrInvalidStateTransition
	}

	when := s.now().UTC()
	if paidAt != nil {
		when = paidAt.UTC()
	}

	updated, err := s.expenses.UpdateStatusIfCurrent(ctx, expense.ID, expense.PaymentStatus, models.PaymentStatusPaid, &when)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrConflict
		}
		return nil, err
	}

	s.bookPayment(ctx, updated)
	if s.events != nil {
		s.events.Publish(models.NewCashEvent(models.CashEventExpensePaid, userID, updated))
	}
	return updated, nil
}

// MarkOverdue moves the user's pending expenses whose due date has passed to
// overdue. Rows paid in the meantime show up as item errors.
func (s *ExpenseService) MarkOverdue(
	ctx context.Context,
	userID int64,
	onProgress batch.ProgressFunc,
) (*batch.Result[models.Expense], error) {
	candidates, err := s.expenses.ListOverdueCandidates(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, err
	}

	changes := make([]batch.Change[models.PaymentStatus], 0, len(candidates))
	for _, expense := range candidates {
		changes = append(changes, batch.Change[models.PaymentStatus]{ID: expense.ID, Patch: models.PaymentStatusOverdue})
	}

	update := func(ctx context.Context, id string, next models.PaymentStatus) (models.Expense, error) {
		expense, err := s.expenses.UpdateStatusIfCurrent(ctx, id, models.PaymentStatusPending, next, nil)
		if err != nil {
			if isNotFound(err) {
				return models.Expense{}, ErrInvalidStateTransition
			}
			return models.Expense{}, err
		}
		return *expense, nil
	}

	result, err := batch.Update(ctx, update, changes, batchOptions(s.batchCfg, onProgress))
	if err != nil {
		return result, err
	}
	if result.TotalProcessed > 0 {
		s.logger.Info().
			Int64("user_id", userID).
			Int("overdue", result.TotalSuccess).
			Int("failed", result.TotalErrors).
			Msg("Overdue sweep finished")
	}
	return result, nil
}

// AddAttachment uploads a receipt and appends it to the expense. The upload
// is removed again when the expense cannot be updated.
func (s *ExpenseService) AddAttachment(
	ctx context.Context,
	userID int64,
	expenseID string,
	input AttachmentInput,
) (*models.Expense, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	if input.File == nil || strings.TrimSpace(input.Filename) == "" {
		return nil, ErrInvalidInput
	}

	expense, err := s.GetExpense(ctx, userID, expenseID)
	if err != nil {
		return nil, err
	}

	objectName := buildAttachmentFilename(expense.ID, input.Filename, s.now())
	fileURL, err := s.storage.UploadFile(ctx, input.File, objectName, fmt.Sprintf("expenses/%d", userID))
	if err != nil {
		return nil, err
	}

	updated, err := s.expenses.AppendAttachment(ctx, userID, expense.ID, models.ExpenseAttachment{
		Name: strings.TrimSpace(input.Filename),
		URL:  fileURL,
		Type: input.Type,
	})
	if err != nil {
		if cleanupErr := s.storage.DeleteFile(ctx, fileURL); cleanupErr != nil {
			return nil, errors.Join(err, fmt.Errorf("cleanup failed: %w", cleanupErr))
		}
		return nil, err
	}
	return updated, nil
}

func (s *ExpenseService) bookPayment(ctx context.Context, expense *models.Expense) {
	if s.cash == nil {
		return
	}
	movement, err := s.cash.RecordExpensePayment(ctx, expense)
	if err != nil {
		s.logger.Error().Err(err).Str("expense_id", expense.ID).Msg("Failed to book expense in cash session")
		return
	}
	if movement != nil {
		s.logger.Info().
			Str("expense_id", expense.ID).
			Str("session_id", movement.CashSessionID).
			Msg("Expense booked in cash session")
	}
}

func (s *ExpenseService) resolveCategory(
	ctx context.Context,
	userID int64,
	categoryID *string,
	categoryName *string,
) (*string, string, error) {
	if categoryID == nil || strings.TrimSpace(*categoryID) == "" {
		name := defaultCategoryName
		if categoryName != nil && strings.TrimSpace(*categoryName) != "" {
			name = strings.TrimSpace(*categoryName)
		}
		return nil, name, nil
	}

	if !models.IsValidID(*categoryID) {
		return nil, "", ErrInvalidInput
	}
	category, err := s.categories.GetByID(ctx, *categoryID)
	if err != nil {
		if isNotFound(err) {
			return nil, "", ErrInvalidInput
		}
		return nil, "", err
	}
	if category.UserID != userID {
		return nil, "", ErrForbidden
	}
	return &category.ID, category.Name, nil
}

func buildAttachmentFilename(expenseID string, original string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(original)))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s-%d%s", expenseID, now.UnixNano(), ext)
}

func valueOr(value *string, fallback string) string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return fallback
	}
	return strings.TrimSpace(*value)
}
