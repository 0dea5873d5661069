package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
)

const expenseColumns = `id, user_id, category_id, category_name, description, amount, payment_method,
	payment_status, due_date, paid_at, is_recurring, recurring_frequency, recurring_day,
	recurring_end_date, parent_expense_id, attachments, notes, created_at, updated_at`

type CreateExpenseInput struct {
	UserID             int64
	CategoryID         *string
	CategoryName       string
	Description        string
	Amount             float64
	PaymentMethod      models.PaymentMethod
	PaymentStatus      models.PaymentStatus
	DueDate            *time.Time
	PaidAt             *time.Time
	IsRecurring        bool
	RecurringFrequency *models.RecurringFrequency
	RecurringDay       *int
	RecurringEndDate   *time.Time
	ParentExpenseID    *string
	Notes              *string
}

type UpdateExpenseInput struct {
	CategoryID    *string
	CategoryName  *string
	Description   *string
	Amount        *float64
	PaymentMethod *models.PaymentMethod
	DueDate       *time.Time
	Notes         *string
}

type ExpenseListFilter struct {
	UserID int64
	Status string
	From   *time.Time
	To     *time.Time
}

type ExpenseRepository struct {
	db DBTX
}

func NewExpenseRepository(db DBTX) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) Create(ctx context.Context, input CreateExpenseInput) (*models.Expense, error) {
	query := `
		INSERT INTO expenses (
			id, user_id, category_id, category_name, description, amount, payment_method,
			payment_status, due_date, paid_at, is_recurring, recurring_frequency, recurring_day,
			recurring_end_date, parent_expense_id, attachments, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, '[]'::jsonb, $16)
		RETURNING ` + expenseColumns

	return scanExpense(r.db.QueryRow(
		ctx,
		query,
		models.NewID(),
		input.UserID,
		input.CategoryID,
		input.CategoryName,
		input.Description,
		input.Amount,
		input.PaymentMethod,
		input.PaymentStatus,
		input.DueDate,
		input.PaidAt,
		input.IsRecurring,
		input.RecurringFrequency,
		input.RecurringDay,
		input.RecurringEndDate,
		input.ParentExpenseID,
		nullableText(input.Notes),
	))
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`
	return scanExpense(r.db.QueryRow(ctx, query, id))
}

func (r *ExpenseRepository) List(ctx context.Context, filter ExpenseListFilter) ([]models.Expense, error) {
	args := []any{filter.UserID}
	whereParts := []string{"user_id = $1"}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		whereParts = append(whereParts, fmt.Sprintf("COALESCE(due_date, created_at::date) >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		whereParts = append(whereParts, fmt.Sprintf("COALESCE(due_date, created_at::date) <= $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM expenses
		WHERE %s
		ORDER BY due_date ASC NULLS LAST, created_at DESC, id ASC
	`, expenseColumns, strings.Join(whereParts, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectExpenses(rows)
}

// ListOverdueCandidates returns pending expenses whose due date is before today.
func (r *ExpenseRepository) ListOverdueCandidates(ctx context.Context, userID int64, today time.Time) ([]models.Expense, error) {
	query := `
		SELECT ` + expenseColumns + `
		FROM expenses
		WHERE user_id = $1 AND payment_status = 'pending' AND due_date < $2::date
		ORDER BY due_date ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, userID, today)
	if err != nil {
		return nil, err
	}
	return collectExpenses(rows)
}

func (r *ExpenseRepository) Update(
	ctx context.Context,
	userID int64,
	id string,
	input UpdateExpenseInput,
) (*models.Expense, error) {
	query := `
		UPDATE expenses
		SET category_id = COALESCE($3, category_id),
		    category_name = COALESCE($4, category_name),
		    description = COALESCE($5, description),
		    amount = COALESCE($6, amount),
		    payment_method = COALESCE($7, payment_method),
		    due_date = COALESCE($8, due_date),
		    notes = CASE WHEN $9::text IS NULL THEN notes ELSE NULLIF(BTRIM($9), '') END,
		    updated_at = GREATEST(NOW(), updated_at)
		WHERE id = $1 AND user_id = $2
		RETURNING ` + expenseColumns

	return scanExpense(r.db.QueryRow(
		ctx,
		query,
		id,
		userID,
		input.CategoryID,
		input.CategoryName,
		input.Description,
		input.Amount,
		input.PaymentMethod,
		input.DueDate,
		input.Notes,
	))
}

// UpdateStatusIfCurrent moves an expense between payment states only when it
// is still in currentStatus. pgx.ErrNoRows means the row changed underneath.
func (r *ExpenseRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	id string,
	currentStatus models.PaymentStatus,
	nextStatus models.PaymentStatus,
	paidAt *time.Time,
) (*models.Expense, error) {
	query := `
		UPDATE expenses
		SET payment_status = $3,
		    paid_at = COALESCE($4, paid_at),
		    updated_at = GREATEST(NOW(), updated_at)
		WHERE id = $1 AND payment_status = $2
		RETURNING ` + expenseColumns

	return scanExpense(r.db.QueryRow(ctx, query, id, currentStatus, nextStatus, paidAt))
}

func (r *ExpenseRepository) AppendAttachment(
	ctx context.Context,
	userID int64,
	id string,
	attachment models.ExpenseAttachment,
) (*models.Expense, error) {
	query := `
		UPDATE expenses
		SET attachments = attachments || jsonb_build_array($3::jsonb),
		    updated_at = GREATEST(NOW(), updated_at)
		WHERE id = $1 AND user_id = $2
		RETURNING ` + expenseColumns

	return scanExpense(r.db.QueryRow(ctx, query, id, userID, attachment))
}

func (r *ExpenseRepository) Delete(ctx context.Context, userID int64, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return expectAffected(tag)
}

func scanExpense(row pgx.Row) (*models.Expense, error) {
	var expense models.Expense
	err := row.Scan(
		&expense.ID,
		&expense.UserID,
		&expense.CategoryID,
		&expense.CategoryName,
		&expense.Description,
		&expense.Amount,
		&expense.PaymentMethod,
		&expense.PaymentStatus,
		&expense.DueDate,
		&expense.PaidAt,
		&expense.IsRecurring,
		&expense.RecurringFrequency,
		&expense.RecurringDay,
		&expense.RecurringEndDate,
		&expense.ParentExpenseID,
		&expense.Attachments,
		&expense.Notes,
		&expense.CreatedAt,
		&expense.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if expense.Attachments == nil {
		expense.Attachments = []models.ExpenseAttachment{}
	}
	return &expense, nil
}

func collectExpenses(rows pgx.Rows) ([]models.Expense, error) {
	defer rows.Close()

	expenses := make([]models.Expense, 0)
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *expense)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}
