package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
)

const expenseCategoryColumns = `id, user_id, name, description, color, icon, is_active, created_at, updated_at`

type CreateExpenseCategoryInput struct {
	UserID      int64
	Name        string
	Description *string
	Color       string
	Icon        string
}

type UpdateExpenseCategoryInput struct {
	Name        *string
	Description *string
	Color       *string
	Icon        *string
	IsActive    *bool
}

type ExpenseCategoryRepository struct {
	db DBTX
}

func NewExpenseCategoryRepository(db DBTX) *ExpenseCategoryRepository {
	return &ExpenseCategoryRepository{db: db}
}

func (r *ExpenseCategoryRepository) Create(ctx context.Context, input CreateExpenseCategoryInput) (*models.ExpenseCategory, error) {
	query := `
		INSERT INTO expense_categories (id, user_id, name, description, color, icon, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING ` + expenseCategoryColumns

	return scanExpenseCategory(r.db.QueryRow(
		ctx,
		query,
		models.NewID(),
		input.UserID,
		input.Name,
		nullableText(input.Description),
		input.Color,
		input.Icon,
	))
}

// InsertMany skips names the user already has, so seeding twice is harmless.
func (r *ExpenseCategoryRepository) InsertMany(
	ctx context.Context,
	inputs []CreateExpenseCategoryInput,
) ([]models.ExpenseCategory, error) {
	if len(inputs) == 0 {
		return []models.ExpenseCategory{}, nil
	}

	ids := make([]string, len(inputs))
	userIDs := make([]int64, len(inputs))
	names := make([]string, len(inputs))
	descriptions := make([]*string, len(inputs))
	colors := make([]string, len(inputs))
	icons := make([]string, len(inputs))
	for i, input := range inputs {
		ids[i] = models.NewID()
		userIDs[i] = input.UserID
		names[i] = input.Name
		descriptions[i] = nullableText(input.Description)
		colors[i] = input.Color
		icons[i] = input.Icon
	}

	query := `
		INSERT INTO expense_categories (id, user_id, name, description, color, icon)
		SELECT * FROM unnest($1::uuid[], $2::bigint[], $3::text[], $4::text[], $5::text[], $6::text[])
		ON CONFLICT (user_id, name) DO NOTHING
		RETURNING ` + expenseCategoryColumns

	rows, err := r.db.Query(ctx, query, ids, userIDs, names, descriptions, colors, icons)
	if err != nil {
		return nil, err
	}
	return collectExpenseCategories(rows)
}

func (r *ExpenseCategoryRepository) GetByID(ctx context.Context, id string) (*models.ExpenseCategory, error) {
	query := `SELECT ` + expenseCategoryColumns + ` FROM expense_categories WHERE id = $1`
	return scanExpenseCategory(r.db.QueryRow(ctx, query, id))
}

func (r *ExpenseCategoryRepository) ListByUserID(ctx context.Context, userID int64, activeOnly bool) ([]models.ExpenseCategory, error) {
	query := `
		SELECT ` + expenseCategoryColumns + `
		FROM expense_categories
		WHERE user_id = $1 AND ($2::boolean = FALSE OR is_active)
		ORDER BY name ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, userID, activeOnly)
	if err != nil {
		return nil, err
	}
	return collectExpenseCategories(rows)
}

func (r *ExpenseCategoryRepository) CountByUserID(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM expense_categories WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (r *ExpenseCategoryRepository) Update(
	ctx context.Context,
	userID int64,
	id string,
	input UpdateExpenseCategoryInput,
) (*models.ExpenseCategory, error) {
	query := `
		UPDATE expense_categories
		SET name = COALESCE($3, name),
		    description = CASE WHEN $4::text IS NULL THEN description ELSE NULLIF(BTRIM($4), '') END,
		    color = COALESCE($5, color),
		    icon = COALESCE($6, icon),
		    is_active = COALESCE($7, is_active),
		    updated_at = GREATEST(NOW(), updated_at)
		WHERE id = $1 AND user_id = $2
		RETURNING ` + expenseCategoryColumns

	return scanExpenseCategory(r.db.QueryRow(
		ctx,
		query,
		id,
		userID,
		input.Name,
		input.Description,
		input.Color,
		input.Icon,
		input.IsActive,
	))
}

func (r *ExpenseCategoryRepository) Delete(ctx context.Context, userID int64, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM expense_categories WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return expectAffected(tag)
}

func scanExpenseCategory(row pgx.Row) (*models.ExpenseCategory, error) {
	var category models.ExpenseCategory
	err := row.Scan(
		&category.ID,
		&category.UserID,
		&category.Name,
		&category.Description,
		&category.Color,
		&category.Icon,
		&category.IsActive,
		&category.CreatedAt,
		&category.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func collectExpenseCategories(rows pgx.Rows) ([]models.ExpenseCategory, error) {
	defer rows.Close()

	categories := make([]models.ExpenseCategory, 0)
	for rows.Next() {
		category, err := scanExpenseCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *category)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}
