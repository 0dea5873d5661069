package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
)

const cashRegisterColumns = `id, user_id, name, description, is_active, created_at`

type CreateCashRegisterInput struct {
	UserID      int64
	Name        string
	Description *string
}

type CashRegisterRepository struct {
	db DBTX
}

func NewCashRegisterRepository(db DBTX) *CashRegisterRepository {
	return &CashRegisterRepository{db: db}
}

func (r *CashRegisterRepository) Create(ctx context.Context, input CreateCashRegisterInput) (*models.CashRegister, error) {
	query := `
		INSERT INTO cash_registers (id, user_id, name, description, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING ` + cashRegisterColumns

	return scanCashRegister(r.db.QueryRow(
		ctx,
		query,
		models.NewID(),
		input.UserID,
		input.Name,
		nullableText(input.Description),
	))
}

func (r *CashRegisterRepository) GetByID(ctx context.Context, id string) (*models.CashRegister, error) {
	query := `SELECT ` + cashRegisterColumns + ` FROM cash_registers WHERE id = $1`
	return scanCashRegister(r.db.QueryRow(ctx, query, id))
}

func (r *CashRegisterRepository) ListByUserID(ctx context.Context, userID int64) ([]models.CashRegister, error) {
	query := `
		SELECT ` + cashRegisterColumns + `
		FROM cash_registers
		WHERE user_id = $1 AND is_active
		ORDER BY name ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	registers := make([]models.CashRegister, 0)
	for rows.Next() {
		register, err := scanCashRegister(rows)
		if err != nil {
			return nil, err
		}
		registers = append(registers, *register)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return registers, nil
}

func (r *CashRegisterRepository) Update(
	ctx context.Context,
	userID int64,
	id string,
	name *string,
	description *string,
) (*models.CashRegister, error) {
	query := `
		UPDATE cash_registers
		SET name = COALESCE($3, name),
		    description = CASE WHEN $4::text IS NULL THEN description ELSE NULLIF(BTRIM($4), '') END
		WHERE id = $1 AND user_id = $2 AND is_active
		RETURNING ` + cashRegisterColumns

	return scanCashRegister(r.db.QueryRow(ctx, query, id, userID, name, description))
}

// Deactivate hides a register without losing its session history.
func (r *CashRegisterRepository) Deactivate(ctx context.Context, userID int64, id string) error {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE cash_registers SET is_active = FALSE WHERE id = $1 AND user_id = $2 AND is_active`,
		id,
		userID,
	)
	if err != nil {
		return err
	}
	return expectAffected(tag)
}

func scanCashRegister(row pgx.Row) (*models.CashRegister, error) {
	var register models.CashRegister
	err := row.Scan(
		&register.ID,
		&register.UserID,
		&register.Name,
		&register.Description,
		&register.IsActive,
		&register.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &register, nil
}
