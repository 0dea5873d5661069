package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
)

const cashMovementColumns = `id, user_id, cash_session_id, cash_register_id, type, category, amount,
	payment_method, reference_type, reference_id, description, notes, created_at`

type CreateCashMovementInput struct {
	UserID         int64
	CashSessionID  string
	CashRegisterID string
	Type           models.CashMovementType
	Category       models.CashMovementCategory
	Amount         float64
	PaymentMethod  models.PaymentMethod
	ReferenceType  *string
	ReferenceID    *string
	Description    string
	Notes          *string
}

type CashMovementRepository struct {
	db DBTX
}

func NewCashMovementRepository(db DBTX) *CashMovementRepository {
	return &CashMovementRepository{db: db}
}

// Create inserts a movement only while its session is open. The session row
// is share-locked, so a concurrent close either waits for the insert or
// makes it find no open session. That case returns pgx.ErrNoRows.
func (r *CashMovementRepository) Create(ctx context.Context, input CreateCashMovementInput) (*models.CashMovement, error) {
	query := `
		WITH open_session AS (
			SELECT id, cash_register_id
			FROM cash_sessions
			WHERE id = $3::uuid AND user_id = $2 AND cash_register_id = $4::uuid AND status = 'open'
			FOR SHARE
		)
		INSERT INTO cash_movements (
			id, user_id, cash_session_id, cash_register_id, type, category, amount,
			payment_method, reference_type, reference_id, description, notes
		)
		SELECT $1::uuid, $2::bigint, s.id, s.cash_register_id, $5::text, $6::text, $7::numeric,
			$8::text, $9::text, $10::text, $11::text, $12::text
		FROM open_session s
		RETURNING ` + cashMovementColumns

	return scanCashMovement(r.db.QueryRow(
		ctx,
		query,
		models.NewID(),
		input.UserID,
		input.CashSessionID,
		input.CashRegisterID,
		input.Type,
		input.Category,
		input.Amount,
		input.PaymentMethod,
		nullableText(input.ReferenceType),
		nullableText(input.ReferenceID),
		input.Description,
		nullableText(input.Notes),
	))
}

func (r *CashMovementRepository) GetByID(ctx context.Context, id string) (*models.CashMovement, error) {
	query := `SELECT ` + cashMovementColumns + ` FROM cash_movements WHERE id = $1`
	return scanCashMovement(r.db.QueryRow(ctx, query, id))
}

func (r *CashMovementRepository) ListBySessionID(ctx context.Context, sessionID string) ([]models.CashMovement, error) {
	query := `
		SELECT ` + cashMovementColumns + `
		FROM cash_movements
		WHERE cash_session_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]models.CashMovement, 0)
	for rows.Next() {
		movement, err := scanCashMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, *movement)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

// Delete removes one movement of an open session. A missing movement and a
// closed session both return pgx.ErrNoRows. Share-locking the open sessions
// makes a concurrent close wait, so its totals never include a deleted row.
func (r *CashMovementRepository) Delete(ctx context.Context, userID int64, id string) error {
	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM cash_movements
		WHERE id = $1 AND user_id = $2
			AND cash_session_id IN (
				SELECT id FROM cash_sessions WHERE user_id = $2 AND status = 'open' FOR SHARE
			)`,
		id,
		userID,
	)
	if err != nil {
		return err
	}
	return expectAffected(tag)
}

// DeleteByReference removes the movements generated from one source record
// that still sit in an open session, and reports how many rows went away.
// Movements of closed sessions are kept.
func (r *CashMovementRepository) DeleteByReference(
	ctx context.Context,
	userID int64,
	referenceType string,
	referenceID string,
) (int64, error) {
	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM cash_movements
		WHERE user_id = $1 AND reference_type = $2 AND reference_id = $3
			AND cash_session_id IN (
				SELECT id FROM cash_sessions WHERE user_id = $1 AND status = 'open' FOR SHARE
			)`,
		userID,
		referenceType,
		referenceID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanCashMovement(row pgx.Row) (*models.CashMovement, error) {
	var movement models.CashMovement
	err := row.Scan(
		&movement.ID,
		&movement.UserID,
		&movement.CashSessionID,
		&movement.CashRegisterID,
		&movement.Type,
		&movement.Category,
		&movement.Amount,
		&movement.PaymentMethod,
		&movement.ReferenceType,
		&movement.ReferenceID,
		&movement.Description,
		&movement.Notes,
		&movement.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &movement, nil
}
