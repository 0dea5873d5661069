package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
)

const cashSessionColumns = `id, user_id, cash_register_id, opened_at, opening_balance, opening_notes,
	closed_at, closing_balance, expected_balance, difference, closing_notes, status, created_at, updated_at`

type OpenCashSessionInput struct {
	UserID         int64
	CashRegisterID string
	OpeningBalance float64
	OpeningNotes   *string
}

type CloseCashSessionInput struct {
	ClosingBalance  float64
	ExpectedBalance float64
	Difference      float64
	ClosingNotes    *string
}

type CashSessionRepository struct {
	db DBTX
}

func NewCashSessionRepository(db DBTX) *CashSessionRepository {
	return &CashSessionRepository{db: db}
}

func (r *CashSessionRepository) Open(ctx context.Context, input OpenCashSessionInput) (*models.CashSession, error) {
	query := `
		INSERT INTO cash_sessions (id, user_id, cash_register_id, opened_at, opening_balance, opening_notes, status)
		VALUES ($1, $2, $3, NOW(), $4, $5, 'open')
		RETURNING ` + cashSessionColumns

	return scanCashSession(r.db.QueryRow(
		ctx,
		query,
		models.NewID(),
		input.UserID,
		input.CashRegisterID,
		input.OpeningBalance,
		nullableText(input.OpeningNotes),
	))
}

func (r *CashSessionRepository) GetByID(ctx context.Context, id string) (*models.CashSession, error) {
	query := `SELECT ` + cashSessionColumns + ` FROM cash_sessions WHERE id = $1`
	return scanCashSession(r.db.QueryRow(ctx, query, id))
}

func (r *CashSessionRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.CashSession, error) {
	query := `SELECT ` + cashSessionColumns + ` FROM cash_sessions WHERE id = $1 FOR UPDATE`
	return scanCashSession(r.db.QueryRow(ctx, query, id))
}

func (r *CashSessionRepository) GetOpenByRegisterID(ctx context.Context, registerID string) (*models.CashSession, error) {
	query := `
		SELECT ` + cashSessionColumns + `
		FROM cash_sessions
		WHERE cash_register_id = $1 AND status = 'open'
		ORDER BY opened_at DESC
		LIMIT 1
	`
	return scanCashSession(r.db.QueryRow(ctx, query, registerID))
}

// GetLatestOpenByUserID returns the most recently opened session across all
// of the user's registers.
func (r *CashSessionRepository) GetLatestOpenByUserID(ctx context.Context, userID int64) (*models.CashSession, error) {
	query := `
		SELECT ` + cashSessionColumns + `
		FROM cash_sessions
		WHERE user_id = $1 AND status = 'open'
		ORDER BY opened_at DESC, id DESC
		LIMIT 1
	`
	return scanCashSession(r.db.QueryRow(ctx, query, userID))
}

func (r *CashSessionRepository) ListOpenByUserID(ctx context.Context, userID int64) ([]models.CashSession, error) {
	query := `
		SELECT ` + cashSessionColumns + `
		FROM cash_sessions
		WHERE user_id = $1 AND status = 'open'
		ORDER BY opened_at DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return collectCashSessions(rows)
}

func (r *CashSessionRepository) ListByRegisterID(ctx context.Context, registerID string, limit int) ([]models.CashSession, error) {
	query := `
		SELECT ` + cashSessionColumns + `
		FROM cash_sessions
		WHERE cash_register_id = $1
		ORDER BY opened_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, registerID, limit)
	if err != nil {
		return nil, err
	}
	return collectCashSessions(rows)
}

// Close only affects open sessions. pgx.ErrNoRows means the session was
// already closed or does not exist.
func (r *CashSessionRepository) Close(ctx context.Context, id string, input CloseCashSessionInput) (*models.CashSession, error) {
	query := `
		UPDATE cash_sessions
		SET status = 'closed',
		    closed_at = NOW(),
		    closing_balance = $2,
		    expected_balance = $3,
		    difference = $4,
		    closing_notes = $5,
		    updated_at = GREATEST(NOW(), updated_at)
		WHERE id = $1 AND status = 'open'
		RETURNING ` + cashSessionColumns

	return scanCashSession(r.db.QueryRow(
		ctx,
		query,
		id,
		input.ClosingBalance,
		input.ExpectedBalance,
		input.Difference,
		nullableText(input.ClosingNotes),
	))
}

func scanCashSession(row pgx.Row) (*models.CashSession, error) {
	var session models.CashSession
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.CashRegisterID,
		&session.OpenedAt,
		&session.OpeningBalance,
		&session.OpeningNotes,
		&session.ClosedAt,
		&session.ClosingBalance,
		&session.ExpectedBalance,
		&session.Difference,
		&session.ClosingNotes,
		&session.Status,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func collectCashSessions(rows pgx.Rows) ([]models.CashSession, error) {
	defer rows.Close()

	sessions := make([]models.CashSession, 0)
	for rows.Next() {
		session, err := scanCashSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}
