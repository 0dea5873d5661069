package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
)

const mentorshipColumns = `id, user_id, name, description, price, duration, is_active, created_at, updated_at`

type CreateMentorshipInput struct {
	UserID      int64
	Name        string
	Description *string
	Price       float64
	Duration    *string
	IsActive    bool
}

type MentorshipRepository struct {
	db DBTX
}

func NewMentorshipRepository(db DBTX) *MentorshipRepository {
	return &MentorshipRepository{db: db}
}

func (r *MentorshipRepository) Create(ctx context.Context, input CreateMentorshipInput) (*models.Mentorship, error) {
	query := `
		INSERT INTO mentorships (id, user_id, name, description, price, duration, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + mentorshipColumns

	return scanMentorship(r.db.QueryRow(
		ctx,
		query,
		models.NewID(),
		input.UserID,
		input.Name,
		nullableText(input.Description),
		input.Price,
		nullableText(input.Duration),
		input.IsActive,
	))
}

// InsertMany writes all inputs in one statement, so either every row lands or none does.
func (r *MentorshipRepository) InsertMany(ctx context.Context, inputs []CreateMentorshipInput) ([]models.Mentorship, error) {
	if len(inputs) == 0 {
		return []models.Mentorship{}, nil
	}

	ids := make([]string, len(inputs))
	userIDs := make([]int64, len(inputs))
	names := make([]string, len(inputs))
	descriptions := make([]*string, len(inputs))
	prices := make([]float64, len(inputs))
	durations := make([]*string, len(inputs))
	active := make([]bool, len(inputs))
	for i, input := range inputs {
		ids[i] = models.NewID()
		userIDs[i] = input.UserID
		names[i] = input.Name
		descriptions[i] = nullableText(input.Description)
		prices[i] = input.Price
		durations[i] = nullableText(input.Duration)
		active[i] = input.IsActive
	}

	query := `
		INSERT INTO mentorships (id, user_id, name, description, price, duration, is_active)
		SELECT * FROM unnest($1::uuid[], $2::bigint[], $3::text[], $4::text[], $5::numeric[], $6::text[], $7::boolean[])
		RETURNING ` + mentorshipColumns

	rows, err := r.db.Query(ctx, query, ids, userIDs, names, descriptions, prices, durations, active)
	if err != nil {
		return nil, err
	}
	return collectMentorships(rows)
}

func (r *MentorshipRepository) GetByID(ctx context.Context, id string) (*models.Mentorship, error) {
	query := `SELECT ` + mentorshipColumns + ` FROM mentorships WHERE id = $1`
	return scanMentorship(r.db.QueryRow(ctx, query, id))
}

func (r *MentorshipRepository) ListByUserID(ctx context.Context, userID int64, activeOnly bool) ([]models.Mentorship, error) {
	query := `
		SELECT ` + mentorshipColumns + `
		FROM mentorships
		WHERE user_id = $1 AND ($2::boolean = FALSE OR is_active)
		ORDER BY name ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, userID, activeOnly)
	if err != nil {
		return nil, err
	}
	return collectMentorships(rows)
}

func (r *MentorshipRepository) ListByIDs(ctx context.Context, userID int64, ids []string) ([]models.Mentorship, error) {
	if len(ids) == 0 {
		return []models.Mentorship{}, nil
	}
	query := `
		SELECT ` + mentorshipColumns + `
		FROM mentorships
		WHERE user_id = $1 AND id = ANY($2::uuid[])
		ORDER BY name ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, userID, ids)
	if err != nil {
		return nil, err
	}
	return collectMentorships(rows)
}

func (r *MentorshipRepository) ListInactiveIDs(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM mentorships WHERE user_id = $1 AND NOT is_active ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Update never touches id, user_id or created_at, and keeps updated_at
// from moving backwards. A blank description or duration clears the column.
func (r *MentorshipRepository) Update(
	ctx context.Context,
	userID int64,
	id string,
	patch models.MentorshipPatch,
) (*models.Mentorship, error) {
	query := `
		UPDATE mentorships
		SET name = COALESCE($3, name),
		    description = CASE WHEN $4::text IS NULL THEN description ELSE NULLIF(BTRIM($4), '') END,
		    price = COALESCE($5, price),
		    duration = CASE WHEN $6::text IS NULL THEN duration ELSE NULLIF(BTRIM($6), '') END,
		    is_active = COALESCE($7, is_active),
		    updated_at = GREATEST(NOW(), updated_at)
		WHERE id = $1 AND user_id = $2
		RETURNING ` + mentorshipColumns

	return scanMentorship(r.db.QueryRow(
		ctx,
		query,
		id,
		userID,
		patch.Name,
		patch.Description,
		patch.Price,
		patch.Duration,
		patch.IsActive,
	))
}

func (r *MentorshipRepository) Delete(ctx context.Context, userID int64, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM mentorships WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return expectAffected(tag)
}

func (r *MentorshipRepository) DeleteMany(ctx context.Context, userID int64, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM mentorships WHERE user_id = $1 AND id = ANY($2::uuid[])`, userID, ids)
	return err
}

func scanMentorship(row pgx.Row) (*models.Mentorship, error) {
	var mentorship models.Mentorship
	err := row.Scan(
		&mentorship.ID,
		&mentorship.UserID,
		&mentorship.Name,
		&mentorship.Description,
		&mentorship.Price,
		&mentorship.Duration,
		&mentorship.IsActive,
		&mentorship.CreatedAt,
		&mentorship.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &mentorship, nil
}

func collectMentorships(rows pgx.Rows) ([]models.Mentorship, error) {
	defer rows.Close()

	mentorships := make([]models.Mentorship, 0)
	for rows.Next() {
		mentorship, err := scanMentorship(rows)
		if err != nil {
			return nil, err
		}
		mentorships = append(mentorships, *mentorship)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return mentorships, nil
}
