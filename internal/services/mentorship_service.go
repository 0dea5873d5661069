package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachLedgerBack/internal/batch"
	"github.com/saeid-a/CoachLedgerBack/internal/config"
	"github.com/saeid-a/CoachLedgerBack/internal/logging"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
	"github.com/saeid-a/CoachLedgerBack/internal/repository"
)

type mentorshipStore interface {
	Create(ctx context.Context, input repository.CreateMentorshipInput) (*models.Mentorship, error)
	InsertMany(ctx context.Context, inputs []repository.CreateMentorshipInput) ([]models.Mentorship, error)
	GetByID(ctx context.Context, id string) (*models.Mentorship, error)
	ListByUserID(ctx context.Context, userID int64, activeOnly bool) ([]models.Mentorship, error)
	ListByIDs(ctx context.Context, userID int64, ids []string) ([]models.Mentorship, error)
	ListInactiveIDs(ctx context.Context, userID int64) ([]string, error)
	Update(ctx context.Context, userID int64, id string, patch models.MentorshipPatch) (*models.Mentorship, error)
	Delete(ctx context.Context, userID int64, id string) error
	DeleteMany(ctx context.Context, userID int64, ids []string) error
}

type MentorshipService struct {
	repo     mentorshipStore
	userRepo userReader
	batchCfg config.BatchConfig
	logger   zerolog.Logger
}

type CreateMentorshipInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Price       float64 `json:"price"`
	Duration    *string `json:"duration"`
	IsActive    *bool   `json:"is_active"`
}

func NewMentorshipService(
	repo mentorshipStore,
	userRepo userReader,
	batchCfg config.BatchConfig,
) *MentorshipService {
	return &MentorshipService{
		repo:     repo,
		userRepo: userRepo,
		batchCfg: batchCfg,
		logger:   logging.Component("mentorships"),
	}
}

func (s *MentorshipService) Create(
	ctx context.Context,
	userID int64,
	input CreateMentorshipInput,
) (*models.Mentorship, error) {
	record, err := buildMentorship(userID, input)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, record)
}

func (s *MentorshipService) List(ctx context.Context, userID int64, activeOnly bool) ([]models.Mentorship, error) {
	return s.repo.ListByUserID(ctx, userID, activeOnly)
}

func (s *MentorshipService) Get(ctx context.Context, userID int64, id string) (*models.Mentorship, error) {
	if !models.IsValidID(id) {
		return nil, ErrInvalidInput
	}
	mentorship, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if mentorship.UserID != userID {
		return nil, ErrForbidden
	}
	return mentorship, nil
}

// ListCatalog returns the active mentorships a coach offers.
func (s *MentorshipService) ListCatalog(ctx context.Context, coachID int64) ([]models.Mentorship, error) {
	if coachID <= 0 {
		return nil, ErrInvalidInput
	}
	coach, err := s.userRepo.GetByID(ctx, coachID)
	if err != nil {
		return nil, err
	}
	if coach.Role != models.RoleCoach {
		return nil, pgx.ErrNoRows
	}
	return s.repo.ListByUserID(ctx, coachID, true)
}

func (s *MentorshipService) Update(
	ctx context.Context,
	userID int64,
	id string,
	patch models.MentorshipPatch,
) (*models.Mentorship, error) {
	if !models.IsValidID(id) {
		return nil, ErrInvalidInput
	}
	normalized, err := normalizeMentorshipPatch(patch)
	if err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, userID, id, normalized)
}

func (s *MentorshipService) Delete(ctx context.Context, userID int64, id string) error {
	if !models.IsValidID(id) {
		return ErrInvalidInput
	}
	return s.repo.Delete(ctx, userID, id)
}

// BulkCreate validates every input up front, then inserts in chunks.
func (s *MentorshipService) BulkCreate(
	ctx context.Context,
	userID int64,
	inputs []CreateMentorshipInput,
	onProgress batch.ProgressFunc,
) (*batch.Result[models.Mentorship], error) {
	if len(inputs) == 0 {
		return nil, ErrInvalidInput
	}

	records := make([]repository.CreateMentorshipInput, 0, len(inputs))
	for i, input := range inputs {
		record, err := buildMentorship(userID, input)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		records = append(records, record)
	}

	result, err := batch.Insert(ctx, s.repo.InsertMany, records, batchOptions(s.batchCfg, onProgress))
	if err != nil {
		return result, err
	}

	s.logger.Info().
		Int64("user_id", userID).
		Int("created", result.TotalSuccess).
		Int("failed", result.TotalErrors).
		Msg("Bulk mentorship create finished")
	return result, nil
}

func (s *MentorshipService) BulkUpdate(
	ctx context.Context,
	userID int64,
	changes []batch.Change[models.MentorshipPatch],
	onProgress batch.ProgressFunc,
) (*batch.Result[models.Mentorship], error) {
	if len(changes) == 0 {
		return nil, ErrInvalidInput
	}

	normalized := make([]batch.Change[models.MentorshipPatch], 0, len(changes))
	for i, change := range changes {
		if !models.IsValidID(change.ID) {
			return nil, fmt.Errorf("item %d: %w", i, ErrInvalidInput)
		}
		patch, err := normalizeMentorshipPatch(change.Patch)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		normalized = append(normalized, batch.Change[models.MentorshipPatch]{ID: change.ID, Patch: patch})
	}

	update := func(ctx context.Context, id string, patch models.MentorshipPatch) (models.Mentorship, error) {
		mentorship, err := s.repo.Update(ctx, userID, id, patch)
		if err != nil {
			return models.Mentorship{}, err
		}
		return *mentorship, nil
	}

	return batch.Update(ctx, update, normalized, batchOptions(s.batchCfg, onProgress))
}

func (s *MentorshipService) BulkDelete(
	ctx context.Context,
	userID int64,
	ids []string,
	onProgress batch.ProgressFunc,
) (*batch.Result[batch.Deleted], error) {
	if len(ids) == 0 {
		return nil, ErrInvalidInput
	}
	for i, id := range ids {
		if !models.IsValidID(id) {
			return nil, fmt.Errorf("item %d: %w", i, ErrInvalidInput)
		}
	}

	remove := func(ctx context.Context, chunk []string) error {
		return s.repo.DeleteMany(ctx, userID, chunk)
	}
	return batch.Delete(ctx, remove, ids, batchOptions(s.batchCfg, onProgress))
}

// PurgeInactive deletes every deactivated mentorship of the user.
func (s *MentorshipService) PurgeInactive(
	ctx context.Context,
	userID int64,
	onProgress batch.ProgressFunc,
) (*batch.Result[batch.Deleted], error) {
	ids, err := s.repo.ListInactiveIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &batch.Result[batch.Deleted]{Success: true, Data: []batch.Deleted{}}, nil
	}

	remove := func(ctx context.Context, chunk []string) error {
		return s.repo.DeleteMany(ctx, userID, chunk)
	}
	return batch.Delete(ctx, remove, ids, batchOptions(s.batchCfg, onProgress))
}

// FetchMany loads the user's mentorships by id. Unknown ids and ids owned
// by someone else are left out of the result.
func (s *MentorshipService) FetchMany(ctx context.Context, userID int64, ids []string) ([]models.Mentorship, error) {
	if len(ids) == 0 {
		return nil, ErrInvalidInput
	}
	for _, id := range ids {
		if !models.IsValidID(id) {
			return nil, ErrInvalidInput
		}
	}

	fetch := func(ctx context.Context, chunk []string) ([]models.Mentorship, error) {
		return s.repo.ListByIDs(ctx, userID, chunk)
	}
	return batch.Fetch(ctx, fetch, ids, fetchOptions(s.batchCfg))
}

func buildMentorship(userID int64, input CreateMentorshipInput) (repository.CreateMentorshipInput, error) {
	name := strings.TrimSpace(input.Name)
	if userID <= 0 || name == "" || !validPrice(input.Price) {
		return repository.CreateMentorshipInput{}, ErrInvalidInput
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	return repository.CreateMentorshipInput{
		UserID:      userID,
		Name:        name,
		Description: input.Description,
		Price:       input.Price,
		Duration:    input.Duration,
		IsActive:    active,
	}, nil
}

func normalizeMentorshipPatch(patch models.MentorshipPatch) (models.MentorshipPatch, error) {
	if patch.IsEmpty() {
		return patch, ErrInvalidInput
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return patch, ErrInvalidInput
		}
		patch.Name = &name
	}
	if patch.Price != nil && !validPrice(*patch.Price) {
		return patch, ErrInvalidInput
	}
	return patch, nil
}

func validPrice(price float64) bool {
	return price >= 0 && !math.IsNaN(price) && !math.IsInf(price, 0)
}

func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
