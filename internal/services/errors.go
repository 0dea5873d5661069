package services

import (
	"context"
	"errors"

	"github.com/saeid-a/CoachLedgerBack/internal/batch"
	"github.com/saeid-a/CoachLedgerBack/internal/config"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
)

var (
	ErrForbidden              = errors.New("forbidden")
	ErrConflict               = errors.New("conflict")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrSessionClosed          = errors.New("cash session is closed")
	ErrStorageUnavailable     = errors.New("storage service is not configured")
)

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// EventPublisher receives cash events for realtime delivery. Publish must not block.
type EventPublisher interface {
	Publish(event models.CashEvent)
}

func batchOptions(cfg config.BatchConfig, onProgress batch.ProgressFunc) batch.Options {
	return batch.Options{
		BatchSize:       cfg.Size,
		Delay:           cfg.Delay,
		ContinueOnError: cfg.ContinueOnError,
		OnProgress:      onProgress,
	}
}

func fetchOptions(cfg config.BatchConfig) batch.Options {
	opts := batch.DefaultFetchOptions()
	opts.BatchSize = cfg.Size
	return opts
}
