// Package batch splits bulk database work into chunks, paces the chunks,
// reports progress and collects per-item failures.
//
// The package does not know about tables. Callers pass functions bound to a
// repository, one call per chunk (or per item for updates).
package batch

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

const (
	DefaultBatchSize = 50
	DefaultDelay     = 100 * time.Millisecond
)

type ProgressFunc func(processed, total int)

type Options struct {
	// BatchSize is the number of items per chunk. Values <= 0 use DefaultBatchSize.
	BatchSize int
	// Delay is the minimum spacing between the start of two chunks.
	// Zero disables pacing.
	Delay time.Duration
	// ContinueOnError keeps going after a failed chunk or item.
	ContinueOnError bool
	// OnProgress is called after every chunk with the running item count.
	OnProgress ProgressFunc
	// Concurrency bounds the per-item calls of Update inside one chunk.
	// Values <= 0 use the batch size.
	Concurrency int
	// Logger overrides the logger found on the context.
	Logger *zerolog.Logger
}

// DefaultOptions returns the options used for inserts, updates and deletes.
func DefaultOptions() Options {
	return Options{
		BatchSize:       DefaultBatchSize,
		Delay:           DefaultDelay,
		ContinueOnError: true,
	}
}

// DefaultFetchOptions is like DefaultOptions without pacing.
func DefaultFetchOptions() Options {
	opts := DefaultOptions()
	opts.Delay = 0
	return opts
}

func (o Options) normalized() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = o.BatchSize
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	return o
}

func (o Options) progress(processed, total int) {
	if o.OnProgress != nil {
		o.OnProgress(processed, total)
	}
}

func (o Options) logger(ctx context.Context, operation string) zerolog.Logger {
	base := loggerFromContext(ctx)
	if o.Logger != nil {
		base = *o.Logger
	}
	return base.With().Str("component", "batch").Str("operation", operation).Logger()
}

func loggerFromContext(ctx context.Context) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return log.Logger
}

// Chunk splits items into consecutive slices of at most size elements.
// A size <= 0 yields a single chunk.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}

type ItemError struct {
	Index   int    `json:"index"`
	Message string `json:"error"`
	err     error
}

func (e ItemError) Cause() error {
	return e.err
}

type Result[T any] struct {
	Success        bool        `json:"success"`
	Data           []T         `json:"data"`
	Errors         []ItemError `json:"errors,omitempty"`
	TotalProcessed int         `json:"total_processed"`
	TotalSuccess   int         `json:"total_success"`
	TotalErrors    int         `json:"total_errors"`
}

// Err combines the errors of all failed items, or returns nil.
func (r *Result[T]) Err() error {
	if r == nil {
		return nil
	}
	var combined error
	for _, itemErr := range r.Errors {
		combined = multierr.Append(combined, itemErr.err)
	}
	return combined
}

func newResult[T any]() *Result[T] {
	return &Result[T]{Data: make([]T, 0)}
}

func (r *Result[T]) addError(index int, err error) {
	r.Errors = append(r.Errors, ItemError{Index: index, Message: err.Error(), err: err})
}

func (r *Result[T]) finish() *Result[T] {
	r.TotalSuccess = len(r.Data)
	r.TotalErrors = len(r.Errors)
	r.Success = r.TotalErrors == 0
	return r
}

// Deleted is the per-item payload of a successful Delete.
type Deleted struct {
	ID string `json:"id"`
}

// Change is one row to update.
type Change[P any] struct {
	ID    string
	Patch P
}
