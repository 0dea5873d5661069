package batch

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type (
	InsertFunc[T, R any] func(ctx context.Context, records []T) ([]R, error)
	UpdateFunc[T, P any] func(ctx context.Context, id string, patch P) (T, error)
	DeleteFunc           func(ctx context.Context, ids []string) error
	FetchFunc[T any]     func(ctx context.Context, ids []string) ([]T, error)
	Query                func(ctx context.Context) error
)

// pacer spaces chunk starts at least delay apart. The first wait returns
// immediately, so there is never a pause after the last chunk.
type pacer struct {
	limiter *rate.Limiter
}

func newPacer(delay time.Duration) *pacer {
	if delay <= 0 {
		return &pacer{}
	}
	return &pacer{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

func (p *pacer) wait(ctx context.Context) error {
	if p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}

// Insert writes records chunk by chunk and collects the rows each chunk
// returns. A failed chunk marks every item in it as failed. Without
// ContinueOnError the first failed chunk ends the run and its error is
// returned alongside the partial result.
func Insert[T, R any](ctx context.Context, insert InsertFunc[T, R], records []T, opts Options) (*Result[R], error) {
	opts = opts.normalized()
	logger := opts.logger(ctx, opInsert)
	chunks := Chunk(records, opts.BatchSize)
	result := newResult[R]()
	pace := newPacer(opts.Delay)

	logger.Info().Int("records", len(records)).Int("chunks", len(chunks)).Msg("Starting batch insert")

	for i, chunk := range chunks {
		startIndex := i * opts.BatchSize
		if err := pace.wait(ctx); err != nil {
			return result.finish(), errors.Wrap(err, "batch insert interrupted")
		}

		started := time.Now()
		inserted, err := insert(ctx, chunk)
		observeChunk(opInsert, started)
		if err != nil {
			err = errors.Wrapf(err, "insert chunk %d", i+1)
			logger.Error().Stack().Err(err).Int("chunk", i+1).Int("size", len(chunk)).Msg("Batch insert chunk failed")
			recordItems(opInsert, 0, len(chunk))

			if !opts.ContinueOnError {
				result.addError(startIndex, err)
				return result.finish(), err
			}
			for j := range chunk {
				result.addError(startIndex+j, err)
			}
		} else {
			result.Data = append(result.Data, inserted...)
			recordItems(opInsert, len(inserted), 0)
		}

		result.TotalProcessed += len(chunk)
		opts.progress(result.TotalProcessed, len(records))
	}

	result.finish()
	logger.Info().
		Int("succeeded", result.TotalSuccess).
		Int("failed", result.TotalErrors).
		Msg("Batch insert finished")
	return result, nil
}

type updateOutcome[T any] struct {
	value T
	err   error
}

// Update applies changes one row at a time. Rows inside a chunk run
// concurrently; results keep input order. Without ContinueOnError the run
// stops at the first failed row in index order and TotalProcessed counts up
// to and including that row.
func Update[T, P any](ctx context.Context, update UpdateFunc[T, P], changes []Change[P], opts Options) (*Result[T], error) {
	opts = opts.normalized()
	logger := opts.logger(ctx, opUpdate)
	chunks := Chunk(changes, opts.BatchSize)
	result := newResult[T]()
	pace := newPacer(opts.Delay)

	logger.Info().Int("records", len(changes)).Int("chunks", len(chunks)).Msg("Starting batch update")

	for i, chunk := range chunks {
		startIndex := i * opts.BatchSize
		if err := pace.wait(ctx); err != nil {
			return result.finish(), errors.Wrap(err, "batch update interrupted")
		}

		started := time.Now()
		outcomes := make([]updateOutcome[T], len(chunk))
		var group errgroup.Group
		group.SetLimit(opts.Concurrency)
		for j := range chunk {
			group.Go(func() error {
				value, err := update(ctx, chunk[j].ID, chunk[j].Patch)
				outcomes[j] = updateOutcome[T]{value: value, err: err}
				return nil
			})
		}
		_ = group.Wait()
		observeChunk(opUpdate, started)

		failed := 0
		for j, outcome := range outcomes {
			if outcome.err == nil {
				result.Data = append(result.Data, outcome.value)
				continue
			}

			failed++
			err := errors.Wrapf(outcome.err, "update %s", chunk[j].ID)
			result.addError(startIndex+j, err)
			logger.Warn().Err(err).Int("index", startIndex+j).Msg("Batch update item failed")

			if !opts.ContinueOnError {
				recordItems(opUpdate, j+1-failed, failed)
				result.TotalProcessed += j + 1
				return result.finish(), err
			}
		}
		recordItems(opUpdate, len(chunk)-failed, failed)

		result.TotalProcessed += len(chunk)
		opts.progress(result.TotalProcessed, len(changes))
	}

	result.finish()
	logger.Info().
		Int("succeeded", result.TotalSuccess).
		Int("failed", result.TotalErrors).
		Msg("Batch update finished")
	return result, nil
}

// Delete removes ids chunk by chunk with the same failure rules as Insert.
func Delete(ctx context.Context, remove DeleteFunc, ids []string, opts Options) (*Result[Deleted], error) {
	opts = opts.normalized()
	logger := opts.logger(ctx, opDelete)
	chunks := Chunk(ids, opts.BatchSize)
	result := newResult[Deleted]()
	pace := newPacer(opts.Delay)

	logger.Info().Int("records", len(ids)).Int("chunks", len(chunks)).Msg("Starting batch delete")

	for i, chunk := range chunks {
		startIndex := i * opts.BatchSize
		if err := pace.wait(ctx); err != nil {
			return result.finish(), errors.Wrap(err, "batch delete interrupted")
		}

		started := time.Now()
		err := remove(ctx, chunk)
		observeChunk(opDelete, started)
		if err != nil {
			err = errors.Wrapf(err, "delete chunk %d", i+1)
			logger.Error().Stack().Err(err).Int("chunk", i+1).Int("size", len(chunk)).Msg("Batch delete chunk failed")
			recordItems(opDelete, 0, len(chunk))

			if !opts.ContinueOnError {
				result.addError(startIndex, err)
				return result.finish(), err
			}
			for j := range chunk {
				result.addError(startIndex+j, err)
			}
		} else {
			for _, id := range chunk {
				result.Data = append(result.Data, Deleted{ID: id})
			}
			recordItems(opDelete, len(chunk), 0)
		}

		result.TotalProcessed += len(chunk)
		opts.progress(result.TotalProcessed, len(ids))
	}

	result.finish()
	logger.Info().
		Int("succeeded", result.TotalSuccess).
		Int("failed", result.TotalErrors).
		Msg("Batch delete finished")
	return result, nil
}

// Fetch loads rows by id chunk by chunk. Failed chunks are logged and
// skipped; only a cancelled context is returned as an error.
func Fetch[T any](ctx context.Context, fetch FetchFunc[T], ids []string, opts Options) ([]T, error) {
	opts = opts.normalized()
	logger := opts.logger(ctx, opFetch)
	chunks := Chunk(ids, opts.BatchSize)
	results := make([]T, 0, len(ids))
	pace := newPacer(opts.Delay)
	processed := 0

	for i, chunk := range chunks {
		if err := pace.wait(ctx); err != nil {
			return results, errors.Wrap(err, "batch fetch interrupted")
		}

		started := time.Now()
		rows, err := fetch(ctx, chunk)
		observeChunk(opFetch, started)
		if err != nil {
			logger.Error().Err(err).Int("chunk", i+1).Int("size", len(chunk)).Msg("Batch fetch chunk failed")
			recordItems(opFetch, 0, len(chunk))
		} else {
			results = append(results, rows...)
			recordItems(opFetch, len(rows), 0)
		}

		processed += len(chunk)
		opts.progress(processed, len(ids))
	}

	return results, nil
}

// Parallel runs independent queries concurrently and waits for all of them.
// A failing query does not cancel the others. The returned slice holds one
// entry per query, nil on success.
func Parallel(ctx context.Context, queries ...Query) []error {
	logger := loggerFromContext(ctx).With().Str("component", "batch").Str("operation", opParallel).Logger()
	errs := make([]error, len(queries))

	var group errgroup.Group
	for i, query := range queries {
		group.Go(func() error {
			if err := query(ctx); err != nil {
				errs[i] = err
				logger.Error().Err(err).Int("query", i).Msg("Parallel query failed")
				recordItems(opParallel, 0, 1)
				return nil
			}
			recordItems(opParallel, 1, 0)
			return nil
		})
	}
	_ = group.Wait()

	return errs
}
