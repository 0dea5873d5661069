package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID   string
	Name string
}

func rows(n int) []row {
	out := make([]row, n)
	for i := range out {
		out[i] = row{ID: fmt.Sprintf("id-%d", i), Name: fmt.Sprintf("row %d", i)}
	}
	return out
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("id-%d", i)
	}
	return out
}

func fastOptions(size int) Options {
	opts := DefaultOptions()
	opts.BatchSize = size
	opts.Delay = 0
	return opts
}

func TestChunk(t *testing.T) {
	for _, item := range []struct {
		name     string
		items    []int
		size     int
		expected [][]int
	}{
		{"empty", nil, 3, nil},
		{"exact", []int{1, 2, 3, 4}, 2, [][]int{{1, 2}, {3, 4}}},
		{"remainder", []int{1, 2, 3, 4, 5}, 2, [][]int{{1, 2}, {3, 4}, {5}}},
		{"larger than input", []int{1, 2}, 10, [][]int{{1, 2}}},
		{"non-positive size", []int{1, 2, 3}, 0, [][]int{{1, 2, 3}}},
	} {
		t.Run(item.name, func(t *testing.T) {
			assert.Equal(t, item.expected, Chunk(item.items, item.size))
		})
	}
}

func TestChunkDoesNotAliasFollowingChunk(t *testing.T) {
	chunks := Chunk([]int{1, 2, 3, 4}, 2)
	first := append(chunks[0], 99)

	assert.Equal(t, []int{1, 2, 99}, first)
	assert.Equal(t, []int{3, 4}, chunks[1])
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 50, opts.BatchSize)
	assert.Equal(t, 100*time.Millisecond, opts.Delay)
	assert.True(t, opts.ContinueOnError)

	assert.Zero(t, DefaultFetchOptions().Delay)

	normalized := Options{}.normalized()
	assert.Equal(t, DefaultBatchSize, normalized.BatchSize)
	assert.Equal(t, DefaultBatchSize, normalized.Concurrency)
}

func TestInsertAllChunksSucceed(t *testing.T) {
	var calls [][]row
	var progress [][2]int
	opts := fastOptions(2)
	opts.OnProgress = func(processed, total int) {
		progress = append(progress, [2]int{processed, total})
	}

	result, err := Insert(context.Background(), func(_ context.Context, chunk []row) ([]row, error) {
		calls = append(calls, chunk)
		return chunk, nil
	}, rows(5), opts)

	require.NoError(t, err)
	assert.Len(t, calls, 3)
	assert.True(t, result.Success)
	assert.Equal(t, 5, result.TotalProcessed)
	assert.Equal(t, 5, result.TotalSuccess)
	assert.Zero(t, result.TotalErrors)
	assert.Empty(t, result.Errors)
	assert.NoError(t, result.Err())
	assert.Equal(t, [][2]int{{2, 5}, {4, 5}, {5, 5}}, progress)
}

func TestInsertContinuesPastFailedChunk(t *testing.T) {
	calls := 0
	result, err := Insert(context.Background(), func(_ context.Context, chunk []row) ([]row, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("duplicate key")
		}
		return chunk, nil
	}, rows(5), fastOptions(2))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.False(t, result.Success)
	assert.Equal(t, 5, result.TotalProcessed)
	assert.Equal(t, 3, result.TotalSuccess)
	assert.Equal(t, 2, result.TotalErrors)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 2, result.Errors[0].Index)
	assert.Equal(t, 3, result.Errors[1].Index)
	assert.Contains(t, result.Errors[0].Message, "duplicate key")
	assert.Contains(t, result.Errors[0].Message, "insert chunk 2")
	assert.Error(t, result.Err())
}

func TestInsertStopsOnFirstFailedChunk(t *testing.T) {
	calls := 0
	opts := fastOptions(2)
	opts.ContinueOnError = false

	result, err := Insert(context.Background(), func(_ context.Context, chunk []row) ([]row, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("constraint violation")
		}
		return chunk, nil
	}, rows(6), opts)

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.TotalProcessed)
	assert.Equal(t, 2, result.TotalSuccess)
	assert.Equal(t, 1, result.TotalErrors)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Index)
}

func TestInsertEmptyInput(t *testing.T) {
	result, err := Insert(context.Background(), func(_ context.Context, chunk []row) ([]row, error) {
		t.Fatalf("insert must not be called")
		return nil, nil
	}, nil, fastOptions(10))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.TotalProcessed)
	assert.NotNil(t, result.Data)
}

func TestInsertPacesChunks(t *testing.T) {
	opts := fastOptions(1)
	opts.Delay = 20 * time.Millisecond

	started := time.Now()
	_, err := Insert(context.Background(), func(_ context.Context, chunk []row) ([]row, error) {
		return chunk, nil
	}, rows(3), opts)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(started), 35*time.Millisecond)
}

func TestInsertStopsWhenContextIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	result, err := Insert(ctx, func(_ context.Context, chunk []row) ([]row, error) {
		calls++
		cancel()
		return chunk, nil
	}, rows(4), fastOptions(2))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, result.TotalProcessed)
}

func TestUpdateKeepsInputOrderUnderConcurrency(t *testing.T) {
	changes := make([]Change[string], 0, 7)
	for _, id := range ids(7) {
		changes = append(changes, Change[string]{ID: id, Patch: "renamed " + id})
	}

	var mu sync.Mutex
	seen := map[string]bool{}
	result, err := Update(context.Background(), func(_ context.Context, id string, patch string) (row, error) {
		mu.Lock()
		seen[id] = true
		mu.Unlock()
		return row{ID: id, Name: patch}, nil
	}, changes, fastOptions(3))

	require.NoError(t, err)
	assert.Len(t, seen, 7)
	require.Len(t, result.Data, 7)
	for i, updated := range result.Data {
		assert.Equal(t, fmt.Sprintf("id-%d", i), updated.ID)
	}
	assert.Equal(t, 7, result.TotalProcessed)
}

func TestUpdateCollectsItemErrors(t *testing.T) {
	changes := []Change[int]{{ID: "a", Patch: 1}, {ID: "b", Patch: 2}, {ID: "c", Patch: 3}, {ID: "d", Patch: 4}}

	result, err := Update(context.Background(), func(_ context.Context, id string, patch int) (row, error) {
		if patch%2 == 0 {
			return row{}, errors.New("not found")
		}
		return row{ID: id}, nil
	}, changes, fastOptions(2))

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 4, result.TotalProcessed)
	assert.Equal(t, 2, result.TotalSuccess)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, 3, result.Errors[1].Index)
	assert.Contains(t, result.Errors[1].Message, "update d")
}

func TestUpdateStopsAtFirstFailedItem(t *testing.T) {
	changes := []Change[int]{
		{ID: "a", Patch: 1}, {ID: "b", Patch: 1},
		{ID: "c", Patch: 1}, {ID: "d", Patch: 0}, {ID: "e", Patch: 0},
		{ID: "f", Patch: 1},
	}
	opts := fastOptions(3)
	opts.ContinueOnError = false

	result, err := Update(context.Background(), func(_ context.Context, id string, patch int) (row, error) {
		if patch == 0 {
			return row{}, errors.New("rejected")
		}
		return row{ID: id}, nil
	}, changes, opts)

	require.Error(t, err)
	assert.Equal(t, 3+1, result.TotalProcessed)
	assert.Equal(t, 3, result.TotalSuccess)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 3, result.Errors[0].Index)
}

func TestUpdateRespectsConcurrencyLimit(t *testing.T) {
	changes := make([]Change[int], 10)
	for i := range changes {
		changes[i] = Change[int]{ID: fmt.Sprint(i)}
	}

	var mu sync.Mutex
	active, peak := 0, 0
	opts := fastOptions(10)
	opts.Concurrency = 2

	_, err := Update(context.Background(), func(_ context.Context, id string, _ int) (row, error) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return row{ID: id}, nil
	}, changes, opts)

	require.NoError(t, err)
	assert.LessOrEqual(t, peak, 2)
}

func TestDeleteReportsDeletedIDs(t *testing.T) {
	var deleted []string
	result, err := Delete(context.Background(), func(_ context.Context, chunk []string) error {
		deleted = append(deleted, chunk...)
		return nil
	}, ids(3), fastOptions(2))

	require.NoError(t, err)
	assert.Equal(t, ids(3), deleted)
	assert.Equal(t, []Deleted{{ID: "id-0"}, {ID: "id-1"}, {ID: "id-2"}}, result.Data)
	assert.True(t, result.Success)
}

func TestDeleteStopsOnFailureWhenRequested(t *testing.T) {
	opts := fastOptions(2)
	opts.ContinueOnError = false

	result, err := Delete(context.Background(), func(_ context.Context, chunk []string) error {
		return errors.New("foreign key violation")
	}, ids(4), opts)

	require.Error(t, err)
	assert.Zero(t, result.TotalProcessed)
	assert.Equal(t, 1, result.TotalErrors)
	assert.Equal(t, 0, result.Errors[0].Index)
}

func TestFetchSkipsFailedChunks(t *testing.T) {
	calls := 0
	var progress []int
	opts := DefaultFetchOptions()
	opts.BatchSize = 2
	opts.OnProgress = func(processed, _ int) { progress = append(progress, processed) }

	fetched, err := Fetch(context.Background(), func(_ context.Context, chunk []string) ([]row, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("timeout")
		}
		out := make([]row, 0, len(chunk))
		for _, id := range chunk {
			out = append(out, row{ID: id})
		}
		return out, nil
	}, ids(5), opts)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []row{{ID: "id-2"}, {ID: "id-3"}, {ID: "id-4"}}, fetched)
	assert.Equal(t, []int{2, 4, 5}, progress)
}

func TestParallelReturnsPerQueryErrors(t *testing.T) {
	var first, third []string
	boom := errors.New("boom")

	errs := Parallel(context.Background(),
		func(context.Context) error {
			first = []string{"registers"}
			return nil
		},
		func(context.Context) error {
			return boom
		},
		func(ctx context.Context) error {
			time.Sleep(5 * time.Millisecond)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			third = []string{"expenses"}
			return nil
		},
	)

	require.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], boom)
	assert.NoError(t, errs[2])
	assert.Equal(t, []string{"registers"}, first)
	assert.Equal(t, []string{"expenses"}, third)
}
