package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelizeCoversEveryItem(t *testing.T) {
	for _, n := range []int{0, 1, 7, 1000} {
		seen := make([]int32, n)
		Parallelize(n, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, c := range seen {
			require.EqualValues(t, 1, c, "item %d of %d", i, n)
		}
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)
}

func TestParallelizeErr(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var total int64
		err := ParallelizeErr(context.Background(), 500, 10, func(_ context.Context, start, end int) error {
			atomic.AddInt64(&total, int64(end-start))
			return nil
		})
		require.NoError(t, err)
		assert.EqualValues(t, 500, total)
	})

	t.Run("first error returned", func(t *testing.T) {
		boom := errors.New("boom")
		err := ParallelizeErr(context.Background(), 500, 10, func(_ context.Context, start, end int) error {
			if start <= 250 && 250 < end {
				return boom
			}
			return nil
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("sequential path", func(t *testing.T) {
		boom := errors.New("boom")
		err := ParallelizeErr(context.Background(), 5, 10, func(_ context.Context, start, end int) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		called := false
		err := ParallelizeErr(ctx, 5, 10, func(_ context.Context, start, end int) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}
