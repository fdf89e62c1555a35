package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsEveryTask(t *testing.T) {
	pool := NewPool(context.Background(), 4)

	var ran atomic.Int32
	for i := 0; i < 50; i++ {
		pool.Submit(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	require.Empty(t, pool.Wait())
	require.Equal(t, int32(50), ran.Load())
}

func TestPoolCollectsTaskErrors(t *testing.T) {
	pool := NewPool(context.Background(), 2)

	boom := errors.New("boom")
	for i := 0; i < 10; i++ {
		failing := i%2 == 0
		pool.Submit(func(ctx context.Context) error {
			if failing {
				return boom
			}
			return nil
		})
	}

	errs := pool.Wait()
	require.Len(t, errs, 5)
	for _, err := range errs {
		require.ErrorIs(t, err, boom)
	}
}

func TestPoolDropsSubmitsAfterShutdown(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()
	pool.Shutdown()

	var ran atomic.Int32
	pool.Submit(func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})
	require.Equal(t, int32(0), ran.Load())
}

func TestPoolPropagatesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 1)

	got := make(chan error, 1)
	pool.Submit(func(taskCtx context.Context) error {
		cancel()
		<-taskCtx.Done()
		got <- taskCtx.Err()
		return taskCtx.Err()
	})

	errs := pool.Wait()
	require.Len(t, errs, 1)
	require.ErrorIs(t, <-got, context.Canceled)
}

func TestPoolDefaultsToOneWorker(t *testing.T) {
	pool := NewPool(nil, 0)

	var ran atomic.Int32
	pool.Submit(func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})
	require.Empty(t, pool.Wait())
	require.Equal(t, int32(1), ran.Load())
}
