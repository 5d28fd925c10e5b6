package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bookbonus/bonus-backend/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPoolConfig() config.WorkerPoolConfig {
	return config.WorkerPoolConfig{
		MaxWorkers:             2,
		QueueSize:              10,
		ShutdownTimeoutSeconds: 5,
		JobTimeoutSeconds:      30,
	}
}

func TestWorkerPool_SubmitAndExecute(t *testing.T) {
	resetWorkerPoolMetricsForTesting()
	pool := NewWorkerPool(testPoolConfig())
	pool.Start()
	defer func() { _ = pool.Shutdown(context.Background()) }()

	var executed int32
	done := make(chan struct{})

	submitted := pool.Submit(Job{
		Name: "test-job",
		Execute: func(ctx context.Context) error {
			atomic.AddInt32(&executed, 1)
			close(done)
			return nil
		},
	})

	require.True(t, submitted, "Job should be accepted")

	select {
	case <-done:
		// Job completed
	case <-time.After(2 * time.Second):
		t.Fatal("Job did not execute within timeout")
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&executed))
}

func TestWorkerPool_BoundedConcurrency(t *testing.T) {
	resetWorkerPoolMetricsForTesting()
	cfg := testPoolConfig()
	cfg.QueueSize = 100

	pool := NewWorkerPool(cfg)
	pool.Start()
	defer func() { _ = pool.Shutdown(context.Background()) }()

	var maxConcurrent int32
	var currentConcurrent int32
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		pool.Submit(Job{
			Name: "concurrent-job",
			Execute: func(ctx context.Context) error {
				defer wg.Done()

				current := atomic.AddInt32(&currentConcurrent, 1)
				defer atomic.AddInt32(&currentConcurrent, -1)

				mu.Lock()
				if current > maxConcurrent {
					maxConcurrent = current
				}
				mu.Unlock()

				time.Sleep(50 * time.Millisecond)
				return nil
			},
		})
	}

	wg.Wait()
	assert.LessOrEqual(t, maxConcurrent, int32(cfg.MaxWorkers))
}

func TestWorkerPool_DropsWhenQueueFull(t *testing.T) {
	resetWorkerPoolMetricsForTesting()
	cfg := testPoolConfig()
	cfg.MaxWorkers = 1
	cfg.QueueSize = 1

	pool := NewWorkerPool(cfg)
	// Not started: jobs stay queued, so the second submit must be dropped.
	require.True(t, pool.Submit(Job{Name: "first", Execute: func(ctx context.Context) error { return nil }}))
	assert.False(t, pool.Submit(Job{Name: "second", Execute: func(ctx context.Context) error { return nil }}))
	assert.Equal(t, 1, pool.QueueDepth())
}

func TestWorkerPool_GracefulShutdownWaitsForJobs(t *testing.T) {
	resetWorkerPoolMetricsForTesting()
	pool := NewWorkerPool(testPoolConfig())
	pool.Start()

	var finished int32
	started := make(chan struct{})
	pool.Submit(Job{
		Name: "slow-job",
		Execute: func(ctx context.Context) error {
			close(started)
			time.Sleep(100 * time.Millisecond)
			atomic.AddInt32(&finished, 1)
			return nil
		},
	})

	<-started
	require.NoError(t, pool.Shutdown(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&finished))
	assert.False(t, pool.IsRunning())
}

func TestWorkerPool_ShutdownTimeout(t *testing.T) {
	resetWorkerPoolMetricsForTesting()
	pool := NewWorkerPool(testPoolConfig())
	pool.Start()

	started := make(chan struct{})
	pool.Submit(Job{
		Name: "stuck-job",
		Execute: func(ctx context.Context) error {
			close(started)
			time.Sleep(2 * time.Second)
			return nil
		},
	})

	<-started
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, pool.Shutdown(ctx))
}
