package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-pacekit/pool"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	cfg := pool.DefaultConfig()
	p, err := pool.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { p.Shutdown(false) })
	return New(p)
}

func TestScheduleWithBackoff_SucceedsFirstTry(t *testing.T) {
	s := newTestScheduler(t)

	value, err := s.ScheduleWithBackoff(context.Background(),
		func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
}

func TestScheduleWithBackoff_RetriesThenSucceeds(t *testing.T) {
	s := newTestScheduler(t)

	var attempts atomic.Int32
	value, err := s.ScheduleWithBackoff(context.Background(),
		func() (interface{}, error) {
			if attempts.Add(1) < 3 {
				return nil, errors.New("flaky")
			}
			return "finally", nil
		},
		WithMaxRetries(5),
		WithBackoff(NoBackoff()))

	require.NoError(t, err)
	assert.Equal(t, "finally", value)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestScheduleWithBackoff_ExhaustsAndPropagates(t *testing.T) {
	s := newTestScheduler(t)

	boom := errors.New("always fails")
	var attempts atomic.Int32

	_, err := s.ScheduleWithBackoff(context.Background(),
		func() (interface{}, error) {
			attempts.Add(1)
			return nil, boom
		},
		WithMaxRetries(3),
		WithBackoff(NoBackoff()))

	assert.ErrorIs(t, err, boom, "重试耗尽后应返回最后一次错误")
	assert.Equal(t, int32(4), attempts.Load(), "max_retries=3 共 4 次尝试")
}

func TestScheduleWithBackoff_BackoffLaw(t *testing.T) {
	// factor=1, multiplier=2: 第 1/2/3 次重试前分别等 1s, 2s, 4s
	strategy := ExponentialBackoff(time.Second)
	assert.Equal(t, time.Second, strategy.Next(1))
	assert.Equal(t, 2*time.Second, strategy.Next(2))
	assert.Equal(t, 4*time.Second, strategy.Next(3))
	assert.Equal(t, time.Duration(0), strategy.Next(0))
}

func TestScheduleWithBackoff_SleepsBetweenAttempts(t *testing.T) {
	s := newTestScheduler(t)

	start := time.Now()
	_, err := s.ScheduleWithBackoff(context.Background(),
		func() (interface{}, error) { return nil, errors.New("nope") },
		WithMaxRetries(2),
		WithBackoffFactor(20*time.Millisecond))
	elapsed := time.Since(start)

	require.Error(t, err)
	// 20ms·2^0 + 20ms·2^1 = 60ms
	assert.GreaterOrEqual(t, elapsed, 55*time.Millisecond)
}

func TestScheduleWithBackoff_ContextCancel(t *testing.T) {
	s := newTestScheduler(t)

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once

	_, err := s.ScheduleWithBackoff(ctx,
		func() (interface{}, error) {
			once.Do(cancel)
			return nil, errors.New("fail")
		},
		WithMaxRetries(5),
		WithBackoffFactor(time.Second))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestScheduleWithBackoff_OnRetryCallback(t *testing.T) {
	s := newTestScheduler(t)

	var notified []int
	_, _ = s.ScheduleWithBackoff(context.Background(),
		func() (interface{}, error) { return nil, errors.New("x") },
		WithMaxRetries(2),
		WithBackoff(NoBackoff()),
		WithOnRetry(func(attempt int, err error) { notified = append(notified, attempt) }))

	assert.Equal(t, []int{1, 2}, notified)
}

func TestScheduleBatch_OrderAndWaves(t *testing.T) {
	s := newTestScheduler(t)

	var maxParallel, current atomic.Int32
	tasks := make([]pool.TaskFunc, 9)
	for i := range tasks {
		i := i
		tasks[i] = func() (interface{}, error) {
			n := current.Add(1)
			for {
				prev := maxParallel.Load()
				if n <= prev || maxParallel.CompareAndSwap(prev, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
			return i, nil
		}
	}

	results := s.ScheduleBatch(context.Background(), tasks, 3)

	require.Len(t, results, 9)
	for i, r := range results {
		assert.Equal(t, i, r, "槽位 %d 应对应任务 %d", i, i)
	}
	assert.LessOrEqual(t, maxParallel.Load(), int32(3), "同一时刻并发不应超过波大小")
}

func TestScheduleBatch_FailureLeavesNilSlot(t *testing.T) {
	s := newTestScheduler(t)

	tasks := []pool.TaskFunc{
		func() (interface{}, error) { return 1, nil },
		func() (interface{}, error) { return nil, errors.New("dead") },
		func() (interface{}, error) { return 3, nil },
	}

	results := s.ScheduleBatch(context.Background(), tasks, 2)

	require.Len(t, results, 3)
	assert.Equal(t, 1, results[0])
	assert.Nil(t, results[1])
	assert.Equal(t, 3, results[2])
}

func TestScheduleBatch_DefaultsToWorkerCount(t *testing.T) {
	s := newTestScheduler(t)

	tasks := []pool.TaskFunc{
		func() (interface{}, error) { return "a", nil },
	}
	results := s.ScheduleBatch(context.Background(), tasks, 0)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0])
}

func TestBackoffStrategies(t *testing.T) {
	linear := LinearBackoff(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, linear.Next(1))
	assert.Equal(t, 300*time.Millisecond, linear.Next(3))

	constant := ConstantBackoff(time.Second)
	assert.Equal(t, time.Second, constant.Next(1))
	assert.Equal(t, time.Second, constant.Next(9))

	capped := ExponentialBackoff(time.Second, WithMaxDelay(3*time.Second))
	assert.Equal(t, 3*time.Second, capped.Next(10))

	jittered := ExponentialBackoff(time.Second, WithBackoffJitter(0.5))
	for i := 0; i < 20; i++ {
		d := jittered.Next(1)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}
