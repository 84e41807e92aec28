package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-pacekit/pool"
	"github.com/KOMKZ/go-pacekit/ratelimit"
	"github.com/KOMKZ/go-pacekit/scheduler"
)

func newTestEngine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Sampler.Interval = 50 * time.Millisecond
	cfg.Sampler.CPUWindow = 10 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Shutdown(context.Background()) })
	return e
}

func TestEngine_SubmitAndWait(t *testing.T) {
	e := newTestEngine(t, nil)

	task, err := e.Submit(func() (interface{}, error) { return "probe-result", nil })
	require.NoError(t, err)

	value, err := task.Wait()
	require.NoError(t, err)
	assert.Equal(t, "probe-result", value)
}

func TestEngine_Map(t *testing.T) {
	e := newTestEngine(t, nil)

	items := []interface{}{"a", "b", "c"}
	results := e.Map(func(item interface{}) (interface{}, error) {
		return item.(string) + "!", nil
	}, items)

	require.Len(t, results, 3)
	assert.Equal(t, "a!", results[0])
	assert.Equal(t, "b!", results[1])
	assert.Equal(t, "c!", results[2])
}

func TestEngine_ScheduleWithBackoff(t *testing.T) {
	e := newTestEngine(t, nil)

	calls := 0
	value, err := e.ScheduleWithBackoff(context.Background(),
		func() (interface{}, error) {
			calls++
			if calls < 2 {
				return nil, errors.New("first try fails")
			}
			return calls, nil
		},
		scheduler.WithMaxRetries(3),
		scheduler.WithBackoff(scheduler.NoBackoff()))

	require.NoError(t, err)
	assert.Equal(t, 2, value)
}

func TestEngine_ScheduleBatch(t *testing.T) {
	e := newTestEngine(t, nil)

	tasks := []pool.TaskFunc{
		func() (interface{}, error) { return 1, nil },
		func() (interface{}, error) { return nil, errors.New("broken") },
		func() (interface{}, error) { return 3, nil },
	}
	results := e.ScheduleBatch(context.Background(), tasks, 2)

	require.Len(t, results, 3)
	assert.Equal(t, 1, results[0])
	assert.Nil(t, results[1])
	assert.Equal(t, 3, results[2])
}

func TestEngine_WaitBeforeRequest(t *testing.T) {
	e := newTestEngine(t, func(cfg *Config) {
		cfg.Controller = ratelimit.ControllerConfig{
			InitialRate: 2,
			TimeWindow:  100 * time.Millisecond,
		}
	})

	ctx := context.Background()
	wait, err := e.WaitBeforeRequest(ctx, "target-host")
	require.NoError(t, err)
	assert.Zero(t, wait)

	wait, err = e.WaitBeforeRequest(ctx, "target-host")
	require.NoError(t, err)
	assert.Zero(t, wait)

	wait, err = e.WaitBeforeRequest(ctx, "target-host")
	require.NoError(t, err)
	assert.Greater(t, wait, time.Duration(0), "超出速率后第三次应等待")
}

func TestEngine_ReportResultDrivesRate(t *testing.T) {
	e := newTestEngine(t, func(cfg *Config) {
		cfg.Controller = ratelimit.ControllerConfig{
			InitialRate: 10,
			WindowSize:  40 * time.Millisecond,
		}
	})

	for i := 0; i < 94; i++ {
		e.ReportResult("target-host", true)
	}
	for i := 0; i < 5; i++ {
		e.ReportResult("target-host", false)
	}
	time.Sleep(50 * time.Millisecond)
	e.ReportResult("target-host", true)

	assert.Equal(t, 11, e.CurrentRate())
}

func TestEngine_DelayControls(t *testing.T) {
	e := newTestEngine(t, func(cfg *Config) {
		cfg.Delay.BaseDelay = 20 * time.Millisecond
	})

	start := time.Now()
	slept := e.ApplyDelay("target-host")
	assert.Equal(t, 20*time.Millisecond, slept)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	e.SetHostDelay("target-host", 0)
	assert.Zero(t, e.ApplyDelay("target-host"))
}

func TestEngine_CurrentSnapshot(t *testing.T) {
	e := newTestEngine(t, nil)

	snap := e.CurrentSnapshot()
	assert.False(t, snap.Timestamp.IsZero())
	assert.GreaterOrEqual(t, snap.CPUPercent, 0.0)
	assert.LessOrEqual(t, snap.CPUPercent, 100.0)
}

func TestOptimalFor(t *testing.T) {
	// 高压减半，下限 1
	assert.Equal(t, 5, optimalFor(10, 90, 40))
	assert.Equal(t, 5, optimalFor(10, 40, 90))
	assert.Equal(t, 1, optimalFor(1, 95, 95))

	// 空闲翻倍，上限 50
	assert.Equal(t, 20, optimalFor(10, 10, 20))
	assert.Equal(t, 50, optimalFor(40, 10, 20))

	// 中间带不变
	assert.Equal(t, 10, optimalFor(10, 50, 60))

	// 边界不触发：cpu=30 / mem=50 不算空闲
	assert.Equal(t, 10, optimalFor(10, 30, 50))
}

func TestEngine_ShutdownIsIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sampler.Interval = 50 * time.Millisecond
	cfg.Sampler.CPUWindow = 10 * time.Millisecond

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)

	require.NoError(t, e.Shutdown(context.Background()))
	require.NoError(t, e.Shutdown(context.Background()))

	_, err = e.Submit(func() (interface{}, error) { return nil, nil })
	assert.ErrorIs(t, err, pool.ErrPoolClosed)
}
