package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T, cfg ControllerConfig) *Controller {
	t.Helper()
	c, err := NewController(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// reportWindow 填入一窗口的结果并触发翻转
func reportWindow(t *testing.T, c *Controller, successes, failures int, windowSize time.Duration) {
	t.Helper()
	for i := 0; i < successes-1; i++ {
		c.ReportResult("host-a", true)
	}
	for i := 0; i < failures; i++ {
		c.ReportResult("host-a", false)
	}
	time.Sleep(windowSize + 10*time.Millisecond)
	c.ReportResult("host-a", true) // 最后一笔越过窗口边界，触发翻转
}

func TestControllerConfig_Validate(t *testing.T) {
	cfg := ControllerConfig{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.InitialRate)
	assert.Equal(t, 1, cfg.MinRate)
	assert.Equal(t, 100, cfg.MaxRate)

	bad := ControllerConfig{MinRate: 50, MaxRate: 10}
	assert.Error(t, bad.Validate())

	bad = ControllerConfig{InitialRate: 200, MaxRate: 100}
	assert.Error(t, bad.Validate())
}

func TestController_RateIncreasesOnHighSuccess(t *testing.T) {
	window := 40 * time.Millisecond
	c := newTestController(t, ControllerConfig{InitialRate: 10, WindowSize: window})

	// 95 成功 / 5 失败 → 成功率 0.95 > 0.9 → 10·1.1 截断为 11
	reportWindow(t, c, 95, 5, window)
	assert.Equal(t, 11, c.CurrentRate())
}

func TestController_RateDecreasesOnLowSuccess(t *testing.T) {
	window := 40 * time.Millisecond
	c := newTestController(t, ControllerConfig{InitialRate: 10, WindowSize: window})

	// 5 成功 / 15 失败 → 成功率 0.25 < 0.7 → 10·0.9 截断为 9
	reportWindow(t, c, 5, 15, window)
	assert.Equal(t, 9, c.CurrentRate())
}

func TestController_RateUnchangedInMiddleBand(t *testing.T) {
	window := 40 * time.Millisecond
	c := newTestController(t, ControllerConfig{InitialRate: 10, WindowSize: window})

	// 成功率 0.8，介于 0.7 和 0.9 之间 → 不变
	reportWindow(t, c, 16, 4, window)
	assert.Equal(t, 10, c.CurrentRate())
}

func TestController_RateClampedAtFloor(t *testing.T) {
	window := 40 * time.Millisecond
	c := newTestController(t, ControllerConfig{
		InitialRate: 1, MinRate: 1, MaxRate: 100, WindowSize: window,
	})

	reportWindow(t, c, 1, 20, window)
	assert.Equal(t, 1, c.CurrentRate(), "已在下限时不再下降")
}

func TestController_EmptyWindowCountsAsFullSuccess(t *testing.T) {
	c := newTestController(t, DefaultControllerConfig())

	// 零分母窗口按成功率 1.0 处理，不除零
	c.mu.Lock()
	c.rollover("host-a")
	c.mu.Unlock()

	assert.Equal(t, 11, c.CurrentRate())
}

func TestController_RetunePropagatesToAllLimiters(t *testing.T) {
	window := 40 * time.Millisecond
	c := newTestController(t, ControllerConfig{InitialRate: 10, WindowSize: window})
	ctx := context.Background()

	// 先让两个 host 的限流器存在
	_, err := c.WaitIfNeeded(ctx, "host-a")
	require.NoError(t, err)
	_, err = c.WaitIfNeeded(ctx, "host-b")
	require.NoError(t, err)

	reportWindow(t, c, 95, 5, window)
	require.Equal(t, 11, c.CurrentRate())

	// 全局下发：两个限流器都拿到新速率
	c.mu.RLock()
	defer c.mu.RUnlock()
	assert.Equal(t, 11, c.limiters["host-a"].MaxRequests())
	assert.Equal(t, 11, c.limiters["host-b"].MaxRequests())
}

func TestController_CountersResetAfterRollover(t *testing.T) {
	window := 40 * time.Millisecond
	c := newTestController(t, ControllerConfig{InitialRate: 10, WindowSize: window})

	reportWindow(t, c, 95, 5, window)
	require.Equal(t, 11, c.CurrentRate())

	c.mu.RLock()
	success, failure := c.successCount, c.failureCount
	c.mu.RUnlock()
	assert.Zero(t, success)
	assert.Zero(t, failure)

	// 第二个窗口独立统计：中间带成功率不再调整
	reportWindow(t, c, 16, 4, window)
	assert.Equal(t, 11, c.CurrentRate())
}

func TestController_WaitIfNeededDelegates(t *testing.T) {
	c := newTestController(t, ControllerConfig{
		InitialRate: 2, TimeWindow: 100 * time.Millisecond,
	})
	ctx := context.Background()

	wait, err := c.WaitIfNeeded(ctx, "host-a")
	require.NoError(t, err)
	assert.Zero(t, wait)
	wait, err = c.WaitIfNeeded(ctx, "host-a")
	require.NoError(t, err)
	assert.Zero(t, wait)

	wait, err = c.WaitIfNeeded(ctx, "host-a")
	require.NoError(t, err)
	assert.Greater(t, wait, time.Duration(0), "超出速率后应等待")

	// 其他 host 不受影响
	wait, err = c.WaitIfNeeded(ctx, "host-b")
	require.NoError(t, err)
	assert.Zero(t, wait)
}

func TestController_SetHostRate(t *testing.T) {
	c := newTestController(t, ControllerConfig{InitialRate: 10, MaxRate: 50})

	require.NoError(t, c.SetHostRate("host-a", 20))
	c.mu.RLock()
	assert.Equal(t, 20, c.limiters["host-a"].MaxRequests())
	c.mu.RUnlock()

	// 超出上限则收到边界
	require.NoError(t, c.SetHostRate("host-a", 500))
	c.mu.RLock()
	assert.Equal(t, 50, c.limiters["host-a"].MaxRequests())
	c.mu.RUnlock()
}

func TestController_RateChangedEventPublished(t *testing.T) {
	window := 40 * time.Millisecond
	c := newTestController(t, ControllerConfig{InitialRate: 10, WindowSize: window})

	changed := make(chan *RateChangedEvent, 1)
	c.Subscribe(EventListenerFunc(func(e Event) {
		if ev, ok := e.(*RateChangedEvent); ok {
			select {
			case changed <- ev:
			default:
			}
		}
	}))

	reportWindow(t, c, 95, 5, window)

	select {
	case ev := <-changed:
		assert.Equal(t, 10, ev.OldRate)
		assert.Equal(t, 11, ev.NewRate)
		assert.InDelta(t, 0.95, ev.SuccessRate, 0.01)
	case <-time.After(time.Second):
		t.Fatal("未收到速率调整事件")
	}
}

func TestController_ClosedRejectsCalls(t *testing.T) {
	c, err := NewController(DefaultControllerConfig())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.WaitIfNeeded(context.Background(), "host-a")
	assert.ErrorIs(t, err, ErrControllerClosed)
}
